// Command lfsutil inspects, mounts, and archives log-structured file
// system images.
package main

import (
	"fmt"
	"io/fs"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jamorton/xv6-lfs"
)

var rootCmd = &cobra.Command{
	Use:   "lfsutil",
	Short: "Inspect, mount, and archive log-structured file system images",
}

func openImage(path string) (*lfs.Image, *lfs.FileDevice, error) {
	dev, err := lfs.OpenFileDevice(path)
	if err != nil {
		return nil, nil, err
	}
	im, err := lfs.OpenImage(dev)
	if err != nil {
		dev.Close()
		return nil, nil, err
	}
	return im, dev, nil
}

var lsCmd = &cobra.Command{
	Use:   "ls <image> [<path>]",
	Short: "List files in an image",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		im, dev, err := openImage(args[0])
		if err != nil {
			return err
		}
		defer dev.Close()

		dir := "."
		if len(args) > 1 {
			dir = args[1]
		}
		entries, err := im.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read dir %s: %w", dir, err)
		}
		for _, e := range entries {
			info, err := e.Info()
			if err != nil {
				return err
			}
			typeChar := "-"
			if info.IsDir() {
				typeChar = "d"
			}
			fmt.Printf("%s %8d %s\n", typeChar, info.Size(), e.Name())
		}
		return nil
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <image> <file>",
	Short: "Print a file's contents",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		im, dev, err := openImage(args[0])
		if err != nil {
			return err
		}
		defer dev.Close()

		data, err := fs.ReadFile(im, args[1])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[1], err)
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <image>",
	Short: "Show superblock information",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := lfs.OpenFileDevice(args[0])
		if err != nil {
			return err
		}
		defer dev.Close()

		sb, err := lfs.ReadSuperblock(dev)
		if err != nil {
			return err
		}
		fmt.Printf("Segments:   %d\n", sb.Nsegs)
		fmt.Printf("Last seg:   block %d\n", sb.Segment)
		fmt.Printf("Inode map:  block %d\n", sb.Imap)
		fmt.Printf("Inodes:     %d\n", sb.Ninodes)
		fmt.Printf("Blocks:     %d\n", sb.Nblocks)
		fmt.Printf("Next block: %d\n", sb.Next)
		return nil
	},
}

var mountCmd = &cobra.Command{
	Use:   "mount <image> <mountpoint>",
	Short: "Mount an image read-only via FUSE",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := lfs.OpenFileDevice(args[0])
		if err != nil {
			return err
		}
		defer dev.Close()

		server, err := lfs.Mount(dev, args[1])
		if err != nil {
			return fmt.Errorf("mount: %w", err)
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		go func() {
			<-sig
			server.Unmount()
		}()

		logrus.WithField("mountpoint", args[1]).Info("mounted, press ctrl-c to unmount")
		server.Wait()
		return nil
	},
}

var packFormat string

var packCmd = &cobra.Command{
	Use:   "pack <image> <archive>",
	Short: "Compress a whole image into an archive",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := parseFormat(packFormat)
		if err != nil {
			return err
		}
		src, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer src.Close()
		dst, err := os.Create(args[1])
		if err != nil {
			return err
		}
		defer dst.Close()
		return lfs.Pack(dst, src, format)
	},
}

var unpackFormat string

var unpackCmd = &cobra.Command{
	Use:   "unpack <archive> <image>",
	Short: "Decompress an archive back into an image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := parseFormat(unpackFormat)
		if err != nil {
			return err
		}
		src, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer src.Close()
		dst, err := os.Create(args[1])
		if err != nil {
			return err
		}
		defer dst.Close()
		return lfs.Unpack(dst, src, format)
	},
}

func parseFormat(s string) (lfs.ArchiveFormat, error) {
	switch s {
	case "", "zstd":
		return lfs.ArchiveZstd, nil
	case "xz":
		return lfs.ArchiveXZ, nil
	default:
		return 0, fmt.Errorf("unknown archive format %q", s)
	}
}

func init() {
	packCmd.Flags().StringVar(&packFormat, "format", "zstd", "archive codec (zstd, xz)")
	unpackCmd.Flags().StringVar(&unpackFormat, "format", "zstd", "archive codec (zstd, xz)")

	rootCmd.AddCommand(lsCmd, catCmd, infoCmd, mountCmd, packCmd, unpackCmd)
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
