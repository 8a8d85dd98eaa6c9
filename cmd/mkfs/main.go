// Command mkfs builds a fresh image file from a list of host files,
// mirroring the original xv6 mkfs tool: the resulting image holds a
// root directory with one regular-file inode per argument, named after
// the host file with any leading underscore stripped.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jamorton/xv6-lfs"
)

var rootCmd = &cobra.Command{
	Use:   "mkfs <image> [<file>...]",
	Short: "Build a fresh log-structured file system image",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMkfs,
}

func init() {
	rootCmd.Flags().Bool("verbose", false, "log each file as it's added")
}

func runMkfs(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	imagePath := args[0]
	hostFiles := args[1:]

	files := make(map[string][]byte, len(hostFiles))
	for _, hp := range hostFiles {
		data, err := os.ReadFile(hp)
		if err != nil {
			return fmt.Errorf("read %s: %w", hp, err)
		}
		name := strings.TrimPrefix(filepath.Base(hp), "_")
		files[name] = data
		logrus.WithFields(logrus.Fields{"host": hp, "name": name, "bytes": len(data)}).Debug("staged file")
	}

	dev, err := lfs.OpenFileDevice(imagePath)
	if err != nil {
		return err
	}
	defer dev.Close()

	if err := lfs.NewImage(dev, files); err != nil {
		return fmt.Errorf("build image: %w", err)
	}

	logrus.WithFields(logrus.Fields{"image": imagePath, "files": len(files)}).Info("image built")
	return nil
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
