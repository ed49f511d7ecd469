package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var catCmd = &cobra.Command{
	Use:   "cat [image-path] [path]",
	Short: "Print a file to standard output",
	Long: `Write the contents of a file inside a ReiserFS volume to standard
output. Symlinks are followed.

Examples:
  go-reiserfs cat disk.img /etc/fstab
  go-reiserfs cat disk.img /var/log/messages | grep error`,

	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCat(cmd, args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(catCmd)
}

func runCat(cmd *cobra.Command, imagePath, filePath string) error {
	factory, svc, err := openVolume(cmd, imagePath, nil)
	if err != nil {
		return err
	}
	defer factory.Shutdown()

	f, err := svc.OpenFile(cmd.Context(), filePath)
	if err != nil {
		return err
	}

	n, err := io.Copy(cmd.OutOrStdout(), f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	logger.Debug("file written", zap.String("path", filePath), zap.Int64("bytes", n))
	return nil
}
