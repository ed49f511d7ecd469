package cmd

import (
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-reiserfs/pkg/services"
)

var listRecursive bool

var listCmd = &cobra.Command{
	Use:   "list [image-path] [path]",
	Short: "List directory contents",
	Long: `List the entries of a directory inside a ReiserFS volume.

Examples:
  # List the root directory
  go-reiserfs list disk.img

  # List a directory tree
  go-reiserfs list disk.img /home/alice --recursive

  # Machine readable listing
  go-reiserfs list disk.img /etc -o json`,

	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		listPath := "/"
		if len(args) == 2 {
			listPath = args[1]
		}
		return runList(cmd, args[0], listPath)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVarP(&listRecursive, "recursive", "r", false, "recursive listing")
}

func runList(cmd *cobra.Command, imagePath, listPath string) error {
	factory, svc, err := openVolume(cmd, imagePath, nil)
	if err != nil {
		return err
	}
	defer factory.Shutdown()

	files, err := svc.ListDirectory(cmd.Context(), listPath, listRecursive)
	if err != nil {
		return err
	}
	logger.Sugar().Debugf("listed %d entries under %s", len(files), listPath)

	out := cmd.OutOrStdout()
	if outputFormat != "table" {
		return writeStructured(out, files)
	}

	table := newTable(out, "Mode", "Size", "Modified", "Key", "Path")
	for _, f := range files {
		name := f.Path
		if f.IsSymlink() {
			name += " -> " + f.LinkTarget
		}
		table.Append([]string{
			fileMode(f).String(),
			formatBytes(f.Size),
			f.Modified.UTC().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d/%d", f.DirectoryID, f.ObjectID),
			name,
		})
	}
	table.Render()
	return nil
}

// fileMode converts the stored mode into an fs.FileMode for display
func fileMode(f services.FileInfo) fs.FileMode {
	mode := fs.FileMode(f.Mode) & fs.ModePerm
	switch {
	case f.IsDir():
		mode |= fs.ModeDir
	case f.IsSymlink():
		mode |= fs.ModeSymlink
	}
	return mode
}
