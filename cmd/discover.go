package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-reiserfs/pkg/app/discover"
)

var (
	// Search root
	discoverRoot string

	// File matching criteria
	namePattern   string
	nameRegex     string
	extensions    []string
	caseSensitive bool

	// Size criteria
	minSize string
	maxSize string

	// Date criteria
	modifiedAfter  string
	modifiedBefore string

	// Content search
	contentSearch   string
	includeSymlinks bool
	maxResults      int

	discoverTimeout time.Duration
)

var discoverCmd = &cobra.Command{
	Use:   "discover [image-path]",
	Short: "Find files by name, extension, size, date, or content",
	Long: `Search for files within a ReiserFS volume using various criteria.

Examples:
  # Find all PDF files
  go-reiserfs discover disk.img --ext pdf

  # Find files with "password" in name under /home
  go-reiserfs discover disk.img --root /home --name "*password*"

  # Find large files modified this year
  go-reiserfs discover disk.img --min-size 100MB --after 2024-01-01

  # Search file contents for specific text
  go-reiserfs discover disk.img --content "secret" --ext txt,log`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiscover(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().StringVar(&discoverRoot, "root", "/", "directory to search from")

	// File matching
	discoverCmd.Flags().StringVarP(&namePattern, "name", "n", "", "filename pattern (wildcards: *, ?)")
	discoverCmd.Flags().StringVar(&nameRegex, "regex", "", "filename regex pattern")
	discoverCmd.Flags().StringSliceVar(&extensions, "ext", nil, "file extensions (pdf,jpg,txt)")
	discoverCmd.Flags().BoolVar(&caseSensitive, "case-sensitive", false, "case-sensitive matching")

	// Size filtering
	discoverCmd.Flags().StringVar(&minSize, "min-size", "", "minimum file size (10MB, 1GB)")
	discoverCmd.Flags().StringVar(&maxSize, "max-size", "", "maximum file size (100MB, 2GB)")

	// Date filtering
	discoverCmd.Flags().StringVar(&modifiedAfter, "after", "", "modified on or after (YYYY-MM-DD)")
	discoverCmd.Flags().StringVar(&modifiedBefore, "before", "", "modified before (YYYY-MM-DD)")

	// Content search
	discoverCmd.Flags().StringVarP(&contentSearch, "content", "c", "", "search text within files")
	discoverCmd.Flags().BoolVar(&includeSymlinks, "symlinks", false, "include symlinks in results")
	discoverCmd.Flags().IntVar(&maxResults, "limit", 1000, "maximum results")
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 0, "abort the search after this long (0 disables)")

	// Mutual exclusions
	discoverCmd.MarkFlagsMutuallyExclusive("name", "regex")
}

func runDiscover(cmd *cobra.Command, imagePath string) error {
	ctx := newAppContext(cmd)
	if discoverTimeout > 0 {
		var cancel func()
		ctx, cancel = ctx.WithTimeout(discoverTimeout)
		defer cancel()
	}

	config, err := deviceConfig(cmd)
	if err != nil {
		return err
	}

	request := &discover.Request{
		ImagePath:       imagePath,
		RootPath:        discoverRoot,
		Device:          config,
		NamePattern:     namePattern,
		NameRegex:       nameRegex,
		Extensions:      extensions,
		CaseSensitive:   caseSensitive,
		MinSize:         minSize,
		MaxSize:         maxSize,
		ModifiedAfter:   modifiedAfter,
		ModifiedBefore:  modifiedBefore,
		ContentSearch:   contentSearch,
		IncludeSymlinks: includeSymlinks,
		MaxResults:      maxResults,
	}

	// Handle the request through application layer
	response, err := discover.Handle(ctx, request)
	if err != nil {
		return err
	}

	if ctx.Verbose {
		ctx.Log(discover.FormatSummary(response))
	}

	// Format and display results
	return discover.FormatOutput(cmd.OutOrStdout(), response, ctx.OutputFormat)
}
