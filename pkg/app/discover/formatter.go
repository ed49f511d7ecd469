package discover

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// FormatOutput writes discovery results to w in the requested format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		return formatJSON(w, response)
	case "yaml":
		return formatYAML(w, response)
	case "table", "":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// formatTable formats results as a table
func formatTable(w io.Writer, response *Response) error {
	if len(response.Files) == 0 {
		_, err := fmt.Fprintln(w, "No files found matching the search criteria.")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Path", "Size", "Modified", "Type", "Mode", "Key"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)

	// Sort files by path for consistent output
	files := slices.Clone(response.Files)
	slices.SortFunc(files, func(a, b FileResult) int {
		return strings.Compare(a.Path, b.Path)
	})

	for _, file := range files {
		name := file.Path
		if file.LinkTarget != "" {
			name += " -> " + file.LinkTarget
		}
		table.Append([]string{
			name,
			file.FormatSize(),
			file.Modified.UTC().Format("2006-01-02 15:04"),
			file.Type,
			file.Permissions,
			fmt.Sprintf("%d/%d", file.DirectoryID, file.ObjectID),
		})
	}
	table.Render()

	// Summary
	fmt.Fprintln(w)
	if response.VolumeInfo.Label != "" {
		fmt.Fprintf(w, "Volume: %s (%s)\n", response.VolumeInfo.Label, response.VolumeInfo.Format)
	}
	_, err := fmt.Fprintln(w, FormatSummary(response))
	return err
}

// formatJSON formats results as JSON
func formatJSON(w io.Writer, response *Response) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// formatYAML formats results as YAML
func formatYAML(w io.Writer, response *Response) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(response)
}

// FormatSummary provides a brief summary for verbose output
func FormatSummary(response *Response) string {
	if response.TotalFound == 0 {
		return "No files found"
	}

	summary := fmt.Sprintf("Found %d file", response.TotalFound)
	if response.TotalFound != 1 {
		summary += "s"
	}

	if response.Truncated {
		summary += fmt.Sprintf(" (showing %d)", len(response.Files))
	}

	var totalSize int64
	for _, file := range response.Files {
		totalSize += file.Size
	}

	summary += fmt.Sprintf(" totaling %s", formatBytes(totalSize))
	summary += fmt.Sprintf(" in %v", response.SearchTime.Round(time.Millisecond))

	return summary
}
