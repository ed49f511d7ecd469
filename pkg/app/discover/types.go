package discover

import (
	"fmt"
	"time"

	"github.com/deploymenttheory/go-reiserfs/internal/device"
)

// Request represents a file discovery request
type Request struct {
	ImagePath string
	RootPath  string
	Device    *device.DeviceConfig

	// Search criteria
	NamePattern     string
	NameRegex       string
	Extensions      []string
	CaseSensitive   bool
	MinSize         string
	MaxSize         string
	ModifiedAfter   string
	ModifiedBefore  string
	ContentSearch   string
	IncludeSymlinks bool
	MaxResults      int
}

// Response represents discovery results
type Response struct {
	Files       []FileResult  `json:"files" yaml:"files"`
	TotalFound  int           `json:"total_found" yaml:"total_found"`
	SearchTime  time.Duration `json:"search_time" yaml:"search_time"`
	VolumeInfo  VolumeInfo    `json:"volume_info" yaml:"volume_info"`
	Truncated   bool          `json:"truncated" yaml:"truncated"`
	SearchQuery SearchQuery   `json:"search_query" yaml:"search_query"`
}

// FileResult represents a discovered file
type FileResult struct {
	Path        string    `json:"path" yaml:"path"`
	Name        string    `json:"name" yaml:"name"`
	Size        int64     `json:"size" yaml:"size"`
	Modified    time.Time `json:"modified" yaml:"modified"`
	Type        string    `json:"type" yaml:"type"`
	DirectoryID uint32    `json:"directory_id" yaml:"directory_id"`
	ObjectID    uint32    `json:"object_id" yaml:"object_id"`
	Permissions string    `json:"permissions" yaml:"permissions"`
	Extension   string    `json:"extension" yaml:"extension"`
	LinkTarget  string    `json:"link_target,omitempty" yaml:"link_target,omitempty"`
}

// VolumeInfo represents information about the searched volume
type VolumeInfo struct {
	Label     string `json:"label" yaml:"label"`
	UUID      string `json:"uuid" yaml:"uuid"`
	Format    string `json:"format" yaml:"format"`
	BlockSize uint32 `json:"block_size" yaml:"block_size"`
}

// SearchQuery represents the executed search parameters
type SearchQuery struct {
	RootPath        string   `json:"root_path" yaml:"root_path"`
	NamePattern     string   `json:"name_pattern,omitempty" yaml:"name_pattern,omitempty"`
	NameRegex       string   `json:"name_regex,omitempty" yaml:"name_regex,omitempty"`
	Extensions      []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	CaseSensitive   bool     `json:"case_sensitive" yaml:"case_sensitive"`
	MinSize         string   `json:"min_size,omitempty" yaml:"min_size,omitempty"`
	MaxSize         string   `json:"max_size,omitempty" yaml:"max_size,omitempty"`
	ModifiedAfter   string   `json:"modified_after,omitempty" yaml:"modified_after,omitempty"`
	ModifiedBefore  string   `json:"modified_before,omitempty" yaml:"modified_before,omitempty"`
	ContentSearch   string   `json:"content_search,omitempty" yaml:"content_search,omitempty"`
	IncludeSymlinks bool     `json:"include_symlinks" yaml:"include_symlinks"`
	MaxResults      int      `json:"max_results" yaml:"max_results"`
}

// SizeClass represents file size categories for display
type SizeClass string

const (
	SizeClassTiny   SizeClass = "tiny"   // < 1KB
	SizeClassSmall  SizeClass = "small"  // < 1MB
	SizeClassMedium SizeClass = "medium" // < 100MB
	SizeClassLarge  SizeClass = "large"  // < 1GB
	SizeClassHuge   SizeClass = "huge"   // >= 1GB
)

// GetSizeClass returns the size class for display purposes
func (f *FileResult) GetSizeClass() SizeClass {
	switch {
	case f.Size < 1024:
		return SizeClassTiny
	case f.Size < 1024*1024:
		return SizeClassSmall
	case f.Size < 100*1024*1024:
		return SizeClassMedium
	case f.Size < 1024*1024*1024:
		return SizeClassLarge
	default:
		return SizeClassHuge
	}
}

// FormatSize returns a human-readable size string
func (f *FileResult) FormatSize() string {
	return formatBytes(f.Size)
}

// formatBytes formats byte count as human readable
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
