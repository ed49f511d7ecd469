package services

import (
	"context"
	"io/fs"
	"time"

	"github.com/deploymenttheory/go-reiserfs/internal/device"
	core "github.com/deploymenttheory/go-reiserfs/internal/services"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// VolumeInfo represents basic volume metadata
type VolumeInfo = types.VolumeInfo

// TreeReport summarises a tree verification
type TreeReport = core.TreeReport

// FileInfo represents detailed file information
type FileInfo struct {
	Name        string    `json:"name" yaml:"name"`
	Path        string    `json:"path" yaml:"path"`
	Type        string    `json:"type" yaml:"type"`
	Size        uint64    `json:"size" yaml:"size"`
	Mode        uint32    `json:"mode" yaml:"mode"`
	Modified    time.Time `json:"modified" yaml:"modified"`
	DirectoryID uint32    `json:"directory_id" yaml:"directory_id"`
	ObjectID    uint32    `json:"object_id" yaml:"object_id"`
	LinkTarget  string    `json:"link_target,omitempty" yaml:"link_target,omitempty"`
}

// IsDir reports whether the entry is a directory
func (fi FileInfo) IsDir() bool {
	return fi.Type == types.FileTypeDirectory.String()
}

// IsSymlink reports whether the entry is a symbolic link
func (fi FileInfo) IsSymlink() bool {
	return fi.Type == types.FileTypeSymlink.String()
}

// WalkFunc is called for every entry visited by Walk. Returning fs.SkipDir
// from a directory skips its contents; any other error stops the walk.
type WalkFunc func(FileInfo) error

// ExtractionOptions configures extraction behavior
type ExtractionOptions struct {
	Recursive           bool
	Workers             int
	OverwriteExisting   bool
	PreservePermissions bool
	PreserveTimestamps  bool

	// Progress receives the number of bytes read from the image as
	// extraction proceeds. It may be called from several workers at once.
	Progress func(n int)
}

// ExtractionResult summarises an extraction
type ExtractionResult struct {
	Files       int      `json:"files" yaml:"files"`
	Directories int      `json:"directories" yaml:"directories"`
	Symlinks    int      `json:"symlinks" yaml:"symlinks"`
	Bytes       uint64   `json:"bytes" yaml:"bytes"`
	Failed      []string `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// FilesystemService provides filesystem navigation over one opened image
type FilesystemService interface {
	// Open opens and mounts the image at imagePath, replacing any open image
	Open(ctx context.Context, imagePath string, config *device.DeviceConfig) (VolumeInfo, error)

	// Info returns the metadata of the open volume
	Info() (VolumeInfo, error)

	// ListDirectory lists the entries of dirPath, descending when recursive is set
	ListDirectory(ctx context.Context, dirPath string, recursive bool) ([]FileInfo, error)

	// Stat returns information about filePath, following symlinks
	Stat(ctx context.Context, filePath string) (FileInfo, error)

	// ReadFile returns the whole content of filePath
	ReadFile(ctx context.Context, filePath string) ([]byte, error)

	// OpenFile returns a seekable reader over filePath
	OpenFile(ctx context.Context, filePath string) (*core.File, error)

	// ReadLink returns the target of the symlink at linkPath
	ReadLink(ctx context.Context, linkPath string) (string, error)

	// Walk visits rootPath and everything below it depth first
	Walk(ctx context.Context, rootPath string, walkFunc WalkFunc) error

	// VerifyTree checks every node of the internal tree
	VerifyTree(ctx context.Context) (*TreeReport, error)

	// FS returns an io/fs view of the volume
	FS() (fs.FS, error)

	// FileSystem returns the mounted core filesystem
	FileSystem() (*core.FileSystem, error)

	// Close unmounts the volume and releases the image
	Close() error
}

// ExtractionService copies files out of an image onto the host filesystem
type ExtractionService interface {
	// Extract copies sourcePath to destPath
	Extract(ctx context.Context, sourcePath string, destPath string, options ExtractionOptions) (ExtractionResult, error)

	// EstimateSize returns the number of content bytes an extraction would copy
	EstimateSize(ctx context.Context, sourcePath string, recursive bool) (uint64, error)
}
