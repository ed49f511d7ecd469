package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/deploymenttheory/go-reiserfs/internal/device"
	core "github.com/deploymenttheory/go-reiserfs/internal/services"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// ErrNotOpen is returned when an operation needs an open image
var ErrNotOpen = errors.New("no image is open")

// ErrUnsafePath is returned when an image entry would be written outside the
// extraction destination
var ErrUnsafePath = errors.New("path escapes the destination")

// filesystemService implements the FilesystemService interface
type filesystemService struct {
	mu        sync.RWMutex
	logger    *zap.Logger
	metrics   *device.Metrics
	device    *device.ImageDevice
	fs        *core.FileSystem
	imagePath string
}

// Option configures a service
type Option func(*filesystemService)

// WithLogger sets the logger handed to the device and the mount
func WithLogger(logger *zap.Logger) Option {
	return func(s *filesystemService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records device reads in m
func WithMetrics(m *device.Metrics) Option {
	return func(s *filesystemService) {
		s.metrics = m
	}
}

// NewFilesystemService creates a new filesystem service instance
func NewFilesystemService(opts ...Option) FilesystemService {
	s := &filesystemService{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens and mounts the image at imagePath
func (s *filesystemService) Open(ctx context.Context, imagePath string, config *device.DeviceConfig) (VolumeInfo, error) {
	if err := ctx.Err(); err != nil {
		return VolumeInfo{}, err
	}

	dev, err := device.OpenImage(imagePath, config, device.WithLogger(s.logger), device.WithMetrics(s.metrics))
	if err != nil {
		return VolumeInfo{}, fmt.Errorf("failed to open image %s: %w", imagePath, err)
	}

	mounted, err := core.Mount(dev, core.WithLogger(s.logger))
	if err != nil {
		dev.Close()
		return VolumeInfo{}, fmt.Errorf("failed to mount %s: %w", imagePath, err)
	}

	s.mu.Lock()
	previous := s.device
	s.device, s.fs, s.imagePath = dev, mounted, imagePath
	s.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			s.logger.Warn("failed to close previous image", zap.Error(err))
		}
	}

	s.logger.Info("opened image", zap.String("path", imagePath), zap.String("format", mounted.Superblock().FormatName()))
	return mounted.Info(), nil
}

func (s *filesystemService) current() (*core.FileSystem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fs == nil {
		return nil, ErrNotOpen
	}
	return s.fs, nil
}

// Info returns the metadata of the open volume
func (s *filesystemService) Info() (VolumeInfo, error) {
	fsys, err := s.current()
	if err != nil {
		return VolumeInfo{}, err
	}
	return fsys.Info(), nil
}

// FileSystem returns the mounted core filesystem
func (s *filesystemService) FileSystem() (*core.FileSystem, error) {
	return s.current()
}

// ListDirectory lists files and directories at the specified path
func (s *filesystemService) ListDirectory(ctx context.Context, dirPath string, recursive bool) ([]FileInfo, error) {
	fsys, err := s.current()
	if err != nil {
		return nil, err
	}

	dirPath = cleanPath(dirPath)
	dir, err := fsys.Lookup(dirPath, types.FileTypeDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory %s: %w", dirPath, err)
	}

	if recursive {
		var files []FileInfo
		err := s.walk(ctx, fsys, dirPath, dir, func(fi FileInfo) error {
			if fi.Path != dirPath {
				files = append(files, fi)
			}
			return nil
		})
		return files, err
	}

	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dirPath, err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		files = append(files, s.fileInfo(fsys, path.Join(dirPath, entry.Name), entry.Node))
	}
	return files, nil
}

// Stat returns information about filePath, following symlinks
func (s *filesystemService) Stat(ctx context.Context, filePath string) (FileInfo, error) {
	fsys, err := s.current()
	if err != nil {
		return FileInfo{}, err
	}

	filePath = cleanPath(filePath)
	node, err := fsys.Lookup(filePath, types.FileTypeUnknown)
	if err != nil {
		return FileInfo{}, err
	}
	return s.fileInfo(fsys, filePath, node), nil
}

// ReadFile returns the whole content of filePath
func (s *filesystemService) ReadFile(ctx context.Context, filePath string) ([]byte, error) {
	f, err := s.OpenFile(ctx, filePath)
	if err != nil {
		return nil, err
	}

	data := make([]byte, f.Size())
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	return data, nil
}

// OpenFile returns a seekable reader over filePath
func (s *filesystemService) OpenFile(ctx context.Context, filePath string) (*core.File, error) {
	fsys, err := s.current()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	node, err := fsys.Lookup(cleanPath(filePath), types.FileTypeRegular)
	if err != nil {
		return nil, err
	}
	return fsys.Open(node)
}

// ReadLink returns the target of the symlink at linkPath
func (s *filesystemService) ReadLink(ctx context.Context, linkPath string) (string, error) {
	fsys, err := s.current()
	if err != nil {
		return "", err
	}

	node, err := fsys.LookupNoFollow(cleanPath(linkPath))
	if err != nil {
		return "", err
	}
	if node.FileType != types.FileTypeSymlink {
		return "", fmt.Errorf("%s is not a symlink: %w", linkPath, types.ErrBadFileType)
	}
	return fsys.ReadSymlink(node)
}

// Walk performs a depth-first traversal of the filesystem
func (s *filesystemService) Walk(ctx context.Context, rootPath string, walkFunc WalkFunc) error {
	fsys, err := s.current()
	if err != nil {
		return err
	}

	rootPath = cleanPath(rootPath)
	node, err := fsys.Lookup(rootPath, types.FileTypeUnknown)
	if err != nil {
		return err
	}
	return s.walk(ctx, fsys, rootPath, node, walkFunc)
}

func (s *filesystemService) walk(ctx context.Context, fsys *core.FileSystem, nodePath string, node *core.Node, walkFunc WalkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := walkFunc(s.fileInfo(fsys, nodePath, node))
	if errors.Is(err, fs.SkipDir) {
		return nil
	}
	if err != nil || !node.IsDir() {
		return err
	}

	entries, err := fsys.ReadDir(node)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", nodePath, err)
	}
	for _, entry := range entries {
		if err := s.walk(ctx, fsys, path.Join(nodePath, entry.Name), entry.Node, walkFunc); err != nil {
			return err
		}
	}
	return nil
}

// fileInfo converts a node into the public FileInfo
func (s *filesystemService) fileInfo(fsys *core.FileSystem, nodePath string, node *core.Node) FileInfo {
	key := node.Key()
	fi := FileInfo{
		Name:        path.Base(nodePath),
		Path:        nodePath,
		Type:        node.FileType.String(),
		Size:        node.Size,
		Mode:        uint32(node.Mode),
		Modified:    node.ModTime(),
		DirectoryID: key.DirectoryID,
		ObjectID:    key.ObjectID,
	}

	if node.FileType == types.FileTypeSymlink {
		target, err := fsys.ReadSymlink(node)
		if err != nil {
			s.logger.Warn("failed to read symlink target", zap.String("path", nodePath), zap.Error(err))
		}
		fi.LinkTarget = target
	}
	return fi
}

// VerifyTree checks every node of the internal tree
func (s *filesystemService) VerifyTree(ctx context.Context) (*TreeReport, error) {
	fsys, err := s.current()
	if err != nil {
		return nil, err
	}
	return fsys.VerifyTree(ctx)
}

// FS returns an io/fs view of the volume
func (s *filesystemService) FS() (fs.FS, error) {
	fsys, err := s.current()
	if err != nil {
		return nil, err
	}
	return NewFS(fsys), nil
}

// Close unmounts the volume and releases the image
func (s *filesystemService) Close() error {
	s.mu.Lock()
	dev := s.device
	s.device, s.fs, s.imagePath = nil, nil, ""
	s.mu.Unlock()

	if dev == nil {
		return nil
	}
	return dev.Close()
}

// cleanPath makes p absolute and drops trailing slashes. ".." is left for
// the resolver, which follows it through symlinks.
func cleanPath(p string) string {
	return "/" + strings.Trim(p, "/")
}
