package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// DefaultExtractionWorkers is the worker count used when none is configured
const DefaultExtractionWorkers = 4

// extractionService implements the ExtractionService interface
type extractionService struct {
	filesystem FilesystemService
	logger     *zap.Logger
}

// NewExtractionService creates an extraction service reading through filesystem
func NewExtractionService(filesystem FilesystemService, logger *zap.Logger) ExtractionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &extractionService{filesystem: filesystem, logger: logger}
}

// extractionJob is one entry to materialise on the host
type extractionJob struct {
	info   FileInfo
	target string
}

// Extract copies sourcePath to destPath. A single file lands at destPath, or
// inside it when destPath is an existing directory. Directories need
// options.Recursive and are recreated under destPath.
func (es *extractionService) Extract(ctx context.Context, sourcePath string, destPath string, options ExtractionOptions) (ExtractionResult, error) {
	var result ExtractionResult

	root, err := es.filesystem.Stat(ctx, sourcePath)
	if err != nil {
		return result, fmt.Errorf("failed to stat %s: %w", sourcePath, err)
	}

	if !root.IsDir() {
		target := destPath
		if st, err := os.Stat(destPath); err == nil && st.IsDir() {
			target = filepath.Join(destPath, root.Name)
		}
		if err := es.extractFile(ctx, root, target, options); err != nil {
			return result, err
		}
		result.Files = 1
		result.Bytes = root.Size
		return result, nil
	}

	if !options.Recursive {
		return result, fmt.Errorf("%s is a directory: %w", sourcePath, types.ErrBadFileType)
	}

	var (
		jobs    []extractionJob
		escaped []error
	)
	err = es.filesystem.Walk(ctx, sourcePath, func(fi FileInfo) error {
		target, err := confinedTarget(destPath, root.Path, fi.Path)
		if err != nil {
			es.logger.Warn("skipping entry outside destination", zap.String("path", fi.Path), zap.Error(err))
			result.Failed = append(result.Failed, fi.Path)
			escaped = append(escaped, err)
			return nil
		}
		jobs = append(jobs, extractionJob{info: fi, target: target})
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to walk %s: %w", sourcePath, err)
	}

	// directories first so workers never race on parents
	for _, job := range jobs {
		if !job.info.IsDir() {
			continue
		}
		if err := os.MkdirAll(job.target, 0o755); err != nil {
			return result, fmt.Errorf("failed to create directory %s: %w", job.target, err)
		}
		result.Directories++
	}

	workers := options.Workers
	if workers <= 0 {
		workers = DefaultExtractionWorkers
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return result, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs = escaped
	)
	fail := func(p string, err error) {
		mu.Lock()
		defer mu.Unlock()
		result.Failed = append(result.Failed, p)
		errs = append(errs, err)
	}

	for _, job := range jobs {
		switch {
		case job.info.IsDir():
			continue

		case job.info.IsSymlink():
			if err := es.extractSymlink(job, options); err != nil {
				fail(job.info.Path, err)
				continue
			}
			result.Symlinks++

		default:
			wg.Add(1)
			err := pool.Submit(func() {
				defer wg.Done()
				if err := es.extractFile(ctx, job.info, job.target, options); err != nil {
					fail(job.info.Path, err)
					return
				}
				mu.Lock()
				result.Files++
				result.Bytes += job.info.Size
				mu.Unlock()
			})
			if err != nil {
				wg.Done()
				fail(job.info.Path, fmt.Errorf("failed to schedule %s: %w", job.info.Path, err))
			}
		}
	}
	wg.Wait()

	if options.PreserveTimestamps || options.PreservePermissions {
		// deepest first so restoring a parent is not undone by its children
		for _, job := range slices.Backward(jobs) {
			if job.info.IsDir() {
				es.applyMetadata(job.info, job.target, options)
			}
		}
	}

	es.logger.Info("extraction finished",
		zap.String("source", sourcePath),
		zap.String("destination", destPath),
		zap.Int("files", result.Files),
		zap.Int("directories", result.Directories),
		zap.Int("symlinks", result.Symlinks),
		zap.Int("failed", len(result.Failed)))

	return result, errors.Join(errs...)
}

// confinedTarget maps entryPath, found below rootPath in the image, to a host
// path under destPath. Paths that would resolve outside destPath are rejected.
func confinedTarget(destPath, rootPath, entryPath string) (string, error) {
	rel, err := filepath.Rel(filepath.FromSlash(rootPath), filepath.FromSlash(entryPath))
	if err != nil {
		return "", err
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%s: %w", entryPath, ErrUnsafePath)
	}
	return filepath.Join(filepath.Clean(destPath), rel), nil
}

func (es *extractionService) extractFile(ctx context.Context, info FileInfo, target string, options ExtractionOptions) error {
	src, err := es.filesystem.OpenFile(ctx, info.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", info.Path, err)
	}
	if options.Progress != nil {
		src.SetReadHook(func(_, _ uint64, length int) {
			options.Progress(length)
		})
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if options.OverwriteExisting {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	dst, err := os.OpenFile(target, flags, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to copy %s: %w", info.Path, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", target, err)
	}

	es.applyMetadata(info, target, options)
	es.logger.Debug("extracted file", zap.String("path", info.Path), zap.String("target", target), zap.Uint64("size", info.Size))
	return nil
}

func (es *extractionService) extractSymlink(job extractionJob, options ExtractionOptions) error {
	if options.OverwriteExisting {
		if err := os.Remove(job.target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to replace %s: %w", job.target, err)
		}
	}
	if err := os.Symlink(job.info.LinkTarget, job.target); err != nil {
		return fmt.Errorf("failed to create symlink %s: %w", job.target, err)
	}
	return nil
}

func (es *extractionService) applyMetadata(info FileInfo, target string, options ExtractionOptions) {
	if options.PreservePermissions && info.Mode != 0 {
		if err := os.Chmod(target, fs.FileMode(info.Mode)&fs.ModePerm); err != nil {
			es.logger.Warn("failed to set permissions", zap.String("target", target), zap.Error(err))
		}
	}
	if options.PreserveTimestamps {
		if err := os.Chtimes(target, info.Modified, info.Modified); err != nil {
			es.logger.Warn("failed to set timestamps", zap.String("target", target), zap.Error(err))
		}
	}
}

// EstimateSize returns the number of content bytes an extraction would copy
func (es *extractionService) EstimateSize(ctx context.Context, sourcePath string, recursive bool) (uint64, error) {
	root, err := es.filesystem.Stat(ctx, sourcePath)
	if err != nil {
		return 0, err
	}
	if !root.IsDir() {
		return root.Size, nil
	}
	if !recursive {
		return 0, nil
	}

	var total uint64
	err = es.filesystem.Walk(ctx, sourcePath, func(fi FileInfo) error {
		if !fi.IsDir() && !fi.IsSymlink() {
			total += fi.Size
		}
		return nil
	})
	return total, err
}
