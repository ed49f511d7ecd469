package discover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deploymenttheory/go-reiserfs/internal/types"
	"github.com/deploymenttheory/go-reiserfs/pkg/app"
	"github.com/deploymenttheory/go-reiserfs/pkg/services"
)

// contentChunkSize is the read size used when scanning file content
const contentChunkSize = 64 * 1024

// Handle processes a discovery request against the image named in req
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	svc := services.NewFilesystemService(services.WithLogger(ctx.Logger))
	defer svc.Close()

	return HandleWith(ctx, svc, req)
}

// HandleWith processes a discovery request using svc to open the image
func HandleWith(ctx *app.Context, svc services.FilesystemService, req *Request) (*Response, error) {
	startTime := time.Now()

	// 1. Validate request and compile the filters
	if err := req.Validate(); err != nil {
		return nil, err
	}
	m, err := newMatcher(req)
	if err != nil {
		return nil, err
	}

	ctx.Log("starting file discovery", zap.String("image", req.ImagePath))
	ctx.Progress("Opening image...", 5)

	// 2. Open the image
	info, err := svc.Open(ctx, req.ImagePath, req.Device)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, app.NewError(app.ErrCodeTimeout, "timed out opening image", err)
		}
		return nil, app.NewError(app.ErrCodeImageAccess, "failed to open image", err)
	}
	logSearchCriteria(ctx, req)

	// 3. Walk the tree
	ctx.Progress("Scanning filesystem...", 25)

	root := req.RootPath
	if root == "" {
		root = "/"
	}

	response := &Response{
		VolumeInfo: VolumeInfo{
			Label:     info.Label,
			UUID:      info.UUID,
			Format:    info.Format,
			BlockSize: info.BlockSize,
		},
		SearchQuery: createSearchQuery(req),
	}

	err = svc.Walk(ctx, root, func(fi services.FileInfo) error {
		ok, err := m.match(ctx, svc, fi)
		if err != nil {
			ctx.Error("failed to inspect file", zap.String("path", fi.Path), zap.Error(err))
			return nil
		}
		if !ok {
			return nil
		}

		response.TotalFound++
		if len(response.Files) < req.MaxResults {
			response.Files = append(response.Files, newFileResult(fi))
		} else {
			response.Truncated = true
		}
		return nil
	})
	if errors.Is(err, types.ErrFileNotFound) {
		return nil, app.NewError(app.ErrCodeNotFound, fmt.Sprintf("cannot search %s", root), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, app.NewError(app.ErrCodeTimeout, fmt.Sprintf("search of %s timed out", root), err)
	}
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}

	response.SearchTime = time.Since(startTime)

	ctx.Progress("Complete", 100)
	ctx.Log("discovery completed",
		zap.Int("found", response.TotalFound),
		zap.Duration("elapsed", response.SearchTime))

	return response, nil
}

// matcher applies the compiled search criteria of a request
type matcher struct {
	req            *Request
	regex          *regexp.Regexp
	minSize        int64
	maxSize        int64
	modifiedAfter  time.Time
	modifiedBefore time.Time
	content        []byte
}

func newMatcher(req *Request) (*matcher, error) {
	m := &matcher{req: req, minSize: -1, maxSize: -1}

	if req.NameRegex != "" {
		expr := req.NameRegex
		if !req.CaseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, app.NewError(app.ErrCodeInvalidInput, "invalid regex pattern", err)
		}
		m.regex = re
	}

	var err error
	if req.MinSize != "" {
		if m.minSize, err = ParseSize(req.MinSize); err != nil {
			return nil, app.NewError(app.ErrCodeInvalidInput, "invalid min-size format", err)
		}
	}
	if req.MaxSize != "" {
		if m.maxSize, err = ParseSize(req.MaxSize); err != nil {
			return nil, app.NewError(app.ErrCodeInvalidInput, "invalid max-size format", err)
		}
	}

	// dates are whole days in UTC; "before" excludes the named day
	if req.ModifiedAfter != "" {
		m.modifiedAfter, _ = time.Parse("2006-01-02", req.ModifiedAfter)
	}
	if req.ModifiedBefore != "" {
		m.modifiedBefore, _ = time.Parse("2006-01-02", req.ModifiedBefore)
	}

	if req.ContentSearch != "" {
		m.content = []byte(req.ContentSearch)
		if !req.CaseSensitive {
			m.content = bytes.ToLower(m.content)
		}
	}
	return m, nil
}

// match reports whether fi satisfies every criterion. Directories never
// match; symlinks only when requested.
func (m *matcher) match(ctx *app.Context, svc services.FilesystemService, fi services.FileInfo) (bool, error) {
	switch {
	case fi.IsDir():
		return false, nil
	case fi.IsSymlink():
		if !m.req.IncludeSymlinks || m.content != nil {
			return false, nil
		}
	}

	if !m.matchName(fi.Name) {
		return false, nil
	}

	size := int64(fi.Size)
	if m.minSize >= 0 && size < m.minSize {
		return false, nil
	}
	if m.maxSize >= 0 && size > m.maxSize {
		return false, nil
	}

	if !m.modifiedAfter.IsZero() && fi.Modified.Before(m.modifiedAfter) {
		return false, nil
	}
	if !m.modifiedBefore.IsZero() && !fi.Modified.Before(m.modifiedBefore) {
		return false, nil
	}

	if m.content != nil {
		return m.matchContent(ctx, svc, fi.Path)
	}
	return true, nil
}

func (m *matcher) matchName(name string) bool {
	fold := func(s string) string {
		if m.req.CaseSensitive {
			return s
		}
		return strings.ToLower(s)
	}

	if m.req.NamePattern != "" {
		matched, err := path.Match(fold(m.req.NamePattern), fold(name))
		if err != nil || !matched {
			return false
		}
	}
	if m.regex != nil && !m.regex.MatchString(name) {
		return false
	}

	if len(m.req.Extensions) > 0 {
		ext := strings.TrimPrefix(path.Ext(name), ".")
		found := false
		for _, want := range m.req.Extensions {
			if fold(strings.TrimPrefix(want, ".")) == fold(ext) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// matchContent streams the file looking for the search bytes, carrying
// enough of each chunk over to catch matches that straddle a boundary
func (m *matcher) matchContent(ctx *app.Context, svc services.FilesystemService, filePath string) (bool, error) {
	f, err := svc.OpenFile(ctx, filePath)
	if err != nil {
		return false, err
	}

	buf := make([]byte, contentChunkSize+len(m.content))
	carry := 0
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		n, err := f.Read(buf[carry : carry+contentChunkSize])
		window := buf[:carry+n]
		if !m.req.CaseSensitive {
			window = bytes.ToLower(window)
		}
		if bytes.Contains(window, m.content) {
			return true, nil
		}

		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		keep := min(len(m.content)-1, carry+n)
		copy(buf, buf[carry+n-keep:carry+n])
		carry = keep
	}
}

// newFileResult converts a walked entry into a result row
func newFileResult(fi services.FileInfo) FileResult {
	return FileResult{
		Path:        fi.Path,
		Name:        fi.Name,
		Size:        int64(fi.Size),
		Modified:    fi.Modified,
		Type:        fi.Type,
		DirectoryID: fi.DirectoryID,
		ObjectID:    fi.ObjectID,
		Permissions: permissions(fi).String(),
		Extension:   strings.TrimPrefix(path.Ext(fi.Name), "."),
		LinkTarget:  fi.LinkTarget,
	}
}

func permissions(fi services.FileInfo) fs.FileMode {
	mode := fs.FileMode(fi.Mode) & fs.ModePerm
	switch {
	case fi.IsDir():
		mode |= fs.ModeDir
	case fi.IsSymlink():
		mode |= fs.ModeSymlink
	}
	return mode
}

// logSearchCriteria logs the search criteria for verbose output
func logSearchCriteria(ctx *app.Context, req *Request) {
	if !ctx.Verbose {
		return
	}

	fields := []zap.Field{zap.String("root", req.RootPath)}
	if req.NamePattern != "" {
		fields = append(fields, zap.String("name_pattern", req.NamePattern))
	}
	if req.NameRegex != "" {
		fields = append(fields, zap.String("name_regex", req.NameRegex))
	}
	if len(req.Extensions) > 0 {
		fields = append(fields, zap.Strings("extensions", req.Extensions))
	}
	if req.ContentSearch != "" {
		fields = append(fields, zap.String("content", req.ContentSearch))
	}
	if req.MinSize != "" || req.MaxSize != "" {
		fields = append(fields, zap.String("min_size", req.MinSize), zap.String("max_size", req.MaxSize))
	}
	if req.IncludeSymlinks {
		fields = append(fields, zap.Bool("include_symlinks", true))
	}
	ctx.Log("search criteria", fields...)
}

// createSearchQuery creates a SearchQuery from the request
func createSearchQuery(req *Request) SearchQuery {
	root := req.RootPath
	if root == "" {
		root = "/"
	}
	return SearchQuery{
		RootPath:        root,
		NamePattern:     req.NamePattern,
		NameRegex:       req.NameRegex,
		Extensions:      req.Extensions,
		CaseSensitive:   req.CaseSensitive,
		MinSize:         req.MinSize,
		MaxSize:         req.MaxSize,
		ModifiedAfter:   req.ModifiedAfter,
		ModifiedBefore:  req.ModifiedBefore,
		ContentSearch:   req.ContentSearch,
		IncludeSymlinks: req.IncludeSymlinks,
		MaxResults:      req.MaxResults,
	}
}
