package services

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"

	core "github.com/deploymenttheory/go-reiserfs/internal/services"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// volumeFS adapts a mounted filesystem to io/fs. Names are slash separated
// and relative to the volume root; symlinks are followed except by Lstat
// and ReadLink.
type volumeFS struct {
	fsys *core.FileSystem
}

var (
	_ fs.ReadDirFS  = (*volumeFS)(nil)
	_ fs.StatFS     = (*volumeFS)(nil)
	_ fs.ReadFileFS = (*volumeFS)(nil)
	_ fs.ReadLinkFS = (*volumeFS)(nil)
)

// NewFS returns an io/fs view of fsys
func NewFS(fsys *core.FileSystem) fs.FS {
	return &volumeFS{fsys: fsys}
}

func (v *volumeFS) resolve(op, name string, follow bool) (*core.Node, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}

	var node *core.Node
	var err error
	if follow {
		node, err = v.fsys.Lookup("/"+name, types.FileTypeUnknown)
	} else {
		node, err = v.fsys.LookupNoFollow("/" + name)
	}
	if err != nil {
		return nil, &fs.PathError{Op: op, Path: name, Err: mapError(err)}
	}
	return node, nil
}

// Open opens the named file or directory
func (v *volumeFS) Open(name string) (fs.File, error) {
	node, err := v.resolve("open", name, true)
	if err != nil {
		return nil, err
	}

	info := newFileInfo(name, node)
	if node.IsDir() {
		return &openDir{fs: v, name: name, node: node, info: info}, nil
	}

	f, err := v.fsys.Open(node)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: mapError(err)}
	}
	return &openFile{File: f, info: info}, nil
}

// ReadDir returns the entries of the named directory sorted by name
func (v *volumeFS) ReadDir(name string) ([]fs.DirEntry, error) {
	node, err := v.resolve("readdir", name, true)
	if err != nil {
		return nil, err
	}
	return v.readDir(name, node)
}

func (v *volumeFS) readDir(name string, node *core.Node) ([]fs.DirEntry, error) {
	entries, err := v.fsys.ReadDir(node)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: mapError(err)}
	}

	result := make([]fs.DirEntry, 0, len(entries))
	for _, entry := range entries {
		result = append(result, fs.FileInfoToDirEntry(newFileInfo(entry.Name, entry.Node)))
	}
	slices.SortFunc(result, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return result, nil
}

// Stat returns information about the named file, following symlinks
func (v *volumeFS) Stat(name string) (fs.FileInfo, error) {
	node, err := v.resolve("stat", name, true)
	if err != nil {
		return nil, err
	}
	return newFileInfo(name, node), nil
}

// Lstat returns information about the named file without following a final symlink
func (v *volumeFS) Lstat(name string) (fs.FileInfo, error) {
	node, err := v.resolve("lstat", name, false)
	if err != nil {
		return nil, err
	}
	return newFileInfo(name, node), nil
}

// ReadLink returns the target of the named symlink
func (v *volumeFS) ReadLink(name string) (string, error) {
	node, err := v.resolve("readlink", name, false)
	if err != nil {
		return "", err
	}
	if node.FileType != types.FileTypeSymlink {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: fs.ErrInvalid}
	}

	target, err := v.fsys.ReadSymlink(node)
	if err != nil {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: err}
	}
	return target, nil
}

// ReadFile returns the content of the named file
func (v *volumeFS) ReadFile(name string) ([]byte, error) {
	node, err := v.resolve("read", name, true)
	if err != nil {
		return nil, err
	}

	f, err := v.fsys.Open(node)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: mapError(err)}
	}

	data := make([]byte, f.Size())
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	return data, nil
}

// mapError keeps the filesystem error and adds the matching io/fs sentinel
func mapError(err error) error {
	switch {
	case errors.Is(err, types.ErrFileNotFound):
		return fmt.Errorf("%w: %w", fs.ErrNotExist, err)
	case errors.Is(err, types.ErrBadFileType), errors.Is(err, types.ErrNotDirectory):
		return fmt.Errorf("%w: %w", fs.ErrInvalid, err)
	default:
		return err
	}
}

// fileInfo implements fs.FileInfo for a node
type fileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	node    *core.Node
}

func newFileInfo(name string, node *core.Node) *fileInfo {
	return &fileInfo{
		name:    path.Base(name),
		size:    int64(node.Size),
		mode:    fileMode(node),
		modTime: node.ModTime(),
		node:    node,
	}
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi *fileInfo) ModTime() time.Time { return fi.modTime }
func (fi *fileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *fileInfo) Sys() any           { return fi.node }

// fileMode maps the stat mode onto fs.FileMode, filling in permissions
// when the object had no stat item
func fileMode(node *core.Node) fs.FileMode {
	perm := fs.FileMode(node.Mode) & fs.ModePerm
	switch node.FileType {
	case types.FileTypeDirectory:
		if perm == 0 {
			perm = 0o755
		}
		return fs.ModeDir | perm
	case types.FileTypeSymlink:
		if perm == 0 {
			perm = 0o777
		}
		return fs.ModeSymlink | perm
	default:
		if perm == 0 {
			perm = 0o644
		}
		return perm
	}
}

// openFile is an fs.File over file content
type openFile struct {
	*core.File
	info *fileInfo
}

func (f *openFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *openFile) Close() error               { return nil }

// openDir is an fs.ReadDirFile over a directory
type openDir struct {
	fs      *volumeFS
	name    string
	node    *core.Node
	info    *fileInfo
	entries []fs.DirEntry
	offset  int
}

func (d *openDir) Stat() (fs.FileInfo, error) { return d.info, nil }
func (d *openDir) Close() error               { return nil }

func (d *openDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

// ReadDir returns the next n entries, or all remaining ones when n <= 0
func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.entries == nil {
		entries, err := d.fs.readDir(d.name, d.node)
		if err != nil {
			return nil, err
		}
		d.entries = entries
	}

	remaining := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return slices.Clone(remaining), nil
	}
	if len(remaining) == 0 {
		return nil, io.EOF
	}

	n = min(n, len(remaining))
	d.offset += n
	return slices.Clone(remaining[:n]), nil
}
