package services

import (
	"errors"
	"fmt"
	"io"

	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// File reads the contents of a regular file or symlink node
type File struct {
	fs     *FileSystem
	node   *Node
	offset int64
	hook   ReadHook
}

var (
	_ io.Reader   = (*File)(nil)
	_ io.ReaderAt = (*File)(nil)
	_ io.Seeker   = (*File)(nil)
)

// Open returns a reader over the data of node
func (fs *FileSystem) Open(node *Node) (*File, error) {
	if !node.Found() {
		return nil, fmt.Errorf("open unresolved node: %w", types.ErrFileNotFound)
	}
	if node.IsDir() {
		return nil, fmt.Errorf("open %s: %w", node.Header.Key, types.ErrBadFileType)
	}
	return &File{fs: fs, node: node}, nil
}

// SetReadHook installs a hook observing the device reads made by the file
func (f *File) SetReadHook(hook ReadHook) {
	f.hook = hook
}

// Node returns the node the file reads from
func (f *File) Node() *Node {
	return f.node
}

// Size returns the file size in bytes
func (f *File) Size() int64 {
	return int64(f.node.Size)
}

// Read reads from the current offset
func (f *File) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.offset)
	f.offset += int64(n)
	if errors.Is(err, io.EOF) && n > 0 {
		return n, nil
	}
	return n, err
}

// ReadAt reads len(p) bytes at off, returning io.EOF when the file ends first
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= f.Size() {
		return 0, io.EOF
	}

	n, err := f.fs.ReadAt(f.node, p, uint64(off), f.hook)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Seek sets the offset for the next Read
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.offset + offset
	case io.SeekEnd:
		abs = f.Size() + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative position %d", abs)
	}
	f.offset = abs
	return abs, nil
}
