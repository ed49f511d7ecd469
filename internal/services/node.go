package services

import (
	"fmt"
	"time"

	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// Node is the result of a tree search: where an item lives, a copy of its
// header and, once classified, the object's size, mode and mtime.
// A zero BlockNumber means the search found nothing.
type Node struct {
	fs *FileSystem

	// BlockNumber is the leaf holding the item; 0 when not found
	BlockNumber uint32

	// BlockPosition is the item index within the leaf
	BlockPosition uint16

	// NextOffset is the continuation offset of a directory spanning leaves
	NextOffset uint64

	// Mtime is the modification time in seconds since the epoch
	Mtime int32

	// Size is the object size in bytes
	Size uint64

	// Mode is the stat mode, when known
	Mode uint16

	// FileType is the classification assigned by a directory listing
	FileType types.FileType

	// Type is the type of the located item
	Type types.ItemType

	// Header is a copy of the located item header
	Header types.ItemHeader
}

// Found reports whether the search located an item
func (n *Node) Found() bool {
	return n != nil && n.BlockNumber != 0
}

// Key returns the key of the located item
func (n *Node) Key() types.Key {
	return n.Header.Key
}

// IsDir reports whether the node is a directory
func (n *Node) IsDir() bool {
	return n.FileType == types.FileTypeDirectory
}

// ModTime returns the modification time
func (n *Node) ModTime() time.Time {
	return time.Unix(int64(n.Mtime), 0)
}

// FileSystem returns the filesystem the node was found in
func (n *Node) FileSystem() *FileSystem {
	return n.fs
}

// String returns a short description for logs
func (n *Node) String() string {
	if !n.Found() {
		return "<not found>"
	}
	return fmt.Sprintf("%s@%d/%d", n.Header.Key, n.BlockNumber, n.BlockPosition)
}
