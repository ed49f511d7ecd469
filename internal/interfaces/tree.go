// File: internal/interfaces/tree.go
package interfaces

import (
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// TreeNodeReader provides methods for reading a formatted tree node
type TreeNodeReader interface {
	// Header returns the block header
	Header() types.BlockHeader

	// Level returns the node level (1 for leaves)
	Level() uint16

	// ItemCount returns the number of keys (internal) or items (leaf)
	ItemCount() uint16

	// IsLeaf reports whether the node holds items
	IsLeaf() bool

	// Key returns the i-th delimiting key of an internal node
	Key(i int) (types.Key, error)

	// Child returns the i-th child pointer of an internal node (0..ItemCount)
	Child(i int) (types.DiskChild, error)

	// ItemHeader returns the i-th item header of a leaf
	ItemHeader(i int) (types.ItemHeader, error)

	// ItemBody returns the body bytes described by an item header
	ItemBody(header types.ItemHeader) ([]byte, error)

	// Data returns the whole node
	Data() []byte
}
