package types

// BlockHeader is the header at the start of every tree node.
type BlockHeader struct {
	// Level is 1 for leaves and greater for internal nodes
	Level uint16

	// ItemCount is the number of items (leaf) or keys (internal node)
	ItemCount uint16

	// FreeSpace is the number of free bytes in the node
	FreeSpace uint16

	// Reserved is unused
	Reserved uint16

	// RightKey is the right delimiting key
	RightKey Key
}

// IsLeaf reports whether the node holds items rather than child pointers
func (h BlockHeader) IsLeaf() bool {
	return h.Level <= LeafLevel
}

// DiskChild is a child pointer stored in an internal node.
type DiskChild struct {
	// BlockNumber is the block holding the child node
	BlockNumber uint32

	// Size is the number of used bytes in the child
	Size uint16

	// Reserved is unused
	Reserved uint16
}

// ItemHeader describes one item stored in a leaf.
type ItemHeader struct {
	// Key identifies the item
	Key Key

	// FreeSpaceOrEntryCount is the entry count of a directory item, or the
	// free space of the last unformatted node of an indirect item
	FreeSpaceOrEntryCount uint16

	// ItemSize is the length of the item body in bytes
	ItemSize uint16

	// ItemLocation is the byte offset of the item body within the block
	ItemLocation uint16

	// Version is the stat sub-version: 0 for the 3.5 stat layout
	Version uint16
}

// EntryCount returns the number of entries of a directory item
func (h ItemHeader) EntryCount() uint16 {
	return h.FreeSpaceOrEntryCount
}
