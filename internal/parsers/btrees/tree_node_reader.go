package btrees

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-reiserfs/internal/interfaces"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// treeNodeReader implements the TreeNodeReader interface
type treeNodeReader struct {
	header types.BlockHeader
	data   []byte
	endian binary.ByteOrder
}

// NewTreeNodeReader creates a new TreeNodeReader over one formatted block.
// The item count is checked against the block size so that every key,
// child and item header accessor stays inside data.
func NewTreeNodeReader(data []byte, endian binary.ByteOrder) (interfaces.TreeNodeReader, error) {
	if len(data) < types.BlockHeaderSize {
		return nil, fmt.Errorf("data too small for tree node: %d bytes", len(data))
	}

	header, err := parseBlockHeader(data, endian)
	if err != nil {
		return nil, fmt.Errorf("failed to parse block header: %w", err)
	}

	count := int(header.ItemCount)
	var needed int
	if header.IsLeaf() {
		needed = types.BlockHeaderSize + count*types.ItemHeaderSize
	} else {
		needed = types.BlockHeaderSize + count*types.KeySize + (count+1)*types.DiskChildSize
	}
	if needed > len(data) {
		return nil, fmt.Errorf("tree node at level %d claims %d items, needs %d bytes of %d: %w",
			header.Level, count, needed, len(data), types.ErrBadFilesystem)
	}

	return &treeNodeReader{
		header: header,
		data:   data,
		endian: endian,
	}, nil
}

// parseBlockHeader parses the 24-byte node header
func parseBlockHeader(data []byte, endian binary.ByteOrder) (types.BlockHeader, error) {
	var header types.BlockHeader

	header.Level = endian.Uint16(data[0:2])
	header.ItemCount = endian.Uint16(data[2:4])
	header.FreeSpace = endian.Uint16(data[4:6])
	header.Reserved = endian.Uint16(data[6:8])

	key, err := types.DecodeKey(data[8:24])
	if err != nil {
		return header, fmt.Errorf("failed to decode right delimiting key: %w", err)
	}
	header.RightKey = key

	return header, nil
}

// Header returns the block header
func (r *treeNodeReader) Header() types.BlockHeader {
	return r.header
}

// Level returns the node level (1 for leaves)
func (r *treeNodeReader) Level() uint16 {
	return r.header.Level
}

// ItemCount returns the number of keys (internal) or items (leaf)
func (r *treeNodeReader) ItemCount() uint16 {
	return r.header.ItemCount
}

// IsLeaf reports whether the node holds items
func (r *treeNodeReader) IsLeaf() bool {
	return r.header.IsLeaf()
}

// Key returns the i-th delimiting key of an internal node
func (r *treeNodeReader) Key(i int) (types.Key, error) {
	if r.IsLeaf() {
		return types.Key{}, fmt.Errorf("leaf node has no delimiting keys")
	}
	if i < 0 || i >= int(r.header.ItemCount) {
		return types.Key{}, fmt.Errorf("key index %d out of range (count %d)", i, r.header.ItemCount)
	}

	start := types.BlockHeaderSize + i*types.KeySize
	return types.DecodeKey(r.data[start : start+types.KeySize])
}

// Child returns the i-th child pointer of an internal node (0..ItemCount)
func (r *treeNodeReader) Child(i int) (types.DiskChild, error) {
	if r.IsLeaf() {
		return types.DiskChild{}, fmt.Errorf("leaf node has no children")
	}
	if i < 0 || i > int(r.header.ItemCount) {
		return types.DiskChild{}, fmt.Errorf("child index %d out of range (count %d)", i, r.header.ItemCount)
	}

	start := types.BlockHeaderSize + int(r.header.ItemCount)*types.KeySize + i*types.DiskChildSize
	return types.DiskChild{
		BlockNumber: r.endian.Uint32(r.data[start : start+4]),
		Size:        r.endian.Uint16(r.data[start+4 : start+6]),
		Reserved:    r.endian.Uint16(r.data[start+6 : start+8]),
	}, nil
}

// ItemHeader returns the i-th item header of a leaf
func (r *treeNodeReader) ItemHeader(i int) (types.ItemHeader, error) {
	if !r.IsLeaf() {
		return types.ItemHeader{}, fmt.Errorf("internal node has no item headers")
	}
	if i < 0 || i >= int(r.header.ItemCount) {
		return types.ItemHeader{}, fmt.Errorf("item index %d out of range (count %d)", i, r.header.ItemCount)
	}

	start := types.BlockHeaderSize + i*types.ItemHeaderSize
	return ParseItemHeader(r.data[start:start+types.ItemHeaderSize], r.endian)
}

// ItemBody returns the body bytes described by an item header
func (r *treeNodeReader) ItemBody(header types.ItemHeader) ([]byte, error) {
	start := int(header.ItemLocation)
	end := start + int(header.ItemSize)
	if end > len(r.data) {
		return nil, fmt.Errorf("item body [%d, %d) exceeds block of %d bytes: %w", start, end, len(r.data), types.ErrBadFilesystem)
	}
	return r.data[start:end], nil
}

// Data returns the whole node
func (r *treeNodeReader) Data() []byte {
	return r.data
}

// ParseItemHeader decodes a 24-byte leaf item header
func ParseItemHeader(data []byte, endian binary.ByteOrder) (types.ItemHeader, error) {
	if len(data) < types.ItemHeaderSize {
		return types.ItemHeader{}, fmt.Errorf("data too small for item header: %d bytes", len(data))
	}

	key, err := types.DecodeKey(data[0:16])
	if err != nil {
		return types.ItemHeader{}, fmt.Errorf("failed to decode item key: %w", err)
	}

	return types.ItemHeader{
		Key:                   key,
		FreeSpaceOrEntryCount: endian.Uint16(data[16:18]),
		ItemSize:              endian.Uint16(data[18:20]),
		ItemLocation:          endian.Uint16(data[20:22]),
		Version:               endian.Uint16(data[22:24]),
	}, nil
}
