package data_streams

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-reiserfs/internal/interfaces"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// indirectItemReader implements the IndirectItemReader interface
type indirectItemReader struct {
	blocks []uint32
}

// NewIndirectItemReader decodes the block pointer array of an indirect item.
// Trailing bytes that do not form a whole pointer are ignored.
func NewIndirectItemReader(data []byte, endian binary.ByteOrder) (interfaces.IndirectItemReader, error) {
	if len(data) < types.IndirectPointerSize {
		return nil, fmt.Errorf("data too small for indirect item: %d bytes", len(data))
	}

	count := len(data) / types.IndirectPointerSize
	blocks := make([]uint32, count)
	for i := range blocks {
		blocks[i] = endian.Uint32(data[i*types.IndirectPointerSize:])
	}

	return &indirectItemReader{blocks: blocks}, nil
}

// Count returns the number of block pointers
func (r *indirectItemReader) Count() int {
	return len(r.blocks)
}

// Block returns the i-th block pointer; 0 marks a hole
func (r *indirectItemReader) Block(i int) uint32 {
	if i < 0 || i >= len(r.blocks) {
		return 0
	}
	return r.blocks[i]
}

// Blocks returns every block pointer
func (r *indirectItemReader) Blocks() []uint32 {
	return r.blocks
}
