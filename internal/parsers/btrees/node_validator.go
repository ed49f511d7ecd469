package btrees

import (
	"fmt"

	"github.com/deploymenttheory/go-reiserfs/internal/interfaces"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// NodeValidator checks the internal consistency of a single tree node
type NodeValidator struct {
	blockCount uint32
}

// NewNodeValidator creates a validator for nodes of a volume holding
// blockCount blocks. Zero disables child block range checks.
func NewNodeValidator(blockCount uint32) *NodeValidator {
	return &NodeValidator{blockCount: blockCount}
}

// ValidationResult contains the result of validation
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (r *ValidationResult) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidateNode runs every check matching the node kind
func (v *NodeValidator) ValidateNode(node interfaces.TreeNodeReader) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []string{},
		Warnings: []string{},
	}

	if node.IsLeaf() {
		v.checkLeafItems(node, result)
	} else {
		v.checkInternalKeys(node, result)
		v.checkChildren(node, result)
	}
	v.checkFreeSpace(node, result)

	if len(result.Errors) > 0 {
		result.Valid = false
	}
	return result
}

// UsedSpace returns the bytes a node claims to use after its header
func UsedSpace(node interfaces.TreeNodeReader) int {
	return len(node.Data()) - types.BlockHeaderSize - int(node.Header().FreeSpace)
}

// checkLeafItems validates item ordering and body placement. Bodies are
// packed from the end of the block towards the item headers.
func (v *NodeValidator) checkLeafItems(node interfaces.TreeNodeReader, result *ValidationResult) {
	count := int(node.ItemCount())
	if count == 0 {
		result.errorf("leaf holds no items")
		return
	}

	headersEnd := types.BlockHeaderSize + count*types.ItemHeaderSize
	expected := len(node.Data())
	var previous types.Key

	for i := 0; i < count; i++ {
		header, err := node.ItemHeader(i)
		if err != nil {
			result.errorf("item %d: %v", i, err)
			return
		}

		if i > 0 && types.CompareKeys(previous, header.Key) >= 0 {
			result.errorf("item %d key %s does not follow %s", i, header.Key, previous)
		}
		previous = header.Key

		start := int(header.ItemLocation)
		end := start + int(header.ItemSize)
		if start < headersEnd || end > len(node.Data()) {
			result.errorf("item %d body [%d, %d) outside [%d, %d)", i, start, end, headersEnd, len(node.Data()))
			continue
		}
		if end != expected {
			result.warnf("item %d body ends at %d, expected %d", i, end, expected)
		}
		expected = start

		if header.Key.Type() == types.ItemTypeUnknown {
			result.warnf("item %d has unknown type", i)
		}
		if header.Key.Type() == types.ItemTypeDirectory && header.EntryCount() == 0 {
			result.errorf("directory item %d has no entries", i)
		}
	}
}

// checkInternalKeys validates delimiting key ordering
func (v *NodeValidator) checkInternalKeys(node interfaces.TreeNodeReader, result *ValidationResult) {
	var previous types.Key
	for i := 0; i < int(node.ItemCount()); i++ {
		key, err := node.Key(i)
		if err != nil {
			result.errorf("key %d: %v", i, err)
			return
		}
		if i > 0 && types.CompareKeys(previous, key) >= 0 {
			result.errorf("key %d %s does not follow %s", i, key, previous)
		}
		previous = key
	}
}

// checkChildren validates child pointers
func (v *NodeValidator) checkChildren(node interfaces.TreeNodeReader, result *ValidationResult) {
	capacity := len(node.Data()) - types.BlockHeaderSize
	for i := 0; i <= int(node.ItemCount()); i++ {
		child, err := node.Child(i)
		if err != nil {
			result.errorf("child %d: %v", i, err)
			return
		}
		if child.BlockNumber == 0 {
			result.errorf("child %d points at block 0", i)
		}
		if v.blockCount > 0 && child.BlockNumber >= v.blockCount {
			result.errorf("child %d points at block %d past the end of the volume (%d blocks)", i, child.BlockNumber, v.blockCount)
		}
		if int(child.Size) > capacity {
			result.errorf("child %d claims %d used bytes, node capacity is %d", i, child.Size, capacity)
		}
	}
}

// checkFreeSpace compares the header free space with what the node holds
func (v *NodeValidator) checkFreeSpace(node interfaces.TreeNodeReader, result *ValidationResult) {
	count := int(node.ItemCount())
	used := 0
	if node.IsLeaf() {
		for i := 0; i < count; i++ {
			header, err := node.ItemHeader(i)
			if err != nil {
				return
			}
			used += types.ItemHeaderSize + int(header.ItemSize)
		}
	} else {
		used = count*types.KeySize + (count+1)*types.DiskChildSize
	}

	if free := len(node.Data()) - types.BlockHeaderSize - used; free != int(node.Header().FreeSpace) {
		result.errorf("free space is %d, node content leaves %d", node.Header().FreeSpace, free)
	}
}
