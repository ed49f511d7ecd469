package services

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/deploymenttheory/go-reiserfs/internal/parsers/btrees"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// Locate walks the tree from the root looking for key.
//
// With exact set, only an item whose key compares equal is returned.
// Without it, the item with the greatest key not above key in the reached
// leaf is returned. The predecessor is not checked to belong to the same
// object; callers must verify the returned key.
//
// A not-found result is a Node with BlockNumber 0 and a nil error.
func (fs *FileSystem) Locate(key types.Key, exact bool) (*Node, error) {
	node := &Node{fs: fs, Type: types.ItemTypeUnknown}
	block := fs.superblock.RootBlock()
	previousLevel := uint16(math.MaxUint16)

	fs.logger.Debug("locating item", zap.Stringer("key", key), zap.Bool("exact", exact))

	for {
		data, err := fs.readBlock(block)
		if err != nil {
			return nil, err
		}

		level := fs.endian.Uint16(data[0:2])
		if level >= previousLevel {
			fs.logger.Debug("level loop detected", zap.Uint32("block", block), zap.Uint16("level", level), zap.Uint16("previous_level", previousLevel))
			return nil, fmt.Errorf("level loop at block %d (level %d after %d): %w", block, level, previousLevel, types.ErrBadFilesystem)
		}
		previousLevel = level

		tree, err := btrees.NewTreeNodeReader(data, fs.endian)
		if err != nil {
			return nil, fmt.Errorf("failed to parse tree node %d: %w", block, err)
		}
		count := int(tree.ItemCount())

		if !tree.IsLeaf() {
			i := 0
			var delimiter types.Key
			for ; i < count; i++ {
				delimiter, err = tree.Key(i)
				if err != nil {
					return nil, fmt.Errorf("failed to read key %d of block %d: %w", i, block, err)
				}
				if types.CompareKeys(key, delimiter) < 0 {
					break
				}
			}

			child, err := tree.Child(i)
			if err != nil {
				return nil, fmt.Errorf("failed to read child %d of block %d: %w", i, block, err)
			}
			if i < count && delimiter.SameObject(key) {
				node.NextOffset = delimiter.Offset()
			}

			fs.logger.Debug("descending",
				zap.Uint32("block", block),
				zap.Uint16("level", level),
				zap.Int("child", i),
				zap.Int("keys", count),
				zap.Uint32("child_block", child.BlockNumber))

			block = child.BlockNumber
			continue
		}

		position := -1
		i := 0
		for ; i < count; i++ {
			header, err := tree.ItemHeader(i)
			if err != nil {
				return nil, fmt.Errorf("failed to read item header %d of block %d: %w", i, block, err)
			}

			cmp := types.CompareKeys(key, header.Key)
			if cmp == 0 {
				position = i
				break
			}
			if cmp < 0 && exact {
				break
			}
			if cmp < 0 {
				if i == 0 {
					return nil, fmt.Errorf("unexpected btree node %d: %w", block, types.ErrRead)
				}
				position = i - 1
				break
			}
		}
		if !exact && i == count {
			if count == 0 {
				return nil, fmt.Errorf("unexpected btree node %d: %w", block, types.ErrRead)
			}
			position = count - 1
		}

		if position < 0 {
			fs.logger.Debug("item not found", zap.Stringer("key", key), zap.Uint32("leaf", block))
			return node, nil
		}

		header, err := tree.ItemHeader(position)
		if err != nil {
			return nil, fmt.Errorf("failed to read item header %d of block %d: %w", position, block, err)
		}

		node.BlockNumber = block
		node.BlockPosition = uint16(position)
		node.Type = header.Key.Type()
		node.Header = header

		fs.logger.Debug("item found", zap.Stringer("node", node))
		return node, nil
	}
}
