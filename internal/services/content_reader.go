package services

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/deploymenttheory/go-reiserfs/internal/parsers/data_streams"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// ReadHook observes every device access made while reading file data:
// the sector, the byte offset within it and the length transferred.
// It must not call back into the filesystem.
type ReadHook func(sector uint64, offset uint64, length int)

// ReadAt reads file data of node into buf starting at file offset off.
// The range is clamped to the file size, so the count returned is short
// only at end of file. Indirect block pointers of 0 read as zeros.
func (fs *FileSystem) ReadAt(node *Node, buf []byte, off uint64, hook ReadHook) (int, error) {
	if node == nil || !node.Found() {
		return 0, fmt.Errorf("read from unresolved node: %w", types.ErrRead)
	}
	if off >= node.Size || len(buf) == 0 {
		return 0, nil
	}

	final := node.Size
	if want := off + uint64(len(buf)); want > off && want < final {
		final = want
	}

	fs.logger.Debug("reading file data",
		zap.Stringer("key", node.Header.Key),
		zap.Uint64("from", off),
		zap.Uint64("to", final),
		zap.Int("requested", len(buf)))

	owner := node.Header.Key
	key := types.NewKey(owner.DirectoryID, owner.ObjectID, off+1, types.ItemTypeAny, types.KeyVersion2)

	first, err := fs.Locate(key, false)
	if err != nil {
		return 0, err
	}
	if !first.Found() || !first.Header.Key.SameObject(key) || !isDataItem(first.Type) || first.Header.Key.Offset() == 0 {
		return 0, fmt.Errorf("offset %d of %s not found: %w", off, owner, types.ErrRead)
	}

	blockSize := uint64(fs.blockSize)
	cursor := first.Header.Key.Offset() - 1

	for cursor < final {
		key.SetOffset(cursor + 1)
		item, err := fs.Locate(key, true)
		if err != nil {
			return 0, err
		}
		if !item.Found() {
			return 0, fmt.Errorf("no data item of %s at offset %d: %w", owner, cursor, types.ErrRead)
		}

		tree, err := fs.readNode(item.BlockNumber)
		if err != nil {
			return 0, err
		}
		body, err := tree.ItemBody(item.Header)
		if err != nil {
			return 0, fmt.Errorf("failed to read data item %s: %w", item.Header.Key, err)
		}

		start := cursor
		switch item.Type {
		case types.ItemTypeDirect:
			itemEnd := cursor + uint64(len(body))
			if off < itemEnd {
				from := max(off, cursor)
				to := min(itemEnd, final)
				n := copy(buf[from-off:to-off], body[from-cursor:to-cursor])
				if hook != nil {
					hook(fs.blockSector(item.BlockNumber), uint64(item.Header.ItemLocation)+(from-cursor), n)
				}
			}
			cursor = itemEnd

		case types.ItemTypeIndirect:
			pointers, err := data_streams.NewIndirectItemReader(body, fs.endian)
			if err != nil {
				return 0, fmt.Errorf("failed to decode indirect item %s: %w: %w", item.Header.Key, types.ErrRead, err)
			}
			for _, block := range pointers.Blocks() {
				if cursor >= final {
					break
				}
				blockEnd := cursor + blockSize
				if blockEnd > off {
					from := max(off, cursor)
					to := min(blockEnd, final)
					dst := buf[from-off : to-off]
					if block == 0 {
						clear(dst)
					} else {
						sector := fs.blockSector(block)
						if err := fs.device.ReadSectors(sector, from-cursor, dst); err != nil {
							return 0, fmt.Errorf("failed to read data block %d: %w: %w", block, types.ErrRead, err)
						}
						if hook != nil {
							hook(sector, from-cursor, len(dst))
						}
					}
				}
				cursor = blockEnd
			}

		default:
			return 0, fmt.Errorf("unexpected %s item in file data of %s: %w", item.Type, owner, types.ErrRead)
		}

		if cursor == start {
			return 0, fmt.Errorf("empty data item %s: %w", item.Header.Key, types.ErrRead)
		}
	}

	return int(final - off), nil
}

// ReadSymlink returns the target of a symlink node
func (fs *FileSystem) ReadSymlink(node *Node) (string, error) {
	if node == nil || !node.Found() {
		return "", fmt.Errorf("read symlink from unresolved node: %w", types.ErrRead)
	}
	if node.Size > types.MaxSymlinkSize {
		return "", fmt.Errorf("symlink target of %d bytes: %w", node.Size, types.ErrOutOfMemory)
	}

	buf := make([]byte, node.Size)
	n, err := fs.ReadAt(node, buf, 0, nil)
	if err != nil {
		return "", fmt.Errorf("failed to read symlink %s: %w", node.Header.Key, err)
	}
	return string(buf[:n]), nil
}

func isDataItem(t types.ItemType) bool {
	return t == types.ItemTypeDirect || t == types.ItemTypeIndirect
}
