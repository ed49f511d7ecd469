package services

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/deploymenttheory/go-reiserfs/internal/parsers/directory"
	"github.com/deploymenttheory/go-reiserfs/internal/parsers/stat"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// DirectoryVisitor receives each visible entry. Returning true stops the iteration.
type DirectoryVisitor func(name string, fileType types.FileType, child *Node) bool

// IterateDir calls visit for every visible entry of dir, following the
// directory across leaves through its next-offset continuation. It returns
// true when visit stopped the iteration.
//
// Entries whose object has neither a directory item nor a stat item are
// skipped; ".." is expected to lack one at the root, anything else is logged.
func (fs *FileSystem) IterateDir(dir *Node, visit DirectoryVisitor) (bool, error) {
	if dir == nil || dir.Type != types.ItemTypeDirectory {
		return false, fmt.Errorf("not a directory: %w", types.ErrBadFileType)
	}

	block, position, nextOffset := dir.BlockNumber, dir.BlockPosition, dir.NextOffset

	for block != 0 {
		tree, err := fs.readNode(block)
		if err != nil {
			return false, err
		}

		header, err := tree.ItemHeader(int(position))
		if err != nil {
			return false, fmt.Errorf("failed to read directory item header in block %d: %w", block, err)
		}
		body, err := tree.ItemBody(header)
		if err != nil {
			return false, fmt.Errorf("failed to read directory item in block %d: %w", block, err)
		}

		item, err := directory.NewDirectoryItemReader(body, header.EntryCount(), fs.endian)
		if err != nil {
			return false, fmt.Errorf("failed to decode directory item in block %d: %w", block, err)
		}

		for _, entry := range item.VisibleEntries() {
			child, err := fs.classifyEntry(entry)
			if err != nil {
				return false, err
			}
			if child == nil {
				if entry.Name != ".." {
					fs.logger.Warn("directory entry has no stat item",
						zap.String("name", entry.Name),
						zap.Uint32("directory_id", entry.DirectoryID),
						zap.Uint32("object_id", entry.ObjectID))
				}
				continue
			}

			if visit(entry.Name, child.FileType, child) {
				fs.logger.Debug("directory iteration stopped", zap.String("name", entry.Name), zap.Stringer("type", child.FileType))
				return true, nil
			}
		}

		if nextOffset == 0 {
			break
		}

		key := header.Key
		key.SetOffset(nextOffset)
		next, err := fs.Locate(key, true)
		if err != nil {
			return false, fmt.Errorf("failed to locate directory continuation at offset %d: %w", nextOffset, err)
		}
		block, position, nextOffset = next.BlockNumber, next.BlockPosition, next.NextOffset
	}

	return false, nil
}

// classifyEntry resolves an entry to its directory item or stat item.
// A nil node means neither exists.
func (fs *FileSystem) classifyEntry(entry types.DirectoryEntry) (*Node, error) {
	child, err := fs.Locate(entry.DirectoryKey(), true)
	if err != nil {
		return nil, fmt.Errorf("failed to locate directory item of %q: %w", entry.Name, err)
	}

	if child.Type == types.ItemTypeDirectory {
		child.FileType = types.FileTypeDirectory
		statNode, err := fs.Locate(entry.StatKey(), true)
		if err != nil {
			return nil, fmt.Errorf("failed to locate stat item of %q: %w", entry.Name, err)
		}
		if statNode.Found() {
			data, err := fs.readStat(statNode)
			if err != nil {
				return nil, err
			}
			applyStat(child, data)
		}
		return child, nil
	}

	child, err = fs.Locate(entry.StatKey(), true)
	if err != nil {
		return nil, fmt.Errorf("failed to locate stat item of %q: %w", entry.Name, err)
	}
	if !child.Found() {
		return nil, nil
	}

	data, err := fs.readStat(child)
	if err != nil {
		return nil, err
	}
	applyStat(child, data)
	child.FileType = data.FileType()

	return child, nil
}

// readStat decodes the stat item a node points at
func (fs *FileSystem) readStat(node *Node) (types.StatData, error) {
	tree, err := fs.readNode(node.BlockNumber)
	if err != nil {
		return types.StatData{}, err
	}
	body, err := tree.ItemBody(node.Header)
	if err != nil {
		return types.StatData{}, fmt.Errorf("failed to read stat item %s: %w", node.Header.Key, err)
	}
	reader, err := stat.NewStatItemReader(body, node.Header.Version, fs.endian)
	if err != nil {
		return types.StatData{}, fmt.Errorf("failed to decode stat item %s: %w: %w", node.Header.Key, types.ErrBadFilesystem, err)
	}
	return reader.StatData(), nil
}

// Stat returns the stat data of the object a node belongs to
func (fs *FileSystem) Stat(node *Node) (types.StatData, error) {
	key := node.Header.Key
	statNode, err := fs.Locate(types.NewKey(key.DirectoryID, key.ObjectID, 0, types.ItemTypeStat, types.KeyVersion2), true)
	if err != nil {
		return types.StatData{}, err
	}
	if !statNode.Found() {
		return types.StatData{}, fmt.Errorf("no stat item for %s: %w", key, types.ErrFileNotFound)
	}
	return fs.readStat(statNode)
}

func applyStat(node *Node, data types.StatData) {
	node.Size = data.Size
	node.Mtime = int32(data.Mtime)
	node.Mode = data.Mode
}
