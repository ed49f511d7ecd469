package services

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// Root returns the root directory node
func (fs *FileSystem) Root() (*Node, error) {
	key := types.NewKey(types.RootDirectoryID, types.RootObjectID, types.DirectoryItemOffset, types.ItemTypeDirectory, types.KeyVersion2)

	root, err := fs.Locate(key, true)
	if err != nil {
		return nil, fmt.Errorf("failed to locate root directory: %w", err)
	}
	if !root.Found() {
		return nil, fmt.Errorf("unable to find root item: %w", types.ErrBadFilesystem)
	}
	root.FileType = types.FileTypeDirectory

	statNode, err := fs.Locate(types.NewKey(types.RootDirectoryID, types.RootObjectID, 0, types.ItemTypeStat, types.KeyVersion2), true)
	if err != nil {
		return nil, fmt.Errorf("failed to locate root stat item: %w", err)
	}
	if statNode.Found() {
		data, err := fs.readStat(statNode)
		if err != nil {
			return nil, err
		}
		applyStat(root, data)
	}

	return root, nil
}

// Lookup resolves a slash separated path from the root, following symlinks
// in every component. expect constrains the final node: FileTypeDirectory
// requires a directory (types.ErrNotDirectory), FileTypeRegular rejects
// directories (types.ErrBadFileType), FileTypeUnknown accepts anything.
func (fs *FileSystem) Lookup(path string, expect types.FileType) (*Node, error) {
	node, err := fs.resolve(path, true)
	if err != nil {
		return nil, err
	}

	switch {
	case expect == types.FileTypeDirectory && !node.IsDir():
		return nil, fmt.Errorf("%s: %w", path, types.ErrNotDirectory)
	case expect == types.FileTypeRegular && node.IsDir():
		return nil, fmt.Errorf("%s: not a regular file: %w", path, types.ErrBadFileType)
	}
	return node, nil
}

// LookupNoFollow resolves path like Lookup but returns a final symlink
// itself instead of its target
func (fs *FileSystem) LookupNoFollow(path string) (*Node, error) {
	return fs.resolve(path, false)
}

// ReadDir returns the visible entries of dir except "." and "..". Entries
// whose name is not a single path component are skipped with a warning.
func (fs *FileSystem) ReadDir(dir *Node) ([]DirEntry, error) {
	var entries []DirEntry
	_, err := fs.IterateDir(dir, func(name string, fileType types.FileType, child *Node) bool {
		switch {
		case name == "." || name == "..":
		case !IsValidEntryName(name):
			fs.logger.Warn("skipping directory entry with invalid name",
				zap.String("name", name),
				zap.Stringer("directory", dir.Key()))
		default:
			entries = append(entries, DirEntry{Name: name, Type: fileType, Node: child})
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// IsValidEntryName reports whether name can be used as one path component
func IsValidEntryName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, "/\x00")
}

// DirEntry is one named child of a directory
type DirEntry struct {
	Name string
	Type types.FileType
	Node *Node
}

func (fs *FileSystem) resolve(path string, followFinal bool) (*Node, error) {
	root, err := fs.Root()
	if err != nil {
		return nil, err
	}

	symlinks := 0
	stack, err := fs.walk([]*Node{root}, path, followFinal, &symlinks)
	if err != nil {
		return nil, err
	}
	return stack[len(stack)-1], nil
}

// walk resolves path against the directory stack. The stack holds the
// directories from the root to the current one so ".." can step back.
func (fs *FileSystem) walk(stack []*Node, path string, followFinal bool, symlinks *int) ([]*Node, error) {
	if strings.HasPrefix(path, "/") {
		stack = stack[:1]
	}

	components := splitPath(path)
	for i, name := range components {
		switch name {
		case ".":
			continue
		case "..":
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
			continue
		}

		current := stack[len(stack)-1]
		if !current.IsDir() {
			return nil, fmt.Errorf("%s: %w", name, types.ErrNotDirectory)
		}

		child, err := fs.findEntry(current, name)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return nil, fmt.Errorf("file `%s' not found: %w", strings.Join(components[:i+1], "/"), types.ErrFileNotFound)
		}

		last := i == len(components)-1
		if child.FileType == types.FileTypeSymlink && (!last || followFinal) {
			*symlinks++
			if *symlinks > types.MaxSymlinkDepth {
				return nil, fmt.Errorf("%s: %w", path, types.ErrSymlinkLoop)
			}

			target, err := fs.ReadSymlink(child)
			if err != nil {
				return nil, err
			}
			fs.logger.Debug("following symlink", zap.String("name", name), zap.String("target", target))

			stack, err = fs.walk(stack, target, true, symlinks)
			if err != nil {
				return nil, err
			}
			continue
		}

		stack = append(stack, child)
	}

	return stack, nil
}

// Child returns the entry of dir called name without following it
func (fs *FileSystem) Child(dir *Node, name string) (*Node, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("%s: %w", dir.Header.Key, types.ErrNotDirectory)
	}
	child, err := fs.findEntry(dir, name)
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, fmt.Errorf("%s: %w", name, types.ErrFileNotFound)
	}
	return child, nil
}

// findEntry returns the child called name, or nil
func (fs *FileSystem) findEntry(dir *Node, name string) (*Node, error) {
	var found *Node
	_, err := fs.IterateDir(dir, func(entryName string, _ types.FileType, child *Node) bool {
		if entryName == name {
			found = child
			return true
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func splitPath(path string) []string {
	var components []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			components = append(components, part)
		}
	}
	return components
}
