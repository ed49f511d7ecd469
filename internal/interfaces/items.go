// File: internal/interfaces/items.go
package interfaces

import (
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// StatItemReader provides methods for reading a stat item
type StatItemReader interface {
	// StatData returns the version independent view
	StatData() types.StatData

	// Version returns 1 for the 3.5 layout and 2 for the 3.6 layout
	Version() int

	// Mode returns the file mode
	Mode() uint16

	// Size returns the file size in bytes
	Size() uint64

	// Mtime returns the modification time in seconds since the epoch
	Mtime() uint32

	// FileType classifies the object as a regular file or a symlink
	FileType() types.FileType
}

// DirectoryItemReader provides methods for reading a directory item
type DirectoryItemReader interface {
	// EntryCount returns the number of entry headers, visible or not
	EntryCount() int

	// Entries returns every decoded entry, visible or not
	Entries() []types.DirectoryEntry

	// VisibleEntries returns the entries with the visible bit set
	VisibleEntries() []types.DirectoryEntry
}

// IndirectItemReader provides methods for reading the block pointers of an indirect item
type IndirectItemReader interface {
	// Count returns the number of block pointers
	Count() int

	// Block returns the i-th block pointer; 0 marks a hole
	Block(i int) uint32

	// Blocks returns every block pointer
	Blocks() []uint32
}
