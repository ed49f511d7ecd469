// File: internal/interfaces/superblock.go
package interfaces

import (
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// SuperblockReader provides methods for reading the filesystem superblock
type SuperblockReader interface {
	// Superblock returns the decoded superblock
	Superblock() *types.Superblock

	// BlockSize returns the block size in bytes
	BlockSize() uint32

	// BlockCount returns the total number of blocks
	BlockCount() uint32

	// FreeBlocks returns the number of free blocks
	FreeBlocks() uint32

	// RootBlock returns the block number of the tree root
	RootBlock() uint32

	// TreeHeight returns the height of the tree
	TreeHeight() uint16

	// Magic returns the magic string with trailing NULs removed
	Magic() string

	// FormatName returns a human readable format name derived from the magic
	FormatName() string

	// HashFunction returns the name of the directory hash function
	HashFunction() string

	// Label returns the volume label up to the first NUL
	Label() string

	// UUID returns the formatted volume UUID, or "" when it is all zero
	UUID() string

	// HasJournal reports whether the superblock describes a journal
	HasJournal() bool

	// IsClean reports whether the filesystem was cleanly unmounted
	IsClean() bool
}
