package types

import "time"

// JournalParams describes the journal as recorded in the superblock.
// The journal is reported but never replayed.
type JournalParams struct {
	// FirstBlock is the first block of the journal
	FirstBlock uint32

	// Device is the journal device number (0 for an internal journal)
	Device uint32

	// OriginalSize is the journal size at creation time
	OriginalSize uint32

	// MaxTransactionSize is the maximum number of blocks in one transaction
	MaxTransactionSize uint32

	// BlockCount is the number of journal blocks
	BlockCount uint32

	// MaxBatch is the maximum number of transactions batched together
	MaxBatch uint32

	// MaxCommitAge is the commit age limit in seconds
	MaxCommitAge uint32

	// MaxTransactionAge is the transaction age limit in seconds
	MaxTransactionAge uint32
}

// Superblock is the on-disk superblock located at SuperblockOffset.
type Superblock struct {
	// BlockCount is the total number of blocks in the filesystem
	BlockCount uint32

	// FreeBlocks is the number of unused blocks
	FreeBlocks uint32

	// RootBlock is the block number of the tree root
	RootBlock uint32

	// Journal holds the journal parameters
	Journal JournalParams

	// BlockSize is the size of a block and of a tree node in bytes
	BlockSize uint16

	// ObjectIDMaxSize is the maximal size of the object id map
	ObjectIDMaxSize uint16

	// ObjectIDCurrentSize is the current size of the object id map
	ObjectIDCurrentSize uint16

	// State is StateValid or StateError
	State uint16

	// Magic is the magic field; its first six bytes are MagicPrefix
	Magic [MagicLength]byte

	// HashFunctionCode selects the directory entry hash
	HashFunctionCode uint32

	// TreeHeight is the height of the tree
	TreeHeight uint16

	// BitmapCount is the number of bitmap blocks
	BitmapCount uint16

	// Version is the on-disk format version
	Version uint16

	// Reserved is unused
	Reserved uint16

	// InodeGeneration is the last generation number handed out
	InodeGeneration uint32

	// Unused is padding
	Unused [4]byte

	// UUID is the volume UUID as a plain byte sequence
	UUID [16]byte

	// Label is the NUL padded volume label
	Label [16]byte
}

// VolumeInfo summarises a mounted filesystem.
type VolumeInfo struct {
	Label          string    `json:"label" yaml:"label"`
	UUID           string    `json:"uuid" yaml:"uuid"`
	Format         string    `json:"format" yaml:"format"`
	BlockSize      uint32    `json:"block_size" yaml:"block_size"`
	BlockCount     uint32    `json:"block_count" yaml:"block_count"`
	FreeBlocks     uint32    `json:"free_blocks" yaml:"free_blocks"`
	RootBlock      uint32    `json:"root_block" yaml:"root_block"`
	TreeHeight     uint16    `json:"tree_height" yaml:"tree_height"`
	HashFunction   string    `json:"hash_function" yaml:"hash_function"`
	State          string    `json:"state" yaml:"state"`
	JournalBlocks  uint32    `json:"journal_blocks" yaml:"journal_blocks"`
	JournalPresent bool      `json:"journal_present" yaml:"journal_present"`
	MountedAt      time.Time `json:"mounted_at" yaml:"mounted_at"`
}
