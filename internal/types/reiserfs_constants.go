package types

// ReiserFS on-disk constants

const (
	// SectorSize is the addressing unit of the block device layer.
	SectorSize = 512

	// SectorBits is log2(SectorSize).
	SectorBits = 9

	// SuperblockOffset is the byte offset of the superblock from the device start.
	SuperblockOffset = 0x10000

	// SuperblockSize is the number of superblock bytes decoded by this package.
	SuperblockSize = 116

	// MagicLength is the size of the magic field in the superblock.
	MagicLength = 12

	// MagicPrefix must match the first bytes of the magic field.
	MagicPrefix = "ReIsEr"
)

// Known full magic strings.
const (
	MagicReiserFS35 = "ReIsErFs"
	MagicReiserFS36 = "ReIsEr2Fs"
	MagicReiserFSJR = "ReIsEr3Fs"
)

// Tree layout sizes.
const (
	// BlockHeaderSize is the size of the header at the start of every tree node.
	BlockHeaderSize = 24

	// ItemHeaderSize is the size of a leaf item header.
	ItemHeaderSize = 24

	// DiskChildSize is the size of an internal node child pointer.
	DiskChildSize = 8

	// DirectoryHeaderSize is the size of a directory entry header.
	DirectoryHeaderSize = 16

	// StatV1Size is the size of a 3.5 format stat item.
	StatV1Size = 32

	// StatV2Size is the size of a 3.6 format stat item.
	StatV2Size = 44

	// IndirectPointerSize is the size of one block pointer in an indirect item.
	IndirectPointerSize = 4
)

// Tree levels.
const (
	// LeafLevel is the level of leaf nodes. Anything at or below it is read as a leaf.
	LeafLevel = 1
)

// Entry and mode bits.
const (
	// DirectoryEntryVisible is bit 2 of the entry state field.
	DirectoryEntryVisible uint16 = 0x04

	// ModeSymlink is the mask identifying a symbolic link.
	ModeSymlink uint16 = 0xA000

	// ModeTypeMask selects the file type bits of a mode.
	ModeTypeMask uint16 = 0xF000

	// ModeDirectory is the file type bits of a directory.
	ModeDirectory uint16 = 0x4000
)

// Well known objects.
const (
	// RootDirectoryID is the parent directory id of the root directory key.
	RootDirectoryID uint32 = 1

	// RootObjectID is the object id of the root directory.
	RootObjectID uint32 = 2

	// DirectoryItemOffset is the offset of the first directory item of a directory ("." entry hash).
	DirectoryItemOffset uint64 = 1
)

// MaxSymlinkDepth bounds symlink resolution during path lookup.
const MaxSymlinkDepth = 8

// MaxSymlinkSize bounds the size of a symlink target that will be read into memory.
const MaxSymlinkSize = 1 << 16

// MaxNameLength is the longest name a directory entry may hold
const MaxNameLength = 255

// Hash function codes stored in the superblock.
const (
	HashUnset uint32 = 0
	HashTea   uint32 = 1
	HashYura  uint32 = 2
	HashR5    uint32 = 3
)

// Superblock state values.
const (
	StateValid uint16 = 1
	StateError uint16 = 2
)

// Superblock format versions.
const (
	FormatVersion35 uint16 = 0
	FormatVersion36 uint16 = 2
)
