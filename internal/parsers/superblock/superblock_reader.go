package superblock

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-reiserfs/internal/interfaces"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// superblockReader implements the SuperblockReader interface
type superblockReader struct {
	superblock *types.Superblock
	data       []byte
	endian     binary.ByteOrder
}

// NewSuperblockReader creates a new SuperblockReader implementation.
// The magic prefix and block size are validated; failures wrap types.ErrBadFilesystem.
func NewSuperblockReader(data []byte, endian binary.ByteOrder) (interfaces.SuperblockReader, error) {
	if len(data) < types.SuperblockSize {
		return nil, fmt.Errorf("data too small for superblock: %d bytes: %w", len(data), types.ErrBadFilesystem)
	}

	sb, err := parseSuperblock(data, endian)
	if err != nil {
		return nil, fmt.Errorf("failed to parse superblock: %w", err)
	}

	if !bytes.HasPrefix(sb.Magic[:], []byte(types.MagicPrefix)) {
		return nil, fmt.Errorf("invalid superblock magic %q: %w", trimNul(sb.Magic[:]), types.ErrBadFilesystem)
	}

	if sb.BlockSize < types.SectorSize || sb.BlockSize%types.SectorSize != 0 {
		return nil, fmt.Errorf("invalid block size %d: %w", sb.BlockSize, types.ErrBadFilesystem)
	}

	return &superblockReader{
		superblock: sb,
		data:       data,
		endian:     endian,
	}, nil
}

// parseSuperblock parses raw bytes into a Superblock structure
func parseSuperblock(data []byte, endian binary.ByteOrder) (*types.Superblock, error) {
	if len(data) < types.SuperblockSize {
		return nil, fmt.Errorf("insufficient data for superblock")
	}

	sb := &types.Superblock{}

	sb.BlockCount = endian.Uint32(data[0:4])
	sb.FreeBlocks = endian.Uint32(data[4:8])
	sb.RootBlock = endian.Uint32(data[8:12])

	// Journal parameters
	sb.Journal.FirstBlock = endian.Uint32(data[12:16])
	sb.Journal.Device = endian.Uint32(data[16:20])
	sb.Journal.OriginalSize = endian.Uint32(data[20:24])
	sb.Journal.MaxTransactionSize = endian.Uint32(data[24:28])
	sb.Journal.BlockCount = endian.Uint32(data[28:32])
	sb.Journal.MaxBatch = endian.Uint32(data[32:36])
	sb.Journal.MaxCommitAge = endian.Uint32(data[36:40])
	sb.Journal.MaxTransactionAge = endian.Uint32(data[40:44])

	sb.BlockSize = endian.Uint16(data[44:46])
	sb.ObjectIDMaxSize = endian.Uint16(data[46:48])
	sb.ObjectIDCurrentSize = endian.Uint16(data[48:50])
	sb.State = endian.Uint16(data[50:52])
	copy(sb.Magic[:], data[52:64])
	sb.HashFunctionCode = endian.Uint32(data[64:68])
	sb.TreeHeight = endian.Uint16(data[68:70])
	sb.BitmapCount = endian.Uint16(data[70:72])
	sb.Version = endian.Uint16(data[72:74])
	sb.Reserved = endian.Uint16(data[74:76])
	sb.InodeGeneration = endian.Uint32(data[76:80])
	copy(sb.Unused[:], data[80:84])
	copy(sb.UUID[:], data[84:100])
	copy(sb.Label[:], data[100:116])

	return sb, nil
}

// Superblock returns the decoded superblock
func (sr *superblockReader) Superblock() *types.Superblock {
	return sr.superblock
}

// BlockSize returns the block size in bytes
func (sr *superblockReader) BlockSize() uint32 {
	return uint32(sr.superblock.BlockSize)
}

// BlockCount returns the total number of blocks
func (sr *superblockReader) BlockCount() uint32 {
	return sr.superblock.BlockCount
}

// FreeBlocks returns the number of free blocks
func (sr *superblockReader) FreeBlocks() uint32 {
	return sr.superblock.FreeBlocks
}

// RootBlock returns the block number of the tree root
func (sr *superblockReader) RootBlock() uint32 {
	return sr.superblock.RootBlock
}

// TreeHeight returns the height of the tree
func (sr *superblockReader) TreeHeight() uint16 {
	return sr.superblock.TreeHeight
}

// Magic returns the magic string with trailing NULs removed
func (sr *superblockReader) Magic() string {
	return trimNul(sr.superblock.Magic[:])
}

// FormatName returns a human readable format name derived from the magic
func (sr *superblockReader) FormatName() string {
	switch sr.Magic() {
	case types.MagicReiserFS35:
		return "ReiserFS 3.5"
	case types.MagicReiserFS36:
		return "ReiserFS 3.6"
	case types.MagicReiserFSJR:
		return "ReiserFS 3.6 (non-standard journal)"
	default:
		return "ReiserFS"
	}
}

// HashFunction returns the name of the directory hash function
func (sr *superblockReader) HashFunction() string {
	switch sr.superblock.HashFunctionCode {
	case types.HashTea:
		return "tea"
	case types.HashYura:
		return "rupasov"
	case types.HashR5:
		return "r5"
	case types.HashUnset:
		return "unset"
	default:
		return fmt.Sprintf("unknown (%d)", sr.superblock.HashFunctionCode)
	}
}

// Label returns the volume label up to the first NUL
func (sr *superblockReader) Label() string {
	return trimNul(sr.superblock.Label[:])
}

// UUID returns the formatted volume UUID, or "" when it is all zero
func (sr *superblockReader) UUID() string {
	id, err := uuid.FromBytes(sr.superblock.UUID[:])
	if err != nil || id == uuid.Nil {
		return ""
	}
	return id.String()
}

// HasJournal reports whether the superblock describes a journal
func (sr *superblockReader) HasJournal() bool {
	return sr.superblock.Journal.BlockCount != 0
}

// IsClean reports whether the filesystem was cleanly unmounted
func (sr *superblockReader) IsClean() bool {
	return sr.superblock.State == types.StateValid
}

func trimNul(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
