package services

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/deploymenttheory/go-reiserfs/internal/interfaces"
	"github.com/deploymenttheory/go-reiserfs/internal/parsers/btrees"
	"github.com/deploymenttheory/go-reiserfs/internal/parsers/superblock"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// FileSystem is a mounted, read-only ReiserFS volume. It holds no mutable
// state after Mount and may be shared by concurrent readers when the
// underlying device allows it.
type FileSystem struct {
	device     interfaces.BlockDevice
	superblock interfaces.SuperblockReader
	blockSize  uint32
	endian     binary.ByteOrder
	logger     *zap.Logger
	mountedAt  time.Time
}

// MountOption configures Mount
type MountOption func(*FileSystem)

// WithLogger sets the logger used for tree tracing (Debug) and anomalies (Warn)
func WithLogger(logger *zap.Logger) MountOption {
	return func(fs *FileSystem) {
		if logger != nil {
			fs.logger = logger
		}
	}
}

// Mount reads and validates the superblock of dev. A device too small to
// hold the superblock is reported as types.ErrBadFilesystem.
func Mount(dev interfaces.BlockDevice, opts ...MountOption) (*FileSystem, error) {
	if dev == nil {
		return nil, fmt.Errorf("block device cannot be nil")
	}

	fs := &FileSystem{
		device:    dev,
		endian:    binary.LittleEndian,
		logger:    zap.NewNop(),
		mountedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(fs)
	}

	data := make([]byte, types.SuperblockSize)
	if err := dev.ReadSectors(types.SuperblockOffset/types.SectorSize, 0, data); err != nil {
		if errors.Is(err, types.ErrOutOfRange) {
			return nil, fmt.Errorf("device too small for a superblock: %w: %w", types.ErrBadFilesystem, err)
		}
		return nil, fmt.Errorf("failed to read superblock: %w", err)
	}

	sb, err := superblock.NewSuperblockReader(data, fs.endian)
	if err != nil {
		return nil, fmt.Errorf("failed to mount: %w", err)
	}
	fs.superblock = sb
	fs.blockSize = sb.BlockSize()

	fs.logger.Debug("mounted filesystem",
		zap.String("format", sb.FormatName()),
		zap.Uint32("block_size", fs.blockSize),
		zap.Uint32("root_block", sb.RootBlock()),
		zap.Uint16("tree_height", sb.TreeHeight()),
		zap.String("label", sb.Label()))

	return fs, nil
}

// Superblock returns the superblock reader
func (fs *FileSystem) Superblock() interfaces.SuperblockReader {
	return fs.superblock
}

// BlockSize returns the block size in bytes
func (fs *FileSystem) BlockSize() uint32 {
	return fs.blockSize
}

// Logger returns the mount's logger
func (fs *FileSystem) Logger() *zap.Logger {
	return fs.logger
}

// Label returns the volume label
func (fs *FileSystem) Label() string {
	return fs.superblock.Label()
}

// UUID returns the volume UUID, or "" when unset
func (fs *FileSystem) UUID() string {
	return fs.superblock.UUID()
}

// Info summarises the mounted volume
func (fs *FileSystem) Info() types.VolumeInfo {
	sb := fs.superblock
	state := "clean"
	if !sb.IsClean() {
		state = "errors"
	}
	return types.VolumeInfo{
		Label:          sb.Label(),
		UUID:           sb.UUID(),
		Format:         sb.FormatName(),
		BlockSize:      sb.BlockSize(),
		BlockCount:     sb.BlockCount(),
		FreeBlocks:     sb.FreeBlocks(),
		RootBlock:      sb.RootBlock(),
		TreeHeight:     sb.TreeHeight(),
		HashFunction:   sb.HashFunction(),
		State:          state,
		JournalBlocks:  sb.Superblock().Journal.BlockCount,
		JournalPresent: sb.HasJournal(),
		MountedAt:      fs.mountedAt,
	}
}

// blockSector converts a block number into the device sector it starts at
func (fs *FileSystem) blockSector(block uint32) uint64 {
	return uint64(block) * uint64(fs.blockSize>>types.SectorBits)
}

// readBlock reads one whole filesystem block
func (fs *FileSystem) readBlock(block uint32) ([]byte, error) {
	data := make([]byte, fs.blockSize)
	if err := fs.device.ReadSectors(fs.blockSector(block), 0, data); err != nil {
		return nil, fmt.Errorf("failed to read block %d: %w: %w", block, types.ErrRead, err)
	}
	return data, nil
}

// readNode reads and parses a formatted tree node
func (fs *FileSystem) readNode(block uint32) (interfaces.TreeNodeReader, error) {
	data, err := fs.readBlock(block)
	if err != nil {
		return nil, err
	}
	node, err := btrees.NewTreeNodeReader(data, fs.endian)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tree node %d: %w", block, err)
	}
	return node, nil
}
