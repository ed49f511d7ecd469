package types

// StatItemV1 is the 3.5 stat layout (item header version 0).
type StatItemV1 struct {
	Mode            uint16
	HardlinkCount   uint16
	UID             uint16
	GID             uint16
	Size            uint32
	Atime           uint32
	Mtime           uint32
	Ctime           uint32
	Rdev            uint32
	FirstDirectByte uint32
}

// StatItemV2 is the 3.6 stat layout (any other item header version).
type StatItemV2 struct {
	Mode            uint16
	Reserved        uint16
	HardlinkCount   uint32
	Size            uint64
	UID             uint32
	GID             uint32
	Atime           uint32
	Mtime           uint32
	Ctime           uint32
	Blocks          uint32
	FirstDirectByte uint32
}

// StatData is the version independent view of a stat item.
type StatData struct {
	// Version is 1 or 2 depending on the decoded layout
	Version int

	Mode            uint16
	Links           uint32
	UID             uint32
	GID             uint32
	Size            uint64
	Atime           uint32
	Mtime           uint32
	Ctime           uint32
	BlocksOrRdev    uint32
	FirstDirectByte uint32
}

// IsSymlink reports whether the mode carries the symlink bits
func (s StatData) IsSymlink() bool {
	return s.Mode&ModeSymlink == ModeSymlink
}

// FileType classifies the stat item. Only the symlink bits are inspected.
func (s StatData) FileType() FileType {
	if s.IsSymlink() {
		return FileTypeSymlink
	}
	return FileTypeRegular
}
