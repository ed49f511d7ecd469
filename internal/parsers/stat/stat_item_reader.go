package stat

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-reiserfs/internal/interfaces"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// statItemReader implements the StatItemReader interface
type statItemReader struct {
	stat   types.StatData
	data   []byte
	endian binary.ByteOrder
}

// NewStatItemReader decodes a stat item body. Sub-version 0 (taken from the
// item header) selects the 3.5 layout, anything else the 3.6 layout.
func NewStatItemReader(data []byte, subVersion uint16, endian binary.ByteOrder) (interfaces.StatItemReader, error) {
	var stat types.StatData
	if subVersion == 0 {
		if len(data) < types.StatV1Size {
			return nil, fmt.Errorf("data too small for v1 stat item: %d bytes", len(data))
		}
		stat = statDataFromV1(parseStatItemV1(data, endian))
	} else {
		if len(data) < types.StatV2Size {
			return nil, fmt.Errorf("data too small for v2 stat item: %d bytes", len(data))
		}
		stat = statDataFromV2(parseStatItemV2(data, endian))
	}

	return &statItemReader{
		stat:   stat,
		data:   data,
		endian: endian,
	}, nil
}

// parseStatItemV1 parses raw bytes into a StatItemV1 structure
func parseStatItemV1(data []byte, endian binary.ByteOrder) types.StatItemV1 {
	return types.StatItemV1{
		Mode:            endian.Uint16(data[0:2]),
		HardlinkCount:   endian.Uint16(data[2:4]),
		UID:             endian.Uint16(data[4:6]),
		GID:             endian.Uint16(data[6:8]),
		Size:            endian.Uint32(data[8:12]),
		Atime:           endian.Uint32(data[12:16]),
		Mtime:           endian.Uint32(data[16:20]),
		Ctime:           endian.Uint32(data[20:24]),
		Rdev:            endian.Uint32(data[24:28]),
		FirstDirectByte: endian.Uint32(data[28:32]),
	}
}

// parseStatItemV2 parses raw bytes into a StatItemV2 structure
func parseStatItemV2(data []byte, endian binary.ByteOrder) types.StatItemV2 {
	return types.StatItemV2{
		Mode:            endian.Uint16(data[0:2]),
		Reserved:        endian.Uint16(data[2:4]),
		HardlinkCount:   endian.Uint32(data[4:8]),
		Size:            endian.Uint64(data[8:16]),
		UID:             endian.Uint32(data[16:20]),
		GID:             endian.Uint32(data[20:24]),
		Atime:           endian.Uint32(data[24:28]),
		Mtime:           endian.Uint32(data[28:32]),
		Ctime:           endian.Uint32(data[32:36]),
		Blocks:          endian.Uint32(data[36:40]),
		FirstDirectByte: endian.Uint32(data[40:44]),
	}
}

func statDataFromV1(s types.StatItemV1) types.StatData {
	return types.StatData{
		Version:         1,
		Mode:            s.Mode,
		Links:           uint32(s.HardlinkCount),
		UID:             uint32(s.UID),
		GID:             uint32(s.GID),
		Size:            uint64(s.Size),
		Atime:           s.Atime,
		Mtime:           s.Mtime,
		Ctime:           s.Ctime,
		BlocksOrRdev:    s.Rdev,
		FirstDirectByte: s.FirstDirectByte,
	}
}

func statDataFromV2(s types.StatItemV2) types.StatData {
	return types.StatData{
		Version:         2,
		Mode:            s.Mode,
		Links:           s.HardlinkCount,
		UID:             s.UID,
		GID:             s.GID,
		Size:            s.Size,
		Atime:           s.Atime,
		Mtime:           s.Mtime,
		Ctime:           s.Ctime,
		BlocksOrRdev:    s.Blocks,
		FirstDirectByte: s.FirstDirectByte,
	}
}

// StatData returns the version independent view
func (r *statItemReader) StatData() types.StatData {
	return r.stat
}

// Version returns 1 for the 3.5 layout and 2 for the 3.6 layout
func (r *statItemReader) Version() int {
	return r.stat.Version
}

// Mode returns the file mode
func (r *statItemReader) Mode() uint16 {
	return r.stat.Mode
}

// Size returns the file size in bytes
func (r *statItemReader) Size() uint64 {
	return r.stat.Size
}

// Mtime returns the modification time in seconds since the epoch
func (r *statItemReader) Mtime() uint32 {
	return r.stat.Mtime
}

// FileType classifies the object as a regular file or a symlink
func (r *statItemReader) FileType() types.FileType {
	return r.stat.FileType()
}
