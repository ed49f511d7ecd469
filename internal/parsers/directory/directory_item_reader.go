package directory

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-reiserfs/internal/interfaces"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// directoryItemReader implements the DirectoryItemReader interface
type directoryItemReader struct {
	entries []types.DirectoryEntry
	data    []byte
	endian  binary.ByteOrder
}

// NewDirectoryItemReader decodes the entry array of a directory item body in
// one pass. Names are packed back to front: entry 0's name ends at the end of
// the item and every other name ends where the previous entry's name starts.
func NewDirectoryItemReader(data []byte, entryCount uint16, endian binary.ByteOrder) (interfaces.DirectoryItemReader, error) {
	headersSize := int(entryCount) * types.DirectoryHeaderSize
	if headersSize > len(data) {
		return nil, fmt.Errorf("directory item of %d bytes cannot hold %d entry headers: %w", len(data), entryCount, types.ErrBadFilesystem)
	}

	entries := make([]types.DirectoryEntry, 0, entryCount)
	for i := 0; i < int(entryCount); i++ {
		header := parseDirectoryEntryHeader(data[i*types.DirectoryHeaderSize:], endian)

		start := int(header.Location)
		if start > len(data) {
			return nil, fmt.Errorf("directory entry %d name at %d outside item of %d bytes: %w", i, start, len(data), types.ErrBadFilesystem)
		}

		end := len(data)
		if i > 0 {
			end = int(entries[i-1].Location)
		}
		if end < start || end > len(data) {
			end = len(data)
		}

		entries = append(entries, types.DirectoryEntry{
			DirectoryEntryHeader: header,
			Name:                 entryName(data[start:end]),
		})
	}

	return &directoryItemReader{
		entries: entries,
		data:    data,
		endian:  endian,
	}, nil
}

// parseDirectoryEntryHeader parses one 16-byte entry header
func parseDirectoryEntryHeader(data []byte, endian binary.ByteOrder) types.DirectoryEntryHeader {
	return types.DirectoryEntryHeader{
		Offset:      endian.Uint32(data[0:4]),
		DirectoryID: endian.Uint32(data[4:8]),
		ObjectID:    endian.Uint32(data[8:12]),
		Location:    endian.Uint16(data[12:14]),
		State:       endian.Uint16(data[14:16]),
	}
}

// entryName returns the name up to the first NUL; names are padded on disk
func entryName(raw []byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return string(raw)
}

// EntryCount returns the number of entry headers, visible or not
func (r *directoryItemReader) EntryCount() int {
	return len(r.entries)
}

// Entries returns every decoded entry, visible or not
func (r *directoryItemReader) Entries() []types.DirectoryEntry {
	return r.entries
}

// VisibleEntries returns the entries with the visible bit set
func (r *directoryItemReader) VisibleEntries() []types.DirectoryEntry {
	visible := make([]types.DirectoryEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		if entry.Visible() {
			visible = append(visible, entry)
		}
	}
	return visible
}
