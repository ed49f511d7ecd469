package directory

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

type testEntry struct {
	name    string
	objID   uint32
	visible bool
	padTo   int
}

// createDirectoryItemTestData packs names back to front after the headers
func createDirectoryItemTestData(entries []testEntry) []byte {
	size := len(entries) * types.DirectoryHeaderSize
	for _, e := range entries {
		size += nameLen(e)
	}
	data := make([]byte, size)

	location := size
	for i, e := range entries {
		location -= nameLen(e)
		copy(data[location:], e.name)

		h := data[i*types.DirectoryHeaderSize:]
		binary.LittleEndian.PutUint32(h[0:4], uint32(i+1)<<7)
		binary.LittleEndian.PutUint32(h[4:8], 1)
		binary.LittleEndian.PutUint32(h[8:12], e.objID)
		binary.LittleEndian.PutUint16(h[12:14], uint16(location))
		if e.visible {
			binary.LittleEndian.PutUint16(h[14:16], types.DirectoryEntryVisible)
		}
	}
	return data
}

func nameLen(e testEntry) int {
	if e.padTo > len(e.name) {
		return e.padTo
	}
	return len(e.name)
}

func TestNewDirectoryItemReader(t *testing.T) {
	entries := []testEntry{
		{name: ".", objID: 2, visible: true},
		{name: "..", objID: 1, visible: true},
		{name: "hello.txt", objID: 5, visible: true, padTo: 16},
		{name: "deleted", objID: 6, visible: false},
		{name: "z", objID: 7, visible: true, padTo: 8},
	}
	data := createDirectoryItemTestData(entries)

	reader, err := NewDirectoryItemReader(data, uint16(len(entries)), binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewDirectoryItemReader failed: %v", err)
	}

	if reader.EntryCount() != len(entries) {
		t.Fatalf("Expected %d entries, got %d", len(entries), reader.EntryCount())
	}

	for i, entry := range reader.Entries() {
		if entry.Name != entries[i].name {
			t.Errorf("Entry %d: expected name %q, got %q", i, entries[i].name, entry.Name)
		}
		if entry.ObjectID != entries[i].objID {
			t.Errorf("Entry %d: expected object id %d, got %d", i, entries[i].objID, entry.ObjectID)
		}
		if entry.Visible() != entries[i].visible {
			t.Errorf("Entry %d: expected visible=%v", i, entries[i].visible)
		}
	}

	visible := reader.VisibleEntries()
	if len(visible) != 4 {
		t.Fatalf("Expected 4 visible entries, got %d", len(visible))
	}
	seen := make(map[string]bool)
	for _, entry := range visible {
		if seen[entry.Name] {
			t.Errorf("Duplicate name %q", entry.Name)
		}
		seen[entry.Name] = true
	}
	if seen["deleted"] {
		t.Error("Invisible entry returned as visible")
	}
}

func TestDirectoryItemReaderKeys(t *testing.T) {
	data := createDirectoryItemTestData([]testEntry{{name: "a", objID: 9, visible: true}})

	reader, err := NewDirectoryItemReader(data, 1, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewDirectoryItemReader failed: %v", err)
	}
	entry := reader.Entries()[0]

	statKey := entry.StatKey()
	if statKey.DirectoryID != 1 || statKey.ObjectID != 9 || statKey.Type() != types.ItemTypeStat || statKey.Offset() != 0 {
		t.Errorf("Unexpected stat key %s", statKey)
	}

	dirKey := entry.DirectoryKey()
	if dirKey.Type() != types.ItemTypeDirectory || dirKey.Offset() != 1 {
		t.Errorf("Unexpected directory key %s", dirKey)
	}
}

func TestDirectoryItemReaderClampsNameEnd(t *testing.T) {
	data := createDirectoryItemTestData([]testEntry{
		{name: "first", objID: 3, visible: true},
		{name: "second", objID: 4, visible: true},
	})
	// Move the first name before the second so the second's end precedes its start.
	binary.LittleEndian.PutUint16(data[12:14], 10)

	reader, err := NewDirectoryItemReader(data, 2, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewDirectoryItemReader failed: %v", err)
	}
	second := reader.Entries()[1]
	if second.Name != "secondfirst" {
		t.Errorf("Expected name clamped to item end, got %q", second.Name)
	}
}

func TestNewDirectoryItemReaderErrors(t *testing.T) {
	t.Run("too many headers", func(t *testing.T) {
		_, err := NewDirectoryItemReader(make([]byte, 20), 2, binary.LittleEndian)
		if !errors.Is(err, types.ErrBadFilesystem) {
			t.Errorf("Expected ErrBadFilesystem, got %v", err)
		}
	})

	t.Run("name location outside item", func(t *testing.T) {
		data := createDirectoryItemTestData([]testEntry{{name: "a", objID: 2, visible: true}})
		binary.LittleEndian.PutUint16(data[12:14], 500)
		_, err := NewDirectoryItemReader(data, 1, binary.LittleEndian)
		if !errors.Is(err, types.ErrBadFilesystem) {
			t.Errorf("Expected ErrBadFilesystem, got %v", err)
		}
	})

	t.Run("empty item", func(t *testing.T) {
		reader, err := NewDirectoryItemReader(nil, 0, binary.LittleEndian)
		if err != nil {
			t.Fatalf("NewDirectoryItemReader failed: %v", err)
		}
		if reader.EntryCount() != 0 {
			t.Errorf("Expected no entries, got %d", reader.EntryCount())
		}
	})
}
