package btrees

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

const testBlockSize = 1024

func createInternalNodeTestData(level uint16, keys []types.Key, children []uint32) []byte {
	data := make([]byte, testBlockSize)
	binary.LittleEndian.PutUint16(data[0:2], level)
	binary.LittleEndian.PutUint16(data[2:4], uint16(len(keys)))
	for i, key := range keys {
		copy(data[types.BlockHeaderSize+i*types.KeySize:], key.Encode())
	}
	base := types.BlockHeaderSize + len(keys)*types.KeySize
	for i, child := range children {
		binary.LittleEndian.PutUint32(data[base+i*types.DiskChildSize:], child)
		binary.LittleEndian.PutUint16(data[base+i*types.DiskChildSize+4:], 100)
	}
	return data
}

type testItem struct {
	key     types.Key
	body    []byte
	count   uint16
	version uint16
}

func createLeafTestData(items []testItem) []byte {
	data := make([]byte, testBlockSize)
	binary.LittleEndian.PutUint16(data[0:2], types.LeafLevel)
	binary.LittleEndian.PutUint16(data[2:4], uint16(len(items)))

	location := testBlockSize
	for i, item := range items {
		location -= len(item.body)
		copy(data[location:], item.body)

		h := data[types.BlockHeaderSize+i*types.ItemHeaderSize:]
		copy(h[0:16], item.key.Encode())
		binary.LittleEndian.PutUint16(h[16:18], item.count)
		binary.LittleEndian.PutUint16(h[18:20], uint16(len(item.body)))
		binary.LittleEndian.PutUint16(h[20:22], uint16(location))
		binary.LittleEndian.PutUint16(h[22:24], item.version)
	}
	return data
}

func TestNewTreeNodeReaderInternal(t *testing.T) {
	keys := []types.Key{
		types.NewKey(1, 2, 0, types.ItemTypeStat, types.KeyVersion2),
		types.NewKey(5, 9, 1, types.ItemTypeDirectory, types.KeyVersion2),
	}
	data := createInternalNodeTestData(2, keys, []uint32{20, 21, 22})

	reader, err := NewTreeNodeReader(data, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewTreeNodeReader failed: %v", err)
	}

	if reader.IsLeaf() {
		t.Error("Expected internal node")
	}
	if reader.Level() != 2 || reader.ItemCount() != 2 {
		t.Errorf("Expected level 2 with 2 keys, got level %d with %d", reader.Level(), reader.ItemCount())
	}

	for i, expected := range keys {
		key, err := reader.Key(i)
		if err != nil {
			t.Fatalf("Key(%d) failed: %v", i, err)
		}
		if types.CompareKeys(key, expected) != 0 {
			t.Errorf("Key(%d): expected %s, got %s", i, expected, key)
		}
	}

	for i, expected := range []uint32{20, 21, 22} {
		child, err := reader.Child(i)
		if err != nil {
			t.Fatalf("Child(%d) failed: %v", i, err)
		}
		if child.BlockNumber != expected || child.Size != 100 {
			t.Errorf("Child(%d): expected block %d, got %+v", i, expected, child)
		}
	}

	if _, err := reader.Key(2); err == nil {
		t.Error("Expected error for key index past count")
	}
	if _, err := reader.Child(3); err == nil {
		t.Error("Expected error for child index past count")
	}
	if _, err := reader.ItemHeader(0); err == nil {
		t.Error("Expected error reading item header of an internal node")
	}
}

func TestNewTreeNodeReaderLeaf(t *testing.T) {
	items := []testItem{
		{key: types.NewKey(1, 2, 0, types.ItemTypeStat, types.KeyVersion1), body: make([]byte, types.StatV1Size)},
		{key: types.NewKey(1, 2, 1, types.ItemTypeDirectory, types.KeyVersion1), body: make([]byte, 48), count: 2, version: 0},
		{key: types.NewKey(2, 5, 1, types.ItemTypeDirect, types.KeyVersion2), body: []byte("hello world"), version: 1},
	}
	data := createLeafTestData(items)

	reader, err := NewTreeNodeReader(data, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewTreeNodeReader failed: %v", err)
	}
	if !reader.IsLeaf() {
		t.Fatal("Expected leaf node")
	}

	for i, item := range items {
		header, err := reader.ItemHeader(i)
		if err != nil {
			t.Fatalf("ItemHeader(%d) failed: %v", i, err)
		}
		if types.CompareKeys(header.Key, item.key) != 0 {
			t.Errorf("ItemHeader(%d): expected key %s, got %s", i, item.key, header.Key)
		}
		if header.Key.Type() != item.key.Type() {
			t.Errorf("ItemHeader(%d): expected type %s, got %s", i, item.key.Type(), header.Key.Type())
		}
		if header.EntryCount() != item.count || header.Version != item.version {
			t.Errorf("ItemHeader(%d): unexpected header %+v", i, header)
		}

		body, err := reader.ItemBody(header)
		if err != nil {
			t.Fatalf("ItemBody(%d) failed: %v", i, err)
		}
		if string(body) != string(item.body) {
			t.Errorf("ItemBody(%d): expected %q, got %q", i, item.body, body)
		}
	}

	if _, err := reader.Key(0); err == nil {
		t.Error("Expected error reading delimiting key of a leaf")
	}
}

func TestNewTreeNodeReaderErrors(t *testing.T) {
	t.Run("short data", func(t *testing.T) {
		if _, err := NewTreeNodeReader(make([]byte, 10), binary.LittleEndian); err == nil {
			t.Error("Expected error for short data")
		}
	})

	t.Run("item count overflows block", func(t *testing.T) {
		data := make([]byte, testBlockSize)
		binary.LittleEndian.PutUint16(data[0:2], types.LeafLevel)
		binary.LittleEndian.PutUint16(data[2:4], 1000)

		_, err := NewTreeNodeReader(data, binary.LittleEndian)
		if !errors.Is(err, types.ErrBadFilesystem) {
			t.Errorf("Expected ErrBadFilesystem, got %v", err)
		}
	})

	t.Run("item body outside block", func(t *testing.T) {
		data := createLeafTestData([]testItem{{key: types.NewKey(1, 2, 0, types.ItemTypeStat, types.KeyVersion2), body: []byte("x")}})
		reader, err := NewTreeNodeReader(data, binary.LittleEndian)
		if err != nil {
			t.Fatalf("NewTreeNodeReader failed: %v", err)
		}
		header, _ := reader.ItemHeader(0)
		header.ItemSize = 200
		if _, err := reader.ItemBody(header); !errors.Is(err, types.ErrBadFilesystem) {
			t.Errorf("Expected ErrBadFilesystem, got %v", err)
		}
	})
}
