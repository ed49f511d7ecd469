package btrees

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/deploymenttheory/go-reiserfs/internal/interfaces"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// withFreeSpace stores the free space a consistent node would carry
func withFreeSpace(t *testing.T, data []byte) interfaces.TreeNodeReader {
	t.Helper()
	node, err := NewTreeNodeReader(data, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewTreeNodeReader() error = %v", err)
	}
	count := int(node.ItemCount())
	used := count*types.KeySize + (count+1)*types.DiskChildSize
	if node.IsLeaf() {
		used = 0
		for i := 0; i < count; i++ {
			h, _ := node.ItemHeader(i)
			used += types.ItemHeaderSize + int(h.ItemSize)
		}
	}
	binary.LittleEndian.PutUint16(data[4:6], uint16(len(data)-types.BlockHeaderSize-used))

	node, err = NewTreeNodeReader(data, binary.LittleEndian)
	if err != nil {
		t.Fatalf("NewTreeNodeReader() error = %v", err)
	}
	return node
}

func validLeafItems() []testItem {
	return []testItem{
		{key: types.NewKey(1, 2, 0, types.ItemTypeStat, types.KeyVersion2), body: make([]byte, types.StatV2Size)},
		{key: types.NewKey(1, 2, 1, types.ItemTypeDirectory, types.KeyVersion2), body: make([]byte, 40), count: 2},
		{key: types.NewKey(2, 3, 1, types.ItemTypeDirect, types.KeyVersion2), body: []byte("hello")},
	}
}

func hasMessage(messages []string, fragment string) bool {
	for _, m := range messages {
		if strings.Contains(m, fragment) {
			return true
		}
	}
	return false
}

func TestValidateNode(t *testing.T) {
	keys := []types.Key{
		types.NewKey(1, 2, 1, types.ItemTypeDirectory, types.KeyVersion2),
		types.NewKey(2, 5, 0, types.ItemTypeStat, types.KeyVersion2),
	}

	tests := []struct {
		name       string
		blockCount uint32
		build      func(t *testing.T) interfaces.TreeNodeReader
		wantValid  bool
		wantError  string
		wantWarn   string
	}{
		{
			name: "consistent leaf",
			build: func(t *testing.T) interfaces.TreeNodeReader {
				return withFreeSpace(t, createLeafTestData(validLeafItems()))
			},
			wantValid: true,
		},
		{
			name:       "consistent internal node",
			blockCount: 100,
			build: func(t *testing.T) interfaces.TreeNodeReader {
				return withFreeSpace(t, createInternalNodeTestData(2, keys, []uint32{20, 21, 22}))
			},
			wantValid: true,
		},
		{
			name: "empty leaf",
			build: func(t *testing.T) interfaces.TreeNodeReader {
				return withFreeSpace(t, createLeafTestData(nil))
			},
			wantError: "no items",
		},
		{
			name: "leaf keys out of order",
			build: func(t *testing.T) interfaces.TreeNodeReader {
				items := validLeafItems()
				items[0], items[2] = items[2], items[0]
				return withFreeSpace(t, createLeafTestData(items))
			},
			wantError: "does not follow",
		},
		{
			name: "item body overlapping headers",
			build: func(t *testing.T) interfaces.TreeNodeReader {
				data := createLeafTestData(validLeafItems())
				binary.LittleEndian.PutUint16(data[types.BlockHeaderSize+20:], 30)
				return withFreeSpace(t, data)
			},
			wantError: "outside",
		},
		{
			name: "gap between item bodies",
			build: func(t *testing.T) interfaces.TreeNodeReader {
				data := createLeafTestData(validLeafItems())
				h := data[types.BlockHeaderSize+2*types.ItemHeaderSize:]
				binary.LittleEndian.PutUint16(h[20:22], binary.LittleEndian.Uint16(h[20:22])-8)
				return withFreeSpace(t, data)
			},
			wantValid: true,
			wantWarn:  "expected",
		},
		{
			name: "directory item without entries",
			build: func(t *testing.T) interfaces.TreeNodeReader {
				items := validLeafItems()
				items[1].count = 0
				return withFreeSpace(t, createLeafTestData(items))
			},
			wantError: "no entries",
		},
		{
			name: "wrong free space",
			build: func(t *testing.T) interfaces.TreeNodeReader {
				data := createLeafTestData(validLeafItems())
				binary.LittleEndian.PutUint16(data[4:6], 7)
				node, err := NewTreeNodeReader(data, binary.LittleEndian)
				if err != nil {
					t.Fatalf("NewTreeNodeReader() error = %v", err)
				}
				return node
			},
			wantError: "free space is 7",
		},
		{
			name:       "child past end of volume",
			blockCount: 22,
			build: func(t *testing.T) interfaces.TreeNodeReader {
				return withFreeSpace(t, createInternalNodeTestData(2, keys, []uint32{20, 21, 22}))
			},
			wantError: "past the end",
		},
		{
			name: "child at block zero",
			build: func(t *testing.T) interfaces.TreeNodeReader {
				return withFreeSpace(t, createInternalNodeTestData(2, keys, []uint32{20, 0, 22}))
			},
			wantError: "block 0",
		},
		{
			name: "internal keys out of order",
			build: func(t *testing.T) interfaces.TreeNodeReader {
				return withFreeSpace(t, createInternalNodeTestData(2, []types.Key{keys[1], keys[0]}, []uint32{20, 21, 22}))
			},
			wantError: "does not follow",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewNodeValidator(tt.blockCount).ValidateNode(tt.build(t))

			if tt.wantError == "" && result.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (errors %v)", result.Valid, tt.wantValid, result.Errors)
			}
			if tt.wantError != "" {
				if result.Valid {
					t.Errorf("Valid = true, want false")
				}
				if !hasMessage(result.Errors, tt.wantError) {
					t.Errorf("Errors = %v, want one containing %q", result.Errors, tt.wantError)
				}
			}
			if tt.wantWarn != "" && !hasMessage(result.Warnings, tt.wantWarn) {
				t.Errorf("Warnings = %v, want one containing %q", result.Warnings, tt.wantWarn)
			}
		})
	}
}

func TestUsedSpace(t *testing.T) {
	node := withFreeSpace(t, createLeafTestData(validLeafItems()))
	want := 3*types.ItemHeaderSize + types.StatV2Size + 40 + 5
	if got := UsedSpace(node); got != want {
		t.Errorf("UsedSpace() = %d, want %d", got, want)
	}
}
