package data_streams

import (
	"encoding/binary"
	"testing"
)

func createIndirectItemTestData(blocks ...uint32) []byte {
	data := make([]byte, len(blocks)*4)
	for i, block := range blocks {
		binary.LittleEndian.PutUint32(data[i*4:], block)
	}
	return data
}

func TestNewIndirectItemReader(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		expected    []uint32
		expectError bool
	}{
		{
			name:     "single block",
			data:     createIndirectItemTestData(100),
			expected: []uint32{100},
		},
		{
			name:     "with hole",
			data:     createIndirectItemTestData(100, 0, 102),
			expected: []uint32{100, 0, 102},
		},
		{
			name:     "trailing partial pointer ignored",
			data:     append(createIndirectItemTestData(7, 8), 0xFF, 0xFF),
			expected: []uint32{7, 8},
		},
		{
			name:        "empty",
			data:        nil,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, err := NewIndirectItemReader(tt.data, binary.LittleEndian)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}

			if err != nil {
				t.Fatalf("NewIndirectItemReader failed: %v", err)
			}
			if reader.Count() != len(tt.expected) {
				t.Fatalf("Expected %d pointers, got %d", len(tt.expected), reader.Count())
			}
			for i, block := range tt.expected {
				if reader.Block(i) != block {
					t.Errorf("Block(%d): expected %d, got %d", i, block, reader.Block(i))
				}
			}
			if reader.Block(len(tt.expected)) != 0 {
				t.Error("Expected 0 for out of range pointer")
			}
		})
	}
}
