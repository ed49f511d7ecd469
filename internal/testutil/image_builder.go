// Package testutil synthesises small ReiserFS images in memory for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-reiserfs/internal/device"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// Stat modes written for synthesised objects
const (
	ModeDirectory uint16 = 0x41ED
	ModeRegular   uint16 = 0x81A4
	ModeSymlink   uint16 = 0xA1FF
)

// DefaultMtime is the modification time stamped on every stat item
const DefaultMtime uint32 = 1700000000

// Format selects the on-disk generation of the image
type Format int

const (
	// Format36 writes version 2 keys, 44 byte stat items and padded names
	Format36 Format = iota

	// Format35 writes version 1 keys and 32 byte stat items
	Format35
)

// Layout selects how file content is stored
type Layout int

const (
	// LayoutDirect stores content in direct items inside the leaves
	LayoutDirect Layout = iota

	// LayoutIndirect stores every block, including the last partial one, in data blocks
	LayoutIndirect

	// LayoutIndirectTail stores whole blocks indirectly and the remainder as a direct tail
	LayoutIndirectTail

	// LayoutSparse is LayoutIndirect with all-zero blocks written as holes
	LayoutSparse
)

// Entry is a directory entry as written to disk
type Entry struct {
	Name        string
	DirectoryID uint32
	ObjectID    uint32
	Hidden      bool
}

// Object is a file, directory or symlink added to the image
type Object struct {
	DirectoryID uint32
	ObjectID    uint32

	mode    uint16
	content []byte
	layout  Layout
	entries []Entry
}

// Entry returns the directory entry naming o
func (o *Object) Entry(name string) Entry {
	return Entry{Name: name, DirectoryID: o.DirectoryID, ObjectID: o.ObjectID}
}

// ImageBuilder collects objects and lays them out as a ReiserFS tree
type ImageBuilder struct {
	BlockSize int
	Format    Format
	Label     string
	UUID      [16]byte
	Mtime     uint32

	// MaxItemsPerLeaf caps items per leaf; 0 fills leaves by space
	MaxItemsPerLeaf int

	// MaxChildrenPerNode caps children per internal node; 0 fills by space
	MaxChildrenPerNode int

	// EntriesPerItem splits directories into several items, each starting a new leaf
	EntriesPerItem int

	// PointersPerItem splits indirect data into several items
	PointersPerItem int

	// DirectItemSize splits direct data into several items
	DirectItemSize int

	root         *Object
	objects      []*Object
	raw          []item
	nextObjectID uint32
}

type item struct {
	key         types.Key
	body        []byte
	entryCount  uint16
	version     uint16
	breakBefore bool
}

type nodeRef struct {
	block uint32
	key   types.Key
	used  int
}

// NewImageBuilder returns a builder holding only the root directory
func NewImageBuilder(blockSize int) *ImageBuilder {
	root := &Object{
		DirectoryID: types.RootDirectoryID,
		ObjectID:    types.RootObjectID,
		mode:        ModeDirectory,
	}
	root.entries = []Entry{
		{Name: ".", DirectoryID: root.DirectoryID, ObjectID: root.ObjectID},
		{Name: "..", DirectoryID: 0, ObjectID: 1},
	}

	return &ImageBuilder{
		BlockSize:    blockSize,
		Label:        "testvol",
		Mtime:        DefaultMtime,
		root:         root,
		objects:      []*Object{root},
		nextObjectID: 3,
	}
}

// Root returns the root directory
func (b *ImageBuilder) Root() *Object {
	return b.root
}

// AddDir creates a subdirectory of parent
func (b *ImageBuilder) AddDir(parent *Object, name string) *Object {
	dir := b.newObject(parent, ModeDirectory)
	dir.entries = []Entry{
		{Name: ".", DirectoryID: dir.DirectoryID, ObjectID: dir.ObjectID},
		{Name: "..", DirectoryID: parent.DirectoryID, ObjectID: parent.ObjectID},
	}
	parent.entries = append(parent.entries, dir.Entry(name))
	return dir
}

// AddFile creates a regular file in parent
func (b *ImageBuilder) AddFile(parent *Object, name string, content []byte, layout Layout) *Object {
	file := b.newObject(parent, ModeRegular)
	file.content = content
	file.layout = layout
	parent.entries = append(parent.entries, file.Entry(name))
	return file
}

// AddSymlink creates a symlink in parent pointing at target
func (b *ImageBuilder) AddSymlink(parent *Object, name, target string) *Object {
	link := b.newObject(parent, ModeSymlink)
	link.content = []byte(target)
	link.layout = LayoutDirect
	parent.entries = append(parent.entries, link.Entry(name))
	return link
}

// AddEntry appends a raw entry to parent, which may name a missing object
func (b *ImageBuilder) AddEntry(parent *Object, entry Entry) {
	parent.entries = append(parent.entries, entry)
}

// RemoveEntry drops every entry called name from parent
func (b *ImageBuilder) RemoveEntry(parent *Object, name string) {
	parent.entries = slices.DeleteFunc(parent.entries, func(e Entry) bool {
		return e.Name == name
	})
}

// AddItem places an arbitrary item in the tree
func (b *ImageBuilder) AddItem(key types.Key, body []byte, entryCount uint16) {
	b.raw = append(b.raw, item{key: key, body: body, entryCount: entryCount, version: b.itemVersion()})
}

func (b *ImageBuilder) newObject(parent *Object, mode uint16) *Object {
	o := &Object{DirectoryID: parent.ObjectID, ObjectID: b.nextObjectID, mode: mode}
	b.nextObjectID++
	b.objects = append(b.objects, o)
	return o
}

func (b *ImageBuilder) keyVersion() types.KeyVersion {
	if b.Format == Format35 {
		return types.KeyVersion1
	}
	return types.KeyVersion2
}

func (b *ImageBuilder) itemVersion() uint16 {
	if b.Format == Format35 {
		return 0
	}
	return 1
}

// Image is a built filesystem image
type Image struct {
	Data      []byte
	BlockSize int
	RootBlock uint32
	Height    int
	Leaves    []uint32
}

// Build lays out the tree and returns the image
func (b *ImageBuilder) Build() (*Image, error) {
	bs := b.BlockSize
	if bs < types.SectorSize || bs%types.SectorSize != 0 || bs > 1<<16 {
		return nil, fmt.Errorf("invalid block size %d", bs)
	}

	next := uint32(types.SuperblockOffset/bs) + 2
	blocks := make(map[uint32][]byte)
	alloc := func(data []byte) uint32 {
		n := next
		next++
		block := make([]byte, bs)
		copy(block, data)
		blocks[n] = block
		return n
	}

	var items []item
	for _, o := range b.objects {
		items = append(items, b.objectItems(o, alloc)...)
	}
	items = append(items, b.raw...)
	slices.SortStableFunc(items, func(x, y item) int {
		return types.CompareKeys(x.key, y.key)
	})
	for i := 1; i < len(items); i++ {
		if types.CompareKeys(items[i-1].key, items[i].key) == 0 {
			return nil, fmt.Errorf("duplicate key %s", items[i].key)
		}
	}

	leaves, err := b.packLeaves(items)
	if err != nil {
		return nil, err
	}

	img := &Image{BlockSize: bs}
	level := make([]nodeRef, 0, len(leaves))
	for _, leaf := range leaves {
		data, used := b.encodeLeaf(leaf)
		n := alloc(data)
		img.Leaves = append(img.Leaves, n)
		level = append(level, nodeRef{block: n, key: leaf[0].key, used: used})
	}

	height := 1
	for len(level) > 1 {
		height++
		level = b.buildLevel(level, uint16(height), alloc)
	}

	img.Data = make([]byte, int(next)*bs)
	for n, block := range blocks {
		copy(img.Data[int(n)*bs:], block)
	}
	img.RootBlock = level[0].block
	img.Height = height
	b.writeSuperblock(img.Data[types.SuperblockOffset:], next, img.RootBlock, uint16(height))

	return img, nil
}

func (b *ImageBuilder) objectItems(o *Object, alloc func([]byte) uint32) []item {
	version := b.keyVersion()
	var items []item

	switch o.mode {
	case ModeDirectory:
		chunk := len(o.entries)
		if b.EntriesPerItem > 0 {
			chunk = b.EntriesPerItem
		}
		offsets := entryOffsets(o.entries)
		size := 0
		for start := 0; start < len(o.entries); start += chunk {
			end := min(start+chunk, len(o.entries))
			body := b.encodeDirectoryItem(o.entries[start:end], offsets[start:end])
			size += len(body)
			items = append(items, item{
				key:         types.NewKey(o.DirectoryID, o.ObjectID, offsets[start], types.ItemTypeDirectory, version),
				body:        body,
				entryCount:  uint16(end - start),
				version:     b.itemVersion(),
				breakBefore: start > 0,
			})
		}
		items = append(items, b.statItem(o, uint64(size), 2))

	default:
		items = append(items, b.statItem(o, uint64(len(o.content)), 1))
		items = append(items, b.dataItems(o, alloc)...)
	}

	return items
}

// entryOffsets assigns "." and ".." their fixed hashes and spaces the rest
// in insertion order
func entryOffsets(entries []Entry) []uint64 {
	offsets := make([]uint64, len(entries))
	for i := range entries {
		switch i {
		case 0:
			offsets[i] = types.DirectoryItemOffset
		case 1:
			offsets[i] = 2
		default:
			offsets[i] = uint64(i-1) << 7
		}
	}
	return offsets
}

func (b *ImageBuilder) dataItems(o *Object, alloc func([]byte) uint32) []item {
	version := b.keyVersion()
	bs := b.BlockSize
	content := o.content
	var items []item

	direct := func(from int, data []byte) {
		chunk := len(data)
		if b.DirectItemSize > 0 {
			chunk = b.DirectItemSize
		}
		for start := 0; start < len(data); start += chunk {
			end := min(start+chunk, len(data))
			items = append(items, item{
				key:     types.NewKey(o.DirectoryID, o.ObjectID, uint64(from+start)+1, types.ItemTypeDirect, version),
				body:    data[start:end],
				version: b.itemVersion(),
			})
		}
	}

	if len(content) == 0 {
		return nil
	}
	if o.layout == LayoutDirect {
		direct(0, content)
		return items
	}

	indirectLen := len(content)
	if o.layout == LayoutIndirectTail {
		indirectLen = len(content) / bs * bs
	}

	var pointers []uint32
	for start := 0; start < indirectLen; start += bs {
		data := content[start:min(start+bs, indirectLen)]
		if o.layout == LayoutSparse && allZero(data) {
			pointers = append(pointers, 0)
			continue
		}
		pointers = append(pointers, alloc(data))
	}

	chunk := len(pointers)
	if b.PointersPerItem > 0 {
		chunk = b.PointersPerItem
	}
	for start := 0; start < len(pointers); start += chunk {
		end := min(start+chunk, len(pointers))
		body := make([]byte, (end-start)*types.IndirectPointerSize)
		for i, p := range pointers[start:end] {
			binary.LittleEndian.PutUint32(body[i*types.IndirectPointerSize:], p)
		}
		items = append(items, item{
			key:     types.NewKey(o.DirectoryID, o.ObjectID, uint64(start*bs)+1, types.ItemTypeIndirect, version),
			body:    body,
			version: b.itemVersion(),
		})
	}

	if indirectLen < len(content) {
		direct(indirectLen, content[indirectLen:])
	}
	return items
}

func (b *ImageBuilder) statItem(o *Object, size uint64, links uint32) item {
	var body []byte
	if b.Format == Format35 {
		body = make([]byte, types.StatV1Size)
		binary.LittleEndian.PutUint16(body[0:2], o.mode)
		binary.LittleEndian.PutUint16(body[2:4], uint16(links))
		binary.LittleEndian.PutUint32(body[8:12], uint32(size))
		binary.LittleEndian.PutUint32(body[12:16], b.Mtime)
		binary.LittleEndian.PutUint32(body[16:20], b.Mtime)
		binary.LittleEndian.PutUint32(body[20:24], b.Mtime)
		binary.LittleEndian.PutUint32(body[28:32], 1)
	} else {
		body = make([]byte, types.StatV2Size)
		binary.LittleEndian.PutUint16(body[0:2], o.mode)
		binary.LittleEndian.PutUint32(body[4:8], links)
		binary.LittleEndian.PutUint64(body[8:16], size)
		binary.LittleEndian.PutUint32(body[24:28], b.Mtime)
		binary.LittleEndian.PutUint32(body[28:32], b.Mtime)
		binary.LittleEndian.PutUint32(body[32:36], b.Mtime)
		binary.LittleEndian.PutUint32(body[36:40], uint32((size+511)/512))
	}

	return item{
		key:     types.NewKey(o.DirectoryID, o.ObjectID, 0, types.ItemTypeStat, b.keyVersion()),
		body:    body,
		version: b.itemVersion(),
	}
}

// encodeDirectoryItem writes entry headers front to back and names back to
// front, entry 0's name ending at the item end
func (b *ImageBuilder) encodeDirectoryItem(entries []Entry, offsets []uint64) []byte {
	total := len(entries) * types.DirectoryHeaderSize
	for _, e := range entries {
		total += b.nameLength(e.Name)
	}

	body := make([]byte, total)
	end := total
	for i, e := range entries {
		end -= b.nameLength(e.Name)
		copy(body[end:], e.Name)

		state := types.DirectoryEntryVisible
		if e.Hidden {
			state = 0
		}

		h := body[i*types.DirectoryHeaderSize:]
		binary.LittleEndian.PutUint32(h[0:4], uint32(offsets[i]))
		binary.LittleEndian.PutUint32(h[4:8], e.DirectoryID)
		binary.LittleEndian.PutUint32(h[8:12], e.ObjectID)
		binary.LittleEndian.PutUint16(h[12:14], uint16(end))
		binary.LittleEndian.PutUint16(h[14:16], state)
	}
	return body
}

func (b *ImageBuilder) nameLength(name string) int {
	if b.Format == Format35 {
		return len(name)
	}
	return (len(name) + 7) &^ 7
}

func (b *ImageBuilder) packLeaves(items []item) ([][]item, error) {
	capacity := b.BlockSize - types.BlockHeaderSize

	var leaves [][]item
	var current []item
	used := 0
	for _, it := range items {
		need := types.ItemHeaderSize + len(it.body)
		if need > capacity {
			return nil, fmt.Errorf("item %s of %d bytes does not fit a %d byte block", it.key, len(it.body), b.BlockSize)
		}

		full := used+need > capacity || (b.MaxItemsPerLeaf > 0 && len(current) >= b.MaxItemsPerLeaf)
		if len(current) > 0 && (full || it.breakBefore) {
			leaves = append(leaves, current)
			current, used = nil, 0
		}
		current = append(current, it)
		used += need
	}
	if len(current) > 0 {
		leaves = append(leaves, current)
	}
	if len(leaves) == 0 {
		return nil, fmt.Errorf("image has no items")
	}
	return leaves, nil
}

func (b *ImageBuilder) encodeLeaf(items []item) ([]byte, int) {
	bs := b.BlockSize
	data := make([]byte, bs)
	binary.LittleEndian.PutUint16(data[0:2], types.LeafLevel)
	binary.LittleEndian.PutUint16(data[2:4], uint16(len(items)))

	location := bs
	used := 0
	for i, it := range items {
		location -= len(it.body)
		copy(data[location:], it.body)

		h := data[types.BlockHeaderSize+i*types.ItemHeaderSize:]
		copy(h[0:16], it.key.Encode())
		binary.LittleEndian.PutUint16(h[16:18], it.entryCount)
		binary.LittleEndian.PutUint16(h[18:20], uint16(len(it.body)))
		binary.LittleEndian.PutUint16(h[20:22], uint16(location))
		binary.LittleEndian.PutUint16(h[22:24], it.version)
		used += types.ItemHeaderSize + len(it.body)
	}
	binary.LittleEndian.PutUint16(data[4:6], uint16(bs-types.BlockHeaderSize-used))
	return data, used
}

func (b *ImageBuilder) buildLevel(children []nodeRef, level uint16, alloc func([]byte) uint32) []nodeRef {
	bs := b.BlockSize
	fanout := (bs-types.BlockHeaderSize-types.DiskChildSize)/(types.KeySize+types.DiskChildSize) + 1
	if b.MaxChildrenPerNode >= 2 && b.MaxChildrenPerNode < fanout {
		fanout = b.MaxChildrenPerNode
	}

	var parents []nodeRef
	for start := 0; start < len(children); start += fanout {
		group := children[start:min(start+fanout, len(children))]
		keys := len(group) - 1

		data := make([]byte, bs)
		binary.LittleEndian.PutUint16(data[0:2], level)
		binary.LittleEndian.PutUint16(data[2:4], uint16(keys))
		for i, c := range group[1:] {
			copy(data[types.BlockHeaderSize+i*types.KeySize:], c.key.Encode())
		}
		base := types.BlockHeaderSize + keys*types.KeySize
		for i, c := range group {
			binary.LittleEndian.PutUint32(data[base+i*types.DiskChildSize:], c.block)
			binary.LittleEndian.PutUint16(data[base+i*types.DiskChildSize+4:], uint16(c.used))
		}
		used := keys*types.KeySize + len(group)*types.DiskChildSize
		binary.LittleEndian.PutUint16(data[4:6], uint16(bs-types.BlockHeaderSize-used))

		parents = append(parents, nodeRef{block: alloc(data), key: group[0].key, used: used})
	}
	return parents
}

func (b *ImageBuilder) writeSuperblock(data []byte, blockCount, root uint32, height uint16) {
	le := binary.LittleEndian
	le.PutUint32(data[0:4], blockCount)
	le.PutUint32(data[4:8], 0)
	le.PutUint32(data[8:12], root)
	le.PutUint16(data[44:46], uint16(b.BlockSize))
	le.PutUint16(data[46:48], 972)
	le.PutUint16(data[48:50], 2)
	le.PutUint16(data[50:52], types.StateValid)
	le.PutUint32(data[64:68], types.HashR5)
	le.PutUint16(data[68:70], height)
	le.PutUint16(data[70:72], 1)

	if b.Format == Format35 {
		copy(data[52:64], types.MagicReiserFS35)
		le.PutUint16(data[72:74], types.FormatVersion35)
	} else {
		copy(data[52:64], types.MagicReiserFS36)
		le.PutUint16(data[72:74], types.FormatVersion36)
	}

	copy(data[84:100], b.UUID[:])
	copy(data[100:116], b.Label)
}

// Block returns the bytes of block n
func (img *Image) Block(n uint32) []byte {
	start := int(n) * img.BlockSize
	return img.Data[start : start+img.BlockSize]
}

// SetLevel overwrites the level field of a tree node
func (img *Image) SetLevel(block uint32, level uint16) {
	binary.LittleEndian.PutUint16(img.Block(block)[0:2], level)
}

// Device wraps the image in a block device closed at test cleanup
func (img *Image) Device(t testing.TB) *device.ImageDevice {
	return NewDevice(t, img.Data)
}

// NewDevice wraps raw bytes in a block device closed at test cleanup
func NewDevice(t testing.TB, data []byte) *device.ImageDevice {
	t.Helper()
	dev, err := device.NewImageDevice(bytes.NewReader(data), int64(len(data)), device.DefaultDeviceConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })
	return dev
}

func allZero(data []byte) bool {
	for _, c := range data {
		if c != 0 {
			return false
		}
	}
	return true
}
