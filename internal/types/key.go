package types

import (
	"encoding/binary"
	"fmt"
)

// ItemType identifies the kind of item a key addresses.
// The declaration order is the canonical comparison order shared by both
// on-disk key formats.
type ItemType uint8

const (
	// ItemTypeStat marks a stat item holding file metadata.
	ItemTypeStat ItemType = iota

	// ItemTypeDirectory marks a directory item holding an entry array.
	ItemTypeDirectory

	// ItemTypeDirect marks a direct item holding file bytes inline.
	ItemTypeDirect

	// ItemTypeIndirect marks an indirect item holding block pointers.
	ItemTypeIndirect

	// ItemTypeAny matches both direct and indirect items when searching.
	ItemTypeAny

	// ItemTypeUnknown is returned for tags neither format recognises.
	ItemTypeUnknown
)

// String returns a short name for the item type
func (t ItemType) String() string {
	switch t {
	case ItemTypeStat:
		return "stat"
	case ItemTypeDirectory:
		return "directory"
	case ItemTypeDirect:
		return "direct"
	case ItemTypeIndirect:
		return "indirect"
	case ItemTypeAny:
		return "any"
	default:
		return "unknown"
	}
}

// KeyVersion is the on-disk key format.
type KeyVersion uint8

const (
	// KeyVersion1 is the 3.5 format: 32-bit offset and 32-bit type tag.
	KeyVersion1 KeyVersion = 1

	// KeyVersion2 is the 3.6 format: 60-bit offset and 4-bit type packed in 64 bits.
	KeyVersion2 KeyVersion = 2
)

// Version 1 type tags.
const (
	KeyV1TypeStat        uint32 = 0
	KeyV1TypeAny         uint32 = 555
	KeyV1TypeDirectory   uint32 = 500
	KeyV1TypeDirect      uint32 = 0xFFFFFFFF
	KeyV1TypeDirectAlt   uint32 = 0x20000000
	KeyV1TypeIndirect    uint32 = 0xFFFFFFFE
	KeyV1TypeIndirectAlt uint32 = 0x10000000
)

// Version 2 type nibbles and field layout.
const (
	KeyV2TypeStat      uint64 = 0
	KeyV2TypeIndirect  uint64 = 1
	KeyV2TypeDirect    uint64 = 2
	KeyV2TypeDirectory uint64 = 3
	KeyV2TypeAny       uint64 = 15

	KeyV2TypeShift  = 60
	KeyV2OffsetMask = ^uint64(0) >> 4
)

// KeySize is the on-disk size of a key in bytes.
const KeySize = 16

// KeyBody is the version specific half of a key. It is implemented by
// KeyV1 and KeyV2 only.
type KeyBody interface {
	// Version returns the on-disk format of this body
	Version() KeyVersion

	// Offset returns the byte offset (1-based for data items)
	Offset() uint64

	// Type returns the decoded item type
	Type() ItemType

	withOffset(value uint64) KeyBody
	withType(t ItemType) KeyBody
	encode(b []byte)
}

// KeyV1 is a 3.5 format key body.
type KeyV1 struct {
	RawOffset uint32
	RawType   uint32
}

// KeyV2 is a 3.6 format key body.
type KeyV2 struct {
	OffsetType uint64
}

var (
	_ KeyBody = KeyV1{}
	_ KeyBody = KeyV2{}
)

// Version returns KeyVersion1
func (k KeyV1) Version() KeyVersion { return KeyVersion1 }

// Offset returns the 32-bit offset widened to 64 bits
func (k KeyV1) Offset() uint64 { return uint64(k.RawOffset) }

// Type returns the item type encoded by the tag
func (k KeyV1) Type() ItemType { return v1ItemType(k.RawType) }

func (k KeyV1) withOffset(value uint64) KeyBody {
	k.RawOffset = uint32(value)
	return k
}

func (k KeyV1) withType(t ItemType) KeyBody {
	tag, ok := v1Tag(t)
	if !ok {
		return k
	}
	k.RawType = tag
	return k
}

func (k KeyV1) encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], k.RawOffset)
	binary.LittleEndian.PutUint32(b[4:8], k.RawType)
}

// Version returns KeyVersion2
func (k KeyV2) Version() KeyVersion { return KeyVersion2 }

// Offset returns the low 60 bits of the packed field
func (k KeyV2) Offset() uint64 { return k.OffsetType & KeyV2OffsetMask }

// Type returns the item type encoded by the top 4 bits
func (k KeyV2) Type() ItemType { return v2ItemType(k.OffsetType >> KeyV2TypeShift) }

func (k KeyV2) withOffset(value uint64) KeyBody {
	k.OffsetType = (k.OffsetType &^ KeyV2OffsetMask) | (value & KeyV2OffsetMask)
	return k
}

func (k KeyV2) withType(t ItemType) KeyBody {
	nibble, ok := v2Nibble(t)
	if !ok {
		return k
	}
	k.OffsetType = (k.OffsetType & KeyV2OffsetMask) | (nibble << KeyV2TypeShift)
	return k
}

func (k KeyV2) encode(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], k.OffsetType)
}

// Key identifies an item in the tree: (directory id, object id, offset, type).
// A nil Body behaves as an all-zero version 2 body.
type Key struct {
	DirectoryID uint32
	ObjectID    uint32
	Body        KeyBody
}

// NewKey builds a key in the requested format. An unknown item type leaves
// the type bits zero (Stat).
func NewKey(directoryID, objectID uint32, offset uint64, t ItemType, version KeyVersion) Key {
	k := Key{DirectoryID: directoryID, ObjectID: objectID, Body: emptyBody(version)}
	k.SetOffset(offset)
	k.SetType(t, version)
	return k
}

// DecodeKey decodes a 16-byte on-disk key. The version 1 layout is chosen
// when the 32-bit word at bytes 12..16 is a recognised version 1 tag.
func DecodeKey(data []byte) (Key, error) {
	if len(data) < KeySize {
		return Key{}, fmt.Errorf("data too small for key: %d bytes", len(data))
	}

	k := Key{
		DirectoryID: binary.LittleEndian.Uint32(data[0:4]),
		ObjectID:    binary.LittleEndian.Uint32(data[4:8]),
	}

	tag := binary.LittleEndian.Uint32(data[12:16])
	if v1ItemType(tag) != ItemTypeUnknown {
		k.Body = KeyV1{
			RawOffset: binary.LittleEndian.Uint32(data[8:12]),
			RawType:   tag,
		}
	} else {
		k.Body = KeyV2{OffsetType: binary.LittleEndian.Uint64(data[8:16])}
	}

	return k, nil
}

// Encode returns the 16-byte on-disk form of the key
func (k Key) Encode() []byte {
	b := make([]byte, KeySize)
	binary.LittleEndian.PutUint32(b[0:4], k.DirectoryID)
	binary.LittleEndian.PutUint32(b[4:8], k.ObjectID)
	k.body().encode(b[8:16])
	return b
}

// Version returns the key format
func (k Key) Version() KeyVersion { return k.body().Version() }

// Offset returns the key offset
func (k Key) Offset() uint64 { return k.body().Offset() }

// Type returns the item type
func (k Key) Type() ItemType { return k.body().Type() }

// SetOffset replaces the offset without touching the type bits.
// Version 1 keys keep the low 32 bits, version 2 keys the low 60 bits.
func (k *Key) SetOffset(value uint64) {
	k.Body = k.body().withOffset(value)
}

// SetType replaces the type using the given format. When the format differs
// from the key's current one the key is re-encoded keeping its offset.
// ItemTypeUnknown leaves the key unchanged.
func (k *Key) SetType(t ItemType, version KeyVersion) {
	if t >= ItemTypeUnknown {
		return
	}
	body := k.body()
	if body.Version() != version {
		body = emptyBody(version).withOffset(body.Offset())
	}
	k.Body = body.withType(t)
}

// SameObject reports whether both keys address the same object
func (k Key) SameObject(other Key) bool {
	return k.DirectoryID == other.DirectoryID && k.ObjectID == other.ObjectID
}

// String returns a human readable form of the key
func (k Key) String() string {
	return fmt.Sprintf("[%d %d %d %s v%d]", k.DirectoryID, k.ObjectID, k.Offset(), k.Type(), k.Version())
}

func (k Key) body() KeyBody {
	if k.Body == nil {
		return KeyV2{}
	}
	return k.Body
}

// CompareKeys orders keys by directory id, object id, offset and type.
// ItemTypeAny compares equal to direct and indirect items.
// Returns -1, 0 or 1.
func CompareKeys(a, b Key) int {
	switch {
	case a.DirectoryID < b.DirectoryID:
		return -1
	case a.DirectoryID > b.DirectoryID:
		return 1
	}

	switch {
	case a.ObjectID < b.ObjectID:
		return -1
	case a.ObjectID > b.ObjectID:
		return 1
	}

	offsetA, offsetB := a.Offset(), b.Offset()
	switch {
	case offsetA < offsetB:
		return -1
	case offsetA > offsetB:
		return 1
	}

	typeA, typeB := a.Type(), b.Type()
	if (typeA == ItemTypeAny && isDataType(typeB)) || (typeB == ItemTypeAny && isDataType(typeA)) {
		return 0
	}
	switch {
	case typeA < typeB:
		return -1
	case typeA > typeB:
		return 1
	}
	return 0
}

func isDataType(t ItemType) bool {
	return t == ItemTypeDirect || t == ItemTypeIndirect
}

func emptyBody(version KeyVersion) KeyBody {
	if version == KeyVersion1 {
		return KeyV1{}
	}
	return KeyV2{}
}

func v1ItemType(tag uint32) ItemType {
	switch tag {
	case KeyV1TypeStat:
		return ItemTypeStat
	case KeyV1TypeAny:
		return ItemTypeAny
	case KeyV1TypeDirectory:
		return ItemTypeDirectory
	case KeyV1TypeDirect, KeyV1TypeDirectAlt:
		return ItemTypeDirect
	case KeyV1TypeIndirect, KeyV1TypeIndirectAlt:
		return ItemTypeIndirect
	}
	return ItemTypeUnknown
}

func v1Tag(t ItemType) (uint32, bool) {
	switch t {
	case ItemTypeStat:
		return KeyV1TypeStat, true
	case ItemTypeAny:
		return KeyV1TypeAny, true
	case ItemTypeDirectory:
		return KeyV1TypeDirectory, true
	case ItemTypeDirect:
		return KeyV1TypeDirect, true
	case ItemTypeIndirect:
		return KeyV1TypeIndirect, true
	}
	return 0, false
}

func v2ItemType(nibble uint64) ItemType {
	switch nibble {
	case KeyV2TypeStat:
		return ItemTypeStat
	case KeyV2TypeAny:
		return ItemTypeAny
	case KeyV2TypeDirectory:
		return ItemTypeDirectory
	case KeyV2TypeDirect:
		return ItemTypeDirect
	case KeyV2TypeIndirect:
		return ItemTypeIndirect
	}
	return ItemTypeUnknown
}

func v2Nibble(t ItemType) (uint64, bool) {
	switch t {
	case ItemTypeStat:
		return KeyV2TypeStat, true
	case ItemTypeAny:
		return KeyV2TypeAny, true
	case ItemTypeDirectory:
		return KeyV2TypeDirectory, true
	case ItemTypeDirect:
		return KeyV2TypeDirect, true
	case ItemTypeIndirect:
		return KeyV2TypeIndirect, true
	}
	return 0, false
}
