package types

// DirectoryEntryHeader is one fixed-size header of a directory item's entry array.
type DirectoryEntryHeader struct {
	// Offset is the hash and generation of the entry name
	Offset uint32

	// DirectoryID is the parent directory id of the target object
	DirectoryID uint32

	// ObjectID is the object id of the target
	ObjectID uint32

	// Location is the byte offset of the name within the item body
	Location uint16

	// State holds the visibility bit
	State uint16
}

// Visible reports whether the entry is live
func (h DirectoryEntryHeader) Visible() bool {
	return h.State&DirectoryEntryVisible != 0
}

// DirectoryEntry is a decoded entry with its owned name.
type DirectoryEntry struct {
	DirectoryEntryHeader

	// Name is the entry name up to the first NUL byte
	Name string
}

// StatKey returns the key of the stat item the entry points at
func (e DirectoryEntry) StatKey() Key {
	return NewKey(e.DirectoryID, e.ObjectID, 0, ItemTypeStat, KeyVersion2)
}

// DirectoryKey returns the key of the first directory item the entry would own
func (e DirectoryEntry) DirectoryKey() Key {
	return NewKey(e.DirectoryID, e.ObjectID, DirectoryItemOffset, ItemTypeDirectory, KeyVersion2)
}
