package types

import "errors"

// Error kinds returned by the filesystem core. Call sites wrap them with
// context; match with errors.Is.
var (
	// ErrBadFilesystem reports a missing magic, a device too small for the
	// superblock or a corrupted tree.
	ErrBadFilesystem = errors.New("not a valid ReiserFS filesystem")

	// ErrBadFileType reports an operation on the wrong kind of object.
	ErrBadFileType = errors.New("bad file type")

	// ErrRead reports a device failure or an item that could not be found.
	ErrRead = errors.New("read error")

	// ErrOutOfMemory reports a size too large to allocate.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrOutOfRange reports a device read past the end of the device.
	ErrOutOfRange = errors.New("attempt to read outside of the device")

	// ErrFileNotFound reports a missing path component.
	ErrFileNotFound = errors.New("file not found")

	// ErrNotDirectory reports a path component that is not a directory.
	ErrNotDirectory = errors.New("not a directory")

	// ErrSymlinkLoop reports too many levels of symbolic links.
	ErrSymlinkLoop = errors.New("too deep nesting of symlinks")
)
