// Package fuse exports a mounted ReiserFS volume read-only through the
// kernel FUSE interface.
//
// Every object is exposed under a stable inode number built from its key:
// the directory id in the upper 32 bits and the object id in the lower
// 32. Lookups never follow symlinks; the kernel resolves them through
// Readlink. Operations that would modify the volume fail with EROFS.
//
// The filesystem is immutable once mounted, so attributes and directory
// entries are cached by the kernel for EntryTimeout and AttrTimeout and
// opened files keep the page cache.
package fuse
