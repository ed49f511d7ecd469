package fuse

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-reiserfs/internal/services"
	"github.com/deploymenttheory/go-reiserfs/internal/testutil"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

func sampleFS(t *testing.T) *services.FileSystem {
	t.Helper()
	b := testutil.NewImageBuilder(1024)
	root := b.Root()
	b.AddFile(root, "hello.txt", []byte("hello world"), testutil.LayoutDirect)
	etc := b.AddDir(root, "etc")
	b.AddFile(etc, "big.bin", make([]byte, 5000), testutil.LayoutSparse)
	b.AddSymlink(root, "link", "etc/big.bin")

	img, err := b.Build()
	require.NoError(t, err)
	fsys, err := services.Mount(img.Device(t))
	require.NoError(t, err)
	return fsys
}

// bridgedRoot attaches the root to a node bridge so Lookup can create inodes
func bridgedRoot(t *testing.T) *Node {
	t.Helper()
	root, err := NewRoot(sampleFS(t), nil)
	require.NoError(t, err)
	gofuse.NewNodeFS(root, &gofuse.Options{})
	return root
}

func lookup(t *testing.T, parent *Node, name string) (*Node, fuse.EntryOut) {
	t.Helper()
	var out fuse.EntryOut
	inode, errno := parent.Lookup(context.Background(), name, &out)
	require.Equal(t, syscall.Errno(0), errno)
	child, ok := inode.Operations().(*Node)
	require.True(t, ok)
	return child, out
}

func TestIno(t *testing.T) {
	key := types.NewKey(7, 42, 0, types.ItemTypeStat, types.KeyVersion2)
	assert.Equal(t, uint64(7)<<32|42, Ino(key))
}

func TestMode(t *testing.T) {
	tests := []struct {
		name string
		node services.Node
		want uint32
	}{
		{"directory", services.Node{FileType: types.FileTypeDirectory, Mode: testutil.ModeDirectory}, syscall.S_IFDIR | 0o755},
		{"directory without stat", services.Node{FileType: types.FileTypeDirectory}, syscall.S_IFDIR | 0o555},
		{"file", services.Node{FileType: types.FileTypeRegular, Mode: testutil.ModeRegular}, syscall.S_IFREG | 0o644},
		{"file without stat", services.Node{FileType: types.FileTypeRegular}, syscall.S_IFREG | 0o444},
		{"symlink", services.Node{FileType: types.FileTypeSymlink, Mode: testutil.ModeSymlink}, syscall.S_IFLNK | 0o777},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Mode(&tt.node))
		})
	}
}

func TestToErrno(t *testing.T) {
	assert.Equal(t, syscall.Errno(0), toErrno(nil))
	assert.Equal(t, syscall.ENOENT, toErrno(types.ErrFileNotFound))
	assert.Equal(t, syscall.ENOTDIR, toErrno(types.ErrNotDirectory))
	assert.Equal(t, syscall.ELOOP, toErrno(types.ErrSymlinkLoop))
	assert.Equal(t, syscall.EIO, toErrno(types.ErrRead))
}

func TestReaddir(t *testing.T) {
	root := bridgedRoot(t)

	stream, errno := root.Readdir(context.Background())
	require.Equal(t, syscall.Errno(0), errno)

	var names []string
	modes := map[string]uint32{}
	for stream.HasNext() {
		entry, errno := stream.Next()
		require.Equal(t, syscall.Errno(0), errno)
		names = append(names, entry.Name)
		modes[entry.Name] = entry.Mode
		assert.NotZero(t, entry.Ino)
	}
	stream.Close()

	assert.Equal(t, []string{"hello.txt", "etc", "link"}, names)
	assert.Equal(t, uint32(syscall.S_IFREG), modes["hello.txt"])
	assert.Equal(t, uint32(syscall.S_IFDIR), modes["etc"])
	assert.Equal(t, uint32(syscall.S_IFLNK), modes["link"])
}

func TestLookupAndRead(t *testing.T) {
	root := bridgedRoot(t)
	ctx := context.Background()

	hello, out := lookup(t, root, "hello.txt")
	assert.Equal(t, uint64(len("hello world")), out.Size)
	assert.Equal(t, uint32(syscall.S_IFREG|0o644), out.Mode)
	assert.Equal(t, uint32(1), out.Nlink)
	assert.Equal(t, uint64(testutil.DefaultMtime), out.Mtime)
	assert.Equal(t, Ino(hello.node.Key()), out.Ino)

	_, _, errno := hello.Open(ctx, syscall.O_RDONLY)
	require.Equal(t, syscall.Errno(0), errno)
	_, _, errno = hello.Open(ctx, syscall.O_WRONLY)
	assert.Equal(t, syscall.EROFS, errno)

	res, errno := hello.Read(ctx, nil, make([]byte, 64), 6)
	require.Equal(t, syscall.Errno(0), errno)
	data, status := res.Bytes(nil)
	require.True(t, status.Ok())
	assert.Equal(t, "world", string(data))

	etc, out := lookup(t, root, "etc")
	assert.Equal(t, uint32(syscall.S_IFDIR|0o755), out.Mode)
	_, _, errno = etc.Open(ctx, syscall.O_RDONLY)
	assert.Equal(t, syscall.EISDIR, errno)

	big, out := lookup(t, etc, "big.bin")
	assert.Equal(t, uint64(5000), out.Size)
	res, errno = big.Read(ctx, nil, make([]byte, 8192), 0)
	require.Equal(t, syscall.Errno(0), errno)
	assert.Equal(t, 5000, res.Size())

	var missing fuse.EntryOut
	_, errno = root.Lookup(ctx, "missing", &missing)
	assert.Equal(t, syscall.ENOENT, errno)
	_, errno = hello.Lookup(ctx, "child", &missing)
	assert.Equal(t, syscall.ENOTDIR, errno)
}

func TestReadlink(t *testing.T) {
	root := bridgedRoot(t)
	ctx := context.Background()

	link, out := lookup(t, root, "link")
	assert.Equal(t, uint32(syscall.S_IFLNK|0o777), out.Mode)

	target, errno := link.Readlink(ctx)
	require.Equal(t, syscall.Errno(0), errno)
	assert.Equal(t, "etc/big.bin", string(target))

	hello, _ := lookup(t, root, "hello.txt")
	_, errno = hello.Readlink(ctx)
	assert.Equal(t, syscall.EINVAL, errno)
}

func TestReadOnly(t *testing.T) {
	root := bridgedRoot(t)
	ctx := context.Background()

	var entry fuse.EntryOut
	_, errno := root.Mkdir(ctx, "new", 0o755, &entry)
	assert.Equal(t, syscall.EROFS, errno)
	_, _, _, errno = root.Create(ctx, "new.txt", 0, 0o644, &entry)
	assert.Equal(t, syscall.EROFS, errno)
	assert.Equal(t, syscall.EROFS, root.Unlink(ctx, "hello.txt"))
	assert.Equal(t, syscall.EROFS, root.Rmdir(ctx, "etc"))
	assert.Equal(t, syscall.EROFS, root.Rename(ctx, "hello.txt", root, "bye.txt", 0))
	assert.Equal(t, syscall.EROFS, root.Setattr(ctx, nil, &fuse.SetAttrIn{}, &fuse.AttrOut{}))
}

func TestStatfs(t *testing.T) {
	root := bridgedRoot(t)

	var out fuse.StatfsOut
	require.Equal(t, syscall.Errno(0), root.Statfs(context.Background(), &out))
	assert.Equal(t, uint32(1024), out.Bsize)
	assert.NotZero(t, out.Blocks)
	assert.Equal(t, uint32(types.MaxNameLength), out.NameLen)
}

func TestMountValidation(t *testing.T) {
	_, err := Mount(Options{})
	require.Error(t, err)

	_, err = Mount(Options{Mountpoint: t.TempDir()})
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = Mount(Options{Mountpoint: file, FileSystem: sampleFS(t)})
	require.Error(t, err)
}

func TestMountServesFiles(t *testing.T) {
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("skipping: /dev/fuse not available")
	}

	mountpoint := t.TempDir()
	server, err := Mount(Options{Mountpoint: mountpoint, FileSystem: sampleFS(t)})
	if err != nil {
		t.Skipf("skipping: mount failed: %v", err)
	}
	t.Cleanup(func() {
		if err := server.Unmount(); err != nil {
			t.Errorf("Unmount: %v", err)
		}
	})

	data, err := os.ReadFile(filepath.Join(mountpoint, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	target, err := os.Readlink(filepath.Join(mountpoint, "link"))
	require.NoError(t, err)
	assert.Equal(t, "etc/big.bin", target)

	err = os.WriteFile(filepath.Join(mountpoint, "new.txt"), []byte("x"), 0o644)
	require.Error(t, err)
}
