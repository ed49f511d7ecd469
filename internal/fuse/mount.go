package fuse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"go.uber.org/zap"

	"github.com/deploymenttheory/go-reiserfs/internal/services"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

// Default cache lifetimes handed to the kernel
const (
	DefaultEntryTimeout    = 5 * time.Second
	DefaultAttrTimeout     = 5 * time.Second
	DefaultNegativeTimeout = time.Second
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	Mountpoint string

	// FileSystem is the mounted volume to export.
	FileSystem *services.FileSystem

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// EntryTimeout and AttrTimeout override the kernel cache lifetimes.
	// Zero uses the defaults.
	EntryTimeout time.Duration
	AttrTimeout  time.Duration

	// Debug logs every FUSE request.
	Debug bool

	// Logger receives diagnostic messages. If nil, a no-op logger is used.
	Logger *zap.Logger
}

// Mount mounts the volume at the configured mountpoint. The caller must
// call Unmount on the returned Server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.FileSystem == nil {
		return nil, fmt.Errorf("filesystem is required")
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.EntryTimeout == 0 {
		options.EntryTimeout = DefaultEntryTimeout
	}
	if options.AttrTimeout == 0 {
		options.AttrTimeout = DefaultAttrTimeout
	}

	st, err := os.Stat(options.Mountpoint)
	if err != nil {
		return nil, fmt.Errorf("mountpoint %s: %w", options.Mountpoint, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("mountpoint %s is not a directory", options.Mountpoint)
	}

	root, err := NewRoot(options.FileSystem, options.Logger)
	if err != nil {
		return nil, err
	}

	negativeTimeout := DefaultNegativeTimeout
	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &options.EntryTimeout,
		AttrTimeout:     &options.AttrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "reiserfs",
			Name:       "go-reiserfs",
			AllowOther: options.AllowOther,
			Options:    []string{"ro"},
			Debug:      options.Debug,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("volume mounted",
		zap.String("mountpoint", options.Mountpoint),
		zap.String("label", options.FileSystem.Label()))
	return server, nil
}

// NewRoot returns the node embedding the root directory of fsys
func NewRoot(fsys *services.FileSystem, logger *zap.Logger) (*Node, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	root, err := fsys.Root()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}
	return &Node{fsys: fsys, node: root, logger: logger}, nil
}

// Node is one file, directory or symlink of the exported volume
type Node struct {
	gofuse.Inode

	fsys   *services.FileSystem
	node   *services.Node
	logger *zap.Logger
}

var (
	_ gofuse.InodeEmbedder  = (*Node)(nil)
	_ gofuse.NodeLookuper   = (*Node)(nil)
	_ gofuse.NodeReaddirer  = (*Node)(nil)
	_ gofuse.NodeGetattrer  = (*Node)(nil)
	_ gofuse.NodeOpener     = (*Node)(nil)
	_ gofuse.NodeReader     = (*Node)(nil)
	_ gofuse.NodeReadlinker = (*Node)(nil)
	_ gofuse.NodeStatfser   = (*Node)(nil)
	_ gofuse.NodeSetattrer  = (*Node)(nil)
	_ gofuse.NodeCreater    = (*Node)(nil)
	_ gofuse.NodeMkdirer    = (*Node)(nil)
	_ gofuse.NodeUnlinker   = (*Node)(nil)
	_ gofuse.NodeRmdirer    = (*Node)(nil)
	_ gofuse.NodeRenamer    = (*Node)(nil)
	_ gofuse.NodeSymlinker  = (*Node)(nil)
)

// Ino returns the inode number of a key
func Ino(key types.Key) uint64 {
	return uint64(key.DirectoryID)<<32 | uint64(key.ObjectID)
}

// Mode returns the file type bits for a node together with its permissions
func Mode(node *services.Node) uint32 {
	perm := uint32(node.Mode) & 0o7777
	switch node.FileType {
	case types.FileTypeDirectory:
		if perm == 0 {
			perm = 0o555
		}
		return syscall.S_IFDIR | perm
	case types.FileTypeSymlink:
		if perm == 0 {
			perm = 0o777
		}
		return syscall.S_IFLNK | perm
	default:
		if perm == 0 {
			perm = 0o444
		}
		return syscall.S_IFREG | perm
	}
}

// stableAttr identifies node for the inode cache
func stableAttr(node *services.Node) gofuse.StableAttr {
	return gofuse.StableAttr{
		Mode: Mode(node) & syscall.S_IFMT,
		Ino:  Ino(node.Key()),
	}
}

// fillAttr copies the object metadata into out. The stat item is read
// again for ownership and link count; objects without one keep the
// values their directory entry carried.
func (n *Node) fillAttr(out *fuse.Attr) {
	node := n.node
	out.Ino = Ino(node.Key())
	out.Mode = Mode(node)
	out.Size = node.Size
	out.Nlink = 1
	mtime := uint64(uint32(node.Mtime))
	out.Mtime, out.Atime, out.Ctime = mtime, mtime, mtime

	if stat, err := n.fsys.Stat(node); err == nil {
		out.Nlink = stat.Links
		out.Uid = stat.UID
		out.Gid = stat.GID
		out.Atime = uint64(stat.Atime)
		out.Ctime = uint64(stat.Ctime)
	} else if !errors.Is(err, types.ErrFileNotFound) {
		n.logger.Warn("failed to read stat item", zap.Stringer("node", node), zap.Error(err))
	}

	blockSize := n.fsys.BlockSize()
	out.Blksize = blockSize
	out.Blocks = (out.Size + 511) / 512
}

// Lookup finds a child without following symlinks
func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	child, err := n.fsys.Child(n.node, name)
	if err != nil {
		return nil, toErrno(err)
	}

	childNode := &Node{fsys: n.fsys, node: child, logger: n.logger}
	childNode.fillAttr(&out.Attr)
	return n.NewInode(ctx, childNode, stableAttr(child)), 0
}

// Readdir lists the visible entries of a directory
func (n *Node) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	entries, err := n.fsys.ReadDir(n.node)
	if err != nil {
		n.logger.Error("readdir failed", zap.Stringer("node", n.node), zap.Error(err))
		return nil, toErrno(err)
	}

	result := make([]fuse.DirEntry, 0, len(entries))
	for _, entry := range entries {
		result = append(result, fuse.DirEntry{
			Name: entry.Name,
			Mode: Mode(entry.Node) & syscall.S_IFMT,
			Ino:  Ino(entry.Node.Key()),
		})
	}
	return gofuse.NewListDirStream(result), 0
}

// Getattr reports the object metadata
func (n *Node) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	n.fillAttr(&out.Attr)
	return 0
}

// Open accepts read-only opens of files
func (n *Node) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_TRUNC|syscall.O_APPEND) != 0 {
		return nil, 0, syscall.EROFS
	}
	if n.node.IsDir() {
		return nil, 0, syscall.EISDIR
	}
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

// Read serves file data at off
func (n *Node) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if off < 0 {
		return nil, syscall.EINVAL
	}

	count, err := n.fsys.ReadAt(n.node, dest, uint64(off), nil)
	if err != nil {
		n.logger.Error("read failed",
			zap.Stringer("node", n.node),
			zap.Int64("offset", off),
			zap.Error(err))
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(dest[:count]), 0
}

// Readlink returns the symlink target
func (n *Node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	if n.node.FileType != types.FileTypeSymlink {
		return nil, syscall.EINVAL
	}
	target, err := n.fsys.ReadSymlink(n.node)
	if err != nil {
		n.logger.Error("readlink failed", zap.Stringer("node", n.node), zap.Error(err))
		return nil, toErrno(err)
	}
	return []byte(target), 0
}

// Statfs reports volume capacity from the superblock
func (n *Node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	info := n.fsys.Info()
	out.Blocks = uint64(info.BlockCount)
	out.Bfree = uint64(info.FreeBlocks)
	out.Bavail = uint64(info.FreeBlocks)
	out.Bsize = info.BlockSize
	out.Frsize = info.BlockSize
	out.NameLen = types.MaxNameLength
	return 0
}

func (n *Node) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	return syscall.EROFS
}

func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	return nil, nil, 0, syscall.EROFS
}

func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	return nil, syscall.EROFS
}

func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	return syscall.EROFS
}

func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return syscall.EROFS
}

func (n *Node) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	return syscall.EROFS
}

func (n *Node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	return nil, syscall.EROFS
}

// toErrno maps filesystem errors onto errno values
func toErrno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, types.ErrFileNotFound):
		return syscall.ENOENT
	case errors.Is(err, types.ErrNotDirectory):
		return syscall.ENOTDIR
	case errors.Is(err, types.ErrBadFileType):
		return syscall.EINVAL
	case errors.Is(err, types.ErrSymlinkLoop):
		return syscall.ELOOP
	case errors.Is(err, types.ErrOutOfMemory):
		return syscall.ENOMEM
	case errors.Is(err, types.ErrOutOfRange):
		return syscall.ERANGE
	default:
		return syscall.EIO
	}
}
