package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/deploymenttheory/go-reiserfs/internal/testutil"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

func TestIterateDirAcrossLeaves(t *testing.T) {
	for _, format := range []testutil.Format{testutil.Format36, testutil.Format35} {
		t.Run(fmt.Sprintf("format %d", format), func(t *testing.T) {
			b, objects := deepBuilder(40)
			b.Format = format
			fs := mountBuilder(t, b)

			root, err := fs.Root()
			require.NoError(t, err)

			expected := []listedEntry{{Name: ".", Type: types.FileTypeDirectory}}
			for i := range objects {
				expected = append(expected, listedEntry{Name: fmt.Sprintf("file%02d", i), Type: types.FileTypeRegular})
			}
			assert.Equal(t, expected, listDir(t, fs, root))
		})
	}
}

func TestIterateDirStops(t *testing.T) {
	b, _ := deepBuilder(10)
	fs := mountBuilder(t, b)

	root, err := fs.Root()
	require.NoError(t, err)

	var visited []string
	stopped, err := fs.IterateDir(root, func(name string, _ types.FileType, _ *Node) bool {
		visited = append(visited, name)
		return name == "file05"
	})
	require.NoError(t, err)
	assert.True(t, stopped)
	assert.Equal(t, []string{".", "file00", "file01", "file02", "file03", "file04", "file05"}, visited)
}

func TestIterateDirClassifiesEntries(t *testing.T) {
	b := testutil.NewImageBuilder(4096)
	root := b.Root()
	sub := b.AddDir(root, "sub")
	b.AddFile(sub, "inner", []byte("x"), testutil.LayoutDirect)
	b.AddFile(root, "plain", []byte("data"), testutil.LayoutDirect)
	b.AddSymlink(root, "link", "sub/inner")
	fs := mountBuilder(t, b)

	rootNode, err := fs.Root()
	require.NoError(t, err)

	children := make(map[string]*Node)
	_, err = fs.IterateDir(rootNode, func(name string, fileType types.FileType, child *Node) bool {
		assert.Equal(t, fileType, child.FileType, name)
		children[name] = child
		return false
	})
	require.NoError(t, err)

	require.Contains(t, children, "sub")
	assert.Equal(t, types.FileTypeDirectory, children["sub"].FileType)
	assert.Equal(t, types.ItemTypeDirectory, children["sub"].Type)
	assert.Equal(t, testutil.ModeDirectory, children["sub"].Mode)

	require.Contains(t, children, "plain")
	assert.Equal(t, types.FileTypeRegular, children["plain"].FileType)
	assert.Equal(t, uint64(4), children["plain"].Size)
	assert.Equal(t, int64(testutil.DefaultMtime), children["plain"].ModTime().Unix())

	require.Contains(t, children, "link")
	assert.Equal(t, types.FileTypeSymlink, children["link"].FileType)
	assert.Equal(t, uint64(len("sub/inner")), children["link"].Size)

	assert.NotContains(t, children, "..")
}

func TestIterateDirSkipsHiddenEntries(t *testing.T) {
	b := helloBuilder()
	other := b.AddFile(b.Root(), "other", []byte("o"), testutil.LayoutDirect)
	b.RemoveEntry(b.Root(), "other")
	hidden := other.Entry("hidden")
	hidden.Hidden = true
	b.AddEntry(b.Root(), hidden)
	fs := mountBuilder(t, b)

	root, err := fs.Root()
	require.NoError(t, err)
	assert.Equal(t, []listedEntry{{Name: "hello.txt", Type: types.FileTypeRegular}}, listDir(t, fs, root))
}

func TestIterateDirWarnsOnMissingStat(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	b := testutil.NewImageBuilder(4096)
	b.AddFile(b.Root(), "present", []byte("p"), testutil.LayoutDirect)
	b.AddEntry(b.Root(), testutil.Entry{Name: "ghost", DirectoryID: types.RootObjectID, ObjectID: 500})
	fs := mountBuilder(t, b, WithLogger(zap.New(core)))

	root, err := fs.Root()
	require.NoError(t, err)
	assert.Equal(t, []listedEntry{
		{Name: ".", Type: types.FileTypeDirectory},
		{Name: "present", Type: types.FileTypeRegular},
	}, listDir(t, fs, root))

	warnings := logs.FilterMessage("directory entry has no stat item").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "ghost", warnings[0].ContextMap()["name"])
	assert.Equal(t, 1, logs.Len())
}

func TestIterateDirRejectsFiles(t *testing.T) {
	fs := mountBuilder(t, helloBuilder())

	file, err := fs.Lookup("/hello.txt", types.FileTypeUnknown)
	require.NoError(t, err)

	_, err = fs.IterateDir(file, func(string, types.FileType, *Node) bool { return false })
	require.ErrorIs(t, err, types.ErrBadFileType)

	_, err = fs.IterateDir(nil, func(string, types.FileType, *Node) bool { return false })
	require.ErrorIs(t, err, types.ErrBadFileType)
}

func TestStat(t *testing.T) {
	fs := mountBuilder(t, helloBuilder())

	file, err := fs.Lookup("/hello.txt", types.FileTypeRegular)
	require.NoError(t, err)

	data, err := fs.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, 2, data.Version)
	assert.Equal(t, testutil.ModeRegular, data.Mode)
	assert.Equal(t, uint64(11), data.Size)
	assert.Equal(t, uint32(1), data.Links)
}
