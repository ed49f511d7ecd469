package services

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-reiserfs/internal/device"
	"github.com/deploymenttheory/go-reiserfs/internal/testutil"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

var bigContent = func() []byte {
	data := make([]byte, 9000)
	for i := range data {
		data[i] = byte(i % 253)
	}
	return data
}()

func sampleBuilder(withSymlinks bool) *testutil.ImageBuilder {
	b := testutil.NewImageBuilder(1024)
	b.Label = "sample"
	root := b.Root()
	b.AddFile(root, "readme.txt", []byte("read me first\n"), testutil.LayoutDirect)
	docs := b.AddDir(root, "docs")
	b.AddFile(docs, "guide.md", []byte("# Guide\n"), testutil.LayoutDirect)
	b.AddFile(docs, "big.bin", bigContent, testutil.LayoutIndirectTail)
	nested := b.AddDir(docs, "nested")
	b.AddFile(nested, "deep.txt", []byte("deep"), testutil.LayoutDirect)
	b.AddFile(root, "empty", nil, testutil.LayoutDirect)
	if withSymlinks {
		b.AddSymlink(root, "guide", "docs/guide.md")
		b.AddSymlink(docs, "up", "..")
	}
	return b
}

func writeImage(t *testing.T, b *testutil.ImageBuilder) string {
	t.Helper()
	img, err := b.Build()
	require.NoError(t, err)
	imagePath := filepath.Join(t.TempDir(), "volume.img")
	require.NoError(t, os.WriteFile(imagePath, img.Data, 0o644))
	return imagePath
}

func openSample(t *testing.T, withSymlinks bool) (FilesystemService, ExtractionService) {
	t.Helper()
	factory := NewServiceFactory(nil, nil)
	t.Cleanup(func() { _ = factory.Shutdown() })

	svc, err := factory.FilesystemService()
	require.NoError(t, err)
	extraction, err := factory.ExtractionService()
	require.NoError(t, err)

	_, err = svc.Open(context.Background(), writeImage(t, sampleBuilder(withSymlinks)), device.DefaultDeviceConfig())
	require.NoError(t, err)
	return svc, extraction
}

func names(files []FileInfo) []string {
	var result []string
	for _, f := range files {
		result = append(result, f.Path)
	}
	return result
}

func TestServiceFactory(t *testing.T) {
	factory := NewServiceFactory(nil, nil)
	assert.False(t, factory.IsInitialized())

	require.NoError(t, factory.Initialize())
	assert.True(t, factory.IsInitialized())

	fsSvc, err := factory.FilesystemService()
	require.NoError(t, err)
	assert.NotNil(t, fsSvc)

	extraction, err := factory.ExtractionService()
	require.NoError(t, err)
	assert.NotNil(t, extraction)

	assert.Len(t, factory.ListAvailableServices(), 2)

	require.NoError(t, factory.Shutdown())
	assert.False(t, factory.IsInitialized())
}

func TestFilesystemServiceNotOpen(t *testing.T) {
	svc := NewFilesystemService()
	ctx := context.Background()

	_, err := svc.Info()
	require.ErrorIs(t, err, ErrNotOpen)
	_, err = svc.ListDirectory(ctx, "/", false)
	require.ErrorIs(t, err, ErrNotOpen)
	_, err = svc.FS()
	require.ErrorIs(t, err, ErrNotOpen)
	_, err = svc.VerifyTree(ctx)
	require.ErrorIs(t, err, ErrNotOpen)
	require.NoError(t, svc.Close())
}

func TestFilesystemServiceOpenFailures(t *testing.T) {
	svc := NewFilesystemService()
	ctx := context.Background()

	_, err := svc.Open(ctx, filepath.Join(t.TempDir(), "missing.img"), nil)
	require.Error(t, err)

	garbage := filepath.Join(t.TempDir(), "garbage.img")
	require.NoError(t, os.WriteFile(garbage, make([]byte, 128*1024), 0o644))
	_, err = svc.Open(ctx, garbage, nil)
	require.ErrorIs(t, err, types.ErrBadFilesystem)
}

func TestFilesystemServiceInfo(t *testing.T) {
	svc, _ := openSample(t, false)

	info, err := svc.Info()
	require.NoError(t, err)
	assert.Equal(t, "sample", info.Label)
	assert.Equal(t, "ReiserFS 3.6", info.Format)
	assert.Equal(t, uint32(1024), info.BlockSize)
}

func TestVerifyTree(t *testing.T) {
	svc, _ := openSample(t, true)

	report, err := svc.VerifyTree(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Positive(t, report.Leaves)
	assert.Positive(t, report.Items)
}

func TestListDirectory(t *testing.T) {
	svc, _ := openSample(t, true)
	ctx := context.Background()

	files, err := svc.ListDirectory(ctx, "/", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/readme.txt", "/docs", "/empty", "/guide"}, names(files))
	assert.Equal(t, "symlink", files[3].Type)
	assert.Equal(t, "docs/guide.md", files[3].LinkTarget)

	files, err = svc.ListDirectory(ctx, "docs/", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"/docs/guide.md", "/docs/big.bin", "/docs/nested", "/docs/nested/deep.txt", "/docs/up"}, names(files))

	_, err = svc.ListDirectory(ctx, "/readme.txt", false)
	require.ErrorIs(t, err, types.ErrNotDirectory)
}

func TestStatReadFileReadLink(t *testing.T) {
	svc, _ := openSample(t, true)
	ctx := context.Background()

	fi, err := svc.Stat(ctx, "/guide")
	require.NoError(t, err)
	assert.Equal(t, "file", fi.Type)
	assert.Equal(t, uint64(len("# Guide\n")), fi.Size)
	assert.Equal(t, uint32(testutil.ModeRegular), fi.Mode)

	data, err := svc.ReadFile(ctx, "/docs/big.bin")
	require.NoError(t, err)
	assert.Equal(t, bigContent, data)

	data, err = svc.ReadFile(ctx, "/docs/up/readme.txt")
	require.NoError(t, err)
	assert.Equal(t, "read me first\n", string(data))

	data, err = svc.ReadFile(ctx, "/empty")
	require.NoError(t, err)
	assert.Empty(t, data)

	target, err := svc.ReadLink(ctx, "/guide")
	require.NoError(t, err)
	assert.Equal(t, "docs/guide.md", target)

	_, err = svc.ReadLink(ctx, "/readme.txt")
	require.ErrorIs(t, err, types.ErrBadFileType)

	_, err = svc.ReadFile(ctx, "/docs")
	require.ErrorIs(t, err, types.ErrBadFileType)

	_, err = svc.Stat(ctx, "/nope")
	require.ErrorIs(t, err, types.ErrFileNotFound)
}

func TestWalk(t *testing.T) {
	svc, _ := openSample(t, false)

	var visited []string
	err := svc.Walk(context.Background(), "/", func(fi FileInfo) error {
		visited = append(visited, fi.Path)
		if fi.Path == "/docs/nested" {
			return fs.SkipDir
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/readme.txt", "/docs", "/docs/guide.md", "/docs/big.bin", "/docs/nested", "/empty"}, visited)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = svc.Walk(ctx, "/", func(FileInfo) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestFSAdapter(t *testing.T) {
	svc, _ := openSample(t, false)

	fsys, err := svc.FS()
	require.NoError(t, err)

	require.NoError(t, fstest.TestFS(fsys, "readme.txt", "docs/guide.md", "docs/big.bin", "docs/nested/deep.txt", "empty"))

	data, err := fs.ReadFile(fsys, "docs/big.bin")
	require.NoError(t, err)
	assert.Equal(t, bigContent, data)

	_, err = fs.Stat(fsys, "docs/missing")
	require.ErrorIs(t, err, fs.ErrNotExist)

	info, err := fs.Stat(fsys, "docs")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, fs.ModeDir|0o755, info.Mode())
}

func TestFSAdapterSymlinks(t *testing.T) {
	svc, _ := openSample(t, true)

	fsys, err := svc.FS()
	require.NoError(t, err)
	linkFS, ok := fsys.(fs.ReadLinkFS)
	require.True(t, ok)

	target, err := linkFS.ReadLink("guide")
	require.NoError(t, err)
	assert.Equal(t, "docs/guide.md", target)

	info, err := linkFS.Lstat("guide")
	require.NoError(t, err)
	assert.Equal(t, fs.ModeSymlink, info.Mode().Type())

	info, err = fs.Stat(fsys, "guide")
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())

	f, err := fsys.Open("docs/up/docs/guide.md")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "# Guide\n", string(data))
	require.NoError(t, f.Close())
}

func TestExtract(t *testing.T) {
	svc, extraction := openSample(t, true)
	ctx := context.Background()
	dest := t.TempDir()

	total, err := extraction.EstimateSize(ctx, "/", true)
	require.NoError(t, err)
	assert.Equal(t, uint64(len("read me first\n")+len("# Guide\n")+len(bigContent)+len("deep")), total)

	var progress atomic.Int64
	result, err := extraction.Extract(ctx, "/", dest, ExtractionOptions{
		Recursive:          true,
		Workers:            3,
		PreserveTimestamps: true,
		Progress:           func(n int) { progress.Add(int64(n)) },
	})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Files)
	assert.Equal(t, 3, result.Directories)
	assert.Equal(t, 2, result.Symlinks)
	assert.Equal(t, total, result.Bytes)
	assert.Equal(t, int64(total), progress.Load())

	data, err := os.ReadFile(filepath.Join(dest, "docs", "big.bin"))
	require.NoError(t, err)
	assert.Equal(t, bigContent, data)

	data, err = os.ReadFile(filepath.Join(dest, "docs", "nested", "deep.txt"))
	require.NoError(t, err)
	assert.Equal(t, "deep", string(data))

	link, err := os.Readlink(filepath.Join(dest, "guide"))
	require.NoError(t, err)
	assert.Equal(t, "docs/guide.md", link)

	st, err := os.Stat(filepath.Join(dest, "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, int64(testutil.DefaultMtime), st.ModTime().Unix())

	// a second run refuses to clobber
	_, err = extraction.Extract(ctx, "/docs", filepath.Join(dest, "docs"), ExtractionOptions{Recursive: true})
	require.Error(t, err)

	_, err = extraction.Extract(ctx, "/docs", dest, ExtractionOptions{})
	require.ErrorIs(t, err, types.ErrBadFileType)

	_, err = svc.Stat(ctx, "/docs")
	require.NoError(t, err)
}

func TestExtractSingleFile(t *testing.T) {
	_, extraction := openSample(t, false)
	dest := t.TempDir()

	result, err := extraction.Extract(context.Background(), "/docs/guide.md", dest, ExtractionOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Files)

	data, err := os.ReadFile(filepath.Join(dest, "guide.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Guide\n", string(data))
}

func TestExtractRejectsEscapingNames(t *testing.T) {
	b := testutil.NewImageBuilder(1024)
	docs := b.AddDir(b.Root(), "docs")
	b.AddFile(docs, "guide.md", []byte("# Guide\n"), testutil.LayoutDirect)
	escaped := b.AddDir(docs, "../../escaped")
	b.AddFile(escaped, "payload", []byte("owned"), testutil.LayoutDirect)

	factory := NewServiceFactory(nil, nil)
	t.Cleanup(func() { _ = factory.Shutdown() })
	svc, err := factory.FilesystemService()
	require.NoError(t, err)
	extraction, err := factory.ExtractionService()
	require.NoError(t, err)
	_, err = svc.Open(context.Background(), writeImage(t, b), device.DefaultDeviceConfig())
	require.NoError(t, err)

	base := t.TempDir()
	out := filepath.Join(base, "out")
	result, err := extraction.Extract(context.Background(), "/docs", out, ExtractionOptions{Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Files)

	_, err = os.Stat(filepath.Join(base, "escaped"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
	_, err = os.Stat(filepath.Join(filepath.Dir(base), "escaped"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	data, err := os.ReadFile(filepath.Join(out, "guide.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Guide\n", string(data))
}

func TestConfinedTarget(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out")

	tests := []struct {
		name    string
		root    string
		entry   string
		want    string
		wantErr bool
	}{
		{name: "root itself", root: "/docs", entry: "/docs", want: dest},
		{name: "child", root: "/docs", entry: "/docs/guide.md", want: filepath.Join(dest, "guide.md")},
		{name: "nested", root: "/", entry: "/docs/nested/deep.txt", want: filepath.Join(dest, "docs", "nested", "deep.txt")},
		{name: "parent traversal", root: "/docs", entry: "/docs/../../escaped", wantErr: true},
		{name: "sibling of root", root: "/docs", entry: "/other", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := confinedTarget(dest, tt.root, tt.entry)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsafePath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
