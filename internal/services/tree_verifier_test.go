package services

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-reiserfs/internal/testutil"
	"github.com/deploymenttheory/go-reiserfs/internal/types"
)

func buildDeep(t *testing.T) *testutil.Image {
	t.Helper()
	b, _ := deepBuilder(24)
	img, err := b.Build()
	require.NoError(t, err)
	require.GreaterOrEqual(t, img.Height, 3)
	return img
}

func messages(report *TreeReport, severity string) []string {
	var result []string
	for _, p := range report.Problems {
		if p.Severity == severity {
			result = append(result, p.Message)
		}
	}
	return result
}

func TestVerifyTreeClean(t *testing.T) {
	img := buildDeep(t)
	fs, err := Mount(img.Device(t))
	require.NoError(t, err)

	report, err := fs.VerifyTree(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Clean())
	assert.Empty(t, report.Problems)
	assert.Equal(t, img.RootBlock, report.RootBlock)
	assert.Equal(t, uint16(img.Height), report.Height)
	assert.Equal(t, len(img.Leaves), report.Leaves)
	assert.Positive(t, report.InternalNodes)

	items := 0
	for _, leaf := range img.Leaves {
		items += int(binary.LittleEndian.Uint16(img.Block(leaf)[2:4]))
	}
	assert.Equal(t, items, report.Items)
}

func TestVerifyTreeSingleLeaf(t *testing.T) {
	fs := mountBuilder(t, helloBuilder())

	report, err := fs.VerifyTree(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 1, report.Leaves)
	assert.Zero(t, report.InternalNodes)
}

func TestVerifyTreeWrongLevel(t *testing.T) {
	img := buildDeep(t)
	img.SetLevel(img.Leaves[0], uint16(img.Height))

	fs, err := Mount(img.Device(t))
	require.NoError(t, err)

	report, err := fs.VerifyTree(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.Equal(t, 1, report.Errors())
	assert.Equal(t, img.Leaves[0], report.Problems[0].Block)
	assert.Contains(t, report.Problems[0].Message, "node level")
	assert.Equal(t, len(img.Leaves)-1, report.Leaves)
}

func TestVerifyTreeBadFreeSpace(t *testing.T) {
	img := buildDeep(t)
	binary.LittleEndian.PutUint16(img.Block(img.Leaves[1])[4:6], 3)

	fs, err := Mount(img.Device(t))
	require.NoError(t, err)

	report, err := fs.VerifyTree(context.Background())
	require.NoError(t, err)
	errs := messages(report, SeverityError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "free space is 3")

	// the parent's recorded size no longer matches either
	assert.NotEmpty(t, messages(report, SeverityWarning))
}

func TestVerifyTreeRecordedSizeMismatch(t *testing.T) {
	img := buildDeep(t)
	root := img.Block(img.RootBlock)
	keys := int(binary.LittleEndian.Uint16(root[2:4]))
	sizeOffset := types.BlockHeaderSize + keys*types.KeySize + 4
	binary.LittleEndian.PutUint16(root[sizeOffset:], binary.LittleEndian.Uint16(root[sizeOffset:])+1)

	fs, err := Mount(img.Device(t))
	require.NoError(t, err)

	report, err := fs.VerifyTree(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Clean())
	warnings := messages(report, SeverityWarning)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "parent records")
}

func TestVerifyTreeCancelled(t *testing.T) {
	fs := mountBuilder(t, helloBuilder())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fs.VerifyTree(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
