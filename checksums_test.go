package dex

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvard/dex/internal/testutil"
)

func TestMultiDexChecksumsArchive(t *testing.T) {
	t.Parallel()

	zipData, _ := multidexArchive(t, 3)
	path := writeContainer(t, "app.apk", zipData)
	var loader Loader

	sums, err := loader.MultiDexChecksums(path)
	require.NoError(t, err)
	require.Len(t, sums.Entries, 3)
	assert.False(t, sums.AllUncompressed)

	assert.Equal(t, path, sums.Entries[0].Location)
	assert.Equal(t, path+":classes2.dex", sums.Entries[1].Location)
	assert.Equal(t, path+":classes3.dex", sums.Entries[2].Location)

	// The checksum list matches what opening the segments reports.
	files, err := loader.OpenPath(path)
	require.NoError(t, err)
	defer closeFiles(files)
	require.Len(t, files, len(sums.Entries))
	for i, f := range files {
		assert.Equal(t, sums.Entries[i].Location, f.Location())
		assert.Equal(t, sums.Entries[i].Checksum, f.Checksum())
	}
}

func TestMultiDexChecksumsRaw(t *testing.T) {
	t.Parallel()

	data := testutil.BuildDex(t, testutil.DexConfig{Strings: []string{"raw"}})
	path := writeContainer(t, "app.dex", data)
	var loader Loader

	sums, err := loader.MultiDexChecksums(path)
	require.NoError(t, err)
	require.Len(t, sums.Entries, 1)
	assert.True(t, sums.AllUncompressed)
	assert.Equal(t, path, sums.Entries[0].Location)
	assert.Equal(t, ComputeChecksum(data), sums.Entries[0].Checksum)
}

func TestMultiDexChecksumsAllUncompressed(t *testing.T) {
	t.Parallel()

	seg := testutil.BuildDex(t, testutil.DexConfig{})
	var loader Loader

	stored := writeContainer(t, "stored.apk", testutil.BuildZip(t, []testutil.ZipEntry{
		{Name: "classes.dex", Data: seg},
		{Name: "classes2.dex", Data: seg},
	}))
	sums, err := loader.MultiDexChecksums(stored)
	require.NoError(t, err)
	assert.True(t, sums.AllUncompressed)

	mixed := writeContainer(t, "mixed.apk", testutil.BuildZip(t, []testutil.ZipEntry{
		{Name: "classes.dex", Data: seg},
		{Name: "classes2.dex", Data: seg, Compress: true},
	}))
	sums, err = loader.MultiDexChecksums(mixed)
	require.NoError(t, err)
	assert.False(t, sums.AllUncompressed)
}

func TestMultiDexChecksumsStopsAtGap(t *testing.T) {
	t.Parallel()

	seg := testutil.BuildDex(t, testutil.DexConfig{})
	zipData := testutil.BuildZip(t, []testutil.ZipEntry{
		{Name: "classes.dex", Data: seg},
		{Name: "classes3.dex", Data: seg},
	})
	path := writeContainer(t, "app.apk", zipData)

	var loader Loader
	sums, err := loader.MultiDexChecksums(path)
	require.NoError(t, err)
	require.Len(t, sums.Entries, 1)
	assert.Equal(t, path, sums.Entries[0].Location)
}

func TestMultiDexChecksumsTruncatedRaw(t *testing.T) {
	t.Parallel()

	data := testutil.BuildDex(t, testutil.DexConfig{})
	path := writeContainer(t, "short.dex", data[:HeaderSize/2])

	var loader Loader
	_, err := loader.MultiDexChecksums(path)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestMultiDexChecksumsFileBorrowed(t *testing.T) {
	t.Parallel()

	zipData, _ := multidexArchive(t, 2)
	path := writeContainer(t, "app.apk", zipData)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var loader Loader
	sums, err := loader.MultiDexChecksumsFile(f, path)
	require.NoError(t, err)
	assert.Len(t, sums.Entries, 2)

	pos, err := f.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)
}
