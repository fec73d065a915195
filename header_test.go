package dex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halvard/dex/internal/testutil"
)

func TestParseHeader(t *testing.T) {
	t.Parallel()

	data := testutil.BuildDex(t, testutil.DexConfig{Strings: []string{"hello"}})

	h, err := ParseHeader(data)
	require.NoError(t, err)

	assert.Equal(t, "035", h.Version())
	assert.Equal(t, uint32(len(data)), h.FileSize)
	assert.Equal(t, uint32(HeaderSize), h.HeaderSize)
	assert.Equal(t, uint32(endianTag), h.EndianTag)
	assert.Equal(t, ComputeChecksum(data), h.Checksum)
}

func TestParseHeaderTruncated(t *testing.T) {
	t.Parallel()

	data := testutil.BuildDex(t, testutil.DexConfig{})
	_, err := ParseHeader(data[:HeaderSize-1])
	require.ErrorIs(t, err, ErrTruncated)

	_, err = ParseHeader(nil)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestParseHeaderBadMagic(t *testing.T) {
	t.Parallel()

	data := testutil.BuildDex(t, testutil.DexConfig{})
	data[0] = 'x'
	_, err := ParseHeader(data)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseHeaderVersions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		version string
		ok      bool
	}{
		{"035", true},
		{"036", false}, // withdrawn, never shipped
		{"037", true},
		{"038", true},
		{"039", true},
		{"040", true},
		{"041", true},
		{"042", false},
		{"abc", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.version, func(t *testing.T) {
			t.Parallel()

			data := testutil.BuildDex(t, testutil.DexConfig{Version: tt.version})
			h, err := ParseHeader(data)
			if !tt.ok {
				require.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.version, h.Version())
		})
	}
}

func TestComputeChecksumDetectsCorruption(t *testing.T) {
	t.Parallel()

	data := testutil.BuildDex(t, testutil.DexConfig{Strings: []string{"payload"}})
	h, err := ParseHeader(data)
	require.NoError(t, err)
	require.Equal(t, h.Checksum, ComputeChecksum(data))

	data[len(data)-1] ^= 0x01
	assert.NotEqual(t, h.Checksum, ComputeChecksum(data))
}
