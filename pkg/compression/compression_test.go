package compression

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressors(t *testing.T) {
	payload := bytes.Repeat([]byte("export payload "), 200)

	for _, m := range []Method{MethodNone, MethodZlib, MethodGzip, MethodZstd} {
		t.Run(m.String(), func(t *testing.T) {
			c, err := New(m)
			require.NoError(t, err)
			defer Close(c)

			assert.Equal(t, m, c.Method())

			packed, err := c.Compress(payload)
			require.NoError(t, err)
			if m != MethodNone {
				assert.Less(t, len(packed), len(payload))
			}

			out, err := c.Decompress(packed, len(payload))
			require.NoError(t, err)
			assert.Equal(t, payload, out)
		})
	}
}

func TestDecompress_SizeMismatch(t *testing.T) {
	c, err := New(MethodZlib)
	require.NoError(t, err)

	packed, err := c.Compress([]byte("abcdef"))
	require.NoError(t, err)

	_, err = c.Decompress(packed, 10)
	assert.Error(t, err)
}

func TestDecompress_Corrupt(t *testing.T) {
	for _, m := range []Method{MethodZlib, MethodGzip, MethodZstd} {
		t.Run(m.String(), func(t *testing.T) {
			c, err := New(m)
			require.NoError(t, err)
			defer Close(c)

			_, err = c.Decompress([]byte{1, 2, 3, 4, 5}, 0)
			assert.Error(t, err)
		})
	}
}

func TestMethodFromFlags(t *testing.T) {
	tests := []struct {
		flags   uint32
		want    Method
		wantErr bool
	}{
		{0, MethodNone, false},
		{0x01, MethodZlib, false},
		{0x02, MethodGzip, false},
		{0x04, MethodZstd, false},
		{0x14, MethodZstd, false},
		{0x05, MethodNone, true},
	}

	for _, tt := range tests {
		got, err := MethodFromFlags(tt.flags)
		if tt.wantErr {
			assert.Error(t, err, "flags 0x%x", tt.flags)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("zstd")
	require.NoError(t, err)
	assert.Equal(t, MethodZstd, m)

	m, err = ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, MethodNone, m)

	_, err = ParseMethod("lz4")
	assert.Error(t, err)
}
