package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	var payload = bytes.Repeat([]byte("0.125,0.5,1.75\n"), 500)
	for _, typ := range []Type{TypeNone, TypeZstd, TypeLZ4} {
		t.Run(typ.String(), func(t *testing.T) {
			var codec, err = Get(typ)
			require.NoError(t, err)

			compressed, err := codec.Compress(payload)
			require.NoError(t, err)
			if typ != TypeNone {
				require.Less(t, len(compressed), len(payload))
			}

			restored, err := codec.Decompress(compressed)
			require.NoError(t, err)
			require.Equal(t, payload, restored)
		})
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		name string
		want Type
	}{
		{"", TypeNone},
		{"none", TypeNone},
		{"ZSTD", TypeZstd},
		{"lz4", TypeLZ4},
	}
	for _, tt := range tests {
		var got, err = ParseType(tt.name)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}

	var _, err = ParseType("gzip")
	require.ErrorIs(t, err, ErrUnknownCodec)

	_, err = Get(Type(9))
	require.ErrorIs(t, err, ErrUnknownCodec)
}

func TestZstdRejectsGarbage(t *testing.T) {
	var _, err = ZstdCodec{}.Decompress([]byte("not zstd at all"))
	require.Error(t, err)
}
