package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCompressionMode(t *testing.T) {
	tests := []struct {
		in   string
		want CompressionMode
	}{
		{"none", ModeNone},
		{"Compact", ModeCompact},
		{" pattern ", ModePattern},
		{"TSSC", ModeTSSC},
	}

	for _, tt := range tests {
		got, err := ParseCompressionMode(tt.in)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
		require.Equal(t, got, mustMode(t, got.String()))
	}

	_, err := ParseCompressionMode("gzip")
	require.Error(t, err)
}

func mustMode(t *testing.T, s string) CompressionMode {
	t.Helper()
	m, err := ParseCompressionMode(s)
	require.NoError(t, err)

	return m
}

func TestParseCompressionType(t *testing.T) {
	for _, c := range []CompressionType{CompressionNone, CompressionZstd, CompressionS2, CompressionLZ4} {
		got, err := ParseCompressionType(c.String())
		require.NoError(t, err)
		require.Equal(t, c, got)
	}

	_, err := ParseCompressionType("brotli")
	require.Error(t, err)
	require.Equal(t, "Unknown", CompressionType(0xFF).String())
}

func TestNegotiate(t *testing.T) {
	t.Run("most preferred common mode wins", func(t *testing.T) {
		got := Negotiate(AllModes, NewModeSet(ModeCompact, ModePattern))
		require.Equal(t, ModePattern, got)
	})

	t.Run("server never upgrades past request", func(t *testing.T) {
		got := Negotiate(NewModeSet(ModeCompact), AllModes)
		require.Equal(t, ModeCompact, got)
	})

	t.Run("disjoint sets fall back to none", func(t *testing.T) {
		got := Negotiate(NewModeSet(ModeTSSC), NewModeSet(ModeCompact))
		require.Equal(t, ModeNone, got)
	})

	require.True(t, ModeTSSC.IsCompact())
	require.False(t, ModeNone.IsCompact())
}

func TestTextMarshaling(t *testing.T) {
	text, err := ModePattern.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "pattern", string(text))

	var m CompressionMode
	require.NoError(t, m.UnmarshalText([]byte("tssc")))
	require.Equal(t, ModeTSSC, m)
	require.Error(t, m.UnmarshalText([]byte("bogus")))

	text, err = CompressionLZ4.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "lz4", string(text))

	var c CompressionType
	require.NoError(t, c.UnmarshalText([]byte("ZSTD")))
	require.Equal(t, CompressionZstd, c)
}
