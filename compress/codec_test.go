package compress

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/format"
)

func getAllCodecs() map[string]Codec {
	return map[string]Codec{
		"NoOp": NewNoOpCompressor(),
		"LZ4":  NewLZ4Compressor(),
		"S2":   NewS2Compressor(),
		"Zstd": NewZstdCompressor(),
	}
}

// columnarPayload builds a payload shaped like a pattern payload image:
// index words, then float32 values, then int64 timestamps.
func columnarPayload(count int) []byte {
	buf := make([]byte, 0, count*16)
	for i := range count {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(i))
	}
	for i := range count {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(60+float32(i%7)*0.01))
	}
	for range count {
		buf = binary.LittleEndian.AppendUint64(buf, 638000000000000000)
	}

	return buf
}

func TestCreateCodec(t *testing.T) {
	for _, ct := range []format.CompressionType{format.CompressionNone, format.CompressionZstd, format.CompressionS2, format.CompressionLZ4} {
		t.Run(ct.String(), func(t *testing.T) {
			codec, err := CreateCodec(ct, "payload")
			require.NoError(t, err)
			require.NotNil(t, codec)

			shared, err := GetCodec(ct)
			require.NoError(t, err)
			require.IsType(t, codec, shared)
		})
	}

	_, err := CreateCodec(format.CompressionType(0x7F), "payload")
	require.ErrorContains(t, err, "invalid payload compression")

	_, err = GetCodec(format.CompressionType(0x7F))
	require.Error(t, err)
}

func TestCompressionStats(t *testing.T) {
	var stats CompressionStats
	require.Zero(t, stats.CompressionRatio())
	require.Zero(t, stats.SpaceSavings())

	stats.Record(1000, 250, true)
	stats.Record(1000, 1200, false)

	require.Equal(t, int64(2), stats.Attempts)
	require.Equal(t, int64(1), stats.Accepted)
	require.InDelta(t, 0.25, stats.CompressionRatio(), 1e-9)
	require.InDelta(t, 75.0, stats.SpaceSavings(), 1e-9)
}

func TestAllCodecs_EmptyData(t *testing.T) {
	for name, codec := range getAllCodecs() {
		t.Run(name, func(t *testing.T) {
			compressed, err := codec.Compress(nil)
			require.NoError(t, err)
			require.Nil(t, compressed)

			decompressed, err := codec.Decompress(nil)
			require.NoError(t, err)
			require.Nil(t, decompressed)
		})
	}
}

func TestAllCodecs_RoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{name: "single_byte", data: []byte{0x42}},
		{name: "binary", data: []byte{0x00, 0x01, 0x02, 0x03, 0xFF, 0xFE, 0xFD, 0xFC}},
		{name: "small_packet", data: columnarPayload(16)},
		{name: "full_packet", data: columnarPayload(2000)},
		{name: "zeros", data: make([]byte, 64*1024)},
	}

	for codecName, codec := range getAllCodecs() {
		t.Run(codecName, func(t *testing.T) {
			for _, tc := range testCases {
				t.Run(tc.name, func(t *testing.T) {
					compressed, err := codec.Compress(tc.data)
					require.NoError(t, err)
					require.NotNil(t, compressed)

					decompressed, err := codec.Decompress(compressed)
					require.NoError(t, err)
					require.True(t, bytes.Equal(tc.data, decompressed))
				})
			}
		})
	}
}

func TestAllCodecs_ColumnarPayloadShrinks(t *testing.T) {
	original := columnarPayload(2000)

	for codecName, codec := range getAllCodecs() {
		if codecName == "NoOp" {
			continue
		}

		t.Run(codecName, func(t *testing.T) {
			compressed, err := codec.Compress(original)
			require.NoError(t, err)
			require.Less(t, len(compressed), len(original)/2)
		})
	}
}

func TestAllCodecs_InvalidData(t *testing.T) {
	invalidInputs := [][]byte{
		{0xFF, 0xFF, 0xFF, 0xFF},
		[]byte("this is not compressed data"),
	}

	for codecName, codec := range getAllCodecs() {
		if codecName == "NoOp" {
			continue
		}

		t.Run(codecName, func(t *testing.T) {
			for i, input := range invalidInputs {
				t.Run(fmt.Sprintf("input_%d", i), func(t *testing.T) {
					_, err := codec.Decompress(input)
					require.ErrorIs(t, err, errs.ErrDecompressionFailed)
				})
			}
		})
	}
}

func TestAllCodecs_DecodedSizeLimit(t *testing.T) {
	oversized := make([]byte, MaxDecodedSize+1)

	for codecName, codec := range getAllCodecs() {
		t.Run(codecName, func(t *testing.T) {
			compressed, err := codec.Compress(oversized)
			require.NoError(t, err)

			decompressed, err := codec.Decompress(compressed)
			require.ErrorIs(t, err, errs.ErrDecompressionFailed)
			require.Nil(t, decompressed)
		})
	}
}

func TestAllCodecs_ConcurrentUsage(t *testing.T) {
	const numGoroutines = 16
	testData := columnarPayload(256)

	for codecName, codec := range getAllCodecs() {
		t.Run(codecName, func(t *testing.T) {
			compressed, err := codec.Compress(testData)
			require.NoError(t, err)

			done := make(chan error, numGoroutines*2)
			for range numGoroutines {
				go func() {
					_, err := codec.Compress(testData)
					done <- err
				}()
				go func() {
					decompressed, err := codec.Decompress(compressed)
					if err == nil && !bytes.Equal(testData, decompressed) {
						err = fmt.Errorf("decompressed data mismatch")
					}
					done <- err
				}()
			}

			for range numGoroutines * 2 {
				require.NoError(t, <-done)
			}
		})
	}
}
