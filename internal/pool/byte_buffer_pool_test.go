package pool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByteBuffer_WriteAndReset(t *testing.T) {
	bb := NewByteBuffer(4)
	bb.MustWrite([]byte{1, 2})
	require.NoError(t, bb.WriteByte(3))
	n, err := bb.Write([]byte{4, 5})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, bb.Bytes())
	require.Equal(t, 5, bb.Len())

	capBefore := bb.Cap()
	bb.Reset()
	require.Zero(t, bb.Len())
	require.Equal(t, capBefore, bb.Cap())
}

func TestByteBuffer_Grow(t *testing.T) {
	t.Run("no-op with room", func(t *testing.T) {
		bb := NewByteBuffer(64)
		bb.Grow(10)
		require.Equal(t, 64, bb.Cap())
	})

	t.Run("small buffers grow by a packet", func(t *testing.T) {
		bb := NewByteBuffer(8)
		bb.MustWrite([]byte{1, 2, 3})
		bb.Grow(100)
		require.GreaterOrEqual(t, bb.Cap(), 3+PacketBufferDefaultSize)
		require.Equal(t, []byte{1, 2, 3}, bb.Bytes())
	})

	t.Run("large requirement wins", func(t *testing.T) {
		bb := NewByteBuffer(0)
		bb.Grow(PacketBufferDefaultSize * 3)
		require.GreaterOrEqual(t, bb.Cap(), PacketBufferDefaultSize*3)
	})
}

func TestByteBuffer_SetLength(t *testing.T) {
	bb := NewByteBuffer(8)
	bb.MustWrite([]byte{1, 2, 3, 4})
	bb.SetLength(2)
	require.Equal(t, []byte{1, 2}, bb.Bytes())
	require.Panics(t, func() { bb.SetLength(-1) })
	require.Panics(t, func() { bb.SetLength(bb.Cap() + 1) })
}

func TestByteBuffer_CloneAndWriteTo(t *testing.T) {
	bb := NewByteBuffer(8)
	bb.MustWrite([]byte{7, 8, 9})

	clone := bb.Clone()
	bb.B[0] = 0
	require.Equal(t, []byte{7, 8, 9}, clone)

	var out bytes.Buffer
	n, err := bb.WriteTo(&out)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
	require.Equal(t, []byte{0, 8, 9}, out.Bytes())
}

func TestByteBufferPool(t *testing.T) {
	p := NewByteBufferPool(16, 32)

	bb := p.Get()
	require.NotNil(t, bb)
	require.Zero(t, bb.Len())
	bb.MustWrite([]byte("hello"))
	p.Put(bb)

	again := p.Get()
	require.Zero(t, again.Len())

	p.Put(nil)
	p.Put(NewByteBuffer(1024))
}

func TestDefaultPools(t *testing.T) {
	pkt := GetPacketBuffer()
	require.GreaterOrEqual(t, pkt.Cap(), 0)
	pkt.MustWrite([]byte{1})
	PutPacketBuffer(pkt)

	scratch := GetScratchBuffer()
	require.Zero(t, scratch.Len())
	PutScratchBuffer(scratch)
}
