package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func xorFold(seed byte, p []byte) byte {
	for _, b := range p {
		seed ^= b
	}
	return seed
}

func TestBufferWriteConsume(t *testing.T) {
	b := New(8)
	n, err := b.Write([]byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, 5, b.FillCount())

	out := make([]byte, 3)
	require.Equal(t, 3, b.Consume(out))
	require.Equal(t, []byte{1, 2, 3}, out)
	require.Equal(t, 2, b.FillCount())

	// wraps around the end of the backing array
	n, err = b.Write([]byte{6, 7, 8, 9, 10, 11})
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.Equal(t, 8, b.FillCount())

	out = make([]byte, 16)
	require.Equal(t, 8, b.Consume(out))
	require.Equal(t, []byte{4, 5, 6, 7, 8, 9, 10, 11}, out[:8])
	require.Zero(t, b.FillCount())
	require.Zero(t, b.Consume(out))
}

func TestBufferOverflow(t *testing.T) {
	b := New(4)
	n, err := b.Write([]byte{1, 2, 3, 4, 5, 6})
	require.Equal(t, ErrOverflow, err)
	require.Equal(t, 4, n)
	require.Equal(t, ErrOverflow, b.WriteByte(7))
	require.Equal(t, uint32(3), b.OverflowCount())
	require.Zero(t, b.OverflowCount(), "overflow count resets on query")

	v, ok := b.ByteAt(3)
	require.True(t, ok)
	require.Equal(t, byte(4), v)
}

func TestBufferByteAt(t *testing.T) {
	b := New(4)
	_, ok := b.ByteAt(0)
	require.False(t, ok)

	b.Write([]byte{0xa, 0xb, 0xc})
	b.Discard(2)
	b.Write([]byte{0xd, 0xe})
	for i, expect := range []byte{0xc, 0xd, 0xe} {
		v, ok := b.ByteAt(i)
		require.True(t, ok)
		require.Equal(t, expect, v)
	}
	_, ok = b.ByteAt(3)
	require.False(t, ok)
	_, ok = b.ByteAt(-1)
	require.False(t, ok)
}

func TestBufferDiscard(t *testing.T) {
	b := New(4)
	b.Write([]byte{1, 2, 3})
	require.Equal(t, 2, b.Discard(2))
	require.Equal(t, 1, b.Discard(5))
	require.Zero(t, b.Discard(1))
	require.Zero(t, b.FillCount())
}

func TestBufferChecksum(t *testing.T) {
	testCases := []struct {
		name   string
		skip   int
		in     []byte
		offset int
		length int
		expect byte
	}{
		{"contiguous", 0, []byte{0xDA, 0xFF, 0xEC, 0x03, 0x11}, 0, 5, 0xDB},
		{"sub range", 0, []byte{0x5A, 0x01, 0x03, 0x58, 1, 2}, 0, 3, 0x58},
		{"wrapped", 5, []byte{0xDA, 0xFF, 0xEC, 0x03, 0x11}, 0, 5, 0xDB},
		{"wrapped with offset", 6, []byte{0, 0xDA, 0xFF, 0xEC, 0x03, 0x11}, 1, 5, 0xDB},
		{"clamped to fill", 0, []byte{0x0F, 0xF0}, 0, 10, 0xFF},
		{"offset beyond fill", 0, []byte{1}, 2, 1, 0},
		{"empty range", 0, []byte{1}, 0, 0, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := New(8)
			if tc.skip > 0 {
				b.Write(make([]byte, tc.skip))
				b.Discard(tc.skip)
			}
			_, err := b.Write(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.expect, b.Checksum(tc.offset, tc.length, xorFold))
			require.Equal(t, len(tc.in), b.FillCount(), "checksum must not consume")
		})
	}
}

func TestBufferZeroCapacity(t *testing.T) {
	var b Buffer
	n, err := b.Write([]byte{1})
	require.Equal(t, ErrOverflow, err)
	require.Zero(t, n)
	require.Zero(t, b.FillCount())
	require.Equal(t, uint32(1), b.OverflowCount())
}

func TestBufferConcurrentProducer(t *testing.T) {
	const total = 1 << 16
	b := New(64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			if err := b.WriteByte(byte(i)); err == nil {
				i++
			}
		}
	}()

	out := make([]byte, 7)
	var received int
	for received < total {
		n := b.Consume(out)
		for _, v := range out[:n] {
			require.Equal(t, byte(received), v)
			received++
		}
	}
	wg.Wait()
	require.Zero(t, b.FillCount())
}
