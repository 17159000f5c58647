// Package ring provides the lock-free byte FIFO that sits between a
// UART receive path and the frame receiver.
package ring

import (
	"errors"
	"sync/atomic"
)

// ErrOverflow is returned by Write when some bytes didn't fit and were dropped.
var ErrOverflow = errors.New("ring buffer overflow")

// Buffer is a single-producer/single-consumer byte FIFO over a fixed
// backing array.
//
// Write and WriteByte belong to the producer (e.g. a UART RX pump), all
// other methods belong to the consumer. Both sides may run on different
// goroutines without further locking. Offsets used by the consumer methods
// are relative to the oldest unconsumed byte.
type Buffer struct {
	data []byte

	// head and tail are monotonic byte counters, the position in data is
	// obtained modulo len(data).
	head     atomic.Uint64
	tail     atomic.Uint64
	overflow atomic.Uint32
}

// New creates a Buffer with a freshly allocated backing array.
func New(size int) *Buffer {
	b := &Buffer{}
	b.Configure(make([]byte, size))
	return b
}

// Configure binds the backing storage and resets the buffer.
// It must not be called while a producer is writing.
func (b *Buffer) Configure(data []byte) {
	b.data = data
	b.head.Store(0)
	b.tail.Store(0)
	b.overflow.Store(0)
}

// Cap returns the capacity in bytes.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Write appends as many bytes from p as fit. Bytes that don't fit are
// dropped and accounted in the overflow count.
func (b *Buffer) Write(p []byte) (int, error) {
	size := uint64(len(b.data))
	head, tail := b.head.Load(), b.tail.Load()
	n := len(p)
	if free := int(size - (head - tail)); n > free {
		n = free
	}
	if n > 0 {
		start := int(head % size)
		copied := copy(b.data[start:], p[:n])
		copy(b.data, p[copied:n])
		b.head.Store(head + uint64(n))
	}
	if dropped := len(p) - n; dropped > 0 {
		b.overflow.Add(uint32(dropped))
		return n, ErrOverflow
	}
	return n, nil
}

// WriteByte appends a single byte.
func (b *Buffer) WriteByte(c byte) error {
	_, err := b.Write([]byte{c})
	return err
}

// FillCount returns the number of unconsumed bytes.
func (b *Buffer) FillCount() int {
	return int(b.head.Load() - b.tail.Load())
}

// ByteAt reads the byte at offset without consuming it.
func (b *Buffer) ByteAt(offset int) (byte, bool) {
	if offset < 0 || offset >= b.FillCount() {
		return 0, false
	}
	return b.data[(b.tail.Load()+uint64(offset))%uint64(len(b.data))], true
}

// Discard consumes up to n bytes and returns the number consumed.
func (b *Buffer) Discard(n int) int {
	if fill := b.FillCount(); n > fill {
		n = fill
	}
	if n <= 0 {
		return 0
	}
	b.tail.Add(uint64(n))
	return n
}

// Checksum folds fn over length bytes starting at offset, without
// consuming them. fn is called once per contiguous chunk, seeded with the
// result of the previous chunk, so a wrapped range costs two calls.
func (b *Buffer) Checksum(offset, length int, fn func(seed byte, p []byte) byte) byte {
	fill := b.FillCount()
	if offset < 0 || offset >= fill || length <= 0 {
		return 0
	}
	if offset+length > fill {
		length = fill - offset
	}
	size := len(b.data)
	start := int((b.tail.Load() + uint64(offset)) % uint64(size))
	if start+length <= size {
		return fn(0, b.data[start:start+length])
	}
	seed := fn(0, b.data[start:])
	return fn(seed, b.data[:length-(size-start)])
}

// Consume moves up to len(p) bytes into p and returns the count.
func (b *Buffer) Consume(p []byte) int {
	n := len(p)
	if fill := b.FillCount(); n > fill {
		n = fill
	}
	if n == 0 {
		return 0
	}
	tail := b.tail.Load()
	start := int(tail % uint64(len(b.data)))
	copied := copy(p[:n], b.data[start:])
	copy(p[copied:n], b.data)
	b.tail.Store(tail + uint64(n))
	return n
}

// OverflowCount returns the number of bytes dropped since the last call.
func (b *Buffer) OverflowCount() uint32 {
	return b.overflow.Swap(0)
}
