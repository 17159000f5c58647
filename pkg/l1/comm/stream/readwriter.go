// Package stream frames packets over a byte stream with a length prefix.
package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrPacketSize indicates a packet too large for the length prefix or
// the configured limit.
var ErrPacketSize = errors.New("packet size out of range")

// DefaultMaxSize bounds packets accepted by ReadPacket.
const DefaultMaxSize = 0xffff

// ReadWriter implements PacketReadWriter.
// Each packet is prefixed by its length as 2 bytes, little-endian.
type ReadWriter struct {
	io.ReadWriter
	MaxSize int

	writeLock sync.Mutex
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{ReadWriter: s, MaxSize: DefaultMaxSize}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	var size uint16
	if err := binary.Read(p.ReadWriter, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if p.MaxSize > 0 && int(size) > p.MaxSize {
		return nil, fmt.Errorf("%w: %d", ErrPacketSize, size)
	}
	pkt := make([]byte, size)
	if _, err := io.ReadFull(p.ReadWriter, pkt); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return pkt, nil
}

// WritePacket implements PacketWriter. The prefix and the packet go out
// in a single write.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	if len(pkt) > 0xffff {
		return fmt.Errorf("%w: %d", ErrPacketSize, len(pkt))
	}
	buf := make([]byte, 2, 2+len(pkt))
	binary.LittleEndian.PutUint16(buf, uint16(len(pkt)))
	buf = append(buf, pkt...)
	p.writeLock.Lock()
	defer p.writeLock.Unlock()
	_, err := p.ReadWriter.Write(buf)
	return err
}

// Close closes the underlying stream if it's closable.
func (p *ReadWriter) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
