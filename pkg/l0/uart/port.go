// Package uart provides the transport side of a serial link: identity,
// line parameters and the receive path feeding a byte FIFO.
package uart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/tmtc.go/pkg/framework"
)

// ID identifies a UART transport.
type ID int

// Parity is the parity mode of a line.
type Parity int

// Parity modes.
const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

// Line holds the line parameters of a UART.
type Line struct {
	BaudRate   int
	WordLength int
	Parity     Parity
	StopBits   int
}

// DefaultLine is the line setup used by all TM/TC links: 115200 8N1.
var DefaultLine = Line{
	BaudRate:   115200,
	WordLength: 8,
	Parity:     ParityNone,
	StopBits:   1,
}

// ErrUnsupportedLine indicates the line parameters can't be applied.
var ErrUnsupportedLine = errors.New("unsupported line parameters")

// String returns the conventional notation, e.g. "115200 8N1".
func (l Line) String() string {
	p := "N"
	switch l.Parity {
	case ParityOdd:
		p = "O"
	case ParityEven:
		p = "E"
	}
	return fmt.Sprintf("%d %d%s%d", l.BaudRate, l.WordLength, p, l.StopBits)
}

// Port is a UART as seen by the frame receiver.
type Port interface {
	// ID returns the transport identity.
	ID() ID
	// Attach sets the FIFO receiving bytes from the line.
	Attach(rx io.Writer)
	// ConfigureLine applies line parameters.
	ConfigureLine(Line) error
}

// StreamPort is a Port receiving from an io.Reader, typically a tty
// device, a socket or a pipe.
type StreamPort struct {
	Reader    io.Reader
	ChunkSize int

	id   ID
	rx   io.Writer
	line Line
	lock sync.RWMutex
}

// DefaultChunkSize is the default read size of the receive pump.
const DefaultChunkSize = 64

// NewStreamPort creates a StreamPort.
func NewStreamPort(id ID, r io.Reader) *StreamPort {
	return &StreamPort{Reader: r, ChunkSize: DefaultChunkSize, id: id}
}

// ID implements Port.
func (p *StreamPort) ID() ID {
	return p.id
}

// Attach implements Port.
func (p *StreamPort) Attach(rx io.Writer) {
	p.lock.Lock()
	p.rx = rx
	p.lock.Unlock()
}

// ConfigureLine implements Port. When the reader is a tty the
// parameters are applied to the device, otherwise they're only recorded.
func (p *StreamPort) ConfigureLine(line Line) error {
	if f, ok := p.Reader.(interface{ Fd() uintptr }); ok {
		if err := configureTTY(f.Fd(), line); err != nil {
			return fmt.Errorf("port %d: configure %s: %w", p.id, line, err)
		}
	}
	p.lock.Lock()
	p.line = line
	p.lock.Unlock()
	return nil
}

// Line returns the last configured line parameters.
func (p *StreamPort) Line() Line {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.line
}

// Run implements Runnable. It pumps received bytes into the attached FIFO
// until the reader ends or the context is canceled.
func (p *StreamPort) Run(ctx context.Context) error {
	if closer, ok := p.Reader.(io.Closer); ok {
		return fx.RunWithContextCloser(ctx, closer, p.pump)
	}
	return fx.RunWithContext(ctx, p.pump)
}

func (p *StreamPort) pump() error {
	size := p.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	buf := make([]byte, size)
	for {
		n, err := p.Reader.Read(buf)
		if n > 0 {
			p.deliver(buf[:n])
		}
		if err == io.EOF {
			glog.Infof("port %d: end of stream", p.id)
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (p *StreamPort) deliver(data []byte) {
	p.lock.RLock()
	rx := p.rx
	p.lock.RUnlock()
	if rx == nil {
		glog.V(2).Infof("port %d: not attached, dropped %d bytes", p.id, len(data))
		return
	}
	if n, err := rx.Write(data); err != nil {
		glog.V(2).Infof("port %d: rx dropped %d bytes: %v", p.id, len(data)-n, err)
	}
}
