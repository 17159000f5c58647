package uart

import (
	"io"
	"sync"
)

// VirtualPort is a Port without a line: bytes are injected with Write.
// It stands in for hardware on the bench and in tests.
type VirtualPort struct {
	id   ID
	rx   io.Writer
	line Line
	lock sync.Mutex
}

// NewVirtualPort creates a VirtualPort.
func NewVirtualPort(id ID) *VirtualPort {
	return &VirtualPort{id: id}
}

// ID implements Port.
func (p *VirtualPort) ID() ID {
	return p.id
}

// Attach implements Port.
func (p *VirtualPort) Attach(rx io.Writer) {
	p.lock.Lock()
	p.rx = rx
	p.lock.Unlock()
}

// ConfigureLine implements Port.
func (p *VirtualPort) ConfigureLine(line Line) error {
	p.lock.Lock()
	p.line = line
	p.lock.Unlock()
	return nil
}

// Line returns the last configured line parameters.
func (p *VirtualPort) Line() Line {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.line
}

// Write delivers p as if it was received on the line.
// Without an attached FIFO the bytes are dropped.
func (p *VirtualPort) Write(data []byte) (int, error) {
	p.lock.Lock()
	rx := p.rx
	p.lock.Unlock()
	if rx == nil {
		return len(data), nil
	}
	return rx.Write(data)
}
