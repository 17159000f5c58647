package comm

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/golang/glog"

	fx "github.com/robotalks/tmtc.go/pkg/framework"
)

// ErrBacklogFull indicates a packet dropped by a Backlog.
var ErrBacklogFull = errors.New("backlog full")

// DefaultBacklogSize is the number of packets a Backlog holds by default.
const DefaultBacklogSize = 64

// Backlog queues packets for a PacketWriter which may block. WritePacket
// never waits: when the queue is full the packet is dropped. Run writes
// the queued packets.
type Backlog struct {
	Name   string
	Writer PacketWriter

	ch      chan []byte
	dropped atomic.Uint64
}

// NewBacklog creates a Backlog holding up to size packets.
func NewBacklog(name string, w PacketWriter, size int) *Backlog {
	if size <= 0 {
		size = DefaultBacklogSize
	}
	return &Backlog{Name: name, Writer: w, ch: make(chan []byte, size)}
}

// WritePacket implements PacketWriter.
func (b *Backlog) WritePacket(pkt []byte) error {
	select {
	case b.ch <- pkt:
		return nil
	default:
		b.dropped.Add(1)
		return ErrBacklogFull
	}
}

// Dropped returns the number of packets dropped so far.
func (b *Backlog) Dropped() uint64 {
	return b.dropped.Load()
}

// Run implements Runnable. On cancel the writer is closed if it can be,
// which unblocks a write in progress.
func (b *Backlog) Run(ctx context.Context) error {
	stopCh := make(chan struct{})
	return fx.RunWithContextCancel(ctx, func() {
		close(stopCh)
		b.Close()
	}, func() error {
		for {
			select {
			case <-stopCh:
				return nil
			case pkt := <-b.ch:
				if err := b.Writer.WritePacket(pkt); err != nil {
					glog.Errorf("%s: forward: %v", b.Name, err)
				}
			}
		}
	})
}

// Close closes the writer if it implements io.Closer.
func (b *Backlog) Close() error {
	if closer, ok := b.Writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
