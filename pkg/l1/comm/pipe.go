package comm

import (
	"context"
	"io"

	fx "github.com/robotalks/tmtc.go/pkg/framework"
)

// PacketHandler handles received packets.
type PacketHandler interface {
	HandlePacket(ctx context.Context, pkt []byte) error
}

// HandlePacketFunc is the func form of PacketHandler.
type HandlePacketFunc func(ctx context.Context, pkt []byte) error

// HandlePacket implements PacketHandler.
func (f HandlePacketFunc) HandlePacket(ctx context.Context, pkt []byte) error {
	return f(ctx, pkt)
}

// Pipe pumps packets from a PacketReader into a handler.
type Pipe struct {
	Reader  PacketReader
	Handler PacketHandler
}

// NewPipe creates a Pipe.
func NewPipe(r PacketReader, h PacketHandler) *Pipe {
	return &Pipe{Reader: r, Handler: h}
}

// Run implements Runnable. It returns nil when the reader ends.
func (p *Pipe) Run(ctx context.Context) error {
	return fx.RunWithContextCancel(ctx, func() { p.Close() }, func() error {
		for {
			pkt, err := p.Reader.ReadPacket()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			if p.Handler == nil {
				continue
			}
			if err := p.Handler.HandlePacket(ctx, pkt); err != nil {
				return err
			}
		}
	})
}

// Close implements io.Closer.
func (p *Pipe) Close() error {
	if closer, ok := p.Reader.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// AddToLoop implements LoopAdder.
func (p *Pipe) AddToLoop(loop *fx.Loop) {
	if runnable, ok := p.Reader.(fx.Runnable); ok {
		loop.AddRunnable(runnable)
	}
	loop.AddRunnable(p)
}
