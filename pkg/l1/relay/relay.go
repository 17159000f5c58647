// Package relay drives the frame receivers from the periodic loop and
// hands extracted frames to their consumers.
package relay

import (
	"errors"
	"fmt"
	"io"

	"github.com/golang/glog"

	fx "github.com/robotalks/tmtc.go/pkg/framework"
	"github.com/robotalks/tmtc.go/pkg/l0/framer"
	"github.com/robotalks/tmtc.go/pkg/l1/comm"
)

var (
	// ErrUnknownLink indicates a link name not in the bank.
	ErrUnknownLink = errors.New("unknown link")
	// ErrNotRunning indicates the relay isn't attached to a loop.
	ErrNotRunning = errors.New("relay not attached to a loop")
)

// Observer is notified on every tick. telemetry.Collector implements it.
type Observer interface {
	ObserveStatus(framer.Status)
	FrameExtracted(link string, size int)
}

// Link configures how the frames of a bank instance are consumed.
type Link struct {
	Handle framer.Handle
	// Forward receives each extracted frame on the loop goroutine, so it
	// must not block: wrap network writers in a comm.Backlog. A Forward
	// implementing fx.Runnable is started with the loop. nil drops frames.
	Forward comm.PacketWriter
	// FlushAfterFrame discards whatever follows a frame in the buffer,
	// for links where a frame is always the last thing sent.
	FlushAfterFrame bool
}

// Relay is the loop controller of a Bank.
type Relay struct {
	Bank     *framer.Bank
	Observer Observer

	links []Link
	frame []byte
	loop  fx.LoopControl
}

// New creates a Relay.
func New(bank *framer.Bank, links ...Link) *Relay {
	return &Relay{Bank: bank, links: links, frame: make([]byte, framer.MaxFrameSize)}
}

// AddToLoop implements LoopAdder.
func (r *Relay) AddToLoop(loop *fx.Loop) {
	r.loop = loop
	loop.AddController(fx.PrLvReceive, r)
	for _, link := range r.links {
		if runnable, ok := link.Forward.(fx.Runnable); ok {
			loop.AddRunnable(runnable)
		}
	}
}

// Control implements Controller.
func (r *Relay) Control(fx.ControlContext) error {
	var errs fx.AggregatedError
	for n := range r.links {
		errs.Add(r.service(&r.links[n]))
	}
	return errs.Aggregate()
}

func (r *Relay) service(link *Link) error {
	r.Bank.Update(link.Handle)
	var err error
	if r.Bank.IsFrameAvailable(link.Handle) {
		err = r.extract(link)
	}
	if r.Observer != nil {
		r.Observer.ObserveStatus(r.Bank.Status(link.Handle))
	}
	return err
}

func (r *Relay) extract(link *Link) error {
	n := r.Bank.CopyFrame(link.Handle, r.frame)
	if n == 0 {
		return nil
	}
	name := r.Bank.Name(link.Handle)
	if r.Observer != nil {
		r.Observer.FrameExtracted(name, n)
	}
	if link.FlushAfterFrame {
		r.Bank.Flush(link.Handle)
	}
	if link.Forward == nil {
		return nil
	}
	frame := append([]byte(nil), r.frame[:n]...)
	if err := link.Forward.WritePacket(frame); err != nil {
		return fmt.Errorf("%s: forward: %w", name, err)
	}
	glog.V(2).Infof("%s: forwarded %d bytes", name, n)
	return nil
}

// RequestFlush schedules a flush of the named link at the start of the
// next tick. It is safe to call from any goroutine.
func (r *Relay) RequestFlush(name string) error {
	h, ok := r.Bank.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLink, name)
	}
	if r.loop == nil {
		return ErrNotRunning
	}
	r.loop.PreRunAt(fx.PrLvReceive, fx.ControlFunc(func(fx.ControlContext) error {
		glog.Infof("%s: flush requested", name)
		r.Bank.Flush(h)
		return nil
	}))
	r.loop.TriggerNext()
	return nil
}

// Close closes the forwarders which can be closed.
func (r *Relay) Close() error {
	var errs fx.AggregatedError
	for _, link := range r.links {
		if closer, ok := link.Forward.(io.Closer); ok {
			errs.Add(closer.Close())
		}
	}
	return errs.Aggregate()
}
