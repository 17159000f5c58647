package sh

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/robotalks/tmtc.go/pkg/config"
	fx "github.com/robotalks/tmtc.go/pkg/framework"
	"github.com/robotalks/tmtc.go/pkg/l0/framer"
	"github.com/robotalks/tmtc.go/pkg/l0/uart"
	"github.com/robotalks/tmtc.go/pkg/l1/comm"
	"github.com/robotalks/tmtc.go/pkg/l1/relay"
	"github.com/robotalks/tmtc.go/pkg/l1/telemetry"
)

// Bench is a set of frame receivers fed by hand through virtual ports.
// It isn't safe for concurrent use.
type Bench struct {
	Bank      *framer.Bank
	Registers *telemetry.Registers
	Counters  framer.CounterIndex

	ports  []*uart.VirtualPort
	loop   *fx.Loop
	frames []Frame
}

// Frame is a frame extracted by a tick.
type Frame struct {
	Link string `json:"link"`
	Data []byte `json:"data"`
}

// LinkSpec describes a bench link.
type LinkSpec struct {
	Name            string
	Counters        framer.CounterMap
	BufferSize      int
	FlushAfterFrame bool
}

// NewBench creates a Bench with initialized links.
func NewBench(specs ...LinkSpec) (*Bench, error) {
	b := &Bench{Registers: telemetry.NewRegisters(), loop: fx.NewLoop()}
	links := make([]framer.Link, len(specs))
	for n, spec := range specs {
		port := uart.NewVirtualPort(uart.ID(n + 1))
		b.ports = append(b.ports, port)
		links[n] = framer.Link{Name: spec.Name, Port: port, Counters: spec.Counters}
	}
	var err error
	if b.Counters, err = framer.NewCounterIndex(links...); err != nil {
		return nil, err
	}
	b.Bank = framer.NewBank(telemetry.MultiSink{b.Registers, &telemetry.LogSink{Resolver: b.Counters, Level: 1}}, links...)
	relayLinks := make([]relay.Link, len(specs))
	for n, spec := range specs {
		size := spec.BufferSize
		if size <= 0 {
			size = config.DefaultBufferSize
		}
		if err := b.Bank.Init(framer.Handle(n), make([]byte, size)); err != nil {
			return nil, err
		}
		name := spec.Name
		relayLinks[n] = relay.Link{
			Handle:          framer.Handle(n),
			FlushAfterFrame: spec.FlushAfterFrame,
			Forward: comm.PacketWriterFunc(func(pkt []byte) error {
				b.frames = append(b.frames, Frame{Link: name, Data: pkt})
				return nil
			}),
		}
	}
	b.loop.Add(relay.New(b.Bank, relayLinks...))
	return b, nil
}

// Handle resolves a link name.
func (b *Bench) Handle(name string) (framer.Handle, error) {
	h, ok := b.Bank.Lookup(name)
	if !ok {
		return -1, fmt.Errorf("%w: %q", relay.ErrUnknownLink, name)
	}
	return h, nil
}

// Feed injects bytes as if received on the link.
func (b *Bench) Feed(h framer.Handle, data []byte) error {
	_, err := b.ports[h].Write(data)
	return err
}

// Tick runs n loop iterations and returns the frames they extracted.
func (b *Bench) Tick(n int) []Frame {
	b.frames = nil
	for i := 0; i < n; i++ {
		b.loop.RunIteration(context.Background())
	}
	return b.frames
}

// ReadCounters lists the last published counter values of a link.
func (b *Bench) ReadCounters(h framer.Handle) map[string]uint16 {
	name := b.Bank.Name(h)
	values := make(map[string]uint16)
	for id, info := range b.Counters {
		if info.Link != name {
			continue
		}
		if v, ok := b.Registers.Read(id); ok {
			values[info.Kind.String()] = v
		}
	}
	return values
}

// ParseBytes parses hex bytes given as separate or joined tokens,
// e.g. "5a 01" or "5a01".
func ParseBytes(args []string) ([]byte, error) {
	joined := strings.Join(args, "")
	joined = strings.TrimPrefix(strings.ReplaceAll(joined, ":", ""), "0x")
	data, err := hex.DecodeString(joined)
	if err != nil {
		return nil, fmt.Errorf("invalid hex bytes: %w", err)
	}
	return data, nil
}
