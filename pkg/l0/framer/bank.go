package framer

import (
	"fmt"
	"io"

	"github.com/robotalks/tmtc.go/pkg/l0/ring"
	"github.com/robotalks/tmtc.go/pkg/l0/uart"
)

// ByteSource is the receive FIFO of a link. The producer side (io.Writer)
// is fed by the transport, the remaining methods are used by the Bank.
// Offsets are relative to the oldest unconsumed byte.
type ByteSource interface {
	io.Writer
	Configure(buf []byte)
	ByteAt(offset int) (byte, bool)
	FillCount() int
	Discard(n int) int
	Checksum(offset, length int, fn func(seed byte, p []byte) byte) byte
	Consume(p []byte) int
	OverflowCount() uint32
}

// Link binds a transport, its byte source and its counter IDs.
// A nil Source gets a ring.Buffer.
type Link struct {
	Name     string
	Port     uart.Port
	Source   ByteSource
	Counters CounterMap
}

// Handle refers to a link instance of a Bank.
type Handle int

// Step is the decoding step of an instance.
type Step int

// Decoding steps.
const (
	StepWaitingSOF Step = iota
	StepWaitingHeader
	StepWaitingData
	StepValidFrame
)

var stepNames = []string{"waiting-sof", "waiting-header", "waiting-data", "valid-frame"}

func (s Step) String() string {
	if s >= 0 && int(s) < len(stepNames) {
		return stepNames[s]
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// Status is a snapshot of an instance.
type Status struct {
	Name         string
	Transport    uart.ID
	Step         Step
	ReadIdx      int
	ExpectedSize int
	Buffered     int

	FlushCount               uint16
	WrongHeaderChecksumCount uint16
	WrongDataChecksumCount   uint16
}

type instance struct {
	link Link
	src  ByteSource

	readIdx      int
	expectedSize int
	step         Step
	// payloadSize is only meaningful in StepWaitingHeader.
	payloadSize int

	flushCount               uint16
	wrongHeaderChecksumCount uint16
	wrongDataChecksumCount   uint16
}

// Bank owns the frame receiver instances of all links.
// It isn't safe for concurrent use.
type Bank struct {
	sink      CounterSink
	instances []instance
}

// NewBank creates a Bank with one instance per link, in order.
// A nil sink discards counters.
func NewBank(sink CounterSink, links ...Link) *Bank {
	if sink == nil {
		sink = Discard
	}
	b := &Bank{sink: sink, instances: make([]instance, len(links))}
	for n, link := range links {
		in := &b.instances[n]
		in.link = link
		in.src = link.Source
		if in.src == nil {
			in.src = &ring.Buffer{}
		}
		in.reset()
	}
	return b
}

// Handles lists the handles of all instances.
func (b *Bank) Handles() []Handle {
	handles := make([]Handle, len(b.instances))
	for n := range handles {
		handles[n] = Handle(n)
	}
	return handles
}

// Valid tells if h was issued by the Bank.
func (b *Bank) Valid(h Handle) bool {
	return h >= 0 && int(h) < len(b.instances)
}

// Lookup finds the instance of a link by name.
func (b *Bank) Lookup(name string) (Handle, bool) {
	for n := range b.instances {
		if b.instances[n].link.Name == name {
			return Handle(n), true
		}
	}
	return -1, false
}

// Counters indexes the counter IDs of all links.
func (b *Bank) Counters() (CounterIndex, error) {
	links := make([]Link, len(b.instances))
	for n := range b.instances {
		links[n] = b.instances[n].link
	}
	return NewCounterIndex(links...)
}

// Init binds buf as the receive storage of the instance, attaches the byte
// source to the transport, applies the line parameters and restarts
// decoding.
func (b *Bank) Init(h Handle, buf []byte) error {
	if !b.Valid(h) {
		return fmt.Errorf("init %d: %w", h, ErrInvalidHandle)
	}
	in := &b.instances[h]
	if in.link.Port == nil {
		return fmt.Errorf("init %s: %w", in.link.Name, ErrNoPort)
	}
	if len(buf) < MinFrameSize {
		return fmt.Errorf("init %s: %w: %d", in.link.Name, ErrBufferSize, len(buf))
	}
	in.src.Configure(buf)
	in.link.Port.Attach(in.src)
	if err := in.link.Port.ConfigureLine(uart.DefaultLine); err != nil {
		return fmt.Errorf("init %s: %w", in.link.Name, err)
	}
	in.reset()
	return nil
}

// IsFrameAvailable tells if a valid frame waits for extraction.
func (b *Bank) IsFrameAvailable(h Handle) bool {
	return b.instance(h).step == StepValidFrame
}

// CopyFrame moves the ready frame into out and returns its length, then
// decoding restarts. It returns 0 and leaves everything untouched when no
// frame is ready or out is too small for it.
func (b *Bank) CopyFrame(h Handle, out []byte) int {
	in := b.instance(h)
	if in.step != StepValidFrame || len(out) < in.readIdx {
		return 0
	}
	n := in.src.Consume(out[:in.readIdx])
	in.reset()
	return n
}

// Flush discards all buffered bytes, publishes the overflow and flush
// counters and restarts decoding.
func (b *Bank) Flush(h Handle) {
	in := b.instance(h)
	flushed := in.src.FillCount()
	overflow := in.src.OverflowCount()
	in.src.Discard(flushed)
	in.flushCount += uint16(flushed)
	b.sink.WriteCounter(in.link.Counters.Overflow, uint16(overflow))
	b.sink.WriteCounter(in.link.Counters.Flush, in.flushCount)
	in.reset()
}

// TransportID returns the identity of the transport of an instance.
func (b *Bank) TransportID(h Handle) uart.ID {
	return b.instance(h).link.Port.ID()
}

// Name returns the link name of an instance.
func (b *Bank) Name(h Handle) string {
	return b.instance(h).link.Name
}

// Source returns the byte source of an instance.
func (b *Bank) Source(h Handle) ByteSource {
	return b.instance(h).src
}

// Status takes a snapshot of an instance.
func (b *Bank) Status(h Handle) Status {
	in := b.instance(h)
	s := Status{
		Name:                     in.link.Name,
		Transport:                -1,
		Step:                     in.step,
		ReadIdx:                  in.readIdx,
		ExpectedSize:             in.expectedSize,
		Buffered:                 in.src.FillCount(),
		FlushCount:               in.flushCount,
		WrongHeaderChecksumCount: in.wrongHeaderChecksumCount,
		WrongDataChecksumCount:   in.wrongDataChecksumCount,
	}
	if in.link.Port != nil {
		s.Transport = in.link.Port.ID()
	}
	return s
}

// instance panics on handles not issued by the Bank.
func (b *Bank) instance(h Handle) *instance {
	if !b.Valid(h) {
		panic(fmt.Sprintf("framer: %v: %d", ErrInvalidHandle, h))
	}
	return &b.instances[h]
}

func (in *instance) reset() {
	in.step = StepWaitingSOF
	in.readIdx = 0
	in.expectedSize = 1
	in.payloadSize = 0
}
