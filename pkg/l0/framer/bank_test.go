package framer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/tmtc.go/pkg/l0/ring"
	"github.com/robotalks/tmtc.go/pkg/l0/uart"
)

type counterWrite struct {
	id    CounterID
	value uint16
}

type recordingSink struct {
	writes []counterWrite
}

func (s *recordingSink) WriteCounter(id CounterID, value uint16) {
	s.writes = append(s.writes, counterWrite{id: id, value: value})
}

// overflowingSource reports a fixed overflow count.
type overflowingSource struct {
	*ring.Buffer
	overflow uint32
}

func (s *overflowingSource) OverflowCount() uint32 {
	return s.overflow
}

var (
	pfCounters = CounterMap{Overflow: 0x10, Flush: 0x11, WrongHeaderChecksum: 0x12, WrongDataChecksum: 0x13}
	puCounters = CounterMap{Overflow: 0x20, Flush: 0x21, WrongHeaderChecksum: 0x22, WrongDataChecksum: 0x23}
)

type testBench struct {
	bank  *Bank
	ports []*uart.VirtualPort
	sink  *recordingSink
}

func newTestBench(t *testing.T, sources ...ByteSource) *testBench {
	b := &testBench{
		ports: []*uart.VirtualPort{uart.NewVirtualPort(1), uart.NewVirtualPort(2)},
		sink:  &recordingSink{},
	}
	links := []Link{
		{Name: "pf", Port: b.ports[0], Counters: pfCounters},
		{Name: "pu", Port: b.ports[1], Counters: puCounters},
	}
	for n, src := range sources {
		links[n].Source = src
	}
	b.bank = NewBank(b.sink, links...)
	for _, h := range b.bank.Handles() {
		require.NoError(t, b.bank.Init(h, make([]byte, 1024)))
	}
	return b
}

func (b *testBench) feed(t *testing.T, h Handle, data ...byte) {
	_, err := b.ports[h].Write(data)
	require.NoError(t, err)
}

func (b *testBench) requireStep(t *testing.T, h Handle, step Step, readIdx, expectedSize int) {
	s := b.bank.Status(h)
	require.Equalf(t, step, s.Step, "step of %s", s.Name)
	require.Equalf(t, readIdx, s.ReadIdx, "readIdx of %s", s.Name)
	require.Equalf(t, expectedSize, s.ExpectedSize, "expectedSize of %s", s.Name)
}

func mustFrame(t *testing.T, route byte, payload ...byte) []byte {
	f, err := AppendFrame(nil, route, payload)
	require.NoError(t, err)
	return f
}

func TestBankInit(t *testing.T) {
	b := newTestBench(t)
	require.Equal(t, []Handle{0, 1}, b.bank.Handles())
	require.Equal(t, uart.DefaultLine, b.ports[0].Line())
	require.Equal(t, uart.ID(2), b.bank.TransportID(1))
	require.Equal(t, "pu", b.bank.Name(1))
	b.requireStep(t, 0, StepWaitingSOF, 0, 1)

	h, ok := b.bank.Lookup("pu")
	require.True(t, ok)
	require.Equal(t, Handle(1), h)
	_, ok = b.bank.Lookup("none")
	require.False(t, ok)

	require.ErrorIs(t, b.bank.Init(2, make([]byte, 64)), ErrInvalidHandle)
	require.ErrorIs(t, b.bank.Init(0, make([]byte, MinFrameSize-1)), ErrBufferSize)
	require.Panics(t, func() { b.bank.IsFrameAvailable(Handle(-1)) })

	noPort := NewBank(nil, Link{Name: "x"})
	require.ErrorIs(t, noPort.Init(0, make([]byte, 64)), ErrNoPort)
	require.Equal(t, uart.ID(-1), noPort.Status(0).Transport)
}

func TestBankCounters(t *testing.T) {
	b := newTestBench(t)
	index, err := b.bank.Counters()
	require.NoError(t, err)
	require.Len(t, index, 8)
	info, ok := index.Lookup(0x22)
	require.True(t, ok)
	require.Equal(t, CounterInfo{Link: "pu", Kind: CounterWrongHeaderChecksum}, info)
	require.Equal(t, "pu/wrong_header_checksum", info.String())

	_, err = NewCounterIndex(Link{Name: "a", Counters: pfCounters}, Link{Name: "b", Counters: pfCounters})
	require.ErrorIs(t, err, ErrDuplicateCounter)
}

func TestNoSyncStaysWaitingSOF(t *testing.T) {
	b := newTestBench(t)
	for i := 0; i < 600; i++ {
		c := byte(i * 7)
		if c == SyncByte {
			continue
		}
		b.feed(t, 0, c)
		if i%5 == 0 {
			b.bank.Update(0)
			s := b.bank.Status(0)
			require.Equal(t, StepWaitingSOF, s.Step)
			require.LessOrEqual(t, s.ReadIdx, 1)
			require.Zero(t, s.Buffered)
		}
	}
	require.Empty(t, b.sink.writes)
}

func TestFrameByteByByte(t *testing.T) {
	for _, size := range []int{MinPayloadSize, 6, 100, MaxPayloadSize} {
		b := newTestBench(t)
		payload := make([]byte, size)
		for n := range payload {
			payload[n] = byte(n + 1)
		}
		frame := mustFrame(t, 0x01, payload...)
		require.Len(t, frame, HeaderSize+size+1)

		for n, c := range frame {
			require.Falsef(t, b.bank.IsFrameAvailable(0), "size %d: available after %d bytes", size, n)
			b.feed(t, 0, c)
			b.bank.Update(0)
		}
		require.True(t, b.bank.IsFrameAvailable(0))
		b.requireStep(t, 0, StepValidFrame, len(frame), 0)

		out := make([]byte, MaxFrameSize)
		n := b.bank.CopyFrame(0, out)
		require.Equal(t, len(frame), n)
		require.Equal(t, frame, out[:n])
		b.requireStep(t, 0, StepWaitingSOF, 0, 1)
		require.Zero(t, b.bank.Status(0).Buffered)
		require.Empty(t, b.sink.writes)
	}
}

func TestHeaderXORClosure(t *testing.T) {
	for route := 0; route < 256; route += 15 {
		for size := MinPayloadSize; size <= MaxPayloadSize; size += 31 {
			frame := mustFrame(t, byte(route), make([]byte, size)...)
			require.Zero(t, XOR(0, frame[:HeaderSize]))
			require.Equal(t, size+OverheadSize, FrameSize(frame))
		}
	}
}

func TestAppendFrame(t *testing.T) {
	frame, err := AppendFrame([]byte{0xee}, 0x01, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.Equal(t, []byte{0xee, 0x5a, 0x01, 0x03, 0x58, 1, 2, 3, 4, 0x04}, frame)

	_, err = AppendFrame(nil, 0, make([]byte, MinPayloadSize-1))
	require.ErrorIs(t, err, ErrPayloadSize)
	_, err = AppendFrame(nil, 0, make([]byte, MaxPayloadSize+1))
	require.ErrorIs(t, err, ErrPayloadSize)
}

func TestSplitFrame(t *testing.T) {
	frame, err := AppendFrame(nil, 0x42, []byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	route, payload, err := SplitFrame(frame)
	require.NoError(t, err)
	require.Equal(t, byte(0x42), route)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, payload)

	for n := range frame {
		bad := append([]byte(nil), frame...)
		bad[n] ^= 0x10
		_, _, err := SplitFrame(bad)
		require.ErrorIs(t, err, ErrMalformedFrame, "byte %d", n)
	}
	_, _, err = SplitFrame(frame[:len(frame)-1])
	require.ErrorIs(t, err, ErrMalformedFrame)
	_, _, err = SplitFrame(append(frame, 0))
	require.ErrorIs(t, err, ErrMalformedFrame)
}

func TestChecksumCorruption(t *testing.T) {
	testCases := []struct {
		name    string
		corrupt int
		counter CounterID
	}{
		{name: "header checksum", corrupt: HeaderChecksumIndex, counter: pfCounters.WrongHeaderChecksum},
		{name: "data checksum", corrupt: HeaderSize + 4, counter: pfCounters.WrongDataChecksum},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestBench(t)
			frame := mustFrame(t, 0x01, 1, 2, 3, 4)
			frame[tc.corrupt] ^= 0xff
			for _, c := range frame[:tc.corrupt+1] {
				b.feed(t, 0, c)
				b.bank.Update(0)
			}
			b.requireStep(t, 0, StepWaitingSOF, 0, 1)
			require.Equal(t, []counterWrite{{id: tc.counter, value: 1}}, b.sink.writes)
			require.Equal(t, tc.corrupt, b.bank.Status(0).Buffered, "only the sync byte is dropped")

			b.feed(t, 0, frame[tc.corrupt+1:]...)
			b.bank.Update(0)
			require.False(t, b.bank.IsFrameAvailable(0))
			require.Len(t, b.sink.writes, 1)
		})
	}

	b := newTestBench(t)
	frame := mustFrame(t, 0x01, 1, 2, 3, 4)
	for n := 0; n < 3; n++ {
		bad := append([]byte(nil), frame...)
		bad[len(bad)-1] ^= 0x10
		b.feed(t, 1, bad...)
		for b.bank.Status(1).Buffered > 0 {
			b.bank.Update(1)
		}
	}
	require.Equal(t, uint16(3), b.bank.Status(1).WrongDataChecksumCount)
	require.Equal(t, counterWrite{id: puCounters.WrongDataChecksum, value: 3}, b.sink.writes[2])
}

func TestSmallPayloadRejectedWithoutCounting(t *testing.T) {
	b := newTestBench(t)
	header := []byte{SyncByte, 0x01, 0x02, 0}
	header[HeaderChecksumIndex] = HeaderChecksum(header)
	b.feed(t, 0, header...)
	b.bank.Update(0)
	b.requireStep(t, 0, StepWaitingSOF, 0, 1)
	s := b.bank.Status(0)
	require.Zero(t, s.WrongHeaderChecksumCount)
	require.Zero(t, s.WrongDataChecksumCount)
	require.Empty(t, b.sink.writes)
}

func TestResyncInsideCorruptedFrame(t *testing.T) {
	b := newTestBench(t)
	frame := mustFrame(t, 0x01, 1, 2, 3, 4)
	b.feed(t, 0, SyncByte)
	b.feed(t, 0, frame...)
	for i := 0; i < 3 && !b.bank.IsFrameAvailable(0); i++ {
		b.bank.Update(0)
	}
	require.True(t, b.bank.IsFrameAvailable(0))
	require.Equal(t, uint16(1), b.bank.Status(0).WrongHeaderChecksumCount)

	out := make([]byte, MaxFrameSize)
	n := b.bank.CopyFrame(0, out)
	require.Equal(t, frame, out[:n])
}

func TestFramesBetweenNoise(t *testing.T) {
	b := newTestBench(t)
	var frames [][]byte
	for _, size := range []int{4, 17, 200} {
		payload := make([]byte, size)
		for n := range payload {
			payload[n] = byte(n*3 + size)
		}
		frames = append(frames, mustFrame(t, byte(size), payload...))
	}
	for _, f := range frames {
		b.feed(t, 0, 0x00, 0xa5, 0xff)
		b.feed(t, 0, f...)
	}

	var got [][]byte
	out := make([]byte, MaxFrameSize)
	for i := 0; i < 100 && b.bank.Status(0).Buffered > 0; i++ {
		b.bank.Update(0)
		if n := b.bank.CopyFrame(0, out); n > 0 {
			got = append(got, append([]byte(nil), out[:n]...))
		}
	}
	require.Equal(t, frames, got)
}

func TestValidFrameHoldsUntilExtracted(t *testing.T) {
	b := newTestBench(t)
	frame := mustFrame(t, 0x01, 1, 2, 3, 4)
	b.feed(t, 0, frame...)
	b.feed(t, 0, frame...)
	b.bank.Update(0)
	b.requireStep(t, 0, StepValidFrame, len(frame), 0)

	b.feed(t, 0, 0xaa)
	b.bank.Update(0)
	b.requireStep(t, 0, StepValidFrame, len(frame), 0)
	require.Equal(t, 2*len(frame)+1, b.bank.Status(0).Buffered)
}

func TestShortCopyRetry(t *testing.T) {
	b := newTestBench(t)
	frame := mustFrame(t, 0x01, 1, 2, 3, 4, 5, 6)
	b.feed(t, 0, frame...)
	b.bank.Update(0)
	require.True(t, b.bank.IsFrameAvailable(0))

	out := make([]byte, len(frame))
	require.Zero(t, b.bank.CopyFrame(0, out[:len(frame)-1]))
	require.True(t, b.bank.IsFrameAvailable(0))
	require.Equal(t, len(frame), b.bank.Status(0).Buffered)

	require.Equal(t, len(frame), b.bank.CopyFrame(0, out))
	require.Equal(t, frame, out)
	require.Zero(t, b.bank.CopyFrame(0, out), "no frame ready")
}

func TestFlush(t *testing.T) {
	testCases := []struct {
		name     string
		overflow uint32
	}{
		{name: "no overflow", overflow: 0},
		{name: "overflow", overflow: 10},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src := &overflowingSource{Buffer: &ring.Buffer{}, overflow: tc.overflow}
			b := newTestBench(t, src)
			frame := mustFrame(t, 0x01, 1, 2, 3, 4)
			b.feed(t, 0, frame[:6]...)
			b.bank.Update(0)
			b.requireStep(t, 0, StepWaitingData, 6, len(frame))

			b.bank.Flush(0)
			b.requireStep(t, 0, StepWaitingSOF, 0, 1)
			require.Zero(t, b.bank.Status(0).Buffered)
			require.Equal(t, []counterWrite{
				{id: pfCounters.Overflow, value: uint16(tc.overflow)},
				{id: pfCounters.Flush, value: 6},
			}, b.sink.writes)

			b.feed(t, 0, 1, 2, 3)
			b.bank.Flush(0)
			require.Equal(t, counterWrite{id: pfCounters.Flush, value: 9}, b.sink.writes[3])
			require.Equal(t, uint16(9), b.bank.Status(0).FlushCount)
		})
	}
}

func TestFlushReportsRingOverflow(t *testing.T) {
	sink := &recordingSink{}
	port := uart.NewVirtualPort(1)
	bank := NewBank(sink, Link{Name: "pf", Port: port, Counters: pfCounters})
	require.NoError(t, bank.Init(0, make([]byte, MinFrameSize)))

	_, err := port.Write(make([]byte, MinFrameSize+3))
	require.ErrorIs(t, err, ring.ErrOverflow)
	bank.Flush(0)
	require.Equal(t, []counterWrite{
		{id: pfCounters.Overflow, value: 3},
		{id: pfCounters.Flush, value: MinFrameSize},
	}, sink.writes)

	bank.Flush(0)
	require.Equal(t, counterWrite{id: pfCounters.Overflow, value: 0}, sink.writes[2])
}

func TestInstancesAreIndependent(t *testing.T) {
	b := newTestBench(t)
	pf := mustFrame(t, 0x01, 1, 2, 3, 4)
	pu := mustFrame(t, 0x02, 1, 2, 3, 4, 5, 6)
	for n := 0; n < HeaderSize+2; n++ {
		b.feed(t, 0, pf[n])
		b.feed(t, 1, pu[n])
		b.bank.Update(0)
		b.bank.Update(1)
	}
	b.requireStep(t, 0, StepWaitingData, HeaderSize+2, HeaderSize+4+1)
	b.requireStep(t, 1, StepWaitingData, HeaderSize+2, HeaderSize+6+1)

	b.feed(t, 0, pf[HeaderSize+2:]...)
	b.bank.Update(0)
	require.True(t, b.bank.IsFrameAvailable(0))
	require.False(t, b.bank.IsFrameAvailable(1))

	b.feed(t, 1, pu[HeaderSize+2:]...)
	b.bank.Update(1)
	out := make([]byte, MaxFrameSize)
	require.Equal(t, len(pu), b.bank.CopyFrame(1, out))
	require.Equal(t, pu, out[:len(pu)])
	require.Equal(t, len(pf), b.bank.CopyFrame(0, out))
	require.Equal(t, pf, out[:len(pf)])
}

// growingSource appends a noise byte on every read, like a producer
// racing the decoder.
type growingSource struct {
	*ring.Buffer
}

func (s growingSource) ByteAt(offset int) (byte, bool) {
	s.Buffer.WriteByte(0x11)
	return s.Buffer.ByteAt(offset)
}

func TestUpdateIsBounded(t *testing.T) {
	src := growingSource{Buffer: &ring.Buffer{}}
	b := newTestBench(t, src)
	b.feed(t, 0, 1, 2, 3, 4, 5)
	b.bank.Update(0)
	require.Equal(t, 5, src.FillCount(), "bytes arriving during the update wait for the next one")
}

func TestStepString(t *testing.T) {
	require.Equal(t, "waiting-sof", StepWaitingSOF.String())
	require.Equal(t, "valid-frame", StepValidFrame.String())
	require.Equal(t, "Step(9)", Step(9).String())
	require.Equal(t, "wrong_data_checksum", CounterWrongDataChecksum.String())
}
