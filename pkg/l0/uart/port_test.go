package uart

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// glog flushes from a goroutine started in its init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/golang/glog.(*loggingT).flushDaemon"))
}

type syncBuffer struct {
	buf  bytes.Buffer
	lock sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func TestLineString(t *testing.T) {
	require.Equal(t, "115200 8N1", DefaultLine.String())
	require.Equal(t, "9600 7E2", Line{BaudRate: 9600, WordLength: 7, Parity: ParityEven, StopBits: 2}.String())
	require.Equal(t, "19200 8O1", Line{BaudRate: 19200, WordLength: 8, Parity: ParityOdd, StopBits: 1}.String())
}

func TestStreamPortPumpsUntilEOF(t *testing.T) {
	var rx syncBuffer
	port := NewStreamPort(ID(3), bytes.NewReader([]byte{0x5a, 1, 2, 3, 4, 5, 6, 7, 8}))
	port.ChunkSize = 4
	port.Attach(&rx)
	require.Equal(t, ID(3), port.ID())

	require.NoError(t, port.Run(context.Background()))
	require.Equal(t, []byte{0x5a, 1, 2, 3, 4, 5, 6, 7, 8}, rx.Bytes())
}

func TestStreamPortStopsOnCancel(t *testing.T) {
	r, w := io.Pipe()
	var rx syncBuffer
	port := NewStreamPort(ID(1), r)
	port.Attach(&rx)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- port.Run(ctx)
	}()

	_, err := w.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(rx.Bytes()) == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("port didn't stop")
	}
}

func TestStreamPortUnattachedDrops(t *testing.T) {
	port := NewStreamPort(ID(2), bytes.NewReader([]byte{1, 2, 3}))
	require.NoError(t, port.Run(context.Background()))
}

func TestStreamPortConfigureLineOnPipe(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	port := NewStreamPort(ID(1), r)
	require.NoError(t, port.ConfigureLine(DefaultLine))
	require.Equal(t, DefaultLine, port.Line())
}

func TestOpen(t *testing.T) {
	port, err := Open(ID(1), "-")
	require.NoError(t, err)
	require.Equal(t, os.Stdin, port.Reader)

	_, err = Open(ID(1), "")
	require.Error(t, err)

	_, err = Open(ID(1), "/nonexistent/tty")
	require.Error(t, err)
}

func TestVirtualPort(t *testing.T) {
	port := NewVirtualPort(ID(7))
	n, err := port.Write([]byte{1, 2})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	var rx syncBuffer
	port.Attach(&rx)
	require.NoError(t, port.ConfigureLine(DefaultLine))
	_, err = port.Write([]byte{0x5a, 3})
	require.NoError(t, err)
	require.Equal(t, []byte{0x5a, 3}, rx.Bytes())
	require.Equal(t, DefaultLine, port.Line())
	require.Equal(t, ID(7), port.ID())
}
