package websocket

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEcho(t *testing.T) {
	srv := httptest.NewServer(Handler(func(rw *ReadWriter) {
		for {
			pkt, err := rw.ReadPacket()
			if err != nil {
				return
			}
			if err := rw.WritePacket(pkt); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	rw, err := Dial("ws" + strings.TrimPrefix(srv.URL, "http") + "/")
	require.NoError(t, err)
	defer rw.Close()

	frame := []byte{0x5a, 0x01, 0x03, 0x58, 1, 2, 3, 4, 4}
	require.NoError(t, rw.WritePacket(frame))
	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, frame, pkt)
}

func TestDialFailure(t *testing.T) {
	_, err := Dial("ws://127.0.0.1:1/")
	require.Error(t, err)
}
