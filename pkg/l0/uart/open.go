package uart

import (
	"fmt"
	"net"
	"os"
	"strings"
)

// Open creates a StreamPort for a device string:
//
//	"-"              standard input
//	"tcp://host:port" a TCP connection (e.g. a serial-over-IP bridge)
//	anything else    a device or file path opened read-write
func Open(id ID, device string) (*StreamPort, error) {
	switch {
	case device == "-":
		return NewStreamPort(id, os.Stdin), nil
	case strings.HasPrefix(device, "tcp://"):
		conn, err := net.Dial("tcp", strings.TrimPrefix(device, "tcp://"))
		if err != nil {
			return nil, fmt.Errorf("open port %d: %w", id, err)
		}
		return NewStreamPort(id, conn), nil
	case device == "":
		return nil, fmt.Errorf("open port %d: empty device", id)
	}
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open port %d: %w", id, err)
	}
	return NewStreamPort(id, f), nil
}
