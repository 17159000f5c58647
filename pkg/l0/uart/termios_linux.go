//go:build linux

package uart

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

var baudRates = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
	460800: unix.B460800,
	921600: unix.B921600,
}

var wordLengths = map[int]uint32{
	5: unix.CS5,
	6: unix.CS6,
	7: unix.CS7,
	8: unix.CS8,
}

// configureTTY puts the device in raw mode with the requested line.
// Non-tty descriptors (pipes, files) are left untouched.
func configureTTY(fd uintptr, line Line) error {
	speed, ok := baudRates[line.BaudRate]
	if !ok {
		return fmt.Errorf("baud rate %d: %w", line.BaudRate, ErrUnsupportedLine)
	}
	csize, ok := wordLengths[line.WordLength]
	if !ok {
		return fmt.Errorf("word length %d: %w", line.WordLength, ErrUnsupportedLine)
	}
	if line.StopBits != 1 && line.StopBits != 2 {
		return fmt.Errorf("stop bits %d: %w", line.StopBits, ErrUnsupportedLine)
	}

	t, err := unix.IoctlGetTermios(int(fd), unix.TCGETS)
	if errors.Is(err, unix.ENOTTY) {
		return nil
	}
	if err != nil {
		return err
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN

	t.Cflag &^= unix.CBAUD | unix.CSIZE | unix.PARENB | unix.PARODD | unix.CSTOPB
	t.Cflag |= speed | csize | unix.CREAD | unix.CLOCAL
	switch line.Parity {
	case ParityOdd:
		t.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		t.Cflag |= unix.PARENB
	}
	if line.StopBits == 2 {
		t.Cflag |= unix.CSTOPB
	}
	t.Ispeed, t.Ospeed = speed, speed
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	return unix.IoctlSetTermios(int(fd), unix.TCSETS, t)
}
