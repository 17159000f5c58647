// Package comm carries validated frames off the receiver: to a TCP peer,
// a websocket client or an MQTT broker.
package comm

import "github.com/robotalks/tmtc.go/pkg/framework"

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// PacketWriterFunc is the func form of PacketWriter.
type PacketWriterFunc func([]byte) error

// WritePacket implements PacketWriter.
func (f PacketWriterFunc) WritePacket(pkt []byte) error {
	return f(pkt)
}

// MultiWriter writes every packet to all writers, even when some fail.
type MultiWriter []PacketWriter

// WritePacket implements PacketWriter.
func (w MultiWriter) WritePacket(pkt []byte) error {
	var errs framework.AggregatedError
	for _, writer := range w {
		errs.Add(writer.WritePacket(pkt))
	}
	return errs.Aggregate()
}
