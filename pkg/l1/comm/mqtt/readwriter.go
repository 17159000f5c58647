package mqtt

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"
)

// Topic suffixes of a link.
const (
	TopicFrames       = "tm"
	TopicHousekeeping = "hk"
	TopicFlush        = "cmd/flush"
)

// LinkTopic builds the topic of a link, e.g. LinkTopic("pf", TopicFrames)
// is "pf/tm".
func LinkTopic(link, suffix string) string {
	return link + "/" + suffix
}

// ReadWriter implements PacketReadWriter over a pair of topics.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string

	packetCh chan []byte
	closed   bool
	lock     sync.Mutex
}

// DefaultBacklog is the number of received packets buffered for ReadPacket.
const DefaultBacklog = 64

// NewPacketReadWriter creates the ReadWriter.
func NewPacketReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{Queue: q, packetCh: make(chan []byte, DefaultBacklog)}
}

// WithTopics specifies the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// ForLink publishes frames of a link:
// PubTopic = link/tm
func (p *ReadWriter) ForLink(link string) *ReadWriter {
	return p.WithTopics("", LinkTopic(link, TopicFrames))
}

// ForMonitor receives frames of all links:
// SubTopic = +/tm
func (p *ReadWriter) ForMonitor() *ReadWriter {
	return p.WithTopics(LinkTopic("+", TopicFrames), "")
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	pkt, ok := <-p.packetCh
	if !ok {
		return nil, io.EOF
	}
	return pkt, nil
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.Pub(p.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Run implements Runnable.
func (p *ReadWriter) Run(ctx context.Context) error {
	defer p.close()
	if p.SubTopic == "" {
		<-ctx.Done()
		return ctx.Err()
	}
	sub := p.Queue.Sub(p.SubTopic, p.handleMsg)
	<-ctx.Done()
	sub.Close()
	return ctx.Err()
}

func (p *ReadWriter) close() {
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.closed {
		p.closed = true
		close(p.packetCh)
	}
}

func (p *ReadWriter) handleMsg(topic string, payload []byte) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return
	}
	select {
	case p.packetCh <- payload:
	default:
		glog.Warningf("mqtt %s: backlog full, packet dropped", topic)
	}
}
