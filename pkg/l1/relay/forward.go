package relay

import (
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/tmtc.go/pkg/framework"
	"github.com/robotalks/tmtc.go/pkg/l1/comm"
	"github.com/robotalks/tmtc.go/pkg/l1/comm/mqtt"
	"github.com/robotalks/tmtc.go/pkg/l1/comm/stream"
	"github.com/robotalks/tmtc.go/pkg/l1/comm/websocket"
)

// Forwarders writes frames to several targets and closes them together.
type Forwarders struct {
	comm.MultiWriter
	closers []io.Closer

	closeOnce sync.Once
	closeErr  error
}

// Close implements io.Closer. Only the first call closes the targets.
func (f *Forwarders) Close() error {
	f.closeOnce.Do(func() {
		var errs fx.AggregatedError
		for _, c := range f.closers {
			errs.Add(c.Close())
		}
		f.closeErr = errs.Aggregate()
	})
	return f.closeErr
}

// OpenForward opens a forwarding target of a link:
//
//	mqtt             publish on <link>/tm through q
//	tcp://host:port  length-prefixed stream
//	ws://host/path   websocket binary messages
//	-                length-prefixed stream on stdout
//	log              hex dump in the log
func OpenForward(target, link string, q *mqtt.Queue) (comm.PacketWriter, error) {
	switch {
	case target == "mqtt":
		if q == nil {
			return nil, fmt.Errorf("forward %s to mqtt: no broker configured", link)
		}
		return mqtt.NewPacketReadWriter(q).ForLink(link), nil
	case strings.HasPrefix(target, "tcp://"):
		conn, err := net.Dial("tcp", strings.TrimPrefix(target, "tcp://"))
		if err != nil {
			return nil, fmt.Errorf("forward %s: %w", link, err)
		}
		return stream.New(conn), nil
	case strings.HasPrefix(target, "ws://"), strings.HasPrefix(target, "wss://"):
		return websocket.Dial(target)
	case target == "-":
		return stream.New(os.Stdout), nil
	case target == "log":
		return comm.PacketWriterFunc(func(pkt []byte) error {
			glog.Infof("%s: frame %s", link, hex.EncodeToString(pkt))
			return nil
		}), nil
	}
	return nil, fmt.Errorf("forward %s: unknown target %q", link, target)
}

// OpenForwarders opens all targets of a link. Targets already opened are
// closed when one fails.
func OpenForwarders(link string, targets []string, q *mqtt.Queue) (*Forwarders, error) {
	f := &Forwarders{}
	for _, target := range targets {
		w, err := OpenForward(target, link, q)
		if err != nil {
			f.Close()
			return nil, err
		}
		f.MultiWriter = append(f.MultiWriter, w)
		if c, ok := w.(io.Closer); ok && target != "-" {
			f.closers = append(f.closers, c)
		}
	}
	return f, nil
}

// SubscribeFlush turns messages on <link>/cmd/flush into flush requests.
func (r *Relay) SubscribeFlush(q *mqtt.Queue) []*mqtt.Subscription {
	var subs []*mqtt.Subscription
	for _, h := range r.Bank.Handles() {
		name := r.Bank.Name(h)
		subs = append(subs, q.Sub(mqtt.LinkTopic(name, mqtt.TopicFlush), func(topic string, _ []byte) {
			if err := r.RequestFlush(name); err != nil {
				glog.Errorf("%s: %v", topic, err)
			}
		}))
	}
	return subs
}
