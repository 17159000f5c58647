// Package mon prints frames and housekeeping records relayed by tmtcd.
package mon

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/robotalks/tmtc.go/pkg/l0/framer"
	"github.com/robotalks/tmtc.go/pkg/l1/comm"
	"github.com/robotalks/tmtc.go/pkg/l1/comm/mqtt"
	"github.com/robotalks/tmtc.go/pkg/l1/telemetry"
)

// Monitor writes one line per received message.
type Monitor struct {
	Out io.Writer
	Now func() time.Time

	lock sync.Mutex
}

// New creates a Monitor writing to out.
func New(out io.Writer) *Monitor {
	return &Monitor{Out: out, Now: time.Now}
}

// Frame prints a frame received from link.
func (m *Monitor) Frame(link string, frame []byte) {
	route, payload, err := framer.SplitFrame(frame)
	if err != nil {
		m.printf("%s: bad frame %s: %v", link, hex.EncodeToString(frame), err)
		return
	}
	m.printf("%s: route 0x%02x [%d] %s", link, route, len(payload), hex.EncodeToString(payload))
}

// Record prints a housekeeping record received on topic.
func (m *Monitor) Record(topic string, payload []byte) {
	rec, err := telemetry.UnmarshalRecord(payload)
	if err != nil {
		m.printf("%s: bad record: %v", topic, err)
		return
	}
	m.printf("%s: %s", topic, rec)
}

// Subscribe receives frames and records of all links from q.
func (m *Monitor) Subscribe(q *mqtt.Queue) []*mqtt.Subscription {
	return []*mqtt.Subscription{
		q.Sub(mqtt.LinkTopic("+", mqtt.TopicFrames), func(topic string, payload []byte) {
			m.Frame(strings.TrimSuffix(topic, "/"+mqtt.TopicFrames), payload)
		}),
		q.Sub(mqtt.LinkTopic("+", mqtt.TopicHousekeeping+"/+"), m.Record),
		q.Sub(mqtt.TopicHousekeeping+"/+", m.Record),
	}
}

// Handler prints the packets of a stream forward of link.
func (m *Monitor) Handler(link string) comm.PacketHandler {
	return comm.HandlePacketFunc(func(_ context.Context, pkt []byte) error {
		m.Frame(link, pkt)
		return nil
	})
}

func (m *Monitor) printf(format string, args ...interface{}) {
	m.lock.Lock()
	defer m.lock.Unlock()
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	fmt.Fprintf(m.Out, "%s "+format+"\n", append([]interface{}{now().Format("15:04:05.000000")}, args...)...)
}
