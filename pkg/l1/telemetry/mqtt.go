package telemetry

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/robotalks/tmtc.go/pkg/l0/framer"
	"github.com/robotalks/tmtc.go/pkg/l1/comm/mqtt"
)

// Publisher publishes MQTT messages. *mqtt.Queue implements it.
type Publisher interface {
	PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token
}

// MQTTSink publishes every counter update as a retained housekeeping
// Record on <link>/hk/<counter>. Unresolved counters go to hk/<id>.
type MQTTSink struct {
	Publisher Publisher
	Resolver  Resolver
	// Source identifies the publishing node.
	Source string
	Now    func() time.Time
}

// WriteCounter implements framer.CounterSink. It doesn't wait for the
// broker.
func (s *MQTTSink) WriteCounter(id framer.CounterID, value uint16) {
	rec := &Record{Source: s.Source, ID: uint16(id), Value: value, Time: s.now()}
	topic := fmt.Sprintf("%s/0x%04x", mqtt.TopicHousekeeping, rec.ID)
	if s.Resolver != nil {
		if info, ok := s.Resolver.Lookup(id); ok {
			rec.Link, rec.Counter = info.Link, info.Kind.String()
			topic = mqtt.LinkTopic(info.Link, mqtt.TopicHousekeeping+"/"+rec.Counter)
		}
	}
	payload, err := rec.Marshal()
	if err != nil {
		glog.Errorf("hk %s: %v", topic, err)
		return
	}
	s.Publisher.PubWith(topic, payload, 0, true)
}

func (s *MQTTSink) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
