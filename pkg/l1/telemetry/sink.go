// Package telemetry publishes frame receiver counters: to the log, to
// Prometheus and as housekeeping records over MQTT.
package telemetry

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/tmtc.go/pkg/l0/framer"
)

// Resolver describes counter IDs. framer.CounterIndex implements it.
type Resolver interface {
	Lookup(id framer.CounterID) (framer.CounterInfo, bool)
}

// Describe names a counter for logs, falling back to its ID.
func Describe(r Resolver, id framer.CounterID) string {
	if r != nil {
		if info, ok := r.Lookup(id); ok {
			return info.String()
		}
	}
	return fmt.Sprintf("counter[0x%04x]", uint16(id))
}

// LogSink logs every counter update.
type LogSink struct {
	Resolver Resolver
	// Level is the glog verbosity of the records.
	Level glog.Level
}

// WriteCounter implements framer.CounterSink.
func (s *LogSink) WriteCounter(id framer.CounterID, value uint16) {
	glog.V(s.Level).Infof("%s = %d", Describe(s.Resolver, id), value)
}

// MultiSink writes every update to all sinks in order.
type MultiSink []framer.CounterSink

// WriteCounter implements framer.CounterSink.
func (m MultiSink) WriteCounter(id framer.CounterID, value uint16) {
	for _, s := range m {
		s.WriteCounter(id, value)
	}
}

// Registers keeps the last value of every counter, like the register map
// the counters would land in on the flight computer. The zero value is
// ready to use.
type Registers struct {
	values map[framer.CounterID]uint16
}

// NewRegisters creates Registers.
func NewRegisters() *Registers {
	return &Registers{values: make(map[framer.CounterID]uint16)}
}

// WriteCounter implements framer.CounterSink.
func (r *Registers) WriteCounter(id framer.CounterID, value uint16) {
	if r.values == nil {
		r.values = make(map[framer.CounterID]uint16)
	}
	r.values[id] = value
}

// Read returns the last value written to id.
func (r *Registers) Read(id framer.CounterID) (uint16, bool) {
	v, ok := r.values[id]
	return v, ok
}
