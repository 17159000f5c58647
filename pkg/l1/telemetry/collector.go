package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/robotalks/tmtc.go/pkg/l0/framer"
)

const (
	namespace = "tmtc"
	subsystem = "framer"
)

const (
	labelLink    = "link"
	labelCounter = "counter"
)

// Collector exports the frame receivers to Prometheus.
type Collector struct {
	// Counters holds the last published value of each fault counter.
	Counters *prometheus.GaugeVec
	// Step is the decoding step of each link.
	Step *prometheus.GaugeVec
	// Buffered is the number of bytes waiting in each byte source.
	Buffered *prometheus.GaugeVec
	// Frames counts the frames extracted per link.
	Frames *prometheus.CounterVec
	// FrameBytes counts the bytes of extracted frames per link.
	FrameBytes *prometheus.CounterVec

	resolver Resolver
}

// NewCollector creates a Collector registered against reg, or
// prometheus.DefaultRegisterer when reg is nil.
func NewCollector(reg prometheus.Registerer, resolver Resolver) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	linkLabels := []string{labelLink}
	c := &Collector{
		Counters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "counter",
			Help:      "Last published value of a frame receiver counter (16-bit, wrapping).",
		}, []string{labelLink, labelCounter}),
		Step: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "step",
			Help:      "Decoding step: 0 waiting SoF, 1 waiting header, 2 waiting data, 3 valid frame.",
		}, linkLabels),
		Buffered: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "buffered_bytes",
			Help:      "Bytes waiting in the receive buffer.",
		}, linkLabels),
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_total",
			Help:      "Frames extracted.",
		}, linkLabels),
		FrameBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frame_bytes_total",
			Help:      "Bytes of extracted frames.",
		}, linkLabels),
		resolver: resolver,
	}
	reg.MustRegister(c.Counters, c.Step, c.Buffered, c.Frames, c.FrameBytes)
	return c
}

// WriteCounter implements framer.CounterSink.
func (c *Collector) WriteCounter(id framer.CounterID, value uint16) {
	link, counter := "", fmt.Sprintf("0x%04x", uint16(id))
	if c.resolver != nil {
		if info, ok := c.resolver.Lookup(id); ok {
			link, counter = info.Link, info.Kind.String()
		}
	}
	c.Counters.WithLabelValues(link, counter).Set(float64(value))
}

// ObserveStatus records a snapshot of a link.
func (c *Collector) ObserveStatus(s framer.Status) {
	c.Step.WithLabelValues(s.Name).Set(float64(s.Step))
	c.Buffered.WithLabelValues(s.Name).Set(float64(s.Buffered))
}

// FrameExtracted accounts a frame of size bytes on link.
func (c *Collector) FrameExtracted(link string, size int) {
	c.Frames.WithLabelValues(link).Inc()
	c.FrameBytes.WithLabelValues(link).Add(float64(size))
}
