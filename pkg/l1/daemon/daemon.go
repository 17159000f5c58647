// Package daemon assembles the frame receiver service from a Config.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robotalks/tmtc.go/pkg/config"
	fx "github.com/robotalks/tmtc.go/pkg/framework"
	"github.com/robotalks/tmtc.go/pkg/l0/framer"
	"github.com/robotalks/tmtc.go/pkg/l0/uart"
	"github.com/robotalks/tmtc.go/pkg/l1/comm"
	"github.com/robotalks/tmtc.go/pkg/l1/comm/mqtt"
	"github.com/robotalks/tmtc.go/pkg/l1/env"
	"github.com/robotalks/tmtc.go/pkg/l1/relay"
	"github.com/robotalks/tmtc.go/pkg/l1/telemetry"
)

// PortOpener opens the transport of a link.
type PortOpener func(id uart.ID, device string) (uart.Port, error)

// OpenStreamPort is the default PortOpener.
func OpenStreamPort(id uart.ID, device string) (uart.Port, error) {
	port, err := uart.Open(id, device)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Daemon is the assembled service.
type Daemon struct {
	Config    *config.Config
	Bank      *framer.Bank
	Relay     *relay.Relay
	Collector *telemetry.Collector
	Registry  *prometheus.Registry
	Queue     *mqtt.Queue
	Loop      *fx.Loop

	ports      []uart.Port
	forwarders []*relay.Forwarders
	metrics    *http.Server
}

// Options customizes New.
type Options struct {
	// OpenPort defaults to OpenStreamPort.
	OpenPort PortOpener
	// Queue is used instead of connecting to cfg.MQTT.URL.
	Queue *mqtt.Queue
	// NodeID identifies housekeeping records, defaults to env.NodeID().
	NodeID string
}

// New opens the ports and forwarders and wires every component. On error,
// what's already opened is closed.
func New(cfg *config.Config, opts Options) (d *Daemon, err error) {
	if opts.OpenPort == nil {
		opts.OpenPort = OpenStreamPort
	}
	if opts.NodeID == "" {
		opts.NodeID = env.NodeID()
	}
	d = &Daemon{Config: cfg, Registry: prometheus.NewRegistry(), Loop: fx.NewLoop(), Queue: opts.Queue}
	d.Loop.Interval = cfg.Tick
	defer func() {
		if err != nil {
			d.Close()
			d = nil
		}
	}()

	if d.Queue == nil && cfg.MQTT.URL != "" {
		clientID := cfg.MQTT.ClientID
		if clientID == "" {
			clientID = opts.NodeID + "-tmtcd"
		}
		if d.Queue, err = mqtt.NewQueueFromURL(cfg.MQTT.URL, clientID); err != nil {
			return
		}
	}

	links := make([]framer.Link, len(cfg.Links))
	for n, lc := range cfg.Links {
		port, e := opts.OpenPort(lc.TransportID(), lc.Device)
		if e != nil {
			return d, fmt.Errorf("%s: %w", lc.Name, e)
		}
		d.ports = append(d.ports, port)
		links[n] = framer.Link{Name: lc.Name, Port: port, Counters: lc.Counters.CounterMap()}
	}
	index, err := framer.NewCounterIndex(links...)
	if err != nil {
		return
	}

	d.Collector = telemetry.NewCollector(d.Registry, index)
	sink := telemetry.MultiSink{&telemetry.LogSink{Resolver: index, Level: 1}, d.Collector}
	if d.Queue != nil && cfg.MQTT.Housekeeping {
		sink = append(sink, &telemetry.MQTTSink{Publisher: d.Queue, Resolver: index, Source: opts.NodeID})
	}
	d.Bank = framer.NewBank(sink, links...)

	relayLinks := make([]relay.Link, len(cfg.Links))
	for n, lc := range cfg.Links {
		h := framer.Handle(n)
		if err = d.Bank.Init(h, make([]byte, lc.BufferSize)); err != nil {
			return
		}
		relayLinks[n] = relay.Link{Handle: h, FlushAfterFrame: lc.FlushAfterFrame}
		if len(lc.Forward) == 0 {
			continue
		}
		fwd, e := relay.OpenForwarders(lc.Name, lc.Forward, d.Queue)
		if e != nil {
			return d, e
		}
		d.forwarders = append(d.forwarders, fwd)
		relayLinks[n].Forward = comm.NewBacklog(lc.Name, fwd, comm.DefaultBacklogSize)
	}
	d.Relay = relay.New(d.Bank, relayLinks...)
	d.Relay.Observer = d.Collector
	d.Loop.Add(d.Relay)
	if d.Queue != nil && cfg.MQTT.FlushCommands {
		d.Relay.SubscribeFlush(d.Queue)
	}

	for _, port := range d.ports {
		if r, ok := port.(fx.Runnable); ok {
			d.Loop.AddRunnable(r)
		}
	}
	if d.Queue != nil {
		d.Loop.AddRunnable(d.Queue)
	}
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
		d.metrics = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		d.Loop.AddRunnable(fx.NamedRun("metrics", fx.RunnableFunc(d.serveMetrics)))
	}
	return d, nil
}

// Run implements Runnable.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.Close()
	for _, lc := range d.Config.Links {
		glog.Infof("link %s: port %d %s, %d bytes buffer", lc.Name, lc.PortID, lc.Device, lc.BufferSize)
	}
	if d.Queue != nil && !d.Queue.Client.IsConnected() {
		if err := d.Queue.ConnectContext(ctx); err != nil {
			return fmt.Errorf("connect %s: %w", d.Config.MQTT.URL, err)
		}
	}
	return d.Loop.Run(ctx)
}

// Close releases the ports and forwarders.
func (d *Daemon) Close() error {
	var errs fx.AggregatedError
	for _, fwd := range d.forwarders {
		errs.Add(fwd.Close())
	}
	d.forwarders = nil
	for _, port := range d.ports {
		if closer, ok := port.(io.Closer); ok {
			errs.Add(closer.Close())
		} else if sp, ok := port.(*uart.StreamPort); ok {
			if closer, ok := sp.Reader.(io.Closer); ok {
				errs.Add(closer.Close())
			}
		}
	}
	d.ports = nil
	return errs.Aggregate()
}

func (d *Daemon) serveMetrics(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.metrics.Addr)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	glog.Infof("metrics on http://%s%s", ln.Addr(), d.Config.Metrics.Path)
	return fx.RunWithContextCancel(ctx, func() { d.metrics.Close() }, func() error {
		if err := d.metrics.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
}
