// Package config manages the receiver daemon configuration using koanf/v2.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/robotalks/tmtc.go/pkg/l0/framer"
	"github.com/robotalks/tmtc.go/pkg/l0/uart"
)

// Config is the daemon configuration.
type Config struct {
	// Tick is the period of the receive loop.
	Tick    time.Duration `koanf:"tick"`
	Metrics MetricsConfig `koanf:"metrics"`
	MQTT    MQTTConfig    `koanf:"mqtt"`
	Links   []LinkConfig  `koanf:"links"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
	Path string `koanf:"path"`
}

// MQTTConfig configures the broker connection. An empty URL disables MQTT.
type MQTTConfig struct {
	// URL is like mqtt://host:1883/topic-prefix/
	URL string `koanf:"url"`
	// ClientID defaults to the node ID.
	ClientID string `koanf:"client_id"`
	// Housekeeping publishes counters as retained records.
	Housekeeping bool `koanf:"housekeeping"`
	// FlushCommands accepts flush requests on <link>/cmd/flush.
	FlushCommands bool `koanf:"flush_commands"`
}

// LinkConfig describes a serial link.
type LinkConfig struct {
	Name            string         `koanf:"name"`
	PortID          int            `koanf:"port_id"`
	Device          string         `koanf:"device"`
	BufferSize      int            `koanf:"buffer_size"`
	FlushAfterFrame bool           `koanf:"flush_after_frame"`
	Forward         []string       `koanf:"forward"`
	Counters        CountersConfig `koanf:"counters"`
}

// CountersConfig assigns the counter IDs of a link.
type CountersConfig struct {
	Overflow            uint16 `koanf:"overflow"`
	Flush               uint16 `koanf:"flush"`
	WrongHeaderChecksum uint16 `koanf:"wrong_header_checksum"`
	WrongDataChecksum   uint16 `koanf:"wrong_data_checksum"`
}

// CounterMap converts the IDs for the frame receiver.
func (c CountersConfig) CounterMap() framer.CounterMap {
	return framer.CounterMap{
		Overflow:            framer.CounterID(c.Overflow),
		Flush:               framer.CounterID(c.Flush),
		WrongHeaderChecksum: framer.CounterID(c.WrongHeaderChecksum),
		WrongDataChecksum:   framer.CounterID(c.WrongDataChecksum),
	}
}

// TransportID returns the port identity.
func (l LinkConfig) TransportID() uart.ID {
	return uart.ID(l.PortID)
}

// DefaultBufferSize is the receive buffer size of a link.
const DefaultBufferSize = 1024

// DefaultConfig returns a Config with the two links of the flight computer.
func DefaultConfig() *Config {
	return &Config{
		Tick: 10 * time.Millisecond,
		Metrics: MetricsConfig{
			Addr: ":9110",
			Path: "/metrics",
		},
		Links: []LinkConfig{
			{
				Name:       "pf",
				PortID:     1,
				Device:     "/dev/ttyS1",
				BufferSize: DefaultBufferSize,
				Counters:   CountersConfig{Overflow: 0x0100, Flush: 0x0101, WrongHeaderChecksum: 0x0102, WrongDataChecksum: 0x0103},
			},
			{
				Name:       "pu",
				PortID:     2,
				Device:     "/dev/ttyS2",
				BufferSize: DefaultBufferSize,
				Counters:   CountersConfig{Overflow: 0x0110, Flush: 0x0111, WrongHeaderChecksum: 0x0112, WrongDataChecksum: 0x0113},
			},
		},
	}
}

// envPrefix is the environment variable prefix. Variables are named
// TMTC_<section>_<key>, e.g. TMTC_MQTT_CLIENT_ID.
const envPrefix = "TMTC_"

// Load layers DefaultConfig, the YAML file at path (skipped when empty)
// and TMTC_ environment overrides, then validates the result.
//
//	TMTC_TICK            -> tick
//	TMTC_METRICS_ADDR    -> metrics.addr
//	TMTC_MQTT_URL        -> mqtt.url
//	TMTC_MQTT_CLIENT_ID  -> mqtt.client_id
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	for n := range cfg.Links {
		if cfg.Links[n].BufferSize == 0 {
			cfg.Links[n].BufferSize = DefaultBufferSize
		}
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// envKeyMapper maps TMTC_MQTT_CLIENT_ID to mqtt.client_id: only the first
// underscore separates the section.
func envKeyMapper(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	links := make([]map[string]any, 0, len(defaults.Links))
	for _, l := range defaults.Links {
		links = append(links, map[string]any{
			"name":        l.Name,
			"port_id":     l.PortID,
			"device":      l.Device,
			"buffer_size": l.BufferSize,
			"counters": map[string]any{
				"overflow":              l.Counters.Overflow,
				"flush":                 l.Counters.Flush,
				"wrong_header_checksum": l.Counters.WrongHeaderChecksum,
				"wrong_data_checksum":   l.Counters.WrongDataChecksum,
			},
		})
	}
	defaultMap := map[string]any{
		"tick":         defaults.Tick.String(),
		"metrics.addr": defaults.Metrics.Addr,
		"metrics.path": defaults.Metrics.Path,
		"links":        links,
	}
	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}
	return nil
}

// Validation errors.
var (
	ErrInvalidTick    = errors.New("tick must be > 0")
	ErrNoLinks        = errors.New("no links configured")
	ErrEmptyLinkName  = errors.New("link name must not be empty")
	ErrDuplicateLink  = errors.New("duplicate link")
	ErrDuplicatePort  = errors.New("duplicate port_id")
	ErrEmptyDevice    = errors.New("link device must not be empty")
	ErrBufferSize     = fmt.Errorf("buffer_size must be >= %d", framer.MaxFrameSize)
	ErrMetricsPath    = errors.New("metrics.path must start with /")
	ErrForwardNoMQTT  = errors.New("forward to mqtt requires mqtt.url")
	ErrCommandsNoMQTT = errors.New("mqtt features require mqtt.url")
)

// Validate checks the configuration for logical errors and returns the
// first one.
func Validate(cfg *Config) error {
	if cfg.Tick <= 0 {
		return ErrInvalidTick
	}
	if cfg.Metrics.Addr != "" && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return ErrMetricsPath
	}
	if cfg.MQTT.URL == "" && (cfg.MQTT.Housekeeping || cfg.MQTT.FlushCommands) {
		return ErrCommandsNoMQTT
	}
	if len(cfg.Links) == 0 {
		return ErrNoLinks
	}
	names := make(map[string]struct{}, len(cfg.Links))
	ports := make(map[int]struct{}, len(cfg.Links))
	links := make([]framer.Link, 0, len(cfg.Links))
	for i, l := range cfg.Links {
		if l.Name == "" {
			return fmt.Errorf("links[%d]: %w", i, ErrEmptyLinkName)
		}
		if _, dup := names[l.Name]; dup {
			return fmt.Errorf("links[%d] %q: %w", i, l.Name, ErrDuplicateLink)
		}
		names[l.Name] = struct{}{}
		if _, dup := ports[l.PortID]; dup {
			return fmt.Errorf("links[%d] %q: %w %d", i, l.Name, ErrDuplicatePort, l.PortID)
		}
		ports[l.PortID] = struct{}{}
		if l.Device == "" {
			return fmt.Errorf("links[%d] %q: %w", i, l.Name, ErrEmptyDevice)
		}
		if l.BufferSize < framer.MaxFrameSize {
			return fmt.Errorf("links[%d] %q: %w", i, l.Name, ErrBufferSize)
		}
		for _, target := range l.Forward {
			if target == "mqtt" && cfg.MQTT.URL == "" {
				return fmt.Errorf("links[%d] %q: %w", i, l.Name, ErrForwardNoMQTT)
			}
		}
		links = append(links, framer.Link{Name: l.Name, Counters: l.Counters.CounterMap()})
	}
	if _, err := framer.NewCounterIndex(links...); err != nil {
		return err
	}
	return nil
}
