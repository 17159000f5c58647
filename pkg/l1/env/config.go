package env

import (
	"flag"
	"os"
)

// Config provides common options of the client tools.
type Config struct {
	// BrokerURL specifies the MQTT broker, e.g. mqtt://host:port/topic-prefix/
	BrokerURL string
	// ClientID is the MQTT client ID, NodeID by default.
	ClientID string
}

var defaultConfig = Config{
	BrokerURL: "mqtt://localhost:1883/tmtc/",
}

func init() {
	if val := os.Getenv("TMTC_MQTT_URL"); val != "" {
		defaultConfig.BrokerURL = val
	}
	if val := os.Getenv("TMTC_MQTT_CLIENT_ID"); val != "" {
		defaultConfig.ClientID = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.BrokerURL, "mqtt", defaultConfig.BrokerURL, "MQTT broker URL.")
	flag.StringVar(&defaultConfig.ClientID, "client-id", defaultConfig.ClientID, "MQTT client ID.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// MQTTClientID returns the configured client ID or a name derived from
// NodeID with suffix.
func (c *Config) MQTTClientID(suffix string) string {
	if c.ClientID != "" {
		return c.ClientID
	}
	return NodeID() + "-" + suffix
}
