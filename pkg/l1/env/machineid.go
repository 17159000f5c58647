// Package env identifies the node the receiver runs on.
package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// AppID salts the machine ID so it isn't exposed as-is on the network.
const AppID = "tmtc.go"

// MachineID retrieves the unique ID identifying the machine.
func MachineID() (string, error) {
	return machineid.ProtectedID(AppID)
}

// NodeID returns a short, stable name of this node for MQTT client IDs
// and housekeeping records. TMTC_NODE_ID overrides it; without a machine
// ID the hostname is used.
func NodeID() string {
	if id := os.Getenv("TMTC_NODE_ID"); id != "" {
		return id
	}
	id, err := MachineID()
	if err == nil && len(id) >= 12 {
		return "tmtc-" + id[:12]
	}
	glog.V(1).Infof("machine id unavailable: %v", err)
	host, herr := os.Hostname()
	if herr != nil || host == "" {
		return "tmtc"
	}
	return "tmtc-" + host
}
