package main

import (
	"flag"
	"net"
	"os"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/tmtc.go/pkg/cli/mon"
	fx "github.com/robotalks/tmtc.go/pkg/framework"
	"github.com/robotalks/tmtc.go/pkg/l1/comm"
	"github.com/robotalks/tmtc.go/pkg/l1/comm/mqtt"
	"github.com/robotalks/tmtc.go/pkg/l1/comm/stream"
	"github.com/robotalks/tmtc.go/pkg/l1/comm/websocket"
	"github.com/robotalks/tmtc.go/pkg/l1/env"
)

var (
	source = ""
	link   = "-"
)

func init() {
	env.SetupFlags()
	flag.StringVar(&source, "source", source, "Read a single forward (tcp://host:port or ws://host/path) instead of MQTT.")
	flag.StringVar(&link, "link", link, "Link name printed for -source.")
}

func openSource(target string) (comm.PacketReader, error) {
	if strings.HasPrefix(target, "tcp://") {
		conn, err := net.Dial("tcp", strings.TrimPrefix(target, "tcp://"))
		if err != nil {
			return nil, err
		}
		return stream.New(conn), nil
	}
	return websocket.Dial(target)
}

func main() {
	flag.Parse()
	defer glog.Flush()

	m := mon.New(os.Stdout)
	runner := fx.NewRunner().HandleSignals()
	if source != "" {
		r, err := openSource(source)
		if err != nil {
			glog.Exit(err)
		}
		runner.Go(comm.NewPipe(r, m.Handler(link)))
	} else {
		conf := env.Default()
		q, err := mqtt.NewQueueFromURL(conf.BrokerURL, conf.MQTTClientID("mon"))
		if err != nil {
			glog.Exit(err)
		}
		m.Subscribe(q)
		runner.Go(q)
	}
	if err := runner.Wait(); err != nil {
		glog.Exit(err)
	}
}
