package main

import (
	"flag"

	"github.com/robotalks/tmtc.go/pkg/cli/sh"
	"github.com/robotalks/tmtc.go/pkg/l1/env"
)

//go-build: CGO_ENABLED=0

var configFile string

func init() {
	env.SetupFlags()
	flag.StringVar(&configFile, "config", "", "Configuration file (YAML) describing the links.")
}

func main() {
	flag.Parse()
	sh.Main(configFile)
}
