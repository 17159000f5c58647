// Package sh provides an interactive bench to drive frame receivers by hand.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/tmtc.go/pkg/config"
	"github.com/robotalks/tmtc.go/pkg/l1/comm/mqtt"
	"github.com/robotalks/tmtc.go/pkg/l1/env"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Bench  *Bench
	Config *env.Config

	remote *mqtt.Queue
}

const (
	shellKey = "$shell"
	prompt   = "tmtc > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&LinksCmd,
		&FeedCmd,
		&FrameCmd,
		&UpdateCmd,
		&TickCmd,
		&StatusCmd,
		&CopyCmd,
		&FlushCmd,
		&CountersCmd,
		&RemoteFlushCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(bench *Bench, conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Bench:  bench,
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(prompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Print prints v as JSON when requested, otherwise with text.
func (s *Shell) Print(c *ishell.Context, v interface{}, text string) {
	if !s.OutputJSON {
		c.Println(text)
		return
	}
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

// Remote connects the MQTT broker on first use.
func (s *Shell) Remote() (*mqtt.Queue, error) {
	if s.remote != nil {
		return s.remote, nil
	}
	q, err := mqtt.NewQueueFromURL(s.Config.BrokerURL, s.Config.MQTTClientID("sh"))
	if err != nil {
		return nil, err
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", s.Config.BrokerURL, token.Error())
	}
	s.remote = q
	return q, nil
}

// Close disconnects the broker if connected.
func (s *Shell) Close() {
	if s.remote != nil {
		s.remote.Close()
		s.remote = nil
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Close()
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			glog.Exit(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	glog.Exit("command expected")
}

// BenchFromConfig creates a Bench with the links of cfg.
func BenchFromConfig(cfg *config.Config) (*Bench, error) {
	specs := make([]LinkSpec, len(cfg.Links))
	for n, l := range cfg.Links {
		specs[n] = LinkSpec{
			Name:            l.Name,
			Counters:        l.Counters.CounterMap(),
			BufferSize:      l.BufferSize,
			FlushAfterFrame: l.FlushAfterFrame,
		}
	}
	return NewBench(specs...)
}

// Main is a helper to provide a single call in main.
func Main(configFile string) {
	cfg, err := config.Load(configFile)
	if err != nil {
		glog.Exit(err)
	}
	bench, err := BenchFromConfig(cfg)
	if err != nil {
		glog.Exit(err)
	}
	New(bench, env.Default()).Run(flag.Args()...)
}
