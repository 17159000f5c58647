package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/robotalks/tmtc.go/pkg/config"
	fx "github.com/robotalks/tmtc.go/pkg/framework"
	"github.com/robotalks/tmtc.go/pkg/l1/daemon"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "tmtcd",
	Short:         "TM/TC frame receiver",
	Long:          "tmtcd extracts frames from the TM/TC serial links and relays them.",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		// glog expects the go flag set to be parsed.
		flag.CommandLine.Parse(nil)
	},
	RunE: func(*cobra.Command, []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		d, err := daemon.New(cfg, daemon.Options{})
		if err != nil {
			return err
		}
		runner := fx.NewRunner().HandleSignals()
		runner.Go(fx.NamedRun("tmtcd", d))
		return runner.Wait()
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		for _, l := range cfg.Links {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: port %d %s buffer %d forward %v\n",
				l.Name, l.PortID, l.Device, l.BufferSize, l.Forward)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (YAML).")
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	rootCmd.PersistentFlags().AddFlagSet(pflag.CommandLine)
	rootCmd.AddCommand(checkCmd)
}

func main() {
	defer glog.Flush()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		glog.Flush()
		os.Exit(1)
	}
}
