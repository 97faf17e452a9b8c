package main

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/soochol/txsched/internal/config"
	"github.com/soochol/txsched/internal/logging"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	cfg        *config.Config
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "txsched",
		Short:         "Transaction scheduling engine",
		Long:          "Schedules one-time and recurring DEPOSIT/WITHDRAW transactions and dispatches them to the processing queue.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			logging.Setup(cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (default ./config.yaml when present)")

	root.AddCommand(
		newServeCmd(),
		newScheduleCmd(),
		newJobsCmd(),
		newQueueSinkCmd(),
		newVersionCmd(),
	)
	return root
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadDefault()
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(c); err != nil {
		return nil, err
	}
	return c, nil
}

// dialAddr turns a listen address into one a local client can dial.
func dialAddr(host, port string) string {
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "txsched", version)
		},
	}
}
