package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/soochol/txsched/internal/queue"
	"github.com/spf13/cobra"
)

func newQueueSinkCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "queue-sink",
		Short: "Run a local processing queue that logs every dispatched transaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = cfg.Queue.Addr()
			}
			lst, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("queue-sink listen: %w", err)
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return queue.NewSink(nil).Serve(ctx, lst)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default queue host:port from config)")
	return cmd
}
