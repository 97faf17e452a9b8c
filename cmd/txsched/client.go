package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"github.com/soochol/txsched/internal/rpc"
	"github.com/soochol/txsched/internal/txsched"
	"github.com/spf13/cobra"
)

const callTimeout = 10 * time.Second

func serverAddr(flag string) string {
	if flag != "" {
		return flag
	}
	return dialAddr(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
}

func newScheduleCmd() *cobra.Command {
	var (
		addr      string
		userID    int64
		amount    string
		txType    string
		at        string
		unit      string
		every     int
		frequency int
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule a transaction on a running server",
		Example: `  txsched schedule --user 1 --amount 100 --type DEPOSIT --at 2030-01-01T09:00:00Z
  txsched schedule --user 1 --amount 25.5 --type WITHDRAW --at 2030-01-01T09:00:00Z --unit HOUR --every 6 --frequency 4`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}
			req := &txsched.ScheduleRequest{
				UserID:     userID,
				Amount:     amt,
				Type:       txsched.TransactionType(strings.ToUpper(txType)),
				ScheduleAt: at,
				Frequency:  frequency,
			}
			if unit != "" || every != 0 {
				req.Interval = &txsched.Interval{Unit: txsched.IntervalUnit(strings.ToUpper(unit)), Value: every}
			}
			if err := req.Validate(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
			defer cancel()
			cli, err := rpc.Dial(ctx, serverAddr(addr))
			if err != nil {
				return err
			}
			defer cli.Close()

			receipt, err := cli.ScheduleTransaction(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), receipt)
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", "scheduler JSON-RPC address (default from config)")
	f.Int64Var(&userID, "user", 0, "user id")
	f.StringVar(&amount, "amount", "", "transaction amount")
	f.StringVar(&txType, "type", "", "DEPOSIT or WITHDRAW")
	f.StringVar(&at, "at", "", "ISO-8601 execution time")
	f.StringVar(&unit, "unit", "", "interval unit: SECOND, MINUTE, HOUR or DAY")
	f.IntVar(&every, "every", 0, "interval value")
	f.IntVar(&frequency, "frequency", 0, "number of executions for a recurring job")
	for _, name := range []string{"user", "amount", "type", "at"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newJobsCmd() *cobra.Command {
	var (
		addr   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "jobs [transactionId]",
		Short: "List live jobs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
			defer cancel()
			cli, err := rpc.Dial(ctx, serverAddr(addr))
			if err != nil {
				return err
			}
			defer cli.Close()

			var jobs []txsched.JobInfo
			if len(args) == 1 {
				job, err := cli.GetJob(ctx, args[0])
				if err != nil {
					return err
				}
				jobs = []txsched.JobInfo{*job}
			} else if jobs, err = cli.ListJobs(ctx); err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), jobs)
			}
			renderJobs(cmd.OutOrStdout(), jobs)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "scheduler JSON-RPC address (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func renderJobs(w io.Writer, jobs []txsched.JobInfo) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Transaction", "Kind", "User", "Type", "Amount", "Schedule", "Executed", "Next"})
	for _, j := range jobs {
		schedule := j.ExecutionDate.Format(time.RFC3339)
		executed := strconv.Itoa(j.ExecutedCount)
		if j.Kind == txsched.JobRecurring {
			if j.Interval != nil {
				schedule = fmt.Sprintf("every %d %s", j.Interval.Value, j.Interval.Unit)
			}
			executed = fmt.Sprintf("%d/%d", j.ExecutedCount, j.Frequency)
		}
		next := "-"
		if j.NextFireAt != nil {
			next = j.NextFireAt.Format(time.RFC3339)
		}
		t.AppendRow(table.Row{j.TransactionID, j.Kind, j.UserID, j.Type, j.Amount.String(), schedule, executed, next})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "Total", len(jobs)})
	t.Render()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
