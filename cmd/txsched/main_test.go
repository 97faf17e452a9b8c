package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/soochol/txsched/internal/config"
	"github.com/soochol/txsched/internal/queue"
	"github.com/soochol/txsched/internal/rpc"
	"github.com/soochol/txsched/internal/txsched"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:5000", dialAddr("0.0.0.0", "5000"))
	assert.Equal(t, "127.0.0.1:5000", dialAddr("", "5000"))
	assert.Equal(t, "10.1.2.3:5000", dialAddr("10.1.2.3", "5000"))
}

func TestLoadConfig_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txsched.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 5100\nqueue:\n  port: 4100\n"), 0o644))
	t.Setenv("QUEUE_SERVICE_PORT", "4200")

	c, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5100, c.Server.Port)
	assert.Equal(t, 4200, c.Queue.Port, "env overrides the file")

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "txsched dev\n", out.String())
}

func TestRenderJobs(t *testing.T) {
	next := time.Date(2030, 1, 1, 6, 0, 0, 0, time.UTC)
	jobs := []txsched.JobInfo{
		{
			TransactionID: "tx-once", Kind: txsched.JobOneTime, UserID: 1, Type: txsched.TransactionDeposit,
			Amount: decimal.NewFromInt(10), ExecutionDate: next, NextFireAt: &next,
		},
		{
			TransactionID: "tx-every", Kind: txsched.JobRecurring, UserID: 2, Type: txsched.TransactionWithdraw,
			Amount: decimal.RequireFromString("2.5"), ExecutionDate: next,
			Interval: &txsched.Interval{Unit: txsched.UnitHour, Value: 6}, Frequency: 4, ExecutedCount: 1,
		},
	}
	var out bytes.Buffer
	renderJobs(&out, jobs)
	s := out.String()
	for _, want := range []string{"tx-once", "tx-every", "every 6 HOUR", "1/4", "2030-01-01T06:00:00Z"} {
		assert.Contains(t, s, want)
	}
}

// --- End to end ---

func freePort(t *testing.T) int {
	t.Helper()
	lst, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lst.Close()
	return lst.Addr().(*net.TCPAddr).Port
}

func TestServe_DispatchesToQueue(t *testing.T) {
	if testing.Short() {
		t.Skip("end-to-end timing test")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan txsched.TransactionPayload, 4)
	sinkLst, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go queue.NewSink(func(_ context.Context, p txsched.TransactionPayload) error {
		received <- p
		return nil
	}).Serve(ctx, sinkLst)

	c := &config.Config{
		Server:    config.ServerConfig{Host: "127.0.0.1", Port: freePort(t)},
		HTTP:      config.HTTPConfig{Host: "127.0.0.1", Port: freePort(t)},
		Queue:     config.QueueConfig{Host: "127.0.0.1", Port: sinkLst.Addr().(*net.TCPAddr).Port, Timeout: 2 * time.Second, DialTimeout: time.Second},
		Scheduler: config.SchedulerConfig{Timezone: "UTC"},
	}
	done := make(chan error, 1)
	go func() { done <- serve(ctx, c) }()

	var cli *rpc.Client
	require.Eventually(t, func() bool {
		dialCtx, dialCancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer dialCancel()
		cli, err = rpc.Dial(dialCtx, c.Server.Addr())
		return err == nil
	}, 3*time.Second, 50*time.Millisecond)
	defer cli.Close()

	receipt, err := cli.ScheduleTransaction(ctx, &txsched.ScheduleRequest{
		UserID:     9,
		Amount:     decimal.NewFromInt(42),
		Type:       txsched.TransactionDeposit,
		ScheduleAt: time.Now().Add(1500 * time.Millisecond).UTC().Format(time.RFC3339Nano),
	})
	require.NoError(t, err)
	assert.Equal(t, txsched.StatusScheduledOneTime, receipt.Status)

	select {
	case p := <-received:
		assert.Equal(t, receipt.TransactionID, p.TransactionID)
		assert.Equal(t, int64(9), p.UserID)
	case <-time.After(5 * time.Second):
		t.Fatal("transaction was not dispatched")
	}

	base := fmt.Sprintf("http://%s", c.HTTP.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/api/dispatches?transaction_id=" + receipt.TransactionID)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var body struct {
			Total int `json:"total"`
		}
		return json.NewDecoder(resp.Body).Decode(&body) == nil && body.Total == 1
	}, 3*time.Second, 50*time.Millisecond)

	require.Eventually(t, func() bool {
		jobs, err := cli.ListJobs(ctx)
		return err == nil && len(jobs) == 0
	}, time.Second, 20*time.Millisecond, "one-time job is removed after dispatch")

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
