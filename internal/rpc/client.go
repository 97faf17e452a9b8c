package rpc

import (
	"context"
	"fmt"
	"net"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/soochol/txsched/internal/txsched"
)

// Client calls the scheduling methods of a remote Server.
type Client struct {
	cli *jrpc2.Client
}

// Dial connects to a Server listening on addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewClient(channel.Line(conn, conn)), nil
}

// NewClient wraps an established channel.
func NewClient(ch channel.Channel) *Client {
	return &Client{cli: jrpc2.NewClient(ch, nil)}
}

// ScheduleTransaction calls schedule_transaction.
func (c *Client) ScheduleTransaction(ctx context.Context, req *txsched.ScheduleRequest) (*txsched.Receipt, error) {
	var receipt txsched.Receipt
	if err := c.cli.CallResult(ctx, MethodScheduleTransaction, req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// ListJobs calls list_jobs.
func (c *Client) ListJobs(ctx context.Context) ([]txsched.JobInfo, error) {
	var res ListJobsResult
	if err := c.cli.CallResult(ctx, MethodListJobs, nil, &res); err != nil {
		return nil, err
	}
	return res.Jobs, nil
}

// GetJob calls get_job.
func (c *Client) GetJob(ctx context.Context, id string) (*txsched.JobInfo, error) {
	var info txsched.JobInfo
	if err := c.cli.CallResult(ctx, MethodGetJob, GetJobParams{TransactionID: id}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.cli.Close()
}
