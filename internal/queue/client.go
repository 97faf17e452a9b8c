// Package queue talks JSON-RPC 2.0 to the transaction processing queue.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/rs/zerolog/log"
	"github.com/soochol/txsched/internal/txsched"
)

// MethodProcessTransaction is the queue method that receives due transactions.
const MethodProcessTransaction = "process_transaction"

// ClientOptions configures a Client. Zero timeouts mean no limit.
type ClientOptions struct {
	Timeout     time.Duration
	DialTimeout time.Duration
}

// Client dispatches transaction payloads to the queue over one line-framed
// TCP connection. The connection is dialed lazily and replaced after a
// transport failure. It implements ports.Dispatcher.
type Client struct {
	addr string
	opts ClientOptions

	mu  sync.Mutex
	cli *jrpc2.Client
}

// NewClient creates a Client for the queue at addr (host:port).
func NewClient(addr string, opts ClientOptions) *Client {
	return &Client{addr: addr, opts: opts}
}

// Dispatch sends p as a process_transaction call and returns the queue's
// acknowledgment. Every failure wraps txsched.ErrDispatchFailure.
func (c *Client) Dispatch(ctx context.Context, p txsched.TransactionPayload) (json.RawMessage, error) {
	cli, err := c.conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", txsched.ErrDispatchFailure, err)
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	var ack json.RawMessage
	if err := cli.CallResult(ctx, MethodProcessTransaction, p, &ack); err != nil {
		var rpcErr *jrpc2.Error
		if !errors.As(err, &rpcErr) {
			// The connection may be unusable; the next dispatch redials.
			c.drop(cli)
		}
		return nil, fmt.Errorf("%w: %s: %v", txsched.ErrDispatchFailure, p.TransactionID, err)
	}
	return ack, nil
}

func (c *Client) conn(ctx context.Context) (*jrpc2.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cli != nil {
		return c.cli, nil
	}

	if c.opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.DialTimeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.addr, err)
	}
	c.cli = jrpc2.NewClient(channel.Line(conn, conn), nil)
	log.Debug().Str("addr", c.addr).Msg("queue: connected")
	return c.cli, nil
}

func (c *Client) drop(cli *jrpc2.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cli != cli {
		return
	}
	c.cli.Close()
	c.cli = nil
	log.Debug().Str("addr", c.addr).Msg("queue: connection dropped")
}

// Close closes the current connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cli == nil {
		return nil
	}
	err := c.cli.Close()
	c.cli = nil
	return err
}
