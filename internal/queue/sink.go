package queue

import (
	"context"
	"net"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/rs/zerolog/log"
	"github.com/soochol/txsched/internal/rpc"
	"github.com/soochol/txsched/internal/txsched"
)

// Ack is the sink's reply to process_transaction.
type Ack struct {
	Accepted      bool      `json:"accepted"`
	TransactionID string    `json:"transactionId"`
	ReceivedAt    time.Time `json:"receivedAt"`
}

// HandlerFunc processes one received payload. A non-nil error is returned
// to the caller as a JSON-RPC error.
type HandlerFunc func(ctx context.Context, p txsched.TransactionPayload) error

// Sink is a minimal queue endpoint accepting process_transaction calls.
type Sink struct {
	handle  HandlerFunc
	methods handler.Map
}

// NewSink creates a Sink that passes every payload to fn. A nil fn only logs.
func NewSink(fn HandlerFunc) *Sink {
	s := &Sink{handle: fn}
	s.methods = handler.Map{
		MethodProcessTransaction: handler.New(s.processTransaction),
	}
	return s
}

// Methods returns the sink's method table.
func (s *Sink) Methods() handler.Map {
	return s.methods
}

// Serve accepts queue connections on lst until ctx ends.
func (s *Sink) Serve(ctx context.Context, lst net.Listener) error {
	log.Info().Str("addr", lst.Addr().String()).Msg("queue: sink listening")
	return rpc.ServeListener(ctx, lst, s.methods)
}

func (s *Sink) processTransaction(ctx context.Context, p *txsched.TransactionPayload) (*Ack, error) {
	if p == nil || p.TransactionID == "" {
		return nil, &jrpc2.Error{Code: rpc.CodeInvalidParams, Message: "missing required param: transactionId"}
	}
	log.Info().Str("transaction", p.TransactionID).Int64("user", p.UserID).
		Str("type", string(p.Type)).Str("amount", p.Amount.String()).
		Msg("queue: transaction received")

	if s.handle != nil {
		if err := s.handle(ctx, *p); err != nil {
			return nil, &jrpc2.Error{Code: rpc.CodeInternal, Message: err.Error()}
		}
	}
	return &Ack{Accepted: true, TransactionID: p.TransactionID, ReceivedAt: time.Now().UTC()}, nil
}
