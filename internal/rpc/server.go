// Package rpc exposes the scheduling service over JSON-RPC 2.0.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/rs/zerolog/log"
	"github.com/soochol/txsched/internal/txsched"
)

// Method names.
const (
	MethodScheduleTransaction = "schedule_transaction"
	MethodListJobs            = "list_jobs"
	MethodGetJob              = "get_job"
)

// JSON-RPC error codes.
const (
	CodeInvalidParams = jrpc2.Code(-32602)
	CodeJobNotFound   = jrpc2.Code(-32004)
	CodeInternal      = jrpc2.Code(-32603)
)

// Scheduler is the part of the scheduling service the transport needs.
type Scheduler interface {
	ScheduleTransaction(ctx context.Context, req *txsched.ScheduleRequest) (*txsched.Receipt, error)
	ListJobs() []txsched.JobInfo
	GetJob(id string) (txsched.JobInfo, error)
}

// ListJobsResult is the response for list_jobs.
type ListJobsResult struct {
	Jobs []txsched.JobInfo `json:"jobs"`
}

// GetJobParams is the input for get_job.
type GetJobParams struct {
	TransactionID string `json:"transactionId"`
}

// Server holds the method table served on TCP and through the HTTP bridge.
type Server struct {
	sched   Scheduler
	methods handler.Map
}

// NewServer creates a Server backed by sched.
func NewServer(sched Scheduler) *Server {
	s := &Server{sched: sched}
	s.methods = handler.Map{
		MethodScheduleTransaction: handler.New(s.scheduleTransaction),
		MethodListJobs:            handler.New(s.listJobs),
		MethodGetJob:              handler.New(s.getJob),
	}
	return s
}

// Methods returns the method table.
func (s *Server) Methods() handler.Map {
	return s.methods
}

// Serve accepts connections on lst until ctx ends.
func (s *Server) Serve(ctx context.Context, lst net.Listener) error {
	log.Info().Str("addr", lst.Addr().String()).Msg("rpc: listening")
	return ServeListener(ctx, lst, s.methods)
}

// scheduleTransaction decodes params strictly: unknown fields are rejected.
func (s *Server) scheduleTransaction(ctx context.Context, req *jrpc2.Request) (*txsched.Receipt, error) {
	var raw json.RawMessage
	if err := req.UnmarshalParams(&raw); err != nil {
		return nil, invalidParams(err)
	}
	if len(raw) == 0 {
		return nil, &jrpc2.Error{Code: CodeInvalidParams, Message: "missing params"}
	}
	in, err := txsched.DecodeScheduleRequestBytes(raw)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := in.Validate(); err != nil {
		return nil, invalidParams(err)
	}

	log.Info().Int64("user", in.UserID).Str("type", string(in.Type)).Str("schedule_at", in.ScheduleAt).
		Msg("rpc: schedule request received")
	receipt, err := s.sched.ScheduleTransaction(ctx, in)
	if err != nil {
		return nil, toRPCError(err)
	}
	return receipt, nil
}

func (s *Server) listJobs(_ context.Context) (*ListJobsResult, error) {
	return &ListJobsResult{Jobs: s.sched.ListJobs()}, nil
}

func (s *Server) getJob(_ context.Context, p *GetJobParams) (*txsched.JobInfo, error) {
	if p == nil || p.TransactionID == "" {
		return nil, &jrpc2.Error{Code: CodeInvalidParams, Message: "missing required param: transactionId"}
	}
	info, err := s.sched.GetJob(p.TransactionID)
	if err != nil {
		return nil, toRPCError(err)
	}
	return &info, nil
}

func invalidParams(err error) error {
	return &jrpc2.Error{Code: CodeInvalidParams, Message: err.Error()}
}

func toRPCError(err error) error {
	switch {
	case txsched.IsRequestError(err):
		return invalidParams(err)
	case errors.Is(err, txsched.ErrJobNotFound):
		return &jrpc2.Error{Code: CodeJobNotFound, Message: err.Error()}
	default:
		log.Error().Err(err).Msg("rpc: internal error")
		return &jrpc2.Error{Code: CodeInternal, Message: "internal error"}
	}
}
