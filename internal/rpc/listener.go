package rpc

import (
	"context"
	"net"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/server"
	"github.com/rs/zerolog/log"
)

// ServeListener accepts TCP connections on lst and serves methods on each
// with its own line-framed JSON-RPC server. It returns nil once ctx ends, after
// stopping every connection it started.
func ServeListener(ctx context.Context, lst net.Listener, methods jrpc2.Assigner) error {
	return server.Loop(ctx, server.NetAccepter(lst, channel.Line), func() server.Service {
		return connService{methods: methods}
	}, &server.LoopOptions{
		ServerOptions: &jrpc2.ServerOptions{
			Logger: jrpc2.Logger(func(text string) {
				log.Debug().Str("addr", lst.Addr().String()).Msg("rpc: " + text)
			}),
		},
	})
}

// connService serves one accepted connection.
type connService struct {
	methods jrpc2.Assigner
}

func (c connService) Assigner() (jrpc2.Assigner, error) {
	log.Debug().Msg("rpc: connection opened")
	return c.methods, nil
}

func (connService) Finish(_ jrpc2.Assigner, stat jrpc2.ServerStatus) {
	if !stat.Success() {
		log.Warn().Err(stat.Err).Msg("rpc: connection ended with error")
		return
	}
	log.Debug().Msg("rpc: connection closed")
}
