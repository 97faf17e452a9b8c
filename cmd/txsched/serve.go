package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/soochol/txsched/internal/api"
	"github.com/soochol/txsched/internal/config"
	"github.com/soochol/txsched/internal/db"
	"github.com/soochol/txsched/internal/queue"
	"github.com/soochol/txsched/internal/repository"
	"github.com/soochol/txsched/internal/rpc"
	"github.com/soochol/txsched/internal/services"
	"github.com/soochol/txsched/internal/services/scheduler"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler with its JSON-RPC and HTTP listeners",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return err
	}

	mem := repository.NewMemoryDispatchRepository()
	var dispatchRepo repository.DispatchRepository = mem
	if cfg.Database.URL != "" {
		database, err := db.New(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			return err
		}
		dispatchRepo = repository.NewPersistentDispatchRepository(mem, database)
		log.Info().Str("dialect", string(database.Dialect)).Msg("txsched: dispatch history persisted")
	}
	history := services.NewDispatchHistoryService(dispatchRepo)

	dispatcher := queue.NewClient(cfg.Queue.Addr(), queue.ClientOptions{
		Timeout:     cfg.Queue.Timeout,
		DialTimeout: cfg.Queue.DialTimeout,
	})
	defer dispatcher.Close()

	svc := scheduler.NewSchedulerService(scheduler.NewCronTimer(loc), scheduler.NewRegistry(), dispatcher)
	svc.SetLocation(loc)
	svc.SetRecorder(history)

	rpcLst, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}

	apiSrv := api.NewServer(svc, cfg.HTTP)
	apiSrv.SetDispatchHistory(history)
	defer apiSrv.Close()
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           apiSrv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	svc.Start()
	log.Info().Str("queue", cfg.Queue.Addr()).Str("version", version).Msg("txsched: started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rpc.NewServer(svc).Serve(gctx, rpcLst)
	})
	g.Go(func() error {
		log.Info().Str("addr", httpSrv.Addr).Msg("api: listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	err = g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	svc.Stop(stopCtx)
	log.Info().Msg("txsched: shut down")
	return err
}
