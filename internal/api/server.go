package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/creachadair/jrpc2/jhttp"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soochol/txsched/internal/config"
	"github.com/soochol/txsched/internal/rpc"
	"github.com/soochol/txsched/internal/txsched"
)

// DispatchHistory is the read side of the dispatch history service.
type DispatchHistory interface {
	List(ctx context.Context, f txsched.DispatchFilter) ([]*txsched.DispatchRecord, int, error)
	Get(ctx context.Context, id string) (*txsched.DispatchRecord, error)
}

type Server struct {
	scheduler rpc.Scheduler
	history   DispatchHistory
	cfg       config.HTTPConfig
	bridge    jhttp.Bridge
	limiter   *IPRateLimiter
}

// NewServer creates the HTTP API. The /rpc endpoint serves the same method
// table as the TCP transport.
func NewServer(sched rpc.Scheduler, cfg config.HTTPConfig) *Server {
	s := &Server{
		scheduler: sched,
		cfg:       cfg,
		bridge:    jhttp.NewBridge(rpc.NewServer(sched).Methods(), nil),
	}
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = NewIPRateLimiter(cfg.RateLimitPerMinute)
	}
	return s
}

// SetDispatchHistory enables the /api/dispatches endpoints.
func (s *Server) SetDispatchHistory(h DispatchHistory) {
	s.history = h
}

// Close releases the JSON-RPC bridge.
func (s *Server) Close() error {
	return s.bridge.Close()
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLog)
	r.Use(recordMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: allowCredentials(s.cfg.CORSAllowedOrigins),
	}))

	// Everything that reads or changes schedules sits behind the bearer check.
	r.Group(func(r chi.Router) {
		if s.cfg.JWTSecret != "" {
			r.Use(requireBearer([]byte(s.cfg.JWTSecret)))
		}
		r.Route("/api", func(r chi.Router) {
			r.With(s.limitPost, maxBytes).Post("/transactions", s.createTransaction)
			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", s.listJobs)
				r.Get("/{id}", s.getJob)
			})
			r.Route("/dispatches", func(r chi.Router) {
				r.Get("/", s.listDispatches)
				r.Get("/{id}", s.getDispatch)
			})
		})
		r.With(s.limitPost, maxBytes).Post("/rpc", s.bridge.ServeHTTP)
	})

	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// allowCredentials is false when any origin is accepted, so a wildcard is
// never reflected back with credentials.
func allowCredentials(origins []string) bool {
	if len(origins) == 0 {
		return false
	}
	for _, o := range origins {
		if o == "*" {
			return false
		}
	}
	return true
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
