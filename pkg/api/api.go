// Package api serves the liveness and metrics endpoints of ledgerwatch.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Phillezi/ledgerwatch/pkg/logging"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/tomasen/realip"
	"golang.org/x/sync/errgroup"
)

// DefaultAddr is the loopback address the API binds to by default.
const DefaultAddr = "127.0.0.1:3001"

// Option defines a functional option for Server.
type Option func(*Server)

// Server is the HTTP surface of the process.
type Server struct {
	addr            string
	logger          logr.Logger
	gatherer        prometheus.Gatherer
	shutdownTimeout time.Duration
}

// New creates a server listening on DefaultAddr unless WithAddr is given.
func New(opts ...Option) *Server {
	s := &Server{
		addr:   DefaultAddr,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logr.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithGatherer exposes g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithShutdownTimeout bounds the graceful shutdown. Zero waits for every
// in-flight request.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", health).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/health", health).Methods(http.MethodGet, http.MethodHead)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	r.Use(s.accessLog)

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
	})
	return c.Handler(r)
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.V(1).Info("request", "method", r.Method, "path", r.URL.Path, "client", realip.FromRequest(r))
		next.ServeHTTP(w, r)
	})
}

// Run listens on the configured address and serves until ctx is done, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done. ln is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("listening", "addr", ln.Addr().String())

	g, gctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-gctx.Done():
		}
		shutdownCtx := context.Background()
		if s.shutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.shutdownTimeout)
			defer cancel()
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		s.logger.Error(err, "api exited with error")
		return err
	}
	s.logger.Info("api shut down")
	return nil
}
