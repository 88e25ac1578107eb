// Package proxy exposes the interception worker as a loopback HTTP forward proxy.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const shutdownTimeout = 5 * time.Second

// Server is the loopback forward proxy
type Server struct {
	handler http.Handler
	limiter *RateLimiter
	logger  *slog.Logger
	addr    string
}

// NewServer builds the proxy in front of forward. rateLimit is the number of
// requests per minute allowed per client; zero disables limiting.
func NewServer(addr string, rateLimit int, forward http.Handler, health http.Handler, logger *slog.Logger) *Server {
	s := &Server{
		addr:   addr,
		logger: logger,
	}

	mux := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Абсолютный URL - проксируемый запрос, даже если путь совпадает
		if r.URL.Host == "" && r.URL.Path == HealthPath {
			health.ServeHTTP(w, r)
			return
		}
		forward.ServeHTTP(w, r)
	})

	var h http.Handler = mux
	if rateLimit > 0 {
		s.limiter = NewRateLimiter(rateLimit, time.Minute, logger)
		h = s.limiter.Middleware(h)
	}
	h = Recovery(logger)(h)
	h = Logging(logger, HealthPath)(h)

	s.handler = h
	return s
}

// Handler returns the full middleware chain
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	defer func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
	}()

	errC := make(chan error, 1)
	go func() {
		s.logger.Info("proxy listening", "addr", ln.Addr().String())
		errC <- srv.Serve(ln)
	}()

	select {
	case err := <-errC:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("proxy server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down proxy: %w", err)
	}
	s.logger.Info("proxy stopped")
	return nil
}
