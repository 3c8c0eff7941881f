package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

const (
	shutdownTimeout = 10 * time.Second
	cleanupInterval = 10 * time.Minute
)

// httpServer is the subset of *http.Server the service drives.
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService runs an HTTP server under a supervisor.
type HTTPService struct {
	server httpServer
}

func NewHTTPService(srv *http.Server) *HTTPService {
	return &HTTPService{server: srv}
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPService) String() string { return "http-server" }

// cleanupService evicts idle rate limiter keys.
type cleanupService struct {
	server *Server
}

func (c cleanupService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.server.rateLimiter.Cleanup(triggerWindow)
		}
	}
}

func (c cleanupService) String() string { return "ratelimit-cleanup" }

// Supervisor returns a supervisor running the HTTP server, the rate limiter
// cleanup, and any extra services. Supervisor events are logged to logger.
func (s *Server) Supervisor(httpSrv *http.Server, extra ...suture.Service) *suture.Supervisor {
	hook := (&sutureslog.Handler{Logger: s.logger.With("component", "supervisor")}).MustHook()

	sup := suture.New("praxisbackup", suture.Spec{
		EventHook: hook,
		Timeout:   shutdownTimeout,
	})
	sup.Add(NewHTTPService(httpSrv))
	sup.Add(cleanupService{server: s})
	for _, svc := range extra {
		sup.Add(svc)
	}
	return sup
}
