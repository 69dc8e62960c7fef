// Package daemon implements the Tracker Service: a stateless JSON/HTTP
// layer in front of a storage.Store, serialised by the store's own
// lock. One process per project, loopback by default, no auth.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fieldnotes/springfield/internal/pensa/perr"
	"github.com/fieldnotes/springfield/internal/pensa/storage"
)

// Server wraps a Store behind an http.Server.
type Server struct {
	store  storage.Store
	log    *slog.Logger
	server *http.Server
}

// New builds a Server bound to addr (host:port), but does not start
// listening until Run is called.
func New(store storage.Store, addr string, log *slog.Logger) *Server {
	s := &Server{store: store, log: log}
	mux := http.NewServeMux()
	s.routes(mux)
	s.server = &http.Server{Addr: addr, Handler: withLogging(log, mux)}
	return s
}

// Handler exposes the server's routed http.Handler directly, for tests
// that want to drive it with httptest.NewServer without binding the
// real addr.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func withLogging(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// Run listens until ctx is cancelled, then shuts down gracefully with
// a bounded grace period, mirroring the contract spec.md §5 describes
// for SIGINT/SIGTERM: in-flight requests complete, then the listener
// closes.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func actorFromRequest(r *http.Request, body map[string]any) string {
	if body != nil {
		if a, ok := body["actor"].(string); ok && a != "" {
			return a
		}
	}
	if h := r.Header.Get("x-pensa-actor"); h != "" {
		return h
	}
	return "unknown"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, err error) {
	if pe, ok := perr.As(err); ok {
		writeJSON(w, pe.HTTPStatus(), perr.ToResponse(pe))
		return
	}
	writeJSON(w, 500, perr.ToResponse(err))
}

func decodeBody(r *http.Request, v any) (map[string]any, error) {
	raw := map[string]any{}
	if r.Body == nil || r.ContentLength == 0 {
		return raw, nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	if v != nil {
		if err := json.Unmarshal(buf, v); err != nil {
			return nil, err
		}
	}
	return raw, nil
}
