// Package api serves the control endpoints of a running session.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fakeyudi/gazetrace/internal/logging"
)

// Status is the snapshot returned by GET /api/v1/status.
type Status struct {
	SessionID   string    `json:"session_id"`
	ProjectPath string    `json:"project_path"`
	FilePath    string    `json:"file_path"`
	StartedAt   time.Time `json:"started_at"`
	Supervisor  string    `json:"supervisor"`
	HostPort    int       `json:"host_port"`
	Paused      bool      `json:"paused"`
	Realtime    bool      `json:"realtime"`
	Received    uint64    `json:"received"`
	Dropped     uint64    `json:"dropped"`
	Skipped     uint64    `json:"skipped"`
	Entries     int       `json:"entries"`
}

// Controller is the running session as seen by the API.
type Controller interface {
	Status() (Status, bool)
	// RequestStop asks the session to shut down and returns immediately.
	RequestStop()
	Pause() bool
	Resume() bool
}

type Server struct {
	router *chi.Mux
	ctrl   Controller
	log    *slog.Logger
}

func NewServer(ctrl Controller, logger *slog.Logger) *Server {
	log := logging.OrDiscard(logger).With("component", "api")
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(log))
	router.Use(middleware.Recoverer)

	s := &Server{router: router, ctrl: ctrl, log: log}

	router.Get("/health", s.health)
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Post("/stop", s.stop)
		r.Post("/pause", s.pause)
		r.Post("/resume", s.resume)
	})
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Listen binds addr; use the listener's Addr to learn an ephemeral port.
func Listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// Serve handles requests on ln until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info("API server listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	st, ok := s.ctrl.Status()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active session"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) stop(w http.ResponseWriter, r *http.Request) {
	s.ctrl.RequestStop()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	s.toggle(w, s.ctrl.Pause(), "paused")
}

func (s *Server) resume(w http.ResponseWriter, r *http.Request) {
	s.toggle(w, s.ctrl.Resume(), "tracking")
}

func (s *Server) toggle(w http.ResponseWriter, ok bool, state string) {
	if !ok {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no active session"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": state})
}

// requestLogger logs each request through slog at debug level.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
