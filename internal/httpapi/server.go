// Package httpapi serves the scatter control API over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jmylchreest/scatter/internal/model"
	"github.com/jmylchreest/scatter/internal/overlay"
)

// Source is the event source name recorded for messages posted over HTTP.
const Source = "http"

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Controller is the engine surface the API drives.
type Controller interface {
	overlay.Sink
	Stats(ctx context.Context) (overlay.Stats, error)
}

// SubmitResponse is the reply to POST /api/messages.
type SubmitResponse struct {
	ID       string `json:"id"`
	Accepted bool   `json:"accepted"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler implements the API routes.
type Handler struct {
	ctrl   Controller
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler creates a Handler backed by ctrl.
func NewHandler(ctrl Controller, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{ctrl: ctrl, logger: logger, now: time.Now}
}

// RegisterRoutes mounts the API on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.healthz)
	r.Route("/api", func(r chi.Router) {
		r.Post("/messages", h.postMessage)
		r.Post("/commands", h.postCommand)
		r.Get("/status", h.getStatus)
	})
}

// NewRouter builds the full middleware stack and routes.
func NewRouter(ctrl Controller, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	NewHandler(ctrl, logger).RegisterRoutes(r)
	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	ev, err := model.DecodeEvent(body, Source, h.now())
	if err != nil {
		h.logger.Warn("rejected message", "error", err)
		writeError(w, http.StatusBadRequest, "invalid event JSON")
		return
	}

	id, accepted, err := h.ctrl.Submit(r.Context(), ev)
	if err != nil {
		h.logger.Error("failed to submit message", "error", err)
		writeError(w, http.StatusServiceUnavailable, "overlay unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitResponse{ID: id, Accepted: accepted})
}

func (h *Handler) postCommand(w http.ResponseWriter, r *http.Request) {
	var cmd overlay.Command
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid command JSON")
		return
	}

	if err := h.ctrl.Execute(r.Context(), cmd); err != nil {
		if errors.Is(err, overlay.ErrUnknownCommand) || errors.Is(err, overlay.ErrMissingStyles) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to execute command", "command", cmd.Name, "error", err)
		writeError(w, http.StatusServiceUnavailable, "overlay unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.ctrl.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "overlay unavailable")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// requestLogger logs each request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// Server runs the API until its context ends.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      20 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// Run listens and serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("HTTP control API listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	s.logger.Info("HTTP control API stopped")
	return nil
}
