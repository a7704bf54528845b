// Package web exposes the event-details dialog, the agenda and attachment
// previews over a JSON HTTP API.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"evdialog/internal/agenda"
	"evdialog/internal/capture"
	"evdialog/internal/config"
	"evdialog/internal/dialog"
	"evdialog/internal/form"
	"evdialog/internal/ics"
	appLog "evdialog/internal/log"
	"evdialog/internal/metrics"
)

// Deps are the collaborators the server routes to. Agenda, Previews and
// Fetcher are optional; their routes answer 503 without them.
type Deps struct {
	Dialogs  *dialog.Store
	Agenda   *agenda.Agenda
	Previews *capture.Previewer
	Fetcher  *ics.Fetcher
	Metrics  *metrics.Recorder

	// Now defaults to time.Now.
	Now func() time.Time
}

// Server provides the HTTP API.
type Server struct {
	cfg  *config.Config
	deps Deps
	mux  *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mux:  http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials leave auth disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="evdialog", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", s.deps.Metrics.Handler())

	s.mux.HandleFunc("POST /api/dialogs", s.handleOpenDialog)
	s.mux.HandleFunc("GET /api/dialogs/{id}", s.withDialog(s.handleView))
	s.mux.HandleFunc("DELETE /api/dialogs/{id}", s.withDialog(s.handleClose))
	s.mux.HandleFunc("POST /api/dialogs/{id}/actions", s.withDialog(s.handleAction))
	s.mux.HandleFunc("POST /api/dialogs/{id}/all-day", s.withDialog(s.handleAllDay))
	s.mux.HandleFunc("PUT /api/dialogs/{id}/attachments", s.withDialog(s.handleSetAttachments))
	s.mux.HandleFunc("DELETE /api/dialogs/{id}/attachments/{index}", s.withDialog(s.handleRemoveAttachment))
	s.mux.HandleFunc("POST /api/dialogs/{id}/submit", s.withDialog(s.handleSubmit))
	s.mux.HandleFunc("POST /api/dialogs/{id}/delete", s.withDialog(s.handleDelete))
	s.mux.HandleFunc("POST /api/dialogs/{id}/reload", s.withDialog(s.handleReload))
	s.mux.HandleFunc("GET /api/dialogs/{id}/event.ics", s.withDialog(s.handleExport))
	s.mux.HandleFunc("POST /api/dialogs/{id}/import", s.withDialog(s.handleImport))
	s.mux.HandleFunc("GET /api/dialogs/{id}/attachments/{fileID}/preview.png", s.withDialog(s.handlePreview))

	s.mux.HandleFunc("GET /api/agenda", s.handleAgenda)
	s.mux.HandleFunc("GET /api/period-types", s.handlePeriodTypes)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleAgenda returns the cached occurrence list.
//
// GET /api/agenda?refresh=1 refreshes synchronously first.
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	if s.deps.Agenda == nil {
		writeError(w, http.StatusServiceUnavailable, "agenda disabled")
		return
	}
	if r.URL.Query().Get("refresh") == "1" {
		if err := s.deps.Agenda.Refresh(r.Context()); err != nil {
			writeError(w, http.StatusBadGateway, "agenda refresh failed")
			return
		}
	}
	writeJSON(w, http.StatusOK, s.deps.Agenda.Snapshot())
}

func (s *Server) handlePeriodTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, form.PeriodTypes)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
