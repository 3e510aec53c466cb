package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/justinas/alice"

	"weekcal/internal/config"
	appLog "weekcal/internal/log"
	"weekcal/internal/metrics"
	"weekcal/internal/render"
	"weekcal/internal/session"
)

// Server exposes the weekly layout as JSON, SVG and an HTML page.
type Server struct {
	cfg     *config.Config
	session *session.Session
	loc     *time.Location
	metrics *metrics.Metrics
	opts    render.Options
	mux     *http.ServeMux

	// Rendered responses keyed by path and canonical query. An entry is
	// valid for cfg.CacheTTL and only for the snapshot it was built from.
	cacheMu sync.RWMutex
	cache   map[string]cachedResponse
}

type cachedResponse struct {
	body        []byte
	contentType string
	loadedAt    time.Time
	storedAt    time.Time
}

// NewServer constructs a new Server. m may be nil.
func NewServer(cfg *config.Config, sess *session.Session, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:     cfg,
		session: sess,
		loc:     sess.Location(),
		metrics: m,
		opts:    render.OptionsFromConfig(cfg),
		mux:     http.NewServeMux(),
		cache:   make(map[string]cachedResponse),
	}
	s.registerRoutes()
	return s
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	chain := alice.New(requestID, logRequests)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled")
		chain = chain.Append(s.basicAuthMiddleware)
	}
	return chain.Then(s.mux)
}

// Serve serves on ln until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

// StartServer listens on cfg.Listen and serves until ctx is canceled.
func StartServer(ctx context.Context, cfg *config.Config, sess *session.Session, m *metrics.Metrics) error {
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	appLog.Info("starting HTTP server", "listen", "http://"+ln.Addr().String())
	return NewServer(cfg, sess, m).Serve(ctx, ln)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/layout", s.handleLayout)
	s.mux.HandleFunc("GET /api/sources", s.handleSources)
	s.mux.HandleFunc("POST /api/reload", s.handleReload)
	s.mux.HandleFunc("GET /schedule.svg", s.handleSVG)
	s.mux.Handle("GET /metrics", s.metrics.Handler())
	s.mux.HandleFunc("GET /{$}", s.handlePage)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleLayout returns one layout pass as JSON.
//
// GET /api/layout?source=a.ics&source=b.ics&lectures=0&week=2024-03-11
//   - source:   sources to include (repeatable, default all)
//   - exclude:  sources to drop (repeatable)
//   - lectures: 0/1, default from config show_lectures
//   - week:     first day of the week, default the earliest event date
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, func(v view) ([]byte, string, error) {
		doc := render.NewDocument(v.result, render.Catalog(v.snap.Catalog, v.state, v.snap.Counts(), s.opts.Palette))
		body, err := json.Marshal(doc)
		return body, "application/json; charset=utf-8", err
	})
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, func(v view) ([]byte, string, error) {
		return []byte(render.SVG(v.result, v.snap.Catalog, s.opts)), "image/svg+xml", nil
	})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, func(v view) ([]byte, string, error) {
		var buf bytes.Buffer
		err := render.HTML(&buf, render.Page{
			Result:   v.result,
			Catalog:  v.snap.Catalog,
			State:    v.state,
			Counts:   v.snap.Counts(),
			Week:     v.week,
			LoadedAt: v.snap.LoadedAt,
		}, s.opts)
		return buf.Bytes(), "text/html; charset=utf-8", err
	})
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	snap, err := s.session.Snapshot()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, render.Catalog(snap.Catalog, s.session.DefaultFilter(snap), snap.Counts(), s.opts.Palette))
}

type reloadResponse struct {
	Events    int       `json:"events"`
	Sources   int       `json:"sources"`
	Failed    []string  `json:"failed,omitempty"`
	Rejected  int       `json:"rejected"`
	Truncated []string  `json:"truncated,omitempty"`
	LoadedAt  time.Time `json:"loaded_at"`
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.session.Reload(r.Context())
	if err != nil {
		appLog.Error("reload failed", err)
		writeError(w, http.StatusInternalServerError, "failed to reload calendars")
		return
	}
	s.cacheMu.Lock()
	clear(s.cache)
	s.cacheMu.Unlock()

	writeJSON(w, http.StatusOK, reloadResponse{
		Events:    snap.Events.Len(),
		Sources:   snap.Catalog.Len(),
		Failed:    snap.Failed,
		Rejected:  snap.Rejected,
		Truncated: snap.Truncated,
		LoadedAt:  snap.LoadedAt,
	})
}

// serveCached runs one layout pass for the request and writes what build
// produces, reusing a fresh cached body for the same snapshot and query.
func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, build func(view) ([]byte, string, error)) {
	snap, err := s.session.Snapshot()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	key := r.URL.Path + "?" + r.URL.Query().Encode()
	ttl := s.cfg.CacheTTLDuration()

	s.cacheMu.RLock()
	c, ok := s.cache[key]
	s.cacheMu.RUnlock()
	if ok && c.loadedAt.Equal(snap.LoadedAt) && time.Since(c.storedAt) < ttl {
		writeBody(w, c.contentType, c.body)
		return
	}

	v, err := s.layout(r, snap)
	switch {
	case errors.Is(err, errBadWeek):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		appLog.Error("week expansion failed", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "failed to expand week")
		return
	}
	body, contentType, err := build(v)
	if err != nil {
		appLog.Error("render failed", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "failed to render schedule")
		return
	}

	s.cacheMu.Lock()
	s.cache[key] = cachedResponse{
		body:        body,
		contentType: contentType,
		loadedAt:    snap.LoadedAt,
		storedAt:    time.Now(),
	}
	s.cacheMu.Unlock()

	writeBody(w, contentType, body)
}

func writeBody(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
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
