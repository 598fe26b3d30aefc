// Package api exposes the scrape cache and notice store over HTTP.
//
// Stats responses are always 200 with the result envelope; whether the
// scrape worked is in the envelope's success/partial/error fields, not the
// status code, so dashboard clients render stale or partial data instead
// of breaking on 5xx. Only the notice store can produce a 500.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/soopstat/notices"
	"github.com/hazyhaar/soopstat/scrape"
)

// Deps are the function seams the server calls into. Tests swap them for
// scripted implementations.
type Deps struct {
	// Stats resolves stats for a target, bypassing the cache when force
	// is set. The time is when the returned result was fetched.
	Stats func(ctx context.Context, target string, force bool) (scrape.Result, time.Time, error)
	// ListNotices reads stored notices, optionally filtered by streamer.
	ListNotices func(ctx context.Context, streamerID string, limit int) ([]notices.Notice, error)
	// Refresh kicks off a full notice crawl pass.
	Refresh func(ctx context.Context) (notices.Summary, error)
	// OpenSessions reports live browser tabs for the health probe.
	OpenSessions func() int

	Log *slog.Logger
}

var targetPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)

// New builds the HTTP handler.
func New(deps Deps) http.Handler {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	s := &server{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	r.Get("/healthz", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/stats/{target}", s.stats)
		r.Get("/notices", s.listNotices)
		r.Post("/notices/refresh", s.refreshNotices)
	})
	return r
}

type server struct {
	deps Deps
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.deps.OpenSessions != nil {
		body["openSessions"] = s.deps.OpenSessions()
	}
	writeJSON(w, http.StatusOK, body)
}

// statsResponse wraps a scrape result with cache metadata.
type statsResponse struct {
	scrape.Result
	CachedAt time.Time `json:"cachedAt"`
}

func (s *server) stats(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "target")
	if !targetPattern.MatchString(target) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false, "error": "invalid target id",
		})
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	res, cachedAt, err := s.deps.Stats(r.Context(), target, force)
	if err != nil {
		// Even a cold failure keeps the always-200 contract.
		s.deps.Log.Warn("stats fetch failed", "target", target, "error", err)
		res = scrape.Result{
			Target:    target,
			Stats:     scrape.DefaultSnapshot(),
			Error:     err.Error(),
			FetchedAt: time.Now().UTC(),
		}
		cachedAt = res.FetchedAt
	}
	writeJSON(w, http.StatusOK, statsResponse{Result: res, CachedAt: cachedAt})
}

func (s *server) listNotices(w http.ResponseWriter, r *http.Request) {
	streamerID := r.URL.Query().Get("target")
	if streamerID != "" && !targetPattern.MatchString(streamerID) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid target id"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, err := s.deps.ListNotices(r.Context(), streamerID, limit)
	if err != nil {
		s.deps.Log.Error("notice list failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "storage unavailable"})
		return
	}
	if list == nil {
		list = []notices.Notice{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notices": list, "count": len(list)})
}

func (s *server) refreshNotices(w http.ResponseWriter, r *http.Request) {
	// The crawl outlives the request on purpose; a full pass can run for
	// minutes.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := s.deps.Refresh(ctx); err != nil {
			s.deps.Log.Error("notice refresh failed", "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
