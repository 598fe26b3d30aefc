package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/soopstat/notices"
	"github.com/hazyhaar/soopstat/scrape"
)

func testDeps() Deps {
	return Deps{
		Stats: func(ctx context.Context, target string, force bool) (scrape.Result, time.Time, error) {
			return scrape.Result{Target: target, Success: true, Stats: scrape.DefaultSnapshot()}, time.Now(), nil
		},
		ListNotices: func(ctx context.Context, streamerID string, limit int) ([]notices.Notice, error) {
			return nil, nil
		},
		Refresh: func(ctx context.Context) (notices.Summary, error) {
			return notices.Summary{}, nil
		},
		Log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode: %v (body %s)", err, rec.Body.String())
	}
}

func TestStatsOK(t *testing.T) {
	deps := testDeps()
	var gotForce atomic.Bool
	deps.Stats = func(ctx context.Context, target string, force bool) (scrape.Result, time.Time, error) {
		gotForce.Store(force)
		return scrape.Result{Target: target, Success: true, Partial: true}, time.Now(), nil
	}
	h := New(deps)

	rec := do(t, h, http.MethodGet, "/api/stats/teststreamer?force=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body statsResponse
	decode(t, rec, &body)
	if body.Target != "teststreamer" || !body.Success || !body.Partial {
		t.Errorf("body = %+v", body.Result)
	}
	if !gotForce.Load() {
		t.Error("force flag not forwarded")
	}
}

func TestStatsFetchErrorStays200(t *testing.T) {
	deps := testDeps()
	deps.Stats = func(ctx context.Context, target string, force bool) (scrape.Result, time.Time, error) {
		return scrape.Result{}, time.Time{}, errors.New("browser gone")
	}
	h := New(deps)

	rec := do(t, h, http.MethodGet, "/api/stats/abc")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with error envelope", rec.Code)
	}
	var body statsResponse
	decode(t, rec, &body)
	if body.Success || body.Error == "" {
		t.Errorf("body = %+v", body.Result)
	}
	if body.Stats != scrape.DefaultSnapshot() {
		t.Error("error envelope should carry default stats")
	}
}

func TestStatsInvalidTarget(t *testing.T) {
	h := New(testDeps())

	for _, path := range []string{
		"/api/stats/bad..target",
		"/api/stats/%20",
	} {
		rec := do(t, h, http.MethodGet, path)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestListNotices(t *testing.T) {
	deps := testDeps()
	deps.ListNotices = func(ctx context.Context, streamerID string, limit int) ([]notices.Notice, error) {
		if streamerID != "abc" || limit != 5 {
			t.Errorf("streamerID=%q limit=%d", streamerID, limit)
		}
		return []notices.Notice{{Title: "공지", StreamerID: "abc"}}, nil
	}
	h := New(deps)

	rec := do(t, h, http.MethodGet, "/api/notices?target=abc&limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Notices []notices.Notice `json:"notices"`
		Count   int              `json:"count"`
	}
	decode(t, rec, &body)
	if body.Count != 1 || len(body.Notices) != 1 {
		t.Errorf("body = %+v", body)
	}
}

func TestListNoticesEmptyIsArray(t *testing.T) {
	h := New(testDeps())

	rec := do(t, h, http.MethodGet, "/api/notices")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]json.RawMessage
	decode(t, rec, &body)
	if string(body["notices"]) != "[]" {
		t.Errorf("notices = %s, want empty array not null", body["notices"])
	}
}

func TestListNoticesStoreError(t *testing.T) {
	deps := testDeps()
	deps.ListNotices = func(ctx context.Context, streamerID string, limit int) ([]notices.Notice, error) {
		return nil, errors.New("database is locked")
	}
	h := New(deps)

	rec := do(t, h, http.MethodGet, "/api/notices")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRefreshAccepted(t *testing.T) {
	deps := testDeps()
	called := make(chan struct{})
	deps.Refresh = func(ctx context.Context) (notices.Summary, error) {
		close(called)
		return notices.Summary{}, nil
	}
	h := New(deps)

	rec := do(t, h, http.MethodPost, "/api/notices/refresh")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh never started")
	}
}

func TestHealthz(t *testing.T) {
	deps := testDeps()
	deps.OpenSessions = func() int { return 2 }
	h := New(deps)

	rec := do(t, h, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status       string `json:"status"`
		OpenSessions int    `json:"openSessions"`
	}
	decode(t, rec, &body)
	if body.Status != "ok" || body.OpenSessions != 2 {
		t.Errorf("body = %+v", body)
	}
}
