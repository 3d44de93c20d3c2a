package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wikidot-tools/reservebot/internal/domain"
	"github.com/wikidot-tools/reservebot/internal/logger"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal("PONG")
	}
	return cmd
}

func newTestServer(t *testing.T, records []domain.ReservationRecord, pingErr error) *Server {
	t.Helper()
	log := logger.New("error", false)
	cache := NewReservationCache(&fakeSource{records: records}, log, time.Hour)
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("cache refresh: %v", err)
	}
	return &Server{
		logger:  log,
		cache:   cache,
		pinger:  &fakePinger{err: pingErr},
		started: time.Now().Add(-time.Minute),
	}
}

func TestHandleHealthz(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := httptest.NewRecorder()
	srv.handleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body healthzResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status field = %q", body.Status)
	}
	if body.UptimeSeconds < 59 {
		t.Errorf("uptime = %v, want about a minute", body.UptimeSeconds)
	}
}

func TestHandleReadyz(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := httptest.NewRecorder()
	srv.handleReadyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthy readyz status = %d", rec.Code)
	}

	srv = newTestServer(t, nil, errors.New("redis unreachable"))
	rec = httptest.NewRecorder()
	srv.handleReadyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy readyz status = %d, want 503", rec.Code)
	}
	var body readyzResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Ready || body.Error == "" {
		t.Errorf("body = %+v", body)
	}
}

func TestHandleReservations(t *testing.T) {
	records := []domain.ReservationRecord{
		{Username: "alice", PageKey: "reserve:foo", Branch: "02",
			ReservedAt: time.Unix(1700000000, 0).UTC(), Title: "Foo"},
	}
	srv := newTestServer(t, records, nil)

	rec := httptest.NewRecorder()
	srv.handleReservations(rec, httptest.NewRequest(http.MethodGet, "/api/reservations", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body reservationsResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Reservations) != 1 {
		t.Fatalf("got %d reservations, want 1", len(body.Reservations))
	}
	if body.Reservations[0].Username != "alice" {
		t.Errorf("record = %+v", body.Reservations[0])
	}
	if body.RefreshedAt.IsZero() {
		t.Error("refreshed_at missing")
	}
}

func TestHandleReservationsEmptySnapshot(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := httptest.NewRecorder()
	srv.handleReservations(rec, httptest.NewRequest(http.MethodGet, "/api/reservations", nil))

	// nil snapshot must serialize as [], not null.
	var raw struct {
		Reservations json.RawMessage `json:"reservations"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(raw.Reservations) != "[]" {
		t.Errorf("reservations = %s, want []", raw.Reservations)
	}
}

func TestRouterWiresRoutes(t *testing.T) {
	log := logger.New("error", false)
	cache := NewReservationCache(&fakeSource{}, log, time.Hour)
	srv := New(":0", log, cache, &fakePinger{})

	for _, path := range []string{"/healthz", "/readyz", "/api/reservations"} {
		rec := httptest.NewRecorder()
		srv.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code == http.StatusNotFound {
			t.Errorf("route %s not wired", path)
		}
	}

	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d", rec.Code)
	}
}
