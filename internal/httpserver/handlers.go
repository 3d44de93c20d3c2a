package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/wikidot-tools/reservebot/internal/domain"
	"github.com/wikidot-tools/reservebot/internal/version"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version,omitempty"`
	Commit        string  `json:"commit,omitempty"`
	GoVersion     string  `json:"go_version,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(healthzResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(s.started).Seconds(),
		Version:       version.Version,
		Commit:        version.Commit,
		GoVersion:     version.GoVersion,
	})
}

type readyzResponse struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := s.pinger.Ping(r.Context()).Err(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(readyzResponse{Ready: false, Error: err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(readyzResponse{Ready: true})
}

type reservationsResponse struct {
	Reservations []domain.ReservationRecord `json:"reservations"`
	RefreshedAt  time.Time                  `json:"refreshed_at"`
}

func (s *Server) handleReservations(w http.ResponseWriter, r *http.Request) {
	records, refreshedAt := s.cache.Snapshot()
	if records == nil {
		records = []domain.ReservationRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reservationsResponse{
		Reservations: records,
		RefreshedAt:  refreshedAt,
	})
}
