package domain

import (
	"strings"
	"time"
)

// Lifecycle is the state of a reservation page, derived once from the
// listing category it was fetched from rather than re-inferred from the
// page-name prefix at every use site.
type Lifecycle int

const (
	Reserved Lifecycle = iota
	Outdated
)

// Prefix returns the page-name prefix the lifecycle corresponds to.
func (lc Lifecycle) Prefix() string {
	if lc == Outdated {
		return "outdate:"
	}
	return "reserve:"
}

func (lc Lifecycle) String() string {
	if lc == Outdated {
		return "outdated"
	}
	return "reserved"
}

// ReservationRecord is one row of a reservation listing. The JSON field
// names mirror the persisted document shape.
type ReservationRecord struct {
	Username     string    `json:"username"`
	PageKey      string    `json:"reserve_page"`  // full page path including lifecycle prefix
	Branch       string    `json:"branch_id"`     // origin branch code, ex: "02"
	OriginalLink string    `json:"original_link"` // link to the source page
	ReservedAt   time.Time `json:"date"`
	Title        string    `json:"title"`

	// Derived at parse time, not persisted.
	Lifecycle Lifecycle `json:"-"`
	UnixName  string    `json:"-"` // stable page name with the lifecycle prefix stripped
}

// StripLifecyclePrefix removes a leading "reserve:" or "outdate:" from a
// page path, yielding the stable unix name.
func StripLifecyclePrefix(pageKey string) string {
	for _, p := range []string{"reserve:", "outdate:"} {
		if strings.HasPrefix(pageKey, p) {
			return strings.TrimPrefix(pageKey, p)
		}
	}
	return pageKey
}

// OutdatedKey is the page path this reservation moves to when retired.
func (r ReservationRecord) OutdatedKey() string {
	return Outdated.Prefix() + r.UnixName
}

// Age reports how long ago the reservation was created.
func (r ReservationRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.ReservedAt)
}

// Equal compares the persisted fields only.
func (r ReservationRecord) Equal(o ReservationRecord) bool {
	return r.Username == o.Username &&
		r.PageKey == o.PageKey &&
		r.Branch == o.Branch &&
		r.OriginalLink == o.OriginalLink &&
		r.ReservedAt.Equal(o.ReservedAt) &&
		r.Title == o.Title
}
