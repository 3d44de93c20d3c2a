package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wikidot-tools/reservebot/internal/domain"
	"github.com/wikidot-tools/reservebot/internal/logger"
	"github.com/wikidot-tools/reservebot/internal/reconcile"
	"github.com/wikidot-tools/reservebot/internal/resolver"
	redisstore "github.com/wikidot-tools/reservebot/internal/store/redis"
	"github.com/wikidot-tools/reservebot/internal/wikidot"
)

type fakeLister struct {
	mu     sync.Mutex
	bodies map[string]string // category -> module body fragment
	err    error
	params []map[string]string
}

func (f *fakeLister) ListPages(_ context.Context, params map[string]string) (*wikidot.ModuleResponse, error) {
	f.mu.Lock()
	f.params = append(f.params, params)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &wikidot.ModuleResponse{Status: "ok", Body: f.bodies[params["category"]]}, nil
}

func (f *fakeLister) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.params)
}

type fakeStore struct {
	upserts []domain.ReservationRecord
	err     error
}

func (f *fakeStore) Upsert(_ context.Context, rec domain.ReservationRecord) (redisstore.UpsertOutcome, error) {
	if f.err != nil {
		return redisstore.Unchanged, f.err
	}
	f.upserts = append(f.upserts, rec)
	return redisstore.Inserted, nil
}

// passWiki satisfies reconcile.Wiki with a clean coordination site: every
// page has an empty tag set and nothing needs deleting or renaming.
type passWiki struct {
	saves int
}

func (w *passWiki) PageTags(context.Context, string) (domain.TagSet, error) {
	return make(domain.TagSet), nil
}
func (w *passWiki) SaveTags(context.Context, string, domain.TagSet) error {
	w.saves++
	return nil
}
func (w *passWiki) RenamePage(context.Context, string, string) error { return nil }
func (w *passWiki) DeletePage(context.Context, string) error         { return nil }
func (w *passWiki) SearchPages(context.Context, int64, string) ([]wikidot.PageHit, error) {
	return nil, nil
}

type passLookup struct {
	matches map[string]*resolver.Match
}

func (l *passLookup) Lookup(_ context.Context, branch, unixName string) (*resolver.Match, error) {
	return l.matches[branch+"/"+unixName], nil
}

func listingRow(user, page, branch string, ts int64) string {
	return fmt.Sprintf(
		`<tr><td>%s</td><td>%s</td><td>%s</td><td>http://x/%s</td><td><span class="odate time_%d">d</span></td><td>%s</td></tr>`,
		user, page, branch, page, ts, page)
}

func newTestRunner(lister *fakeLister, store *fakeStore, matches map[string]*resolver.Match) *PassRunner {
	log := logger.New("error", false)
	engine := reconcile.New(&passWiki{}, &passLookup{matches: matches}, log, reconcile.Options{
		HomeSiteID:    5041861,
		MaxConcurrent: 1,
		Now:           func() time.Time { return time.Unix(1700000000, 0) },
	})
	return NewPassRunner(lister, engine, store, log, time.Hour, make(chan struct{}))
}

func TestRunPassPersistsReserveRecords(t *testing.T) {
	lister := &fakeLister{bodies: map[string]string{
		CategoryReserve: "<table>" +
			listingRow("alice", "reserve:foo", "02", 1699990000) +
			listingRow("bob", "reserve:bar", "03", 1699980000) +
			"</table>",
		CategoryOutdate: "<table>" + listingRow("carol", "outdate:baz", "01", 1600000000) + "</table>",
	}}
	store := &fakeStore{}
	runner := newTestRunner(lister, store, map[string]*resolver.Match{
		"02/foo": {UnixName: "foo", Title: "Foo", URL: "http://src/foo"},
		"03/bar": {UnixName: "bar"},
		"01/baz": {UnixName: "baz"},
	})

	if err := runner.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}

	// Only reserve-category records are persisted.
	if len(store.upserts) != 2 {
		t.Fatalf("got %d upserts, want 2", len(store.upserts))
	}
	if store.upserts[0].UnixName != "foo" || store.upserts[1].UnixName != "bar" {
		t.Errorf("upserted records = %+v", store.upserts)
	}
	// The persisted record carries the lookup enrichment, not the raw cell.
	if got := store.upserts[0].OriginalLink; got != "http://src/foo" {
		t.Errorf("OriginalLink = %q, want the resolved source URL", got)
	}
}

func TestRunPassFetchesBothCategories(t *testing.T) {
	lister := &fakeLister{bodies: map[string]string{}}
	runner := newTestRunner(lister, &fakeStore{}, nil)

	if err := runner.RunPass(context.Background()); err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}

	if len(lister.params) != 2 {
		t.Fatalf("got %d listing calls, want 2", len(lister.params))
	}
	if lister.params[0]["category"] != CategoryReserve {
		t.Errorf("first listing category = %q", lister.params[0]["category"])
	}
	if lister.params[1]["category"] != CategoryOutdate {
		t.Errorf("second listing category = %q", lister.params[1]["category"])
	}
}

func TestRunPassListingFailure(t *testing.T) {
	lister := &fakeLister{err: errors.New("connector down")}
	store := &fakeStore{}
	runner := newTestRunner(lister, store, nil)

	if err := runner.RunPass(context.Background()); err == nil {
		t.Fatal("expected error when the listing fetch fails")
	}
	if len(store.upserts) != 0 {
		t.Errorf("no records should be persisted on a failed pass, got %d", len(store.upserts))
	}
}

func TestRunPassStoreFailureDoesNotFailPass(t *testing.T) {
	lister := &fakeLister{bodies: map[string]string{
		CategoryReserve: "<table>" + listingRow("alice", "reserve:foo", "02", 1699990000) + "</table>",
	}}
	runner := newTestRunner(lister, &fakeStore{err: errors.New("redis gone")}, map[string]*resolver.Match{
		"02/foo": {UnixName: "foo"},
	})

	if err := runner.RunPass(context.Background()); err != nil {
		t.Errorf("a persistence failure must not fail the pass, got %v", err)
	}
}

func TestListingParams(t *testing.T) {
	params := listingParams(CategoryReserve)

	if params["category"] != "reserve" {
		t.Errorf("category = %q", params["category"])
	}
	if params["order"] != "created_at desc" {
		t.Errorf("order = %q", params["order"])
	}
	if params["perPage"] != "250" {
		t.Errorf("perPage = %q", params["perPage"])
	}
	if params["separate"] != "false" {
		t.Errorf("separate = %q", params["separate"])
	}
	// The module body pins the six-column row shape the parser expects.
	if params["module_body"] == "" {
		t.Error("module_body missing")
	}
}

func TestPassRunnerStartAndStop(t *testing.T) {
	lister := &fakeLister{bodies: map[string]string{}}
	runner := newTestRunner(lister, &fakeStore{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := runner.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	// The first pass runs synchronously before the ticker starts.
	if got := lister.calls(); got != 2 {
		t.Errorf("got %d listing calls after Start, want 2", got)
	}
	runner.Stop()
}

func TestManualTrigger(t *testing.T) {
	lister := &fakeLister{bodies: map[string]string{}}
	trigger := make(chan struct{})
	log := logger.New("error", false)
	engine := reconcile.New(&passWiki{}, &passLookup{}, log, reconcile.Options{MaxConcurrent: 1})
	runner := NewPassRunner(lister, engine, &fakeStore{}, log, time.Hour, trigger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := runner.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer runner.Stop()

	trigger <- struct{}{}

	deadline := time.After(2 * time.Second)
	for {
		if lister.calls() >= 4 { // initial pass + manual pass
			return
		}
		select {
		case <-deadline:
			t.Fatalf("manual trigger did not run a pass, %d listing calls", lister.calls())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
