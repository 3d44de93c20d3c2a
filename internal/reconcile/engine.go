// Package reconcile drives the corrective edits for one reconciliation
// pass: tag state against source/destination existence, and the
// staleness-to-outdated lifecycle transition.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wikidot-tools/reservebot/internal/domain"
	"github.com/wikidot-tools/reservebot/internal/logger"
	"github.com/wikidot-tools/reservebot/internal/resolver"
	"github.com/wikidot-tools/reservebot/internal/sources/branches"
	"github.com/wikidot-tools/reservebot/internal/wikidot"
)

// DefaultStaleAfter is how long a reservation may sit in the reserve
// category before it is retired.
const DefaultStaleAfter = 30 * 24 * time.Hour

// Wiki is the slice of the wikidot client the engine edits through.
type Wiki interface {
	PageTags(ctx context.Context, page string) (domain.TagSet, error)
	SaveTags(ctx context.Context, page string, tags domain.TagSet) error
	RenamePage(ctx context.Context, page, newName string) error
	DeletePage(ctx context.Context, page string) error
	SearchPages(ctx context.Context, siteID int64, query string) ([]wikidot.PageHit, error)
}

// Lookup resolves source-page existence per branch.
type Lookup interface {
	Lookup(ctx context.Context, branchCode, unixName string) (*resolver.Match, error)
}

// Result is the outcome of reconciling one record. Record carries the
// title/link enrichment from the origin lookup and is what gets persisted.
type Result struct {
	Record       domain.ReservationRecord
	SourceExists bool
	TagEdits     int
	Retired      bool // renamed to the outdate: prefix this pass
	Err          error
}

type Engine struct {
	wiki       Wiki
	lookup     Lookup
	log        logger.Logger
	homeSiteID int64 // coordination site, searched for duplicate outdate: pages
	staleAfter time.Duration
	limit      int // per-pass concurrency ceiling
	now        func() time.Time
}

type Options struct {
	HomeSiteID    int64
	StaleAfter    time.Duration // 0 = DefaultStaleAfter
	MaxConcurrent int           // 0 = serial
	Now           func() time.Time
}

func New(wiki Wiki, lookup Lookup, log logger.Logger, opts Options) *Engine {
	if opts.StaleAfter == 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		wiki:       wiki,
		lookup:     lookup,
		log:        log,
		homeSiteID: opts.HomeSiteID,
		staleAfter: opts.StaleAfter,
		limit:      opts.MaxConcurrent,
		now:        opts.Now,
	}
}

// Reconcile processes every record of one listing category. Records are
// independent, so they run concurrently up to the configured ceiling; a
// record's failure is logged and reported in its Result, never aborting
// the rest of the pass.
func (e *Engine) Reconcile(ctx context.Context, records []domain.ReservationRecord) []Result {
	results := make([]Result, len(records))

	g := new(errgroup.Group)
	g.SetLimit(e.limit)

	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			results[i] = e.reconcileOne(ctx, rec)
			if err := results[i].Err; err != nil {
				e.log.Error("record reconciliation failed",
					logger.String("page", rec.PageKey),
					logger.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *Engine) reconcileOne(ctx context.Context, rec domain.ReservationRecord) Result {
	res := Result{Record: rec}

	src, err := e.lookup.Lookup(ctx, rec.Branch, rec.UnixName)
	if err != nil {
		res.Err = fmt.Errorf("source lookup for %s: %w", rec.PageKey, err)
		return res
	}
	res.SourceExists = src != nil

	// A found source is more authoritative than the listing's literal
	// cells for the link and title.
	if src != nil {
		if src.URL != "" {
			res.Record.OriginalLink = src.URL
		}
		if src.Title != "" {
			res.Record.Title = src.Title
		}
	}

	tags, err := e.wiki.PageTags(ctx, rec.PageKey)
	if err != nil {
		res.Err = fmt.Errorf("fetch tags of %s: %w", rec.PageKey, err)
		return res
	}

	// Rule one: "no original" present iff the source page is absent.
	edited, err := e.applyTagRule(ctx, rec, tags, domain.TagNoOriginal, src == nil)
	if err != nil {
		res.Err = err
		return res
	}
	if edited {
		res.TagEdits++
		// The edit replaced the whole tag list; re-read before rule two.
		tags, err = e.wiki.PageTags(ctx, rec.PageKey)
		if err != nil {
			res.Err = fmt.Errorf("refetch tags of %s: %w", rec.PageKey, err)
			return res
		}
	}

	// Rule two: "translated" present iff a matching entry exists on the
	// canonical destination site.
	dest, err := e.lookup.Lookup(ctx, branches.DestinationCode, rec.UnixName)
	if err != nil {
		res.Err = fmt.Errorf("destination lookup for %s: %w", rec.PageKey, err)
		return res
	}
	edited, err = e.applyTagRule(ctx, rec, tags, domain.TagTranslated, dest != nil)
	if err != nil {
		res.Err = err
		return res
	}
	if edited {
		res.TagEdits++
	}

	// The lifecycle transition is one-way and applies only to records
	// still in the reserve category.
	if rec.Lifecycle == domain.Reserved && rec.Age(e.now()) > e.staleAfter {
		retired, err := e.retire(ctx, rec)
		if err != nil {
			res.Err = err
			return res
		}
		res.Retired = retired
		if retired {
			res.Record.PageKey = rec.OutdatedKey()
			res.Record.Lifecycle = domain.Outdated
		}
	}

	return res
}

// applyTagRule makes the presence of tag match want, rewriting the full
// tag set when an edit is needed. All other tags pass through untouched.
func (e *Engine) applyTagRule(ctx context.Context, rec domain.ReservationRecord, tags domain.TagSet, tag string, want bool) (bool, error) {
	has := tags.Has(tag)
	if has == want {
		return false, nil
	}

	next := tags.Clone()
	if want {
		next.Add(tag)
	} else {
		next.Remove(tag)
	}

	if err := e.wiki.SaveTags(ctx, rec.PageKey, next); err != nil {
		return false, fmt.Errorf("rewrite tags of %s: %w", rec.PageKey, err)
	}

	e.log.Info("corrected tag state",
		logger.String("page", rec.PageKey),
		logger.String("tag", tag),
		logger.Bool("added", want))
	return true, nil
}

// retire renames an overdue reservation to its outdate: name. If an
// outdated page of that unix name already exists, it is deleted first so
// at most one survives, keeping the newest reservation's metadata.
func (e *Engine) retire(ctx context.Context, rec domain.ReservationRecord) (bool, error) {
	outKey := rec.OutdatedKey()

	hits, err := e.wiki.SearchPages(ctx, e.homeSiteID, outKey)
	if err != nil {
		return false, fmt.Errorf("duplicate check for %s: %w", outKey, err)
	}
	for _, hit := range hits {
		if hit.UnixName != outKey {
			continue
		}
		e.log.Info("deleting older duplicate outdated reservation",
			logger.String("page", outKey))
		if err := e.wiki.DeletePage(ctx, outKey); err != nil {
			return false, fmt.Errorf("delete duplicate %s: %w", outKey, err)
		}
		break
	}

	e.log.Info("reservation overdue, retiring",
		logger.String("page", rec.PageKey),
		logger.Time("reserved_at", rec.ReservedAt))
	if err := e.wiki.RenamePage(ctx, rec.PageKey, outKey); err != nil {
		return false, fmt.Errorf("rename %s to %s: %w", rec.PageKey, outKey, err)
	}
	return true, nil
}
