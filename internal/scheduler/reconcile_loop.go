// Package scheduler runs reconciliation passes on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/wikidot-tools/reservebot/internal/domain"
	"github.com/wikidot-tools/reservebot/internal/logger"
	"github.com/wikidot-tools/reservebot/internal/reconcile"
	"github.com/wikidot-tools/reservebot/internal/sources/listing"
	redisstore "github.com/wikidot-tools/reservebot/internal/store/redis"
	"github.com/wikidot-tools/reservebot/internal/wikidot"
)

// Listing categories on the coordination site.
const (
	CategoryReserve = "reserve"
	CategoryOutdate = "outdate"
)

// Lister is the listing surface of the wikidot client.
type Lister interface {
	ListPages(ctx context.Context, params map[string]string) (*wikidot.ModuleResponse, error)
}

// ReservationStore persists reserve-category records after a pass.
type ReservationStore interface {
	Upsert(ctx context.Context, rec domain.ReservationRecord) (redisstore.UpsertOutcome, error)
}

// PassRunner owns the single-worker loop: one pass runs to completion
// before the next is scheduled; a failed pass is logged and the schedule
// continues at the next tick.
type PassRunner struct {
	wiki          Lister
	engine        *reconcile.Engine
	store         ReservationStore
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

func NewPassRunner(
	wiki Lister,
	engine *reconcile.Engine,
	store ReservationStore,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *PassRunner {
	return &PassRunner{
		wiki:          wiki,
		engine:        engine,
		store:         store,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start runs the first pass immediately, then repeats on the interval.
func (pr *PassRunner) Start(ctx context.Context) error {
	if err := pr.RunPass(ctx); err != nil {
		pr.logger.Error("initial reconciliation pass failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(pr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := pr.RunPass(ctx); err != nil {
					pr.logger.Error("reconciliation pass failed",
						logger.Error(err))
				}
			case <-pr.manualTrigger:
				pr.logger.Info("manual pass triggered")
				if err := pr.RunPass(ctx); err != nil {
					pr.logger.Error("reconciliation pass failed",
						logger.Error(err))
				}
			case <-pr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the runner.
func (pr *PassRunner) Stop() {
	close(pr.stopCh)
}

// RunPass fetches both listing categories, reconciles every record, and
// upserts the reserve-category results into the store.
func (pr *PassRunner) RunPass(ctx context.Context) error {
	start := time.Now()
	pr.logger.Info("starting reconciliation pass")

	reserve, err := pr.fetchListing(ctx, CategoryReserve, domain.Reserved)
	if err != nil {
		return fmt.Errorf("fetch reserve listing: %w", err)
	}
	outdated, err := pr.fetchListing(ctx, CategoryOutdate, domain.Outdated)
	if err != nil {
		return fmt.Errorf("fetch outdate listing: %w", err)
	}

	pr.logger.Info("listings fetched",
		logger.Int("reserved", len(reserve)),
		logger.Int("outdated", len(outdated)))

	reserveResults := pr.engine.Reconcile(ctx, reserve)
	outdatedResults := pr.engine.Reconcile(ctx, outdated)

	failed := countFailures(reserveResults) + countFailures(outdatedResults)

	var inserted, updated int
	for _, res := range reserveResults {
		if res.Err != nil {
			continue
		}
		outcome, err := pr.store.Upsert(ctx, res.Record)
		if err != nil {
			pr.logger.Warn("failed to persist reservation",
				logger.String("page", res.Record.PageKey),
				logger.Error(err))
			continue
		}
		switch outcome {
		case redisstore.Inserted:
			inserted++
		case redisstore.Updated:
			updated++
		}
	}

	pr.logger.Info("reconciliation pass completed",
		logger.Int("records", len(reserve)+len(outdated)),
		logger.Int("failed", failed),
		logger.Int("inserted", inserted),
		logger.Int("updated", updated),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

func (pr *PassRunner) fetchListing(ctx context.Context, category string, lc domain.Lifecycle) ([]domain.ReservationRecord, error) {
	resp, err := pr.wiki.ListPages(ctx, listingParams(category))
	if err != nil {
		return nil, err
	}
	return listing.Parse(resp.Body, lc), nil
}

func listingParams(category string) map[string]string {
	return map[string]string{
		"category":    category,
		"order":       "created_at desc",
		"perPage":     "250",
		"separate":    "false",
		"module_body": listing.RowTemplate,
	}
}

func countFailures(results []reconcile.Result) int {
	n := 0
	for _, res := range results {
		if res.Err != nil {
			n++
		}
	}
	return n
}
