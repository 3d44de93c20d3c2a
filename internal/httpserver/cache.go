package httpserver

import (
	"context"
	"sync"
	"time"

	"github.com/wikidot-tools/reservebot/internal/domain"
	"github.com/wikidot-tools/reservebot/internal/logger"
)

// ReservationSource is the store surface the cache reads from.
type ReservationSource interface {
	All(ctx context.Context) ([]domain.ReservationRecord, error)
}

// ReservationCache keeps an in-memory snapshot of the persisted
// reservations so the read API never blocks on the store. It refreshes
// immediately on start and then on a fixed interval.
type ReservationCache struct {
	source   ReservationSource
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}

	mu          sync.RWMutex
	snapshot    []domain.ReservationRecord
	refreshedAt time.Time
}

func NewReservationCache(source ReservationSource, log logger.Logger, interval time.Duration) *ReservationCache {
	return &ReservationCache{
		source:   source,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start refreshes once, then keeps the snapshot fresh in the background.
func (c *ReservationCache) Start(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("initial reservation snapshot failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(c.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.Refresh(ctx); err != nil {
					c.logger.Error("failed to refresh reservation snapshot",
						logger.Error(err))
				}
			case <-c.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (c *ReservationCache) Stop() {
	close(c.stopCh)
}

// Refresh reloads the snapshot from the store.
func (c *ReservationCache) Refresh(ctx context.Context) error {
	records, err := c.source.All(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.snapshot = records
	c.refreshedAt = time.Now()
	c.mu.Unlock()

	c.logger.Debug("reservation snapshot refreshed",
		logger.Int("count", len(records)))
	return nil
}

// Snapshot returns the cached reservations and when they were loaded.
func (c *ReservationCache) Snapshot() ([]domain.ReservationRecord, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, c.refreshedAt
}
