// Package redis persists the output of reconciliation passes: one value
// per distinct reservation timestamp.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/wikidot-tools/reservebot/internal/domain"
)

// UpsertOutcome reports what an Upsert did.
type UpsertOutcome int

const (
	Unchanged UpsertOutcome = iota
	Inserted
	Updated
)

func (o UpsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// Store handles Redis operations for persisted reservations.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Upsert stores a reservation under its timestamp: insert when absent,
// rewrite only when any persisted field differs.
func (s *Store) Upsert(ctx context.Context, rec domain.ReservationRecord) (UpsertOutcome, error) {
	ts := rec.ReservedAt.Unix()
	key := ReservationKey(ts)

	data, err := json.Marshal(rec)
	if err != nil {
		return Unchanged, fmt.Errorf("failed to marshal reservation: %w", err)
	}

	existing, err := s.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		if err := s.write(ctx, key, ts, data); err != nil {
			return Unchanged, err
		}
		return Inserted, nil
	case err != nil:
		return Unchanged, fmt.Errorf("failed to read reservation: %w", err)
	}

	var old domain.ReservationRecord
	if uerr := json.Unmarshal(existing, &old); uerr == nil && old.Equal(rec) {
		return Unchanged, nil
	}

	if err := s.write(ctx, key, ts, data); err != nil {
		return Unchanged, err
	}
	return Updated, nil
}

func (s *Store) write(ctx context.Context, key string, ts int64, data []byte) error {
	pipe := s.client.Pipeline()
	pipe.Set(ctx, key, data, 0) // reservations persist until deleted
	pipe.SAdd(ctx, KeyAllReservations, strconv.FormatInt(ts, 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save reservation: %w", err)
	}
	return nil
}

// Get retrieves the reservation stored under a timestamp.
func (s *Store) Get(ctx context.Context, unixSeconds int64) (*domain.ReservationRecord, error) {
	data, err := s.client.Get(ctx, ReservationKey(unixSeconds)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("reservation not found: %d", unixSeconds)
		}
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}

	var rec domain.ReservationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reservation: %w", err)
	}
	return &rec, nil
}

// All returns every stored reservation, newest first. Members whose value
// has gone missing are skipped.
func (s *Store) All(ctx context.Context) ([]domain.ReservationRecord, error) {
	members, err := s.client.SMembers(ctx, KeyAllReservations).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list reservation timestamps: %w", err)
	}

	out := make([]domain.ReservationRecord, 0, len(members))
	for _, member := range members {
		ts, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		rec, err := s.Get(ctx, ts)
		if err != nil {
			continue
		}
		out = append(out, *rec)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ReservedAt.After(out[j].ReservedAt)
	})
	return out, nil
}

// Delete removes a reservation by timestamp.
func (s *Store) Delete(ctx context.Context, unixSeconds int64) error {
	if err := s.client.Del(ctx, ReservationKey(unixSeconds)).Err(); err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	if err := s.client.SRem(ctx, KeyAllReservations, strconv.FormatInt(unixSeconds, 10)).Err(); err != nil {
		return fmt.Errorf("failed to remove reservation from set: %w", err)
	}
	return nil
}
