package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lysyi3m/signal-comb/app/signals"
)

type repositories struct {
	*SourceRepository
	*SignalRepository
	*TrustHistoryRepository
}

func newRepositories(q queryer, now func() time.Time) *repositories {
	return &repositories{
		SourceRepository:       &SourceRepository{q: q, now: now},
		SignalRepository:       &SignalRepository{q: q, now: now},
		TrustHistoryRepository: &TrustHistoryRepository{q: q, now: now},
	}
}

// Store is the SQLite implementation of signals.Store
type Store struct {
	*repositories
	db  *DB
	now func() time.Time
}

// NewStore creates a store over db
func NewStore(db *DB) *Store {
	return NewStoreWithClock(db, time.Now)
}

// NewStoreWithClock creates a store whose timestamps come from now
func NewStoreWithClock(db *DB, now func() time.Time) *Store {
	return &Store{
		repositories: newRepositories(db, now),
		db:           db,
		now:          now,
	}
}

// WithinTx runs fn against a transaction-bound store. Any error from fn rolls
// the transaction back; signals.ErrRollback does so without being returned.
func (s *Store) WithinTx(ctx context.Context, fn func(tx signals.StoreTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(newRepositories(tx, s.now)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, storeErr("rollback transaction", rbErr))
		}
		if errors.Is(err, signals.ErrRollback) {
			return nil
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit transaction", err)
	}

	return nil
}

// Stats summarises the stored signals and sources
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByCategory: make(map[signals.Category]int)}

	var latest sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sources),
			(SELECT COUNT(*) FROM sources WHERE verified = 1),
			(SELECT COUNT(*) FROM sources WHERE active = 1),
			(SELECT MAX(occurred_at) FROM signals)
	`).Scan(&stats.TotalSources, &stats.VerifiedSources, &stats.ActiveSources, &latest)
	if err != nil {
		return nil, storeErr("stats", fmt.Errorf("failed to count sources: %w", err))
	}
	stats.LatestSignalAt = fromNullMillis(latest)

	rows, err := s.db.QueryContext(ctx, `SELECT signal_type, COUNT(*) FROM signals GROUP BY signal_type`)
	if err != nil {
		return nil, storeErr("stats", fmt.Errorf("failed to count signals: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			category string
			count    int
		)
		if err := rows.Scan(&category, &count); err != nil {
			return nil, storeErr("stats", fmt.Errorf("failed to scan category count: %w", err))
		}
		stats.ByCategory[signals.Category(category)] = count
		stats.TotalSignals += count
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("stats", fmt.Errorf("error iterating category counts: %w", err))
	}

	return stats, nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
