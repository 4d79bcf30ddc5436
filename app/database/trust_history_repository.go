package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lysyi3m/signal-comb/app/signals"
)

// TrustHistoryRepository keeps the append-only trust timeline of each source
type TrustHistoryRepository struct {
	q   queryer
	now func() time.Time
}

// NewTrustHistoryRepository creates a new trust history repository
func NewTrustHistoryRepository(db *DB) *TrustHistoryRepository {
	return &TrustHistoryRepository{q: db, now: time.Now}
}

// RecordTrustChange closes the open history row of the source at `at` and
// appends a new open row carrying score.
func (r *TrustHistoryRepository) RecordTrustChange(ctx context.Context, sourceID string, score int, reason, changedBy string, at time.Time) error {
	atMs := toMillis(at)

	// MAX keeps valid_to > valid_from when two changes land in the same millisecond.
	_, err := r.q.ExecContext(ctx, `
		UPDATE source_trust_history
		SET valid_to = MAX(?, valid_from + 1)
		WHERE source_id = ? AND valid_to IS NULL
	`, atMs, sourceID)
	if err != nil {
		return storeErr("record trust change", fmt.Errorf("failed to close open history row: %w", err))
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO source_trust_history (source_id, trust_score, reason, changed_by, valid_from, valid_to, created_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?)
	`, sourceID, score, reason, changedBy, atMs, toMillis(r.now()))
	if err != nil {
		return storeErr("record trust change", fmt.Errorf("failed to append history row: %w", err))
	}

	return nil
}

// ListTrustHistory returns the history of a source, oldest first
func (r *TrustHistoryRepository) ListTrustHistory(ctx context.Context, sourceID string) ([]signals.TrustHistory, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, source_id, trust_score, reason, changed_by, valid_from, valid_to, created_at
		FROM source_trust_history
		WHERE source_id = ?
		ORDER BY valid_from, id
	`, sourceID)
	if err != nil {
		return nil, storeErr("list trust history", err)
	}
	defer rows.Close()

	var history []signals.TrustHistory
	for rows.Next() {
		var (
			h         signals.TrustHistory
			validFrom int64
			validTo   sql.NullInt64
			createdAt int64
		)
		if err := rows.Scan(&h.ID, &h.SourceID, &h.TrustScore, &h.Reason, &h.ChangedBy, &validFrom, &validTo, &createdAt); err != nil {
			return nil, storeErr("list trust history", fmt.Errorf("failed to scan history row: %w", err))
		}
		h.ValidFrom = fromMillis(validFrom)
		h.ValidTo = fromNullMillis(validTo)
		h.CreatedAt = fromMillis(createdAt)
		history = append(history, h)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("list trust history", fmt.Errorf("error iterating history rows: %w", err))
	}

	return history, nil
}
