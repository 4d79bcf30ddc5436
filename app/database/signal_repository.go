package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/signal-comb/app/signals"
)

const signalColumns = `id, content, signal_type, lon, lat, occurred_at, source_id,
	source_metadata, fingerprint, trust_score, created_at`

// SignalRepository handles database operations for signals
type SignalRepository struct {
	q   queryer
	now func() time.Time
}

// NewSignalRepository creates a new signal repository
func NewSignalRepository(db *DB) *SignalRepository {
	return &SignalRepository{q: db, now: time.Now}
}

// InsertSignalIfAbsent stores sig unless a signal with the same fingerprint
// exists. The uniqueness check and the insert are one statement.
func (r *SignalRepository) InsertSignalIfAbsent(ctx context.Context, sig *signals.Signal) (signals.InsertOutcome, error) {
	id := sig.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := r.now().UTC()

	metadata, err := encodeMap(sig.SourceMetadata)
	if err != nil {
		return signals.Inserted, storeErr("insert signal", err)
	}

	res, err := r.q.ExecContext(ctx, `
		INSERT INTO signals (`+signalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (fingerprint) DO NOTHING
	`, id, sig.Content, string(sig.Category), sig.Location.Lon, sig.Location.Lat,
		toMillis(sig.OccurredAt), sig.SourceID, metadata, sig.Fingerprint, sig.TrustScore,
		toMillis(createdAt))
	if err != nil {
		return signals.Inserted, storeErr("insert signal", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return signals.Inserted, storeErr("insert signal", err)
	}
	if affected == 0 {
		return signals.Duplicate, nil
	}

	sig.ID = id
	sig.CreatedAt = createdAt
	return signals.Inserted, nil
}

func (r *SignalRepository) SignalExists(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM signals WHERE fingerprint = ?)`, fingerprint).Scan(&exists)
	if err != nil {
		return false, storeErr("check signal", err)
	}
	return exists, nil
}

// QuerySignals returns signals of q.Category within q.RadiusMeters of q.Center
// whose occurred_at lies in [q.From, q.To], ordered by occurred_at.
func (r *SignalRepository) QuerySignals(ctx context.Context, q signals.SignalQuery) ([]signals.Signal, error) {
	box := boundsAround(q.Center, q.RadiusMeters)

	conds := []string{
		"signal_type = ?",
		"occurred_at BETWEEN ? AND ?",
		"lat BETWEEN ? AND ?",
	}
	args := []any{string(q.Category), toMillis(q.From), toMillis(q.To), box.minLat, box.maxLat}

	if box.lonBounded {
		conds = append(conds, "lon BETWEEN ? AND ?")
		args = append(args, box.minLon, box.maxLon)
	}
	if q.ExcludeSourceID != "" {
		conds = append(conds, "source_id <> ?")
		args = append(args, q.ExcludeSourceID)
	}

	candidates, err := r.list(ctx, "WHERE "+strings.Join(conds, " AND ")+" ORDER BY occurred_at, id", args...)
	if err != nil {
		return nil, storeErr("query signals", err)
	}

	var matched []signals.Signal
	for _, sig := range candidates {
		if DistanceMeters(q.Center, sig.Location) > q.RadiusMeters {
			continue
		}
		matched = append(matched, sig)
		if q.Limit > 0 && len(matched) >= q.Limit {
			break
		}
	}

	return matched, nil
}

// ListSignals returns the most recent signals matching filter
func (r *SignalRepository) ListSignals(ctx context.Context, filter SignalFilter) ([]signals.Signal, error) {
	var (
		conds []string
		args  []any
	)

	if filter.Category != "" {
		conds = append(conds, "signal_type = ?")
		args = append(args, string(filter.Category))
	}
	if filter.SourceID != "" {
		conds = append(conds, "source_id = ?")
		args = append(args, filter.SourceID)
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, toMillis(filter.Since))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	clause := ""
	if len(conds) > 0 {
		clause = "WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit)

	result, err := r.list(ctx, clause+" ORDER BY occurred_at DESC, id LIMIT ?", args...)
	if err != nil {
		return nil, storeErr("list signals", err)
	}

	return result, nil
}

func (r *SignalRepository) list(ctx context.Context, clause string, args ...any) ([]signals.Signal, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+signalColumns+` FROM signals `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var result []signals.Signal
	for rows.Next() {
		var (
			sig        signals.Signal
			category   string
			occurredAt int64
			createdAt  int64
			metadata   string
		)
		err := rows.Scan(
			&sig.ID, &sig.Content, &category, &sig.Location.Lon, &sig.Location.Lat, &occurredAt,
			&sig.SourceID, &metadata, &sig.Fingerprint, &sig.TrustScore, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal row: %w", err)
		}

		sig.Category = signals.Category(category)
		sig.OccurredAt = fromMillis(occurredAt)
		sig.CreatedAt = fromMillis(createdAt)
		if sig.SourceMetadata, err = decodeMap(metadata); err != nil {
			return nil, fmt.Errorf("failed to decode signal metadata: %w", err)
		}

		result = append(result, sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signal rows: %w", err)
	}

	return result, nil
}
