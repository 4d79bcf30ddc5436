package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/signal-comb/app/signals"
)

const sourceColumns = `id, platform, external_identifier, trust_score, verified, active,
	last_fetched_at, consecutive_errors, metadata, created_at, updated_at`

// SourceRepository handles database operations for sources
type SourceRepository struct {
	q   queryer
	now func() time.Time
}

// NewSourceRepository creates a new source repository
func NewSourceRepository(db *DB) *SourceRepository {
	return &SourceRepository{q: db, now: time.Now}
}

// CreateSource inserts a new source and fills in its generated fields
func (r *SourceRepository) CreateSource(ctx context.Context, src *signals.Source) error {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	now := r.now().UTC()
	src.CreatedAt = now
	src.UpdatedAt = now

	metadata, err := encodeMap(src.Metadata)
	if err != nil {
		return storeErr("create source", err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO sources (`+sourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, src.ID, src.Platform, src.ExternalIdentifier, src.TrustScore, src.Verified, src.Active,
		nullableMillis(src.LastFetchedAt), src.ConsecutiveErrors, metadata,
		toMillis(now), toMillis(now))
	if err != nil {
		return storeErr("create source", fmt.Errorf("failed to insert source %s:%s: %w", src.Platform, src.ExternalIdentifier, err))
	}

	return nil
}

// GetOrCreateSource resolves a source by its natural key, creating it with
// default trust when absent. created is true only for the inserting caller.
func (r *SourceRepository) GetOrCreateSource(ctx context.Context, platform, externalID string, lastFetchedAt time.Time) (*signals.Source, bool, error) {
	now := toMillis(r.now())

	var fetchedAt *time.Time
	if !lastFetchedAt.IsZero() {
		fetchedAt = &lastFetchedAt
	}

	res, err := r.q.ExecContext(ctx, `
		INSERT INTO sources (`+sourceColumns+`)
		VALUES (?, ?, ?, ?, 0, 1, ?, 0, '{}', ?, ?)
		ON CONFLICT (platform, external_identifier) DO NOTHING
	`, uuid.NewString(), platform, externalID, signals.DefaultTrustScore, nullableMillis(fetchedAt), now, now)
	if err != nil {
		return nil, false, storeErr("get or create source", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, storeErr("get or create source", err)
	}

	src, err := r.scanOne(ctx, `WHERE platform = ? AND external_identifier = ?`, platform, externalID)
	if err != nil {
		return nil, false, storeErr("get or create source", err)
	}
	if src == nil {
		return nil, false, storeErr("get or create source", fmt.Errorf("source %s:%s vanished after upsert", platform, externalID))
	}

	return src, affected == 1, nil
}

// GetSource returns nil when no source has the given id
func (r *SourceRepository) GetSource(ctx context.Context, id string) (*signals.Source, error) {
	src, err := r.scanOne(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, storeErr("get source", err)
	}
	return src, nil
}

func (r *SourceRepository) GetSourceByKey(ctx context.Context, platform, externalID string) (*signals.Source, error) {
	src, err := r.scanOne(ctx, `WHERE platform = ? AND external_identifier = ?`, platform, externalID)
	if err != nil {
		return nil, storeErr("get source", err)
	}
	return src, nil
}

// UpdateSource applies the non-nil fields of update and bumps updated_at
func (r *SourceRepository) UpdateSource(ctx context.Context, id string, update signals.SourceUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []any{toMillis(r.now())}

	if update.TrustScore != nil {
		sets = append(sets, "trust_score = ?")
		args = append(args, *update.TrustScore)
	}
	if update.Verified != nil {
		sets = append(sets, "verified = ?")
		args = append(args, *update.Verified)
	}
	if update.Active != nil {
		sets = append(sets, "active = ?")
		args = append(args, *update.Active)
	}
	if update.LastFetchedAt != nil {
		sets = append(sets, "last_fetched_at = ?")
		args = append(args, toMillis(*update.LastFetchedAt))
	}
	if update.ConsecutiveErrors != nil {
		sets = append(sets, "consecutive_errors = ?")
		args = append(args, *update.ConsecutiveErrors)
	}
	if update.Metadata != nil {
		metadata, err := encodeMap(update.Metadata)
		if err != nil {
			return storeErr("update source", err)
		}
		sets = append(sets, "metadata = ?")
		args = append(args, metadata)
	}

	args = append(args, id)
	res, err := r.q.ExecContext(ctx, `UPDATE sources SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return storeErr("update source", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("update source", err)
	}
	if affected == 0 {
		return storeErr("update source", fmt.Errorf("source %s: %w", id, signals.ErrNotFound))
	}

	return nil
}

// ListSources returns all sources ordered by trust score, highest first
func (r *SourceRepository) ListSources(ctx context.Context) ([]signals.Source, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+sourceColumns+`
		FROM sources
		ORDER BY trust_score DESC, platform, external_identifier
	`)
	if err != nil {
		return nil, storeErr("list sources", err)
	}
	defer rows.Close()

	var sources []signals.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, storeErr("list sources", err)
		}
		sources = append(sources, *src)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("list sources", fmt.Errorf("error iterating source rows: %w", err))
	}

	return sources, nil
}

func (r *SourceRepository) scanOne(ctx context.Context, where string, args ...any) (*signals.Source, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources `+where, args...)

	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return src, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*signals.Source, error) {
	var (
		src           signals.Source
		lastFetchedAt sql.NullInt64
		metadata      string
		createdAt     int64
		updatedAt     int64
	)

	err := row.Scan(
		&src.ID, &src.Platform, &src.ExternalIdentifier, &src.TrustScore, &src.Verified, &src.Active,
		&lastFetchedAt, &src.ConsecutiveErrors, &metadata, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	src.LastFetchedAt = fromNullMillis(lastFetchedAt)
	src.CreatedAt = fromMillis(createdAt)
	src.UpdatedAt = fromMillis(updatedAt)
	if src.Metadata, err = decodeMap(metadata); err != nil {
		return nil, fmt.Errorf("failed to decode source metadata: %w", err)
	}

	return &src, nil
}
