package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// TargetRepositoryPG implements domain.TargetRepository backed by PostgreSQL.
type TargetRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewTargetRepository creates a new target repository.
func NewTargetRepository(pool *pgxpool.Pool) *TargetRepositoryPG {
	return &TargetRepositoryPG{pool: pool}
}

// Create inserts the target and its initial asset rows in one transaction.
func (r *TargetRepositoryPG) Create(ctx context.Context, target *domain.Target) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
INSERT INTO targets (id, owner_id, kind, input, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6);
`, target.ID, target.OwnerID, target.Kind, target.Input, target.Status, target.CreatedAt); err != nil {
		return fmt.Errorf("insert target: %w", err)
	}

	for _, at := range domain.AssetTypesForKind(target.Kind) {
		asset := target.Assets[at]
		if _, err := tx.Exec(ctx, `
INSERT INTO target_assets (target_id, asset_type, status, updated_at)
VALUES ($1, $2, $3, $4);
`, target.ID, at, asset.Status, target.CreatedAt); err != nil {
			return fmt.Errorf("insert asset %s: %w", at, err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID fetches a target with its full asset map.
func (r *TargetRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Target, error) {
	return getTarget(ctx, r.pool, id)
}

// UpdateAsset applies the delta to one asset row and touches the target, all
// within a single transaction, then returns the target as stored. Fields left
// nil in the delta are untouched, so url and status always commit together.
func (r *TargetRepositoryPG) UpdateAsset(ctx context.Context, id string, assetType domain.AssetType, delta domain.AssetDelta) (*domain.Target, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, `
UPDATE target_assets
SET status     = COALESCE($3, status),
    url        = COALESCE($4, url),
    attempt    = COALESCE($5, attempt),
    error      = COALESCE($6, error),
    started_at = CASE WHEN $7 THEN NULL ELSE COALESCE($8, started_at) END,
    updated_at = $9
WHERE target_id = $1 AND asset_type = $2;
`, id, assetType, delta.Status, delta.URL, delta.Attempt, delta.Error, delta.ClearStart, delta.StartedAt, now)
	if err != nil {
		return nil, fmt.Errorf("update asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `UPDATE targets SET updated_at = $2 WHERE id = $1;`, id, now); err != nil {
		return nil, fmt.Errorf("touch target: %w", err)
	}

	target, err := getTarget(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return target, nil
}

// SetStatus writes the recomputed overall status.
func (r *TargetRepositoryPG) SetStatus(ctx context.Context, id string, status domain.TargetStatus) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE targets SET status = $2, updated_at = now() WHERE id = $1;
`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getTarget(ctx context.Context, q queryer, id string) (*domain.Target, error) {
	var target domain.Target
	row := q.QueryRow(ctx, `
SELECT id, owner_id, kind, input, status, created_at, updated_at
FROM targets
WHERE id = $1;
`, id)
	if err := row.Scan(&target.ID, &target.OwnerID, &target.Kind, &target.Input, &target.Status, &target.CreatedAt, &target.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	rows, err := q.Query(ctx, `
SELECT asset_type, status, url, attempt, started_at, error, updated_at
FROM target_assets
WHERE target_id = $1;
`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	target.Assets = make(map[domain.AssetType]domain.AssetState)
	for rows.Next() {
		var a domain.AssetState
		if err := rows.Scan(&a.Type, &a.Status, &a.URL, &a.Attempt, &a.StartedAt, &a.Error, &a.UpdatedAt); err != nil {
			return nil, err
		}
		target.Assets[a.Type] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &target, nil
}
