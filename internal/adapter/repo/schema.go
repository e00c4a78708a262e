package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is applied at process start. The partial unique index on jobs is
// load-bearing: it is what enforces the single-outstanding-job invariant per
// (target_id, asset_type) pair at the storage layer.
const schema = `
CREATE TABLE IF NOT EXISTS targets (
	id         UUID PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	input      JSONB NOT NULL DEFAULT '{}'::jsonb,
	status     TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS target_assets (
	target_id  UUID NOT NULL REFERENCES targets(id),
	asset_type TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	url        TEXT NOT NULL DEFAULT '',
	attempt    INT NOT NULL DEFAULT 0,
	started_at TIMESTAMPTZ,
	error      TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (target_id, asset_type)
);

CREATE TABLE IF NOT EXISTS jobs (
	id         UUID PRIMARY KEY,
	target_id  UUID NOT NULL REFERENCES targets(id),
	asset_type TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	attempt    INT NOT NULL DEFAULT 1,
	error      TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS jobs_outstanding_idx
	ON jobs (target_id, asset_type)
	WHERE status IN ('queued', 'running');

CREATE INDEX IF NOT EXISTS jobs_running_idx ON jobs (status) WHERE status = 'running';
`

// Migrate creates the pipeline tables when they do not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("repo: apply schema: %w", err)
	}
	return nil
}
