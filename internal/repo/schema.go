package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema — таблицы результатов прогонов. Идемпотентна.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          UUID PRIMARY KEY,
	status      TEXT        NOT NULL,
	trigger     TEXT        NOT NULL,
	passed      INT         NOT NULL DEFAULT 0,
	failed      INT         NOT NULL DEFAULT 0,
	skipped     INT         NOT NULL DEFAULT 0,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	error       TEXT
);

CREATE INDEX IF NOT EXISTS runs_started_at_idx ON runs (started_at DESC);

CREATE TABLE IF NOT EXISTS scenario_results (
	id          UUID PRIMARY KEY,
	run_id      UUID   NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
	position    INT    NOT NULL,
	feature     TEXT   NOT NULL,
	name        TEXT   NOT NULL,
	location    TEXT   NOT NULL,
	tags        TEXT[] NOT NULL DEFAULT '{}',
	status      TEXT   NOT NULL,
	steps       JSONB  NOT NULL,
	duration_ns BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS scenario_results_run_idx ON scenario_results (run_id, position);
`

// EnsureSchema создаёт таблицы, если их нет.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
