package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Probe/internal/domain"
)

// RunRepo — репозиторий результатов прогонов.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// SaveRun сохраняет завершённый прогон вместе с результатами сценариев.
//
// Выполняется в одной транзакции. Повторное сохранение того же прогона
// заменяет ранее сохранённые результаты.
func (r *RunRepo) SaveRun(ctx context.Context, run *domain.Run) error {
	if !run.Status.IsTerminal() {
		return fmt.Errorf("%w: run %s is %s", ErrRunNotFinished, run.ID, run.Status)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	passed, failed, skipped := run.Counts()
	query := `
		INSERT INTO runs (id, status, trigger, passed, failed, skipped, started_at, finished_at, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, passed = EXCLUDED.passed, failed = EXCLUDED.failed,
		    skipped = EXCLUDED.skipped, finished_at = EXCLUDED.finished_at, error = EXCLUDED.error
	`
	_, err = tx.Exec(ctx, query,
		run.ID,
		run.Status,
		run.Trigger,
		passed,
		failed,
		skipped,
		run.StartedAt,
		run.FinishedAt,
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM scenario_results WHERE run_id = $1`, run.ID); err != nil {
		return fmt.Errorf("delete scenario results: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range run.Scenarios {
		sc := &run.Scenarios[i]
		stepsJSON, err := json.Marshal(sc.Steps)
		if err != nil {
			return fmt.Errorf("marshal steps: %w", err)
		}
		batch.Queue(`
			INSERT INTO scenario_results (id, run_id, position, feature, name, location, tags, status, steps, duration_ns)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			scenarioID(sc.ID),
			run.ID,
			i,
			sc.Feature,
			sc.Name,
			sc.Location,
			tagsOrEmpty(sc.Tags),
			sc.Status,
			stepsJSON,
			sc.Duration.Nanoseconds(),
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert scenario results: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByID возвращает прогон по ID вместе с результатами сценариев.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `
		SELECT id, status, trigger, started_at, finished_at, error
		FROM runs
		WHERE id = $1
	`
	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, feature, name, location, tags, status, steps, duration_ns
		FROM scenario_results
		WHERE run_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list scenario results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		run.Scenarios = append(run.Scenarios, *sc)
	}
	return run, rows.Err()
}

// List возвращает прогоны без результатов сценариев, новые первыми.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	query := `
		SELECT id, status, trigger, started_at, finished_at, error
		FROM runs
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR trigger = $2)
		ORDER BY started_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(string(filter.Status)),
		nullString(filter.Trigger),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// DeleteBefore удаляет прогоны, начатые раньше t. Возвращает число удалённых.
func (r *RunRepo) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM runs WHERE started_at < $1`, t)
	if err != nil {
		return 0, fmt.Errorf("delete runs: %w", err)
	}
	return result.RowsAffected(), nil
}

// --- Helpers ---

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	Status  domain.RunStatus
	Trigger string
	Limit   int // default: 50
	Offset  int
}

// scanRun сканирует одну строку в Run. pgx.Rows тоже реализует pgx.Row.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var (
		run      domain.Run
		status   string
		runError *string
	)

	err := row.Scan(
		&run.ID,
		&status,
		&run.Trigger,
		&run.StartedAt,
		&run.FinishedAt,
		&runError,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.Status = domain.ParseRunStatus(status)
	if runError != nil {
		run.Error = *runError
	}
	return &run, nil
}

func scanScenario(rows pgx.Rows) (*domain.ScenarioResult, error) {
	var (
		sc         domain.ScenarioResult
		status     string
		stepsJSON  []byte
		durationNS int64
	)

	err := rows.Scan(
		&sc.ID,
		&sc.Feature,
		&sc.Name,
		&sc.Location,
		&sc.Tags,
		&status,
		&stepsJSON,
		&durationNS,
	)
	if err != nil {
		return nil, fmt.Errorf("scan scenario result: %w", err)
	}

	sc.Status = domain.ScenarioStatus(status)
	sc.Duration = time.Duration(durationNS)
	if err := json.Unmarshal(stepsJSON, &sc.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	return &sc, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// scenarioID заменяет пустой ID сценария новым.
func scenarioID(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return uuid.New()
	}
	return id
}

// tagsOrEmpty возвращает пустой срез вместо nil (колонка NOT NULL).
func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
