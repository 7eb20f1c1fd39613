package repo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Probe/internal/domain"
)

// testRepo подключается к PROBE_TEST_DATABASE_URL или пропускает тест.
func testRepo(t *testing.T) *RunRepo {
	t.Helper()

	dsn := os.Getenv("PROBE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PROBE_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, EnsureSchema(ctx, pool))
	// Повторный вызов не падает
	require.NoError(t, EnsureSchema(ctx, pool))

	return NewRunRepo(pool)
}

func finishedRun() *domain.Run {
	run := domain.NewRun("cli")
	run.Scenarios = []domain.ScenarioResult{
		{
			ID:       uuid.New(),
			Feature:  "Users API",
			Name:     "List users",
			Location: "features/api/users.feature:8",
			Tags:     []string{"@api", "@smoke"},
			Status:   domain.ScenarioStatusPassed,
			Steps: []domain.StepResult{
				{Keyword: "When ", Text: `I send a GET request to "/users"`, Status: domain.StepStatusPassed, Duration: 12 * time.Millisecond},
			},
			Duration: 15 * time.Millisecond,
		},
		{
			ID:       uuid.New(),
			Feature:  "Users API",
			Name:     "Missing user",
			Location: "features/api/users.feature:20",
			Status:   domain.ScenarioStatusFailed,
			Steps: []domain.StepResult{
				{
					Keyword:  "Then ",
					Text:     "the response status should be 404",
					Status:   domain.StepStatusFailed,
					Failure:  domain.FailureAssertion,
					Error:    "status: expected 404, got 200",
					Expected: "404",
					Actual:   "200",
				},
			},
		},
	}
	run.Finish()
	return run
}

func TestRunRepo_SaveAndGet(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()

	run := finishedRun()
	require.NoError(t, r.SaveRun(ctx, run))
	t.Cleanup(func() { _, _ = r.DeleteBefore(ctx, time.Now().Add(time.Hour)) })

	got, err := r.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, got.Status)
	assert.Equal(t, "cli", got.Trigger)
	require.Len(t, got.Scenarios, 2)
	assert.Equal(t, "List users", got.Scenarios[0].Name)
	assert.Equal(t, []string{"@api", "@smoke"}, got.Scenarios[0].Tags)
	assert.Equal(t, 15*time.Millisecond, got.Scenarios[0].Duration)
	assert.Equal(t, "404", got.Scenarios[1].Steps[0].Expected)
	assert.Empty(t, got.Scenarios[1].Tags)

	// Повторное сохранение заменяет результаты
	run.Scenarios = run.Scenarios[:1]
	require.NoError(t, r.SaveRun(ctx, run))
	got, err = r.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, got.Scenarios, 1)

	runs, err := r.List(ctx, RunFilter{Trigger: "cli", Limit: 10})
	require.NoError(t, err)
	assert.NotEmpty(t, runs)
}

func TestRunRepo_NotFound(t *testing.T) {
	r := testRepo(t)

	_, err := r.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunRepo_RejectsRunningRun(t *testing.T) {
	// Проверка статуса выполняется до обращения к БД
	r := NewRunRepo(nil)

	err := r.SaveRun(context.Background(), domain.NewRun("cli"))
	assert.ErrorIs(t, err, ErrRunNotFinished)
}

func TestHelpers(t *testing.T) {
	assert.Nil(t, nullString(""))
	assert.Equal(t, "x", *nullString("x"))

	assert.NotEqual(t, uuid.Nil, scenarioID(uuid.Nil))
	id := uuid.New()
	assert.Equal(t, id, scenarioID(id))

	assert.NotNil(t, tagsOrEmpty(nil))
	assert.Equal(t, []string{"@a"}, tagsOrEmpty([]string{"@a"}))
}

func TestAdvisoryLock(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()

	first := NewAdvisoryLock(r.pool, SchedulerLockKey+1)
	second := NewAdvisoryLock(r.pool, SchedulerLockKey+1)

	ok, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// Повторный вызов держателя не теряет блокировку
	ok, err = first.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Release(ctx))
	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Release(ctx))

	// Release без блокировки ничего не делает
	assert.NoError(t, first.Release(ctx))
}

func TestNewPool_EmptyDSN(t *testing.T) {
	_, err := NewPool(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyDSN)
}

func TestNewPool_InvalidDSN(t *testing.T) {
	_, err := NewPool(context.Background(), "postgres://probe@localhost:notaport/probe")
	assert.ErrorContains(t, err, "parse database url")
}
