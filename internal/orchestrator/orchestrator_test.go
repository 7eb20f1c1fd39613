package orchestrator

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Probe/internal/config"
	"github.com/shaiso/Probe/internal/demoapp"
	"github.com/shaiso/Probe/internal/domain"
	"github.com/shaiso/Probe/internal/engine"
	"github.com/shaiso/Probe/internal/scheduler"
)

const usersFeature = `@api
Feature: Users API

  @smoke
  Scenario: List users
    When I send a GET request to "/users"
    Then the response status should be 200
    And the response should contain 10 users

  @slow
  Scenario: Single user
    When I send a GET request to "/users/1"
    Then the user name should be "{{ .Fixtures.validUser.name }}"
`

const loginFeature = `@web
Feature: Login

  Scenario: Valid credentials
    Given I am on the login page
    When I log in with valid credentials
    Then I should be redirected to the dashboard
`

const undefinedFeature = `Feature: Undefined

  Scenario: Unknown step
    Given I do something nobody implemented
`

// newOrchestrator поднимает демо-приложение и пишет features во временный каталог.
func newOrchestrator(t *testing.T, features map[string]string, mutate func(*config.Config)) *Orchestrator {
	t.Helper()

	server := httptest.NewServer(demoapp.NewHandler(demoapp.Config{}).Routes())
	t.Cleanup(server.Close)

	dir := t.TempDir()
	for name, src := range features {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}

	cfg := config.Default()
	cfg.BaseURL = server.URL
	cfg.APIBaseURL = ""
	cfg.WebBaseURL = ""
	cfg.Features = []string{dir}
	cfg.Fixtures = filepath.Join("..", "..", "fixtures", "users.json")
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	o, err := New(Config{Config: cfg})
	require.NoError(t, err)
	return o
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	cfg := config.Default()
	cfg.Fixtures = filepath.Join(t.TempDir(), "missing.json")
	_, err = New(Config{Config: cfg})
	assert.Error(t, err)
}

func TestOrchestrator_Run(t *testing.T) {
	o := newOrchestrator(t, map[string]string{
		"users.feature": usersFeature,
		"login.feature": loginFeature,
	}, func(c *config.Config) { c.Parallel = 2 })

	run, err := o.Run(context.Background(), scheduler.Request{Trigger: scheduler.TriggerCron})
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusPassed, run.Status)
	assert.Equal(t, "cron", run.Trigger)
	require.Len(t, run.Scenarios, 3)
	// Файлы каталога идут в лексикографическом порядке
	assert.Equal(t, "Login", run.Scenarios[0].Feature)
	assert.Equal(t, "List users", run.Scenarios[1].Name)
	assert.Equal(t, 0, o.Active())
}

func TestOrchestrator_RequestOverrides(t *testing.T) {
	o := newOrchestrator(t, map[string]string{"users.feature": usersFeature}, func(c *config.Config) {
		c.Tags = "@slow"
	})

	run, err := o.Run(context.Background(), scheduler.Request{})
	require.NoError(t, err)
	require.Len(t, run.Scenarios, 1)
	assert.Equal(t, "Single user", run.Scenarios[0].Name)

	run, err = o.Run(context.Background(), scheduler.Request{Tags: "@smoke"})
	require.NoError(t, err)
	require.Len(t, run.Scenarios, 1)
	assert.Equal(t, "List users", run.Scenarios[0].Name)
	assert.Equal(t, "cli", run.Trigger)
}

func TestOrchestrator_InvalidRequest(t *testing.T) {
	o := newOrchestrator(t, map[string]string{"users.feature": usersFeature}, nil)

	_, err := o.Run(context.Background(), scheduler.Request{Tags: "smoke"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, err, engine.ErrInvalidTagFilter)

	_, err = o.Run(context.Background(), scheduler.Request{Features: []string{t.TempDir()}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, err, engine.ErrNoFeatures)
}

func TestOrchestrator_Strict(t *testing.T) {
	features := map[string]string{"undefined.feature": undefinedFeature}

	t.Run("lenient run records failure", func(t *testing.T) {
		o := newOrchestrator(t, features, nil)

		run, err := o.Run(context.Background(), scheduler.Request{})
		require.NoError(t, err)
		require.Len(t, run.Scenarios, 1)
		assert.Equal(t, domain.RunStatusFailed, run.Status)
		assert.Equal(t, domain.FailureUndefined, run.Scenarios[0].FailedStep().Failure)
	})

	t.Run("strict run stops before start", func(t *testing.T) {
		o := newOrchestrator(t, features, func(c *config.Config) { c.Strict = true })

		run, err := o.Run(context.Background(), scheduler.Request{})
		assert.Nil(t, run)
		assert.ErrorIs(t, err, ErrUndefinedSteps)

		var ce *CheckError
		require.ErrorAs(t, err, &ce)
		require.Len(t, ce.Steps, 1)
		assert.Contains(t, ce.Error(), "undefined.feature:4")
	})
}

func TestOrchestrator_Check(t *testing.T) {
	o := newOrchestrator(t, map[string]string{
		"users.feature":     usersFeature,
		"undefined.feature": undefinedFeature,
	}, nil)

	features, err := o.LoadFeatures([]string{filepath.Join(o.cfg.Features[0], "users.feature")})
	require.NoError(t, err)
	assert.NoError(t, o.Check(features))

	features, err = o.LoadFeatures(nil)
	require.NoError(t, err)
	assert.ErrorIs(t, o.Check(features), ErrUndefinedSteps)

	assert.NotZero(t, o.Library().Count())
	assert.NotZero(t, o.Commands().Count())
}

func TestOrchestrator_Stop(t *testing.T) {
	o := newOrchestrator(t, map[string]string{"users.feature": usersFeature}, nil)

	o.Stop()
	_, err := o.Run(context.Background(), scheduler.Request{})
	assert.ErrorIs(t, err, ErrStopped)
}
