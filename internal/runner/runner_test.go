package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Probe/internal/apiclient"
	"github.com/shaiso/Probe/internal/commands"
	"github.com/shaiso/Probe/internal/demoapp"
	"github.com/shaiso/Probe/internal/domain"
	"github.com/shaiso/Probe/internal/engine"
	"github.com/shaiso/Probe/internal/execution"
	"github.com/shaiso/Probe/internal/expect"
	"github.com/shaiso/Probe/internal/fixture"
	"github.com/shaiso/Probe/internal/pattern"
	"github.com/shaiso/Probe/internal/steps"
	"github.com/shaiso/Probe/internal/telemetry"
)

func parse(t *testing.T, uri, src string) []*engine.Feature {
	t.Helper()
	f, err := engine.ParseFeature(uri, strings.NewReader(src))
	require.NoError(t, err)
	return []*engine.Feature{f}
}

func loadFixtures(t *testing.T) *fixture.Set {
	t.Helper()
	fx, err := fixture.Load(filepath.Join("..", "..", "fixtures", "users.json"))
	require.NoError(t, err)
	return fx
}

// apiOnly — сессии без браузера.
func apiOnly(context.Context) (*Session, error) {
	return &Session{API: apiclient.New()}, nil
}

// testLibrary — шаги для проверки поведения раннера.
func testLibrary() *steps.Library {
	l := steps.NewLibrary()
	l.Given(`a passing step`, func(context.Context, *execution.Context) error { return nil })
	l.Then(`{string} should equal {string}`, func(_ context.Context, _ *execution.Context, a, b string) error {
		return expect.Equal("value", b, a)
	})
	l.When(`I remember {string} as {string}`, func(_ context.Context, ec *execution.Context, key, value string) error {
		ec.Set(key, value)
		return nil
	})
	l.Then(`{string} should be forgotten`, func(_ context.Context, ec *execution.Context, key string) error {
		if v, ok := ec.Get(key); ok {
			return expect.Failf("%s leaked between scenarios: %v", key, v)
		}
		return nil
	})
	l.When(`I wait {int} ms`, func(ctx context.Context, _ *execution.Context, ms int) error {
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	l.When(`the step returns {string}`, func(_ context.Context, _ *execution.Context, msg string) error {
		return errors.New(msg)
	})
	l.Then(`the table has {int} rows`, func(_ context.Context, _ *execution.Context, n int, table *pattern.DataTable) error {
		return expect.Equal("rows", n, len(table.Hashes()))
	})
	return l
}

func newRunner(t *testing.T, cfg Config) *Runner {
	t.Helper()
	if cfg.Library == nil {
		cfg.Library = testLibrary()
	}
	if cfg.Sessions == nil {
		cfg.Sessions = apiOnly
	}
	r, err := New(cfg)
	require.NoError(t, err)
	return r
}

func TestNew_RequiresLibrary(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestRunner_DemoApp(t *testing.T) {
	server := httptest.NewServer(demoapp.NewHandler(demoapp.Config{}).Routes())
	t.Cleanup(server.Close)

	features := parse(t, "features/suite.feature", `Feature: Demo suite

  @api
  Scenario: List users
    When I send a GET request to "/users"
    Then the response status should be 200
    And the response should contain 10 users

  @api
  Scenario: Single user
    When I send a GET request to "/users/{{ .Fixtures.validUser.id }}"
    Then the user name should be "{{ .Fixtures.validUser.name }}"

  @web
  Scenario: Successful login
    Given I am on the login page
    When I enter "{{ .Fixtures.loginCredentials.valid.username }}" in the email field
    And I enter "{{ .Fixtures.loginCredentials.valid.password }}" in the password field
    And I click the login button
    Then I should be redirected to the dashboard
    And I should see a welcome message

  @web
  Scenario: Failed login
    Given I am on the login page
    When I enter "bad" in the email field
    And I enter "bad" in the password field
    And I click the login button
    Then I should see an error message
    And I should remain on the login page
`)

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	r := newRunner(t, Config{
		Library:  steps.DefaultLibrary(commands.DefaultRegistry()),
		Fixtures: loadFixtures(t),
		Sessions: HTTPSessions(HTTPSessionConfig{
			WebBaseURL: server.URL,
			Metrics:    metrics,
		}),
		APIBaseURL:     server.URL,
		CommandTimeout: 500 * time.Millisecond,
		StepTimeout:    5 * time.Second,
		Parallel:       2,
		Metrics:        metrics,
	})

	run, err := r.Run(context.Background(), features)
	require.NoError(t, err)

	for _, sc := range run.Scenarios {
		if fs := sc.FailedStep(); fs != nil {
			t.Errorf("%s failed at %s: %s", sc.Name, fs.Location, fs.Error)
		}
	}
	assert.Equal(t, domain.RunStatusPassed, run.Status)
	assert.Equal(t, "cli", run.Trigger)
	assert.NotNil(t, run.FinishedAt)

	// Порядок объявления сохраняется при Parallel > 1
	names := make([]string, 0, len(run.Scenarios))
	for _, sc := range run.Scenarios {
		names = append(names, sc.Name)
	}
	assert.Equal(t, []string{"List users", "Single user", "Successful login", "Failed login"}, names)

	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.Scenarios.WithLabelValues("PASSED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Runs.WithLabelValues("PASSED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.APIRequests.WithLabelValues("GET", "200")))
}

func TestRunner_FailureSkipsRemainingSteps(t *testing.T) {
	features := parse(t, "features/fail.feature", `Feature: Failures
  Scenario: Mismatch
    Given a passing step
    Then "actual" should equal "expected"
    And a passing step
`)

	run, err := newRunner(t, Config{}).Run(context.Background(), features)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, run.Status)

	sc := run.Scenarios[0]
	assert.Equal(t, domain.ScenarioStatusFailed, sc.Status)
	assert.Equal(t, "features/fail.feature:2", sc.Location)
	require.Len(t, sc.Steps, 3)

	assert.Equal(t, domain.StepStatusPassed, sc.Steps[0].Status)
	assert.Equal(t, domain.StepStatusSkipped, sc.Steps[2].Status)

	failed := sc.FailedStep()
	require.NotNil(t, failed)
	assert.Equal(t, "Then ", failed.Keyword)
	assert.Equal(t, "features/fail.feature:4", failed.Location)
	assert.Equal(t, domain.FailureAssertion, failed.Failure)
	assert.Equal(t, `"expected"`, failed.Expected)
	assert.Equal(t, `"actual"`, failed.Actual)
	assert.Contains(t, failed.Error, `features/fail.feature:4: step "\"actual\" should equal \"expected\""`)
}

func TestRunner_FailureKinds(t *testing.T) {
	features := parse(t, "kinds.feature", `Feature: Kinds
  Scenario: Undefined
    Given nobody defined this step

  Scenario: Coercion
    When I wait soon ms

  Scenario: Plain error
    When the step returns "boom"

  Scenario: Missing variable
    Then "{{ .Vars.missing }}" should equal "x"
`)

	run, err := newRunner(t, Config{}).Run(context.Background(), features)
	require.NoError(t, err)

	want := []domain.FailureKind{
		domain.FailureUndefined,
		domain.FailureCoercion,
		domain.FailureError,
		domain.FailureError,
	}
	for i, sc := range run.Scenarios {
		failed := sc.FailedStep()
		require.NotNil(t, failed, sc.Name)
		assert.Equal(t, want[i], failed.Failure, sc.Name)
	}
	assert.Contains(t, run.Scenarios[2].Steps[0].Error, "boom")
}

func TestRunner_ScenarioIsolation(t *testing.T) {
	features := parse(t, "isolation.feature", `Feature: Isolation
  Scenario: Writer
    When I remember "token" as "abc"
    Then "{{ .Vars.token }}" should equal "abc"

  Scenario: Reader
    Then "token" should be forgotten
`)

	for _, parallel := range []int{1, 2} {
		t.Run(fmt.Sprintf("parallel=%d", parallel), func(t *testing.T) {
			run, err := newRunner(t, Config{Parallel: parallel}).Run(context.Background(), features)
			require.NoError(t, err)
			assert.Equal(t, domain.RunStatusPassed, run.Status)
			assert.NotEqual(t, run.Scenarios[0].ID, run.Scenarios[1].ID)
		})
	}
}

func TestRunner_StepTimeout(t *testing.T) {
	features := parse(t, "slow.feature", `Feature: Slow
  Scenario: Hangs
    When I wait 5000 ms
    Then a passing step
`)

	start := time.Now()
	run, err := newRunner(t, Config{StepTimeout: 100 * time.Millisecond}).Run(context.Background(), features)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	sc := run.Scenarios[0]
	assert.Equal(t, domain.ScenarioStatusFailed, sc.Status)
	assert.Equal(t, domain.FailureTimeout, sc.Steps[0].Failure)
	assert.Equal(t, domain.StepStatusSkipped, sc.Steps[1].Status)
}

func TestRunner_Bail(t *testing.T) {
	features := parse(t, "bail.feature", `Feature: Bail
  Scenario: First
    When the step returns "boom"

  Scenario: Second
    Given a passing step
`)

	run, err := newRunner(t, Config{Bail: true}).Run(context.Background(), features)
	require.NoError(t, err)

	assert.Equal(t, domain.ScenarioStatusFailed, run.Scenarios[0].Status)
	assert.Equal(t, domain.ScenarioStatusSkipped, run.Scenarios[1].Status)
	assert.Equal(t, domain.StepStatusSkipped, run.Scenarios[1].Steps[0].Status)

	passed, failed, skipped := run.Counts()
	assert.Equal(t, [3]int{0, 1, 1}, [3]int{passed, failed, skipped})

	// Без Bail второй сценарий выполняется
	run, err = newRunner(t, Config{}).Run(context.Background(), features)
	require.NoError(t, err)
	assert.Equal(t, domain.ScenarioStatusPassed, run.Scenarios[1].Status)
}

func TestRunner_Tags(t *testing.T) {
	features := parse(t, "tags.feature", `Feature: Tags
  @smoke
  Scenario: Smoke
    Given a passing step

  @wip
  Scenario: Unfinished
    When the step returns "not ready"

  Scenario: Plain
    Given a passing step
`)

	filter, err := engine.ParseTagFilter("~@wip")
	require.NoError(t, err)

	run, err := newRunner(t, Config{Tags: filter}).Run(context.Background(), features)
	require.NoError(t, err)
	require.Len(t, run.Scenarios, 2)
	assert.Equal(t, "Smoke", run.Scenarios[0].Name)
	assert.Equal(t, "Plain", run.Scenarios[1].Name)
	assert.Equal(t, domain.RunStatusPassed, run.Status)

	filter, err = engine.ParseTagFilter("@smoke")
	require.NoError(t, err)
	run, err = newRunner(t, Config{Tags: filter}).Run(context.Background(), features)
	require.NoError(t, err)
	require.Len(t, run.Scenarios, 1)
	assert.Equal(t, []string{"@smoke"}, run.Scenarios[0].Tags)
}

func TestRunner_ResponseVars(t *testing.T) {
	server := httptest.NewServer(demoapp.NewHandler(demoapp.Config{}).Routes())
	t.Cleanup(server.Close)

	features := parse(t, "response.feature", `Feature: Response vars
  Scenario: Last response in templates
    When I send a GET request to "/users/1"
    Then "{{ .Vars.response.status_code }}" should equal "200"
    And "{{ .Vars.response.body.name }}" should equal "{{ .Fixtures.validUser.name }}"
`)

	lib := steps.DefaultLibrary(commands.DefaultRegistry())
	lib.Then(`{string} should equal {string}`, func(_ context.Context, _ *execution.Context, a, b string) error {
		return expect.Equal("value", b, a)
	})

	r := newRunner(t, Config{
		Library:    lib,
		Fixtures:   loadFixtures(t),
		APIBaseURL: server.URL,
	})

	run, err := r.Run(context.Background(), features)
	require.NoError(t, err)
	for _, sc := range run.Scenarios {
		if fs := sc.FailedStep(); fs != nil {
			t.Errorf("%s failed at %s: %s", sc.Name, fs.Location, fs.Error)
		}
	}
	assert.Equal(t, domain.RunStatusPassed, run.Status)
}

func TestHTTPSessions_ResponseTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	sessions := HTTPSessions(HTTPSessionConfig{
		RequestTimeout:  5 * time.Second,
		ResponseTimeout: 50 * time.Millisecond,
	})
	sess, err := sessions(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.API.Get(context.Background(), server.URL+"/slow")
	assert.ErrorIs(t, err, expect.ErrTimeout)
}

func TestRunner_DataTable(t *testing.T) {
	features := parse(t, "table.feature", `Feature: Tables
  Scenario: Rows
    Then the table has 2 rows
      | name  |
      | one   |
      | two   |
`)

	run, err := newRunner(t, Config{}).Run(context.Background(), features)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPassed, run.Status)
}

func TestRunner_EnvTemplates(t *testing.T) {
	t.Setenv("PROBE_TEST_GREETING", "hello")

	features := parse(t, "env.feature", `Feature: Env
  Scenario: Env value
    Then "{{ .Env.PROBE_TEST_GREETING }}" should equal "hello"
`)

	run, err := newRunner(t, Config{}).Run(context.Background(), features)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPassed, run.Status)
}

func TestRunner_Cancelled(t *testing.T) {
	features := parse(t, "cancel.feature", `Feature: Cancel
  Scenario: Never runs
    Given a passing step
`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := newRunner(t, Config{}).Run(ctx, features)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.RunStatusCancelled, run.Status)
	assert.Equal(t, domain.ScenarioStatusSkipped, run.Scenarios[0].Status)
	assert.NotEmpty(t, run.Error)
}

func TestRunner_CancelledDuringStep(t *testing.T) {
	features := parse(t, "cancel.feature", `Feature: Cancel
  Scenario: Long
    When I wait 5000 ms
`)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	run, err := newRunner(t, Config{}).Run(ctx, features)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.RunStatusCancelled, run.Status)
	assert.Equal(t, domain.ScenarioStatusSkipped, run.Scenarios[0].Status)
	assert.Nil(t, run.Scenarios[0].FailedStep())
}

func TestRunner_SessionError(t *testing.T) {
	features := parse(t, "session.feature", `Feature: Session
  Scenario: No session
    Given a passing step
`)

	r := newRunner(t, Config{
		Sessions: func(context.Context) (*Session, error) {
			return nil, errors.New("browser unavailable")
		},
	})

	run, err := r.Run(context.Background(), features)
	require.NoError(t, err)
	assert.Equal(t, domain.ScenarioStatusFailed, run.Scenarios[0].Status)
	assert.Contains(t, run.Scenarios[0].Steps[0].Error, "browser unavailable")
}

type fakeSink struct {
	mu   sync.Mutex
	runs []*domain.Run
	err  error
}

func (s *fakeSink) SaveRun(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return s.err
}

type fakePublisher struct {
	mu        sync.Mutex
	scenarios []string
	runs      int
	err       error
}

func (p *fakePublisher) PublishScenarioFinished(_ context.Context, _ uuid.UUID, res *domain.ScenarioResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scenarios = append(p.scenarios, res.Name)
	return p.err
}

func (p *fakePublisher) PublishRunFinished(context.Context, *domain.Run) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs++
	return p.err
}

func TestRunner_SinkPublisherObserver(t *testing.T) {
	features := parse(t, "events.feature", `Feature: Events
  Scenario: One
    Given a passing step

  Scenario: Two
    When the step returns "boom"
`)

	var (
		buf      bytes.Buffer
		observed []string
		mu       sync.Mutex
	)
	sink := &fakeSink{err: errors.New("db down")}
	pub := &fakePublisher{err: errors.New("broker down")}

	r := newRunner(t, Config{
		Sink:      sink,
		Publisher: pub,
		Observer: func(res *domain.ScenarioResult) {
			mu.Lock()
			defer mu.Unlock()
			observed = append(observed, res.Name+":"+string(res.Status))
		},
		Trigger: "cron",
		Logger:  telemetry.SetupLoggerTo(&buf),
	})

	run, err := r.Run(context.Background(), features)
	require.NoError(t, err, "sink and publisher errors must not fail the run")
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Equal(t, "cron", run.Trigger)

	require.Len(t, sink.runs, 1)
	assert.Same(t, run, sink.runs[0])
	assert.Equal(t, []string{"One", "Two"}, pub.scenarios)
	assert.Equal(t, 1, pub.runs)
	assert.Equal(t, []string{"One:PASSED", "Two:FAILED"}, observed)

	logs := buf.String()
	assert.Contains(t, logs, "failed to save run")
	assert.Contains(t, logs, "failed to publish run finished")
	assert.Contains(t, logs, run.ID.String())
	assert.Contains(t, logs, "step failed")
}

func TestCheck(t *testing.T) {
	features := parse(t, "check.feature", `Feature: Check
  Background:
    Given a passing step

  Scenario: Good
    Then "{{ .Fixtures.validUser.name }}" should equal "Leanne Graham"

  Scenario: Bad
    Given nobody defined this step
    When I wait later ms
`)

	errs := Check(testLibrary(), loadFixtures(t), features)
	require.Len(t, errs, 2)

	assert.Equal(t, "check.feature:9", errs[0].Location)
	assert.ErrorIs(t, errs[0], steps.ErrUndefinedStep)
	assert.Equal(t, "check.feature:10", errs[1].Location)
	assert.ErrorIs(t, errs[1], pattern.ErrTypeCoercion)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want domain.FailureKind
	}{
		{nil, ""},
		{expect.Equal("status", 200, 404), domain.FailureAssertion},
		{fmt.Errorf("%w: %w", expect.ErrTimeout, expect.Failf("still hidden")), domain.FailureTimeout},
		{context.DeadlineExceeded, domain.FailureTimeout},
		{fmt.Errorf("%w: connection refused", apiclient.ErrNetwork), domain.FailureNetwork},
		{fmt.Errorf("%w: x", steps.ErrAmbiguousStep), domain.FailureUndefined},
		{&pattern.CoercionError{Type: pattern.ParamInt, Value: "x", Err: errors.New("bad")}, domain.FailureCoercion},
		{fmt.Errorf("%w: visit", commands.ErrUnknownAction), domain.FailureError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
}
