// Package harness runs the ingestion behavior suite across a matrix
// of database versions.
//
// The orchestrator owns the sequential flow: one version at a time,
// one live fixture at a time. For each resolved release it installs
// the distribution, starts a fresh fixture, executes every scenario
// (gate-checked against the fixture's resolved version), and stops the
// fixture on every exit path. By default a failing version aborts the
// rest of the matrix; KeepGoing continues through all versions and
// still reports overall failure.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/qdbcompat/internal/fixture"
	"github.com/roach88/qdbcompat/internal/ingest"
	"github.com/roach88/qdbcompat/internal/qdb"
	"github.com/roach88/qdbcompat/internal/release"
	"github.com/roach88/qdbcompat/internal/store"
)

// Scenario outcome statuses.
const (
	StatusPass = "pass"
	StatusFail = "fail"
	StatusSkip = "skip"
)

// ScenarioResult is one scenario's outcome on one version.
type ScenarioResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// VersionResult aggregates one version's suite run.
type VersionResult struct {
	Version   string           `json:"version"`
	Scenarios []ScenarioResult `json:"scenarios"`
}

// Failed reports whether any scenario failed on this version.
func (v *VersionResult) Failed() bool {
	for _, sc := range v.Scenarios {
		if sc.Status == StatusFail {
			return true
		}
	}
	return false
}

// MatrixResult aggregates the whole run.
type MatrixResult struct {
	Versions []VersionResult `json:"versions"`
}

// Failed reports whether any version's suite failed.
func (m *MatrixResult) Failed() bool {
	for i := range m.Versions {
		if m.Versions[i].Failed() {
			return true
		}
	}
	return false
}

// Counts returns the pass/fail/skip totals across all versions.
func (m *MatrixResult) Counts() (passed, failed, skipped int) {
	for _, vr := range m.Versions {
		for _, sc := range vr.Scenarios {
			switch sc.Status {
			case StatusPass:
				passed++
			case StatusFail:
				failed++
			case StatusSkip:
				skipped++
			}
		}
	}
	return passed, failed, skipped
}

// ProvisionFunc acquires a ready environment for one release and
// returns its teardown. The teardown runs on every exit path.
type ProvisionFunc func(ctx context.Context, rel release.Release) (*Env, func() error, error)

// Orchestrator drives the suite across resolved releases.
type Orchestrator struct {
	// InstallRoot is where distributions are unpacked, one directory
	// per version.
	InstallRoot string

	// StartTimeout bounds each fixture's health wait.
	StartTimeout time.Duration

	// KeepGoing continues through remaining versions after a failure
	// instead of aborting the matrix.
	KeepGoing bool

	// Results, when set, records every scenario outcome.
	Results *store.Store

	Logger *slog.Logger

	// Provision overrides fixture provisioning (for testing).
	// If nil, a real fixture is installed and started.
	Provision ProvisionFunc

	// Scenarios overrides the behavior suite (for testing).
	// If nil, Suite() is used.
	Scenarios []Scenario
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (o *Orchestrator) suite() []Scenario {
	if o.Scenarios != nil {
		return o.Scenarios
	}
	return Suite()
}

func (o *Orchestrator) provision() ProvisionFunc {
	if o.Provision != nil {
		return o.Provision
	}
	return o.provisionFixture
}

// Run executes the suite against each release in order.
//
// Install or startup failures abort the run with an error; scenario
// failures are aggregated into the result. In both cases every
// acquired fixture is stopped before Run returns.
func (o *Orchestrator) Run(ctx context.Context, releases []release.Release) (*MatrixResult, error) {
	result := &MatrixResult{}
	for _, rel := range releases {
		vr, err := o.runVersion(ctx, rel)
		if vr != nil {
			result.Versions = append(result.Versions, *vr)
		}
		if err != nil {
			return result, err
		}
		if vr.Failed() && !o.KeepGoing {
			o.logger().Error("suite failed, aborting remaining versions", "version", vr.Version)
			break
		}
	}
	return result, nil
}

// runVersion provisions one fixture and runs the whole suite on it.
// Teardown is guaranteed; its error surfaces unless a run error
// already did.
func (o *Orchestrator) runVersion(ctx context.Context, rel release.Release) (vr *VersionResult, err error) {
	o.logger().Info("testing version", "version", rel.Version)

	env, teardown, err := o.provision()(ctx, rel)
	if err != nil {
		return nil, fmt.Errorf("provision %s: %w", rel.Version, err)
	}
	defer func() {
		if terr := teardown(); terr != nil {
			o.logger().Error("fixture teardown", "version", rel.Version, "error", terr)
			if err == nil {
				err = terr
			}
		}
	}()

	vr = &VersionResult{Version: env.Version.String()}
	for _, sc := range o.suite() {
		vr.Scenarios = append(vr.Scenarios, o.runScenario(ctx, sc, env))
	}
	return vr, nil
}

// runScenario evaluates the gate, executes the scenario, and records
// the outcome.
func (o *Orchestrator) runScenario(ctx context.Context, sc Scenario, env *Env) ScenarioResult {
	result := ScenarioResult{Name: sc.Name}
	started := time.Now()

	if sc.SkippedOn(env.Version) {
		result.Status = StatusSkip
		result.Detail = fmt.Sprintf("requires version above %s", sc.MinVersion)
		o.logger().Info("scenario skipped", "scenario", sc.Name, "version", env.Version)
	} else if err := sc.Run(ctx, env); err != nil {
		result.Status = StatusFail
		result.Detail = err.Error()
		o.logger().Error("scenario failed", "scenario", sc.Name, "version", env.Version, "error", err)
	} else {
		result.Status = StatusPass
		o.logger().Info("scenario passed", "scenario", sc.Name, "version", env.Version)
	}

	if o.Results != nil {
		rec := store.RunRecord{
			Version:   env.Version,
			Scenario:  sc.Name,
			Status:    result.Status,
			Detail:    result.Detail,
			Duration:  time.Since(started),
			StartedAt: started,
		}
		if err := o.Results.RecordRun(ctx, rec); err != nil {
			o.logger().Warn("could not record run", "scenario", sc.Name, "error", err)
		}
	}
	return result
}

// provisionFixture installs and starts a real fixture for rel.
func (o *Orchestrator) provisionFixture(ctx context.Context, rel release.Release) (*Env, func() error, error) {
	installDir, err := fixture.Install(ctx, rel, o.InstallRoot, o.logger())
	if err != nil {
		return nil, nil, err
	}

	opts := []fixture.Option{fixture.WithFixtureLogger(o.logger())}
	if o.StartTimeout > 0 {
		opts = append(opts, fixture.WithStartTimeout(o.StartTimeout))
	}
	fx, err := fixture.New(installDir, opts...)
	if err != nil {
		return nil, nil, err
	}
	if err := fx.Start(ctx); err != nil {
		// Start cleans up after itself, but Stop is idempotent.
		_ = fx.Stop()
		return nil, nil, err
	}

	env := &Env{
		Version: fx.Version(),
		ILPAddr: fx.ILPAddr(),
		Query:   qdb.NewClient(fx.HTTPAddr(), qdb.WithLogger(o.logger())),
		NewSender: func(ctx context.Context) (ingest.Sender, error) {
			return ingest.Connect(ctx, fx.ILPAddr())
		},
		Logger: o.logger(),
	}
	return env, fx.Stop, nil
}
