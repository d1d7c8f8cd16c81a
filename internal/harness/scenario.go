package harness

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/qdbcompat/internal/ingest"
	"github.com/roach88/qdbcompat/internal/qdb"
	"github.com/roach88/qdbcompat/internal/release"
)

// DefaultAwaitTimeout bounds the consistency wait after a flush.
const DefaultAwaitTimeout = 5 * time.Second

// Env is the per-version execution context handed to every scenario.
// Scenarios receive it explicitly; there is no ambient fixture state.
type Env struct {
	// Version is the fixture's resolved version, used for gating.
	Version release.Version

	// ILPAddr is the ingestion endpoint (host:port).
	ILPAddr string

	// Query issues SQL against the fixture's query endpoint.
	Query *qdb.Client

	// NewSender opens a protocol client session against ILPAddr.
	NewSender func(ctx context.Context) (ingest.Sender, error)

	// AwaitTimeout overrides DefaultAwaitTimeout when positive.
	AwaitTimeout time.Duration

	Logger *slog.Logger
}

// AwaitTable waits until table is visible with at least minRows rows.
// A non-positive timeout uses the environment's default.
func (e *Env) AwaitTable(ctx context.Context, table string, minRows int, timeout time.Duration) (*qdb.Response, error) {
	if timeout <= 0 {
		timeout = e.AwaitTimeout
	}
	if timeout <= 0 {
		timeout = DefaultAwaitTimeout
	}
	return qdb.WaitForTable(ctx, e.Query, table, minRows, timeout)
}

// Scenario is one ingestion behavior checked against every fixture.
type Scenario struct {
	// Name identifies the scenario in reports and run history.
	Name string

	// MinVersion gates the scenario: fixtures at or below it skip the
	// scenario rather than fail it. Nil means the scenario always runs.
	MinVersion release.Version

	// Run executes the scenario against the given environment.
	Run func(ctx context.Context, env *Env) error
}

// SkippedOn reports whether the scenario is gated off for a fixture
// version.
func (s *Scenario) SkippedOn(v release.Version) bool {
	return s.MinVersion != nil && v.AtMost(s.MinVersion)
}

// newTableName returns a fresh random table name, so scenarios never
// collide across runs against a reused data directory.
func newTableName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Suite returns the fixed behavior suite, in execution order.
func Suite() []Scenario {
	return []Scenario{
		{Name: "insert_three_rows", Run: insertThreeRows},
		{Name: "repeated_symbol_and_column_names", MinVersion: release.Version{6, 1, 2}, Run: repeatedSymbolAndColumnNames},
		{Name: "same_symbol_and_col_name", MinVersion: release.Version{6, 1, 2}, Run: sameSymbolAndColName},
		{Name: "single_symbol", Run: singleSymbol},
		{Name: "two_columns", Run: twoColumns},
		{Name: "mismatched_types_across_rows", Run: mismatchedTypesAcrossRows},
		{Name: "at", MinVersion: release.Version{6, 0, 7, 1}, Run: explicitTimestamp},
		{Name: "underscores", Run: underscores},
		{Name: "funky_chars", MinVersion: release.Version{6, 0, 7, 1}, Run: funkyChars},
	}
}
