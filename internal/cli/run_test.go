package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qdbcompat/internal/harness"
)

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})

	lastNFlag := cmd.Flags().Lookup("last-n")
	require.NotNil(t, lastNFlag)
	assert.Equal(t, "1", lastNFlag.DefValue)

	keepGoingFlag := cmd.Flags().Lookup("keep-going")
	require.NotNil(t, keepGoingFlag)
	assert.Equal(t, "false", keepGoingFlag.DefValue)

	require.NotNil(t, cmd.Flags().Lookup("versions"))
	require.NotNil(t, cmd.Flags().Lookup("results-db"))
	require.NotNil(t, cmd.Flags().Lookup("config"))
	require.NotNil(t, cmd.Flags().Lookup("install-root"))
	require.NotNil(t, cmd.Flags().Lookup("start-timeout"))
}

func TestRunRejectsConflictingSelectors(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--last-n", "2", "--versions", "6.2"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "last-n")
	assert.Contains(t, err.Error(), "versions")
}

func TestRunUnknownVersion(t *testing.T) {
	srv := newCatalogServer(t, nil)

	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--catalog-url", srv.URL, "--versions", "9.9.9"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "9.9.9")
}

func TestRunUnreachableCatalog(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--catalog-url", "http://127.0.0.1:1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func sampleResult() *harness.MatrixResult {
	return &harness.MatrixResult{
		Versions: []harness.VersionResult{
			{
				Version: "6.2.1",
				Scenarios: []harness.ScenarioResult{
					{Name: "insert_three_rows", Status: harness.StatusPass},
					{Name: "at", Status: harness.StatusSkip, Detail: "requires version above 6.0.7.1"},
				},
			},
			{
				Version: "6.1.2",
				Scenarios: []harness.ScenarioResult{
					{Name: "insert_three_rows", Status: harness.StatusFail, Detail: "expected 3 rows, got 2"},
				},
			},
		},
	}
}

func TestReport_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, report(buf, "text", sampleResult()))

	output := buf.String()
	assert.Contains(t, output, "version 6.2.1:")
	assert.Contains(t, output, "pass  insert_three_rows")
	assert.Contains(t, output, "skip  at (requires version above 6.0.7.1)")
	assert.Contains(t, output, "fail  insert_three_rows (expected 3 rows, got 2)")
	assert.Contains(t, output, "1 passed, 1 failed, 1 skipped")
}

func TestReport_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, report(buf, "json", sampleResult()))

	var decoded harness.MatrixResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Versions, 2)
	assert.Equal(t, "6.2.1", decoded.Versions[0].Version)
	assert.True(t, decoded.Failed())
}

func TestNewLogger_VerboseLevels(t *testing.T) {
	buf := &bytes.Buffer{}

	quiet := newLogger(buf, false)
	quiet.Debug("hidden")
	assert.Empty(t, buf.String())

	verbose := newLogger(buf, true)
	verbose.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}
