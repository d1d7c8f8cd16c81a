package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/qdbcompat/internal/harness"
	"github.com/roach88/qdbcompat/internal/release"
	"github.com/roach88/qdbcompat/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	LastN        int
	Versions     []string
	KeepGoing    bool
	ResultsDB    string
	ConfigFile   string
	InstallRoot  string
	CatalogURL   string
	StartTimeout time.Duration
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the compatibility suite against a version matrix",
		Long: `Resolve a version matrix, install and start each release in turn,
and run the ingestion behavior suite against it.

Examples:
  qdbcompat run
  qdbcompat run --last-n 3 --keep-going
  qdbcompat run --versions 6.2 --versions 6.1.3
  qdbcompat run --config run.yaml --results-db runs.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.LastN, "last-n", 1, "test the N most recent releases")
	cmd.Flags().StringArrayVar(&opts.Versions, "versions", nil, "explicit versions to test, in order")
	cmd.Flags().BoolVar(&opts.KeepGoing, "keep-going", false, "continue through remaining versions after a failure")
	cmd.Flags().StringVar(&opts.ResultsDB, "results-db", "", "sqlite file recording scenario outcomes")
	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "YAML run configuration file")
	cmd.Flags().StringVar(&opts.InstallRoot, "install-root", "", "directory holding unpacked distributions")
	cmd.Flags().StringVar(&opts.CatalogURL, "catalog-url", release.DefaultCatalogURL, "release catalog endpoint")
	cmd.Flags().DurationVar(&opts.StartTimeout, "start-timeout", 0, "per-fixture startup deadline")
	cmd.MarkFlagsMutuallyExclusive("last-n", "versions")

	return cmd
}

func runRun(opts *RunOptions, cmd *cobra.Command) error {
	if err := applyConfig(opts, cmd); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	ctx := cmd.Context()

	installRoot := opts.InstallRoot
	if installRoot == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			cacheDir = os.TempDir()
		}
		installRoot = filepath.Join(cacheDir, "qdbcompat", "versions")
	}

	catalog := release.NewCatalog(
		release.WithCatalogURL(opts.CatalogURL),
		release.WithCatalogLogger(logger),
	)
	sel := release.Selector{LastN: opts.LastN, Versions: opts.Versions}
	releases, err := release.NewMatrix(catalog).Resolve(ctx, sel)
	if err != nil {
		if release.IsUnknownVersion(err) {
			return WrapExitError(ExitCommandError, "version not installable", err)
		}
		return WrapExitError(ExitCommandError, "failed to resolve version matrix", err)
	}

	orch := &harness.Orchestrator{
		InstallRoot:  installRoot,
		StartTimeout: opts.StartTimeout,
		KeepGoing:    opts.KeepGoing,
		Logger:       logger,
	}
	if opts.ResultsDB != "" {
		results, err := store.Open(opts.ResultsDB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open results database", err)
		}
		defer results.Close()
		orch.Results = results
	}

	result, err := orch.Run(ctx, releases)
	if result != nil {
		if rerr := report(cmd.OutOrStdout(), opts.Format, result); rerr != nil {
			return WrapExitError(ExitCommandError, "failed to write report", rerr)
		}
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "suite aborted", err)
	}
	if result.Failed() {
		return NewExitError(ExitFailure, "one or more scenarios failed")
	}
	return nil
}

// applyConfig layers the optional config file under flag values. A
// flag set explicitly on the command line always wins over the file.
func applyConfig(opts *RunOptions, cmd *cobra.Command) error {
	if opts.ConfigFile == "" {
		return nil
	}
	cfg, err := LoadRunConfig(opts.ConfigFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if cfg.InstallRoot != "" && !flags.Changed("install-root") {
		opts.InstallRoot = cfg.InstallRoot
	}
	if cfg.ResultsDB != "" && !flags.Changed("results-db") {
		opts.ResultsDB = cfg.ResultsDB
	}
	if cfg.CatalogURL != "" && !flags.Changed("catalog-url") {
		opts.CatalogURL = cfg.CatalogURL
	}
	if cfg.StartTimeout > 0 && !flags.Changed("start-timeout") {
		opts.StartTimeout = cfg.StartTimeout
	}
	if cfg.KeepGoing && !flags.Changed("keep-going") {
		opts.KeepGoing = cfg.KeepGoing
	}
	return nil
}

// newLogger builds the run logger. Verbose lowers the threshold to
// debug so fixture and catalog internals become visible.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// report writes the matrix result in the requested format.
func report(w io.Writer, format string, result *harness.MatrixResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	for _, vr := range result.Versions {
		fmt.Fprintf(w, "version %s:\n", vr.Version)
		for _, sc := range vr.Scenarios {
			if sc.Detail != "" {
				fmt.Fprintf(w, "    %-5s %s (%s)\n", sc.Status, sc.Name, sc.Detail)
			} else {
				fmt.Fprintf(w, "    %-5s %s\n", sc.Status, sc.Name)
			}
		}
	}
	passed, failed, skipped := result.Counts()
	fmt.Fprintf(w, "%d passed, %d failed, %d skipped\n", passed, failed, skipped)
	return nil
}
