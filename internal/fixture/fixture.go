// Package fixture owns the lifecycle of one installed QuestDB
// instance: install, start, health-wait, stop.
//
// One fixture is live at a time; it is exclusively owned by the
// orchestrator for the duration of one version's run. Whichever code
// path acquires a running fixture guarantees release via Stop on every
// exit path.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/qdbcompat/internal/poll"
	"github.com/roach88/qdbcompat/internal/qdb"
	"github.com/roach88/qdbcompat/internal/release"
)

// State is a fixture's lifecycle state.
type State int

const (
	// StateUninstalled: no distribution materialized yet.
	StateUninstalled State = iota
	// StateInstalled: distribution unpacked, no process.
	StateInstalled
	// StateStarting: process launched, query endpoint not healthy yet.
	StateStarting
	// StateRunning: query endpoint answered, instance usable.
	StateRunning
	// StateStopped: process terminated.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninstalled:
		return "uninstalled"
	case StateInstalled:
		return "installed"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// DefaultStartTimeout bounds the wait for the query endpoint to come
// up after process launch.
const DefaultStartTimeout = 60 * time.Second

// StartupTimeoutError indicates the instance never became healthy.
type StartupTimeoutError struct {
	Timeout time.Duration
}

func (e *StartupTimeoutError) Error() string {
	return fmt.Sprintf("instance not healthy within %s", e.Timeout)
}

// Fixture is one managed QuestDB instance.
type Fixture struct {
	installDir string
	jarPath    string
	version    release.Version

	dataDir  string
	httpPort int
	ilpPort  int
	cmd      *exec.Cmd
	state    State

	javaBin      string
	startTimeout time.Duration
	logger       *slog.Logger
}

// Option configures a Fixture.
type Option func(*Fixture)

// WithJavaBin overrides the java binary used to launch the instance.
func WithJavaBin(path string) Option {
	return func(f *Fixture) {
		f.javaBin = path
	}
}

// WithStartTimeout overrides the health-wait deadline.
func WithStartTimeout(d time.Duration) Option {
	return func(f *Fixture) {
		f.startTimeout = d
	}
}

// WithFixtureLogger sets the fixture's logger.
func WithFixtureLogger(logger *slog.Logger) Option {
	return func(f *Fixture) {
		f.logger = logger
	}
}

// New creates a fixture over an installed distribution. The version is
// parsed from the installed server jar, not assumed from the requested
// version string: the catalog listing and the unpacked artifact may
// diverge.
func New(installDir string, opts ...Option) (*Fixture, error) {
	jarPath, version, err := findServerJar(installDir)
	if err != nil {
		return nil, err
	}

	f := &Fixture{
		installDir:   installDir,
		jarPath:      jarPath,
		version:      version,
		state:        StateInstalled,
		javaBin:      "java",
		startTimeout: DefaultStartTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Version is the version parsed from the installed artifact.
func (f *Fixture) Version() release.Version {
	return f.version
}

// State returns the current lifecycle state.
func (f *Fixture) State() State {
	return f.state
}

// HTTPAddr is the query endpoint address. Valid once Start returned.
func (f *Fixture) HTTPAddr() string {
	return fmt.Sprintf("localhost:%d", f.httpPort)
}

// ILPAddr is the ingestion endpoint address. Valid once Start returned.
func (f *Fixture) ILPAddr() string {
	return fmt.Sprintf("localhost:%d", f.ilpPort)
}

// Start launches the instance and blocks until its query endpoint
// answers or the start timeout elapses. On timeout the process is
// killed before a *StartupTimeoutError is returned; Stop stays safe to
// call either way.
func (f *Fixture) Start(ctx context.Context) error {
	if f.state != StateInstalled && f.state != StateStopped {
		return fmt.Errorf("cannot start fixture in state %s", f.state)
	}

	dataDir, err := os.MkdirTemp("", "qdbcompat-data-*")
	if err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	f.dataDir = dataDir

	f.httpPort, err = freePort()
	if err != nil {
		return f.abortStart(err)
	}
	f.ilpPort, err = freePort()
	if err != nil {
		return f.abortStart(err)
	}
	if err := writeServerConf(dataDir, f.httpPort, f.ilpPort); err != nil {
		return f.abortStart(err)
	}

	logFile, err := os.Create(filepath.Join(dataDir, "questdb.log"))
	if err != nil {
		return f.abortStart(fmt.Errorf("create instance log: %w", err))
	}
	defer logFile.Close()

	cmd := exec.Command(f.javaBin,
		"-DQuestDB-Runtime-0",
		"-ea",
		"-cp", f.jarPath,
		"io.questdb.ServerMain",
		"-d", dataDir)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	f.logger.Info("starting instance",
		"version", f.version,
		"http_port", f.httpPort,
		"ilp_port", f.ilpPort,
		"data_dir", dataDir)

	f.state = StateStarting
	if err := cmd.Start(); err != nil {
		f.state = StateStopped
		return f.abortStart(fmt.Errorf("launch instance: %w", err))
	}
	f.cmd = cmd

	if err := f.awaitHealthy(ctx); err != nil {
		// Partial start: tear the process down, then surface the error.
		if stopErr := f.Stop(); stopErr != nil {
			f.logger.Error("cleanup after failed start", "error", stopErr)
		}
		return err
	}

	f.state = StateRunning
	f.logger.Info("instance running", "version", f.version)
	return nil
}

// abortStart discards the partially prepared data dir before a launch
// error surfaces. Stop does not run on these branches, so without this
// the dir would leak.
func (f *Fixture) abortStart(err error) error {
	if f.dataDir != "" {
		if rmErr := os.RemoveAll(f.dataDir); rmErr != nil {
			f.logger.Warn("could not remove data dir", "dir", f.dataDir, "error", rmErr)
		}
		f.dataDir = ""
	}
	return err
}

// awaitHealthy polls the query endpoint until it answers a trivial
// query. Transport errors are expected while the server boots.
func (f *Fixture) awaitHealthy(ctx context.Context) error {
	client := qdb.NewClient(f.HTTPAddr(), qdb.WithLogger(f.logger))
	probe := func() poll.Outcome[bool] {
		if _, err := client.Query(ctx, "select 1"); err != nil {
			return poll.NotYet[bool]()
		}
		return poll.Success(true)
	}
	if _, err := poll.WaitFor(probe, f.startTimeout); err != nil {
		return &StartupTimeoutError{Timeout: f.startTimeout}
	}
	return nil
}

// Stop terminates the instance. Idempotent, and safe after a partial
// Start: already-stopped fixtures and never-started processes are
// no-ops.
func (f *Fixture) Stop() error {
	if f.state == StateStopped || f.state == StateInstalled || f.state == StateUninstalled {
		f.state = StateStopped
		return nil
	}

	var killErr error
	if f.cmd != nil && f.cmd.Process != nil {
		f.logger.Info("stopping instance", "version", f.version, "pid", f.cmd.Process.Pid)
		if err := f.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			killErr = fmt.Errorf("kill instance: %w", err)
		}
		_ = f.cmd.Wait()
	}
	f.cmd = nil
	f.state = StateStopped

	if f.dataDir != "" {
		if err := os.RemoveAll(f.dataDir); err != nil {
			f.logger.Warn("could not remove data dir", "dir", f.dataDir, "error", err)
		}
	}
	return killErr
}

// findServerJar locates the server jar in an install tree and parses
// the version from its file name (questdb-<version>.jar).
func findServerJar(installDir string) (string, release.Version, error) {
	matches, err := filepath.Glob(filepath.Join(installDir, "questdb-*.jar"))
	if err != nil || len(matches) == 0 {
		// Older distributions nest the jar one level down.
		matches, _ = filepath.Glob(filepath.Join(installDir, "*", "questdb-*.jar"))
	}
	for _, match := range matches {
		base := filepath.Base(match)
		raw := strings.TrimSuffix(strings.TrimPrefix(base, "questdb-"), ".jar")
		version, err := release.ParseVersion(raw)
		if err != nil {
			continue
		}
		return match, version, nil
	}
	return "", nil, fmt.Errorf("no server jar found under %s", installDir)
}

// writeServerConf writes the minimal server.conf binding the two
// endpoints the harness uses and disabling everything else.
func writeServerConf(dataDir string, httpPort, ilpPort int) error {
	confDir := filepath.Join(dataDir, "conf")
	if err := os.MkdirAll(confDir, 0o755); err != nil {
		return fmt.Errorf("create conf dir: %w", err)
	}
	conf := fmt.Sprintf(
		"http.bind.to=0.0.0.0:%d\n"+
			"line.tcp.net.bind.to=0.0.0.0:%d\n"+
			"line.udp.enabled=false\n"+
			"pg.enabled=false\n"+
			"telemetry.enabled=false\n",
		httpPort, ilpPort)
	if err := os.WriteFile(filepath.Join(confDir, "server.conf"), []byte(conf), 0o644); err != nil {
		return fmt.Errorf("write server.conf: %w", err)
	}
	return nil
}

// freePort asks the kernel for an unused TCP port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("allocate port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
