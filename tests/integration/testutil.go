// Package integration provides CLI integration tests for pledgewatch.
// Tests exercise the built binary end to end: fixture state and event
// files on disk, a seeded record store, and assertions on the printed
// report and exit code.
package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mesh-intelligence/pledgewatch/internal/sqlite"
	"github.com/mesh-intelligence/pledgewatch/pkg/types"
)

var (
	// pledgewatchBin is the path to the built pledgewatch binary.
	pledgewatchBin string
	// buildErr captures any build error.
	buildErr error
)

// BuildError wraps a build error with output.
type BuildError struct {
	Err    error
	Output string
}

func (e *BuildError) Error() string {
	return e.Err.Error() + ": " + e.Output
}

// FindProjectRoot finds the project root by walking up and looking for go.mod.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// runPledgewatch executes the pledgewatch binary and returns its combined
// output streams and exit code.
func runPledgewatch(t *testing.T, workDir string, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	if buildErr != nil {
		t.Fatalf("failed to build pledgewatch: %v", buildErr)
	}
	if pledgewatchBin == "" {
		t.Fatal("pledgewatch binary not built")
	}

	cmd := exec.Command(pledgewatchBin, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	stdout = outBuf.String()
	stderr = errBuf.String()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			t.Fatalf("run pledgewatch: %v", err)
		}
	}
	return stdout, stderr, exitCode
}

// fixtureEnv is one isolated reconciliation setup: a temp directory holding
// the state file, events file, config file, and record store.
type fixtureEnv struct {
	Dir        string
	ConfigFile string
	DataDir    string
}

// newFixtureEnv writes the given state and events JSON plus a config file
// pointing at them into a fresh temp directory.
func newFixtureEnv(t *testing.T, stateJSON, eventsJSON string) *fixtureEnv {
	t.Helper()
	dir := t.TempDir()

	stateFile := filepath.Join(dir, "liquidPledgingState.json")
	eventsFile := filepath.Join(dir, "liquidPledgingEvents.json")
	dataDir := filepath.Join(dir, "db")
	writeFile(t, stateFile, stateJSON)
	writeFile(t, eventsFile, eventsJSON)

	config := "data_dir: " + dataDir + "\n" +
		"state_file: " + stateFile + "\n" +
		"events_file: " + eventsFile + "\n" +
		"token_whitelist:\n" +
		"  - symbol: DAI\n" +
		"    foreign_address: \"0xDAI\"\n"
	configFile := filepath.Join(dir, "pledgewatch.yaml")
	writeFile(t, configFile, config)

	return &fixtureEnv{Dir: dir, ConfigFile: configFile, DataDir: dataDir}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// seedStore opens the record store in the fixture's data directory, runs
// the seed function, and closes it again so the binary gets exclusive use.
func (e *fixtureEnv) seedStore(t *testing.T, seed func(store *sqlite.Store)) {
	t.Helper()
	store, err := sqlite.Open(e.DataDir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	seed(store)
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
}

// mustInsertEntity inserts an entity or fails the test.
func mustInsertEntity(t *testing.T, store *sqlite.Store, entity *types.Entity) string {
	t.Helper()
	id, err := store.InsertEntity(entity)
	if err != nil {
		t.Fatalf("InsertEntity: %v", err)
	}
	return id
}

// mustInsertDonation inserts a donation record or fails the test.
func mustInsertDonation(t *testing.T, store *sqlite.Store, d *types.DonationRecord) string {
	t.Helper()
	id, err := store.InsertDonation(d)
	if err != nil {
		t.Fatalf("InsertDonation: %v", err)
	}
	return id
}

// seedTime returns a fixed creation timestamp offset by n seconds, keeping
// donation ordering deterministic across runs.
func seedTime(n int) time.Time {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(n) * time.Second)
}
