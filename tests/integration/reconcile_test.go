// End-to-end tests for the reconcile command: clean runs, counter repair
// with --fix, fatal aborts, and the skip flags.
package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pledgewatch/internal/sqlite"
	"github.com/mesh-intelligence/pledgewatch/pkg/types"
)

// TestMain builds the pledgewatch binary once before running tests.
func TestMain(m *testing.M) {
	projectRoot, err := FindProjectRoot()
	if err != nil {
		buildErr = err
		os.Exit(1)
	}

	tmpDir, err := os.MkdirTemp("", "pledgewatch-test-*")
	if err != nil {
		buildErr = err
		os.Exit(1)
	}
	pledgewatchBin = filepath.Join(tmpDir, "pledgewatch")

	cmd := exec.Command("go", "build", "-o", pledgewatchBin, "./cmd/pledgewatch")
	cmd.Dir = projectRoot
	if output, err := cmd.CombinedOutput(); err != nil {
		buildErr = &BuildError{Err: err, Output: string(output)}
		os.Exit(1)
	}

	code := m.Run()

	os.RemoveAll(tmpDir)
	os.Exit(code)
}

// Snapshot with one giver, one project, and one Pledged pledge of 100 DAI
// owned by the project.
const stateOneProject = `{
  "admins": [null,
    {"type": "Giver", "name": "alice"},
    {"type": "Project", "name": "water project"}],
  "pledges": [null,
    {"amount": "100", "owner": 2, "token": "0xDAI", "pledgeState": "Pledged"}]
}`

// One mint funding pledge 1.
const eventsOneMint = `[
  {"transactionHash": "0xabc", "returnValues": {"from": 0, "to": 1, "amount": "100"}}
]`

// seedMilestone stores a milestone for project 2 with the given DAI counter
// and one committed donation matching the mint.
func seedMilestone(t *testing.T, env *fixtureEnv, counter string) {
	t.Helper()
	env.seedStore(t, func(store *sqlite.Store) {
		entityID := mustInsertEntity(t, store, &types.Entity{
			Kind:      types.KindMilestone,
			Title:     "well construction",
			ProjectID: 2,
			Counters: []types.DonationCounter{
				{Symbol: "DAI", CurrentBalance: types.MustAmount(counter)},
			},
		})
		mustInsertDonation(t, store, &types.DonationRecord{
			Amount:      types.MustAmount("100"),
			PledgeID:    1,
			Status:      types.StatusCommitted,
			TxHash:      "0xabc",
			OwnerTypeID: entityID,
			CreatedAt:   seedTime(0),
		})
	})
}

func TestVersionCommand(t *testing.T) {
	stdout, _, exitCode := runPledgewatch(t, "", "version")
	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout, "pledgewatch")
}

func TestReconcileCleanRun(t *testing.T) {
	env := newFixtureEnv(t, stateOneProject, eventsOneMint)
	seedMilestone(t, env, "100")

	stdout, stderr, exitCode := runPledgewatch(t, env.Dir, "reconcile", "--config", env.ConfigFile)
	require.Equal(t, 0, exitCode, "stderr: %s", stderr)
	assert.Contains(t, stdout, "completed, 0 conflicts (0 fixed)")
	assert.NotContains(t, stdout, "should be created")
}

func TestReconcileReportsCounterConflict(t *testing.T) {
	env := newFixtureEnv(t, stateOneProject, eventsOneMint)
	seedMilestone(t, env, "90")

	stdout, _, exitCode := runPledgewatch(t, env.Dir, "reconcile", "--config", env.ConfigFile)
	require.Equal(t, 0, exitCode)
	assert.Contains(t, stdout, "BalanceConflict")
	assert.Contains(t, stdout, "stored 90 chain 100")
	assert.Contains(t, stdout, "completed, 1 conflicts (0 fixed)")
}

func TestReconcileFixRepairsCounter(t *testing.T) {
	env := newFixtureEnv(t, stateOneProject, eventsOneMint)
	seedMilestone(t, env, "90")

	stdout, _, exitCode := runPledgewatch(t, env.Dir, "reconcile", "--config", env.ConfigFile, "--fix")
	require.Equal(t, 0, exitCode)
	assert.Contains(t, stdout, "completed, 1 conflicts (1 fixed)")

	// The repaired counter survives in the store: a second run is clean.
	stdout, _, exitCode = runPledgewatch(t, env.Dir, "reconcile", "--config", env.ConfigFile)
	require.Equal(t, 0, exitCode)
	assert.Contains(t, stdout, "completed, 0 conflicts (0 fixed)")
}

func TestReconcileSynthesizesMissingDonation(t *testing.T) {
	env := newFixtureEnv(t, stateOneProject, eventsOneMint)
	// Milestone present but no stored donation for the mint.
	env.seedStore(t, func(store *sqlite.Store) {
		mustInsertEntity(t, store, &types.Entity{
			Kind:      types.KindMilestone,
			Title:     "well construction",
			ProjectID: 2,
			Counters: []types.DonationCounter{
				{Symbol: "DAI", CurrentBalance: types.MustAmount("100")},
			},
		})
	})

	stdout, _, exitCode := runPledgewatch(t, env.Dir, "reconcile", "--config", env.ConfigFile)
	require.Equal(t, 0, exitCode)
	assert.Contains(t, stdout, "should be created: tx 0xabc pledge 1 amount 100")
}

func TestReconcileAbortsOnMissingFunds(t *testing.T) {
	env := newFixtureEnv(t, stateOneProject, `[
  {"transactionHash": "0xdef", "returnValues": {"from": 1, "to": 1, "amount": "50"}}
]`)
	env.seedStore(t, func(store *sqlite.Store) {})

	stdout, _, exitCode := runPledgewatch(t, env.Dir, "reconcile", "--config", env.ConfigFile)
	require.Equal(t, 2, exitCode)
	assert.Contains(t, stdout, "aborted at event 0")
	assert.Contains(t, stdout, "InsufficientParentFunds")
}

func TestReconcileSkipFlags(t *testing.T) {
	env := newFixtureEnv(t, stateOneProject, eventsOneMint)
	// A counter conflict and no stored donation: both checks would report.
	env.seedStore(t, func(store *sqlite.Store) {
		mustInsertEntity(t, store, &types.Entity{
			Kind:      types.KindCampaign,
			Title:     "clean water",
			ProjectID: 2,
			Counters: []types.DonationCounter{
				{Symbol: "DAI", CurrentBalance: types.MustAmount("90")},
			},
		})
	})

	stdout, _, exitCode := runPledgewatch(t, env.Dir, "reconcile", "--config", env.ConfigFile,
		"--skip-entities", "--skip-replay")
	require.Equal(t, 0, exitCode)
	assert.Contains(t, stdout, "completed, 0 conflicts (0 fixed)")
	assert.NotContains(t, stdout, "BalanceConflict")
	assert.NotContains(t, stdout, "should be created")
}

func TestReconcileMissingStateFileFails(t *testing.T) {
	env := newFixtureEnv(t, stateOneProject, eventsOneMint)
	require.NoError(t, os.Remove(filepath.Join(env.Dir, "liquidPledgingState.json")))

	_, stderr, exitCode := runPledgewatch(t, env.Dir, "reconcile", "--config", env.ConfigFile)
	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr, "state file")
}
