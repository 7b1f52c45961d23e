package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pledgewatch/internal/sqlite"
	"github.com/mesh-intelligence/pledgewatch/pkg/types"
)

func TestRunnerCompletes(t *testing.T) {
	store, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	snap := checkerSnapshot()

	id, err := store.InsertEntity(&types.Entity{
		Kind: types.KindMilestone, Title: "well", ProjectID: 1,
		Counters: []types.DonationCounter{{Symbol: "DAI", CurrentBalance: types.MustAmount("100")}},
	})
	require.NoError(t, err)

	_, err = store.InsertDonation(&types.DonationRecord{
		ID: "d1", Amount: types.MustAmount("350"), PledgeID: 1,
		Status: types.StatusCommitted, TxHash: "0xabc", OwnerTypeID: id,
	})
	require.NoError(t, err)

	runner := &Runner{
		Snapshot: snap,
		Events: []types.TransferEvent{
			{TxHash: "0xabc", From: types.NoPledge, To: 1, Amount: types.MustAmount("350")},
			{TxHash: "0xdef", From: 1, To: 2, Amount: types.MustAmount("30")},
		},
		Store:  store,
		Tokens: testTokens,
		Fix:    true,
		Log:    quietLog(),
	}

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	// The stored counter (100) disagreed with the chain (350) and was
	// repaired; pledge 2's Paying donations are absent entirely, which is
	// a second conflict at pledge granularity.
	assert.Equal(t, 1, result.Report.FixedCount())
	assert.GreaterOrEqual(t, result.Report.ConflictCount(), 2)
	assert.Equal(t, "completed, 2 conflicts (1 fixed)", result.Report.Summary())

	// The transfer to pledge 2 had no stored record.
	require.Len(t, result.Expected, 1)
	assert.Equal(t, []string{"d1"}, result.Expected[0].ParentIDs)

	entities, err := store.EntitiesWithProject(types.KindMilestone)
	require.NoError(t, err)
	assert.Equal(t, "350", entities[0].Counters[0].CurrentBalance.String())
}

func TestRunnerAbortsOnFatalReplay(t *testing.T) {
	store, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	runner := &Runner{
		Snapshot: checkerSnapshot(),
		Events: []types.TransferEvent{
			// Nothing ever funded pledge 1.
			{TxHash: "0xbad", From: 1, To: 2, Amount: types.MustAmount("10")},
		},
		Store:  store,
		Tokens: testTokens,
		Log:    quietLog(),
	}

	result, err := runner.Run(context.Background())
	var insufficient *InsufficientParentFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 0, insufficient.EventIndex)

	// The report accumulated up to the abort is still surfaced.
	require.NotNil(t, result)
	assert.NotEmpty(t, filterKind(result.Report, KindInsufficientParentFunds))
}

func TestRunnerSkipFlags(t *testing.T) {
	store, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	// The event history alone would be fatal; skipping replay avoids it.
	runner := &Runner{
		Snapshot: checkerSnapshot(),
		Events: []types.TransferEvent{
			{TxHash: "0xbad", From: 1, To: 2, Amount: types.MustAmount("10")},
		},
		Store:      store,
		Tokens:     testTokens,
		SkipReplay: true,
		Log:        quietLog(),
	}

	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Expected)

	runner.SkipReplay = false
	runner.SkipEntities = true
	_, err = runner.Run(context.Background())
	assert.Error(t, err)
}
