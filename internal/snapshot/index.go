package snapshot

import (
	"strings"

	"github.com/mesh-intelligence/pledgewatch/pkg/types"
)

// TokenBalance accumulates the pledges of one (project, state, token)
// bucket: the contributing pledge ids in id order and their summed amount.
type TokenBalance struct {
	PledgeIDs []int
	Amount    types.Amount
}

// ProjectBalances maps lifecycle state -> lower-cased token address ->
// accumulated balance for one project admin.
type ProjectBalances map[types.PledgeState]map[string]*TokenBalance

// Token returns the balance bucket for a state and token address, or nil
// when the project has no pledges in that bucket.
func (p ProjectBalances) Token(state types.PledgeState, token string) *TokenBalance {
	byToken, ok := p[state]
	if !ok {
		return nil
	}
	return byToken[token]
}

// BalanceIndex maps project admin id -> per-state per-token balances.
// Built once per run and read-only afterwards, so it is safe to share
// across concurrent conflict-detection tasks.
type BalanceIndex map[int]ProjectBalances

// ProjectAdminSet returns the set of admin ids whose kind is Project.
// Only those admins aggregate pledge balances.
func ProjectAdminSet(admins []types.Admin) map[int]struct{} {
	projects := make(map[int]struct{})
	for _, admin := range admins {
		if admin.ID >= 1 && admin.Kind == types.AdminProject {
			projects[admin.ID] = struct{}{}
		}
	}
	return projects
}

// BuildBalanceIndex aggregates the pledge snapshot into per-project
// balances. Pledges owned by non-project admins are skipped, as are
// dangling owner ids; a partial or stale snapshot is tolerated rather than
// rejected. Token addresses are lower-cased before use as keys.
func BuildBalanceIndex(pledges []types.Pledge, projects map[int]struct{}) BalanceIndex {
	index := make(BalanceIndex)

	for _, pledge := range pledges {
		if pledge.ID < 1 {
			continue
		}
		if _, ok := projects[pledge.Owner]; !ok {
			continue
		}

		balances, ok := index[pledge.Owner]
		if !ok {
			balances = make(ProjectBalances)
			index[pledge.Owner] = balances
		}

		byToken, ok := balances[pledge.State]
		if !ok {
			byToken = make(map[string]*TokenBalance)
			balances[pledge.State] = byToken
		}

		token := strings.ToLower(pledge.Token)
		tb, ok := byToken[token]
		if !ok {
			tb = &TokenBalance{Amount: types.ZeroAmount()}
			byToken[token] = tb
		}
		tb.PledgeIDs = append(tb.PledgeIDs, pledge.ID)
		tb.Amount = tb.Amount.Add(pledge.Amount)
	}

	return index
}
