// Package snapshot loads the cached on-chain state of the liquid-pledging
// contract (pledges, admins, and the ordered Transfer event history) and
// builds the read-only balance index consumed by reconciliation.
//
// The JSON file formats match the cache files written by the upstream state
// fetcher; acquiring fresh state from a node is out of scope here.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/mesh-intelligence/pledgewatch/pkg/types"
)

// Snapshot is the full on-chain state at one block: every pledge and every
// admin, with index 0 of each slice the sentinel entry. Immutable once
// loaded.
type Snapshot struct {
	Pledges []types.Pledge
	Admins  []types.Admin
}

// Pledge returns the pledge with the given id, or the sentinel zero pledge
// when the id is out of range.
func (s *Snapshot) Pledge(id int) types.Pledge {
	if id < 0 || id >= len(s.Pledges) {
		return types.Pledge{}
	}
	return s.Pledges[id]
}

// Admin returns the admin with the given id, or the sentinel zero admin
// when the id is out of range.
func (s *Snapshot) Admin(id int) types.Admin {
	if id < 0 || id >= len(s.Admins) {
		return types.Admin{}
	}
	return s.Admins[id]
}

// flexInt decodes a JSON value that may be a number or a decimal string.
// The upstream cache stores ids both ways.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("parsing id %q: %w", s, err)
	}
	*f = flexInt(n)
	return nil
}

// rawPledge mirrors one pledge entry of the cached state file.
type rawPledge struct {
	Amount      string  `json:"amount"`
	Owner       flexInt `json:"owner"`
	Token       string  `json:"token"`
	PledgeState string  `json:"pledgeState"`
}

// rawAdmin mirrors one admin entry of the cached state file.
type rawAdmin struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// rawState mirrors the cached state file. Entry 0 of each array is the
// chain's sentinel and may be null.
type rawState struct {
	Pledges []*rawPledge `json:"pledges"`
	Admins  []*rawAdmin  `json:"admins"`
}

// Load reads the cached pledge/admin state file. Ids are assigned from
// array position, matching the chain's dense 1-based id ranges; entry 0
// becomes the zero sentinel regardless of file content.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var raw rawState
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding state file %s: %w", path, err)
	}

	snap := &Snapshot{
		Pledges: make([]types.Pledge, len(raw.Pledges)),
		Admins:  make([]types.Admin, len(raw.Admins)),
	}

	for i, rp := range raw.Pledges {
		if i == 0 || rp == nil {
			continue
		}
		amount, err := types.ParseAmount(rp.Amount)
		if err != nil {
			return nil, fmt.Errorf("pledge %d: %w", i, err)
		}
		state, err := types.ParsePledgeState(rp.PledgeState)
		if err != nil {
			return nil, fmt.Errorf("pledge %d: %w", i, err)
		}
		snap.Pledges[i] = types.Pledge{
			ID:     i,
			Owner:  int(rp.Owner),
			Token:  rp.Token,
			State:  state,
			Amount: amount,
		}
	}

	for i, ra := range raw.Admins {
		if i == 0 || ra == nil {
			continue
		}
		snap.Admins[i] = types.Admin{ID: i, Kind: ra.Type, Name: ra.Name}
	}

	return snap, nil
}

// rawEvent mirrors one Transfer event of the cached events file.
type rawEvent struct {
	TransactionHash string `json:"transactionHash"`
	ReturnValues    struct {
		From   flexInt `json:"from"`
		To     flexInt `json:"to"`
		Amount string  `json:"amount"`
	} `json:"returnValues"`
}

// LoadEvents reads the cached Transfer event history. The file is expected
// to hold events in on-chain emission order; replay correctness depends on
// that ordering and it is not re-checked here.
func LoadEvents(path string) ([]types.TransferEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading events file: %w", err)
	}

	var raw []rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding events file %s: %w", path, err)
	}

	events := make([]types.TransferEvent, len(raw))
	for i, re := range raw {
		amount, err := types.ParseAmount(re.ReturnValues.Amount)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events[i] = types.TransferEvent{
			TxHash: re.TransactionHash,
			From:   int(re.ReturnValues.From),
			To:     int(re.ReturnValues.To),
			Amount: amount,
		}
	}

	return events, nil
}
