package types

import (
	"fmt"
	"time"
)

// Donation statuses as stored in the record store. Only the three statuses
// that mirror a pledge lifecycle state participate in reconciliation.
const (
	StatusCommitted = "Committed"
	StatusPaying    = "Paying"
	StatusPaid      = "Paid"
)

// validDonationStatuses is the set of recognized status values.
var validDonationStatuses = map[string]bool{
	StatusCommitted: true,
	StatusPaying:    true,
	StatusPaid:      true,
}

// ValidDonationStatus reports whether s is a recognized donation status.
func ValidDonationStatus(s string) bool {
	return validDonationStatuses[s]
}

// statusByState pairs each pledge lifecycle state with the donation status
// stored records in that state must carry.
var statusByState = map[PledgeState]string{
	StatePledged: StatusCommitted,
	StatePaying:  StatusPaying,
	StatePaid:    StatusPaid,
}

// StatusForState returns the donation status corresponding to a pledge
// lifecycle state (Pledged -> Committed, Paying -> Paying, Paid -> Paid).
func StatusForState(state PledgeState) (string, error) {
	status, ok := statusByState[state]
	if !ok {
		return "", fmt.Errorf("%w: %v", ErrInvalidState, state)
	}
	return status, nil
}

// DonationRecord is the stored off-chain representation of value held
// against a pledge, with lineage to the donation(s) that funded it.
// Amount is fixed at creation; reconciliation never mutates it.
type DonationRecord struct {
	ID          string
	Amount      Amount
	PledgeID    int
	Status      string
	TxHash      string
	OwnerTypeID string // id of the milestone or campaign the donation belongs to
	ParentIDs   []string
	CreatedAt   time.Time
}

// EntityKind tags the tracked entity types carrying donation counters.
const (
	KindMilestone = "milestone"
	KindCampaign  = "campaign"
)

// EntityKinds lists the tracked entity kinds.
var EntityKinds = []string{KindMilestone, KindCampaign}

// DonationCounter is a per-token running balance stored on an entity.
type DonationCounter struct {
	Symbol         string
	CurrentBalance Amount
}

// Entity is a stored milestone or campaign. ProjectID links the entity to
// its on-chain project admin; entities without a project id never reach
// reconciliation.
type Entity struct {
	ID        string
	Kind      string
	Title     string
	ProjectID int
	Counters  []DonationCounter
}
