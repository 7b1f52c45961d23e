package types

// TransferEvent is one on-chain pledge transfer, in emission order. From is
// NoPledge for mints (inbound value with no prior pledge). Replaying the
// full ordered event sequence from empty state produces the pledge snapshot;
// pledgewatch assumes that derivation and never re-verifies it.
type TransferEvent struct {
	TxHash string
	From   int
	To     int
	Amount Amount
}

// IsMint reports whether the event introduces fresh value rather than
// moving it from an existing pledge.
func (e TransferEvent) IsMint() bool {
	return e.From == NoPledge
}
