// Package sqlite implements the SQLite record store holding the off-chain
// donation ledger: milestones and campaigns with their per-token donation
// counters, and donation records with parent lineage.
package sqlite

// Schema DDL for all tables.
const (
	createEntities = `CREATE TABLE IF NOT EXISTS entities (
    entity_id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    title TEXT NOT NULL,
    project_id INTEGER,
    created_at TEXT NOT NULL
);`

	createDonationCounters = `CREATE TABLE IF NOT EXISTS donation_counters (
    entity_id TEXT NOT NULL,
    symbol TEXT NOT NULL,
    current_balance TEXT NOT NULL,
    PRIMARY KEY (entity_id, symbol),
    FOREIGN KEY (entity_id) REFERENCES entities(entity_id)
);`

	createDonations = `CREATE TABLE IF NOT EXISTS donations (
    donation_id TEXT PRIMARY KEY,
    amount TEXT NOT NULL,
    pledge_id INTEGER NOT NULL,
    status TEXT NOT NULL,
    tx_hash TEXT NOT NULL,
    owner_type_id TEXT NOT NULL,
    created_at TEXT NOT NULL
);`

	createDonationParents = `CREATE TABLE IF NOT EXISTS donation_parents (
    donation_id TEXT NOT NULL,
    parent_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (donation_id, position),
    FOREIGN KEY (donation_id) REFERENCES donations(donation_id)
);`

	createDonationsByOwnerIdx = `CREATE INDEX IF NOT EXISTS idx_donations_owner_status
    ON donations(owner_type_id, status);`

	createDonationsByPledgeIdx = `CREATE INDEX IF NOT EXISTS idx_donations_pledge
    ON donations(pledge_id);`
)

// schemaStatements lists the DDL applied on Open, in dependency order.
var schemaStatements = []string{
	createEntities,
	createDonationCounters,
	createDonations,
	createDonationParents,
	createDonationsByOwnerIdx,
	createDonationsByPledgeIdx,
}
