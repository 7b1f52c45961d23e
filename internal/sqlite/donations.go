// This file implements donation record access. Query results that feed
// replay are sorted by creation time ascending; fund attribution
// correctness depends on that ordering.
package sqlite

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/pledgewatch/pkg/types"
)

// InsertDonation stores a donation record with its ordered parent lineage.
// When ID is empty a UUID v7 is generated; when CreatedAt is zero the
// current time is used. Returns the donation id.
func (s *Store) InsertDonation(d *types.DonationRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return "", err
	}

	if !types.ValidDonationStatus(d.Status) {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidStatus, d.Status)
	}
	if d.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("generating UUID v7: %w", err)
		}
		d.ID = id.String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO donations (donation_id, amount, pledge_id, status, tx_hash, owner_type_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		d.ID, d.Amount.String(), d.PledgeID, d.Status, d.TxHash, d.OwnerTypeID,
		d.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("inserting donation: %w", err)
	}

	for pos, parentID := range d.ParentIDs {
		_, err = tx.Exec(
			"INSERT INTO donation_parents (donation_id, parent_id, position) VALUES (?, ?, ?)",
			d.ID, parentID, pos,
		)
		if err != nil {
			return "", fmt.Errorf("inserting parent %s: %w", parentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing donation: %w", err)
	}
	return d.ID, nil
}

// DonationsByOwner returns the donations belonging to an entity with the
// given status, sorted by creation time ascending.
func (s *Store) DonationsByOwner(ownerID, status string) ([]types.DonationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}

	return s.queryDonations(
		"SELECT donation_id, amount, pledge_id, status, tx_hash, owner_type_id, created_at FROM donations WHERE owner_type_id = ? AND status = ? ORDER BY created_at",
		ownerID, status,
	)
}

// AllDonations returns every stored donation sorted by creation time
// ascending, the order replay consumes them in.
func (s *Store) AllDonations() ([]types.DonationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}

	return s.queryDonations(
		"SELECT donation_id, amount, pledge_id, status, tx_hash, owner_type_id, created_at FROM donations ORDER BY created_at",
	)
}

// queryDonations runs a donation SELECT and hydrates rows including the
// ordered parent lineage.
func (s *Store) queryDonations(query string, args ...any) ([]types.DonationRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying donations: %w", err)
	}
	defer rows.Close()

	var donations []types.DonationRecord
	for rows.Next() {
		var d types.DonationRecord
		var amount, createdAt string
		if err := rows.Scan(&d.ID, &amount, &d.PledgeID, &d.Status, &d.TxHash, &d.OwnerTypeID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning donation: %w", err)
		}
		if d.Amount, err = types.ParseAmount(amount); err != nil {
			return nil, fmt.Errorf("donation %s: %w", d.ID, err)
		}
		if d.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("donation %s: %w", d.ID, err)
		}
		donations = append(donations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating donations: %w", err)
	}

	for i := range donations {
		if err := s.hydrateParents(&donations[i]); err != nil {
			return nil, err
		}
	}
	return donations, nil
}

// hydrateParents loads the ordered parent donation ids of one donation.
func (s *Store) hydrateParents(d *types.DonationRecord) error {
	rows, err := s.db.Query(
		"SELECT parent_id FROM donation_parents WHERE donation_id = ? ORDER BY position",
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("querying parents for %s: %w", d.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var parentID string
		if err := rows.Scan(&parentID); err != nil {
			return fmt.Errorf("scanning parent: %w", err)
		}
		d.ParentIDs = append(d.ParentIDs, parentID)
	}
	return rows.Err()
}
