// This file implements entity (milestone/campaign) access: listing entities
// that declare a project id, inserting entities for seeding, and applying
// staged donation-counter patches.
package sqlite

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/pledgewatch/pkg/types"
)

// InsertEntity stores an entity with its donation counters. When ID is
// empty a UUID v7 is generated. Returns the entity id.
func (s *Store) InsertEntity(entity *types.Entity) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return "", err
	}

	if entity.Kind != types.KindMilestone && entity.Kind != types.KindCampaign {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidKind, entity.Kind)
	}
	if entity.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("generating UUID v7: %w", err)
		}
		entity.ID = id.String()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO entities (entity_id, kind, title, project_id, created_at) VALUES (?, ?, ?, ?, ?)",
		entity.ID, entity.Kind, entity.Title, nullableProject(entity.ProjectID),
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("inserting entity: %w", err)
	}

	for _, counter := range entity.Counters {
		_, err = tx.Exec(
			"INSERT INTO donation_counters (entity_id, symbol, current_balance) VALUES (?, ?, ?)",
			entity.ID, counter.Symbol, counter.CurrentBalance.String(),
		)
		if err != nil {
			return "", fmt.Errorf("inserting counter %s: %w", counter.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing entity: %w", err)
	}
	return entity.ID, nil
}

// EntitiesWithProject returns all entities of the given kind that declare a
// project id, with their donation counters hydrated. Entities without a
// project id never take part in reconciliation.
func (s *Store) EntitiesWithProject(kind string) ([]types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		"SELECT entity_id, kind, title, project_id FROM entities WHERE kind = ? AND project_id IS NOT NULL ORDER BY created_at",
		kind,
	)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []types.Entity
	for rows.Next() {
		var e types.Entity
		if err := rows.Scan(&e.ID, &e.Kind, &e.Title, &e.ProjectID); err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}

	for i := range entities {
		if err := s.hydrateCounters(&entities[i]); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

// hydrateCounters loads the donation counters of one entity.
func (s *Store) hydrateCounters(entity *types.Entity) error {
	rows, err := s.db.Query(
		"SELECT symbol, current_balance FROM donation_counters WHERE entity_id = ? ORDER BY symbol",
		entity.ID,
	)
	if err != nil {
		return fmt.Errorf("querying counters for %s: %w", entity.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var symbol, balance string
		if err := rows.Scan(&symbol, &balance); err != nil {
			return fmt.Errorf("scanning counter: %w", err)
		}
		amount, err := types.ParseAmount(balance)
		if err != nil {
			return fmt.Errorf("counter %s of entity %s: %w", symbol, entity.ID, err)
		}
		entity.Counters = append(entity.Counters, types.DonationCounter{
			Symbol:         symbol,
			CurrentBalance: amount,
		})
	}
	return rows.Err()
}

// UpdateCounters applies staged counter patches to one entity in a single
// transaction. Patches for symbols without a stored counter row are
// rejected with ErrNotFound.
func (s *Store) UpdateCounters(entityID string, patches []types.DonationCounter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	if entityID == "" {
		return types.ErrInvalidID
	}
	if len(patches) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, patch := range patches {
		res, err := tx.Exec(
			"UPDATE donation_counters SET current_balance = ? WHERE entity_id = ? AND symbol = ?",
			patch.CurrentBalance.String(), entityID, patch.Symbol,
		)
		if err != nil {
			return fmt.Errorf("updating counter %s: %w", patch.Symbol, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("updating counter %s: %w", patch.Symbol, err)
		}
		if affected == 0 {
			return fmt.Errorf("counter %s of entity %s: %w", patch.Symbol, entityID, types.ErrNotFound)
		}
	}

	return tx.Commit()
}

// nullableProject converts the project id to a NULL-able column value;
// id 0 is the "none" sentinel and stored as NULL.
func nullableProject(id int) any {
	if id == types.NoAdmin {
		return nil
	}
	return id
}
