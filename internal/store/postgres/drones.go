package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yajasvikhanna/Flytbase/internal/domain"
	"github.com/yajasvikhanna/Flytbase/internal/store"
)

// CreateDrone stores a new drone document at revision 1. The serial number
// carries a unique constraint; collisions surface as ErrDuplicate.
func (s *Store) CreateDrone(ctx context.Context, d *domain.Drone) error {
	now := time.Now().UTC()
	d.Revision = 1
	d.CreatedAt = now
	d.UpdatedAt = now

	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal drone %s: %w", d.ID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO drones (id, organization_id, serial_number, revision, doc, created_at, updated_at)
		 VALUES ($1, $2, $3, 1, $4, $5, $5)`,
		d.ID, d.OrganizationID, d.SerialNumber, doc, now,
	)
	if err != nil {
		return fmt.Errorf("insert drone %s: %w", d.ID, mapError(err))
	}
	return nil
}

// GetDrone loads a drone document by id.
func (s *Store) GetDrone(ctx context.Context, id string) (*domain.Drone, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT doc, revision, updated_at FROM drones WHERE id = $1`, id)
	return scanDrone(row)
}

// ListDrones returns an organization's drones, newest first.
func (s *Store) ListDrones(ctx context.Context, organizationID string) ([]*domain.Drone, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doc, revision, updated_at FROM drones
		 WHERE organization_id = $1 ORDER BY created_at DESC`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list drones for %s: %w", organizationID, err)
	}
	defer rows.Close()

	var out []*domain.Drone
	for rows.Next() {
		d, err := scanDrone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDrone is a CAS write keyed on the stored revision.
func (s *Store) UpdateDrone(ctx context.Context, d *domain.Drone, expectedRevision int64) (*domain.Drone, error) {
	updated := d.Clone()
	updated.Revision = expectedRevision + 1
	updated.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(updated)
	if err != nil {
		return nil, fmt.Errorf("marshal drone %s: %w", d.ID, err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE drones
		 SET doc = $1, revision = revision + 1, updated_at = $2
		 WHERE id = $3 AND revision = $4`,
		doc, updated.UpdatedAt, d.ID, expectedRevision,
	)
	if err != nil {
		return nil, fmt.Errorf("update drone %s: %w", d.ID, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return nil, s.droneConflictOrMissing(ctx, d.ID)
	}
	return updated, nil
}

// droneConflictOrMissing disambiguates a zero-row CAS update.
func (s *Store) droneConflictOrMissing(ctx context.Context, id string) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM drones WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check drone %s: %w", id, err)
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrRevisionConflict
}

func scanDrone(row rowScanner) (*domain.Drone, error) {
	var (
		doc       []byte
		revision  int64
		updatedAt time.Time
	)
	if err := row.Scan(&doc, &revision, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan drone: %w", err)
	}
	var d domain.Drone
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("unmarshal drone: %w", err)
	}
	d.Revision = revision
	d.UpdatedAt = updatedAt
	return &d, nil
}
