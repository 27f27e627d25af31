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

// CreateMission stores a new mission document at revision 1.
func (s *Store) CreateMission(ctx context.Context, m *domain.Mission) error {
	now := time.Now().UTC()
	m.Revision = 1
	m.CreatedAt = now
	m.UpdatedAt = now

	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal mission %s: %w", m.ID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO missions (id, organization_id, status, revision, doc, created_at, updated_at)
		 VALUES ($1, $2, $3, 1, $4, $5, $5)`,
		m.ID, m.OrganizationID, string(m.Status), doc, now,
	)
	if err != nil {
		return fmt.Errorf("insert mission %s: %w", m.ID, mapError(err))
	}
	return nil
}

// GetMission loads a mission document by id.
func (s *Store) GetMission(ctx context.Context, id string) (*domain.Mission, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT doc, revision, updated_at FROM missions WHERE id = $1`, id)
	return scanMission(row)
}

// ListMissions returns an organization's missions, newest first.
func (s *Store) ListMissions(ctx context.Context, organizationID string, status domain.MissionStatus) ([]*domain.Mission, error) {
	query := `SELECT doc, revision, updated_at FROM missions
	          WHERE organization_id = $1 ORDER BY created_at DESC`
	args := []any{organizationID}
	if status != "" {
		query = `SELECT doc, revision, updated_at FROM missions
		         WHERE organization_id = $1 AND status = $2 ORDER BY created_at DESC`
		args = append(args, string(status))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list missions for %s: %w", organizationID, err)
	}
	defer rows.Close()

	var out []*domain.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateMission is a CAS write keyed on the stored revision.
func (s *Store) UpdateMission(ctx context.Context, m *domain.Mission, expectedRevision int64) (*domain.Mission, error) {
	updated := m.Clone()
	updated.Revision = expectedRevision + 1
	updated.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(updated)
	if err != nil {
		return nil, fmt.Errorf("marshal mission %s: %w", m.ID, err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE missions
		 SET doc = $1, status = $2, revision = revision + 1, updated_at = $3
		 WHERE id = $4 AND revision = $5`,
		doc, string(updated.Status), updated.UpdatedAt, m.ID, expectedRevision,
	)
	if err != nil {
		return nil, fmt.Errorf("update mission %s: %w", m.ID, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return nil, s.missionConflictOrMissing(ctx, m.ID)
	}
	return updated, nil
}

// missionConflictOrMissing disambiguates a zero-row CAS update.
func (s *Store) missionConflictOrMissing(ctx context.Context, id string) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM missions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check mission %s: %w", id, err)
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrRevisionConflict
}

// DeleteMission removes a mission document, keyed on the stored revision so
// a concurrent transition cannot be deleted out from under.
func (s *Store) DeleteMission(ctx context.Context, id string, expectedRevision int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM missions WHERE id = $1 AND revision = $2`, id, expectedRevision)
	if err != nil {
		return fmt.Errorf("delete mission %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missionConflictOrMissing(ctx, id)
	}
	return nil
}

// ApplyTransition writes the mission and optional drone in one transaction,
// both guarded by their revisions. Either both commit or neither does.
func (s *Store) ApplyTransition(ctx context.Context, mission *domain.Mission, missionRevision int64, drone *domain.Drone, droneRevision int64) (*domain.Mission, *domain.Drone, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()

	updatedM := mission.Clone()
	updatedM.Revision = missionRevision + 1
	updatedM.UpdatedAt = now
	mDoc, err := json.Marshal(updatedM)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal mission %s: %w", mission.ID, err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE missions
		 SET doc = $1, status = $2, revision = revision + 1, updated_at = $3
		 WHERE id = $4 AND revision = $5`,
		mDoc, string(updatedM.Status), now, mission.ID, missionRevision,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("update mission %s: %w", mission.ID, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return nil, nil, s.missionConflictOrMissing(ctx, mission.ID)
	}

	var updatedD *domain.Drone
	if drone != nil {
		updatedD = drone.Clone()
		updatedD.Revision = droneRevision + 1
		updatedD.UpdatedAt = now
		dDoc, err := json.Marshal(updatedD)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal drone %s: %w", drone.ID, err)
		}

		tag, err = tx.Exec(ctx,
			`UPDATE drones
			 SET doc = $1, revision = revision + 1, updated_at = $2
			 WHERE id = $3 AND revision = $4`,
			dDoc, now, drone.ID, droneRevision,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("update drone %s: %w", drone.ID, mapError(err))
		}
		if tag.RowsAffected() == 0 {
			// Rolling back leaves the mission untouched as well.
			return nil, nil, s.droneConflictOrMissing(ctx, drone.ID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit transition tx: %w", err)
	}
	return updatedM, updatedD, nil
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMission(row rowScanner) (*domain.Mission, error) {
	var (
		doc       []byte
		revision  int64
		updatedAt time.Time
	)
	if err := row.Scan(&doc, &revision, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan mission: %w", err)
	}
	var m domain.Mission
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("unmarshal mission: %w", err)
	}
	// The column, not the document payload, is authoritative.
	m.Revision = revision
	m.UpdatedAt = updatedAt
	return &m, nil
}
