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

// CreateReport stores a report document. The mission_id unique constraint
// is what makes report generation idempotent under transition retries.
func (s *Store) CreateReport(ctx context.Context, r *domain.Report) error {
	r.CreatedAt = time.Now().UTC()

	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report %s: %w", r.ID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (id, mission_id, organization_id, doc, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.MissionID, r.OrganizationID, doc, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report %s: %w", r.ID, mapError(err))
	}
	return nil
}

// GetReport loads a report document by id.
func (s *Store) GetReport(ctx context.Context, id string) (*domain.Report, error) {
	row := s.pool.QueryRow(ctx, `SELECT doc FROM reports WHERE id = $1`, id)
	return scanReport(row)
}

// GetReportByMission loads the report generated for a mission.
func (s *Store) GetReportByMission(ctx context.Context, missionID string) (*domain.Report, error) {
	row := s.pool.QueryRow(ctx, `SELECT doc FROM reports WHERE mission_id = $1`, missionID)
	return scanReport(row)
}

// ListReports returns an organization's reports, newest first.
func (s *Store) ListReports(ctx context.Context, organizationID string) ([]*domain.Report, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doc FROM reports
		 WHERE organization_id = $1 ORDER BY created_at DESC`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list reports for %s: %w", organizationID, err)
	}
	defer rows.Close()

	var out []*domain.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanReport(row rowScanner) (*domain.Report, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	var r domain.Report
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &r, nil
}
