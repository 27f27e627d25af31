// Package service holds the domain services that sit between the coordinator
// and the stores: report generation and telemetry validation.
//
// Import Path: github.com/yajasvikhanna/Flytbase/internal/service
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yajasvikhanna/Flytbase/internal/domain"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/logger"
	"github.com/yajasvikhanna/Flytbase/internal/store"
)

// ReportGenerator produces the one-per-mission survey report when a mission
// reaches a terminal state.
type ReportGenerator struct {
	reports store.ReportStore
}

// NewReportGenerator creates a ReportGenerator backed by the given store.
func NewReportGenerator(reports store.ReportStore) *ReportGenerator {
	return &ReportGenerator{reports: reports}
}

// Generate builds and persists the report for a mission that has just
// reached a terminal status. It is idempotent: if a report already exists
// for the mission (a retried transition, a crashed-and-replayed coordinator),
// the existing report is returned unchanged.
func (g *ReportGenerator) Generate(ctx context.Context, m *domain.Mission) (*domain.Report, error) {
	if !m.Status.Terminal() {
		return nil, fmt.Errorf("mission %s is in non-terminal status %q", m.ID, m.Status)
	}

	report := g.build(m)
	if err := g.reports.CreateReport(ctx, report); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			existing, getErr := g.reports.GetReportByMission(ctx, m.ID)
			if getErr != nil {
				return nil, fmt.Errorf("load existing report for mission %s: %w", m.ID, getErr)
			}
			logger.Debug("report already exists, returning existing",
				zap.String("mission_id", m.ID),
				zap.String("report_id", existing.ID))
			return existing, nil
		}
		return nil, fmt.Errorf("create report for mission %s: %w", m.ID, err)
	}

	logger.Info("mission report generated",
		zap.String("mission_id", m.ID),
		zap.String("report_id", report.ID),
		zap.String("status", string(m.Status)),
		zap.Float64("duration_minutes", report.DurationMinutes))
	return report, nil
}

// build freezes the mission into a report snapshot.
func (g *ReportGenerator) build(m *domain.Mission) *domain.Report {
	r := &domain.Report{
		ID:             newReportID(),
		MissionID:      m.ID,
		OrganizationID: m.OrganizationID,
		MissionName:    m.Name,
		DroneID:        m.DroneID,
		MissionType:    m.MissionType,
		Status:         m.Status,
		StartTime:      m.ActualStart,
		EndTime:        m.ActualEnd,
		SurveyAreaName: m.SurveyAreaName,
		CoverageArea:   m.SurveyArea,
		Waypoints:      append([]domain.Waypoint(nil), m.Waypoints...),
		EventLog:       append([]domain.LogEntry(nil), m.EventLog...),
		Summary:        summarize(m),
	}
	if m.ActualStart != nil && m.ActualEnd != nil {
		r.DurationMinutes = m.ActualEnd.Sub(*m.ActualStart).Minutes()
	}
	return r
}

func summarize(m *domain.Mission) string {
	switch m.Status {
	case domain.MissionCompleted:
		return fmt.Sprintf("Mission %q completed at %d%% coverage over %d waypoints.",
			m.Name, m.Progress, len(m.Waypoints))
	case domain.MissionAborted:
		if m.AbortReason != "" {
			return fmt.Sprintf("Mission %q aborted at %d%% progress: %s.",
				m.Name, m.Progress, m.AbortReason)
		}
		return fmt.Sprintf("Mission %q aborted at %d%% progress.", m.Name, m.Progress)
	case domain.MissionFailed:
		return fmt.Sprintf("Mission %q failed at %d%% progress.", m.Name, m.Progress)
	}
	return fmt.Sprintf("Mission %q ended with status %s.", m.Name, m.Status)
}

func newReportID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
