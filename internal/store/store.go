// Package store defines persistence interfaces for missions, drones, and
// reports, with optimistic concurrency on a per-document revision.
//
// The backing store is assumed to provide per-document atomic
// read-modify-write and unique-key constraints; both implementations
// (memory, postgres) honor the same contract:
//
//   - Update* methods are compare-and-swap: they commit only when the stored
//     revision equals the caller's expected revision, and bump the revision
//     by one on success. A mismatch returns ErrRevisionConflict and leaves
//     the document untouched.
//   - ApplyTransition commits a mission update and an optional drone update
//     as one atomic unit keyed on the mission's revision; partial commits
//     never happen.
//   - Reads hand out deep copies, never aliases of stored state.
//
// Import Path: github.com/yajasvikhanna/Flytbase/internal/store
package store

import (
	"context"
	"errors"

	"github.com/yajasvikhanna/Flytbase/internal/domain"
)

// Sentinel errors shared by every implementation.
var (
	ErrNotFound         = errors.New("store: document not found")
	ErrRevisionConflict = errors.New("store: revision conflict")
	ErrDuplicate        = errors.New("store: unique constraint violation")
)

// MissionStore persists missions.
type MissionStore interface {
	CreateMission(ctx context.Context, m *domain.Mission) error
	GetMission(ctx context.Context, id string) (*domain.Mission, error)
	// ListMissions returns an organization's missions, newest first.
	// An empty status matches all statuses.
	ListMissions(ctx context.Context, organizationID string, status domain.MissionStatus) ([]*domain.Mission, error)
	// UpdateMission is a CAS write; the returned mission carries the new revision.
	UpdateMission(ctx context.Context, m *domain.Mission, expectedRevision int64) (*domain.Mission, error)
	// DeleteMission is a CAS delete keyed on the stored revision.
	DeleteMission(ctx context.Context, id string, expectedRevision int64) error
}

// DroneStore persists drones. Serial numbers are globally unique.
type DroneStore interface {
	CreateDrone(ctx context.Context, d *domain.Drone) error
	GetDrone(ctx context.Context, id string) (*domain.Drone, error)
	ListDrones(ctx context.Context, organizationID string) ([]*domain.Drone, error)
	// UpdateDrone is a CAS write; the returned drone carries the new revision.
	UpdateDrone(ctx context.Context, d *domain.Drone, expectedRevision int64) (*domain.Drone, error)
}

// ReportStore persists reports. Reports are unique per mission and immutable.
type ReportStore interface {
	// CreateReport returns ErrDuplicate when the mission already has a report.
	CreateReport(ctx context.Context, r *domain.Report) error
	GetReport(ctx context.Context, id string) (*domain.Report, error)
	GetReportByMission(ctx context.Context, missionID string) (*domain.Report, error)
	ListReports(ctx context.Context, organizationID string) ([]*domain.Report, error)
}

// TransitionStore commits the Mission+Drone pair as one atomic unit.
type TransitionStore interface {
	// ApplyTransition writes the mission (CAS on missionRevision) and, when
	// drone is non-nil, the drone (CAS on droneRevision) together. Either
	// both commit or neither does. Returns the stored documents with their
	// new revisions.
	ApplyTransition(ctx context.Context, mission *domain.Mission, missionRevision int64, drone *domain.Drone, droneRevision int64) (*domain.Mission, *domain.Drone, error)
}

// Stores bundles every store interface behind one handle.
type Stores struct {
	Missions    MissionStore
	Drones      DroneStore
	Reports     ReportStore
	Transitions TransitionStore
}
