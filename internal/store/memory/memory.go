// Package memory provides the in-process document store. It backs tests and
// single-node deployments; the revision CAS contract matches the postgres
// implementation exactly.
//
// Import Path: github.com/yajasvikhanna/Flytbase/internal/store/memory
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yajasvikhanna/Flytbase/internal/domain"
	"github.com/yajasvikhanna/Flytbase/internal/store"
)

// Store is an in-memory implementation of every store interface.
// One mutex guards all collections, which is what makes ApplyTransition's
// joint commit trivially atomic.
type Store struct {
	mu sync.RWMutex

	missions map[string]*domain.Mission
	drones   map[string]*domain.Drone
	reports  map[string]*domain.Report

	droneBySerial   map[string]string // serial number → drone id
	reportByMission map[string]string // mission id → report id
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		missions:        make(map[string]*domain.Mission),
		drones:          make(map[string]*domain.Drone),
		reports:         make(map[string]*domain.Report),
		droneBySerial:   make(map[string]string),
		reportByMission: make(map[string]string),
	}
}

// Stores returns the store bundled behind the interface handle.
func (s *Store) Stores() store.Stores {
	return store.Stores{
		Missions:    s,
		Drones:      s,
		Reports:     s,
		Transitions: s,
	}
}

// CreateMission stores a new mission at revision 1.
func (s *Store) CreateMission(_ context.Context, m *domain.Mission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.missions[m.ID]; ok {
		return store.ErrDuplicate
	}
	now := time.Now().UTC()
	c := m.Clone()
	c.Revision = 1
	c.CreatedAt = now
	c.UpdatedAt = now
	s.missions[m.ID] = c

	m.Revision = c.Revision
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
	return nil
}

// GetMission returns a copy of the mission.
func (s *Store) GetMission(_ context.Context, id string) (*domain.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.missions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m.Clone(), nil
}

// ListMissions returns an organization's missions, newest first.
func (s *Store) ListMissions(_ context.Context, organizationID string, status domain.MissionStatus) ([]*domain.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Mission
	for _, m := range s.missions {
		if m.OrganizationID != organizationID {
			continue
		}
		if status != "" && m.Status != status {
			continue
		}
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateMission is a CAS write keyed on the stored revision.
func (s *Store) UpdateMission(_ context.Context, m *domain.Mission, expectedRevision int64) (*domain.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateMissionLocked(m, expectedRevision)
}

func (s *Store) updateMissionLocked(m *domain.Mission, expectedRevision int64) (*domain.Mission, error) {
	cur, ok := s.missions[m.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if cur.Revision != expectedRevision {
		return nil, store.ErrRevisionConflict
	}
	c := m.Clone()
	c.Revision = expectedRevision + 1
	c.CreatedAt = cur.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	s.missions[m.ID] = c
	return c.Clone(), nil
}

// DeleteMission removes a mission document, keyed on the stored revision.
func (s *Store) DeleteMission(_ context.Context, id string, expectedRevision int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.missions[id]
	if !ok {
		return store.ErrNotFound
	}
	if cur.Revision != expectedRevision {
		return store.ErrRevisionConflict
	}
	delete(s.missions, id)
	return nil
}

// CreateDrone stores a new drone at revision 1, enforcing serial uniqueness.
func (s *Store) CreateDrone(_ context.Context, d *domain.Drone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drones[d.ID]; ok {
		return store.ErrDuplicate
	}
	if _, ok := s.droneBySerial[d.SerialNumber]; ok {
		return store.ErrDuplicate
	}
	now := time.Now().UTC()
	c := d.Clone()
	c.Revision = 1
	c.CreatedAt = now
	c.UpdatedAt = now
	s.drones[d.ID] = c
	s.droneBySerial[d.SerialNumber] = d.ID

	d.Revision = c.Revision
	d.CreatedAt = c.CreatedAt
	d.UpdatedAt = c.UpdatedAt
	return nil
}

// GetDrone returns a copy of the drone.
func (s *Store) GetDrone(_ context.Context, id string) (*domain.Drone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.drones[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return d.Clone(), nil
}

// ListDrones returns an organization's drones, newest first.
func (s *Store) ListDrones(_ context.Context, organizationID string) ([]*domain.Drone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Drone
	for _, d := range s.drones {
		if d.OrganizationID == organizationID {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateDrone is a CAS write keyed on the stored revision.
func (s *Store) UpdateDrone(_ context.Context, d *domain.Drone, expectedRevision int64) (*domain.Drone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateDroneLocked(d, expectedRevision)
}

func (s *Store) updateDroneLocked(d *domain.Drone, expectedRevision int64) (*domain.Drone, error) {
	cur, ok := s.drones[d.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if cur.Revision != expectedRevision {
		return nil, store.ErrRevisionConflict
	}
	c := d.Clone()
	c.Revision = expectedRevision + 1
	c.CreatedAt = cur.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	s.drones[d.ID] = c
	return c.Clone(), nil
}

// ApplyTransition commits the mission and optional drone writes together.
// Revisions of both documents are checked before either is touched.
func (s *Store) ApplyTransition(_ context.Context, mission *domain.Mission, missionRevision int64, drone *domain.Drone, droneRevision int64) (*domain.Mission, *domain.Drone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	curM, ok := s.missions[mission.ID]
	if !ok {
		return nil, nil, store.ErrNotFound
	}
	if curM.Revision != missionRevision {
		return nil, nil, store.ErrRevisionConflict
	}
	if drone != nil {
		curD, ok := s.drones[drone.ID]
		if !ok {
			return nil, nil, store.ErrNotFound
		}
		if curD.Revision != droneRevision {
			return nil, nil, store.ErrRevisionConflict
		}
	}

	updatedM, err := s.updateMissionLocked(mission, missionRevision)
	if err != nil {
		return nil, nil, err
	}
	var updatedD *domain.Drone
	if drone != nil {
		updatedD, err = s.updateDroneLocked(drone, droneRevision)
		if err != nil {
			// Unreachable: both revisions were checked under this lock.
			return nil, nil, err
		}
	}
	return updatedM, updatedD, nil
}

// CreateReport stores a report, enforcing one report per mission.
func (s *Store) CreateReport(_ context.Context, r *domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[r.ID]; ok {
		return store.ErrDuplicate
	}
	if _, ok := s.reportByMission[r.MissionID]; ok {
		return store.ErrDuplicate
	}
	c := r.Clone()
	c.CreatedAt = time.Now().UTC()
	s.reports[r.ID] = c
	s.reportByMission[r.MissionID] = r.ID

	r.CreatedAt = c.CreatedAt
	return nil
}

// GetReport returns a copy of the report.
func (s *Store) GetReport(_ context.Context, id string) (*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r.Clone(), nil
}

// GetReportByMission returns the report generated for a mission.
func (s *Store) GetReportByMission(_ context.Context, missionID string) (*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.reportByMission[missionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.reports[id].Clone(), nil
}

// ListReports returns an organization's reports, newest first.
func (s *Store) ListReports(_ context.Context, organizationID string) ([]*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Report
	for _, r := range s.reports {
		if r.OrganizationID == organizationID {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
