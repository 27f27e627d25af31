package usecase

import (
	"context"
	stderrors "errors"

	"github.com/yajasvikhanna/Flytbase/internal/domain"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/errors"
	"github.com/yajasvikhanna/Flytbase/internal/store"
)

// RegisterDrone adds a drone to the fleet. Serial numbers are unique across
// the whole fleet, not per organization.
func (c *Coordinator) RegisterDrone(ctx context.Context, d *domain.Drone) (*domain.Drone, error) {
	if d.ID == "" {
		d.ID = newID()
	}
	if d.Status == "" {
		d.Status = domain.DroneAvailable
	}
	if !d.Status.Valid() || d.Status.Busy() {
		return nil, errors.ErrValidation("status", "drones register as available, maintenance, offline, or charging")
	}
	d.CurrentMissionID = ""

	if err := c.stores.Drones.CreateDrone(ctx, d); err != nil {
		if stderrors.Is(err, store.ErrDuplicate) {
			return nil, errors.Conflict(errors.CodeSerialExists, "a drone with this serial number already exists").
				WithParams(map[string]interface{}{"serial_number": d.SerialNumber})
		}
		return nil, err
	}

	c.publishDrone(d)
	return d, nil
}

// GetMission reads a mission, translating the store sentinel.
func (c *Coordinator) GetMission(ctx context.Context, missionID string) (*domain.Mission, error) {
	m, err := c.stores.Missions.GetMission(ctx, missionID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.ErrMissionNotFound(missionID)
		}
		return nil, err
	}
	return m, nil
}

// ListMissions reads an organization's missions, optionally filtered by status.
func (c *Coordinator) ListMissions(ctx context.Context, organizationID string, status domain.MissionStatus) ([]*domain.Mission, error) {
	if status != "" && !status.Valid() {
		return nil, errors.ErrValidation("status", "unknown mission status "+string(status))
	}
	return c.stores.Missions.ListMissions(ctx, organizationID, status)
}

// GetDrone reads a drone, translating the store sentinel.
func (c *Coordinator) GetDrone(ctx context.Context, droneID string) (*domain.Drone, error) {
	d, err := c.stores.Drones.GetDrone(ctx, droneID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.ErrDroneNotFound(droneID)
		}
		return nil, err
	}
	return d, nil
}

// ListDrones reads an organization's fleet.
func (c *Coordinator) ListDrones(ctx context.Context, organizationID string) ([]*domain.Drone, error) {
	return c.stores.Drones.ListDrones(ctx, organizationID)
}

// GetReport reads a report by id.
func (c *Coordinator) GetReport(ctx context.Context, reportID string) (*domain.Report, error) {
	r, err := c.stores.Reports.GetReport(ctx, reportID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFound(errors.CodeReportNotFound, "report not found")
		}
		return nil, err
	}
	return r, nil
}

// GetMissionReport reads the report generated for a mission.
func (c *Coordinator) GetMissionReport(ctx context.Context, missionID string) (*domain.Report, error) {
	r, err := c.stores.Reports.GetReportByMission(ctx, missionID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFound(errors.CodeReportNotFound, "report not found").
				WithParams(map[string]interface{}{"mission_id": missionID})
		}
		return nil, err
	}
	return r, nil
}

// ListReports reads an organization's reports.
func (c *Coordinator) ListReports(ctx context.Context, organizationID string) ([]*domain.Report, error) {
	return c.stores.Reports.ListReports(ctx, organizationID)
}
