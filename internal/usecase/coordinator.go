// Package usecase contains the coordinator: the single write path for the
// Mission+Drone pair.
//
// All cross-entity updates flow through RequestTransition's compare-and-swap
// loop; nothing else in the codebase mutates a mission's status or a drone's
// assignment.
//
// Import Path: github.com/yajasvikhanna/Flytbase/internal/usecase
package usecase

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yajasvikhanna/Flytbase/internal/domain"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/errors"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/logger"
	"github.com/yajasvikhanna/Flytbase/internal/service"
	"github.com/yajasvikhanna/Flytbase/internal/store"
)

// Publisher delivers an event to every subscriber of a topic. Publishing is
// best-effort; implementations must never block on slow consumers.
type Publisher interface {
	Publish(topic domain.Topic, name domain.EventName, payload interface{})
}

// TransitionPayload carries the transition-specific fields of a
// RequestTransition call.
type TransitionPayload struct {
	Progress        *int             `json:"progress,omitempty"`
	CurrentWaypoint *int             `json:"current_waypoint,omitempty"`
	Position        *domain.Position `json:"position,omitempty"`
	Reason          string           `json:"reason,omitempty"`
}

// ProgressUpdate carries a telemetry-driven progress report for a mission.
type ProgressUpdate struct {
	Progress        int              `json:"progress"`
	CurrentWaypoint *int             `json:"current_waypoint,omitempty"`
	Position        *domain.Position `json:"position,omitempty"`
}

// TelemetryUpdate carries a drone's self-reported state.
type TelemetryUpdate struct {
	Status       *domain.DroneStatus `json:"status,omitempty"`
	BatteryLevel *int                `json:"battery_level,omitempty"`
	Position     *domain.Position    `json:"position,omitempty"`
}

// Coordinator owns every Mission and Drone mutation. It serializes nothing;
// instead each write is a compare-and-swap against the store, retried a
// bounded number of times before surfacing ConcurrentModification.
type Coordinator struct {
	stores     store.Stores
	reports    *service.ReportGenerator
	publisher  Publisher
	maxRetries int
}

// NewCoordinator wires the coordinator. maxRetries bounds the CAS loop;
// values below 1 are clamped to 1.
func NewCoordinator(stores store.Stores, reports *service.ReportGenerator, publisher Publisher, maxRetries int) *Coordinator {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Coordinator{
		stores:     stores,
		reports:    reports,
		publisher:  publisher,
		maxRetries: maxRetries,
	}
}

// CreateMission persists a new planned mission. When the mission names a
// drone, the drone is reserved (status assigned, back-reference set) before
// the call returns; an unavailable drone fails the whole creation.
func (c *Coordinator) CreateMission(ctx context.Context, m *domain.Mission) (*domain.Mission, error) {
	if m.ID == "" {
		m.ID = newID()
	}
	m.Status = domain.MissionPlanned
	m.Progress = 0
	m.CurrentWaypoint = 0
	if m.MissionType == "" {
		m.MissionType = domain.TypeCustom
	}
	if m.FlightPattern == "" {
		m.FlightPattern = domain.PatternGrid
	}
	m.AppendLog("mission:created", "")

	if m.DroneID == "" {
		if err := c.stores.Missions.CreateMission(ctx, m); err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationFailed, "could not create mission", 400)
		}
		return m, nil
	}

	// Reserve the drone first so an unavailable drone never leaves a
	// half-created mission behind.
	drone, err := c.reserveDrone(ctx, m.DroneID, m.ID, m.OrganizationID)
	if err != nil {
		return nil, err
	}

	if err := c.stores.Missions.CreateMission(ctx, m); err != nil {
		c.releaseDrone(ctx, m.DroneID, m.ID)
		return nil, errors.Wrap(err, errors.CodeValidationFailed, "could not create mission", 400)
	}

	c.publishDrone(drone)
	return m, nil
}

// reserveDrone CAS-flips an available drone to assigned.
func (c *Coordinator) reserveDrone(ctx context.Context, droneID, missionID, organizationID string) (*domain.Drone, error) {
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		d, err := c.stores.Drones.GetDrone(ctx, droneID)
		if err != nil {
			if stderrors.Is(err, store.ErrNotFound) {
				return nil, errors.ErrDroneNotFound(droneID)
			}
			return nil, err
		}
		if d.OrganizationID != organizationID {
			return nil, errors.ErrDroneNotFound(droneID)
		}
		if d.Status != domain.DroneAvailable {
			return nil, errors.ErrDroneUnavailable(droneID, string(d.Status))
		}

		d.Status = domain.DroneAssigned
		d.CurrentMissionID = missionID
		updated, err := c.stores.Drones.UpdateDrone(ctx, d, d.Revision)
		if err == nil {
			return updated, nil
		}
		if !stderrors.Is(err, store.ErrRevisionConflict) {
			return nil, err
		}
	}
	return nil, errors.ErrConcurrentModification(missionID)
}

// releaseDrone best-effort undoes a reservation after a failed creation.
func (c *Coordinator) releaseDrone(ctx context.Context, droneID, missionID string) {
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		d, err := c.stores.Drones.GetDrone(ctx, droneID)
		if err != nil || d.CurrentMissionID != missionID {
			return
		}
		d.Status = domain.DroneAvailable
		d.CurrentMissionID = ""
		if _, err := c.stores.Drones.UpdateDrone(ctx, d, d.Revision); err == nil {
			return
		} else if !stderrors.Is(err, store.ErrRevisionConflict) {
			return
		}
	}
	logger.Warn("failed to release drone after mission creation failure",
		zap.String("drone_id", droneID), zap.String("mission_id", missionID))
}

// RequestTransition moves a mission to targetStatus, applying any drone-side
// effect atomically with it. On success it emits the status event and, for
// terminal transitions, generates the report before returning.
func (c *Coordinator) RequestTransition(ctx context.Context, missionID string, targetStatus domain.MissionStatus, payload TransitionPayload) (*domain.Mission, *domain.Drone, error) {
	if !targetStatus.Valid() {
		return nil, nil, errors.ErrValidation("status", "unknown target status "+string(targetStatus))
	}

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		m, err := c.stores.Missions.GetMission(ctx, missionID)
		if err != nil {
			if stderrors.Is(err, store.ErrNotFound) {
				return nil, nil, errors.ErrMissionNotFound(missionID)
			}
			return nil, nil, err
		}
		if !domain.CanTransition(m.Status, targetStatus) {
			return nil, nil, errors.ErrInvalidTransition(string(m.Status), string(targetStatus))
		}

		staged, err := c.stageMission(m, targetStatus, payload)
		if err != nil {
			return nil, nil, err
		}

		drone, droneRev, err := c.stageDrone(ctx, staged, targetStatus)
		if err != nil {
			return nil, nil, err
		}

		updatedM, updatedD, err := c.stores.Transitions.ApplyTransition(ctx, staged, m.Revision, drone, droneRev)
		if err != nil {
			if stderrors.Is(err, store.ErrRevisionConflict) {
				logger.Debug("transition lost compare-and-swap race, retrying",
					zap.String("mission_id", missionID),
					zap.String("target", string(targetStatus)),
					zap.Int("attempt", attempt+1))
				continue
			}
			if stderrors.Is(err, store.ErrNotFound) {
				return nil, nil, errors.ErrMissionNotFound(missionID)
			}
			return nil, nil, err
		}

		if targetStatus.Terminal() {
			// Idempotent; runs before the caller sees the result so the
			// report exists by the time the terminal status is observable.
			if _, err := c.reports.Generate(ctx, updatedM); err != nil {
				logger.Error("report generation failed",
					zap.String("mission_id", updatedM.ID), zap.Error(err))
			}
		}

		c.publishMission(updatedM, transitionMessage(targetStatus, payload.Reason))
		if updatedD != nil {
			c.publishDrone(updatedD)
		}

		logger.Info("mission transition applied",
			zap.String("mission_id", updatedM.ID),
			zap.String("status", string(updatedM.Status)),
			zap.Int64("revision", updatedM.Revision))
		return updatedM, updatedD, nil
	}
	return nil, nil, errors.ErrConcurrentModification(missionID)
}

// stageMission applies the target status and payload to a copy of the
// mission. It never touches the store.
func (c *Coordinator) stageMission(m *domain.Mission, target domain.MissionStatus, payload TransitionPayload) (*domain.Mission, error) {
	staged := m.Clone()

	if payload.Progress != nil {
		if *payload.Progress < 0 || *payload.Progress > 100 {
			return nil, errors.ErrValidation("progress", "progress must be between 0 and 100")
		}
		staged.Progress = *payload.Progress
	}
	if payload.CurrentWaypoint != nil {
		if *payload.CurrentWaypoint < 0 {
			return nil, errors.ErrValidation("current_waypoint", "waypoint index must not be negative")
		}
		staged.CurrentWaypoint = *payload.CurrentWaypoint
	}

	now := time.Now().UTC()
	switch target {
	case domain.MissionInProgress:
		if staged.ActualStart == nil {
			staged.ActualStart = &now
			staged.AppendLog("mission:started", "")
		} else {
			staged.AppendLog("mission:resumed", "")
		}
	case domain.MissionPaused:
		staged.AppendLog("mission:paused", payload.Reason)
	case domain.MissionCompleted:
		staged.ActualEnd = &now
		staged.Progress = 100
		staged.AppendLog("mission:completed", "")
	case domain.MissionAborted:
		staged.ActualEnd = &now
		staged.AbortReason = payload.Reason
		staged.AppendLog("mission:aborted", payload.Reason)
	case domain.MissionFailed:
		staged.ActualEnd = &now
		staged.AppendLog("mission:failed", payload.Reason)
	case domain.MissionScheduled, domain.MissionQueued:
		staged.AppendLog("mission:"+string(target), "")
	}
	staged.Status = target
	return staged, nil
}

// stageDrone derives the drone-side effect of a transition, if any. Returns
// (nil, 0, nil) when the mission has no drone or the transition leaves the
// drone untouched.
func (c *Coordinator) stageDrone(ctx context.Context, m *domain.Mission, target domain.MissionStatus) (*domain.Drone, int64, error) {
	if m.DroneID == "" {
		if target == domain.MissionInProgress {
			// A mission cannot fly without a vehicle.
			return nil, 0, errors.Conflict(errors.CodeDroneUnavailable, "mission has no assigned drone").
				WithParams(map[string]interface{}{"mission_id": m.ID})
		}
		return nil, 0, nil
	}

	d, err := c.stores.Drones.GetDrone(ctx, m.DroneID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, 0, errors.ErrDroneNotFound(m.DroneID)
		}
		return nil, 0, err
	}
	rev := d.Revision

	switch target {
	case domain.MissionInProgress:
		if d.CurrentMissionID != "" && d.CurrentMissionID != m.ID {
			return nil, 0, errors.ErrDroneUnavailable(d.ID, string(d.Status))
		}
		switch d.Status {
		case domain.DroneAvailable, domain.DroneAssigned, domain.DroneInMission:
		default:
			return nil, 0, errors.ErrDroneUnavailable(d.ID, string(d.Status))
		}
		if d.Status == domain.DroneInMission && d.CurrentMissionID == m.ID {
			// Resume: drone is already flying this mission.
			return nil, 0, nil
		}
		d.Status = domain.DroneInMission
		d.CurrentMissionID = m.ID
		return d, rev, nil

	case domain.MissionCompleted, domain.MissionAborted, domain.MissionFailed:
		if d.CurrentMissionID != m.ID {
			// Already released (or never held); nothing to undo.
			return nil, 0, nil
		}
		d.Status = domain.DroneAvailable
		d.CurrentMissionID = ""
		return d, rev, nil
	}

	// pause, scheduled, queued: no drone-side effect.
	return nil, 0, nil
}

// UpdateProgress applies a telemetry-driven progress report. Only in-progress
// missions accept progress; progress never decreases.
func (c *Coordinator) UpdateProgress(ctx context.Context, missionID string, update ProgressUpdate) (*domain.Mission, error) {
	if update.Progress < 0 || update.Progress > 100 {
		return nil, errors.ErrValidation("progress", "progress must be between 0 and 100")
	}

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		m, err := c.stores.Missions.GetMission(ctx, missionID)
		if err != nil {
			if stderrors.Is(err, store.ErrNotFound) {
				return nil, errors.ErrMissionNotFound(missionID)
			}
			return nil, err
		}
		if m.Status != domain.MissionInProgress {
			return nil, errors.ErrInvalidTransition(string(m.Status), string(domain.MissionInProgress))
		}
		if update.Progress < m.Progress {
			return nil, errors.ErrValidation("progress", "progress must not decrease")
		}

		staged := m.Clone()
		staged.Progress = update.Progress
		if update.CurrentWaypoint != nil {
			staged.CurrentWaypoint = *update.CurrentWaypoint
		}

		updated, err := c.stores.Missions.UpdateMission(ctx, staged, m.Revision)
		if err != nil {
			if stderrors.Is(err, store.ErrRevisionConflict) {
				continue
			}
			if stderrors.Is(err, store.ErrNotFound) {
				return nil, errors.ErrMissionNotFound(missionID)
			}
			return nil, err
		}

		if update.Position != nil && m.DroneID != "" {
			c.recordDronePosition(ctx, m.DroneID, update.Position)
		}
		c.publishMission(updated, "")
		return updated, nil
	}
	return nil, errors.ErrConcurrentModification(missionID)
}

// recordDronePosition best-effort updates the drone's last known position
// from a mission progress report. Loss under contention is acceptable;
// telemetry overwrites itself.
func (c *Coordinator) recordDronePosition(ctx context.Context, droneID string, pos *domain.Position) {
	d, err := c.stores.Drones.GetDrone(ctx, droneID)
	if err != nil {
		return
	}
	d.LastKnownPosition = pos.Clone()
	if _, err := c.stores.Drones.UpdateDrone(ctx, d, d.Revision); err != nil {
		logger.Debug("drone position update lost", zap.String("drone_id", droneID), zap.Error(err))
	}
}

// UpdateDroneTelemetry applies a drone's self-reported state. Busy statuses
// (assigned, in-mission) are owned by the coordinator's transition path and
// cannot be set through telemetry, and a drone flying a mission cannot
// report itself maintenance or offline.
func (c *Coordinator) UpdateDroneTelemetry(ctx context.Context, droneID string, update TelemetryUpdate) (*domain.Drone, error) {
	if update.BatteryLevel != nil && (*update.BatteryLevel < 0 || *update.BatteryLevel > 100) {
		return nil, errors.ErrValidation("battery_level", "battery level must be between 0 and 100")
	}
	if update.Status != nil {
		if !update.Status.Valid() {
			return nil, errors.ErrValidation("status", "unknown drone status "+string(*update.Status))
		}
		if update.Status.Busy() {
			return nil, errors.ErrValidation("status", "assignment statuses are set by mission transitions")
		}
	}

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		d, err := c.stores.Drones.GetDrone(ctx, droneID)
		if err != nil {
			if stderrors.Is(err, store.ErrNotFound) {
				return nil, errors.ErrDroneNotFound(droneID)
			}
			return nil, err
		}
		if update.Status != nil && d.CurrentMissionID != "" {
			return nil, errors.ErrDroneUnavailable(droneID, string(d.Status))
		}

		staged := d.Clone()
		if update.Status != nil {
			staged.Status = *update.Status
		}
		if update.BatteryLevel != nil {
			staged.BatteryLevel = *update.BatteryLevel
		}
		if update.Position != nil {
			staged.LastKnownPosition = update.Position.Clone()
		}

		updated, err := c.stores.Drones.UpdateDrone(ctx, staged, d.Revision)
		if err != nil {
			if stderrors.Is(err, store.ErrRevisionConflict) {
				continue
			}
			if stderrors.Is(err, store.ErrNotFound) {
				return nil, errors.ErrDroneNotFound(droneID)
			}
			return nil, err
		}

		c.publishDrone(updated)
		return updated, nil
	}
	return nil, errors.ErrConcurrentModification(droneID)
}

// Snapshot returns the current status snapshot for a mission, as delivered
// to a freshly subscribed observer.
func (c *Coordinator) Snapshot(ctx context.Context, missionID string) (domain.MissionStatusEvent, error) {
	m, err := c.stores.Missions.GetMission(ctx, missionID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return domain.MissionStatusEvent{}, errors.ErrMissionNotFound(missionID)
		}
		return domain.MissionStatusEvent{}, err
	}
	return domain.NewMissionStatusEvent(m, ""), nil
}

// DeleteMission removes a mission that is not currently flying. The delete
// is keyed on the revision the guard was checked against, so a transition
// committing in between makes the delete lose the race and re-check instead
// of removing a flying mission. An assigned drone is released back to
// available.
func (c *Coordinator) DeleteMission(ctx context.Context, missionID string) error {
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		m, err := c.stores.Missions.GetMission(ctx, missionID)
		if err != nil {
			if stderrors.Is(err, store.ErrNotFound) {
				return errors.ErrMissionNotFound(missionID)
			}
			return err
		}
		if m.Status == domain.MissionInProgress || m.Status == domain.MissionPaused {
			return errors.Conflict(errors.CodeMissionInProgress, "mission is in progress and cannot be deleted").
				WithParams(map[string]interface{}{"mission_id": missionID})
		}

		if err := c.stores.Missions.DeleteMission(ctx, missionID, m.Revision); err != nil {
			if stderrors.Is(err, store.ErrRevisionConflict) {
				continue
			}
			if stderrors.Is(err, store.ErrNotFound) {
				return errors.ErrMissionNotFound(missionID)
			}
			return err
		}
		if m.DroneID != "" {
			c.releaseDrone(ctx, m.DroneID, m.ID)
		}
		return nil
	}
	return errors.ErrConcurrentModification(missionID)
}

// publishMission fans the status snapshot out to the mission topic and the
// organization topic. Publishes run inline on the write path so a topic's
// events leave in commit order; the publisher never blocks on slow
// consumers, so the transition still cannot stall on delivery.
func (c *Coordinator) publishMission(m *domain.Mission, message string) {
	if c.publisher == nil {
		return
	}
	event := domain.NewMissionStatusEvent(m, message)
	c.publisher.Publish(domain.MissionTopic(m.ID), domain.EventMissionStatus, event)
	c.publisher.Publish(domain.OrgTopic(m.OrganizationID), domain.EventMissionStatus, event)
}

// publishDrone fans the telemetry snapshot out to the organization topic and
// the drone's site topic, if it has one.
func (c *Coordinator) publishDrone(d *domain.Drone) {
	if c.publisher == nil {
		return
	}
	event := domain.NewDroneUpdateEvent(d)
	c.publisher.Publish(domain.OrgTopic(d.OrganizationID), domain.EventDroneUpdate, event)
	if d.Site != "" {
		c.publisher.Publish(domain.SiteTopic(d.Site), domain.EventDroneUpdate, event)
	}
}

func transitionMessage(target domain.MissionStatus, reason string) string {
	if target == domain.MissionAborted && reason != "" {
		return "aborted: " + reason
	}
	return ""
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
