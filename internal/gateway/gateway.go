// Package gateway validates and normalizes inbound commands and telemetry
// before anything reaches the coordinator.
//
// Rejection here is terminal for the message: a command that fails
// validation is never partially processed.
//
// Import Path: github.com/yajasvikhanna/Flytbase/internal/gateway
package gateway

import (
	"context"
	"strings"

	"github.com/yajasvikhanna/Flytbase/internal/domain"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/errors"
	"github.com/yajasvikhanna/Flytbase/internal/usecase"
)

// Action is a mission command verb.
type Action string

const (
	ActionSchedule Action = "schedule"
	ActionQueue    Action = "queue"
	ActionStart    Action = "start"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionComplete Action = "complete"
	ActionAbort    Action = "abort"
	ActionFail     Action = "fail"
)

// actionTargets maps command verbs onto the mission status they request.
var actionTargets = map[Action]domain.MissionStatus{
	ActionSchedule: domain.MissionScheduled,
	ActionQueue:    domain.MissionQueued,
	ActionStart:    domain.MissionInProgress,
	ActionPause:    domain.MissionPaused,
	ActionResume:   domain.MissionInProgress,
	ActionComplete: domain.MissionCompleted,
	ActionAbort:    domain.MissionAborted,
	ActionFail:     domain.MissionFailed,
}

// Identity is the authenticated origin of an inbound message.
type Identity struct {
	Subject        string
	OrganizationID string
}

// MissionCommand is an inbound lifecycle command for a mission.
type MissionCommand struct {
	MissionID string                    `json:"mission_id"`
	Action    Action                    `json:"action"`
	Payload   usecase.TransitionPayload `json:"payload"`
}

// Gateway is the single inbound validation choke point.
type Gateway struct {
	coord *usecase.Coordinator
}

// New creates a Gateway in front of the coordinator.
func New(coord *usecase.Coordinator) *Gateway {
	return &Gateway{coord: coord}
}

// SubmitCommand validates a lifecycle command and forwards it.
func (g *Gateway) SubmitCommand(ctx context.Context, id Identity, cmd MissionCommand) (*domain.Mission, *domain.Drone, error) {
	if strings.TrimSpace(cmd.MissionID) == "" {
		return nil, nil, errors.ErrValidation("mission_id", "mission id is required")
	}
	target, ok := actionTargets[cmd.Action]
	if !ok {
		return nil, nil, errors.ErrValidation("action", "unknown action "+string(cmd.Action))
	}
	if err := validatePayload(cmd.Payload); err != nil {
		return nil, nil, err
	}
	if err := g.authorizeMission(ctx, id, cmd.MissionID); err != nil {
		return nil, nil, err
	}
	return g.coord.RequestTransition(ctx, cmd.MissionID, target, cmd.Payload)
}

// SubmitProgress validates a mission progress update and forwards it.
func (g *Gateway) SubmitProgress(ctx context.Context, id Identity, missionID string, update usecase.ProgressUpdate) (*domain.Mission, error) {
	if strings.TrimSpace(missionID) == "" {
		return nil, errors.ErrValidation("mission_id", "mission id is required")
	}
	if update.Progress < 0 || update.Progress > 100 {
		return nil, errors.ErrValidation("progress", "progress must be between 0 and 100")
	}
	if update.CurrentWaypoint != nil && *update.CurrentWaypoint < 0 {
		return nil, errors.ErrValidation("current_waypoint", "waypoint index must not be negative")
	}
	if err := validatePosition(update.Position); err != nil {
		return nil, err
	}
	if err := g.authorizeMission(ctx, id, missionID); err != nil {
		return nil, err
	}
	return g.coord.UpdateProgress(ctx, missionID, update)
}

// SubmitTelemetry validates a drone telemetry update and forwards it.
func (g *Gateway) SubmitTelemetry(ctx context.Context, id Identity, droneID string, update usecase.TelemetryUpdate) (*domain.Drone, error) {
	if strings.TrimSpace(droneID) == "" {
		return nil, errors.ErrValidation("drone_id", "drone id is required")
	}
	if update.BatteryLevel != nil && (*update.BatteryLevel < 0 || *update.BatteryLevel > 100) {
		return nil, errors.ErrValidation("battery_level", "battery level must be between 0 and 100")
	}
	if update.Status != nil && !update.Status.Valid() {
		return nil, errors.ErrValidation("status", "unknown drone status "+string(*update.Status))
	}
	if err := validatePosition(update.Position); err != nil {
		return nil, err
	}

	d, err := g.coord.GetDrone(ctx, droneID)
	if err != nil {
		return nil, err
	}
	if d.OrganizationID != id.OrganizationID {
		return nil, errors.ErrValidation("organization_id", "drone does not belong to the caller's organization")
	}
	return g.coord.UpdateDroneTelemetry(ctx, droneID, update)
}

// authorizeMission enforces that the caller's organization owns the mission.
func (g *Gateway) authorizeMission(ctx context.Context, id Identity, missionID string) error {
	m, err := g.coord.GetMission(ctx, missionID)
	if err != nil {
		return err
	}
	if m.OrganizationID != id.OrganizationID {
		return errors.ErrValidation("organization_id", "mission does not belong to the caller's organization")
	}
	return nil
}

func validatePayload(p usecase.TransitionPayload) error {
	if p.Progress != nil && (*p.Progress < 0 || *p.Progress > 100) {
		return errors.ErrValidation("progress", "progress must be between 0 and 100")
	}
	if p.CurrentWaypoint != nil && *p.CurrentWaypoint < 0 {
		return errors.ErrValidation("current_waypoint", "waypoint index must not be negative")
	}
	return validatePosition(p.Position)
}

func validatePosition(pos *domain.Position) error {
	if pos == nil {
		return nil
	}
	if pos.Lat < -90 || pos.Lat > 90 {
		return errors.ErrValidation("lat", "latitude must be between -90 and 90")
	}
	if pos.Lng < -180 || pos.Lng > 180 {
		return errors.ErrValidation("lng", "longitude must be between -180 and 180")
	}
	return nil
}
