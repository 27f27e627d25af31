package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yajasvikhanna/Flytbase/internal/domain"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/errors"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/logger"
	"github.com/yajasvikhanna/Flytbase/internal/service"
	"github.com/yajasvikhanna/Flytbase/internal/store/memory"
	"github.com/yajasvikhanna/Flytbase/internal/usecase"
)

func TestMain(m *testing.M) {
	logger.Init("error", "console")
	m.Run()
}

func newGateway(t *testing.T) (*Gateway, *usecase.Coordinator) {
	t.Helper()
	mem := memory.New()
	coord := usecase.NewCoordinator(mem.Stores(), service.NewReportGenerator(mem), nil, 3)
	return New(coord), coord
}

func seed(t *testing.T, coord *usecase.Coordinator) *domain.Mission {
	t.Helper()
	ctx := context.Background()
	_, err := coord.RegisterDrone(ctx, &domain.Drone{
		ID:             "d-1",
		OrganizationID: "org-1",
		Name:           "scout",
		SerialNumber:   "SN-001",
		BatteryLevel:   90,
	})
	require.NoError(t, err)

	m, err := coord.CreateMission(ctx, &domain.Mission{
		OrganizationID: "org-1",
		Name:           "field sweep",
		DroneID:        "d-1",
	})
	require.NoError(t, err)
	return m
}

func TestSubmitCommandStart(t *testing.T) {
	g, coord := newGateway(t)
	m := seed(t, coord)

	got, d, err := g.SubmitCommand(context.Background(),
		Identity{OrganizationID: "org-1"},
		MissionCommand{MissionID: m.ID, Action: ActionStart})
	require.NoError(t, err)
	assert.Equal(t, domain.MissionInProgress, got.Status)
	require.NotNil(t, d)
	assert.Equal(t, domain.DroneInMission, d.Status)
}

func TestSubmitCommandValidation(t *testing.T) {
	g, coord := newGateway(t)
	m := seed(t, coord)
	id := Identity{OrganizationID: "org-1"}

	tests := []struct {
		name string
		cmd  MissionCommand
	}{
		{"missing mission id", MissionCommand{Action: ActionStart}},
		{"unknown action", MissionCommand{MissionID: m.ID, Action: "launch"}},
		{"progress above range", MissionCommand{MissionID: m.ID, Action: ActionPause,
			Payload: usecase.TransitionPayload{Progress: intPtr(150)}}},
		{"negative waypoint", MissionCommand{MissionID: m.ID, Action: ActionPause,
			Payload: usecase.TransitionPayload{CurrentWaypoint: intPtr(-1)}}},
		{"latitude out of range", MissionCommand{MissionID: m.ID, Action: ActionPause,
			Payload: usecase.TransitionPayload{Position: &domain.Position{Lat: 91}}}},
		{"longitude out of range", MissionCommand{MissionID: m.ID, Action: ActionPause,
			Payload: usecase.TransitionPayload{Position: &domain.Position{Lng: -181}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := g.SubmitCommand(context.Background(), id, tc.cmd)
			assert.True(t, errors.IsCode(err, errors.CodeValidationFailed), "got %v", err)
		})
	}

	// Nothing reached the coordinator.
	got, err := coord.GetMission(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MissionPlanned, got.Status)
}

func TestSubmitCommandOrganizationMismatch(t *testing.T) {
	g, coord := newGateway(t)
	m := seed(t, coord)

	_, _, err := g.SubmitCommand(context.Background(),
		Identity{OrganizationID: "org-2"},
		MissionCommand{MissionID: m.ID, Action: ActionStart})
	assert.True(t, errors.IsCode(err, errors.CodeValidationFailed), "got %v", err)

	got, err := coord.GetMission(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MissionPlanned, got.Status)
}

func TestSubmitProgress(t *testing.T) {
	g, coord := newGateway(t)
	m := seed(t, coord)
	ctx := context.Background()
	id := Identity{OrganizationID: "org-1"}

	_, _, err := g.SubmitCommand(ctx, id, MissionCommand{MissionID: m.ID, Action: ActionStart})
	require.NoError(t, err)

	got, err := g.SubmitProgress(ctx, id, m.ID, usecase.ProgressUpdate{
		Progress:        30,
		CurrentWaypoint: intPtr(3),
		Position:        &domain.Position{Lat: 12.97, Lng: 77.59, Altitude: 60},
	})
	require.NoError(t, err)
	assert.Equal(t, 30, got.Progress)
	assert.Equal(t, 3, got.CurrentWaypoint)

	_, err = g.SubmitProgress(ctx, id, m.ID, usecase.ProgressUpdate{Progress: 101})
	assert.True(t, errors.IsCode(err, errors.CodeValidationFailed), "got %v", err)
}

func TestSubmitTelemetry(t *testing.T) {
	g, coord := newGateway(t)
	ctx := context.Background()
	id := Identity{OrganizationID: "org-1"}

	_, err := coord.RegisterDrone(ctx, &domain.Drone{
		ID:             "d-9",
		OrganizationID: "org-1",
		Name:           "spare",
		SerialNumber:   "SN-009",
		BatteryLevel:   80,
	})
	require.NoError(t, err)

	level := 42
	d, err := g.SubmitTelemetry(ctx, id, "d-9", usecase.TelemetryUpdate{
		BatteryLevel: &level,
		Position:     &domain.Position{Lat: 1, Lng: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 42, d.BatteryLevel)

	_, err = g.SubmitTelemetry(ctx, id, "", usecase.TelemetryUpdate{BatteryLevel: &level})
	assert.True(t, errors.IsCode(err, errors.CodeValidationFailed), "got %v", err)

	bad := 500
	_, err = g.SubmitTelemetry(ctx, id, "d-9", usecase.TelemetryUpdate{BatteryLevel: &bad})
	assert.True(t, errors.IsCode(err, errors.CodeValidationFailed), "got %v", err)

	_, err = g.SubmitTelemetry(ctx, Identity{OrganizationID: "org-2"}, "d-9", usecase.TelemetryUpdate{BatteryLevel: &level})
	assert.True(t, errors.IsCode(err, errors.CodeValidationFailed), "got %v", err)
}

func intPtr(v int) *int { return &v }
