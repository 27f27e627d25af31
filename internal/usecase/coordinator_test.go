package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yajasvikhanna/Flytbase/internal/domain"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/errors"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/logger"
	"github.com/yajasvikhanna/Flytbase/internal/service"
	"github.com/yajasvikhanna/Flytbase/internal/store"
	"github.com/yajasvikhanna/Flytbase/internal/store/memory"
)

func TestMain(m *testing.M) {
	logger.Init("error", "console")
	m.Run()
}

// capturingPublisher records publishes for assertions.
type capturingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	Topic   domain.Topic
	Name    domain.EventName
	Payload interface{}
}

func (p *capturingPublisher) Publish(topic domain.Topic, name domain.EventName, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Topic: topic, Name: name, Payload: payload})
}

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fixture struct {
	coord *Coordinator
	mem   *memory.Store
	pub   *capturingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := memory.New()
	pub := &capturingPublisher{}
	coord := NewCoordinator(mem.Stores(), service.NewReportGenerator(mem), pub, 3)
	return &fixture{coord: coord, mem: mem, pub: pub}
}

func (f *fixture) createDrone(t *testing.T, id, serial string) *domain.Drone {
	t.Helper()
	d, err := f.coord.RegisterDrone(context.Background(), &domain.Drone{
		ID:             id,
		OrganizationID: "org-1",
		Name:           "drone " + id,
		SerialNumber:   serial,
		BatteryLevel:   100,
		Site:           "north-field",
	})
	require.NoError(t, err)
	return d
}

func (f *fixture) createMission(t *testing.T, droneID string) *domain.Mission {
	t.Helper()
	m, err := f.coord.CreateMission(context.Background(), &domain.Mission{
		OrganizationID: "org-1",
		Name:           "perimeter survey",
		MissionType:    domain.TypeInspection,
		DroneID:        droneID,
		Site:           "north-field",
	})
	require.NoError(t, err)
	return m
}

func TestCreateMissionReservesDrone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createDrone(t, "d-1", "SN-001")
	m := f.createMission(t, "d-1")

	assert.Equal(t, domain.MissionPlanned, m.Status)
	assert.NotEmpty(t, m.ID)

	d, err := f.coord.GetDrone(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DroneAssigned, d.Status)
	assert.Equal(t, m.ID, d.CurrentMissionID)
}

func TestCreateMissionRejectsBusyDrone(t *testing.T) {
	f := newFixture(t)

	f.createDrone(t, "d-1", "SN-001")
	f.createMission(t, "d-1")

	_, err := f.coord.CreateMission(context.Background(), &domain.Mission{
		OrganizationID: "org-1",
		Name:           "second mission",
		DroneID:        "d-1",
	})
	assert.True(t, errors.IsCode(err, errors.CodeDroneUnavailable), "got %v", err)
}

func TestFullMissionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createDrone(t, "d-1", "SN-001")
	m := f.createMission(t, "d-1")

	m, d, err := f.coord.RequestTransition(ctx, m.ID, domain.MissionInProgress, TransitionPayload{})
	require.NoError(t, err)
	assert.Equal(t, domain.MissionInProgress, m.Status)
	assert.NotNil(t, m.ActualStart)
	require.NotNil(t, d)
	assert.Equal(t, domain.DroneInMission, d.Status)
	assert.Equal(t, m.ID, d.CurrentMissionID)

	_, err = f.coord.UpdateProgress(ctx, m.ID, ProgressUpdate{Progress: 100})
	require.NoError(t, err)

	m, d, err = f.coord.RequestTransition(ctx, m.ID, domain.MissionCompleted, TransitionPayload{})
	require.NoError(t, err)
	assert.Equal(t, domain.MissionCompleted, m.Status)
	assert.Equal(t, 100, m.Progress)
	assert.NotNil(t, m.ActualEnd)
	require.NotNil(t, d)
	assert.Equal(t, domain.DroneAvailable, d.Status)
	assert.Empty(t, d.CurrentMissionID)

	// Exactly one report, frozen from the mission.
	r, err := f.coord.GetMissionReport(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MissionCompleted, r.Status)
	wantMinutes := m.ActualEnd.Sub(*m.ActualStart).Minutes()
	assert.InDelta(t, wantMinutes, r.DurationMinutes, 0.001)

	reports, err := f.coord.ListReports(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestStartWithoutDroneFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := f.createMission(t, "")
	_, _, err := f.coord.RequestTransition(ctx, m.ID, domain.MissionInProgress, TransitionPayload{})
	assert.True(t, errors.IsCode(err, errors.CodeDroneUnavailable), "got %v", err)

	got, err := f.coord.GetMission(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MissionPlanned, got.Status)
}

func TestCompleteFromPlannedRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createDrone(t, "d-1", "SN-001")
	m := f.createMission(t, "d-1")

	_, _, err := f.coord.RequestTransition(ctx, m.ID, domain.MissionCompleted, TransitionPayload{})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidTransition), "got %v", err)

	// Neither document moved.
	got, err := f.coord.GetMission(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MissionPlanned, got.Status)
	d, err := f.coord.GetDrone(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DroneAssigned, d.Status)
}

func TestAbortRecordsReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createDrone(t, "d-1", "SN-001")
	m := f.createMission(t, "d-1")
	_, _, err := f.coord.RequestTransition(ctx, m.ID, domain.MissionInProgress, TransitionPayload{})
	require.NoError(t, err)

	m, d, err := f.coord.RequestTransition(ctx, m.ID, domain.MissionAborted, TransitionPayload{Reason: "weather"})
	require.NoError(t, err)
	assert.Equal(t, "weather", m.AbortReason)
	assert.Equal(t, domain.DroneAvailable, d.Status)

	r, err := f.coord.GetMissionReport(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MissionAborted, r.Status)

	var found bool
	for _, entry := range r.EventLog {
		if entry.Detail == "weather" {
			found = true
		}
	}
	assert.True(t, found, "report log should reference the abort reason")
}

func TestAbortFromPlannedRejected(t *testing.T) {
	f := newFixture(t)

	m := f.createMission(t, "")
	_, _, err := f.coord.RequestTransition(context.Background(), m.ID, domain.MissionAborted, TransitionPayload{Reason: "nevermind"})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidTransition), "got %v", err)
}

func TestProgressMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createDrone(t, "d-1", "SN-001")
	m := f.createMission(t, "d-1")
	_, _, err := f.coord.RequestTransition(ctx, m.ID, domain.MissionInProgress, TransitionPayload{})
	require.NoError(t, err)

	_, err = f.coord.UpdateProgress(ctx, m.ID, ProgressUpdate{Progress: 40})
	require.NoError(t, err)

	_, err = f.coord.UpdateProgress(ctx, m.ID, ProgressUpdate{Progress: 25})
	assert.True(t, errors.IsCode(err, errors.CodeValidationFailed), "got %v", err)

	got, err := f.coord.GetMission(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Progress)
}

func TestProgressRequiresInProgress(t *testing.T) {
	f := newFixture(t)

	m := f.createMission(t, "")
	_, err := f.coord.UpdateProgress(context.Background(), m.ID, ProgressUpdate{Progress: 10})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidTransition), "got %v", err)
}

func TestProgressOutOfRange(t *testing.T) {
	f := newFixture(t)

	m := f.createMission(t, "")
	_, err := f.coord.UpdateProgress(context.Background(), m.ID, ProgressUpdate{Progress: 101})
	assert.True(t, errors.IsCode(err, errors.CodeValidationFailed), "got %v", err)
}

func TestPauseResumeKeepsDroneInMission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createDrone(t, "d-1", "SN-001")
	m := f.createMission(t, "d-1")
	_, _, err := f.coord.RequestTransition(ctx, m.ID, domain.MissionInProgress, TransitionPayload{})
	require.NoError(t, err)

	m, d, err := f.coord.RequestTransition(ctx, m.ID, domain.MissionPaused, TransitionPayload{})
	require.NoError(t, err)
	assert.Nil(t, d, "pause leaves the drone untouched")

	gotD, err := f.coord.GetDrone(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DroneInMission, gotD.Status)

	m, _, err = f.coord.RequestTransition(ctx, m.ID, domain.MissionInProgress, TransitionPayload{})
	require.NoError(t, err)
	assert.Equal(t, domain.MissionInProgress, m.Status)
	// Resume must not reset the original start time.
	require.NotNil(t, m.ActualStart)
}

func TestPauseAbortRaceExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createDrone(t, "d-1", "SN-001")
	m := f.createMission(t, "d-1")
	_, _, err := f.coord.RequestTransition(ctx, m.ID, domain.MissionInProgress, TransitionPayload{})
	require.NoError(t, err)

	// Race a pause against an abort; the transition table arbitrates.
	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _, results[0] = f.coord.RequestTransition(ctx, m.ID, domain.MissionPaused, TransitionPayload{})
	}()
	go func() {
		defer wg.Done()
		_, _, results[1] = f.coord.RequestTransition(ctx, m.ID, domain.MissionAborted, TransitionPayload{Reason: "race"})
	}()
	wg.Wait()

	got, err := f.coord.GetMission(ctx, m.ID)
	require.NoError(t, err)
	assert.Contains(t, []domain.MissionStatus{domain.MissionPaused, domain.MissionAborted}, got.Status)

	// pause→aborted is a legal edge, so both may succeed sequentially; what
	// is forbidden is a silently dropped update or a mixed state.
	for _, rerr := range results {
		if rerr != nil {
			ok := errors.IsCode(rerr, errors.CodeInvalidTransition) ||
				errors.IsCode(rerr, errors.CodeConcurrentModification)
			assert.True(t, ok, "unexpected race loser error: %v", rerr)
		}
	}

	d, err := f.coord.GetDrone(ctx, "d-1")
	require.NoError(t, err)
	if got.Status == domain.MissionAborted {
		assert.Equal(t, domain.DroneAvailable, d.Status)
		assert.Empty(t, d.CurrentMissionID)
	} else {
		assert.Equal(t, domain.DroneInMission, d.Status)
		assert.Equal(t, m.ID, d.CurrentMissionID)
	}
}

func TestBusyPredicateMatchesMissionState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createDrone(t, "d-1", "SN-001")
	m := f.createMission(t, "d-1")

	check := func() {
		t.Helper()
		gotM, err := f.coord.GetMission(ctx, m.ID)
		require.NoError(t, err)
		gotD, err := f.coord.GetDrone(ctx, "d-1")
		require.NoError(t, err)
		assert.Equal(t, !gotM.Status.Terminal(), gotD.Busy(),
			"mission %s / drone %s out of sync", gotM.Status, gotD.Status)
		if gotD.Busy() {
			assert.Equal(t, m.ID, gotD.CurrentMissionID)
		} else {
			assert.Empty(t, gotD.CurrentMissionID)
		}
	}

	check()
	for _, target := range []domain.MissionStatus{
		domain.MissionQueued, domain.MissionInProgress, domain.MissionPaused,
		domain.MissionInProgress, domain.MissionCompleted,
	} {
		_, _, err := f.coord.RequestTransition(ctx, m.ID, target, TransitionPayload{})
		require.NoError(t, err, "transition to %s", target)
		check()
	}
}

func TestTerminalTransitionIdempotentReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createDrone(t, "d-1", "SN-001")
	m := f.createMission(t, "d-1")
	_, _, err := f.coord.RequestTransition(ctx, m.ID, domain.MissionInProgress, TransitionPayload{})
	require.NoError(t, err)
	_, _, err = f.coord.RequestTransition(ctx, m.ID, domain.MissionFailed, TransitionPayload{Reason: "link lost"})
	require.NoError(t, err)

	// A second terminal request is rejected, and regeneration attempts
	// leave exactly one stored report.
	_, _, err = f.coord.RequestTransition(ctx, m.ID, domain.MissionAborted, TransitionPayload{})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidTransition), "got %v", err)

	reports, err := f.coord.ListReports(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestTelemetryValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createDrone(t, "d-1", "SN-001")

	over := 120
	_, err := f.coord.UpdateDroneTelemetry(ctx, "d-1", TelemetryUpdate{BatteryLevel: &over})
	assert.True(t, errors.IsCode(err, errors.CodeValidationFailed), "got %v", err)

	busy := domain.DroneInMission
	_, err = f.coord.UpdateDroneTelemetry(ctx, "d-1", TelemetryUpdate{Status: &busy})
	assert.True(t, errors.IsCode(err, errors.CodeValidationFailed), "got %v", err)

	level := 55
	charging := domain.DroneCharging
	d, err := f.coord.UpdateDroneTelemetry(ctx, "d-1", TelemetryUpdate{
		Status:       &charging,
		BatteryLevel: &level,
		Position:     &domain.Position{Lat: 12.97, Lng: 77.59, Altitude: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DroneCharging, d.Status)
	assert.Equal(t, 55, d.BatteryLevel)
	require.NotNil(t, d.LastKnownPosition)
}

func TestTelemetryCannotSidelineFlyingDrone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createDrone(t, "d-1", "SN-001")
	m := f.createMission(t, "d-1")
	_, _, err := f.coord.RequestTransition(ctx, m.ID, domain.MissionInProgress, TransitionPayload{})
	require.NoError(t, err)

	maint := domain.DroneMaintenance
	_, err = f.coord.UpdateDroneTelemetry(ctx, "d-1", TelemetryUpdate{Status: &maint})
	assert.True(t, errors.IsCode(err, errors.CodeDroneUnavailable), "got %v", err)

	// Battery-only telemetry still flows while flying.
	level := 70
	d, err := f.coord.UpdateDroneTelemetry(ctx, "d-1", TelemetryUpdate{BatteryLevel: &level})
	require.NoError(t, err)
	assert.Equal(t, 70, d.BatteryLevel)
	assert.Equal(t, domain.DroneInMission, d.Status)
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createDrone(t, "d-1", "SN-001")
	m := f.createMission(t, "d-1")
	_, _, err := f.coord.RequestTransition(ctx, m.ID, domain.MissionInProgress, TransitionPayload{})
	require.NoError(t, err)
	_, err = f.coord.UpdateProgress(ctx, m.ID, ProgressUpdate{Progress: 50})
	require.NoError(t, err)

	snap, err := f.coord.Snapshot(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, snap.MissionID)
	assert.Equal(t, domain.MissionInProgress, snap.Status)
	assert.Equal(t, 50, snap.Progress)

	_, err = f.coord.Snapshot(ctx, "missing")
	assert.True(t, errors.IsCode(err, errors.CodeMissionNotFound), "got %v", err)
}

func TestDeleteMission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createDrone(t, "d-1", "SN-001")
	m := f.createMission(t, "d-1")

	// In-progress missions cannot be deleted.
	_, _, err := f.coord.RequestTransition(ctx, m.ID, domain.MissionInProgress, TransitionPayload{})
	require.NoError(t, err)
	err = f.coord.DeleteMission(ctx, m.ID)
	assert.True(t, errors.IsCode(err, errors.CodeMissionInProgress), "got %v", err)

	_, _, err = f.coord.RequestTransition(ctx, m.ID, domain.MissionAborted, TransitionPayload{Reason: "cleanup"})
	require.NoError(t, err)
	require.NoError(t, f.coord.DeleteMission(ctx, m.ID))

	_, err = f.coord.GetMission(ctx, m.ID)
	assert.True(t, errors.IsCode(err, errors.CodeMissionNotFound), "got %v", err)
}

// startBeforeDeleteStore commits a transition between the delete guard's
// read and the store delete, standing in for a start that wins the race.
type startBeforeDeleteStore struct {
	store.MissionStore
	before func()
	once   sync.Once
}

func (s *startBeforeDeleteStore) DeleteMission(ctx context.Context, id string, expectedRevision int64) error {
	s.once.Do(s.before)
	return s.MissionStore.DeleteMission(ctx, id, expectedRevision)
}

func TestDeleteLosesRaceToStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createDrone(t, "d-1", "SN-001")
	m := f.createMission(t, "d-1")

	stores := f.mem.Stores()
	intercepted := &startBeforeDeleteStore{MissionStore: stores.Missions}
	intercepted.before = func() {
		_, _, err := f.coord.RequestTransition(ctx, m.ID, domain.MissionInProgress, TransitionPayload{})
		require.NoError(t, err)
	}
	stores.Missions = intercepted
	deleting := NewCoordinator(stores, service.NewReportGenerator(f.mem), f.pub, 3)

	// The revision guard makes the delete lose; the retry re-reads and
	// sees the mission flying.
	err := deleting.DeleteMission(ctx, m.ID)
	assert.True(t, errors.IsCode(err, errors.CodeMissionInProgress), "got %v", err)

	got, err := f.coord.GetMission(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MissionInProgress, got.Status)

	d, err := f.coord.GetDrone(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DroneInMission, d.Status)
	assert.Equal(t, m.ID, d.CurrentMissionID)
}

func TestDeletePlannedMissionReleasesDrone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createDrone(t, "d-1", "SN-001")
	m := f.createMission(t, "d-1")

	require.NoError(t, f.coord.DeleteMission(ctx, m.ID))

	d, err := f.coord.GetDrone(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DroneAvailable, d.Status)
	assert.Empty(t, d.CurrentMissionID)
}

func TestSerialNumberConflict(t *testing.T) {
	f := newFixture(t)

	f.createDrone(t, "d-1", "SN-001")
	_, err := f.coord.RegisterDrone(context.Background(), &domain.Drone{
		OrganizationID: "org-1",
		Name:           "imposter",
		SerialNumber:   "SN-001",
	})
	assert.True(t, errors.IsCode(err, errors.CodeSerialExists), "got %v", err)
}

func TestTransitionPublishesEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createDrone(t, "d-1", "SN-001")
	m := f.createMission(t, "d-1")
	_, _, err := f.coord.RequestTransition(ctx, m.ID, domain.MissionInProgress, TransitionPayload{})
	require.NoError(t, err)

	require.GreaterOrEqual(t, f.pub.count(), 2)

	f.pub.mu.Lock()
	defer f.pub.mu.Unlock()
	topics := map[domain.Topic]bool{}
	for _, e := range f.pub.events {
		topics[e.Topic] = true
	}
	assert.True(t, topics[domain.MissionTopic(m.ID)])
	assert.True(t, topics[domain.OrgTopic("org-1")])
}

func TestMissionEventsPublishInCommitOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createDrone(t, "d-1", "SN-001")
	m := f.createMission(t, "d-1")

	steps := []domain.MissionStatus{
		domain.MissionInProgress,
		domain.MissionPaused,
		domain.MissionInProgress,
		domain.MissionCompleted,
	}
	for _, target := range steps {
		_, _, err := f.coord.RequestTransition(ctx, m.ID, target, TransitionPayload{})
		require.NoError(t, err)
	}

	// Everything published on the mission topic must arrive in the order
	// the transitions committed; a reordered tail would leave observers
	// with a stale final state.
	f.pub.mu.Lock()
	defer f.pub.mu.Unlock()
	var seen []domain.MissionStatus
	for _, e := range f.pub.events {
		if e.Topic != domain.MissionTopic(m.ID) {
			continue
		}
		snap, ok := e.Payload.(domain.MissionStatusEvent)
		require.True(t, ok, "unexpected payload %T", e.Payload)
		seen = append(seen, snap.Status)
	}
	assert.Equal(t, steps, seen)
}

func TestConcurrentMissionsFullyParallel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	missions := make([]*domain.Mission, n)
	for i := 0; i < n; i++ {
		f.createDrone(t, "d-"+string(rune('a'+i)), "SN-"+string(rune('a'+i)))
		missions[i] = f.createMission(t, "d-"+string(rune('a'+i)))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(m *domain.Mission) {
			defer wg.Done()
			_, _, err := f.coord.RequestTransition(ctx, m.ID, domain.MissionInProgress, TransitionPayload{})
			assert.NoError(t, err)
			_, _, err = f.coord.RequestTransition(ctx, m.ID, domain.MissionCompleted, TransitionPayload{})
			assert.NoError(t, err)
		}(missions[i])
	}
	wg.Wait()

	reports, err := f.coord.ListReports(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, reports, n)
}
