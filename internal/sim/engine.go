package sim

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yajasvikhanna/Flytbase/internal/domain"
	"github.com/yajasvikhanna/Flytbase/internal/gateway"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/logger"
	"github.com/yajasvikhanna/Flytbase/internal/usecase"
)

// Engine runs a scenario against the coordination core. All traffic goes
// through the gateway, so simulated input is validated exactly like real
// input.
type Engine struct {
	scenario *Scenario
	coord    *usecase.Coordinator
	gw       *gateway.Gateway
	identity gateway.Identity
	tick     time.Duration
}

// flight is the live state of one simulated mission.
type flight struct {
	missionID string
	droneID   string
	spec      MissionSpec
	progress  int
	battery   int
	done      bool
}

// NewEngine creates an engine for the scenario.
func NewEngine(scenario *Scenario, coord *usecase.Coordinator, gw *gateway.Gateway, tick time.Duration) *Engine {
	if tick <= 0 {
		tick = time.Second
	}
	return &Engine{
		scenario: scenario,
		coord:    coord,
		gw:       gw,
		identity: gateway.Identity{Subject: "simulator", OrganizationID: scenario.OrganizationID},
		tick:     tick,
	}
}

// Run registers the fleet, starts every mission, and ticks them to a
// terminal state. It returns once every mission has landed or the context
// is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	flights, err := e.setup(ctx)
	if err != nil {
		return err
	}
	if len(flights) == 0 {
		logger.Info("scenario has no missions, nothing to fly")
		return nil
	}

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			remaining := 0
			for _, f := range flights {
				if f.done {
					continue
				}
				if err := e.advance(ctx, f); err != nil {
					logger.Warn("flight tick failed",
						zap.String("mission_id", f.missionID), zap.Error(err))
				}
				if !f.done {
					remaining++
				}
			}
			if remaining == 0 {
				logger.Info("all simulated missions reached a terminal state")
				return nil
			}
		}
	}
}

// setup registers drones, creates the missions, and launches them.
func (e *Engine) setup(ctx context.Context) ([]*flight, error) {
	droneIDs := make(map[string]string, len(e.scenario.Drones))
	for _, spec := range e.scenario.Drones {
		d, err := e.coord.RegisterDrone(ctx, &domain.Drone{
			OrganizationID: e.scenario.OrganizationID,
			Name:           spec.Name,
			SerialNumber:   spec.SerialNumber,
			Model:          spec.Model,
			Site:           spec.Site,
			BatteryLevel:   spec.BatteryLevel,
			BaseLocation:   &domain.Position{Lat: spec.HomeLat, Lng: spec.HomeLng},
			CreatedBy:      "simulator",
		})
		if err != nil {
			return nil, fmt.Errorf("register drone %q: %w", spec.Name, err)
		}
		droneIDs[spec.Name] = d.ID
		logger.Info("registered drone", zap.String("name", spec.Name), zap.String("drone_id", d.ID))
	}

	var flights []*flight
	for _, spec := range e.scenario.Missions {
		m, err := e.coord.CreateMission(ctx, &domain.Mission{
			OrganizationID: e.scenario.OrganizationID,
			Name:           spec.Name,
			Site:           spec.Site,
			MissionType:    spec.MissionType,
			FlightPattern:  spec.FlightPattern,
			DroneID:        droneIDs[spec.Drone],
			PatternParameters: domain.PatternParameters{
				Altitude: spec.Altitude,
				Speed:    spec.Speed,
			},
			Waypoints: generateWaypoints(spec),
			CreatedBy: "simulator",
		})
		if err != nil {
			return nil, fmt.Errorf("create mission %q: %w", spec.Name, err)
		}

		if _, _, err := e.gw.SubmitCommand(ctx, e.identity, gateway.MissionCommand{
			MissionID: m.ID,
			Action:    gateway.ActionStart,
		}); err != nil {
			return nil, fmt.Errorf("start mission %q: %w", spec.Name, err)
		}
		logger.Info("mission launched", zap.String("name", spec.Name), zap.String("mission_id", m.ID))

		battery := 100
		for _, d := range e.scenario.Drones {
			if d.Name == spec.Drone {
				battery = d.BatteryLevel
			}
		}
		flights = append(flights, &flight{
			missionID: m.ID,
			droneID:   droneIDs[spec.Drone],
			spec:      spec,
			battery:   battery,
		})
	}
	return flights, nil
}

// advance moves one flight forward by one tick.
func (e *Engine) advance(ctx context.Context, f *flight) error {
	f.progress += f.spec.ProgressPerTick
	if f.progress > 100 {
		f.progress = 100
	}
	f.battery -= f.spec.BatteryDrainPerTick
	if f.battery < 0 {
		f.battery = 0
	}

	if f.spec.AbortAtProgress > 0 && f.progress >= f.spec.AbortAtProgress {
		reason := f.spec.AbortReason
		if reason == "" {
			reason = "scenario abort"
		}
		_, _, err := e.gw.SubmitCommand(ctx, e.identity, gateway.MissionCommand{
			MissionID: f.missionID,
			Action:    gateway.ActionAbort,
			Payload:   usecase.TransitionPayload{Reason: reason},
		})
		if err != nil {
			return err
		}
		f.done = true
		return nil
	}

	waypoint := f.progress * maxInt(f.spec.Waypoints, 1) / 100
	if _, err := e.gw.SubmitProgress(ctx, e.identity, f.missionID, usecase.ProgressUpdate{
		Progress:        f.progress,
		CurrentWaypoint: &waypoint,
	}); err != nil {
		return err
	}
	if f.spec.BatteryDrainPerTick > 0 {
		if _, err := e.gw.SubmitTelemetry(ctx, e.identity, f.droneID, usecase.TelemetryUpdate{
			BatteryLevel: &f.battery,
		}); err != nil {
			return err
		}
	}

	if f.progress >= 100 {
		_, _, err := e.gw.SubmitCommand(ctx, e.identity, gateway.MissionCommand{
			MissionID: f.missionID,
			Action:    gateway.ActionComplete,
		})
		if err != nil {
			return err
		}
		f.done = true
	}
	return nil
}

// generateWaypoints lays a simple serpentine of the requested length around
// the site. Good enough to give reports and progress something to reference.
func generateWaypoints(spec MissionSpec) []domain.Waypoint {
	n := spec.Waypoints
	if n <= 0 {
		return nil
	}
	wps := make([]domain.Waypoint, n)
	for i := 0; i < n; i++ {
		lat := 0.001 * float64(i/2)
		lng := 0.001 * float64(i%2)
		wps[i] = domain.Waypoint{
			Order:    i,
			Lat:      lat,
			Lng:      lng,
			Altitude: spec.Altitude,
			Action:   "navigate",
		}
	}
	return wps
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
