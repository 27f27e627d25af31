// Package sim provides a scenario-driven exercise rig: it registers a fleet,
// creates missions, and pushes telemetry through the ingestion gateway the
// same way a live drone link would.
//
// Import Path: github.com/yajasvikhanna/Flytbase/internal/sim
package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yajasvikhanna/Flytbase/internal/domain"
)

// DroneSpec describes one simulated vehicle.
type DroneSpec struct {
	Name         string  `yaml:"name"`
	SerialNumber string  `yaml:"serial_number"`
	Model        string  `yaml:"model"`
	Site         string  `yaml:"site"`
	BatteryLevel int     `yaml:"battery_level"`
	HomeLat      float64 `yaml:"home_lat"`
	HomeLng      float64 `yaml:"home_lng"`
}

// MissionSpec describes one simulated survey.
type MissionSpec struct {
	Name          string               `yaml:"name"`
	Drone         string               `yaml:"drone"` // DroneSpec.Name reference
	Site          string               `yaml:"site"`
	MissionType   domain.MissionType   `yaml:"mission_type"`
	FlightPattern domain.FlightPattern `yaml:"flight_pattern"`
	Altitude      float64              `yaml:"altitude"`
	Speed         float64              `yaml:"speed"`
	Waypoints     int                  `yaml:"waypoints"`
	// ProgressPerTick is how much progress each tick adds (percent).
	ProgressPerTick int `yaml:"progress_per_tick"`
	// BatteryDrainPerTick is the battery cost of one tick (percent).
	BatteryDrainPerTick int `yaml:"battery_drain_per_tick"`
	// AbortAtProgress, when > 0, aborts the mission at that progress
	// instead of completing it.
	AbortAtProgress int    `yaml:"abort_at_progress"`
	AbortReason     string `yaml:"abort_reason"`
}

// Scenario is the root of a simulation config file.
type Scenario struct {
	OrganizationID string        `yaml:"organization_id"`
	Drones         []DroneSpec   `yaml:"drones"`
	Missions       []MissionSpec `yaml:"missions"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks referential integrity and ranges.
func (s *Scenario) Validate() error {
	if s.OrganizationID == "" {
		return fmt.Errorf("scenario: organization_id is required")
	}
	if len(s.Drones) == 0 {
		return fmt.Errorf("scenario: at least one drone is required")
	}

	droneNames := make(map[string]bool, len(s.Drones))
	serials := make(map[string]bool, len(s.Drones))
	for i, d := range s.Drones {
		if d.Name == "" || d.SerialNumber == "" {
			return fmt.Errorf("scenario: drone %d needs name and serial_number", i)
		}
		if droneNames[d.Name] {
			return fmt.Errorf("scenario: duplicate drone name %q", d.Name)
		}
		if serials[d.SerialNumber] {
			return fmt.Errorf("scenario: duplicate serial number %q", d.SerialNumber)
		}
		droneNames[d.Name] = true
		serials[d.SerialNumber] = true
		if d.BatteryLevel < 0 || d.BatteryLevel > 100 {
			return fmt.Errorf("scenario: drone %q battery_level out of range", d.Name)
		}
	}

	for i, m := range s.Missions {
		if m.Name == "" {
			return fmt.Errorf("scenario: mission %d needs a name", i)
		}
		if m.Drone != "" && !droneNames[m.Drone] {
			return fmt.Errorf("scenario: mission %q references unknown drone %q", m.Name, m.Drone)
		}
		if m.ProgressPerTick <= 0 {
			return fmt.Errorf("scenario: mission %q needs progress_per_tick > 0", m.Name)
		}
		if m.AbortAtProgress < 0 || m.AbortAtProgress > 100 {
			return fmt.Errorf("scenario: mission %q abort_at_progress out of range", m.Name)
		}
	}
	return nil
}
