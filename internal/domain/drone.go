package domain

import "time"

// DroneStatus represents the operational state of a drone.
type DroneStatus string

const (
	DroneAvailable   DroneStatus = "available"
	DroneAssigned    DroneStatus = "assigned"
	DroneInMission   DroneStatus = "in-mission"
	DroneMaintenance DroneStatus = "maintenance"
	DroneOffline     DroneStatus = "offline"
	DroneCharging    DroneStatus = "charging"
)

// Valid reports whether s is a known drone status.
func (s DroneStatus) Valid() bool {
	switch s {
	case DroneAvailable, DroneAssigned, DroneInMission,
		DroneMaintenance, DroneOffline, DroneCharging:
		return true
	}
	return false
}

// Busy reports whether the drone is reserved by or flying a mission.
// Invariant: Busy() ⇔ CurrentMissionID != "".
func (s DroneStatus) Busy() bool {
	return s == DroneAssigned || s == DroneInMission
}

// Drone represents a physical vehicle that can be reserved by at most one
// active mission at a time.
//
// CurrentMissionID is a back-reference only; the mission side owns the
// assignment and the coordinator keeps the two consistent.
type Drone struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organization_id"`
	Name           string      `json:"name"`
	SerialNumber   string      `json:"serial_number"`
	Model          string      `json:"model,omitempty"`
	Status         DroneStatus `json:"status"`
	BatteryLevel   int         `json:"battery_level"`
	Site           string      `json:"site,omitempty"`

	CurrentMissionID  string    `json:"current_mission_id,omitempty"`
	BaseLocation      *Position `json:"base_location,omitempty"`
	LastKnownPosition *Position `json:"last_known_position,omitempty"`

	Revision  int64     `json:"revision"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Busy reports whether the drone is reserved by or flying a mission.
func (d *Drone) Busy() bool {
	return d.Status.Busy()
}

// Clone returns a deep copy.
func (d *Drone) Clone() *Drone {
	if d == nil {
		return nil
	}
	out := *d
	if d.BaseLocation != nil {
		p := *d.BaseLocation
		out.BaseLocation = &p
	}
	if d.LastKnownPosition != nil {
		p := *d.LastKnownPosition
		out.LastKnownPosition = &p
	}
	return &out
}
