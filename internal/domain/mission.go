// Package domain provides the entities of the mission coordination core:
// missions, drones, reports, and the events fanned out over the channel.
//
// The transition table in this file is the only place mission states and
// edges are defined. Everything that mutates a mission goes through the
// coordinator, which consults this table.
//
// Import Path: github.com/yajasvikhanna/Flytbase/internal/domain
package domain

import "time"

// MissionStatus represents the lifecycle state of a mission.
type MissionStatus string

const (
	MissionPlanned    MissionStatus = "planned"
	MissionScheduled  MissionStatus = "scheduled"
	MissionQueued     MissionStatus = "queued"
	MissionInProgress MissionStatus = "in-progress"
	MissionPaused     MissionStatus = "paused"
	MissionCompleted  MissionStatus = "completed"
	MissionAborted    MissionStatus = "aborted"
	MissionFailed     MissionStatus = "failed"
)

// missionTransitions is the closed set of legal status edges.
// `failed` is reachable from any non-terminal state and is handled in
// CanTransition rather than enumerated here.
var missionTransitions = map[MissionStatus]map[MissionStatus]bool{
	MissionPlanned: {
		MissionScheduled:  true,
		MissionQueued:     true,
		MissionInProgress: true,
	},
	MissionScheduled: {
		MissionQueued:     true,
		MissionInProgress: true,
		MissionAborted:    true,
	},
	MissionQueued: {
		MissionInProgress: true,
		MissionAborted:    true,
	},
	MissionInProgress: {
		MissionPaused:    true,
		MissionCompleted: true,
		MissionAborted:   true,
	},
	MissionPaused: {
		MissionInProgress: true,
		MissionCompleted:  true,
		MissionAborted:    true,
	},
}

// Valid reports whether s is a known mission status.
func (s MissionStatus) Valid() bool {
	switch s {
	case MissionPlanned, MissionScheduled, MissionQueued, MissionInProgress,
		MissionPaused, MissionCompleted, MissionAborted, MissionFailed:
		return true
	}
	return false
}

// Terminal reports whether s permits no further transitions.
func (s MissionStatus) Terminal() bool {
	return s == MissionCompleted || s == MissionAborted || s == MissionFailed
}

// CanTransition reports whether the edge from → to is in the transition table.
func CanTransition(from, to MissionStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == MissionFailed {
		// System-detected failure is legal from any non-terminal state.
		return true
	}
	return missionTransitions[from][to]
}

// FlightPattern is the sweep strategy over the survey area.
type FlightPattern string

const (
	PatternGrid       FlightPattern = "grid"
	PatternCrosshatch FlightPattern = "crosshatch"
	PatternSpiral     FlightPattern = "spiral"
	PatternPerimeter  FlightPattern = "perimeter"
	PatternCustom     FlightPattern = "custom"
)

// MissionType classifies what the survey is for.
type MissionType string

const (
	TypeInspection   MissionType = "inspection"
	TypeMapping      MissionType = "mapping"
	TypeSurveillance MissionType = "surveillance"
	TypeDelivery     MissionType = "delivery"
	TypeCustom       MissionType = "custom"
)

// Position is a geographic point.
type Position struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Altitude float64 `json:"altitude,omitempty"`
}

// SurveyArea is a GeoJSON-style polygon bounding the survey.
type SurveyArea struct {
	Type        string        `json:"type"` // always "Polygon"
	Coordinates [][][]float64 `json:"coordinates"`
}

// PatternParameters tune the flight pattern.
type PatternParameters struct {
	Altitude    float64 `json:"altitude"` // meters
	Speed       float64 `json:"speed"`    // m/s
	Overlap     float64 `json:"overlap,omitempty"`      // percent
	SideOverlap float64 `json:"side_overlap,omitempty"` // percent
	Spacing     float64 `json:"spacing,omitempty"`      // meters between lines
}

// Waypoint is one point of the planned flight path.
type Waypoint struct {
	Order     int     `json:"order"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Altitude  float64 `json:"altitude"`
	Action    string  `json:"action,omitempty"` // navigate, hover, capture, return
	HoverTime int     `json:"hover_time,omitempty"` // seconds
}

// LogEntry is one row of a mission's append-only event log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	Detail    string    `json:"detail,omitempty"`
}

// Mission represents a single planned or executed drone survey operation.
//
// Revision is the monotonically increasing version used by the coordinator's
// compare-and-swap protocol; it is bumped by the store on every successful
// write, never by callers.
type Mission struct {
	ID              string        `json:"id"`
	OrganizationID  string        `json:"organization_id"`
	Site            string        `json:"site,omitempty"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	MissionType     MissionType   `json:"mission_type"`
	Status          MissionStatus `json:"status"`
	Progress        int           `json:"progress"`
	CurrentWaypoint int           `json:"current_waypoint"`

	DroneID string `json:"drone_id,omitempty"`

	SurveyAreaName    string            `json:"survey_area_name,omitempty"`
	SurveyArea        SurveyArea        `json:"survey_area"`
	FlightPattern     FlightPattern     `json:"flight_pattern"`
	PatternParameters PatternParameters `json:"pattern_parameters"`
	Waypoints         []Waypoint        `json:"waypoints,omitempty"`

	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	ActualStart *time.Time `json:"actual_start,omitempty"`
	ActualEnd   *time.Time `json:"actual_end,omitempty"`
	AbortReason string     `json:"abort_reason,omitempty"`

	EventLog []LogEntry `json:"event_log,omitempty"`

	Revision  int64     `json:"revision"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppendLog adds a timestamped entry to the mission's event log.
func (m *Mission) AppendLog(event, detail string) {
	m.EventLog = append(m.EventLog, LogEntry{
		Timestamp: time.Now().UTC(),
		Event:     event,
		Detail:    detail,
	})
}

// EstimatedTimeRemaining derives the remaining flight time in seconds from
// elapsed time and progress. Zero when the mission is not flying, has made
// no progress yet, or is done.
func (m *Mission) EstimatedTimeRemaining(now time.Time) int {
	if m.Status != MissionInProgress || m.ActualStart == nil {
		return 0
	}
	if m.Progress <= 0 || m.Progress >= 100 {
		return 0
	}
	elapsed := now.Sub(*m.ActualStart).Seconds()
	if elapsed <= 0 {
		return 0
	}
	remaining := elapsed * float64(100-m.Progress) / float64(m.Progress)
	return int(remaining)
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate stored state behind the coordinator's back.
func (m *Mission) Clone() *Mission {
	if m == nil {
		return nil
	}
	out := *m
	if m.ScheduledAt != nil {
		t := *m.ScheduledAt
		out.ScheduledAt = &t
	}
	if m.ActualStart != nil {
		t := *m.ActualStart
		out.ActualStart = &t
	}
	if m.ActualEnd != nil {
		t := *m.ActualEnd
		out.ActualEnd = &t
	}
	out.Waypoints = append([]Waypoint(nil), m.Waypoints...)
	out.EventLog = append([]LogEntry(nil), m.EventLog...)
	if m.SurveyArea.Coordinates != nil {
		coords := make([][][]float64, len(m.SurveyArea.Coordinates))
		for i, ring := range m.SurveyArea.Coordinates {
			coords[i] = make([][]float64, len(ring))
			for j, pt := range ring {
				coords[i][j] = append([]float64(nil), pt...)
			}
		}
		out.SurveyArea.Coordinates = coords
	}
	return &out
}
