package domain

import "time"

// Report is the immutable, one-per-mission summary produced when a mission
// reaches a terminal state. It is a frozen snapshot of the mission at
// generation time, not a live view.
type Report struct {
	ID             string        `json:"id"`
	MissionID      string        `json:"mission_id"`
	OrganizationID string        `json:"organization_id"`
	MissionName    string        `json:"mission_name"`
	DroneID        string        `json:"drone_id,omitempty"`
	MissionType    MissionType   `json:"mission_type"`
	Status         MissionStatus `json:"status"` // terminal status copied from the mission

	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMinutes float64    `json:"duration_minutes"`

	SurveyAreaName string     `json:"survey_area_name,omitempty"`
	CoverageArea   SurveyArea `json:"coverage_area"`
	Waypoints      []Waypoint `json:"waypoints,omitempty"`

	Summary  string     `json:"summary,omitempty"`
	EventLog []LogEntry `json:"event_log,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	out := *r
	if r.StartTime != nil {
		t := *r.StartTime
		out.StartTime = &t
	}
	if r.EndTime != nil {
		t := *r.EndTime
		out.EndTime = &t
	}
	out.Waypoints = append([]Waypoint(nil), r.Waypoints...)
	out.EventLog = append([]LogEntry(nil), r.EventLog...)
	return &out
}
