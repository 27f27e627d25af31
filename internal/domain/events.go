package domain

import (
	"fmt"
	"strings"
	"time"
)

// EventName identifies the kind of event delivered over the channel.
type EventName string

const (
	EventMissionStatus EventName = "mission:status"
	EventDroneUpdate   EventName = "drone:update"
	EventError         EventName = "error"
)

// Topic is an addressable broadcast channel. Three families exist:
// org:<organizationId>, mission:<missionId>, site:<siteName>.
type Topic string

// TopicKind is the family a topic belongs to.
type TopicKind string

const (
	TopicOrg     TopicKind = "org"
	TopicMission TopicKind = "mission"
	TopicSite    TopicKind = "site"
)

// OrgTopic returns the per-organization topic.
func OrgTopic(organizationID string) Topic {
	return Topic("org:" + organizationID)
}

// MissionTopic returns the per-mission topic.
func MissionTopic(missionID string) Topic {
	return Topic("mission:" + missionID)
}

// SiteTopic returns the per-site topic.
func SiteTopic(site string) Topic {
	return Topic("site:" + site)
}

// Parse splits the topic into its kind and identifier.
func (t Topic) Parse() (TopicKind, string, error) {
	kind, id, ok := strings.Cut(string(t), ":")
	if !ok || id == "" {
		return "", "", fmt.Errorf("malformed topic %q", t)
	}
	switch TopicKind(kind) {
	case TopicOrg, TopicMission, TopicSite:
		return TopicKind(kind), id, nil
	}
	return "", "", fmt.Errorf("unknown topic family %q", kind)
}

// MissionStatusEvent is the status snapshot published on every successful
// coordinator transition, and sent to a subscriber right after it joins a
// mission topic.
type MissionStatusEvent struct {
	MissionID              string        `json:"mission_id"`
	Status                 MissionStatus `json:"status"`
	Progress               int           `json:"progress"`
	CurrentWaypoint        int           `json:"current_waypoint"`
	EstimatedTimeRemaining int           `json:"estimated_time_remaining"` // seconds
	Message                string        `json:"message,omitempty"`
}

// NewMissionStatusEvent builds the snapshot for a mission.
func NewMissionStatusEvent(m *Mission, message string) MissionStatusEvent {
	return MissionStatusEvent{
		MissionID:              m.ID,
		Status:                 m.Status,
		Progress:               m.Progress,
		CurrentWaypoint:        m.CurrentWaypoint,
		EstimatedTimeRemaining: m.EstimatedTimeRemaining(time.Now()),
		Message:                message,
	}
}

// DroneUpdateEvent is published to the organization topic (and the drone's
// site topic, if any) on every accepted telemetry update.
type DroneUpdateEvent struct {
	DroneID           string      `json:"drone_id"`
	Status            DroneStatus `json:"status"`
	BatteryLevel      int         `json:"battery_level"`
	LastKnownPosition *Position   `json:"last_known_position,omitempty"`
}

// NewDroneUpdateEvent builds the telemetry snapshot for a drone.
func NewDroneUpdateEvent(d *Drone) DroneUpdateEvent {
	return DroneUpdateEvent{
		DroneID:           d.ID,
		Status:            d.Status,
		BatteryLevel:      d.BatteryLevel,
		LastKnownPosition: d.LastKnownPosition.Clone(),
	}
}

// ErrorEvent is delivered to the offending connection only, never broadcast.
type ErrorEvent struct {
	Message string `json:"message"`
}

// Clone returns a copy of the position, or nil.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	out := *p
	return &out
}
