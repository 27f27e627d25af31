package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yajasvikhanna/Flytbase/internal/domain"
	"github.com/yajasvikhanna/Flytbase/internal/gateway"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/errors"
	"github.com/yajasvikhanna/Flytbase/internal/usecase"
)

// createMissionRequest is the mission creation body. The organization is
// taken from the caller's token, never from the body.
type createMissionRequest struct {
	Name              string                   `json:"name" binding:"required"`
	Description       string                   `json:"description"`
	Site              string                   `json:"site"`
	MissionType       domain.MissionType       `json:"mission_type"`
	DroneID           string                   `json:"drone_id"`
	SurveyAreaName    string                   `json:"survey_area_name"`
	SurveyArea        domain.SurveyArea        `json:"survey_area"`
	FlightPattern     domain.FlightPattern     `json:"flight_pattern"`
	PatternParameters domain.PatternParameters `json:"pattern_parameters"`
	Waypoints         []domain.Waypoint        `json:"waypoints"`
	ScheduledAt       *time.Time               `json:"scheduled_at"`
}

// CreateMission handles POST /missions.
func (s *Server) CreateMission(c *gin.Context) {
	var req createMissionRequest
	if !bindJSON(c, &req) {
		return
	}
	id := s.identity(c)

	m := &domain.Mission{
		OrganizationID:    id.OrganizationID,
		Name:              req.Name,
		Description:       req.Description,
		Site:              req.Site,
		MissionType:       req.MissionType,
		DroneID:           req.DroneID,
		SurveyAreaName:    req.SurveyAreaName,
		SurveyArea:        req.SurveyArea,
		FlightPattern:     req.FlightPattern,
		PatternParameters: req.PatternParameters,
		Waypoints:         req.Waypoints,
		CreatedBy:         id.Subject,
	}
	if req.ScheduledAt != nil {
		t := req.ScheduledAt.UTC()
		m.ScheduledAt = &t
	}

	created, err := s.coord.CreateMission(c.Request.Context(), m)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListMissions handles GET /missions?status=.
func (s *Server) ListMissions(c *gin.Context) {
	id := s.identity(c)
	status := domain.MissionStatus(c.Query("status"))

	missions, err := s.coord.ListMissions(c.Request.Context(), id.OrganizationID, status)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"missions": missions, "count": len(missions)})
}

// GetMission handles GET /missions/:id. Missions outside the caller's
// organization are indistinguishable from missing ones.
func (s *Server) GetMission(c *gin.Context) {
	m, ok := s.ownedMission(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, m)
}

// DeleteMission handles DELETE /missions/:id.
func (s *Server) DeleteMission(c *gin.Context) {
	if _, ok := s.ownedMission(c); !ok {
		return
	}
	if err := s.coord.DeleteMission(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// transitionRequest is the lifecycle command body.
type transitionRequest struct {
	Action  gateway.Action            `json:"action" binding:"required"`
	Payload usecase.TransitionPayload `json:"payload"`
}

// RequestTransition handles POST /missions/:id/transitions.
func (s *Server) RequestTransition(c *gin.Context) {
	var req transitionRequest
	if !bindJSON(c, &req) {
		return
	}

	m, d, err := s.gw.SubmitCommand(c.Request.Context(), s.identity(c), gateway.MissionCommand{
		MissionID: c.Param("id"),
		Action:    req.Action,
		Payload:   req.Payload,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mission": m, "drone": d})
}

// UpdateProgress handles POST /missions/:id/progress.
func (s *Server) UpdateProgress(c *gin.Context) {
	var req usecase.ProgressUpdate
	if !bindJSON(c, &req) {
		return
	}

	m, err := s.gw.SubmitProgress(c.Request.Context(), s.identity(c), c.Param("id"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// GetSnapshot handles GET /missions/:id/snapshot.
func (s *Server) GetSnapshot(c *gin.Context) {
	if _, ok := s.ownedMission(c); !ok {
		return
	}
	snap, err := s.coord.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetMissionReport handles GET /missions/:id/report.
func (s *Server) GetMissionReport(c *gin.Context) {
	if _, ok := s.ownedMission(c); !ok {
		return
	}
	r, err := s.coord.GetMissionReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// ownedMission loads the path mission and masks cross-organization access
// as not found.
func (s *Server) ownedMission(c *gin.Context) (*domain.Mission, bool) {
	missionID := c.Param("id")
	m, err := s.coord.GetMission(c.Request.Context(), missionID)
	if err != nil {
		_ = c.Error(err)
		return nil, false
	}
	if m.OrganizationID != s.identity(c).OrganizationID {
		_ = c.Error(errors.ErrMissionNotFound(missionID))
		return nil, false
	}
	return m, true
}
