package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yajasvikhanna/Flytbase/internal/domain"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/errors"
	"github.com/yajasvikhanna/Flytbase/internal/usecase"
)

// registerDroneRequest is the drone registration body.
type registerDroneRequest struct {
	Name         string             `json:"name" binding:"required"`
	SerialNumber string             `json:"serial_number" binding:"required"`
	Model        string             `json:"model"`
	Site         string             `json:"site"`
	Status       domain.DroneStatus `json:"status"`
	BatteryLevel int                `json:"battery_level"`
	BaseLocation *domain.Position   `json:"base_location"`
}

// RegisterDrone handles POST /drones.
func (s *Server) RegisterDrone(c *gin.Context) {
	var req registerDroneRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.BatteryLevel < 0 || req.BatteryLevel > 100 {
		_ = c.Error(errors.ErrValidation("battery_level", "battery level must be between 0 and 100"))
		return
	}
	id := s.identity(c)

	d, err := s.coord.RegisterDrone(c.Request.Context(), &domain.Drone{
		OrganizationID: id.OrganizationID,
		Name:           req.Name,
		SerialNumber:   req.SerialNumber,
		Model:          req.Model,
		Site:           req.Site,
		Status:         req.Status,
		BatteryLevel:   req.BatteryLevel,
		BaseLocation:   req.BaseLocation,
		CreatedBy:      id.Subject,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// ListDrones handles GET /drones.
func (s *Server) ListDrones(c *gin.Context) {
	drones, err := s.coord.ListDrones(c.Request.Context(), s.identity(c).OrganizationID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drones": drones, "count": len(drones)})
}

// GetDrone handles GET /drones/:id, masking cross-organization access as
// not found.
func (s *Server) GetDrone(c *gin.Context) {
	droneID := c.Param("id")
	d, err := s.coord.GetDrone(c.Request.Context(), droneID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if d.OrganizationID != s.identity(c).OrganizationID {
		_ = c.Error(errors.ErrDroneNotFound(droneID))
		return
	}
	c.JSON(http.StatusOK, d)
}

// UpdateTelemetry handles POST /drones/:id/telemetry.
func (s *Server) UpdateTelemetry(c *gin.Context) {
	var req usecase.TelemetryUpdate
	if !bindJSON(c, &req) {
		return
	}

	d, err := s.gw.SubmitTelemetry(c.Request.Context(), s.identity(c), c.Param("id"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, d)
}
