// Package handlers implements the HTTP surface of the mission coordination
// service.
//
// Handlers bind and forward; validation lives in the gateway and all state
// mutation lives in the coordinator. Errors are attached with c.Error and
// rendered by the ErrorHandler middleware.
//
// Import Path: github.com/yajasvikhanna/Flytbase/internal/api/handlers
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yajasvikhanna/Flytbase/internal/api/middleware"
	"github.com/yajasvikhanna/Flytbase/internal/channel"
	"github.com/yajasvikhanna/Flytbase/internal/gateway"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/errors"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/worker"
	"github.com/yajasvikhanna/Flytbase/internal/usecase"
)

// Server holds handler dependencies.
type Server struct {
	coord *usecase.Coordinator
	gw    *gateway.Gateway
	ws    *channel.WSServer
	pools *worker.Pools
}

// NewServer creates the handler set.
func NewServer(coord *usecase.Coordinator, gw *gateway.Gateway, ws *channel.WSServer, pools *worker.Pools) *Server {
	return &Server{coord: coord, gw: gw, ws: ws, pools: pools}
}

// RegisterRoutes mounts every route on the engine. Routes under /api/v1
// expect the JWT middleware to have populated the caller's identity.
func (s *Server) RegisterRoutes(api *gin.RouterGroup) {
	missions := api.Group("/missions")
	{
		missions.POST("", s.CreateMission)
		missions.GET("", s.ListMissions)
		missions.GET("/:id", s.GetMission)
		missions.DELETE("/:id", s.DeleteMission)
		missions.POST("/:id/transitions", s.RequestTransition)
		missions.POST("/:id/progress", s.UpdateProgress)
		missions.GET("/:id/snapshot", s.GetSnapshot)
		missions.GET("/:id/report", s.GetMissionReport)
	}

	drones := api.Group("/drones")
	{
		drones.POST("", s.RegisterDrone)
		drones.GET("", s.ListDrones)
		drones.GET("/:id", s.GetDrone)
		drones.POST("/:id/telemetry", s.UpdateTelemetry)
	}

	reports := api.Group("/reports")
	{
		reports.GET("", s.ListReports)
		reports.GET("/:id", s.GetReport)
	}

	api.GET("/events", s.Events)
}

// identity derives the gateway identity from the authenticated request.
func (s *Server) identity(c *gin.Context) gateway.Identity {
	ctx := c.Request.Context()
	return gateway.Identity{
		Subject:        middleware.GetUserID(ctx),
		OrganizationID: middleware.GetOrganizationID(ctx),
	}
}

// Events upgrades the request to a websocket observer connection.
func (s *Server) Events(c *gin.Context) {
	org := middleware.GetOrganizationID(c.Request.Context())
	if org == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":    errors.CodeAuthFailed,
			"message": "authentication required",
		})
		return
	}
	s.ws.Handle(c.Writer, c.Request, org)
}

// Healthz reports liveness plus worker pool headroom. Mounted outside the
// authenticated group.
func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"workers": s.pools.Metrics(),
	})
}

// bindJSON binds the body and converts bind failures into validation errors.
func bindJSON(c *gin.Context, out interface{}) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		_ = c.Error(errors.Wrap(err, errors.CodeValidationFailed, "malformed request body", http.StatusBadRequest))
		return false
	}
	return true
}
