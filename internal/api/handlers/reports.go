package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yajasvikhanna/Flytbase/internal/pkg/errors"
)

// ListReports handles GET /reports.
func (s *Server) ListReports(c *gin.Context) {
	reports, err := s.coord.ListReports(c.Request.Context(), s.identity(c).OrganizationID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

// GetReport handles GET /reports/:id, masking cross-organization access as
// not found.
func (s *Server) GetReport(c *gin.Context) {
	r, err := s.coord.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if r.OrganizationID != s.identity(c).OrganizationID {
		_ = c.Error(errors.NotFound(errors.CodeReportNotFound, "report not found"))
		return
	}
	c.JSON(http.StatusOK, r)
}
