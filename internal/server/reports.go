package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetDashboard(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	rng, err := dateRangeQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	dash, err := s.reportSvc.Dashboard(c.Request.Context(), userID, rng)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dash)
}

func (s *Server) GetInsights(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	insights, err := s.reportSvc.Insights(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, insights)
}

func (s *Server) GetReportSummary(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	q, err := periodQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	report, err := s.reportSvc.Report(c.Request.Context(), userID, q)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) ExportReport(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	q, err := periodQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	export, err := s.reportSvc.Export(c.Request.Context(), userID, q, c.Query("format"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Header("Content-Type", export.ContentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, export.Body); err != nil {
		_ = c.Error(err)
	}
}

func (s *Server) GetTaxSummary(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	q, err := periodQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	summary, err := s.reportSvc.TaxSummary(c.Request.Context(), userID, q)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
