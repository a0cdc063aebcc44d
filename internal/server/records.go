package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/taxmate/internal/ingest"
	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
)

func (s *Server) CreateRecord(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req ingest.RecordInput
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, err := s.ingestSvc.Create(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": record})
}

func (s *Server) ListRecords(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	rng, err := dateRangeQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	pageSize, err := parseOptionalInt(c.Query("page_size"))
	if err != nil || pageSize < 0 {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "invalid page_size"))
		return
	}

	resp, err := s.records.List(c.Request.Context(), userID, domain.ListRequest{
		Range:     rng,
		PageToken: strings.TrimSpace(c.Query("page_token")),
		PageSize:  pageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
