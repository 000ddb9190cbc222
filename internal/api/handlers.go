package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"driftwatch/internal/remediate"
	"driftwatch/pkg/sdk/types"

	"github.com/gin-gonic/gin"
)

const (
	CodeScanNotReady      = "SCAN_NOT_READY"
	CodeRestartDisabled   = "RESTART_DISABLED"
	CodeRestartInProgress = "RESTART_IN_PROGRESS"
	CodeBadRequest        = "BAD_REQUEST"
	CodeInternal          = "INTERNAL"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{Code: code, Message: message}})
}

func (s *Server) health(c *gin.Context) {
	c.String(http.StatusOK, "OK\n")
}

func (s *Server) getScan(c *gin.Context) {
	result := s.deps.Cache.Cached()
	if result == nil {
		abortWithError(c, http.StatusServiceUnavailable, CodeScanNotReady, "no scan has completed yet")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) triggerScan(c *gin.Context) {
	s.deps.Cache.TriggerAsync()
	s.deps.Cache.Postpone()
	c.JSON(http.StatusAccepted, gin.H{"status": "scan started"})
}

func (s *Server) getOutdated(c *gin.Context) {
	result := s.deps.Cache.Cached()
	if result == nil {
		abortWithError(c, http.StatusServiceUnavailable, CodeScanNotReady, "no scan has completed yet")
		return
	}
	c.JSON(http.StatusOK, types.OutdatedResponse{Units: result.OutdatedUnits()})
}

func (s *Server) restartOutdated(c *gin.Context) {
	if s.deps.Restarter == nil {
		abortWithError(c, http.StatusNotFound, CodeRestartDisabled, "restarts are disabled on this host")
		return
	}

	var req types.RestartRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, CodeBadRequest, "invalid restart request")
			return
		}
	}

	units := req.Units
	if len(units) == 0 {
		result := s.deps.Cache.Cached()
		if result == nil {
			abortWithError(c, http.StatusServiceUnavailable, CodeScanNotReady, "no scan has completed yet")
			return
		}
		units = result.OutdatedUnits()
	}
	if len(units) == 0 {
		c.JSON(http.StatusOK, types.RestartResponse{Status: "nothing to restart", Units: units})
		return
	}

	// The batch outlives the request.
	if err := s.deps.Restarter.Go(context.WithoutCancel(c.Request.Context()), units); err != nil {
		if errors.Is(err, remediate.ErrBusy) {
			abortWithError(c, http.StatusConflict, CodeRestartInProgress, err.Error())
			return
		}
		s.log.Error("start restart batch", "err", err)
		abortWithError(c, http.StatusInternalServerError, CodeInternal, "failed to start restart")
		return
	}
	c.JSON(http.StatusAccepted, types.RestartResponse{Status: "restart started", Units: units})
}

func (s *Server) listRestarts(c *gin.Context) {
	if s.deps.History == nil {
		abortWithError(c, http.StatusNotFound, CodeRestartDisabled, "restarts are disabled on this host")
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			abortWithError(c, http.StatusBadRequest, CodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.deps.History.ListRestarts(c.Request.Context(), c.Query("path"), limit)
	if err != nil {
		s.log.Error("list restarts", "err", err)
		abortWithError(c, http.StatusInternalServerError, CodeInternal, "failed to list restarts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"restarts": records})
}
