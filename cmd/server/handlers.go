package main

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/profile-plausibility/internal/dispatch"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/errors"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/frontend"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/types"
)

// handleAnalyze godoc
// @Summary      Analyze a profile URL
// @Description  Validates the profile URL, waits the analysis delay and returns the synthetic report. A newer request from the same session supersedes a pending one.
// @Tags         analysis
// @Accept       json
// @Produce      json
// @Param        X-Session-ID  header  string                false "Session key; falls back to the session cookie"
// @Param        request       body    types.AnalyzeRequest  true  "Profile URL"
// @Success      200  {object}  types.AnalyzeResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      409  {object}  types.ErrorResponse
// @Failure      429  {object}  types.ErrorResponse
// @Failure      504  {object}  types.ErrorResponse
// @Router       /api/analyze [post]
func (s *server) handleAnalyze(c *gin.Context) {
	var req types.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.metrics.IncrementValidationFailure()
		errors.Abort(c, errors.NewValidationError("Invalid request body", err.Error()))
		return
	}

	profileURL, err := s.validate(req.ProfileURL)
	if err != nil {
		errors.Abort(c, errors.ToAppError(err))
		return
	}

	report, err := s.dispatcher.Submit(c.Request.Context(), frontend.SessionID(c), profileURL)
	if err != nil {
		if stderrors.Is(err, dispatch.ErrSuperseded) {
			errors.Abort(c, errors.NewSupersededError(err))
			return
		}
		errors.Abort(c, errors.ToAppError(err))
		return
	}

	c.JSON(http.StatusOK, types.AnalyzeResponse{
		ProfileURL: profileURL,
		Report:     report,
	})
}

// handleValidate godoc
// @Summary      Validate a profile URL
// @Description  Runs only the profile URL gate
// @Tags         analysis
// @Accept       json
// @Produce      json
// @Param        request  body      types.ValidateRequest  true  "Profile URL"
// @Success      200      {object}  types.ValidateResponse
// @Failure      400      {object}  types.ErrorResponse
// @Router       /api/validate [post]
func (s *server) handleValidate(c *gin.Context) {
	var req types.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.Abort(c, errors.NewValidationError("Invalid request body", err.Error()))
		return
	}

	if _, err := s.validate(req.ProfileURL); err != nil {
		c.JSON(http.StatusOK, types.ValidateResponse{
			Valid: false,
			Error: errors.ToAppError(err).ErrBuilder.Msg,
		})
		return
	}

	c.JSON(http.StatusOK, types.ValidateResponse{Valid: true})
}

// handleHealth godoc
// @Summary      Health check
// @Tags         operations
// @Produce      json
// @Success      200  {object}  types.HealthResponse
// @Router       /health [get]
func (s *server) handleHealth(c *gin.Context) {
	redisStatus := s.redis.Status(c.Request.Context())

	status := "ok"
	if redisStatus == "unreachable" {
		// the limiter keeps working on its in-memory fallback
		status = "degraded"
	}

	c.JSON(http.StatusOK, types.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Redis:     redisStatus,
		Uptime:    time.Since(s.metrics.StartTime).Round(time.Second).String(),
	})
}

// handleMetrics godoc
// @Summary      Server metrics
// @Tags         operations
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /metrics [get]
func (s *server) handleMetrics(c *gin.Context) {
	stats := s.metrics.GetStats()
	stats["rate_limiter"] = s.limiter.GetStats()
	if s.cfg.EnableCompression {
		stats["compression"] = s.compression.GetStats()
	}
	c.JSON(http.StatusOK, stats)
}

// handleCacheStats godoc
// @Summary      Report cache statistics
// @Tags         operations
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /cache/stats [get]
func (s *server) handleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.reports.Stats())
}
