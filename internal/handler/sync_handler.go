package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/RicardoRB/socialstats/internal/dto"
	"github.com/RicardoRB/socialstats/internal/service"
	"github.com/gin-gonic/gin"
)

// SyncHandler handles metric sync triggers
type SyncHandler struct {
	syncService service.SyncRunner
	// defaultWindow is the trailing window used when the request body
	// carries no dates.
	defaultWindow time.Duration
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(syncService service.SyncRunner, defaultWindow time.Duration) *SyncHandler {
	return &SyncHandler{
		syncService:   syncService,
		defaultWindow: defaultWindow,
	}
}

// Trigger runs a sync for all of the user's accounts on one provider
// @Summary Trigger a metrics sync
// @Description Sync metrics for every linked account of the given provider
// @Tags sync
// @Accept json
// @Produce json
// @Param provider path string true "Provider id"
// @Param request body dto.SyncRequest false "Optional date window"
// @Success 200 {object} dto.SyncResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /sync/{provider} [post]
func (h *SyncHandler) Trigger(c *gin.Context) {
	providerID := c.Param("provider")
	userID := c.GetString("user_id")

	var req dto.SyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Message: err.Error(),
			})
			return
		}
	}

	from, to, err := h.resolveWindow(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	results, err := h.syncService.Run(c.Request.Context(), userID, providerID, from, to)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedProvider) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Bad request",
				Message: "Unsupported provider: " + providerID,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Sync failed",
		})
		return
	}

	if len(results) == 0 {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "Not found",
			Message: "No linked accounts for provider " + providerID,
		})
		return
	}

	outcomes := make([]dto.SyncOutcome, 0, len(results))
	for _, r := range results {
		outcomes = append(outcomes, dto.SyncOutcome{
			AccountID: r.AccountID,
			JobID:     r.JobID,
			Status:    r.Status,
			Reason:    r.Reason,
			Error:     r.Error,
		})
	}

	c.JSON(http.StatusOK, dto.SyncResponse{
		JobID:   outcomes[0].JobID,
		Status:  outcomes[0].Status,
		Results: outcomes,
	})
}

// resolveWindow turns the optional request dates into a concrete window,
// defaulting to the configured trailing window ending today.
func (h *SyncHandler) resolveWindow(req dto.SyncRequest) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	to := now
	from := now.Add(-h.defaultWindow)

	if req.ToDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ToDate)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("toDate must be an ISO date (YYYY-MM-DD)")
		}
		to = parsed
	}
	if req.FromDate != "" {
		parsed, err := time.Parse("2006-01-02", req.FromDate)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("fromDate must be an ISO date (YYYY-MM-DD)")
		}
		from = parsed
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, errors.New("fromDate must not be after toDate")
	}
	return from, to, nil
}
