package handler

import (
	"net/http"
	"time"

	"github.com/RicardoRB/socialstats/internal/dto"
	"github.com/RicardoRB/socialstats/internal/service"
	"github.com/gin-gonic/gin"
)

// MetricsHandler serves aggregated metrics and linked account listings
type MetricsHandler struct {
	metricsService service.MetricsReader
	accountService service.AccountLister
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(metricsService service.MetricsReader, accountService service.AccountLister) *MetricsHandler {
	return &MetricsHandler{
		metricsService: metricsService,
		accountService: accountService,
	}
}

// Overview returns aggregated metrics for a date window
// @Summary Metrics overview
// @Description Aggregate stored metrics into totals, per-provider totals and a time series
// @Tags metrics
// @Produce json
// @Param from query string true "Window start (YYYY-MM-DD)"
// @Param to query string true "Window end (YYYY-MM-DD)"
// @Success 200 {object} service.MetricsOverview
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /metrics/overview [get]
func (h *MetricsHandler) Overview(c *gin.Context) {
	userID := c.GetString("user_id")

	from := c.Query("from")
	to := c.Query("to")
	if !validISODate(from) || !validISODate(to) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: "from and to must be ISO dates (YYYY-MM-DD)",
		})
		return
	}

	overview, err := h.metricsService.Overview(c.Request.Context(), userID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Failed to aggregate metrics",
		})
		return
	}

	// Dashboards poll this endpoint; let CDNs absorb the repeats.
	c.Header("Cache-Control", "public, s-maxage=60, stale-while-revalidate=30")
	c.JSON(http.StatusOK, overview)
}

// Accounts lists the user's linked social accounts
// @Summary List linked accounts
// @Description List the user's linked social accounts with credentials stripped
// @Tags accounts
// @Produce json
// @Success 200 {array} dto.SocialAccountResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /social-accounts [get]
func (h *MetricsHandler) Accounts(c *gin.Context) {
	userID := c.GetString("user_id")

	accounts, err := h.accountService.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Failed to list accounts",
		})
		return
	}

	c.JSON(http.StatusOK, accounts)
}

func validISODate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
