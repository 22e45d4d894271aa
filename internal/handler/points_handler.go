package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/volunteer-hub-api/internal/models"
	"github.com/noah-isme/volunteer-hub-api/internal/service"
	appErrors "github.com/noah-isme/volunteer-hub-api/pkg/errors"
	"github.com/noah-isme/volunteer-hub-api/pkg/response"
)

// PointsHandler exposes reward balance, ledger and leaderboard endpoints.
type PointsHandler struct {
	points *service.PointsService
}

// NewPointsHandler constructs PointsHandler.
func NewPointsHandler(points *service.PointsService) *PointsHandler {
	return &PointsHandler{points: points}
}

// MyStats godoc
// @Summary Show the caller's reward standing
// @Tags Points
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /points/me [get]
func (h *PointsHandler) MyStats(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stats, err := h.points.Stats(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// MyLedger godoc
// @Summary List the caller's ledger entries
// @Tags Points
// @Produce json
// @Param source query string false "Filter by source"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /points/me/ledger [get]
func (h *PointsHandler) MyLedger(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.PointsLedgerFilter{UserID: claims.UserID}
	if raw := strings.ToUpper(c.Query("source")); raw != "" {
		source := models.PointsSource(raw)
		if !source.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown ledger source"))
			return
		}
		filter.Source = &source
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	entries, pagination, err := h.points.Ledger(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Ranking godoc
// @Summary Show the student leaderboard
// @Tags Points
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /points/ranking [get]
func (h *PointsHandler) Ranking(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	rows, pagination, err := h.points.Ranking(c.Request.Context(), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// Adjust godoc
// @Summary Append a manual ledger adjustment
// @Tags Points
// @Accept json
// @Produce json
// @Param payload body service.ManualAdjustRequest true "Adjustment payload"
// @Success 201 {object} response.Envelope
// @Router /points/adjustments [post]
func (h *PointsHandler) Adjust(c *gin.Context) {
	var req service.ManualAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.points.ManualAdjust(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}
