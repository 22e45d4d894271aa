package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/volunteer-hub-api/internal/models"
	"github.com/noah-isme/volunteer-hub-api/internal/service"
	appErrors "github.com/noah-isme/volunteer-hub-api/pkg/errors"
	"github.com/noah-isme/volunteer-hub-api/pkg/response"
)

// CheckInRequest is the student check-in payload.
type CheckInRequest struct {
	Token string `json:"token" binding:"required"`
}

// CheckHandler exposes the attendance endpoints: token issuance, check-in,
// check-out and the review queue.
type CheckHandler struct {
	checks *service.CheckService
}

// NewCheckHandler constructs CheckHandler.
func NewCheckHandler(checks *service.CheckService) *CheckHandler {
	return &CheckHandler{checks: checks}
}

// CreateCheckInToken godoc
// @Summary Issue a shared check-in token for an activity
// @Tags Checks
// @Produce json
// @Param id path string true "Activity ID"
// @Param ttl query int false "Validity in seconds"
// @Success 201 {object} response.Envelope
// @Router /activities/{id}/tokens/check-in [post]
func (h *CheckHandler) CreateCheckInToken(c *gin.Context) {
	h.createToken(c, models.SignActionCheckIn)
}

// CreateCheckOutToken godoc
// @Summary Issue a shared check-out token for an activity
// @Tags Checks
// @Produce json
// @Param id path string true "Activity ID"
// @Param ttl query int false "Validity in seconds"
// @Success 201 {object} response.Envelope
// @Router /activities/{id}/tokens/check-out [post]
func (h *CheckHandler) CreateCheckOutToken(c *gin.Context) {
	h.createToken(c, models.SignActionCheckOut)
}

func (h *CheckHandler) createToken(c *gin.Context, action models.SignAction) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var ttl time.Duration
	if raw := c.Query("ttl"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "ttl must be a positive number of seconds"))
			return
		}
		ttl = time.Duration(seconds) * time.Second
	}

	var (
		token *models.CheckToken
		err   error
	)
	if action == models.SignActionCheckIn {
		token, err = h.checks.CreateCheckInToken(c.Request.Context(), claims.UserID, c.Param("id"), ttl)
	} else {
		token, err = h.checks.CreateCheckOutToken(c.Request.Context(), claims.UserID, c.Param("id"), ttl)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, token)
}

// CheckIn godoc
// @Summary Check in to an activity with a token
// @Tags Checks
// @Accept json
// @Produce json
// @Param payload body CheckInRequest true "Check-in payload"
// @Success 200 {object} response.Envelope
// @Router /checks/in [post]
func (h *CheckHandler) CheckIn(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	signup, err := h.checks.CheckIn(c.Request.Context(), claims.UserID, req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, signup, nil)
}

// CheckOut godoc
// @Summary Check out of an activity with a token
// @Tags Checks
// @Accept json
// @Produce json
// @Param payload body service.CheckOutRequest true "Check-out payload"
// @Success 200 {object} response.Envelope
// @Router /checks/out [post]
func (h *CheckHandler) CheckOut(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CheckOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	signup, err := h.checks.CheckOut(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, signup, nil)
}

// PendingCheckIn godoc
// @Summary List approved students who have not checked in
// @Tags Checks
// @Produce json
// @Param id path string true "Activity ID"
// @Success 200 {object} response.Envelope
// @Router /activities/{id}/pending-check-ins [get]
func (h *CheckHandler) PendingCheckIn(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	rows, err := h.checks.PendingCheckIn(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// PendingCheckOut godoc
// @Summary List checked-in students who have not checked out
// @Tags Checks
// @Produce json
// @Param id path string true "Activity ID"
// @Success 200 {object} response.Envelope
// @Router /activities/{id}/pending-check-outs [get]
func (h *CheckHandler) PendingCheckOut(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	rows, err := h.checks.PendingCheckOut(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// SearchReviews godoc
// @Summary Search the organizer review queue
// @Tags Reviews
// @Produce json
// @Param activityId query string false "Filter by activity"
// @Param keyword query string false "Student name or number"
// @Param status query string false "PENDING or REVIEWED"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reviews [get]
func (h *CheckHandler) SearchReviews(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.ReviewSearchFilter{
		OrganizerID: claims.UserID,
		ActivityID:  c.Query("activityId"),
		Keyword:     c.Query("keyword"),
	}
	if raw := strings.ToUpper(c.Query("status")); raw != "" {
		status := models.ReviewStatus(raw)
		if !status.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "status must be PENDING or REVIEWED"))
			return
		}
		filter.ReviewStatus = &status
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	rows, pagination, err := h.checks.SearchReviews(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// Review godoc
// @Summary Rate a checked-out signup
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Signup ID"
// @Param payload body service.ReviewRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Router /reviews/{id} [put]
func (h *CheckHandler) Review(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	signup, err := h.checks.Review(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, signup, nil)
}
