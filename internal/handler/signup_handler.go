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

// SignupHandler exposes registration lifecycle endpoints.
type SignupHandler struct {
	signups *service.SignupService
}

// NewSignupHandler constructs SignupHandler.
func NewSignupHandler(signups *service.SignupService) *SignupHandler {
	return &SignupHandler{signups: signups}
}

// Create godoc
// @Summary Register for an activity
// @Tags Signups
// @Accept json
// @Produce json
// @Param payload body service.CreateSignupRequest true "Signup payload"
// @Success 201 {object} response.Envelope
// @Router /signups [post]
func (h *SignupHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	signup, err := h.signups.Register(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, signup)
}

// ListMine godoc
// @Summary List the caller's signups
// @Tags Signups
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /signups/mine [get]
func (h *SignupHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := signupFilterFromQuery(c)
	filter.UserID = claims.UserID

	signups, pagination, err := h.signups.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, signups, pagination)
}

// ListForActivity godoc
// @Summary List signups of one of the organizer's activities
// @Tags Signups
// @Produce json
// @Param id path string true "Activity ID"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /activities/{id}/signups [get]
func (h *SignupHandler) ListForActivity(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := signupFilterFromQuery(c)
	filter.ActivityID = c.Param("id")

	signups, pagination, err := h.signups.ListForActivity(c.Request.Context(), claims.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, signups, pagination)
}

// Approve godoc
// @Summary Approve a pending signup
// @Tags Signups
// @Produce json
// @Param id path string true "Signup ID"
// @Success 200 {object} response.Envelope
// @Router /signups/{id}/approve [put]
func (h *SignupHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	signup, err := h.signups.Approve(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, signup, nil)
}

// Reject godoc
// @Summary Reject a pending signup
// @Tags Signups
// @Accept json
// @Produce json
// @Param id path string true "Signup ID"
// @Param payload body service.RejectSignupRequest false "Rejection payload"
// @Success 200 {object} response.Envelope
// @Router /signups/{id}/reject [put]
func (h *SignupHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RejectSignupRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	signup, err := h.signups.Reject(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, signup, nil)
}

// Delete godoc
// @Summary Cancel the caller's own signup
// @Tags Signups
// @Produce json
// @Param id path string true "Signup ID"
// @Success 204
// @Router /signups/{id} [delete]
func (h *SignupHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.signups.Cancel(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func signupFilterFromQuery(c *gin.Context) models.SignupFilter {
	var filter models.SignupFilter
	if raw := strings.ToUpper(c.Query("status")); raw != "" {
		status := models.SignupStatus(raw)
		if status.Valid() {
			filter.Status = &status
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}
