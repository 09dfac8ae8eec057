package handler

import (
	"courier-dispatch/internal/adapter/http/dto"
	"courier-dispatch/internal/adapter/http/middleware"
	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"
	"courier-dispatch/pkg/apperror"
	"courier-dispatch/pkg/response"

	"github.com/gin-gonic/gin"
)

// RiderHandler serves the rider dashboard.
type RiderHandler struct {
	deliveries ports.DeliveryService
	insights   ports.InsightService
}

// NewRiderHandler creates a new RiderHandler.
func NewRiderHandler(deliveries ports.DeliveryService, insights ports.InsightService) *RiderHandler {
	return &RiderHandler{deliveries: deliveries, insights: insights}
}

// Jobs handles GET /api/v1/rider/jobs: open jobs plus the rider's own active ones.
func (h *RiderHandler) Jobs(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	active, err := h.deliveries.ActiveJobs(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	jobs := make([]*domain.Delivery, 0, len(active))
	for _, d := range active {
		if canSee(user, d) {
			jobs = append(jobs, d)
		}
	}
	response.OK(c, jobs)
}

// Advance handles POST /api/v1/rider/jobs/:id/advance.
func (h *RiderHandler) Advance(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	id := c.Param("id")
	if !dto.ValidID(id) {
		response.Error(c, apperror.ErrNotFound("Delivery"))
		return
	}

	var req dto.AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	d, err := h.deliveries.Advance(c.Request.Context(), id, domain.DeliveryStatus(req.Status), user.Stamp())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, d)
}

// Summary handles GET /api/v1/rider/summary.
func (h *RiderHandler) Summary(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	summary, err := h.deliveries.RiderSummary(c.Request.Context(), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

// Insights handles GET /api/v1/rider/insights.
func (h *RiderHandler) Insights(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	insights, err := h.insights.Insights(c.Request.Context(), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, insights)
}
