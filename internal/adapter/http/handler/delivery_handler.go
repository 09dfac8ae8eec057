package handler

import (
	"context"

	"courier-dispatch/internal/adapter/http/dto"
	"courier-dispatch/internal/adapter/http/middleware"
	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"
	"courier-dispatch/pkg/apperror"
	"courier-dispatch/pkg/response"

	"github.com/gin-gonic/gin"
)

// DeliveryHandler serves the sender booking flow and delivery lookups.
type DeliveryHandler struct {
	deliveries ports.DeliveryService
	booking    ports.BookingService
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(deliveries ports.DeliveryService, booking ports.BookingService) *DeliveryHandler {
	return &DeliveryHandler{deliveries: deliveries, booking: booking}
}

// Book handles POST /api/v1/deliveries: confirms a quote into a paid delivery.
func (h *DeliveryHandler) Book(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.BookDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	d, err := h.booking.Confirm(c.Request.Context(), ports.ConfirmBookingRequest{
		Sender:       user,
		QuoteID:      req.QuoteID,
		CustomerName: req.CustomerName,
		Priority:     domain.Priority(req.Priority),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, d)
}

// ListMine handles GET /api/v1/deliveries.
func (h *DeliveryHandler) ListMine(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	list, err := h.deliveries.ListBySender(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/v1/deliveries/:id.
func (h *DeliveryHandler) Get(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	d, err := visibleDelivery(c.Request.Context(), h.deliveries, user, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, d)
}

// Cancel handles POST /api/v1/deliveries/:id/cancel.
func (h *DeliveryHandler) Cancel(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CancelRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
		dto.SanitizeStruct(&req)
	}

	if _, err := visibleDelivery(c.Request.Context(), h.deliveries, user, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	d, err := h.deliveries.Cancel(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, d)
}

// visibleDelivery loads a delivery the caller may see. Senders see their own
// bookings; riders see open jobs and jobs stamped with them. Anything else is
// reported as not found.
func visibleDelivery(ctx context.Context, deliveries ports.DeliveryService, user *domain.UserAccount, id string) (*domain.Delivery, error) {
	if !dto.ValidID(id) {
		return nil, apperror.ErrNotFound("Delivery")
	}
	d, err := deliveries.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(user, d) {
		return nil, apperror.ErrNotFound("Delivery")
	}
	return d, nil
}

func canSee(user *domain.UserAccount, d *domain.Delivery) bool {
	switch user.Role {
	case domain.RoleSender:
		return d.SenderID == user.ID
	case domain.RoleRider:
		return d.Rider == nil || d.IsAssignedTo(user.ID)
	}
	return false
}
