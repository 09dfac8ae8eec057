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

// QuoteHandler prices trips.
type QuoteHandler struct {
	quotes ports.QuoteService
}

// NewQuoteHandler creates a new QuoteHandler.
func NewQuoteHandler(quotes ports.QuoteService) *QuoteHandler {
	return &QuoteHandler{quotes: quotes}
}

// Request handles POST /api/v1/quotes.
func (h *QuoteHandler) Request(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	q, err := h.quotes.RequestQuote(c.Request.Context(), user.ID, domain.QuoteRequest{
		Pickup:  req.Pickup,
		Dropoff: req.Dropoff,
		Items:   req.Items,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, q)
}
