package transport

import (
	"errors"
	"net/http"

	"solebid/internal/middleware"
	"solebid/internal/repository"
	"solebid/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentConfirmedRequest is the payment-processor webhook payload. Amounts
// are integer cents, matching what the order was created with.
type PaymentConfirmedRequest struct {
	OrderID    string `json:"order_id" validate:"required,uuid"`
	PaidAmount int64  `json:"paid_amount" validate:"required,gt=0"`
}

// WebhookHandler handles inbound webhooks from external systems
type WebhookHandler struct {
	shippingService service.ShippingService
	logger          *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(shippingService service.ShippingService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		shippingService: shippingService,
		logger:          logger,
	}
}

// RegisterRoutes registers all webhook routes
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/webhooks", func(r chi.Router) {
		r.Post("/payment", h.PaymentConfirmed)
	})
}

// PaymentConfirmed handles the payment confirmation webhook. Processors
// redeliver webhooks, so a repeat for an already-shipped order succeeds
// with the existing shipment.
func (h *WebhookHandler) PaymentConfirmed(w http.ResponseWriter, r *http.Request) {
	var req PaymentConfirmedRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Payment webhook validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	shipment, err := h.shippingService.HandlePaymentConfirmed(r.Context(), orderID, req.PaidAmount)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrPaymentMismatch):
			middleware.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, service.ErrInvalidAddress):
			middleware.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, service.ErrNoRatesAvailable):
			middleware.RespondWithError(w, http.StatusBadGateway, "no shipping rates available")
		default:
			h.logger.Error("Payment webhook processing failed",
				zap.String("order_id", orderID.String()),
				zap.Error(err),
			)
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to process payment confirmation")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, shipment)
}
