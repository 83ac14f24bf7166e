package transport

import (
	"errors"
	"net/http"

	"solebid/internal/carrier"
	"solebid/internal/config"
	"solebid/internal/domain"
	"solebid/internal/middleware"
	"solebid/internal/repository"
	"solebid/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RateRequest represents an ad-hoc rate quote request. The ship-from
// address always comes from warehouse configuration.
type RateRequest struct {
	ToAddress       domain.Address     `json:"to_address" validate:"required"`
	Weight          float64            `json:"weight" validate:"omitempty,gt=0"`
	Dimensions      *domain.Dimensions `json:"dimensions,omitempty"`
	DeclaredValue   decimal.Decimal    `json:"declared_value"`
	ItemDescription string             `json:"item_description"`
	ProductName     string             `json:"product_name"`
}

// ShipmentHandler handles HTTP requests for rate shopping and shipment
// lookups
type ShipmentHandler struct {
	shippingService service.ShippingService
	cfg             config.ShippingConfig
	logger          *zap.Logger
}

// NewShipmentHandler creates a new ShipmentHandler
func NewShipmentHandler(shippingService service.ShippingService, cfg config.ShippingConfig, logger *zap.Logger) *ShipmentHandler {
	return &ShipmentHandler{
		shippingService: shippingService,
		cfg:             cfg,
		logger:          logger,
	}
}

// RegisterRoutes registers all shipment routes
func (h *ShipmentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/shipments", func(r chi.Router) {
		r.Post("/rates", h.GetRates)
		r.Post("/recommendations", h.GetRecommendations)
	})
	r.Route("/api/orders/{id}", func(r chi.Router) {
		r.Get("/shipment", h.GetShipment)
		r.Get("/tracking", h.Track)
	})
}

// GetRates handles quoting rates for an ad-hoc shipment
func (h *ShipmentHandler) GetRates(w http.ResponseWriter, r *http.Request) {
	details, ok := h.decodeDetails(w, r)
	if !ok {
		return
	}

	rates, err := h.shippingService.GetRates(r.Context(), details)
	if err != nil {
		h.logger.Error("Rate lookup failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to fetch rates")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"rates": rates})
}

// GetRecommendations handles quoting rates and tagging the standout picks
func (h *ShipmentHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	details, ok := h.decodeDetails(w, r)
	if !ok {
		return
	}

	rates, err := h.shippingService.GetRates(r.Context(), details)
	if err != nil {
		h.logger.Error("Rate lookup failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to fetch rates")
		return
	}

	recommendations := h.shippingService.GetServiceRecommendations(rates)
	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"rates":           rates,
		"recommendations": recommendations,
	})
}

// GetShipment handles fetching the persisted shipment for an order
func (h *ShipmentHandler) GetShipment(w http.ResponseWriter, r *http.Request) {
	orderID, err := parseIDParam(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	shipment, err := h.shippingService.GetShipment(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, repository.ErrShipmentNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "shipment not found")
			return
		}

		h.logger.Error("Failed to get shipment", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get shipment")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, shipment)
}

// Track handles fetching live tracking for an order's shipment
func (h *ShipmentHandler) Track(w http.ResponseWriter, r *http.Request) {
	orderID, err := parseIDParam(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	info, err := h.shippingService.TrackShipment(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrShipmentNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "shipment not found")
		case errors.Is(err, carrier.ErrNotConfigured):
			middleware.RespondWithError(w, http.StatusServiceUnavailable, "carrier not configured")
		case errors.Is(err, carrier.ErrCarrierUnavailable):
			middleware.RespondWithError(w, http.StatusBadGateway, "carrier unavailable")
		default:
			h.logger.Error("Tracking failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to track shipment")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, info)
}

// decodeDetails decodes a rate request into shipment details, writing the
// error response itself on failure.
func (h *ShipmentHandler) decodeDetails(w http.ResponseWriter, r *http.Request) (*domain.ShipmentDetails, bool) {
	var req RateRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Rate request validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return nil, false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}

	if err := service.ValidateAddress(req.ToAddress); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	from := service.ShipFromAddress(h.cfg)
	if err := service.ValidateAddress(from); err != nil {
		h.logger.Error("Warehouse address misconfigured", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "warehouse address misconfigured")
		return nil, false
	}

	weight := req.Weight
	if weight <= 0 {
		weight = service.EstimateWeight(req.ProductName)
	}

	dims := service.DefaultBoxDimensions()
	if req.Dimensions != nil {
		dims = *req.Dimensions
	}

	return &domain.ShipmentDetails{
		FromAddress:     from,
		ToAddress:       req.ToAddress,
		Weight:          weight,
		Dimensions:      dims,
		DeclaredValue:   req.DeclaredValue,
		ItemDescription: req.ItemDescription,
		International:   service.InternationalShipment(from, req.ToAddress),
	}, true
}
