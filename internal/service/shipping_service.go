package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"solebid/internal/cache"
	"solebid/internal/carrier"
	"solebid/internal/config"
	"solebid/internal/domain"
	"solebid/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNoRatesAvailable = errors.New("no shipping rates available")
	ErrPaymentMismatch  = errors.New("paid amount does not match order")
)

// RateAggregator is the slice of the carrier aggregator the shipping
// service depends on.
type RateAggregator interface {
	GetAllRates(ctx context.Context, details *domain.ShipmentDetails) []domain.CarrierRate
	Adapter(name domain.Carrier) carrier.Adapter
}

// ServiceRecommendation is one tagged pick from a rate list
type ServiceRecommendation struct {
	Tag  string             `json:"tag"` // cheapest, fastest, best_value
	Rate domain.CarrierRate `json:"rate"`
}

// ShippingService shops rates across carriers, buys labels, and tracks the
// resulting shipments.
type ShippingService interface {
	GetRates(ctx context.Context, details *domain.ShipmentDetails) ([]domain.CarrierRate, error)
	CreateOptimalShipment(ctx context.Context, details *domain.ShipmentDetails, prefs *domain.ShippingPreferences) (*domain.LabelResult, error)
	GetServiceRecommendations(rates []domain.CarrierRate) []ServiceRecommendation
	HandlePaymentConfirmed(ctx context.Context, orderID uuid.UUID, paidAmount int64) (*domain.Shipment, error)
	GetShipment(ctx context.Context, orderID uuid.UUID) (*domain.Shipment, error)
	TrackShipment(ctx context.Context, orderID uuid.UUID) (*domain.TrackingInfo, error)
}

type shippingService struct {
	aggregator RateAggregator
	shipments  repository.ShipmentRepository
	orders     repository.OrderRepository
	products   repository.ProductRepository
	rateCache  cache.RateCache
	cfg        config.ShippingConfig
	logger     *zap.Logger
}

// NewShippingService creates a new instance of ShippingService. rateCache
// may be nil, which disables quote caching.
func NewShippingService(
	aggregator RateAggregator,
	shipments repository.ShipmentRepository,
	orders repository.OrderRepository,
	products repository.ProductRepository,
	rateCache cache.RateCache,
	cfg config.ShippingConfig,
	logger *zap.Logger,
) ShippingService {
	return &shippingService{
		aggregator: aggregator,
		shipments:  shipments,
		orders:     orders,
		products:   products,
		rateCache:  rateCache,
		cfg:        cfg,
		logger:     logger,
	}
}

// GetRates returns all available rates for a shipment, cheapest first,
// reading through the quote cache when one is configured. Cache failures
// degrade to a miss; they never fail the request.
func (s *shippingService) GetRates(ctx context.Context, details *domain.ShipmentDetails) ([]domain.CarrierRate, error) {
	if s.rateCache != nil {
		rates, err := s.rateCache.Get(ctx, details)
		if err == nil {
			return rates, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("Rate cache read failed", zap.Error(err))
		}
	}

	rates := s.aggregator.GetAllRates(ctx, details)

	if s.rateCache != nil && len(rates) > 0 {
		if err := s.rateCache.Set(ctx, details, rates); err != nil {
			s.logger.Warn("Rate cache write failed", zap.Error(err))
		}
	}

	return rates, nil
}

// CreateOptimalShipment shops rates, applies preference filters, and buys a
// label from the cheapest remaining carrier. By default a label failure for
// the selected carrier fails the whole operation; with fallback enabled the
// remaining filtered rates are tried in order.
func (s *shippingService) CreateOptimalShipment(ctx context.Context, details *domain.ShipmentDetails, prefs *domain.ShippingPreferences) (*domain.LabelResult, error) {
	label, _, _, err := s.createOptimal(ctx, details, prefs)
	return label, err
}

func (s *shippingService) createOptimal(ctx context.Context, details *domain.ShipmentDetails, prefs *domain.ShippingPreferences) (*domain.LabelResult, *domain.CarrierRate, []domain.CarrierRate, error) {
	// Always fetch fresh rates before buying a label; cached quotes are for
	// display only.
	rates := s.aggregator.GetAllRates(ctx, details)

	filtered := filterRates(rates, prefs)
	if len(filtered) == 0 {
		return nil, nil, rates, ErrNoRatesAvailable
	}

	candidates := filtered
	if !s.cfg.FallbackOnLabelFailure {
		candidates = filtered[:1]
	}

	var lastErr error
	for i := range candidates {
		rate := candidates[i]
		adapter := s.aggregator.Adapter(rate.Carrier)
		if adapter == nil {
			continue
		}

		attempt := *details
		attempt.ServiceCode = rate.ServiceCode

		label, err := adapter.CreateLabel(ctx, &attempt)
		if err != nil {
			lastErr = err
			s.logger.Error("Label creation failed",
				zap.String("carrier", string(rate.Carrier)),
				zap.String("service_code", rate.ServiceCode),
				zap.Error(err),
			)
			continue
		}

		return label, &rate, rates, nil
	}

	if lastErr == nil {
		lastErr = carrier.ErrLabelCreationFailed
	}
	return nil, nil, rates, lastErr
}

// filterRates applies the preference filters in order: cost ceiling, transit
// ceiling, then the advisory preferred-carrier pin. The pin only restricts
// the set when the preferred carrier still has rates left; otherwise the
// full filtered set survives.
func filterRates(rates []domain.CarrierRate, prefs *domain.ShippingPreferences) []domain.CarrierRate {
	filtered := rates
	if prefs == nil {
		return filtered
	}

	if prefs.MaxCost != nil {
		kept := make([]domain.CarrierRate, 0, len(filtered))
		for _, rate := range filtered {
			if !rate.Cost.GreaterThan(*prefs.MaxCost) {
				kept = append(kept, rate)
			}
		}
		filtered = kept
	}

	if prefs.MaxTransitDays != nil {
		kept := make([]domain.CarrierRate, 0, len(filtered))
		for _, rate := range filtered {
			if days, ok := parseTransitDays(rate.TransitTime); ok && days <= *prefs.MaxTransitDays {
				kept = append(kept, rate)
			}
		}
		filtered = kept
	}

	if prefs.PreferredCarrier != "" {
		preferred := make([]domain.CarrierRate, 0, len(filtered))
		for _, rate := range filtered {
			if rate.Carrier == prefs.PreferredCarrier {
				preferred = append(preferred, rate)
			}
		}
		if len(preferred) > 0 {
			filtered = preferred
		}
	}

	return filtered
}

// parseTransitDays extracts a numeric day count from a carrier transit-time
// string. "Unknown" and other non-numeric values report false.
func parseTransitDays(transit string) (int, bool) {
	fields := strings.Fields(strings.TrimSpace(transit))
	if len(fields) == 0 {
		return 0, false
	}
	days, err := strconv.Atoi(fields[0])
	if err != nil || days <= 0 {
		return 0, false
	}
	return days, true
}

// GetServiceRecommendations tags up to three picks from a rate list:
// cheapest, fastest (numeric transit times only), and best value by cost per
// transit day (only when distinct from the other two). Ties keep the
// earliest rate in input order.
func (s *shippingService) GetServiceRecommendations(rates []domain.CarrierRate) []ServiceRecommendation {
	if len(rates) == 0 {
		return nil
	}

	cheapestIdx := 0
	for i, rate := range rates {
		if rate.Cost.LessThan(rates[cheapestIdx].Cost) {
			cheapestIdx = i
		}
	}

	fastestIdx := -1
	fastestDays := 0
	for i, rate := range rates {
		days, ok := parseTransitDays(rate.TransitTime)
		if !ok {
			continue
		}
		if fastestIdx == -1 || days < fastestDays {
			fastestIdx = i
			fastestDays = days
		}
	}

	bestValueIdx := -1
	var bestValue float64
	for i, rate := range rates {
		days, ok := parseTransitDays(rate.TransitTime)
		if !ok {
			continue
		}
		value := rate.Cost.InexactFloat64() / float64(days)
		if bestValueIdx == -1 || value < bestValue {
			bestValueIdx = i
			bestValue = value
		}
	}

	recommendations := []ServiceRecommendation{
		{Tag: "cheapest", Rate: rates[cheapestIdx]},
	}
	if fastestIdx >= 0 {
		recommendations = append(recommendations, ServiceRecommendation{Tag: "fastest", Rate: rates[fastestIdx]})
	}
	if bestValueIdx >= 0 && bestValueIdx != cheapestIdx && bestValueIdx != fastestIdx {
		recommendations = append(recommendations, ServiceRecommendation{Tag: "best_value", Rate: rates[bestValueIdx]})
	}

	return recommendations
}

// HandlePaymentConfirmed is the payment-webhook entry point: it builds
// shipment details for the paid order, shops rates, buys the optimal label,
// and persists the shipment. Re-delivered webhooks return the existing
// shipment unchanged.
func (s *shippingService) HandlePaymentConfirmed(ctx context.Context, orderID uuid.UUID, paidAmount int64) (*domain.Shipment, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.shipments.FindByOrderID(ctx, orderID); err == nil {
		s.logger.Info("Shipment already exists for order, skipping",
			zap.String("order_id", orderID.String()),
		)
		return existing, nil
	} else if !errors.Is(err, repository.ErrShipmentNotFound) {
		return nil, err
	}

	if paidAmount != order.AmountPaid {
		return nil, fmt.Errorf("%w: got %d, order expects %d", ErrPaymentMismatch, paidAmount, order.AmountPaid)
	}

	product, err := s.products.FindByID(ctx, order.ProductID)
	if err != nil {
		return nil, err
	}

	details, err := BuildShipmentDetails(order, product, ShipFromAddress(s.cfg), order.ShippingAddress, nil)
	if err != nil {
		return nil, err
	}

	label, chosenRate, allRates, err := s.createOptimal(ctx, details, nil)

	// Audit trail of what was shopped, regardless of outcome
	if len(allRates) > 0 {
		if auditErr := s.shipments.SaveRateQuotes(ctx, &orderID, allRates); auditErr != nil {
			s.logger.Warn("Failed to save rate quote audit", zap.Error(auditErr))
		}
	}

	if err != nil {
		return nil, err
	}

	now := time.Now()
	shipment := &domain.Shipment{
		ID:             uuid.New(),
		OrderID:        orderID,
		Carrier:        label.Carrier,
		ServiceCode:    chosenRate.ServiceCode,
		TrackingNumber: label.TrackingNumber,
		LabelURL:       label.LabelURL,
		Cost:           label.Cost,
		Weight:         details.Weight,
		Status:         domain.ShipmentStatusCreated,
		ToAddress:      order.ShippingAddress,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if shipment.Cost.IsZero() {
		shipment.Cost = chosenRate.Cost
	}

	if err := s.shipments.Create(ctx, shipment); err != nil {
		if errors.Is(err, repository.ErrShipmentAlreadyExists) {
			return s.shipments.FindByOrderID(ctx, orderID)
		}
		return nil, err
	}

	s.logger.Info("Shipment created",
		zap.String("order_id", orderID.String()),
		zap.String("carrier", string(shipment.Carrier)),
		zap.String("tracking_number", shipment.TrackingNumber),
		zap.String("cost", shipment.Cost.String()),
	)

	return shipment, nil
}

// GetShipment returns the persisted shipment for an order
func (s *shippingService) GetShipment(ctx context.Context, orderID uuid.UUID) (*domain.Shipment, error) {
	return s.shipments.FindByOrderID(ctx, orderID)
}

// TrackShipment fetches live tracking from the shipment's carrier and rolls
// forward the persisted status when it advanced.
func (s *shippingService) TrackShipment(ctx context.Context, orderID uuid.UUID) (*domain.TrackingInfo, error) {
	shipment, err := s.shipments.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	adapter := s.aggregator.Adapter(shipment.Carrier)
	if adapter == nil {
		return nil, fmt.Errorf("%w: %s", carrier.ErrNotConfigured, shipment.Carrier)
	}

	info, err := adapter.TrackPackage(ctx, shipment.TrackingNumber)
	if err != nil {
		return nil, err
	}

	if info.Status != shipment.Status && statusAdvances(shipment.Status, info.Status) {
		if err := s.shipments.UpdateStatus(ctx, shipment.ID, info.Status); err != nil {
			s.logger.Warn("Failed to update shipment status from tracking",
				zap.String("shipment_id", shipment.ID.String()),
				zap.Error(err),
			)
		}
	}

	return info, nil
}

// statusAdvances reports whether moving from to next is a forward transition
// in pending -> created -> in_transit -> delivered, or a cancellation.
func statusAdvances(from, next domain.ShipmentStatus) bool {
	if next == domain.ShipmentStatusCancelled {
		return from != domain.ShipmentStatusDelivered
	}

	rank := map[domain.ShipmentStatus]int{
		domain.ShipmentStatusPending:   0,
		domain.ShipmentStatusCreated:   1,
		domain.ShipmentStatusInTransit: 2,
		domain.ShipmentStatusDelivered: 3,
	}

	fromRank, ok1 := rank[from]
	nextRank, ok2 := rank[next]
	return ok1 && ok2 && nextRank > fromRank
}
