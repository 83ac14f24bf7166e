package service

import (
	"context"
	"testing"

	"solebid/internal/cache"
	"solebid/internal/carrier"
	"solebid/internal/config"
	"solebid/internal/domain"
	"solebid/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockAdapter is a scriptable carrier adapter
type mockAdapter struct {
	name       domain.Carrier
	labelErr   error
	labelCalls []string // service codes attempted
	trackInfo  *domain.TrackingInfo
	trackErr   error
}

func (m *mockAdapter) Name() domain.Carrier { return m.name }
func (m *mockAdapter) IsConfigured() bool   { return true }
func (m *mockAdapter) Authenticate(_ context.Context) (string, error) {
	return "test-token", nil
}
func (m *mockAdapter) GetRates(_ context.Context, _ *domain.ShipmentDetails) ([]domain.CarrierRate, error) {
	return nil, nil
}
func (m *mockAdapter) CreateLabel(_ context.Context, details *domain.ShipmentDetails) (*domain.LabelResult, error) {
	m.labelCalls = append(m.labelCalls, details.ServiceCode)
	if m.labelErr != nil {
		return nil, m.labelErr
	}
	return &domain.LabelResult{
		Carrier:        m.name,
		TrackingNumber: "TRACK-" + string(m.name),
		LabelURL:       "https://labels.test/" + string(m.name),
		Cost:           decimal.NewFromFloat(9.75),
		Currency:       "USD",
	}, nil
}
func (m *mockAdapter) TrackPackage(_ context.Context, _ string) (*domain.TrackingInfo, error) {
	return m.trackInfo, m.trackErr
}

// mockAggregator serves a canned rate list and a fixed adapter set
type mockAggregator struct {
	rates    []domain.CarrierRate
	adapters map[domain.Carrier]carrier.Adapter
	calls    int
}

func (m *mockAggregator) GetAllRates(_ context.Context, _ *domain.ShipmentDetails) []domain.CarrierRate {
	m.calls++
	return m.rates
}

func (m *mockAggregator) Adapter(name domain.Carrier) carrier.Adapter {
	return m.adapters[name]
}

type mockShipmentRepo struct {
	shipments map[uuid.UUID]*domain.Shipment
	quotes    int
	statuses  []domain.ShipmentStatus
}

func newMockShipmentRepo() *mockShipmentRepo {
	return &mockShipmentRepo{shipments: make(map[uuid.UUID]*domain.Shipment)}
}

func (m *mockShipmentRepo) Create(_ context.Context, shipment *domain.Shipment) error {
	for _, existing := range m.shipments {
		if existing.OrderID == shipment.OrderID {
			return repository.ErrShipmentAlreadyExists
		}
	}
	m.shipments[shipment.ID] = shipment
	return nil
}

func (m *mockShipmentRepo) FindByOrderID(_ context.Context, orderID uuid.UUID) (*domain.Shipment, error) {
	for _, shipment := range m.shipments {
		if shipment.OrderID == orderID {
			return shipment, nil
		}
	}
	return nil, repository.ErrShipmentNotFound
}

func (m *mockShipmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.ShipmentStatus) error {
	m.statuses = append(m.statuses, status)
	if shipment, ok := m.shipments[id]; ok {
		shipment.Status = status
	}
	return nil
}

func (m *mockShipmentRepo) UpdateTracking(_ context.Context, id uuid.UUID, trackingNumber, labelURL string) error {
	if shipment, ok := m.shipments[id]; ok {
		shipment.TrackingNumber = trackingNumber
		shipment.LabelURL = labelURL
	}
	return nil
}

func (m *mockShipmentRepo) SaveRateQuotes(_ context.Context, _ *uuid.UUID, rates []domain.CarrierRate) error {
	m.quotes += len(rates)
	return nil
}

type mockOrderRepo struct {
	orders map[uuid.UUID]*domain.Order
}

func (m *mockOrderRepo) Create(_ context.Context, order *domain.Order) error {
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

type mockProductRepo struct {
	products map[uuid.UUID]*domain.Product
}

func (m *mockProductRepo) Create(_ context.Context, product *domain.Product) error {
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	product, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return product, nil
}

// mockRateCache is an in-memory RateCache keyed by nothing; it stores the
// last written rate set.
type mockRateCache struct {
	stored []domain.CarrierRate
	hits   int
	sets   int
}

func (m *mockRateCache) Get(_ context.Context, _ *domain.ShipmentDetails) ([]domain.CarrierRate, error) {
	if m.stored == nil {
		return nil, cache.ErrCacheMiss
	}
	m.hits++
	return m.stored, nil
}

func (m *mockRateCache) Set(_ context.Context, _ *domain.ShipmentDetails, rates []domain.CarrierRate) error {
	m.stored = rates
	m.sets++
	return nil
}

func rate(c domain.Carrier, code string, cost float64, transit string) domain.CarrierRate {
	return domain.CarrierRate{
		Carrier:     c,
		ServiceCode: code,
		ServiceName: code,
		Cost:        decimal.NewFromFloat(cost),
		Currency:    "USD",
		TransitTime: transit,
	}
}

func testShipmentDetails() *domain.ShipmentDetails {
	return &domain.ShipmentDetails{
		FromAddress: warehouseAddress(),
		ToAddress:   validAddress(),
		Weight:      2.0,
		Dimensions:  DefaultBoxDimensions(),
	}
}

func newTestShippingService(agg RateAggregator, shipments *mockShipmentRepo, orders *mockOrderRepo, products *mockProductRepo, rateCache cache.RateCache, cfg config.ShippingConfig) ShippingService {
	if shipments == nil {
		shipments = newMockShipmentRepo()
	}
	if orders == nil {
		orders = &mockOrderRepo{orders: make(map[uuid.UUID]*domain.Order)}
	}
	if products == nil {
		products = &mockProductRepo{products: make(map[uuid.UUID]*domain.Product)}
	}
	return NewShippingService(agg, shipments, orders, products, rateCache, cfg, zap.NewNop())
}

func TestShippingService_GetRates_ReadThroughCache(t *testing.T) {
	agg := &mockAggregator{rates: []domain.CarrierRate{
		rate(domain.CarrierUPS, "03", 9.75, "3"),
		rate(domain.CarrierFedEx, "FEDEX_GROUND", 12.50, "2"),
	}}
	rc := &mockRateCache{}
	svc := newTestShippingService(agg, nil, nil, nil, rc, config.ShippingConfig{})
	ctx := context.Background()

	rates, err := svc.GetRates(ctx, testShipmentDetails())
	require.NoError(t, err)
	assert.Len(t, rates, 2)
	assert.Equal(t, 1, agg.calls)
	assert.Equal(t, 1, rc.sets)

	// Second call hits the cache, not the carriers
	rates, err = svc.GetRates(ctx, testShipmentDetails())
	require.NoError(t, err)
	assert.Len(t, rates, 2)
	assert.Equal(t, 1, agg.calls)
	assert.Equal(t, 1, rc.hits)
}

func TestShippingService_GetRates_NilCache(t *testing.T) {
	agg := &mockAggregator{rates: []domain.CarrierRate{rate(domain.CarrierUPS, "03", 9.75, "3")}}
	svc := newTestShippingService(agg, nil, nil, nil, nil, config.ShippingConfig{})

	rates, err := svc.GetRates(context.Background(), testShipmentDetails())
	require.NoError(t, err)
	assert.Len(t, rates, 1)
}

func TestShippingService_CreateOptimalShipment_PicksCheapest(t *testing.T) {
	ups := &mockAdapter{name: domain.CarrierUPS}
	fedex := &mockAdapter{name: domain.CarrierFedEx}
	agg := &mockAggregator{
		rates: []domain.CarrierRate{
			rate(domain.CarrierUPS, "03", 9.75, "3"),
			rate(domain.CarrierFedEx, "FEDEX_GROUND", 12.50, "2"),
		},
		adapters: map[domain.Carrier]carrier.Adapter{
			domain.CarrierUPS:   ups,
			domain.CarrierFedEx: fedex,
		},
	}
	svc := newTestShippingService(agg, nil, nil, nil, nil, config.ShippingConfig{})

	label, err := svc.CreateOptimalShipment(context.Background(), testShipmentDetails(), nil)
	require.NoError(t, err)

	assert.Equal(t, domain.CarrierUPS, label.Carrier)
	assert.Equal(t, []string{"03"}, ups.labelCalls)
	assert.Empty(t, fedex.labelCalls)
}

func TestShippingService_CreateOptimalShipment_PreferredCarrierPin(t *testing.T) {
	ups := &mockAdapter{name: domain.CarrierUPS}
	fedex := &mockAdapter{name: domain.CarrierFedEx}
	agg := &mockAggregator{
		rates: []domain.CarrierRate{
			rate(domain.CarrierUPS, "03", 9.75, "3"),
			rate(domain.CarrierFedEx, "FEDEX_GROUND", 12.50, "2"),
		},
		adapters: map[domain.Carrier]carrier.Adapter{
			domain.CarrierUPS:   ups,
			domain.CarrierFedEx: fedex,
		},
	}
	svc := newTestShippingService(agg, nil, nil, nil, nil, config.ShippingConfig{})

	prefs := &domain.ShippingPreferences{PreferredCarrier: domain.CarrierFedEx}
	label, err := svc.CreateOptimalShipment(context.Background(), testShipmentDetails(), prefs)
	require.NoError(t, err)

	assert.Equal(t, domain.CarrierFedEx, label.Carrier)
	assert.Empty(t, ups.labelCalls)
}

func TestShippingService_CreateOptimalShipment_PreferredCarrierWithoutRatesIsIgnored(t *testing.T) {
	ups := &mockAdapter{name: domain.CarrierUPS}
	agg := &mockAggregator{
		rates: []domain.CarrierRate{
			rate(domain.CarrierUPS, "03", 9.75, "3"),
		},
		adapters: map[domain.Carrier]carrier.Adapter{domain.CarrierUPS: ups},
	}
	svc := newTestShippingService(agg, nil, nil, nil, nil, config.ShippingConfig{})

	prefs := &domain.ShippingPreferences{PreferredCarrier: domain.CarrierFedEx}
	label, err := svc.CreateOptimalShipment(context.Background(), testShipmentDetails(), prefs)
	require.NoError(t, err)
	assert.Equal(t, domain.CarrierUPS, label.Carrier)
}

func TestShippingService_CreateOptimalShipment_MaxCostFiltersEverything(t *testing.T) {
	agg := &mockAggregator{rates: []domain.CarrierRate{
		rate(domain.CarrierUPS, "03", 9.75, "3"),
	}}
	svc := newTestShippingService(agg, nil, nil, nil, nil, config.ShippingConfig{})

	maxCost := decimal.NewFromFloat(5.00)
	prefs := &domain.ShippingPreferences{MaxCost: &maxCost}

	_, err := svc.CreateOptimalShipment(context.Background(), testShipmentDetails(), prefs)
	assert.ErrorIs(t, err, ErrNoRatesAvailable)
}

func TestShippingService_CreateOptimalShipment_MaxTransitDaysExcludesUnknown(t *testing.T) {
	fedex := &mockAdapter{name: domain.CarrierFedEx}
	agg := &mockAggregator{
		rates: []domain.CarrierRate{
			rate(domain.CarrierUPS, "03", 9.75, "Unknown"),
			rate(domain.CarrierFedEx, "FEDEX_GROUND", 12.50, "2"),
		},
		adapters: map[domain.Carrier]carrier.Adapter{domain.CarrierFedEx: fedex},
	}
	svc := newTestShippingService(agg, nil, nil, nil, nil, config.ShippingConfig{})

	maxDays := 3
	prefs := &domain.ShippingPreferences{MaxTransitDays: &maxDays}

	label, err := svc.CreateOptimalShipment(context.Background(), testShipmentDetails(), prefs)
	require.NoError(t, err)
	assert.Equal(t, domain.CarrierFedEx, label.Carrier)
}

func TestShippingService_CreateOptimalShipment_NoFallbackByDefault(t *testing.T) {
	ups := &mockAdapter{name: domain.CarrierUPS, labelErr: carrier.ErrLabelCreationFailed}
	fedex := &mockAdapter{name: domain.CarrierFedEx}
	agg := &mockAggregator{
		rates: []domain.CarrierRate{
			rate(domain.CarrierUPS, "03", 9.75, "3"),
			rate(domain.CarrierFedEx, "FEDEX_GROUND", 12.50, "2"),
		},
		adapters: map[domain.Carrier]carrier.Adapter{
			domain.CarrierUPS:   ups,
			domain.CarrierFedEx: fedex,
		},
	}
	svc := newTestShippingService(agg, nil, nil, nil, nil, config.ShippingConfig{})

	_, err := svc.CreateOptimalShipment(context.Background(), testShipmentDetails(), nil)
	assert.ErrorIs(t, err, carrier.ErrLabelCreationFailed)
	assert.Empty(t, fedex.labelCalls)
}

func TestShippingService_CreateOptimalShipment_FallbackWhenEnabled(t *testing.T) {
	ups := &mockAdapter{name: domain.CarrierUPS, labelErr: carrier.ErrLabelCreationFailed}
	fedex := &mockAdapter{name: domain.CarrierFedEx}
	agg := &mockAggregator{
		rates: []domain.CarrierRate{
			rate(domain.CarrierUPS, "03", 9.75, "3"),
			rate(domain.CarrierFedEx, "FEDEX_GROUND", 12.50, "2"),
		},
		adapters: map[domain.Carrier]carrier.Adapter{
			domain.CarrierUPS:   ups,
			domain.CarrierFedEx: fedex,
		},
	}
	svc := newTestShippingService(agg, nil, nil, nil, nil, config.ShippingConfig{FallbackOnLabelFailure: true})

	label, err := svc.CreateOptimalShipment(context.Background(), testShipmentDetails(), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.CarrierFedEx, label.Carrier)
	assert.Equal(t, []string{"03"}, ups.labelCalls)
	assert.Equal(t, []string{"FEDEX_GROUND"}, fedex.labelCalls)
}

func TestShippingService_GetServiceRecommendations(t *testing.T) {
	agg := &mockAggregator{}
	svc := newTestShippingService(agg, nil, nil, nil, nil, config.ShippingConfig{})

	rates := []domain.CarrierRate{
		rate(domain.CarrierUPS, "03", 9.75, "4"),
		rate(domain.CarrierFedEx, "FEDEX_2_DAY", 18.00, "2"),
		rate(domain.CarrierFedEx, "FEDEX_GROUND", 12.50, "3"),
	}

	recs := svc.GetServiceRecommendations(rates)
	require.Len(t, recs, 2)

	assert.Equal(t, "cheapest", recs[0].Tag)
	assert.Equal(t, "03", recs[0].Rate.ServiceCode)

	assert.Equal(t, "fastest", recs[1].Tag)
	assert.Equal(t, "FEDEX_2_DAY", recs[1].Rate.ServiceCode)
}

func TestShippingService_GetServiceRecommendations_BestValueWhenDistinct(t *testing.T) {
	svc := newTestShippingService(&mockAggregator{}, nil, nil, nil, nil, config.ShippingConfig{})

	// cheapest: 10.00/Unknown; fastest: 30.00/"1" (30.00/day);
	// best value: 12.00/"2" (6.00/day, the cost-per-day minimum)
	rates := []domain.CarrierRate{
		rate(domain.CarrierUPS, "CHEAP", 10.00, "Unknown"),
		rate(domain.CarrierFedEx, "FAST", 30.00, "1"),
		rate(domain.CarrierFedEx, "VALUE", 12.00, "2"),
	}

	recs := svc.GetServiceRecommendations(rates)
	require.Len(t, recs, 3)
	assert.Equal(t, "best_value", recs[2].Tag)
	assert.Equal(t, "VALUE", recs[2].Rate.ServiceCode)
}

func TestShippingService_GetServiceRecommendations_TiesKeepInputOrder(t *testing.T) {
	svc := newTestShippingService(&mockAggregator{}, nil, nil, nil, nil, config.ShippingConfig{})

	rates := []domain.CarrierRate{
		rate(domain.CarrierUPS, "FIRST", 10.00, "2"),
		rate(domain.CarrierFedEx, "SECOND", 10.00, "2"),
	}

	recs := svc.GetServiceRecommendations(rates)
	require.NotEmpty(t, recs)
	assert.Equal(t, "FIRST", recs[0].Rate.ServiceCode)
}

func TestShippingService_GetServiceRecommendations_Empty(t *testing.T) {
	svc := newTestShippingService(&mockAggregator{}, nil, nil, nil, nil, config.ShippingConfig{})
	assert.Nil(t, svc.GetServiceRecommendations(nil))
}

func shippingCfgWithWarehouse() config.ShippingConfig {
	return config.ShippingConfig{
		FromName:    "SoleBid Fulfillment",
		FromLine1:   "1200 Logistics Way",
		FromCity:    "Memphis",
		FromState:   "TN",
		FromZip:     "38118",
		FromCountry: "US",
	}
}

func TestShippingService_HandlePaymentConfirmed(t *testing.T) {
	ups := &mockAdapter{name: domain.CarrierUPS}
	agg := &mockAggregator{
		rates:    []domain.CarrierRate{rate(domain.CarrierUPS, "03", 9.75, "3")},
		adapters: map[domain.Carrier]carrier.Adapter{domain.CarrierUPS: ups},
	}
	shipments := newMockShipmentRepo()
	orders := &mockOrderRepo{orders: make(map[uuid.UUID]*domain.Order)}
	products := &mockProductRepo{products: make(map[uuid.UUID]*domain.Product)}

	product := &domain.Product{ID: uuid.New(), Name: "Air Jordan 4 Retro", Brand: "Nike", Size: "10"}
	products.products[product.ID] = product

	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		ProductID:       product.ID,
		AmountPaid:      24999,
		ShippingAddress: validAddress(),
	}
	orders.orders[order.ID] = order

	svc := newTestShippingService(agg, shipments, orders, products, nil, shippingCfgWithWarehouse())
	ctx := context.Background()

	shipment, err := svc.HandlePaymentConfirmed(ctx, order.ID, 24999)
	require.NoError(t, err)

	assert.Equal(t, order.ID, shipment.OrderID)
	assert.Equal(t, domain.CarrierUPS, shipment.Carrier)
	assert.Equal(t, "TRACK-ups", shipment.TrackingNumber)
	assert.Equal(t, domain.ShipmentStatusCreated, shipment.Status)
	assert.Equal(t, 1, shipments.quotes) // shopped rates were recorded

	// Redelivered webhook returns the same shipment without buying again
	again, err := svc.HandlePaymentConfirmed(ctx, order.ID, 24999)
	require.NoError(t, err)
	assert.Equal(t, shipment.ID, again.ID)
	assert.Len(t, ups.labelCalls, 1)
}

func TestShippingService_HandlePaymentConfirmed_AmountMismatch(t *testing.T) {
	orders := &mockOrderRepo{orders: make(map[uuid.UUID]*domain.Order)}
	order := &domain.Order{ID: uuid.New(), AmountPaid: 24999, ShippingAddress: validAddress()}
	orders.orders[order.ID] = order

	svc := newTestShippingService(&mockAggregator{}, nil, orders, nil, nil, shippingCfgWithWarehouse())

	_, err := svc.HandlePaymentConfirmed(context.Background(), order.ID, 10000)
	assert.ErrorIs(t, err, ErrPaymentMismatch)
}

func TestShippingService_HandlePaymentConfirmed_OrderNotFound(t *testing.T) {
	svc := newTestShippingService(&mockAggregator{}, nil, nil, nil, nil, shippingCfgWithWarehouse())

	_, err := svc.HandlePaymentConfirmed(context.Background(), uuid.New(), 100)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestShippingService_TrackShipment_AdvancesStatus(t *testing.T) {
	now := domain.TrackingInfo{
		Carrier:        domain.CarrierUPS,
		TrackingNumber: "TRACK-ups",
		Status:         domain.ShipmentStatusInTransit,
		StatusRaw:      "I",
	}
	ups := &mockAdapter{name: domain.CarrierUPS, trackInfo: &now}
	agg := &mockAggregator{adapters: map[domain.Carrier]carrier.Adapter{domain.CarrierUPS: ups}}

	shipments := newMockShipmentRepo()
	shipment := &domain.Shipment{
		ID:             uuid.New(),
		OrderID:        uuid.New(),
		Carrier:        domain.CarrierUPS,
		TrackingNumber: "TRACK-ups",
		Status:         domain.ShipmentStatusCreated,
	}
	shipments.shipments[shipment.ID] = shipment

	svc := newTestShippingService(agg, shipments, nil, nil, nil, config.ShippingConfig{})

	info, err := svc.TrackShipment(context.Background(), shipment.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShipmentStatusInTransit, info.Status)
	assert.Equal(t, []domain.ShipmentStatus{domain.ShipmentStatusInTransit}, shipments.statuses)
}

func TestShippingService_TrackShipment_DoesNotRegressStatus(t *testing.T) {
	stale := domain.TrackingInfo{
		Carrier:        domain.CarrierUPS,
		TrackingNumber: "TRACK-ups",
		Status:         domain.ShipmentStatusInTransit,
	}
	ups := &mockAdapter{name: domain.CarrierUPS, trackInfo: &stale}
	agg := &mockAggregator{adapters: map[domain.Carrier]carrier.Adapter{domain.CarrierUPS: ups}}

	shipments := newMockShipmentRepo()
	shipment := &domain.Shipment{
		ID:             uuid.New(),
		OrderID:        uuid.New(),
		Carrier:        domain.CarrierUPS,
		TrackingNumber: "TRACK-ups",
		Status:         domain.ShipmentStatusDelivered,
	}
	shipments.shipments[shipment.ID] = shipment

	svc := newTestShippingService(agg, shipments, nil, nil, nil, config.ShippingConfig{})

	_, err := svc.TrackShipment(context.Background(), shipment.OrderID)
	require.NoError(t, err)
	assert.Empty(t, shipments.statuses)
}

func TestParseTransitDays(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"2", 2, true},
		{"3 days", 3, true},
		{" 5 ", 5, true},
		{"Unknown", 0, false},
		{"", 0, false},
		{"0", 0, false},
		{"-1", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseTransitDays(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		if ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}
