package carrier

import (
	"context"
	"errors"
	"sort"
	"sync"

	"solebid/internal/domain"

	"go.uber.org/zap"
)

var ErrNoCarriersConfigured = errors.New("no carriers configured")

// Aggregator fans rate requests out to every configured carrier adapter and
// merges the results. A failing adapter is logged and excluded; it never
// aborts the whole aggregation.
type Aggregator struct {
	adapters []Adapter
	logger   *zap.Logger
}

// NewAggregator registers the configured subset of the given adapters.
// Having zero configured carriers is a deployment mistake, surfaced here at
// construction time rather than on every request.
func NewAggregator(logger *zap.Logger, adapters ...Adapter) (*Aggregator, error) {
	configured := make([]Adapter, 0, len(adapters))
	for _, adapter := range adapters {
		if adapter.IsConfigured() {
			configured = append(configured, adapter)
		} else {
			logger.Warn("Skipping unconfigured carrier",
				zap.String("carrier", string(adapter.Name())),
			)
		}
	}

	if len(configured) == 0 {
		return nil, ErrNoCarriersConfigured
	}

	return &Aggregator{adapters: configured, logger: logger}, nil
}

// Adapter returns the registered adapter for a carrier, or nil
func (a *Aggregator) Adapter(name domain.Carrier) Adapter {
	for _, adapter := range a.adapters {
		if adapter.Name() == name {
			return adapter
		}
	}
	return nil
}

// Carriers lists the registered carrier names
func (a *Aggregator) Carriers() []domain.Carrier {
	names := make([]domain.Carrier, 0, len(a.adapters))
	for _, adapter := range a.adapters {
		names = append(names, adapter.Name())
	}
	return names
}

// GetAllRates queries every registered adapter concurrently and returns the
// merged rates sorted ascending by cost. When every adapter fails the result
// is an empty slice, not an error; the caller decides whether that is fatal.
func (a *Aggregator) GetAllRates(ctx context.Context, details *domain.ShipmentDetails) []domain.CarrierRate {
	// Results are collected per adapter slot so the merged order (and
	// therefore cost ties) is deterministic regardless of which goroutine
	// finishes first.
	results := make([][]domain.CarrierRate, len(a.adapters))

	var wg sync.WaitGroup
	for i, adapter := range a.adapters {
		wg.Add(1)
		go func(i int, adapter Adapter) {
			defer wg.Done()

			carrierRates, err := adapter.GetRates(ctx, details)
			if err != nil {
				a.logger.Warn("Carrier excluded from rate aggregation",
					zap.String("carrier", string(adapter.Name())),
					zap.Error(err),
				)
				return
			}
			results[i] = carrierRates
		}(i, adapter)
	}
	wg.Wait()

	var rates []domain.CarrierRate
	for _, carrierRates := range results {
		rates = append(rates, carrierRates...)
	}

	sort.SliceStable(rates, func(i, j int) bool {
		return rates[i].Cost.LessThan(rates[j].Cost)
	})

	if rates == nil {
		rates = []domain.CarrierRate{}
	}
	return rates
}
