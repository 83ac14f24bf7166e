// Package carrier integrates shipping providers behind a single Adapter
// interface. New carriers are added by implementing Adapter and registering
// the instance with the Aggregator; no aggregator changes are needed.
package carrier

import (
	"context"
	"errors"
	"fmt"
	"net"

	"solebid/internal/domain"
)

var (
	ErrNotConfigured        = errors.New("carrier is not configured")
	ErrAuthenticationFailed = errors.New("carrier authentication failed")
	ErrCarrierUnavailable   = errors.New("carrier unavailable")
	ErrRateRequestFailed    = errors.New("carrier rate request failed")
	ErrLabelCreationFailed  = errors.New("carrier label creation failed")
	ErrTrackingFailed       = errors.New("carrier tracking request failed")
)

// Adapter is the capability set one shipping provider must implement.
type Adapter interface {
	Name() domain.Carrier
	IsConfigured() bool
	Authenticate(ctx context.Context) (string, error)
	GetRates(ctx context.Context, details *domain.ShipmentDetails) ([]domain.CarrierRate, error)
	CreateLabel(ctx context.Context, details *domain.ShipmentDetails) (*domain.LabelResult, error)
	TrackPackage(ctx context.Context, trackingNumber string) (*domain.TrackingInfo, error)
}

// wrapTransportErr folds network-level failures (timeouts, refused
// connections, DNS) into ErrCarrierUnavailable so the aggregator can treat
// them uniformly. Other errors pass through unchanged.
func wrapTransportErr(err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrCarrierUnavailable, err)
	}
	return err
}
