package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"solebid/internal/config"
	"solebid/internal/domain"

	"github.com/shopspring/decimal"
)

var ErrInvalidAddress = errors.New("invalid address")

// Default sneaker box: 14x10x5 inches, 2.0 lb
const (
	defaultBoxLength = 14
	defaultBoxWidth  = 10
	defaultBoxHeight = 5
	defaultWeightLb  = 2.0
)

var usZipPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// ShipmentOverrides lets callers replace the estimated weight or dimensions
// with measured values. Nil fields keep the estimate.
type ShipmentOverrides struct {
	Weight      *float64
	Dimensions  *domain.Dimensions
	ServiceCode string
}

// DefaultBoxDimensions returns the standard sneaker box outer dimensions
func DefaultBoxDimensions() domain.Dimensions {
	return domain.Dimensions{
		Length: defaultBoxLength,
		Width:  defaultBoxWidth,
		Height: defaultBoxHeight,
	}
}

// ShipFromAddress converts the configured warehouse address into domain form
func ShipFromAddress(cfg config.ShippingConfig) domain.Address {
	return domain.Address{
		Name:    cfg.FromName,
		Line1:   cfg.FromLine1,
		Line2:   cfg.FromLine2,
		City:    cfg.FromCity,
		State:   cfg.FromState,
		Zip:     cfg.FromZip,
		Country: cfg.FromCountry,
		Phone:   cfg.FromPhone,
	}
}

// ValidateAddress checks that an address has the fields carriers require and
// that the zip matches the country's format (US only; other countries accept
// any non-empty zip).
func ValidateAddress(addr domain.Address) error {
	missing := []string{}
	if addr.Name == "" {
		missing = append(missing, "name")
	}
	if addr.Line1 == "" {
		missing = append(missing, "line1")
	}
	if addr.City == "" {
		missing = append(missing, "city")
	}
	if addr.State == "" {
		missing = append(missing, "state")
	}
	if addr.Zip == "" {
		missing = append(missing, "zip")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidAddress, strings.Join(missing, ", "))
	}

	if addr.Country == "US" && !usZipPattern.MatchString(addr.Zip) {
		return fmt.Errorf("%w: zip %q is not a valid US zip code", ErrInvalidAddress, addr.Zip)
	}

	return nil
}

// EstimateWeight guesses the shipped weight from the product name. Boots and
// high-tops ship heavier, running and lightweight models lighter. These are
// defaults only; explicit overrides win.
func EstimateWeight(productName string) float64 {
	name := strings.ToLower(productName)
	weight := defaultWeightLb

	switch {
	case strings.Contains(name, "boot"), strings.Contains(name, "high-top"), strings.Contains(name, "high top"):
		weight += 0.5
	case strings.Contains(name, "running"), strings.Contains(name, "lightweight"):
		weight -= 0.5
	}

	return weight
}

// InternationalShipment reports whether the destination crosses a country
// border. A blank destination country is treated as the origin country.
func InternationalShipment(from, to domain.Address) bool {
	return to.Country != "" && to.Country != from.Country
}

// BuildShipmentDetails derives the carrier payload for shipping a product to
// an order's address. International is derived from the country pair, never
// taken as input.
func BuildShipmentDetails(order *domain.Order, product *domain.Product, from, to domain.Address, overrides *ShipmentOverrides) (*domain.ShipmentDetails, error) {
	if err := ValidateAddress(from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := ValidateAddress(to); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}

	details := &domain.ShipmentDetails{
		FromAddress:     from,
		ToAddress:       to,
		Weight:          EstimateWeight(product.Name),
		Dimensions:      DefaultBoxDimensions(),
		DeclaredValue:   decimal.NewFromInt(order.AmountPaid).Div(decimal.NewFromInt(100)),
		ItemDescription: fmt.Sprintf("%s %s (size %s)", product.Brand, product.Name, product.Size),
		International:   InternationalShipment(from, to),
	}

	if overrides != nil {
		if overrides.Weight != nil && *overrides.Weight > 0 {
			details.Weight = *overrides.Weight
		}
		if overrides.Dimensions != nil {
			details.Dimensions = *overrides.Dimensions
		}
		if overrides.ServiceCode != "" {
			details.ServiceCode = overrides.ServiceCode
		}
	}

	return details, nil
}
