package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Carrier identifies a supported shipping carrier
type Carrier string

const (
	CarrierFedEx Carrier = "fedex"
	CarrierUPS   Carrier = "ups"
)

// ShipmentStatus represents the lifecycle state of a shipment
type ShipmentStatus string

const (
	ShipmentStatusPending   ShipmentStatus = "pending"
	ShipmentStatusCreated   ShipmentStatus = "created"
	ShipmentStatusInTransit ShipmentStatus = "in_transit"
	ShipmentStatusDelivered ShipmentStatus = "delivered"
	ShipmentStatusCancelled ShipmentStatus = "cancelled"
)

// Address is a postal address used on either end of a shipment
type Address struct {
	Name    string `json:"name"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
}

// Dimensions are outer package dimensions in whole inches
type Dimensions struct {
	Length int `json:"length"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ShipmentDetails is the transient payload handed to carrier adapters. It is
// derived from an order and product; it is not persisted as-is.
type ShipmentDetails struct {
	FromAddress     Address         `json:"from_address"`
	ToAddress       Address         `json:"to_address"`
	Weight          float64         `json:"weight"` // pounds
	Dimensions      Dimensions      `json:"dimensions"`
	DeclaredValue   decimal.Decimal `json:"declared_value"`
	ItemDescription string          `json:"item_description"`
	ServiceCode     string          `json:"service_code,omitempty"`
	International   bool            `json:"international"`
}

// CarrierRate is a single quoted rate from one carrier service. Rates are
// ephemeral; a copy may be persisted for audit.
type CarrierRate struct {
	Carrier      Carrier         `json:"carrier"`
	ServiceCode  string          `json:"service_code"`
	ServiceName  string          `json:"service_name"`
	Cost         decimal.Decimal `json:"cost"`
	Currency     string          `json:"currency"`
	TransitTime  string          `json:"transit_time"` // e.g. "2", may be "Unknown"
	DeliveryDate *time.Time      `json:"delivery_date,omitempty"`
}

// LabelResult is the outcome of buying a shipping label
type LabelResult struct {
	Carrier        Carrier         `json:"carrier"`
	TrackingNumber string          `json:"tracking_number"`
	LabelURL       string          `json:"label_url"`
	Cost           decimal.Decimal `json:"cost"`
	Currency       string          `json:"currency"`
}

// TrackingInfo is the normalized tracking state for one package
type TrackingInfo struct {
	Carrier        Carrier        `json:"carrier"`
	TrackingNumber string         `json:"tracking_number"`
	Status         ShipmentStatus `json:"status"`
	StatusRaw      string         `json:"status_raw"`
	Location       string         `json:"location,omitempty"`
	LastUpdate     *time.Time     `json:"last_update,omitempty"`
}

// Shipment is the persisted record of a purchased label for an order.
// At most one shipment exists per order.
type Shipment struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	OrderID        uuid.UUID       `json:"order_id" db:"order_id"`
	Carrier        Carrier         `json:"carrier" db:"carrier"`
	ServiceCode    string          `json:"service_code" db:"service_code"`
	TrackingNumber string          `json:"tracking_number" db:"tracking_number"`
	LabelURL       string          `json:"label_url" db:"label_url"`
	Cost           decimal.Decimal `json:"cost" db:"cost"`
	Weight         float64         `json:"weight" db:"weight"`
	Status         ShipmentStatus  `json:"status" db:"status"`
	ToAddress      Address         `json:"to_address"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// ShippingPreferences narrow the rate set the orchestrator may pick from.
// The preferred carrier is advisory: it only restricts the set when that
// carrier still has rates left after the cost and transit filters.
type ShippingPreferences struct {
	MaxCost          *decimal.Decimal `json:"max_cost,omitempty"`
	MaxTransitDays   *int             `json:"max_transit_days,omitempty"`
	PreferredCarrier Carrier          `json:"preferred_carrier,omitempty"`
}
