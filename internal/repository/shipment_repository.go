package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"solebid/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrShipmentNotFound      = errors.New("shipment not found")
	ErrShipmentAlreadyExists = errors.New("shipment already exists for order")
)

// ShipmentRepository persists purchased labels and their lifecycle, plus an
// audit trail of the rate quotes that were shopped.
type ShipmentRepository interface {
	Create(ctx context.Context, shipment *domain.Shipment) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Shipment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ShipmentStatus) error
	UpdateTracking(ctx context.Context, id uuid.UUID, trackingNumber, labelURL string) error
	SaveRateQuotes(ctx context.Context, orderID *uuid.UUID, rates []domain.CarrierRate) error
}

type shipmentRepository struct {
	db *sql.DB
}

// NewShipmentRepository creates a new instance of ShipmentRepository
func NewShipmentRepository(db *sql.DB) ShipmentRepository {
	return &shipmentRepository{db: db}
}

func (r *shipmentRepository) Create(ctx context.Context, shipment *domain.Shipment) error {
	query := `
		INSERT INTO shipments (id, order_id, carrier, service_code, tracking_number, label_url, cost, weight, status,
			to_name, to_line1, to_line2, to_city, to_state, to_zip, to_country, to_phone,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (order_id) DO NOTHING
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		shipment.ID,
		shipment.OrderID,
		shipment.Carrier,
		shipment.ServiceCode,
		shipment.TrackingNumber,
		shipment.LabelURL,
		shipment.Cost,
		shipment.Weight,
		shipment.Status,
		shipment.ToAddress.Name,
		shipment.ToAddress.Line1,
		shipment.ToAddress.Line2,
		shipment.ToAddress.City,
		shipment.ToAddress.State,
		shipment.ToAddress.Zip,
		shipment.ToAddress.Country,
		shipment.ToAddress.Phone,
		shipment.CreatedAt,
		shipment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create shipment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrShipmentAlreadyExists
	}

	return nil
}

func (r *shipmentRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Shipment, error) {
	query := `
		SELECT id, order_id, carrier, service_code, COALESCE(tracking_number, ''), COALESCE(label_url, ''), cost, weight, status,
			to_name, to_line1, COALESCE(to_line2, ''), to_city, to_state, to_zip, to_country, COALESCE(to_phone, ''),
			created_at, updated_at
		FROM shipments
		WHERE order_id = $1
	`

	shipment := &domain.Shipment{}
	err := r.db.QueryRowContext(ctx, query, orderID).Scan(
		&shipment.ID,
		&shipment.OrderID,
		&shipment.Carrier,
		&shipment.ServiceCode,
		&shipment.TrackingNumber,
		&shipment.LabelURL,
		&shipment.Cost,
		&shipment.Weight,
		&shipment.Status,
		&shipment.ToAddress.Name,
		&shipment.ToAddress.Line1,
		&shipment.ToAddress.Line2,
		&shipment.ToAddress.City,
		&shipment.ToAddress.State,
		&shipment.ToAddress.Zip,
		&shipment.ToAddress.Country,
		&shipment.ToAddress.Phone,
		&shipment.CreatedAt,
		&shipment.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrShipmentNotFound
		}
		return nil, fmt.Errorf("failed to find shipment by order ID: %w", err)
	}

	return shipment, nil
}

func (r *shipmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ShipmentStatus) error {
	query := `UPDATE shipments SET status = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update shipment status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrShipmentNotFound
	}

	return nil
}

func (r *shipmentRepository) UpdateTracking(ctx context.Context, id uuid.UUID, trackingNumber, labelURL string) error {
	query := `UPDATE shipments SET tracking_number = $2, label_url = $3, updated_at = $4 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, trackingNumber, labelURL, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update shipment tracking: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrShipmentNotFound
	}

	return nil
}

// SaveRateQuotes records the shopped rates for audit. Failures here must not
// break the shipping flow; callers log and continue.
func (r *shipmentRepository) SaveRateQuotes(ctx context.Context, orderID *uuid.UUID, rates []domain.CarrierRate) error {
	query := `
		INSERT INTO carrier_rate_quotes (id, order_id, carrier, service_code, service_name, cost, currency, transit_time, quoted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	now := time.Now()
	for _, rate := range rates {
		_, err := r.db.ExecContext(
			ctx,
			query,
			uuid.New(),
			orderID,
			rate.Carrier,
			rate.ServiceCode,
			rate.ServiceName,
			rate.Cost,
			rate.Currency,
			rate.TransitTime,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to save rate quote: %w", err)
		}
	}

	return nil
}
