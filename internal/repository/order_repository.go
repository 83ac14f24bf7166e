package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"solebid/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository reads orders created by the checkout flow. This core never
// creates orders in production paths; Create exists for the checkout glue
// and for test seeding.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (id, user_id, auction_id, product_id, amount_paid,
			ship_name, ship_line1, ship_line2, ship_city, ship_state, ship_zip, ship_country, ship_phone,
			created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		order.ID,
		order.UserID,
		order.AuctionID,
		order.ProductID,
		order.AmountPaid,
		order.ShippingAddress.Name,
		order.ShippingAddress.Line1,
		order.ShippingAddress.Line2,
		order.ShippingAddress.City,
		order.ShippingAddress.State,
		order.ShippingAddress.Zip,
		order.ShippingAddress.Country,
		order.ShippingAddress.Phone,
		order.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `
		SELECT id, user_id, auction_id, product_id, amount_paid,
			ship_name, ship_line1, COALESCE(ship_line2, ''), ship_city, ship_state, ship_zip, ship_country, COALESCE(ship_phone, ''),
			created_at
		FROM orders
		WHERE id = $1
	`

	order := &domain.Order{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&order.AuctionID,
		&order.ProductID,
		&order.AmountPaid,
		&order.ShippingAddress.Name,
		&order.ShippingAddress.Line1,
		&order.ShippingAddress.Line2,
		&order.ShippingAddress.City,
		&order.ShippingAddress.State,
		&order.ShippingAddress.Zip,
		&order.ShippingAddress.Country,
		&order.ShippingAddress.Phone,
		&order.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	return order, nil
}
