package domain

import (
	"time"

	"github.com/google/uuid"
)

// Order is the paid result of a won auction. Checkout itself (Stripe,
// Razorpay) happens outside this core; orders arrive here already paid,
// via the payment confirmation webhook.
type Order struct {
	ID              uuid.UUID `json:"id" db:"id"`
	UserID          uuid.UUID `json:"user_id" db:"user_id"`
	AuctionID       uuid.UUID `json:"auction_id" db:"auction_id"`
	ProductID       uuid.UUID `json:"product_id" db:"product_id"`
	AmountPaid      int64     `json:"amount_paid" db:"amount_paid"`
	ShippingAddress Address   `json:"shipping_address"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
