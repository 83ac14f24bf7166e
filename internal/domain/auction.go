package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuctionStatus represents the lifecycle state of an auction
type AuctionStatus string

const (
	AuctionStatusOpen  AuctionStatus = "open"
	AuctionStatusEnded AuctionStatus = "ended"
)

// Auction represents a time-boxed auction for a single product
type Auction struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	ProductID        uuid.UUID     `json:"product_id" db:"product_id"`
	StartTime        time.Time     `json:"start_time" db:"start_time"`
	EndTime          time.Time     `json:"end_time" db:"end_time"`
	StartingBid      int64         `json:"starting_bid" db:"starting_bid"`
	CurrentBid       *int64        `json:"current_bid,omitempty" db:"current_bid"`
	CurrentBidUserID *uuid.UUID    `json:"current_bid_user_id,omitempty" db:"current_bid_user_id"`
	Status           AuctionStatus `json:"status" db:"status"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// HasExpired reports whether the auction's end time has passed. An auction
// whose status is still open but whose end time has passed is treated as
// ended everywhere; the row is flipped lazily the first time this is observed.
func (a *Auction) HasExpired(now time.Time) bool {
	return !now.Before(a.EndTime)
}

// HighBid returns the amount a new bid has to beat: the current bid when one
// exists, otherwise the starting bid.
func (a *Auction) HighBid() int64 {
	if a.CurrentBid != nil && *a.CurrentBid > a.StartingBid {
		return *a.CurrentBid
	}
	return a.StartingBid
}

// Bid represents a single bid on an auction. Bids are append-only; they are
// never updated or deleted once recorded.
type Bid struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AuctionID uuid.UUID `json:"auction_id" db:"auction_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Amount    int64     `json:"amount" db:"amount"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
