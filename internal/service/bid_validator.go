package service

import (
	"time"

	"solebid/internal/domain"
)

// RejectionReason identifies why a proposed bid was not accepted
type RejectionReason string

const (
	ReasonAuctionNotOpen RejectionReason = "auction_not_open"
	ReasonAuctionEnded   RejectionReason = "auction_ended"
	ReasonInvalidAmount  RejectionReason = "invalid_amount"
	ReasonBadIncrement   RejectionReason = "bad_increment"
	ReasonBelowMinimum   RejectionReason = "below_minimum"
)

// BidDecision is the outcome of validating a proposed bid. Rejections are
// expected outcomes, not errors; MinimumNext tells the bidder what the
// lowest acceptable amount currently is.
type BidDecision struct {
	Accepted    bool            `json:"accepted"`
	Reason      RejectionReason `json:"reason,omitempty"`
	MinimumNext int64           `json:"minimum_next,omitempty"`
}

func accepted(minimumNext int64) BidDecision {
	return BidDecision{Accepted: true, MinimumNext: minimumNext}
}

func rejected(reason RejectionReason, minimumNext int64) BidDecision {
	return BidDecision{Reason: reason, MinimumNext: minimumNext}
}

// MinimumNextBid returns the lowest amount a new bid must reach: one
// increment above the current high bid (or the starting bid when no bid
// exists yet).
func MinimumNextBid(a *domain.Auction, increment int64) int64 {
	return a.HighBid() + increment
}

// ValidateBid checks a proposed bid against an auction snapshot. It is a
// pure function over its inputs: no I/O, no clock reads, no hidden state.
// Rules apply in order; the first violated rule decides the rejection.
//
// When the reason is ReasonAuctionEnded the caller is expected to transition
// the auction to ended as a side effect.
func ValidateBid(a *domain.Auction, amount int64, increment int64, now time.Time) BidDecision {
	minimumNext := MinimumNextBid(a, increment)

	if a.Status != domain.AuctionStatusOpen {
		return rejected(ReasonAuctionNotOpen, minimumNext)
	}
	if a.HasExpired(now) {
		return rejected(ReasonAuctionEnded, minimumNext)
	}
	if amount <= 0 {
		return rejected(ReasonInvalidAmount, minimumNext)
	}
	if amount%increment != 0 {
		return rejected(ReasonBadIncrement, minimumNext)
	}
	if amount < minimumNext {
		return rejected(ReasonBelowMinimum, minimumNext)
	}

	return accepted(amount + increment)
}
