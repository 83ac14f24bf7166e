package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"solebid/internal/config"
	"solebid/internal/database"
	"solebid/internal/domain"
	"solebid/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidStartingBid = errors.New("starting bid must be positive")
	ErrAuctionStillOpen   = errors.New("auction has not ended yet")
)

// AuctionService defines the auction lifecycle and bid acceptance logic.
// The state machine is open -> ended, with no reopening; the transition
// happens on explicit End or lazily when any path observes the end time
// has passed.
type AuctionService interface {
	Create(ctx context.Context, productID uuid.UUID, startingBid int64, duration time.Duration) (*domain.Auction, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Auction, error)
	PlaceBid(ctx context.Context, auctionID, userID uuid.UUID, amount int64) (*domain.Bid, BidDecision, error)
	End(ctx context.Context, id uuid.UUID) (*domain.Auction, error)
	Winner(ctx context.Context, id uuid.UUID) (*domain.Bid, error)
	ListBids(ctx context.Context, auctionID uuid.UUID) ([]*domain.Bid, error)
	Increment() int64
}

type auctionService struct {
	db              *sql.DB
	repo            repository.AuctionRepository
	increment       int64
	defaultDuration time.Duration
	logger          *zap.Logger
	now             func() time.Time
}

// NewAuctionService creates a new instance of AuctionService
func NewAuctionService(db *sql.DB, repo repository.AuctionRepository, cfg config.AuctionConfig, logger *zap.Logger) AuctionService {
	return &auctionService{
		db:              db,
		repo:            repo,
		increment:       cfg.BidIncrement,
		defaultDuration: cfg.DefaultDuration,
		logger:          logger,
		now:             time.Now,
	}
}

// Increment exposes the configured bid increment so callers can surface it
func (s *auctionService) Increment() int64 {
	return s.increment
}

// Create opens a new auction for a product. Duration falls back to the
// configured default when not given.
func (s *auctionService) Create(ctx context.Context, productID uuid.UUID, startingBid int64, duration time.Duration) (*domain.Auction, error) {
	if startingBid <= 0 {
		return nil, ErrInvalidStartingBid
	}
	if duration <= 0 {
		duration = s.defaultDuration
	}

	now := s.now()
	auction := &domain.Auction{
		ID:          uuid.New(),
		ProductID:   productID,
		StartTime:   now,
		EndTime:     now.Add(duration),
		StartingBid: startingBid,
		Status:      domain.AuctionStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, auction); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}

	s.logger.Info("Auction created",
		zap.String("auction_id", auction.ID.String()),
		zap.String("product_id", productID.String()),
		zap.Int64("starting_bid", startingBid),
		zap.Time("end_time", auction.EndTime),
	)

	return auction, nil
}

// Get loads an auction, applying the lazy open -> ended transition when the
// end time has passed. Every caller sees a consistent answer to "is this
// auction over" because the check lives here, not in the handlers.
func (s *auctionService) Get(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	auction, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.resolveStatus(ctx, auction)
}

func (s *auctionService) resolveStatus(ctx context.Context, auction *domain.Auction) (*domain.Auction, error) {
	if auction.Status == domain.AuctionStatusOpen && auction.HasExpired(s.now()) {
		if err := s.repo.MarkEnded(ctx, auction.ID); err != nil {
			return nil, fmt.Errorf("failed to apply lazy end transition: %w", err)
		}
		auction.Status = domain.AuctionStatusEnded

		s.logger.Info("Auction lazily transitioned to ended",
			zap.String("auction_id", auction.ID.String()),
		)
	}

	return auction, nil
}

// PlaceBid validates and records a bid. The auction row is locked for the
// whole validate-then-update sequence, so competing bids serialize: the
// second always sees the first's committed result before being judged. The
// bid insert and the current-bid update commit together or not at all.
//
// A rejected bid is a decision, not an error; the error return is reserved
// for I/O failures.
func (s *auctionService) PlaceBid(ctx context.Context, auctionID, userID uuid.UUID, amount int64) (*domain.Bid, BidDecision, error) {
	var (
		bid      *domain.Bid
		decision BidDecision
	)

	txOpts := database.TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		MaxRetries:     1,
	}

	err := database.WithRetry(ctx, s.db, txOpts, func(tx *sql.Tx) error {
		auction, err := s.repo.FindByIDForUpdate(ctx, tx, auctionID)
		if err != nil {
			return err
		}

		now := s.now()
		decision = ValidateBid(auction, amount, s.increment, now)

		if decision.Reason == ReasonAuctionEnded {
			// Lazy transition rides along in the same transaction
			if err := s.repo.MarkEndedTx(ctx, tx, auctionID); err != nil {
				return err
			}
		}
		if !decision.Accepted {
			return nil
		}

		bid = &domain.Bid{
			ID:        uuid.New(),
			AuctionID: auctionID,
			UserID:    userID,
			Amount:    amount,
			CreatedAt: now,
		}

		if err := s.repo.InsertBid(ctx, tx, bid); err != nil {
			return err
		}
		return s.repo.UpdateCurrentBid(ctx, tx, auctionID, amount, userID)
	})

	if err != nil {
		return nil, BidDecision{}, fmt.Errorf("failed to place bid on auction %s: %w", auctionID, err)
	}

	if decision.Accepted {
		s.logger.Info("Bid accepted",
			zap.String("auction_id", auctionID.String()),
			zap.String("user_id", userID.String()),
			zap.Int64("amount", amount),
		)
		return bid, decision, nil
	}

	s.logger.Info("Bid rejected",
		zap.String("auction_id", auctionID.String()),
		zap.String("user_id", userID.String()),
		zap.Int64("amount", amount),
		zap.String("reason", string(decision.Reason)),
		zap.Int64("minimum_next", decision.MinimumNext),
	)
	return nil, decision, nil
}

// End applies the explicit admin "end now" transition. Ending an already
// ended auction is a no-op.
func (s *auctionService) End(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	auction, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if auction.Status == domain.AuctionStatusEnded {
		return auction, nil
	}

	if err := s.repo.MarkEnded(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to end auction: %w", err)
	}
	auction.Status = domain.AuctionStatusEnded

	s.logger.Info("Auction ended by admin", zap.String("auction_id", id.String()))

	return auction, nil
}

// Winner returns the winning bid of an ended auction: the bid that holds
// the auction's final current-bid amount.
func (s *auctionService) Winner(ctx context.Context, id uuid.UUID) (*domain.Bid, error) {
	auction, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if auction.Status != domain.AuctionStatusEnded {
		return nil, ErrAuctionStillOpen
	}
	if auction.CurrentBid == nil || auction.CurrentBidUserID == nil {
		return nil, repository.ErrNoBids
	}

	bids, err := s.repo.ListBids(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, bid := range bids {
		if bid.Amount == *auction.CurrentBid && bid.UserID == *auction.CurrentBidUserID {
			return bid, nil
		}
	}

	return nil, repository.ErrNoBids
}

// ListBids returns the append-only bid ledger, newest first
func (s *auctionService) ListBids(ctx context.Context, auctionID uuid.UUID) ([]*domain.Bid, error) {
	if _, err := s.repo.FindByID(ctx, auctionID); err != nil {
		return nil, err
	}
	return s.repo.ListBids(ctx, auctionID)
}
