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
	ErrAuctionNotFound = errors.New("auction not found")
	ErrNoBids          = errors.New("no bids recorded for auction")
)

// AuctionRepository defines data access for auctions and their bid ledger.
// Methods taking a *sql.Tx participate in a caller-managed transaction; the
// bid insert and the current-bid update must always share one.
type AuctionRepository interface {
	Create(ctx context.Context, auction *domain.Auction) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error)
	FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Auction, error)
	MarkEnded(ctx context.Context, id uuid.UUID) error
	MarkEndedTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) error
	InsertBid(ctx context.Context, tx *sql.Tx, bid *domain.Bid) error
	UpdateCurrentBid(ctx context.Context, tx *sql.Tx, auctionID uuid.UUID, amount int64, userID uuid.UUID) error
	ListBids(ctx context.Context, auctionID uuid.UUID) ([]*domain.Bid, error)
}

type auctionRepository struct {
	db *sql.DB
}

// NewAuctionRepository creates a new instance of AuctionRepository
func NewAuctionRepository(db *sql.DB) AuctionRepository {
	return &auctionRepository{db: db}
}

const auctionColumns = `id, product_id, start_time, end_time, starting_bid, current_bid, current_bid_user_id, status, created_at, updated_at`

func scanAuction(row *sql.Row) (*domain.Auction, error) {
	auction := &domain.Auction{}
	err := row.Scan(
		&auction.ID,
		&auction.ProductID,
		&auction.StartTime,
		&auction.EndTime,
		&auction.StartingBid,
		&auction.CurrentBid,
		&auction.CurrentBidUserID,
		&auction.Status,
		&auction.CreatedAt,
		&auction.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to scan auction: %w", err)
	}
	return auction, nil
}

// Create inserts a new auction using parameterized queries
func (r *auctionRepository) Create(ctx context.Context, auction *domain.Auction) error {
	query := `
		INSERT INTO auctions (id, product_id, start_time, end_time, starting_bid, current_bid, current_bid_user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		auction.ID,
		auction.ProductID,
		auction.StartTime,
		auction.EndTime,
		auction.StartingBid,
		auction.CurrentBid,
		auction.CurrentBidUserID,
		auction.Status,
		auction.CreatedAt,
		auction.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}

	return nil
}

// FindByID retrieves an auction by ID
func (r *auctionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	return scanAuction(r.db.QueryRowContext(ctx, query, id))
}

// FindByIDForUpdate retrieves an auction inside tx, holding a row lock until
// the transaction finishes. Every competing bid serializes on this lock, so
// the validator always sees the latest committed current bid.
func (r *auctionRepository) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1 FOR UPDATE`
	return scanAuction(tx.QueryRowContext(ctx, query, id))
}

// MarkEnded transitions an auction to the terminal ended status
func (r *auctionRepository) MarkEnded(ctx context.Context, id uuid.UUID) error {
	return r.markEnded(ctx, r.db, id)
}

// MarkEndedTx is MarkEnded inside a caller-managed transaction
func (r *auctionRepository) MarkEndedTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	return r.markEnded(ctx, tx, id)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *auctionRepository) markEnded(ctx context.Context, ex execer, id uuid.UUID) error {
	query := `UPDATE auctions SET status = $2 WHERE id = $1 AND status != $2`

	// Zero rows affected means the auction was already ended; callers load
	// the row first, so a missing auction is caught before reaching here.
	if _, err := ex.ExecContext(ctx, query, id, domain.AuctionStatusEnded); err != nil {
		return fmt.Errorf("failed to mark auction ended: %w", err)
	}

	return nil
}

// InsertBid appends a bid to the ledger. Bids are immutable once inserted.
func (r *auctionRepository) InsertBid(ctx context.Context, tx *sql.Tx, bid *domain.Bid) error {
	query := `
		INSERT INTO bids (id, auction_id, user_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := tx.ExecContext(ctx, query, bid.ID, bid.AuctionID, bid.UserID, bid.Amount, bid.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}

	return nil
}

// UpdateCurrentBid sets the auction's high-bid fields. Must run in the same
// transaction as the matching InsertBid.
func (r *auctionRepository) UpdateCurrentBid(ctx context.Context, tx *sql.Tx, auctionID uuid.UUID, amount int64, userID uuid.UUID) error {
	query := `
		UPDATE auctions
		SET current_bid = $2, current_bid_user_id = $3, updated_at = $4
		WHERE id = $1
	`

	result, err := tx.ExecContext(ctx, query, auctionID, amount, userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update current bid: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAuctionNotFound
	}

	return nil
}

// ListBids returns the bid ledger for an auction, newest first
func (r *auctionRepository) ListBids(ctx context.Context, auctionID uuid.UUID) ([]*domain.Bid, error) {
	query := `
		SELECT id, auction_id, user_id, amount, created_at
		FROM bids
		WHERE auction_id = $1
		ORDER BY created_at DESC, amount DESC
	`

	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	defer rows.Close()

	bids := []*domain.Bid{}
	for rows.Next() {
		bid := &domain.Bid{}
		if err := rows.Scan(&bid.ID, &bid.AuctionID, &bid.UserID, &bid.Amount, &bid.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, bid)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return bids, nil
}
