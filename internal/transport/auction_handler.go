package transport

import (
	"errors"
	"net/http"
	"time"

	"solebid/internal/middleware"
	"solebid/internal/repository"
	"solebid/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateAuctionRequest represents the auction creation request payload
type CreateAuctionRequest struct {
	ProductID    string `json:"product_id" validate:"required,uuid"`
	StartingBid  int64  `json:"starting_bid" validate:"required,gt=0"`
	DurationDays int    `json:"duration_days" validate:"omitempty,gte=1,lte=30"`
}

// PlaceBidRequest represents the bid placement request payload
type PlaceBidRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
}

// BidResponse represents the outcome of a bid attempt
type BidResponse struct {
	Accepted    bool       `json:"accepted"`
	Reason      string     `json:"reason,omitempty"`
	MinimumNext int64      `json:"minimum_next_bid"`
	BidID       *uuid.UUID `json:"bid_id,omitempty"`
}

// AuctionHandler handles HTTP requests for auction operations
type AuctionHandler struct {
	auctionService service.AuctionService
	logger         *zap.Logger
}

// NewAuctionHandler creates a new AuctionHandler
func NewAuctionHandler(auctionService service.AuctionService, logger *zap.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctionService: auctionService,
		logger:         logger,
	}
}

// RegisterRoutes registers all auction routes
func (h *AuctionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/auctions", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/bids", h.PlaceBid)
		r.Get("/{id}/bids", h.ListBids)
		r.Post("/{id}/end", h.End)
		r.Get("/{id}/winner", h.Winner)
	})
}

// Create handles auction creation
func (h *AuctionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAuctionRequest

	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Auction creation validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	var duration time.Duration
	if req.DurationDays > 0 {
		duration = time.Duration(req.DurationDays) * 24 * time.Hour
	}

	auction, err := h.auctionService.Create(r.Context(), productID, req.StartingBid, duration)
	if err != nil {
		h.logger.Error("Auction creation failed", zap.Error(err))

		if errors.Is(err, service.ErrInvalidStartingBid) {
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to create auction")
		return
	}

	h.logger.Info("Auction created", zap.String("auction_id", auction.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, auction)
}

// Get handles fetching a single auction
func (h *AuctionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid auction ID")
		return
	}

	auction, err := h.auctionService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "auction not found")
			return
		}

		h.logger.Error("Failed to get auction", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get auction")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, auction)
}

// PlaceBid handles a bid attempt. Rejected bids are reported with 422 and
// the reason plus the minimum acceptable next amount; only transport and
// infrastructure failures use 5xx.
func (h *AuctionHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid auction ID")
		return
	}

	var req PlaceBidRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Bid validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	bid, decision, err := h.auctionService.PlaceBid(r.Context(), id, userID, req.Amount)
	if err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "auction not found")
			return
		}

		h.logger.Error("Bid placement failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to place bid")
		return
	}

	response := BidResponse{
		Accepted:    decision.Accepted,
		Reason:      string(decision.Reason),
		MinimumNext: decision.MinimumNext,
	}

	if !decision.Accepted {
		middleware.RespondWithJSON(w, http.StatusUnprocessableEntity, response)
		return
	}

	response.BidID = &bid.ID
	h.logger.Info("Bid accepted",
		zap.String("auction_id", id.String()),
		zap.String("bid_id", bid.ID.String()),
		zap.Int64("amount", bid.Amount),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, response)
}

// ListBids handles fetching the bid history of an auction
func (h *AuctionHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid auction ID")
		return
	}

	bids, err := h.auctionService.ListBids(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "auction not found")
			return
		}

		h.logger.Error("Failed to list bids", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list bids")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, bids)
}

// End handles explicitly ending an auction
func (h *AuctionHandler) End(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid auction ID")
		return
	}

	auction, err := h.auctionService.End(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "auction not found")
			return
		}

		h.logger.Error("Failed to end auction", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to end auction")
		return
	}

	h.logger.Info("Auction ended", zap.String("auction_id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, auction)
}

// Winner handles fetching the winning bid of an ended auction
func (h *AuctionHandler) Winner(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid auction ID")
		return
	}

	bid, err := h.auctionService.Winner(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAuctionNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "auction not found")
		case errors.Is(err, repository.ErrNoBids):
			middleware.RespondWithError(w, http.StatusNotFound, "auction has no bids")
		case errors.Is(err, service.ErrAuctionStillOpen):
			middleware.RespondWithError(w, http.StatusConflict, "auction has not ended yet")
		default:
			h.logger.Error("Failed to get winner", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get winner")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, bid)
}

func parseIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}
