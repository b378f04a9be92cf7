package api

import (
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	scanerrors "github.com/minter-scanner/internal/errors"
	"github.com/minter-scanner/internal/models"
	"github.com/minter-scanner/internal/pricing"
)

// handleListTokens returns the full enriched token list
func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tokens":   s.tokens.Tokens(),
		"hydrated": s.tokens.State(),
	})
}

// handleGetToken returns one token by id
func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	token, ok := s.tokens.Get(id)
	if !ok {
		respondCategorizedError(w, scanerrors.NewNotFoundError("token", id))
		return
	}
	respondJSON(w, http.StatusOK, token)
}

// handleGetPrice returns the current curve price for a token, derived
// fresh from the stored curve parameters.
func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	token, ok := s.tokens.Get(id)
	if !ok {
		respondCategorizedError(w, scanerrors.NewNotFoundError("token", id))
		return
	}
	if !token.HasChainMetadata() {
		respondCategorizedError(w, scanerrors.NewMissingMetadataError(id))
		return
	}

	priceWei, err := pricing.PriceWei(token.BasePriceWei(), token.SlopeWei(), token.SupplyUnits())
	if err != nil {
		respondCategorizedError(w, scanerrors.NewMissingMetadataError(id))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tokenId":   id,
		"priceWei":  priceWei.String(),
		"price":     pricing.WeiToEth(priceWei),
		"basePrice": pricing.ParsePrice(token.BasePrice),
	})
}

// handleBurnValue returns the refund for burning a number of units,
// evaluated against the current curve state.
func (s *Server) handleBurnValue(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	amountStr := r.URL.Query().Get("amount")
	if amountStr == "" {
		respondCategorizedError(w, scanerrors.NewInvalidParameterError("amount", "required"))
		return
	}
	amount, err := strconv.ParseInt(amountStr, 10, 64)
	if err != nil || amount < 0 {
		respondCategorizedError(w, scanerrors.NewInvalidParameterError("amount", "must be a non-negative integer"))
		return
	}

	token, ok := s.tokens.Get(id)
	if !ok {
		respondCategorizedError(w, scanerrors.NewNotFoundError("token", id))
		return
	}
	if !token.HasChainMetadata() {
		respondCategorizedError(w, scanerrors.NewMissingMetadataError(id))
		return
	}

	refundWei := pricing.BurnValueWei(token.BasePriceWei(), token.SlopeWei(), token.SupplyUnits(), big.NewInt(amount))

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tokenId":   id,
		"amount":    amount,
		"refundWei": refundWei.String(),
		"refund":    pricing.WeiToEth(refundWei),
	})
}

// handleFeeRecipient returns the current protocol fee recipient from the
// event projection.
func (s *Server) handleFeeRecipient(w http.ResponseWriter, r *http.Request) {
	if s.tokenRepo == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Event projection is not available", nil)
		return
	}

	recipient, err := s.tokenRepo.CurrentFeeRecipient(r.Context())
	if err != nil {
		respondCategorizedError(w, scanerrors.NewDatabaseError("fee recipient lookup", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"feeRecipient": recipient,
	})
}

// tokenCreatedResponse is the wire shape of a projected TokenCreated event.
// Token ids are strings to survive JSON number precision limits.
type tokenCreatedResponse struct {
	TokenID         string    `json:"tokenId"`
	Name            string    `json:"name"`
	Symbol          string    `json:"symbol"`
	Creator         string    `json:"creator"`
	BlockNumber     uint64    `json:"blockNumber"`
	BlockTimestamp  time.Time `json:"blockTimestamp"`
	TransactionHash string    `json:"transactionHash"`
	LogIndex        uint      `json:"logIndex"`
}

func newTokenCreatedResponse(event *models.TokenCreatedEvent) tokenCreatedResponse {
	return tokenCreatedResponse{
		TokenID:         event.TokenID.String(),
		Name:            event.Name,
		Symbol:          event.Symbol,
		Creator:         event.Creator,
		BlockNumber:     event.BlockNumber,
		BlockTimestamp:  event.BlockTimestamp,
		TransactionHash: event.TransactionHash,
		LogIndex:        event.LogIndex,
	}
}

// handleListCreatedTokens returns every projected TokenCreated event,
// ordered by token id.
func (s *Server) handleListCreatedTokens(w http.ResponseWriter, r *http.Request) {
	if s.tokenRepo == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Event projection is not available", nil)
		return
	}

	events, err := s.tokenRepo.ListTokenCreated(r.Context())
	if err != nil {
		respondCategorizedError(w, scanerrors.NewDatabaseError("token registry lookup", err))
		return
	}

	out := make([]tokenCreatedResponse, 0, len(events))
	for i := range events {
		out = append(out, newTokenCreatedResponse(&events[i]))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tokens": out,
	})
}

// handleGetCreatedToken returns the creation event for one token
func (s *Server) handleGetCreatedToken(w http.ResponseWriter, r *http.Request) {
	if s.tokenRepo == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Event projection is not available", nil)
		return
	}

	id := mux.Vars(r)["id"]
	tokenID, ok := new(big.Int).SetString(id, 10)
	if !ok {
		respondCategorizedError(w, scanerrors.NewInvalidParameterError("id", "must be a decimal token id"))
		return
	}

	event, err := s.tokenRepo.GetTokenCreated(r.Context(), tokenID)
	if err != nil {
		respondCategorizedError(w, scanerrors.NewDatabaseError("token registry lookup", err))
		return
	}
	if event == nil {
		respondCategorizedError(w, scanerrors.NewNotFoundError("token", id))
		return
	}
	respondJSON(w, http.StatusOK, newTokenCreatedResponse(event))
}
