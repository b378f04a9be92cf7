package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	scanerrors "github.com/minter-scanner/internal/errors"
	"github.com/minter-scanner/internal/models"
)

// handleListTrades returns the reconciled aggregate trade history.
// An optional since parameter (unix seconds) filters to strictly newer
// trades, matching the indexer's incremental query semantics.
func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	trades := s.trades.All()

	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, err := strconv.ParseInt(sinceStr, 10, 64)
		if err != nil {
			respondCategorizedError(w, scanerrors.NewInvalidParameterError("since", "must be a unix timestamp"))
			return
		}

		filtered := make([]models.Trade, 0, len(trades))
		for _, t := range trades {
			if t.Timestamp > since {
				filtered = append(filtered, t)
			}
		}
		trades = filtered
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"trades":   trades,
		"hydrated": s.trades.State(),
	})
}

// handleTokenTrades returns one token's reconciled trade history
func (s *Server) handleTokenTrades(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tokenId": id,
		"trades":  s.trades.ForToken(id),
	})
}

// handleTradeHistory returns projected trade events from ClickHouse,
// newest first. Optional parameters: tokenId, limit.
func (s *Server) handleTradeHistory(w http.ResponseWriter, r *http.Request) {
	if s.tradeEvents == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Event projection is not available", nil)
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 || parsed > 1000 {
			respondCategorizedError(w, scanerrors.NewInvalidParameterError("limit", "must be between 1 and 1000"))
			return
		}
		limit = parsed
	}

	var trades []models.Trade
	var err error
	if tokenID := r.URL.Query().Get("tokenId"); tokenID != "" {
		trades, err = s.tradeEvents.TradesForToken(r.Context(), tokenID, limit)
	} else {
		trades, err = s.tradeEvents.RecentTrades(r.Context(), limit)
	}
	if err != nil {
		respondCategorizedError(w, scanerrors.NewDatabaseError("trade history query", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"trades": trades,
	})
}
