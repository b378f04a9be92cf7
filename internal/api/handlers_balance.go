package api

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	scanerrors "github.com/minter-scanner/internal/errors"
	"github.com/minter-scanner/internal/models"
)

// handleGetBalances returns an account's balance for every tracked token.
// Cached balances are served as-is; refresh=true re-reads from chain and
// updates the store through its equality gate.
func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]
	if !common.IsHexAddress(account) {
		respondCategorizedError(w, scanerrors.NewInvalidParameterError("account", "not a hex address"))
		return
	}

	refresh := r.URL.Query().Get("refresh") == "true"

	if !refresh {
		if balances, ok := s.balances.Get(account); ok {
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"account":  account,
				"balances": balances,
				"cached":   true,
			})
			return
		}
	}

	if s.chain == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Chain reads are not available", nil)
		return
	}

	balances, err := s.fetchBalances(r, account)
	if err != nil {
		respondCategorizedError(w, err)
		return
	}

	s.balances.Set(r.Context(), account, balances)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"account":  account,
		"balances": balances,
		"cached":   false,
	})
}

// fetchBalances reads the account's balance of every tracked token from
// chain, skipping zero holdings.
func (s *Server) fetchBalances(r *http.Request, account string) ([]models.Balance, error) {
	ctx := r.Context()

	balances := make([]models.Balance, 0)
	for _, token := range s.tokens.Tokens() {
		tokenID, ok := new(big.Int).SetString(token.TokenID, 10)
		if !ok {
			continue
		}

		raw, err := s.chain.BalanceOf(ctx, account, tokenID)
		if err != nil {
			return nil, err
		}
		if raw.Sign() == 0 {
			continue
		}

		// Balances can exceed int64; convert through big.Float.
		formatted, _ := new(big.Float).SetInt(raw).Float64()
		balance := models.Balance{
			TokenID:   token.TokenID,
			Raw:       raw.String(),
			Formatted: formatted,
		}
		if token.Price != nil {
			value := balance.Formatted * *token.Price
			balance.ValueETH = &value
		}
		balances = append(balances, balance)
	}
	return balances, nil
}
