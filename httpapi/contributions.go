package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type stakeRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	poolID, ok := pathID(r, "poolID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid pool id"})
		return
	}

	var req stakeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	txHash, err := s.contributions.Stake(r.Context(), poolID, callerAddress(r.Context()), req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"tx_hash": txHash})
}

func (s *Server) handleWithdrawStake(w http.ResponseWriter, r *http.Request) {
	poolID, ok := pathID(r, "poolID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid pool id"})
		return
	}

	txHash, err := s.contributions.WithdrawStake(r.Context(), poolID, callerAddress(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tx_hash": txHash})
}

func (s *Server) handlePendingStakes(w http.ResponseWriter, r *http.Request) {
	poolID, ok := pathID(r, "poolID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid pool id"})
		return
	}

	stakes, err := s.contributions.PendingStakes(r.Context(), poolID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stakes": stakes})
}

func (s *Server) handleStakeStatus(w http.ResponseWriter, r *http.Request) {
	poolID, ok := pathID(r, "poolID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid pool id"})
		return
	}

	status, err := s.contributions.Status(r.Context(), poolID, chi.URLParam(r, "contributor"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleAcceptStake converts a pending stake; the ledger enforces that only
// the pool creator may do this.
func (s *Server) handleAcceptStake(w http.ResponseWriter, r *http.Request) {
	poolID, ok := pathID(r, "poolID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid pool id"})
		return
	}

	txHash, err := s.contributions.AcceptStake(r.Context(), poolID, callerAddress(r.Context()), chi.URLParam(r, "contributor"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tx_hash": txHash})
}

func (s *Server) handleRejectStake(w http.ResponseWriter, r *http.Request) {
	poolID, ok := pathID(r, "poolID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid pool id"})
		return
	}

	txHash, err := s.contributions.RejectStake(r.Context(), poolID, callerAddress(r.Context()), chi.URLParam(r, "contributor"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tx_hash": txHash})
}

func (s *Server) handleContributors(w http.ResponseWriter, r *http.Request) {
	poolID, ok := pathID(r, "poolID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid pool id"})
		return
	}

	roster, err := s.contributions.Contributors(r.Context(), poolID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contributors": roster})
}

func (s *Server) handleRoyalty(w http.ResponseWriter, r *http.Request) {
	address := callerAddress(r.Context())
	amount, err := s.contributions.Royalty(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": address, "pending": amount})
}

func (s *Server) handleClaimRoyalties(w http.ResponseWriter, r *http.Request) {
	address := callerAddress(r.Context())
	txHash, amount, err := s.contributions.ClaimRoyalties(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address": address,
		"claimed": amount,
		"tx_hash": txHash,
	})
}
