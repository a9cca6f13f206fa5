package httpapi

import (
	"net/http"
)

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid dataset id"})
		return
	}

	quote, err := s.purchases.Quote(r.Context(), id, callerAddress(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

type approveRequest struct {
	Amount int64 `json:"amount"`
}

// handleApprove grants the pool contract an allowance. The dataset id scopes
// the route; the allowance itself is account wide, matching the settlement
// token's approve semantics.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	if _, ok := pathID(r, "id"); !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid dataset id"})
		return
	}

	var req approveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "amount must be positive"})
		return
	}

	txHash, err := s.purchases.Approve(r.Context(), callerAddress(r.Context()), req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tx_hash": txHash})
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid dataset id"})
		return
	}

	receipt, err := s.purchases.Execute(r.Context(), id, callerAddress(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dataset": toPayload(receipt.Record),
		"tx_hash": receipt.TxHash,
	})
}

type confirmRequest struct {
	TxHash string `json:"tx_hash"`
}

// handleConfirm replays a registry confirmation for an already-settled
// purchase. It is safe to call any number of times.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid dataset id"})
		return
	}

	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if req.TxHash == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "tx_hash is required"})
		return
	}

	receipt, err := s.purchases.Confirm(r.Context(), id, callerAddress(r.Context()), req.TxHash)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dataset":   toPayload(receipt.Record),
		"tx_hash":   receipt.TxHash,
		"duplicate": receipt.Duplicate,
	})
}
