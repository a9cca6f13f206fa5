package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"synapse/auth"
	"synapse/contentstore"
	"synapse/contribution"
	"synapse/dataset"
	"synapse/ledger"
	"synapse/purchase"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain errors onto HTTP statuses. Unmapped errors become
// opaque 500s so internals never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	var pending *purchase.ConfirmationPendingError
	if errors.As(err, &pending) {
		// Settlement succeeded; the client should replay confirmation with
		// the returned hash instead of purchasing again.
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":     "confirmation_pending",
			"dataset_id": pending.DatasetID,
			"tx_hash":    pending.TxHash,
		})
		return
	}

	status := http.StatusInternalServerError
	code := ""
	switch {
	case errors.Is(err, dataset.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, contentstore.ErrNotFound),
		errors.Is(err, purchase.ErrPoolMissing),
		errors.Is(err, ledger.ErrPoolNotFound):
		status = http.StatusNotFound
	case errors.Is(err, dataset.ErrInvalidInput),
		errors.Is(err, contribution.ErrInvalidAmount),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, contentstore.ErrEmptyContent):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, ledger.ErrNotCreator):
		status = http.StatusForbidden
	case errors.Is(err, purchase.ErrApprovalRequired):
		status = http.StatusPaymentRequired
		code = "approval_required"
	case errors.Is(err, purchase.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientAllowance):
		status = http.StatusPaymentRequired
		code = "insufficient_funds"
	case errors.Is(err, dataset.ErrDuplicateName),
		errors.Is(err, auth.ErrDuplicateEmail),
		errors.Is(err, auth.ErrDuplicateWallet),
		errors.Is(err, dataset.ErrAlreadyLinked),
		errors.Is(err, purchase.ErrAlreadyPurchased),
		errors.Is(err, purchase.ErrSelfPurchase),
		errors.Is(err, purchase.ErrNotLinked),
		errors.Is(err, purchase.ErrPoolInactive),
		errors.Is(err, ledger.ErrPoolInactive),
		errors.Is(err, ledger.ErrStakePending),
		errors.Is(err, ledger.ErrNoPendingStake):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrCall):
		status = http.StatusBadGateway
		code = "ledger_unavailable"
	case errors.Is(err, dataset.ErrReconciliationConflict):
		status = http.StatusConflict
		code = "reconciliation_conflict"
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
