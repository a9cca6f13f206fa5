package purchase

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLinked rejects purchases against a dataset still awaiting pool
	// reconciliation.
	ErrNotLinked = errors.New("purchase: dataset has no pool yet")
	// ErrPoolMissing signals the recorded pool id does not resolve on the ledger.
	ErrPoolMissing = errors.New("purchase: pool not found on ledger")
	// ErrPoolInactive rejects purchases against a deactivated pool.
	ErrPoolInactive = errors.New("purchase: pool is inactive")
	// ErrSelfPurchase rejects a creator buying their own dataset.
	ErrSelfPurchase = errors.New("purchase: buyer owns this dataset")
	// ErrAlreadyPurchased rejects a repeat purchase; access is already granted.
	ErrAlreadyPurchased = errors.New("purchase: buyer already holds access")
	// ErrApprovalRequired signals the buyer's allowance does not cover the price.
	ErrApprovalRequired = errors.New("purchase: settlement token approval required")
	// ErrInsufficientBalance signals the buyer's balance cannot cover the price.
	ErrInsufficientBalance = errors.New("purchase: insufficient settlement token balance")
)

// ConfirmationPendingError reports that the ledger settlement finalized but
// the registry confirmation failed. Funds have moved; the buyer's access is
// recoverable by replaying Confirm with the recorded transaction hash, never
// by settling again.
type ConfirmationPendingError struct {
	DatasetID int64
	Buyer     string
	TxHash    string
	Cause     error
}

func (e *ConfirmationPendingError) Error() string {
	return fmt.Sprintf("purchase: settled on ledger (tx %s) but registry confirmation pending: %v", e.TxHash, e.Cause)
}

func (e *ConfirmationPendingError) Unwrap() error { return e.Cause }
