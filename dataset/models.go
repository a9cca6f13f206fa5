package dataset

import "time"

// Record mirrors the datasets table columns touched by the settlement
// protocol. PoolID stays nil until reconciliation succeeds; a nil PoolID is a
// valid, queryable "pending reconciliation" state, not an error.
type Record struct {
	ID           int64
	Name         string
	Description  string
	ContentHash  string
	MetadataHash string
	FileSize     int64
	FileType     string
	OwnerAddress string
	Price        int64
	PoolID       *int64
	CreationTx   *string
	Purchasers   []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Linked reports whether the record has been reconciled with a ledger pool.
func (r Record) Linked() bool {
	return r.PoolID != nil
}

// CreateParams enumerates the fields required to register a dataset.
type CreateParams struct {
	Name         string
	Description  string
	ContentHash  string
	MetadataHash string
	FileSize     int64
	FileType     string
	OwnerAddress string
	Price        int64
}

// UpdateParams carries the descriptive fields a PATCH may change. Commercial
// terms and ledger linkage are not updatable through this path.
type UpdateParams struct {
	Name        *string
	Description *string
}

// OwnerView bundles the two result sets of an owner lookup: datasets the
// address uploaded and datasets it purchased.
type OwnerView struct {
	Uploaded  []Record
	Purchased []Record
}

// Event types appended to the settlement_events audit table.
const (
	EventDatasetRegistered = "DATASET_REGISTERED"
	EventPoolAttached      = "POOL_ATTACHED"
	EventPurchaseConfirmed = "PURCHASE_CONFIRMED"
)

// Outbox topics published on settlement transitions.
const (
	OutboxTopicPoolAttached      = "dataset.pool_attached"
	OutboxTopicPurchaseConfirmed = "dataset.purchase_confirmed"
)
