package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"synapse/dataset"
	"synapse/ledger"
	"synapse/metrics"
)

// Registry is the slice of the dataset repository the coordinator depends on.
type Registry interface {
	GetByID(ctx context.Context, id int64) (dataset.Record, error)
	AppendPurchaser(ctx context.Context, id int64, buyer, txHash string) (dataset.Record, bool, error)
}

// Quote is the pre-purchase view of everything the buyer needs to know before
// committing funds.
type Quote struct {
	DatasetID     int64  `json:"dataset_id"`
	PoolID        int64  `json:"pool_id"`
	Buyer         string `json:"buyer"`
	Price         int64  `json:"price"`
	Balance       int64  `json:"balance"`
	Allowance     int64  `json:"allowance"`
	NeedsApproval bool   `json:"needs_approval"`
	CanAfford     bool   `json:"can_afford"`
}

// Receipt is the outcome of a confirmed purchase.
type Receipt struct {
	Record    dataset.Record
	TxHash    string
	Duplicate bool
}

// Coordinator drives a purchase through quote, validation, settlement on the
// ledger, and confirmation into the registry. Settlement and confirmation are
// deliberately two steps: settlement is the single atomic value transfer, and
// confirmation is an idempotent registry write that may be replayed.
type Coordinator struct {
	registry Registry
	ledger   ledger.Adapter
	cache    *QuoteCache
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewCoordinator(registry Registry, adapter ledger.Adapter, cache *QuoteCache, m *metrics.Metrics, log *slog.Logger) *Coordinator {
	return &Coordinator{
		registry: registry,
		ledger:   adapter,
		cache:    cache,
		metrics:  m,
		log:      log,
	}
}

// Quote assembles the buyer's pre-purchase view. Results are cached briefly;
// Execute always revalidates against live state.
func (c *Coordinator) Quote(ctx context.Context, datasetID int64, buyer string) (Quote, error) {
	if q, ok := c.cache.Get(ctx, datasetID, buyer); ok {
		return q, nil
	}

	rec, pool, err := c.validate(ctx, datasetID, buyer)
	if err != nil {
		return Quote{}, err
	}

	balance, err := c.ledger.BalanceOf(ctx, buyer)
	if err != nil {
		return Quote{}, fmt.Errorf("purchase: balance lookup: %w", err)
	}
	allowance, err := c.ledger.Allowance(ctx, buyer)
	if err != nil {
		return Quote{}, fmt.Errorf("purchase: allowance lookup: %w", err)
	}

	q := Quote{
		DatasetID:     rec.ID,
		PoolID:        pool.ID,
		Buyer:         buyer,
		Price:         pool.PricePerAccess,
		Balance:       balance,
		Allowance:     allowance,
		NeedsApproval: allowance < pool.PricePerAccess,
		CanAfford:     balance >= pool.PricePerAccess,
	}
	c.cache.Set(ctx, q)
	return q, nil
}

// Approve grants the pool contract an allowance covering the price, returning
// the approval transaction hash.
func (c *Coordinator) Approve(ctx context.Context, buyer string, amount int64) (string, error) {
	txHash, err := c.ledger.Approve(ctx, buyer, amount)
	if err != nil {
		return "", fmt.Errorf("purchase: approve: %w", err)
	}
	c.log.Info("settlement token approved", "buyer", buyer, "amount", amount)
	return txHash, nil
}

// Execute settles the purchase on the ledger and confirms it into the
// registry. A failure after settlement is returned as
// *ConfirmationPendingError so the caller can replay Confirm; the value
// transfer is never repeated.
func (c *Coordinator) Execute(ctx context.Context, datasetID int64, buyer string) (Receipt, error) {
	rec, pool, err := c.validate(ctx, datasetID, buyer)
	if err != nil {
		return Receipt{}, err
	}

	// Funds and allowance checks run before settlement so the common
	// failure modes surface without a ledger state change. The ledger
	// still enforces both; a race simply fails the settlement call.
	balance, err := c.ledger.BalanceOf(ctx, buyer)
	if err != nil {
		return Receipt{}, fmt.Errorf("purchase: balance lookup: %w", err)
	}
	if balance < pool.PricePerAccess {
		return Receipt{}, ErrInsufficientBalance
	}
	allowance, err := c.ledger.Allowance(ctx, buyer)
	if err != nil {
		return Receipt{}, fmt.Errorf("purchase: allowance lookup: %w", err)
	}
	if allowance < pool.PricePerAccess {
		return Receipt{}, ErrApprovalRequired
	}

	start := time.Now()
	txHash, err := c.ledger.Purchase(ctx, pool.ID, buyer)
	c.metrics.LedgerCallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientBalance):
			return Receipt{}, ErrInsufficientBalance
		case errors.Is(err, ledger.ErrInsufficientAllowance):
			return Receipt{}, ErrApprovalRequired
		case errors.Is(err, ledger.ErrPoolInactive):
			return Receipt{}, ErrPoolInactive
		}
		return Receipt{}, fmt.Errorf("purchase: settle: %w", err)
	}

	c.cache.Invalidate(ctx, datasetID, buyer)

	receipt, err := c.Confirm(ctx, rec.ID, buyer, txHash)
	if err != nil {
		c.metrics.ConfirmationsPending.Inc()
		c.log.Error("registry confirmation failed after settlement",
			"dataset_id", rec.ID,
			"buyer", buyer,
			"tx_hash", txHash,
			"error", err)
		return Receipt{}, &ConfirmationPendingError{
			DatasetID: rec.ID,
			Buyer:     buyer,
			TxHash:    txHash,
			Cause:     err,
		}
	}
	return receipt, nil
}

// Confirm records the buyer in the registry's purchaser set. It is idempotent:
// replaying a confirmation returns the unchanged record with Duplicate set.
func (c *Coordinator) Confirm(ctx context.Context, datasetID int64, buyer, txHash string) (Receipt, error) {
	rec, added, err := c.registry.AppendPurchaser(ctx, datasetID, buyer, txHash)
	if err != nil {
		return Receipt{}, err
	}
	if added {
		c.metrics.PurchasesConfirmed.Inc()
		c.log.Info("purchase confirmed", "dataset_id", datasetID, "buyer", buyer, "tx_hash", txHash)
	} else {
		c.metrics.DuplicateConfirmations.Inc()
	}
	return Receipt{Record: rec, TxHash: txHash, Duplicate: !added}, nil
}

// validate runs the checks shared by Quote and Execute against live registry
// and ledger state.
func (c *Coordinator) validate(ctx context.Context, datasetID int64, buyer string) (dataset.Record, ledger.PoolState, error) {
	rec, err := c.registry.GetByID(ctx, datasetID)
	if err != nil {
		return dataset.Record{}, ledger.PoolState{}, err
	}
	if !rec.Linked() {
		return dataset.Record{}, ledger.PoolState{}, ErrNotLinked
	}
	if strings.EqualFold(rec.OwnerAddress, buyer) {
		return dataset.Record{}, ledger.PoolState{}, ErrSelfPurchase
	}
	for _, p := range rec.Purchasers {
		if strings.EqualFold(p, buyer) {
			return dataset.Record{}, ledger.PoolState{}, ErrAlreadyPurchased
		}
	}

	pool, err := c.ledger.GetPool(ctx, *rec.PoolID)
	if err != nil {
		if errors.Is(err, ledger.ErrPoolNotFound) {
			return dataset.Record{}, ledger.PoolState{}, ErrPoolMissing
		}
		return dataset.Record{}, ledger.PoolState{}, fmt.Errorf("purchase: pool lookup: %w", err)
	}
	if !pool.Active {
		return dataset.Record{}, ledger.PoolState{}, ErrPoolInactive
	}
	return rec, pool, nil
}
