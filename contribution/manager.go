package contribution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"synapse/ledger"
	"synapse/metrics"
)

var (
	// ErrInvalidAmount rejects non-positive stake amounts before any ledger call.
	ErrInvalidAmount = errors.New("contribution: stake amount must be positive")
)

// StakeStatus is the contributor's view of their position in a pool.
type StakeStatus struct {
	PoolID      int64  `json:"pool_id"`
	Contributor string `json:"contributor"`
	Pending     int64  `json:"pending"`
	Accepted    int64  `json:"accepted"`
}

// StakeIndex is the read side of the off-chain index the manager serves
// creator views from.
type StakeIndex interface {
	ListPending(ctx context.Context, poolID int64) ([]IndexedStake, error)
}

// Manager fronts the contributor-side ledger operations: staking into pools,
// creator curation of stakes, and royalty claims. All balance state lives on
// the ledger; the off-chain index only accelerates enumeration.
type Manager struct {
	ledger  ledger.Adapter
	index   StakeIndex
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewManager(adapter ledger.Adapter, index StakeIndex, m *metrics.Metrics, log *slog.Logger) *Manager {
	return &Manager{
		ledger:  adapter,
		index:   index,
		metrics: m,
		log:     log,
	}
}

// Stake escrows the contributor's tokens into the pool as a pending stake.
// The ledger enforces the one-open-stake rule per (pool, contributor).
func (m *Manager) Stake(ctx context.Context, poolID int64, contributor string, amount int64) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}

	start := time.Now()
	txHash, err := m.ledger.Stake(ctx, poolID, contributor, amount)
	m.metrics.LedgerCallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("contribution: stake: %w", err)
	}

	m.metrics.StakesSubmitted.Inc()
	m.log.Info("stake submitted",
		"pool_id", poolID,
		"contributor", contributor,
		"amount", amount,
		"tx_hash", txHash)
	return txHash, nil
}

// AcceptStake converts the contributor's pending stake into an accepted one,
// adding them to the pool's royalty roster. Only the pool creator may call
// this; the ledger rejects anyone else.
func (m *Manager) AcceptStake(ctx context.Context, poolID int64, caller, contributor string) (string, error) {
	txHash, err := m.ledger.AcceptStake(ctx, poolID, caller, contributor)
	if err != nil {
		return "", fmt.Errorf("contribution: accept stake: %w", err)
	}
	m.log.Info("stake accepted", "pool_id", poolID, "contributor", contributor, "by", caller)
	return txHash, nil
}

// RejectStake refunds the contributor's pending stake in full.
func (m *Manager) RejectStake(ctx context.Context, poolID int64, caller, contributor string) (string, error) {
	txHash, err := m.ledger.RejectStake(ctx, poolID, caller, contributor)
	if err != nil {
		return "", fmt.Errorf("contribution: reject stake: %w", err)
	}
	m.log.Info("stake rejected", "pool_id", poolID, "contributor", contributor, "by", caller)
	return txHash, nil
}

// WithdrawStake lets the contributor reclaim their own still-pending stake.
func (m *Manager) WithdrawStake(ctx context.Context, poolID int64, contributor string) (string, error) {
	txHash, err := m.ledger.WithdrawStake(ctx, poolID, contributor)
	if err != nil {
		return "", fmt.Errorf("contribution: withdraw stake: %w", err)
	}
	m.log.Info("stake withdrawn", "pool_id", poolID, "contributor", contributor)
	return txHash, nil
}

// Status reports the contributor's pending and accepted amounts for a pool.
func (m *Manager) Status(ctx context.Context, poolID int64, contributor string) (StakeStatus, error) {
	pending, err := m.ledger.PendingStake(ctx, poolID, contributor)
	if err != nil {
		return StakeStatus{}, fmt.Errorf("contribution: pending stake: %w", err)
	}
	accepted, err := m.ledger.AcceptedStake(ctx, poolID, contributor)
	if err != nil {
		return StakeStatus{}, fmt.Errorf("contribution: accepted stake: %w", err)
	}
	return StakeStatus{
		PoolID:      poolID,
		Contributor: contributor,
		Pending:     pending,
		Accepted:    accepted,
	}, nil
}

// Contributors lists the pool's accepted-contributor roster from the ledger.
func (m *Manager) Contributors(ctx context.Context, poolID int64) ([]string, error) {
	roster, err := m.ledger.Contributors(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("contribution: contributors: %w", err)
	}
	return roster, nil
}

// PendingStakes enumerates unresolved stakes for a pool from the off-chain
// index so creators do not have to probe addresses one by one.
func (m *Manager) PendingStakes(ctx context.Context, poolID int64) ([]IndexedStake, error) {
	return m.index.ListPending(ctx, poolID)
}

// Royalty reports the address's claimable royalty balance.
func (m *Manager) Royalty(ctx context.Context, address string) (int64, error) {
	amount, err := m.ledger.PendingRoyalty(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("contribution: pending royalty: %w", err)
	}
	return amount, nil
}

// ClaimRoyalties transfers the full accrued royalty balance to the address
// and zeroes it. Claiming a zero balance is a harmless no-op.
func (m *Manager) ClaimRoyalties(ctx context.Context, address string) (string, int64, error) {
	amount, err := m.ledger.PendingRoyalty(ctx, address)
	if err != nil {
		return "", 0, fmt.Errorf("contribution: pending royalty: %w", err)
	}

	txHash, err := m.ledger.Claim(ctx, address)
	if err != nil {
		return "", 0, fmt.Errorf("contribution: claim: %w", err)
	}

	m.metrics.RoyaltiesClaimed.Inc()
	m.log.Info("royalties claimed", "address", address, "amount", amount, "tx_hash", txHash)
	return txHash, amount, nil
}
