package ledger

import (
	"context"
	"errors"
	"time"
)

// PoolState mirrors the on-ledger pool record. The pool id is assigned by the
// ledger's internal counter at creation time and is never chosen by a client.
type PoolState struct {
	ID                int64
	Creator           string
	ContentHash       string
	MetadataHash      string
	PricePerAccess    int64
	TotalContributors int
	Active            bool
}

// StakeEventKind enumerates the stake-submission events the ledger emits.
type StakeEventKind string

const (
	StakeSubmitted StakeEventKind = "submitted"
	StakeAccepted  StakeEventKind = "accepted"
	StakeRejected  StakeEventKind = "rejected"
	StakeWithdrawn StakeEventKind = "withdrawn"
)

// StakeEvent is emitted whenever a stake changes state on the ledger. It feeds
// the off-chain stake index so creators can enumerate pending stakes without
// polling arbitrary addresses.
type StakeEvent struct {
	Kind        StakeEventKind
	PoolID      int64
	Contributor string
	Amount      int64
	OccurredAt  time.Time
}

var (
	// ErrPoolNotFound is returned when a pool id does not resolve on the ledger.
	ErrPoolNotFound = errors.New("ledger: pool not found")
	// ErrPoolInactive is returned for state-changing calls against a deactivated pool.
	ErrPoolInactive = errors.New("ledger: pool inactive")
	// ErrInsufficientBalance signals the caller's settlement-token balance cannot cover the call.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	// ErrInsufficientAllowance signals the pool contract has not been approved for the amount.
	ErrInsufficientAllowance = errors.New("ledger: insufficient allowance")
	// ErrStakePending signals an unresolved pending stake already exists for (pool, contributor).
	ErrStakePending = errors.New("ledger: pending stake exists")
	// ErrNoPendingStake signals there is nothing to accept, reject or withdraw.
	ErrNoPendingStake = errors.New("ledger: no pending stake")
	// ErrNotCreator signals the caller is not the pool's creator.
	ErrNotCreator = errors.New("ledger: caller is not pool creator")
	// ErrCall wraps submission failures (rejected or timed out); no funds moved,
	// the operation is retryable by resubmission.
	ErrCall = errors.New("ledger: call failed")
)

// Adapter is the boundary to the ledger pool contract. Every call is a single
// atomic state transition: it either fully applies or fully fails, and it
// returns only after the transition is final.
type Adapter interface {
	// CreatePool registers a new pool for the creator and returns the
	// ledger-issued pool id extracted from the creation event, along with the
	// transaction hash. Caller identity is always explicit; it is never
	// inferred from ambient session state.
	CreatePool(ctx context.Context, creator, contentHash, metadataHash string, price int64) (poolID int64, txHash string, err error)
	GetPool(ctx context.Context, poolID int64) (PoolState, error)

	// Purchase transfers the pool price from buyer and splits it 60% to the
	// creator, 40% into the pool's contributor-royalty pool.
	Purchase(ctx context.Context, poolID int64, buyer string) (txHash string, err error)

	Stake(ctx context.Context, poolID int64, contributor string, amount int64) (txHash string, err error)
	AcceptStake(ctx context.Context, poolID int64, caller, contributor string) (txHash string, err error)
	RejectStake(ctx context.Context, poolID int64, caller, contributor string) (txHash string, err error)
	WithdrawStake(ctx context.Context, poolID int64, contributor string) (txHash string, err error)

	PendingStake(ctx context.Context, poolID int64, contributor string) (int64, error)
	AcceptedStake(ctx context.Context, poolID int64, contributor string) (int64, error)
	Contributors(ctx context.Context, poolID int64) ([]string, error)

	PendingRoyalty(ctx context.Context, address string) (int64, error)
	Claim(ctx context.Context, address string) (txHash string, err error)

	BalanceOf(ctx context.Context, address string) (int64, error)
	Allowance(ctx context.Context, owner string) (int64, error)
	Approve(ctx context.Context, owner string, amount int64) (txHash string, err error)
}

// EventSource is implemented by adapters that can surface stake events for the
// off-chain index.
type EventSource interface {
	Events() <-chan StakeEvent
}
