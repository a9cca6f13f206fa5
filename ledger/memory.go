package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

const (
	creatorShareBps = 6000
	bpsDenominator  = 10000
)

type poolRecord struct {
	state        PoolState
	contributors []string
}

type stakeKey struct {
	poolID      int64
	contributor string
}

type stakeRecord struct {
	pending  int64
	accepted int64
}

// Memory is an in-process ledger implementing the pool contract's semantics.
// A single mutex serializes all state transitions, so every call observes a
// total order, mirroring the real ledger's execution model. It backs tests
// and the dev mode of the service.
type Memory struct {
	mu         sync.Mutex
	nextPoolID int64
	txSeq      int64
	pools      map[int64]*poolRecord
	stakes     map[stakeKey]*stakeRecord
	balances   map[string]int64
	allowances map[string]int64
	royalties  map[string]int64
	events     chan StakeEvent
}

// NewMemory returns an empty in-memory ledger. Pool ids start at 1 and only
// ever increase.
func NewMemory() *Memory {
	return &Memory{
		nextPoolID: 1,
		pools:      make(map[int64]*poolRecord),
		stakes:     make(map[stakeKey]*stakeRecord),
		balances:   make(map[string]int64),
		allowances: make(map[string]int64),
		royalties:  make(map[string]int64),
		events:     make(chan StakeEvent, 256),
	}
}

// Events exposes stake events for the off-chain index worker.
func (m *Memory) Events() <-chan StakeEvent {
	return m.events
}

// Mint credits settlement tokens to an address. Token economics are outside
// the settlement protocol; this exists so tests and dev mode can fund buyers.
func (m *Memory) Mint(address string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[address] += amount
}

func (m *Memory) nextTx() string {
	m.txSeq++
	sum := sha256.Sum256([]byte(fmt.Sprintf("tx-%d", m.txSeq)))
	return "0x" + hex.EncodeToString(sum[:])
}

func (m *Memory) emit(ev StakeEvent) {
	ev.OccurredAt = time.Now().UTC()
	select {
	case m.events <- ev:
	default:
		// No consumer attached; the index is an optional observer.
	}
}

func (m *Memory) CreatePool(_ context.Context, creator, contentHash, metadataHash string, price int64) (int64, string, error) {
	if creator == "" || contentHash == "" {
		return 0, "", fmt.Errorf("%w: empty creator or content hash", ErrCall)
	}
	if price < 0 {
		return 0, "", fmt.Errorf("%w: negative price", ErrCall)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextPoolID
	m.nextPoolID++
	m.pools[id] = &poolRecord{state: PoolState{
		ID:             id,
		Creator:        creator,
		ContentHash:    contentHash,
		MetadataHash:   metadataHash,
		PricePerAccess: price,
		Active:         true,
	}}
	return id, m.nextTx(), nil
}

func (m *Memory) GetPool(_ context.Context, poolID int64) (PoolState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.pools[poolID]
	if !ok {
		return PoolState{}, ErrPoolNotFound
	}
	return rec.state, nil
}

func (m *Memory) Purchase(_ context.Context, poolID int64, buyer string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.pools[poolID]
	if !ok {
		return "", ErrPoolNotFound
	}
	if !rec.state.Active {
		return "", ErrPoolInactive
	}

	price := rec.state.PricePerAccess
	if m.balances[buyer] < price {
		return "", ErrInsufficientBalance
	}
	if m.allowances[buyer] < price {
		return "", ErrInsufficientAllowance
	}

	m.balances[buyer] -= price
	m.allowances[buyer] -= price

	creatorShare := price * creatorShareBps / bpsDenominator
	royaltyPool := price - creatorShare
	if len(rec.contributors) == 0 {
		creatorShare = price
	} else {
		perContributor := royaltyPool / int64(len(rec.contributors))
		for _, c := range rec.contributors {
			m.royalties[c] += perContributor
		}
		// Division remainder stays with the creator.
		creatorShare += royaltyPool - perContributor*int64(len(rec.contributors))
	}
	m.royalties[rec.state.Creator] += creatorShare

	return m.nextTx(), nil
}

func (m *Memory) Stake(_ context.Context, poolID int64, contributor string, amount int64) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("%w: non-positive stake amount", ErrCall)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.pools[poolID]
	if !ok {
		return "", ErrPoolNotFound
	}
	if !rec.state.Active {
		return "", ErrPoolInactive
	}

	key := stakeKey{poolID, contributor}
	stake := m.stakes[key]
	if stake != nil && stake.pending > 0 {
		return "", ErrStakePending
	}
	if m.balances[contributor] < amount {
		return "", ErrInsufficientBalance
	}
	if m.allowances[contributor] < amount {
		return "", ErrInsufficientAllowance
	}

	if stake == nil {
		stake = &stakeRecord{}
		m.stakes[key] = stake
	}
	m.balances[contributor] -= amount
	m.allowances[contributor] -= amount
	stake.pending = amount

	m.emit(StakeEvent{Kind: StakeSubmitted, PoolID: poolID, Contributor: contributor, Amount: amount})
	return m.nextTx(), nil
}

func (m *Memory) AcceptStake(_ context.Context, poolID int64, caller, contributor string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.pools[poolID]
	if !ok {
		return "", ErrPoolNotFound
	}
	if caller != rec.state.Creator {
		return "", ErrNotCreator
	}

	stake := m.stakes[stakeKey{poolID, contributor}]
	if stake == nil || stake.pending == 0 {
		return "", ErrNoPendingStake
	}

	amount := stake.pending
	stake.accepted += amount
	stake.pending = 0

	if !contains(rec.contributors, contributor) {
		rec.contributors = append(rec.contributors, contributor)
		rec.state.TotalContributors = len(rec.contributors)
	}

	m.emit(StakeEvent{Kind: StakeAccepted, PoolID: poolID, Contributor: contributor, Amount: amount})
	return m.nextTx(), nil
}

func (m *Memory) RejectStake(_ context.Context, poolID int64, caller, contributor string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.pools[poolID]
	if !ok {
		return "", ErrPoolNotFound
	}
	if caller != rec.state.Creator {
		return "", ErrNotCreator
	}

	stake := m.stakes[stakeKey{poolID, contributor}]
	if stake == nil || stake.pending == 0 {
		return "", ErrNoPendingStake
	}

	amount := stake.pending
	stake.pending = 0
	m.balances[contributor] += amount

	m.emit(StakeEvent{Kind: StakeRejected, PoolID: poolID, Contributor: contributor, Amount: amount})
	return m.nextTx(), nil
}

func (m *Memory) WithdrawStake(_ context.Context, poolID int64, contributor string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pools[poolID]; !ok {
		return "", ErrPoolNotFound
	}

	stake := m.stakes[stakeKey{poolID, contributor}]
	if stake == nil || stake.pending == 0 {
		return "", ErrNoPendingStake
	}

	amount := stake.pending
	stake.pending = 0
	m.balances[contributor] += amount

	m.emit(StakeEvent{Kind: StakeWithdrawn, PoolID: poolID, Contributor: contributor, Amount: amount})
	return m.nextTx(), nil
}

func (m *Memory) PendingStake(_ context.Context, poolID int64, contributor string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pools[poolID]; !ok {
		return 0, ErrPoolNotFound
	}
	if stake := m.stakes[stakeKey{poolID, contributor}]; stake != nil {
		return stake.pending, nil
	}
	return 0, nil
}

func (m *Memory) AcceptedStake(_ context.Context, poolID int64, contributor string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pools[poolID]; !ok {
		return 0, ErrPoolNotFound
	}
	if stake := m.stakes[stakeKey{poolID, contributor}]; stake != nil {
		return stake.accepted, nil
	}
	return 0, nil
}

func (m *Memory) Contributors(_ context.Context, poolID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.pools[poolID]
	if !ok {
		return nil, ErrPoolNotFound
	}
	out := make([]string, len(rec.contributors))
	copy(out, rec.contributors)
	return out, nil
}

func (m *Memory) PendingRoyalty(_ context.Context, address string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.royalties[address], nil
}

// Claim transfers the address's entire pending royalty balance and zeroes it.
// Claiming with a zero balance is a no-op success.
func (m *Memory) Claim(_ context.Context, address string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	amount := m.royalties[address]
	if amount > 0 {
		m.royalties[address] = 0
		m.balances[address] += amount
	}
	return m.nextTx(), nil
}

func (m *Memory) BalanceOf(_ context.Context, address string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[address], nil
}

func (m *Memory) Allowance(_ context.Context, owner string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowances[owner], nil
}

func (m *Memory) Approve(_ context.Context, owner string, amount int64) (string, error) {
	if amount < 0 {
		return "", fmt.Errorf("%w: negative allowance", ErrCall)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[owner] = amount
	return m.nextTx(), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
