package contribution

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"synapse/ledger"
	"synapse/metrics"
)

const (
	poolCreator = "0xCreator"
	contributor = "0xContributor"
)

func newTestManager(t *testing.T) (*Manager, *ledger.Memory, *memoryIndex) {
	t.Helper()
	chain := ledger.NewMemory()
	index := newMemoryIndex()
	mgr := NewManager(chain, index, metrics.New(prometheus.NewRegistry()), slog.Default())
	return mgr, chain, index
}

func createPool(t *testing.T, chain *ledger.Memory, price int64) int64 {
	t.Helper()
	poolID, _, err := chain.CreatePool(context.Background(), poolCreator, "hash", "meta", price)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	return poolID
}

func TestStake_EscrowsAndBlocksSecondPending(t *testing.T) {
	mgr, chain, _ := newTestManager(t)
	ctx := context.Background()
	poolID := createPool(t, chain, 100)
	chain.Mint(contributor, 200)
	if _, err := chain.Approve(ctx, contributor, 200); err != nil {
		t.Fatalf("approve: %v", err)
	}

	txHash, err := mgr.Stake(ctx, poolID, contributor, 50)
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	if txHash == "" {
		t.Errorf("expected stake tx hash")
	}

	if bal, _ := chain.BalanceOf(ctx, contributor); bal != 150 {
		t.Errorf("expected escrow to deduct stake, balance %d", bal)
	}
	status, err := mgr.Status(ctx, poolID, contributor)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Pending != 50 || status.Accepted != 0 {
		t.Errorf("unexpected status: %+v", status)
	}

	if _, err := mgr.Stake(ctx, poolID, contributor, 10); !errors.Is(err, ledger.ErrStakePending) {
		t.Fatalf("expected ErrStakePending for second open stake, got %v", err)
	}
}

func TestStake_Validation(t *testing.T) {
	mgr, chain, _ := newTestManager(t)
	ctx := context.Background()
	poolID := createPool(t, chain, 100)
	chain.Mint(contributor, 10)

	if _, err := mgr.Stake(ctx, poolID, contributor, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if _, err := mgr.Stake(ctx, poolID, contributor, -5); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
	if _, err := mgr.Stake(ctx, poolID, contributor, 50); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := mgr.Stake(ctx, poolID, contributor, 10); !errors.Is(err, ledger.ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance without approval, got %v", err)
	}
	if _, err := mgr.Stake(ctx, 999, contributor, 5); !errors.Is(err, ledger.ErrPoolNotFound) {
		t.Fatalf("expected ErrPoolNotFound, got %v", err)
	}
}

func TestAcceptStake_CreatorOnly(t *testing.T) {
	mgr, chain, _ := newTestManager(t)
	ctx := context.Background()
	poolID := createPool(t, chain, 100)
	chain.Mint(contributor, 100)
	if _, err := chain.Approve(ctx, contributor, 100); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := mgr.Stake(ctx, poolID, contributor, 40); err != nil {
		t.Fatalf("stake: %v", err)
	}

	if _, err := mgr.AcceptStake(ctx, poolID, "0xStranger", contributor); !errors.Is(err, ledger.ErrNotCreator) {
		t.Fatalf("expected ErrNotCreator, got %v", err)
	}

	if _, err := mgr.AcceptStake(ctx, poolID, poolCreator, contributor); err != nil {
		t.Fatalf("accept: %v", err)
	}
	status, _ := mgr.Status(ctx, poolID, contributor)
	if status.Pending != 0 || status.Accepted != 40 {
		t.Errorf("unexpected status after accept: %+v", status)
	}
	roster, err := mgr.Contributors(ctx, poolID)
	if err != nil {
		t.Fatalf("contributors: %v", err)
	}
	if len(roster) != 1 || roster[0] != contributor {
		t.Errorf("unexpected roster: %v", roster)
	}

	if _, err := mgr.AcceptStake(ctx, poolID, poolCreator, contributor); !errors.Is(err, ledger.ErrNoPendingStake) {
		t.Fatalf("expected ErrNoPendingStake on repeat accept, got %v", err)
	}
}

func TestRejectStake_RefundsInFull(t *testing.T) {
	mgr, chain, _ := newTestManager(t)
	ctx := context.Background()
	poolID := createPool(t, chain, 100)
	chain.Mint(contributor, 100)
	if _, err := chain.Approve(ctx, contributor, 100); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := mgr.Stake(ctx, poolID, contributor, 60); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if _, err := mgr.RejectStake(ctx, poolID, poolCreator, contributor); err != nil {
		t.Fatalf("reject: %v", err)
	}

	if bal, _ := chain.BalanceOf(ctx, contributor); bal != 100 {
		t.Errorf("expected full refund, balance %d", bal)
	}
	status, _ := mgr.Status(ctx, poolID, contributor)
	if status.Pending != 0 || status.Accepted != 0 {
		t.Errorf("unexpected status after reject: %+v", status)
	}

	// A rejected contributor may stake again.
	if _, err := mgr.Stake(ctx, poolID, contributor, 30); err != nil {
		t.Fatalf("re-stake after rejection: %v", err)
	}
}

func TestWithdrawStake_ContributorReclaims(t *testing.T) {
	mgr, chain, _ := newTestManager(t)
	ctx := context.Background()
	poolID := createPool(t, chain, 100)
	chain.Mint(contributor, 100)
	if _, err := chain.Approve(ctx, contributor, 100); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := mgr.Stake(ctx, poolID, contributor, 25); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if _, err := mgr.WithdrawStake(ctx, poolID, contributor); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if bal, _ := chain.BalanceOf(ctx, contributor); bal != 100 {
		t.Errorf("expected refund on withdraw, balance %d", bal)
	}
	if _, err := mgr.WithdrawStake(ctx, poolID, contributor); !errors.Is(err, ledger.ErrNoPendingStake) {
		t.Fatalf("expected ErrNoPendingStake, got %v", err)
	}
}

func TestRoyalties_AccrueAndClaim(t *testing.T) {
	mgr, chain, _ := newTestManager(t)
	ctx := context.Background()
	poolID := createPool(t, chain, 100)

	second := "0xSecond"
	for _, c := range []string{contributor, second} {
		chain.Mint(c, 100)
		if _, err := chain.Approve(ctx, c, 100); err != nil {
			t.Fatalf("approve %s: %v", c, err)
		}
		if _, err := mgr.Stake(ctx, poolID, c, 50); err != nil {
			t.Fatalf("stake %s: %v", c, err)
		}
		if _, err := mgr.AcceptStake(ctx, poolID, poolCreator, c); err != nil {
			t.Fatalf("accept %s: %v", c, err)
		}
	}

	buyer := "0xBuyer"
	chain.Mint(buyer, 100)
	if _, err := chain.Approve(ctx, buyer, 100); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := chain.Purchase(ctx, poolID, buyer); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	// 100 splits 60 to the creator and 40 evenly across two contributors.
	if amount, _ := mgr.Royalty(ctx, contributor); amount != 20 {
		t.Errorf("expected royalty 20, got %d", amount)
	}

	txHash, amount, err := mgr.ClaimRoyalties(ctx, contributor)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if amount != 20 || txHash == "" {
		t.Errorf("unexpected claim result: amount=%d tx=%q", amount, txHash)
	}
	if bal, _ := chain.BalanceOf(ctx, contributor); bal != 70 {
		t.Errorf("expected balance 70 after claim, got %d", bal)
	}
	if remaining, _ := mgr.Royalty(ctx, contributor); remaining != 0 {
		t.Errorf("claim must zero the royalty balance, got %d", remaining)
	}

	// Claiming with nothing accrued is a harmless no-op.
	if _, amount, err := mgr.ClaimRoyalties(ctx, contributor); err != nil || amount != 0 {
		t.Errorf("zero claim: amount=%d err=%v", amount, err)
	}
}
