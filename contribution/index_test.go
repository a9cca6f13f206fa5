package contribution

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"synapse/ledger"
	"synapse/metrics"
)

func TestIndexWorker_MirrorsStakeLifecycle(t *testing.T) {
	chain := ledger.NewMemory()
	index := newMemoryIndex()
	mgr := NewManager(chain, index, metrics.New(prometheus.NewRegistry()), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := NewIndexWorker(chain.Events(), index, slog.Default())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	poolID := createPool(t, chain, 100)
	for _, c := range []string{"0xA", "0xB"} {
		chain.Mint(c, 100)
		if _, err := chain.Approve(ctx, c, 100); err != nil {
			t.Fatalf("approve: %v", err)
		}
		if _, err := mgr.Stake(ctx, poolID, c, 50); err != nil {
			t.Fatalf("stake %s: %v", c, err)
		}
	}

	waitFor(t, func() bool { return index.pendingCount(poolID) == 2 })

	pending, err := mgr.PendingStakes(ctx, poolID)
	if err != nil {
		t.Fatalf("pending stakes: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending stakes, got %d", len(pending))
	}

	if _, err := mgr.AcceptStake(ctx, poolID, poolCreator, "0xA"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := mgr.RejectStake(ctx, poolID, poolCreator, "0xB"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	waitFor(t, func() bool { return index.pendingCount(poolID) == 0 })

	if got := index.resolution(poolID, "0xA"); got != "accepted" {
		t.Errorf("expected 0xA resolved accepted, got %q", got)
	}
	if got := index.resolution(poolID, "0xB"); got != "rejected" {
		t.Errorf("expected 0xB resolved rejected, got %q", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancellation")
	}
}

func TestIndexWorker_StopsWhenChannelCloses(t *testing.T) {
	events := make(chan ledger.StakeEvent)
	worker := NewIndexWorker(events, newMemoryIndex(), slog.Default())

	done := make(chan error, 1)
	go func() { done <- worker.Run(context.Background()) }()

	close(events)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on channel close, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on channel close")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// memoryIndex is an in-memory stand-in for the stake_index table.
type memoryIndex struct {
	mu   sync.Mutex
	rows []indexedRow
}

type indexedRow struct {
	stake      IndexedStake
	resolution string
	resolved   bool
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{}
}

func (m *memoryIndex) RecordSubmitted(_ context.Context, ev ledger.StakeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if !row.resolved && row.stake.PoolID == ev.PoolID && row.stake.Contributor == ev.Contributor {
			return nil
		}
	}
	m.rows = append(m.rows, indexedRow{stake: IndexedStake{
		PoolID:      ev.PoolID,
		Contributor: ev.Contributor,
		Amount:      ev.Amount,
		SubmittedAt: ev.OccurredAt,
	}})
	return nil
}

func (m *memoryIndex) RecordResolved(_ context.Context, ev ledger.StakeEvent, resolution string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		row := &m.rows[i]
		if !row.resolved && row.stake.PoolID == ev.PoolID && row.stake.Contributor == ev.Contributor {
			row.resolved = true
			row.resolution = resolution
		}
	}
	return nil
}

func (m *memoryIndex) ListPending(_ context.Context, poolID int64) ([]IndexedStake, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []IndexedStake{}
	for _, row := range m.rows {
		if !row.resolved && row.stake.PoolID == poolID {
			out = append(out, row.stake)
		}
	}
	return out, nil
}

func (m *memoryIndex) pendingCount(poolID int64) int {
	stakes, _ := m.ListPending(context.Background(), poolID)
	return len(stakes)
}

func (m *memoryIndex) resolution(poolID int64, contributor string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.resolved && row.stake.PoolID == poolID && row.stake.Contributor == contributor {
			return row.resolution
		}
	}
	return ""
}
