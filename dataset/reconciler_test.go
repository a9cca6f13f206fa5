package dataset

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"synapse/contentstore"
	"synapse/ledger"
	"synapse/metrics"
)

func newTestReconciler(repo Registry) (*Reconciler, *ledger.Memory) {
	chain := ledger.NewMemory()
	return NewReconciler(
		repo,
		chain,
		contentstore.NewMemoryStore(),
		metrics.New(prometheus.NewRegistry()),
		slog.Default(),
	), chain
}

func validParams() CreateParams {
	return CreateParams{
		Name:         "air-quality-2025",
		Description:  "hourly sensor readings",
		ContentHash:  "deadbeef",
		FileSize:     2048,
		FileType:     "text/csv",
		OwnerAddress: "0xCreator",
		Price:        100,
	}
}

func TestRegister_LinksPool(t *testing.T) {
	repo := newFakeRegistry()
	svc, _ := newTestReconciler(repo)

	rec, err := svc.Register(context.Background(), validParams())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !rec.Linked() {
		t.Fatalf("expected record to be linked after registration")
	}
	if *rec.PoolID != 1 {
		t.Errorf("expected first pool id 1, got %d", *rec.PoolID)
	}
	if rec.CreationTx == nil || *rec.CreationTx == "" {
		t.Errorf("expected creation tx hash to be recorded")
	}
	if rec.MetadataHash == "" {
		t.Errorf("expected metadata hash to be derived and stored")
	}
}

func TestRegister_ValidationRejectsBeforeSideEffects(t *testing.T) {
	repo := newFakeRegistry()
	svc, _ := newTestReconciler(repo)

	cases := []struct {
		name   string
		mutate func(*CreateParams)
	}{
		{"missing name", func(p *CreateParams) { p.Name = "" }},
		{"missing content hash", func(p *CreateParams) { p.ContentHash = "" }},
		{"missing owner", func(p *CreateParams) { p.OwnerAddress = "" }},
		{"zero price", func(p *CreateParams) { p.Price = 0 }},
		{"negative price", func(p *CreateParams) { p.Price = -5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := validParams()
			tc.mutate(&params)
			if _, err := svc.Register(context.Background(), params); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
	if len(repo.records) != 0 {
		t.Errorf("expected no records created by rejected submissions")
	}
}

func TestRegister_LedgerFailureLeavesPendingRecord(t *testing.T) {
	repo := newFakeRegistry()
	svc, _ := newTestReconciler(repo)
	svc.ledger = failingLedger{}

	rec, err := svc.Register(context.Background(), validParams())
	if err != nil {
		t.Fatalf("register should survive a ledger outage: %v", err)
	}
	if rec.Linked() {
		t.Fatalf("expected record to stay pending when pool creation fails")
	}

	stored, err := repo.GetByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Linked() {
		t.Errorf("stored record must remain pending")
	}
}

func TestAttachPool_IdempotentOnLinkedRecord(t *testing.T) {
	repo := newFakeRegistry()
	svc, chain := newTestReconciler(repo)

	rec, err := svc.Register(context.Background(), validParams())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	again, err := svc.AttachPool(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("attach on linked record: %v", err)
	}
	if *again.PoolID != *rec.PoolID {
		t.Errorf("pool id changed on repeat attach: %d vs %d", *again.PoolID, *rec.PoolID)
	}
	if _, err := chain.GetPool(context.Background(), 2); !errors.Is(err, ledger.ErrPoolNotFound) {
		t.Errorf("repeat attach must not create a second pool")
	}
}

func TestAttachPool_RetriesWithNextAvailableID(t *testing.T) {
	repo := newFakeRegistry()
	repo.conflictsBeforeSuccess = 1
	repo.maxPoolID = 41
	svc, _ := newTestReconciler(repo)

	rec, err := svc.Register(context.Background(), validParams())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !rec.Linked() {
		t.Fatalf("expected record linked after corrective retry")
	}
	if *rec.PoolID != 42 {
		t.Errorf("expected corrected pool id 42, got %d", *rec.PoolID)
	}
}

func TestAttachPool_SecondCollisionIsFatal(t *testing.T) {
	repo := newFakeRegistry()
	repo.conflictsBeforeSuccess = 2
	svc, _ := newTestReconciler(repo)

	created, err := repo.Create(context.Background(), validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.AttachPool(context.Background(), created.ID); !errors.Is(err, ErrReconciliationConflict) {
		t.Fatalf("expected ErrReconciliationConflict, got %v", err)
	}
	if repo.attachCalls != 2 {
		t.Errorf("expected exactly one corrective retry, got %d attach calls", repo.attachCalls)
	}
}

func TestAttachPool_ConcurrentWinnerStands(t *testing.T) {
	repo := newFakeRegistry()
	repo.alreadyLinkedOnAttach = true
	svc, _ := newTestReconciler(repo)

	created, err := repo.Create(context.Background(), validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	winner := int64(7)
	repo.records[created.ID].PoolID = &winner

	rec, err := svc.AttachPool(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if *rec.PoolID != winner {
		t.Errorf("expected the concurrent winner's pool id %d, got %d", winner, *rec.PoolID)
	}
}

func TestNextAvailableID(t *testing.T) {
	if got := nextAvailableID(0); got != 1 {
		t.Errorf("empty registry should yield 1, got %d", got)
	}
	if got := nextAvailableID(41); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

// fakeRegistry backs the reconciler with an in-memory record table and
// scripted attach behavior.
type fakeRegistry struct {
	records map[int64]*Record
	nextID  int64

	conflictsBeforeSuccess int
	alreadyLinkedOnAttach  bool
	maxPoolID              int64
	attachCalls            int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{records: map[int64]*Record{}, nextID: 1}
}

func (f *fakeRegistry) Create(_ context.Context, params CreateParams) (Record, error) {
	rec := Record{
		ID:           f.nextID,
		Name:         params.Name,
		Description:  params.Description,
		ContentHash:  params.ContentHash,
		MetadataHash: params.MetadataHash,
		FileSize:     params.FileSize,
		FileType:     params.FileType,
		OwnerAddress: params.OwnerAddress,
		Price:        params.Price,
		Purchasers:   []string{},
	}
	f.nextID++
	f.records[rec.ID] = &rec
	return rec, nil
}

func (f *fakeRegistry) GetByID(_ context.Context, id int64) (Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return *rec, nil
}

func (f *fakeRegistry) MaxPoolID(context.Context) (int64, error) {
	return f.maxPoolID, nil
}

func (f *fakeRegistry) AttachPoolID(_ context.Context, id, poolID int64, txHash string) (Record, error) {
	f.attachCalls++
	if f.conflictsBeforeSuccess > 0 {
		f.conflictsBeforeSuccess--
		return Record{}, ErrPoolIDConflict
	}
	if f.alreadyLinkedOnAttach {
		return Record{}, ErrAlreadyLinked
	}
	rec, ok := f.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.PoolID != nil {
		return Record{}, ErrAlreadyLinked
	}
	rec.PoolID = &poolID
	rec.CreationTx = &txHash
	return *rec, nil
}

// failingLedger simulates a ledger outage for every call.
type failingLedger struct {
	ledger.Adapter
}

func (failingLedger) CreatePool(context.Context, string, string, string, int64) (int64, string, error) {
	return 0, "", ledger.ErrCall
}
