package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"synapse/contentstore"
	"synapse/ledger"
	"synapse/metrics"
)

// Registry is the slice of the repository the reconciler depends on.
type Registry interface {
	Create(ctx context.Context, params CreateParams) (Record, error)
	GetByID(ctx context.Context, id int64) (Record, error)
	MaxPoolID(ctx context.Context) (int64, error)
	AttachPoolID(ctx context.Context, id, poolID int64, txHash string) (Record, error)
}

// Reconciler keeps the registry store and the ledger pool contract in
// agreement about which pool backs which dataset.
type Reconciler struct {
	repo    Registry
	ledger  ledger.Adapter
	content contentstore.Store
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewReconciler(repo Registry, adapter ledger.Adapter, content contentstore.Store, m *metrics.Metrics, log *slog.Logger) *Reconciler {
	return &Reconciler{
		repo:    repo,
		ledger:  adapter,
		content: content,
		metrics: m,
		log:     log,
	}
}

// metadataDocument is the canonical description persisted to the content
// store; its hash is what the ledger pool commits to.
type metadataDocument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ContentHash string `json:"content_hash"`
	FileSize    int64  `json:"file_size,omitempty"`
	FileType    string `json:"file_type,omitempty"`
	Price       int64  `json:"price"`
	Owner       string `json:"owner"`
}

// Register validates the submission, persists the metadata document, creates
// the registry row, and then attempts pool attachment. The row is committed
// before any ledger call so a ledger failure leaves a valid
// pending-reconciliation record rather than losing the registration.
func (s *Reconciler) Register(ctx context.Context, params CreateParams) (Record, error) {
	if err := validateCreate(params); err != nil {
		return Record{}, err
	}

	doc, err := json.Marshal(metadataDocument{
		Name:        params.Name,
		Description: params.Description,
		ContentHash: params.ContentHash,
		FileSize:    params.FileSize,
		FileType:    params.FileType,
		Price:       params.Price,
		Owner:       params.OwnerAddress,
	})
	if err != nil {
		return Record{}, fmt.Errorf("dataset: marshal metadata: %w", err)
	}
	metadataHash, err := s.content.Put(ctx, doc)
	if err != nil {
		return Record{}, fmt.Errorf("dataset: store metadata: %w", err)
	}
	params.MetadataHash = metadataHash

	rec, err := s.repo.Create(ctx, params)
	if err != nil {
		return Record{}, err
	}

	linked, err := s.AttachPool(ctx, rec.ID)
	if err != nil {
		// The registration itself succeeded. Leave the record pending and
		// let a later attach retry pick it up.
		s.log.Error("pool attachment failed after registration",
			"dataset_id", rec.ID,
			"owner", rec.OwnerAddress,
			"error", err)
		return rec, nil
	}
	return linked, nil
}

// AttachPool creates a ledger pool for the dataset and records the issued
// pool id. Attaching an already-linked record is a no-op returning the
// current state.
//
// When the issued id collides with one already recorded, the highest known
// id plus one is tried exactly once; a second collision is surfaced as
// ErrReconciliationConflict for operator attention rather than retried
// indefinitely.
func (s *Reconciler) AttachPool(ctx context.Context, id int64) (Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.Linked() {
		return rec, nil
	}

	start := time.Now()
	poolID, txHash, err := s.ledger.CreatePool(ctx, rec.OwnerAddress, rec.ContentHash, rec.MetadataHash, rec.Price)
	s.metrics.LedgerCallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return Record{}, fmt.Errorf("dataset: create pool: %w", err)
	}

	linked, err := s.repo.AttachPoolID(ctx, id, poolID, txHash)
	if errors.Is(err, ErrPoolIDConflict) {
		max, maxErr := s.repo.MaxPoolID(ctx)
		if maxErr != nil {
			return Record{}, maxErr
		}
		corrected := nextAvailableID(max)
		s.log.Warn("pool id collision, retrying with corrected id",
			"dataset_id", id,
			"issued_pool_id", poolID,
			"corrected_pool_id", corrected)

		linked, err = s.repo.AttachPoolID(ctx, id, corrected, txHash)
		if errors.Is(err, ErrPoolIDConflict) {
			s.metrics.ReconciliationConflicts.Inc()
			return Record{}, ErrReconciliationConflict
		}
	}
	if errors.Is(err, ErrAlreadyLinked) {
		// A concurrent attach won; its linkage stands.
		return s.repo.GetByID(ctx, id)
	}
	if err != nil {
		return Record{}, err
	}

	s.metrics.PoolsCreated.Inc()
	s.log.Info("pool attached",
		"dataset_id", linked.ID,
		"pool_id", poolID,
		"tx_hash", txHash)
	return linked, nil
}

// nextAvailableID derives the corrective pool id from the highest id the
// registry has recorded.
func nextAvailableID(highest int64) int64 {
	return highest + 1
}

func validateCreate(params CreateParams) error {
	switch {
	case params.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case params.ContentHash == "":
		return fmt.Errorf("%w: content hash is required", ErrInvalidInput)
	case params.OwnerAddress == "":
		return fmt.Errorf("%w: owner address is required", ErrInvalidInput)
	case params.Price <= 0:
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	return nil
}
