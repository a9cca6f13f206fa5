package contribution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"synapse/ledger"
)

const uniqueViolation = "23505"

// IndexedStake is one unresolved stake row from the off-chain index.
type IndexedStake struct {
	PoolID      int64     `json:"pool_id"`
	Contributor string    `json:"contributor"`
	Amount      int64     `json:"amount"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// IndexRepo maintains the stake_index table, a queryable mirror of ledger
// stake events. The ledger remains authoritative; the index may briefly lag
// and is safe to rebuild from events at any time.
type IndexRepo struct {
	pool *pgxpool.Pool
}

func NewIndexRepo(pool *pgxpool.Pool) *IndexRepo {
	return &IndexRepo{pool: pool}
}

// RecordSubmitted inserts an open stake row. Replayed events are dropped by
// the partial unique index on (pool_id, contributor).
func (r *IndexRepo) RecordSubmitted(ctx context.Context, ev ledger.StakeEvent) error {
	_, err := r.pool.Exec(ctx, `
        INSERT INTO stake_index (pool_id, contributor, amount, submitted_at)
        VALUES ($1, $2, $3, $4)
    `, ev.PoolID, ev.Contributor, ev.Amount, ev.OccurredAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil
		}
		return fmt.Errorf("contribution: index submitted stake: %w", err)
	}
	return nil
}

// RecordResolved closes the open stake row with its resolution. Resolving a
// stake the index never saw is not an error.
func (r *IndexRepo) RecordResolved(ctx context.Context, ev ledger.StakeEvent, resolution string) error {
	_, err := r.pool.Exec(ctx, `
        UPDATE stake_index
        SET resolved_at = $3, resolution = $4
        WHERE pool_id = $1 AND contributor = $2 AND resolved_at IS NULL
    `, ev.PoolID, ev.Contributor, ev.OccurredAt, resolution)
	if err != nil {
		return fmt.Errorf("contribution: index resolved stake: %w", err)
	}
	return nil
}

// ListPending returns the unresolved stakes for a pool, oldest first.
func (r *IndexRepo) ListPending(ctx context.Context, poolID int64) ([]IndexedStake, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT pool_id, contributor, amount, submitted_at
        FROM stake_index
        WHERE pool_id = $1 AND resolved_at IS NULL
        ORDER BY submitted_at ASC
    `, poolID)
	if err != nil {
		return nil, fmt.Errorf("contribution: list pending stakes: %w", err)
	}
	defer rows.Close()

	stakes := []IndexedStake{}
	for rows.Next() {
		var s IndexedStake
		if err := rows.Scan(&s.PoolID, &s.Contributor, &s.Amount, &s.SubmittedAt); err != nil {
			return nil, fmt.Errorf("contribution: scan indexed stake: %w", err)
		}
		stakes = append(stakes, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contribution: iterate indexed stakes: %w", err)
	}
	return stakes, nil
}

// Indexer is the subset of IndexRepo the worker writes through.
type Indexer interface {
	RecordSubmitted(ctx context.Context, ev ledger.StakeEvent) error
	RecordResolved(ctx context.Context, ev ledger.StakeEvent, resolution string) error
}

// IndexWorker drains ledger stake events into the index. Run blocks until the
// context is canceled or the event channel closes.
type IndexWorker struct {
	events <-chan ledger.StakeEvent
	index  Indexer
	log    *slog.Logger
}

func NewIndexWorker(events <-chan ledger.StakeEvent, index Indexer, log *slog.Logger) *IndexWorker {
	return &IndexWorker{events: events, index: index, log: log}
}

func (w *IndexWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.events:
			if !ok {
				return nil
			}
			if err := w.apply(ctx, ev); err != nil {
				// Indexing is best effort; the ledger stays authoritative.
				w.log.Error("stake index update failed",
					"kind", ev.Kind,
					"pool_id", ev.PoolID,
					"contributor", ev.Contributor,
					"error", err)
			}
		}
	}
}

func (w *IndexWorker) apply(ctx context.Context, ev ledger.StakeEvent) error {
	switch ev.Kind {
	case ledger.StakeSubmitted:
		return w.index.RecordSubmitted(ctx, ev)
	case ledger.StakeAccepted:
		return w.index.RecordResolved(ctx, ev, "accepted")
	case ledger.StakeRejected:
		return w.index.RecordResolved(ctx, ev, "rejected")
	case ledger.StakeWithdrawn:
		return w.index.RecordResolved(ctx, ev, "withdrawn")
	default:
		return fmt.Errorf("contribution: unknown stake event kind %q", ev.Kind)
	}
}
