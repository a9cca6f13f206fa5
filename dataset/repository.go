package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = `id, name, description, content_hash, metadata_hash, file_size, file_type,
owner_address, price, pool_id, creation_tx, purchasers, created_at, updated_at`

const uniqueViolation = "23505"

// Repository handles registry-store access for dataset records.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Description,
		&rec.ContentHash,
		&rec.MetadataHash,
		&rec.FileSize,
		&rec.FileType,
		&rec.OwnerAddress,
		&rec.Price,
		&rec.PoolID,
		&rec.CreationTx,
		&rec.Purchasers,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	return rec, err
}

// Create inserts a new dataset with pool_id NULL so the content is
// discoverable even when ledger creation fails or is slow.
func (r *Repository) Create(ctx context.Context, params CreateParams) (Record, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("dataset: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	insertSQL := `
        INSERT INTO datasets (name, description, content_hash, metadata_hash, file_size, file_type, owner_address, price)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING ` + recordColumns

	rec, err := scanRecord(tx.QueryRow(ctx, insertSQL,
		params.Name,
		params.Description,
		params.ContentHash,
		params.MetadataHash,
		params.FileSize,
		params.FileType,
		params.OwnerAddress,
		params.Price,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Record{}, ErrDuplicateName
		}
		return Record{}, fmt.Errorf("dataset: insert: %w", err)
	}

	if err := appendEvent(ctx, tx, rec.ID, EventDatasetRegistered, params.OwnerAddress, map[string]any{
		"content_hash": params.ContentHash,
		"price":        params.Price,
	}); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("dataset: commit insert: %w", err)
	}
	return rec, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM datasets WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dataset: get by id: %w", err)
	}
	return rec, nil
}

func (r *Repository) List(ctx context.Context) ([]Record, error) {
	return r.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM datasets ORDER BY created_at DESC`)
}

// ByOwner returns both the datasets uploaded by the address and the datasets
// it purchased.
func (r *Repository) ByOwner(ctx context.Context, address string) (OwnerView, error) {
	uploaded, err := r.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM datasets WHERE lower(owner_address) = lower($1) ORDER BY created_at DESC`,
		address)
	if err != nil {
		return OwnerView{}, err
	}

	purchased, err := r.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM datasets WHERE purchasers @> ARRAY[$1]::text[] ORDER BY created_at DESC`,
		address)
	if err != nil {
		return OwnerView{}, err
	}

	return OwnerView{Uploaded: uploaded, Purchased: purchased}, nil
}

func (r *Repository) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dataset: query records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("dataset: scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dataset: iterate records: %w", err)
	}
	return records, nil
}

// MaxPoolID returns the highest currently-assigned pool id, 0 when none.
func (r *Repository) MaxPoolID(ctx context.Context) (int64, error) {
	var max int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(pool_id), 0) FROM datasets`).Scan(&max); err != nil {
		return 0, fmt.Errorf("dataset: max pool id: %w", err)
	}
	return max, nil
}

// AttachPoolID writes the ledger-issued pool id back onto the record. The
// partial unique index on pool_id is the ultimate arbiter: a collision with a
// stale assignment surfaces as ErrPoolIDConflict for the caller's bounded
// recovery.
func (r *Repository) AttachPoolID(ctx context.Context, id, poolID int64, txHash string) (Record, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("dataset: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updateSQL := `
        UPDATE datasets
        SET pool_id = $2, creation_tx = $3, updated_at = now()
        WHERE id = $1 AND pool_id IS NULL
        RETURNING ` + recordColumns

	rec, err := scanRecord(tx.QueryRow(ctx, updateSQL, id, poolID, txHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the record is missing or it is already linked.
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return Record{}, getErr
			}
			return Record{}, ErrAlreadyLinked
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Record{}, ErrPoolIDConflict
		}
		return Record{}, fmt.Errorf("dataset: attach pool id: %w", err)
	}

	if err := appendEvent(ctx, tx, id, EventPoolAttached, rec.OwnerAddress, map[string]any{
		"pool_id":     poolID,
		"creation_tx": txHash,
	}); err != nil {
		return Record{}, err
	}
	if err := enqueueOutbox(ctx, tx, OutboxTopicPoolAttached, map[string]any{
		"dataset_id": id,
		"pool_id":    poolID,
	}); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("dataset: commit attach: %w", err)
	}
	return rec, nil
}

// AppendPurchaser appends the buyer to the purchasers set as a single
// conditionally-guarded update, never a read-then-overwrite. The returned
// bool reports whether the buyer was newly appended; a duplicate confirmation
// returns the record unchanged with false.
func (r *Repository) AppendPurchaser(ctx context.Context, id int64, buyer, txHash string) (Record, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Record{}, false, fmt.Errorf("dataset: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updateSQL := `
        UPDATE datasets
        SET purchasers = purchasers || $2::text, updated_at = now()
        WHERE id = $1 AND NOT (purchasers @> ARRAY[$2]::text[])
        RETURNING ` + recordColumns

	rec, err := scanRecord(tx.QueryRow(ctx, updateSQL, id, buyer))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No row matched: either missing, or the buyer is already present.
			existing, getErr := r.GetByID(ctx, id)
			if getErr != nil {
				return Record{}, false, getErr
			}
			return existing, false, nil
		}
		return Record{}, false, fmt.Errorf("dataset: append purchaser: %w", err)
	}

	if err := appendEvent(ctx, tx, id, EventPurchaseConfirmed, buyer, map[string]any{
		"tx_hash": txHash,
	}); err != nil {
		return Record{}, false, err
	}
	if err := enqueueOutbox(ctx, tx, OutboxTopicPurchaseConfirmed, map[string]any{
		"dataset_id": id,
		"buyer":      buyer,
		"tx_hash":    txHash,
	}); err != nil {
		return Record{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, false, fmt.Errorf("dataset: commit confirm: %w", err)
	}
	return rec, true, nil
}

// UpdateDescriptive changes name/description only; everything else on the
// record is immutable through this path.
func (r *Repository) UpdateDescriptive(ctx context.Context, id int64, params UpdateParams) (Record, error) {
	updateSQL := `
        UPDATE datasets
        SET name = COALESCE($2, name),
            description = COALESCE($3, description),
            updated_at = now()
        WHERE id = $1
        RETURNING ` + recordColumns

	rec, err := scanRecord(r.pool.QueryRow(ctx, updateSQL, id, params.Name, params.Description))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Record{}, ErrDuplicateName
		}
		return Record{}, fmt.Errorf("dataset: update: %w", err)
	}
	return rec, nil
}

func appendEvent(ctx context.Context, tx pgx.Tx, datasetID int64, eventType, actor string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("dataset: marshal event payload: %w", err)
	}
	var actorArg any
	if actor != "" {
		actorArg = actor
	}
	if _, err := tx.Exec(ctx, `
        INSERT INTO settlement_events (dataset_id, type, actor, payload)
        VALUES ($1, $2, $3, $4::jsonb)
    `, datasetID, eventType, actorArg, body); err != nil {
		return fmt.Errorf("dataset: insert settlement event: %w", err)
	}
	return nil
}

func enqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("dataset: marshal outbox payload: %w", err)
	}
	if _, err := tx.Exec(ctx, `
        INSERT INTO outbox (id, topic, payload)
        VALUES ($1, $2, $3::jsonb)
    `, uuid.New(), topic, body); err != nil {
		return fmt.Errorf("dataset: enqueue outbox: %w", err)
	}
	return nil
}
