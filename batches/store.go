package batches

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ripkitten-co/addressd"
	"github.com/ripkitten-co/addressd/internal/codecs"
	"github.com/ripkitten-co/addressd/internal/pg"
	"github.com/ripkitten-co/addressd/normalize"
	"github.com/ripkitten-co/addressd/schema"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// BatchStore persists batches and items for one pipeline. It runs against
// whatever executor the backend provides, so the same store works on the pool
// for reads and inside a Session for locked mutations.
type BatchStore struct {
	name       string
	batchTable string
	itemTable  string
	exec       pg.Executor
	codec      codecs.Codec
	schema     *schema.Bootstrap
}

// NewBatchStore creates a store for the pipeline's tables over b.
func NewBatchStore[R any](b addressd.Backend, p Pipeline[R]) *BatchStore {
	return &BatchStore{
		name:       p.Name(),
		batchTable: p.BatchTable(),
		itemTable:  p.ItemTable(),
		exec:       b.DBExecutor(),
		codec:      b.JSONCodec(),
		schema:     b.SchemaBootstrap(),
	}
}

func (s *BatchStore) ensure(ctx context.Context) error {
	return s.schema.EnsurePipeline(ctx, s.exec, s.batchTable, s.itemTable)
}

// CreateBatch inserts a new batch with the given initial status and payload.
func (s *BatchStore) CreateBatch(ctx context.Context, status Status, payload []normalize.Record) (*Batch, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	if payload == nil {
		payload = []normalize.Record{}
	}
	raw, err := s.codec.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("batches %s: create: marshal payload: %w", s.name, err)
	}

	b := &Batch{
		ID:         uuid.New(),
		Status:     status,
		RawPayload: raw,
	}

	sql, args, err := psql.Insert(s.batchTable).
		Columns("id", "status", "request_payload").
		Values(b.ID, string(b.Status), raw).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("batches %s: create: build sql: %w", s.name, err)
	}

	if err := s.exec.QueryRow(ctx, sql, args...).Scan(&b.CreatedAt); err != nil {
		return nil, fmt.Errorf("batches %s: create: %w", s.name, err)
	}
	return b, nil
}

// GetBatch loads a batch row by id.
func (s *BatchStore) GetBatch(ctx context.Context, id uuid.UUID) (*Batch, error) {
	return s.getBatch(ctx, id, false)
}

// GetBatchForUpdate loads a batch row under an exclusive row lock. The lock
// is held until the surrounding session commits or rolls back, serializing
// Process and Requeue per batch id: a second caller blocks here until the
// first finishes its unit of work. Only valid inside a Session.
func (s *BatchStore) GetBatchForUpdate(ctx context.Context, id uuid.UUID) (*Batch, error) {
	if t, ok := s.exec.(pg.Transactional); !ok || !t.InTransaction() {
		return nil, fmt.Errorf("batches %s: lock %s: %w", s.name, id, addressd.ErrNoTransaction)
	}
	return s.getBatch(ctx, id, true)
}

func (s *BatchStore) getBatch(ctx context.Context, id uuid.UUID, forUpdate bool) (*Batch, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	builder := psql.Select("id", "status", "request_payload", "created_at").
		From(s.batchTable).
		Where(sq.Eq{"id": id})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("batches %s: get %s: build sql: %w", s.name, id, err)
	}

	var b Batch
	var status string
	err = s.exec.QueryRow(ctx, sql, args...).Scan(&b.ID, &status, &b.RawPayload, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("batches %s: get %s: %w", s.name, id, addressd.ErrNotFound)
		}
		return nil, fmt.Errorf("batches %s: get %s: %w", s.name, id, err)
	}
	b.Status = Status(status)
	return &b, nil
}

// SetStatus updates a batch's lifecycle state.
func (s *BatchStore) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	sql, args, err := psql.Update(s.batchTable).
		Set("status", string(status)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("batches %s: set status %s: build sql: %w", s.name, id, err)
	}

	tag, err := s.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("batches %s: set status %s: %w", s.name, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("batches %s: set status %s: %w", s.name, id, addressd.ErrNotFound)
	}
	return nil
}

// HasItems reports whether at least one item exists for the batch.
func (s *BatchStore) HasItems(ctx context.Context, batchID uuid.UUID) (bool, error) {
	if err := s.ensure(ctx); err != nil {
		return false, err
	}

	sql, args, err := psql.Select("1").From(s.itemTable).
		Where(sq.Eq{"batch_id": batchID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("batches %s: has items %s: build sql: %w", s.name, batchID, err)
	}

	var one int
	err = s.exec.QueryRow(ctx, sql, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("batches %s: has items %s: %w", s.name, batchID, err)
	}
	return true, nil
}

// InsertItems writes the full item set for a batch in payload order. Item ids
// are UUIDv7 so the created_at, id ordering used by reads reproduces insert
// order even when rows share the transaction timestamp.
func (s *BatchStore) InsertItems(ctx context.Context, batchID uuid.UUID, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	if err := s.ensure(ctx); err != nil {
		return err
	}

	builder := psql.Insert(s.itemTable).Columns("id", "batch_id", "status", "data")
	for i := range items {
		it := &items[i]
		if it.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				id = uuid.New()
			}
			it.ID = id
		}
		it.BatchID = batchID

		data, err := s.codec.Marshal(it.Data)
		if err != nil {
			return fmt.Errorf("batches %s: insert items %s: marshal: %w", s.name, batchID, err)
		}
		builder = builder.Values(it.ID, batchID, it.Status, data)
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("batches %s: insert items %s: build sql: %w", s.name, batchID, err)
	}

	if _, err := s.exec.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("batches %s: insert items %s: %w", s.name, batchID, err)
	}
	return nil
}

// ListItems returns a batch's items ordered by creation time, id.
func (s *BatchStore) ListItems(ctx context.Context, batchID uuid.UUID) ([]Item, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	sql, args, err := psql.Select("id", "batch_id", "status", "data", "created_at").
		From(s.itemTable).
		Where(sq.Eq{"batch_id": batchID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("batches %s: list items %s: build sql: %w", s.name, batchID, err)
	}

	rows, err := s.exec.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("batches %s: list items %s: %w", s.name, batchID, err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var status string
		var data []byte
		if err := rows.Scan(&it.ID, &it.BatchID, &status, &data, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("batches %s: list items %s: scan: %w", s.name, batchID, err)
		}
		it.Status = status
		if err := s.codec.Unmarshal(data, &it.Data); err != nil {
			return nil, fmt.Errorf("batches %s: list items %s: unmarshal: %w", s.name, batchID, err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("batches %s: list items %s: %w", s.name, batchID, err)
	}
	return items, nil
}

// ClearItems deletes all items of a batch, making room for regeneration.
func (s *BatchStore) ClearItems(ctx context.Context, batchID uuid.UUID) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}

	sql, args, err := psql.Delete(s.itemTable).Where(sq.Eq{"batch_id": batchID}).ToSql()
	if err != nil {
		return fmt.Errorf("batches %s: clear items %s: build sql: %w", s.name, batchID, err)
	}
	if _, err := s.exec.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("batches %s: clear items %s: %w", s.name, batchID, err)
	}
	return nil
}

// GetBatchWithCount loads one batch summary with its item count.
func (s *BatchStore) GetBatchWithCount(ctx context.Context, id uuid.UUID) (*BatchSummary, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	sql, args, err := s.summarySQL(sq.Eq{"b.id": id}, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("batches %s: get with count %s: build sql: %w", s.name, id, err)
	}

	var sum BatchSummary
	var status string
	err = s.exec.QueryRow(ctx, sql, args...).
		Scan(&sum.ID, &status, &sum.CreatedAt, &sum.Payload, &sum.ItemCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("batches %s: get with count %s: %w", s.name, id, addressd.ErrNotFound)
		}
		return nil, fmt.Errorf("batches %s: get with count %s: %w", s.name, id, err)
	}
	sum.Status = Status(status)
	return &sum, nil
}

// ListBatches pages through batch summaries, newest first.
func (s *BatchStore) ListBatches(ctx context.Context, opts ListOptions) ([]BatchSummary, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	opts = opts.normalized()
	var filter sq.Sqlizer
	if opts.Status != "" {
		filter = sq.Eq{"b.status": string(opts.Status)}
	}

	sql, args, err := s.summarySQL(filter, uint64(opts.Limit), uint64(opts.Offset))
	if err != nil {
		return nil, fmt.Errorf("batches %s: list: build sql: %w", s.name, err)
	}

	rows, err := s.exec.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("batches %s: list: %w", s.name, err)
	}
	defer rows.Close()

	out := []BatchSummary{}
	for rows.Next() {
		var sum BatchSummary
		var status string
		if err := rows.Scan(&sum.ID, &status, &sum.CreatedAt, &sum.Payload, &sum.ItemCount); err != nil {
			return nil, fmt.Errorf("batches %s: list: scan: %w", s.name, err)
		}
		sum.Status = Status(status)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("batches %s: list: %w", s.name, err)
	}
	return out, nil
}

func (s *BatchStore) summarySQL(filter sq.Sqlizer, limit, offset uint64) (string, []any, error) {
	builder := psql.
		Select("b.id", "b.status", "b.created_at", "b.request_payload", "COUNT(i.id)").
		From(s.batchTable + " b").
		LeftJoin(s.itemTable + " i ON i.batch_id = b.id").
		GroupBy("b.id").
		OrderBy("b.created_at DESC").
		Limit(limit).
		Offset(offset)
	if filter != nil {
		builder = builder.Where(filter)
	}
	return builder.ToSql()
}

// DeleteBatch removes a batch; items go with it via the cascading foreign
// key. Reports whether a row existed.
func (s *BatchStore) DeleteBatch(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := s.ensure(ctx); err != nil {
		return false, err
	}

	sql, args, err := psql.Delete(s.batchTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, fmt.Errorf("batches %s: delete %s: build sql: %w", s.name, id, err)
	}

	tag, err := s.exec.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("batches %s: delete %s: %w", s.name, id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Records decodes the stored payload into address records. An empty or NULL
// payload decodes to no records; anything that is not a JSON array of
// objects is a malformed payload.
func (b *Batch) Records(codec codecs.Codec) ([]normalize.Record, error) {
	if len(b.RawPayload) == 0 {
		return nil, nil
	}
	var recs []normalize.Record
	if err := codec.Unmarshal(b.RawPayload, &recs); err != nil {
		return nil, fmt.Errorf("batches: decode payload %s: %w", b.ID, err)
	}
	return recs, nil
}
