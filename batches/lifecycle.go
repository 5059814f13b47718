package batches

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/ripkitten-co/addressd"
	"github.com/ripkitten-co/addressd/normalize"
)

// Controller owns the batch state machine for one pipeline. Every mutation
// runs inside a Session holding the batch's exclusive row lock, so Process
// and Requeue calls for the same id serialize; batches never lock each other.
type Controller[R any] struct {
	store *addressd.Store
	pipe  Pipeline[R]
}

// NewController wires a lifecycle controller for the given pipeline.
func NewController[R any](store *addressd.Store, pipe Pipeline[R]) *Controller[R] {
	return &Controller[R]{store: store, pipe: pipe}
}

// Pipeline returns the controller's pipeline strategy.
func (c *Controller[R]) Pipeline() Pipeline[R] { return c.pipe }

// CreateSync persists a completed batch with its items in one atomic unit and
// returns the ordered results.
func (c *Controller[R]) CreateSync(ctx context.Context, payload []normalize.Record) (uuid.UUID, []R, error) {
	sess, err := c.store.Session(ctx)
	if err != nil {
		return uuid.Nil, nil, err
	}
	defer sess.Close(ctx)

	bs := NewBatchStore(sess, c.pipe)
	batch, err := bs.CreateBatch(ctx, StatusCompleted, payload)
	if err != nil {
		return uuid.Nil, nil, err
	}

	items, results := c.runAll(payload)
	if err := bs.InsertItems(ctx, batch.ID, items); err != nil {
		return uuid.Nil, nil, err
	}

	if err := sess.Commit(ctx); err != nil {
		return uuid.Nil, nil, err
	}
	return batch.ID, results, nil
}

// CreateQueued persists a queued batch holding only the raw payload. The
// caller is responsible for dispatching the matching queue message.
func (c *Controller[R]) CreateQueued(ctx context.Context, payload []normalize.Record) (uuid.UUID, error) {
	sess, err := c.store.Session(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer sess.Close(ctx)

	batch, err := NewBatchStore(sess, c.pipe).CreateBatch(ctx, StatusQueued, payload)
	if err != nil {
		return uuid.Nil, err
	}
	if err := sess.Commit(ctx); err != nil {
		return uuid.Nil, err
	}
	return batch.ID, nil
}

// Process runs a queued batch to completion. It is safe under at-least-once
// delivery: a missing batch is a stale message and a no-op; a batch already
// processing, or completed with items, hits the idempotency guard. The
// processing status commits on its own before the work starts, so a worker
// crash leaves the batch visibly stuck in processing for an operator to
// requeue rather than silently half done. Item regeneration and the final
// completed status then commit as one atomic unit.
func (c *Controller[R]) Process(ctx context.Context, id uuid.UUID) error {
	recs, proceed, err := c.claim(ctx, id)
	if err != nil || !proceed {
		return err
	}

	sess, err := c.store.Session(ctx)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)

	bs := NewBatchStore(sess, c.pipe)
	if _, err := bs.GetBatchForUpdate(ctx, id); err != nil {
		return err
	}
	if err := bs.ClearItems(ctx, id); err != nil {
		return err
	}
	items, _ := c.runAll(recs)
	if err := bs.InsertItems(ctx, id, items); err != nil {
		return err
	}
	if err := bs.SetStatus(ctx, id, StatusCompleted); err != nil {
		return err
	}
	return sess.Commit(ctx)
}

// claim takes the row lock and applies the guards: it reports whether the
// caller should go on to regenerate items, and commits the processing (or
// failed) status when it does not bail out entirely.
func (c *Controller[R]) claim(ctx context.Context, id uuid.UUID) ([]normalize.Record, bool, error) {
	sess, err := c.store.Session(ctx)
	if err != nil {
		return nil, false, err
	}
	defer sess.Close(ctx)

	bs := NewBatchStore(sess, c.pipe)
	batch, err := bs.GetBatchForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, addressd.ErrNotFound) {
			// stale queue message
			return nil, false, nil
		}
		return nil, false, err
	}

	if batch.Status == StatusProcessing {
		return nil, false, nil
	}
	if batch.Status == StatusCompleted {
		has, err := bs.HasItems(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if has {
			return nil, false, nil
		}
	}

	recs, err := batch.Records(c.store.JSONCodec())
	if err != nil {
		slog.Error("malformed stored payload, failing batch",
			"pipeline", c.pipe.Name(), "batch_id", id, "error", err)
		if err := bs.SetStatus(ctx, id, StatusFailed); err != nil {
			return nil, false, err
		}
		return nil, false, sess.Commit(ctx)
	}
	if len(recs) == 0 {
		if err := bs.SetStatus(ctx, id, StatusFailed); err != nil {
			return nil, false, err
		}
		return nil, false, sess.Commit(ctx)
	}

	if err := bs.SetStatus(ctx, id, StatusProcessing); err != nil {
		return nil, false, err
	}
	if err := sess.Commit(ctx); err != nil {
		return nil, false, err
	}
	return recs, true, nil
}

// Requeue resets a batch for another processing pass and reports whether it
// was queued. In-flight batches are refused with ErrConflict; batches whose
// stored payload is empty are marked failed and reported false. The caller
// dispatches the fresh queue message on success.
func (c *Controller[R]) Requeue(ctx context.Context, id uuid.UUID) (bool, error) {
	sess, err := c.store.Session(ctx)
	if err != nil {
		return false, err
	}
	defer sess.Close(ctx)

	bs := NewBatchStore(sess, c.pipe)
	batch, err := bs.GetBatchForUpdate(ctx, id)
	if err != nil {
		return false, err
	}

	if batch.Status == StatusProcessing {
		return false, fmt.Errorf("batches %s: requeue %s: %w", c.pipe.Name(), id, addressd.ErrConflict)
	}

	recs, err := batch.Records(c.store.JSONCodec())
	if err != nil || len(recs) == 0 {
		if err := bs.SetStatus(ctx, id, StatusFailed); err != nil {
			return false, err
		}
		return false, sess.Commit(ctx)
	}

	if err := bs.ClearItems(ctx, id); err != nil {
		return false, err
	}
	if err := bs.SetStatus(ctx, id, StatusQueued); err != nil {
		return false, err
	}
	return true, sess.Commit(ctx)
}

// Delete removes a batch and all its items.
func (c *Controller[R]) Delete(ctx context.Context, id uuid.UUID) error {
	ok, err := NewBatchStore(c.store, c.pipe).DeleteBatch(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("batches %s: delete %s: %w", c.pipe.Name(), id, addressd.ErrNotFound)
	}
	return nil
}

// Get returns one batch summary with its item count.
func (c *Controller[R]) Get(ctx context.Context, id uuid.UUID) (*BatchSummary, error) {
	return NewBatchStore(c.store, c.pipe).GetBatchWithCount(ctx, id)
}

// List pages through batch summaries, newest first.
func (c *Controller[R]) List(ctx context.Context, opts ListOptions) ([]BatchSummary, error) {
	return NewBatchStore(c.store, c.pipe).ListBatches(ctx, opts)
}

func (c *Controller[R]) runAll(payload []normalize.Record) ([]Item, []R) {
	items := make([]Item, 0, len(payload))
	results := make([]R, 0, len(payload))
	for _, rec := range payload {
		status, data := c.pipe.Run(rec)
		items = append(items, Item{Status: status, Data: data})
		results = append(results, c.pipe.Project(status, data))
	}
	return items, results
}
