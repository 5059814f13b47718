// Package queue is a PostgreSQL-backed job queue carrying {jobName, batchId}
// messages from the API to the background workers. Delivery is at-least-once:
// a job row stays locked while its handler runs and is only deleted on
// success, so a crashed worker releases the row for redelivery. The batch
// lifecycle's idempotency guard absorbs the resulting duplicates.
package queue

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/ripkitten-co/addressd"
	"github.com/ripkitten-co/addressd/internal/pg"
	"github.com/ripkitten-co/addressd/schema"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Message is the queue contract between dispatchers and workers.
type Message struct {
	JobName string    `json:"job_name"`
	BatchID uuid.UUID `json:"batch_id"`
}

// Dispatcher delivers a job message to the worker pool.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobName string, batchID uuid.UUID) error
}

// Queue enqueues jobs into the addressd_jobs table.
type Queue struct {
	exec   pg.Executor
	schema *schema.Bootstrap
}

// New creates a queue over the given backend.
func New(b addressd.Backend) *Queue {
	return &Queue{
		exec:   b.DBExecutor(),
		schema: b.SchemaBootstrap(),
	}
}

// Dispatch inserts one job row and nudges listening workers.
func (q *Queue) Dispatch(ctx context.Context, jobName string, batchID uuid.UUID) error {
	if err := q.schema.EnsureJobs(ctx, q.exec); err != nil {
		return err
	}

	sql, args, err := psql.Insert("addressd_jobs").
		Columns("id", "job_name", "batch_id").
		Values(uuid.New(), jobName, batchID).
		ToSql()
	if err != nil {
		return fmt.Errorf("queue: dispatch %s: build sql: %w", jobName, err)
	}

	if _, err := q.exec.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("queue: dispatch %s: %w", jobName, err)
	}

	// best-effort wakeup for daemon listeners
	_, _ = q.exec.Exec(ctx, "SELECT pg_notify('addressd_jobs', '')")

	return nil
}

// Pending counts undelivered jobs.
func (q *Queue) Pending(ctx context.Context) (int, error) {
	if err := q.schema.EnsureJobs(ctx, q.exec); err != nil {
		return 0, err
	}

	var n int
	err := q.exec.QueryRow(ctx, "SELECT COUNT(*) FROM addressd_jobs").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("queue: pending: %w", err)
	}
	return n, nil
}
