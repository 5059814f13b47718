package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ripkitten-co/addressd"
)

// HandlerFunc processes one job. Handlers must tolerate duplicate delivery.
type HandlerFunc func(ctx context.Context, batchID uuid.UUID) error

type DaemonOption func(*daemonConfig)

type daemonConfig struct {
	pollInterval time.Duration
	workers      int
	maxAttempts  int
}

func WithPollInterval(d time.Duration) DaemonOption {
	return func(c *daemonConfig) { c.pollInterval = d }
}

func WithWorkers(n int) DaemonOption {
	return func(c *daemonConfig) { c.workers = n }
}

func WithMaxAttempts(n int) DaemonOption {
	return func(c *daemonConfig) { c.maxAttempts = n }
}

// Daemon runs a pool of workers that claim and process queued jobs. Workers
// may run in any number of processes; FOR UPDATE SKIP LOCKED hands each job
// to exactly one live claimant at a time.
type Daemon struct {
	store    *addressd.Store
	handlers map[string]HandlerFunc
	cfg      daemonConfig
}

// NewDaemon creates a daemon over the store's pool.
func NewDaemon(store *addressd.Store, opts ...DaemonOption) *Daemon {
	cfg := daemonConfig{
		pollInterval: 5 * time.Second,
		workers:      1,
		maxAttempts:  5,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Daemon{
		store:    store,
		handlers: make(map[string]HandlerFunc),
		cfg:      cfg,
	}
}

// Handle registers the handler for a job name.
func (d *Daemon) Handle(jobName string, fn HandlerFunc) {
	d.handlers[jobName] = fn
}

// Run blocks, processing jobs until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) {
	wake := make(chan struct{}, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.listen(ctx, wake)
	}()

	for i := 0; i < d.cfg.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.runWorker(ctx, wake)
		}()
	}

	wg.Wait()
}

func (d *Daemon) runWorker(ctx context.Context, wake <-chan struct{}) {
	d.drainJobs(ctx)

	ticker := time.NewTicker(d.cfg.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-wake:
		}
		d.drainJobs(ctx)
	}
}

func (d *Daemon) drainJobs(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := d.ProcessOne(ctx)
		if err != nil {
			slog.Error("process job", "error", err)
			return
		}
		if !processed {
			return
		}
	}
}

// ProcessOne claims and runs a single job. It reports whether a job was
// claimed. The claim transaction stays open while the handler runs; on
// handler failure the job's attempt count goes up and the row survives for
// another delivery, until maxAttempts drops it.
func (d *Daemon) ProcessOne(ctx context.Context) (bool, error) {
	sess, err := d.store.Session(ctx)
	if err != nil {
		return false, err
	}
	defer sess.Close(ctx)

	exec := sess.DBExecutor()
	if err := sess.SchemaBootstrap().EnsureJobs(ctx, exec); err != nil {
		return false, err
	}

	var (
		jobID    uuid.UUID
		jobName  string
		batchID  uuid.UUID
		attempts int
	)
	err = exec.QueryRow(ctx,
		`SELECT id, job_name, batch_id, attempts FROM addressd_jobs
		 ORDER BY created_at, id LIMIT 1 FOR UPDATE SKIP LOCKED`,
	).Scan(&jobID, &jobName, &batchID, &attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("queue: claim: %w", err)
	}

	handler, ok := d.handlers[jobName]
	if !ok {
		slog.Warn("dropping job with no handler", "job", jobName, "batch_id", batchID)
		if err := d.deleteJob(ctx, sess, jobID); err != nil {
			return false, err
		}
		return true, sess.Commit(ctx)
	}

	if err := handler(ctx, batchID); err != nil {
		attempts++
		if attempts >= d.cfg.maxAttempts {
			slog.Error("job exhausted retries, dropping",
				"job", jobName, "batch_id", batchID, "attempts", attempts, "error", err)
			if derr := d.deleteJob(ctx, sess, jobID); derr != nil {
				return false, derr
			}
		} else {
			_, uerr := exec.Exec(ctx,
				"UPDATE addressd_jobs SET attempts = $1 WHERE id = $2", attempts, jobID)
			if uerr != nil {
				return false, fmt.Errorf("queue: record attempt: %w", uerr)
			}
		}
		if cerr := sess.Commit(ctx); cerr != nil {
			return false, cerr
		}
		return true, fmt.Errorf("queue: job %s for batch %s: %w", jobName, batchID, err)
	}

	if err := d.deleteJob(ctx, sess, jobID); err != nil {
		return false, err
	}
	return true, sess.Commit(ctx)
}

func (d *Daemon) deleteJob(ctx context.Context, sess *addressd.Session, id uuid.UUID) error {
	_, err := sess.DBExecutor().Exec(ctx, "DELETE FROM addressd_jobs WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("queue: delete job %s: %w", id, err)
	}
	return nil
}

// listen waits for pg_notify wakeups so enqueued work starts without waiting
// a full poll interval. Purely an optimization; the ticker is the backstop.
func (d *Daemon) listen(ctx context.Context, wake chan<- struct{}) {
	for ctx.Err() == nil {
		if err := d.waitForNotification(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("queue listener", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.cfg.pollInterval):
			}
			continue
		}
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

func (d *Daemon) waitForNotification(ctx context.Context) error {
	conn, err := d.store.PgxPool().Acquire(ctx)
	if err != nil {
		return fmt.Errorf("queue: acquire conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN addressd_jobs"); err != nil {
		return fmt.Errorf("queue: listen: %w", err)
	}

	if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
		return fmt.Errorf("queue: wait: %w", err)
	}
	return nil
}
