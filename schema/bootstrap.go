// Package schema manages idempotent creation of the addressd tables.
package schema

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/ripkitten-co/addressd/internal/pg"
)

var validName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// ValidateTableName checks that name is a valid table identifier
// (lowercase alphanumeric + underscores, starts with a letter).
func ValidateTableName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("schema: invalid table name %q: must be lowercase alphanumeric with underscores", name)
	}
	return nil
}

func batchDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id UUID PRIMARY KEY,
	status TEXT NOT NULL,
	request_payload JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, table)
}

func itemDDL(table, batchTable string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id UUID PRIMARY KEY,
	batch_id UUID NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
	status TEXT NOT NULL,
	data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, table, batchTable)
}

func itemBatchIndexDDL(table string) string {
	return fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_batch_id ON %s (batch_id)`,
		table, table,
	)
}

func jobsDDL() string {
	return `CREATE TABLE IF NOT EXISTS addressd_jobs (
	id UUID PRIMARY KEY,
	job_name TEXT NOT NULL,
	batch_id UUID NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
}

// Bootstrap manages idempotent creation of addressd tables. It caches which
// tables have been created to avoid repeated DDL round trips.
type Bootstrap struct {
	tables sync.Map
}

// New returns a Bootstrap with an empty cache.
func New() *Bootstrap {
	return &Bootstrap{}
}

// IsCreated reports whether the named table has been created by this process.
func (b *Bootstrap) IsCreated(table string) bool {
	_, ok := b.tables.Load(table)
	return ok
}

// MarkCreated records that the named table has been created.
func (b *Bootstrap) MarkCreated(table string) {
	b.tables.Store(table, true)
}

// EnsurePipeline creates the batch and item tables for one pipeline if they
// don't exist. The item table carries a cascading foreign key to the batch
// table, so deleting a batch removes its items.
func (b *Bootstrap) EnsurePipeline(ctx context.Context, exec pg.Executor, batchTable, itemTable string) error {
	if err := ValidateTableName(batchTable); err != nil {
		return err
	}
	if err := ValidateTableName(itemTable); err != nil {
		return err
	}

	if _, ok := b.tables.Load(batchTable); !ok {
		if _, err := exec.Exec(ctx, batchDDL(batchTable)); err != nil {
			return fmt.Errorf("schema: create table %s: %w", batchTable, err)
		}
		b.tables.Store(batchTable, true)
	}

	if _, ok := b.tables.Load(itemTable); !ok {
		if _, err := exec.Exec(ctx, itemDDL(itemTable, batchTable)); err != nil {
			return fmt.Errorf("schema: create table %s: %w", itemTable, err)
		}
		if _, err := exec.Exec(ctx, itemBatchIndexDDL(itemTable)); err != nil {
			return fmt.Errorf("schema: create index on %s: %w", itemTable, err)
		}
		b.tables.Store(itemTable, true)
	}

	return nil
}

// EnsureJobs creates the addressd_jobs table if it doesn't exist.
func (b *Bootstrap) EnsureJobs(ctx context.Context, exec pg.Executor) error {
	if _, ok := b.tables.Load("addressd_jobs"); ok {
		return nil
	}
	if _, err := exec.Exec(ctx, jobsDDL()); err != nil {
		return fmt.Errorf("schema: create jobs table: %w", err)
	}
	b.tables.Store("addressd_jobs", true)
	return nil
}
