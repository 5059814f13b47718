package schema

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type recordingExec struct {
	stmts []string
}

func (e *recordingExec) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.stmts = append(e.stmts, sql)
	return pgconn.CommandTag{}, nil
}

func (e *recordingExec) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not used")
}

func (e *recordingExec) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not used")
}

func TestValidateTableName(t *testing.T) {
	valid := []string{"a", "address_validation_batches", "t2", "x_y_z"}
	for _, name := range valid {
		if err := ValidateTableName(name); err != nil {
			t.Errorf("ValidateTableName(%q): unexpected error %v", name, err)
		}
	}

	invalid := []string{
		"",
		"Batches",
		"1batch",
		"_batch",
		"batch-items",
		"batches; DROP TABLE users",
		strings.Repeat("a", 64),
	}
	for _, name := range invalid {
		if err := ValidateTableName(name); err == nil {
			t.Errorf("ValidateTableName(%q): expected error", name)
		}
	}
}

func TestEnsurePipeline_RunsDDLOnce(t *testing.T) {
	exec := &recordingExec{}
	b := New()
	ctx := context.Background()

	if err := b.EnsurePipeline(ctx, exec, "v_batches", "v_items"); err != nil {
		t.Fatalf("ensure pipeline: %v", err)
	}
	// batch table, item table, item index
	if len(exec.stmts) != 3 {
		t.Fatalf("got %d statements, want 3: %q", len(exec.stmts), exec.stmts)
	}
	if !strings.Contains(exec.stmts[0], "CREATE TABLE IF NOT EXISTS v_batches") {
		t.Errorf("first statement is %q", exec.stmts[0])
	}
	if !strings.Contains(exec.stmts[1], "REFERENCES v_batches (id) ON DELETE CASCADE") {
		t.Errorf("item table misses cascading FK: %q", exec.stmts[1])
	}
	if !strings.Contains(exec.stmts[2], "CREATE INDEX IF NOT EXISTS idx_v_items_batch_id") {
		t.Errorf("third statement is %q", exec.stmts[2])
	}

	if err := b.EnsurePipeline(ctx, exec, "v_batches", "v_items"); err != nil {
		t.Fatalf("ensure pipeline again: %v", err)
	}
	if len(exec.stmts) != 3 {
		t.Errorf("second call re-ran DDL: %d statements", len(exec.stmts))
	}

	if !b.IsCreated("v_batches") || !b.IsCreated("v_items") {
		t.Error("tables not marked created")
	}
}

func TestEnsurePipeline_RejectsBadNames(t *testing.T) {
	exec := &recordingExec{}
	b := New()

	if err := b.EnsurePipeline(context.Background(), exec, "good_table", "Bad;Table"); err == nil {
		t.Fatal("expected error for invalid item table name")
	}
	if len(exec.stmts) != 0 {
		t.Errorf("DDL ran despite invalid name: %q", exec.stmts)
	}
}

func TestEnsureJobs_Cached(t *testing.T) {
	exec := &recordingExec{}
	b := New()
	ctx := context.Background()

	if err := b.EnsureJobs(ctx, exec); err != nil {
		t.Fatalf("ensure jobs: %v", err)
	}
	if err := b.EnsureJobs(ctx, exec); err != nil {
		t.Fatalf("ensure jobs again: %v", err)
	}
	if len(exec.stmts) != 1 {
		t.Fatalf("got %d statements, want 1", len(exec.stmts))
	}
	if !strings.Contains(exec.stmts[0], "CREATE TABLE IF NOT EXISTS addressd_jobs") {
		t.Errorf("statement is %q", exec.stmts[0])
	}

	b2 := New()
	b2.MarkCreated("addressd_jobs")
	exec2 := &recordingExec{}
	if err := b2.EnsureJobs(ctx, exec2); err != nil {
		t.Fatalf("ensure jobs on marked bootstrap: %v", err)
	}
	if len(exec2.stmts) != 0 {
		t.Error("MarkCreated did not suppress DDL")
	}
}
