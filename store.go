package addressd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ripkitten-co/addressd/internal/codecs"
	"github.com/ripkitten-co/addressd/internal/pg"
	"github.com/ripkitten-co/addressd/schema"
)

// Store is the main entry point for addressd persistence. It holds a
// PostgreSQL connection pool and hands out sessions (transactions) to the
// batch lifecycle controllers and the job queue.
type Store struct {
	pool *pg.Pool
	be   backend
}

// New connects to PostgreSQL and returns a configured Store.
func New(ctx context.Context, connString string, opts ...Option) (*Store, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}

	pool, err := pg.NewPool(ctx, connString, cfg.minConns, cfg.maxConns)
	if err != nil {
		return nil, fmt.Errorf("addressd: %w", err)
	}

	s := &Store{
		pool: pool,
		be: backend{
			exec:   pool,
			codec:  cfg.codec,
			schema: schema.New(),
		},
	}
	return s, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// DBExecutor returns the pool-level executor.
func (s *Store) DBExecutor() pg.Executor { return s.be.exec }

// JSONCodec returns the configured JSON codec.
func (s *Store) JSONCodec() codecs.Codec { return s.be.codec }

// SchemaBootstrap returns the schema bootstrap manager.
func (s *Store) SchemaBootstrap() *schema.Bootstrap { return s.be.schema }

// PgxPool returns the underlying pgxpool.Pool for use with stdlib adapters.
func (s *Store) PgxPool() *pgxpool.Pool { return s.pool.PgxPool() }
