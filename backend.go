package addressd

import (
	"github.com/ripkitten-co/addressd/internal/codecs"
	"github.com/ripkitten-co/addressd/internal/pg"
	"github.com/ripkitten-co/addressd/schema"
)

type backend struct {
	exec   pg.Executor
	codec  codecs.Codec
	schema *schema.Bootstrap
}

// Backend is implemented by both Store and Session so batch stores and the
// job queue can run against either the pool or an open transaction.
type Backend interface {
	DBExecutor() pg.Executor
	JSONCodec() codecs.Codec
	SchemaBootstrap() *schema.Bootstrap
}
