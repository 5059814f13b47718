package addressd

import "github.com/ripkitten-co/addressd/internal/codecs"

type Option func(*storeConfig)

type storeConfig struct {
	codec    codecs.Codec
	maxConns int32
	minConns int32
}

func defaultConfig() *storeConfig {
	return &storeConfig{
		codec: codecs.NewJSONIter(),
	}
}

func WithCodec(c codecs.Codec) Option {
	return func(cfg *storeConfig) {
		cfg.codec = c
	}
}

// WithPoolSize bounds the underlying pgx pool. Zero values keep the pgxpool
// defaults.
func WithPoolSize(min, max int32) Option {
	return func(cfg *storeConfig) {
		cfg.minConns = min
		cfg.maxConns = max
	}
}
