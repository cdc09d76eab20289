package cache

import "github.com/rs/zerolog"

const defaultShardBits = 4 // 2^4 = 16 shards, matching the teacher's default

// Option configures a Cache at construction time.
type Option func(*config)

type config struct {
	shardBits int
	logger    zerolog.Logger
}

func defaultConfig() config {
	return config{
		shardBits: defaultShardBits,
		logger:    zerolog.Nop(), // silent by default; the core never requires a logger
	}
}

// WithShardBits sets the number of shards to 2^bits. bits must be >= 0;
// invalid values fall back to the default rather than panicking, since this
// only tunes contention, not correctness.
func WithShardBits(bits int) Option {
	return func(c *config) {
		if bits >= 0 {
			c.shardBits = bits
		}
	}
}

// WithLogger attaches a structured logger used for non-hot-path
// diagnostics (prune sweeps, logged at debug level). The core never blocks
// or logs on Insert/Lookup/Release.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}
