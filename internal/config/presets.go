package config

// Local is the default development preset: a local file-backed durable
// store, an embedded bbolt secondary cache, human-readable output, and
// progress bars on.
func Local(cfg *Config) {
	if cfg.Database.RedbPath == "" || cfg.Database.RedbPath == ":memory:" {
		cfg.Database.RedbPath = "memex.db"
	}
	cfg.Storage.PoolSize = 4
	cfg.CLI.DefaultFormat = "human"
	cfg.CLI.ProgressBars = true
	cfg.Logging.Format = "text"
}

// Cloud is selected automatically when a managed hosting platform is
// detected (RENDER, HEROKU, FLY_IO, RAILWAY, or VERCEL present): it
// favors a larger connection pool, a Redis-backed secondary cache when
// one is configured, structured JSON logs for log aggregation, and JSON
// CLI output since stdout on these platforms is usually consumed by
// another process rather than a human terminal.
func Cloud(cfg *Config) {
	cfg.Storage.PoolSize = 16
	cfg.CLI.DefaultFormat = "json"
	cfg.CLI.ProgressBars = false
	cfg.Logging.Format = "json"
}

// Memory forces an in-memory durable store, drops any Redis secondary
// cache (the CLI then keeps its bbolt secondary cache in a temp-dir
// file), sets a pool size of 1, and disables progress bars — selected automatically when CI is
// set (per spec's "CI forces memory secondary storage and disables
// progress" rule), and useful directly for ephemeral/test embeddings.
func Memory(cfg *Config) {
	cfg.Database.RedbPath = ":memory:"
	cfg.Storage.RedisURL = ""
	cfg.Storage.PoolSize = 1
	cfg.CLI.ProgressBars = false
}
