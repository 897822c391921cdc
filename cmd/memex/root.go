package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/memexlabs/memex/internal/breaker"
	"github.com/memexlabs/memex/internal/config"
	"github.com/memexlabs/memex/internal/engine"
	"github.com/memexlabs/memex/internal/extract"
	"github.com/memexlabs/memex/internal/index"
	"github.com/memexlabs/memex/internal/logging"
	"github.com/memexlabs/memex/internal/quality"
	"github.com/memexlabs/memex/internal/queue"
	"github.com/memexlabs/memex/internal/ratelimit"
	"github.com/memexlabs/memex/internal/ttlcache"
)

var (
	cfgFile      string
	outputFormat string

	app *application
)

// application holds every long-lived collaborator the subcommands share.
type application struct {
	cfg    *config.Config
	eng    *engine.Engine
	logger logging.ComponentAware
}

var rootCmd = &cobra.Command{
	Use:           "memex",
	Short:         "Self-learning episodic memory for AI agents",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return buildApp(cmd.Context())
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app == nil {
			return nil
		}
		return app.eng.Stop()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (yaml/json/toml)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "", "output format: human or json (overrides config)")

	rootCmd.AddCommand(startEpisodeCmd)
	rootCmd.AddCommand(logStepCmd)
	rootCmd.AddCommand(completeEpisodeCmd)
	rootCmd.AddCommand(getEpisodeCmd)
	rootCmd.AddCommand(addRelationshipCmd)
	rootCmd.AddCommand(removeRelationshipCmd)
	rootCmd.AddCommand(getRelationshipsCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(retrieveContextCmd)
	rootCmd.AddCommand(feedbackCmd)
}

func buildApp(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if outputFormat != "" {
		cfg.CLI.DefaultFormat = outputFormat
	}

	logger := logging.NewZerolog(cfg.Logging.Level, cfg.Logging.Format != "json")

	durable, err := cfg.OpenDurable(ctx)
	if err != nil {
		return fmt.Errorf("open durable store: %w", err)
	}

	secondary, err := cfg.OpenSecondary(secondaryBoltPath(cfg))
	if err != nil {
		return fmt.Errorf("open secondary cache: %w", err)
	}

	var limiter *ratelimit.Limiter
	if cfg.Storage.PoolSize > 0 {
		limiter = ratelimit.New(ratelimit.DefaultConfig())
	}

	q, err := openQueue(cfg)
	if err != nil {
		return fmt.Errorf("open task queue: %w", err)
	}

	eng := engine.New(engine.Config{
		Durable:     durable,
		Secondary:   secondary,
		Index:       index.New(),
		ResultCache: ttlcache.New(ttlcache.DefaultConfig()),
		Breaker:     breaker.New(breaker.DefaultConfig("memex-durable")),
		Limiter:     limiter,
		Queue:       q,
		Quality:     quality.DefaultConfig(),
		Capacity:    quality.CapacityConfig{MaxEpisodes: cfg.Storage.MaxEpisodesCache, Policy: quality.PolicyRelevanceWeighted},
		Reward:      extract.DefaultRewardConfig(),
		Pattern:     extract.DefaultPatternConfig(),
		Heuristic:   extract.DefaultHeuristicConfig(),
		Logger:      logger,
	})
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	app = &application{cfg: cfg, eng: eng, logger: logger}
	return nil
}

func secondaryBoltPath(cfg *config.Config) string {
	if cfg.Database.RedbPath == ":memory:" || cfg.Database.RedbPath == "" {
		return os.TempDir() + "/memex-secondary.db"
	}
	return cfg.Database.RedbPath + ".secondary"
}

// openQueue wires a Redis-backed task queue when a Redis URL is configured,
// so extraction runs on a durable background queue instead of inline.
// Falls back to a bounded in-memory queue otherwise.
func openQueue(cfg *config.Config) (queue.Queue, error) {
	if cfg.Storage.RedisURL == "" {
		return queue.NewMemory(256), nil
	}
	opt, err := redis.ParseURL(cfg.Storage.RedisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	return queue.NewRedis(client, "memex:extraction"), nil
}
