package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/cardwise/internal/config"
	"github.com/Veraticus/cardwise/internal/engine"
	"github.com/Veraticus/cardwise/internal/llm"
	"github.com/Veraticus/cardwise/internal/storage"
	"github.com/Veraticus/cardwise/internal/tracing"
)

// openStore opens the configured database and brings its schema up to date.
func openStore(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString(config.KeyDatabasePath)
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newProvider layers runtime settings stored in the database over file, env
// and default configuration.
func newProvider(store *storage.SQLiteStorage) *config.CachedProvider {
	source := config.LayeredSource{
		config.NewSettingsSource(store),
		config.NewViperSource(viper.GetViper()),
	}
	return config.NewCachedProvider(source, config.DefaultCacheTTL).WithSettings(store)
}

// newOracle builds the merchant oracle from the llm.* keys. It returns nil
// when no provider is configured; resolution then stops at fuzzy matching.
func newOracle() (*llm.MerchantOracle, error) {
	provider := strings.ToLower(viper.GetString("llm.provider"))
	if provider == "" || provider == "none" {
		return nil, nil
	}

	cfg := llm.Config{
		Provider:    provider,
		Model:       viper.GetString("llm.model"),
		BaseURL:     viper.GetString("llm.base_url"),
		Temperature: viper.GetFloat64("llm.temperature"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
		MaxRetries:  viper.GetInt("llm.max_retries"),
		RetryDelay:  viper.GetDuration("llm.retry_delay"),
		CacheTTL:    viper.GetDuration("llm.cache_ttl"),
		RateLimit:   viper.GetInt("llm.rate_limit"),
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 60
	}

	switch provider {
	case "openai":
		cfg.APIKey = firstNonEmpty(viper.GetString("llm.openai_api_key"), os.Getenv("OPENAI_API_KEY"))
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key not found in config or OPENAI_API_KEY environment variable")
		}
	case "anthropic":
		cfg.APIKey = firstNonEmpty(viper.GetString("llm.anthropic_api_key"), os.Getenv("ANTHROPIC_API_KEY"))
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key not found in config or ANTHROPIC_API_KEY environment variable")
		}
	}

	return llm.NewMerchantOracle(cfg, slog.Default())
}

func newTracer() (*tracing.Tracer, error) {
	return tracing.New(tracing.Config{
		Enabled:  viper.GetBool(config.KeyTracingEnabled),
		Endpoint: viper.GetString(config.KeyTracingEndpoint),
		Version:  version,
	})
}

// app bundles everything a command needs to run the pipeline.
type app struct {
	store    *storage.SQLiteStorage
	settings *config.CachedProvider
	oracle   *llm.MerchantOracle
	tracer   *tracing.Tracer
	engine   *engine.Engine
}

// newApp opens the store and wires the engine. withOracle controls whether an
// LLM client is built; commands that never resolve merchants skip it.
func newApp(ctx context.Context, withOracle bool) (*app, error) {
	store, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	a := &app{store: store, settings: newProvider(store)}

	a.tracer, err = newTracer()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	opts := []engine.Option{
		engine.WithSettings(a.settings),
		engine.WithTracer(a.tracer),
		engine.WithLogger(slog.Default()),
	}
	if withOracle {
		a.oracle, err = newOracle()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create merchant oracle: %w", err)
		}
		if a.oracle != nil {
			opts = append(opts, engine.WithOracle(a.oracle))
		}
	}

	a.engine = engine.New(store, opts...)
	return a, nil
}

// snapshot loads the current tunables.
func (a *app) snapshot() (config.Snapshot, error) {
	return config.LoadSnapshot(a.settings)
}

// Close releases the oracle, the tracer and the database, in that order.
func (a *app) Close() {
	if a.oracle != nil {
		if err := a.oracle.Close(); err != nil {
			slog.Warn("Failed to close merchant oracle", "error", err)
		}
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.tracer.Shutdown(ctx); err != nil {
			slog.Warn("Failed to flush traces", "error", err)
		}
		cancel()
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
