package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/service"
	"github.com/spf13/cast"
)

// DefaultCacheTTL is how long a resolved value is served from cache.
const DefaultCacheTTL = 5 * time.Minute

const lookupTimeout = 2 * time.Second

// Provider serves typed configuration values with defaults.
type Provider interface {
	Float(key string, def float64) float64
	Int(key string, def int) int
	String(key string, def string) string
	Bool(key string, def bool) bool
	Duration(key string, def time.Duration) time.Duration
	StringSlice(key string, def []string) []string
	Invalidate(keys ...string)
}

type cacheEntry struct {
	expires time.Time
	value   any
	found   bool
}

// CachedProvider is a Provider that caches lookups from a Source for a TTL.
type CachedProvider struct {
	source   Source
	settings service.SettingsStore
	now      func() time.Time
	entries  map[string]cacheEntry
	ttl      time.Duration
	mu       sync.Mutex
}

// NewCachedProvider creates a provider over source. A ttl of zero uses DefaultCacheTTL.
func NewCachedProvider(source Source, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedProvider{
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// WithSettings enables Set by writing through to store.
func (p *CachedProvider) WithSettings(store service.SettingsStore) *CachedProvider {
	p.settings = store
	return p
}

// Set persists a runtime override and drops the cached value for key.
func (p *CachedProvider) Set(ctx context.Context, key, value string) error {
	if p.settings == nil {
		return fmt.Errorf("%w: no settings store configured", common.ErrMissingConfig)
	}
	if err := p.settings.SetSetting(ctx, key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	p.Invalidate(key)
	return nil
}

// Invalidate drops cached values for keys, or everything when no keys are given.
func (p *CachedProvider) Invalidate(keys ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(keys) == 0 {
		p.entries = make(map[string]cacheEntry)
		return
	}
	for _, key := range keys {
		delete(p.entries, key)
	}
}

func (p *CachedProvider) lookup(key string) (any, bool) {
	now := p.now()

	p.mu.Lock()
	entry, ok := p.entries[key]
	p.mu.Unlock()
	if ok && now.Before(entry.expires) {
		return entry.value, entry.found
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	value, found, err := p.source.Lookup(ctx, key)
	if err != nil {
		slog.Warn("Config lookup failed, using default", "key", key, "error", err)
		return nil, false
	}

	p.mu.Lock()
	p.entries[key] = cacheEntry{value: value, found: found, expires: now.Add(p.ttl)}
	p.mu.Unlock()

	return value, found
}

// Float implements Provider.
func (p *CachedProvider) Float(key string, def float64) float64 {
	raw, ok := p.lookup(key)
	if !ok {
		return def
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		slog.Warn("Invalid float config value", "key", key, "value", raw)
		return def
	}
	return v
}

// Int implements Provider.
func (p *CachedProvider) Int(key string, def int) int {
	raw, ok := p.lookup(key)
	if !ok {
		return def
	}
	v, err := cast.ToIntE(raw)
	if err != nil {
		slog.Warn("Invalid int config value", "key", key, "value", raw)
		return def
	}
	return v
}

// String implements Provider.
func (p *CachedProvider) String(key string, def string) string {
	raw, ok := p.lookup(key)
	if !ok {
		return def
	}
	v, err := cast.ToStringE(raw)
	if err != nil || v == "" {
		return def
	}
	return v
}

// Bool implements Provider.
func (p *CachedProvider) Bool(key string, def bool) bool {
	raw, ok := p.lookup(key)
	if !ok {
		return def
	}
	v, err := cast.ToBoolE(raw)
	if err != nil {
		slog.Warn("Invalid bool config value", "key", key, "value", raw)
		return def
	}
	return v
}

// Duration implements Provider.
func (p *CachedProvider) Duration(key string, def time.Duration) time.Duration {
	raw, ok := p.lookup(key)
	if !ok {
		return def
	}
	v, err := cast.ToDurationE(raw)
	if err != nil {
		slog.Warn("Invalid duration config value", "key", key, "value", raw)
		return def
	}
	return v
}

// StringSlice implements Provider. String values are split on commas.
func (p *CachedProvider) StringSlice(key string, def []string) []string {
	raw, ok := p.lookup(key)
	if !ok {
		return def
	}
	if s, isString := raw.(string); isString {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	v, err := cast.ToStringSliceE(raw)
	if err != nil {
		slog.Warn("Invalid list config value", "key", key, "value", raw)
		return def
	}
	return v
}
