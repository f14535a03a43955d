package config

import (
	"context"
	"fmt"

	"github.com/Veraticus/cardwise/internal/service"
	"github.com/spf13/viper"
)

// Source resolves raw configuration values by dotted key.
type Source interface {
	Lookup(ctx context.Context, key string) (any, bool, error)
}

// ViperSource reads values from a viper instance (file, env, flags, defaults).
type ViperSource struct {
	v *viper.Viper
}

// NewViperSource wraps v, or the global viper instance when v is nil.
func NewViperSource(v *viper.Viper) *ViperSource {
	if v == nil {
		v = viper.GetViper()
	}
	return &ViperSource{v: v}
}

// Lookup implements Source.
func (s *ViperSource) Lookup(_ context.Context, key string) (any, bool, error) {
	if !s.v.IsSet(key) {
		return nil, false, nil
	}
	return s.v.Get(key), true, nil
}

// SettingsSource reads runtime overrides from the settings table.
type SettingsSource struct {
	store service.SettingsStore
}

// NewSettingsSource creates a source backed by store.
func NewSettingsSource(store service.SettingsStore) *SettingsSource {
	return &SettingsSource{store: store}
}

// Lookup implements Source.
func (s *SettingsSource) Lookup(ctx context.Context, key string) (any, bool, error) {
	value, ok, err := s.store.GetSetting(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return value, true, nil
}

// LayeredSource consults each source in order; the first hit wins.
type LayeredSource []Source

// Lookup implements Source.
func (l LayeredSource) Lookup(ctx context.Context, key string) (any, bool, error) {
	for _, src := range l {
		value, ok, err := src.Lookup(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return value, true, nil
		}
	}
	return nil, false, nil
}

// MapSource is a static source, mostly useful in tests.
type MapSource map[string]any

// Lookup implements Source.
func (m MapSource) Lookup(_ context.Context, key string) (any, bool, error) {
	value, ok := m[key]
	return value, ok, nil
}
