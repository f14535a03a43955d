package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeyDatabasePath          = "database.path"
	KeyFuzzyThreshold        = "resolver.fuzzy_threshold"
	KeyOracleBatchSize       = "resolver.oracle_batch_size"
	KeyOracleBatchDelay      = "resolver.oracle_batch_delay"
	KeyOracleConfidenceCap   = "resolver.oracle_confidence_cap"
	KeyAliasLearnThreshold   = "resolver.alias_learn_threshold"
	KeyReviewThreshold       = "canonicalizer.review_threshold"
	KeyMinTotalSpend         = "aggregator.min_total_spend"
	KeyMinCategoryPercentage = "aggregator.min_category_percentage"
	KeyMinCategoryAmount     = "aggregator.min_category_amount"
	KeyMaxCategories         = "aggregator.max_categories"
	KeyStatementMonths       = "rewards.statement_months"
	KeyPointValuePrefix      = "rewards.point_value."
	KeyScoringMode           = "scoring.mode"
	KeyMinScore              = "scoring.min_score"
	KeyMaxRecommendations    = "scoring.max_recommendations"
	KeyFallbackCount         = "scoring.fallback_count"
	KeyPreferredIssuers      = "scoring.preferred_issuers"
	KeyLimitedNetworks       = "scoring.limited_networks"
	KeyHighFeeThreshold      = "scoring.high_fee_threshold"
	KeyWorkers               = "jobs.workers"
	KeyBackoffBase           = "jobs.backoff_base"
	KeyBackoffMultiplier     = "jobs.backoff_multiplier"
	KeyBackoffMax            = "jobs.backoff_max"
	KeyJobTimeout            = "jobs.timeout"
	KeySweepSchedule         = "jobs.sweep_schedule"
	KeyShutdownGrace         = "jobs.shutdown_grace"
	KeyTracingEnabled        = "tracing.enabled"
	KeyTracingEndpoint       = "tracing.endpoint"
	KeyAPIAddr               = "api.addr"
)

// Scoring modes.
const (
	ModeGross = "gross"
	ModeNet   = "net"
)

// ResolverSettings tunes merchant resolution.
type ResolverSettings struct {
	FuzzyThreshold      float64
	OracleBatchSize     int
	OracleBatchDelay    time.Duration
	OracleConfidenceCap float64
	AliasLearnThreshold float64
}

// AggregatorSettings tunes spending pattern aggregation.
type AggregatorSettings struct {
	MinTotalSpend         float64
	MinCategoryPercentage float64
	MinCategoryAmount     float64
	MaxCategories         int
}

// RewardSettings tunes earnings calculation.
type RewardSettings struct {
	PointValues     map[model.RewardCurrency]float64
	StatementMonths int
}

// ScoringSettings tunes recommendation scoring and ranking.
type ScoringSettings struct {
	Mode               string
	PreferredIssuers   []string
	LimitedNetworks    []string
	MinScore           float64
	HighFeeThreshold   float64
	MaxRecommendations int
	FallbackCount      int
}

// JobSettings tunes the worker pool.
type JobSettings struct {
	SweepSchedule     string
	BackoffBase       time.Duration
	BackoffMax        time.Duration
	Timeout           time.Duration
	ShutdownGrace     time.Duration
	BackoffMultiplier float64
	Workers           int
}

// Snapshot is an immutable view of every tunable, taken once per job.
type Snapshot struct {
	Rewards         RewardSettings
	Scoring         ScoringSettings
	Jobs            JobSettings
	Aggregator      AggregatorSettings
	Resolver        ResolverSettings
	ReviewThreshold float64
}

// DefaultSnapshot returns the built-in defaults.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Resolver: ResolverSettings{
			FuzzyThreshold:      0.8,
			OracleBatchSize:     20,
			OracleBatchDelay:    time.Second,
			OracleConfidenceCap: 0.85,
			AliasLearnThreshold: 0.8,
		},
		ReviewThreshold: 0.6,
		Aggregator: AggregatorSettings{
			MinTotalSpend:         100,
			MinCategoryPercentage: 1.0,
			MinCategoryAmount:     100,
			MaxCategories:         10,
		},
		Rewards: RewardSettings{
			StatementMonths: 1,
			PointValues: map[model.RewardCurrency]float64{
				model.CurrencyCashback: 1.0,
				model.CurrencyPoints:   0.25,
				model.CurrencyMiles:    0.5,
			},
		},
		Scoring: ScoringSettings{
			Mode:               ModeNet,
			MinScore:           40,
			MaxRecommendations: 5,
			FallbackCount:      3,
			LimitedNetworks:    []string{"AMEX", "DINERS"},
			HighFeeThreshold:   5000,
		},
		Jobs: JobSettings{
			Workers:           2,
			BackoffBase:       2 * time.Second,
			BackoffMultiplier: 1.5,
			BackoffMax:        30 * time.Second,
			Timeout:           10 * time.Minute,
			SweepSchedule:     "@every 1m",
			ShutdownGrace:     30 * time.Second,
		},
	}
}

// SetDefaults registers every default with v so file and env values layer on top.
func SetDefaults(v *viper.Viper) {
	d := DefaultSnapshot()
	v.SetDefault(KeyDatabasePath, DefaultDatabasePath())
	v.SetDefault(KeyFuzzyThreshold, d.Resolver.FuzzyThreshold)
	v.SetDefault(KeyOracleBatchSize, d.Resolver.OracleBatchSize)
	v.SetDefault(KeyOracleBatchDelay, d.Resolver.OracleBatchDelay)
	v.SetDefault(KeyOracleConfidenceCap, d.Resolver.OracleConfidenceCap)
	v.SetDefault(KeyAliasLearnThreshold, d.Resolver.AliasLearnThreshold)
	v.SetDefault(KeyReviewThreshold, d.ReviewThreshold)
	v.SetDefault(KeyMinTotalSpend, d.Aggregator.MinTotalSpend)
	v.SetDefault(KeyMinCategoryPercentage, d.Aggregator.MinCategoryPercentage)
	v.SetDefault(KeyMinCategoryAmount, d.Aggregator.MinCategoryAmount)
	v.SetDefault(KeyMaxCategories, d.Aggregator.MaxCategories)
	v.SetDefault(KeyStatementMonths, d.Rewards.StatementMonths)
	for currency, value := range d.Rewards.PointValues {
		v.SetDefault(KeyPointValuePrefix+string(currency), value)
	}
	v.SetDefault(KeyScoringMode, d.Scoring.Mode)
	v.SetDefault(KeyMinScore, d.Scoring.MinScore)
	v.SetDefault(KeyMaxRecommendations, d.Scoring.MaxRecommendations)
	v.SetDefault(KeyFallbackCount, d.Scoring.FallbackCount)
	v.SetDefault(KeyPreferredIssuers, d.Scoring.PreferredIssuers)
	v.SetDefault(KeyLimitedNetworks, d.Scoring.LimitedNetworks)
	v.SetDefault(KeyHighFeeThreshold, d.Scoring.HighFeeThreshold)
	v.SetDefault(KeyWorkers, d.Jobs.Workers)
	v.SetDefault(KeyBackoffBase, d.Jobs.BackoffBase)
	v.SetDefault(KeyBackoffMultiplier, d.Jobs.BackoffMultiplier)
	v.SetDefault(KeyBackoffMax, d.Jobs.BackoffMax)
	v.SetDefault(KeyJobTimeout, d.Jobs.Timeout)
	v.SetDefault(KeySweepSchedule, d.Jobs.SweepSchedule)
	v.SetDefault(KeyShutdownGrace, d.Jobs.ShutdownGrace)
	v.SetDefault(KeyTracingEnabled, false)
	v.SetDefault(KeyTracingEndpoint, "http://localhost:14268/api/traces")
	v.SetDefault(KeyAPIAddr, ":8080")
}

// LoadSnapshot reads every tunable from p. Out-of-range values are fatal.
func LoadSnapshot(p Provider) (Snapshot, error) {
	d := DefaultSnapshot()

	s := Snapshot{
		Resolver: ResolverSettings{
			FuzzyThreshold:      p.Float(KeyFuzzyThreshold, d.Resolver.FuzzyThreshold),
			OracleBatchSize:     p.Int(KeyOracleBatchSize, d.Resolver.OracleBatchSize),
			OracleBatchDelay:    p.Duration(KeyOracleBatchDelay, d.Resolver.OracleBatchDelay),
			OracleConfidenceCap: p.Float(KeyOracleConfidenceCap, d.Resolver.OracleConfidenceCap),
			AliasLearnThreshold: p.Float(KeyAliasLearnThreshold, d.Resolver.AliasLearnThreshold),
		},
		ReviewThreshold: p.Float(KeyReviewThreshold, d.ReviewThreshold),
		Aggregator: AggregatorSettings{
			MinTotalSpend:         p.Float(KeyMinTotalSpend, d.Aggregator.MinTotalSpend),
			MinCategoryPercentage: p.Float(KeyMinCategoryPercentage, d.Aggregator.MinCategoryPercentage),
			MinCategoryAmount:     p.Float(KeyMinCategoryAmount, d.Aggregator.MinCategoryAmount),
			MaxCategories:         p.Int(KeyMaxCategories, d.Aggregator.MaxCategories),
		},
		Rewards: RewardSettings{
			StatementMonths: p.Int(KeyStatementMonths, d.Rewards.StatementMonths),
			PointValues:     make(map[model.RewardCurrency]float64, len(d.Rewards.PointValues)),
		},
		Scoring: ScoringSettings{
			Mode:               strings.ToLower(p.String(KeyScoringMode, d.Scoring.Mode)),
			MinScore:           p.Float(KeyMinScore, d.Scoring.MinScore),
			MaxRecommendations: p.Int(KeyMaxRecommendations, d.Scoring.MaxRecommendations),
			FallbackCount:      p.Int(KeyFallbackCount, d.Scoring.FallbackCount),
			PreferredIssuers:   p.StringSlice(KeyPreferredIssuers, d.Scoring.PreferredIssuers),
			LimitedNetworks:    p.StringSlice(KeyLimitedNetworks, d.Scoring.LimitedNetworks),
			HighFeeThreshold:   p.Float(KeyHighFeeThreshold, d.Scoring.HighFeeThreshold),
		},
		Jobs: JobSettings{
			Workers:           p.Int(KeyWorkers, d.Jobs.Workers),
			BackoffBase:       p.Duration(KeyBackoffBase, d.Jobs.BackoffBase),
			BackoffMultiplier: p.Float(KeyBackoffMultiplier, d.Jobs.BackoffMultiplier),
			BackoffMax:        p.Duration(KeyBackoffMax, d.Jobs.BackoffMax),
			Timeout:           p.Duration(KeyJobTimeout, d.Jobs.Timeout),
			SweepSchedule:     p.String(KeySweepSchedule, d.Jobs.SweepSchedule),
			ShutdownGrace:     p.Duration(KeyShutdownGrace, d.Jobs.ShutdownGrace),
		},
	}
	for currency, def := range d.Rewards.PointValues {
		s.Rewards.PointValues[currency] = p.Float(KeyPointValuePrefix+string(currency), def)
	}

	if err := s.Validate(); err != nil {
		return Snapshot{}, common.NewFatalError(err)
	}
	return s, nil
}

// Validate checks value ranges.
func (s Snapshot) Validate() error {
	unit := map[string]float64{
		KeyFuzzyThreshold:      s.Resolver.FuzzyThreshold,
		KeyOracleConfidenceCap: s.Resolver.OracleConfidenceCap,
		KeyAliasLearnThreshold: s.Resolver.AliasLearnThreshold,
		KeyReviewThreshold:     s.ReviewThreshold,
	}
	for key, v := range unit {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s must be between 0 and 1, got %v", common.ErrInvalidConfig, key, v)
		}
	}

	positive := map[string]int{
		KeyOracleBatchSize:    s.Resolver.OracleBatchSize,
		KeyMaxCategories:      s.Aggregator.MaxCategories,
		KeyStatementMonths:    s.Rewards.StatementMonths,
		KeyMaxRecommendations: s.Scoring.MaxRecommendations,
		KeyFallbackCount:      s.Scoring.FallbackCount,
		KeyWorkers:            s.Jobs.Workers,
	}
	for key, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", common.ErrInvalidConfig, key, v)
		}
	}

	if s.Aggregator.MinTotalSpend < 0 || s.Aggregator.MinCategoryAmount < 0 || s.Aggregator.MinCategoryPercentage < 0 {
		return fmt.Errorf("%w: aggregator floors must not be negative", common.ErrInvalidConfig)
	}
	if s.Scoring.Mode != ModeGross && s.Scoring.Mode != ModeNet {
		return fmt.Errorf("%w: %s must be %q or %q, got %q", common.ErrInvalidConfig, KeyScoringMode, ModeGross, ModeNet, s.Scoring.Mode)
	}
	if s.Scoring.MinScore < 0 || s.Scoring.MinScore > 100 {
		return fmt.Errorf("%w: %s must be between 0 and 100", common.ErrInvalidConfig, KeyMinScore)
	}
	if s.Jobs.BackoffBase <= 0 || s.Jobs.BackoffMax < s.Jobs.BackoffBase || s.Jobs.BackoffMultiplier < 1 {
		return fmt.Errorf("%w: invalid job backoff settings", common.ErrInvalidConfig)
	}
	if s.Jobs.Timeout <= 0 {
		return fmt.Errorf("%w: %s must be positive", common.ErrInvalidConfig, KeyJobTimeout)
	}
	if _, err := cron.ParseStandard(s.Jobs.SweepSchedule); err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrInvalidConfig, KeySweepSchedule, err)
	}
	return nil
}
