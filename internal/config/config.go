// Package config loads and validates the engine configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/procurehub/dealengine/internal/domain"
	"github.com/procurehub/dealengine/internal/scoring"
	"github.com/procurehub/dealengine/internal/strategy"
)

// Config is the full engine configuration.
type Config struct {
	Engine   EngineConfig    `yaml:"engine"`
	Weights  scoring.Weights `yaml:"score_weights"`
	Redis    RedisConfig     `yaml:"redis"`
	Postgres PostgresConfig  `yaml:"postgres"`
	Ops      OpsConfig       `yaml:"ops"`
}

// EngineConfig holds the negotiation knobs.
type EngineConfig struct {
	MaxRounds             int            `yaml:"max_rounds"`
	MinAcceptableUtility  float64        `yaml:"min_acceptable_utility"`
	DiscountRateAnnual    float64        `yaml:"discount_rate_annual"`
	RunMode               domain.RunMode `yaml:"run_mode"`
	RoundTimeoutSeconds   int            `yaml:"round_timeout_seconds"`
	MaxConcurrentSessions int            `yaml:"max_concurrent_sessions"`
	PersonalityPreset     string         `yaml:"personality_preset"`
	RandomSeed            int64          `yaml:"random_seed"`
	StrictSpecMatch       bool           `yaml:"strict_spec_match"`
}

// RedisConfig configures the optional vendor cache.
type RedisConfig struct {
	Addr            string `yaml:"addr"`
	DB              int    `yaml:"db"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

// PostgresConfig configures the optional session store.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// OpsConfig configures the health and metrics listener.
type OpsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Engine: EngineConfig{
			MaxRounds:             8,
			MinAcceptableUtility:  0.70,
			DiscountRateAnnual:    0.05,
			RunMode:               domain.RunModeSimulation,
			RoundTimeoutSeconds:   30,
			MaxConcurrentSessions: 8,
			PersonalityPreset:     strategy.PresetStrategic,
			RandomSeed:            1,
		},
		Weights: scoring.DefaultWeights(),
		Ops:     OpsConfig{ListenAddr: ":9090"},
	}
}

// Load reads a YAML config file over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate fails fast on out-of-range knobs.
func (c Config) Validate() error {
	e := c.Engine
	if e.MaxRounds < 1 || e.MaxRounds > 24 {
		return fmt.Errorf("%w: max_rounds %d outside [1,24]", domain.ErrConfig, e.MaxRounds)
	}
	if e.MinAcceptableUtility < 0 || e.MinAcceptableUtility > 1 {
		return fmt.Errorf("%w: min_acceptable_utility %.2f outside [0,1]", domain.ErrConfig, e.MinAcceptableUtility)
	}
	if e.DiscountRateAnnual < 0 || e.DiscountRateAnnual > 1 {
		return fmt.Errorf("%w: discount_rate_annual %.2f outside [0,1]", domain.ErrConfig, e.DiscountRateAnnual)
	}
	switch e.RunMode {
	case domain.RunModeSimulation, domain.RunModeEnforce:
	default:
		return fmt.Errorf("%w: unknown run_mode %q", domain.ErrConfig, e.RunMode)
	}
	if e.RoundTimeoutSeconds < 0 {
		return fmt.Errorf("%w: round_timeout_seconds %d is negative", domain.ErrConfig, e.RoundTimeoutSeconds)
	}
	if e.MaxConcurrentSessions < 1 {
		return fmt.Errorf("%w: max_concurrent_sessions %d must be at least 1", domain.ErrConfig, e.MaxConcurrentSessions)
	}
	if e.PersonalityPreset != "" {
		if _, err := strategy.Preset(e.PersonalityPreset); err != nil {
			return err
		}
	}
	return c.Weights.Validate()
}

// RoundTimeout converts the configured timeout to a duration. Zero
// disables the per-round deadline.
func (e EngineConfig) RoundTimeout() time.Duration {
	return time.Duration(e.RoundTimeoutSeconds) * time.Second
}

// Plan assembles the negotiation plan implied by the config.
func (c Config) Plan() (domain.NegotiationPlan, error) {
	personality, err := strategy.Preset(c.Engine.PersonalityPreset)
	if err != nil {
		return domain.NegotiationPlan{}, err
	}
	return domain.NegotiationPlan{
		MaxRounds:            c.Engine.MaxRounds,
		MinAcceptableUtility: c.Engine.MinAcceptableUtility,
		ConcessionSchedule:   domain.DefaultConcessionSchedule,
		Personality:          personality,
		PersonalityPreset:    c.Engine.PersonalityPreset,
		Seed:                 c.Engine.RandomSeed,
	}, nil
}
