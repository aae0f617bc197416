package compliance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/veridex/compliance-core/pkg/errors"
)

// SeverityWeights are the per-severity score deductions applied for each
// failed check.
type SeverityWeights struct {
	Critical int `mapstructure:"critical" yaml:"critical"`
	Error    int `mapstructure:"error" yaml:"error"`
	Warning  int `mapstructure:"warning" yaml:"warning"`
	Info     int `mapstructure:"info" yaml:"info"`
}

// For returns the deduction for a severity.
func (w SeverityWeights) For(s Severity) int {
	switch s {
	case SeverityCritical:
		return w.Critical
	case SeverityError:
		return w.Error
	case SeverityWarning:
		return w.Warning
	case SeverityInfo:
		return w.Info
	default:
		return 0
	}
}

// PolicyConfig carries the tunable policy parameters of the engine. The
// defaults reproduce the regulator-reviewed production values; deployments
// override them through the config file.
type PolicyConfig struct {
	Weights                 SeverityWeights `mapstructure:"severity_weights" yaml:"severity_weights"`
	LowScoreThreshold       int             `mapstructure:"low_score_threshold" yaml:"low_score_threshold"`
	StaleProfileAge         time.Duration   `mapstructure:"stale_profile_age" yaml:"stale_profile_age"`
	HighValueThreshold      decimal.Decimal `mapstructure:"-" yaml:"-"`
	HighValueThresholdStr   string          `mapstructure:"high_value_threshold" yaml:"high_value_threshold"`
	RestrictedJurisdictions []string        `mapstructure:"restricted_jurisdictions" yaml:"restricted_jurisdictions"`
	CacheTTL                time.Duration   `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	ProviderTimeout         time.Duration   `mapstructure:"provider_timeout" yaml:"provider_timeout"`
	ExternalTimeout         time.Duration   `mapstructure:"external_timeout" yaml:"external_timeout"`
	RateLimitPerMinute      int             `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
}

// DefaultPolicyConfig returns the stock policy parameters.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Weights: SeverityWeights{
			Critical: 30,
			Error:    20,
			Warning:  10,
			Info:     5,
		},
		LowScoreThreshold:       70,
		StaleProfileAge:         90 * 24 * time.Hour,
		HighValueThreshold:      decimal.NewFromInt(1_000_000),
		RestrictedJurisdictions: []string{"IR", "KP", "SY", "CU"},
		CacheTTL:                24 * time.Hour,
		ProviderTimeout:         10 * time.Second,
		ExternalTimeout:         15 * time.Second,
		RateLimitPerMinute:      0, // disabled
	}
}

// Normalize parses string-typed fields and fills zero values from the
// defaults. Invalid values are a ConfigurationError.
func (c *PolicyConfig) Normalize() error {
	def := DefaultPolicyConfig()
	if c.Weights == (SeverityWeights{}) {
		c.Weights = def.Weights
	}
	if c.Weights.Critical < 0 || c.Weights.Error < 0 || c.Weights.Warning < 0 || c.Weights.Info < 0 {
		return errors.New(errors.KindConfiguration, "severity weights must be non-negative")
	}
	if c.LowScoreThreshold == 0 {
		c.LowScoreThreshold = def.LowScoreThreshold
	}
	if c.LowScoreThreshold < 0 || c.LowScoreThreshold > 100 {
		return errors.Newf(errors.KindConfiguration, "low_score_threshold out of range: %d", c.LowScoreThreshold)
	}
	if c.StaleProfileAge == 0 {
		c.StaleProfileAge = def.StaleProfileAge
	}
	if c.HighValueThresholdStr != "" {
		v, err := decimal.NewFromString(c.HighValueThresholdStr)
		if err != nil {
			return errors.Wrap(errors.KindConfiguration, "invalid high_value_threshold", err)
		}
		c.HighValueThreshold = v
	}
	if c.HighValueThreshold.IsZero() {
		c.HighValueThreshold = def.HighValueThreshold
	}
	if len(c.RestrictedJurisdictions) == 0 {
		c.RestrictedJurisdictions = def.RestrictedJurisdictions
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = def.CacheTTL
	}
	if c.ProviderTimeout == 0 {
		c.ProviderTimeout = def.ProviderTimeout
	}
	if c.ExternalTimeout == 0 {
		c.ExternalTimeout = def.ExternalTimeout
	}
	return nil
}
