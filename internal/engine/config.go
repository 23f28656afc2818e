package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// ScoringConfig carries every tunable constant of the scoring engine.
// Constants live here rather than as package globals so parameter sweeps
// and backtests can run side by side without mutating shared state.
type ScoringConfig struct {
	// Quote-path sub-scores.
	SpreadMax         int     `yaml:"spread_max"`          // cents; spread at or past this scores 0
	ParityMax         int     `yaml:"parity_max"`          // cents; maker-side spread saturation
	MoneynessKappa    float64 `yaml:"moneyness_kappa"`     // cents of mid distance per e-fold
	ActivitySoftCap   float64 `yaml:"activity_soft_cap"`   // half-saturation for volume/OI
	LiquiditySoftCap  float64 `yaml:"liquidity_soft_cap"`  // dollars at half-saturation
	StabilityDecaySec float64 `yaml:"stability_decay_sec"` // staleness e-fold in seconds

	// Activity blend weights.
	ActivityVolumeWeight float64 `yaml:"activity_volume_weight"`
	ActivityOIWeight     float64 `yaml:"activity_oi_weight"`
	ActivityFreshWeight  float64 `yaml:"activity_fresh_weight"`

	// Dampening exponents on the taker factors.
	SpreadExponent    float64 `yaml:"spread_exponent"`
	ActivityExponent  float64 `yaml:"activity_exponent"`
	MoneynessExponent float64 `yaml:"moneyness_exponent"`

	// Composite blend.
	TakerWeight float64 `yaml:"taker_weight"`
	MakerWeight float64 `yaml:"maker_weight"`

	// Time-to-close step weights.
	TimeToClose TimeToCloseWeights `yaml:"time_to_close"`

	// Order-book path.
	DepthWithinK      int     `yaml:"depth_within_k"`       // price band, cents from top of book
	DepthTopN         int     `yaml:"depth_top_n"`          // tail levels counted as visible depth
	DepthSoftCap      float64 `yaml:"depth_soft_cap"`       // per-side half-saturation
	TotalDepthSoftCap float64 `yaml:"total_depth_soft_cap"` // combined half-saturation
	MicroTiltScale    float64 `yaml:"micro_tilt_scale"`     // cents of tilt mapped to score 1.0
}

// TimeToCloseWeights is the step function applied to the raw score by
// hours remaining until close. Closed markets take the far-future weight,
// not zero.
type TimeToCloseWeights struct {
	Under2h  float64 `yaml:"under_2h"`
	Under8h  float64 `yaml:"under_8h"`
	Under24h float64 `yaml:"under_24h"`
	Default  float64 `yaml:"default"`
}

// DefaultScoringConfig returns the production constants.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		SpreadMax:         8,
		ParityMax:         15,
		MoneynessKappa:    15.0,
		ActivitySoftCap:   1000.0,
		LiquiditySoftCap:  500.0,
		StabilityDecaySec: 300.0,

		ActivityVolumeWeight: 0.3,
		ActivityOIWeight:     0.3,
		ActivityFreshWeight:  0.4,

		SpreadExponent:    1.0,
		ActivityExponent:  1.0,
		MoneynessExponent: 1.0,

		TakerWeight: 0.6,
		MakerWeight: 0.4,

		TimeToClose: TimeToCloseWeights{
			Under2h:  1.0,
			Under8h:  0.7,
			Under24h: 0.4,
			Default:  0.2,
		},

		DepthWithinK:      5,
		DepthTopN:         5,
		DepthSoftCap:      1000.0,
		TotalDepthSoftCap: 2000.0,
		MicroTiltScale:    1.5,
	}
}

// LoadScoringConfig reads a YAML overrides file on top of the defaults.
func LoadScoringConfig(path string) (ScoringConfig, error) {
	cfg := DefaultScoringConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read scoring config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse scoring config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("scoring config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate rejects configurations that would make scores undefined.
func (c ScoringConfig) Validate() error {
	if c.SpreadMax <= 0 {
		return fmt.Errorf("spread_max must be positive, got %d", c.SpreadMax)
	}
	if c.ParityMax <= 0 {
		return fmt.Errorf("parity_max must be positive, got %d", c.ParityMax)
	}
	if c.MoneynessKappa <= 0 {
		return fmt.Errorf("moneyness_kappa must be positive, got %.2f", c.MoneynessKappa)
	}
	if c.ActivitySoftCap <= 0 || c.LiquiditySoftCap <= 0 {
		return fmt.Errorf("soft caps must be positive")
	}
	if c.StabilityDecaySec <= 0 {
		return fmt.Errorf("stability_decay_sec must be positive, got %.1f", c.StabilityDecaySec)
	}
	if c.DepthWithinK <= 0 || c.DepthTopN <= 0 {
		return fmt.Errorf("depth windows must be positive")
	}
	if c.DepthSoftCap <= 0 || c.TotalDepthSoftCap <= 0 {
		return fmt.Errorf("depth soft caps must be positive")
	}
	if c.MicroTiltScale <= 0 {
		return fmt.Errorf("micro_tilt_scale must be positive, got %.2f", c.MicroTiltScale)
	}

	weightSum := c.ActivityVolumeWeight + c.ActivityOIWeight + c.ActivityFreshWeight
	if weightSum < 0.99 || weightSum > 1.01 {
		return fmt.Errorf("activity weights sum %.3f outside tolerance of 1.0", weightSum)
	}

	blendSum := c.TakerWeight + c.MakerWeight
	if blendSum < 0.99 || blendSum > 1.01 {
		return fmt.Errorf("taker/maker blend sum %.3f outside tolerance of 1.0", blendSum)
	}

	return nil
}
