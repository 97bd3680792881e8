package ranking

// Default blend weights for combined_score.
const (
	DefaultMaxScoreWeight = 0.7
	DefaultCoverageWeight = 0.3
)

// RankingConfig holds the weights of the combined score.
type RankingConfig struct {
	MaxScoreWeight float64 `yaml:"max_score_weight"` // default: 0.7
	CoverageWeight float64 `yaml:"coverage_weight"`  // default: 0.3
}

// DefaultRankingConfig returns the standard 0.7/0.3 blend.
func DefaultRankingConfig() *RankingConfig {
	return &RankingConfig{
		MaxScoreWeight: DefaultMaxScoreWeight,
		CoverageWeight: DefaultCoverageWeight,
	}
}

// ApplyDefaults resets negative weights to their defaults. A config with
// both weights zero is treated as unset and gets the standard blend, while a
// single zero weight is kept, so {MaxScoreWeight: 1} ranks by best chunk only.
func (c *RankingConfig) ApplyDefaults() {
	if c.MaxScoreWeight == 0 && c.CoverageWeight == 0 {
		*c = *DefaultRankingConfig()
		return
	}
	if c.MaxScoreWeight < 0 {
		c.MaxScoreWeight = DefaultMaxScoreWeight
	}
	if c.CoverageWeight < 0 {
		c.CoverageWeight = DefaultCoverageWeight
	}
}
