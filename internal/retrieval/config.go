package retrieval

// Config holds the retriever's weights, boosts and thresholds.
type Config struct {
	TopK          int     `yaml:"top_k"`          // default: 5
	MinConfidence float64 `yaml:"min_confidence"` // default: 0.15

	EmbeddingWeight float64 `yaml:"embedding_weight"`  // default: 0.7
	KeywordWeight   float64 `yaml:"keyword_weight"`    // default: 0.3
	MaxKeywordBonus float64 `yaml:"max_keyword_bonus"` // default: 0.3

	RegulationBoost float64 `yaml:"regulation_boost"` // default: 1.5
	ActivityBoost   float64 `yaml:"activity_boost"`   // default: 1.3
	MisalignedBoost float64 `yaml:"misaligned_boost"` // default: 0.5

	// IrrelevanceCeiling is the score at or above which the top document skips the important-keyword check.
	IrrelevanceCeiling   float64 `yaml:"irrelevance_ceiling"`    // default: 0.5
	MinImportantKeywords int     `yaml:"min_important_keywords"` // default: 2
	ImportantMinLength   int     `yaml:"important_min_length"`   // default: 4

	// SimilarityThreshold is the floor for SimilarDocuments.
	SimilarityThreshold float64 `yaml:"similarity_threshold"` // default: 0.75
}

// DefaultConfig returns the default retrieval configuration.
func DefaultConfig() Config {
	return Config{
		TopK:                 5,
		MinConfidence:        0.15,
		EmbeddingWeight:      0.7,
		KeywordWeight:        0.3,
		MaxKeywordBonus:      0.3,
		RegulationBoost:      1.5,
		ActivityBoost:        1.3,
		MisalignedBoost:      0.5,
		IrrelevanceCeiling:   0.5,
		MinImportantKeywords: 2,
		ImportantMinLength:   4,
		SimilarityThreshold:  0.75,
	}
}

// ApplyDefaults fills zero fields from DefaultConfig.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
	if c.MinConfidence == 0 {
		c.MinConfidence = d.MinConfidence
	}
	if c.EmbeddingWeight == 0 && c.KeywordWeight == 0 {
		c.EmbeddingWeight = d.EmbeddingWeight
		c.KeywordWeight = d.KeywordWeight
	}
	if c.MaxKeywordBonus == 0 {
		c.MaxKeywordBonus = d.MaxKeywordBonus
	}
	if c.RegulationBoost == 0 {
		c.RegulationBoost = d.RegulationBoost
	}
	if c.ActivityBoost == 0 {
		c.ActivityBoost = d.ActivityBoost
	}
	if c.MisalignedBoost == 0 {
		c.MisalignedBoost = d.MisalignedBoost
	}
	if c.IrrelevanceCeiling == 0 {
		c.IrrelevanceCeiling = d.IrrelevanceCeiling
	}
	if c.MinImportantKeywords <= 0 {
		c.MinImportantKeywords = d.MinImportantKeywords
	}
	if c.ImportantMinLength <= 0 {
		c.ImportantMinLength = d.ImportantMinLength
	}
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = d.SimilarityThreshold
	}
}
