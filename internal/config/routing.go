package config

// RoutingConfig is the operator-supplied COSMO routing configuration:
// whether AI-assisted routing is on, which model classifies prompts, the
// cost-performance dial, and the category vocabulary.
type RoutingConfig struct {
	Enabled           bool     `yaml:"enabled"`
	DefaultModel      string   `yaml:"default_model"`
	DefaultProvider   string   `yaml:"default_provider"`
	ClassifierModel   string   `yaml:"classifier_model"`
	CostWeight        int      `yaml:"cost_performance_weight"`
	SystemPrompt      string   `yaml:"system_prompt"`
	Categories        []string `yaml:"categories"`
	FallbackCategory  string   `yaml:"fallback_category"`
	ConfidenceFloor   float64  `yaml:"confidence_floor"`
	EscalationCeiling float64  `yaml:"escalation_ceiling"`
}

// Normalize fills zero values with the defaults the pipeline expects.
func (r *RoutingConfig) Normalize() {
	if r.FallbackCategory == "" {
		r.FallbackCategory = "general"
	}
	if r.ConfidenceFloor == 0 {
		r.ConfidenceFloor = 0.3
	}
	if r.EscalationCeiling == 0 {
		r.EscalationCeiling = 0.7
	}
	if len(r.Categories) == 0 {
		r.Categories = []string{"coding", "research", "creative", "navigation", "communication", "general"}
	}
	if r.SystemPrompt == "" {
		r.SystemPrompt = "You classify user prompts into exactly one category. Respond with only the category name."
	}
	if r.CostWeight < 0 {
		r.CostWeight = 0
	}
	if r.CostWeight > 100 {
		r.CostWeight = 100
	}
}
