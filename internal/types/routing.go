package types

// ModelCandidate is one row of the model catalog.
type ModelCandidate struct {
	ModelID              string  `json:"model_id"`
	Provider             string  `json:"provider"`
	PromptCostPerTok     float64 `json:"prompt_cost_per_tok"`
	CompletionCostPerTok float64 `json:"completion_cost_per_tok"`
	IsFree               bool    `json:"is_free"`
	BestFor              string  `json:"best_for"`
	Active               bool    `json:"active"`
}

// TotalCost is the per-token routing cost used for tier sorting. Free
// models cost zero regardless of catalog pricing.
func (m ModelCandidate) TotalCost() float64 {
	if m.IsFree {
		return 0
	}
	return m.PromptCostPerTok + m.CompletionCostPerTok
}

// CostTier is derived from the operator's cost-performance weight.
type CostTier string

const (
	TierLow      CostTier = "low"
	TierBalanced CostTier = "balanced"
	TierPremium  CostTier = "premium"
)

// RoutingResult records which model the router chose and why.
type RoutingResult struct {
	ModelID          string   `json:"model_id"`
	Category         string   `json:"category"`
	Provider         string   `json:"provider"`
	Reasoning        string   `json:"reasoning"`
	Tier             CostTier `json:"cost_tier"`
	ModelsConsidered int      `json:"models_considered"`
}
