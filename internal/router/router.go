package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cosmohq/cosmo-core/internal/config"
	"github.com/cosmohq/cosmo-core/internal/router/adapters"
	"github.com/cosmohq/cosmo-core/internal/types"
)

// Router picks a cost-appropriate model for each request. Every request
// re-evaluates; routing decisions are not cached.
type Router struct {
	classifier *Classifier
	health     *HealthTracker
}

func New(classifier *Classifier, health *HealthTracker) *Router {
	return &Router{classifier: classifier, health: health}
}

func (r *Router) Health() *HealthTracker { return r.health }

// SelectModel routes a chat-style request: detect the prompt's category,
// filter the catalog, and pick a model by cost-performance weight.
func (r *Router) SelectModel(ctx context.Context, prompt string, cfg *config.RoutingConfig, candidates []types.ModelCandidate) (types.RoutingResult, *types.CosmoError) {
	category := cfg.FallbackCategory
	if cfg.Enabled {
		category = r.classifier.Category(ctx, prompt, cfg)
	}

	filtered, relaxed := filterCandidates(candidates, category, cfg.DefaultProvider)
	if len(filtered) == 0 {
		return types.RoutingResult{}, types.NewError(types.CodeModelUnavailable,
			fmt.Sprintf("no model candidates for category %q on provider %q", category, cfg.DefaultProvider))
	}

	selected, tier := SelectModelByWeight(filtered, cfg.CostWeight)

	reasoning := fmt.Sprintf("category %q, weight %d -> %s tier, %d candidates", category, cfg.CostWeight, tier, len(filtered))
	if relaxed {
		reasoning += " (category filter relaxed to provider-wide)"
	}

	slog.Debug("model routed",
		"category", category,
		"model", selected.ModelID,
		"provider", selected.Provider,
		"tier", string(tier),
		"candidates", len(filtered),
	)

	return types.RoutingResult{
		ModelID:          selected.ModelID,
		Category:         category,
		Provider:         selected.Provider,
		Reasoning:        reasoning,
		Tier:             tier,
		ModelsConsidered: len(filtered),
	}, nil
}

// filterCandidates narrows the catalog to the detected category and the
// expected provider, relaxing to any active model for that provider when
// the strict filter comes up empty. It never silently returns zero when
// relaxation would help; only a provider with no active models at all
// yields an empty result.
func filterCandidates(candidates []types.ModelCandidate, category, provider string) ([]types.ModelCandidate, bool) {
	var strict []types.ModelCandidate
	var providerWide []types.ModelCandidate
	for _, c := range candidates {
		if !c.Active || c.Provider != provider {
			continue
		}
		providerWide = append(providerWide, c)
		if strings.EqualFold(c.BestFor, category) {
			strict = append(strict, c)
		}
	}
	if len(strict) > 0 {
		return strict, false
	}
	return providerWide, true
}

// FallbackModel finds the one model to retry with after the primary call
// fails: the closest candidate in the same category that is not the
// failed model, on a provider whose circuit allows traffic. The search
// relaxes to any other candidate before giving up.
func (r *Router) FallbackModel(candidates []types.ModelCandidate, failed types.RoutingResult) (types.ModelCandidate, bool) {
	var sameCategory []types.ModelCandidate
	var others []types.ModelCandidate
	for _, c := range candidates {
		if !c.Active || c.ModelID == failed.ModelID {
			continue
		}
		if r.health != nil && !r.health.IsAvailable(c.Provider) {
			continue
		}
		if strings.EqualFold(c.BestFor, failed.Category) {
			sameCategory = append(sameCategory, c)
		} else {
			others = append(others, c)
		}
	}

	pool := sameCategory
	if len(pool) == 0 {
		pool = others
	}
	if len(pool) == 0 {
		return types.ModelCandidate{}, false
	}

	// Stay in the same cost neighbourhood as the failed selection.
	selected, _ := SelectModelByWeight(pool, weightForTier(failed.Tier))
	return selected, true
}

func weightForTier(tier types.CostTier) int {
	switch tier {
	case types.TierLow:
		return 16
	case types.TierPremium:
		return 84
	default:
		return 50
	}
}

// SelectImageModel picks an image-generation model by presenting the
// catalog as a text list and asking the classifier model for a single id
// verbatim. An id that is not literally in the catalog falls back to the
// first candidate.
func (r *Router) SelectImageModel(ctx context.Context, prompt string, cfg *config.RoutingConfig, candidates []types.ModelCandidate) (types.ModelCandidate, error) {
	if len(candidates) == 0 {
		return types.ModelCandidate{}, types.NewError(types.CodeModelUnavailable, "no image model candidates")
	}

	adapter, cerr := r.classifier.registry.Require(cfg.DefaultProvider)
	if cerr != nil {
		return candidates[0], nil
	}

	var list strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&list, "- %s\n", c.ModelID)
	}
	system := "Pick the single best image-generation model for the user's request. " +
		"Respond with exactly one model id from this list, verbatim:\n" + list.String()

	resp, err := adapters.Complete(ctx, adapter, &adapters.ChatRequest{
		Model: cfg.ClassifierModel,
		Messages: []types.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: adapters.Temp(classifierTemperature),
		MaxTokens:   adapters.MaxTok(40),
	})
	if err != nil {
		slog.Warn("image model selection failed, using first candidate", "error", err)
		return candidates[0], nil
	}

	answer := strings.TrimSpace(resp.Content)
	for _, c := range candidates {
		if c.ModelID == answer {
			return c, nil
		}
	}
	return candidates[0], nil
}
