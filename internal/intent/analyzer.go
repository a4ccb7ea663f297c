package intent

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/cosmohq/cosmo-core/internal/config"
	"github.com/cosmohq/cosmo-core/internal/router"
	"github.com/cosmohq/cosmo-core/internal/store"
	"github.com/cosmohq/cosmo-core/internal/types"
)

// CategoryClassifier is the model-based escalation path. router.Classifier
// satisfies it.
type CategoryClassifier interface {
	Classify(ctx context.Context, prompt string, cfg *config.RoutingConfig) (string, float64, error)
}

// IntentRegistry serves intent rows. store.IntentCache satisfies it.
type IntentRegistry interface {
	Get(ctx context.Context) ([]store.Intent, store.LoadStatus)
}

// Analyzer classifies prompts against the intent registry, escalating to
// the model-based classifier only when local confidence is low.
type Analyzer struct {
	registry   IntentRegistry
	classifier CategoryClassifier
}

func NewAnalyzer(registry IntentRegistry, classifier CategoryClassifier) *Analyzer {
	return &Analyzer{registry: registry, classifier: classifier}
}

// scoredIntent keeps the local detection ranking together.
type scoredIntent struct {
	intent   store.Intent
	ratio    float64 // keyword_matches / total_keywords
	adjusted float64 // ratio + priority/1000 tie-break
	order    int     // registry order, final tie-break
}

// Analyze classifies a prompt. It never returns an error: registry load
// failures degrade to the built-in table, and classifier failures keep
// the local result.
func (a *Analyzer) Analyze(ctx context.Context, prompt string, cfg *config.RoutingConfig) types.IntentAnalysis {
	intents, status := a.registry.Get(ctx)
	if status == store.StatusFallback {
		slog.Debug("intent analysis running on built-in registry fallback")
	}

	best, found := localDetect(prompt, intents)
	if found && clamp01(best.adjusted) < cfg.ConfidenceFloor {
		// A match below the floor is no better than a guess.
		found = false
	}

	analysis := types.IntentAnalysis{
		Category:          cfg.FallbackCategory,
		Confidence:        cfg.ConfidenceFloor,
		RequiredFunctions: []string{"chat"},
		Enhancements:      suggestEnhancements(prompt),
	}
	if found {
		analysis.Category = best.intent.Category
		analysis.Confidence = clamp01(best.adjusted)
		analysis.RequiredFunctions = requiredOrChat(best.intent.RequiredFunctions)
		analysis.ContextNeeds = contextNeeds(best.intent.ContextNeeds)
	}

	// Low local confidence escalates to the model-based classifier when
	// AI routing is enabled. The AI result is accepted only when it is
	// more confident than the local one and names a category the
	// registry actually knows.
	if analysis.Confidence < cfg.EscalationCeiling && cfg.Enabled && a.classifier != nil {
		a.escalate(ctx, prompt, cfg, intents, &analysis)
	}

	return analysis
}

// AnalyzeEnhanced runs the basic analysis plus entity extraction and
// action-plan resolution for agent and system-task paths.
func (a *Analyzer) AnalyzeEnhanced(ctx context.Context, prompt string, cfg *config.RoutingConfig, reqCtx types.RequestContext) types.EnhancedIntentAnalysis {
	analysis := a.Analyze(ctx, prompt, cfg)

	intents, _ := a.registry.Get(ctx)
	intentKey := "general_chat"
	if best, found := localDetect(prompt, intents); found {
		intentKey = best.intent.IntentKey
	} else {
		for _, in := range intents {
			if in.Category == analysis.Category {
				intentKey = in.IntentKey
				break
			}
		}
	}

	entities := ExtractEntities(prompt)
	plan := ResolveActions(intentKey, prompt, analysis.RequiredFunctions, entities, reqCtx)

	return types.EnhancedIntentAnalysis{
		IntentAnalysis: analysis,
		IntentKey:      intentKey,
		Plan:           plan,
		Entities:       entities,
	}
}

func (a *Analyzer) escalate(ctx context.Context, prompt string, cfg *config.RoutingConfig, intents []store.Intent, analysis *types.IntentAnalysis) {
	aiCategory, aiConfidence, err := a.classifier.Classify(ctx, prompt, cfg)
	if err != nil {
		slog.Debug("classifier escalation failed, keeping local intent result", "error", err)
		return
	}
	if aiConfidence <= analysis.Confidence {
		return
	}

	known := registryCategories(intents)
	matched, ok := router.MatchCategory(aiCategory, known)
	if !ok {
		slog.Debug("classifier category not in registry, keeping local result", "ai_category", aiCategory)
		return
	}

	analysis.Category = matched
	analysis.Confidence = clamp01(aiConfidence)
	analysis.AIAssisted = true
	// Adopt the highest-priority registry intent of the AI's category so
	// required functions and context needs stay registry-driven.
	for _, in := range intents {
		if in.Category == matched {
			analysis.RequiredFunctions = requiredOrChat(in.RequiredFunctions)
			analysis.ContextNeeds = contextNeeds(in.ContextNeeds)
			break
		}
	}
}

// localDetect scores every registry intent by keyword coverage with a
// priority tie-break, and returns the winner when it clears the score
// floor. Registry order breaks remaining ties.
func localDetect(prompt string, intents []store.Intent) (scoredIntent, bool) {
	lower := strings.ToLower(prompt)

	var scored []scoredIntent
	for i, in := range intents {
		if len(in.Keywords) == 0 {
			continue
		}
		matches := 0
		for _, kw := range in.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		ratio := float64(matches) / float64(len(in.Keywords))
		scored = append(scored, scoredIntent{
			intent:   in,
			ratio:    ratio,
			adjusted: ratio + float64(in.Priority)/1000.0,
			order:    i,
		})
	}
	if len(scored) == 0 {
		return scoredIntent{}, false
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].adjusted != scored[j].adjusted {
			return scored[i].adjusted > scored[j].adjusted
		}
		if scored[i].intent.Priority != scored[j].intent.Priority {
			return scored[i].intent.Priority > scored[j].intent.Priority
		}
		return scored[i].order < scored[j].order
	})

	return scored[0], true
}

func registryCategories(intents []store.Intent) []string {
	seen := make(map[string]bool)
	var out []string
	for _, in := range intents {
		if !seen[in.Category] {
			seen[in.Category] = true
			out = append(out, in.Category)
		}
	}
	return out
}

func requiredOrChat(fns []string) []string {
	if len(fns) == 0 {
		return []string{"chat"}
	}
	out := make([]string, len(fns))
	copy(out, fns)
	return out
}

func contextNeeds(needs []string) []types.ContextNeed {
	out := make([]types.ContextNeed, 0, len(needs))
	for _, n := range needs {
		out = append(out, types.ContextNeed(n))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
