package selector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cosmohq/cosmo-core/internal/types"
)

// FunctionCatalog serves enabled function candidates. store.Store
// satisfies it.
type FunctionCatalog interface {
	LoadFunctions(ctx context.Context) ([]types.FunctionCandidate, error)
}

// Scoring weights for ranking candidates against an intent.
const (
	scoreRequired      = 10
	scoreTagCategory   = 3
	scoreTagRequired   = 2
	scoreDescrCategory = 2
)

// dataFunctions run before processing functions: their outputs feed the
// final conversational call. This two-bucket ordering is a deliberate
// simplification; it does not generalize to functions with dependencies
// deeper than two tiers.
var dataFunctions = map[string]bool{
	"maps":           true,
	"gmail":          true,
	"calendar":       true,
	"web_search":     true,
	"knowledge_base": true,
}

var processingFunctions = map[string]bool{
	"chat":             true,
	"image_generation": true,
}

// Selector scores and ranks registry functions against a detected intent.
type Selector struct {
	catalog FunctionCatalog
}

func New(catalog FunctionCatalog) *Selector {
	return &Selector{catalog: catalog}
}

// Select picks the functions needed to satisfy an intent and arranges
// their execution order. An empty or unreadable registry degrades to the
// chat-only selection rather than failing the request.
func (s *Selector) Select(ctx context.Context, intent types.IntentAnalysis) types.FunctionSelection {
	candidates, err := s.catalog.LoadFunctions(ctx)
	if err != nil {
		slog.Warn("function registry load failed, selecting chat only", "error", err)
		return chatOnlySelection("function registry unavailable")
	}
	if len(candidates) == 0 {
		return chatOnlySelection("function registry empty")
	}

	required := make(map[string]bool, len(intent.RequiredFunctions))
	for _, fn := range intent.RequiredFunctions {
		required[fn] = true
	}
	category := strings.ToLower(intent.Category)

	var selected []string
	var reasons []string
	for _, c := range candidates {
		score := scoreCandidate(c, required, category)
		if score == 0 {
			continue
		}
		selected = append(selected, c.FunctionKey)
		reasons = append(reasons, fmt.Sprintf("%s=%d", c.FunctionKey, score))
	}

	// chat is the safety net: the pipeline always needs a conversational
	// path even when nothing else scored.
	if !contains(selected, "chat") {
		selected = append(selected, "chat")
		reasons = append(reasons, "chat=safety_net")
	}

	return types.FunctionSelection{
		Selected:       selected,
		ExecutionOrder: orderForExecution(selected),
		Reasoning:      fmt.Sprintf("category %q: %s", intent.Category, strings.Join(reasons, ", ")),
	}
}

func scoreCandidate(c types.FunctionCandidate, required map[string]bool, category string) int {
	score := 0
	if required[c.FunctionKey] {
		score += scoreRequired
	}
	for _, tag := range c.Tags {
		tagLower := strings.ToLower(tag)
		if category != "" && strings.Contains(tagLower, category) {
			score += scoreTagCategory
		}
		for fn := range required {
			if strings.Contains(tagLower, strings.ToLower(fn)) {
				score += scoreTagRequired
			}
		}
	}
	if category != "" && strings.Contains(strings.ToLower(c.Description), category) {
		score += scoreDescrCategory
	}
	return score
}

// orderForExecution arranges functions data-first, then processing, then
// anything unclassified, preserving candidate order within each bucket.
// The result is always a permutation of the input.
func orderForExecution(selected []string) []string {
	ordered := make([]string, 0, len(selected))
	for _, fn := range selected {
		if dataFunctions[fn] {
			ordered = append(ordered, fn)
		}
	}
	for _, fn := range selected {
		if processingFunctions[fn] {
			ordered = append(ordered, fn)
		}
	}
	for _, fn := range selected {
		if !dataFunctions[fn] && !processingFunctions[fn] {
			ordered = append(ordered, fn)
		}
	}
	return ordered
}

func chatOnlySelection(why string) types.FunctionSelection {
	return types.FunctionSelection{
		Selected:       []string{"chat"},
		ExecutionOrder: []string{"chat"},
		Reasoning:      why + "; defaulting to chat",
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
