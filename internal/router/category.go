package router

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/cosmohq/cosmo-core/internal/config"
	"github.com/cosmohq/cosmo-core/internal/router/adapters"
	"github.com/cosmohq/cosmo-core/internal/types"
)

// classifierTemperature keeps category detection near-deterministic.
const classifierTemperature = 0.1

// Classifier performs model-based prompt classification through the
// configured provider.
type Classifier struct {
	registry *Registry
}

func NewClassifier(registry *Registry) *Classifier {
	return &Classifier{registry: registry}
}

// Category classifies a prompt into one of the configured categories.
// It never returns an error: any failure (provider error, malformed
// response, unknown category) falls back to cfg.FallbackCategory.
func (c *Classifier) Category(ctx context.Context, prompt string, cfg *config.RoutingConfig) string {
	category, _, err := c.Classify(ctx, prompt, cfg)
	if err != nil {
		slog.Warn("prompt classification failed, using fallback category",
			"error", err, "fallback", cfg.FallbackCategory)
		return cfg.FallbackCategory
	}
	return category
}

// Classify classifies a prompt and reports the classifier's confidence.
// The model is asked for "category|confidence"; a bare category is
// accepted with confidence 1.0. The returned category is validated
// against the configured list (case-insensitive exact match first, then
// substring containment).
func (c *Classifier) Classify(ctx context.Context, prompt string, cfg *config.RoutingConfig) (string, float64, error) {
	adapter, cerr := c.registry.Require(cfg.DefaultProvider)
	if cerr != nil {
		return "", 0, cerr
	}

	system := fmt.Sprintf("%s\nValid categories: %s\nRespond as: category|confidence",
		cfg.SystemPrompt, strings.Join(cfg.Categories, ", "))

	resp, err := adapters.Complete(ctx, adapter, &adapters.ChatRequest{
		Model: cfg.ClassifierModel,
		Messages: []types.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: adapters.Temp(classifierTemperature),
		MaxTokens:   adapters.MaxTok(20),
	})
	if err != nil {
		return "", 0, fmt.Errorf("classifier call: %w", err)
	}

	category, confidence := parseClassifierReply(resp.Content)
	matched, ok := MatchCategory(category, cfg.Categories)
	if !ok {
		return "", 0, fmt.Errorf("classifier returned unknown category %q", category)
	}
	return matched, confidence, nil
}

// parseClassifierReply splits a "category|confidence" reply. Missing or
// unparseable confidence defaults to 1.0.
func parseClassifierReply(content string) (string, float64) {
	content = strings.TrimSpace(content)
	parts := strings.SplitN(content, "|", 2)
	category := strings.TrimSpace(parts[0])
	confidence := 1.0
	if len(parts) == 2 {
		if v, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err == nil && v >= 0 && v <= 1 {
			confidence = v
		}
	}
	return category, confidence
}

// MatchCategory validates a candidate category against the known list:
// case-insensitive exact match first, then substring containment in
// either direction. Returns the canonical category name.
func MatchCategory(candidate string, known []string) (string, bool) {
	c := strings.ToLower(strings.TrimSpace(candidate))
	if c == "" {
		return "", false
	}
	for _, k := range known {
		if strings.EqualFold(c, k) {
			return k, true
		}
	}
	for _, k := range known {
		kl := strings.ToLower(k)
		if strings.Contains(c, kl) || strings.Contains(kl, c) {
			return k, true
		}
	}
	return "", false
}
