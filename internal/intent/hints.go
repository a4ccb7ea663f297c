package intent

import "strings"

// suggestEnhancements derives prompt-enhancement hints from cheap
// substring checks. This is a heuristic layer, not classification.
func suggestEnhancements(prompt string) []string {
	lower := strings.ToLower(prompt)
	var hints []string

	if len(strings.TrimSpace(prompt)) < 20 {
		hints = append(hints, "elaborate")
	}
	if strings.Contains(lower, "example") || strings.Contains(lower, "show me") {
		hints = append(hints, "include_examples")
	}
	if strings.Contains(lower, "how to") || strings.Contains(lower, "how do") || strings.Contains(lower, "step") {
		hints = append(hints, "step_by_step")
	}
	return hints
}
