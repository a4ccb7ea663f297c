package intent

import (
	"regexp"
	"strings"
)

var (
	emailPattern  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	quotedPattern = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	datePattern   = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4}|today|tomorrow|yesterday|next week|next month)\b`)
	// A capitalized run after a locative preposition is treated as a place.
	placePattern = regexp.MustCompile(`\b(?:in|near|at|to) ((?:[A-Z][a-zA-Z]+)(?: [A-Z][a-zA-Z]+)*)`)
)

// ExtractEntities pulls structured values out of a free-form prompt with
// regex heuristics. The output feeds action-plan parameter binding; a
// miss just means the action runs with the raw prompt instead.
func ExtractEntities(prompt string) map[string][]string {
	entities := make(map[string][]string)

	if emails := emailPattern.FindAllString(prompt, -1); len(emails) > 0 {
		entities["email"] = emails
	}

	if quotes := quotedPattern.FindAllStringSubmatch(prompt, -1); len(quotes) > 0 {
		var values []string
		for _, q := range quotes {
			if q[1] != "" {
				values = append(values, q[1])
			} else if q[2] != "" {
				values = append(values, q[2])
			}
		}
		entities["quoted"] = values
	}

	if dates := datePattern.FindAllString(strings.ToLower(prompt), -1); len(dates) > 0 {
		entities["date"] = dates
	}

	if places := placePattern.FindAllStringSubmatch(prompt, -1); len(places) > 0 {
		var values []string
		for _, p := range places {
			values = append(values, p[1])
		}
		entities["place"] = values
	}

	if len(entities) == 0 {
		return nil
	}
	return entities
}
