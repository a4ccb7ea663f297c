package store

// builtinIntents is the hard-coded intent table used when the registry
// cannot be loaded. It keeps classification degraded rather than broken.
func builtinIntents() []Intent {
	return []Intent{
		{
			IntentKey:         "coding_help",
			Category:          "coding",
			Keywords:          []string{"code", "error", "bug", "function", "compile", "debug"},
			RequiredFunctions: []string{"chat"},
			ContextNeeds:      []string{"history"},
			Priority:          100,
		},
		{
			IntentKey:         "research_query",
			Category:          "research",
			Keywords:          []string{"search", "find", "research", "latest", "news"},
			RequiredFunctions: []string{"web_search", "chat"},
			ContextNeeds:      []string{"knowledge_base"},
			Priority:          90,
		},
		{
			IntentKey:         "creative_writing",
			Category:          "creative",
			Keywords:          []string{"write", "story", "poem", "draft", "imagine"},
			RequiredFunctions: []string{"chat"},
			ContextNeeds:      []string{"persona"},
			Priority:          80,
		},
		{
			IntentKey:         "navigation",
			Category:          "navigation",
			Keywords:          []string{"directions", "route", "near", "map", "address"},
			RequiredFunctions: []string{"maps", "chat"},
			ContextNeeds:      []string{"location"},
			Priority:          70,
		},
		{
			IntentKey:         "communication",
			Category:          "communication",
			Keywords:          []string{"email", "send", "schedule", "meeting", "calendar"},
			RequiredFunctions: []string{"gmail", "calendar", "chat"},
			ContextNeeds:      []string{"history"},
			Priority:          60,
		},
		{
			IntentKey:         "general_chat",
			Category:          "general",
			Keywords:          []string{"hello", "help", "question"},
			RequiredFunctions: []string{"chat"},
			Priority:          10,
		},
	}
}
