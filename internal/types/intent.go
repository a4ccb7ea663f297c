package types

// ContextNeed names a kind of context an intent requires before the final
// model call (persona text, conversation history, knowledge-base hits).
type ContextNeed string

const (
	NeedPersona       ContextNeed = "persona"
	NeedHistory       ContextNeed = "history"
	NeedKnowledgeBase ContextNeed = "knowledge_base"
	NeedLocation      ContextNeed = "location"
)

// IntentAnalysis is the output of prompt classification. Confidence is
// always in [0,1]; Category is either a registry category or "general".
type IntentAnalysis struct {
	Category          string        `json:"category"`
	Confidence        float64       `json:"confidence"`
	RequiredFunctions []string      `json:"required_functions"`
	Enhancements      []string      `json:"suggested_enhancements,omitempty"`
	ContextNeeds      []ContextNeed `json:"context_needs,omitempty"`
	// AIAssisted is true when the model-based classifier overrode the
	// local keyword result.
	AIAssisted bool `json:"ai_assisted,omitempty"`
}

// EnhancedIntentAnalysis adds the resolved intent key, an ordered action
// plan, and raw entity extractions for agent and system-task paths.
type EnhancedIntentAnalysis struct {
	IntentAnalysis
	IntentKey string              `json:"intent_key"`
	Plan      ActionPlan          `json:"action_plan"`
	Entities  map[string][]string `json:"entities,omitempty"`
}

// ActionPlan is an ordered list of concrete actions expanded from an intent.
type ActionPlan struct {
	Actions []CosmoAction `json:"actions"`
}

// CosmoAction is one step in an action plan: a function to invoke with
// parameters extracted from the prompt.
type CosmoAction struct {
	FunctionKey string            `json:"function_key"`
	Parameters  map[string]string `json:"parameters,omitempty"`
}
