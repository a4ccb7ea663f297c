package types

import "time"

// RequestType identifies which trigger surface produced a request.
type RequestType string

const (
	RequestTypeChat        RequestType = "chat"
	RequestTypeWebhook     RequestType = "webhook"
	RequestTypeSystemTask  RequestType = "system_task"
	RequestTypeAgentAction RequestType = "agent_action"
	RequestTypeAPICall     RequestType = "api_call"
)

func ParseRequestType(s string) (RequestType, bool) {
	switch RequestType(s) {
	case RequestTypeChat, RequestTypeWebhook, RequestTypeSystemTask, RequestTypeAgentAction, RequestTypeAPICall:
		return RequestType(s), true
	default:
		return "", false
	}
}

// NormalizedRequest is the canonical internal representation of any inbound
// trigger. All surface-specific payloads are converted to this shape before
// entering the pipeline, and it is never mutated after construction.
type NormalizedRequest struct {
	TraceID     string         `json:"trace_id"`
	Type        RequestType    `json:"request_type"`
	Source      string         `json:"source"`
	Prompt      string         `json:"prompt"`
	Context     RequestContext `json:"context"`
	Parallel    bool           `json:"parallel,omitempty"`
	ReceivedAt  time.Time      `json:"-"`
	APIKey      string         `json:"-"`
	ImageIntent bool           `json:"-"`
}

// RequestContext carries caller identity and conversation state through
// the pipeline.
type RequestContext struct {
	WorkspaceID string         `json:"workspace_id,omitempty"`
	UserID      string         `json:"user_id,omitempty"`
	PersonaID   string         `json:"persona_id,omitempty"`
	History     []Message      `json:"history,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}
