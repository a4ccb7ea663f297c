package orchestrator

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/cosmohq/cosmo-core/internal/types"
)

// ChatPayload is the body of POST /v1/chat.
type ChatPayload struct {
	Message     string          `json:"message"`
	WorkspaceID string          `json:"workspace_id,omitempty"`
	UserID      string          `json:"user_id,omitempty"`
	PersonaID   string          `json:"persona_id,omitempty"`
	History     []types.Message `json:"history,omitempty"`
	Parallel    bool            `json:"parallel,omitempty"`
	Image       bool            `json:"image,omitempty"`
}

// WebhookPayload is the body of POST /v1/webhooks/{source}.
type WebhookPayload struct {
	Event       string         `json:"event"`
	Text        string         `json:"text,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	WorkspaceID string         `json:"workspace_id,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// TaskPayload is the body of POST /v1/tasks/run.
type TaskPayload struct {
	TaskKey      string `json:"task_key"`
	Instructions string `json:"instructions"`
	WorkspaceID  string `json:"workspace_id,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	Parallel     bool   `json:"parallel,omitempty"`
}

// AgentActionPayload is the body of POST /v1/agent/actions.
type AgentActionPayload struct {
	Action      string            `json:"action"`
	Instruction string            `json:"instruction"`
	WorkspaceID string            `json:"workspace_id,omitempty"`
	UserID      string            `json:"user_id,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty"`
}

// NormalizeChat converts a chat body to the canonical request shape.
func NormalizeChat(p ChatPayload, traceID string) (types.NormalizedRequest, *types.CosmoError) {
	prompt := strings.TrimSpace(p.Message)
	if prompt == "" {
		return types.NormalizedRequest{}, types.NewError(types.CodeInvalidPayload, "message is required")
	}
	return types.NormalizedRequest{
		TraceID: ensureTraceID(traceID),
		Type:    types.RequestTypeChat,
		Source:  "api",
		Prompt:  prompt,
		Context: types.RequestContext{
			WorkspaceID: p.WorkspaceID,
			UserID:      p.UserID,
			PersonaID:   p.PersonaID,
			History:     p.History,
		},
		Parallel:    p.Parallel,
		ImageIntent: p.Image,
		ReceivedAt:  time.Now(),
	}, nil
}

// NormalizeWebhook converts an inbound webhook to the canonical shape.
// The prompt is the event text, falling back to the summary; webhooks
// with neither carry nothing to act on.
func NormalizeWebhook(source string, p WebhookPayload, traceID string) (types.NormalizedRequest, *types.CosmoError) {
	if source == "" {
		return types.NormalizedRequest{}, types.NewError(types.CodeInvalidPayload, "webhook source is required")
	}
	prompt := strings.TrimSpace(p.Text)
	if prompt == "" {
		prompt = strings.TrimSpace(p.Summary)
	}
	if prompt == "" {
		return types.NormalizedRequest{}, types.NewError(types.CodeInvalidPayload, "webhook payload has no text or summary")
	}
	return types.NormalizedRequest{
		TraceID: ensureTraceID(traceID),
		Type:    types.RequestTypeWebhook,
		Source:  source,
		Prompt:  prompt,
		Context: types.RequestContext{
			WorkspaceID: p.WorkspaceID,
			Extra:       webhookExtra(p),
		},
		ReceivedAt: time.Now(),
	}, nil
}

func webhookExtra(p WebhookPayload) map[string]any {
	if p.Event == "" && len(p.Data) == 0 {
		return nil
	}
	extra := make(map[string]any, len(p.Data)+1)
	for k, v := range p.Data {
		extra[k] = v
	}
	if p.Event != "" {
		extra["event"] = p.Event
	}
	return extra
}

// NormalizeTask converts a scheduled-task trigger to the canonical shape.
func NormalizeTask(p TaskPayload, traceID string) (types.NormalizedRequest, *types.CosmoError) {
	if strings.TrimSpace(p.TaskKey) == "" {
		return types.NormalizedRequest{}, types.NewError(types.CodeInvalidPayload, "task_key is required")
	}
	instructions := strings.TrimSpace(p.Instructions)
	if instructions == "" {
		return types.NormalizedRequest{}, types.NewError(types.CodeInvalidPayload, "instructions are required")
	}
	return types.NormalizedRequest{
		TraceID: ensureTraceID(traceID),
		Type:    types.RequestTypeSystemTask,
		Source:  p.TaskKey,
		Prompt:  instructions,
		Context: types.RequestContext{
			WorkspaceID: p.WorkspaceID,
			UserID:      p.UserID,
		},
		Parallel:   p.Parallel,
		ReceivedAt: time.Now(),
	}, nil
}

// NormalizeAgentAction converts an agent action to the canonical shape.
func NormalizeAgentAction(p AgentActionPayload, traceID string) (types.NormalizedRequest, *types.CosmoError) {
	if strings.TrimSpace(p.Action) == "" {
		return types.NormalizedRequest{}, types.NewError(types.CodeInvalidPayload, "action is required")
	}
	prompt := strings.TrimSpace(p.Instruction)
	if prompt == "" {
		return types.NormalizedRequest{}, types.NewError(types.CodeInvalidPayload, "instruction is required")
	}
	var extra map[string]any
	if len(p.Parameters) > 0 {
		extra = make(map[string]any, len(p.Parameters))
		for k, v := range p.Parameters {
			extra[k] = v
		}
	}
	return types.NormalizedRequest{
		TraceID: ensureTraceID(traceID),
		Type:    types.RequestTypeAgentAction,
		Source:  p.Action,
		Prompt:  prompt,
		Context: types.RequestContext{
			WorkspaceID: p.WorkspaceID,
			UserID:      p.UserID,
			Extra:       extra,
		},
		ReceivedAt: time.Now(),
	}, nil
}

func ensureTraceID(traceID string) string {
	if traceID != "" {
		return traceID
	}
	buf := make([]byte, 8)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}
