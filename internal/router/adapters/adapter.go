package adapters

import (
	"context"
	"net/http"

	"github.com/cosmohq/cosmo-core/internal/types"
)

// ChatRequest is the canonical outbound inference payload. Adapters
// translate it to their provider's chat-completions wire format.
type ChatRequest struct {
	Model       string
	Messages    []types.Message
	Temperature *float64
	MaxTokens   *int
}

// ChatResponse is the provider-neutral inference result.
type ChatResponse struct {
	Model            string
	Provider         string
	Content          string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ProviderAdapter translates between the canonical chat format and a
// provider-specific API.
type ProviderAdapter interface {
	Name() string
	TransformRequest(ctx context.Context, req *ChatRequest) (*http.Request, error)
	TransformResponse(ctx context.Context, resp *http.Response) (*ChatResponse, error)
	// SendRequest sends an HTTP request using the provider's configured client.
	SendRequest(req *http.Request) (*http.Response, error)
}

// Complete runs a full request/response round trip through an adapter.
func Complete(ctx context.Context, a ProviderAdapter, req *ChatRequest) (*ChatResponse, error) {
	httpReq, err := a.TransformRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	httpResp, err := a.SendRequest(httpReq)
	if err != nil {
		return nil, err
	}
	return a.TransformResponse(ctx, httpResp)
}

func Temp(v float64) *float64 { return &v }

func MaxTok(v int) *int { return &v }
