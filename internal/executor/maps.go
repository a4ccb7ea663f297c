package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cosmohq/cosmo-core/internal/types"
)

// MapsTool resolves place lookups against a geocoding endpoint
// (Nominatim-compatible search API).
type MapsTool struct {
	baseURL string
	client  *http.Client
}

func NewMapsTool(baseURL string, timeout time.Duration) *MapsTool {
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MapsTool{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *MapsTool) Key() string { return "maps" }

type placeResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Type        string `json:"type"`
}

func (t *MapsTool) Execute(ctx context.Context, fnCtx map[string]any) (any, error) {
	query, _ := fnCtx["location"].(string)
	if query == "" {
		query, _ = fnCtx["query"].(string)
	}
	if query == "" {
		return nil, types.NewError(types.CodeInvalidPayload, "maps: no location in request context")
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", "5")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("maps: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, types.WrapError(types.CodeFunctionFailed, "maps: place search request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, types.NewError(types.CodeFunctionFailed, fmt.Sprintf("maps: place search returned %d: %s", resp.StatusCode, string(body)))
	}

	var places []placeResult
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, types.WrapError(types.CodeFunctionFailed, "maps: decode place search response", err)
	}

	return map[string]any{
		"query":  query,
		"places": places,
	}, nil
}
