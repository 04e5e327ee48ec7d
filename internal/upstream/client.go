// Package upstream talks to the Google Generative Language file search API
// on behalf of authenticated tenants. The gateway core only needs two things
// from it: a connectivity probe for freshly registered credentials and a
// grounded search call.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the production Generative Language endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

const (
	apiVersion   = "v1beta"
	defaultModel = "gemini-2.0-flash"
)

// Client issues requests against the upstream API. The per-tenant API key is
// passed per call; the client itself holds no credentials.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Client. An empty baseURL selects the production
// endpoint.
func NewClient(baseURL string) *Client {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	return &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// VerifyAPIKey probes the upstream with the given key. A non-2xx response
// means the key cannot list file search stores and should not be accepted
// for a new connection.
func (c *Client) VerifyAPIKey(ctx context.Context, apiKey string) error {
	endpoint := fmt.Sprintf("%s/%s/fileSearchStores?pageSize=1&key=%s", c.baseURL, apiVersion, url.QueryEscape(apiKey))
	req, errRequest := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if errRequest != nil {
		return fmt.Errorf("upstream: build probe request: %w", errRequest)
	}
	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return fmt.Errorf("upstream: probe failed: %w", errDo)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upstream: probe rejected: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// SearchResult carries the generated answer and its source attributions.
type SearchResult struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources,omitempty"`
}

// Search runs a grounded generateContent call against one file search store.
func (c *Client) Search(ctx context.Context, apiKey, storeID, query string) (*SearchResult, error) {
	storeName := storeID
	if !strings.HasPrefix(storeName, "fileSearchStores/") {
		storeName = "fileSearchStores/" + storeName
	}

	payload := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]string{{"text": query}}},
		},
		"tools": []map[string]any{
			{"fileSearch": map[string]any{"fileSearchStoreNames": []string{storeName}}},
		},
	}
	body, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return nil, fmt.Errorf("upstream: marshal search request: %w", errMarshal)
	}

	endpoint := fmt.Sprintf("%s/%s/models/%s:generateContent?key=%s", c.baseURL, apiVersion, defaultModel, url.QueryEscape(apiKey))
	req, errRequest := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if errRequest != nil {
		return nil, fmt.Errorf("upstream: build search request: %w", errRequest)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return nil, fmt.Errorf("upstream: search failed: %w", errDo)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("upstream: search rejected: %d - %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	// generateContentResponse maps only the fields the gateway surfaces.
	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			GroundingMetadata struct {
				GroundingChunks []struct {
					RetrievedContext struct {
						Title string `json:"title"`
					} `json:"retrievedContext"`
				} `json:"groundingChunks"`
			} `json:"groundingMetadata"`
		} `json:"candidates"`
	}
	if errDecode := json.NewDecoder(resp.Body).Decode(&parsed); errDecode != nil {
		return nil, fmt.Errorf("upstream: decode search response: %w", errDecode)
	}
	if len(parsed.Candidates) == 0 {
		return &SearchResult{}, nil
	}

	candidate := parsed.Candidates[0]
	var answer strings.Builder
	for _, part := range candidate.Content.Parts {
		answer.WriteString(part.Text)
	}
	result := &SearchResult{Answer: answer.String()}
	for _, chunk := range candidate.GroundingMetadata.GroundingChunks {
		if title := strings.TrimSpace(chunk.RetrievedContext.Title); title != "" {
			result.Sources = append(result.Sources, title)
		}
	}
	return result, nil
}
