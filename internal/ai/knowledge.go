package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ContextSource looks up reference material relevant to an invoice
type ContextSource interface {
	Lookup(ctx context.Context, query string) (string, error)
}

// HTTPContextSource queries the internal semantic search service
type HTTPContextSource struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPContextSource creates a knowledge lookup against url, authenticated
// with a bearer apiKey
func NewHTTPContextSource(url, apiKey string) *HTTPContextSource {
	return &HTTPContextSource{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type knowledgeRequest struct {
	Query string `json:"query"`
}

type knowledgeResponse struct {
	Context string `json:"context"`
}

// Lookup posts the query and returns the context text from the response
func (s *HTTPContextSource) Lookup(ctx context.Context, query string) (string, error) {
	body, err := json.Marshal(knowledgeRequest{Query: query})
	if err != nil {
		return "", fmt.Errorf("failed to encode knowledge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create knowledge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("knowledge service call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("knowledge service returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out knowledgeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode knowledge response: %w", err)
	}
	return out.Context, nil
}
