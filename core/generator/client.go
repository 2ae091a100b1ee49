package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"compconv/model"
)

// Client talks to the composition generation API over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a generation API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetTimeout sets the request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("generation API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrTrackNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("generation API returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode generation API response: %w", err)
		}
	}
	return nil
}

// GenerateBatch requests count freshly generated tracks.
func (c *Client) GenerateBatch(ctx context.Context, count int) ([]*model.Track, error) {
	var result struct {
		Tracks []*model.Track `json:"tracks"`
	}
	body := map[string]int{"count": count}
	if err := c.do(ctx, http.MethodPost, "/v1/compositions/batch", body, &result); err != nil {
		return nil, err
	}
	return result.Tracks, nil
}

// FetchOne fetches a single track by id.
func (c *Client) FetchOne(ctx context.Context, id string) (*model.Track, error) {
	var track model.Track
	if err := c.do(ctx, http.MethodGet, "/v1/compositions/"+url.PathEscape(id), nil, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// Remix proxies a remix request to the generation service.
func (c *Client) Remix(ctx context.Context, req RemixRequest) (*GenerationResult, error) {
	var result GenerationResult
	if err := c.do(ctx, http.MethodPost, "/v1/remix", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Speech proxies a text-to-speech request to the generation service.
func (c *Client) Speech(ctx context.Context, req SpeechRequest) (*GenerationResult, error) {
	var result GenerationResult
	if err := c.do(ctx, http.MethodPost, "/v1/speech", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
