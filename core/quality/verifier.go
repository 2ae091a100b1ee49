package quality

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"time"

	"compconv/model"
)

// Verifier runs an audio asset through quality verification.
type Verifier interface {
	Verify(ctx context.Context, audioURL, profile string) (*model.VerificationReport, error)
}

// Client talks to the quality-verification API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a verification API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// Verify submits the audio URL for verification and returns the report.
func (c *Client) Verify(ctx context.Context, audioURL, profile string) (*model.VerificationReport, error) {
	payload, err := json.Marshal(map[string]string{
		"audioUrl": audioURL,
		"profile":  profile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal verification request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/verify", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("verification API returned status %d", resp.StatusCode)
	}

	var report model.VerificationReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode verification report: %w", err)
	}
	return &report, nil
}

// MockVerifier produces a deterministic report from the audio URL. Used when
// no VERIFIER_API_URL is configured.
type MockVerifier struct{}

// Verify scores the asset from a hash of its URL so repeated checks agree.
func (MockVerifier) Verify(ctx context.Context, audioURL, profile string) (*model.VerificationReport, error) {
	h := fnv.New32a()
	h.Write([]byte(audioURL))
	score := 50 + int(h.Sum32()%51)

	report := &model.VerificationReport{
		QualityScore: score,
		Passes:       score >= 70,
		Metadata:     map[string]string{"profile": profile, "verifier": "mock"},
	}
	if !report.Passes {
		report.Issues = append(report.Issues, "quality score below threshold")
	}
	return report, nil
}
