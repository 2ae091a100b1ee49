package audioload

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Handle is a playable media handle bound to one source URL at a time.
type Handle interface {
	Play() error
	Pause() error
	SeekStart() error
	Source() string
	SetSource(url string) error
	Close() error
}

// Backend loads a playable handle for a URL.
type Backend interface {
	Load(ctx context.Context, url string) (Handle, error)
}

// HTTPBackend validates candidate URLs with a probe request and hands out
// session-state handles over them.
type HTTPBackend struct {
	client *http.Client
}

// NewHTTPBackend creates a backend with a probing HTTP client.
func NewHTTPBackend() *HTTPBackend {
	return &HTTPBackend{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Load probes the URL and returns a handle on success.
func (b *HTTPBackend) Load(ctx context.Context, url string) (Handle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build probe request: %w", err)
	}
	// Only the headers matter for the probe.
	req.Header.Set("Range", "bytes=0-0")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", url, err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("probe of %s returned status %d", url, resp.StatusCode)
	}

	return &httpHandle{source: url}, nil
}

// httpHandle tracks playback session state for one loaded asset. Actual
// audio output happens in the browser; the backend only mirrors the state.
type httpHandle struct {
	mu      sync.Mutex
	source  string
	playing bool
	closed  bool
}

func (h *httpHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("handle is closed")
	}
	h.playing = true
	return nil
}

func (h *httpHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = false
	return nil
}

func (h *httpHandle) SeekStart() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("handle is closed")
	}
	return nil
}

func (h *httpHandle) Source() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.source
}

func (h *httpHandle) SetSource(url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if url == "" {
		return fmt.Errorf("empty source URL")
	}
	h.source = url
	return nil
}

func (h *httpHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = false
	h.closed = true
	return nil
}
