package audioload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"compconv/logger"
)

var (
	// ErrNotLoaded is returned for operations on an id with no cached handle.
	ErrNotLoaded = errors.New("audio not loaded")
	// ErrExhaustedFallbacks is the terminal failure after every candidate
	// URL has been tried.
	ErrExhaustedFallbacks = errors.New("exhausted all fallback URLs")
)

// Config holds the loader's tunables.
type Config struct {
	RetryDelay   time.Duration // wait between fallback attempts, default 1s
	MaxFallbacks int           // cap on recorded fallback URLs, default 4
}

// Events receives lifecycle notifications during a preload.
type Events struct {
	OnLoaded   func(id, url string)
	OnError    func(id string, err error)
	OnProgress func(id string, attempt int, url string)
}

// Loader loads playable handles for logical track ids from an ordered list
// of candidate URLs, walking the list strictly in sequence on failure.
type Loader struct {
	mu      sync.Mutex
	backend Backend
	cfg     Config

	httpClient *http.Client
	sleep      func(ctx context.Context, d time.Duration) error

	handles map[string]Handle
	sources map[string][]string
}

// NewLoader creates a loader over the given backend.
func NewLoader(backend Backend, cfg Config) *Loader {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxFallbacks <= 0 {
		cfg.MaxFallbacks = 4
	}
	return &Loader{
		backend: backend,
		cfg:     cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		sleep:   sleepCtx,
		handles: make(map[string]Handle),
		sources: make(map[string][]string),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Preload records the candidate URL list for id and walks it from index 0,
// waiting the configured delay between attempts. The first success caches
// the handle and fires OnLoaded exactly once; running off the end of the
// list fires OnError with ErrExhaustedFallbacks.
func (l *Loader) Preload(ctx context.Context, id, primaryURL string, fallbackURLs []string, events Events) error {
	if len(fallbackURLs) > l.cfg.MaxFallbacks {
		fallbackURLs = fallbackURLs[:l.cfg.MaxFallbacks]
	}
	urls := append([]string{primaryURL}, fallbackURLs...)

	l.mu.Lock()
	l.sources[id] = urls
	l.mu.Unlock()

	var lastErr error
	for i, url := range urls {
		if events.OnProgress != nil {
			events.OnProgress(id, i, url)
		}

		handle, err := l.backend.Load(ctx, url)
		if err == nil {
			l.mu.Lock()
			l.handles[id] = handle
			l.mu.Unlock()
			if events.OnLoaded != nil {
				events.OnLoaded(id, url)
			}
			return nil
		}
		lastErr = err
		logger.Warn("audio load attempt failed",
			logger.String("trackId", id),
			logger.Int("attempt", i),
			logger.ErrorField(err))

		if i+1 < len(urls) {
			if serr := l.sleep(ctx, l.cfg.RetryDelay); serr != nil {
				return serr
			}
		}
	}

	err := fmt.Errorf("%w for %s: %v", ErrExhaustedFallbacks, id, lastErr)
	if events.OnError != nil {
		events.OnError(id, err)
	}
	return err
}

// Play resets playback to the start and plays. A play failure with at least
// one fallback URL recorded swaps the source to fallback index 1, waits the
// delay, and retries exactly once. An id that was never loaded fails
// immediately with no fallback.
func (l *Loader) Play(ctx context.Context, id string) error {
	l.mu.Lock()
	handle, ok := l.handles[id]
	urls := l.sources[id]
	l.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, id)
	}

	if err := handle.SeekStart(); err != nil {
		return fmt.Errorf("failed to reset playback position: %w", err)
	}
	err := handle.Play()
	if err == nil {
		return nil
	}

	// Fallback applies only to play-after-load failures.
	if len(urls) < 2 {
		return fmt.Errorf("playback failed for %s: %w", id, err)
	}

	logger.Warn("playback failed, retrying on fallback source",
		logger.String("trackId", id),
		logger.ErrorField(err))
	if serr := handle.SetSource(urls[1]); serr != nil {
		return fmt.Errorf("failed to swap to fallback source: %w", serr)
	}
	if serr := l.sleep(ctx, l.cfg.RetryDelay); serr != nil {
		return serr
	}
	if err := handle.Play(); err != nil {
		return fmt.Errorf("playback failed for %s after fallback retry: %w", id, err)
	}
	return nil
}

// Pause pauses in place. Unknown ids are a no-op.
func (l *Loader) Pause(id string) error {
	l.mu.Lock()
	handle, ok := l.handles[id]
	l.mu.Unlock()

	if !ok {
		return nil
	}
	return handle.Pause()
}

// IsLoaded reports whether id has a cached handle.
func (l *Loader) IsLoaded(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.handles[id]
	return ok
}

// Download fetches the handle's current source, materializes a temporary
// "<filename>.mp3" artifact, copies it to dst, and removes the artifact.
func (l *Loader) Download(ctx context.Context, id, filename string, dst io.Writer) error {
	l.mu.Lock()
	handle, ok := l.handles[id]
	l.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, id)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, handle.Source(), nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch audio content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("audio fetch returned status %d", resp.StatusCode)
	}

	tmpPath := filepath.Join(os.TempDir(), filename+".mp3")
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create download artifact: %w", err)
	}
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write download artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to finalize download artifact: %w", err)
	}

	artifact, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to reopen download artifact: %w", err)
	}
	defer artifact.Close()

	if _, err := io.Copy(dst, artifact); err != nil {
		return fmt.Errorf("failed to stream download: %w", err)
	}
	return nil
}

// Cleanup pauses and closes every cached handle and drops all recorded URL
// lists. Normally invoked at shutdown or test teardown.
func (l *Loader) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, handle := range l.handles {
		if err := handle.Pause(); err != nil {
			logger.Warn("failed to pause handle during cleanup",
				logger.String("trackId", id),
				logger.ErrorField(err))
		}
		handle.Close()
	}
	l.handles = make(map[string]Handle)
	l.sources = make(map[string][]string)
}
