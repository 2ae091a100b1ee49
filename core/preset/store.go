package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"compconv/logger"
	"compconv/model"
)

// Store holds the effect presets loaded from a directory of JSON files and
// keeps them current with a filesystem watcher.
type Store struct {
	mu      sync.RWMutex
	dir     string
	presets []*model.EffectPreset

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewStore creates a preset store over dir. Call Load to populate it.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load reads every .json preset file in the directory. A missing directory
// yields an empty set, not an error; individual malformed files are skipped
// with a warning.
func (s *Store) Load() error {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		s.mu.Lock()
		s.presets = nil
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read preset directory: %w", err)
	}

	presets := make([]*model.EffectPreset, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("failed to read preset file", logger.String("path", path), logger.ErrorField(err))
			continue
		}

		var p model.EffectPreset
		if err := json.Unmarshal(raw, &p); err != nil {
			logger.Warn("skipping malformed preset file", logger.String("path", path), logger.ErrorField(err))
			continue
		}
		if p.ID == "" {
			p.ID = strings.TrimSuffix(entry.Name(), ".json")
		}
		presets = append(presets, &p)
	}

	sort.Slice(presets, func(i, j int) bool { return presets[i].Name < presets[j].Name })

	s.mu.Lock()
	s.presets = presets
	s.mu.Unlock()
	return nil
}

// Presets returns the current preset set.
func (s *Store) Presets() []*model.EffectPreset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.EffectPreset, len(s.presets))
	copy(out, s.presets)
	return out
}

// Watch starts a filesystem watcher that reloads the store whenever preset
// files change. Close stops it.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create preset watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch preset directory: %w", err)
	}

	s.watcher = watcher
	s.done = make(chan struct{})

	go func() {
		for {
			select {
			case <-s.done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if err := s.Load(); err != nil {
					logger.Warn("preset reload failed", logger.ErrorField(err))
				} else {
					logger.Info("presets reloaded", logger.String("trigger", event.Name))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("preset watcher error", logger.ErrorField(err))
			}
		}
	}()
	return nil
}

// Close stops the watcher if one is running.
func (s *Store) Close() {
	if s.watcher != nil {
		close(s.done)
		s.watcher.Close()
		s.watcher = nil
	}
}
