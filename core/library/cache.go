package library

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"compconv/core/generator"
	"compconv/logger"
	"compconv/model"
)

const remixHistoryWindow = 30 * 24 * time.Hour

// Options configures a library cache. Zero values fall back to the
// production defaults.
type Options struct {
	TTL             time.Duration // snapshot lifetime, default 1h
	BatchSize       int           // tracks requested per refresh, default 16
	RemixHistoryLen int           // remix entries derived per refresh, default 8
	DefaultLimit    int           // query limit when none is given, default 20
	Now             func() time.Time
	Seed            int64 // seeds the remix-date RNG; 0 means time-based
}

// Cache holds the in-memory library and remix-history snapshots, refreshed
// from the generator when stale. All access is serialized by a single mutex,
// so concurrent stale queries share one in-flight refresh instead of racing.
type Cache struct {
	mu  sync.Mutex
	gen generator.Generator

	ttl             time.Duration
	batchSize       int
	remixHistoryLen int
	defaultLimit    int
	now             func() time.Time
	rng             *rand.Rand

	libraryTracks   []*model.Track
	remixHistory    []*model.Track
	lastRefreshedAt time.Time
}

// New creates a library cache backed by gen. The cache starts empty and is
// populated lazily on the first query.
func New(gen generator.Generator, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 16
	}
	if opts.RemixHistoryLen <= 0 {
		opts.RemixHistoryLen = 8
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 20
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Cache{
		gen:             gen,
		ttl:             opts.TTL,
		batchSize:       opts.BatchSize,
		remixHistoryLen: opts.RemixHistoryLen,
		defaultLimit:    opts.DefaultLimit,
		now:             opts.Now,
		rng:             rand.New(rand.NewSource(seed)),
	}
}

// LibraryQuery selects tracks from the library collection. All predicates
// are AND-combined.
type LibraryQuery struct {
	Filter model.LibraryFilter
	Genre  string
	Mood   string
	Search string
	Limit  int
}

// RemixQuery selects tracks from the remix-history collection. Sort is an
// ordering, not a predicate.
type RemixQuery struct {
	Sort   model.RemixSort
	Search string
	Limit  int
}

// QueryLibrary answers a filtered, truncated view over the library
// collection, refreshing first when the snapshot is stale. On refresh
// failure it returns a well-formed empty result flagged as degraded along
// with the error, so the caller can log the cause and still render.
func (c *Cache) QueryLibrary(ctx context.Context, q LibraryQuery) (*model.QueryResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureFreshLocked(ctx); err != nil {
		return &model.QueryResult{Tracks: []*model.Track{}, Degraded: true}, err
	}

	filtered := make([]*model.Track, 0, len(c.libraryTracks))
	for _, t := range c.libraryTracks {
		if !matchesType(t, q.Filter) {
			continue
		}
		if q.Genre != "" && !strings.EqualFold(t.Genre, q.Genre) {
			continue
		}
		if q.Mood != "" && !strings.EqualFold(t.Mood, q.Mood) {
			continue
		}
		if q.Search != "" && !matchesSearch(t, q.Search) {
			continue
		}
		filtered = append(filtered, t)
	}

	return truncate(filtered, q.Limit, c.defaultLimit), nil
}

// QueryRemixHistory answers a sorted, searched, truncated view over the
// remix-history collection. Same staleness and degradation behavior as
// QueryLibrary.
func (c *Cache) QueryRemixHistory(ctx context.Context, q RemixQuery) (*model.QueryResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureFreshLocked(ctx); err != nil {
		return &model.QueryResult{Tracks: []*model.Track{}, Degraded: true}, err
	}

	// Sort a copy; the cached snapshot keeps its order.
	tracks := make([]*model.Track, len(c.remixHistory))
	copy(tracks, c.remixHistory)

	switch q.Sort {
	case model.RemixSortRecent:
		sort.SliceStable(tracks, func(i, j int) bool {
			return tracks[i].DateCreated.After(tracks[j].DateCreated)
		})
	case model.RemixSortOldest:
		sort.SliceStable(tracks, func(i, j int) bool {
			return tracks[i].DateCreated.Before(tracks[j].DateCreated)
		})
	case model.RemixSortAlpha:
		sort.SliceStable(tracks, func(i, j int) bool {
			return tracks[i].Title < tracks[j].Title
		})
	}

	if q.Search != "" {
		searched := tracks[:0]
		for _, t := range tracks {
			if matchesSearch(t, q.Search) {
				searched = append(searched, t)
			}
		}
		tracks = searched
	}

	return truncate(tracks, q.Limit, c.defaultLimit), nil
}

// GetTrackByID looks the id up in both cached collections without forcing a
// refresh, library tracks first. A miss falls through to a direct fetch from
// the generator, whose result is returned verbatim.
func (c *Cache) GetTrackByID(ctx context.Context, id string) (*model.Track, error) {
	c.mu.Lock()
	for _, t := range c.libraryTracks {
		if t.ID == id {
			c.mu.Unlock()
			return t, nil
		}
	}
	for _, t := range c.remixHistory {
		if t.ID == id {
			c.mu.Unlock()
			return t, nil
		}
	}
	c.mu.Unlock()

	return c.gen.FetchOne(ctx, id)
}

// Refresh forces a full refresh regardless of staleness.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Cache) ensureFreshLocked(ctx context.Context) error {
	if len(c.libraryTracks) > 0 && c.now().Sub(c.lastRefreshedAt) <= c.ttl {
		return nil
	}
	return c.refreshLocked(ctx)
}

func (c *Cache) refreshLocked(ctx context.Context) error {
	tracks, err := c.gen.GenerateBatch(ctx, c.batchSize)
	if err != nil {
		// Prior snapshot and timestamp stay untouched so the next query
		// retries.
		return fmt.Errorf("library refresh failed: %w", err)
	}

	now := c.now()
	n := c.remixHistoryLen
	if n > len(tracks) {
		n = len(tracks)
	}
	remixes := make([]*model.Track, 0, n)
	for i := 0; i < n; i++ {
		r := tracks[i].Clone()
		r.Type = model.TrackTypeRemix
		r.Title = r.Title + " (Remix)"
		r.DateCreated = now.Add(-time.Duration(c.rng.Int63n(int64(remixHistoryWindow))))
		remixes = append(remixes, r)
	}

	c.libraryTracks = tracks
	c.remixHistory = remixes
	c.lastRefreshedAt = now

	logger.Info("library cache refreshed",
		logger.Int("tracks", len(tracks)),
		logger.Int("remixHistory", len(remixes)))
	return nil
}

func matchesType(t *model.Track, f model.LibraryFilter) bool {
	switch f {
	case model.LibraryFilterRemixes:
		return t.Type == model.TrackTypeRemix
	case model.LibraryFilterGenerated:
		return t.Type == model.TrackTypeGenerated
	default:
		return true
	}
}

func matchesSearch(t *model.Track, search string) bool {
	s := strings.ToLower(search)
	if strings.Contains(strings.ToLower(t.Title), s) {
		return true
	}
	return t.Description != "" && strings.Contains(strings.ToLower(t.Description), s)
}

func truncate(tracks []*model.Track, limit, defaultLimit int) *model.QueryResult {
	if limit <= 0 {
		limit = defaultLimit
	}
	total := len(tracks)
	if total > limit {
		tracks = tracks[:limit]
	}
	return &model.QueryResult{Tracks: tracks, Total: total}
}
