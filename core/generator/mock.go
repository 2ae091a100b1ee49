package generator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"compconv/model"
)

var sampleTitles = []string{
	"Neon Skyline", "Midnight Circuit", "Ambient Dawn", "Pulse Garden",
	"Glass Horizon", "Velvet Static", "Echo Chamber", "Solar Drift",
	"Night Frequency", "Crystal Loop", "Deep Current", "Aurora Lines",
	"Phantom Groove", "Silver Cascade", "Lunar Tide", "Electric Meadow",
}

var sampleGenres = []string{"house", "techno", "trance", "ambient", "drum and bass", "synthwave"}

var sampleMoods = []string{"energetic", "calm", "dark", "uplifting", "melancholic"}

var sampleDescriptions = []string{
	"Driving four-on-the-floor with layered synth stabs.",
	"Slow ambient pads over a distant arpeggio.",
	"Hypnotic bassline with shimmering hi-hats.",
	"Warm analog chords and tape-saturated drums.",
	"Sparse percussion under an evolving drone.",
}

// Mock is an in-process stand-in for the generation service. It is used
// when no GENERATION_API_URL is configured and by tests: the original
// sample-library mode of the application.
type Mock struct {
	mu        sync.Mutex
	rng       *rand.Rand
	sampleURL string // base URL for sample audio objects
	tracks    map[string]*model.Track
}

// NewMock creates a mock generator. sampleURL is the base location of the
// canned sample audio objects, e.g. "/samples".
func NewMock(sampleURL string, seed int64) *Mock {
	return &Mock{
		rng:       rand.New(rand.NewSource(seed)),
		sampleURL: sampleURL,
		tracks:    make(map[string]*model.Track),
	}
}

func (m *Mock) synthesize(id string, index int) *model.Track {
	title := sampleTitles[m.rng.Intn(len(sampleTitles))]
	genre := sampleGenres[m.rng.Intn(len(sampleGenres))]
	sample := fmt.Sprintf("%s/sample-%02d.mp3", m.sampleURL, m.rng.Intn(8)+1)
	return &model.Track{
		ID:          id,
		Title:       title,
		Description: sampleDescriptions[m.rng.Intn(len(sampleDescriptions))],
		Type:        model.TrackTypeGenerated,
		Genre:       genre,
		Mood:        sampleMoods[m.rng.Intn(len(sampleMoods))],
		// Most recently generated first.
		DateCreated:  time.Now().Add(-time.Duration(index) * time.Minute),
		AudioURL:     sample,
		FallbackURLs: []string{m.sampleURL + "/fallback-1.mp3", m.sampleURL + "/fallback-2.mp3"},
		QualityScore: 55 + m.rng.Intn(41),
	}
}

// GenerateBatch produces count sample tracks, newest first.
func (m *Mock) GenerateBatch(ctx context.Context, count int) ([]*model.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tracks := make([]*model.Track, 0, count)
	for i := 0; i < count; i++ {
		t := m.synthesize(uuid.NewString(), i)
		m.tracks[t.ID] = t
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// FetchOne returns a previously generated track, or synthesizes a fresh one
// for an unknown id the way the sample API routes did.
func (m *Mock) FetchOne(ctx context.Context, id string) (*model.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.tracks[id]; ok {
		return t, nil
	}
	t := m.synthesize(id, 0)
	m.tracks[id] = t
	return t, nil
}

// Remix returns canned sample audio flagged as a fallback result.
func (m *Mock) Remix(ctx context.Context, req RemixRequest) (*GenerationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &GenerationResult{
		AudioURL: fmt.Sprintf("%s/remix-sample-%02d.mp3", m.sampleURL, m.rng.Intn(4)+1),
		Duration: 180,
		Fallback: true,
	}, nil
}

// Speech returns canned sample audio flagged as a fallback result.
func (m *Mock) Speech(ctx context.Context, req SpeechRequest) (*GenerationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &GenerationResult{
		AudioURL: m.sampleURL + "/speech-sample.mp3",
		Duration: 30,
		Fallback: true,
	}, nil
}
