package generator

import (
	"context"
	"errors"

	"compconv/model"
)

// ErrTrackNotFound is returned when the generation service has no track for
// the requested id.
var ErrTrackNotFound = errors.New("track not found")

// Generator produces tracks from the external composition service.
type Generator interface {
	// GenerateBatch requests count freshly generated tracks.
	GenerateBatch(ctx context.Context, count int) ([]*model.Track, error)
	// FetchOne fetches a single track by id. Returns ErrTrackNotFound when
	// the service does not know the id.
	FetchOne(ctx context.Context, id string) (*model.Track, error)
}

// RemixRequest asks the generation service to remix an existing recording.
type RemixRequest struct {
	SourceURL string  `json:"sourceUrl"`
	Style     string  `json:"style"`
	Intensity float64 `json:"intensity,omitempty"`
}

// SpeechRequest asks the generation service to synthesize speech.
type SpeechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// GenerationResult is the outcome of a remix or speech request. Fallback is
// set when the upstream call failed and canned sample audio was substituted.
type GenerationResult struct {
	AudioURL string  `json:"audioUrl"`
	Duration float64 `json:"duration,omitempty"`
	Fallback bool    `json:"fallback,omitempty"`
}

// Synthesizer covers the thin proxy operations exposed by the generate API
// routes.
type Synthesizer interface {
	Remix(ctx context.Context, req RemixRequest) (*GenerationResult, error)
	Speech(ctx context.Context, req SpeechRequest) (*GenerationResult, error)
}
