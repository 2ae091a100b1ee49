package server

import (
	"context"
	"encoding/json"
	"net/http"

	"compconv/cache"
	"compconv/core/generator"
	"compconv/logger"
)

// RemixHandler answers POST /api/generate/remix: a thin proxy to the
// generation service. On upstream failure it responds with canned sample
// audio flagged as a fallback rather than an error.
func (h *APIHandler) RemixHandler(w http.ResponseWriter, r *http.Request) {
	var req generator.RemixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.SourceURL == "" {
		http.Error(w, "Missing 'sourceUrl' in request", http.StatusBadRequest)
		return
	}

	result := h.generate(r.Context(), "remix", req, func(ctx context.Context) (*generator.GenerationResult, error) {
		return h.synth.Remix(ctx, req)
	}, h.cfg.SampleBaseURL+"/fallback-remix.mp3")
	writeJSON(w, http.StatusOK, result)
}

// SpeechHandler answers POST /api/generate/speech.
func (h *APIHandler) SpeechHandler(w http.ResponseWriter, r *http.Request) {
	var req generator.SpeechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "Missing 'text' in request", http.StatusBadRequest)
		return
	}

	result := h.generate(r.Context(), "speech", req, func(ctx context.Context) (*generator.GenerationResult, error) {
		return h.synth.Speech(ctx, req)
	}, h.cfg.SampleBaseURL+"/fallback-speech.mp3")
	writeJSON(w, http.StatusOK, result)
}

// generate runs one proxied generation call through the Redis response
// cache, substituting canned sample audio when the upstream fails.
func (h *APIHandler) generate(
	ctx context.Context,
	operation string,
	req interface{},
	call func(context.Context) (*generator.GenerationResult, error),
	fallbackURL string,
) *generator.GenerationResult {
	key, err := cache.GenerationCacheKey(operation, req)
	if err == nil {
		if cached, cerr := cache.GetGenerationResult(ctx, key); cerr == nil && cached != nil {
			logger.Debug("generation cache hit", logger.String("key", key))
			return cached
		}
	}

	result, err := call(ctx)
	if err != nil {
		logger.Error("generation upstream failed, serving canned sample",
			logger.String("operation", operation),
			logger.ErrorField(err))
		return &generator.GenerationResult{
			AudioURL: fallbackURL,
			Fallback: true,
		}
	}

	// Only real upstream results are worth caching.
	if key != "" && !result.Fallback {
		cache.PutGenerationResult(ctx, key, result, h.cfg.GenerationCacheTTL)
	}
	return result
}
