package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"compconv/config"
	"compconv/core/audioload"
	"compconv/core/auth"
	"compconv/core/generator"
	"compconv/core/library"
	"compconv/core/preset"
	"compconv/core/quality"
	"compconv/logger"
	"compconv/model"
)

// APIHandler handles all API requests.
type APIHandler struct {
	library *library.Cache
	gate    *quality.Gate
	loader  *audioload.Loader
	synth   generator.Synthesizer
	presets *preset.Store
	issuer  *auth.TokenIssuer
	events  *EventHub
	cfg     *config.Config

	demoPasswordHash string
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(
	lib *library.Cache,
	gate *quality.Gate,
	loader *audioload.Loader,
	synth generator.Synthesizer,
	presets *preset.Store,
	issuer *auth.TokenIssuer,
	events *EventHub,
	cfg *config.Config,
	demoPasswordHash string,
) *APIHandler {
	return &APIHandler{
		library:          lib,
		gate:             gate,
		loader:           loader,
		synth:            synth,
		presets:          presets,
		issuer:           issuer,
		events:           events,
		cfg:              cfg,
		demoPasswordHash: demoPasswordHash,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return limit
}

// GetLibraryHandler answers GET /api/library. A failed refresh is logged
// and served as a degraded empty result, never a 5xx.
func (h *APIHandler) GetLibraryHandler(w http.ResponseWriter, r *http.Request) {
	q := library.LibraryQuery{
		Filter: model.ParseLibraryFilter(r.URL.Query().Get("filter")),
		Genre:  r.URL.Query().Get("genre"),
		Mood:   r.URL.Query().Get("mood"),
		Search: r.URL.Query().Get("search"),
		Limit:  parseLimit(r),
	}

	result, err := h.library.QueryLibrary(r.Context(), q)
	if err != nil {
		logger.Error("library query degraded", logger.ErrorField(err))
	}
	writeJSON(w, http.StatusOK, result)
}

// GetRemixHistoryHandler answers GET /api/library/remixes.
func (h *APIHandler) GetRemixHistoryHandler(w http.ResponseWriter, r *http.Request) {
	q := library.RemixQuery{
		Sort:   model.ParseRemixSort(r.URL.Query().Get("filter")),
		Search: r.URL.Query().Get("search"),
		Limit:  parseLimit(r),
	}

	result, err := h.library.QueryRemixHistory(r.Context(), q)
	if err != nil {
		logger.Error("remix history query degraded", logger.ErrorField(err))
	}
	writeJSON(w, http.StatusOK, result)
}

// GetTrackHandler answers GET /api/tracks/{id}.
func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	track, err := h.library.GetTrackByID(r.Context(), id)
	if errors.Is(err, generator.ErrTrackNotFound) {
		http.Error(w, "Track not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("track lookup failed", logger.String("trackId", id), logger.ErrorField(err))
		http.Error(w, "Failed to fetch track", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, track)
}

// VerifyTrackHandler answers GET /api/tracks/{id}/verify. The gate always
// produces a typed result, so this is always a 200.
func (h *APIHandler) VerifyTrackHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	writeJSON(w, http.StatusOK, h.gate.VerifyTrackQuality(r.Context(), id))
}

// GetPresetsHandler answers GET /api/presets.
func (h *APIHandler) GetPresetsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"presets": h.presets.Presets(),
	})
}
