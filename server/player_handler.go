package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"compconv/core/audioload"
	"compconv/core/generator"
	"compconv/logger"
)

var nonAlphaNumeric = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]`)
var multipleSpaces = regexp.MustCompile(`\s+`)

// safeDownloadName builds a filesystem-safe filename from a track title.
func safeDownloadName(title string) string {
	base := strings.TrimSpace(title)
	if base == "" {
		base = "track"
	}
	base = multipleSpaces.ReplaceAllString(base, "_")
	base = nonAlphaNumeric.ReplaceAllString(base, "")
	if len(base) > 100 {
		base = base[:100]
	}
	if base == "" {
		base = "track"
	}
	return base
}

// PreloadRequest asks the loader to prepare a track for playback. URLs
// default to the track's recorded audio and fallback locations.
type PreloadRequest struct {
	TrackID      string   `json:"trackId"`
	AudioURL     string   `json:"audioUrl,omitempty"`
	FallbackURLs []string `json:"fallbackUrls,omitempty"`
}

// PreloadHandler answers POST /api/player/preload. Loading walks the
// fallback chain in the background; progress is pushed on /ws/loader.
func (h *APIHandler) PreloadHandler(w http.ResponseWriter, r *http.Request) {
	var req PreloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TrackID == "" {
		http.Error(w, "Missing 'trackId' in request", http.StatusBadRequest)
		return
	}

	if req.AudioURL == "" {
		track, err := h.library.GetTrackByID(r.Context(), req.TrackID)
		if errors.Is(err, generator.ErrTrackNotFound) {
			http.Error(w, "Track not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("preload track lookup failed", logger.String("trackId", req.TrackID), logger.ErrorField(err))
			http.Error(w, "Failed to resolve track", http.StatusBadGateway)
			return
		}
		req.AudioURL = track.AudioURL
		if len(req.FallbackURLs) == 0 {
			req.FallbackURLs = track.FallbackURLs
		}
	}

	go func() {
		// The request context dies with the response; loading continues in
		// the background.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		err := h.loader.Preload(ctx, req.TrackID, req.AudioURL, req.FallbackURLs, audioload.Events{
			OnProgress: func(id string, attempt int, url string) {
				h.events.Publish(LoaderEvent{Type: "loading", TrackID: id, Attempt: attempt, URL: url})
			},
			OnLoaded: func(id, url string) {
				h.events.Publish(LoaderEvent{Type: "loaded", TrackID: id, URL: url})
			},
			OnError: func(id string, err error) {
				h.events.Publish(LoaderEvent{Type: "error", TrackID: id, Error: err.Error()})
			},
		})
		if err != nil {
			logger.Error("preload failed", logger.String("trackId", req.TrackID), logger.ErrorField(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "loading",
		"trackId": req.TrackID,
	})
}

// PlayHandler answers POST /api/player/{id}/play.
func (h *APIHandler) PlayHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.loader.Play(r.Context(), id); err != nil {
		if errors.Is(err, audioload.ErrNotLoaded) {
			http.Error(w, "Track not loaded", http.StatusNotFound)
			return
		}
		logger.Error("playback failed", logger.String("trackId", id), logger.ErrorField(err))
		http.Error(w, "Playback failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "playing", "trackId": id})
}

// PauseHandler answers POST /api/player/{id}/pause. Pausing an unknown id
// is a no-op, matching the loader contract.
func (h *APIHandler) PauseHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.loader.Pause(id); err != nil {
		logger.Error("pause failed", logger.String("trackId", id), logger.ErrorField(err))
		http.Error(w, "Pause failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused", "trackId": id})
}

// DownloadHandler answers GET /api/player/{id}/download, streaming the
// loaded track as an mp3 attachment.
func (h *APIHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		if track, err := h.library.GetTrackByID(r.Context(), id); err == nil && track != nil {
			filename = track.Title
		}
	}
	filename = safeDownloadName(filename)

	if !h.loader.IsLoaded(id) {
		http.Error(w, "Track not loaded", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.mp3"`)
	if err := h.loader.Download(r.Context(), id, filename, w); err != nil {
		// Headers may already be written; log and drop the connection.
		logger.Error("download failed", logger.String("trackId", id), logger.ErrorField(err))
	}
}
