package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"compconv/config"
	"compconv/core/audioload"
	"compconv/core/auth"
	"compconv/core/generator"
	"compconv/core/library"
	"compconv/core/preset"
	"compconv/core/quality"
	"compconv/model"
)

type fakeGen struct {
	tracks     []*model.Track
	batchErr   error
	fetchTrack *model.Track
	fetchErr   error

	remixResult  *generator.GenerationResult
	speechResult *generator.GenerationResult
	synthErr     error
}

func (g *fakeGen) GenerateBatch(ctx context.Context, count int) ([]*model.Track, error) {
	if g.batchErr != nil {
		return nil, g.batchErr
	}
	return g.tracks, nil
}

func (g *fakeGen) FetchOne(ctx context.Context, id string) (*model.Track, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	if g.fetchTrack != nil {
		return g.fetchTrack, nil
	}
	return nil, generator.ErrTrackNotFound
}

func (g *fakeGen) Remix(ctx context.Context, req generator.RemixRequest) (*generator.GenerationResult, error) {
	if g.synthErr != nil {
		return nil, g.synthErr
	}
	return g.remixResult, nil
}

func (g *fakeGen) Speech(ctx context.Context, req generator.SpeechRequest) (*generator.GenerationResult, error) {
	if g.synthErr != nil {
		return nil, g.synthErr
	}
	return g.speechResult, nil
}

type fakeVerifier struct {
	report *model.VerificationReport
	err    error
}

func (v *fakeVerifier) Verify(ctx context.Context, audioURL, profile string) (*model.VerificationReport, error) {
	return v.report, v.err
}

type stubHandle struct {
	source string
}

func (h *stubHandle) Play() error                { return nil }
func (h *stubHandle) Pause() error               { return nil }
func (h *stubHandle) SeekStart() error           { return nil }
func (h *stubHandle) Source() string             { return h.source }
func (h *stubHandle) SetSource(url string) error { h.source = url; return nil }
func (h *stubHandle) Close() error               { return nil }

type stubBackend struct{}

func (stubBackend) Load(ctx context.Context, url string) (audioload.Handle, error) {
	return &stubHandle{source: url}, nil
}

func serverTrack(id, title, genre, mood string, typ model.TrackType) *model.Track {
	return &model.Track{
		ID:          id,
		Title:       title,
		Type:        typ,
		Genre:       genre,
		Mood:        mood,
		DateCreated: time.Now(),
		AudioURL:    "http://audio.test/" + id + ".mp3",
	}
}

type testEnv struct {
	handler *APIHandler
	router  *mux.Router
	loader  *audioload.Loader
	issuer  *auth.TokenIssuer
}

func newTestEnv(t *testing.T, gen *fakeGen, verifier quality.Verifier) *testEnv {
	t.Helper()

	lib := library.New(gen, library.Options{Seed: 1})
	if verifier == nil {
		verifier = quality.MockVerifier{}
	}
	gate := quality.NewGate(lib, verifier, gen)
	loader := audioload.NewLoader(stubBackend{}, audioload.Config{RetryDelay: time.Millisecond})
	t.Cleanup(loader.Cleanup)

	presets := preset.NewStore(t.TempDir())
	if err := presets.Load(); err != nil {
		t.Fatalf("load presets: %v", err)
	}

	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	hash, err := auth.HashPassword("letmein")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	events := NewEventHub()
	t.Cleanup(events.Close)

	cfg := &config.Config{
		SampleBaseURL:      "/samples",
		GenerationCacheTTL: time.Minute,
	}

	h := NewAPIHandler(lib, gate, loader, gen, presets, issuer, events, cfg, hash)

	router := mux.NewRouter()
	router.HandleFunc("/api/library", h.GetLibraryHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/library/remixes", h.GetRemixHistoryHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", h.GetTrackHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}/verify", h.VerifyTrackHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/generate/remix", h.AuthMiddleware(h.RemixHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/generate/speech", h.AuthMiddleware(h.SpeechHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/preload", h.AuthMiddleware(h.PreloadHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/{id}/play", h.AuthMiddleware(h.PlayHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/player/{id}/pause", h.AuthMiddleware(h.PauseHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/presets", h.GetPresetsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/auth/login", h.LoginHandler).Methods(http.MethodPost)

	return &testEnv{handler: h, router: router, loader: loader, issuer: issuer}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	token, err := e.issuer.GenerateToken("alice")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestGetLibraryHandlerFilters(t *testing.T) {
	gen := &fakeGen{tracks: []*model.Track{
		serverTrack("t1", "Neon Drift", "House", "Energetic", model.TrackTypeGenerated),
		serverTrack("t2", "Midnight Echo", "Techno", "Dark", model.TrackTypeGenerated),
		serverTrack("t3", "Solar Bloom", "House", "Uplifting", model.TrackTypeGenerated),
	}}
	env := newTestEnv(t, gen, nil)

	rec := env.do(t, http.MethodGet, "/api/library?genre=house", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var result model.QueryResult
	decodeBody(t, rec, &result)
	if result.Total != 2 {
		t.Errorf("total = %d, want 2", result.Total)
	}
	if result.Degraded {
		t.Error("result unexpectedly degraded")
	}
	for _, tr := range result.Tracks {
		if tr.Genre != "House" {
			t.Errorf("track %s has genre %q, want House", tr.ID, tr.Genre)
		}
	}
}

func TestGetLibraryHandlerDegraded(t *testing.T) {
	gen := &fakeGen{batchErr: errors.New("upstream down")}
	env := newTestEnv(t, gen, nil)

	rec := env.do(t, http.MethodGet, "/api/library", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 on degraded result", rec.Code)
	}

	var result model.QueryResult
	decodeBody(t, rec, &result)
	if !result.Degraded {
		t.Error("degraded flag not set")
	}
	if len(result.Tracks) != 0 {
		t.Errorf("got %d tracks, want 0", len(result.Tracks))
	}
}

func TestGetRemixHistoryHandler(t *testing.T) {
	gen := &fakeGen{tracks: []*model.Track{
		serverTrack("t1", "Neon Drift", "House", "Energetic", model.TrackTypeGenerated),
		serverTrack("t2", "Midnight Echo", "Techno", "Dark", model.TrackTypeGenerated),
	}}
	env := newTestEnv(t, gen, nil)

	rec := env.do(t, http.MethodGet, "/api/library/remixes?filter=a-z", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var result model.QueryResult
	decodeBody(t, rec, &result)
	if result.Total != 2 {
		t.Fatalf("total = %d, want 2", result.Total)
	}
	for i, tr := range result.Tracks {
		if tr.Type != model.TrackTypeRemix {
			t.Errorf("track %d type = %q, want remix", i, tr.Type)
		}
	}
	if result.Tracks[0].Title > result.Tracks[1].Title {
		t.Errorf("titles not alphabetical: %q before %q", result.Tracks[0].Title, result.Tracks[1].Title)
	}
}

func TestGetTrackHandler(t *testing.T) {
	gen := &fakeGen{fetchTrack: serverTrack("t9", "Afterglow", "Trance", "Euphoric", model.TrackTypeGenerated)}
	env := newTestEnv(t, gen, nil)

	rec := env.do(t, http.MethodGet, "/api/tracks/t9", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var track model.Track
	decodeBody(t, rec, &track)
	if track.ID != "t9" {
		t.Errorf("id = %q, want t9", track.ID)
	}
}

func TestGetTrackHandlerNotFound(t *testing.T) {
	gen := &fakeGen{fetchErr: generator.ErrTrackNotFound}
	env := newTestEnv(t, gen, nil)

	rec := env.do(t, http.MethodGet, "/api/tracks/missing", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestVerifyTrackHandlerAlways200(t *testing.T) {
	tests := []struct {
		name     string
		gen      *fakeGen
		verifier quality.Verifier
		verified bool
		issue    string
	}{
		{
			name: "passing track",
			gen:  &fakeGen{fetchTrack: serverTrack("t1", "Neon Drift", "House", "Energetic", model.TrackTypeGenerated)},
			verifier: &fakeVerifier{report: &model.VerificationReport{
				Passes: true, QualityScore: 88,
			}},
			verified: true,
		},
		{
			name:     "track not found",
			gen:      &fakeGen{fetchErr: generator.ErrTrackNotFound},
			verifier: &fakeVerifier{},
			issue:    "Track not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.gen, tt.verifier)

			rec := env.do(t, http.MethodGet, "/api/tracks/t1/verify", nil, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}

			var result model.QualityResult
			decodeBody(t, rec, &result)
			if result.IsQualityVerified != tt.verified {
				t.Errorf("isQualityVerified = %v, want %v", result.IsQualityVerified, tt.verified)
			}
			if tt.issue != "" {
				if len(result.Issues) == 0 || result.Issues[0] != tt.issue {
					t.Errorf("issues = %v, want [%q]", result.Issues, tt.issue)
				}
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	env := newTestEnv(t, &fakeGen{}, nil)

	rec := env.do(t, http.MethodPost, "/api/auth/login", LoginRequest{Username: "alice", Password: "letmein"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &body)
	if body.Token == "" {
		t.Fatal("no token in response")
	}
	if _, err := env.issuer.ParseToken(body.Token); err != nil {
		t.Errorf("issued token does not parse: %v", err)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", LoginRequest{Username: "alice", Password: "wrong"}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, &fakeGen{}, nil)

	rec := env.do(t, http.MethodPost, "/api/player/x/pause", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/player/x/pause", nil, "garbage")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/player/x/pause", nil, env.token(t))
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", rec.Code)
	}
}

func TestRemixHandler(t *testing.T) {
	gen := &fakeGen{remixResult: &generator.GenerationResult{AudioURL: "http://cdn.test/remix.mp3", Duration: 42}}
	env := newTestEnv(t, gen, nil)

	rec := env.do(t, http.MethodPost, "/api/generate/remix",
		generator.RemixRequest{SourceURL: "http://audio.test/src.mp3", Style: "edm"}, env.token(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var result generator.GenerationResult
	decodeBody(t, rec, &result)
	if result.AudioURL != "http://cdn.test/remix.mp3" || result.Fallback {
		t.Errorf("result = %+v, want upstream URL without fallback", result)
	}
}

func TestRemixHandlerFallsBackToSample(t *testing.T) {
	gen := &fakeGen{synthErr: errors.New("upstream timeout")}
	env := newTestEnv(t, gen, nil)

	rec := env.do(t, http.MethodPost, "/api/generate/remix",
		generator.RemixRequest{SourceURL: "http://audio.test/src.mp3"}, env.token(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with canned fallback", rec.Code)
	}

	var result generator.GenerationResult
	decodeBody(t, rec, &result)
	if !result.Fallback {
		t.Error("fallback flag not set")
	}
	if result.AudioURL != "/samples/fallback-remix.mp3" {
		t.Errorf("audioUrl = %q, want /samples/fallback-remix.mp3", result.AudioURL)
	}
}

func TestSpeechHandlerValidation(t *testing.T) {
	env := newTestEnv(t, &fakeGen{}, nil)

	rec := env.do(t, http.MethodPost, "/api/generate/speech", generator.SpeechRequest{Voice: "calm"}, env.token(t))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing text: status = %d, want 400", rec.Code)
	}
}

func TestPreloadThenPlay(t *testing.T) {
	env := newTestEnv(t, &fakeGen{}, nil)
	token := env.token(t)

	rec := env.do(t, http.MethodPost, "/api/player/preload",
		PreloadRequest{TrackID: "t1", AudioURL: "http://audio.test/t1.mp3"}, token)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("preload status = %d, want 202", rec.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !env.loader.IsLoaded("t1") {
		if time.Now().After(deadline) {
			t.Fatal("track never finished loading")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec = env.do(t, http.MethodPost, "/api/player/t1/play", nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("play status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestPlayHandlerNotLoaded(t *testing.T) {
	env := newTestEnv(t, &fakeGen{}, nil)

	rec := env.do(t, http.MethodPost, "/api/player/nope/play", nil, env.token(t))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetPresetsHandler(t *testing.T) {
	env := newTestEnv(t, &fakeGen{}, nil)

	rec := env.do(t, http.MethodGet, "/api/presets", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Presets []model.EffectPreset `json:"presets"`
	}
	decodeBody(t, rec, &body)
	if len(body.Presets) != 0 {
		t.Errorf("got %d presets from empty dir, want 0", len(body.Presets))
	}
}

func TestSafeDownloadName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Neon Drift (Remix)", "Neon_Drift_Remix"},
		{"", "track"},
		{"***", "track"},
		{"already-safe.name", "already-safe.name"},
	}
	for _, tt := range tests {
		if got := safeDownloadName(tt.in); got != tt.want {
			t.Errorf("safeDownloadName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
