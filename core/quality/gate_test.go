package quality

import (
	"context"
	"errors"
	"testing"

	"compconv/core/generator"
	"compconv/model"
)

type fakeTrackSource struct {
	track *model.Track
	err   error
}

func (f *fakeTrackSource) GetTrackByID(ctx context.Context, id string) (*model.Track, error) {
	return f.track, f.err
}

type fakeVerifier struct {
	report *model.VerificationReport
	err    error
	calls  int
}

func (f *fakeVerifier) Verify(ctx context.Context, audioURL, profile string) (*model.VerificationReport, error) {
	f.calls++
	return f.report, f.err
}

type fakeFetcher struct {
	track *model.Track
	err   error
	calls int
}

func (f *fakeFetcher) GenerateBatch(ctx context.Context, count int) ([]*model.Track, error) {
	return nil, errors.New("not used")
}

func (f *fakeFetcher) FetchOne(ctx context.Context, id string) (*model.Track, error) {
	f.calls++
	return f.track, f.err
}

func testTrack(score int) *model.Track {
	return &model.Track{
		ID:           "t1",
		Title:        "Neon Skyline",
		Type:         model.TrackTypeGenerated,
		AudioURL:     "http://audio.test/t1.mp3",
		QualityScore: score,
	}
}

func TestVerifyTrackQualityPassesVerdictThrough(t *testing.T) {
	tests := []struct {
		name   string
		report *model.VerificationReport
	}{
		{
			name:   "passing report",
			report: &model.VerificationReport{Passes: true, QualityScore: 88},
		},
		{
			name:   "failing report",
			report: &model.VerificationReport{Passes: false, QualityScore: 32, Issues: []string{"clipping"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewGate(
				&fakeTrackSource{track: testTrack(45)},
				&fakeVerifier{report: tt.report},
				&fakeFetcher{},
			)
			res := gate.VerifyTrackQuality(context.Background(), "t1")

			if res.IsQualityVerified != tt.report.Passes {
				t.Errorf("verified = %v, want %v", res.IsQualityVerified, tt.report.Passes)
			}
			if res.QualityScore != tt.report.QualityScore {
				t.Errorf("score = %d, want %d", res.QualityScore, tt.report.QualityScore)
			}
			if res.Track == nil || res.Track.ID != "t1" {
				t.Error("track not attached")
			}
			if len(res.Issues) != len(tt.report.Issues) {
				t.Errorf("issues = %v, want %v", res.Issues, tt.report.Issues)
			}
		})
	}
}

func TestVerifyTrackQualityNotFoundIsTerminal(t *testing.T) {
	fetcher := &fakeFetcher{track: testTrack(90)}
	gate := NewGate(
		&fakeTrackSource{err: generator.ErrTrackNotFound},
		&fakeVerifier{},
		fetcher,
	)
	res := gate.VerifyTrackQuality(context.Background(), "missing")

	if res.IsQualityVerified || res.QualityScore != 0 || res.Track != nil {
		t.Fatalf("expected terminal empty result, got %+v", res)
	}
	if len(res.Issues) != 1 || res.Issues[0] != "Track not found" {
		t.Fatalf("issues = %v, want [Track not found]", res.Issues)
	}
	if fetcher.calls != 0 {
		t.Fatal("not-found must not attempt the fetch fallback")
	}
}

func TestVerifyTrackQualityVerifierErrorAppliesFloor(t *testing.T) {
	tests := []struct {
		name        string
		cachedScore int
		wantScore   int
	}{
		{name: "below floor is raised", cachedScore: 45, wantScore: 60},
		{name: "above floor is kept", cachedScore: 82, wantScore: 82},
		{name: "unscored gets the floor", cachedScore: 0, wantScore: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewGate(
				&fakeTrackSource{track: testTrack(tt.cachedScore)},
				&fakeVerifier{err: errors.New("verifier offline")},
				&fakeFetcher{},
			)
			res := gate.VerifyTrackQuality(context.Background(), "t1")

			if res.IsQualityVerified {
				t.Error("verifier error must not report verified")
			}
			if res.QualityScore != tt.wantScore {
				t.Errorf("score = %d, want %d", res.QualityScore, tt.wantScore)
			}
			if res.Track == nil {
				t.Error("track must stay attached on verifier error")
			}
			if len(res.Issues) != 1 || res.Issues[0] != "verifier offline" {
				t.Errorf("issues = %v, want the verifier error", res.Issues)
			}
		})
	}
}

func TestVerifyTrackQualityFallbackFetch(t *testing.T) {
	resolveErr := errors.New("cache lookup exploded")

	t.Run("fallback fetch succeeds", func(t *testing.T) {
		fetcher := &fakeFetcher{track: testTrack(90)}
		verifier := &fakeVerifier{}
		gate := NewGate(&fakeTrackSource{err: resolveErr}, verifier, fetcher)
		res := gate.VerifyTrackQuality(context.Background(), "t1")

		if fetcher.calls != 1 {
			t.Fatalf("expected exactly one fallback fetch, got %d", fetcher.calls)
		}
		if verifier.calls != 0 {
			t.Fatal("fallback tier must not re-run the verifier")
		}
		if res.IsQualityVerified {
			t.Error("fallback result must not report verified")
		}
		if res.QualityScore != 70 {
			t.Errorf("score = %d, want 70", res.QualityScore)
		}
		if res.Track == nil || res.Track.ID != "t1" {
			t.Error("fetched track not attached")
		}
		if len(res.Issues) == 0 {
			t.Error("fallback use must be noted in issues")
		}
	})

	t.Run("fallback fetch also fails", func(t *testing.T) {
		fetcher := &fakeFetcher{err: errors.New("generator down")}
		gate := NewGate(&fakeTrackSource{err: resolveErr}, &fakeVerifier{}, fetcher)
		res := gate.VerifyTrackQuality(context.Background(), "t1")

		if res.IsQualityVerified || res.QualityScore != 0 || res.Track != nil {
			t.Fatalf("expected terminal empty result, got %+v", res)
		}
		if len(res.Issues) != 1 || res.Issues[0] != "Failed to get track or fallback" {
			t.Fatalf("issues = %v", res.Issues)
		}
	})
}
