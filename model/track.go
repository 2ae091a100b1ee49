package model

import "time"

// TrackType distinguishes freshly generated tracks from remixes.
type TrackType string

const (
	TrackTypeGenerated TrackType = "generated"
	TrackTypeRemix     TrackType = "remix"
)

// Track represents a unit of audio content in the library.
type Track struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Type         TrackType `json:"type"`
	Genre        string    `json:"genre"`
	Mood         string    `json:"mood"`
	DateCreated  time.Time `json:"dateCreated"`
	AudioURL     string    `json:"audioUrl"`
	FallbackURLs []string  `json:"fallbackUrls,omitempty"`
	QualityScore int       `json:"qualityScore"` // 0-100 confidence estimate
}

// Clone returns a shallow copy of the track. The fallback URL slice is
// shared; tracks are treated as read-only once created.
func (t *Track) Clone() *Track {
	c := *t
	return &c
}
