package model

// VerificationReport is the raw answer from the quality-verification
// service for a single audio asset.
type VerificationReport struct {
	Passes       bool              `json:"passes"`
	QualityScore int               `json:"qualityScore"`
	Issues       []string          `json:"issues,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// QualityResult is the outward-facing judgment for a track. It is always
// fully populated; failures degrade the score and fill Issues instead of
// surfacing an error.
type QualityResult struct {
	IsQualityVerified bool     `json:"isQualityVerified"`
	QualityScore      int      `json:"qualityScore"`
	Track             *Track   `json:"track"`
	Issues            []string `json:"issues,omitempty"`
}
