package model

// EffectPreset is a named set of cosmetic effect parameters applied in the
// browser. The backend only stores and serves presets; no signal processing
// happens here.
type EffectPreset struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Params      map[string]float64 `json:"params"`
}
