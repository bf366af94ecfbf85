package models

import "time"

// SignalType is the closed set of pain/opportunity classifications a
// Snippet may carry. Any value outside this set is coerced to
// SignalComplaint during extraction parsing (see pkg/extraction).
type SignalType string

// The nine closed-set signal types (§3, §8 of the spec).
const (
	SignalComplaint   SignalType = "complaint"
	SignalWish        SignalType = "wish"
	SignalWorkaround  SignalType = "workaround"
	SignalSwitch      SignalType = "switch"
	SignalBug         SignalType = "bug"
	SignalPricing     SignalType = "pricing"
	SignalSupport     SignalType = "support"
	SignalIntegration SignalType = "integration"
	SignalWorkflow    SignalType = "workflow"
)

// ValidSignalTypes is the closed set used by extraction validation.
var ValidSignalTypes = map[SignalType]bool{
	SignalComplaint:   true,
	SignalWish:        true,
	SignalWorkaround:  true,
	SignalSwitch:      true,
	SignalBug:         true,
	SignalPricing:     true,
	SignalSupport:     true,
	SignalIntegration: true,
	SignalWorkflow:    true,
}

// CoerceSignalType maps an arbitrary string onto the closed set, defaulting
// to SignalComplaint when it doesn't match (§3 invariant).
func CoerceSignalType(s string) SignalType {
	st := SignalType(s)
	if ValidSignalTypes[st] {
		return st
	}
	return SignalComplaint
}

// Snippet is a single pain/opportunity observation extracted from one
// Document by the extraction pipeline (§4.10).
type Snippet struct {
	SnippetID        string     `json:"snippet_id"`
	DocID            string     `json:"doc_id"`
	Excerpt          string     `json:"excerpt"`
	PainStatement    string     `json:"pain_statement"`
	SignalType       SignalType `json:"signal_type"`
	Intensity        int        `json:"intensity"`  // [1..5]
	Confidence       float64    `json:"confidence"` // [0.0,1.0]
	QualityScore     float64    `json:"quality_score"`
	Entities         []string   `json:"entities"`
	ExtractorModel   string     `json:"extractor_model"`
	PromptVersion    string     `json:"prompt_version"`
	ExtractedAt      time.Time  `json:"extracted_at"`
}

// ClampIntensity bounds intensity to [1,5], truncating toward zero rather
// than rounding (matching original_source/src/scout/extraction/extractor.py's
// int(self._clamp(...)) behavior: 4.9 yields 4, not 5).
func ClampIntensity(v float64) int {
	i := int(v)
	if i < 1 {
		return 1
	}
	if i > 5 {
		return 5
	}
	return i
}

// Clamp01 bounds a float to [0.0, 1.0].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// QualityScoreOf computes the composite quality score from normalized
// intensity, confidence and novelty (§4.10 Stage 3):
// quality = 0.4*normalized_intensity + 0.4*confidence + 0.2*novelty.
func QualityScoreOf(intensity int, confidence, novelty float64) float64 {
	normIntensity := float64(intensity-1) / 4.0 // intensity in [1,5] -> [0,1]
	return Clamp01(0.4*normIntensity + 0.4*Clamp01(confidence) + 0.2*Clamp01(novelty))
}
