package model

// Outcome classifies the overall result of a search request. Failures of
// individual capabilities never surface as errors, only as outcome values.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeEmpty   Outcome = "empty"
	OutcomePartial Outcome = "partial"
	OutcomeBlocked Outcome = "blocked"
	OutcomeUnknown Outcome = "unknown"
)

// ResponseEntity is the caller-facing view of a surviving entity.
type ResponseEntity struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Canonical  string  `json:"canonical"`
	Confidence float64 `json:"confidence"`
}

// ResultItem is the caller-facing view of one ranked result.
type ResultItem struct {
	ObjectType string         `json:"object_type"`
	ObjectID   string         `json:"object_id"`
	MatchMode  MatchMode      `json:"match_mode"`
	FinalScore float64        `json:"final_score"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Response is the full envelope produced for one search request.
type Response struct {
	RequestID              string           `json:"request_id"`
	Entities               []ResponseEntity `json:"entities"`
	NeedsAI                bool             `json:"needs_ai"`
	CoveragePct            float64          `json:"coverage_pct"`
	Results                []ResultItem     `json:"results"`
	Outcome                Outcome          `json:"outcome"`
	CapabilitiesConsidered []string         `json:"capabilities_considered"`
	CapabilitiesExecuted   []string         `json:"capabilities_executed"`
	CapabilitiesBlocked    []string         `json:"capabilities_blocked"`
	CapabilitiesTimedOut   []string         `json:"capabilities_timed_out"`
	PartialResults         bool             `json:"partial_results"`
	DurationMS             int64            `json:"duration_ms"`
}
