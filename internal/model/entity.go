package model

// EntityType names the vocabulary a match came from (equipment, symptom, ...).
type EntityType string

// Entity types known to the capability planner. The confidence filter requires
// an explicit threshold for every one of these; see config.Validate.
const (
	EntityEquipment   EntityType = "equipment"
	EntitySymptom     EntityType = "symptom"
	EntitySeverity    EntityType = "severity"
	EntityPart        EntityType = "part"
	EntityStockStatus EntityType = "stock_status"
	EntityLocation    EntityType = "location"
	EntityFaultCode   EntityType = "fault_code"
)

// EntitySource records which matcher produced an entity.
type EntitySource string

const (
	SourceGazetteer EntitySource = "gazetteer"
	SourceRegex     EntitySource = "regex"
	SourceFuzzy     EntitySource = "fuzzy"
	SourceAI        EntitySource = "ai"
)

// Span is a half-open character (rune) interval [Start, End) into the query.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of characters the span covers.
func (s Span) Len() int { return s.End - s.Start }

// Overlaps reports whether the two spans share at least one character.
func (s Span) Overlaps(o Span) bool { return s.Start < o.End && o.Start < s.End }

// Contains reports whether s fully contains o.
func (s Span) Contains(o Span) bool { return s.Start <= o.Start && s.End >= o.End }

// Entity is a single typed match within the query text.
type Entity struct {
	Text       string       `json:"text"`
	Type       EntityType   `json:"type"`
	Canonical  string       `json:"canonical"`
	Span       Span         `json:"span"`
	Confidence float64      `json:"confidence"`
	Source     EntitySource `json:"source"`
}

// ConflictPair is a true partial overlap between entities of different types.
// Containment (one span inside the other) is never a conflict — nested
// gazetteer matches are expected, e.g. a severity word inside a symptom phrase.
type ConflictPair struct {
	A Entity `json:"a"`
	B Entity `json:"b"`
}

// CoverageReport summarizes how much of the query the surviving entities
// explain. Whitespace is excluded from both sides of the ratio.
type CoverageReport struct {
	CoveredChars    int            `json:"covered_chars"`
	TotalChars      int            `json:"total_chars"`
	CoveragePct     float64        `json:"coverage_pct"`
	Conflicts       []ConflictPair `json:"conflicts,omitempty"`
	UncoveredRanges []Span         `json:"uncovered_ranges,omitempty"`
}
