package model

// MatchMode is the precision tier of how a row matched the query. Its rank is
// the primary ranking key and the primary merge tie-break.
type MatchMode string

const (
	MatchExactID        MatchMode = "exact_id"
	MatchExactCanonical MatchMode = "exact_canonical"
	MatchExactText      MatchMode = "exact_text"
	MatchFuzzy          MatchMode = "fuzzy"
	MatchVector         MatchMode = "vector"
)

// Rank returns the ordering weight of the mode; higher is more precise.
// Unknown modes rank below vector so malformed rows sink rather than float.
func (m MatchMode) Rank() int {
	switch m {
	case MatchExactID:
		return 5
	case MatchExactCanonical:
		return 4
	case MatchExactText:
		return 3
	case MatchFuzzy:
		return 2
	case MatchVector:
		return 1
	default:
		return 0
	}
}

// Row is a single result row from one capability. (ObjectType, ObjectID) is
// the deduplication identity key across capabilities.
type Row struct {
	ObjectType  string         `json:"object_type"`
	ObjectID    string         `json:"object_id"`
	MatchMode   MatchMode      `json:"match_mode"`
	RawScore    float64        `json:"raw_score"`
	MatchedTerm string         `json:"matched_term,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// IdentityKey returns the deduplication key for the row.
func (r Row) IdentityKey() string { return r.ObjectType + "/" + r.ObjectID }

// RankedResult is one identity-resolved row with its final score and the
// capabilities that contributed it. Immutable once scored.
type RankedResult struct {
	Row          Row      `json:"row"`
	FinalScore   float64  `json:"final_score"`
	Capabilities []string `json:"contributing_capabilities"`
}
