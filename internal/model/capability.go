package model

import "time"

// Capability is an independently executable query plan against one table.
// Available=false marks a capability whose backing table is known empty or
// disabled; it is excluded from execution but reported as blocked.
type Capability struct {
	ID          string        `json:"id"`
	TableTarget string        `json:"table_target"`
	Boost       float64       `json:"boost"`
	Available   bool          `json:"available"`
	Timeout     time.Duration `json:"timeout"`
}

// CapabilityPlan is the ordered list of capabilities selected for one query.
type CapabilityPlan struct {
	Intent       string       `json:"intent"`
	Capabilities []Capability `json:"capabilities"`
}

// AvailableCapabilities returns the capabilities eligible for execution.
func (p CapabilityPlan) AvailableCapabilities() []Capability {
	out := make([]Capability, 0, len(p.Capabilities))
	for _, c := range p.Capabilities {
		if c.Available {
			out = append(out, c)
		}
	}
	return out
}

// BlockedIDs returns the ids of planned but unavailable capabilities.
func (p CapabilityPlan) BlockedIDs() []string {
	var out []string
	for _, c := range p.Capabilities {
		if !c.Available {
			out = append(out, c.ID)
		}
	}
	return out
}

// IDs returns every planned capability id in plan order.
func (p CapabilityPlan) IDs() []string {
	out := make([]string, len(p.Capabilities))
	for i, c := range p.Capabilities {
		out[i] = c.ID
	}
	return out
}

// Boost returns the configured boost for a capability id, or 0 if unplanned.
func (p CapabilityPlan) BoostFor(id string) float64 {
	for _, c := range p.Capabilities {
		if c.ID == id {
			return c.Boost
		}
	}
	return 0
}

// QueryContext carries the understood query into capability execution. Raw
// query text is only ever passed to data sources as a bound parameter.
type QueryContext struct {
	RequestID string
	RawQuery  string
	Intent    string
	Canonical map[EntityType][]string
}

// PrimaryTerm returns the first canonical value extracted for the given type,
// or the raw query when no entity of that type survived filtering.
func (q QueryContext) PrimaryTerm(t EntityType) string {
	if vals := q.Canonical[t]; len(vals) > 0 {
		return vals[0]
	}
	return q.RawQuery
}

// ExecutionOutcome is produced exactly once per planned, available capability.
type ExecutionOutcome struct {
	CapabilityID string        `json:"capability_id"`
	Rows         []Row         `json:"rows,omitempty"`
	Err          error         `json:"-"`
	TimedOut     bool          `json:"timed_out"`
	Duration     time.Duration `json:"duration"`
}
