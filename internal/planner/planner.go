// Package planner maps a detected intent and the surviving entity types to
// an ordered list of capability descriptors, applying per-request
// availability snapshots and configured overrides.
package planner

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/plantops/queryengine/internal/config"
	"github.com/plantops/queryengine/internal/model"
)

// FallbackCapabilityID is the domain-independent free-text capability that
// is always planned so no query can reach execution with an empty plan.
const FallbackCapabilityID = "documents_fulltext"

// capabilityDef is one row of the static priority table. A capability is
// planned when at least one of its trigger types survived filtering and the
// detected intent is in its intent list (empty list = any intent).
type capabilityDef struct {
	id       string
	table    string
	boost    float64
	triggers []model.EntityType
	intents  []string
}

var capabilityDefs = []capabilityDef{
	{"faults_by_code", "faults", 1.6, []model.EntityType{model.EntityFaultCode}, nil},
	{"faults_by_symptom", "faults", 1.4, []model.EntityType{model.EntitySymptom}, []string{IntentDiagnose, IntentHistory, IntentGeneral}},
	{"equipment_by_name", "equipment", 1.3, []model.EntityType{model.EntityEquipment}, nil},
	{"equipment_by_location", "equipment", 1.1, []model.EntityType{model.EntityLocation}, []string{IntentLocate, IntentGeneral}},
	{"parts_by_name", "parts", 1.2, []model.EntityType{model.EntityPart}, nil},
	{"parts_by_stock", "parts", 1.2, []model.EntityType{model.EntityStockStatus}, []string{IntentStockCheck, IntentFindPart, IntentGeneral}},
	{"work_orders_by_equipment", "work_orders", 1.0, []model.EntityType{model.EntityEquipment}, []string{IntentHistory, IntentDiagnose}},
}

const (
	fallbackTable = "documents"
	fallbackBoost = 0.5
)

// KnownEntityTypes returns every entity type the priority table routes on.
// Config validation requires an explicit confidence threshold for each.
func KnownEntityTypes() []string {
	seen := make(map[string]bool)
	for _, def := range capabilityDefs {
		for _, t := range def.triggers {
			seen[string(t)] = true
		}
	}
	// Severity never triggers a capability on its own but is extracted and
	// rankable, so it carries a threshold too.
	seen[string(model.EntitySeverity)] = true

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// CatalogEntry describes one capability of the priority table for
// introspection surfaces.
type CatalogEntry struct {
	ID    string  `json:"id"`
	Table string  `json:"table"`
	Boost float64 `json:"boost"`
}

// Catalog lists every capability in priority order, fallback last.
func Catalog() []CatalogEntry {
	out := make([]CatalogEntry, 0, len(capabilityDefs)+1)
	for _, def := range capabilityDefs {
		out = append(out, CatalogEntry{ID: def.id, Table: def.table, Boost: def.boost})
	}
	out = append(out, CatalogEntry{ID: FallbackCapabilityID, Table: fallbackTable, Boost: fallbackBoost})
	return out
}

// TableTargets returns the distinct backing tables, for availability probes.
func TableTargets() []string {
	seen := map[string]bool{fallbackTable: true}
	for _, def := range capabilityDefs {
		seen[def.table] = true
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Planner builds capability plans from the static priority table plus
// configured per-capability overrides.
type Planner struct {
	defaultTimeout time.Duration
	overrides      map[string]config.CapabilityConfig
}

// New creates a Planner from executor configuration.
func New(cfg config.ExecutorConfig) *Planner {
	timeout := time.Duration(cfg.DefaultTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Planner{
		defaultTimeout: timeout,
		overrides:      cfg.Capabilities,
	}
}

// Plan selects capabilities for the query. availability maps table targets
// to whether they hold any rows; it is a per-request snapshot and is never
// mutated here. The returned plan always contains the fallback capability,
// so it is never empty.
func (p *Planner) Plan(intent string, types map[model.EntityType]bool, availability map[string]bool) model.CapabilityPlan {
	plan := model.CapabilityPlan{Intent: intent}

	for _, def := range capabilityDefs {
		if !triggered(def, types) || !intentAllowed(def, intent) {
			continue
		}
		plan.Capabilities = append(plan.Capabilities, p.describe(def.id, def.table, def.boost, availability))
	}

	plan.Capabilities = append(plan.Capabilities,
		p.describe(FallbackCapabilityID, fallbackTable, fallbackBoost, availability))

	zap.L().Debug("planner: plan built",
		zap.String("intent", intent),
		zap.Strings("capabilities", plan.IDs()),
		zap.Strings("blocked", plan.BlockedIDs()),
	)
	return plan
}

func (p *Planner) describe(id, table string, boost float64, availability map[string]bool) model.Capability {
	desc := model.Capability{
		ID:          id,
		TableTarget: table,
		Boost:       boost,
		Available:   true,
		Timeout:     p.defaultTimeout,
	}
	if avail, probed := availability[table]; probed && !avail {
		desc.Available = false
	}
	if ov, ok := p.overrides[id]; ok {
		if ov.TimeoutMS > 0 {
			desc.Timeout = time.Duration(ov.TimeoutMS) * time.Millisecond
		}
		if ov.Boost > 0 {
			desc.Boost = ov.Boost
		}
		if ov.Disabled {
			desc.Available = false
		}
	}
	return desc
}

func triggered(def capabilityDef, types map[model.EntityType]bool) bool {
	for _, t := range def.triggers {
		if types[t] {
			return true
		}
	}
	return false
}

func intentAllowed(def capabilityDef, intent string) bool {
	if len(def.intents) == 0 {
		return true
	}
	for _, i := range def.intents {
		if i == intent {
			return true
		}
	}
	return false
}
