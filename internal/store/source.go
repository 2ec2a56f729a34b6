// Package store implements the capability data sources: the Postgres and
// SQLite backends the executor fans out to.
package store

import (
	"context"

	"github.com/plantops/queryengine/internal/model"
)

// Source is a capability data source. Run executes the pre-defined query
// template for one capability with query text bound as a parameter — raw
// query text is never interpolated into SQL.
type Source interface {
	// Run executes a capability's backing query and maps rows to results.
	Run(ctx context.Context, capability model.Capability, q model.QueryContext) ([]model.Row, error)
	// Availability reports, per table target, whether the table holds any
	// rows. The snapshot is computed here and passed into planning; the
	// planning/execution path never mutates it.
	Availability(ctx context.Context) (map[string]bool, error)
	// Migrate creates the engine's backing tables if missing.
	Migrate(ctx context.Context) error
	Close() error
}

// resultLimit caps rows returned per capability. Ranking happens engine-side
// over the merged set, so per-capability overfetch is modest.
const resultLimit = 25

// driverTerm maps a capability id to the entity type whose canonical value
// parameterizes its query template.
var driverTerm = map[string]model.EntityType{
	"faults_by_code":           model.EntityFaultCode,
	"faults_by_symptom":        model.EntitySymptom,
	"equipment_by_name":        model.EntityEquipment,
	"equipment_by_location":    model.EntityLocation,
	"parts_by_name":            model.EntityPart,
	"parts_by_stock":           model.EntityStockStatus,
	"work_orders_by_equipment": model.EntityEquipment,
}

// bindTerm returns the bound parameter for a capability: the driving
// entity's canonical value, or the raw query for free-text capabilities.
func bindTerm(capabilityID string, q model.QueryContext) string {
	if t, ok := driverTerm[capabilityID]; ok {
		return q.PrimaryTerm(t)
	}
	return q.RawQuery
}
