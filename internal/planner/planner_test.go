package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plantops/queryengine/internal/config"
	"github.com/plantops/queryengine/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func testPlanner() *Planner {
	return New(config.ExecutorConfig{DefaultTimeoutMS: 1000})
}

func types(ts ...model.EntityType) map[model.EntityType]bool {
	out := make(map[model.EntityType]bool, len(ts))
	for _, t := range ts {
		out[t] = true
	}
	return out
}

func TestPlanAlwaysIncludesFallback(t *testing.T) {
	p := testPlanner()

	plan := p.Plan(IntentGeneral, nil, nil)

	require.Len(t, plan.Capabilities, 1)
	assert.Equal(t, FallbackCapabilityID, plan.Capabilities[0].ID)
	assert.True(t, plan.Capabilities[0].Available)
}

func TestPlanFallbackIsLast(t *testing.T) {
	p := testPlanner()

	plan := p.Plan(IntentDiagnose, types(model.EntityFaultCode, model.EntitySymptom), nil)

	ids := plan.IDs()
	require.GreaterOrEqual(t, len(ids), 3)
	assert.Equal(t, FallbackCapabilityID, ids[len(ids)-1])
	assert.Contains(t, ids, "faults_by_code")
	assert.Contains(t, ids, "faults_by_symptom")
}

func TestPlanTriggersByEntityType(t *testing.T) {
	p := testPlanner()

	plan := p.Plan(IntentDiagnose, types(model.EntityFaultCode), nil)

	ids := plan.IDs()
	assert.Contains(t, ids, "faults_by_code")
	assert.NotContains(t, ids, "faults_by_symptom")
	assert.NotContains(t, ids, "parts_by_name")
}

func TestPlanIntentGatesCapabilities(t *testing.T) {
	p := testPlanner()

	// work_orders_by_equipment triggers on equipment but only for history
	// and diagnose intents.
	ids := p.Plan(IntentHistory, types(model.EntityEquipment), nil).IDs()
	assert.Contains(t, ids, "work_orders_by_equipment")

	ids = p.Plan(IntentLocate, types(model.EntityEquipment), nil).IDs()
	assert.NotContains(t, ids, "work_orders_by_equipment")
	assert.Contains(t, ids, "equipment_by_name")
}

func TestPlanBlocksUnavailableTables(t *testing.T) {
	p := testPlanner()
	availability := map[string]bool{"faults": false, "documents": true}

	plan := p.Plan(IntentDiagnose, types(model.EntityFaultCode), availability)

	assert.Equal(t, []string{"faults_by_code"}, plan.BlockedIDs())
	available := plan.AvailableCapabilities()
	require.Len(t, available, 1)
	assert.Equal(t, FallbackCapabilityID, available[0].ID)
}

func TestPlanUnprobedTablesAssumedAvailable(t *testing.T) {
	p := testPlanner()

	plan := p.Plan(IntentDiagnose, types(model.EntityFaultCode), map[string]bool{})

	assert.Empty(t, plan.BlockedIDs())
}

func TestPlanDoesNotMutateAvailability(t *testing.T) {
	p := testPlanner()
	availability := map[string]bool{"faults": false, "documents": true}

	p.Plan(IntentDiagnose, types(model.EntityFaultCode, model.EntityEquipment), availability)

	assert.Equal(t, map[string]bool{"faults": false, "documents": true}, availability)
}

func TestPlanAppliesOverrides(t *testing.T) {
	p := New(config.ExecutorConfig{
		DefaultTimeoutMS: 1000,
		Capabilities: map[string]config.CapabilityConfig{
			"faults_by_code":    {TimeoutMS: 250, Boost: 2.5},
			"equipment_by_name": {Disabled: true},
		},
	})

	plan := p.Plan(IntentDiagnose, types(model.EntityFaultCode, model.EntityEquipment), nil)

	byID := make(map[string]model.Capability)
	for _, c := range plan.Capabilities {
		byID[c.ID] = c
	}

	assert.Equal(t, 250*time.Millisecond, byID["faults_by_code"].Timeout)
	assert.Equal(t, 2.5, byID["faults_by_code"].Boost)
	assert.False(t, byID["equipment_by_name"].Available)
	assert.Equal(t, time.Second, byID[FallbackCapabilityID].Timeout)
}

func TestKnownEntityTypesIncludesSeverity(t *testing.T) {
	known := KnownEntityTypes()

	assert.Contains(t, known, "severity")
	assert.Contains(t, known, "fault_code")
	assert.Contains(t, known, "equipment")
	assert.Contains(t, known, "stock_status")
	assert.IsIncreasing(t, known)
}

func TestTableTargets(t *testing.T) {
	assert.Equal(t, []string{"documents", "equipment", "faults", "parts", "work_orders"}, TableTargets())
}

func TestCatalogFallbackLast(t *testing.T) {
	catalog := Catalog()
	require.NotEmpty(t, catalog)
	assert.Equal(t, FallbackCapabilityID, catalog[len(catalog)-1].ID)
	for _, entry := range catalog {
		assert.NotEmpty(t, entry.Table)
		assert.Greater(t, entry.Boost, 0.0)
	}
}

func TestBoostFor(t *testing.T) {
	p := testPlanner()
	plan := p.Plan(IntentDiagnose, types(model.EntityFaultCode), nil)

	assert.Equal(t, 1.6, plan.BoostFor("faults_by_code"))
	assert.Equal(t, 0.5, plan.BoostFor(FallbackCapabilityID))
	assert.Zero(t, plan.BoostFor("not_planned"))
}
