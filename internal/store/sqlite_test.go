package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plantops/queryengine/internal/model"
	"github.com/plantops/queryengine/internal/planner"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newSeededSQLite(t *testing.T) *SQLiteSource {
	t.Helper()
	src, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })

	ctx := context.Background()
	require.NoError(t, src.Migrate(ctx))
	require.NoError(t, src.Seed(ctx))
	return src
}

func qctx(canonical map[model.EntityType][]string, raw string) model.QueryContext {
	return model.QueryContext{
		RequestID: "test",
		RawQuery:  raw,
		Intent:    planner.IntentGeneral,
		Canonical: canonical,
	}
}

func capFor(id string) model.Capability {
	return model.Capability{ID: id, Available: true}
}

func TestSQLiteFaultsByCode(t *testing.T) {
	src := newSeededSQLite(t)

	rows, err := src.Run(context.Background(), capFor("faults_by_code"),
		qctx(map[model.EntityType][]string{model.EntityFaultCode: {"OVHT-01"}}, "diagnose OVHT-01"))

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "fault", rows[0].ObjectType)
	assert.Equal(t, "flt-001", rows[0].ObjectID)
	assert.Equal(t, model.MatchExactID, rows[0].MatchMode)
	assert.Equal(t, 1.0, rows[0].RawScore)
	assert.Equal(t, "OVHT-01", rows[0].MatchedTerm)
}

func TestSQLiteFaultsByCodeCaseInsensitive(t *testing.T) {
	src := newSeededSQLite(t)

	rows, err := src.Run(context.Background(), capFor("faults_by_code"),
		qctx(map[model.EntityType][]string{model.EntityFaultCode: {"ovht-01"}}, ""))

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "flt-001", rows[0].ObjectID)
}

func TestSQLiteFaultsBySymptom(t *testing.T) {
	src := newSeededSQLite(t)

	rows, err := src.Run(context.Background(), capFor("faults_by_symptom"),
		qctx(map[model.EntityType][]string{model.EntitySymptom: {"overheating"}}, ""))

	require.NoError(t, err)
	require.Len(t, rows, 2)
	// Exact symptom matches rank exact_canonical and lead.
	assert.Equal(t, model.MatchExactCanonical, rows[0].MatchMode)
	assert.Equal(t, "flt-001", rows[0].ObjectID)
	assert.Equal(t, "flt-002", rows[1].ObjectID)
}

func TestSQLiteEquipmentByName(t *testing.T) {
	src := newSeededSQLite(t)

	rows, err := src.Run(context.Background(), capFor("equipment_by_name"),
		qctx(map[model.EntityType][]string{model.EntityEquipment: {"main_engine"}}, ""))

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "eq-001", rows[0].ObjectID)
	assert.Equal(t, model.MatchExactCanonical, rows[0].MatchMode)
	assert.Equal(t, map[string]any{"label": "Main Engine", "detail": "engine_room"}, rows[0].Payload)
}

func TestSQLitePartsByNumberIsExactID(t *testing.T) {
	src := newSeededSQLite(t)

	rows, err := src.Run(context.Background(), capFor("parts_by_name"),
		qctx(map[model.EntityType][]string{model.EntityPart: {"PN-10023"}}, ""))

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "prt-001", rows[0].ObjectID)
	assert.Equal(t, model.MatchExactID, rows[0].MatchMode)
}

func TestSQLitePartsByStockOrdersByQuantity(t *testing.T) {
	src := newSeededSQLite(t)

	rows, err := src.Run(context.Background(), capFor("parts_by_stock"),
		qctx(map[model.EntityType][]string{model.EntityStockStatus: {"in_stock"}}, ""))

	require.NoError(t, err)
	require.Len(t, rows, 2)
	// Scarcest stock first.
	assert.Equal(t, "prt-001", rows[0].ObjectID)
	assert.Equal(t, "prt-003", rows[1].ObjectID)
}

func TestSQLiteDocumentsFulltextUsesRawQuery(t *testing.T) {
	src := newSeededSQLite(t)

	rows, err := src.Run(context.Background(), capFor("documents_fulltext"),
		qctx(nil, "overheating"))

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "doc-001", rows[0].ObjectID)
	assert.Equal(t, "document", rows[0].ObjectType)
	assert.Equal(t, "overheating", rows[0].MatchedTerm)
}

func TestSQLiteWorkOrdersByEquipment(t *testing.T) {
	src := newSeededSQLite(t)

	rows, err := src.Run(context.Background(), capFor("work_orders_by_equipment"),
		qctx(map[model.EntityType][]string{model.EntityEquipment: {"main_engine"}}, ""))

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "wo-001", rows[0].ObjectID)
}

func TestSQLiteNoMatches(t *testing.T) {
	src := newSeededSQLite(t)

	rows, err := src.Run(context.Background(), capFor("faults_by_code"),
		qctx(map[model.EntityType][]string{model.EntityFaultCode: {"XX-99"}}, ""))

	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSQLiteUnknownCapability(t *testing.T) {
	src := newSeededSQLite(t)

	_, err := src.Run(context.Background(), capFor("no_such_capability"), qctx(nil, "x"))
	assert.Error(t, err)
}

func TestSQLiteQueryTextNeverInterpolated(t *testing.T) {
	src := newSeededSQLite(t)

	// A hostile term must be handled as data. The tables survive and the
	// query simply finds nothing.
	hostile := "'; DROP TABLE faults; --"
	rows, err := src.Run(context.Background(), capFor("documents_fulltext"), qctx(nil, hostile))
	require.NoError(t, err)
	assert.Empty(t, rows)

	avail, err := src.Availability(context.Background())
	require.NoError(t, err)
	assert.True(t, avail["faults"])
}

func TestSQLiteAvailability(t *testing.T) {
	src := newSeededSQLite(t)

	avail, err := src.Availability(context.Background())
	require.NoError(t, err)

	for _, table := range planner.TableTargets() {
		assert.True(t, avail[table], "table %s should be available after seeding", table)
	}
}

func TestSQLiteAvailabilityEmptyTables(t *testing.T) {
	src, err := NewSQLite(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	require.NoError(t, src.Migrate(context.Background()))

	avail, err := src.Availability(context.Background())
	require.NoError(t, err)

	for _, table := range planner.TableTargets() {
		assert.False(t, avail[table], "table %s should be empty", table)
	}
}

func TestSQLiteSeedIdempotent(t *testing.T) {
	src := newSeededSQLite(t)
	require.NoError(t, src.Seed(context.Background()))

	rows, err := src.Run(context.Background(), capFor("faults_by_code"),
		qctx(map[model.EntityType][]string{model.EntityFaultCode: {"OVHT-01"}}, ""))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestBindTerm(t *testing.T) {
	q := qctx(map[model.EntityType][]string{
		model.EntityFaultCode: {"OVHT-01"},
		model.EntityEquipment: {"boiler"},
	}, "raw query text")

	assert.Equal(t, "OVHT-01", bindTerm("faults_by_code", q))
	assert.Equal(t, "boiler", bindTerm("work_orders_by_equipment", q))
	// Free-text fallback binds the raw query.
	assert.Equal(t, "raw query text", bindTerm("documents_fulltext", q))
	// Missing entity type falls back to the raw query too.
	assert.Equal(t, "raw query text", bindTerm("parts_by_name", q))
}
