package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plantops/queryengine/internal/config"
	"github.com/plantops/queryengine/internal/extract"
	"github.com/plantops/queryengine/internal/model"
	"github.com/plantops/queryengine/internal/monitoring"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// fakeSource serves canned rows per capability id and a fixed availability
// snapshot.
type fakeSource struct {
	mu           sync.Mutex
	rows         map[string][]model.Row
	errs         map[string]error
	availability map[string]bool
	availErr     error
	ran          []string
}

func (f *fakeSource) Run(ctx context.Context, capability model.Capability, q model.QueryContext) ([]model.Row, error) {
	f.mu.Lock()
	f.ran = append(f.ran, capability.ID)
	f.mu.Unlock()

	if err := f.errs[capability.ID]; err != nil {
		return nil, err
	}
	return f.rows[capability.ID], nil
}

func (f *fakeSource) Availability(ctx context.Context) (map[string]bool, error) {
	if f.availErr != nil {
		return nil, f.availErr
	}
	if f.availability != nil {
		return f.availability, nil
	}
	return map[string]bool{}, nil
}

func (f *fakeSource) Migrate(ctx context.Context) error { return nil }
func (f *fakeSource) Close() error                      { return nil }

type fakeEscalator struct {
	entities []model.Entity
	err      error
	calls    int
}

func (f *fakeEscalator) Escalate(ctx context.Context, query string, partial []model.Entity) ([]model.Entity, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.entities, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: ":memory:"},
		Extract: config.ExtractConfig{
			DefaultThreshold: 0.75,
			Thresholds: map[string]float64{
				"equipment":    0.60,
				"symptom":      0.55,
				"severity":     0.50,
				"part":         0.50,
				"stock_status": 0.40,
				"location":     0.55,
				"fault_code":   0.80,
			},
		},
		Executor: config.ExecutorConfig{MaxConcurrent: 4, DefaultTimeoutMS: 1000, GlobalTimeoutMS: 5000},
		Rank:     config.RankConfig{ProximityWeight: 0.6, BoostWeight: 0.4},
		Server:   config.ServerConfig{AvailabilityRefreshSecs: 300},
	}
}

func newTestEngine(t *testing.T, src *fakeSource, esc *fakeEscalator) *Engine {
	t.Helper()
	ex, err := extract.New(extract.DefaultGazetteer(), extract.Options{})
	require.NoError(t, err)
	if esc == nil {
		return New(testConfig(), ex, src, nil, nil)
	}
	return New(testConfig(), ex, src, esc, nil)
}

func faultRow(id string) model.Row {
	return model.Row{ObjectType: "fault", ObjectID: id, MatchMode: model.MatchExactCanonical, RawScore: 1.0, MatchedTerm: "overheating"}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	eng := newTestEngine(t, &fakeSource{}, nil)
	_, err := eng.Search(context.Background(), "")
	assert.Error(t, err)
}

func TestSearchSuccessFastPath(t *testing.T) {
	src := &fakeSource{rows: map[string][]model.Row{
		"faults_by_symptom": {faultRow("flt-001")},
		"equipment_by_name": {{ObjectType: "equipment", ObjectID: "eq-001", MatchMode: model.MatchExactCanonical, RawScore: 1.0, MatchedTerm: "main_engine"}},
	}}
	esc := &fakeEscalator{}
	eng := newTestEngine(t, src, esc)

	resp, err := eng.Search(context.Background(), "main engine overheating")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSuccess, resp.Outcome)
	assert.False(t, resp.NeedsAI)
	assert.InDelta(t, 1.0, resp.CoveragePct, 0.001)
	assert.Zero(t, esc.calls, "fully covered query must not escalate")
	assert.NotEmpty(t, resp.RequestID)
	assert.Len(t, resp.Results, 2)
	assert.False(t, resp.PartialResults)
	assert.Empty(t, resp.CapabilitiesBlocked)
	assert.Empty(t, resp.CapabilitiesTimedOut)

	// Entities surface in the response envelope.
	types := make(map[string]bool)
	for _, e := range resp.Entities {
		types[e.Type] = true
	}
	assert.True(t, types["equipment"])
	assert.True(t, types["symptom"])
}

func TestSearchEmptyOutcome(t *testing.T) {
	src := &fakeSource{}
	eng := newTestEngine(t, src, nil)

	resp, err := eng.Search(context.Background(), "main engine overheating")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeEmpty, resp.Outcome)
	assert.Empty(t, resp.Results)
	assert.NotEmpty(t, resp.Entities)
}

func TestSearchPartialOutcomeOnCapabilityError(t *testing.T) {
	src := &fakeSource{
		rows: map[string][]model.Row{"faults_by_symptom": {faultRow("flt-001")}},
		errs: map[string]error{"documents_fulltext": errors.New("connection refused")},
	}
	eng := newTestEngine(t, src, nil)

	resp, err := eng.Search(context.Background(), "main engine overheating")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomePartial, resp.Outcome)
	assert.True(t, resp.PartialResults)
	assert.NotEmpty(t, resp.Results)
	assert.NotContains(t, resp.CapabilitiesExecuted, "documents_fulltext")
}

func TestSearchBlockedOutcome(t *testing.T) {
	src := &fakeSource{availability: map[string]bool{
		"documents": false, "equipment": false, "faults": false, "parts": false, "work_orders": false,
	}}
	eng := newTestEngine(t, src, nil)

	resp, err := eng.Search(context.Background(), "main engine overheating")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeBlocked, resp.Outcome)
	assert.Empty(t, resp.Results)
	assert.Empty(t, src.ran, "no capability should execute when all are blocked")
	assert.NotEmpty(t, resp.CapabilitiesBlocked)
	assert.False(t, resp.PartialResults)
}

func TestSearchUnknownOutcome(t *testing.T) {
	src := &fakeSource{}
	eng := newTestEngine(t, src, nil)

	resp, err := eng.Search(context.Background(), "zzz qqq xyzzy")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeUnknown, resp.Outcome)
	assert.Empty(t, resp.Entities)
	assert.True(t, resp.NeedsAI)
	// The fallback capability still ran.
	assert.Equal(t, []string{"documents_fulltext"}, src.ran)
}

func TestSearchEscalatesOnPartialCoverage(t *testing.T) {
	src := &fakeSource{}
	esc := &fakeEscalator{entities: []model.Entity{{
		Text: "whine", Type: model.EntitySymptom, Canonical: "abnormal_noise",
		Span: model.Span{Start: 14, End: 19}, Confidence: 0.7, Source: model.SourceAI,
	}}}
	eng := newTestEngine(t, src, esc)

	resp, err := eng.Search(context.Background(), "pump making a whine")

	require.NoError(t, err)
	assert.Equal(t, 1, esc.calls)
	assert.True(t, resp.NeedsAI)

	var gotAI bool
	for _, e := range resp.Entities {
		if e.Canonical == "abnormal_noise" {
			gotAI = true
		}
	}
	assert.True(t, gotAI, "escalator entity should survive into the response")
}

func TestSearchEscalationFailureFallsBack(t *testing.T) {
	src := &fakeSource{rows: map[string][]model.Row{
		"documents_fulltext": {{ObjectType: "document", ObjectID: "doc-1", MatchMode: model.MatchFuzzy, RawScore: 0.3}},
	}}
	esc := &fakeEscalator{err: errors.New("api unavailable")}
	eng := newTestEngine(t, src, esc)

	resp, err := eng.Search(context.Background(), "pump making a whine")

	require.NoError(t, err, "escalation failure must not fail the request")
	assert.Equal(t, 1, esc.calls)
	assert.NotEmpty(t, resp.Results)
}

func TestSearchNoEscalatorConfigured(t *testing.T) {
	src := &fakeSource{}
	eng := newTestEngine(t, src, nil)

	resp, err := eng.Search(context.Background(), "pump making a whine")

	require.NoError(t, err)
	assert.True(t, resp.NeedsAI)
}

func TestSearchAvailabilityProbeFailureDegrades(t *testing.T) {
	src := &fakeSource{
		availErr: errors.New("probe failed"),
		rows:     map[string][]model.Row{"faults_by_symptom": {faultRow("flt-001")}},
	}
	eng := newTestEngine(t, src, nil)

	resp, err := eng.Search(context.Background(), "main engine overheating")

	require.NoError(t, err)
	// Unknown availability is treated as available; capabilities still run.
	assert.NotEmpty(t, resp.Results)
	assert.Empty(t, resp.CapabilitiesBlocked)
}

func TestSearchAvailabilitySnapshotCached(t *testing.T) {
	src := &fakeSource{rows: map[string][]model.Row{"faults_by_symptom": {faultRow("flt-001")}}}
	eng := newTestEngine(t, src, nil)

	first := eng.availability(context.Background())
	src.availability = map[string]bool{"faults": false}
	second := eng.availability(context.Background())

	// TTL has not elapsed; the snapshot is reused.
	assert.Equal(t, first, second)
}

func TestSearchRecordsMetrics(t *testing.T) {
	src := &fakeSource{rows: map[string][]model.Row{"faults_by_symptom": {faultRow("flt-001")}}}
	metrics := monitoring.NewCollector()
	ex, err := extract.New(extract.DefaultGazetteer(), extract.Options{})
	require.NoError(t, err)
	eng := New(testConfig(), ex, src, nil, metrics)

	_, err = eng.Search(context.Background(), "main engine overheating")
	require.NoError(t, err)

	snap := metrics.Collect()
	assert.Equal(t, 1, snap.Requests)
	assert.Equal(t, 1, snap.Outcomes["success"])
}

func TestMergeEntitiesDisplacement(t *testing.T) {
	det := []model.Entity{
		{Text: "main", Type: model.EntityEquipment, Span: model.Span{Start: 0, End: 4}, Confidence: 0.6},
		{Text: "pump", Type: model.EntityEquipment, Span: model.Span{Start: 5, End: 9}, Confidence: 0.9},
	}
	ai := []model.Entity{
		{Text: "main pump", Type: model.EntityEquipment, Span: model.Span{Start: 0, End: 9}, Confidence: 0.8, Source: model.SourceAI},
	}

	merged := mergeEntities(det, ai)

	// The low-confidence overlap is displaced; the high-confidence one stays.
	require.Len(t, merged, 2)
	assert.Equal(t, "pump", merged[0].Text)
	assert.Equal(t, "main pump", merged[1].Text)
}

func TestMergeEntitiesNoOverlapKeepsBoth(t *testing.T) {
	det := []model.Entity{
		{Text: "pump", Type: model.EntityEquipment, Span: model.Span{Start: 0, End: 4}, Confidence: 0.6},
	}
	ai := []model.Entity{
		{Text: "whine", Type: model.EntitySymptom, Span: model.Span{Start: 5, End: 10}, Confidence: 0.9, Source: model.SourceAI},
	}

	merged := mergeEntities(det, ai)
	assert.Len(t, merged, 2)
}
