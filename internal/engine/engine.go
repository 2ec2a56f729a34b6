// Package engine orchestrates one search request end to end: extraction,
// filtering, coverage analysis, optional AI escalation, capability planning,
// fan-out execution, merging, and ranking.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/plantops/queryengine/internal/config"
	"github.com/plantops/queryengine/internal/coverage"
	"github.com/plantops/queryengine/internal/escalate"
	"github.com/plantops/queryengine/internal/executor"
	"github.com/plantops/queryengine/internal/extract"
	"github.com/plantops/queryengine/internal/merge"
	"github.com/plantops/queryengine/internal/model"
	"github.com/plantops/queryengine/internal/monitoring"
	"github.com/plantops/queryengine/internal/planner"
	"github.com/plantops/queryengine/internal/rank"
	"github.com/plantops/queryengine/internal/store"
)

// Engine composes the full query understanding pipeline. All configuration
// is fixed at construction; a single Engine serves concurrent requests.
type Engine struct {
	cfg        *config.Config
	extractor  *extract.Extractor
	thresholds map[model.EntityType]float64
	planner    *planner.Planner
	executor   *executor.Executor
	ranker     *rank.Ranker
	escalator  escalate.Escalator // nil when escalation is disabled
	source     store.Source
	metrics    *monitoring.Collector

	availMu      sync.Mutex
	avail        map[string]bool
	availFetched time.Time
	availTTL     time.Duration
}

// New wires an Engine from its parts. escalator and metrics may be nil.
func New(cfg *config.Config, ex *extract.Extractor, src store.Source, esc escalate.Escalator, metrics *monitoring.Collector) *Engine {
	availTTL := time.Duration(cfg.Server.AvailabilityRefreshSecs) * time.Second
	if availTTL <= 0 {
		availTTL = 30 * time.Second
	}
	return &Engine{
		cfg:        cfg,
		extractor:  ex,
		thresholds: extract.Thresholds(cfg.Extract.Thresholds),
		planner:    planner.New(cfg.Executor),
		executor: executor.New(src, cfg.Executor.MaxConcurrent,
			time.Duration(cfg.Executor.DefaultTimeoutMS)*time.Millisecond),
		ranker:    rank.New(cfg.Rank),
		escalator: esc,
		source:    src,
		metrics:   metrics,
		availTTL:  availTTL,
	}
}

// Search resolves one query. It returns an error only for an unusable
// request (empty query); every capability-level failure is absorbed into the
// response's outcome and metadata instead.
func (e *Engine) Search(ctx context.Context, query string) (*model.Response, error) {
	if query == "" {
		return nil, eris.New("engine: empty query")
	}

	start := time.Now()
	requestID := uuid.NewString()

	entities := e.extractor.Extract(query)
	surviving := extract.Filter(entities, e.thresholds, e.cfg.Extract.DefaultThreshold)
	report, needsAI := coverage.Analyze(query, surviving)

	zap.L().Debug("engine: deterministic extraction",
		zap.String("request_id", requestID),
		zap.Int("entities", len(entities)),
		zap.Int("surviving", len(surviving)),
		zap.Float64("coverage_pct", report.CoveragePct),
		zap.Int("conflicts", len(report.Conflicts)),
		zap.Bool("needs_ai", needsAI),
	)

	escalated := false
	if needsAI && e.escalator != nil {
		refined, err := e.escalator.Escalate(ctx, query, surviving)
		if err != nil {
			// Escalation failure falls back to deterministic entities.
			zap.L().Warn("engine: escalation failed",
				zap.String("request_id", requestID),
				zap.Error(err),
			)
		} else {
			escalated = true
			merged := mergeEntities(surviving, refined)
			surviving = extract.Filter(merged, e.thresholds, e.cfg.Extract.DefaultThreshold)
			report, _ = coverage.Analyze(query, surviving)
		}
	}

	types := make(map[model.EntityType]bool, len(surviving))
	canonical := make(map[model.EntityType][]string)
	for _, ent := range surviving {
		types[ent.Type] = true
		canonical[ent.Type] = append(canonical[ent.Type], ent.Canonical)
	}

	intent := planner.DetectIntent(query, types)
	availability := e.availability(ctx)
	plan := e.planner.Plan(intent, types, availability)

	qctx := model.QueryContext{
		RequestID: requestID,
		RawQuery:  query,
		Intent:    intent,
		Canonical: canonical,
	}
	outcomes := e.executor.Execute(ctx, plan, qctx)
	merged := merge.Merge(outcomes)
	ranked := e.ranker.Rank(merged, query, intent, plan)

	resp := buildResponse(requestID, surviving, report, needsAI, plan, outcomes, ranked)
	resp.DurationMS = time.Since(start).Milliseconds()

	if e.metrics != nil {
		e.metrics.RecordRequest(resp, outcomes, escalated)
	}

	zap.L().Info("engine: request complete",
		zap.String("request_id", requestID),
		zap.String("intent", intent),
		zap.String("outcome", string(resp.Outcome)),
		zap.Int("results", len(resp.Results)),
		zap.Bool("needs_ai", resp.NeedsAI),
		zap.Bool("partial", resp.PartialResults),
		zap.Int64("duration_ms", resp.DurationMS),
	)
	return resp, nil
}

// availability returns a snapshot of table availability, refreshed on a
// bounded interval. Probe failures degrade to "assume available": a stale
// availability view only costs wasted queries, never lost results.
func (e *Engine) availability(ctx context.Context) map[string]bool {
	e.availMu.Lock()
	defer e.availMu.Unlock()

	if e.avail != nil && time.Since(e.availFetched) < e.availTTL {
		return e.avail
	}
	snap, err := e.source.Availability(ctx)
	if err != nil {
		zap.L().Warn("engine: availability probe failed", zap.Error(err))
		if e.avail != nil {
			return e.avail
		}
		return map[string]bool{}
	}
	e.avail = snap
	e.availFetched = time.Now()
	return snap
}

// mergeEntities folds escalator entities into the deterministic set. An AI
// entity displaces every overlapping deterministic entity with strictly
// lower confidence; otherwise both are kept and the filter re-arbitrates.
func mergeEntities(deterministic, ai []model.Entity) []model.Entity {
	kept := make([]model.Entity, 0, len(deterministic)+len(ai))
	displaced := make([]bool, len(deterministic))
	for _, a := range ai {
		for i, d := range deterministic {
			if a.Span.Overlaps(d.Span) && d.Confidence < a.Confidence {
				displaced[i] = true
			}
		}
	}
	for i, d := range deterministic {
		if !displaced[i] {
			kept = append(kept, d)
		}
	}
	return append(kept, ai...)
}

func buildResponse(
	requestID string,
	entities []model.Entity,
	report model.CoverageReport,
	needsAI bool,
	plan model.CapabilityPlan,
	outcomes []model.ExecutionOutcome,
	ranked []model.RankedResult,
) *model.Response {
	resp := &model.Response{
		RequestID:              requestID,
		Entities:               make([]model.ResponseEntity, 0, len(entities)),
		NeedsAI:                needsAI,
		CoveragePct:            report.CoveragePct,
		Results:                make([]model.ResultItem, 0, len(ranked)),
		CapabilitiesConsidered: plan.IDs(),
		CapabilitiesExecuted:   []string{},
		CapabilitiesBlocked:    plan.BlockedIDs(),
		CapabilitiesTimedOut:   []string{},
	}
	if resp.CapabilitiesBlocked == nil {
		resp.CapabilitiesBlocked = []string{}
	}

	for _, ent := range entities {
		resp.Entities = append(resp.Entities, model.ResponseEntity{
			Text:       ent.Text,
			Type:       string(ent.Type),
			Canonical:  ent.Canonical,
			Confidence: ent.Confidence,
		})
	}
	for _, r := range ranked {
		resp.Results = append(resp.Results, model.ResultItem{
			ObjectType: r.Row.ObjectType,
			ObjectID:   r.Row.ObjectID,
			MatchMode:  r.Row.MatchMode,
			FinalScore: r.FinalScore,
			Payload:    r.Row.Payload,
		})
	}

	rowCount := 0
	failed := 0
	for _, o := range outcomes {
		rowCount += len(o.Rows)
		switch {
		case o.TimedOut:
			resp.CapabilitiesTimedOut = append(resp.CapabilitiesTimedOut, o.CapabilityID)
			failed++
		case o.Err != nil:
			failed++
		default:
			resp.CapabilitiesExecuted = append(resp.CapabilitiesExecuted, o.CapabilityID)
		}
	}

	degraded := failed > 0 || len(resp.CapabilitiesBlocked) > 0
	resp.PartialResults = degraded && len(resp.CapabilitiesExecuted) > 0

	switch {
	case len(plan.AvailableCapabilities()) == 0:
		resp.Outcome = model.OutcomeBlocked
	case len(entities) == 0 && rowCount == 0:
		resp.Outcome = model.OutcomeUnknown
	case degraded:
		resp.Outcome = model.OutcomePartial
	case rowCount == 0:
		resp.Outcome = model.OutcomeEmpty
	default:
		resp.Outcome = model.OutcomeSuccess
	}

	return resp
}
