// Package rank assigns final scores to merged results and produces a total
// order with deterministic tie-breaks.
package rank

import (
	"sort"
	"strings"

	"github.com/plantops/queryengine/internal/config"
	"github.com/plantops/queryengine/internal/extract"
	"github.com/plantops/queryengine/internal/model"
	"github.com/plantops/queryengine/internal/planner"
)

// Score tier spacing: match mode dominates, then the weighted secondary
// signal, then the intent-table prior.
const (
	modeTier      = 100.0
	secondaryTier = 10.0
)

// defaultPriors is the static intent -> object type prior table. Fault rows
// lead for diagnostic intents, parts for stock/part intents, and so on.
var defaultPriors = map[string]map[string]float64{
	planner.IntentDiagnose:   {"fault": 0.30, "work_order": 0.10, "equipment": 0.05},
	planner.IntentFindPart:   {"part": 0.30, "document": 0.05},
	planner.IntentStockCheck: {"part": 0.30},
	planner.IntentHistory:    {"work_order": 0.30, "fault": 0.10},
	planner.IntentLocate:     {"equipment": 0.30},
	planner.IntentGeneral:    {"document": 0.05},
}

// Ranker scores merged results. Immutable after New.
type Ranker struct {
	proximityWeight float64
	boostWeight     float64
	priors          map[string]map[string]float64
}

// New builds a Ranker from config; configured priors override the static
// table per intent.
func New(cfg config.RankConfig) *Ranker {
	r := &Ranker{
		proximityWeight: cfg.ProximityWeight,
		boostWeight:     cfg.BoostWeight,
		priors:          make(map[string]map[string]float64, len(defaultPriors)),
	}
	if r.proximityWeight <= 0 {
		r.proximityWeight = 0.6
	}
	if r.boostWeight <= 0 {
		r.boostWeight = 0.4
	}
	for intent, table := range defaultPriors {
		r.priors[intent] = table
	}
	for intent, table := range cfg.Priors {
		r.priors[intent] = table
	}
	return r
}

// Rank scores every merged result and sorts them. Primary key: match-mode
// rank. Secondary: weighted proximity plus the best contributing capability
// boost. Tertiary: intent-table prior. Final tie-break: object_id ascending.
// Never errors; empty input yields empty output.
func (r *Ranker) Rank(merged []model.RankedResult, query, intent string, plan model.CapabilityPlan) []model.RankedResult {
	type scored struct {
		result    model.RankedResult
		mode      int
		secondary float64
		prior     float64
	}
	items := make([]scored, len(merged))

	for i, res := range merged {
		row := res.Row
		boost := 0.0
		for _, capID := range res.Capabilities {
			if b := plan.BoostFor(capID); b > boost {
				boost = b
			}
		}
		s := scored{
			result:    res,
			mode:      row.MatchMode.Rank(),
			secondary: r.proximityWeight*proximity(query, row.MatchedTerm) + r.boostWeight*boost,
			prior:     r.priors[intent][row.ObjectType],
		}
		s.result.FinalScore = float64(s.mode)*modeTier + s.secondary*secondaryTier + s.prior
		items[i] = s
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].mode != items[j].mode {
			return items[i].mode > items[j].mode
		}
		if items[i].secondary != items[j].secondary {
			return items[i].secondary > items[j].secondary
		}
		if items[i].prior != items[j].prior {
			return items[i].prior > items[j].prior
		}
		return items[i].result.Row.ObjectID < items[j].result.Row.ObjectID
	})

	ranked := make([]model.RankedResult, len(items))
	for i, s := range items {
		ranked[i] = s.result
	}
	return ranked
}

// proximity scores how close the matched term sits to the query start and
// how much of the whole query it explains. Rows without a matched term get a
// neutral midpoint so they neither float nor sink on proximity alone.
func proximity(query, matchedTerm string) float64 {
	if matchedTerm == "" {
		return 0.5
	}
	lowerQuery := extract.Fold(query)
	lowerTerm := extract.Fold(matchedTerm)

	positional := 0.0
	if idx := strings.Index(lowerQuery, lowerTerm); idx >= 0 && len(lowerQuery) > 0 {
		positional = 1.0 - float64(idx)/float64(len(lowerQuery))
	}
	whole := extract.Similarity(lowerQuery, lowerTerm)

	return 0.6*positional + 0.4*whole
}
