// Package merge deduplicates rows across capability outcomes by their
// identity key, keeping the best-matching instance of each.
package merge

import (
	"sort"

	"github.com/plantops/queryengine/internal/model"
)

// Merge groups all rows from all outcomes by (object_type, object_id). Each
// group keeps the row with the highest match-mode rank, then the highest raw
// score, and records the union of contributing capability ids. The output
// never contains two entries with the same identity key; order is by
// identity key until the ranker imposes the final order.
func Merge(outcomes []model.ExecutionOutcome) []model.RankedResult {
	type group struct {
		best model.Row
		caps []string
		seen map[string]bool
	}
	groups := make(map[string]*group)

	for _, outcome := range outcomes {
		for _, row := range outcome.Rows {
			key := row.IdentityKey()
			g, ok := groups[key]
			if !ok {
				g = &group{best: row, seen: make(map[string]bool)}
				groups[key] = g
			} else if better(row, g.best) {
				g.best = row
			}
			if !g.seen[outcome.CapabilityID] {
				g.seen[outcome.CapabilityID] = true
				g.caps = append(g.caps, outcome.CapabilityID)
			}
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([]model.RankedResult, 0, len(groups))
	for _, k := range keys {
		g := groups[k]
		sort.Strings(g.caps)
		results = append(results, model.RankedResult{
			Row:          g.best,
			Capabilities: g.caps,
		})
	}
	return results
}

func better(a, b model.Row) bool {
	if a.MatchMode.Rank() != b.MatchMode.Rank() {
		return a.MatchMode.Rank() > b.MatchMode.Rank()
	}
	return a.RawScore > b.RawScore
}
