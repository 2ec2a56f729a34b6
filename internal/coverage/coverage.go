// Package coverage computes how much of a query the surviving entities
// explain and whether any pair of them is in true conflict. Its output drives
// the fast-path/AI-escalation decision.
package coverage

import (
	"sort"
	"unicode"

	"github.com/plantops/queryengine/internal/model"
)

// Analyze returns a coverage report for the query and whether AI extraction
// should be escalated. Escalation triggers when coverage is below 100% or any
// true conflict exists; a fully covered, conflict-free query takes the fast
// path. Fuzzy entities participate in conflict detection the same as exact
// ones. Pure function; never errors.
func Analyze(query string, entities []model.Entity) (model.CoverageReport, bool) {
	runes := []rune(query)

	report := model.CoverageReport{
		Conflicts: detectConflicts(entities),
	}

	union := unionSpans(entities, len(runes))

	// Whitespace carries no meaning, so it is excluded from both sides of
	// the ratio: "pump overheating" with both words matched is 100% covered
	// even though the separating space belongs to no entity.
	covered := make([]bool, len(runes))
	for _, s := range union {
		for i := s.Start; i < s.End; i++ {
			covered[i] = true
		}
	}
	for i, r := range runes {
		if unicode.IsSpace(r) {
			continue
		}
		report.TotalChars++
		if covered[i] {
			report.CoveredChars++
		}
	}
	if report.TotalChars > 0 {
		report.CoveragePct = float64(report.CoveredChars) / float64(report.TotalChars)
	}

	report.UncoveredRanges = uncoveredRanges(runes, covered)

	needsAI := report.CoveragePct < 1.0 || len(report.Conflicts) > 0
	return report, needsAI
}

// detectConflicts returns every unordered pair of entities of different
// types whose spans partially overlap without either containing the other.
// Containment is normal nested-gazetteer behavior, never a conflict.
func detectConflicts(entities []model.Entity) []model.ConflictPair {
	var conflicts []model.ConflictPair
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			a, b := entities[i], entities[j]
			if a.Type == b.Type {
				continue
			}
			if !a.Span.Overlaps(b.Span) {
				continue
			}
			if a.Span.Contains(b.Span) || b.Span.Contains(a.Span) {
				continue
			}
			conflicts = append(conflicts, model.ConflictPair{A: a, B: b})
		}
	}
	return conflicts
}

// unionSpans merges entity spans into disjoint, sorted intervals clamped to
// the query bounds.
func unionSpans(entities []model.Entity, queryLen int) []model.Span {
	spans := make([]model.Span, 0, len(entities))
	for _, ent := range entities {
		s := ent.Span
		if s.Start < 0 {
			s.Start = 0
		}
		if s.End > queryLen {
			s.End = queryLen
		}
		if s.Start >= s.End {
			continue
		}
		spans = append(spans, s)
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})

	var merged []model.Span
	for _, s := range spans {
		if len(merged) > 0 && s.Start <= merged[len(merged)-1].End {
			if s.End > merged[len(merged)-1].End {
				merged[len(merged)-1].End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// uncoveredRanges returns the maximal runs of uncovered characters that
// contain at least one non-space rune.
func uncoveredRanges(runes []rune, covered []bool) []model.Span {
	var out []model.Span
	start := -1
	meaningful := false
	flush := func(end int) {
		if start >= 0 && meaningful {
			out = append(out, model.Span{Start: start, End: end})
		}
		start = -1
		meaningful = false
	}
	for i := range runes {
		if covered[i] {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
		}
		if !unicode.IsSpace(runes[i]) {
			meaningful = true
		}
	}
	flush(len(runes))
	return out
}
