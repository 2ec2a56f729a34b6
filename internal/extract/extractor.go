package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/plantops/queryengine/internal/model"
)

// Options tunes the extractor. Zero values are replaced by DefaultOptions.
type Options struct {
	// MinFuzzyTokenLen is the minimum token length (runes) eligible for the
	// fuzzy fallback.
	MinFuzzyTokenLen int
	// FuzzySimilarity is the acceptance threshold for fuzzy matches.
	FuzzySimilarity float64
	// FuzzyShortSimilarity is the stricter threshold applied to tokens no
	// longer than FuzzyShortMaxLen. Short tokens are more error-prone.
	FuzzyShortSimilarity float64
	FuzzyShortMaxLen     int
	// FuzzyPenalty scales the type base weight for fuzzy hits.
	FuzzyPenalty float64
}

// DefaultOptions returns the standard fuzzy tuning.
func DefaultOptions() Options {
	return Options{
		MinFuzzyTokenLen:     4,
		FuzzySimilarity:      0.80,
		FuzzyShortSimilarity: 0.85,
		FuzzyShortMaxLen:     5,
		FuzzyPenalty:         0.92,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MinFuzzyTokenLen <= 0 {
		o.MinFuzzyTokenLen = def.MinFuzzyTokenLen
	}
	if o.FuzzySimilarity <= 0 {
		o.FuzzySimilarity = def.FuzzySimilarity
	}
	if o.FuzzyShortSimilarity <= 0 {
		o.FuzzyShortSimilarity = def.FuzzyShortSimilarity
	}
	if o.FuzzyShortMaxLen <= 0 {
		o.FuzzyShortMaxLen = def.FuzzyShortMaxLen
	}
	if o.FuzzyPenalty <= 0 {
		o.FuzzyPenalty = def.FuzzyPenalty
	}
	return o
}

type termHit struct {
	entityType string
	canonical  string
	confidence float64
}

type fuzzyCandidate struct {
	folded     string
	entityType string
	canonical  string
	confidence float64
}

type compiledPattern struct {
	re         *regexp.Regexp
	entityType string
	confidence float64
	upper      bool
}

// Extractor matches gazetteer phrases, regex rules, and fuzzy token
// fallbacks against query text. Safe for concurrent use; all state is
// immutable after New.
type Extractor struct {
	index     map[string][]termHit // folded n-gram -> hits
	maxTokens int
	fuzzy     []fuzzyCandidate
	patterns  []compiledPattern
	opts      Options
}

// New builds an Extractor from a gazetteer. Regex rules are compiled here so
// a bad pattern fails startup, not a request.
func New(gaz *Gazetteer, opts Options) (*Extractor, error) {
	e := &Extractor{
		index: make(map[string][]termHit),
		opts:  opts.withDefaults(),
	}

	for entityType, terms := range gaz.Terms {
		base := gaz.TypeWeight(entityType)
		for _, t := range terms {
			weight := t.Weight
			if weight == 0 {
				weight = 1.0
			}
			canonical := t.Canonical
			if canonical == "" {
				canonical = Fold(t.Text)
			}
			tokens := tokenize(t.Text)
			if len(tokens) == 0 {
				continue
			}
			key := foldedKey(tokens)
			hit := termHit{
				entityType: entityType,
				canonical:  canonical,
				confidence: base * weight,
			}
			e.index[key] = append(e.index[key], hit)
			if len(tokens) > e.maxTokens {
				e.maxTokens = len(tokens)
			}
			if len(tokens) == 1 {
				e.fuzzy = append(e.fuzzy, fuzzyCandidate{
					folded:     Fold(tokens[0].text),
					entityType: entityType,
					canonical:  canonical,
					confidence: base * weight,
				})
			}
		}
	}

	// Deterministic fuzzy candidate order so score ties resolve stably.
	sort.Slice(e.fuzzy, func(i, j int) bool {
		if e.fuzzy[i].folded != e.fuzzy[j].folded {
			return e.fuzzy[i].folded < e.fuzzy[j].folded
		}
		return e.fuzzy[i].entityType < e.fuzzy[j].entityType
	})

	for _, p := range gaz.Patterns {
		re, err := regexp.Compile(p.Regexp)
		if err != nil {
			return nil, eris.Wrapf(err, "extract: compile pattern for type %s", p.Type)
		}
		weight := p.Weight
		if weight == 0 {
			weight = 1.0
		}
		e.patterns = append(e.patterns, compiledPattern{
			re:         re,
			entityType: p.Type,
			confidence: gaz.TypeWeight(p.Type) * weight,
			upper:      p.Upper,
		})
	}

	return e, nil
}

// Extract returns all entity matches in the query. Overlapping matches are
// kept; resolution happens downstream in coverage analysis and ranking.
// Never errors; returns an empty slice when nothing matches.
func (e *Extractor) Extract(query string) []model.Entity {
	runes := []rune(query)
	tokens := tokenize(query)

	var entities []model.Entity
	entities = append(entities, e.matchGazetteer(runes, tokens)...)
	entities = append(entities, e.matchPatterns(query)...)
	entities = append(entities, e.matchFuzzy(tokens, entities)...)

	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Span.Start != entities[j].Span.Start {
			return entities[i].Span.Start < entities[j].Span.Start
		}
		if entities[i].Span.End != entities[j].Span.End {
			return entities[i].Span.End > entities[j].Span.End // longer first
		}
		return entities[i].Type < entities[j].Type
	})

	if entities == nil {
		entities = []model.Entity{}
	}
	return entities
}

// matchGazetteer scans every token n-gram against the term index.
func (e *Extractor) matchGazetteer(runes []rune, tokens []token) []model.Entity {
	var out []model.Entity
	for i := range tokens {
		for n := e.maxTokens; n >= 1; n-- {
			if i+n > len(tokens) {
				continue
			}
			key := foldedKey(tokens[i : i+n])
			hits, ok := e.index[key]
			if !ok {
				continue
			}
			span := model.Span{Start: tokens[i].start, End: tokens[i+n-1].end}
			text := string(runes[span.Start:span.End])
			for _, h := range hits {
				out = append(out, model.Entity{
					Text:       text,
					Type:       model.EntityType(h.entityType),
					Canonical:  h.canonical,
					Span:       span,
					Confidence: h.confidence,
					Source:     model.SourceGazetteer,
				})
			}
		}
	}
	return out
}

// matchPatterns runs the regex rules over the original query, translating
// byte offsets to rune offsets.
func (e *Extractor) matchPatterns(query string) []model.Entity {
	byteToRune := runeOffsets(query)
	var out []model.Entity
	for _, p := range e.patterns {
		for _, loc := range p.re.FindAllStringIndex(query, -1) {
			text := query[loc[0]:loc[1]]
			canonical := Fold(text)
			if p.upper {
				canonical = strings.ToUpper(text)
			}
			out = append(out, model.Entity{
				Text:       text,
				Type:       model.EntityType(p.entityType),
				Canonical:  canonical,
				Span:       model.Span{Start: byteToRune[loc[0]], End: byteToRune[loc[1]]},
				Confidence: p.confidence,
				Source:     model.SourceRegex,
			})
		}
	}
	return out
}

// matchFuzzy runs the edit-similarity fallback over tokens no other matcher
// claimed. Acceptance needs similarity >= 0.80, or >= 0.85 for tokens of
// length 4-5.
func (e *Extractor) matchFuzzy(tokens []token, matched []model.Entity) []model.Entity {
	var out []model.Entity
	for _, tok := range tokens {
		length := tok.end - tok.start
		if length < e.opts.MinFuzzyTokenLen {
			continue
		}
		span := model.Span{Start: tok.start, End: tok.end}
		if coveredByAny(span, matched) {
			continue
		}

		threshold := e.opts.FuzzySimilarity
		if length <= e.opts.FuzzyShortMaxLen {
			threshold = e.opts.FuzzyShortSimilarity
		}

		folded := Fold(tok.text)
		var best *fuzzyCandidate
		bestSim := 0.0
		for i := range e.fuzzy {
			sim := Similarity(folded, e.fuzzy[i].folded)
			if sim < threshold {
				continue
			}
			if sim > bestSim {
				bestSim = sim
				best = &e.fuzzy[i]
			}
		}
		if best == nil {
			continue
		}
		out = append(out, model.Entity{
			Text:       tok.text,
			Type:       model.EntityType(best.entityType),
			Canonical:  best.canonical,
			Span:       span,
			Confidence: best.confidence * e.opts.FuzzyPenalty,
			Source:     model.SourceFuzzy,
		})
	}
	return out
}

func coveredByAny(span model.Span, entities []model.Entity) bool {
	for _, ent := range entities {
		if ent.Span.Overlaps(span) {
			return true
		}
	}
	return false
}

// token is a run of letters or digits with rune offsets into the query.
type token struct {
	text  string
	start int
	end   int
}

func tokenize(s string) []token {
	var tokens []token
	runes := []rune(s)
	start := -1
	for i, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, token{text: string(runes[start:i]), start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{text: string(runes[start:]), start: start, end: len(runes)})
	}
	return tokens
}

func foldedKey(tokens []token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = Fold(t.text)
	}
	return strings.Join(parts, " ")
}

// runeOffsets maps every byte offset of s (plus len(s)) to its rune offset.
func runeOffsets(s string) map[int]int {
	offsets := make(map[int]int, len(s)+1)
	r := 0
	for b := range s {
		offsets[b] = r
		r++
	}
	offsets[len(s)] = r
	return offsets
}
