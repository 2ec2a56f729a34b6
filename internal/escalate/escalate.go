// Package escalate holds the consumed contract of the AI extraction
// escalator: the external collaborator invoked when deterministic extraction
// leaves the query under-covered or in conflict.
package escalate

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/plantops/queryengine/internal/model"
	"github.com/plantops/queryengine/internal/resilience"
	"github.com/plantops/queryengine/pkg/anthropic"
)

// Escalator returns additional or refined entities for a query the
// deterministic extractor could not fully explain. Implementations may be
// slow and may fail; the engine applies no retry policy of its own — retries
// are the escalator's responsibility.
type Escalator interface {
	Escalate(ctx context.Context, query string, partial []model.Entity) ([]model.Entity, error)
}

const system = `You extract typed entities from maintenance search queries.
Given a query and the entities already found, return a JSON array of ALL
entities in the query, including refined versions of the ones provided.
Each element: {"text": "<exact substring>", "type": "<entity type>",
"canonical": "<canonical form>", "start": <char offset>, "end": <char offset>,
"confidence": <0.0-1.0>}. Offsets are half-open character positions into the
query. Use the provided types where they fit; introduce a new snake_case type
only when nothing fits. Respond with the JSON array only.`

// Config tunes the Anthropic-backed escalator.
type Config struct {
	Model      string
	MaxTokens  int64
	RatePerMin float64
}

// AnthropicEscalator implements Escalator over the messages API. It owns its
// retry policy (transient failures only) and rate limit.
type AnthropicEscalator struct {
	client  anthropic.Client
	cfg     Config
	limiter *rate.Limiter
	retry   resilience.Policy
}

// New creates an AnthropicEscalator.
func New(client anthropic.Client, cfg Config) *AnthropicEscalator {
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	perMin := cfg.RatePerMin
	if perMin <= 0 {
		perMin = 60
	}
	return &AnthropicEscalator{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(perMin/60.0), 1),
		retry:   resilience.DefaultPolicy(),
	}
}

type wireEntity struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Canonical  string  `json:"canonical"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Escalate asks the model for a refined entity list. Returned entities carry
// source=ai; entities with invalid spans or types are dropped, not patched.
func (e *AnthropicEscalator) Escalate(ctx context.Context, query string, partial []model.Entity) ([]model.Entity, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "escalate: rate limit wait")
	}

	partialJSON, err := json.Marshal(partial)
	if err != nil {
		return nil, eris.Wrap(err, "escalate: marshal partial entities")
	}

	prompt := "Query: " + query + "\n\nEntities already found:\n" + string(partialJSON)

	completion, err := resilience.DoVal(ctx, e.retry, "escalate", func(ctx context.Context) (*anthropic.Completion, error) {
		return e.client.Complete(ctx, anthropic.CompletionRequest{
			Model:     e.cfg.Model,
			MaxTokens: e.cfg.MaxTokens,
			System:    system,
			Prompt:    prompt,
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "escalate: completion")
	}

	entities, err := parseEntities(completion.Text, query)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("escalate: entities returned",
		zap.Int("count", len(entities)),
		zap.Int64("input_tokens", completion.InputTokens),
		zap.Int64("output_tokens", completion.OutputTokens),
	)
	return entities, nil
}

// parseEntities decodes the model's JSON array, tolerating surrounding prose
// or code fences, and drops entities whose spans fall outside the query.
func parseEntities(text, query string) ([]model.Entity, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, eris.New("escalate: no JSON array in response")
	}

	var wire []wireEntity
	if err := json.Unmarshal([]byte(text[start:end+1]), &wire); err != nil {
		return nil, eris.Wrap(err, "escalate: parse response")
	}

	queryLen := utf8.RuneCountInString(query)
	out := make([]model.Entity, 0, len(wire))
	for _, w := range wire {
		if w.Text == "" || w.Type == "" {
			continue
		}
		if w.Start < 0 || w.End <= w.Start || w.End > queryLen {
			zap.L().Debug("escalate: dropping entity with invalid span",
				zap.String("text", w.Text),
				zap.Int("start", w.Start),
				zap.Int("end", w.End),
			)
			continue
		}
		confidence := w.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = 0.5
		}
		canonical := w.Canonical
		if canonical == "" {
			canonical = strings.ToLower(w.Text)
		}
		out = append(out, model.Entity{
			Text:       w.Text,
			Type:       model.EntityType(w.Type),
			Canonical:  canonical,
			Span:       model.Span{Start: w.Start, End: w.End},
			Confidence: confidence,
			Source:     model.SourceAI,
		})
	}
	return out, nil
}
