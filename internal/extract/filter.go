package extract

import (
	"go.uber.org/zap"

	"github.com/plantops/queryengine/internal/model"
)

// Filter drops entities whose confidence falls below their type's threshold.
// The default threshold applies only to types without an explicit entry;
// config validation guarantees every planner-known type has one.
func Filter(entities []model.Entity, thresholds map[model.EntityType]float64, defaultThreshold float64) []model.Entity {
	out := make([]model.Entity, 0, len(entities))
	for _, ent := range entities {
		threshold, ok := thresholds[ent.Type]
		if !ok {
			threshold = defaultThreshold
		}
		if ent.Confidence >= threshold {
			out = append(out, ent)
			continue
		}
		zap.L().Debug("extract: entity below threshold",
			zap.String("text", ent.Text),
			zap.String("type", string(ent.Type)),
			zap.Float64("confidence", ent.Confidence),
			zap.Float64("threshold", threshold),
		)
	}
	return out
}

// Thresholds converts a string-keyed threshold table from config into the
// typed map the filter consumes.
func Thresholds(raw map[string]float64) map[model.EntityType]float64 {
	out := make(map[model.EntityType]float64, len(raw))
	for k, v := range raw {
		out[model.EntityType(k)] = v
	}
	return out
}
