package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/plantops/queryengine/internal/engine"
	"github.com/plantops/queryengine/internal/escalate"
	"github.com/plantops/queryengine/internal/extract"
	"github.com/plantops/queryengine/internal/monitoring"
	"github.com/plantops/queryengine/internal/planner"
	"github.com/plantops/queryengine/internal/store"
	"github.com/plantops/queryengine/pkg/anthropic"
)

// engineEnv holds the initialized data source and engine for the search,
// serve, and capabilities commands.
type engineEnv struct {
	Source  store.Source
	Engine  *engine.Engine
	Metrics *monitoring.Collector
}

// Close releases resources held by the environment.
func (env *engineEnv) Close() {
	if env.Source != nil {
		_ = env.Source.Close()
	}
}

// initEngine validates config, opens the data source, loads the gazetteer,
// and wires the engine. Callers should defer env.Close().
func initEngine(ctx context.Context) (*engineEnv, error) {
	if err := cfg.Validate(planner.KnownEntityTypes()); err != nil {
		return nil, err
	}

	src, err := initSource(ctx)
	if err != nil {
		return nil, err
	}

	gaz, err := loadGazetteer()
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	ex, err := extract.New(gaz, extract.Options{
		MinFuzzyTokenLen:     cfg.Extract.Fuzzy.MinTokenLen,
		FuzzySimilarity:      cfg.Extract.Fuzzy.Similarity,
		FuzzyShortSimilarity: cfg.Extract.Fuzzy.ShortSimilarity,
		FuzzyShortMaxLen:     cfg.Extract.Fuzzy.ShortMaxLen,
		FuzzyPenalty:         cfg.Extract.Fuzzy.ConfidencePenalty,
	})
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	var esc escalate.Escalator
	if cfg.Escalate.Enabled && cfg.Escalate.Key != "" {
		esc = escalate.New(anthropic.NewClient(cfg.Escalate.Key), escalate.Config{
			Model:      cfg.Escalate.Model,
			MaxTokens:  int64(cfg.Escalate.MaxTokens),
			RatePerMin: cfg.Escalate.RatePerMin,
		})
		zap.L().Info("ai escalation enabled", zap.String("model", cfg.Escalate.Model))
	} else {
		zap.L().Info("ai escalation disabled, fast path only")
	}

	metrics := monitoring.NewCollector()
	return &engineEnv{
		Source:  src,
		Engine:  engine.New(cfg, ex, src, esc, metrics),
		Metrics: metrics,
	}, nil
}

func initSource(ctx context.Context) (store.Source, error) {
	switch cfg.Store.Driver {
	case "postgres":
		src, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := src.Migrate(ctx); err != nil {
			_ = src.Close()
			return nil, eris.Wrap(err, "migrate source")
		}
		return src, nil
	case "sqlite":
		src, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := src.Migrate(ctx); err != nil {
			_ = src.Close()
			return nil, eris.Wrap(err, "migrate source")
		}
		if err := src.Seed(ctx); err != nil {
			_ = src.Close()
			return nil, eris.Wrap(err, "seed source")
		}
		return src, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func loadGazetteer() (*extract.Gazetteer, error) {
	if cfg.Extract.GazetteerPath == "" {
		return extract.DefaultGazetteer(), nil
	}
	return extract.LoadGazetteer(cfg.Extract.GazetteerPath)
}
