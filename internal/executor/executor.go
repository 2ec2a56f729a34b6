// Package executor fans out the planned capabilities over a bounded worker
// pool with a per-capability deadline. No capability failure or timeout ever
// aborts the request or its sibling capabilities.
package executor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/plantops/queryengine/internal/model"
)

// Runner executes one capability's backing query. Implementations must treat
// query text strictly as a bound parameter — capability templates are
// pre-defined and never interpolate raw query text.
type Runner interface {
	Run(ctx context.Context, capability model.Capability, q model.QueryContext) ([]model.Row, error)
}

// Executor runs available capabilities concurrently and collects exactly one
// outcome per capability.
type Executor struct {
	runner         Runner
	maxConcurrent  int
	defaultTimeout time.Duration
}

// New creates an Executor. maxConcurrent caps the worker pool (minimum 1);
// defaultTimeout applies to capabilities without their own timeout.
func New(runner Runner, maxConcurrent int, defaultTimeout time.Duration) *Executor {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 5 * time.Second
	}
	return &Executor{
		runner:         runner,
		maxConcurrent:  maxConcurrent,
		defaultTimeout: defaultTimeout,
	}
}

// Execute runs every available capability in the plan and waits for all
// outcomes — success, error, or timeout — before returning. The result holds
// exactly one ExecutionOutcome per available capability, in plan order.
//
// Caller cancellation is deliberately not propagated into capability tasks:
// in-flight work runs to its own completion or deadline and the caller
// discards the results, so the data-source driver is never left mid-query.
func (e *Executor) Execute(ctx context.Context, plan model.CapabilityPlan, q model.QueryContext) []model.ExecutionOutcome {
	available := plan.AvailableCapabilities()
	outcomes := make([]model.ExecutionOutcome, len(available))

	var g errgroup.Group
	g.SetLimit(e.maxConcurrent)
	for i, capability := range available {
		g.Go(func() error {
			outcomes[i] = e.runOne(ctx, capability, q)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures live in outcomes

	return outcomes
}

func (e *Executor) runOne(parent context.Context, capability model.Capability, q model.QueryContext) model.ExecutionOutcome {
	timeout := capability.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.runner.Run(ctx, capability, q)
	outcome := model.ExecutionOutcome{
		CapabilityID: capability.ID,
		Duration:     time.Since(start),
	}

	switch {
	case err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)):
		outcome.TimedOut = true
		zap.L().Warn("executor: capability timed out",
			zap.String("request_id", q.RequestID),
			zap.String("capability", capability.ID),
			zap.Duration("timeout", timeout),
		)
	case err != nil:
		outcome.Err = err
		zap.L().Warn("executor: capability failed",
			zap.String("request_id", q.RequestID),
			zap.String("capability", capability.ID),
			zap.Error(err),
		)
	default:
		outcome.Rows = rows
	}

	return outcome
}
