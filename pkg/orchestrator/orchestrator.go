// Package orchestrator fans a batch of session configurations out to
// session runners under a bounded-concurrency admission gate and aggregates
// one result per configuration. Session failures are isolated: no session
// can cancel, block, or fail any other, and the aggregate is returned only
// once every submitted session has reached a terminal state.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/godsownf/sessiondiff/pkg/session"
)

// Runner executes one session end to end and always returns a result.
type Runner interface {
	Run(ctx context.Context) session.Result
}

// Factory builds the runner for one session configuration.
type Factory func(cfg session.Config) Runner

// Orchestrator schedules session runners under an admission gate.
type Orchestrator struct {
	factory Factory
	logger  *zap.Logger
}

// New creates an orchestrator using the given runner factory.
func New(factory Factory, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{factory: factory, logger: logger}
}

// Run submits every configuration at once; the weighted semaphore admits at
// most maxConcurrency sessions into active execution, with waiters served
// in roughly arrival order. The returned slice has exactly one result per
// input configuration, in input order, regardless of individual failures.
func (o *Orchestrator) Run(ctx context.Context, configs []session.Config, maxConcurrency int) ([]session.Result, error) {
	if maxConcurrency < 1 {
		return nil, fmt.Errorf("max concurrency must be positive, got %d", maxConcurrency)
	}

	gate := semaphore.NewWeighted(int64(maxConcurrency))
	results := make([]session.Result, len(configs))
	var wg sync.WaitGroup

	o.logger.Info("Starting session batch",
		zap.Int("sessions", len(configs)), zap.Int("max_concurrency", maxConcurrency))

	for i, cfg := range configs {
		wg.Add(1)
		go func(slot int, cfg session.Config) {
			defer wg.Done()
			if err := gate.Acquire(ctx, 1); err != nil {
				results[slot] = session.Result{AccountID: cfg.AccountID, Err: err}
				return
			}
			defer gate.Release(1)
			results[slot] = o.factory(cfg).Run(ctx)
		}(i, cfg)
	}
	wg.Wait()

	succeeded := 0
	for _, res := range results {
		if res.Succeeded {
			succeeded++
		}
	}
	o.logger.Info("Session batch finished",
		zap.Int("succeeded", succeeded), zap.Int("failed", len(results)-succeeded))
	return results, nil
}

// WaitForShutdown blocks until the context is cancelled. It backs the
// keep-alive mode: instead of an unconditional idle loop, the run stays
// alive exactly until the shutdown signal cancels the root context.
func WaitForShutdown(ctx context.Context, logger *zap.Logger) {
	if logger != nil {
		logger.Info("Keeping sessions alive until shutdown signal")
	}
	<-ctx.Done()
}
