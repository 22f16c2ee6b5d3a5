package enrich

import (
	"context"
	"log/slog"
	"sync"
)

// Pipeline runs a fixed sequence of stages over survey items. Stages run one
// after another; the steps of a stage run in parallel and all of them finish
// before the next stage starts. A failing step is logged and the item moves
// on, so one broken sink never drops a submission from the others.
//
// Pipeline is generic over the item type T.
type Pipeline[T any] struct {
	stages []Stage[T]
	logger *slog.Logger
}

// NewPipeline constructs a Pipeline from the provided stages.
func NewPipeline[T any](stages ...Stage[T]) *Pipeline[T] {
	return &Pipeline[T]{stages: stages, logger: slog.Default()}
}

// WithLogger returns p logging step failures to logger.
func (p *Pipeline[T]) WithLogger(logger *slog.Logger) *Pipeline[T] {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// Run applies every stage to a single item and reports how many steps
// failed. Stages not yet started when ctx is done are skipped.
func (p *Pipeline[T]) Run(ctx context.Context, item *T) int {
	failed := 0
	for i, stage := range p.stages {
		if ctx.Err() != nil {
			p.logger.Warn("pipeline cancelled", "stage", i, "error", ctx.Err())
			return failed
		}

		var (
			wg sync.WaitGroup
			mu sync.Mutex
		)
		for _, step := range stage.steps {
			wg.Add(1)
			go func(step Step[T]) {
				defer wg.Done()
				if err := step.fn(ctx, item); err != nil {
					p.logger.Error("step failed", "stage", i, "step", step.name, "error", err)
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}(step)
		}
		wg.Wait()
	}
	return failed
}

// Process consumes items until the input channel is closed or ctx is done.
func (p *Pipeline[T]) Process(ctx context.Context, in <-chan *T) {
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-in:
			if !ok {
				return
			}
			p.Run(ctx, item)
		}
	}
}
