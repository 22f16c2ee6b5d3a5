// Package enrich provides a small, generic pipeline that runs independent
// steps in parallel within a stage while keeping stages sequential. The
// survey server uses it to fan a submission out to its sinks and the
// exporter uses it to geocode and store archived submissions.
package enrich

import (
	"context"
)

// StepFunc mutates or consumes the given item. Functions in the same stage
// run concurrently on the same item, so they must not write the same fields.
//
//	func archive(ctx context.Context, s *models.Submission) error { ... }
type StepFunc[T any] func(ctx context.Context, item *T) error

// Step is a named StepFunc. The name shows up in failure logs.
type Step[T any] struct {
	name string
	fn   StepFunc[T]
}

// NewStep names fn.
func NewStep[T any](name string, fn StepFunc[T]) Step[T] {
	return Step[T]{name: name, fn: fn}
}

// Name returns the step name.
func (s Step[T]) Name() string { return s.name }

// Stage groups steps that are safe to execute in parallel for one item.
type Stage[T any] struct {
	steps []Step[T]
}

// NewStage constructs a Stage from the provided steps.
func NewStage[T any](steps ...Step[T]) Stage[T] {
	return Stage[T]{steps: steps}
}

// Len reports the number of steps in the stage.
func (s Stage[T]) Len() int { return len(s.steps) }
