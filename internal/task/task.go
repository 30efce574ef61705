// Package task runs resumable units of work that yield between steps.
//
// A Step does a bounded amount of work per call and reports whether it needs
// to be called again. Run drives a Step to completion, checks the context
// after every yield and always releases the step, so transient resources are
// freed on success, failure and cancellation alike.
package task

import (
	"context"
	"sync"
)

// Status is the outcome of one call to Step.
type Status int

const (
	// Continue asks the driver to call Step again.
	Continue Status = iota
	// Done reports that the work is complete.
	Done
)

func (s Status) String() string {
	switch s {
	case Continue:
		return "continue"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Step is a resumable unit of work.
type Step interface {
	// Step performs the next slice of work.
	Step(ctx context.Context) (Status, error)
	// Release frees the transient resources of the step. It may be called
	// before the work is done and must be safe to call more than once.
	Release()
}

// Progressor is implemented by steps that can report their progress in
// [0,1].
type Progressor interface {
	Progress() float64
}

type funcStep struct {
	step    func(ctx context.Context) (Status, error)
	release func()
	once    sync.Once
}

// Func adapts a step function and an optional release function.
func Func(step func(ctx context.Context) (Status, error), release func()) Step {
	return &funcStep{step: step, release: release}
}

// Once adapts a function that completes in a single call.
func Once(fn func(ctx context.Context) error, release func()) Step {
	return Func(func(ctx context.Context) (Status, error) {
		if err := fn(ctx); err != nil {
			return Done, err
		}
		return Done, nil
	}, release)
}

func (s *funcStep) Step(ctx context.Context) (Status, error) { return s.step(ctx) }

func (s *funcStep) Release() {
	if s.release == nil {
		return
	}
	s.once.Do(s.release)
}

// Sequence runs steps one after another. A step is released as soon as it
// is done; Release frees the steps that have not completed.
type Sequence struct {
	steps   []Step
	current int
}

// NewSequence returns a Sequence of steps.
func NewSequence(steps ...Step) *Sequence {
	return &Sequence{steps: steps}
}

// Current returns the index of the running step.
func (s *Sequence) Current() int { return s.current }

// Len returns the number of steps.
func (s *Sequence) Len() int { return len(s.steps) }

// Step advances the running step.
func (s *Sequence) Step(ctx context.Context) (Status, error) {
	if s.current >= len(s.steps) {
		return Done, nil
	}
	st, err := s.steps[s.current].Step(ctx)
	if err != nil {
		return Done, err
	}
	if st == Done {
		s.steps[s.current].Release()
		s.current++
	}
	if s.current >= len(s.steps) {
		return Done, nil
	}
	return Continue, nil
}

// Progress reports the share of completed steps, refined by the running
// step when it implements Progressor.
func (s *Sequence) Progress() float64 {
	if len(s.steps) == 0 || s.current >= len(s.steps) {
		return 1
	}
	p := float64(s.current)
	if pr, ok := s.steps[s.current].(Progressor); ok {
		p += pr.Progress()
	}
	return p / float64(len(s.steps))
}

// Release frees every step that has not completed.
func (s *Sequence) Release() {
	for i := s.current; i < len(s.steps); i++ {
		s.steps[i].Release()
	}
}

// Run calls s.Step until it is done, returns an error or ctx is cancelled.
// The step is released before Run returns.
func Run(ctx context.Context, s Step) error {
	defer s.Release()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		st, err := s.Step(ctx)
		if err != nil {
			return err
		}
		if st == Done {
			return nil
		}
	}
}
