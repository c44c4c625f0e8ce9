// Package pipeline sequences named steps with dependency edges and a
// per-step retry policy. The reconciliation engine itself is side-effect
// free; retries exist for the I/O steps wrapped around it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Defaults matching the production schedule policy.
const (
	DefaultRetries    = 1
	DefaultRetryDelay = 5 * time.Second
)

// Step is one named unit of work. Deps name steps that must complete first.
type Step struct {
	Name string
	Deps []string
	Run  func(ctx context.Context) error
}

// Pipeline executes steps in dependency order.
type Pipeline struct {
	steps   []Step
	retries int
	delay   time.Duration
	logger  *slog.Logger
}

// Option configures a pipeline.
type Option func(*Pipeline)

// WithRetries sets how many times a failed step is re-attempted.
func WithRetries(n int) Option {
	return func(p *Pipeline) { p.retries = n }
}

// WithRetryDelay sets the fixed delay between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(p *Pipeline) { p.delay = d }
}

// WithLogger sets the structured logger for step outcomes.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		retries: DefaultRetries,
		delay:   DefaultRetryDelay,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Add registers a step. Dependency and cycle validation happens in Run.
func (p *Pipeline) Add(step Step) *Pipeline {
	p.steps = append(p.steps, step)
	return p
}

// Run executes every step in topological order. A step that still fails
// after all retry attempts aborts the run; downstream steps do not execute.
func (p *Pipeline) Run(ctx context.Context) error {
	order, err := p.sort()
	if err != nil {
		return err
	}
	for _, step := range order {
		if err := p.runStep(ctx, step); err != nil {
			return fmt.Errorf("step %s: %w", step.Name, err)
		}
	}
	return nil
}

func (p *Pipeline) runStep(ctx context.Context, step Step) error {
	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			p.logger.Warn("retrying step",
				"step", step.Name, "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.delay):
			}
		}
		start := time.Now()
		if err := step.Run(ctx); err != nil {
			lastErr = err
			continue
		}
		p.logger.Info("step complete", "step", step.Name, "duration", time.Since(start).String())
		return nil
	}
	return lastErr
}

// sort produces a topological order that preserves insertion order among
// ready steps, so repeated runs schedule identically.
func (p *Pipeline) sort() ([]Step, error) {
	byName := make(map[string]struct{}, len(p.steps))
	for _, s := range p.steps {
		if _, dup := byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate step %q", s.Name)
		}
		byName[s.Name] = struct{}{}
	}
	for _, s := range p.steps {
		for _, d := range s.Deps {
			if _, ok := byName[d]; !ok {
				return nil, fmt.Errorf("step %q depends on unknown step %q", s.Name, d)
			}
		}
	}

	done := make(map[string]bool, len(p.steps))
	order := make([]Step, 0, len(p.steps))
	for len(order) < len(p.steps) {
		progressed := false
		for _, s := range p.steps {
			if done[s.Name] {
				continue
			}
			ready := true
			for _, d := range s.Deps {
				if !done[d] {
					ready = false
					break
				}
			}
			if ready {
				done[s.Name] = true
				order = append(order, s)
				progressed = true
			}
		}
		if !progressed {
			return nil, fmt.Errorf("dependency cycle among pipeline steps")
		}
	}
	return order, nil
}
