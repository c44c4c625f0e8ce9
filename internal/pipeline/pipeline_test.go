package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func appendStep(name string, deps []string, got *[]string) Step {
	return Step{
		Name: name,
		Deps: deps,
		Run: func(context.Context) error {
			*got = append(*got, name)
			return nil
		},
	}
}

func TestPipeline_TopologicalOrder(t *testing.T) {
	var got []string
	p := New(WithLogger(quiet())).
		Add(appendStep("report", []string{"reconcile"}, &got)).
		Add(appendStep("extract_crm", nil, &got)).
		Add(appendStep("reconcile", []string{"extract_analytics", "extract_crm"}, &got)).
		Add(appendStep("extract_analytics", nil, &got))

	require.NoError(t, p.Run(context.Background()))
	require.Equal(t, []string{"extract_crm", "extract_analytics", "reconcile", "report"}, got)
}

func TestPipeline_InsertionOrderStable(t *testing.T) {
	var got []string
	p := New(WithLogger(quiet())).
		Add(appendStep("a", nil, &got)).
		Add(appendStep("b", nil, &got)).
		Add(appendStep("c", nil, &got))

	require.NoError(t, p.Run(context.Background()))
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestPipeline_RetriesThenSucceeds(t *testing.T) {
	attempts := 0
	p := New(WithRetries(2), WithRetryDelay(0), WithLogger(quiet())).
		Add(Step{Name: "flaky", Run: func(context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("transient")
			}
			return nil
		}})

	require.NoError(t, p.Run(context.Background()))
	require.Equal(t, 3, attempts)
}

func TestPipeline_ExhaustedRetriesAbort(t *testing.T) {
	attempts := 0
	ran := false
	p := New(WithRetries(1), WithRetryDelay(0), WithLogger(quiet())).
		Add(Step{Name: "broken", Run: func(context.Context) error {
			attempts++
			return errors.New("boom")
		}}).
		Add(Step{Name: "downstream", Deps: []string{"broken"}, Run: func(context.Context) error {
			ran = true
			return nil
		}})

	err := p.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "step broken")
	require.Equal(t, 2, attempts)
	require.False(t, ran)
}

func TestPipeline_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(WithRetries(3), WithLogger(quiet())).
		Add(Step{Name: "slow", Run: func(context.Context) error {
			cancel()
			return errors.New("fail once")
		}})

	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_ValidationErrors(t *testing.T) {
	noop := func(context.Context) error { return nil }

	t.Run("duplicate step", func(t *testing.T) {
		p := New(WithLogger(quiet())).
			Add(Step{Name: "x", Run: noop}).
			Add(Step{Name: "x", Run: noop})
		require.ErrorContains(t, p.Run(context.Background()), "duplicate step")
	})

	t.Run("unknown dependency", func(t *testing.T) {
		p := New(WithLogger(quiet())).
			Add(Step{Name: "x", Deps: []string{"missing"}, Run: noop})
		require.ErrorContains(t, p.Run(context.Background()), "unknown step")
	})

	t.Run("cycle", func(t *testing.T) {
		p := New(WithLogger(quiet())).
			Add(Step{Name: "a", Deps: []string{"b"}, Run: noop}).
			Add(Step{Name: "b", Deps: []string{"a"}, Run: noop})
		require.ErrorContains(t, p.Run(context.Background()), "cycle")
	})
}
