package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/phonelookup/internal/health"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestShutdown_RunsHooksInReverseOrder(t *testing.T) {
	s := NewShutdown(quietLogger())

	var order []string
	s.Register("store", func(ctx context.Context) error { order = append(order, "store"); return nil })
	s.Register("scheduler", func(ctx context.Context) error { order = append(order, "scheduler"); return errors.New("stuck") })
	s.Register("http", func(ctx context.Context) error { order = append(order, "http"); return nil })
	s.Register("nil", nil)

	err := s.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduler: stuck")
	assert.Equal(t, []string{"http", "scheduler", "store"}, order)
}

func TestProbes_Readiness(t *testing.T) {
	checker := health.NewChecker(quietLogger())
	healthy := true
	checker.AddCheck("store", health.CheckFunc(func(ctx context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	}))

	probes := NewProbes(checker, quietLogger())
	assert.NoError(t, probes.Liveness(context.Background()))
	assert.NoError(t, probes.Readiness(context.Background()))

	healthy = false
	err := probes.Readiness(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store")

	healthy = true
	probes.MarkDraining()
	assert.Error(t, probes.Readiness(context.Background()))
	assert.NoError(t, probes.Liveness(context.Background()))
}
