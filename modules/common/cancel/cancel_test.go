package cancel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type flagChecker struct {
	cancelled map[string]bool
}

func (c flagChecker) IsJobCancelled(requestID string) bool {
	return c.cancelled[requestID]
}

func TestProbe(t *testing.T) {
	t.Run("false while running", func(t *testing.T) {
		probe := Probe(context.Background(), flagChecker{}, "req-1")
		require.False(t, probe())
	})

	t.Run("true when the flag is raised", func(t *testing.T) {
		checker := flagChecker{cancelled: map[string]bool{"req-1": true}}
		probe := Probe(context.Background(), checker, "req-1")
		require.True(t, probe())

		other := Probe(context.Background(), checker, "req-2")
		require.False(t, other())
	})

	t.Run("true when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		probe := Probe(ctx, flagChecker{}, "req-1")
		require.False(t, probe())

		cancel()
		require.True(t, probe())
	})

	t.Run("nil checker only watches the context", func(t *testing.T) {
		probe := Probe(context.Background(), nil, "req-1")
		require.False(t, probe())
	})
}
