package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector(t *testing.T) {
	ResetForTesting()
	t.Cleanup(ResetForTesting)

	t.Run("is a singleton", func(t *testing.T) {
		a := NewCollector("obscore")
		b := NewCollector("obscore")
		assert.Same(t, a, b)
	})

	t.Run("metrics are registered and gatherable", func(t *testing.T) {
		c := NewCollector("obscore")

		c.HTTPRequests.WithLabelValues("GET", "/orders", "200").Inc()
		c.SlowQueries.Inc()
		c.AlertsDispatched.Inc()

		families, err := c.GetRegistry().Gather()
		require.NoError(t, err)

		names := make(map[string]bool, len(families))
		for _, f := range families {
			names[f.GetName()] = true
		}
		assert.True(t, names["obscore_http_requests_total"])
		assert.True(t, names["obscore_slow_queries_total"])
		assert.True(t, names["obscore_alerts_dispatched_total"])
	})
}
