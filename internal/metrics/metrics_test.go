package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistered(t *testing.T) {
	MessagesTotal.WithLabelValues("signal").Inc()
	OrdersPlacedTotal.WithLabelValues("SELL", "LIMIT").Inc()
	TrackedOrders.Set(2)

	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["signalbot_messages_total"])
	assert.True(t, names["signalbot_orders_placed_total"])
	assert.True(t, names["signalbot_tracked_orders"])
}

func TestHandlerExposesMetrics(t *testing.T) {
	RiskWarningsTotal.WithLabelValues("sl_distance").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `signalbot_risk_warnings_total{code="sl_distance"}`)
}
