package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signalbot_messages_total", Help: "Incoming messages by parse result"},
		[]string{"result"},
	)
	OrdersPlacedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signalbot_orders_placed_total", Help: "Pending orders accepted by the terminal"},
		[]string{"direction", "kind"},
	)
	BrokerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signalbot_broker_errors_total", Help: "Terminal calls that failed"},
		[]string{"op"},
	)
	SLUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signalbot_sl_updates_total", Help: "Stop-loss modifications per target"},
		[]string{"result"},
	)
	RiskWarningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signalbot_risk_warnings_total", Help: "Risk warnings raised while sizing orders"},
		[]string{"code"},
	)
	SweepTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signalbot_sweep_transitions_total", Help: "Status transitions applied by the sweeper"},
		[]string{"status"},
	)
	TrackedOrders = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "signalbot_tracked_orders", Help: "Orders currently held by the tracker"},
	)
)

func init() {
	prometheus.MustRegister(
		MessagesTotal,
		OrdersPlacedTotal,
		BrokerErrorsTotal,
		SLUpdatesTotal,
		RiskWarningsTotal,
		SweepTransitionsTotal,
		TrackedOrders,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
