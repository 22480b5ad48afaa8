package payment

import (
	"github.com/prometheus/client_golang/prometheus"
)

var PaymentsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "payments_total",
		Help: "Payment transactions by status transition",
	},
	[]string{"status"},
)

func init() {
	prometheus.MustRegister(PaymentsTotal)
}
