package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(ordersCreatedTotal) }

var ordersCreatedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders created, labeled by product direction.",
	},
	[]string{"direction"},
)

func IncOrder(direction string) {
	ordersCreatedTotal.WithLabelValues(norm(direction)).Inc()
}
