package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionEventsTotal,
		surveysCompletedTotal,
	)
}

var (
	subscriptionEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_events_total",
			Help: "Subscription lifecycle events (provisioned/extended/plan_switched/expired).",
		},
		[]string{"event"},
	)

	surveysCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "surveys_completed_total",
			Help: "Total number of completed pre-expiry surveys.",
		},
	)
)

func IncSubscription(event string) {
	subscriptionEventsTotal.WithLabelValues(norm(event)).Inc()
}

func IncSurveyCompleted() {
	surveysCompletedTotal.Inc()
}
