package resilience

import "github.com/prometheus/client_golang/prometheus"

// Breaker collectors are labelled by target, the guarded storage backend
// (e.g. "redis", "postgres").
var (
	// BreakerState is 0 while closed, 1 while open and 2 while half-open.
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cart_storage_breaker_state",
		Help: "State of the breaker guarding cart storage: 0=closed, 1=open, 2=half-open.",
	}, []string{"target"})
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_storage_breaker_transitions_total",
		Help: "Breaker state changes for cart storage by from/to state.",
	}, []string{"target", "from", "to"})
	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_storage_breaker_open_total",
		Help: "Times the cart storage breaker tripped open.",
	}, []string{"target"})
	// BreakerRejectedTotal counts storage calls refused without reaching the backend.
	BreakerRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_storage_breaker_rejected_total",
		Help: "Cart storage calls short-circuited by an open breaker.",
	}, []string{"target"})
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal, BreakerRejectedTotal)
}
