package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartMutationsTotal counts effective cart mutations by operation.
	CartMutationsTotal *prometheus.CounterVec
	// CartPersistFailuresTotal counts failed blob writes by operation.
	CartPersistFailuresTotal *prometheus.CounterVec
	// CartLoadTotal counts cart restores by outcome (restored, empty, corrupt, error).
	CartLoadTotal *prometheus.CounterVec
	// CartSessionsActive tracks the number of stores held by the session registry.
	CartSessionsActive prometheus.Gauge
	// CartSessionEvictionsTotal counts stores dropped by the registry.
	CartSessionEvictionsTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers cart Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Count of effective cart mutations by operation.",
		}, []string{"op"})
		CartPersistFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_persist_failures_total",
			Help:      "Count of failed cart persistence writes by operation.",
		}, []string{"op"})
		CartLoadTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_load_total",
			Help:      "Count of cart restores from storage by result.",
		}, []string{"result"})
		CartSessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cart_sessions_active",
			Help:      "Number of cart stores currently held in memory.",
		})
		CartSessionEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_session_evictions_total",
			Help:      "Number of cart stores evicted from the session registry.",
		})

		CartMutationsTotal = register(reg, CartMutationsTotal)
		CartPersistFailuresTotal = register(reg, CartPersistFailuresTotal)
		CartLoadTotal = register(reg, CartLoadTotal)
		CartSessionsActive = register(reg, CartSessionsActive)
		CartSessionEvictionsTotal = register(reg, CartSessionEvictionsTotal)
	})
}
