// Package metrics provides Prometheus metrics for the routing lab node
// runtime.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "routelab"

// Metrics contains every Prometheus metric exposed by a running node.
type Metrics struct {
	// Packet flow
	PacketsSent      *prometheus.CounterVec
	PacketsReceived  *prometheus.CounterVec
	PacketsDropped   *prometheus.CounterVec
	PacketsForwarded prometheus.Counter

	// Routing state
	RoutesActive       prometheus.Gauge
	RouteRecomputes    prometheus.Counter
	RouteRecomputeTime prometheus.Histogram

	// Flooding
	SeenSetSize    prometheus.Gauge
	FloodedPackets prometheus.Counter

	// Distance-vector
	DVAdvertisementsSent prometheus.Counter
	DVAdvertisementsRecv prometheus.Counter
	DVTableUpdates       prometheus.Counter

	// Link-state
	LSASent     prometheus.Counter
	LSAReceived prometheus.Counter
	LSADropped  *prometheus.CounterVec
	LSDBSize    prometheus.Gauge

	// Transport
	TransportErrors  *prometheus.CounterVec
	TransportLatency prometheus.Histogram
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the process-wide default metrics instance, lazily
// registered against the default Prometheus registry.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a Metrics instance registered against the default
// Prometheus registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a Metrics instance registered against
// reg, so tests can use a private registry instead of the global one.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PacketsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_sent_total",
			Help:      "Total packets sent, labeled by packet type.",
		}, []string{"type"}),
		PacketsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Total packets received, labeled by packet type.",
		}, []string{"type"}),
		PacketsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_dropped_total",
			Help:      "Total packets dropped, labeled by drop reason.",
		}, []string{"reason"}),
		PacketsForwarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_forwarded_total",
			Help:      "Total packets forwarded toward a next hop.",
		}),

		RoutesActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "routes_active",
			Help:      "Number of destinations currently reachable.",
		}),
		RouteRecomputes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_recomputes_total",
			Help:      "Total number of routing table recomputations.",
		}),
		RouteRecomputeTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_recompute_seconds",
			Help:      "Time spent recomputing the routing table.",
			Buckets:   prometheus.DefBuckets,
		}),

		SeenSetSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flood_seen_set_size",
			Help:      "Current number of entries in the flooding seen-set.",
		}),
		FloodedPackets: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flood_packets_total",
			Help:      "Total packets forwarded by flooding to all neighbors.",
		}),

		DVAdvertisementsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dv_advertisements_sent_total",
			Help:      "Total distance-vector advertisements sent.",
		}),
		DVAdvertisementsRecv: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dv_advertisements_received_total",
			Help:      "Total distance-vector advertisements received.",
		}),
		DVTableUpdates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dv_table_updates_total",
			Help:      "Total times a distance-vector table entry improved.",
		}),

		LSASent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lsa_sent_total",
			Help:      "Total link-state advertisements originated.",
		}),
		LSAReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lsa_received_total",
			Help:      "Total link-state advertisements accepted into the LSDB.",
		}),
		LSADropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lsa_dropped_total",
			Help:      "Total link-state advertisements dropped, labeled by reason.",
		}, []string{"reason"}),
		LSDBSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lsdb_size",
			Help:      "Current number of origins known in the link-state database.",
		}),

		TransportErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_errors_total",
			Help:      "Total transport errors, labeled by adapter kind.",
		}, []string{"adapter"}),
		TransportLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transport_publish_seconds",
			Help:      "Time spent publishing a packet to a single channel.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
