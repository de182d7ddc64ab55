package shm

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// The atomic counters are the single source of truth; Prometheus reads them
// through CounterFuncs so tests can observe the same numbers directly.
var (
	creates        atomic.Uint64
	opens          atomic.Uint64
	unlinks        atomic.Uint64
	bytesAllocated atomic.Uint64
)

func init() {
	prometheus.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "modelshare",
			Subsystem: "shm",
			Name:      "segment_creates_total",
			Help:      "Total shared-memory segments created",
		}, func() float64 { return float64(creates.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "modelshare",
			Subsystem: "shm",
			Name:      "segment_opens_total",
			Help:      "Total shared-memory segments opened",
		}, func() float64 { return float64(opens.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "modelshare",
			Subsystem: "shm",
			Name:      "segment_unlinks_total",
			Help:      "Total shared-memory segments unlinked",
		}, func() float64 { return float64(unlinks.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "modelshare",
			Subsystem: "shm",
			Name:      "segment_bytes_allocated_total",
			Help:      "Total bytes allocated in shared-memory segments",
		}, func() float64 { return float64(bytesAllocated.Load()) }),
	)
}

// Opens reports the number of segment opens since process start.
func Opens() uint64 { return opens.Load() }

// Creates reports the number of segment creations since process start.
func Creates() uint64 { return creates.Load() }

// Unlinks reports the number of segment unlinks since process start.
func Unlinks() uint64 { return unlinks.Load() }
