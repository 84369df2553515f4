package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Each metrics file enqueues its collectors from init(); the process
// registers the whole set in one shot at startup.
var (
	registerOnce sync.Once
	pending      []prometheus.Collector
)

func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister installs every enqueued collector into the default registry.
// Repeated calls are no-ops; only the first one registers.
func MustRegister() {
	registerOnce.Do(func() {
		if len(pending) == 0 {
			return
		}
		prometheus.MustRegister(pending...)
	})
}
