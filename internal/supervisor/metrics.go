package supervisor

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"llamad/internal/device"
)

var (
	spawnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "llamad",
			Subsystem: "supervisor",
			Name:      "spawns_total",
			Help:      "Total llama-server processes spawned",
		},
	)

	terminationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "llamad",
			Subsystem: "supervisor",
			Name:      "terminations_total",
			Help:      "Total tracked server processes terminated",
		},
	)

	orphanKillsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "llamad",
			Subsystem: "supervisor",
			Name:      "orphan_kills_total",
			Help:      "Total orphaned server processes terminated by the sweep",
		},
	)

	deviceAvailableBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "llamad",
			Subsystem: "device",
			Name:      "available_bytes",
			Help:      "Available memory budget per discovered device",
		},
		[]string{"ordinal"},
	)
)

func init() {
	prometheus.MustRegister(spawnsTotal, terminationsTotal, orphanKillsTotal, deviceAvailableBytes)
}

// exportDeviceMetrics publishes the per-device memory budget once, at
// construction; the inventory never changes afterwards.
func exportDeviceMetrics(inv *device.Inventory) {
	if inv == nil {
		return
	}
	for _, d := range inv.Devices() {
		deviceAvailableBytes.WithLabelValues(strconv.Itoa(d.Ordinal)).Set(float64(d.AvailableMemory))
	}
}
