// Package metrics exports Prometheus metrics for register bus traffic and
// device state.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/micro-nova/lpg-go/internal/lpg"
)

var (
	busOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lpg",
		Subsystem: "bus",
		Name:      "ops_total",
		Help:      "Register bus operations issued",
	}, []string{"op"})

	busErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lpg",
		Subsystem: "bus",
		Name:      "errors_total",
		Help:      "Register bus operations that failed",
	}, []string{"op"})

	busLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lpg",
		Subsystem: "bus",
		Name:      "op_duration_seconds",
		Help:      "Register bus operation latency",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05},
	}, []string{"op"})

	lutUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lpg",
		Subsystem: "lut",
		Name:      "entries_used",
		Help:      "Allocated LUT entries",
	})

	lutSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lpg",
		Subsystem: "lut",
		Name:      "entries",
		Help:      "LUT size in entries",
	})

	channelState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lpg",
		Subsystem: "channel",
		Name:      "state",
		Help:      "Channel state: 0 disabled, 1 pwm, 2 ramp",
	}, []string{"channel", "led"})

	channelDuty = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lpg",
		Subsystem: "channel",
		Name:      "duty_ratio",
		Help:      "Programmed duty code over full scale",
	}, []string{"channel"})

	channelPeriod = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lpg",
		Subsystem: "channel",
		Name:      "period_microseconds",
		Help:      "Requested PWM period",
	}, []string{"channel"})
)

// Observe records a device snapshot.
func Observe(s lpg.Snapshot) {
	lutUsed.Set(float64(s.LUTUsed))
	lutSize.Set(float64(s.LUTSize))

	// Ownership can change on topology reload.
	channelState.Reset()
	for _, c := range s.Channels {
		id := strconv.Itoa(c.Index)
		channelState.WithLabelValues(id, c.LED).Set(float64(c.State))
		channelPeriod.WithLabelValues(id).Set(float64(c.PeriodUS))
		var ratio float64
		if c.Resolution != 0 {
			ratio = float64(c.Duty) / float64(uint32(1)<<c.Resolution-1)
		}
		channelDuty.WithLabelValues(id).Set(ratio)
	}
}
