// Package metrics exposes client-side prometheus collectors and the local
// debug HTTP server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values are bounded: effect system names, audio kinds and results,
// and a fixed set of network reasons. No per-player labels.
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flappy_tick_duration_seconds",
		Help:    "Time spent in one frame loop tick",
		Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.016, 0.033},
	})

	renderSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flappy_render_skipped_total",
		Help: "Ticks whose render stage was skipped (no surface, zero viewport or non-finite camera)",
	})

	framePanics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flappy_frame_panics_total",
		Help: "Tick panics recovered at the loop boundary",
	})

	entityCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flappy_entities",
		Help: "Entities in the latest snapshot",
	})

	bulletCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flappy_bullets_active",
		Help: "Bullets tracked by the simulator",
	})

	effectActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flappy_effects_active",
		Help: "Active entries per effect system",
	}, []string{"system"})

	effectDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flappy_effects_dropped_total",
		Help: "Spawns refused because a system was at its cap",
	}, []string{"system"})

	poolAllocated = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flappy_pool_allocated",
		Help: "Slots ever allocated per pool (high-water mark)",
	}, []string{"pool"})

	audioTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flappy_audio_triggers_total",
		Help: "Audio trigger outcomes",
	}, []string{"kind", "result"})

	snapshotsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flappy_snapshots_received_total",
		Help: "State snapshots applied from the server",
	})

	netMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flappy_net_messages_total",
		Help: "Server messages by type",
	}, []string{"type"})

	netReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flappy_net_reconnects_total",
		Help: "Connection attempts by outcome",
	}, []string{"reason"}) // Bounded: "dial", "read", "closed"

	netConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flappy_net_connected",
		Help: "1 while the websocket is connected",
	})

	debugRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flappy_debug_requests_rejected_total",
		Help: "Debug server requests rejected by the rate limiter",
	})
)

// RecordTick records tick timing.
func RecordTick(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

// RecordRenderSkipped counts a skipped render stage.
func RecordRenderSkipped() {
	renderSkipped.Inc()
}

// RecordPanic counts a recovered tick panic.
func RecordPanic() {
	framePanics.Inc()
}

// UpdateWorld sets the entity and bullet gauges.
func UpdateWorld(entities, bullets int) {
	entityCount.Set(float64(entities))
	bulletCount.Set(float64(bullets))
}

// UpdateEffect sets a system's active gauge and adds newly dropped spawns.
func UpdateEffect(system string, active, droppedDelta int) {
	effectActive.WithLabelValues(system).Set(float64(active))
	if droppedDelta > 0 {
		effectDropped.WithLabelValues(system).Add(float64(droppedDelta))
	}
}

// UpdatePool sets a pool's high-water mark.
func UpdatePool(pool string, allocated int) {
	poolAllocated.WithLabelValues(pool).Set(float64(allocated))
}

// RecordAudio counts one audio trigger outcome.
func RecordAudio(kind, result string) {
	audioTriggers.WithLabelValues(kind, result).Inc()
}

// RecordSnapshot counts an applied state snapshot.
func RecordSnapshot() {
	snapshotsReceived.Inc()
}

// RecordMessage counts a decoded server message.
func RecordMessage(msgType string) {
	netMessages.WithLabelValues(msgType).Inc()
}

// RecordReconnect counts a reconnect; reason must be "dial", "read" or "closed".
func RecordReconnect(reason string) {
	netReconnects.WithLabelValues(reason).Inc()
}

// SetConnected flips the connection gauge.
func SetConnected(connected bool) {
	if connected {
		netConnected.Set(1)
		return
	}
	netConnected.Set(0)
}
