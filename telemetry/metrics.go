// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Command outcome label values.
const (
	OutcomeExecuted    = "executed"
	OutcomeDenied      = "denied"
	OutcomeRateLimited = "rate_limited"
	OutcomeFailed      = "failed"
)

var (
	once sync.Once

	// Counters
	ChatMessages     prometheus.Counter
	Commands         *prometheus.CounterVec
	PointsTicks      prometheus.Counter
	ViewersCredited  prometheus.Counter
	BroadcastsSent   prometheus.Counter
	BroadcastsFailed prometheus.Counter

	// Histograms (seconds)
	CommandDuration prometheus.Observer

	// Gauges
	CooldownEntries prometheus.Gauge
	ChatConnected   prometheus.Gauge // 1=connected,0=disconnected
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ChatMessages = promauto.NewCounter(prometheus.CounterOpts{Name: "twitchbot_chat_messages_total", Help: "Chat messages observed"})
		Commands = promauto.NewCounterVec(prometheus.CounterOpts{Name: "twitchbot_commands_total", Help: "Resolved commands by outcome"}, []string{"outcome"})
		PointsTicks = promauto.NewCounter(prometheus.CounterOpts{Name: "twitchbot_points_ticks_total", Help: "Points accrual ticks that credited at least one viewer"})
		ViewersCredited = promauto.NewCounter(prometheus.CounterOpts{Name: "twitchbot_points_viewers_credited_total", Help: "Viewer credits applied by accrual ticks"})
		BroadcastsSent = promauto.NewCounter(prometheus.CounterOpts{Name: "twitchbot_broadcasts_sent_total", Help: "Scheduled messages sent"})
		BroadcastsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "twitchbot_broadcasts_failed_total", Help: "Scheduled messages that failed to send"})
		CommandDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "twitchbot_command_duration_seconds", Help: "Command handler duration seconds", Buckets: prometheus.DefBuckets})
		CooldownEntries = promauto.NewGauge(prometheus.GaugeOpts{Name: "twitchbot_cooldown_entries", Help: "Cooldown entries currently stored"})
		ChatConnected = promauto.NewGauge(prometheus.GaugeOpts{Name: "twitchbot_chat_connected", Help: "Chat connection up=1 down=0"})
	})
}

// IncChatMessages counts one observed chat message.
func IncChatMessages() {
	if ChatMessages != nil {
		ChatMessages.Inc()
	}
}

// ObserveCommand counts a command outcome.
func ObserveCommand(outcome string) {
	if Commands != nil {
		Commands.WithLabelValues(outcome).Inc()
	}
}

// RecordPointsTick records a tick that credited n viewers.
func RecordPointsTick(n int) {
	if PointsTicks != nil {
		PointsTicks.Inc()
		ViewersCredited.Add(float64(n))
	}
}

// RecordBroadcast counts a scheduled message send attempt.
func RecordBroadcast(ok bool) {
	if BroadcastsSent == nil {
		return
	}
	if ok {
		BroadcastsSent.Inc()
	} else {
		BroadcastsFailed.Inc()
	}
}

// SetCooldownEntries records the cooldown table size.
func SetCooldownEntries(n int) {
	if CooldownEntries != nil {
		CooldownEntries.Set(float64(n))
	}
}

// SetChatConnected sets gauge to 1 if connected else 0.
func SetChatConnected(up bool) {
	if ChatConnected != nil {
		if up {
			ChatConnected.Set(1)
		} else {
			ChatConnected.Set(0)
		}
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context carrying the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
