package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the engine-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gamemaster",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gamemaster",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gamemaster",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	gamesStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gamemaster",
			Subsystem: "games",
			Name:      "started_total",
			Help:      "Total number of games started.",
		},
	)

	gamesEnded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gamemaster",
			Subsystem: "games",
			Name:      "ended_total",
			Help:      "Total number of games ended.",
		},
	)

	ticketsSold = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gamemaster",
			Subsystem: "tickets",
			Name:      "sold_total",
			Help:      "Total number of tickets sold across all games.",
		},
	)

	potDeposits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gamemaster",
			Subsystem: "pot",
			Name:      "deposits_total",
			Help:      "Total number of pot asset deposits.",
		},
		[]string{"kind"},
	)

	settlementDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gamemaster",
			Subsystem: "settlement",
			Name:      "duration_seconds",
			Help:      "Duration of game settlement runs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	settlementPayouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gamemaster",
			Subsystem: "settlement",
			Name:      "payouts_total",
			Help:      "Total number of settlement payouts by recipient role.",
		},
		[]string{"role"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		gamesStarted,
		gamesEnded,
		ticketsSold,
		potDeposits,
		settlementDuration,
		settlementPayouts,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordGameStarted counts a newly started game.
func RecordGameStarted() {
	gamesStarted.Inc()
}

// RecordTicketsSold counts tickets from a completed purchase.
func RecordTicketsSold(count uint64) {
	ticketsSold.Add(float64(count))
}

// RecordPotDeposit counts a pot asset deposit by asset kind.
func RecordPotDeposit(kind string) {
	potDeposits.WithLabelValues(kind).Inc()
}

// RecordSettlement records metrics for a completed settlement run.
func RecordSettlement(duration time.Duration, payoutRoles []string) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	gamesEnded.Inc()
	settlementDuration.Observe(duration.Seconds())
	for _, role := range payoutRoles {
		settlementPayouts.WithLabelValues(role).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses game-scoped paths so per-game numbers do not
// explode the label space.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "games" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/games"
	}
	if len(parts) == 2 {
		return "/games/:game"
	}
	resource := parts[2]
	return "/games/:game/" + resource
}
