package observability

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/helpdesk-backend/internal/platform/envutil"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	wsConnections *Gauge
	wsAccepted    *CounterVec
	wsEvictions   *CounterVec
	wsFrames      *CounterVec
	deliveries    *CounterVec
	statusUpdates *CounterVec
	dispatchDur   *HistogramVec

	redisUp   *Gauge
	redisPing *Gauge
	pgStats   *GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns the process metrics, or nil when metrics are off. All
// methods are safe on a nil receiver.
func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	return envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second)
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("hd_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"hd_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		),
		apiInflight: NewGauge("hd_api_inflight_requests", "In-flight API requests."),

		wsConnections: NewGauge("hd_ws_connections", "Currently registered realtime connections."),
		wsAccepted:    NewCounterVec("hd_ws_accepted_total", "Accepted realtime connections by role.", []string{"role"}),
		wsEvictions:   NewCounterVec("hd_ws_evictions_total", "Connections closed by the registry by reason.", []string{"reason"}),
		wsFrames:      NewCounterVec("hd_ws_frames_total", "Realtime frames by direction/type.", []string{"direction", "type"}),
		deliveries:    NewCounterVec("hd_message_pushes_total", "Message pushes by outcome.", []string{"outcome"}),
		statusUpdates: NewCounterVec("hd_message_status_total", "Completed message status transitions.", []string{"status"}),
		dispatchDur: NewHistogramVec(
			"hd_message_dispatch_duration_seconds",
			"Time from frame accept to last push by message class.",
			[]string{"class", "status"},
			[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		),

		redisUp:   NewGauge("hd_redis_up", "Redis reachable (1) or not (0)."),
		redisPing: NewGauge("hd_redis_ping_seconds", "Last redis ping latency."),
		pgStats:   NewGaugeVec("hd_db_pool", "Database pool stats.", []string{"stat"}),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.wsConnections, m.wsAccepted, m.wsEvictions, m.wsFrames,
		m.deliveries, m.statusUpdates, m.dispatchDur,
		m.redisUp, m.redisPing, m.pgStats,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

// CountAPI records a request without a latency sample.
func (m *Metrics) CountAPI(method, route, status string) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.wsConnections.Set(float64(n))
}

func (m *Metrics) IncAccepted(role string) {
	if m == nil {
		return
	}
	m.wsAccepted.Inc(role)
}

func (m *Metrics) IncEviction(reason string) {
	if m == nil {
		return
	}
	m.wsEvictions.Inc(reason)
}

func (m *Metrics) IncFrame(direction, frameType string) {
	if m == nil {
		return
	}
	if frameType == "" {
		frameType = "unknown"
	}
	m.wsFrames.Inc(direction, frameType)
}

// ObservePush records one push attempt by outcome: pushed, deferred, offline
// or failed.
func (m *Metrics) ObservePush(outcome string) {
	if m == nil {
		return
	}
	m.deliveries.Inc(outcome)
}

func (m *Metrics) IncStatus(status string) {
	if m == nil {
		return
	}
	m.statusUpdates.Inc(status)
}

func (m *Metrics) ObserveDispatch(class, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.dispatchDur.Observe(dur.Seconds(), class, status)
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		if log != nil {
			log.Warn("metrics: db handle unavailable", "error", err)
		}
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

// StatusLabel renders an HTTP status for metric labels.
func StatusLabel(code int) string {
	if code <= 0 {
		return "0"
	}
	return strconv.Itoa(code)
}
