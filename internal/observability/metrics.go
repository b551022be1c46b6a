package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge
	apiPanics   *Counter

	aggregateOps       *CounterVec
	aggregateLatency   *HistogramVec
	aggregateConflicts *CounterVec
	aggregateRetries   *CounterVec
	aggregateRejects   *CounterVec

	answerSaves       *CounterVec
	membershipLookups *CounterVec

	auditQueueDepth *Gauge
	auditEvents     *CounterVec

	cronRuns          *CounterVec
	cronJobs          *CounterVec
	cronJobLatency    *HistogramVec
	integrityFindings *CounterVec

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Init builds the process-wide metrics registry. It returns nil when metrics
// are disabled; every method on a nil *Metrics is a no-op.
func Init(enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
	})
	return instance
}

func Current() *Metrics {
	return instance
}

// New returns an unshared registry.
func New() *Metrics {
	latency := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
	return &Metrics{
		apiRequests: NewCounterVec("od_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("od_api_request_duration_seconds", "API request latency in seconds by method/route/status.", []string{"method", "route", "status"}, latency),
		apiInflight: NewGauge("od_api_inflight_requests", "In-flight API requests."),
		apiPanics:   NewCounter("od_api_panics_total", "Recovered handler panics."),

		aggregateOps:       NewCounterVec("od_aggregate_operations_total", "Aggregate write operations by name/status.", []string{"op", "status"}),
		aggregateLatency:   NewHistogramVec("od_aggregate_operation_duration_seconds", "Aggregate write latency in seconds.", []string{"op", "status"}, latency),
		aggregateConflicts: NewCounterVec("od_aggregate_conflicts_total", "Optimistic-lock conflicts by aggregate op.", []string{"op"}),
		aggregateRetries:   NewCounterVec("od_aggregate_retryable_total", "Retryable aggregate failures by op.", []string{"op"}),
		aggregateRejects:   NewCounterVec("od_aggregate_rejections_total", "Aggregate writes refused before touching storage, by op/code.", []string{"op", "code"}),

		answerSaves:       NewCounterVec("od_answer_saves_total", "Answer diff saves by document shape/outcome.", []string{"shape", "outcome"}),
		membershipLookups: NewCounterVec("od_membership_lookups_total", "Organization membership lookups by source/result.", []string{"source", "result"}),

		auditQueueDepth: NewGauge("od_audit_queue_depth", "Audit events waiting for a worker."),
		auditEvents:     NewCounterVec("od_audit_events_total", "Audit events by status.", []string{"status"}),

		cronRuns:          NewCounterVec("od_cron_runs_total", "Cron orchestrator runs by status.", []string{"status"}),
		cronJobs:          NewCounterVec("od_cron_jobs_total", "Cron sub-job results by job/status.", []string{"job", "status"}),
		cronJobLatency:    NewHistogramVec("od_cron_job_duration_seconds", "Cron sub-job duration in seconds.", []string{"job", "status"}, []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300}),
		integrityFindings: NewCounterVec("od_audit_integrity_findings_total", "Audit integrity findings by kind.", []string{"kind"}),

		pgStats:   NewGaugeVec("od_db_pool", "Database connection pool stats.", []string{"stat"}),
		redisUp:   NewGauge("od_redis_up", "1 when the last redis ping succeeded."),
		redisPing: NewGauge("od_redis_ping_seconds", "Last redis ping latency in seconds."),
	}
}

func (m *Metrics) collectors() []interface{ WritePrometheus(io.Writer) error } {
	return []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiPanics,
		m.aggregateOps, m.aggregateLatency, m.aggregateConflicts, m.aggregateRetries, m.aggregateRejects,
		m.answerSaves, m.membershipLookups,
		m.auditQueueDepth, m.auditEvents,
		m.cronRuns, m.cronJobs, m.cronJobLatency, m.integrityFindings,
		m.pgStats, m.redisUp, m.redisPing,
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
	for _, c := range m.collectors() {
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

func (m *Metrics) IncPanic() {
	if m == nil {
		return
	}
	m.apiPanics.Inc()
}

func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregateOps.Inc(op, status)
	m.aggregateLatency.Observe(dur.Seconds(), op, status)
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.Inc(op)
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m == nil {
		return
	}
	m.aggregateRetries.Inc(op)
}

func (m *Metrics) IncAggregateRejection(op, code string) {
	if m == nil {
		return
	}
	m.aggregateRejects.Inc(op, code)
}

func (m *Metrics) IncAnswerSave(shape, outcome string) {
	if m == nil {
		return
	}
	if shape == "" {
		shape = "unknown"
	}
	m.answerSaves.Inc(shape, outcome)
}

// IncMembershipLookup records where a membership answer came from (cache, db) and what it was.
func (m *Metrics) IncMembershipLookup(source, result string) {
	if m == nil {
		return
	}
	m.membershipLookups.Inc(source, result)
}

func (m *Metrics) SetAuditQueueDepth(n int) {
	if m == nil {
		return
	}
	m.auditQueueDepth.Set(float64(n))
}

func (m *Metrics) IncAuditEvent(status string) {
	if m == nil {
		return
	}
	m.auditEvents.Inc(status)
}

func (m *Metrics) IncCronRun(status string) {
	if m == nil {
		return
	}
	m.cronRuns.Inc(status)
}

func (m *Metrics) ObserveCronJob(job, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.cronJobs.Inc(job, status)
	m.cronJobLatency.Observe(dur.Seconds(), job, status)
}

func (m *Metrics) AddIntegrityFindings(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.integrityFindings.Add(float64(n), kind)
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

// StartRedisCollector pings rdb on an interval. The client is owned by the caller.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient, interval time.Duration) {
	if m == nil || rdb == nil {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
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

// Point-in-time reads of single series.

func (m *Metrics) AggregateRejections(op, code string) float64 {
	if m == nil {
		return 0
	}
	return m.aggregateRejects.Value(op, code)
}

func (m *Metrics) AnswerSaves(shape, outcome string) float64 {
	if m == nil {
		return 0
	}
	return m.answerSaves.Value(shape, outcome)
}

func (m *Metrics) MembershipLookups(source, result string) float64 {
	if m == nil {
		return 0
	}
	return m.membershipLookups.Value(source, result)
}

func (m *Metrics) AuditEvents(status string) float64 {
	if m == nil {
		return 0
	}
	return m.auditEvents.Value(status)
}

func (m *Metrics) CronJobs(job, status string) float64 {
	if m == nil {
		return 0
	}
	return m.cronJobs.Value(job, status)
}

func (m *Metrics) IntegrityFindings(kind string) float64 {
	if m == nil {
		return 0
	}
	return m.integrityFindings.Value(kind)
}
