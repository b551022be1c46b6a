package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/orgdesk-backend/internal/observability"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

// Job is one opaque sub-job. Run must return once ctx is done.
type Job interface {
	Name() string
	Timeout() time.Duration
	Run(ctx context.Context) error
}

type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusTimeout Status = "timeout"
	StatusSkipped Status = "skipped"
)

var ErrRunInProgress = errors.New("cron run already in progress")

type JobResult struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	BudgetMS   int64  `json:"budget_ms"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

type Report struct {
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	BudgetMS   int64       `json:"budget_ms"`
	Status     string      `json:"status"`
	Jobs       []JobResult `json:"jobs"`
}

type Config struct {
	Interval time.Duration
	// Budget caps the wall time of one run across all jobs.
	Budget time.Duration
	// Reserve is held back from every slice so the run can report before the budget ends.
	Reserve time.Duration
	// MinSlice is the smallest slice worth starting a job with.
	MinSlice time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 15 * time.Minute
	}
	if c.Budget <= 0 {
		c.Budget = 5 * time.Minute
	}
	if c.Reserve < 0 {
		c.Reserve = 0
	}
	if c.MinSlice <= 0 {
		c.MinSlice = time.Second
	}
	return c
}

// Orchestrator runs registered jobs one after another inside a shared time budget.
type Orchestrator struct {
	log     *logger.Logger
	metrics *observability.Metrics
	cfg     Config
	now     func() time.Time

	mu      sync.Mutex
	jobs    []Job
	running sync.Mutex
}

func NewOrchestrator(baseLog *logger.Logger, metrics *observability.Metrics, cfg Config, jobs ...Job) *Orchestrator {
	o := &Orchestrator{
		log:     baseLog.With("component", "CronOrchestrator"),
		metrics: metrics,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
	}
	for _, j := range jobs {
		o.Register(j)
	}
	return o
}

func (o *Orchestrator) Register(job Job) {
	if job == nil {
		return
	}
	o.mu.Lock()
	o.jobs = append(o.jobs, job)
	o.mu.Unlock()
}

func (o *Orchestrator) Jobs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.jobs))
	for _, j := range o.jobs {
		out = append(out, j.Name())
	}
	return out
}

// Run ticks every Interval until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()
	o.log.Info("Cron orchestrator started", "interval", o.cfg.Interval.String(), "budget", o.cfg.Budget.String(), "jobs", len(o.Jobs()))
	for {
		select {
		case <-ctx.Done():
			o.log.Info("Cron orchestrator stopped")
			return nil
		case <-ticker.C:
			if _, err := o.RunOnce(ctx); err != nil {
				o.log.Warn("cron tick skipped", "error", err)
			}
		}
	}
}

// RunOnce executes every job once. A failing job does not stop later jobs.
// Concurrent calls return ErrRunInProgress.
func (o *Orchestrator) RunOnce(ctx context.Context) (*Report, error) {
	if !o.running.TryLock() {
		o.metrics.IncCronRun("busy")
		return nil, ErrRunInProgress
	}
	defer o.running.Unlock()

	o.mu.Lock()
	jobs := append([]Job(nil), o.jobs...)
	o.mu.Unlock()

	start := o.now()
	deadline := start.Add(o.cfg.Budget)
	report := &Report{
		StartedAt: start.UTC(),
		BudgetMS:  o.cfg.Budget.Milliseconds(),
		Jobs:      make([]JobResult, 0, len(jobs)),
	}

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			report.Jobs = append(report.Jobs, JobResult{Name: job.Name(), Status: StatusSkipped, Error: "cancelled"})
			continue
		}
		slice := o.slice(job.Timeout(), deadline.Sub(o.now()))
		if slice < o.cfg.MinSlice {
			report.Jobs = append(report.Jobs, JobResult{Name: job.Name(), Status: StatusSkipped, Error: "budget exhausted"})
			o.metrics.ObserveCronJob(job.Name(), string(StatusSkipped), 0)
			continue
		}
		res := o.runJob(ctx, job, slice)
		report.Jobs = append(report.Jobs, res)
	}

	report.FinishedAt = o.now().UTC()
	report.Status = summarize(report.Jobs)
	o.metrics.IncCronRun(report.Status)
	o.log.Info("Cron run finished",
		"status", report.Status,
		"jobs", len(report.Jobs),
		"duration_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	)
	return report, nil
}

// slice is min(desired, remaining-reserve). A zero desired timeout takes
// whatever is left.
func (o *Orchestrator) slice(desired, remaining time.Duration) time.Duration {
	avail := remaining - o.cfg.Reserve
	if avail <= 0 {
		return 0
	}
	if desired <= 0 || desired > avail {
		return avail
	}
	return desired
}

func (o *Orchestrator) runJob(ctx context.Context, job Job, slice time.Duration) (res JobResult) {
	res = JobResult{Name: job.Name(), BudgetMS: slice.Milliseconds()}
	jobCtx, cancel := context.WithTimeout(ctx, slice)
	defer cancel()

	started := o.now()
	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusFailed
			res.Error = fmt.Sprintf("panic: %v", r)
			o.log.Error("cron job panic", "job", job.Name(), "panic", res.Error)
		}
		dur := o.now().Sub(started)
		res.DurationMS = dur.Milliseconds()
		o.metrics.ObserveCronJob(job.Name(), string(res.Status), dur)
	}()

	err := job.Run(jobCtx)
	switch {
	case err == nil && jobCtx.Err() == nil:
		res.Status = StatusOK
	case errors.Is(jobCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.Status = StatusTimeout
		res.Error = fmt.Sprintf("exceeded %s", slice)
		o.log.Warn("cron job timed out", "job", job.Name(), "budget_ms", slice.Milliseconds())
	case err == nil:
		// Finished, but only after the parent run was cancelled.
		res.Status = StatusOK
	default:
		res.Status = StatusFailed
		res.Error = err.Error()
		o.log.Warn("cron job failed", "job", job.Name(), "error", err)
	}
	return res
}

// summarize is "skipped" when jobs were registered but none started.
func summarize(results []JobResult) string {
	failed, ran := 0, 0
	for _, r := range results {
		switch r.Status {
		case StatusOK:
			ran++
		case StatusFailed, StatusTimeout:
			ran++
			failed++
		}
	}
	switch {
	case ran == 0 && len(results) > 0:
		return "skipped"
	case failed == 0:
		return "ok"
	case failed == ran:
		return "failed"
	default:
		return "partial"
	}
}
