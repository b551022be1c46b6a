package cron

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/goleak"

	"github.com/yungbote/orgdesk-backend/internal/observability"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type funcJob struct {
	name    string
	timeout time.Duration
	run     func(ctx context.Context) error

	mu     sync.Mutex
	slices []time.Duration
}

func (j *funcJob) Name() string           { return j.name }
func (j *funcJob) Timeout() time.Duration { return j.timeout }
func (j *funcJob) Run(ctx context.Context) error {
	if dl, ok := ctx.Deadline(); ok {
		j.mu.Lock()
		j.slices = append(j.slices, time.Until(dl))
		j.mu.Unlock()
	}
	if j.run == nil {
		return nil
	}
	return j.run(ctx)
}

func newTestOrchestrator(cfg Config, clock *fakeClock, jobs ...Job) *Orchestrator {
	o := NewOrchestrator(logger.NewNop(), observability.New(), cfg, jobs...)
	if clock != nil {
		o.now = clock.Now
	}
	return o
}

var ignoreTimings = cmpopts.IgnoreFields(JobResult{}, "DurationMS", "BudgetMS")

func TestRunOnceBudgetsJobsSequentially(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	spend := func(d time.Duration) func(context.Context) error {
		return func(context.Context) error { clock.Advance(d); return nil }
	}
	first := &funcJob{name: "security_scan", timeout: 40 * time.Second, run: spend(40 * time.Second)}
	second := &funcJob{name: "translation_drain", timeout: 30 * time.Second, run: func(context.Context) error {
		clock.Advance(10 * time.Second)
		return errors.New("upstream 502")
	}}
	third := &funcJob{name: "ai_visibility", timeout: 30 * time.Second, run: spend(5 * time.Second)}
	starved := &funcJob{name: "late", timeout: 10 * time.Second}

	o := newTestOrchestrator(Config{Budget: 60 * time.Second, Reserve: 5 * time.Second, MinSlice: 2 * time.Second}, clock, first, second, third, starved)
	report, err := o.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	want := []JobResult{
		{Name: "security_scan", Status: StatusOK},
		{Name: "translation_drain", Status: StatusFailed, Error: "upstream 502"},
		{Name: "ai_visibility", Status: StatusOK},
		{Name: "late", Status: StatusSkipped, Error: "budget exhausted"},
	}
	if diff := cmp.Diff(want, report.Jobs, ignoreTimings); diff != "" {
		t.Fatalf("jobs mismatch (-want +got):\n%s", diff)
	}
	if report.Status != "partial" {
		t.Fatalf("status: want=partial got=%s", report.Status)
	}

	// 60s budget, 5s reserve: 40s, then min(30, 15)=15s, then min(30, 5)=5s, then 0.
	wantBudgets := []int64{40000, 15000, 5000, 0}
	for i, r := range report.Jobs {
		if r.BudgetMS != wantBudgets[i] {
			t.Fatalf("job %s budget: want=%dms got=%dms", r.Name, wantBudgets[i], r.BudgetMS)
		}
	}
	if len(starved.slices) != 0 {
		t.Fatalf("skipped job ran")
	}
}

func TestRunOnceReportsSkippedWhenNothingRan(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	a := &funcJob{name: "a", timeout: 10 * time.Second}
	b := &funcJob{name: "b", timeout: 10 * time.Second}
	// Reserve swallows the whole budget, so no job gets a slice.
	o := newTestOrchestrator(Config{Budget: 5 * time.Second, Reserve: 5 * time.Second, MinSlice: time.Second}, clock, a, b)

	report, err := o.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.Status != "skipped" {
		t.Fatalf("status: want=skipped got=%s", report.Status)
	}
	if len(a.slices)+len(b.slices) != 0 {
		t.Fatalf("skipped jobs ran")
	}

	empty, err := newTestOrchestrator(Config{Budget: time.Second}, clock).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce empty: %v", err)
	}
	if empty.Status != "ok" {
		t.Fatalf("empty run status: want=ok got=%s", empty.Status)
	}
}

func TestRunOnceMarksTimeouts(t *testing.T) {
	defer goleak.VerifyNone(t)

	slow := &funcJob{name: "slow", timeout: 20 * time.Millisecond, run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	fast := &funcJob{name: "fast"}
	o := newTestOrchestrator(Config{Budget: time.Minute, MinSlice: time.Millisecond}, nil, slow, fast)

	report, err := o.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	want := []JobResult{
		{Name: "slow", Status: StatusTimeout, Error: "exceeded 20ms"},
		{Name: "fast", Status: StatusOK},
	}
	if diff := cmp.Diff(want, report.Jobs, ignoreTimings); diff != "" {
		t.Fatalf("jobs mismatch (-want +got):\n%s", diff)
	}
	if got := o.metrics.CronJobs("slow", string(StatusTimeout)); got != 1 {
		t.Fatalf("timeout metric: want=1 got=%v", got)
	}
}

func TestRunOnceRecoversPanics(t *testing.T) {
	boom := &funcJob{name: "boom", run: func(context.Context) error { panic("kaboom") }}
	after := &funcJob{name: "after"}
	o := newTestOrchestrator(Config{Budget: time.Minute}, nil, boom, after)

	report, err := o.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.Jobs[0].Status != StatusFailed || report.Jobs[0].Error != "panic: kaboom" {
		t.Fatalf("panic job: got=%+v", report.Jobs[0])
	}
	if report.Jobs[1].Status != StatusOK {
		t.Fatalf("job after panic: want ok got=%+v", report.Jobs[1])
	}
}

func TestRunOnceRejectsOverlap(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	blocking := &funcJob{name: "blocking", run: func(context.Context) error {
		close(entered)
		<-release
		return nil
	}}
	o := newTestOrchestrator(Config{Budget: time.Minute}, nil, blocking)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = o.RunOnce(context.Background())
	}()
	<-entered
	if _, err := o.RunOnce(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("overlapping run: want=%v got=%v", ErrRunInProgress, err)
	}
	close(release)
	<-done
}

func TestRunOnceSkipsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &funcJob{name: "first", run: func(context.Context) error { cancel(); return nil }}
	second := &funcJob{name: "second"}
	o := newTestOrchestrator(Config{Budget: time.Minute}, nil, first, second)

	report, err := o.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.Jobs[1].Status != StatusSkipped {
		t.Fatalf("job after cancel: want skipped got=%+v", report.Jobs[1])
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ran := make(chan struct{}, 8)
	job := &funcJob{name: "tick", run: func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}}
	o := newTestOrchestrator(Config{Interval: 5 * time.Millisecond, Budget: time.Second}, nil, job)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- o.Run(ctx) }()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("job never ran")
	}
	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestHTTPJob(t *testing.T) {
	var gotAuth, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		if r.URL.Path == "/fail" {
			http.Error(w, "scan backend down", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ok := &HTTPJob{JobName: "security_scan", URL: srv.URL + "/ok", Secret: "s3cret"}
	if err := ok.Run(context.Background()); err != nil {
		t.Fatalf("Run ok: %v", err)
	}
	if gotAuth != "Bearer s3cret" || gotMethod != http.MethodPost {
		t.Fatalf("request: auth=%q method=%q", gotAuth, gotMethod)
	}

	bad := &HTTPJob{JobName: "security_scan", URL: srv.URL + "/fail"}
	if err := bad.Run(context.Background()); err == nil {
		t.Fatalf("Run fail: want error got nil")
	}
}

func TestParseHTTPJobs(t *testing.T) {
	jobs, err := ParseHTTPJobs([]string{"scan=https://scan.internal/run", " ", "drain = http://i18n/drain"}, "k", time.Minute)
	if err != nil {
		t.Fatalf("ParseHTTPJobs: %v", err)
	}
	if len(jobs) != 2 || jobs[1].Name() != "drain" || jobs[1].URL != "http://i18n/drain" || jobs[0].Timeout() != time.Minute {
		t.Fatalf("parsed: got=%+v", jobs)
	}
	for _, bad := range []string{"noequals", "=http://x", "x=ftp://y"} {
		if _, err := ParseHTTPJobs([]string{bad}, "", 0); err == nil {
			t.Fatalf("ParseHTTPJobs(%q): want error", bad)
		}
	}
}
