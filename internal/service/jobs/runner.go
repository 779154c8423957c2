package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
	"github.com/akashvim3/Birthday-Wishes-System/internal/pkg/lease"
	"github.com/akashvim3/Birthday-Wishes-System/internal/pkg/logger"
)

// Period is how often a job runs.
type Period int

const (
	Daily Period = iota
	Weekly
)

func (p Period) String() string {
	if p == Weekly {
		return "weekly"
	}
	return "daily"
}

// HandlerFunc does a job's work for the trigger time now.
type HandlerFunc func(ctx context.Context, now time.Time) (domain.Report, error)

// Job is a registered periodic job.
type Job struct {
	Name   string
	Period Period
	// At is the offset from the start of the period (midnight for daily
	// jobs, Monday midnight for weekly ones) before which the job is not due.
	At      time.Duration
	Handler HandlerFunc
}

// Outcome of one trigger of one job.
type Outcome string

const (
	OutcomeRan     Outcome = "ran"
	OutcomeFailed  Outcome = "failed"
	OutcomeDone    Outcome = "done"    // watermark already at this period
	OutcomeDropped Outcome = "dropped" // already running here or elsewhere
	OutcomeNotDue  Outcome = "not_due"
)

// Result reports what a trigger did.
type Result struct {
	Job     string        `json:"job"`
	Period  string        `json:"period"`
	Outcome Outcome       `json:"outcome"`
	Report  domain.Report `json:"report"`
	Err     error         `json:"-"`
}

const (
	// DefaultLeaseTTL bounds how long a crashed holder blocks a job.
	DefaultLeaseTTL = 10 * time.Minute
	// DefaultTickInterval is how often the loop checks for due jobs.
	DefaultTickInterval = time.Minute
)

// Runner fires registered jobs once per period.
type Runner struct {
	marks    WatermarkStore
	leases   lease.Manager
	loc      *time.Location
	leaseTTL time.Duration
	interval time.Duration
	now      func() time.Time
	log      *logger.Logger

	mu       sync.Mutex
	jobs     map[string]Job
	inflight map[string]bool

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRunner creates a runner. Periods are computed in loc (nil means UTC).
func NewRunner(marks WatermarkStore, leases lease.Manager, loc *time.Location) *Runner {
	if loc == nil {
		loc = time.UTC
	}
	return &Runner{
		marks:    marks,
		leases:   leases,
		loc:      loc,
		leaseTTL: DefaultLeaseTTL,
		interval: DefaultTickInterval,
		now:      time.Now,
		log:      logger.With("component", "job-runner"),
		jobs:     make(map[string]Job),
		inflight: make(map[string]bool),
	}
}

// SetLeaseTTL overrides the lease TTL.
func (r *Runner) SetLeaseTTL(d time.Duration) {
	if d > 0 {
		r.leaseTTL = d
	}
}

// SetInterval overrides the polling interval of Start.
func (r *Runner) SetInterval(d time.Duration) {
	if d > 0 {
		r.interval = d
	}
}

// SetClock overrides the time source of the polling loop.
func (r *Runner) SetClock(now func() time.Time) { r.now = now }

// Register adds a job. Registering the same name twice replaces it.
func (r *Runner) Register(j Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.Name] = j
}

// Jobs returns the registered job names, sorted.
func (r *Runner) Jobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PeriodKey returns the period marker of now for p in loc: YYYY-MM-DD for
// daily jobs, YYYY-Www (ISO week) for weekly ones.
func PeriodKey(p Period, now time.Time, loc *time.Location) string {
	t := now.In(loc)
	if p == Weekly {
		y, w := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	}
	return t.Format(time.DateOnly)
}

// periodStart returns midnight of the day, or of the ISO week's Monday.
func periodStart(p Period, now time.Time, loc *time.Location) time.Time {
	t := now.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	if p == Weekly {
		offset := (int(start.Weekday()) + 6) % 7 // days since Monday
		start = start.AddDate(0, 0, -offset)
	}
	return start
}

// Due reports whether j's trigger time within the current period has passed.
func (r *Runner) Due(j Job, now time.Time) bool {
	return !now.Before(periodStart(j.Period, now, r.loc).Add(j.At))
}

// Tick triggers every due job concurrently and waits for them.
func (r *Runner) Tick(ctx context.Context, now time.Time) []Result {
	r.mu.Lock()
	jobs := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}
	r.mu.Unlock()
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].Name < jobs[b].Name })

	results := make([]Result, len(jobs))
	var g errgroup.Group
	for i, j := range jobs {
		if !r.Due(j, now) {
			results[i] = Result{Job: j.Name, Period: PeriodKey(j.Period, now, r.loc), Outcome: OutcomeNotDue}
			continue
		}
		g.Go(func() error {
			results[i] = r.run(ctx, j, now)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Trigger runs the named job for the period containing now, ignoring its
// time-of-day offset. Watermark and lease still apply.
func (r *Runner) Trigger(ctx context.Context, name string, now time.Time) (Result, error) {
	r.mu.Lock()
	j, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return Result{}, domain.NotFoundf("job %q", name)
	}
	return r.run(ctx, j, now), nil
}

func (r *Runner) run(ctx context.Context, j Job, now time.Time) Result {
	period := PeriodKey(j.Period, now, r.loc)
	res := Result{Job: j.Name, Period: period}
	log := r.log.With("job", j.Name, "period", period)

	if done, err := r.completed(ctx, j.Name, period); err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		log.Error("read watermark failed", "error", err)
		jobRuns.WithLabelValues(j.Name, string(res.Outcome)).Inc()
		return res
	} else if done {
		res.Outcome = OutcomeDone
		return res
	}

	// Local guard: a second trigger in this process is dropped.
	r.mu.Lock()
	if r.inflight[j.Name] {
		r.mu.Unlock()
		res.Outcome = OutcomeDropped
		log.Info("job already running, trigger dropped")
		jobRuns.WithLabelValues(j.Name, string(res.Outcome)).Inc()
		return res
	}
	r.inflight[j.Name] = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.inflight, j.Name)
		r.mu.Unlock()
	}()

	l, err := r.leases.Acquire(ctx, j.Name, r.leaseTTL)
	if errors.Is(err, lease.ErrNotAcquired) {
		res.Outcome = OutcomeDropped
		log.Info("job lease held elsewhere, trigger dropped")
		jobRuns.WithLabelValues(j.Name, string(res.Outcome)).Inc()
		return res
	}
	if err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		log.Error("acquire job lease failed", "error", err)
		jobRuns.WithLabelValues(j.Name, string(res.Outcome)).Inc()
		return res
	}
	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := l.Release(relCtx); err != nil {
			log.Warn("release job lease failed", "error", err)
		}
	}()

	// Another holder may have finished the period between our first read
	// and acquiring the lease.
	if done, err := r.completed(ctx, j.Name, period); err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		jobRuns.WithLabelValues(j.Name, string(res.Outcome)).Inc()
		return res
	} else if done {
		res.Outcome = OutcomeDone
		return res
	}

	stop := r.keepAlive(ctx, l, log)
	start := time.Now()
	report, err := j.Handler(ctx, now)
	jobDuration.WithLabelValues(j.Name).Observe(time.Since(start).Seconds())
	stop()

	res.Report = report
	jobRecords.WithLabelValues(j.Name, "processed").Add(float64(report.Processed))
	jobRecords.WithLabelValues(j.Name, "failed").Add(float64(report.Failed))
	jobRecords.WithLabelValues(j.Name, "skipped").Add(float64(report.Skipped))
	for _, recErr := range report.Errors {
		log.Warn("job record failed", "error", recErr)
	}
	if err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		log.Error("job failed, watermark not committed", "error", err)
		jobRuns.WithLabelValues(j.Name, string(res.Outcome)).Inc()
		return res
	}

	mark := domain.JobWatermark{JobName: j.Name, Period: period, CompletedAt: time.Now().UTC()}
	if err := r.marks.Commit(ctx, mark); err != nil {
		res.Outcome, res.Err = OutcomeFailed, fmt.Errorf("commit watermark: %w", err)
		log.Error("commit watermark failed", "error", err)
		jobRuns.WithLabelValues(j.Name, string(res.Outcome)).Inc()
		return res
	}
	res.Outcome = OutcomeRan
	log.Info("job completed", "processed", report.Processed, "failed", report.Failed, "skipped", report.Skipped)
	jobRuns.WithLabelValues(j.Name, string(res.Outcome)).Inc()
	return res
}

func (r *Runner) completed(ctx context.Context, name, period string) (bool, error) {
	mark, err := r.marks.Last(ctx, name)
	if err != nil {
		return false, fmt.Errorf("read watermark for %s: %w", name, err)
	}
	return mark != nil && mark.Period == period, nil
}

// keepAlive extends the lease at half its TTL until the returned stop is
// called.
func (r *Runner) keepAlive(ctx context.Context, l lease.Lease, log *logger.Logger) (stop func()) {
	kctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.leaseTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-kctx.Done():
				return
			case <-ticker.C:
				if err := l.Extend(kctx, r.leaseTTL); err != nil && kctx.Err() == nil {
					log.Warn("extend job lease failed", "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// Start begins the polling loop.
func (r *Runner) Start() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("job runner already running")
	}
	r.running = true
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.mu.Unlock()

	r.log.Info("job runner starting", "interval", r.interval, "jobs", len(r.Jobs()))
	r.wg.Add(1)
	go r.loop()
	return nil
}

// Stop cancels the loop and waits for running jobs to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	r.log.Info("job runner stopped")
}

func (r *Runner) loop() {
	defer r.wg.Done()

	r.Tick(r.ctx, r.now())
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.Tick(r.ctx, r.now())
		}
	}
}
