package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
	"github.com/akashvim3/Birthday-Wishes-System/internal/pkg/backoff"
	"github.com/akashvim3/Birthday-Wishes-System/internal/pkg/logger"
)

const (
	// DefaultPollInterval is how often the loop looks for due jobs.
	DefaultPollInterval = 15 * time.Second
	// DefaultBatchSize bounds the jobs claimed per DispatchDue call.
	DefaultBatchSize = 100
	// DefaultWorkers bounds concurrent dispatches within a batch.
	DefaultWorkers = 8
	// DefaultNotifierTimeout bounds a single Notifier call.
	DefaultNotifierTimeout = 10 * time.Second
)

// Config tunes a Scheduler. Zero values take the defaults above.
type Config struct {
	Workers         int
	BatchSize       int
	PollInterval    time.Duration
	NotifierTimeout time.Duration
	Retry           backoff.Policy
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.NotifierTimeout <= 0 {
		c.NotifierTimeout = DefaultNotifierTimeout
	}
	def := backoff.Default()
	if c.Retry.Attempts <= 0 {
		c.Retry.Attempts = def.Attempts
	}
	if c.Retry.Base <= 0 {
		c.Retry.Base = def.Base
	}
	if c.Retry.Max <= 0 {
		c.Retry.Max = def.Max
	}
	return c
}

// claimTTL covers the worst case of one dispatch: every attempt timing out
// plus the longest backoff between them, with a minute of slack.
func (c Config) claimTTL() time.Duration {
	n := time.Duration(c.Retry.Attempts)
	return n*c.NotifierTimeout + n*c.Retry.Max + time.Minute
}

// Scheduler dispatches due wishes.
type Scheduler struct {
	queue    Queue
	wishes   Lifecycle
	notifier Notifier
	cfg      Config
	now      func() time.Time
	log      *logger.Logger

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewScheduler creates a scheduler. wishes is normally a *wish.Service.
func NewScheduler(queue Queue, wishes Lifecycle, notifier Notifier, cfg Config) *Scheduler {
	return &Scheduler{
		queue:    queue,
		wishes:   wishes,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		log:      logger.With("component", "dispatcher"),
	}
}

// SetClock overrides the time source used for sent_at and the polling loop.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Enqueue records the intent to dispatch wishID no earlier than deliverAt.
func (s *Scheduler) Enqueue(ctx context.Context, wishID string, deliverAt time.Time) error {
	if wishID == "" {
		return domain.Validationf("wish id is required")
	}
	if err := s.queue.Enqueue(ctx, wishID, deliverAt); err != nil {
		return fmt.Errorf("enqueue dispatch for wish %s: %w", wishID, err)
	}
	s.log.Debug("dispatch enqueued", "wish_id", wishID, "deliver_at", deliverAt.UTC().Format(time.RFC3339))
	return nil
}

// Pending reports how many dispatch jobs are waiting or in flight.
func (s *Scheduler) Pending(ctx context.Context) (int, error) {
	n, err := s.queue.Pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("count pending dispatch jobs: %w", err)
	}
	return n, nil
}

// DispatchDue handles every job due at now, up to the configured batch
// size, using at most Workers concurrent dispatches. Per-wish failures are
// collected in the report; the returned error is only set when the queue
// itself could not be read.
func (s *Scheduler) DispatchDue(ctx context.Context, now time.Time) (domain.Report, error) {
	var report domain.Report
	jobs, err := s.queue.ClaimDue(ctx, now, s.cfg.BatchSize, s.cfg.claimTTL())
	if err != nil {
		return report, fmt.Errorf("claim due dispatch jobs: %w", err)
	}
	if len(jobs) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, job := range jobs {
		g.Go(func() error {
			r := s.dispatch(gctx, job)
			mu.Lock()
			report.Merge(r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info("dispatch batch done",
		"claimed", len(jobs), "sent", report.Processed, "failed", report.Failed, "discarded", report.Skipped)
	return report, nil
}

// dispatch handles a single claimed job. The job is completed whenever the
// wish reached a final answer; it is left claimed (to be retried after the
// claim expires) when ctx ends mid-dispatch or the sent status cannot be
// stored.
func (s *Scheduler) dispatch(ctx context.Context, job domain.DispatchJob) domain.Report {
	var r domain.Report
	log := s.log.With("wish_id", job.WishID, "job_id", job.ID)

	w, err := s.wishes.Get(ctx, job.WishID)
	if errors.Is(err, domain.ErrNotFound) {
		s.complete(ctx, job, log)
		dispatchOutcomes.WithLabelValues("discarded").Inc()
		r.Skipped++
		return r
	}
	if err != nil {
		dispatchOutcomes.WithLabelValues("error").Inc()
		r.Fail(fmt.Errorf("wish %s: %w", job.WishID, err))
		return r
	}
	if w.Status != domain.WishScheduled {
		// Already handled, or moved away from scheduled by its owner.
		log.Debug("dispatch discarded", "status", w.Status)
		s.complete(ctx, job, log)
		dispatchOutcomes.WithLabelValues("discarded").Inc()
		r.Skipped++
		return r
	}

	sendErr := s.sendWithRetry(ctx, w, log)
	if sendErr != nil && ctx.Err() != nil {
		r.Fail(fmt.Errorf("wish %s: %w", job.WishID, ctx.Err()))
		return r
	}

	if sendErr == nil {
		if err := s.markSent(ctx, w.ID, log); err != nil {
			// Leave the job claimed so the wish is picked up again once the
			// claim expires instead of staying scheduled with no job.
			dispatchOutcomes.WithLabelValues("error").Inc()
			r.Fail(fmt.Errorf("mark wish %s sent: %w", w.ID, err))
			log.Error("delivered but could not mark sent", "error", err, "claimed_until", s.now().Add(s.cfg.claimTTL()))
			return r
		}
		s.complete(ctx, job, log)
		dispatchOutcomes.WithLabelValues("sent").Inc()
		r.Processed++
		return r
	}

	if _, err := s.wishes.MarkFailed(ctx, w.ID, sendErr.Error()); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// The wish left scheduled while we were retrying.
			log.Warn("wish changed during dispatch", "error", err)
			s.complete(ctx, job, log)
			dispatchOutcomes.WithLabelValues("discarded").Inc()
			r.Skipped++
			return r
		}
		dispatchOutcomes.WithLabelValues("error").Inc()
		r.Fail(fmt.Errorf("mark wish %s failed: %w", w.ID, err))
		return r
	}
	s.complete(ctx, job, log)
	dispatchOutcomes.WithLabelValues("failed").Inc()
	log.Error("wish delivery failed", "error", sendErr)
	r.Fail(fmt.Errorf("deliver wish %s: %w", w.ID, sendErr))
	return r
}

// sendWithRetry calls the Notifier up to Retry.Attempts times. A timeout
// counts as a retryable failure.
func (s *Scheduler) sendWithRetry(ctx context.Context, w *domain.Wish, log *logger.Logger) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.Retry.Attempts; attempt++ {
		if attempt > 1 {
			if err := s.cfg.Retry.Sleep(ctx, attempt-1); err != nil {
				return err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.NotifierTimeout)
		start := time.Now()
		err := s.notifier.Send(callCtx, w)
		notifierDuration.Observe(time.Since(start).Seconds())
		cancel()

		if err == nil {
			notifierAttempts.WithLabelValues("ok").Inc()
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = domain.Transport(fmt.Errorf("notifier timed out after %s: %w", s.cfg.NotifierTimeout, err))
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !domain.IsRetryable(err) {
			notifierAttempts.WithLabelValues("permanent").Inc()
			log.Warn("notifier rejected wish permanently", "attempt", attempt, "error", err)
			return err
		}
		notifierAttempts.WithLabelValues("retryable").Inc()
		log.Warn("notifier attempt failed", "attempt", attempt, "max_attempts", s.cfg.Retry.Attempts, "error", err)
	}
	return fmt.Errorf("%d attempts: %w", s.cfg.Retry.Attempts, lastErr)
}

// markSent stores the sent status, retrying store errors under the same
// policy as the notifier. A conflict is final.
func (s *Scheduler) markSent(ctx context.Context, id string, log *logger.Logger) error {
	var err error
	for attempt := 1; attempt <= s.cfg.Retry.Attempts; attempt++ {
		if attempt > 1 {
			if serr := s.cfg.Retry.Sleep(ctx, attempt-1); serr != nil {
				return serr
			}
		}
		if _, err = s.wishes.MarkSent(ctx, id, s.now()); err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrConflict) || ctx.Err() != nil {
			return err
		}
		log.Warn("mark sent attempt failed", "attempt", attempt, "error", err)
	}
	return err
}

func (s *Scheduler) complete(ctx context.Context, job domain.DispatchJob, log *logger.Logger) {
	if err := s.queue.Complete(ctx, job.ID); err != nil {
		// The claim expires and the status re-check turns the retry into a no-op.
		log.Warn("complete dispatch job failed", "error", err)
	}
}

// Start begins the polling loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("dispatcher already running")
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	s.log.Info("dispatcher starting", "poll_interval", s.cfg.PollInterval, "workers", s.cfg.Workers)
	s.wg.Add(1)
	go s.loop()
	return nil
}

// Stop cancels the loop and waits for in-flight dispatches to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.log.Info("dispatcher stopped")
}

// Running reports whether the polling loop is active.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.DispatchDue(s.ctx, s.now()); err != nil && s.ctx.Err() == nil {
				s.log.Error("dispatch poll failed", "error", err)
			}
		}
	}
}
