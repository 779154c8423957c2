package notification_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
	"github.com/akashvim3/Birthday-Wishes-System/internal/pkg/backoff"
	"github.com/akashvim3/Birthday-Wishes-System/internal/service/notification"
	"github.com/akashvim3/Birthday-Wishes-System/internal/service/wish"
)

// memQueue is an in-memory Queue with one job per wish.
type memQueue struct {
	mu   sync.Mutex
	jobs map[string]*domain.DispatchJob // by wish id
}

func newMemQueue() *memQueue { return &memQueue{jobs: make(map[string]*domain.DispatchJob)} }

func (q *memQueue) Enqueue(_ context.Context, wishID string, deliverAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j, ok := q.jobs[wishID]; ok {
		j.DeliverAt = deliverAt
		j.ClaimedUntil = nil
		return nil
	}
	q.jobs[wishID] = &domain.DispatchJob{ID: uuid.NewString(), WishID: wishID, DeliverAt: deliverAt}
	return nil
}

func (q *memQueue) ClaimDue(_ context.Context, now time.Time, limit int, ttl time.Duration) ([]domain.DispatchJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []*domain.DispatchJob
	for _, j := range q.jobs {
		if j.DeliverAt.After(now) {
			continue
		}
		if j.ClaimedUntil != nil && j.ClaimedUntil.After(now) {
			continue
		}
		due = append(due, j)
	}
	sort.Slice(due, func(a, b int) bool { return due[a].DeliverAt.Before(due[b].DeliverAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	out := make([]domain.DispatchJob, 0, len(due))
	until := now.Add(ttl)
	for _, j := range due {
		j.ClaimedUntil = &until
		j.Claims++
		out = append(out, *j)
	}
	return out, nil
}

func (q *memQueue) Complete(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for wishID, j := range q.jobs {
		if j.ID == jobID {
			delete(q.jobs, wishID)
		}
	}
	return nil
}

func (q *memQueue) Pending(context.Context) (int, error) { return q.len(), nil }

func (q *memQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// memWishes is an in-memory wish.Repository with compare-and-set.
type memWishes struct {
	mu     sync.Mutex
	wishes map[string]domain.Wish
}

func newMemWishes() *memWishes { return &memWishes{wishes: make(map[string]domain.Wish)} }

func (r *memWishes) Get(_ context.Context, id string) (*domain.Wish, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wishes[id]
	if !ok {
		return nil, domain.NotFoundf("wish %s", id)
	}
	return &w, nil
}

func (r *memWishes) Create(_ context.Context, w *domain.Wish) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wishes[w.ID] = *w
	return nil
}

func (r *memWishes) Transition(_ context.Context, t domain.WishTransition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wishes[t.WishID]
	if !ok {
		return domain.NotFoundf("wish %s", t.WishID)
	}
	if w.Status != t.From {
		return wish.ErrStaleStatus
	}
	w.Status = t.To
	if t.ScheduledAt != nil {
		w.ScheduledAt = t.ScheduledAt
	}
	if t.SentAt != nil {
		w.SentAt = t.SentAt
	}
	w.FailureReason = t.FailureReason
	r.wishes[t.WishID] = w
	return nil
}

func (r *memWishes) setStatus(id string, s domain.WishStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.wishes[id]
	w.Status = s
	r.wishes[id] = w
}

// scriptedNotifier returns errs in order, then nil.
type scriptedNotifier struct {
	mu    sync.Mutex
	errs  []error
	calls map[string]int
	block bool
}

func (n *scriptedNotifier) Send(ctx context.Context, w *domain.Wish) error {
	n.mu.Lock()
	if n.calls == nil {
		n.calls = make(map[string]int)
	}
	n.calls[w.ID]++
	var err error
	if len(n.errs) > 0 {
		err = n.errs[0]
		n.errs = n.errs[1:]
	}
	block := n.block
	n.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (n *scriptedNotifier) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	sum := 0
	for _, c := range n.calls {
		sum += c
	}
	return sum
}

var t0 = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

var fastRetry = backoff.Policy{Attempts: 3, Base: time.Millisecond, Max: time.Millisecond}

type fixture struct {
	queue    *memQueue
	repo     *memWishes
	wishes   *wish.Service
	notifier *scriptedNotifier
	sched    *notification.Scheduler
}

func newFixture(cfg notification.Config, n *scriptedNotifier) *fixture {
	f := &fixture{queue: newMemQueue(), repo: newMemWishes(), notifier: n}
	f.wishes = wish.NewService(f.repo, wish.WithClock(func() time.Time { return t0 }), wish.WithEnqueuer(f.queue))
	f.sched = notification.NewScheduler(f.queue, f.wishes, n, cfg)
	return f
}

func (f *fixture) scheduled(t *testing.T, at time.Time) *domain.Wish {
	t.Helper()
	w, err := f.wishes.Create(context.Background(), wish.CreateInput{
		SenderID: "alice", RecipientID: "bob", TextContent: "Happy birthday!", ScheduledAt: &at,
	})
	require.NoError(t, err)
	return w
}

func TestDispatchDue_SendsOnceAfterDue(t *testing.T) {
	f := newFixture(notification.Config{Retry: fastRetry}, &scriptedNotifier{})
	w := f.scheduled(t, t0.Add(time.Hour))
	ctx := context.Background()

	report, err := f.sched.DispatchDue(ctx, t0.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, report.Processed)
	assert.Zero(t, f.notifier.total(), "not due yet")
	pending, err := f.sched.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	dispatchAt := t0.Add(2 * time.Hour)
	f.sched.SetClock(func() time.Time { return dispatchAt })
	report, err = f.sched.DispatchDue(ctx, dispatchAt)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Empty(t, report.Errors)

	got, err := f.repo.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WishSent, got.Status)
	require.NotNil(t, got.SentAt)
	assert.Equal(t, dispatchAt, *got.SentAt)
	pending, err = f.sched.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	report, err = f.sched.DispatchDue(ctx, dispatchAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, report.Processed)
	assert.Equal(t, 1, f.notifier.total())
}

func TestDispatchDue_DuplicateTriggerIsNoop(t *testing.T) {
	f := newFixture(notification.Config{Retry: fastRetry}, &scriptedNotifier{})
	w := f.scheduled(t, t0.Add(time.Hour))
	ctx := context.Background()

	_, err := f.sched.DispatchDue(ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	first, _ := f.repo.Get(ctx, w.ID)

	// A redelivered trigger for the same wish.
	require.NoError(t, f.sched.Enqueue(ctx, w.ID, t0.Add(time.Hour)))
	report, err := f.sched.DispatchDue(ctx, t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, f.notifier.total())

	again, _ := f.repo.Get(ctx, w.ID)
	assert.Equal(t, *first.SentAt, *again.SentAt)
}

func TestDispatchDue_ExhaustsRetryBudget(t *testing.T) {
	transport := domain.Transport(errors.New("connection reset"))
	n := &scriptedNotifier{errs: []error{transport, transport, transport, transport}}
	f := newFixture(notification.Config{Retry: fastRetry}, n)
	w := f.scheduled(t, t0.Add(time.Hour))
	ctx := context.Background()

	report, err := f.sched.DispatchDue(ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.ErrorIs(t, report.Errors[0], domain.ErrTransport)
	assert.Equal(t, 3, n.total())

	got, _ := f.repo.Get(ctx, w.ID)
	assert.Equal(t, domain.WishFailed, got.Status)
	assert.Nil(t, got.SentAt)
	assert.Contains(t, got.FailureReason, "connection reset")

	_, err = f.sched.DispatchDue(ctx, t0.Add(4*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, n.total(), "no further retry")
}

func TestDispatchDue_RecoversWithinBudget(t *testing.T) {
	transport := domain.Transport(errors.New("throttled"))
	n := &scriptedNotifier{errs: []error{transport, transport}}
	f := newFixture(notification.Config{Retry: fastRetry}, n)
	w := f.scheduled(t, t0.Add(time.Hour))

	report, err := f.sched.DispatchDue(context.Background(), t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 3, n.total())
	got, _ := f.repo.Get(context.Background(), w.ID)
	assert.Equal(t, domain.WishSent, got.Status)
}

func TestDispatchDue_PermanentFailsImmediately(t *testing.T) {
	n := &scriptedNotifier{errs: []error{domain.Permanent(errors.New("mailbox does not exist"))}}
	f := newFixture(notification.Config{Retry: fastRetry}, n)
	w := f.scheduled(t, t0.Add(time.Hour))

	report, err := f.sched.DispatchDue(context.Background(), t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Err(), domain.ErrPermanent)
	assert.Equal(t, 1, n.total())
	got, _ := f.repo.Get(context.Background(), w.ID)
	assert.Equal(t, domain.WishFailed, got.Status)
}

func TestDispatchDue_TimeoutCountsAsTransport(t *testing.T) {
	n := &scriptedNotifier{block: true}
	cfg := notification.Config{Retry: backoff.Policy{Attempts: 2, Base: time.Millisecond, Max: time.Millisecond}, NotifierTimeout: 20 * time.Millisecond}
	f := newFixture(cfg, n)
	w := f.scheduled(t, t0.Add(time.Hour))

	report, err := f.sched.DispatchDue(context.Background(), t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Err(), domain.ErrTransport)
	assert.Equal(t, 2, n.total())
	got, _ := f.repo.Get(context.Background(), w.ID)
	assert.Equal(t, domain.WishFailed, got.Status)
}

func TestDispatchDue_CancelledByStatusChange(t *testing.T) {
	f := newFixture(notification.Config{Retry: fastRetry}, &scriptedNotifier{})
	w := f.scheduled(t, t0.Add(time.Hour))
	f.repo.setStatus(w.ID, domain.WishDraft)

	report, err := f.sched.DispatchDue(context.Background(), t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, f.notifier.total())
	assert.Equal(t, 0, f.queue.len())
}

func TestDispatchDue_MissingWishDiscarded(t *testing.T) {
	f := newFixture(notification.Config{Retry: fastRetry}, &scriptedNotifier{})
	require.NoError(t, f.sched.Enqueue(context.Background(), "ghost", t0))

	report, err := f.sched.DispatchDue(context.Background(), t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, f.queue.len())
}

func TestDispatchDue_ConcurrentDispatchersSendEachOnce(t *testing.T) {
	n := &scriptedNotifier{}
	f := newFixture(notification.Config{Retry: fastRetry, Workers: 4, BatchSize: 10}, n)
	const wishes = 40
	for i := 0; i < wishes; i++ {
		f.scheduled(t, t0.Add(time.Hour))
	}
	other := notification.NewScheduler(f.queue, f.wishes, n, notification.Config{Retry: fastRetry, Workers: 4, BatchSize: 10})

	var sent atomic.Int32
	var wg sync.WaitGroup
	for _, s := range []*notification.Scheduler{f.sched, other, f.sched, other, f.sched, other} {
		wg.Add(1)
		go func(s *notification.Scheduler) {
			defer wg.Done()
			for {
				r, err := s.DispatchDue(context.Background(), t0.Add(2*time.Hour))
				assert.NoError(t, err)
				if r.Processed+r.Skipped+r.Failed == 0 {
					return
				}
				sent.Add(int32(r.Processed))
			}
		}(s)
	}
	wg.Wait()

	assert.Equal(t, int32(wishes), sent.Load())
	n.mu.Lock()
	defer n.mu.Unlock()
	assert.Len(t, n.calls, wishes)
	for id, c := range n.calls {
		assert.Equal(t, 1, c, "wish %s", id)
	}
}

func TestEnqueue_RequiresWishID(t *testing.T) {
	f := newFixture(notification.Config{}, &scriptedNotifier{})
	err := f.sched.Enqueue(context.Background(), "", t0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestScheduler_StartStop(t *testing.T) {
	f := newFixture(notification.Config{PollInterval: 10 * time.Millisecond, Retry: fastRetry}, &scriptedNotifier{})
	w := f.scheduled(t, t0.Add(time.Hour))
	f.sched.SetClock(func() time.Time { return t0.Add(2 * time.Hour) })

	require.NoError(t, f.sched.Start())
	assert.Error(t, f.sched.Start(), "double start")
	assert.True(t, f.sched.Running())

	assert.Eventually(t, func() bool {
		got, _ := f.repo.Get(context.Background(), w.ID)
		return got.Status == domain.WishSent
	}, 2*time.Second, 10*time.Millisecond)

	f.sched.Stop()
	assert.False(t, f.sched.Running())
	f.sched.Stop()
}

// flakyLifecycle fails MarkSent with a store error markErrs times.
type flakyLifecycle struct {
	*wish.Service
	markErrs atomic.Int32
}

func (l *flakyLifecycle) MarkSent(ctx context.Context, id string, now time.Time) (*domain.Wish, error) {
	if l.markErrs.Add(-1) >= 0 {
		return nil, errors.New("connection refused")
	}
	return l.Service.MarkSent(ctx, id, now)
}

func TestDispatchDue_RetriesMarkSent(t *testing.T) {
	f := newFixture(notification.Config{Retry: fastRetry}, &scriptedNotifier{})
	life := &flakyLifecycle{Service: f.wishes}
	life.markErrs.Store(2)
	sched := notification.NewScheduler(f.queue, life, f.notifier, notification.Config{Retry: fastRetry})
	w := f.scheduled(t, t0.Add(time.Hour))

	report, err := sched.DispatchDue(context.Background(), t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, f.notifier.total())
	got, _ := f.repo.Get(context.Background(), w.ID)
	assert.Equal(t, domain.WishSent, got.Status)
	assert.Equal(t, 0, f.queue.len())
}

func TestDispatchDue_MarkSentFailureKeepsJob(t *testing.T) {
	f := newFixture(notification.Config{Retry: fastRetry}, &scriptedNotifier{})
	life := &flakyLifecycle{Service: f.wishes}
	life.markErrs.Store(int32(fastRetry.Attempts))
	cfg := notification.Config{Retry: fastRetry, NotifierTimeout: time.Second}
	sched := notification.NewScheduler(f.queue, life, f.notifier, cfg)
	w := f.scheduled(t, t0.Add(time.Hour))
	ctx := context.Background()

	report, err := sched.DispatchDue(ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	got, _ := f.repo.Get(ctx, w.ID)
	assert.Equal(t, domain.WishScheduled, got.Status)
	assert.Equal(t, 1, f.queue.len(), "job stays claimed")

	report, err = sched.DispatchDue(ctx, t0.Add(2*time.Hour+time.Minute))
	require.NoError(t, err)
	assert.Zero(t, report.Processed+report.Failed+report.Skipped, "claim not expired")

	report, err = sched.DispatchDue(ctx, t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	got, _ = f.repo.Get(ctx, w.ID)
	assert.Equal(t, domain.WishSent, got.Status)
	assert.Equal(t, 0, f.queue.len())
}
