package wish_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
	"github.com/akashvim3/Birthday-Wishes-System/internal/service/wish"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo is an in-memory Repository with compare-and-set transitions.
type memRepo struct {
	mu          sync.Mutex
	wishes      map[string]domain.Wish
	transitions int
}

func newMemRepo() *memRepo {
	return &memRepo{wishes: make(map[string]domain.Wish)}
}

func (r *memRepo) Get(_ context.Context, id string) (*domain.Wish, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wishes[id]
	if !ok {
		return nil, domain.NotFoundf("wish %s", id)
	}
	return &w, nil
}

func (r *memRepo) Create(_ context.Context, w *domain.Wish) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wishes[w.ID] = *w
	return nil
}

func (r *memRepo) Transition(_ context.Context, t domain.WishTransition) error {
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
	w.UpdatedAt = t.At
	if t.ScheduledAt != nil {
		w.ScheduledAt = t.ScheduledAt
	}
	if t.To == domain.WishSent {
		w.SentAt = t.SentAt
	}
	w.FailureReason = t.FailureReason
	r.wishes[t.WishID] = w
	r.transitions++
	return nil
}

func (r *memRepo) put(id string, status domain.WishStatus) {
	r.wishes[id] = domain.Wish{ID: id, SenderID: "s", RecipientID: "r", Kind: domain.WishText, Status: status}
}

type recordingEnqueuer struct {
	mu    sync.Mutex
	calls map[string]time.Time
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, id string, at time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.calls == nil {
		e.calls = make(map[string]time.Time)
	}
	e.calls[id] = at
	return nil
}

// flakyEnqueuer fails while down is set.
type flakyEnqueuer struct {
	recordingEnqueuer
	down atomic.Bool
}

func (e *flakyEnqueuer) Enqueue(ctx context.Context, id string, at time.Time) error {
	if e.down.Load() {
		return domain.Transport(errors.New("queue down"))
	}
	return e.recordingEnqueuer.Enqueue(ctx, id, at)
}

type stubNotifier struct {
	err   error
	calls atomic.Int32
}

func (n *stubNotifier) Send(context.Context, *domain.Wish) error {
	n.calls.Add(1)
	return n.err
}

var now = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return now }

func TestSchedule(t *testing.T) {
	repo := newMemRepo()
	repo.put("w1", domain.WishDraft)
	enq := &recordingEnqueuer{}
	svc := wish.NewService(repo, wish.WithClock(fixedClock), wish.WithEnqueuer(enq))
	ctx := context.Background()

	_, err := svc.Schedule(ctx, "w1", now)
	assert.ErrorIs(t, err, domain.ErrValidation, "not strictly after now")
	_, err = svc.Schedule(ctx, "w1", now.Add(-time.Hour))
	assert.ErrorIs(t, err, wish.ErrScheduleNotFuture)

	at := now.Add(time.Hour)
	w, err := svc.Schedule(ctx, "w1", at)
	require.NoError(t, err)
	assert.Equal(t, domain.WishScheduled, w.Status)
	assert.Equal(t, at, *w.ScheduledAt)
	assert.Equal(t, at, enq.calls["w1"])

	_, err = svc.Schedule(ctx, "w1", at)
	assert.ErrorIs(t, err, wish.ErrNotDraft)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Schedule(ctx, "missing", at)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarkSent_Idempotent(t *testing.T) {
	repo := newMemRepo()
	repo.put("w1", domain.WishScheduled)
	svc := wish.NewService(repo, wish.WithClock(fixedClock))
	ctx := context.Background()

	first, err := svc.MarkSent(ctx, "w1", now)
	require.NoError(t, err)
	require.NotNil(t, first.SentAt)
	assert.Equal(t, domain.WishSent, first.Status)

	second, err := svc.MarkSent(ctx, "w1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, *first.SentAt, *second.SentAt)
	assert.Equal(t, 1, repo.transitions)
}

func TestMarkSent_FromDraftAndFailed(t *testing.T) {
	repo := newMemRepo()
	repo.put("draft", domain.WishDraft)
	repo.put("failed", domain.WishFailed)
	svc := wish.NewService(repo, wish.WithClock(fixedClock))
	ctx := context.Background()

	w, err := svc.MarkSent(ctx, "draft", now)
	require.NoError(t, err)
	assert.Equal(t, domain.WishSent, w.Status)

	_, err = svc.MarkSent(ctx, "failed", now)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestMarkSent_ConcurrentDispatchersCompleteOnce(t *testing.T) {
	repo := newMemRepo()
	repo.put("w1", domain.WishScheduled)
	svc := wish.NewService(repo, wish.WithClock(fixedClock))

	const n = 16
	var wg sync.WaitGroup
	sentAts := make([]time.Time, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := svc.MarkSent(context.Background(), "w1", now.Add(time.Duration(i)*time.Second))
			errs[i] = err
			if err == nil {
				sentAts[i] = *w.SentAt
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, repo.transitions)
	stored, _ := repo.Get(context.Background(), "w1")
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, *stored.SentAt, sentAts[i])
	}
}

func TestMarkFailed(t *testing.T) {
	repo := newMemRepo()
	repo.put("sched", domain.WishScheduled)
	repo.put("sent", domain.WishSent)
	repo.put("draft", domain.WishDraft)
	svc := wish.NewService(repo, wish.WithClock(fixedClock))
	ctx := context.Background()

	w, err := svc.MarkFailed(ctx, "sched", "recipient bounced")
	require.NoError(t, err)
	assert.Equal(t, domain.WishFailed, w.Status)
	assert.Equal(t, "recipient bounced", w.FailureReason)
	assert.Nil(t, w.SentAt)

	_, err = svc.MarkFailed(ctx, "sent", "late")
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = svc.MarkFailed(ctx, "draft", "x")
	assert.ErrorIs(t, err, wish.ErrInvalidTransition)
	_, err = svc.MarkFailed(ctx, "sched", "again")
	assert.ErrorIs(t, err, domain.ErrConflict, "double terminal transition")
}

func TestReschedule(t *testing.T) {
	repo := newMemRepo()
	repo.put("failed", domain.WishFailed)
	repo.put("sent", domain.WishSent)
	enq := &recordingEnqueuer{}
	svc := wish.NewService(repo, wish.WithClock(fixedClock), wish.WithEnqueuer(enq))
	ctx := context.Background()

	at := now.Add(24 * time.Hour)
	w, err := svc.Reschedule(ctx, "failed", at)
	require.NoError(t, err)
	assert.Equal(t, domain.WishScheduled, w.Status)
	assert.Empty(t, w.FailureReason)
	assert.Contains(t, enq.calls, "failed")

	_, err = svc.Reschedule(ctx, "sent", at)
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = svc.Reschedule(ctx, "failed", now)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreate(t *testing.T) {
	repo := newMemRepo()
	enq := &recordingEnqueuer{}
	svc := wish.NewService(repo, wish.WithClock(fixedClock), wish.WithEnqueuer(enq))
	ctx := context.Background()

	draft, err := svc.Create(ctx, wish.CreateInput{SenderID: "a", RecipientID: "b", TextContent: "Happy birthday!"})
	require.NoError(t, err)
	assert.Equal(t, domain.WishDraft, draft.Status)
	assert.Equal(t, domain.WishText, draft.Kind)
	assert.Empty(t, enq.calls)

	at := now.Add(2 * time.Hour)
	voice, err := svc.Create(ctx, wish.CreateInput{SenderID: "a", RecipientID: "b", MediaRef: "voice/abc.webm", ScheduledAt: &at})
	require.NoError(t, err)
	assert.Equal(t, domain.WishVoice, voice.Kind)
	assert.Equal(t, domain.WishScheduled, voice.Status)
	assert.Equal(t, at, enq.calls[voice.ID])

	past := now.Add(-time.Minute)
	_, err = svc.Create(ctx, wish.CreateInput{SenderID: "a", RecipientID: "b", TextContent: "x", ScheduledAt: &past})
	assert.ErrorIs(t, err, wish.ErrScheduleNotFuture)

	_, err = svc.Create(ctx, wish.CreateInput{RecipientID: "b", TextContent: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Create(ctx, wish.CreateInput{SenderID: "a", RecipientID: "b", Kind: "hologram"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Create(ctx, wish.CreateInput{SenderID: "a", RecipientID: "b", Kind: "video"})
	assert.ErrorIs(t, err, domain.ErrValidation, "video without media")
}

func TestSendNow(t *testing.T) {
	repo := newMemRepo()
	repo.put("ok", domain.WishDraft)
	repo.put("broken", domain.WishDraft)
	repo.put("sched", domain.WishScheduled)
	ctx := context.Background()

	_, err := wish.NewService(repo).SendNow(ctx, "ok")
	assert.ErrorIs(t, err, wish.ErrNoNotifier)

	n := &stubNotifier{}
	svc := wish.NewService(repo, wish.WithClock(fixedClock), wish.WithNotifier(n))
	w, err := svc.SendNow(ctx, "ok")
	require.NoError(t, err)
	assert.Equal(t, domain.WishSent, w.Status)
	assert.Equal(t, now, *w.SentAt)

	_, err = svc.SendNow(ctx, "sched")
	assert.ErrorIs(t, err, wish.ErrInvalidTransition)

	failing := &stubNotifier{err: domain.Transport(errors.New("timeout"))}
	svc = wish.NewService(repo, wish.WithClock(fixedClock), wish.WithNotifier(failing))
	_, err = svc.SendNow(ctx, "broken")
	assert.ErrorIs(t, err, domain.ErrTransport)
	stored, _ := repo.Get(ctx, "broken")
	assert.Equal(t, domain.WishDraft, stored.Status)
}

func TestSchedule_EnqueueFailureLeavesDraft(t *testing.T) {
	repo := newMemRepo()
	repo.put("w1", domain.WishDraft)
	enq := &flakyEnqueuer{}
	enq.down.Store(true)
	svc := wish.NewService(repo, wish.WithClock(fixedClock), wish.WithEnqueuer(enq))
	ctx := context.Background()
	at := now.Add(time.Hour)

	_, err := svc.Schedule(ctx, "w1", at)
	require.ErrorIs(t, err, domain.ErrTransport)
	stored, _ := repo.Get(ctx, "w1")
	assert.Equal(t, domain.WishDraft, stored.Status)
	assert.Nil(t, stored.ScheduledAt)
	assert.Zero(t, repo.transitions)

	enq.down.Store(false)
	w, err := svc.Schedule(ctx, "w1", at)
	require.NoError(t, err)
	assert.Equal(t, domain.WishScheduled, w.Status)
	assert.Equal(t, at, enq.calls["w1"])
}

func TestReschedule_EnqueueFailureLeavesFailed(t *testing.T) {
	repo := newMemRepo()
	repo.put("w1", domain.WishFailed)
	enq := &flakyEnqueuer{}
	enq.down.Store(true)
	svc := wish.NewService(repo, wish.WithClock(fixedClock), wish.WithEnqueuer(enq))
	ctx := context.Background()
	at := now.Add(time.Hour)

	_, err := svc.Reschedule(ctx, "w1", at)
	require.ErrorIs(t, err, domain.ErrTransport)
	stored, _ := repo.Get(ctx, "w1")
	assert.Equal(t, domain.WishFailed, stored.Status)

	enq.down.Store(false)
	w, err := svc.Reschedule(ctx, "w1", at)
	require.NoError(t, err)
	assert.Equal(t, domain.WishScheduled, w.Status)
	assert.Contains(t, enq.calls, "w1")
}

func TestCreate_EnqueueFailureLeavesDraft(t *testing.T) {
	repo := newMemRepo()
	enq := &flakyEnqueuer{}
	enq.down.Store(true)
	svc := wish.NewService(repo, wish.WithClock(fixedClock), wish.WithEnqueuer(enq))
	ctx := context.Background()
	at := now.Add(time.Hour)

	_, err := svc.Create(ctx, wish.CreateInput{SenderID: "a", RecipientID: "b", TextContent: "hi", ScheduledAt: &at})
	require.ErrorIs(t, err, domain.ErrTransport)

	require.Len(t, repo.wishes, 1)
	var id string
	for k, w := range repo.wishes {
		id = k
		assert.Equal(t, domain.WishDraft, w.Status)
	}

	enq.down.Store(false)
	w, err := svc.Schedule(ctx, id, at)
	require.NoError(t, err)
	assert.Equal(t, domain.WishScheduled, w.Status)
	assert.Equal(t, at, enq.calls[id])
}
