package wish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
	"github.com/akashvim3/Birthday-Wishes-System/internal/pkg/logger"
)

// Service implements wish creation and the lifecycle transitions.
// All public methods are safe for concurrent use if the underlying
// repository is concurrency-safe.
type Service struct {
	repo     Repository
	enqueuer Enqueuer
	notifier Notifier
	now      func() time.Time
	validate *validator.Validate
	log      *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithEnqueuer registers scheduled wishes for dispatch as they are scheduled.
func WithEnqueuer(e Enqueuer) Option { return func(s *Service) { s.enqueuer = e } }

// WithNotifier enables SendNow.
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option { return func(s *Service) { s.log = l } }

// NewService creates a wish service backed by the given repository.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		now:      time.Now,
		validate: validator.New(),
		log:      logger.With("component", "wish"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateInput holds the fields for a new wish. Kind may be left empty and is
// then inferred from the attached content.
type CreateInput struct {
	SenderID     string     `json:"sender_id" validate:"required"`
	RecipientID  string     `json:"recipient_id" validate:"required"`
	Kind         string     `json:"kind" validate:"omitempty,oneof=text voice video card"`
	TextContent  string     `json:"text_content" validate:"max=5000"`
	CardTemplate string     `json:"card_template"`
	MediaRef     string     `json:"media_ref"`
	IsPublic     bool       `json:"is_public"`
	IsAnonymous  bool       `json:"is_anonymous"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
}

// Get returns a single wish.
func (s *Service) Get(ctx context.Context, id string) (*domain.Wish, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and persists a new wish. Without ScheduledAt the wish is
// a draft. With it the wish is stored as a draft, enqueued and then moved to
// scheduled, so an enqueue error leaves a draft that can be scheduled again.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Wish, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, domain.Validationf("%v", err)
	}

	kind := domain.WishKind(in.Kind)
	if kind == "" {
		kind = inferKind(in)
	}
	switch kind {
	case domain.WishText:
		if in.TextContent == "" {
			return nil, domain.Validationf("text wish requires text content")
		}
	case domain.WishVoice, domain.WishVideo:
		if in.MediaRef == "" {
			return nil, domain.Validationf("%s wish requires a media reference", kind)
		}
	}

	now := s.now()
	w := &domain.Wish{
		ID:           uuid.New().String(),
		SenderID:     in.SenderID,
		RecipientID:  in.RecipientID,
		Kind:         kind,
		Status:       domain.WishDraft,
		TextContent:  in.TextContent,
		CardTemplate: in.CardTemplate,
		MediaRef:     in.MediaRef,
		IsPublic:     in.IsPublic,
		IsAnonymous:  in.IsAnonymous,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.ScheduledAt != nil && !in.ScheduledAt.After(now) {
		return nil, ErrScheduleNotFuture
	}

	if err := s.repo.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("create wish: %w", err)
	}
	s.log.Info("wish created", "wish_id", w.ID, "kind", w.Kind)
	if in.ScheduledAt == nil {
		return w, nil
	}
	if err := s.toScheduled(ctx, w, domain.WishDraft, *in.ScheduledAt, now); err != nil {
		return nil, fmt.Errorf("schedule wish %s: %w", w.ID, err)
	}
	s.log.Info("wish scheduled", "wish_id", w.ID, "scheduled_at", in.ScheduledAt.UTC().Format(time.RFC3339))
	return w, nil
}

func inferKind(in CreateInput) domain.WishKind {
	switch {
	case in.MediaRef != "":
		return domain.WishVoice
	case in.CardTemplate != "":
		return domain.WishCard
	default:
		return domain.WishText
	}
}

// Schedule moves a draft wish to scheduled for delivery at at. at must be
// strictly after the current time.
func (s *Service) Schedule(ctx context.Context, id string, at time.Time) (*domain.Wish, error) {
	now := s.now()
	if !at.After(now) {
		return nil, ErrScheduleNotFuture
	}
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.Status != domain.WishDraft {
		return nil, fmt.Errorf("schedule wish %s in status %s: %w", id, w.Status, ErrNotDraft)
	}

	if err := s.toScheduled(ctx, w, domain.WishDraft, at, now); err != nil {
		return nil, fmt.Errorf("schedule wish %s: %w", id, err)
	}
	s.log.Info("wish scheduled", "wish_id", id, "scheduled_at", at.UTC().Format(time.RFC3339))
	return w, nil
}

// MarkSent records a successful delivery at now. It is idempotent: a wish
// that is already sent is returned unchanged with its original SentAt.
// A failed wish yields ErrInvalidTransition.
func (s *Service) MarkSent(ctx context.Context, id string, now time.Time) (*domain.Wish, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch w.Status {
	case domain.WishSent:
		return w, nil
	case domain.WishFailed:
		return nil, fmt.Errorf("mark wish %s sent from %s: %w", id, w.Status, ErrInvalidTransition)
	}

	sentAt := now
	t := domain.WishTransition{WishID: id, From: w.Status, To: domain.WishSent, SentAt: &sentAt, At: now}
	if err := s.repo.Transition(ctx, t); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Lost the race; the winner may have completed the same transition.
			cur, gerr := s.repo.Get(ctx, id)
			if gerr == nil && cur.Status == domain.WishSent {
				return cur, nil
			}
		}
		return nil, fmt.Errorf("mark wish %s sent: %w", id, err)
	}
	applyTransition(w, t)
	s.log.Info("wish sent", "wish_id", id)
	return w, nil
}

// MarkFailed records a terminal delivery failure. Only a scheduled wish can
// fail; any other status yields ErrInvalidTransition.
func (s *Service) MarkFailed(ctx context.Context, id, reason string) (*domain.Wish, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.Status != domain.WishScheduled {
		return nil, fmt.Errorf("mark wish %s failed from %s: %w", id, w.Status, ErrInvalidTransition)
	}

	t := domain.WishTransition{WishID: id, From: domain.WishScheduled, To: domain.WishFailed, FailureReason: reason, At: s.now()}
	if err := s.repo.Transition(ctx, t); err != nil {
		return nil, fmt.Errorf("mark wish %s failed: %w", id, err)
	}
	applyTransition(w, t)
	s.log.Warn("wish failed", "wish_id", id, "reason", reason)
	return w, nil
}

// Reschedule moves a failed wish back to scheduled. This is the only way
// out of failed and is never invoked automatically.
func (s *Service) Reschedule(ctx context.Context, id string, at time.Time) (*domain.Wish, error) {
	now := s.now()
	if !at.After(now) {
		return nil, ErrScheduleNotFuture
	}
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.Status != domain.WishFailed {
		return nil, fmt.Errorf("reschedule wish %s from %s: %w", id, w.Status, ErrInvalidTransition)
	}

	if err := s.toScheduled(ctx, w, domain.WishFailed, at, now); err != nil {
		return nil, fmt.Errorf("reschedule wish %s: %w", id, err)
	}
	s.log.Info("wish rescheduled", "wish_id", id, "scheduled_at", at.UTC().Format(time.RFC3339))
	return w, nil
}

// SendNow delivers a draft wish immediately through the notifier and marks
// it sent. On a delivery error the wish stays a draft.
func (s *Service) SendNow(ctx context.Context, id string) (*domain.Wish, error) {
	if s.notifier == nil {
		return nil, ErrNoNotifier
	}
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.Status != domain.WishDraft {
		return nil, fmt.Errorf("send wish %s now from %s: %w", id, w.Status, ErrInvalidTransition)
	}
	if err := s.notifier.Send(ctx, w); err != nil {
		return nil, fmt.Errorf("send wish %s: %w", id, err)
	}
	return s.MarkSent(ctx, id, s.now())
}

// toScheduled enqueues w for at and only then moves it from the given status
// to scheduled. A wish never becomes scheduled without a dispatch job; a job
// whose wish lost the status race is discarded by the dispatcher.
func (s *Service) toScheduled(ctx context.Context, w *domain.Wish, from domain.WishStatus, at, now time.Time) error {
	if s.enqueuer != nil {
		if err := s.enqueuer.Enqueue(ctx, w.ID, at); err != nil {
			return fmt.Errorf("enqueue: %w", err)
		}
	}
	t := domain.WishTransition{WishID: w.ID, From: from, To: domain.WishScheduled, ScheduledAt: &at, At: now}
	if err := s.repo.Transition(ctx, t); err != nil {
		return err
	}
	applyTransition(w, t)
	return nil
}

// applyTransition mirrors a successful transition onto the in-memory copy.
func applyTransition(w *domain.Wish, t domain.WishTransition) {
	w.Status = t.To
	w.UpdatedAt = t.At
	if t.ScheduledAt != nil {
		w.ScheduledAt = t.ScheduledAt
	}
	switch t.To {
	case domain.WishSent:
		w.SentAt = t.SentAt
		w.FailureReason = ""
	case domain.WishFailed:
		w.FailureReason = t.FailureReason
	case domain.WishScheduled:
		w.FailureReason = ""
	}
}
