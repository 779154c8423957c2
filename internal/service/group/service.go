package group

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
	"github.com/akashvim3/Birthday-Wishes-System/internal/pkg/logger"
)

// Service implements group wish business logic.
type Service struct {
	repo     Repository
	codes    *CodeGenerator
	now      func() time.Time
	validate *validator.Validate
	log      *logger.Logger
}

// NewService creates a group service. A nil codes uses a crypto-backed
// generator checked against repo.
func NewService(repo Repository, codes *CodeGenerator) *Service {
	if codes == nil {
		codes = NewCodeGenerator(repo, nil, DefaultMaxCodeAttempts)
	}
	return &Service{
		repo:     repo,
		codes:    codes,
		now:      time.Now,
		validate: validator.New(),
		log:      logger.With("component", "group"),
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// CreateInput holds the fields for a new group wish.
type CreateInput struct {
	Title           string    `json:"title" validate:"required,max=200"`
	Description     string    `json:"description"`
	RecipientID     string    `json:"recipient_id" validate:"required"`
	CreatorID       string    `json:"creator_id" validate:"required"`
	Deadline        time.Time `json:"deadline" validate:"required"`
	ScheduledSendAt time.Time `json:"scheduled_send_at" validate:"required"`
	AllowAnonymous  bool      `json:"allow_anonymous"`
}

// Create validates and persists a new active group wish with a freshly
// issued invitation code. The insert itself is the code claim, so two
// concurrent creators can never end up with the same code.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.GroupWish, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, domain.Validationf("%v", err)
	}
	now := s.now()
	if !in.Deadline.After(now) {
		return nil, domain.Validationf("deadline must be in the future")
	}
	if in.ScheduledSendAt.Before(in.Deadline) {
		return nil, domain.Validationf("scheduled send time must not precede the deadline")
	}

	g := &domain.GroupWish{
		ID:              uuid.New().String(),
		Title:           in.Title,
		Description:     in.Description,
		RecipientID:     in.RecipientID,
		CreatorID:       in.CreatorID,
		Deadline:        in.Deadline,
		ScheduledSendAt: in.ScheduledSendAt,
		AllowAnonymous:  in.AllowAnonymous,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	_, err := s.codes.GenerateWith(ctx, func(ctx context.Context, code string) error {
		g.InvitationCode = code
		return s.repo.Create(ctx, g)
	})
	if err != nil {
		return nil, fmt.Errorf("create group wish: %w", err)
	}
	s.log.Info("group wish created", "group_id", g.ID)
	return g, nil
}

// Get returns a group wish.
func (s *Service) Get(ctx context.Context, id string) (*domain.GroupWish, error) {
	return s.repo.Get(ctx, id)
}

// JoinResult is the outcome of JoinByCode.
type JoinResult struct {
	Group *domain.GroupWish `json:"group"`
	// AlreadyContributed is true when the user has an entry already; the
	// join is then a read-only no-op.
	AlreadyContributed bool `json:"already_contributed"`
}

// JoinByCode resolves an invitation code to an active group wish the user
// may contribute to. Unknown codes and inactive groups are not found; the
// recipient is rejected.
func (s *Service) JoinByCode(ctx context.Context, code, userID string) (*JoinResult, error) {
	if !ValidCode(code) {
		return nil, domain.NotFoundf("invitation code %q", code)
	}
	g, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !g.IsActive {
		return nil, domain.NotFoundf("invitation code %q", code)
	}
	if userID == g.RecipientID {
		return nil, ErrSelfContribution
	}
	done, err := s.repo.HasContribution(ctx, g.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("check contribution: %w", err)
	}
	return &JoinResult{Group: g, AlreadyContributed: done}, nil
}
