package group

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
)

// AddContribution records contributorID's entry in a group wish. The
// recipient can never contribute and each contributor contributes at most
// once. Anonymous only hides the contributor on presentation.
func (s *Service) AddContribution(ctx context.Context, groupID, contributorID, content string, anonymous bool) (*domain.Contribution, error) {
	if strings.TrimSpace(contributorID) == "" {
		return nil, domain.Validationf("contributor is required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, domain.Validationf("contribution content is required")
	}

	g, err := s.repo.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if contributorID == g.RecipientID {
		return nil, ErrSelfContribution
	}
	if !g.IsActive {
		return nil, ErrGroupClosed
	}
	if anonymous && !g.AllowAnonymous {
		return nil, ErrAnonymousNotAllowed
	}

	c := &domain.Contribution{
		ID:            uuid.New().String(),
		GroupID:       groupID,
		ContributorID: contributorID,
		Content:       content,
		Anonymous:     anonymous,
		CreatedAt:     s.now(),
	}
	if err := s.repo.AddContribution(ctx, c); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("group %s contributor %s: %w", groupID, contributorID, ErrDuplicateContribution)
		}
		return nil, fmt.Errorf("add contribution: %w", err)
	}
	s.log.Info("contribution added", "group_id", groupID, "anonymous", anonymous)
	return c, nil
}

// Contributions returns a group's contributions oldest first.
func (s *Service) Contributions(ctx context.Context, groupID string) ([]domain.Contribution, error) {
	if _, err := s.repo.Get(ctx, groupID); err != nil {
		return nil, err
	}
	return s.repo.ListContributions(ctx, groupID)
}
