package birthday

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
	"github.com/akashvim3/Birthday-Wishes-System/internal/recurrence"
)

// Upcoming is one entry of an upcoming-birthdays window.
type Upcoming struct {
	Profile    domain.Profile  `json:"profile"`
	Occurrence recurrence.Date `json:"-"`
	OccursOn   string          `json:"occurs_on"`
	DaysUntil  int             `json:"days_until"`
	// TurningAge is the age reached on Occurrence, zero when the birth year
	// is unknown.
	TurningAge int `json:"turning_age,omitempty"`
}

// Service implements the birthday queries.
type Service struct {
	repo ProfileRepository
}

// NewService creates a query service backed by the given repository.
func NewService(repo ProfileRepository) *Service {
	return &Service{repo: repo}
}

// UpcomingWithin returns a lazy sequence of profiles whose next birthday is
// at most days away from today, ordered by distance and then user id.
//
// Nothing is read until the sequence is ranged over, and each range re-reads
// the store, so a held sequence always reflects current data. A store error
// is yielded once as the final element. days < 0 yields nothing.
func (s *Service) UpcomingWithin(ctx context.Context, days int, today recurrence.Date) iter.Seq2[Upcoming, error] {
	return func(yield func(Upcoming, error) bool) {
		if days < 0 {
			return
		}
		profiles, err := s.repo.ListWithBirthdays(ctx)
		if err != nil {
			yield(Upcoming{}, fmt.Errorf("list profiles with birthdays: %w", err))
			return
		}

		window := make([]Upcoming, 0, len(profiles))
		for _, p := range profiles {
			if !p.HasBirthday() {
				continue
			}
			b := p.Birthday
			next := recurrence.NextOccurrence(b.Month, b.Day, today)
			delta := recurrence.DaysBetween(today, next)
			if delta > days {
				continue
			}
			u := Upcoming{Profile: p, Occurrence: next, OccursOn: next.String(), DaysUntil: delta}
			if b.HasYear() {
				u.TurningAge = recurrence.Age(b.Month, b.Day, b.Year, next)
			}
			window = append(window, u)
		}

		slices.SortFunc(window, func(a, b Upcoming) int {
			if c := cmp.Compare(a.DaysUntil, b.DaysUntil); c != 0 {
				return c
			}
			return cmp.Compare(a.Profile.UserID, b.Profile.UserID)
		})

		for _, u := range window {
			if ctx.Err() != nil {
				yield(Upcoming{}, ctx.Err())
				return
			}
			if !yield(u, nil) {
				return
			}
		}
	}
}

// CollectUpcoming drains UpcomingWithin into a slice.
func (s *Service) CollectUpcoming(ctx context.Context, days int, today recurrence.Date) ([]Upcoming, error) {
	var out []Upcoming
	for u, err := range s.UpcomingWithin(ctx, days, today) {
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// OnDate returns the profiles whose birthday occurs on date, ordered by user
// id. On Feb 28 of a non-leap year that includes Feb 29 birthdays.
func (s *Service) OnDate(ctx context.Context, date recurrence.Date) ([]domain.Profile, error) {
	days := []int{date.Day}
	if date.Month == time.February && date.Day == 28 && !recurrence.IsLeap(date.Year) {
		days = append(days, 29)
	}
	profiles, err := s.repo.ListByBirthday(ctx, date.Month, days...)
	if err != nil {
		return nil, fmt.Errorf("list profiles born %s: %w", date, err)
	}

	out := make([]domain.Profile, 0, len(profiles))
	for _, p := range profiles {
		if p.HasBirthday() && recurrence.OccursOn(p.Birthday.Month, p.Birthday.Day, date) {
			out = append(out, p)
		}
	}
	sortByUserID(out)
	return out, nil
}

// ThisMonth returns profiles born in today's month ordered by day, then
// user id.
func (s *Service) ThisMonth(ctx context.Context, today recurrence.Date) ([]domain.Profile, error) {
	profiles, err := s.repo.ListByBirthMonth(ctx, today.Month)
	if err != nil {
		return nil, fmt.Errorf("list profiles born in %s: %w", today.Month, err)
	}
	out := make([]domain.Profile, 0, len(profiles))
	for _, p := range profiles {
		if p.HasBirthday() {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Profile) int {
		if c := cmp.Compare(a.Birthday.Day, b.Birthday.Day); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	return out, nil
}

// ByAgeRange returns profiles with a known birth year whose age as of today
// lies in [minAge, maxAge], ordered by user id.
func (s *Service) ByAgeRange(ctx context.Context, minAge, maxAge int, today recurrence.Date) ([]domain.Profile, error) {
	if minAge < 0 || maxAge < minAge {
		return nil, domain.Validationf("invalid age range [%d, %d]", minAge, maxAge)
	}
	profiles, err := s.repo.ListWithBirthdays(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles with birthdays: %w", err)
	}
	var out []domain.Profile
	for _, p := range profiles {
		if !p.HasBirthday() || !p.Birthday.HasYear() {
			continue
		}
		age := recurrence.Age(p.Birthday.Month, p.Birthday.Day, p.Birthday.Year, today)
		if age >= minAge && age <= maxAge {
			out = append(out, p)
		}
	}
	sortByUserID(out)
	return out, nil
}

func sortByUserID(ps []domain.Profile) {
	slices.SortFunc(ps, func(a, b domain.Profile) int { return cmp.Compare(a.UserID, b.UserID) })
}
