package group_test

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
	"github.com/akashvim3/Birthday-Wishes-System/internal/service/group"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo is an in-memory Repository with unique invitation codes and
// unique (group, contributor) pairs.
type memRepo struct {
	mu            sync.Mutex
	groups        map[string]domain.GroupWish
	codes         map[string]string
	contributions map[string]map[string]domain.Contribution
	order         map[string][]string
	existsCalls   int
}

func newMemRepo() *memRepo {
	return &memRepo{
		groups:        make(map[string]domain.GroupWish),
		codes:         make(map[string]string),
		contributions: make(map[string]map[string]domain.Contribution),
		order:         make(map[string][]string),
	}
}

func (r *memRepo) Get(_ context.Context, id string) (*domain.GroupWish, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, domain.NotFoundf("group wish %s", id)
	}
	return &g, nil
}

func (r *memRepo) GetByCode(ctx context.Context, code string) (*domain.GroupWish, error) {
	r.mu.Lock()
	id, ok := r.codes[code]
	r.mu.Unlock()
	if !ok {
		return nil, domain.NotFoundf("invitation code %s", code)
	}
	return r.Get(ctx, id)
}

func (r *memRepo) CodeExists(_ context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.existsCalls++
	_, ok := r.codes[code]
	return ok, nil
}

func (r *memRepo) Create(_ context.Context, g *domain.GroupWish) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.codes[g.InvitationCode]; taken {
		return domain.Conflictf("invitation code %s taken", g.InvitationCode)
	}
	r.codes[g.InvitationCode] = g.ID
	r.groups[g.ID] = *g
	return nil
}

func (r *memRepo) AddContribution(_ context.Context, c *domain.Contribution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	byContributor := r.contributions[c.GroupID]
	if byContributor == nil {
		byContributor = make(map[string]domain.Contribution)
		r.contributions[c.GroupID] = byContributor
	}
	if _, dup := byContributor[c.ContributorID]; dup {
		return domain.Conflictf("duplicate contribution")
	}
	byContributor[c.ContributorID] = *c
	r.order[c.GroupID] = append(r.order[c.GroupID], c.ContributorID)
	return nil
}

func (r *memRepo) HasContribution(_ context.Context, groupID, contributorID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.contributions[groupID][contributorID]
	return ok, nil
}

func (r *memRepo) ListContributions(_ context.Context, groupID string) ([]domain.Contribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Contribution
	for _, id := range r.order[groupID] {
		out = append(out, r.contributions[groupID][id])
	}
	return out, nil
}

// seqSource replays a fixed sequence of draws.
type seqSource struct {
	mu   sync.Mutex
	vals []int
	i    int
}

func (s *seqSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.vals[s.i%len(s.vals)] % n
	s.i++
	return v
}

// codeOf returns draws that produce a 12-char code made of ch.
func codeOf(ch byte) []int {
	idx := 0
	for i := 0; i < len(domain.InvitationAlphabet); i++ {
		if domain.InvitationAlphabet[i] == ch {
			idx = i
		}
	}
	out := make([]int, domain.InvitationCodeLength)
	for i := range out {
		out[i] = idx
	}
	return out
}

var codePattern = regexp.MustCompile(`^[A-Z0-9]{12}$`)

var now = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func newGroup(t *testing.T, repo *memRepo, id string, active, anon bool) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &domain.GroupWish{
		ID: id, Title: "Party", RecipientID: "birthday-kid", CreatorID: "organiser",
		InvitationCode: "CODE" + id, IsActive: active, AllowAnonymous: anon,
	}))
}

func TestCodeGenerator_ShapeAndCharset(t *testing.T) {
	gen := group.NewCodeGenerator(nil, nil, 0)
	for i := 0; i < 200; i++ {
		code, err := gen.Generate(context.Background())
		require.NoError(t, err)
		assert.Regexp(t, codePattern, code)
		assert.True(t, group.ValidCode(code))
	}
	assert.False(t, group.ValidCode("abc"))
	assert.False(t, group.ValidCode("abcdefghijkl"))
}

func TestCodeGenerator_RedrawsOnPreCheckCollision(t *testing.T) {
	repo := newMemRepo()
	repo.codes["AAAAAAAAAAAA"] = "existing"
	src := &seqSource{vals: append(codeOf('A'), codeOf('B')...)}

	code, err := group.NewCodeGenerator(repo, src, 5).Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "BBBBBBBBBBBB", code)
	assert.Equal(t, 2, repo.existsCalls)
}

func TestCodeGenerator_ClaimConflictIsRetried(t *testing.T) {
	src := &seqSource{vals: append(codeOf('C'), codeOf('D')...)}
	var claimed []string
	claim := func(_ context.Context, code string) error {
		claimed = append(claimed, code)
		if code == "CCCCCCCCCCCC" {
			return domain.Conflictf("unique violation")
		}
		return nil
	}

	code, err := group.NewCodeGenerator(nil, src, 5).GenerateWith(context.Background(), claim)
	require.NoError(t, err)
	assert.Equal(t, "DDDDDDDDDDDD", code)
	assert.Equal(t, []string{"CCCCCCCCCCCC", "DDDDDDDDDDDD"}, claimed)
}

func TestCodeGenerator_Exhausted(t *testing.T) {
	repo := newMemRepo()
	repo.codes["ZZZZZZZZZZZZ"] = "existing"
	src := &seqSource{vals: codeOf('Z')}

	_, err := group.NewCodeGenerator(repo, src, 0).Generate(context.Background())
	assert.ErrorIs(t, err, group.ErrCodesExhausted)
	assert.ErrorIs(t, err, domain.ErrResourceExhausted)
	assert.Equal(t, group.DefaultMaxCodeAttempts, repo.existsCalls)
}

func TestCreate_ConcurrentCodesAreDistinct(t *testing.T) {
	repo := newMemRepo()
	svc := group.NewService(repo, nil)
	svc.SetClock(func() time.Time { return now })

	const n = 64
	var wg sync.WaitGroup
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := svc.Create(context.Background(), group.CreateInput{
				Title: "Surprise", RecipientID: "r", CreatorID: "c",
				Deadline: now.Add(24 * time.Hour), ScheduledSendAt: now.Add(48 * time.Hour),
			})
			if assert.NoError(t, err) {
				results <- g.InvitationCode
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for code := range results {
		assert.Regexp(t, codePattern, code)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
	assert.Len(t, seen, n)
}

func TestCreate_CollidingDrawsStillUnique(t *testing.T) {
	repo := newMemRepo()
	// Every creator draws E first; all but one must move on to F, G, ...
	src := &seqSource{vals: append(append(codeOf('E'), codeOf('E')...), codeOf('F')...)}
	svc := group.NewService(repo, group.NewCodeGenerator(nil, src, 5))
	svc.SetClock(func() time.Time { return now })

	in := group.CreateInput{Title: "t", RecipientID: "r", CreatorID: "c", Deadline: now.Add(time.Hour), ScheduledSendAt: now.Add(time.Hour)}
	a, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	b, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "EEEEEEEEEEEE", a.InvitationCode)
	assert.Equal(t, "FFFFFFFFFFFF", b.InvitationCode)
}

func TestCreate_Validation(t *testing.T) {
	svc := group.NewService(newMemRepo(), nil)
	svc.SetClock(func() time.Time { return now })
	ctx := context.Background()

	_, err := svc.Create(ctx, group.CreateInput{RecipientID: "r", CreatorID: "c", Deadline: now.Add(time.Hour), ScheduledSendAt: now.Add(time.Hour)})
	assert.ErrorIs(t, err, domain.ErrValidation, "missing title")

	_, err = svc.Create(ctx, group.CreateInput{Title: "t", RecipientID: "r", CreatorID: "c", Deadline: now.Add(-time.Hour), ScheduledSendAt: now.Add(time.Hour)})
	assert.ErrorIs(t, err, domain.ErrValidation, "past deadline")

	_, err = svc.Create(ctx, group.CreateInput{Title: "t", RecipientID: "r", CreatorID: "c", Deadline: now.Add(2 * time.Hour), ScheduledSendAt: now.Add(time.Hour)})
	assert.ErrorIs(t, err, domain.ErrValidation, "send before deadline")
}

func TestAddContribution(t *testing.T) {
	repo := newMemRepo()
	newGroup(t, repo, "g1", true, true)
	newGroup(t, repo, "closed", false, false)
	newGroup(t, repo, "named", true, false)
	svc := group.NewService(repo, nil)
	svc.SetClock(func() time.Time { return now })
	ctx := context.Background()

	c, err := svc.AddContribution(ctx, "g1", "friend", "Have a great one!", true)
	require.NoError(t, err)
	assert.Equal(t, "friend", c.ContributorID, "identity kept for anonymous entries")
	assert.Equal(t, "anonymous", c.DisplayContributor())
	assert.Equal(t, now, c.CreatedAt)

	_, err = svc.AddContribution(ctx, "g1", "friend", "Again!", false)
	assert.ErrorIs(t, err, group.ErrDuplicateContribution)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = svc.AddContribution(ctx, "g1", "birthday-kid", "me too", false)
	assert.ErrorIs(t, err, group.ErrSelfContribution)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.AddContribution(ctx, "missing", "friend", "hi", false)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.AddContribution(ctx, "closed", "friend", "hi", false)
	assert.ErrorIs(t, err, group.ErrGroupClosed)

	_, err = svc.AddContribution(ctx, "named", "friend", "hi", true)
	assert.ErrorIs(t, err, group.ErrAnonymousNotAllowed)

	_, err = svc.AddContribution(ctx, "g1", "other", "  ", false)
	assert.ErrorIs(t, err, domain.ErrValidation)

	list, err := svc.Contributions(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Have a great one!", list[0].Content)
}

func TestAddContribution_ConcurrentSameContributor(t *testing.T) {
	repo := newMemRepo()
	newGroup(t, repo, "g1", true, false)
	svc := group.NewService(repo, nil)

	const n = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, conflicts := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddContribution(context.Background(), "g1", "friend", "hi", false)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if assert.ErrorIs(t, err, domain.ErrConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
}

func TestJoinByCode(t *testing.T) {
	repo := newMemRepo()
	svc := group.NewService(repo, nil)
	svc.SetClock(func() time.Time { return now })
	ctx := context.Background()

	g, err := svc.Create(ctx, group.CreateInput{Title: "t", RecipientID: "kid", CreatorID: "c", Deadline: now.Add(time.Hour), ScheduledSendAt: now.Add(time.Hour)})
	require.NoError(t, err)

	res, err := svc.JoinByCode(ctx, g.InvitationCode, "friend")
	require.NoError(t, err)
	assert.Equal(t, g.ID, res.Group.ID)
	assert.False(t, res.AlreadyContributed)

	_, err = svc.AddContribution(ctx, g.ID, "friend", "hi", false)
	require.NoError(t, err)
	res, err = svc.JoinByCode(ctx, g.InvitationCode, "friend")
	require.NoError(t, err)
	assert.True(t, res.AlreadyContributed)

	_, err = svc.JoinByCode(ctx, g.InvitationCode, "kid")
	assert.ErrorIs(t, err, group.ErrSelfContribution)

	_, err = svc.JoinByCode(ctx, "NOPE", "friend")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.JoinByCode(ctx, "ZZZZZZZZZZZZ", "friend")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
