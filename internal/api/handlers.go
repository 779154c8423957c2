package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/akashvim3/Birthday-Wishes-System/internal/assistant"
	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
	"github.com/akashvim3/Birthday-Wishes-System/internal/pkg/httputil"
	"github.com/akashvim3/Birthday-Wishes-System/internal/recurrence"
	"github.com/akashvim3/Birthday-Wishes-System/internal/service/birthday"
	"github.com/akashvim3/Birthday-Wishes-System/internal/service/group"
	"github.com/akashvim3/Birthday-Wishes-System/internal/service/jobs"
	"github.com/akashvim3/Birthday-Wishes-System/internal/service/wish"
)

// DefaultUpcomingDays is the window used when ?days is absent.
const DefaultUpcomingDays = 7

// MaxUpcomingDays caps the upcoming window at one full year.
const MaxUpcomingDays = 366

// Birthdays answers birthday queries.
type Birthdays interface {
	CollectUpcoming(ctx context.Context, days int, today recurrence.Date) ([]birthday.Upcoming, error)
	OnDate(ctx context.Context, date recurrence.Date) ([]domain.Profile, error)
	ThisMonth(ctx context.Context, today recurrence.Date) ([]domain.Profile, error)
	ByAgeRange(ctx context.Context, minAge, maxAge int, today recurrence.Date) ([]domain.Profile, error)
}

// Wishes drives the wish lifecycle.
type Wishes interface {
	Create(ctx context.Context, in wish.CreateInput) (*domain.Wish, error)
	Get(ctx context.Context, id string) (*domain.Wish, error)
	Schedule(ctx context.Context, id string, at time.Time) (*domain.Wish, error)
	Reschedule(ctx context.Context, id string, at time.Time) (*domain.Wish, error)
	SendNow(ctx context.Context, id string) (*domain.Wish, error)
}

// Groups manages group wishes and their contributions.
type Groups interface {
	Create(ctx context.Context, in group.CreateInput) (*domain.GroupWish, error)
	JoinByCode(ctx context.Context, code, userID string) (*group.JoinResult, error)
	AddContribution(ctx context.Context, groupID, contributorID, content string, anonymous bool) (*domain.Contribution, error)
	Contributions(ctx context.Context, groupID string) ([]domain.Contribution, error)
}

// JobTrigger runs a periodic job on demand.
type JobTrigger interface {
	Trigger(ctx context.Context, name string, now time.Time) (jobs.Result, error)
}

// Dispatcher delivers due wishes on demand.
type Dispatcher interface {
	DispatchDue(ctx context.Context, now time.Time) (domain.Report, error)
	Pending(ctx context.Context) (int, error)
}

// Intents lists the notification intents recorded for a date.
type Intents interface {
	ListOn(ctx context.Context, occursOn string) ([]domain.Intent, error)
}

// Chatter answers assistant chat messages.
type Chatter interface {
	Reply(ctx context.Context, message string) string
}

// Deps groups the services behind the HTTP handlers. Any of them may be nil;
// the matching routes then answer 503.
type Deps struct {
	Birthdays  Birthdays
	Wishes     Wishes
	Groups     Groups
	Jobs       JobTrigger
	Dispatcher Dispatcher
	Intents    Intents
	Assistant  Chatter
	// Location is the zone "today" is computed in. Nil means UTC.
	Location *time.Location
}

// Handlers serves the v1 API.
type Handlers struct {
	Deps
	now func() time.Time
}

// NewHandlers creates the HTTP handlers.
func NewHandlers(d Deps) *Handlers {
	if d.Location == nil {
		d.Location = time.UTC
	}
	return &Handlers{Deps: d, now: time.Now}
}

// SetClock replaces the time source.
func (h *Handlers) SetClock(now func() time.Time) { h.now = now }

func unavailable(w http.ResponseWriter, what string) {
	httputil.Error(w, http.StatusServiceUnavailable, "unavailable", what+" is not configured")
}

// ── Birthdays ────────────────────────────────────────────────────────────────

// Upcoming lists birthdays within ?days (default 7) of today.
//
//	GET /v1/birthdays/upcoming?days=N
func (h *Handlers) Upcoming(w http.ResponseWriter, r *http.Request) {
	if h.Birthdays == nil {
		unavailable(w, "birthdays")
		return
	}
	days := DefaultUpcomingDays
	if s := r.URL.Query().Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n > MaxUpcomingDays {
			httputil.BadRequest(w, "days must be an integer between 0 and 366")
			return
		}
		days = n
	}
	today := recurrence.TodayIn(h.now(), h.Location)
	list, err := h.Birthdays.CollectUpcoming(r.Context(), days, today)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"today":     today.String(),
		"days":      days,
		"birthdays": list,
		"count":     len(list),
	})
}

// BirthdaysOn lists profiles whose birthday falls on a date.
//
//	GET /v1/birthdays/on/{date}
func (h *Handlers) BirthdaysOn(w http.ResponseWriter, r *http.Request) {
	if h.Birthdays == nil {
		unavailable(w, "birthdays")
		return
	}
	date, err := recurrence.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		httputil.BadRequest(w, "date must be YYYY-MM-DD")
		return
	}
	list, err := h.Birthdays.OnDate(r.Context(), date)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"date": date.String(), "profiles": list, "count": len(list)})
}

// BirthdaysThisMonth lists profiles born in the current month, ordered by day.
//
//	GET /v1/birthdays/this-month
func (h *Handlers) BirthdaysThisMonth(w http.ResponseWriter, r *http.Request) {
	if h.Birthdays == nil {
		unavailable(w, "birthdays")
		return
	}
	today := recurrence.TodayIn(h.now(), h.Location)
	list, err := h.Birthdays.ThisMonth(r.Context(), today)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"month": today.Month.String(), "profiles": list, "count": len(list)})
}

// BirthdaysByAge lists profiles whose age today is within [min, max].
//
//	GET /v1/birthdays/by-age?min=N&max=M
func (h *Handlers) BirthdaysByAge(w http.ResponseWriter, r *http.Request) {
	if h.Birthdays == nil {
		unavailable(w, "birthdays")
		return
	}
	q := r.URL.Query()
	minAge, err1 := strconv.Atoi(q.Get("min"))
	maxAge, err2 := strconv.Atoi(q.Get("max"))
	if err1 != nil || err2 != nil {
		httputil.BadRequest(w, "min and max must be integers")
		return
	}
	today := recurrence.TodayIn(h.now(), h.Location)
	list, err := h.Birthdays.ByAgeRange(r.Context(), minAge, maxAge, today)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"min": minAge, "max": maxAge, "profiles": list, "count": len(list)})
}

// ListIntents returns the notification intents recorded for a date.
//
//	GET /v1/intents/{date}
func (h *Handlers) ListIntents(w http.ResponseWriter, r *http.Request) {
	if h.Intents == nil {
		unavailable(w, "intents")
		return
	}
	date, err := recurrence.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		httputil.BadRequest(w, "date must be YYYY-MM-DD")
		return
	}
	list, err := h.Intents.ListOn(r.Context(), date.String())
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"date": date.String(), "intents": list, "count": len(list)})
}

// ── Jobs and dispatch ────────────────────────────────────────────────────────

type jobResponse struct {
	jobs.Result
	Errors []string `json:"errors,omitempty"`
}

// RunJob triggers a periodic job for the current period.
//
//	POST /v1/jobs/{name}/run
func (h *Handlers) RunJob(w http.ResponseWriter, r *http.Request) {
	if h.Jobs == nil {
		unavailable(w, "jobs")
		return
	}
	res, err := h.Jobs.Trigger(r.Context(), chi.URLParam(r, "name"), h.now())
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	resp := jobResponse{Result: res, Errors: res.Report.ErrorStrings()}
	if res.Err != nil {
		resp.Errors = append(resp.Errors, res.Err.Error())
	}
	if res.Outcome == jobs.OutcomeFailed {
		httputil.JSON(w, http.StatusInternalServerError, resp)
		return
	}
	httputil.OK(w, resp)
}

// Dispatch delivers every wish due now and reports how many jobs remain
// queued.
//
//	POST /v1/dispatch
func (h *Handlers) Dispatch(w http.ResponseWriter, r *http.Request) {
	if h.Dispatcher == nil {
		unavailable(w, "dispatcher")
		return
	}
	rep, err := h.Dispatcher.DispatchDue(r.Context(), h.now())
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	pending, err := h.Dispatcher.Pending(r.Context())
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"processed": rep.Processed,
		"failed":    rep.Failed,
		"skipped":   rep.Skipped,
		"pending":   pending,
		"errors":    rep.ErrorStrings(),
	})
}

// ── Wishes ───────────────────────────────────────────────────────────────────

// CreateWish stores a new wish, scheduling it when scheduled_at is given.
//
//	POST /v1/wishes
func (h *Handlers) CreateWish(w http.ResponseWriter, r *http.Request) {
	if h.Wishes == nil {
		unavailable(w, "wishes")
		return
	}
	var in wish.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	created, err := h.Wishes.Create(r.Context(), in)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Created(w, created)
}

// GetWish returns one wish.
//
//	GET /v1/wishes/{id}
func (h *Handlers) GetWish(w http.ResponseWriter, r *http.Request) {
	if h.Wishes == nil {
		unavailable(w, "wishes")
		return
	}
	found, err := h.Wishes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, found)
}

type scheduleRequest struct {
	At time.Time `json:"at"`
}

func (h *Handlers) decodeAt(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	var req scheduleRequest
	if !httputil.Decode(w, r, &req) {
		return time.Time{}, false
	}
	if req.At.IsZero() {
		httputil.BadRequest(w, "at is required")
		return time.Time{}, false
	}
	return req.At, true
}

// ScheduleWish moves a draft wish to scheduled.
//
//	POST /v1/wishes/{id}/schedule  {"at": RFC3339}
func (h *Handlers) ScheduleWish(w http.ResponseWriter, r *http.Request) {
	if h.Wishes == nil {
		unavailable(w, "wishes")
		return
	}
	at, ok := h.decodeAt(w, r)
	if !ok {
		return
	}
	updated, err := h.Wishes.Schedule(r.Context(), chi.URLParam(r, "id"), at)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, updated)
}

// RescheduleWish puts a failed wish back on the schedule.
//
//	POST /v1/wishes/{id}/reschedule  {"at": RFC3339}
func (h *Handlers) RescheduleWish(w http.ResponseWriter, r *http.Request) {
	if h.Wishes == nil {
		unavailable(w, "wishes")
		return
	}
	at, ok := h.decodeAt(w, r)
	if !ok {
		return
	}
	updated, err := h.Wishes.Reschedule(r.Context(), chi.URLParam(r, "id"), at)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, updated)
}

// SendWish delivers a draft wish right away and marks it sent.
//
//	POST /v1/wishes/{id}/send
func (h *Handlers) SendWish(w http.ResponseWriter, r *http.Request) {
	if h.Wishes == nil {
		unavailable(w, "wishes")
		return
	}
	updated, err := h.Wishes.SendNow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, updated)
}

// ── Groups ───────────────────────────────────────────────────────────────────

// CreateGroup creates a group wish with a fresh invitation code.
//
//	POST /v1/groups
func (h *Handlers) CreateGroup(w http.ResponseWriter, r *http.Request) {
	if h.Groups == nil {
		unavailable(w, "groups")
		return
	}
	var in group.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	g, err := h.Groups.Create(r.Context(), in)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Created(w, g)
}

type joinRequest struct {
	Code   string `json:"code"`
	UserID string `json:"user_id"`
}

// JoinGroup resolves an invitation code for a user.
//
//	POST /v1/groups/join
func (h *Handlers) JoinGroup(w http.ResponseWriter, r *http.Request) {
	if h.Groups == nil {
		unavailable(w, "groups")
		return
	}
	var req joinRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Code == "" || req.UserID == "" {
		httputil.BadRequest(w, "code and user_id are required")
		return
	}
	res, err := h.Groups.JoinByCode(r.Context(), req.Code, req.UserID)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, res)
}

type contributionRequest struct {
	ContributorID string `json:"contributor_id"`
	Content       string `json:"content"`
	Anonymous     bool   `json:"anonymous"`
}

// AddContribution adds the caller's entry to a group wish.
//
//	POST /v1/groups/{id}/contributions
func (h *Handlers) AddContribution(w http.ResponseWriter, r *http.Request) {
	if h.Groups == nil {
		unavailable(w, "groups")
		return
	}
	var req contributionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	c, err := h.Groups.AddContribution(r.Context(), chi.URLParam(r, "id"), req.ContributorID, req.Content, req.Anonymous)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Created(w, c)
}

type contributionView struct {
	ID          string    `json:"id"`
	Contributor string    `json:"contributor"`
	Content     string    `json:"content"`
	MediaRef    string    `json:"media_ref,omitempty"`
	Anonymous   bool      `json:"anonymous"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListContributions lists a group's entries. Anonymous contributors are
// masked.
//
//	GET /v1/groups/{id}/contributions
func (h *Handlers) ListContributions(w http.ResponseWriter, r *http.Request) {
	if h.Groups == nil {
		unavailable(w, "groups")
		return
	}
	list, err := h.Groups.Contributions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	out := make([]contributionView, 0, len(list))
	for i := range list {
		c := &list[i]
		out = append(out, contributionView{
			ID:          c.ID,
			Contributor: c.DisplayContributor(),
			Content:     c.Content,
			MediaRef:    c.MediaRef,
			Anonymous:   c.Anonymous,
			CreatedAt:   c.CreatedAt,
		})
	}
	httputil.OK(w, map[string]any{"contributions": out, "count": len(out)})
}

// ── Assistant ────────────────────────────────────────────────────────────────

type chatRequest struct {
	Message string `json:"message"`
}

// Chat answers a message from the wish-writing assistant. It always returns
// a reply; model failures fall back to a canned answer.
//
//	POST /v1/assistant/chat
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	reply := assistant.Fallback
	if h.Assistant != nil {
		reply = h.Assistant.Reply(r.Context(), req.Message)
	}
	httputil.OK(w, map[string]string{"reply": reply})
}

// Suggestions returns sample wishes for ?category.
//
//	GET /v1/assistant/suggestions?category=funny
func (h *Handlers) Suggestions(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		category = assistant.CategoryHeartfelt
	}
	httputil.OK(w, map[string]any{"category": category, "suggestions": assistant.Suggestions(category)})
}

// GiftIdeas recommends gifts from the catalog.
//
//	GET /v1/assistant/gifts?age=N&gender=G&interests=a,b
func (h *Handlers) GiftIdeas(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var c assistant.GiftCriteria
	if s := q.Get("age"); s != "" {
		age, err := strconv.Atoi(s)
		if err != nil || age < 0 {
			httputil.BadRequest(w, "age must be a non-negative integer")
			return
		}
		c.Age = age
	}
	c.Gender = q.Get("gender")
	for _, in := range strings.Split(q.Get("interests"), ",") {
		if in = strings.TrimSpace(in); in != "" {
			c.Interests = append(c.Interests, in)
		}
	}
	gifts := assistant.GiftIdeas(c)
	httputil.OK(w, map[string]any{"gifts": gifts, "count": len(gifts)})
}
