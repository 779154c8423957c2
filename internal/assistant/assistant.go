// Package assistant answers chat messages about birthday wishes. Known
// keywords get canned replies; anything else goes to a text responder, and
// any responder failure falls back to a canned reply.
package assistant

import (
	"context"
	"strings"
	"time"

	"github.com/akashvim3/Birthday-Wishes-System/internal/pkg/logger"
)

// Responder produces free-form text for a prompt.
type Responder interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

// Fallback is returned when no keyword matches and the responder is
// unavailable.
const Fallback = "That's interesting! I'm here to help with birthday wishes and gift suggestions. What would you like to know more about?"

// DefaultTimeout bounds one responder call.
const DefaultTimeout = 15 * time.Second

// keywords are checked in order; the first contained keyword wins.
var keywords = []struct {
	word  string
	reply string
}{
	{"hello", "Hello! 👋 How can I help you create the perfect birthday wish today?"},
	{"help", "I can help you with: • Creating personalized birthday wishes • Suggesting gift ideas • Scheduling birthday reminders • Group wish coordination. What would you like to do?"},
	{"gift", "I'd love to help you find the perfect gift! What's the person's age range and interests?"},
	{"template", "We have many birthday wish templates! Would you like something funny, heartfelt, professional, or creative?"},
}

// Assistant answers chat messages.
type Assistant struct {
	responder Responder
	timeout   time.Duration
	log       *logger.Logger
}

// New returns an assistant. responder may be nil for canned replies only.
func New(responder Responder) *Assistant {
	return &Assistant{responder: responder, timeout: DefaultTimeout, log: logger.With("component", "assistant")}
}

// SetTimeout overrides the per-call responder timeout.
func (a *Assistant) SetTimeout(d time.Duration) {
	if d > 0 {
		a.timeout = d
	}
}

// Reply answers message. It never fails.
func (a *Assistant) Reply(ctx context.Context, message string) string {
	lower := strings.ToLower(message)
	for _, k := range keywords {
		if strings.Contains(lower, k.word) {
			return k.reply
		}
	}
	if a.responder == nil || strings.TrimSpace(message) == "" {
		return Fallback
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	reply, err := a.responder.Respond(ctx, message)
	if err != nil {
		a.log.Warn("responder failed, using fallback", "error", err)
		return Fallback
	}
	if reply = strings.TrimSpace(reply); reply == "" {
		return Fallback
	}
	return reply
}

// Categories of wish suggestions.
const (
	CategoryHeartfelt    = "heartfelt"
	CategoryFunny        = "funny"
	CategoryProfessional = "professional"
	CategoryCreative     = "creative"
)

var suggestions = map[string][]string{
	CategoryHeartfelt: {
		"Wishing you a day filled with love, laughter, and all the happiness your heart can hold. Happy Birthday!",
		"May this special day bring you endless joy and tons of precious memories. Have a wonderful birthday!",
		"Here's to another year of wonderful memories and countless blessings. Happy Birthday!",
	},
	CategoryFunny: {
		"Congratulations on being born a really long time ago! 🎉",
		"You're not getting older, you're just becoming a classic! Happy Birthday! 🎂",
		"Age is just a number... and in your case, a really big one! 😄 Happy Birthday!",
	},
	CategoryProfessional: {
		"Wishing you continued success and happiness on your special day. Happy Birthday!",
		"May this year bring you professional growth and personal fulfillment. Best wishes on your birthday!",
		"Happy Birthday! May your day be filled with joy and your year with prosperity.",
	},
	CategoryCreative: {
		"Another 365 days of awesomeness completed! 🌟 Level up! Happy Birthday!",
		"Today is the anniversary of your legendary arrival on Earth! 🚀 Happy Birthday!",
		"The world became a better place the day you were born. Keep shining! ✨ Happy Birthday!",
	},
}

// Suggestions returns ready-made wishes for category. Unknown categories
// get the heartfelt set. The returned slice is a copy.
func Suggestions(category string) []string {
	s, ok := suggestions[strings.ToLower(category)]
	if !ok {
		s = suggestions[CategoryHeartfelt]
	}
	return append([]string(nil), s...)
}
