package domain

import "time"

// WishStatus enumerates the lifecycle states of a wish.
type WishStatus string

const (
	WishDraft     WishStatus = "draft"
	WishScheduled WishStatus = "scheduled"
	WishSent      WishStatus = "sent"
	WishFailed    WishStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s WishStatus) Valid() bool {
	switch s {
	case WishDraft, WishScheduled, WishSent, WishFailed:
		return true
	}
	return false
}

// WishKind is the content variant of a wish.
type WishKind string

const (
	WishText  WishKind = "text"
	WishVoice WishKind = "voice"
	WishVideo WishKind = "video"
	WishCard  WishKind = "card"
)

// Valid reports whether k is one of the known content variants.
func (k WishKind) Valid() bool {
	switch k {
	case WishText, WishVoice, WishVideo, WishCard:
		return true
	}
	return false
}

// Wish is a single birthday wish from a sender to a recipient.
//
// SentAt is set if and only if Status == WishSent. Wishes are mutated only
// through the wish state machine and never deleted by the engine.
type Wish struct {
	ID           string     `json:"id" db:"id"`
	SenderID     string     `json:"sender_id" db:"sender_id"`
	RecipientID  string     `json:"recipient_id" db:"recipient_id"`
	Kind         WishKind   `json:"kind" db:"kind"`
	Status       WishStatus `json:"status" db:"status"`
	TextContent  string     `json:"text_content" db:"text_content"`
	CardTemplate string     `json:"card_template,omitempty" db:"card_template"`
	// MediaRef points at the voice/video payload in the media store.
	MediaRef      string     `json:"media_ref,omitempty" db:"media_ref"`
	IsPublic      bool       `json:"is_public" db:"is_public"`
	IsAnonymous   bool       `json:"is_anonymous" db:"is_anonymous"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`
	SentAt        *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	FailureReason string     `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the wish can no longer transition automatically.
func (w *Wish) IsTerminal() bool {
	return w.Status == WishSent || w.Status == WishFailed
}

// HasMedia reports whether a large media payload is attached.
func (w *Wish) HasMedia() bool { return w.MediaRef != "" }

// WishTransition is the compare-and-set write applied by the state machine.
// The write only lands if the stored status still equals From.
type WishTransition struct {
	WishID        string
	From          WishStatus
	To            WishStatus
	ScheduledAt   *time.Time
	SentAt        *time.Time
	FailureReason string
	At            time.Time
}
