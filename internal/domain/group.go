package domain

import "time"

// InvitationCodeLength is the fixed length of a group invitation code.
const InvitationCodeLength = 12

// InvitationAlphabet is the character set invitation codes are drawn from.
const InvitationAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GroupWish is a wish several contributors write together for one recipient.
// InvitationCode is immutable once assigned and unique across all groups.
type GroupWish struct {
	ID              string    `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	Description     string    `json:"description" db:"description"`
	RecipientID     string    `json:"recipient_id" db:"recipient_id"`
	CreatorID       string    `json:"creator_id" db:"creator_id"`
	Deadline        time.Time `json:"deadline" db:"deadline"`
	ScheduledSendAt time.Time `json:"scheduled_send_at" db:"scheduled_send_at"`
	InvitationCode  string    `json:"invitation_code" db:"invitation_code"`
	AllowAnonymous  bool      `json:"allow_anonymous" db:"allow_anonymous"`
	IsActive        bool      `json:"is_active" db:"is_active"`
	IsSent          bool      `json:"is_sent" db:"is_sent"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Contribution is one contributor's entry in a group wish. At most one
// exists per (GroupID, ContributorID). Anonymous only affects presentation;
// the contributor identity is always stored.
type Contribution struct {
	ID            string    `json:"id" db:"id"`
	GroupID       string    `json:"group_id" db:"group_id"`
	ContributorID string    `json:"contributor_id" db:"contributor_id"`
	Content       string    `json:"content" db:"content"`
	MediaRef      string    `json:"media_ref,omitempty" db:"media_ref"`
	Anonymous     bool      `json:"anonymous" db:"anonymous"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// DisplayContributor returns the contributor id, or "anonymous" when the
// entry was made anonymously.
func (c *Contribution) DisplayContributor() string {
	if c.Anonymous {
		return "anonymous"
	}
	return c.ContributorID
}
