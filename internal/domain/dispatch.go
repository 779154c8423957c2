package domain

import "time"

// DispatchJob is a durable request to deliver a wish no earlier than
// DeliverAt. There is at most one pending job per wish; re-enqueueing moves
// DeliverAt instead of adding a second job.
type DispatchJob struct {
	ID        string    `json:"id" db:"id"`
	WishID    string    `json:"wish_id" db:"wish_id"`
	DeliverAt time.Time `json:"deliver_at" db:"deliver_at"`
	// ClaimedUntil hides the job from other dispatchers while one works on
	// it. An expired claim makes the job due again.
	ClaimedUntil *time.Time `json:"claimed_until,omitempty" db:"claimed_until"`
	Claims       int        `json:"claims" db:"claims"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}
