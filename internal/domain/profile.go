package domain

import (
	"fmt"
	"time"
)

// BirthDate is a civil birth date. Year may be zero when the owner chose not
// to share it; month and day are always set.
type BirthDate struct {
	Year  int        `json:"year,omitempty" db:"birth_year"`
	Month time.Month `json:"month" db:"birth_month"`
	Day   int        `json:"day" db:"birth_day"`
}

// Valid reports whether the month/day pair names a real calendar day in some
// year (Feb 29 is valid).
func (b BirthDate) Valid() bool {
	if b.Month < time.January || b.Month > time.December || b.Day < 1 {
		return false
	}
	return b.Day <= maxDays[b.Month]
}

// HasYear reports whether the birth year is known.
func (b BirthDate) HasYear() bool { return b.Year > 0 }

func (b BirthDate) String() string {
	if b.HasYear() {
		return fmt.Sprintf("%04d-%02d-%02d", b.Year, int(b.Month), b.Day)
	}
	return fmt.Sprintf("--%02d-%02d", int(b.Month), b.Day)
}

var maxDays = map[time.Month]int{
	time.January: 31, time.February: 29, time.March: 31, time.April: 30,
	time.May: 31, time.June: 30, time.July: 31, time.August: 31,
	time.September: 30, time.October: 31, time.November: 30, time.December: 31,
}

// Profile is the read-only view of a user's birthday data. The user
// management collaborator owns it; the engine only reads it.
type Profile struct {
	UserID      string     `json:"user_id" db:"user_id"`
	Username    string     `json:"username" db:"username"`
	DisplayName string     `json:"display_name" db:"display_name"`
	Email       string     `json:"email" db:"email"`
	Birthday    *BirthDate `json:"birthday,omitempty"`
	Timezone    string     `json:"timezone" db:"timezone"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// HasBirthday reports whether the profile carries a usable birth date.
func (p *Profile) HasBirthday() bool {
	return p.Birthday != nil && p.Birthday.Valid()
}

// Name returns the display name, falling back to the username.
func (p *Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Username
}
