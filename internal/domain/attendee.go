package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Attendee represents a person known to the platform. Email is the dedup
// key; the stores reject a second attendee with the same normalized email.
type Attendee struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Email           string    `json:"email" db:"email"`
	Name            string    `json:"name" db:"name"`
	Company         string    `json:"company" db:"company"`
	JobTitle        string    `json:"job_title" db:"job_title"`
	Interests       []string  `json:"interests" db:"interests"`
	EngagementScore int       `json:"engagement_score" db:"engagement_score"`
	LastActivityAt  time.Time `json:"last_activity_at" db:"last_activity_at"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// NormalizeEmail lowercases and trims an email address. All store writes
// and lookups go through this so the dedup key is stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HasAnyInterest reports whether the attendee's interest set intersects
// the given tags (logical OR).
func (a *Attendee) HasAnyInterest(tags []string) bool {
	for _, want := range tags {
		for _, have := range a.Interests {
			if strings.EqualFold(have, want) {
				return true
			}
		}
	}
	return false
}

// ClampScore bounds an engagement score to the valid [0, 100] range.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
