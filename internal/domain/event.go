package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus enumerates the lifecycle states of an event.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventLive      EventStatus = "live"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// Event represents a scheduled gathering attendees can register for.
// Status advances monotonically in the UI but nothing in this package
// enforces transition legality; any status may overwrite any other.
type Event struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	Title       string      `json:"title" db:"title"`
	Description string      `json:"description" db:"description"`
	Location    string      `json:"location" db:"location"`
	StartTime   time.Time   `json:"start_time" db:"start_time"`
	EndTime     *time.Time  `json:"end_time" db:"end_time"`
	Timezone    string      `json:"timezone" db:"timezone"`
	Capacity    *int        `json:"capacity" db:"capacity"`
	Public      bool        `json:"public" db:"public"`
	Status      EventStatus `json:"status" db:"status"`
	Tags        []string    `json:"tags" db:"tags"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// HoursUntilStart returns the number of hours between now and the event
// start, negative once the event has begun.
func (e *Event) HoursUntilStart(now time.Time) float64 {
	return e.StartTime.Sub(now).Hours()
}

// Registration links one attendee to one event. One row exists per
// (event, attendee) pair; the route layer pre-checks uniqueness before
// calling create.
type Registration struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	EventID         uuid.UUID  `json:"event_id" db:"event_id"`
	AttendeeID      uuid.UUID  `json:"attendee_id" db:"attendee_id"`
	Attended        bool       `json:"attended" db:"attended"`
	DurationMinutes *int       `json:"duration_minutes" db:"duration_minutes"`
	Feedback        string     `json:"feedback" db:"feedback"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	AttendedAt      *time.Time `json:"attended_at" db:"attended_at"`
}
