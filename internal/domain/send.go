package domain

import (
	"time"

	"github.com/google/uuid"
)

// Send is one recorded delivery attempt of a campaign to one attendee.
// Rows are append-only except for the open/click timestamps, which are set
// at most once (setting an already-set timestamp is a no-op).
type Send struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	CampaignID   uuid.UUID  `json:"campaign_id" db:"campaign_id"`
	AttendeeID   uuid.UUID  `json:"attendee_id" db:"attendee_id"`
	SentAt       time.Time  `json:"sent_at" db:"sent_at"`
	OpenedAt     *time.Time `json:"opened_at" db:"opened_at"`
	ClickedAt    *time.Time `json:"clicked_at" db:"clicked_at"`
	Bounced      bool       `json:"bounced" db:"bounced"`
	Unsubscribed bool       `json:"unsubscribed" db:"unsubscribed"`
}

// AnalyticsEventType enumerates the engagement signals the platform records.
type AnalyticsEventType string

const (
	AnalyticsRegistration AnalyticsEventType = "registration"
	AnalyticsEmailOpen    AnalyticsEventType = "email_open"
	AnalyticsEmailClick   AnalyticsEventType = "email_click"
	AnalyticsAttendance   AnalyticsEventType = "attendance"
	AnalyticsEngagement   AnalyticsEventType = "engagement"
)

// AnalyticsEvent is an immutable engagement record. These rows are the
// single source of truth for metric aggregation and the only entity
// subject to time-based pruning.
type AnalyticsEvent struct {
	ID         uuid.UUID          `json:"id" db:"id"`
	Type       AnalyticsEventType `json:"type" db:"type"`
	AttendeeID *uuid.UUID         `json:"attendee_id" db:"attendee_id"`
	EventID    *uuid.UUID         `json:"event_id" db:"event_id"`
	CampaignID *uuid.UUID         `json:"campaign_id" db:"campaign_id"`
	Metadata   map[string]string  `json:"metadata" db:"metadata"`
	CreatedAt  time.Time          `json:"created_at" db:"created_at"`
}

// ActivityCounts aggregates an attendee's recent analytics events by type.
// It is the input to the scoring capability and the fallback formula.
type ActivityCounts struct {
	Opens         int `json:"opens"`
	Clicks        int `json:"clicks"`
	Attended      int `json:"attended"`
	Registrations int `json:"registrations"`
}
