package domain

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignCancelled CampaignStatus = "cancelled"
)

// CampaignType enumerates the kinds of campaigns the platform sends.
// Templates share the same enum.
type CampaignType string

const (
	CampaignReminder       CampaignType = "reminder"
	CampaignWelcome        CampaignType = "welcome"
	CampaignFollowUp       CampaignType = "follow-up"
	CampaignContentPreview CampaignType = "content-preview"
	CampaignThankYou       CampaignType = "thank-you"
)

// AttendanceFilter narrows a campaign's audience by attendance history.
// It only has effect when the campaign is linked to an event.
type AttendanceFilter string

const (
	AttendanceAll         AttendanceFilter = "all"
	AttendanceAttended    AttendanceFilter = "attended"
	AttendanceNotAttended AttendanceFilter = "not-attended"
)

// Targeting holds the multi-criteria audience filter for a campaign.
// Zero value means "everyone" (score range defaults to the full [0, 100]).
type Targeting struct {
	Interests  []string         `json:"interests" db:"interests"`
	MinScore   int              `json:"min_score" db:"min_score"`
	MaxScore   int              `json:"max_score" db:"max_score"`
	Attendance AttendanceFilter `json:"attendance" db:"attendance"`
}

// EffectiveScoreRange returns the inclusive engagement-score bounds,
// substituting the full range when the targeting left them unset.
func (t Targeting) EffectiveScoreRange() (int, int) {
	min, max := t.MinScore, t.MaxScore
	if min == 0 && max == 0 {
		return 0, 100
	}
	return min, max
}

// Campaign represents a configured, possibly-scheduled email blast tied to
// a template/event and a targeting rule.
type Campaign struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	Name        string         `json:"name" db:"name"`
	Type        CampaignType   `json:"type" db:"type"`
	EventID     *uuid.UUID     `json:"event_id" db:"event_id"`
	TemplateID  *uuid.UUID     `json:"template_id" db:"template_id"`
	Subject     string         `json:"subject" db:"subject"`
	Body        string         `json:"body" db:"body"`
	Status      CampaignStatus `json:"status" db:"status"`
	ScheduledAt *time.Time     `json:"scheduled_at" db:"scheduled_at"`
	SentAt      *time.Time     `json:"sent_at" db:"sent_at"`
	Targeting   Targeting      `json:"targeting" db:"targeting"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignSent || c.Status == CampaignCancelled
}

// Template is the source of default content for campaigns that reference it.
type Template struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	Name      string       `json:"name" db:"name"`
	Type      CampaignType `json:"type" db:"type"`
	Subject   string       `json:"subject" db:"subject"`
	Body      string       `json:"body" db:"body"`
	Variables []string     `json:"variables" db:"variables"`
	Active    bool         `json:"active" db:"active"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}
