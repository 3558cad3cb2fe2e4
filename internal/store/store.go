// Package store defines the Record Store contract for the engagement
// platform.
//
// Two interchangeable backends implement Store: memory (tests, local dev)
// and postgres (production). The scheduler and dispatcher treat each store
// call as atomic for a single entity; the backend serializes conflicting
// writes internally.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/eventpulse/engage/internal/domain"
)

// Sentinel errors shared by all backends.
var (
	ErrNotFound              = errors.New("record not found")
	ErrDuplicateEmail        = errors.New("attendee email already exists")
	ErrDuplicateRegistration = errors.New("attendee already registered for event")
)

// Store is the typed CRUD and query contract the core depends on.
// Implementations must be safe for concurrent use.
type Store interface {
	EventStore
	AttendeeStore
	RegistrationStore
	CampaignStore
	TemplateStore
	SendStore
	AnalyticsStore
}

// EventStore provides access to events.
type EventStore interface {
	CreateEvent(ctx context.Context, e *domain.Event) error
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	ListEvents(ctx context.Context) ([]*domain.Event, error)
	// ListEventsByStatus returns events in any of the given statuses.
	ListEventsByStatus(ctx context.Context, statuses ...domain.EventStatus) ([]*domain.Event, error)
	UpdateEvent(ctx context.Context, e *domain.Event) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error
}

// AttendeeStore provides access to attendees. Emails are normalized before
// storage; CreateAttendee returns ErrDuplicateEmail for a known address.
type AttendeeStore interface {
	CreateAttendee(ctx context.Context, a *domain.Attendee) error
	GetAttendee(ctx context.Context, id uuid.UUID) (*domain.Attendee, error)
	GetAttendeeByEmail(ctx context.Context, email string) (*domain.Attendee, error)
	ListAttendees(ctx context.Context) ([]*domain.Attendee, error)
	UpdateAttendee(ctx context.Context, a *domain.Attendee) error
	DeleteAttendee(ctx context.Context, id uuid.UUID) error
}

// RegistrationStore links events and attendees. CreateRegistration returns
// ErrDuplicateRegistration for a known (event, attendee) pair; the route
// layer additionally pre-checks via GetRegistration for a cleaner 409.
type RegistrationStore interface {
	CreateRegistration(ctx context.Context, r *domain.Registration) error
	GetRegistration(ctx context.Context, eventID, attendeeID uuid.UUID) (*domain.Registration, error)
	ListRegistrationsByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.Registration, error)
	ListRegistrationsByAttendee(ctx context.Context, attendeeID uuid.UUID) ([]*domain.Registration, error)
	UpdateRegistration(ctx context.Context, r *domain.Registration) error
}

// CampaignStore provides access to campaigns, including the "due" query
// the scheduler promotes from.
type CampaignStore interface {
	CreateCampaign(ctx context.Context, c *domain.Campaign) error
	GetCampaign(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
	ListCampaigns(ctx context.Context) ([]*domain.Campaign, error)
	// ListDueCampaigns returns campaigns with status=scheduled whose
	// scheduled_at is at or before now.
	ListDueCampaigns(ctx context.Context, now time.Time) ([]*domain.Campaign, error)
	UpdateCampaign(ctx context.Context, c *domain.Campaign) error
	// UpdateCampaignStatus transitions status; when the new status is sent
	// it also stamps sent_at. SentAt is set if and only if status is sent.
	UpdateCampaignStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus, at time.Time) error
	DeleteCampaign(ctx context.Context, id uuid.UUID) error
}

// TemplateStore provides access to templates.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, t *domain.Template) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*domain.Template, error)
	ListTemplates(ctx context.Context) ([]*domain.Template, error)
	// ActiveTemplateByType returns the first active template of the given
	// type, or ErrNotFound.
	ActiveTemplateByType(ctx context.Context, ct domain.CampaignType) (*domain.Template, error)
	UpdateTemplate(ctx context.Context, t *domain.Template) error
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
}

// SendStore records delivery attempts. Open/click timestamp updates are
// idempotent: setting an already-set timestamp is a no-op, and the boolean
// result reports whether this call performed the unset-to-set transition.
type SendStore interface {
	CreateSend(ctx context.Context, s *domain.Send) error
	GetSend(ctx context.Context, id uuid.UUID) (*domain.Send, error)
	ListSendsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*domain.Send, error)
	ListSendsByAttendee(ctx context.Context, attendeeID uuid.UUID) ([]*domain.Send, error)
	MarkSendOpened(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkSendClicked(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// AnalyticsStore records immutable engagement events and supports
// time-based pruning.
type AnalyticsStore interface {
	CreateAnalyticsEvent(ctx context.Context, ev *domain.AnalyticsEvent) error
	ListAnalyticsEvents(ctx context.Context) ([]*domain.AnalyticsEvent, error)
	// ListAnalyticsByAttendeeSince returns an attendee's events created at
	// or after the cutoff.
	ListAnalyticsByAttendeeSince(ctx context.Context, attendeeID uuid.UUID, since time.Time) ([]*domain.AnalyticsEvent, error)
	// DeleteAnalyticsOlderThan hard-deletes events created strictly before
	// the cutoff and returns the number removed. Zero is not an error.
	DeleteAnalyticsOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
