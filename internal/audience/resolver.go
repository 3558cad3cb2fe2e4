// Package audience computes the set of attendees eligible for a campaign.
package audience

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/eventpulse/engage/internal/domain"
	"github.com/eventpulse/engage/internal/store"
)

// Resolver filters the attendee population by a campaign's targeting
// criteria. The result is deterministic for fixed inputs and an empty
// eligible set is valid.
type Resolver struct {
	store store.Store
}

// NewResolver creates a resolver backed by the given store.
func NewResolver(s store.Store) *Resolver {
	return &Resolver{store: s}
}

// Resolve returns the attendees eligible to receive the campaign.
//
// Filters apply in order: event registration restriction, interest-tag
// intersection (OR), inclusive engagement-score range, and attendance
// history. The attendance filter only applies when the campaign is linked
// to an event; without one it is a no-op regardless of the requested value.
func (r *Resolver) Resolve(ctx context.Context, c *domain.Campaign) ([]*domain.Attendee, error) {
	candidates, err := r.basePopulation(ctx, c)
	if err != nil {
		return nil, err
	}

	min, max := c.Targeting.EffectiveScoreRange()

	var eligible []*domain.Attendee
	for _, a := range candidates {
		if len(c.Targeting.Interests) > 0 && !a.HasAnyInterest(c.Targeting.Interests) {
			continue
		}
		if a.EngagementScore < min || a.EngagementScore > max {
			continue
		}
		eligible = append(eligible, a)
	}

	if c.EventID != nil && c.Targeting.Attendance != "" && c.Targeting.Attendance != domain.AttendanceAll {
		eligible, err = r.filterByAttendance(ctx, eligible, *c.EventID, c.Targeting.Attendance)
		if err != nil {
			return nil, err
		}
	}

	return eligible, nil
}

// basePopulation returns all attendees, or only those registered for the
// campaign's linked event.
func (r *Resolver) basePopulation(ctx context.Context, c *domain.Campaign) ([]*domain.Attendee, error) {
	if c.EventID == nil {
		return r.store.ListAttendees(ctx)
	}

	regs, err := r.store.ListRegistrationsByEvent(ctx, *c.EventID)
	if err != nil {
		return nil, fmt.Errorf("listing registrations for event %s: %w", c.EventID, err)
	}

	var attendees []*domain.Attendee
	for _, reg := range regs {
		a, err := r.store.GetAttendee(ctx, reg.AttendeeID)
		if err == store.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		attendees = append(attendees, a)
	}
	return attendees, nil
}

func (r *Resolver) filterByAttendance(ctx context.Context, attendees []*domain.Attendee, eventID uuid.UUID, filter domain.AttendanceFilter) ([]*domain.Attendee, error) {
	regs, err := r.store.ListRegistrationsByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	attended := make(map[uuid.UUID]bool, len(regs))
	for _, reg := range regs {
		attended[reg.AttendeeID] = reg.Attended
	}

	want := filter == domain.AttendanceAttended
	var out []*domain.Attendee
	for _, a := range attendees {
		flag, registered := attended[a.ID]
		if registered && flag == want {
			out = append(out, a)
		}
	}
	return out, nil
}
