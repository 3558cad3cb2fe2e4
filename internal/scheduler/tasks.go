package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/eventpulse/engage/internal/domain"
	"github.com/eventpulse/engage/internal/personalize"
	"github.com/eventpulse/engage/internal/store"
)

// promoteDueCampaigns flips every due scheduled campaign to sending and
// dispatches it. Failures on one campaign never block the rest.
func (s *Scheduler) promoteDueCampaigns(ctx context.Context) error {
	now := s.now()
	due, err := s.store.ListDueCampaigns(ctx, now)
	if err != nil {
		return fmt.Errorf("listing due campaigns: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	log.Printf("[Scheduler] %d campaign(s) due", len(due))
	for _, c := range due {
		if err := s.promoteCampaign(ctx, c.ID); err != nil {
			log.Printf("[Scheduler] Campaign %s dispatch failed: %v", c.ID, err)
		}
	}
	return nil
}

// promoteCampaign transitions a single scheduled campaign to sending and
// runs the dispatcher. The status flip happens before dispatch so a
// concurrent tick or a restart does not promote the same campaign twice.
func (s *Scheduler) promoteCampaign(ctx context.Context, id uuid.UUID) error {
	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return fmt.Errorf("loading campaign: %w", err)
	}
	if c.Status != domain.CampaignScheduled {
		log.Printf("[Scheduler] Campaign %s is %s, skipping promotion", id, c.Status)
		return nil
	}

	if err := s.store.UpdateCampaignStatus(ctx, id, domain.CampaignSending, s.now()); err != nil {
		return fmt.Errorf("marking campaign sending: %w", err)
	}

	result, err := s.dispatcher.Dispatch(ctx, id)
	if err != nil {
		return fmt.Errorf("dispatching: %w", err)
	}
	log.Printf("[Scheduler] Campaign %s dispatched: %d sent, %d failed",
		id, result.Sent, result.Failed)
	return nil
}

// recomputeEngagement refreshes every attendee's engagement score and
// last-activity timestamp from their recent analytics activity. The AI
// scorer is consulted when configured; any scorer failure falls back to
// the deterministic formula so a refresh always lands, score change or
// not.
func (s *Scheduler) recomputeEngagement(ctx context.Context) error {
	attendees, err := s.store.ListAttendees(ctx)
	if err != nil {
		return fmt.Errorf("listing attendees: %w", err)
	}

	now := s.now()
	since := now.Add(-s.intervals.ActivityWindow)
	updated := 0

	for _, a := range attendees {
		events, err := s.store.ListAnalyticsByAttendeeSince(ctx, a.ID, since)
		if err != nil {
			log.Printf("[Scheduler] Activity lookup failed for attendee %s: %v", a.ID, err)
			continue
		}
		counts := countActivity(events)

		score := 0
		scored := false
		if s.scorer != nil {
			if v, err := s.scorer.Score(ctx, a, counts); err == nil {
				score = domain.ClampScore(v)
				scored = true
			} else {
				log.Printf("[Scheduler] Scorer failed for attendee %s, using fallback: %v", a.ID, err)
			}
		}
		if !scored {
			score = personalize.FallbackScore(a.EngagementScore, counts)
		}

		a.EngagementScore = score
		a.LastActivityAt = now
		if err := s.store.UpdateAttendee(ctx, a); err != nil {
			log.Printf("[Scheduler] Score update failed for attendee %s: %v", a.ID, err)
			continue
		}
		updated++
	}

	log.Printf("[Scheduler] Engagement recompute: %d/%d attendees updated", updated, len(attendees))
	return nil
}

// countActivity aggregates analytics events into the counts the scoring
// formula consumes.
func countActivity(events []*domain.AnalyticsEvent) domain.ActivityCounts {
	var c domain.ActivityCounts
	for _, ev := range events {
		switch ev.Type {
		case domain.AnalyticsEmailOpen:
			c.Opens++
		case domain.AnalyticsEmailClick:
			c.Clicks++
		case domain.AnalyticsAttendance:
			c.Attended++
		case domain.AnalyticsRegistration:
			c.Registrations++
		}
	}
	return c
}

// fireReminders sends a reminder campaign to registrants of upcoming
// events. A reminder fires when hours-until-start falls in the half-open
// window (threshold-1, threshold]; with hourly ticks the windows fire at
// most once per event since each window is exactly one tick wide.
func (s *Scheduler) fireReminders(ctx context.Context) error {
	events, err := s.store.ListEventsByStatus(ctx, domain.EventPublished, domain.EventLive)
	if err != nil {
		return fmt.Errorf("listing upcoming events: %w", err)
	}

	now := s.now()
	for _, e := range events {
		hours := e.HoursUntilStart(now)
		for _, threshold := range reminderThresholdHours {
			if hours > threshold-1 && hours <= threshold {
				if err := s.sendReminder(ctx, e, threshold); err != nil {
					log.Printf("[Scheduler] Reminder for event %s failed: %v", e.ID, err)
				}
				break
			}
		}
	}
	return nil
}

// sendReminder synthesizes a one-off reminder campaign for the event and
// dispatches it immediately. No active reminder template means reminders
// are simply not configured; the event is skipped without error.
func (s *Scheduler) sendReminder(ctx context.Context, e *domain.Event, threshold float64) error {
	tmpl, err := s.store.ActiveTemplateByType(ctx, domain.CampaignReminder)
	if err != nil {
		if err == store.ErrNotFound {
			return nil
		}
		return fmt.Errorf("loading reminder template: %w", err)
	}

	c := &domain.Campaign{
		ID:         uuid.New(),
		Name:       fmt.Sprintf("Reminder: %s", e.Title),
		Type:       domain.CampaignReminder,
		EventID:    &e.ID,
		TemplateID: &tmpl.ID,
		Status:     domain.CampaignSending,
	}
	if err := s.store.CreateCampaign(ctx, c); err != nil {
		return fmt.Errorf("creating reminder campaign: %w", err)
	}

	log.Printf("[Scheduler] Sending %gh reminder for event %s (%s)", threshold, e.Title, e.ID)
	result, err := s.dispatcher.Dispatch(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("dispatching reminder: %w", err)
	}
	log.Printf("[Scheduler] Reminder for event %s: %d sent, %d failed", e.ID, result.Sent, result.Failed)
	return nil
}

// pruneAnalytics hard-deletes analytics events past the retention window.
func (s *Scheduler) pruneAnalytics(ctx context.Context) error {
	cutoff := s.now().Add(-s.intervals.Retention)
	n, err := s.store.DeleteAnalyticsOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pruning analytics: %w", err)
	}
	if n > 0 {
		log.Printf("[Scheduler] Pruned %d analytics event(s) older than %s", n, cutoff.Format("2006-01-02"))
	}
	return nil
}
