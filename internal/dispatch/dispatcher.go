// Package dispatch delivers a campaign to its resolved audience in
// bounded-size concurrent batches, tracking per-recipient outcome.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eventpulse/engage/internal/audience"
	"github.com/eventpulse/engage/internal/domain"
	"github.com/eventpulse/engage/internal/mailer"
	"github.com/eventpulse/engage/internal/personalize"
	"github.com/eventpulse/engage/internal/pkg/logger"
	"github.com/eventpulse/engage/internal/store"
	"github.com/eventpulse/engage/internal/template"
)

const (
	// DefaultBatchSize is how many recipients are sent concurrently.
	DefaultBatchSize = 10

	// DefaultBatchDelay is the pause between batches, respecting
	// downstream provider rate limits.
	DefaultBatchDelay = time.Second
)

// Result reports the outcome of one campaign dispatch. Per-recipient
// failures are data, not errors; the campaign completes regardless.
type Result struct {
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// Dispatcher sends campaigns. Safe for concurrent use; each Dispatch call
// runs to completion independently.
type Dispatcher struct {
	store        store.Store
	resolver     *audience.Resolver
	renderer     *template.Renderer
	sender       mailer.Sender
	personalizer personalize.Personalizer // optional
	rateLimiter  *mailer.RateLimiter      // optional

	batchSize  int
	batchDelay time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBatchSize overrides the per-batch concurrency.
func WithBatchSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// WithBatchDelay overrides the inter-batch pacing delay.
func WithBatchDelay(delay time.Duration) Option {
	return func(d *Dispatcher) { d.batchDelay = delay }
}

// WithPersonalizer enables best-effort AI content enhancement.
func WithPersonalizer(p personalize.Personalizer) Option {
	return func(d *Dispatcher) { d.personalizer = p }
}

// WithRateLimiter throttles batch starts against provider-wide limits.
func WithRateLimiter(rl *mailer.RateLimiter) Option {
	return func(d *Dispatcher) { d.rateLimiter = rl }
}

// New creates a dispatcher.
func New(s store.Store, resolver *audience.Resolver, renderer *template.Renderer, sender mailer.Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:      s,
		resolver:   resolver,
		renderer:   renderer,
		sender:     sender,
		batchSize:  DefaultBatchSize,
		batchDelay: DefaultBatchDelay,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends the campaign to every eligible attendee and records the
// outcome. Only a missing campaign (or a missing linked event/template) is
// a hard error; per-recipient failures are aggregated in the Result.
//
// On completion the campaign status becomes sent and sent_at is stamped
// unconditionally, even when every recipient failed. That mirrors how the
// platform has always reported campaign completion; see DESIGN.md.
func (d *Dispatcher) Dispatch(ctx context.Context, campaignID uuid.UUID) (*Result, error) {
	c, err := d.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("loading campaign %s: %w", campaignID, err)
	}

	subject, body, event, err := d.campaignContent(ctx, c)
	if err != nil {
		return nil, err
	}

	recipients, err := d.resolver.Resolve(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("resolving audience for campaign %s: %w", c.ID, err)
	}

	log.Printf("[Dispatcher] Campaign %s (%s): %d recipients in batches of %d",
		c.ID, c.Name, len(recipients), d.batchSize)

	result := &Result{}
	var mu sync.Mutex

	for start := 0; start < len(recipients); start += d.batchSize {
		end := start + d.batchSize
		if end > len(recipients) {
			end = len(recipients)
		}
		batch := recipients[start:end]

		if d.rateLimiter != nil {
			if err := d.rateLimiter.Wait(ctx, len(batch)); err != nil {
				log.Printf("[Dispatcher] Rate limiter wait failed: %v", err)
			}
		}

		var wg sync.WaitGroup
		for _, a := range batch {
			wg.Add(1)
			go func(a *domain.Attendee) {
				defer wg.Done()
				if err := d.sendOne(ctx, c, event, a, subject, body); err != nil {
					mu.Lock()
					result.Failed++
					result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", a.Email, err))
					mu.Unlock()
					return
				}
				mu.Lock()
				result.Sent++
				mu.Unlock()
			}(a)
		}
		wg.Wait()

		// Pacing delay between batches, never after the last one. A
		// dispatch runs to completion once started; cancellation mid-run
		// would strand the campaign in sending, which the promotion scan
		// never revisits.
		if end < len(recipients) {
			time.Sleep(d.batchDelay)
		}
	}

	now := time.Now()
	if err := d.store.UpdateCampaignStatus(ctx, c.ID, domain.CampaignSent, now); err != nil {
		return result, fmt.Errorf("marking campaign %s sent: %w", c.ID, err)
	}

	log.Printf("[Dispatcher] Campaign %s completed: sent=%d failed=%d", c.ID, result.Sent, result.Failed)
	return result, nil
}

// campaignContent resolves the subject/body to send, falling back to the
// linked template when the campaign's own content is empty, and loads the
// linked event. A dangling event or template reference aborts the dispatch.
func (d *Dispatcher) campaignContent(ctx context.Context, c *domain.Campaign) (subject, body string, event *domain.Event, err error) {
	subject, body = c.Subject, c.Body

	if c.TemplateID != nil && (subject == "" || body == "") {
		tmpl, terr := d.store.GetTemplate(ctx, *c.TemplateID)
		if terr != nil {
			return "", "", nil, fmt.Errorf("loading template %s: %w", c.TemplateID, terr)
		}
		if subject == "" {
			subject = tmpl.Subject
		}
		if body == "" {
			body = tmpl.Body
		}
	}

	if c.EventID != nil {
		event, err = d.store.GetEvent(ctx, *c.EventID)
		if err != nil {
			return "", "", nil, fmt.Errorf("loading event %s: %w", c.EventID, err)
		}
	}
	return subject, body, event, nil
}

// sendOne renders, optionally enhances, and delivers one email, then
// records the Send and bumps the attendee's last-activity timestamp.
func (d *Dispatcher) sendOne(ctx context.Context, c *domain.Campaign, event *domain.Event, a *domain.Attendee, subject, body string) error {
	vars := d.renderer.Vars(a, event)
	finalSubject := d.renderer.Render(subject, vars)
	finalBody := d.renderer.Render(body, vars)

	if d.personalizer != nil {
		enhanced, err := d.personalizer.Personalize(ctx, a, event, finalSubject, finalBody)
		if err != nil {
			// Best-effort: fall back to the rendered template.
			logger.Warn("personalization failed, using template content",
				"campaign_id", c.ID.String(), "attendee_id", a.ID.String(), "error", err.Error())
		} else {
			// The model may echo placeholders back; substitute once more.
			finalSubject = d.renderer.Render(enhanced.Subject, vars)
			finalBody = d.renderer.Render(enhanced.Body, vars)
		}
	}

	ok, err := d.sender.Send(ctx, a.Email, finalSubject, finalBody)
	if err != nil {
		logger.Error("send error", "campaign_id", c.ID.String(), "recipient", a.Email, "error", err.Error())
		return err
	}
	if !ok {
		return fmt.Errorf("provider rejected delivery")
	}

	now := time.Now()
	send := &domain.Send{
		CampaignID: c.ID,
		AttendeeID: a.ID,
		SentAt:     now,
	}
	if err := d.store.CreateSend(ctx, send); err != nil {
		return fmt.Errorf("recording send: %w", err)
	}

	a.LastActivityAt = now
	if err := d.store.UpdateAttendee(ctx, a); err != nil {
		// The email went out; a failed activity bump shouldn't count the
		// recipient as failed.
		logger.Warn("updating attendee activity failed", "attendee_id", a.ID.String(), "error", err.Error())
	}
	return nil
}
