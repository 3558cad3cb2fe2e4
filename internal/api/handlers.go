// Package api exposes the platform over HTTP: CRUD for events, attendees,
// registrations, templates and campaigns, plus the campaign scheduling and
// send actions and the public tracking endpoints.
package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/eventpulse/engage/internal/audience"
	"github.com/eventpulse/engage/internal/pkg/httputil"
	"github.com/eventpulse/engage/internal/scheduler"
	"github.com/eventpulse/engage/internal/store"
	"github.com/eventpulse/engage/internal/template"
	"github.com/eventpulse/engage/internal/tracking"
)

// Handlers carries the dependencies the route handlers need.
type Handlers struct {
	store      store.Store
	scheduler  *scheduler.Scheduler
	dispatcher scheduler.CampaignDispatcher
	resolver   *audience.Resolver
	renderer   *template.Renderer
	tracking   *tracking.Handler

	startedAt time.Time
}

// NewHandlers wires the handler set. trackingHandler may be nil when the
// public tracking surface is served by a separate process.
func NewHandlers(
	st store.Store,
	sched *scheduler.Scheduler,
	disp scheduler.CampaignDispatcher,
	resolver *audience.Resolver,
	renderer *template.Renderer,
	trackingHandler *tracking.Handler,
) *Handlers {
	return &Handlers{
		store:      st,
		scheduler:  sched,
		dispatcher: disp,
		resolver:   resolver,
		renderer:   renderer,
		tracking:   trackingHandler,
		startedAt:  time.Now(),
	}
}

// HealthCheck reports liveness and uptime.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// pathID parses a UUID route parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httputil.BadRequest(w, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

// storeError maps store sentinels to HTTP statuses.
func storeError(w http.ResponseWriter, err error) {
	switch err {
	case store.ErrNotFound:
		httputil.NotFound(w, "not found")
	case store.ErrDuplicateEmail:
		httputil.Conflict(w, "email already registered")
	case store.ErrDuplicateRegistration:
		httputil.Conflict(w, "attendee already registered for this event")
	default:
		httputil.InternalError(w, err)
	}
}

// dispatchAsync runs a campaign dispatch off the request goroutine.
func (h *Handlers) dispatchAsync(campaignID uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := h.dispatcher.Dispatch(ctx, campaignID); err != nil {
			log.Printf("[API] Campaign %s dispatch failed: %v", campaignID, err)
		}
	}()
}
