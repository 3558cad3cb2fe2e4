package api

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/eventpulse/engage/internal/domain"
	"github.com/eventpulse/engage/internal/pkg/httputil"
	"github.com/eventpulse/engage/internal/store"
)

type eventRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Timezone    string     `json:"timezone"`
	Capacity    *int       `json:"capacity"`
	Public      bool       `json:"public"`
	Status      string     `json:"status"`
	Tags        []string   `json:"tags"`
}

func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Title == "" || req.StartTime.IsZero() {
		httputil.BadRequest(w, "title and start_time are required")
		return
	}

	status := domain.EventStatus(req.Status)
	if status == "" {
		status = domain.EventDraft
	}
	e := &domain.Event{
		ID:          uuid.New(),
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Timezone:    req.Timezone,
		Capacity:    req.Capacity,
		Public:      req.Public,
		Status:      status,
		Tags:        req.Tags,
	}
	if err := h.store.CreateEvent(r.Context(), e); err != nil {
		storeError(w, err)
		return
	}
	httputil.Created(w, e)
}

func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	e, err := h.store.GetEvent(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, e)
}

func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.ListEvents(r.Context())
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, events)
}

func (h *Handlers) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	e, err := h.store.GetEvent(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}

	var req eventRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	e.Title = req.Title
	e.Description = req.Description
	e.Location = req.Location
	e.StartTime = req.StartTime
	e.EndTime = req.EndTime
	e.Timezone = req.Timezone
	e.Capacity = req.Capacity
	e.Public = req.Public
	if req.Status != "" {
		e.Status = domain.EventStatus(req.Status)
	}
	e.Tags = req.Tags

	if err := h.store.UpdateEvent(r.Context(), e); err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, e)
}

func (h *Handlers) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteEvent(r.Context(), id); err != nil {
		storeError(w, err)
		return
	}
	httputil.NoContent(w)
}

type registrationRequest struct {
	AttendeeID uuid.UUID `json:"attendee_id"`
}

// RegisterAttendee creates a registration for the event. The (event,
// attendee) pair is checked first so a repeat registration comes back as
// a 409 instead of a second row.
func (h *Handlers) RegisterAttendee(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req registrationRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.AttendeeID == uuid.Nil {
		httputil.BadRequest(w, "attendee_id is required")
		return
	}

	if _, err := h.store.GetEvent(r.Context(), eventID); err != nil {
		storeError(w, err)
		return
	}
	if _, err := h.store.GetAttendee(r.Context(), req.AttendeeID); err != nil {
		storeError(w, err)
		return
	}

	if _, err := h.store.GetRegistration(r.Context(), eventID, req.AttendeeID); err == nil {
		httputil.Conflict(w, "attendee already registered for this event")
		return
	} else if err != store.ErrNotFound {
		storeError(w, err)
		return
	}

	reg := &domain.Registration{
		ID:         uuid.New(),
		EventID:    eventID,
		AttendeeID: req.AttendeeID,
	}
	if err := h.store.CreateRegistration(r.Context(), reg); err != nil {
		storeError(w, err)
		return
	}

	ev := &domain.AnalyticsEvent{
		ID:         uuid.New(),
		Type:       domain.AnalyticsRegistration,
		AttendeeID: &req.AttendeeID,
		EventID:    &eventID,
		CreatedAt:  time.Now(),
	}
	if err := h.store.CreateAnalyticsEvent(r.Context(), ev); err != nil {
		// The registration stands even if the analytics write fails.
		log.Printf("[API] Registration analytics for attendee %s failed: %v", req.AttendeeID, err)
	}
	httputil.Created(w, reg)
}

func (h *Handlers) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	regs, err := h.store.ListRegistrationsByEvent(r.Context(), eventID)
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, regs)
}

type attendanceRequest struct {
	AttendeeID      uuid.UUID `json:"attendee_id"`
	DurationMinutes *int      `json:"duration_minutes"`
	Feedback        string    `json:"feedback"`
}

// MarkAttendance flags a registration as attended and records the
// attendance analytics event. Marking twice only updates the details.
func (h *Handlers) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req attendanceRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	reg, err := h.store.GetRegistration(r.Context(), eventID, req.AttendeeID)
	if err != nil {
		storeError(w, err)
		return
	}

	first := !reg.Attended
	now := time.Now()
	reg.Attended = true
	reg.DurationMinutes = req.DurationMinutes
	if req.Feedback != "" {
		reg.Feedback = req.Feedback
	}
	if reg.AttendedAt == nil {
		reg.AttendedAt = &now
	}
	if err := h.store.UpdateRegistration(r.Context(), reg); err != nil {
		storeError(w, err)
		return
	}

	if first {
		ev := &domain.AnalyticsEvent{
			ID:         uuid.New(),
			Type:       domain.AnalyticsAttendance,
			AttendeeID: &req.AttendeeID,
			EventID:    &eventID,
			CreatedAt:  now,
		}
		if err := h.store.CreateAnalyticsEvent(r.Context(), ev); err != nil {
			storeError(w, err)
			return
		}
	}
	httputil.OK(w, reg)
}
