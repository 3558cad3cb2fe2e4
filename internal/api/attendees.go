package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/eventpulse/engage/internal/domain"
	"github.com/eventpulse/engage/internal/pkg/httputil"
)

type attendeeRequest struct {
	Email     string   `json:"email"`
	Name      string   `json:"name"`
	Company   string   `json:"company"`
	JobTitle  string   `json:"job_title"`
	Interests []string `json:"interests"`
}

func (h *Handlers) CreateAttendee(w http.ResponseWriter, r *http.Request) {
	var req attendeeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		httputil.BadRequest(w, "email is required")
		return
	}

	a := &domain.Attendee{
		ID:        uuid.New(),
		Email:     domain.NormalizeEmail(req.Email),
		Name:      req.Name,
		Company:   req.Company,
		JobTitle:  req.JobTitle,
		Interests: req.Interests,
	}
	if err := h.store.CreateAttendee(r.Context(), a); err != nil {
		storeError(w, err)
		return
	}
	httputil.Created(w, a)
}

func (h *Handlers) GetAttendee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	a, err := h.store.GetAttendee(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, a)
}

func (h *Handlers) ListAttendees(w http.ResponseWriter, r *http.Request) {
	attendees, err := h.store.ListAttendees(r.Context())
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, attendees)
}

func (h *Handlers) UpdateAttendee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	a, err := h.store.GetAttendee(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}

	var req attendeeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Email != "" {
		a.Email = domain.NormalizeEmail(req.Email)
	}
	a.Name = req.Name
	a.Company = req.Company
	a.JobTitle = req.JobTitle
	a.Interests = req.Interests

	if err := h.store.UpdateAttendee(r.Context(), a); err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, a)
}

func (h *Handlers) DeleteAttendee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteAttendee(r.Context(), id); err != nil {
		storeError(w, err)
		return
	}
	httputil.NoContent(w)
}

// AttendeeActivity returns an attendee's recent analytics trail, newest
// first, for the engagement drill-down view.
func (h *Handlers) AttendeeActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.store.GetAttendee(r.Context(), id); err != nil {
		storeError(w, err)
		return
	}
	events, err := h.store.ListAnalyticsByAttendeeSince(r.Context(), id, time.Time{})
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, events)
}
