package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/eventpulse/engage/internal/domain"
	"github.com/eventpulse/engage/internal/pkg/httputil"
)

type templateRequest struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	Variables []string `json:"variables"`
	Active    *bool    `json:"active"`
}

// validateTemplate runs syntax validation over the subject and body so a
// broken template is rejected at write time, not at send time.
func (h *Handlers) validateTemplate(w http.ResponseWriter, subject, body string) bool {
	if err := h.renderer.Validate(subject); err != nil {
		httputil.BadRequest(w, "invalid subject template: "+err.Error())
		return false
	}
	if err := h.renderer.Validate(body); err != nil {
		httputil.BadRequest(w, "invalid body template: "+err.Error())
		return false
	}
	return true
}

func (h *Handlers) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.Subject == "" || req.Body == "" {
		httputil.BadRequest(w, "name, subject and body are required")
		return
	}
	if !h.validateTemplate(w, req.Subject, req.Body) {
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	t := &domain.Template{
		ID:        uuid.New(),
		Name:      req.Name,
		Type:      domain.CampaignType(req.Type),
		Subject:   req.Subject,
		Body:      req.Body,
		Variables: req.Variables,
		Active:    active,
	}
	if err := h.store.CreateTemplate(r.Context(), t); err != nil {
		storeError(w, err)
		return
	}
	httputil.Created(w, t)
}

func (h *Handlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.store.GetTemplate(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, t)
}

func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.store.ListTemplates(r.Context())
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, templates)
}

func (h *Handlers) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.store.GetTemplate(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}

	var req templateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if !h.validateTemplate(w, req.Subject, req.Body) {
		return
	}
	t.Name = req.Name
	t.Type = domain.CampaignType(req.Type)
	t.Subject = req.Subject
	t.Body = req.Body
	t.Variables = req.Variables
	if req.Active != nil {
		t.Active = *req.Active
	}

	if err := h.store.UpdateTemplate(r.Context(), t); err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, t)
}

func (h *Handlers) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteTemplate(r.Context(), id); err != nil {
		storeError(w, err)
		return
	}
	httputil.NoContent(w)
}
