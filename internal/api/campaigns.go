package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/eventpulse/engage/internal/domain"
	"github.com/eventpulse/engage/internal/pkg/httputil"
)

type campaignRequest struct {
	Name       string           `json:"name"`
	Type       string           `json:"type"`
	EventID    *uuid.UUID       `json:"event_id"`
	TemplateID *uuid.UUID       `json:"template_id"`
	Subject    string           `json:"subject"`
	Body       string           `json:"body"`
	Targeting  domain.Targeting `json:"targeting"`
}

func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}
	if req.TemplateID == nil && (req.Subject == "" || req.Body == "") {
		httputil.BadRequest(w, "subject and body are required without a template")
		return
	}
	if req.EventID != nil {
		if _, err := h.store.GetEvent(r.Context(), *req.EventID); err != nil {
			storeError(w, err)
			return
		}
	}
	if req.TemplateID != nil {
		if _, err := h.store.GetTemplate(r.Context(), *req.TemplateID); err != nil {
			storeError(w, err)
			return
		}
	}

	c := &domain.Campaign{
		ID:         uuid.New(),
		Name:       req.Name,
		Type:       domain.CampaignType(req.Type),
		EventID:    req.EventID,
		TemplateID: req.TemplateID,
		Subject:    req.Subject,
		Body:       req.Body,
		Status:     domain.CampaignDraft,
		Targeting:  req.Targeting,
	}
	if err := h.store.CreateCampaign(r.Context(), c); err != nil {
		storeError(w, err)
		return
	}
	httputil.Created(w, c)
}

func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.store.GetCampaign(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.store.ListCampaigns(r.Context())
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, campaigns)
}

func (h *Handlers) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.store.GetCampaign(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	if c.IsTerminal() {
		httputil.Conflict(w, "campaign is "+string(c.Status))
		return
	}

	var req campaignRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	c.Name = req.Name
	c.Type = domain.CampaignType(req.Type)
	c.EventID = req.EventID
	c.TemplateID = req.TemplateID
	c.Subject = req.Subject
	c.Body = req.Body
	c.Targeting = req.Targeting

	if err := h.store.UpdateCampaign(r.Context(), c); err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.scheduler.CancelCampaign(id)
	if err := h.store.DeleteCampaign(r.Context(), id); err != nil {
		storeError(w, err)
		return
	}
	httputil.NoContent(w)
}

type scheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}

// ScheduleCampaign moves a draft or already-scheduled campaign to
// scheduled at the requested time and arms the one-shot timer.
// Re-scheduling replaces the previous time.
func (h *Handlers) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req scheduleRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.ScheduledAt.IsZero() {
		httputil.BadRequest(w, "scheduled_at is required")
		return
	}

	c, err := h.store.GetCampaign(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	if c.Status != domain.CampaignDraft && c.Status != domain.CampaignScheduled {
		httputil.Conflict(w, "campaign is "+string(c.Status))
		return
	}

	c.Status = domain.CampaignScheduled
	c.ScheduledAt = &req.ScheduledAt
	if err := h.store.UpdateCampaign(r.Context(), c); err != nil {
		storeError(w, err)
		return
	}
	h.scheduler.ScheduleCampaign(id, req.ScheduledAt)
	httputil.OK(w, c)
}

// CancelCampaign cancels a draft or scheduled campaign and disarms any
// pending timer. Cancelling a campaign with no timer is a no-op on the
// timer side.
func (h *Handlers) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.store.GetCampaign(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	if c.IsTerminal() {
		httputil.Conflict(w, "campaign is "+string(c.Status))
		return
	}

	h.scheduler.CancelCampaign(id)
	if err := h.store.UpdateCampaignStatus(r.Context(), id, domain.CampaignCancelled, time.Now()); err != nil {
		storeError(w, err)
		return
	}
	c.Status = domain.CampaignCancelled
	httputil.OK(w, c)
}

// SendCampaign dispatches a campaign immediately. The status flips to
// sending before the work starts and the dispatch runs in the background;
// the client gets a 202 and polls the campaign for the final state.
func (h *Handlers) SendCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.store.GetCampaign(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	if c.Status != domain.CampaignDraft && c.Status != domain.CampaignScheduled {
		httputil.Conflict(w, "campaign is "+string(c.Status))
		return
	}

	h.scheduler.CancelCampaign(id)
	if err := h.store.UpdateCampaignStatus(r.Context(), id, domain.CampaignSending, time.Now()); err != nil {
		storeError(w, err)
		return
	}
	h.dispatchAsync(id)
	httputil.JSON(w, http.StatusAccepted, map[string]string{"status": string(domain.CampaignSending)})
}

// PreviewAudience resolves the campaign's targeting without sending and
// returns the matching attendees.
func (h *Handlers) PreviewAudience(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.store.GetCampaign(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	attendees, err := h.resolver.Resolve(r.Context(), c)
	if err != nil {
		storeError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"count":     len(attendees),
		"attendees": attendees,
	})
}

// CampaignStats summarizes the delivery and engagement counters for a
// campaign from its send records.
func (h *Handlers) CampaignStats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.store.GetCampaign(r.Context(), id); err != nil {
		storeError(w, err)
		return
	}
	sends, err := h.store.ListSendsByCampaign(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}

	var opened, clicked, bounced int
	for _, s := range sends {
		if s.OpenedAt != nil {
			opened++
		}
		if s.ClickedAt != nil {
			clicked++
		}
		if s.Bounced {
			bounced++
		}
	}
	httputil.OK(w, map[string]int{
		"sent":    len(sends),
		"opened":  opened,
		"clicked": clicked,
		"bounced": bounced,
	})
}
