// Package memory implements the Record Store contract with mutex-guarded
// maps. It is the backend used by tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eventpulse/engage/internal/domain"
	"github.com/eventpulse/engage/internal/store"
)

// Store is an in-memory implementation of store.Store. All methods copy
// values in and out so callers never share memory with the store.
type Store struct {
	mu            sync.RWMutex
	events        map[uuid.UUID]*domain.Event
	attendees     map[uuid.UUID]*domain.Attendee
	emailIndex    map[string]uuid.UUID
	registrations map[uuid.UUID]*domain.Registration
	campaigns     map[uuid.UUID]*domain.Campaign
	templates     map[uuid.UUID]*domain.Template
	sends         map[uuid.UUID]*domain.Send
	analytics     map[uuid.UUID]*domain.AnalyticsEvent
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		events:        make(map[uuid.UUID]*domain.Event),
		attendees:     make(map[uuid.UUID]*domain.Attendee),
		emailIndex:    make(map[string]uuid.UUID),
		registrations: make(map[uuid.UUID]*domain.Registration),
		campaigns:     make(map[uuid.UUID]*domain.Campaign),
		templates:     make(map[uuid.UUID]*domain.Template),
		sends:         make(map[uuid.UUID]*domain.Send),
		analytics:     make(map[uuid.UUID]*domain.AnalyticsEvent),
	}
}

var _ store.Store = (*Store)(nil)

// --- events ---

func (m *Store) CreateEvent(_ context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	cp := *e
	m.events[cp.ID] = &cp
	return nil
}

func (m *Store) GetEvent(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *Store) ListEvents(_ context.Context) ([]*domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Event, 0, len(m.events))
	for _, e := range m.events {
		cp := *e
		out = append(out, &cp)
	}
	sortByCreated(out, func(e *domain.Event) time.Time { return e.CreatedAt })
	return out, nil
}

func (m *Store) ListEventsByStatus(_ context.Context, statuses ...domain.EventStatus) ([]*domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := make(map[domain.EventStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	var out []*domain.Event
	for _, e := range m.events {
		if want[e.Status] {
			cp := *e
			out = append(out, &cp)
		}
	}
	sortByCreated(out, func(e *domain.Event) time.Time { return e.CreatedAt })
	return out, nil
}

func (m *Store) UpdateEvent(_ context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.ID]; !ok {
		return store.ErrNotFound
	}
	e.UpdatedAt = time.Now()
	cp := *e
	m.events[cp.ID] = &cp
	return nil
}

func (m *Store) DeleteEvent(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.events, id)
	return nil
}

// --- attendees ---

func (m *Store) CreateAttendee(_ context.Context, a *domain.Attendee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.Email = domain.NormalizeEmail(a.Email)
	if _, exists := m.emailIndex[a.Email]; exists {
		return store.ErrDuplicateEmail
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	cp := *a
	m.attendees[cp.ID] = &cp
	m.emailIndex[cp.Email] = cp.ID
	return nil
}

func (m *Store) GetAttendee(_ context.Context, id uuid.UUID) (*domain.Attendee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attendees[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Store) GetAttendeeByEmail(_ context.Context, email string) (*domain.Attendee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.emailIndex[domain.NormalizeEmail(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *m.attendees[id]
	return &cp, nil
}

func (m *Store) ListAttendees(_ context.Context) ([]*domain.Attendee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Attendee, 0, len(m.attendees))
	for _, a := range m.attendees {
		cp := *a
		out = append(out, &cp)
	}
	sortByCreated(out, func(a *domain.Attendee) time.Time { return a.CreatedAt })
	return out, nil
}

func (m *Store) UpdateAttendee(_ context.Context, a *domain.Attendee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.attendees[a.ID]
	if !ok {
		return store.ErrNotFound
	}
	a.Email = domain.NormalizeEmail(a.Email)
	if a.Email != prev.Email {
		if _, taken := m.emailIndex[a.Email]; taken {
			return store.ErrDuplicateEmail
		}
		delete(m.emailIndex, prev.Email)
		m.emailIndex[a.Email] = a.ID
	}
	a.UpdatedAt = time.Now()
	cp := *a
	m.attendees[cp.ID] = &cp
	return nil
}

func (m *Store) DeleteAttendee(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attendees[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(m.emailIndex, a.Email)
	delete(m.attendees, id)
	return nil
}

// --- registrations ---

func (m *Store) CreateRegistration(_ context.Context, r *domain.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.registrations {
		if existing.EventID == r.EventID && existing.AttendeeID == r.AttendeeID {
			return store.ErrDuplicateRegistration
		}
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	cp := *r
	m.registrations[cp.ID] = &cp
	return nil
}

func (m *Store) GetRegistration(_ context.Context, eventID, attendeeID uuid.UUID) (*domain.Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.registrations {
		if r.EventID == eventID && r.AttendeeID == attendeeID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Store) ListRegistrationsByEvent(_ context.Context, eventID uuid.UUID) ([]*domain.Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Registration
	for _, r := range m.registrations {
		if r.EventID == eventID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sortByCreated(out, func(r *domain.Registration) time.Time { return r.CreatedAt })
	return out, nil
}

func (m *Store) ListRegistrationsByAttendee(_ context.Context, attendeeID uuid.UUID) ([]*domain.Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Registration
	for _, r := range m.registrations {
		if r.AttendeeID == attendeeID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sortByCreated(out, func(r *domain.Registration) time.Time { return r.CreatedAt })
	return out, nil
}

func (m *Store) UpdateRegistration(_ context.Context, r *domain.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.registrations[r.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *r
	m.registrations[cp.ID] = &cp
	return nil
}

// --- campaigns ---

func (m *Store) CreateCampaign(_ context.Context, c *domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = domain.CampaignDraft
	}
	cp := *c
	m.campaigns[cp.ID] = &cp
	return nil
}

func (m *Store) GetCampaign(_ context.Context, id uuid.UUID) (*domain.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Store) ListCampaigns(_ context.Context) ([]*domain.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Campaign, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		cp := *c
		out = append(out, &cp)
	}
	sortByCreated(out, func(c *domain.Campaign) time.Time { return c.CreatedAt })
	return out, nil
}

func (m *Store) ListDueCampaigns(_ context.Context, now time.Time) ([]*domain.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Campaign
	for _, c := range m.campaigns {
		if c.Status == domain.CampaignScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(*out[j].ScheduledAt) })
	return out, nil
}

func (m *Store) UpdateCampaign(_ context.Context, c *domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[c.ID]; !ok {
		return store.ErrNotFound
	}
	c.UpdatedAt = time.Now()
	cp := *c
	m.campaigns[cp.ID] = &cp
	return nil
}

func (m *Store) UpdateCampaignStatus(_ context.Context, id uuid.UUID, status domain.CampaignStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Status = status
	if status == domain.CampaignSent {
		t := at
		c.SentAt = &t
	}
	c.UpdatedAt = time.Now()
	return nil
}

func (m *Store) DeleteCampaign(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.campaigns, id)
	return nil
}

// --- templates ---

func (m *Store) CreateTemplate(_ context.Context, t *domain.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	cp := *t
	m.templates[cp.ID] = &cp
	return nil
}

func (m *Store) GetTemplate(_ context.Context, id uuid.UUID) (*domain.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Store) ListTemplates(_ context.Context) ([]*domain.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Template, 0, len(m.templates))
	for _, t := range m.templates {
		cp := *t
		out = append(out, &cp)
	}
	sortByCreated(out, func(t *domain.Template) time.Time { return t.CreatedAt })
	return out, nil
}

func (m *Store) ActiveTemplateByType(_ context.Context, ct domain.CampaignType) (*domain.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var candidates []*domain.Template
	for _, t := range m.templates {
		if t.Active && t.Type == ct {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil, store.ErrNotFound
	}
	sortByCreated(candidates, func(t *domain.Template) time.Time { return t.CreatedAt })
	cp := *candidates[0]
	return &cp, nil
}

func (m *Store) UpdateTemplate(_ context.Context, t *domain.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[t.ID]; !ok {
		return store.ErrNotFound
	}
	t.UpdatedAt = time.Now()
	cp := *t
	m.templates[cp.ID] = &cp
	return nil
}

func (m *Store) DeleteTemplate(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.templates, id)
	return nil
}

// --- sends ---

func (m *Store) CreateSend(_ context.Context, s *domain.Send) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.SentAt.IsZero() {
		s.SentAt = time.Now()
	}
	cp := *s
	m.sends[cp.ID] = &cp
	return nil
}

func (m *Store) GetSend(_ context.Context, id uuid.UUID) (*domain.Send, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sends[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Store) ListSendsByCampaign(_ context.Context, campaignID uuid.UUID) ([]*domain.Send, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Send
	for _, s := range m.sends {
		if s.CampaignID == campaignID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sortByCreated(out, func(s *domain.Send) time.Time { return s.SentAt })
	return out, nil
}

func (m *Store) ListSendsByAttendee(_ context.Context, attendeeID uuid.UUID) ([]*domain.Send, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Send
	for _, s := range m.sends {
		if s.AttendeeID == attendeeID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sortByCreated(out, func(s *domain.Send) time.Time { return s.SentAt })
	return out, nil
}

func (m *Store) MarkSendOpened(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sends[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if s.OpenedAt != nil {
		return false, nil
	}
	t := at
	s.OpenedAt = &t
	return true, nil
}

func (m *Store) MarkSendClicked(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sends[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if s.ClickedAt != nil {
		return false, nil
	}
	t := at
	s.ClickedAt = &t
	return true, nil
}

// --- analytics ---

func (m *Store) CreateAnalyticsEvent(_ context.Context, ev *domain.AnalyticsEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	cp := *ev
	m.analytics[cp.ID] = &cp
	return nil
}

func (m *Store) ListAnalyticsEvents(_ context.Context) ([]*domain.AnalyticsEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.AnalyticsEvent, 0, len(m.analytics))
	for _, ev := range m.analytics {
		cp := *ev
		out = append(out, &cp)
	}
	sortByCreated(out, func(ev *domain.AnalyticsEvent) time.Time { return ev.CreatedAt })
	return out, nil
}

func (m *Store) ListAnalyticsByAttendeeSince(_ context.Context, attendeeID uuid.UUID, since time.Time) ([]*domain.AnalyticsEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.AnalyticsEvent
	for _, ev := range m.analytics {
		if ev.AttendeeID != nil && *ev.AttendeeID == attendeeID && !ev.CreatedAt.Before(since) {
			cp := *ev
			out = append(out, &cp)
		}
	}
	sortByCreated(out, func(ev *domain.AnalyticsEvent) time.Time { return ev.CreatedAt })
	return out, nil
}

func (m *Store) DeleteAnalyticsOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, ev := range m.analytics {
		if ev.CreatedAt.Before(cutoff) {
			delete(m.analytics, id)
			removed++
		}
	}
	return removed, nil
}

// sortByCreated orders a slice by timestamp so listings are deterministic.
func sortByCreated[T any](items []*T, ts func(*T) time.Time) {
	sort.Slice(items, func(i, j int) bool { return ts(items[i]).Before(ts(items[j])) })
}
