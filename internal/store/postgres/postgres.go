// Package postgres implements the Record Store contract on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/eventpulse/engage/internal/domain"
	"github.com/eventpulse/engage/internal/store"
)

// Store provides database operations for engagement entities.
type Store struct {
	db *sql.DB
}

// New creates a postgres-backed store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ store.Store = (*Store)(nil)

// isUniqueViolation reports whether err is a postgres unique constraint error.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

// --- events ---

func (s *Store) CreateEvent(ctx context.Context, e *domain.Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	query := `INSERT INTO events (id, title, description, location, start_time, end_time,
		timezone, capacity, public, status, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.db.ExecContext(ctx, query, e.ID, e.Title, e.Description, e.Location,
		e.StartTime, e.EndTime, e.Timezone, e.Capacity, e.Public, e.Status,
		pq.Array(e.Tags), e.CreatedAt, e.UpdatedAt)
	return err
}

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	query := `SELECT id, title, description, location, start_time, end_time, timezone,
		capacity, public, status, tags, created_at, updated_at
		FROM events WHERE id = $1`

	e := &domain.Event{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.Title, &e.Description, &e.Location, &e.StartTime, &e.EndTime,
		&e.Timezone, &e.Capacity, &e.Public, &e.Status, pq.Array(&e.Tags),
		&e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	return e, err
}

func (s *Store) ListEvents(ctx context.Context) ([]*domain.Event, error) {
	query := `SELECT id, title, description, location, start_time, end_time, timezone,
		capacity, public, status, tags, created_at, updated_at
		FROM events ORDER BY created_at`
	return s.queryEvents(ctx, query)
}

func (s *Store) ListEventsByStatus(ctx context.Context, statuses ...domain.EventStatus) ([]*domain.Event, error) {
	strs := make([]string, len(statuses))
	for i, st := range statuses {
		strs[i] = string(st)
	}
	query := `SELECT id, title, description, location, start_time, end_time, timezone,
		capacity, public, status, tags, created_at, updated_at
		FROM events WHERE status = ANY($1) ORDER BY created_at`
	return s.queryEvents(ctx, query, pq.Array(strs))
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...interface{}) ([]*domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		e := &domain.Event{}
		err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.StartTime,
			&e.EndTime, &e.Timezone, &e.Capacity, &e.Public, &e.Status,
			pq.Array(&e.Tags), &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) UpdateEvent(ctx context.Context, e *domain.Event) error {
	e.UpdatedAt = time.Now()
	query := `UPDATE events SET title = $2, description = $3, location = $4, start_time = $5,
		end_time = $6, timezone = $7, capacity = $8, public = $9, status = $10, tags = $11,
		updated_at = $12 WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, e.ID, e.Title, e.Description, e.Location,
		e.StartTime, e.EndTime, e.Timezone, e.Capacity, e.Public, e.Status,
		pq.Array(e.Tags), e.UpdatedAt)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *Store) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// --- attendees ---

func (s *Store) CreateAttendee(ctx context.Context, a *domain.Attendee) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Email = domain.NormalizeEmail(a.Email)
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	query := `INSERT INTO attendees (id, email, name, company, job_title, interests,
		engagement_score, last_activity_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, query, a.ID, a.Email, a.Name, a.Company, a.JobTitle,
		pq.Array(a.Interests), a.EngagementScore, a.LastActivityAt, a.CreatedAt, a.UpdatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrDuplicateEmail
	}
	return err
}

func (s *Store) GetAttendee(ctx context.Context, id uuid.UUID) (*domain.Attendee, error) {
	return s.getAttendee(ctx, `WHERE id = $1`, id)
}

func (s *Store) GetAttendeeByEmail(ctx context.Context, email string) (*domain.Attendee, error) {
	return s.getAttendee(ctx, `WHERE email = $1`, domain.NormalizeEmail(email))
}

func (s *Store) getAttendee(ctx context.Context, where string, arg interface{}) (*domain.Attendee, error) {
	query := `SELECT id, email, name, company, job_title, interests, engagement_score,
		last_activity_at, created_at, updated_at FROM attendees ` + where

	a := &domain.Attendee{}
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.Email, &a.Name, &a.Company, &a.JobTitle, pq.Array(&a.Interests),
		&a.EngagementScore, &a.LastActivityAt, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	return a, err
}

func (s *Store) ListAttendees(ctx context.Context) ([]*domain.Attendee, error) {
	query := `SELECT id, email, name, company, job_title, interests, engagement_score,
		last_activity_at, created_at, updated_at FROM attendees ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attendees []*domain.Attendee
	for rows.Next() {
		a := &domain.Attendee{}
		err := rows.Scan(&a.ID, &a.Email, &a.Name, &a.Company, &a.JobTitle,
			pq.Array(&a.Interests), &a.EngagementScore, &a.LastActivityAt,
			&a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, err
		}
		attendees = append(attendees, a)
	}
	return attendees, rows.Err()
}

func (s *Store) UpdateAttendee(ctx context.Context, a *domain.Attendee) error {
	a.Email = domain.NormalizeEmail(a.Email)
	a.UpdatedAt = time.Now()
	query := `UPDATE attendees SET email = $2, name = $3, company = $4, job_title = $5,
		interests = $6, engagement_score = $7, last_activity_at = $8, updated_at = $9
		WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, a.ID, a.Email, a.Name, a.Company, a.JobTitle,
		pq.Array(a.Interests), a.EngagementScore, a.LastActivityAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateEmail
		}
		return err
	}
	return checkAffected(res)
}

func (s *Store) DeleteAttendee(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM attendees WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// --- registrations ---

func (s *Store) CreateRegistration(ctx context.Context, r *domain.Registration) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	query := `INSERT INTO registrations (id, event_id, attendee_id, attended,
		duration_minutes, feedback, created_at, attended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query, r.ID, r.EventID, r.AttendeeID, r.Attended,
		r.DurationMinutes, r.Feedback, r.CreatedAt, r.AttendedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrDuplicateRegistration
	}
	return err
}

func (s *Store) GetRegistration(ctx context.Context, eventID, attendeeID uuid.UUID) (*domain.Registration, error) {
	query := `SELECT id, event_id, attendee_id, attended, duration_minutes, feedback,
		created_at, attended_at FROM registrations WHERE event_id = $1 AND attendee_id = $2`

	r := &domain.Registration{}
	err := s.db.QueryRowContext(ctx, query, eventID, attendeeID).Scan(
		&r.ID, &r.EventID, &r.AttendeeID, &r.Attended, &r.DurationMinutes,
		&r.Feedback, &r.CreatedAt, &r.AttendedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	return r, err
}

func (s *Store) ListRegistrationsByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.Registration, error) {
	return s.queryRegistrations(ctx, `WHERE event_id = $1`, eventID)
}

func (s *Store) ListRegistrationsByAttendee(ctx context.Context, attendeeID uuid.UUID) ([]*domain.Registration, error) {
	return s.queryRegistrations(ctx, `WHERE attendee_id = $1`, attendeeID)
}

func (s *Store) queryRegistrations(ctx context.Context, where string, arg interface{}) ([]*domain.Registration, error) {
	query := `SELECT id, event_id, attendee_id, attended, duration_minutes, feedback,
		created_at, attended_at FROM registrations ` + where + ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []*domain.Registration
	for rows.Next() {
		r := &domain.Registration{}
		err := rows.Scan(&r.ID, &r.EventID, &r.AttendeeID, &r.Attended,
			&r.DurationMinutes, &r.Feedback, &r.CreatedAt, &r.AttendedAt)
		if err != nil {
			return nil, err
		}
		regs = append(regs, r)
	}
	return regs, rows.Err()
}

func (s *Store) UpdateRegistration(ctx context.Context, r *domain.Registration) error {
	query := `UPDATE registrations SET attended = $2, duration_minutes = $3, feedback = $4,
		attended_at = $5 WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, r.ID, r.Attended, r.DurationMinutes,
		r.Feedback, r.AttendedAt)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// --- campaigns ---

func (s *Store) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
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

	query := `INSERT INTO campaigns (id, name, type, event_id, template_id, subject, body,
		status, scheduled_at, sent_at, target_interests, target_min_score, target_max_score,
		target_attendance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := s.db.ExecContext(ctx, query, c.ID, c.Name, c.Type, c.EventID, c.TemplateID,
		c.Subject, c.Body, c.Status, c.ScheduledAt, c.SentAt,
		pq.Array(c.Targeting.Interests), c.Targeting.MinScore, c.Targeting.MaxScore,
		c.Targeting.Attendance, c.CreatedAt, c.UpdatedAt)
	return err
}

const campaignColumns = `id, name, type, event_id, template_id, subject, body, status,
	scheduled_at, sent_at, target_interests, target_min_score, target_max_score,
	target_attendance, created_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := row.Scan(&c.ID, &c.Name, &c.Type, &c.EventID, &c.TemplateID, &c.Subject,
		&c.Body, &c.Status, &c.ScheduledAt, &c.SentAt, pq.Array(&c.Targeting.Interests),
		&c.Targeting.MinScore, &c.Targeting.MaxScore, &c.Targeting.Attendance,
		&c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *Store) GetCampaign(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) ListCampaigns(ctx context.Context) ([]*domain.Campaign, error) {
	return s.queryCampaigns(ctx, `SELECT `+campaignColumns+` FROM campaigns ORDER BY created_at`)
}

func (s *Store) ListDueCampaigns(ctx context.Context, now time.Time) ([]*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns
		WHERE status = $1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2
		ORDER BY scheduled_at`
	return s.queryCampaigns(ctx, query, domain.CampaignScheduled, now)
}

func (s *Store) queryCampaigns(ctx context.Context, query string, args ...interface{}) ([]*domain.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []*domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (s *Store) UpdateCampaign(ctx context.Context, c *domain.Campaign) error {
	c.UpdatedAt = time.Now()
	query := `UPDATE campaigns SET name = $2, type = $3, event_id = $4, template_id = $5,
		subject = $6, body = $7, status = $8, scheduled_at = $9, sent_at = $10,
		target_interests = $11, target_min_score = $12, target_max_score = $13,
		target_attendance = $14, updated_at = $15 WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, c.ID, c.Name, c.Type, c.EventID, c.TemplateID,
		c.Subject, c.Body, c.Status, c.ScheduledAt, c.SentAt,
		pq.Array(c.Targeting.Interests), c.Targeting.MinScore, c.Targeting.MaxScore,
		c.Targeting.Attendance, c.UpdatedAt)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *Store) UpdateCampaignStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus, at time.Time) error {
	query := `UPDATE campaigns SET status = $2, updated_at = NOW()`
	args := []interface{}{id, status}
	if status == domain.CampaignSent {
		query += `, sent_at = $3`
		args = append(args, at)
	}
	query += ` WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *Store) DeleteCampaign(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// --- templates ---

func (s *Store) CreateTemplate(ctx context.Context, t *domain.Template) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	query := `INSERT INTO templates (id, name, type, subject, body, variables, active,
		created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query, t.ID, t.Name, t.Type, t.Subject, t.Body,
		pq.Array(t.Variables), t.Active, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *Store) GetTemplate(ctx context.Context, id uuid.UUID) (*domain.Template, error) {
	query := `SELECT id, name, type, subject, body, variables, active, created_at, updated_at
		FROM templates WHERE id = $1`

	t := &domain.Template{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Name, &t.Type, &t.Subject,
		&t.Body, pq.Array(&t.Variables), &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	return t, err
}

func (s *Store) ListTemplates(ctx context.Context) ([]*domain.Template, error) {
	query := `SELECT id, name, type, subject, body, variables, active, created_at, updated_at
		FROM templates ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*domain.Template
	for rows.Next() {
		t := &domain.Template{}
		err := rows.Scan(&t.ID, &t.Name, &t.Type, &t.Subject, &t.Body,
			pq.Array(&t.Variables), &t.Active, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (s *Store) ActiveTemplateByType(ctx context.Context, ct domain.CampaignType) (*domain.Template, error) {
	query := `SELECT id, name, type, subject, body, variables, active, created_at, updated_at
		FROM templates WHERE type = $1 AND active = true ORDER BY created_at LIMIT 1`

	t := &domain.Template{}
	err := s.db.QueryRowContext(ctx, query, ct).Scan(&t.ID, &t.Name, &t.Type, &t.Subject,
		&t.Body, pq.Array(&t.Variables), &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	return t, err
}

func (s *Store) UpdateTemplate(ctx context.Context, t *domain.Template) error {
	t.UpdatedAt = time.Now()
	query := `UPDATE templates SET name = $2, type = $3, subject = $4, body = $5,
		variables = $6, active = $7, updated_at = $8 WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, t.ID, t.Name, t.Type, t.Subject, t.Body,
		pq.Array(t.Variables), t.Active, t.UpdatedAt)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *Store) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// --- sends ---

func (s *Store) CreateSend(ctx context.Context, snd *domain.Send) error {
	if snd.ID == uuid.Nil {
		snd.ID = uuid.New()
	}
	if snd.SentAt.IsZero() {
		snd.SentAt = time.Now()
	}

	query := `INSERT INTO sends (id, campaign_id, attendee_id, sent_at, opened_at,
		clicked_at, bounced, unsubscribed) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query, snd.ID, snd.CampaignID, snd.AttendeeID,
		snd.SentAt, snd.OpenedAt, snd.ClickedAt, snd.Bounced, snd.Unsubscribed)
	return err
}

func (s *Store) GetSend(ctx context.Context, id uuid.UUID) (*domain.Send, error) {
	query := `SELECT id, campaign_id, attendee_id, sent_at, opened_at, clicked_at,
		bounced, unsubscribed FROM sends WHERE id = $1`

	snd := &domain.Send{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(&snd.ID, &snd.CampaignID,
		&snd.AttendeeID, &snd.SentAt, &snd.OpenedAt, &snd.ClickedAt,
		&snd.Bounced, &snd.Unsubscribed)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	return snd, err
}

func (s *Store) ListSendsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*domain.Send, error) {
	return s.querySends(ctx, `WHERE campaign_id = $1`, campaignID)
}

func (s *Store) ListSendsByAttendee(ctx context.Context, attendeeID uuid.UUID) ([]*domain.Send, error) {
	return s.querySends(ctx, `WHERE attendee_id = $1`, attendeeID)
}

func (s *Store) querySends(ctx context.Context, where string, arg interface{}) ([]*domain.Send, error) {
	query := `SELECT id, campaign_id, attendee_id, sent_at, opened_at, clicked_at,
		bounced, unsubscribed FROM sends ` + where + ` ORDER BY sent_at`

	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sends []*domain.Send
	for rows.Next() {
		snd := &domain.Send{}
		err := rows.Scan(&snd.ID, &snd.CampaignID, &snd.AttendeeID, &snd.SentAt,
			&snd.OpenedAt, &snd.ClickedAt, &snd.Bounced, &snd.Unsubscribed)
		if err != nil {
			return nil, err
		}
		sends = append(sends, snd)
	}
	return sends, rows.Err()
}

func (s *Store) MarkSendOpened(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return s.markSendTimestamp(ctx, `opened_at`, id, at)
}

func (s *Store) MarkSendClicked(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return s.markSendTimestamp(ctx, `clicked_at`, id, at)
}

// markSendTimestamp sets a tracking timestamp only when currently NULL.
// Returns true when this call performed the unset-to-set transition.
func (s *Store) markSendTimestamp(ctx context.Context, column string, id uuid.UUID, at time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE sends SET %s = $2 WHERE id = $1 AND %s IS NULL`, column, column)
	res, err := s.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	// No transition: distinguish already-set from missing.
	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM sends WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, store.ErrNotFound
	}
	return false, nil
}

// --- analytics ---

func (s *Store) CreateAnalyticsEvent(ctx context.Context, ev *domain.AnalyticsEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	meta, err := json.Marshal(ev.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO analytics_events (id, type, attendee_id, event_id, campaign_id,
		metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = s.db.ExecContext(ctx, query, ev.ID, ev.Type, ev.AttendeeID, ev.EventID,
		ev.CampaignID, meta, ev.CreatedAt)
	return err
}

func (s *Store) ListAnalyticsEvents(ctx context.Context) ([]*domain.AnalyticsEvent, error) {
	query := `SELECT id, type, attendee_id, event_id, campaign_id, metadata, created_at
		FROM analytics_events ORDER BY created_at`
	return s.queryAnalytics(ctx, query)
}

func (s *Store) ListAnalyticsByAttendeeSince(ctx context.Context, attendeeID uuid.UUID, since time.Time) ([]*domain.AnalyticsEvent, error) {
	query := `SELECT id, type, attendee_id, event_id, campaign_id, metadata, created_at
		FROM analytics_events WHERE attendee_id = $1 AND created_at >= $2 ORDER BY created_at`
	return s.queryAnalytics(ctx, query, attendeeID, since)
}

func (s *Store) queryAnalytics(ctx context.Context, query string, args ...interface{}) ([]*domain.AnalyticsEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.AnalyticsEvent
	for rows.Next() {
		ev := &domain.AnalyticsEvent{}
		var meta []byte
		err := rows.Scan(&ev.ID, &ev.Type, &ev.AttendeeID, &ev.EventID, &ev.CampaignID,
			&meta, &ev.CreatedAt)
		if err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &ev.Metadata); err != nil {
				return nil, err
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *Store) DeleteAnalyticsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analytics_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
