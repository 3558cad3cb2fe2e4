package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/eventpulse/engage/internal/domain"
	"github.com/eventpulse/engage/internal/store"
)

func TestAttendeeEmailDedup(t *testing.T) {
	st := New()
	ctx := context.Background()

	first := &domain.Attendee{Email: "Jane@Example.com"}
	require.NoError(t, st.CreateAttendee(ctx, first))
	require.Equal(t, "jane@example.com", first.Email, "email is normalized on write")

	dup := &domain.Attendee{Email: "  jane@example.COM "}
	require.ErrorIs(t, st.CreateAttendee(ctx, dup), store.ErrDuplicateEmail)

	got, err := st.GetAttendeeByEmail(ctx, "JANE@example.com")
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)
}

func TestUpdateAttendeeEmailCollision(t *testing.T) {
	st := New()
	ctx := context.Background()

	a := &domain.Attendee{Email: "a@example.com"}
	b := &domain.Attendee{Email: "b@example.com"}
	require.NoError(t, st.CreateAttendee(ctx, a))
	require.NoError(t, st.CreateAttendee(ctx, b))

	b.Email = "a@example.com"
	require.ErrorIs(t, st.UpdateAttendee(ctx, b), store.ErrDuplicateEmail)
}

func TestCreateRegistrationRejectsDuplicatePair(t *testing.T) {
	st := New()
	ctx := context.Background()
	eventID, attendeeID := uuid.New(), uuid.New()

	require.NoError(t, st.CreateRegistration(ctx, &domain.Registration{
		EventID:    eventID,
		AttendeeID: attendeeID,
	}))

	err := st.CreateRegistration(ctx, &domain.Registration{
		EventID:    eventID,
		AttendeeID: attendeeID,
	})
	require.ErrorIs(t, err, store.ErrDuplicateRegistration)

	// Same attendee on a different event is fine.
	require.NoError(t, st.CreateRegistration(ctx, &domain.Registration{
		EventID:    uuid.New(),
		AttendeeID: attendeeID,
	}))

	regs, err := st.ListRegistrationsByAttendee(ctx, attendeeID)
	require.NoError(t, err)
	require.Len(t, regs, 2)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	st := New()
	ctx := context.Background()
	id := uuid.New()

	_, err := st.GetEvent(ctx, id)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetAttendee(ctx, id)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetCampaign(ctx, id)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetSend(ctx, id)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetRegistration(ctx, id, id)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListDueCampaigns(t *testing.T) {
	st := New()
	ctx := context.Background()
	now := time.Now()

	past := now.Add(-time.Hour)
	exact := now
	future := now.Add(time.Hour)

	mk := func(name string, status domain.CampaignStatus, at *time.Time) *domain.Campaign {
		c := &domain.Campaign{Name: name, Status: status, ScheduledAt: at}
		require.NoError(t, st.CreateCampaign(ctx, c))
		return c
	}
	due := mk("past", domain.CampaignScheduled, &past)
	onTime := mk("exact", domain.CampaignScheduled, &exact)
	mk("future", domain.CampaignScheduled, &future)
	mk("draft", domain.CampaignDraft, &past)
	mk("sent", domain.CampaignSent, &past)
	mk("no schedule", domain.CampaignScheduled, nil)

	got, err := st.ListDueCampaigns(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 2, "due means scheduled with scheduled_at at or before now")
	require.Equal(t, due.ID, got[0].ID, "ordered by scheduled_at")
	require.Equal(t, onTime.ID, got[1].ID)
}

func TestUpdateCampaignStatusStampsSentAt(t *testing.T) {
	st := New()
	ctx := context.Background()
	c := &domain.Campaign{Name: "c", Status: domain.CampaignSending}
	require.NoError(t, st.CreateCampaign(ctx, c))

	at := time.Now()
	require.NoError(t, st.UpdateCampaignStatus(ctx, c.ID, domain.CampaignSent, at))

	got, err := st.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, domain.CampaignSent, got.Status)
	require.NotNil(t, got.SentAt)
	require.True(t, got.SentAt.Equal(at))
}

func TestUpdateCampaignStatusNonSentLeavesSentAtNil(t *testing.T) {
	st := New()
	ctx := context.Background()
	c := &domain.Campaign{Name: "c", Status: domain.CampaignScheduled}
	require.NoError(t, st.CreateCampaign(ctx, c))

	require.NoError(t, st.UpdateCampaignStatus(ctx, c.ID, domain.CampaignSending, time.Now()))

	got, err := st.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	require.Nil(t, got.SentAt)
}

func TestActiveTemplateByType(t *testing.T) {
	st := New()
	ctx := context.Background()

	require.NoError(t, st.CreateTemplate(ctx, &domain.Template{
		Name: "inactive", Type: domain.CampaignReminder, Active: false,
	}))
	require.NoError(t, st.CreateTemplate(ctx, &domain.Template{
		Name: "wrong type", Type: domain.CampaignWelcome, Active: true,
	}))

	_, err := st.ActiveTemplateByType(ctx, domain.CampaignReminder)
	require.ErrorIs(t, err, store.ErrNotFound)

	active := &domain.Template{Name: "reminder", Type: domain.CampaignReminder, Active: true}
	require.NoError(t, st.CreateTemplate(ctx, active))

	got, err := st.ActiveTemplateByType(ctx, domain.CampaignReminder)
	require.NoError(t, err)
	require.Equal(t, active.ID, got.ID)
}

func TestMarkSendOpenedTransitionsOnce(t *testing.T) {
	st := New()
	ctx := context.Background()
	s := &domain.Send{CampaignID: uuid.New(), AttendeeID: uuid.New()}
	require.NoError(t, st.CreateSend(ctx, s))

	first, err := st.MarkSendOpened(ctx, s.ID, time.Now())
	require.NoError(t, err)
	require.True(t, first)

	second, err := st.MarkSendOpened(ctx, s.ID, time.Now())
	require.NoError(t, err)
	require.False(t, second)

	_, err = st.MarkSendOpened(ctx, uuid.New(), time.Now())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteAnalyticsOlderThan(t *testing.T) {
	st := New()
	ctx := context.Background()
	cutoff := time.Now()

	require.NoError(t, st.CreateAnalyticsEvent(ctx, &domain.AnalyticsEvent{
		Type: domain.AnalyticsEmailOpen, CreatedAt: cutoff.Add(-time.Hour),
	}))
	keep := &domain.AnalyticsEvent{Type: domain.AnalyticsEmailOpen, CreatedAt: cutoff}
	require.NoError(t, st.CreateAnalyticsEvent(ctx, keep))

	n, err := st.DeleteAnalyticsOlderThan(ctx, cutoff)
	require.NoError(t, err)
	require.Equal(t, 1, n, "rows exactly at the cutoff survive")

	remaining, err := st.ListAnalyticsEvents(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, keep.ID, remaining[0].ID)
}

func TestCopiesInAndOut(t *testing.T) {
	st := New()
	ctx := context.Background()

	a := &domain.Attendee{Email: "jane@example.com", Name: "Jane"}
	require.NoError(t, st.CreateAttendee(ctx, a))

	a.Name = "mutated after create"
	got, err := st.GetAttendee(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "Jane", got.Name)

	got.Name = "mutated after get"
	again, err := st.GetAttendee(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "Jane", again.Name)
}

func TestListAnalyticsByAttendeeSince(t *testing.T) {
	st := New()
	ctx := context.Background()
	attendeeID := uuid.New()
	other := uuid.New()
	now := time.Now()

	mk := func(who uuid.UUID, age time.Duration) {
		require.NoError(t, st.CreateAnalyticsEvent(ctx, &domain.AnalyticsEvent{
			Type:       domain.AnalyticsEmailOpen,
			AttendeeID: &who,
			CreatedAt:  now.Add(-age),
		}))
	}
	mk(attendeeID, time.Hour)
	mk(attendeeID, 48*time.Hour)
	mk(other, time.Hour)

	got, err := st.ListAnalyticsByAttendeeSince(ctx, attendeeID, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
}
