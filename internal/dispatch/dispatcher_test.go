package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/eventpulse/engage/internal/audience"
	"github.com/eventpulse/engage/internal/domain"
	"github.com/eventpulse/engage/internal/mailer"
	"github.com/eventpulse/engage/internal/personalize"
	"github.com/eventpulse/engage/internal/store/memory"
	"github.com/eventpulse/engage/internal/template"
)

// recordingSender captures every delivery and can fail chosen addresses.
type recordingSender struct {
	mu       sync.Mutex
	sent     []sentMail
	failFor  map[string]bool
	errorFor map[string]bool
}

type sentMail struct {
	to, subject, body string
}

func (s *recordingSender) Send(_ context.Context, to, subject, body string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errorFor[to] {
		return false, fmt.Errorf("smtp connection reset")
	}
	if s.failFor[to] {
		return false, nil
	}
	s.sent = append(s.sent, sentMail{to, subject, body})
	return true, nil
}

func newTestDispatcher(st *memory.Store, sender mailer.Sender, opts ...Option) *Dispatcher {
	opts = append([]Option{WithBatchDelay(0)}, opts...)
	return New(st, audience.NewResolver(st), template.NewRenderer("", ""), sender, opts...)
}

func seedCampaignWithAudience(t *testing.T, st *memory.Store, n int) *domain.Campaign {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		require.NoError(t, st.CreateAttendee(ctx, &domain.Attendee{
			Email: fmt.Sprintf("user%02d@example.com", i),
			Name:  fmt.Sprintf("User %d", i),
		}))
	}
	c := &domain.Campaign{
		Name:    "Launch blast",
		Subject: "Hello {{name}}",
		Body:    "Hi {{name}}, welcome.",
		Status:  domain.CampaignSending,
	}
	require.NoError(t, st.CreateCampaign(ctx, c))
	return c
}

func TestDispatchSendsToWholeAudience(t *testing.T) {
	st := memory.New()
	c := seedCampaignWithAudience(t, st, 15)
	sender := &recordingSender{}
	d := newTestDispatcher(st, sender)

	result, err := d.Dispatch(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, 15, result.Sent)
	require.Equal(t, 0, result.Failed)
	require.Empty(t, result.Errors)

	sends, err := st.ListSendsByCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, sends, 15)

	got, err := st.GetCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, domain.CampaignSent, got.Status)
	require.NotNil(t, got.SentAt)
}

func TestDispatchRunsToCompletionAfterCancellation(t *testing.T) {
	st := memory.New()
	// 15 recipients means two batches, so the run crosses the inter-batch
	// pause with the context already cancelled.
	c := seedCampaignWithAudience(t, st, 15)
	sender := &recordingSender{}
	d := newTestDispatcher(st, sender)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := d.Dispatch(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 15, result.Sent)

	got, err := st.GetCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, domain.CampaignSent, got.Status, "a started dispatch always reaches sent")
}

func TestDispatchFailedRecipientDoesNotStopBatch(t *testing.T) {
	st := memory.New()
	c := seedCampaignWithAudience(t, st, 15)
	sender := &recordingSender{errorFor: map[string]bool{"user07@example.com": true}}
	d := newTestDispatcher(st, sender)

	result, err := d.Dispatch(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, 14, result.Sent)
	require.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "user07@example.com")

	sends, err := st.ListSendsByCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, sends, 14, "no send record for the failed recipient")

	got, err := st.GetCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, domain.CampaignSent, got.Status, "campaign completes despite failures")
}

func TestDispatchRejectedDeliveryCountsAsFailed(t *testing.T) {
	st := memory.New()
	c := seedCampaignWithAudience(t, st, 3)
	sender := &recordingSender{failFor: map[string]bool{"user01@example.com": true}}
	d := newTestDispatcher(st, sender)

	result, err := d.Dispatch(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, 2, result.Sent)
	require.Equal(t, 1, result.Failed)
}

func TestDispatchRendersPerRecipient(t *testing.T) {
	st := memory.New()
	c := seedCampaignWithAudience(t, st, 2)
	sender := &recordingSender{}
	d := newTestDispatcher(st, sender)

	_, err := d.Dispatch(context.Background(), c.ID)
	require.NoError(t, err)

	subjects := map[string]bool{}
	for _, m := range sender.sent {
		subjects[m.subject] = true
	}
	require.True(t, subjects["Hello User 0"])
	require.True(t, subjects["Hello User 1"])
}

func TestDispatchEmptyAudienceStillCompletes(t *testing.T) {
	st := memory.New()
	c := &domain.Campaign{Name: "Nobody home", Subject: "s", Body: "b", Status: domain.CampaignSending}
	require.NoError(t, st.CreateCampaign(context.Background(), c))
	d := newTestDispatcher(st, &recordingSender{})

	result, err := d.Dispatch(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, 0, result.Sent)

	got, err := st.GetCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, domain.CampaignSent, got.Status)
}

func TestDispatchMissingCampaignIsHardError(t *testing.T) {
	st := memory.New()
	d := newTestDispatcher(st, &recordingSender{})

	_, err := d.Dispatch(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestDispatchFallsBackToTemplateContent(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.CreateAttendee(ctx, &domain.Attendee{Email: "jane@example.com", Name: "Jane"}))

	tmpl := &domain.Template{
		Name:    "welcome",
		Type:    domain.CampaignWelcome,
		Subject: "Welcome {{name}}",
		Body:    "Glad to have you, {{name}}.",
		Active:  true,
	}
	require.NoError(t, st.CreateTemplate(ctx, tmpl))

	c := &domain.Campaign{Name: "Welcome wave", TemplateID: &tmpl.ID, Status: domain.CampaignSending}
	require.NoError(t, st.CreateCampaign(ctx, c))

	sender := &recordingSender{}
	d := newTestDispatcher(st, sender)

	result, err := d.Dispatch(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 1, result.Sent)
	require.Equal(t, "Welcome Jane", sender.sent[0].subject)
	require.Equal(t, "Glad to have you, Jane.", sender.sent[0].body)
}

func TestDispatchDanglingTemplateAborts(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.CreateAttendee(ctx, &domain.Attendee{Email: "jane@example.com"}))

	missing := uuid.New()
	c := &domain.Campaign{Name: "Broken", TemplateID: &missing, Status: domain.CampaignSending}
	require.NoError(t, st.CreateCampaign(ctx, c))

	d := newTestDispatcher(st, &recordingSender{})
	_, err := d.Dispatch(ctx, c.ID)
	require.Error(t, err)

	got, err := st.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, domain.CampaignSending, got.Status, "aborted dispatch leaves status untouched")
}

// stubPersonalizer returns fixed content or an error.
type stubPersonalizer struct {
	content *personalize.Content
	err     error
}

func (p *stubPersonalizer) Personalize(context.Context, *domain.Attendee, *domain.Event, string, string) (*personalize.Content, error) {
	return p.content, p.err
}

func TestDispatchPersonalizationFailureFallsBack(t *testing.T) {
	st := memory.New()
	c := seedCampaignWithAudience(t, st, 1)
	sender := &recordingSender{}
	d := newTestDispatcher(st, sender,
		WithPersonalizer(&stubPersonalizer{err: fmt.Errorf("model timeout")}))

	result, err := d.Dispatch(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, 1, result.Sent, "personalization failure never fails the send")
	require.Equal(t, "Hello User 0", sender.sent[0].subject)
}

func TestDispatchPersonalizedContentIsReRendered(t *testing.T) {
	st := memory.New()
	c := seedCampaignWithAudience(t, st, 1)
	sender := &recordingSender{}
	d := newTestDispatcher(st, sender, WithPersonalizer(&stubPersonalizer{
		content: &personalize.Content{Subject: "Just for you, {{name}}", Body: "enhanced"},
	}))

	_, err := d.Dispatch(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, "Just for you, User 0", sender.sent[0].subject)
	require.Equal(t, "enhanced", sender.sent[0].body)
}
