package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/eventpulse/engage/internal/dispatch"
	"github.com/eventpulse/engage/internal/domain"
	"github.com/eventpulse/engage/internal/store/memory"
)

// fakeDispatcher records which campaigns were dispatched and marks them
// sent, mirroring the real dispatcher's completion behavior.
type fakeDispatcher struct {
	mu    sync.Mutex
	store *memory.Store
	calls []uuid.UUID
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, campaignID uuid.UUID) (*dispatch.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, campaignID)
	f.mu.Unlock()
	if err := f.store.UpdateCampaignStatus(ctx, campaignID, domain.CampaignSent, time.Now()); err != nil {
		return nil, err
	}
	return &dispatch.Result{}, nil
}

func (f *fakeDispatcher) dispatched() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.calls...)
}

func newTestScheduler(st *memory.Store) (*Scheduler, *fakeDispatcher) {
	fd := &fakeDispatcher{store: st}
	return New(st, fd, nil, Intervals{}), fd
}

func TestPromoteDueCampaigns(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	due := &domain.Campaign{Name: "due", Status: domain.CampaignScheduled, ScheduledAt: &past}
	notYet := &domain.Campaign{Name: "later", Status: domain.CampaignScheduled, ScheduledAt: &future}
	require.NoError(t, st.CreateCampaign(ctx, due))
	require.NoError(t, st.CreateCampaign(ctx, notYet))

	s, fd := newTestScheduler(st)
	require.NoError(t, s.promoteDueCampaigns(ctx))

	require.Equal(t, []uuid.UUID{due.ID}, fd.dispatched())

	got, err := st.GetCampaign(ctx, due.ID)
	require.NoError(t, err)
	require.Equal(t, domain.CampaignSent, got.Status)

	later, err := st.GetCampaign(ctx, notYet.ID)
	require.NoError(t, err)
	require.Equal(t, domain.CampaignScheduled, later.Status)
}

func TestPromoteCampaignSkipsNonScheduled(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	c := &domain.Campaign{Name: "already gone", Status: domain.CampaignCancelled}
	require.NoError(t, st.CreateCampaign(ctx, c))

	s, fd := newTestScheduler(st)
	require.NoError(t, s.promoteCampaign(ctx, c.ID))
	require.Empty(t, fd.dispatched())
}

func TestPromoteCampaignFlipsSendingBeforeDispatch(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	at := time.Now().Add(-time.Second)
	c := &domain.Campaign{Name: "due", Status: domain.CampaignScheduled, ScheduledAt: &at}
	require.NoError(t, st.CreateCampaign(ctx, c))

	fd := &statusCapturingDispatcher{store: st}
	s := New(st, fd, nil, Intervals{})
	require.NoError(t, s.promoteCampaign(ctx, c.ID))
	require.Equal(t, domain.CampaignSending, fd.statusAtDispatch)
}

type statusCapturingDispatcher struct {
	store            *memory.Store
	statusAtDispatch domain.CampaignStatus
}

func (f *statusCapturingDispatcher) Dispatch(ctx context.Context, campaignID uuid.UUID) (*dispatch.Result, error) {
	c, err := f.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	f.statusAtDispatch = c.Status
	return &dispatch.Result{}, nil
}

func TestRecomputeEngagementUsesFallbackFormula(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	a := &domain.Attendee{Email: "jane@example.com", EngagementScore: 20}
	require.NoError(t, st.CreateAttendee(ctx, a))

	// 2 opens, 1 click, 1 attendance inside the window: 20+4+5+10 = 39.
	for _, typ := range []domain.AnalyticsEventType{
		domain.AnalyticsEmailOpen, domain.AnalyticsEmailOpen,
		domain.AnalyticsEmailClick, domain.AnalyticsAttendance,
	} {
		require.NoError(t, st.CreateAnalyticsEvent(ctx, &domain.AnalyticsEvent{
			Type:       typ,
			AttendeeID: &a.ID,
		}))
	}

	s, _ := newTestScheduler(st)
	require.NoError(t, s.recomputeEngagement(ctx))

	got, err := st.GetAttendee(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 39, got.EngagementScore)
}

func TestRecomputeEngagementRefreshesLastActivity(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	stale := time.Now().Add(-45 * 24 * time.Hour)

	changed := &domain.Attendee{Email: "jane@example.com", EngagementScore: 20, LastActivityAt: stale}
	require.NoError(t, st.CreateAttendee(ctx, changed))
	require.NoError(t, st.CreateAnalyticsEvent(ctx, &domain.AnalyticsEvent{
		Type:       domain.AnalyticsEmailClick,
		AttendeeID: &changed.ID,
	}))

	// Already at the ceiling: recent clicks clamp back to 100, so the
	// score itself does not move.
	maxed := &domain.Attendee{Email: "max@example.com", EngagementScore: 100, LastActivityAt: stale}
	require.NoError(t, st.CreateAttendee(ctx, maxed))
	require.NoError(t, st.CreateAnalyticsEvent(ctx, &domain.AnalyticsEvent{
		Type:       domain.AnalyticsEmailClick,
		AttendeeID: &maxed.ID,
	}))

	s, _ := newTestScheduler(st)
	require.NoError(t, s.recomputeEngagement(ctx))

	got, err := st.GetAttendee(ctx, changed.ID)
	require.NoError(t, err)
	require.Equal(t, 25, got.EngagementScore)
	require.True(t, got.LastActivityAt.After(stale), "last activity must advance with the score")

	got, err = st.GetAttendee(ctx, maxed.ID)
	require.NoError(t, err)
	require.Equal(t, 100, got.EngagementScore)
	require.True(t, got.LastActivityAt.After(stale), "an unchanged score still refreshes last activity")
}

func TestRecomputeEngagementIgnoresStaleActivity(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	a := &domain.Attendee{Email: "jane@example.com", EngagementScore: 20}
	require.NoError(t, st.CreateAttendee(ctx, a))
	require.NoError(t, st.CreateAnalyticsEvent(ctx, &domain.AnalyticsEvent{
		Type:       domain.AnalyticsEmailClick,
		AttendeeID: &a.ID,
		CreatedAt:  time.Now().Add(-31 * 24 * time.Hour),
	}))

	s, _ := newTestScheduler(st)
	require.NoError(t, s.recomputeEngagement(ctx))

	got, err := st.GetAttendee(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 20, got.EngagementScore, "activity outside the window is ignored")
}

func TestRecomputeEngagementScorerFailureFallsBack(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	a := &domain.Attendee{Email: "jane@example.com", EngagementScore: 50}
	require.NoError(t, st.CreateAttendee(ctx, a))
	require.NoError(t, st.CreateAnalyticsEvent(ctx, &domain.AnalyticsEvent{
		Type:       domain.AnalyticsEmailOpen,
		AttendeeID: &a.ID,
	}))

	fd := &fakeDispatcher{store: st}
	s := New(st, fd, failingScorer{}, Intervals{})
	require.NoError(t, s.recomputeEngagement(ctx))

	got, err := st.GetAttendee(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 52, got.EngagementScore)
}

type failingScorer struct{}

func (failingScorer) Score(context.Context, *domain.Attendee, domain.ActivityCounts) (int, error) {
	return 0, context.DeadlineExceeded
}

func seedReminderFixture(t *testing.T, st *memory.Store, startIn time.Duration) *domain.Event {
	t.Helper()
	ctx := context.Background()
	e := &domain.Event{
		Title:     "Launch party",
		StartTime: time.Now().Add(startIn),
		Status:    domain.EventPublished,
	}
	require.NoError(t, st.CreateEvent(ctx, e))

	a := &domain.Attendee{Email: "guest@example.com"}
	require.NoError(t, st.CreateAttendee(ctx, a))
	require.NoError(t, st.CreateRegistration(ctx, &domain.Registration{EventID: e.ID, AttendeeID: a.ID}))

	require.NoError(t, st.CreateTemplate(ctx, &domain.Template{
		Name:    "reminder",
		Type:    domain.CampaignReminder,
		Subject: "Starting soon: {{eventTitle}}",
		Body:    "See you in {{timeUntilEvent}}.",
		Active:  true,
	}))
	return e
}

func TestFireRemindersAtThreshold(t *testing.T) {
	tests := []struct {
		name    string
		startIn time.Duration
		fires   bool
	}{
		{"exactly 24h", 24 * time.Hour, true},
		{"inside 24h window", 23*time.Hour + 30*time.Minute, true},
		{"just past 24h", 24*time.Hour + time.Minute, false},
		{"window lower bound excluded", 23 * time.Hour, false},
		{"exactly 2h", 2 * time.Hour, true},
		{"exactly 30m", 30 * time.Minute, true},
		{"between windows", 12 * time.Hour, false},
		{"already started", -time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := memory.New()
			e := seedReminderFixture(t, st, tt.startIn)

			s, fd := newTestScheduler(st)
			// Pin the clock so the window math is not racing the test.
			now := e.StartTime.Add(-tt.startIn)
			s.now = func() time.Time { return now }

			require.NoError(t, s.fireReminders(context.Background()))
			if tt.fires {
				require.Len(t, fd.dispatched(), 1)
			} else {
				require.Empty(t, fd.dispatched())
			}
		})
	}
}

func TestFireRemindersSkipsWithoutActiveTemplate(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	e := &domain.Event{
		Title:     "No template",
		StartTime: time.Now().Add(2 * time.Hour),
		Status:    domain.EventPublished,
	}
	require.NoError(t, st.CreateEvent(ctx, e))

	s, fd := newTestScheduler(st)
	require.NoError(t, s.fireReminders(ctx), "missing reminder template is a silent skip")
	require.Empty(t, fd.dispatched())

	campaigns, err := st.ListCampaigns(ctx)
	require.NoError(t, err)
	require.Empty(t, campaigns)
}

func TestFireRemindersCreatesReminderCampaign(t *testing.T) {
	st := memory.New()
	e := seedReminderFixture(t, st, 2*time.Hour)

	s, fd := newTestScheduler(st)
	require.NoError(t, s.fireReminders(context.Background()))
	require.Len(t, fd.dispatched(), 1)

	campaigns, err := st.ListCampaigns(context.Background())
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	c := campaigns[0]
	require.Equal(t, domain.CampaignReminder, c.Type)
	require.Equal(t, e.ID, *c.EventID)
	require.NotNil(t, c.TemplateID)
}

func TestPruneAnalyticsRespectsRetentionBoundary(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	now := time.Now()

	old := &domain.AnalyticsEvent{Type: domain.AnalyticsEmailOpen, CreatedAt: now.Add(-90*24*time.Hour - time.Second)}
	recent := &domain.AnalyticsEvent{Type: domain.AnalyticsEmailOpen, CreatedAt: now.Add(-89 * 24 * time.Hour)}
	require.NoError(t, st.CreateAnalyticsEvent(ctx, old))
	require.NoError(t, st.CreateAnalyticsEvent(ctx, recent))

	s, _ := newTestScheduler(st)
	s.now = func() time.Time { return now }
	require.NoError(t, s.pruneAnalytics(ctx))

	remaining, err := st.ListAnalyticsEvents(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, recent.ID, remaining[0].ID)
}

func TestScheduleCampaignFiresTimer(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	at := time.Now().Add(20 * time.Millisecond)
	c := &domain.Campaign{Name: "timed", Status: domain.CampaignScheduled, ScheduledAt: &at}
	require.NoError(t, st.CreateCampaign(ctx, c))

	s, fd := newTestScheduler(st)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	defer s.cancel()

	s.ScheduleCampaign(c.ID, at)
	require.Eventually(t, func() bool {
		return len(fd.dispatched()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestCancelCampaignStopsTimer(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	at := time.Now().Add(30 * time.Millisecond)
	c := &domain.Campaign{Name: "cancelled", Status: domain.CampaignScheduled, ScheduledAt: &at}
	require.NoError(t, st.CreateCampaign(ctx, c))

	s, fd := newTestScheduler(st)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	defer s.cancel()

	s.ScheduleCampaign(c.ID, at)
	s.CancelCampaign(c.ID)

	time.Sleep(80 * time.Millisecond)
	require.Empty(t, fd.dispatched())
}

func TestCancelUnknownCampaignIsNoOp(t *testing.T) {
	st := memory.New()
	s, _ := newTestScheduler(st)
	s.CancelCampaign(uuid.New())
}

func TestStartStop(t *testing.T) {
	st := memory.New()
	s, _ := newTestScheduler(st)

	require.NoError(t, s.Start())
	require.Error(t, s.Start(), "double start is rejected")
	s.Stop()
	s.Stop()
}
