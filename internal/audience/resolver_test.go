package audience

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/eventpulse/engage/internal/domain"
	"github.com/eventpulse/engage/internal/store/memory"
)

func seedAttendee(t *testing.T, st *memory.Store, email string, score int, interests ...string) *domain.Attendee {
	t.Helper()
	a := &domain.Attendee{
		Email:           email,
		Name:            email,
		Interests:       interests,
		EngagementScore: score,
	}
	require.NoError(t, st.CreateAttendee(context.Background(), a))
	return a
}

func register(t *testing.T, st *memory.Store, eventID uuid.UUID, a *domain.Attendee, attended bool) {
	t.Helper()
	require.NoError(t, st.CreateRegistration(context.Background(), &domain.Registration{
		EventID:    eventID,
		AttendeeID: a.ID,
		Attended:   attended,
	}))
}

func emails(attendees []*domain.Attendee) []string {
	out := make([]string, 0, len(attendees))
	for _, a := range attendees {
		out = append(out, a.Email)
	}
	return out
}

func TestResolveAllAttendeesWithoutEvent(t *testing.T) {
	st := memory.New()
	seedAttendee(t, st, "a@example.com", 50)
	seedAttendee(t, st, "b@example.com", 70)

	r := NewResolver(st)
	got, err := r.Resolve(context.Background(), &domain.Campaign{})
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestResolveRestrictsToEventRegistrants(t *testing.T) {
	st := memory.New()
	ev := &domain.Event{Title: "Launch"}
	require.NoError(t, st.CreateEvent(context.Background(), ev))

	in := seedAttendee(t, st, "in@example.com", 50)
	seedAttendee(t, st, "out@example.com", 50)
	register(t, st, ev.ID, in, false)

	r := NewResolver(st)
	got, err := r.Resolve(context.Background(), &domain.Campaign{EventID: &ev.ID})
	require.NoError(t, err)
	require.Equal(t, []string{"in@example.com"}, emails(got))
}

func TestResolveInterestFilterIsOr(t *testing.T) {
	st := memory.New()
	seedAttendee(t, st, "go@example.com", 50, "golang")
	seedAttendee(t, st, "k8s@example.com", 50, "kubernetes")
	seedAttendee(t, st, "none@example.com", 50, "cooking")

	r := NewResolver(st)
	got, err := r.Resolve(context.Background(), &domain.Campaign{
		Targeting: domain.Targeting{Interests: []string{"golang", "kubernetes"}},
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"go@example.com", "k8s@example.com"}, emails(got))
}

func TestResolveScoreRangeIsInclusive(t *testing.T) {
	st := memory.New()
	seedAttendee(t, st, "low@example.com", 19)
	seedAttendee(t, st, "minedge@example.com", 20)
	seedAttendee(t, st, "maxedge@example.com", 80)
	seedAttendee(t, st, "high@example.com", 81)

	r := NewResolver(st)
	got, err := r.Resolve(context.Background(), &domain.Campaign{
		Targeting: domain.Targeting{MinScore: 20, MaxScore: 80},
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"minedge@example.com", "maxedge@example.com"}, emails(got))
}

func TestResolveZeroScoreRangeMeansFullRange(t *testing.T) {
	st := memory.New()
	seedAttendee(t, st, "zero@example.com", 0)
	seedAttendee(t, st, "hundred@example.com", 100)

	r := NewResolver(st)
	got, err := r.Resolve(context.Background(), &domain.Campaign{})
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestResolveAttendanceFilter(t *testing.T) {
	st := memory.New()
	ev := &domain.Event{Title: "Summit"}
	require.NoError(t, st.CreateEvent(context.Background(), ev))

	showed := seedAttendee(t, st, "showed@example.com", 50)
	ghosted := seedAttendee(t, st, "ghosted@example.com", 50)
	register(t, st, ev.ID, showed, true)
	register(t, st, ev.ID, ghosted, false)

	r := NewResolver(st)

	got, err := r.Resolve(context.Background(), &domain.Campaign{
		EventID:   &ev.ID,
		Targeting: domain.Targeting{Attendance: domain.AttendanceAttended},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"showed@example.com"}, emails(got))

	got, err = r.Resolve(context.Background(), &domain.Campaign{
		EventID:   &ev.ID,
		Targeting: domain.Targeting{Attendance: domain.AttendanceNotAttended},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"ghosted@example.com"}, emails(got))
}

func TestResolveAttendanceFilterIgnoredWithoutEvent(t *testing.T) {
	st := memory.New()
	seedAttendee(t, st, "a@example.com", 50)
	seedAttendee(t, st, "b@example.com", 50)

	r := NewResolver(st)
	got, err := r.Resolve(context.Background(), &domain.Campaign{
		Targeting: domain.Targeting{Attendance: domain.AttendanceAttended},
	})
	require.NoError(t, err)
	require.Len(t, got, 2, "attendance filter without a linked event is a no-op")
}

func TestResolveCombinedFilters(t *testing.T) {
	st := memory.New()
	ev := &domain.Event{Title: "Workshop"}
	require.NoError(t, st.CreateEvent(context.Background(), ev))

	match := seedAttendee(t, st, "match@example.com", 60, "golang")
	wrongInterest := seedAttendee(t, st, "interest@example.com", 60, "cooking")
	wrongScore := seedAttendee(t, st, "score@example.com", 10, "golang")
	noShow := seedAttendee(t, st, "noshow@example.com", 60, "golang")
	for _, a := range []*domain.Attendee{match, wrongInterest, wrongScore} {
		register(t, st, ev.ID, a, true)
	}
	register(t, st, ev.ID, noShow, false)

	r := NewResolver(st)
	got, err := r.Resolve(context.Background(), &domain.Campaign{
		EventID: &ev.ID,
		Targeting: domain.Targeting{
			Interests:  []string{"golang"},
			MinScore:   50,
			MaxScore:   90,
			Attendance: domain.AttendanceAttended,
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"match@example.com"}, emails(got))
}

func TestResolveEmptyAudienceIsValid(t *testing.T) {
	st := memory.New()
	r := NewResolver(st)

	got, err := r.Resolve(context.Background(), &domain.Campaign{})
	require.NoError(t, err)
	require.Empty(t, got)
}
