// Package scheduler runs the recurring controllers that drive campaign
// delivery: due-campaign promotion, engagement recomputation, event
// reminders, and analytics retention pruning.
//
// Each trigger ticks independently and is wrapped in its own error
// boundary; a failing tick is logged and never halts the trigger or its
// siblings. The package also manages one-shot timers for campaigns
// scheduled at an explicit instant.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/eventpulse/engage/internal/dispatch"
	"github.com/eventpulse/engage/internal/personalize"
	"github.com/eventpulse/engage/internal/pkg/distlock"
	"github.com/eventpulse/engage/internal/store"
)

// Default trigger intervals.
const (
	DefaultPromoteInterval    = time.Minute
	DefaultEngagementInterval = 24 * time.Hour
	DefaultReminderInterval   = time.Hour
	DefaultPruneInterval      = 7 * 24 * time.Hour

	// DefaultRetention is how long analytics events are kept.
	DefaultRetention = 90 * 24 * time.Hour

	// DefaultActivityWindow bounds the analytics lookback for scoring.
	DefaultActivityWindow = 30 * 24 * time.Hour
)

// reminderThresholdHours are the hours-before-start marks at which a
// reminder fires, each at most once per event: a reminder fires when
// hours-until-start falls in the half-open window (threshold-1, threshold].
var reminderThresholdHours = []float64{24, 2, 0.5}

// CampaignDispatcher is the slice of the dispatcher the scheduler needs.
type CampaignDispatcher interface {
	Dispatch(ctx context.Context, campaignID uuid.UUID) (*dispatch.Result, error)
}

// Intervals configures the four periodic triggers. Zero values take the
// package defaults.
type Intervals struct {
	Promote    time.Duration
	Engagement time.Duration
	Reminder   time.Duration
	Prune      time.Duration

	Retention      time.Duration
	ActivityWindow time.Duration
}

func (iv *Intervals) applyDefaults() {
	if iv.Promote == 0 {
		iv.Promote = DefaultPromoteInterval
	}
	if iv.Engagement == 0 {
		iv.Engagement = DefaultEngagementInterval
	}
	if iv.Reminder == 0 {
		iv.Reminder = DefaultReminderInterval
	}
	if iv.Prune == 0 {
		iv.Prune = DefaultPruneInterval
	}
	if iv.Retention == 0 {
		iv.Retention = DefaultRetention
	}
	if iv.ActivityWindow == 0 {
		iv.ActivityWindow = DefaultActivityWindow
	}
}

// task is one named periodic trigger.
type task struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

// Scheduler owns the periodic triggers and the one-shot campaign timers.
// Construct with New, call Start once, and Stop to drain. When several
// instances share a store, give each one a lock factory via UseLocks so
// only one instance runs a given trigger's tick.
type Scheduler struct {
	store      store.Store
	dispatcher CampaignDispatcher
	scorer     personalize.Scorer // optional; fallback formula without it
	intervals  Intervals
	lockFor    func(name string) distlock.Lock // optional

	now func() time.Time

	// One-shot timers keyed by campaign id.
	timersMu sync.Mutex
	timers   map[uuid.UUID]*time.Timer

	// Stats
	ticksRun   int64
	tickErrors int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// New creates a scheduler. scorer may be nil, in which case every score
// refresh uses the deterministic fallback formula.
func New(s store.Store, d CampaignDispatcher, scorer personalize.Scorer, intervals Intervals) *Scheduler {
	intervals.applyDefaults()
	return &Scheduler{
		store:      s,
		dispatcher: d,
		scorer:     scorer,
		intervals:  intervals,
		now:        time.Now,
		timers:     make(map[uuid.UUID]*time.Timer),
	}
}

// UseLocks installs a distributed-lock factory. Each trigger loop gets its
// own lock instance, keyed by trigger name, and skips any tick it cannot
// acquire. Must be called before Start.
func (s *Scheduler) UseLocks(factory func(name string) distlock.Lock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockFor = factory
}

// Start launches the trigger loops. It returns an error if the scheduler
// is already running.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	tasks := []task{
		{name: "promote-due-campaigns", interval: s.intervals.Promote, run: s.promoteDueCampaigns},
		{name: "recompute-engagement", interval: s.intervals.Engagement, run: s.recomputeEngagement},
		{name: "fire-reminders", interval: s.intervals.Reminder, run: s.fireReminders},
		{name: "prune-analytics", interval: s.intervals.Prune, run: s.pruneAnalytics},
	}

	log.Printf("[Scheduler] Starting %d triggers (promote=%s engagement=%s reminder=%s prune=%s)",
		len(tasks), s.intervals.Promote, s.intervals.Engagement, s.intervals.Reminder, s.intervals.Prune)

	for _, t := range tasks {
		s.wg.Add(1)
		go s.runLoop(t)
	}
	return nil
}

// Stop cancels every trigger and pending one-shot timer, then waits for
// in-flight ticks to drain.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	log.Printf("[Scheduler] Stopping...")
	s.cancel()

	s.timersMu.Lock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.timersMu.Unlock()

	s.wg.Wait()
	log.Printf("[Scheduler] Stopped. Ticks: %d, errors: %d",
		atomic.LoadInt64(&s.ticksRun), atomic.LoadInt64(&s.tickErrors))
}

// runLoop ticks one trigger until shutdown. The lock, when configured, is
// acquired per tick so a stopped instance hands the trigger to a peer on
// the next interval.
func (s *Scheduler) runLoop(t task) {
	defer s.wg.Done()

	var lock distlock.Lock
	if s.lockFor != nil {
		lock = s.lockFor(t.name)
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if lock != nil {
				ok, err := lock.Acquire(s.ctx)
				if err != nil {
					log.Printf("[Scheduler] Lock for %s unavailable: %v", t.name, err)
					continue
				}
				if !ok {
					continue
				}
			}
			s.runTick(t.name, t.run)
			if lock != nil {
				if err := lock.Release(s.ctx); err != nil {
					log.Printf("[Scheduler] Releasing lock for %s: %v", t.name, err)
				}
			}
		}
	}
}

// runTick executes one tick inside an error boundary. Panics and errors
// are logged and swallowed so a bad tick is invisible to other triggers
// and to later ticks of the same trigger.
func (s *Scheduler) runTick(name string, run func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&s.tickErrors, 1)
			log.Printf("[Scheduler] Tick %s panicked: %v", name, r)
		}
	}()

	atomic.AddInt64(&s.ticksRun, 1)
	if err := run(s.ctx); err != nil {
		atomic.AddInt64(&s.tickErrors, 1)
		log.Printf("[Scheduler] Tick %s failed: %v", name, err)
	}
}

// ScheduleCampaign registers a one-shot timer that promotes and dispatches
// the campaign at the given instant. Re-scheduling an id replaces its
// pending timer.
func (s *Scheduler) ScheduleCampaign(id uuid.UUID, at time.Time) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()

	if old, ok := s.timers[id]; ok {
		old.Stop()
	}

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	s.timers[id] = time.AfterFunc(delay, func() {
		s.timersMu.Lock()
		delete(s.timers, id)
		s.timersMu.Unlock()
		s.runTick("one-shot-dispatch", func(ctx context.Context) error {
			return s.promoteCampaign(ctx, id)
		})
	})
	log.Printf("[Scheduler] Campaign %s scheduled for %s", id, at.Format(time.RFC3339))
}

// CancelCampaign stops the pending one-shot timer for the campaign.
// Canceling an id with no pending timer is a no-op.
func (s *Scheduler) CancelCampaign(id uuid.UUID) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()

	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
		log.Printf("[Scheduler] Campaign %s schedule cancelled", id)
	}
}
