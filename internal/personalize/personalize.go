// Package personalize defines the AI capability ports the dispatcher and
// scheduler depend on: per-send content enhancement and attendee scoring.
//
// Both capabilities are best-effort. Callers catch every error, log it, and
// apply a deterministic fallback; a provider failure must never block or
// fail a send or a score refresh.
package personalize

import (
	"context"

	"github.com/eventpulse/engage/internal/domain"
)

// Content is the enhanced subject/body a personalizer returns, plus any
// content recommendations it produced along the way.
type Content struct {
	Subject         string   `json:"subject"`
	Body            string   `json:"body"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Personalizer enhances rendered campaign content for one attendee.
type Personalizer interface {
	Personalize(ctx context.Context, a *domain.Attendee, e *domain.Event, subject, body string) (*Content, error)
}

// Scorer computes an engagement score in [0, 100] from an attendee profile
// and recent activity counts.
type Scorer interface {
	Score(ctx context.Context, a *domain.Attendee, counts domain.ActivityCounts) (int, error)
}

// FallbackScore is the deterministic formula applied when the scoring
// capability fails: clamp(current + opens*2 + clicks*5 + attended*10, 0, 100).
// It is monotonically non-decreasing in every activity count.
func FallbackScore(current int, counts domain.ActivityCounts) int {
	return domain.ClampScore(current + counts.Opens*2 + counts.Clicks*5 + counts.Attended*10)
}
