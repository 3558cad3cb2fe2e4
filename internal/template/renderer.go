// Package template renders campaign content by substituting named
// {{variable}} placeholders with attendee and event values.
package template

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/osteele/liquid"

	"github.com/eventpulse/engage/internal/domain"
)

// Names of the two static link placeholders templates may reference.
const (
	FeedbackLinkVar  = "feedbackLink"
	ResourceLinksVar = "resourceLinks"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Renderer performs pure placeholder substitution. Rendering has no side
// effects; the same inputs always produce the same output.
type Renderer struct {
	engine *liquid.Engine

	resourceLinksURL string
	feedbackURL      string
}

// NewRenderer creates a renderer with the given static link targets.
// Empty URLs leave the corresponding placeholders unresolved, which is the
// deliberate fallback for partially-configured templates.
func NewRenderer(resourceLinksURL, feedbackURL string) *Renderer {
	return &Renderer{
		engine:           liquid.NewEngine(),
		resourceLinksURL: resourceLinksURL,
		feedbackURL:      feedbackURL,
	}
}

// Render replaces every {{name}} token that has a value in vars. Unmatched
// placeholders are left verbatim so partially-configured templates still
// render something recognizable.
func (r *Renderer) Render(text string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		name := strings.TrimSpace(token[2 : len(token)-2])
		if val, ok := vars[name]; ok {
			return val
		}
		return token
	})
}

// Validate parses the template text with Liquid and reports syntax errors.
// It is used at template create/update time; rendering itself never fails.
func (r *Renderer) Validate(text string) error {
	_, err := r.engine.ParseString(text)
	return err
}

// Vars builds the substitution map for one attendee and an optional event.
func (r *Renderer) Vars(a *domain.Attendee, e *domain.Event) map[string]string {
	vars := map[string]string{
		"name":     a.Name,
		"email":    a.Email,
		"company":  a.Company,
		"jobTitle": a.JobTitle,
	}
	if r.resourceLinksURL != "" {
		vars[ResourceLinksVar] = r.resourceLinksURL
	}
	if r.feedbackURL != "" {
		vars[FeedbackLinkVar] = r.feedbackURL
	}
	if e != nil {
		vars["eventTitle"] = e.Title
		vars["eventDescription"] = e.Description
		vars["eventLocation"] = e.Location
		vars["eventDate"] = e.StartTime.Format("Monday, January 2, 2006")
		vars["eventTime"] = e.StartTime.Format("3:04 PM MST")
		vars["timeUntilEvent"] = TimeUntil(e.StartTime, time.Now())
	}
	return vars
}

// TimeUntil phrases the gap between now and a future instant the way a
// reminder email would: "2 days", "3 hours", "less than an hour".
func TimeUntil(target, now time.Time) string {
	d := target.Sub(now)
	if d < 0 {
		return "already started"
	}
	switch {
	case d < time.Hour:
		return "less than an hour"
	case d < 24*time.Hour:
		hrs := int(d.Hours())
		if hrs == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hrs)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}
