package notify

import (
	"fmt"

	"github.com/m365ops/watchtower/internal/model"
)

// Route is one severity's notification routing: the channel to post to, the
// attachment color, the flag prepended to the title, and the mention list.
type Route struct {
	Channel  string
	Color    string
	Flag     string
	Mentions []string
}

// Slack attachment colors and title flags are fixed per severity; channels
// and mentions come from configuration.
var severityColors = map[model.Severity]string{
	model.SeverityCritical: "danger",
	model.SeverityHigh:     "warning",
	model.SeverityMedium:   "#439FE0",
	model.SeverityLow:      "good",
}

var severityFlags = map[model.Severity]string{
	model.SeverityCritical: "🚨",
	model.SeverityHigh:     "⚠️",
	model.SeverityMedium:   "🔔",
	model.SeverityLow:      "ℹ️",
}

// Policy is the static severity-to-route table. It is assembled once at
// startup and immutable for the process lifetime.
type Policy struct {
	routes map[model.Severity]Route
}

// NewPolicy builds the severity route table from configured channels and
// mention roles. Every defined severity must resolve to a non-empty channel;
// mentions may be empty.
func NewPolicy(channels map[string]string, mentions map[string][]string) (*Policy, error) {
	routes := make(map[model.Severity]Route, len(model.Severities))
	for _, sev := range model.Severities {
		channel := channels[string(sev)]
		if channel == "" {
			return nil, fmt.Errorf("no channel configured for severity %q", sev)
		}
		routes[sev] = Route{
			Channel:  channel,
			Color:    severityColors[sev],
			Flag:     severityFlags[sev],
			Mentions: mentions[string(sev)],
		}
	}
	return &Policy{routes: routes}, nil
}

// Resolve returns the route for a severity level
func (p *Policy) Resolve(sev model.Severity) (Route, bool) {
	route, ok := p.routes[sev]
	return route, ok
}
