package classify

import (
	"strings"

	"github.com/Network-Direction/chatbot/internal/types"
)

// audit tasks carry their target in a trailing quoted segment; only the
// prefix before it identifies the task for rule lookup.
const auditTaskCut = ` "`

// ruleKey returns the exact-match table key for an event.
func ruleKey(ev *types.CanonicalEvent) string {
	if ev.Kind == types.KindAudit {
		task, _, _ := strings.Cut(ev.Task, auditTaskCut)
		return task
	}
	return ev.Type
}

// keywordText returns the free-text field keyword sub-rules match
// against.
func keywordText(ev *types.CanonicalEvent) string {
	switch ev.Kind {
	case types.KindAudit:
		return ev.Task
	default:
		if ev.Text != "" {
			return ev.Text
		}
		return ev.String()
	}
}

// Filtered reports whether any global filter keyword appears anywhere in
// the event. Filtered events are dropped before level assignment.
func (rs *RuleSet) Filtered(ev *types.CanonicalEvent) bool {
	if len(rs.Filters) == 0 {
		return false
	}
	rendered := ev.String()
	for _, kw := range rs.Filters {
		if strings.Contains(rendered, kw) {
			return true
		}
	}
	return false
}

// Classify assigns a severity level to the event. Events with no rule
// for their kind or type fail open to critical so that unconfigured
// event types are surfaced rather than silently dropped.
func (rs *RuleSet) Classify(ev *types.CanonicalEvent) int {
	kind, ok := rs.Kinds[ev.Kind]
	if !ok {
		return types.LevelCritical
	}
	rule, ok := kind[ruleKey(ev)]
	if !ok {
		return types.LevelCritical
	}
	return rule.Resolve(keywordText(ev))
}
