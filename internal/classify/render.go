package classify

import (
	"fmt"
	"html"
	"strings"

	"github.com/Network-Direction/chatbot/internal/types"
)

// Chat messages are HTML; the receiving chat client renders the colour
// spans. All event-sourced values pass through html.EscapeString so a
// hostile webhook body cannot inject markup.

func span(colour, text string) string {
	return fmt.Sprintf("<span style='color:%s'>%s</span>", colour, html.EscapeString(text))
}

// Render composes the chat message body for a classified event. Critical
// events get a bold alert prefix so they stand out in the channel.
func Render(ev *types.CanonicalEvent, level int) string {
	var body string
	switch ev.Kind {
	case types.KindDeviceEvent:
		body = fmt.Sprintf("%s in %s: %s (%s)",
			span("Yellow", ev.Device),
			span("Lime", ev.Site),
			html.EscapeString(ev.Text),
			span("Orange", ev.Type))

	case types.KindAlarm:
		devices := strings.Join(ev.Devices, ", ")
		if devices == "" {
			devices = ev.Device
		}
		body = fmt.Sprintf("%s alarm in %s affecting %d device(s): %s",
			span("Orange", ev.Type),
			span("Lime", ev.Site),
			ev.Count,
			span("Yellow", devices))

	case types.KindAudit:
		body = fmt.Sprintf("%s in %s: %s",
			span("Yellow", ev.Admin),
			span("Lime", ev.Site),
			html.EscapeString(ev.Task))
		if ev.Before != "" || ev.After != "" {
			body += fmt.Sprintf("<br>Before: %s<br>After: %s",
				html.EscapeString(ev.Before),
				html.EscapeString(ev.After))
		}

	case types.KindUpDown:
		body = fmt.Sprintf("%s in %s: %s (%s)",
			span("Yellow", ev.Device),
			span("Lime", ev.Site),
			span("Orange", ev.Type),
			html.EscapeString(ev.MAC))

	default:
		body = fmt.Sprintf("Unhandled event from %s: %s",
			span("Lime", ev.Site),
			html.EscapeString(ev.String()))
	}

	if level == types.LevelCritical {
		return "<b>&#128680; Critical</b><br>" + body
	}
	return body
}
