// Package pipeline runs the stage every webhook source shares once
// trust is established: normalize, filter, classify, forward, audit.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Network-Direction/chatbot/internal/classify"
	"github.com/Network-Direction/chatbot/internal/dispatch"
	"github.com/Network-Direction/chatbot/internal/types"
)

// sink calls are independent best-effort operations; each gets its own
// deadline so a stalled chat send cannot starve the audit write.
const sinkTimeout = 15 * time.Second

// Normalizer maps one raw delivery into canonical events. It must not
// fail; unmappable payloads come back as unknown-kind events.
type Normalizer func(payload []byte) []types.CanonicalEvent

// Pipeline carries one plugin's events from raw payload to the sinks.
// Levels 1 and 2 forward to chat and audit; level 3 audits without
// forwarding; level 4 is suppressed entirely.
type Pipeline struct {
	plugin    string
	rules     *classify.RuleStore
	normalize Normalizer
	chat      dispatch.ChatSender
	audit     dispatch.AuditStore
	clock     types.Clock
	logger    *slog.Logger
}

func New(plugin string, rules *classify.RuleStore, normalize Normalizer, chat dispatch.ChatSender, audit dispatch.AuditStore, clock types.Clock, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		plugin:    plugin,
		rules:     rules,
		normalize: normalize,
		chat:      chat,
		audit:     audit,
		clock:     clock,
		logger:    logger,
	}
}

// Rules exposes the live rule store, whose config block also carries
// the plugin's webhook trust settings.
func (p *Pipeline) Rules() *classify.RuleStore {
	return p.rules
}

// HandleEvent processes one delivery end to end. Failures are logged
// and alerted, never returned; the sender has already been
// acknowledged.
func (p *Pipeline) HandleEvent(ctx context.Context, payload []byte, sourceIP string) {
	rs := p.rules.Current()

	for _, ev := range p.normalize(payload) {
		ev.SourceIP = sourceIP

		if rs.Filtered(&ev) {
			p.logger.Debug("event dropped by filter",
				slog.String("plugin", p.plugin),
				slog.String("topic", ev.Topic))
			continue
		}

		ev.Level = rs.Classify(&ev)
		if ev.Level == types.LevelSuppress {
			continue
		}

		chatID := ""
		if ev.Level <= types.LevelNotice {
			chatID = p.forward(ctx, &ev)
		} else {
			p.logger.Info("event logged without forwarding",
				slog.String("plugin", p.plugin),
				slog.String("kind", string(ev.Kind)),
				slog.String("type", ev.Type),
				slog.Int("level", ev.Level))
		}

		p.record(ctx, &ev, chatID)
	}
}

// forward sends the rendered message and returns the chat message ID,
// or empty string when delivery failed.
func (p *Pipeline) forward(ctx context.Context, ev *types.CanonicalEvent) string {
	sendCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()

	id, err := p.chat.Send(sendCtx, classify.Render(ev, ev.Level))
	if err != nil {
		p.logger.Error("chat delivery failed",
			slog.String("plugin", p.plugin),
			slog.String("kind", string(ev.Kind)),
			slog.String("error_code", string(types.ErrCodeSinkChatSend)),
			slog.String("error", err.Error()))
		p.alert(ctx, fmt.Sprintf("Chat delivery failed for a %s event in site %s", ev.Kind, ev.Site))
		return ""
	}
	return id
}

func (p *Pipeline) record(ctx context.Context, ev *types.CanonicalEvent, chatID string) {
	recCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()

	rec := auditRecord(ev, chatID, p.clock.Now())
	if err := p.audit.Record(recCtx, rec); err != nil {
		p.logger.Error("audit write failed",
			slog.String("plugin", p.plugin),
			slog.String("event", rec.Event),
			slog.String("error_code", string(types.ErrCodeSinkAuditStore)),
			slog.String("error", err.Error()))
		p.alert(ctx, fmt.Sprintf("Audit write failed for a %s event in site %s", ev.Kind, ev.Site))
	}
}

// alert posts an operational notice on a best-effort basis.
func (p *Pipeline) alert(ctx context.Context, text string) {
	alertCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()

	if err := p.chat.Alert(alertCtx, text); err != nil {
		p.logger.Warn("operational alert failed",
			slog.String("plugin", p.plugin),
			slog.String("error", err.Error()))
	}
}

// auditRecord flattens a classified event into the audit row shape.
// Field selection differs per kind because the source payloads do.
func auditRecord(ev *types.CanonicalEvent, chatID string, now time.Time) dispatch.AuditRecord {
	rec := dispatch.AuditRecord{
		Site:     ev.Site,
		LoggedAt: now,
		SourceIP: ev.SourceIP,
		ChatID:   chatID,
	}

	switch ev.Kind {
	case types.KindDeviceEvent:
		rec.Device = ev.Device
		rec.Event = ev.Type
		rec.Description = ev.Text

	case types.KindAlarm:
		rec.Device = strings.Join(ev.Devices, ", ")
		rec.Event = ev.Type

	case types.KindAudit:
		rec.Event, _, _ = strings.Cut(ev.Task, " ")
		rec.Description = stripTaskMarkup(ev.Task)

	case types.KindUpDown:
		rec.Device = ev.Device
		rec.Event = ev.Type

	default:
		rec.Event = ev.Topic
		rec.Description = ev.String()
	}

	return rec
}

var taskMarkupReplacer = strings.NewReplacer("[", "", "]", "", "'", "")

func stripTaskMarkup(task string) string {
	return taskMarkupReplacer.Replace(task)
}
