// Package mist handles webhooks from the Mist wireless cloud: HMAC
// signature checks, payload normalization across the topic shapes Mist
// emits, and the forward/audit pipeline.
package mist

import (
	"encoding/json"
	"strings"

	"github.com/Network-Direction/chatbot/internal/types"
)

// wirePayload is the outer shape of every Mist webhook delivery. Each
// delivery carries one topic and a batch of events under it.
type wirePayload struct {
	Topic  string            `json:"topic"`
	Events []json.RawMessage `json:"events"`
}

type wireEvent struct {
	DeviceName string   `json:"device_name"`
	DeviceType string   `json:"device_type"`
	Type       string   `json:"type"`
	MAC        string   `json:"mac"`
	SiteName   string   `json:"site_name"`
	Text       string   `json:"text"`
	Count      int      `json:"count"`
	Hostnames  []string `json:"hostnames"`
	Message    string   `json:"message"`
	Before     string   `json:"before"`
	After      string   `json:"after"`
	AdminName  string   `json:"admin_name"`
}

const (
	topicDeviceEvents = "device-events"
	topicAlarms       = "alarms"
	topicAudits       = "audits"
	topicUpDowns      = "device-updowns"

	noSite = "No site listed"
	noText = "no additional details available"
	noDiff = "No details available"
)

// Normalize maps a raw Mist delivery into canonical events, one per
// entry in the batch. It never fails: payloads that do not parse, and
// topics with no mapping, come back as a single unknown-kind event
// carrying the raw bytes, so a malformed delivery cannot take down the
// pipeline.
func Normalize(payload []byte) []types.CanonicalEvent {
	var wire wirePayload
	if err := json.Unmarshal(payload, &wire); err != nil || len(wire.Events) == 0 {
		return []types.CanonicalEvent{{
			Kind:  types.KindUnknown,
			Site:  types.DefaultSite,
			Topic: wire.Topic,
			Raw:   json.RawMessage(payload),
		}}
	}

	events := make([]types.CanonicalEvent, 0, len(wire.Events))
	for _, raw := range wire.Events {
		var ev wireEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			events = append(events, types.CanonicalEvent{
				Kind:  types.KindUnknown,
				Site:  types.DefaultSite,
				Topic: wire.Topic,
				Raw:   raw,
			})
			continue
		}
		events = append(events, normalizeOne(wire.Topic, &ev, raw))
	}
	return events
}

func normalizeOne(topic string, ev *wireEvent, raw json.RawMessage) types.CanonicalEvent {
	out := types.CanonicalEvent{Topic: topic}

	switch topic {
	case topicDeviceEvents:
		out.Kind = types.KindDeviceEvent
		out.Device = ev.DeviceName
		out.Type = ev.Type
		out.MAC = ev.MAC
		out.Site = orDefault(ev.SiteName, noSite)
		out.Text = orDefault(ev.Text, noText)

	case topicAlarms:
		out.Kind = types.KindAlarm
		out.Count = ev.Count
		out.Site = orDefault(ev.SiteName, noSite)
		out.Type = ev.Type
		out.Devices = ev.Hostnames

	case topicAudits:
		out.Kind = types.KindAudit
		out.Task = ev.Message
		out.Before = ev.Before
		out.After = orDefault(ev.After, noDiff)
		out.Admin = orDefault(ev.AdminName, types.DefaultAdmin)
		out.Site = orDefault(ev.SiteName, types.DefaultSite)

	case topicUpDowns:
		out.Kind = types.KindUpDown
		out.Device = ev.DeviceName
		out.Name = ev.DeviceType
		out.MAC = ev.MAC
		out.Site = orDefault(ev.SiteName, noSite)
		out.Type = ev.Type

	default:
		out.Kind = types.KindUnknown
		out.Site = types.DefaultSite
		out.Raw = raw
	}

	return out
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
