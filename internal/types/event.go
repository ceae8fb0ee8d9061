package types

import "encoding/json"

// EventKind tags a CanonicalEvent with its normalized category. Every
// vendor payload maps onto one of these kinds; anything unrecognized is
// preserved under KindUnknown rather than dropped.
type EventKind string

const (
	KindDeviceEvent EventKind = "device_event"
	KindAlarm       EventKind = "alarm"
	KindAudit       EventKind = "audit"
	KindUpDown      EventKind = "updown"
	KindUnknown     EventKind = "unknown"
)

// Severity levels assigned by the classifier. Lower numbers forward to
// chat; LevelLogOnly is logged and audited but never forwarded;
// LevelSuppress produces no output at all.
const (
	LevelCritical = 1
	LevelNotice   = 2
	LevelLogOnly  = 3
	LevelSuppress = 4
)

// DefaultAdmin and DefaultSite are injected when the source payload omits
// the corresponding fields, so that rule lookups always have a key to
// index on.
const (
	DefaultAdmin = "system"
	DefaultSite  = "global"
)

// CanonicalEvent is the normalized, kind-tagged record produced from any
// vendor payload. The normalizer creates it and fills gaps with
// deterministic defaults; the classifier annotates Level. It is never
// mutated after classification.
type CanonicalEvent struct {
	Kind EventKind `json:"event"`
	Site string    `json:"site,omitempty"`

	// Free-text detail. Device events carry Text; audits carry Task.
	Text string `json:"text,omitempty"`
	Task string `json:"task,omitempty"`

	// Kind-specific optional fields.
	Type    string   `json:"type,omitempty"`
	Name    string   `json:"name,omitempty"`
	Device  string   `json:"device,omitempty"`
	MAC     string   `json:"mac,omitempty"`
	Count   int      `json:"count,omitempty"`
	Devices []string `json:"devices,omitempty"`
	Admin   string   `json:"admin,omitempty"`
	Before  string   `json:"before,omitempty"`
	After   string   `json:"after,omitempty"`

	// For KindUnknown the original topic and raw record are preserved so
	// no inbound payload is silently discarded.
	Topic string          `json:"topic,omitempty"`
	Raw   json.RawMessage `json:"data,omitempty"`

	// SourceIP is the network address the webhook arrived from.
	SourceIP string `json:"src_ip,omitempty"`

	// Level is the classifier's severity annotation (1-4). Zero means
	// not yet classified.
	Level int `json:"level,omitempty"`
}

// String renders the event as compact JSON. Used for keyword filtering
// (the filter list matches against the whole rendered event) and for
// local logging of non-forwarded events.
func (e *CanonicalEvent) String() string {
	b, err := json.Marshal(e)
	if err != nil {
		return string(e.Kind)
	}
	return string(b)
}
