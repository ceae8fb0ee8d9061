// Package verify implements shared-secret authentication for plain
// webhook sources. Senders compute HMAC-SHA256 over the raw request body
// with a pre-shared secret and carry the hex digest in a vendor-specific
// header (e.g. X-Mist-Signature-V2).
package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/Network-Direction/chatbot/internal/types"
)

// Outcome is the result of a signature check. Absent is distinct from
// Invalid: some sources are intentionally configured without a secret and
// callers acknowledge those differently from a forged signature.
type Outcome int

const (
	// Valid means the header digest matched our own computation.
	Valid Outcome = iota
	// Invalid means the header was present but the digest did not match.
	Invalid
	// Absent means the expected header was not sent at all.
	Absent
)

// String returns a short label for logging.
func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	case Absent:
		return "absent"
	}
	return "unknown"
}

// Verify checks the webhook signature header against our own HMAC-SHA256
// of the raw body. The body must be the exact bytes as received, captured
// before any parsing: re-serializing a parsed payload is not guaranteed
// to be byte-identical to what the sender signed.
func Verify(secret types.SecretString, headerName string, headers http.Header, body []byte) Outcome {
	sent := headers.Get(headerName)
	if sent == "" {
		return Absent
	}

	mac := hmac.New(sha256.New, []byte(secret.Unmask()))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	if hmac.Equal([]byte(computed), []byte(sent)) {
		return Valid
	}
	return Invalid
}
