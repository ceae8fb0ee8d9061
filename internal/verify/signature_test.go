package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Network-Direction/chatbot/internal/types"
)

const testHeader = "X-Mist-Signature-V2"

// sign computes the digest a well-behaved sender would attach.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerify_ValidSignature(t *testing.T) {
	secret := types.SecretString("webhook-secret-1")
	body := []byte(`{"topic":"device-events","events":[{"type":"AP_CONNECTED"}]}`)

	headers := http.Header{}
	headers.Set(testHeader, sign("webhook-secret-1", body))

	assert.Equal(t, Valid, Verify(secret, testHeader, headers, body))

	// Determinism: the same inputs must verify the same way twice.
	assert.Equal(t, Valid, Verify(secret, testHeader, headers, body))
}

func TestVerify_AbsentHeader(t *testing.T) {
	secret := types.SecretString("webhook-secret-1")
	body := []byte(`{}`)

	// Absent must be distinguishable from Invalid: a source without a
	// configured secret sends no header at all.
	assert.Equal(t, Absent, Verify(secret, testHeader, http.Header{}, body))
}

func TestVerify_WrongSecret(t *testing.T) {
	body := []byte(`{"topic":"alarms"}`)

	headers := http.Header{}
	headers.Set(testHeader, sign("the-wrong-secret", body))

	assert.Equal(t, Invalid, Verify(types.SecretString("the-right-secret"), testHeader, headers, body))
}

func TestVerify_TamperedBody(t *testing.T) {
	secret := types.SecretString("webhook-secret-1")
	body := []byte(`{"topic":"audits","events":[{"message":"Update Device"}]}`)

	headers := http.Header{}
	headers.Set(testHeader, sign("webhook-secret-1", body))

	// Flipping any single byte of the body must flip the outcome.
	for i := range body {
		tampered := make([]byte, len(body))
		copy(tampered, body)
		tampered[i] ^= 0x01

		assert.Equal(t, Invalid, Verify(secret, testHeader, headers, tampered),
			"byte %d flip should invalidate the signature", i)
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "valid", Valid.String())
	assert.Equal(t, "invalid", Invalid.String())
	assert.Equal(t, "absent", Absent.String())
}
