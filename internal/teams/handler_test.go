package teams

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"log/slog"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Network-Direction/chatbot/internal/dispatch"
	"github.com/Network-Direction/chatbot/internal/envelope"
)

type fakeChat struct {
	sent []string
	err  error
}

func (f *fakeChat) Send(_ context.Context, body string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, body)
	return "msg-1", nil
}

func (f *fakeChat) Alert(context.Context, string) error { return nil }

func newTestEngine(t *testing.T) (*envelope.Engine, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	engine, err := envelope.New(pemBytes)
	require.NoError(t, err)
	return engine, key
}

// seal builds a valid encrypted envelope the way the sender does:
// OAEP-wrapped AES key, CBC ciphertext with IV taken from the key
// head, and a Base64 HMAC signature over the ciphertext.
func seal(t *testing.T, pub *rsa.PublicKey, plaintext []byte) envelope.EncryptedContent {
	t.Helper()

	key := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, key)
	require.NoError(t, err)

	wrapped, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, key, nil)
	require.NoError(t, err)

	pad := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := append(append([]byte{}, plaintext...), make([]byte, pad)...)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(pad)
	}

	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, key[:aes.BlockSize]).CryptBlocks(ciphertext, padded)

	mac := hmac.New(sha256.New, key)
	mac.Write(ciphertext)

	return envelope.EncryptedContent{
		DataKey:       base64.StdEncoding.EncodeToString(wrapped),
		DataSignature: base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		Data:          base64.StdEncoding.EncodeToString(ciphertext),
	}
}

func notificationBody(t *testing.T, content envelope.EncryptedContent) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"value": []map[string]any{{
			"subscriptionId":   "sub-1",
			"encryptedContent": content,
		}},
	})
	require.NoError(t, err)
	return body
}

func userMessage(t *testing.T, sender, content string) []byte {
	t.Helper()
	msg, err := json.Marshal(map[string]any{
		"body": map[string]string{"content": content},
		"from": map[string]any{"user": map[string]string{"displayName": sender}},
	})
	require.NoError(t, err)
	return msg
}

func newTestHandler(t *testing.T) (*Handler, *fakeChat, *rsa.PrivateKey) {
	t.Helper()
	engine, key := newTestEngine(t)
	chat := &fakeChat{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(engine, chat, "Net Bot", logger), chat, key
}

func TestAuthenticateValidationHandshake(t *testing.T) {
	h, _, _ := newTestHandler(t)

	res := h.Authenticate(&dispatch.Request{
		Query: url.Values{"validationToken": []string{"tok&en 123"}},
	})

	assert.Equal(t, dispatch.AuthRespond, res.Outcome)
	assert.Equal(t, "tok&en 123", res.Response)
}

func TestAuthenticateDecryptsEnvelope(t *testing.T) {
	h, _, key := newTestHandler(t)
	plaintext := userMessage(t, "Alice", "<p>hello</p>")

	res := h.Authenticate(&dispatch.Request{
		Query: url.Values{},
		Body:  notificationBody(t, seal(t, &key.PublicKey, plaintext)),
	})

	assert.Equal(t, dispatch.AuthOK, res.Outcome)
	assert.JSONEq(t, string(plaintext), string(res.Payload))
}

func TestAuthenticateTamperedEnvelope(t *testing.T) {
	h, _, key := newTestHandler(t)
	content := seal(t, &key.PublicKey, userMessage(t, "Alice", "<p>hello</p>"))

	raw, err := base64.StdEncoding.DecodeString(content.Data)
	require.NoError(t, err)
	raw[0] ^= 0x01
	content.Data = base64.StdEncoding.EncodeToString(raw)

	res := h.Authenticate(&dispatch.Request{
		Query: url.Values{},
		Body:  notificationBody(t, content),
	})
	assert.Equal(t, dispatch.AuthFailed, res.Outcome)
}

func TestAuthenticateMalformedBody(t *testing.T) {
	h, _, _ := newTestHandler(t)

	for _, body := range [][]byte{[]byte("not json"), []byte(`{"value": []}`)} {
		res := h.Authenticate(&dispatch.Request{Query: url.Values{}, Body: body})
		assert.Equal(t, dispatch.AuthFailed, res.Outcome)
	}
}

func TestHandleEventRepliesToGreeting(t *testing.T) {
	h, chat, _ := newTestHandler(t)

	h.HandleEvent(context.Background(), userMessage(t, "Alice", "<p>hi there</p>"), "10.0.0.1")

	require.Len(t, chat.sent, 1)
	assert.Equal(t, "hi", chat.sent[0])
}

func TestHandleEventIgnoresOwnMessages(t *testing.T) {
	h, chat, _ := newTestHandler(t)

	h.HandleEvent(context.Background(), userMessage(t, "Net Bot", "<p>hi</p>"), "10.0.0.1")
	assert.Empty(t, chat.sent)

	appMsg, err := json.Marshal(map[string]any{
		"body": map[string]string{"content": "<p>hi</p>"},
		"from": map[string]any{"application": map[string]string{"displayName": "Net Bot"}},
	})
	require.NoError(t, err)
	h.HandleEvent(context.Background(), appMsg, "10.0.0.1")
	assert.Empty(t, chat.sent)
}

func TestHandleEventNoReplyForPlainChatter(t *testing.T) {
	h, chat, _ := newTestHandler(t)

	h.HandleEvent(context.Background(), userMessage(t, "Alice", "<p>deploy went fine</p>"), "10.0.0.1")
	assert.Empty(t, chat.sent)
}

func TestReplyJoke(t *testing.T) {
	reply := Reply("<p>tell me a joke</p>", "Alice")
	assert.Contains(t, jokes, reply)
}

func TestReplyAssistants(t *testing.T) {
	assert.Equal(t, "She's way out of my league", Reply("ask siri", "Alice"))
	assert.Equal(t, "She's way out of my league", Reply("what about ALEXA?", "Alice"))
}
