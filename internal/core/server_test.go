package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Network-Direction/chatbot/internal/config"
	"github.com/Network-Direction/chatbot/internal/dispatch"
	"github.com/Network-Direction/chatbot/internal/lifecycle"
	"github.com/Network-Direction/chatbot/internal/types"
)

type stubHandler struct {
	auth    dispatch.AuthResult
	payload []byte
	source  string
}

func (s *stubHandler) Authenticate(*dispatch.Request) dispatch.AuthResult { return s.auth }

func (s *stubHandler) HandleEvent(_ context.Context, payload []byte, sourceIP string) {
	s.payload = payload
	s.source = sourceIP
}

type stubExchanger struct {
	code string
	err  error
}

func (s *stubExchanger) Exchange(_ context.Context, code string) (*types.Credential, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.code = code
	return &types.Credential{
		AccessToken: types.SecretString("at"),
		ExpiresAt:   time.Now().Add(time.Hour),
	}, nil
}

func (s *stubExchanger) Refresh(context.Context, types.SecretString) (*types.Credential, error) {
	return nil, errors.New("not used")
}

func newTestServer(t *testing.T, oauth lifecycle.TokenExchanger, handlers map[string]dispatch.Handler) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := dispatch.NewRegistry(logger)
	for route, h := range handlers {
		registry.Register(route, h)
	}

	store := lifecycle.NewFileStore(filepath.Join(t.TempDir(), "token.json"))
	tokens := lifecycle.NewTokenManager(oauth, store, types.RealClock{}, nil, logger)

	cfg := &config.Config{}
	cfg.Server.Port = "8080"

	srv, err := NewServer(cfg, registry, tokens, logger)
	require.NoError(t, err)
	return srv
}

func get(srv *Server, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func post(srv *Server, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.RemoteAddr = "203.0.113.9:51000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestTestRoute(t *testing.T) {
	srv := newTestServer(t, &stubExchanger{}, nil)

	rec := get(srv, "/test")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "8080")
}

func TestCallbackExchangesCode(t *testing.T) {
	oauth := &stubExchanger{}
	srv := newTestServer(t, oauth, nil)

	rec := get(srv, "/callback?code=auth-9")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Thankyou for authenticating")
	assert.Equal(t, "auth-9", oauth.code)
}

func TestCallbackMissingCode(t *testing.T) {
	srv := newTestServer(t, &stubExchanger{}, nil)

	rec := get(srv, "/callback")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallbackExchangeFailure(t *testing.T) {
	srv := newTestServer(t, &stubExchanger{err: errors.New("invalid code")}, nil)

	rec := get(srv, "/callback?code=bad")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "invalid code",
		"upstream detail stays in the logs")
}

func TestWebhookRouteDispatch(t *testing.T) {
	h := &stubHandler{auth: dispatch.AuthResult{Outcome: dispatch.AuthOK}}
	srv := newTestServer(t, &stubExchanger{}, map[string]dispatch.Handler{"mist": h})

	rec := post(srv, "/mist", `{"topic":"alarms"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dispatch.AckReceived, rec.Body.String())
	assert.Equal(t, `{"topic":"alarms"}`, string(h.payload))
	assert.Equal(t, "203.0.113.9", h.source)
}

func TestWebhookUnknownRoute(t *testing.T) {
	srv := newTestServer(t, &stubExchanger{}, nil)

	rec := post(srv, "/whatever", "{}", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, dispatch.AckInvalidPath, rec.Body.String())
}

func TestWebhookForwardedForWins(t *testing.T) {
	h := &stubHandler{auth: dispatch.AuthResult{Outcome: dispatch.AuthOK}}
	srv := newTestServer(t, &stubExchanger{}, map[string]dispatch.Handler{"mist": h})

	post(srv, "/mist", "{}", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1"})
	assert.Equal(t, "198.51.100.1", h.source)
}

func TestChatValidationEcho(t *testing.T) {
	h := &stubHandler{auth: dispatch.AuthResult{Outcome: dispatch.AuthRespond, Response: "tok-1"}}
	srv := newTestServer(t, &stubExchanger{}, map[string]dispatch.Handler{"chat": h})

	rec := post(srv, "/chat?validationToken=tok-1", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-1", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t, &stubExchanger{}, nil)

	rec := get(srv, "/test")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
