package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Network-Direction/chatbot/internal/types"
)

// SubscriptionSpec describes the change notification subscription the
// gateway wants: created messages on one chat resource, delivered
// encrypted with the configured certificate.
type SubscriptionSpec struct {
	ChangeType              string `json:"changeType"`
	NotificationURL         string `json:"notificationUrl"`
	Resource                string `json:"resource"`
	ExpirationDateTime      string `json:"expirationDateTime"`
	ClientState             string `json:"clientState,omitempty"`
	IncludeResourceData     bool   `json:"includeResourceData"`
	EncryptionCertificate   string `json:"encryptionCertificate,omitempty"`
	EncryptionCertificateID string `json:"encryptionCertificateId,omitempty"`
}

// SubscriptionClient manages change notification subscriptions.
type SubscriptionClient struct {
	client  *Client
	creds   CredentialSource
	baseURL string
}

func NewSubscriptionClient(client *Client, creds CredentialSource, baseURL string) *SubscriptionClient {
	if baseURL == "" {
		baseURL = DefaultGraphBaseURL
	}
	return &SubscriptionClient{client: client, creds: creds, baseURL: baseURL}
}

// List returns every subscription the app currently holds.
func (c *SubscriptionClient) List(ctx context.Context) ([]types.Subscription, error) {
	var page struct {
		Value []types.Subscription `json:"value"`
	}
	if err := c.call(ctx, http.MethodGet, c.baseURL+"/subscriptions", nil, &page); err != nil {
		return nil, err
	}
	return page.Value, nil
}

// Create registers a new subscription and returns it with the
// platform-assigned identifier and granted expiry.
func (c *SubscriptionClient) Create(ctx context.Context, spec SubscriptionSpec) (*types.Subscription, error) {
	var sub types.Subscription
	if err := c.call(ctx, http.MethodPost, c.baseURL+"/subscriptions", spec, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Renew extends an existing subscription's expiry in place.
func (c *SubscriptionClient) Renew(ctx context.Context, id string, expiresAt time.Time) (*types.Subscription, error) {
	patch := struct {
		ExpirationDateTime string `json:"expirationDateTime"`
	}{ExpirationDateTime: expiresAt.UTC().Format(time.RFC3339)}

	var sub types.Subscription
	endpoint := fmt.Sprintf("%s/subscriptions/%s", c.baseURL, id)
	if err := c.call(ctx, http.MethodPatch, endpoint, patch, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *SubscriptionClient) call(ctx context.Context, method, endpoint string, in, out any) error {
	cred := c.creds.Current()
	if cred == nil {
		return types.NewAppError(types.ErrCodeLifecycleNoCredential, "no bearer credential available", nil)
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalUnexpected, "encoding subscription request", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "building subscription request", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken.Unmask())

	resp, err := c.client.Do(req)
	if err != nil {
		return types.NewAppError(types.ErrCodeLifecycleSubscription, "subscription request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return types.NewAppError(types.ErrCodeLifecycleSubscription,
			fmt.Sprintf("subscription endpoint returned %d: %s", resp.StatusCode, snippet), nil)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return types.NewAppError(types.ErrCodeLifecycleSubscription, "decoding subscription response", err)
		}
	}
	return nil
}
