package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Network-Direction/chatbot/internal/types"
)

// DefaultGraphBaseURL is the Graph API root used unless a test
// overrides it.
const DefaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

// CredentialSource yields the current bearer credential. The lifecycle
// manager implements it; chat calls read whatever token is live at the
// moment of the call.
type CredentialSource interface {
	Current() *types.Credential
}

// ChatClient posts messages into the event channel and, separately, the
// operational alert channel.
type ChatClient struct {
	client      *Client
	creds       CredentialSource
	baseURL     string
	chatID      string
	alertChatID string
}

func NewChatClient(client *Client, creds CredentialSource, baseURL, chatID, alertChatID string) *ChatClient {
	if baseURL == "" {
		baseURL = DefaultGraphBaseURL
	}
	return &ChatClient{
		client:      client,
		creds:       creds,
		baseURL:     baseURL,
		chatID:      chatID,
		alertChatID: alertChatID,
	}
}

type chatMessage struct {
	Body chatBody `json:"body"`
}

type chatBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Send posts an HTML message to the event channel and returns the
// platform message identifier.
func (c *ChatClient) Send(ctx context.Context, htmlBody string) (string, error) {
	return c.post(ctx, c.chatID, htmlBody)
}

// Alert posts an operational notice to the alert channel. Alerts are
// plain sentences; they still go through as HTML content.
func (c *ChatClient) Alert(ctx context.Context, text string) error {
	_, err := c.post(ctx, c.alertChatID, text)
	return err
}

func (c *ChatClient) post(ctx context.Context, chatID, content string) (string, error) {
	cred := c.creds.Current()
	if cred == nil {
		return "", types.NewAppError(types.ErrCodeLifecycleNoCredential, "no bearer credential available", nil)
	}

	payload, err := json.Marshal(chatMessage{Body: chatBody{ContentType: "html", Content: content}})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "encoding chat message", err)
	}

	endpoint := fmt.Sprintf("%s/chats/%s/messages", c.baseURL, chatID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "building chat request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken.Unmask())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeSinkChatSend, "sending chat message", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", types.NewAppError(types.ErrCodeSinkChatSend,
			fmt.Sprintf("chat send returned %d: %s", resp.StatusCode, snippet), nil)
	}

	var sent struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sent); err != nil {
		return "", types.NewAppError(types.ErrCodeSinkChatSend, "decoding chat response", err)
	}
	return sent.ID, nil
}
