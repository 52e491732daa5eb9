package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// WebhookTransport delivers posts to an external messaging gateway over HTTP.
// The gateway owns the actual chat platform; this side only needs the three
// verbs and the failure classes.
//
//	GET  {base}/chats/{id}            -> 200 known, 404 unknown
//	POST {base}/chats/{id}/messages   -> 200 sent, 403 blocked, 400 rejected
//	POST {base}/chats/{id}/leave      -> 200 left
type WebhookTransport struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

func NewWebhookTransport(httpClient *http.Client, baseURL, userAgent string) *WebhookTransport {
	return &WebhookTransport{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
	}
}

func (t *WebhookTransport) ResolveEntity(ctx context.Context, chatID int64) error {
	resp, err := t.do(ctx, "GET", fmt.Sprintf("%s/chats/%d", t.baseURL, chatID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("chat %d: %w", chatID, ErrEntityNotFound)
	default:
		return fmt.Errorf("resolve chat %d: unexpected status %d", chatID, resp.StatusCode)
	}
}

func (t *WebhookTransport) SendMessage(ctx context.Context, chatID int64, html string, silent bool) error {
	payload, err := json.Marshal(map[string]interface{}{
		"html":   html,
		"silent": silent,
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	resp, err := t.do(ctx, "POST", fmt.Sprintf("%s/chats/%d/messages", t.baseURL, chatID), payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusForbidden:
		return &UserBlockedError{Reason: gatewayMessage(resp.Body)}
	case http.StatusBadRequest:
		return &BadRequestError{Message: gatewayMessage(resp.Body)}
	case http.StatusNotFound:
		return fmt.Errorf("chat %d: %w", chatID, ErrEntityNotFound)
	default:
		return fmt.Errorf("send to chat %d: unexpected status %d", chatID, resp.StatusCode)
	}
}

func (t *WebhookTransport) LeaveChat(ctx context.Context, chatID int64) error {
	resp, err := t.do(ctx, "POST", fmt.Sprintf("%s/chats/%d/leave", t.baseURL, chatID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("leave chat %d: unexpected status %d", chatID, resp.StatusCode)
	}
	return nil
}

func (t *WebhookTransport) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	return resp, nil
}

// gatewayMessage extracts the gateway's error message, preferring the JSON
// "message" field over the raw body.
func gatewayMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}

	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	return strings.TrimSpace(string(data))
}

// LogTransport writes deliveries to the log instead of a gateway. Used when
// no webhook URL is configured, so the monitor can run standalone.
type LogTransport struct{}

func (LogTransport) ResolveEntity(ctx context.Context, chatID int64) error {
	return nil
}

func (LogTransport) SendMessage(ctx context.Context, chatID int64, html string, silent bool) error {
	slog.Info("Delivery (dry run)", "chat", chatID, "silent", silent, "html", html)
	return nil
}

func (LogTransport) LeaveChat(ctx context.Context, chatID int64) error {
	slog.Info("Leave chat (dry run)", "chat", chatID)
	return nil
}
