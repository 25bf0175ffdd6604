// Package agentchat provides a small Go client for the agent chat REST API.
package agentchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// DefaultPollInterval is used by WaitForReply between status checks.
const DefaultPollInterval = 500 * time.Millisecond

// Client wraps the HTTP interactions with the agent chat REST API.
// The user identity is attached to every request via the X-User-ID header.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userID     int64
}

// Message contains the state of a submitted chat message.
type Message struct {
	MessageID   string `json:"message_id"`
	Text        string `json:"text"`
	Status      string `json:"status"`
	Reply       string `json:"reply,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	PollPath    string `json:"poll_path,omitempty"`
}

// HistoryMessage is one prior turn of the conversation, replayed so the
// planner sees the same context the user does. Role is "user" or "assistant".
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Terminal reports whether the message reached a final status.
func (m Message) Terminal() bool {
	return m.Status == "COMPLETED" || m.Status == "ERROR"
}

// Confirmation is a pending approval for a state-changing tool call.
type Confirmation struct {
	ID       string `json:"id"`
	ToolName string `json:"tool_name"`
	Text     string `json:"text"`
	Status   string `json:"status"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("agentchat api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("agentchat api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the agent chat API. When httpClient is
// nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, userID int64, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient, userID: userID}, nil
}

// Submit sends a chat message, optionally with prior conversation history,
// and returns the queued job.
func (c *Client) Submit(ctx context.Context, text string, history ...HistoryMessage) (Message, error) {
	payload := struct {
		Text    string           `json:"text"`
		History []HistoryMessage `json:"history,omitempty"`
	}{Text: text, History: history}

	var message Message
	err := c.post(ctx, "/chat/messages", payload, &message)
	return message, err
}

// Status fetches the current state of a message.
func (c *Client) Status(ctx context.Context, messageID string) (Message, error) {
	var message Message
	err := c.get(ctx, "/chat/messages/"+url.PathEscape(messageID), &message)
	return message, err
}

// Confirmations lists the confirmation items registered for a message.
func (c *Client) Confirmations(ctx context.Context, messageID string) ([]Confirmation, error) {
	var out struct {
		Confirmations []Confirmation `json:"confirmations"`
	}
	endpoint := "/chat/messages/" + url.PathEscape(messageID) + "/confirmations"
	if err := c.get(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out.Confirmations, nil
}

// Approve approves a pending confirmation.
func (c *Client) Approve(ctx context.Context, messageID, confirmationID string) error {
	return c.resolve(ctx, messageID, confirmationID, "approve")
}

// Decline declines a pending confirmation.
func (c *Client) Decline(ctx context.Context, messageID, confirmationID string) error {
	return c.resolve(ctx, messageID, confirmationID, "decline")
}

func (c *Client) resolve(ctx context.Context, messageID, confirmationID, verb string) error {
	endpoint := "/chat/messages/" + url.PathEscape(messageID) +
		"/confirmations/" + url.PathEscape(confirmationID) + "/" + verb
	return c.post(ctx, endpoint, struct{}{}, nil)
}

// WaitForReply polls the message status until it reaches a terminal state or
// the context is cancelled.
func (c *Client) WaitForReply(ctx context.Context, messageID string, poll time.Duration) (Message, error) {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		message, err := c.Status(ctx, messageID)
		if err != nil {
			return Message{}, err
		}
		if message.Terminal() {
			return message, nil
		}
		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-User-ID", strconv.FormatInt(c.userID, 10))
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr APIError
		apiErr.StatusCode = resp.StatusCode
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}

	if out == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
