package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client is the typed HTTP client for the platform backend. It implements
// store.Backend; every call carries the agent bearer token and a generated
// request id for cross-referencing server logs.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a backend client.
func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{},
		logger:  logger,
	}
}

var _ store.Backend = (*Client)(nil)

// FetchChats returns every chat visible to the current agent.
func (c *Client) FetchChats(ctx context.Context) ([]store.Chat, error) {
	var out []store.Chat
	if err := c.do(ctx, http.MethodGet, "/agent/chats", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch chats: %w", err)
	}
	return out, nil
}

// FetchChatInfo returns full metadata for one chat.
func (c *Client) FetchChatInfo(ctx context.Context, chatID string) (*store.ChatInfo, error) {
	var out store.ChatInfo
	path := "/agent/chats/" + url.PathEscape(chatID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch chat info: %w", err)
	}
	return &out, nil
}

// FetchMessages returns a page of non-deleted messages, newest first.
func (c *Client) FetchMessages(ctx context.Context, chatID string, limit, offset int) ([]store.Message, error) {
	var out []store.Message
	path := fmt.Sprintf("/agent/chats/%s/messages?limit=%d&offset=%d",
		url.PathEscape(chatID), limit, offset)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	return out, nil
}

// FetchMessagesSince returns messages created strictly after since, oldest
// first. The polling fallback's fetch path.
func (c *Client) FetchMessagesSince(ctx context.Context, chatID string, since time.Time) ([]store.Message, error) {
	var out []store.Message
	path := fmt.Sprintf("/agent/chats/%s/messages?after=%s",
		url.PathEscape(chatID), url.QueryEscape(since.UTC().Format(time.RFC3339Nano)))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch messages since: %w", err)
	}
	return out, nil
}

// SendMessage persists a new agent message; content is ciphertext.
func (c *Client) SendMessage(ctx context.Context, chatID, content string) (*store.Message, error) {
	body := map[string]string{"content": content}
	var out store.Message
	path := "/agent/chats/" + url.PathEscape(chatID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &out, nil
}

// UpdateChatStatus persists a status change.
func (c *Client) UpdateChatStatus(ctx context.Context, chatID string, status store.Status) error {
	body := map[string]string{"status": string(status)}
	path := "/agent/chats/" + url.PathEscape(chatID) + "/status"
	if err := c.do(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("update chat status: %w", err)
	}
	return nil
}

// MarkMessagesAsRead marks every unread user message in a chat read.
func (c *Client) MarkMessagesAsRead(ctx context.Context, chatID string) error {
	path := "/agent/chats/" + url.PathEscape(chatID) + "/read"
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("mark messages read: %w", err)
	}
	return nil
}

// UnreadCount returns the authoritative unread user-message count.
func (c *Client) UnreadCount(ctx context.Context, chatID string) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	path := "/agent/chats/" + url.PathEscape(chatID) + "/unread_count"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return out.Count, nil
}

// LatestMessage returns the newest non-deleted message, or nil when the
// chat has none (204 from the backend).
func (c *Client) LatestMessage(ctx context.Context, chatID string) (*store.Message, error) {
	var out store.Message
	path := "/agent/chats/" + url.PathEscape(chatID) + "/messages/latest"
	found, err := c.doMaybe(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return nil, fmt.Errorf("latest message: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &out, nil
}

// do issues one request and decodes a 2xx JSON body into out (when out is
// non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	_, err := c.doMaybe(ctx, method, path, body, out)
	return err
}

// doMaybe is do, treating 204 as "no content" instead of decoding. Returns
// whether a body was decoded.
func (c *Client) doMaybe(ctx context.Context, method, path string, body, out any) (bool, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Request-ID", uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("backend call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("backend returned %s: %s",
			strconv.Itoa(resp.StatusCode), strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return true, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}
