package store

import (
	"context"
	"time"
)

// Backend is the remote data layer the stores read from and write through.
// Implemented by the HTTP client in internal/api; tests supply fakes.
type Backend interface {
	// FetchChats returns every chat visible to the current agent.
	FetchChats(ctx context.Context) ([]Chat, error)
	// FetchChatInfo returns full metadata for one chat.
	FetchChatInfo(ctx context.Context, chatID string) (*ChatInfo, error)
	// FetchMessages returns a page of non-deleted messages for a chat,
	// newest first, offset counted from the newest message.
	FetchMessages(ctx context.Context, chatID string, limit, offset int) ([]Message, error)
	// FetchMessagesSince returns non-deleted messages created strictly
	// after the given time, oldest first.
	FetchMessagesSince(ctx context.Context, chatID string, since time.Time) ([]Message, error)
	// SendMessage persists a new agent message; content is ciphertext.
	// The returned echo is informational — display goes through ingest.
	SendMessage(ctx context.Context, chatID, content string) (*Message, error)
	// UpdateChatStatus persists a status change.
	UpdateChatStatus(ctx context.Context, chatID string, status Status) error
	// MarkMessagesAsRead marks every unread user message in a chat read.
	MarkMessagesAsRead(ctx context.Context, chatID string) error
	// UnreadCount returns the authoritative count of unread, non-deleted
	// user messages in a chat.
	UnreadCount(ctx context.Context, chatID string) (int, error)
	// LatestMessage returns the newest non-deleted message of a chat, or
	// nil when the chat has none.
	LatestMessage(ctx context.Context, chatID string) (*Message, error)
}

// Decrypter opens wire-format message bodies. Implemented by
// internal/crypto.Cipher.
type Decrypter interface {
	Decrypt(ciphertext, chatID string) (string, error)
}

// DecryptFailedPlaceholder replaces the body of a message whose ciphertext
// could not be opened. The message is kept and flagged, never dropped.
const DecryptFailedPlaceholder = "[undecryptable message]"
