package store

import "time"

// Status is the agent-managed lifecycle tag of a chat.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusFollowUp   Status = "follow_up"
	StatusClosed     Status = "closed"
)

// SenderType identifies which side of a conversation authored a message.
type SenderType string

const (
	SenderAgent SenderType = "agent"
	SenderUser  SenderType = "user"
)

// Chat is a conversation summary as shown in the list. The lastMessage*
// fields are denormalized previews of the latest non-deleted message;
// UnreadCount is authoritative server-side and only ever optimistically
// zeroed client-side.
type Chat struct {
	ID                    string     `json:"id"`
	MaskedUserName        string     `json:"masked_user_name"`
	Status                Status     `json:"status"`
	Category              string     `json:"category"`
	Tags                  []string   `json:"tags"`
	LastMessageAt         time.Time  `json:"last_message_at"`
	LastMessageContent    string     `json:"last_message_content"`
	LastMessageSenderType SenderType `json:"last_message_sender_type"`
	LastMessageSenderName string     `json:"last_message_sender_name"`
	UnreadCount           int        `json:"unread_count"`
	AssignedAgentID       string     `json:"assigned_agent_id"`
	IsActive              bool       `json:"is_active"`
}

// ChatInfo is the full metadata for one open chat.
type ChatInfo struct {
	Chat
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a single chat message. Content is ciphertext on the wire and
// plaintext once ingested into a store; DecryptFailed marks bodies that
// could not be opened and were replaced by a placeholder.
type Message struct {
	ID            string     `json:"id"`
	ChatID        string     `json:"chat_id"`
	SenderType    SenderType `json:"sender_type"`
	SenderName    string     `json:"sender_name"`
	Content       string     `json:"content"`
	CreatedAt     time.Time  `json:"created_at"`
	IsRead        bool       `json:"is_read"`
	IsDeleted     bool       `json:"is_deleted"`
	DecryptFailed bool       `json:"-"`
}
