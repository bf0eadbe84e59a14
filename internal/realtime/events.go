package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/store"
)

// Event is the tagged union of push events delivered by the feed. A type
// switch over the variants gives exhaustiveness the wire's string tags
// cannot.
type Event interface {
	isEvent()
}

// ChatCreated announces a new conversation row.
type ChatCreated struct {
	Chat store.Chat
}

// ChatUpdated announces a mutated conversation row (status, assignment,
// preview fields).
type ChatUpdated struct {
	Chat store.Chat
}

// ChatDeleted announces a removed conversation row.
type ChatDeleted struct {
	ChatID string
}

// MessageCreated announces a new message row; Content is ciphertext.
type MessageCreated struct {
	Message store.Message
}

func (ChatCreated) isEvent()    {}
func (ChatUpdated) isEvent()    {}
func (ChatDeleted) isEvent()    {}
func (MessageCreated) isEvent() {}

// envelope is the wire frame around every event.
type envelope struct {
	Event   string          `json:"event"`
	Chat    json.RawMessage `json:"chat,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
	ChatID  string          `json:"chat_id,omitempty"`
}

// decodeEvent parses one wire frame into an Event variant. Unknown event
// tags are an error so feed/protocol drift is logged, not silently eaten.
func decodeEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Event {
	case "chat.created", "chat.updated":
		var c store.Chat
		if err := json.Unmarshal(env.Chat, &c); err != nil {
			return nil, fmt.Errorf("decode chat payload: %w", err)
		}
		if env.Event == "chat.created" {
			return ChatCreated{Chat: c}, nil
		}
		return ChatUpdated{Chat: c}, nil
	case "chat.deleted":
		if env.ChatID == "" {
			return nil, fmt.Errorf("chat.deleted without chat_id")
		}
		return ChatDeleted{ChatID: env.ChatID}, nil
	case "message.created":
		var m store.Message
		if err := json.Unmarshal(env.Message, &m); err != nil {
			return nil, fmt.Errorf("decode message payload: %w", err)
		}
		return MessageCreated{Message: m}, nil
	default:
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}
}
