package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/bus"
	"golang.org/x/time/rate"
)

// UpdateIntent is a typed mutation applied to the chat list. The list is a
// reducer over intents in arrival order, which is what makes "the last
// reconciliation wins over any optimistic guess" an ordering property
// instead of a pile of conditional overwrites.
type UpdateIntent interface {
	isIntent()
}

// Upserted replaces or inserts a full chat row (initial load, refetch,
// realtime chat created/updated).
type Upserted struct {
	Chat Chat
}

// OptimisticPreview folds an incoming message into the owning chat's
// preview fields before the backend has been consulted.
type OptimisticPreview struct {
	Message Message
	// Plaintext is the decrypted body used for the preview.
	Plaintext string
}

// AuthoritativeReconcile overwrites preview and unread with values fetched
// from the source of truth.
type AuthoritativeReconcile struct {
	ChatID string
	// Latest is the newest non-deleted message, nil when the chat is empty.
	Latest *Message
	// Plaintext is the decrypted body of Latest.
	Plaintext string
	Unread    int
}

// StatusChanged applies a confirmed remote status mutation.
type StatusChanged struct {
	ChatID string
	Status Status
}

// Removed drops a chat from the list (realtime deleted event).
type Removed struct {
	ChatID string
}

func (Upserted) isIntent()               {}
func (OptimisticPreview) isIntent()      {}
func (AuthoritativeReconcile) isIntent() {}
func (StatusChanged) isIntent()          {}
func (Removed) isIntent()                {}

// seenCap bounds the remembered message ids used to dedup unread/preview
// mutations when realtime and polling deliver the same message.
const seenCap = 512

// ChatListStore keeps every conversation summary visible to the agent,
// indexed by chat id. Optimistic updates from incoming messages are always
// eventually overwritten by ReconcileChat.
type ChatListStore struct {
	mu      sync.RWMutex
	backend Backend
	dec     Decrypter
	bus     *bus.Bus
	limiter *rate.Limiter

	chats     map[string]*Chat
	openChat  string
	seen      map[string]struct{}
	seenOrder []string
}

// NewChatListStore creates an empty chat list store. The limiter bounds
// reconciliation fetches so sweeps and event bursts cannot turn into a
// request storm.
func NewChatListStore(backend Backend, dec Decrypter, b *bus.Bus) *ChatListStore {
	return &ChatListStore{
		backend: backend,
		dec:     dec,
		bus:     b,
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		chats:   make(map[string]*Chat),
		seen:    make(map[string]struct{}),
	}
}

// SetOpenChat records which chat is currently open ("" when none). Unread
// counts for the open chat never increase: incoming user messages for it
// are about to be marked read, and reconciles are clamped to zero.
func (s *ChatListStore) SetOpenChat(chatID string) {
	s.mu.Lock()
	s.openChat = chatID
	s.mu.Unlock()
}

// OpenChat returns the currently open chat id, or "".
func (s *ChatListStore) OpenChat() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.openChat
}

// LoadAll fetches every visible chat and replaces the list.
func (s *ChatListStore) LoadAll(ctx context.Context) error {
	chats, err := s.backend.FetchChats(ctx)
	if err != nil {
		return fmt.Errorf("load chats: %w", err)
	}
	s.mu.Lock()
	s.chats = make(map[string]*Chat, len(chats))
	for i := range chats {
		c := chats[i]
		s.decryptPreview(&c)
		s.chats[c.ID] = &c
	}
	s.mu.Unlock()
	s.bus.PublishKind(bus.KindListChanged, nil)
	return nil
}

// Apply runs one intent through the reducer.
func (s *ChatListStore) Apply(intent UpdateIntent) {
	s.mu.Lock()
	s.reduce(intent)
	s.mu.Unlock()
	s.bus.PublishKind(bus.KindListChanged, nil)
}

// reduce mutates the indexed map. Callers hold the write lock.
func (s *ChatListStore) reduce(intent UpdateIntent) {
	switch in := intent.(type) {
	case Upserted:
		c := in.Chat
		s.decryptPreview(&c)
		if c.ID == s.openChat {
			c.UnreadCount = 0
		}
		s.chats[c.ID] = &c

	case OptimisticPreview:
		c, ok := s.chats[in.Message.ChatID]
		if !ok {
			return
		}
		m := in.Message
		if m.CreatedAt.Before(c.LastMessageAt) {
			// A stale producer lost the race; the preview already
			// reflects a newer message.
			return
		}
		c.LastMessageAt = m.CreatedAt
		c.LastMessageContent = in.Plaintext
		c.LastMessageSenderType = m.SenderType
		c.LastMessageSenderName = m.SenderName
		if m.SenderType == SenderUser && m.ChatID != s.openChat {
			c.UnreadCount++
		}

	case AuthoritativeReconcile:
		c, ok := s.chats[in.ChatID]
		if !ok {
			return
		}
		if in.Latest != nil {
			c.LastMessageAt = in.Latest.CreatedAt
			c.LastMessageContent = in.Plaintext
			c.LastMessageSenderType = in.Latest.SenderType
			c.LastMessageSenderName = in.Latest.SenderName
		}
		if in.ChatID == s.openChat {
			c.UnreadCount = 0
		} else {
			c.UnreadCount = in.Unread
		}

	case StatusChanged:
		if c, ok := s.chats[in.ChatID]; ok {
			c.Status = in.Status
		}

	case Removed:
		delete(s.chats, in.ChatID)
	}
}

// ApplyIncomingMessage folds a message from realtime or polling into the
// list. Dedup by message id happens here, before any unread or preview
// mutation. A message for a chat not in the list triggers a single-chat
// refetch-and-insert.
func (s *ChatListStore) ApplyIncomingMessage(ctx context.Context, m Message) error {
	if m.IsDeleted {
		return nil
	}
	s.mu.Lock()
	if _, dup := s.seen[m.ID]; dup {
		s.mu.Unlock()
		return nil
	}
	s.markSeen(m.ID)
	_, known := s.chats[m.ChatID]
	s.mu.Unlock()

	if !known {
		info, err := s.backend.FetchChatInfo(ctx, m.ChatID)
		if err != nil {
			return fmt.Errorf("refetch chat %s: %w", m.ChatID, err)
		}
		s.Apply(Upserted{Chat: info.Chat})
		return nil
	}

	plain, err := s.dec.Decrypt(m.Content, m.ChatID)
	if err != nil {
		plain = DecryptFailedPlaceholder
	}
	s.Apply(OptimisticPreview{Message: m, Plaintext: plain})
	return nil
}

// ReconcileChat refetches the authoritative latest message and unread count
// for one chat and overwrites whatever the optimistic path guessed.
func (s *ChatListStore) ReconcileChat(ctx context.Context, chatID string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	latest, err := s.backend.LatestMessage(ctx, chatID)
	if err != nil {
		return fmt.Errorf("reconcile latest message: %w", err)
	}
	unread, err := s.backend.UnreadCount(ctx, chatID)
	if err != nil {
		return fmt.Errorf("reconcile unread count: %w", err)
	}
	var plain string
	if latest != nil {
		plain, err = s.dec.Decrypt(latest.Content, chatID)
		if err != nil {
			plain = DecryptFailedPlaceholder
		}
	}
	s.Apply(AuthoritativeReconcile{ChatID: chatID, Latest: latest, Plaintext: plain, Unread: unread})
	s.bus.PublishKind(bus.KindChatReconciled, chatID)
	return nil
}

// SetStatus persists a status change and applies it locally only after the
// backend confirms. On failure local state is untouched and the error is
// returned for the UI to surface.
func (s *ChatListStore) SetStatus(ctx context.Context, chatID string, status Status) error {
	if err := s.backend.UpdateChatStatus(ctx, chatID, status); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	s.Apply(StatusChanged{ChatID: chatID, Status: status})
	return nil
}

// ZeroUnread optimistically zeroes a chat's unread badge; the read-state
// tracker calls it right after issuing mark-as-read.
func (s *ChatListStore) ZeroUnread(chatID string) {
	s.mu.Lock()
	if c, ok := s.chats[chatID]; ok {
		c.UnreadCount = 0
	}
	s.mu.Unlock()
	s.bus.PublishKind(bus.KindListChanged, nil)
}

// Get returns a copy of one chat, or nil.
func (s *ChatListStore) Get(chatID string) *Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.chats[chatID]; ok {
		cp := *c
		return &cp
	}
	return nil
}

// Snapshot returns a copy of every chat, most recent activity first.
func (s *ChatListStore) Snapshot() []Chat {
	s.mu.RLock()
	out := make([]Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, *c)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out
}

// markSeen remembers a message id with FIFO eviction. The slice is shifted
// in place so the evicted head is not kept alive by the backing array over
// a long session. Callers hold the write lock.
func (s *ChatListStore) markSeen(id string) {
	s.seen[id] = struct{}{}
	s.seenOrder = append(s.seenOrder, id)
	if len(s.seenOrder) > seenCap {
		delete(s.seen, s.seenOrder[0])
		copy(s.seenOrder, s.seenOrder[1:])
		s.seenOrder[len(s.seenOrder)-1] = ""
		s.seenOrder = s.seenOrder[:seenCap]
	}
}

// decryptPreview opens the last-message preview in place. Callers hold the
// write lock.
func (s *ChatListStore) decryptPreview(c *Chat) {
	if c.LastMessageContent == "" {
		return
	}
	plain, err := s.dec.Decrypt(c.LastMessageContent, c.ID)
	if err != nil {
		c.LastMessageContent = DecryptFailedPlaceholder
		return
	}
	c.LastMessageContent = plain
}
