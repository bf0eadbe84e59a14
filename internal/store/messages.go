package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/bus"
)

// DefaultPageSize is the message pagination page size.
const DefaultPageSize = 20

// MessageStore holds the in-memory, CreatedAt-ordered message list for the
// one open chat. Realtime events, polling ticks and pagination fetches all
// converge here; dedup by message id is what keeps the three producers from
// double-inserting. Bodies are decrypted on the way in.
type MessageStore struct {
	mu       sync.RWMutex
	backend  Backend
	dec      Decrypter
	bus      *bus.Bus
	pageSize int

	chatID  string
	msgs    []Message
	ids     map[string]struct{}
	offset  int
	hasMore bool
}

// NewMessageStore creates an empty message store.
func NewMessageStore(backend Backend, dec Decrypter, b *bus.Bus) *MessageStore {
	return &MessageStore{
		backend:  backend,
		dec:      dec,
		bus:      b,
		pageSize: DefaultPageSize,
		ids:      make(map[string]struct{}),
	}
}

// LoadInitial fetches the most recent page for chatID, replacing any
// previous contents and resetting the pagination cursor.
func (s *MessageStore) LoadInitial(ctx context.Context, chatID string) error {
	page, err := s.backend.FetchMessages(ctx, chatID, s.pageSize, 0)
	if err != nil {
		return fmt.Errorf("load initial page: %w", err)
	}

	s.mu.Lock()
	s.chatID = chatID
	s.msgs = s.msgs[:0]
	s.ids = make(map[string]struct{})
	// Server order is newest first; display order is ascending.
	for i := len(page) - 1; i >= 0; i-- {
		m := page[i]
		if _, dup := s.ids[m.ID]; dup {
			continue
		}
		s.decryptIn(&m)
		s.msgs = append(s.msgs, m)
		s.ids[m.ID] = struct{}{}
	}
	s.offset = len(page)
	s.hasMore = len(page) == s.pageSize
	s.mu.Unlock()

	s.bus.PublishKind(bus.KindMessageIngested, chatID)
	return nil
}

// LoadOlder fetches the next page before the oldest loaded message and
// prepends it. Calling it when no more pages exist is a no-op. Returns the
// number of messages prepended.
func (s *MessageStore) LoadOlder(ctx context.Context) (int, error) {
	s.mu.RLock()
	chatID, offset, hasMore := s.chatID, s.offset, s.hasMore
	s.mu.RUnlock()
	if chatID == "" || !hasMore {
		return 0, nil
	}

	page, err := s.backend.FetchMessages(ctx, chatID, s.pageSize, offset)
	if err != nil {
		return 0, fmt.Errorf("load older page: %w", err)
	}

	s.mu.Lock()
	if s.chatID != chatID {
		// Chat switched while the fetch was in flight.
		s.mu.Unlock()
		return 0, nil
	}
	added := 0
	// Page is newest first; walk it forward so the block lands ascending
	// in front of the existing list.
	block := make([]Message, 0, len(page))
	for i := len(page) - 1; i >= 0; i-- {
		m := page[i]
		if _, dup := s.ids[m.ID]; dup {
			continue
		}
		s.decryptIn(&m)
		block = append(block, m)
		s.ids[m.ID] = struct{}{}
		added++
	}
	s.msgs = append(block, s.msgs...)
	s.offset += len(page)
	s.hasMore = len(page) == s.pageSize
	s.mu.Unlock()

	if added > 0 {
		s.bus.PublishKind(bus.KindMessageIngested, chatID)
	}
	return added, nil
}

// Ingest accepts a message from any producer. A message whose id is already
// present is ignored; otherwise it is decrypted and inserted in CreatedAt
// order (stable after the last equal timestamp, so arrival order is kept in
// the displayed list and entries never jump). Returns whether the message
// was new.
func (s *MessageStore) Ingest(m Message) bool {
	s.mu.Lock()
	if s.chatID == "" || m.ChatID != s.chatID || m.IsDeleted {
		s.mu.Unlock()
		return false
	}
	if _, dup := s.ids[m.ID]; dup {
		s.mu.Unlock()
		return false
	}
	s.decryptIn(&m)
	// Append is the common case; realtime and polling can race, so find
	// the sorted slot when the tail is newer.
	pos := len(s.msgs)
	if pos > 0 && s.msgs[pos-1].CreatedAt.After(m.CreatedAt) {
		pos = sort.Search(len(s.msgs), func(i int) bool {
			return s.msgs[i].CreatedAt.After(m.CreatedAt)
		})
	}
	s.msgs = append(s.msgs, Message{})
	copy(s.msgs[pos+1:], s.msgs[pos:])
	s.msgs[pos] = m
	s.ids[m.ID] = struct{}{}
	s.mu.Unlock()

	s.bus.PublishKind(bus.KindMessageIngested, m.ChatID)
	return true
}

// MarkAllRead flips IsRead on every stored message.
func (s *MessageStore) MarkAllRead() {
	s.mu.Lock()
	for i := range s.msgs {
		s.msgs[i].IsRead = true
	}
	s.mu.Unlock()
}

// Messages returns a snapshot of the current list in display order.
func (s *MessageStore) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// ChatID returns the chat the store currently holds, or "".
func (s *MessageStore) ChatID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chatID
}

// HasMore reports whether older pages remain.
func (s *MessageStore) HasMore() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasMore
}

// LastKnownTimestamp returns the CreatedAt of the newest stored message,
// used by the polling fallback as its fetch watermark.
func (s *MessageStore) LastKnownTimestamp() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.msgs) == 0 {
		return time.Time{}
	}
	return s.msgs[len(s.msgs)-1].CreatedAt
}

// Reset clears the store when the chat closes.
func (s *MessageStore) Reset() {
	s.mu.Lock()
	s.chatID = ""
	s.msgs = nil
	s.ids = make(map[string]struct{})
	s.offset = 0
	s.hasMore = false
	s.mu.Unlock()
}

// decryptIn opens the body in place. Callers hold the write lock.
func (s *MessageStore) decryptIn(m *Message) {
	plain, err := s.dec.Decrypt(m.Content, m.ChatID)
	if err != nil {
		m.Content = DecryptFailedPlaceholder
		m.DecryptFailed = true
		return
	}
	m.Content = plain
}
