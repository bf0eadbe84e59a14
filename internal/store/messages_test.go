package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/bus"
)

// fakeCipher treats "enc:<plaintext>" as valid ciphertext and anything else
// as undecryptable.
type fakeCipher struct{}

func (fakeCipher) Decrypt(ciphertext, chatID string) (string, error) {
	if plain, ok := strings.CutPrefix(ciphertext, "enc:"); ok {
		return plain, nil
	}
	return "", fmt.Errorf("bad ciphertext %q", ciphertext)
}

// fakeBackend serves scripted data and records writes.
type fakeBackend struct {
	mu       sync.Mutex
	chats    map[string]ChatInfo
	messages map[string][]Message // ascending by CreatedAt
	unread   map[string]int

	fetchErr  error
	sendErr   error
	statusErr error

	fetchCalls    int
	markReadCalls []string
	statusCalls   []Status
	sentBodies    []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chats:    make(map[string]ChatInfo),
		messages: make(map[string][]Message),
		unread:   make(map[string]int),
	}
}

func (f *fakeBackend) FetchChats(ctx context.Context) ([]Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []Chat
	for _, info := range f.chats {
		out = append(out, info.Chat)
	}
	return out, nil
}

func (f *fakeBackend) FetchChatInfo(ctx context.Context, chatID string) (*ChatInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	info, ok := f.chats[chatID]
	if !ok {
		return nil, fmt.Errorf("chat %s not found", chatID)
	}
	return &info, nil
}

func (f *fakeBackend) FetchMessages(ctx context.Context, chatID string, limit, offset int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	asc := f.messages[chatID]
	// Newest first.
	var out []Message
	for i := len(asc) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, asc[i])
	}
	return out, nil
}

func (f *fakeBackend) FetchMessagesSince(ctx context.Context, chatID string, since time.Time) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []Message
	for _, m := range f.messages[chatID] {
		if m.CreatedAt.After(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeBackend) SendMessage(ctx context.Context, chatID, content string) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sentBodies = append(f.sentBodies, content)
	m := Message{
		ID: fmt.Sprintf("sent-%d", len(f.sentBodies)), ChatID: chatID,
		SenderType: SenderAgent, Content: content, CreatedAt: time.Now(),
	}
	f.messages[chatID] = append(f.messages[chatID], m)
	return &m, nil
}

func (f *fakeBackend) UpdateChatStatus(ctx context.Context, chatID string, status Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statusCalls = append(f.statusCalls, status)
	return nil
}

func (f *fakeBackend) MarkMessagesAsRead(ctx context.Context, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReadCalls = append(f.markReadCalls, chatID)
	f.unread[chatID] = 0
	return nil
}

func (f *fakeBackend) UnreadCount(ctx context.Context, chatID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread[chatID], nil
}

func (f *fakeBackend) LatestMessage(ctx context.Context, chatID string) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	asc := f.messages[chatID]
	if len(asc) == 0 {
		return nil, nil
	}
	m := asc[len(asc)-1]
	return &m, nil
}

func seedMessages(f *fakeBackend, chatID string, n int) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		f.messages[chatID] = append(f.messages[chatID], Message{
			ID:         fmt.Sprintf("m%03d", i),
			ChatID:     chatID,
			SenderType: SenderUser,
			Content:    fmt.Sprintf("enc:body %d", i),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
	}
}

func newMessageStore(f *fakeBackend) *MessageStore {
	return NewMessageStore(f, fakeCipher{}, bus.New())
}

func assertAscending(t *testing.T, msgs []Message) {
	t.Helper()
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("messages out of order at %d: %v before %v", i, msgs[i].CreatedAt, msgs[i-1].CreatedAt)
		}
	}
}

func TestLoadInitialPage(t *testing.T) {
	f := newFakeBackend()
	seedMessages(f, "c1", 25)
	s := newMessageStore(f)

	if err := s.LoadInitial(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}

	msgs := s.Messages()
	if len(msgs) != DefaultPageSize {
		t.Fatalf("got %d messages, want %d", len(msgs), DefaultPageSize)
	}
	assertAscending(t, msgs)
	if msgs[len(msgs)-1].ID != "m024" {
		t.Errorf("newest = %s, want m024", msgs[len(msgs)-1].ID)
	}
	if msgs[0].Content != "body 5" {
		t.Errorf("oldest loaded content = %q, want decrypted body 5", msgs[0].Content)
	}
	if !s.HasMore() {
		t.Error("HasMore = false after a full page")
	}
}

func TestLoadInitialShortPage(t *testing.T) {
	f := newFakeBackend()
	seedMessages(f, "c1", 7)
	s := newMessageStore(f)

	if err := s.LoadInitial(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}
	if len(s.Messages()) != 7 {
		t.Fatalf("got %d messages, want 7", len(s.Messages()))
	}
	if s.HasMore() {
		t.Error("HasMore = true after a short page")
	}
}

func TestLoadOlderPrependsAndStops(t *testing.T) {
	f := newFakeBackend()
	seedMessages(f, "c1", 32)
	s := newMessageStore(f)

	if err := s.LoadInitial(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}
	added, err := s.LoadOlder(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if added != 12 {
		t.Errorf("added = %d, want 12", added)
	}
	msgs := s.Messages()
	if len(msgs) != 32 {
		t.Fatalf("got %d messages, want 32", len(msgs))
	}
	assertAscending(t, msgs)
	if msgs[0].ID != "m000" {
		t.Errorf("oldest = %s, want m000", msgs[0].ID)
	}
	if s.HasMore() {
		t.Error("HasMore = true after short page")
	}

	// Exhausted cursor: a further call must not touch the backend.
	calls := f.fetchCalls
	added, err = s.LoadOlder(context.Background())
	if err != nil || added != 0 {
		t.Errorf("LoadOlder after exhaustion = (%d, %v), want (0, nil)", added, err)
	}
	if f.fetchCalls != calls {
		t.Error("LoadOlder fetched despite hasMore = false")
	}
	if len(s.Messages()) != 32 {
		t.Error("store changed by exhausted LoadOlder")
	}
}

func TestIngestDedup(t *testing.T) {
	f := newFakeBackend()
	seedMessages(f, "c1", 1)
	s := newMessageStore(f)
	if err := s.LoadInitial(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}

	m := Message{ID: "rt1", ChatID: "c1", Content: "enc:hello", CreatedAt: time.Now()}
	if !s.Ingest(m) {
		t.Fatal("first Ingest returned false")
	}
	if s.Ingest(m) {
		t.Error("duplicate Ingest returned true")
	}
	// A duplicate of an initially loaded message is also a no-op.
	if s.Ingest(Message{ID: "m000", ChatID: "c1", Content: "enc:dup", CreatedAt: time.Now()}) {
		t.Error("Ingest of already-loaded id returned true")
	}
	if got := len(s.Messages()); got != 2 {
		t.Errorf("store has %d messages, want 2", got)
	}
}

func TestIngestSortsRacingProducers(t *testing.T) {
	f := newFakeBackend()
	s := newMessageStore(f)
	if err := s.LoadInitial(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// Polling delivers a newer message before realtime delivers an older one.
	s.Ingest(Message{ID: "b", ChatID: "c1", Content: "enc:second", CreatedAt: base.Add(time.Minute)})
	s.Ingest(Message{ID: "a", ChatID: "c1", Content: "enc:first", CreatedAt: base})

	msgs := s.Messages()
	assertAscending(t, msgs)
	if msgs[0].ID != "a" || msgs[1].ID != "b" {
		t.Errorf("order = %s,%s, want a,b", msgs[0].ID, msgs[1].ID)
	}
}

func TestIngestStableOnEqualTimestamps(t *testing.T) {
	f := newFakeBackend()
	s := newMessageStore(f)
	if err := s.LoadInitial(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.Ingest(Message{ID: "x", ChatID: "c1", Content: "enc:x", CreatedAt: ts})
	s.Ingest(Message{ID: "y", ChatID: "c1", Content: "enc:y", CreatedAt: ts})

	msgs := s.Messages()
	if msgs[0].ID != "x" || msgs[1].ID != "y" {
		t.Errorf("equal timestamps reordered: %s,%s", msgs[0].ID, msgs[1].ID)
	}
}

func TestIngestDecryptFailureKeepsMessage(t *testing.T) {
	f := newFakeBackend()
	s := newMessageStore(f)
	if err := s.LoadInitial(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}

	s.Ingest(Message{ID: "bad", ChatID: "c1", Content: "corrupted", CreatedAt: time.Now()})

	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatal("undecryptable message was dropped")
	}
	if msgs[0].Content != DecryptFailedPlaceholder {
		t.Errorf("content = %q, want placeholder", msgs[0].Content)
	}
	if !msgs[0].DecryptFailed {
		t.Error("DecryptFailed not set")
	}
}

func TestIngestIgnoresOtherChats(t *testing.T) {
	f := newFakeBackend()
	s := newMessageStore(f)
	if err := s.LoadInitial(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}
	if s.Ingest(Message{ID: "z", ChatID: "c2", Content: "enc:stray", CreatedAt: time.Now()}) {
		t.Error("Ingest accepted a message for a different chat")
	}
}

func TestMarkAllRead(t *testing.T) {
	f := newFakeBackend()
	seedMessages(f, "c1", 3)
	s := newMessageStore(f)
	if err := s.LoadInitial(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}
	s.MarkAllRead()
	for _, m := range s.Messages() {
		if !m.IsRead {
			t.Fatalf("message %s still unread", m.ID)
		}
	}
}

func TestLastKnownTimestamp(t *testing.T) {
	f := newFakeBackend()
	s := newMessageStore(f)
	if !s.LastKnownTimestamp().IsZero() {
		t.Error("empty store has a last timestamp")
	}
	seedMessages(f, "c1", 2)
	if err := s.LoadInitial(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}
	want := f.messages["c1"][1].CreatedAt
	if got := s.LastKnownTimestamp(); !got.Equal(want) {
		t.Errorf("LastKnownTimestamp = %v, want %v", got, want)
	}
}

func TestResetOnSwitch(t *testing.T) {
	f := newFakeBackend()
	seedMessages(f, "c1", 25)
	seedMessages(f, "c2", 3)
	s := newMessageStore(f)

	if err := s.LoadInitial(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}
	if err := s.LoadInitial(context.Background(), "c2"); err != nil {
		t.Fatal(err)
	}
	if got := len(s.Messages()); got != 3 {
		t.Errorf("after switch store has %d messages, want 3", got)
	}
	if s.HasMore() {
		t.Error("cursor not reset on switch")
	}
	if s.ChatID() != "c2" {
		t.Errorf("ChatID = %s, want c2", s.ChatID())
	}
}
