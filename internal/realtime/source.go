package realtime

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/bus"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/store"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Scope limits which events a subscription receives. An empty ChatID means
// all chats; a set ChatID delivers only that chat's MessageCreated events
// (chat row events always pass).
type Scope struct {
	ChatID string
}

// Handlers are the per-subscription callbacks. Nil entries are skipped.
// There is deliberately no error callback: a dropped connection is silent
// to the caller, and the polling fallback plus periodic reconciliation are
// the compensation for anything missed.
type Handlers struct {
	OnChatCreated func(c store.Chat)
	OnChatUpdated func(c store.Chat)
	OnChatDeleted func(chatID string)
	OnNewMessage  func(m store.Message)
}

// Source manages websocket subscriptions to the platform's push feed. Each
// Subscribe opens one connection; the returned teardown closes it. The
// source also tracks true connection health and publishes realtime.up /
// realtime.down on the bus.
type Source struct {
	url    string
	token  string
	bus    *bus.Bus
	logger *zap.Logger

	mu     sync.Mutex
	active int
}

// NewSource creates a realtime source for the given feed URL.
func NewSource(url, token string, b *bus.Bus, logger *zap.Logger) *Source {
	return &Source{url: url, token: token, bus: b, logger: logger}
}

// subscribeFrame is the first frame written on a new connection.
type subscribeFrame struct {
	Topics []string `json:"topics"`
	ChatID string   `json:"chat_id,omitempty"`
}

// Subscribe opens a push subscription and dispatches events to h until the
// returned teardown is called or the connection drops. Events are not
// buffered or replayed: state existing before the subscription is the
// caller's problem to reconcile.
func (s *Source) Subscribe(scope Scope, h Handlers) (func(), error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.token)

	conn, _, err := websocket.DefaultDialer.Dial(s.url, header)
	if err != nil {
		return nil, fmt.Errorf("dial realtime feed: %w", err)
	}

	frame := subscribeFrame{Topics: []string{"chats", "messages"}, ChatID: scope.ChatID}
	if err := conn.WriteJSON(frame); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("write subscribe frame: %w", err)
	}

	s.connected(scope)

	var once sync.Once
	closed := make(chan struct{})
	teardown := func() {
		once.Do(func() {
			close(closed)
			_ = conn.Close()
		})
	}

	go s.readLoop(conn, scope, h, closed)

	return teardown, nil
}

func (s *Source) readLoop(conn *websocket.Conn, scope Scope, h Handlers, closed <-chan struct{}) {
	defer s.disconnected(scope, closed)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		evt, err := decodeEvent(data)
		if err != nil {
			s.logger.Warn("undecodable realtime frame", zap.Error(err))
			continue
		}
		select {
		case <-closed:
			// Torn down while a frame was in flight; a stale
			// subscription must never deliver.
			return
		default:
		}
		dispatch(evt, scope, h)
	}
}

// dispatch routes one event. Ordering across event types is not guaranteed
// by the feed and not imposed here; the stores re-sort by CreatedAt.
func dispatch(evt Event, scope Scope, h Handlers) {
	switch e := evt.(type) {
	case ChatCreated:
		if h.OnChatCreated != nil {
			h.OnChatCreated(e.Chat)
		}
	case ChatUpdated:
		if h.OnChatUpdated != nil {
			h.OnChatUpdated(e.Chat)
		}
	case ChatDeleted:
		if h.OnChatDeleted != nil {
			h.OnChatDeleted(e.ChatID)
		}
	case MessageCreated:
		if scope.ChatID != "" && e.Message.ChatID != scope.ChatID {
			return
		}
		if h.OnNewMessage != nil {
			h.OnNewMessage(e.Message)
		}
	}
}

// Connected reports whether at least one subscription is live.
func (s *Source) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active > 0
}

func (s *Source) connected(scope Scope) {
	s.mu.Lock()
	s.active++
	first := s.active == 1
	s.mu.Unlock()
	s.logger.Info("realtime subscription opened", zap.String("chat", scope.ChatID))
	if first {
		s.bus.PublishKind(bus.KindRealtimeUp, nil)
	}
}

func (s *Source) disconnected(scope Scope, closed <-chan struct{}) {
	s.mu.Lock()
	s.active--
	last := s.active == 0
	s.mu.Unlock()

	select {
	case <-closed:
		s.logger.Info("realtime subscription closed", zap.String("chat", scope.ChatID))
	default:
		// Dropped by the peer or the network, not by teardown. Not an
		// error to the handlers; polling covers the gap.
		s.logger.Warn("realtime connection lost", zap.String("chat", scope.ChatID))
	}
	if last {
		s.bus.PublishKind(bus.KindRealtimeDown, nil)
	}
}
