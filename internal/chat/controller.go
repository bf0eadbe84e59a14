package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/agent"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/bus"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/readstate"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/realtime"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/store"
	syncx "github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/sync"
	"go.uber.org/zap"
)

// ErrAgentOffline is returned by Send while the agent is marked offline.
// The composer keeps the typed text so nothing is lost.
var ErrAgentOffline = errors.New("cannot send while offline")

// ErrNoOpenChat is returned by operations that need an open conversation.
var ErrNoOpenChat = errors.New("no open chat")

// Encrypter seals outgoing message bodies.
type Encrypter interface {
	Encrypt(plaintext, chatID string) (string, error)
}

// Controller orchestrates the open conversation: it loads chat info and the
// first message page, wires the chat-scoped realtime subscription and the
// polling fallback to one ingest path, and owns the read-state tracker.
// Exactly one chat is open at a time; Open tears down the previous one.
type Controller struct {
	backend store.Backend
	enc     Encrypter
	msgs    *store.MessageStore
	list    *store.ChatListStore
	source  *realtime.Source
	poller  *syncx.Poller
	agent   *agent.Context
	bus     *bus.Bus
	logger  *zap.Logger

	state   *machine
	tracker *readstate.Tracker

	mu     sync.Mutex
	chatID string
	info   *store.ChatInfo
	unsub  func()

	runCtx    context.Context
	runCancel context.CancelFunc
}

// NewController creates an idle controller.
func NewController(
	backend store.Backend,
	enc Encrypter,
	msgs *store.MessageStore,
	list *store.ChatListStore,
	source *realtime.Source,
	poller *syncx.Poller,
	agentCtx *agent.Context,
	b *bus.Bus,
	logger *zap.Logger,
) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		backend:   backend,
		enc:       enc,
		msgs:      msgs,
		list:      list,
		source:    source,
		poller:    poller,
		agent:     agentCtx,
		bus:       b,
		logger:    logger,
		state:     newMachine(b),
		runCtx:    ctx,
		runCancel: cancel,
	}
	c.tracker = readstate.NewTracker(c.markRead)
	return c
}

// Open loads and activates a conversation. Any previously open chat is
// closed first. On success the controller is READY: messages are loaded,
// realtime and polling are feeding Ingest, and the read-state tracker has a
// fresh viewing session.
func (c *Controller) Open(ctx context.Context, chatID string) error {
	c.Close()

	if err := c.state.Transition(LoadingInfo); err != nil {
		return err
	}

	info, err := c.backend.FetchChatInfo(ctx, chatID)
	if err != nil {
		_ = c.state.Transition(Failed)
		return fmt.Errorf("open chat %s: %w", chatID, err)
	}

	c.mu.Lock()
	c.chatID = chatID
	c.info = info
	c.mu.Unlock()
	c.list.SetOpenChat(chatID)

	if err := c.msgs.LoadInitial(ctx, chatID); err != nil {
		_ = c.state.Transition(Failed)
		c.teardown()
		return fmt.Errorf("open chat %s: %w", chatID, err)
	}

	// A failed subscription is not an error to the caller: polling covers
	// the gap and the header indicator shows the degraded channel.
	unsub, err := c.source.Subscribe(realtime.Scope{ChatID: chatID}, realtime.Handlers{
		OnNewMessage: c.Ingest,
	})
	if err != nil {
		c.logger.Warn("chat subscription failed, relying on polling",
			zap.String("chat", chatID), zap.Error(err))
	} else {
		c.mu.Lock()
		c.unsub = unsub
		c.mu.Unlock()
	}

	c.poller.Arm(c.runCtx, chatID, c.msgs.LastKnownTimestamp(), c.Ingest)
	c.tracker.ChatSelected(chatID)

	if err := c.state.Transition(Ready); err != nil {
		return err
	}
	c.bus.PublishKind(bus.KindChatOpened, chatID)
	return nil
}

// Close deactivates the open conversation: disarm polling, drop the
// subscription, end the viewing session and clear the message store. A
// final reconcile runs in the background so the list row reflects the
// authoritative unread count. Safe to call when nothing is open.
func (c *Controller) Close() {
	c.mu.Lock()
	chatID := c.chatID
	c.mu.Unlock()
	if chatID == "" {
		return
	}

	c.teardown()

	go func() {
		ctx, cancel := context.WithTimeout(c.runCtx, 10*time.Second)
		defer cancel()
		if err := c.list.ReconcileChat(ctx, chatID); err != nil {
			c.logger.Warn("close reconcile failed", zap.String("chat", chatID), zap.Error(err))
		}
	}()

	_ = c.state.Transition(Idle)
	c.bus.PublishKind(bus.KindChatClosed, chatID)
}

// teardown releases the open chat's resources without the closing
// side effects.
func (c *Controller) teardown() {
	c.mu.Lock()
	unsub := c.unsub
	c.unsub = nil
	c.chatID = ""
	c.info = nil
	c.mu.Unlock()

	c.poller.Disarm()
	if unsub != nil {
		unsub()
	}
	c.tracker.ChatClosed()
	c.list.SetOpenChat("")
	c.msgs.Reset()
}

// Ingest is the single entry point for messages from realtime and polling.
// The message store dedups by id; only a genuinely new message touches the
// chat list or the read-state tracker, so double delivery can never double
// count.
func (c *Controller) Ingest(m store.Message) {
	c.mu.Lock()
	chatID := c.chatID
	c.mu.Unlock()
	if chatID == "" || m.ChatID != chatID {
		return
	}

	if !c.msgs.Ingest(m) {
		return
	}
	if err := c.list.ApplyIncomingMessage(c.runCtx, m); err != nil {
		c.logger.Warn("list update for incoming message failed",
			zap.String("chat", m.ChatID), zap.Error(err))
	}
	if m.SenderType == store.SenderUser {
		c.tracker.MessageArrived(m.ChatID)
	}
}

// Send encrypts and submits a message to the open chat. While the agent is
// offline it refuses with ErrAgentOffline before touching the network. The
// sent message is never inserted locally; it arrives back through realtime
// or polling like any other, which keeps ordering and dedup in one place.
func (c *Controller) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	chatID := c.chatID
	c.mu.Unlock()
	if chatID == "" {
		return ErrNoOpenChat
	}
	if !c.agent.Online() {
		return ErrAgentOffline
	}

	if err := c.state.Transition(Sending); err != nil {
		return err
	}
	defer func() { _ = c.state.Transition(Ready) }()

	sealed, err := c.enc.Encrypt(text, chatID)
	if err != nil {
		return fmt.Errorf("encrypt message: %w", err)
	}
	if _, err := c.backend.SendMessage(ctx, chatID, sealed); err != nil {
		c.bus.PublishKind(bus.KindMessageSendFailed, chatID)
		return fmt.Errorf("send message: %w", err)
	}
	c.tracker.Interaction()
	return nil
}

// LoadOlder pages one more block of history for the open chat. Returns how
// many messages were prepended, so the view can keep the scroll anchor.
func (c *Controller) LoadOlder(ctx context.Context) (int, error) {
	if c.ChatID() == "" {
		return 0, ErrNoOpenChat
	}
	return c.msgs.LoadOlder(ctx)
}

// ChangeStatus persists a workflow status change for the open chat.
func (c *Controller) ChangeStatus(ctx context.Context, status store.Status) error {
	c.mu.Lock()
	chatID := c.chatID
	c.mu.Unlock()
	if chatID == "" {
		return ErrNoOpenChat
	}
	if err := c.list.SetStatus(ctx, chatID, status); err != nil {
		return err
	}
	c.mu.Lock()
	if c.info != nil {
		c.info.Status = status
	}
	c.mu.Unlock()
	c.tracker.Interaction()
	return nil
}

// FocusChanged forwards terminal focus to the read-state tracker.
func (c *Controller) FocusChanged(focused bool) {
	c.tracker.FocusChanged(focused)
}

// Interaction forwards an explicit user interaction (typing, scrolling) to
// the read-state tracker.
func (c *Controller) Interaction() {
	c.tracker.Interaction()
}

// ChatID returns the open chat id, or "".
func (c *Controller) ChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

// Info returns a copy of the open chat's info, or nil.
func (c *Controller) Info() *store.ChatInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.info == nil {
		return nil
	}
	cp := *c.info
	return &cp
}

// State returns the current conversation state.
func (c *Controller) State() State {
	return c.state.Current()
}

// Shutdown cancels background work spawned by the controller.
func (c *Controller) Shutdown() {
	c.Close()
	c.runCancel()
}

// markRead is the tracker's fire callback: persist read state remotely,
// then flip the local mirrors and reconcile the list row. Runs off the
// caller's goroutine so selecting a chat never blocks the UI on the
// network.
func (c *Controller) markRead(chatID string) {
	go func() {
		ctx, cancel := context.WithTimeout(c.runCtx, 10*time.Second)
		defer cancel()
		if err := c.backend.MarkMessagesAsRead(ctx, chatID); err != nil {
			c.logger.Warn("mark as read failed", zap.String("chat", chatID), zap.Error(err))
			return
		}
		if c.msgs.ChatID() == chatID {
			c.msgs.MarkAllRead()
		}
		c.list.ZeroUnread(chatID)
		if err := c.list.ReconcileChat(ctx, chatID); err != nil {
			c.logger.Warn("post-read reconcile failed", zap.String("chat", chatID), zap.Error(err))
		}
	}()
}
