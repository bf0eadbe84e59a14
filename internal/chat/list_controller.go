package chat

import (
	"context"
	"sync"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/realtime"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/store"
	syncx "github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/sync"
	"go.uber.org/zap"
)

// Notifier surfaces a new-message alert for chats the agent is not looking
// at. Implementations must be safe to call from any goroutine and must not
// fail loudly.
type Notifier interface {
	MessageArrived(chatName, preview string)
}

// ListController owns the conversation list: it performs the initial load,
// holds the list-wide realtime subscription, routes incoming messages to
// either the open-chat controller or the list store, and runs the periodic
// reconciliation sweep.
type ListController struct {
	list     *store.ChatListStore
	source   *realtime.Source
	recon    *syncx.Reconciler
	chats    *Controller
	notifier Notifier
	logger   *zap.Logger

	mu     sync.Mutex
	filter Filter
	unsub  func()

	runCtx    context.Context
	runCancel context.CancelFunc
}

// NewListController creates a stopped list controller.
func NewListController(
	list *store.ChatListStore,
	source *realtime.Source,
	recon *syncx.Reconciler,
	chats *Controller,
	notifier Notifier,
	logger *zap.Logger,
) *ListController {
	ctx, cancel := context.WithCancel(context.Background())
	return &ListController{
		list:      list,
		source:    source,
		recon:     recon,
		chats:     chats,
		notifier:  notifier,
		logger:    logger,
		runCtx:    ctx,
		runCancel: cancel,
	}
}

// Start loads the list, opens the list-wide subscription and starts the
// reconciliation sweep. The subscription carries no backlog, so the load
// happens first and anything pushed during it is deduped by the stores.
func (lc *ListController) Start(ctx context.Context) error {
	if err := lc.list.LoadAll(ctx); err != nil {
		return err
	}

	unsub, err := lc.source.Subscribe(realtime.Scope{}, realtime.Handlers{
		OnChatCreated: func(c store.Chat) { lc.list.Apply(store.Upserted{Chat: c}) },
		OnChatUpdated: func(c store.Chat) { lc.list.Apply(store.Upserted{Chat: c}) },
		OnChatDeleted: lc.chatDeleted,
		OnNewMessage:  lc.route,
	})
	if err != nil {
		// Degraded start: the sweep keeps the list converging and the
		// open chat has its own polling fallback.
		lc.logger.Warn("list subscription failed, relying on reconciliation", zap.Error(err))
	} else {
		lc.mu.Lock()
		lc.unsub = unsub
		lc.mu.Unlock()
	}

	lc.recon.Start(lc.runCtx)
	return nil
}

// Stop tears down the subscription and the sweep.
func (lc *ListController) Stop() {
	lc.mu.Lock()
	unsub := lc.unsub
	lc.unsub = nil
	lc.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	lc.recon.Stop()
	lc.runCancel()
}

// chatDeleted removes the chat and closes it if it was the one open.
func (lc *ListController) chatDeleted(chatID string) {
	if lc.chats.ChatID() == chatID {
		lc.chats.Close()
	}
	lc.list.Apply(store.Removed{ChatID: chatID})
}

// route sends a pushed message to the open-chat controller when it belongs
// there, otherwise folds it into the list and notifies.
func (lc *ListController) route(m store.Message) {
	if m.ChatID == lc.chats.ChatID() {
		lc.chats.Ingest(m)
		return
	}

	if err := lc.list.ApplyIncomingMessage(lc.runCtx, m); err != nil {
		lc.logger.Warn("list update for pushed message failed",
			zap.String("chat", m.ChatID), zap.Error(err))
		return
	}
	if m.SenderType == store.SenderUser && lc.notifier != nil {
		name := m.ChatID
		var preview string
		if c := lc.list.Get(m.ChatID); c != nil {
			name = c.MaskedUserName
			preview = c.LastMessageContent
		}
		lc.notifier.MessageArrived(name, preview)
	}
}

// Select opens a conversation through the chat controller.
func (lc *ListController) Select(ctx context.Context, chatID string) error {
	return lc.chats.Open(ctx, chatID)
}

// SetFilter swaps the active list filter.
func (lc *ListController) SetFilter(f Filter) {
	lc.mu.Lock()
	lc.filter = f
	lc.mu.Unlock()
}

// Filter returns the active filter.
func (lc *ListController) Filter() Filter {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.filter
}

// Projection renders the current list snapshot through the active filter.
func (lc *ListController) Projection() []Group {
	return Project(lc.list.Snapshot(), lc.Filter())
}
