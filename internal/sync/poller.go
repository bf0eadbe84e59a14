package sync

import (
	"context"
	"sync"
	"time"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/store"
	"go.uber.org/zap"
)

// MessageFetcher is the slice of the backend the poller needs.
type MessageFetcher interface {
	FetchMessagesSince(ctx context.Context, chatID string, since time.Time) ([]store.Message, error)
}

// Poller is the safety net under the realtime feed: while a chat is open it
// periodically fetches messages newer than the last known timestamp and
// pushes them through the same ingest path realtime uses, so a dropped push
// connection bounds message latency to the poll interval instead of losing
// messages. The timer is a scoped resource: Arm acquires it, Disarm (or a
// second Arm) releases it.
type Poller struct {
	fetcher  MessageFetcher
	logger   *zap.Logger
	grace    time.Duration
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	chatID string
	last   time.Time
}

// NewPoller creates a poller. Polling only begins grace after Arm, to avoid
// redundant fetches while realtime is healthy right after a chat opens.
func NewPoller(fetcher MessageFetcher, grace, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		fetcher:  fetcher,
		logger:   logger,
		grace:    grace,
		interval: interval,
	}
}

// Arm starts polling for the given chat after the grace delay. Each fetched
// message is handed to ingest in order. Arming while armed disarms first,
// so switching chats never leaves a stale timer running.
func (p *Poller) Arm(ctx context.Context, chatID string, lastKnown time.Time, ingest func(store.Message)) {
	p.Disarm()

	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.chatID = chatID
	p.last = lastKnown
	p.mu.Unlock()

	go p.loop(ctx, chatID, ingest)
}

// Disarm stops polling. Safe to call when idle.
func (p *Poller) Disarm() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.chatID = ""
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Armed reports whether a chat is currently being polled for.
func (p *Poller) Armed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) loop(ctx context.Context, chatID string, ingest func(store.Message)) {
	grace := time.NewTimer(p.grace)
	defer grace.Stop()
	select {
	case <-grace.C:
	case <-ctx.Done():
		return
	}

	p.logger.Info("polling fallback armed", zap.String("chat", chatID))
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.tick(ctx, chatID, ingest)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) tick(ctx context.Context, chatID string, ingest func(store.Message)) {
	p.mu.Lock()
	since := p.last
	p.mu.Unlock()

	msgs, err := p.fetcher.FetchMessagesSince(ctx, chatID, since)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("poll fetch failed", zap.String("chat", chatID), zap.Error(err))
		}
		return
	}
	for _, m := range msgs {
		ingest(m)
		p.mu.Lock()
		if p.chatID == chatID && m.CreatedAt.After(p.last) {
			p.last = m.CreatedAt
		}
		p.mu.Unlock()
	}
}
