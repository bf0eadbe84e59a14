package sync

import (
	"context"
	"time"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/store"
	"go.uber.org/zap"
)

// Reconciler periodically refreshes every chat that is not currently open
// from the source of truth, bounding the staleness a missed realtime event
// can introduce. The open chat is skipped: it has its own poller and its
// unread handling goes through the read-state tracker.
type Reconciler struct {
	list     *store.ChatListStore
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
}

// NewReconciler creates a reconciler sweeping at the given interval.
func NewReconciler(list *store.ChatListStore, interval time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		list:     list,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the periodic sweep.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Sweep(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the sweep.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Sweep reconciles every non-open chat once.
func (r *Reconciler) Sweep(ctx context.Context) {
	open := r.list.OpenChat()
	for _, c := range r.list.Snapshot() {
		if c.ID == open {
			continue
		}
		if err := r.list.ReconcileChat(ctx, c.ID); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Warn("reconcile failed", zap.String("chat", c.ID), zap.Error(err))
		}
	}
}
