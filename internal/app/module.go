package app

import (
	"context"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/agent"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/api"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/bus"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/chat"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/config"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/crypto"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/lock"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/logging"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/notify"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/realtime"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/session"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/store"
	intsync "github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/sync"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/tui"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
}

// Module returns the fx module for the console, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("console",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideLock,
			provideConfig,
			provideBus,
			provideCipher,
			provideAgentContext,
			provideClient,
			provideMessageStore,
			provideChatListStore,
			provideSource,
			providePoller,
			provideReconciler,
			provideNotifier,
			provideChatController,
			provideListController,
			provideApp,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := session.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	// stderr shares the terminal with the TUI, so file-only.
	return logging.New(session.LogPath(p.Profile), p.Profile, false)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(session.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideCipher(cfg *config.Config) (*crypto.Cipher, error) {
	return crypto.NewCipher(cfg.MasterSecret)
}

func provideAgentContext(cfg *config.Config) *agent.Context {
	name := cfg.AgentName
	if name == "" {
		name = cfg.AgentID
	}
	return agent.NewContext(agent.Agent{ID: cfg.AgentID, Name: name}, true)
}

func provideClient(cfg *config.Config, logger *zap.Logger) *api.Client {
	return api.NewClient(cfg.APIBaseURL, cfg.AuthToken, logger)
}

func provideMessageStore(client *api.Client, cipher *crypto.Cipher, b *bus.Bus) *store.MessageStore {
	return store.NewMessageStore(client, cipher, b)
}

func provideChatListStore(client *api.Client, cipher *crypto.Cipher, b *bus.Bus) *store.ChatListStore {
	return store.NewChatListStore(client, cipher, b)
}

func provideSource(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *realtime.Source {
	return realtime.NewSource(cfg.RealtimeURL, cfg.AuthToken, b, logger)
}

func providePoller(cfg *config.Config, client *api.Client, logger *zap.Logger) *intsync.Poller {
	return intsync.NewPoller(client, cfg.PollGrace(), cfg.PollInterval(), logger)
}

func provideReconciler(cfg *config.Config, list *store.ChatListStore, logger *zap.Logger) *intsync.Reconciler {
	return intsync.NewReconciler(list, cfg.ReconcileInterval(), logger)
}

func provideNotifier(cfg *config.Config, logger *zap.Logger) *notify.Desktop {
	return notify.NewDesktop(!cfg.DisableNotifications, logger)
}

func provideChatController(
	client *api.Client,
	cipher *crypto.Cipher,
	msgs *store.MessageStore,
	list *store.ChatListStore,
	source *realtime.Source,
	poller *intsync.Poller,
	agentCtx *agent.Context,
	b *bus.Bus,
	logger *zap.Logger,
) *chat.Controller {
	return chat.NewController(client, cipher, msgs, list, source, poller, agentCtx, b, logger)
}

func provideListController(
	list *store.ChatListStore,
	source *realtime.Source,
	recon *intsync.Reconciler,
	ctl *chat.Controller,
	notifier *notify.Desktop,
	logger *zap.Logger,
) *chat.ListController {
	return chat.NewListController(list, source, recon, ctl, notifier, logger)
}

func provideApp(
	p Params,
	lists *chat.ListController,
	chats *chat.Controller,
	msgs *store.MessageStore,
	list *store.ChatListStore,
	agentCtx *agent.Context,
	source *realtime.Source,
	b *bus.Bus,
	logger *zap.Logger,
) *tui.App {
	return tui.NewApp(lists, chats, msgs, list, agentCtx, source, b, logger, p.Profile)
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, app *tui.App, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := app.Run(); err != nil {
					logger.Error("console exited with error", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			app.Stop()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing profile lock", zap.Error(err))
			}
			logger.Info("console stopped")
			return nil
		},
	})
}
