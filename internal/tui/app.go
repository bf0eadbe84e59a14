package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/agent"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/bus"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/chat"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/realtime"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/store"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/tui/keys"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/tui/ui"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/tui/views"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const (
	pageConversations = "conversations"
	pageConversation  = "conversation"
	pageDetails       = "details"
	pageHelp          = "help"
	pageSendFailed    = "send-failed"
)

// sortCycle is the order the 's' key steps through.
var sortCycle = []chat.SortField{
	chat.SortByActivity, chat.SortByName, chat.SortByUnread, chat.SortByStatus,
}

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	pages    *ui.Pages
	crumbs   *ui.Crumbs
	menu     *ui.Menu
	session  *ui.SessionInfo
	prompt   *ui.Prompt
	flash    *ui.FlashModel
	flashBar *ui.FlashBar
	registry *keys.Registry

	convList  *views.ConversationList
	thread    *views.MessageThread
	info      *views.ConversationInfo
	help      *views.HelpView
	statusBar *views.StatusBar
	sendFail  *tview.Modal

	lists  *chat.ListController
	chats  *chat.Controller
	msgs   *store.MessageStore
	list   *store.ChatListStore
	agent  *agent.Context
	source *realtime.Source
	bus    *bus.Bus
	logger *zap.Logger

	root    *tview.Flex
	profile string
	started time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application shell.
func NewApp(
	lists *chat.ListController,
	chats *chat.Controller,
	msgs *store.MessageStore,
	list *store.ChatListStore,
	agentCtx *agent.Context,
	source *realtime.Source,
	b *bus.Bus,
	logger *zap.Logger,
	profile string,
) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		theme:    theme,
		pages:    ui.NewPages(),
		crumbs:   ui.NewCrumbs(theme),
		menu:     ui.NewMenu(theme),
		session:  ui.NewSessionInfo(theme),
		prompt:   ui.NewPrompt(theme),
		flash:    ui.NewFlashModel(),
		flashBar: ui.NewFlashBar(theme),
		registry: keys.NewRegistry(),

		convList:  views.NewConversationList(theme),
		thread:    views.NewMessageThread(theme),
		info:      views.NewConversationInfo(theme),
		help:      views.NewHelpView(theme),
		statusBar: views.NewStatusBar(),
		sendFail:  tview.NewModal().AddButtons([]string{"OK"}),

		lists:   lists,
		chats:   chats,
		msgs:    msgs,
		list:    list,
		agent:   agentCtx,
		source:  source,
		bus:     b,
		logger:  logger,
		profile: profile,
		started: time.Now(),
		ctx:     ctx,
		cancel:  cancel,
	}

	a.statusBar.SetProfile(profile)
	a.statusBar.SetAgent(agentCtx.Agent().Name)
	a.statusBar.SetOnline(agentCtx.Online())

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	// Terminal focus reporting feeds the read-state gate: unread is only
	// marked read while the console actually has focus.
	if screen, err := tcell.NewScreen(); err == nil {
		a.app.SetScreen(&focusScreen{Screen: screen, onFocus: a.focusChanged})
	} else {
		logger.Debug("terminal focus reporting unavailable", zap.Error(err))
	}

	return a
}

// focusChanged runs on the event-loop goroutine for every terminal focus
// transition.
func (a *App) focusChanged(focused bool) {
	a.chats.FocusChanged(focused)
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "Quit", Visible: true,
		Handler: func() { a.Stop() },
	})
	a.registry.AddGlobal("help", &keys.Action{
		Rune: '?', Key: tcell.KeyRune,
		Description: "Help", Visible: true,
		Handler: func() { a.pages.Push(pageHelp) },
	})
	a.registry.AddGlobal("filter", &keys.Action{
		Rune: '/', Key: tcell.KeyRune,
		Description: "Filter", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptFilter) },
	})
	a.registry.AddGlobal("command", &keys.Action{
		Rune: ':', Key: tcell.KeyRune,
		Description: "Command", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptCommand) },
	})
	a.registry.AddGlobal("availability", &keys.Action{
		Rune: 'a', Key: tcell.KeyRune,
		Description: "Toggle availability", Visible: true,
		Handler: func() { a.agent.SetOnline(!a.agent.Online()) },
	})

	a.registry.AddView(pageConversations, "sort", &keys.Action{
		Rune: 's', Key: tcell.KeyRune,
		Description: "Cycle sort", Visible: true,
		Handler: func() { a.cycleSort() },
	})
	a.registry.AddView(pageConversations, "clear-filter", &keys.Action{
		Rune: '0', Key: tcell.KeyRune,
		Description: "Clear filter", Visible: false,
		Handler: func() { a.setQuery("") },
	})
	for r := '1'; r <= '9'; r++ {
		n := int(r - '0')
		a.registry.AddView(pageConversations, "jump-"+string(r), &keys.Action{
			Rune: r, Key: tcell.KeyRune,
			Description: "Jump", Visible: false,
			Handler: func() {
				if id := a.convList.ChatByIndex(n); id != "" {
					a.openChat(id)
				}
			},
		})
	}

	a.registry.AddView(pageConversation, "details", &keys.Action{
		Rune: 'd', Key: tcell.KeyRune,
		Description: "Details", Visible: true,
		Handler: func() { a.showDetails() },
	})
	a.registry.AddView(pageConversation, "older", &keys.Action{
		Rune: 'g', Key: tcell.KeyRune,
		Description: "Older messages", Visible: true,
		Handler: func() { a.loadOlder() },
	})
	a.registry.AddView(pageConversation, "status", &keys.Action{
		Rune: 't', Key: tcell.KeyRune,
		Description: "Change status", Visible: true,
		Handler: func() { a.cycleStatus() },
	})
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(row, col int) {
		if id := a.convList.SelectedChat(); id != "" {
			a.openChat(id)
		}
	})

	a.thread.SetOnSend(func(text string) { a.send(text) })

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptFilter:
			a.setQuery(text)
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		}
	})
	a.prompt.SetOnCancel(func() { a.hidePrompt() })

	a.sendFail.SetDoneFunc(func(int, string) { a.dismissSendFailed() })

	a.pages.SetOnChange(func(stack []string) {
		a.crumbs.Update(stack)
		a.menu.Update(a.hintsFor(a.pages.Current()))
	})
}

func (a *App) hintsFor(page string) []ui.MenuHint {
	switch page {
	case pageConversation:
		return a.thread.Hints()
	case pageDetails:
		return a.info.Hints()
	case pageHelp:
		return a.help.Hints()
	case pageSendFailed:
		return []ui.MenuHint{{Key: "Enter", Description: "Dismiss"}}
	default:
		return a.convList.Hints()
	}
}

func (a *App) setupLayout() {
	a.pages.AddPage(pageConversations, a.convList, true, true)
	a.pages.AddPage(pageConversation, a.thread, true, false)
	a.pages.AddPage(pageDetails, a.info, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)
	a.pages.AddPage(pageSendFailed, a.sendFail, true, false)
	a.pages.Reset(pageConversations)

	header := tview.NewFlex().
		AddItem(a.session, 0, 2, false).
		AddItem(a.menu, 0, 2, false).
		AddItem(ui.NewLogo(a.theme), 20, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 5, 0, false).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.flashBar, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(a.root, true)
	a.app.SetInputCapture(a.handleKey)
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	current := a.pages.Current()
	focused := a.app.GetFocus()

	if event.Key() == tcell.KeyEscape {
		if focused == a.prompt.InputField {
			return event // prompt handles its own escape
		}
		if focused == a.thread.Composer() {
			a.app.SetFocus(a.thread.Messages())
			return nil
		}
		if current != pageConversations {
			a.goBack()
			return nil
		}
		return event
	}

	// Text inputs consume keys normally.
	if _, ok := focused.(*tview.InputField); ok {
		return event
	}

	// Any other keypress on the open conversation counts as interaction
	// for read-state purposes.
	if current == pageConversation {
		a.chats.Interaction()
	}

	if current == pageConversation && event.Key() == tcell.KeyRune && event.Rune() == 'i' {
		a.app.SetFocus(a.thread.Composer())
		return nil
	}

	if a.registry.HandleEvent(current, event) {
		return nil
	}
	return event
}

// goBack pops one page, closing the conversation when leaving it.
func (a *App) goBack() {
	popped := a.pages.Pop()
	if popped == pageConversation {
		go a.chats.Close()
	}
	if a.pages.Depth() == 0 {
		a.pages.Reset(pageConversations)
	}
	if a.pages.Current() == pageConversations {
		a.refreshList()
	}
	a.focusCurrent()
}

func (a *App) openChat(id string) {
	go func() {
		if err := a.lists.Select(a.ctx, id); err != nil {
			a.flash.Err(err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			if info := a.chats.Info(); info != nil {
				a.thread.SetChatName(info.MaskedUserName)
				a.info.Update(info)
			}
			a.refreshThread()
			a.pages.Push(pageConversation)
			a.app.SetFocus(a.thread.Messages())
		})
	}()
}

func (a *App) send(text string) {
	go func() {
		err := a.chats.Send(a.ctx, text)
		switch {
		case errors.Is(err, chat.ErrAgentOffline):
			// The composer keeps the text for when the agent comes back.
			a.flash.Warn("You are offline; message not sent")
		case err != nil:
			// A failed send must be acknowledged, not scroll past in the
			// flash bar.
			a.app.QueueUpdateDraw(func() { a.showSendFailed(err) })
		default:
			a.app.QueueUpdateDraw(func() { a.thread.ClearComposer() })
		}
	}()
}

// showSendFailed raises a blocking alert for a failed send. The composer
// still holds the typed text.
func (a *App) showSendFailed(err error) {
	a.sendFail.SetText(fmt.Sprintf("Message not sent.\n\n%v\n\nYour text is still in the composer.", err))
	a.pages.Push(pageSendFailed)
	a.app.SetFocus(a.sendFail)
}

func (a *App) dismissSendFailed() {
	if a.pages.Current() == pageSendFailed {
		a.pages.Pop()
	}
	a.app.SetFocus(a.thread.Composer())
}

func (a *App) loadOlder() {
	go func() {
		added, err := a.chats.LoadOlder(a.ctx)
		if err != nil {
			a.flash.Err(err)
			return
		}
		if added == 0 {
			a.flash.Info("Beginning of conversation")
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.thread.UpdateKeepAnchor(a.msgs.Messages(), added)
			a.thread.SetHasMore(a.msgs.HasMore())
		})
	}()
}

func (a *App) cycleStatus() {
	info := a.chats.Info()
	if info == nil {
		return
	}
	order := []store.Status{
		store.StatusNew, store.StatusInProgress, store.StatusFollowUp, store.StatusClosed,
	}
	next := order[0]
	for i, s := range order {
		if s == info.Status {
			next = order[(i+1)%len(order)]
			break
		}
	}
	go func() {
		if err := a.chats.ChangeStatus(a.ctx, next); err != nil {
			a.flash.Err(err)
			return
		}
		a.flash.Info("Status set to " + string(next))
		a.app.QueueUpdateDraw(func() {
			if info := a.chats.Info(); info != nil {
				a.info.Update(info)
			}
		})
	}()
}

func (a *App) cycleSort() {
	f := a.lists.Filter()
	next := sortCycle[0]
	for i, s := range sortCycle {
		if s == f.Sort || (f.Sort == "" && s == chat.SortByActivity) {
			next = sortCycle[(i+1)%len(sortCycle)]
			break
		}
	}
	f.Sort = next
	a.lists.SetFilter(f)
	a.flash.Info("Sorted by " + string(next))
	a.refreshList()
}

func (a *App) setQuery(q string) {
	f := a.lists.Filter()
	f.Query = q
	a.lists.SetFilter(f)
	a.refreshList()
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "quit", "q":
		a.Stop()
	case "help", "h":
		a.pages.Push(pageHelp)
	case "status":
		f := a.lists.Filter()
		f.Statuses = nil
		for _, s := range strings.Fields(cmd.Args) {
			f.Statuses = append(f.Statuses, store.Status(s))
		}
		a.lists.SetFilter(f)
		a.refreshList()
	case "sort":
		f := a.lists.Filter()
		f.Sort = chat.SortField(cmd.Args)
		a.lists.SetFilter(f)
		a.refreshList()
	case "group":
		f := a.lists.Filter()
		f.GroupTags = nil
		for _, tag := range strings.Split(cmd.Args, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				f.GroupTags = append(f.GroupTags, tag)
			}
		}
		a.lists.SetFilter(f)
		a.refreshList()
	default:
		a.flash.Warn("Unknown command: " + cmd.Name)
	}
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	a.focusCurrent()
}

func (a *App) focusCurrent() {
	switch a.pages.Current() {
	case pageConversation:
		a.app.SetFocus(a.thread.Messages())
	case pageDetails:
		a.app.SetFocus(a.info)
	case pageHelp:
		a.app.SetFocus(a.help)
	case pageSendFailed:
		a.app.SetFocus(a.sendFail)
	default:
		a.app.SetFocus(a.convList)
	}
}

func (a *App) showDetails() {
	if info := a.chats.Info(); info != nil {
		a.info.Update(info)
		a.pages.Push(pageDetails)
	}
}

func (a *App) refreshList() {
	a.convList.Update(a.lists.Projection(), a.lists.Filter())
	a.refreshSession()
}

func (a *App) refreshThread() {
	a.thread.Update(a.msgs.Messages())
	a.thread.SetHasMore(a.msgs.HasMore())
}

func (a *App) refreshSession() {
	chats := a.list.Snapshot()
	unread := 0
	for _, c := range chats {
		unread += c.UnreadCount
	}
	a.session.Update(&ui.SessionData{
		Profile:     a.profile,
		AgentName:   a.agent.Agent().Name,
		Online:      a.agent.Online(),
		RealtimeUp:  a.source.Connected(),
		ChatCount:   len(chats),
		UnreadTotal: unread,
		Uptime:      time.Since(a.started),
	})
	a.statusBar.SetOnline(a.agent.Online())
	a.statusBar.SetRealtime(a.source.Connected())
}

// Run starts the list controller and the TUI event loop.
func (a *App) Run() error {
	if err := a.lists.Start(a.ctx); err != nil {
		return err
	}

	unsubAgent := a.agent.Subscribe(func(online bool) {
		a.app.QueueUpdateDraw(a.refreshSession)
	})
	defer unsubAgent()

	events, unsubBus := a.bus.Subscribe("", 64)
	defer unsubBus()
	go a.pump(events)

	a.refreshList()
	a.menu.Update(a.convList.Hints())
	a.crumbs.Update(a.pages.Stack())

	return a.app.Run()
}

// pump applies bus events to the UI. Everything funnels through
// QueueUpdateDraw so views are only touched on the UI goroutine.
func (a *App) pump(events <-chan bus.Event) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			a.apply(evt)
		case <-ticker.C:
			a.app.QueueUpdateDraw(func() {
				a.refreshSession()
				a.flashBar.Update(a.flash.GetMessage())
			})
		case fm := <-a.flash.Watch():
			a.app.QueueUpdateDraw(func() { a.flashBar.Update(&fm) })
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) apply(evt bus.Event) {
	switch evt.Kind {
	case bus.KindMessageIngested:
		chatID, _ := evt.Payload.(string)
		a.app.QueueUpdateDraw(func() {
			if chatID == a.chats.ChatID() && a.pages.Current() == pageConversation {
				a.refreshThread()
			}
			a.refreshList()
		})
	case bus.KindListChanged, bus.KindChatReconciled:
		a.app.QueueUpdateDraw(a.refreshList)
	case bus.KindRealtimeUp, bus.KindRealtimeDown:
		a.app.QueueUpdateDraw(a.refreshSession)
	case bus.KindChatStateChanged:
		if sc, ok := evt.Payload.(chat.StateChange); ok && sc.To == chat.Failed {
			a.flash.Warn("Conversation failed to load")
		}
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.lists.Stop()
	a.chats.Shutdown()
	a.app.Stop()
}
