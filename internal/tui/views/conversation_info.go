package views

import (
	"fmt"
	"strings"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/store"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationInfo displays detailed information about a conversation.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Conversation Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (ci *ConversationInfo) Name() string { return "Details" }

// Init implements Component.
func (ci *ConversationInfo) Init() {}

// Start implements Component.
func (ci *ConversationInfo) Start() {}

// Stop implements Component.
func (ci *ConversationInfo) Stop() {}

// Hints implements Component.
func (ci *ConversationInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: "?", Description: "Help"},
	}
}

// Update renders conversation details.
func (ci *ConversationInfo) Update(info *store.ChatInfo) {
	ci.Clear()
	if info == nil {
		return
	}

	fg := fmt.Sprintf("#%06x", ci.theme.FgColor.Hex())
	ct := fmt.Sprintf("#%06x", ci.theme.CounterColor.Hex())

	tags := strings.Join(info.Tags, ", ")
	if tags == "" {
		tags = "-"
	}
	category := info.Category
	if category == "" {
		category = "-"
	}
	opened := "-"
	if !info.CreatedAt.IsZero() {
		opened = info.CreatedAt.Format("02 Jan 2006 15:04")
	}

	text := fmt.Sprintf(
		"\n [%s::b]Patient:[-:-:-]  [%s]%s[-]\n"+
			" [%s::b]Status:[-:-:-]   [%s]%s[-]\n"+
			" [%s::b]Category:[-:-:-] [%s]%s[-]\n"+
			" [%s::b]Tags:[-:-:-]     [%s]%s[-]\n"+
			" [%s::b]Opened:[-:-:-]   [%s]%s[-]\n"+
			" [%s::b]Unread:[-:-:-]   [%s]%d[-]",
		fg, ct, tview.Escape(info.MaskedUserName),
		fg, ct, statusLabel(info.Status),
		fg, ct, tview.Escape(category),
		fg, ct, tview.Escape(tags),
		fg, ct, opened,
		fg, ct, info.UnreadCount,
	)

	_, _ = fmt.Fprint(ci, text)
	ci.SetTitle(fmt.Sprintf(" %s Details ", tview.Escape(info.MaskedUserName)))
}
