package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/chat"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/store"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/tui/ui"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// ConversationList is the main conversation list view.
type ConversationList struct {
	*tview.Table
	theme *ui.Theme

	groups []chat.Group
	// rowIDs maps table rows to chat ids; "" marks header and group rows.
	rowIDs []string
	filter chat.Filter
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Conversations ")
	table.SetTitleColor(theme.TitleColor)

	return &ConversationList{
		Table: table,
		theme: theme,
	}
}

// Name implements Component.
func (cl *ConversationList) Name() string { return "Conversations" }

// Init implements Component.
func (cl *ConversationList) Init() {}

// Start implements Component.
func (cl *ConversationList) Start() {}

// Stop implements Component.
func (cl *ConversationList) Stop() {}

// Hints implements Component.
func (cl *ConversationList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
		{Key: "s", Description: "Cycle sort"},
		{Key: "a", Description: "Toggle availability"},
		{Key: "?", Description: "Help"},
		{Key: "q", Description: "Quit"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// Update refreshes the list with projected groups and the filter used to
// produce them (shown in the title).
func (cl *ConversationList) Update(groups []chat.Group, filter chat.Filter) {
	cl.groups = groups
	cl.filter = filter
	cl.render()
}

func (cl *ConversationList) render() {
	cl.Clear()
	cl.rowIDs = cl.rowIDs[:0]

	headers := []struct {
		text string
		exp  int
	}{
		{" PATIENT", 1},
		{" STATUS", 0},
		{" LAST MESSAGE", 2},
		{" TIME", 0},
		{" UNREAD", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		cl.SetCell(0, col, cell)
	}
	cl.rowIDs = append(cl.rowIDs, "")

	row := 1
	total := 0
	for _, g := range cl.groups {
		if g.Label != "" {
			label := fmt.Sprintf(" ── %s (%d) ──", strings.ToUpper(g.Label), len(g.Chats))
			cell := tview.NewTableCell(label).
				SetSelectable(false).
				SetTextColor(cl.theme.TitleColor).
				SetAttributes(tcell.AttrBold)
			cl.SetCell(row, 0, cell)
			for col := 1; col < len(headers); col++ {
				cl.SetCell(row, col, tview.NewTableCell("").SetSelectable(false))
			}
			cl.rowIDs = append(cl.rowIDs, "")
			row++
		}
		for _, c := range g.Chats {
			cl.renderChat(row, c)
			cl.rowIDs = append(cl.rowIDs, c.ID)
			row++
			total++
		}
	}

	if cl.filter.Query != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) filter: %s ", total, cl.filter.Query))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", total))
	}
}

func (cl *ConversationList) renderChat(row int, c store.Chat) {
	name := c.MaskedUserName
	if name == "" {
		name = c.ID
	}

	unread := ""
	nameColor := cl.theme.FgColor
	if c.UnreadCount > 0 {
		unread = fmt.Sprintf("%d", c.UnreadCount)
		nameColor = cl.theme.UnreadColor
	}

	preview := c.LastMessageContent
	if c.LastMessageSenderType == store.SenderAgent {
		preview = "You: " + preview
	}

	cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(name))).
		SetExpansion(1).SetTextColor(nameColor))
	cl.SetCell(row, 1, tview.NewTableCell(statusLabel(c.Status)).
		SetExpansion(0).SetTextColor(statusColor(cl.theme, c.Status)))
	cl.SetCell(row, 2, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(preview))).
		SetExpansion(2).SetTextColor(cl.theme.FgColor))
	cl.SetCell(row, 3, tview.NewTableCell(formatTimestamp(c.LastMessageAt)).
		SetExpansion(0).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
	cl.SetCell(row, 4, tview.NewTableCell(unread).
		SetExpansion(0).SetTextColor(cl.theme.UnreadColor).SetAlign(tview.AlignRight))
}

// SelectedChat returns the id of the currently selected chat, or "".
func (cl *ConversationList) SelectedChat() string {
	row, _ := cl.GetSelection()
	if row >= 0 && row < len(cl.rowIDs) {
		return cl.rowIDs[row]
	}
	return ""
}

// ChatByIndex returns the id of the Nth visible conversation (1-based),
// counting across groups.
func (cl *ConversationList) ChatByIndex(n int) string {
	if n < 1 {
		return ""
	}
	seen := 0
	for _, id := range cl.rowIDs {
		if id == "" {
			continue
		}
		seen++
		if seen == n {
			return id
		}
	}
	return ""
}

func statusLabel(s store.Status) string {
	switch s {
	case store.StatusNew:
		return "NEW"
	case store.StatusInProgress:
		return "ACTIVE"
	case store.StatusFollowUp:
		return "FOLLOW-UP"
	case store.StatusClosed:
		return "CLOSED"
	default:
		return strings.ToUpper(string(s))
	}
}

func statusColor(theme *ui.Theme, s store.Status) tcell.Color {
	switch s {
	case store.StatusNew:
		return theme.UnreadColor
	case store.StatusClosed:
		return tcell.ColorGray
	default:
		return theme.FgColor
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
