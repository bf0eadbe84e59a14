package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/store"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/tui/ui"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// MessageThread displays the open conversation and its composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	chatName string
	onSend   func(text string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			text := strings.TrimSpace(composer.GetText())
			if text != "" {
				mt.onSend(text)
			}
		}
	})

	return mt
}

// Name implements Component.
func (mt *MessageThread) Name() string {
	if mt.chatName != "" {
		return mt.chatName
	}
	return "Messages"
}

// Init implements Component.
func (mt *MessageThread) Init() {}

// Start implements Component.
func (mt *MessageThread) Start() {}

// Stop implements Component.
func (mt *MessageThread) Stop() {}

// Hints implements Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "d", Description: "Details"},
		{Key: "g", Description: "Older messages"},
		{Key: "t", Description: "Change status"},
		{Key: "Esc", Description: "Back"},
		{Key: "?", Description: "Help"},
	}
}

// SetChatName updates the title with the patient's masked name.
func (mt *MessageThread) SetChatName(name string) {
	mt.chatName = name
	mt.messages.SetTitle(fmt.Sprintf(" %s ", name))
}

// SetHasMore reflects whether older pages exist in the title hint.
func (mt *MessageThread) SetHasMore(hasMore bool) {
	title := fmt.Sprintf(" %s ", mt.chatName)
	if hasMore {
		title = fmt.Sprintf(" %s (g: older) ", mt.chatName)
	}
	mt.messages.SetTitle(title)
}

// SetOnSend sets the callback when a message is submitted. The composer
// text is cleared by ClearComposer once the send succeeds, so a failed
// send keeps what was typed.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// ClearComposer empties the input after a successful send.
func (mt *MessageThread) ClearComposer() {
	mt.composer.SetText("")
}

// Update re-renders the thread in ascending order with day separators and
// scrolls to the newest message.
func (mt *MessageThread) Update(msgs []store.Message) {
	mt.render(msgs)
	mt.messages.ScrollToEnd()
}

// UpdateKeepAnchor re-renders after prepended history and scrolls so the
// previously-oldest message stays in view. Line counts ignore word wrap,
// which is close enough to keep the reader oriented.
func (mt *MessageThread) UpdateKeepAnchor(msgs []store.Message, prepended int) {
	mt.render(msgs)
	if prepended <= 0 || prepended > len(msgs) {
		return
	}
	offset := mt.renderedLines(msgs[:prepended])
	mt.messages.ScrollTo(offset, 0)
}

func (mt *MessageThread) render(msgs []store.Message) {
	mt.messages.Clear()

	var prev time.Time
	now := time.Now()
	for i, m := range msgs {
		if i == 0 || !sameDay(prev, m.CreatedAt) {
			_, _ = fmt.Fprintf(mt.messages, "[::d]── %s ──[-:-:-]\n\n", dayLabel(m.CreatedAt, now))
		}
		prev = m.CreatedAt
		_, _ = fmt.Fprint(mt.messages, mt.formatMessage(m))
	}
}

func (mt *MessageThread) formatMessage(m store.Message) string {
	sender := m.SenderName
	if m.SenderType == store.SenderAgent {
		sender = "You"
	}
	if sender == "" {
		sender = string(m.SenderType)
	}

	body := tview.Escape(sanitizeForTerminal(m.Content))
	if m.DecryptFailed {
		body = fmt.Sprintf("[::d]%s[-:-:-]", body)
	}
	return fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n",
		tview.Escape(sanitizeForTerminal(sender)), m.CreatedAt.Format("15:04"), body)
}

// renderedLines counts the lines a message block occupies, ignoring wrap.
func (mt *MessageThread) renderedLines(msgs []store.Message) int {
	lines := 0
	var prev time.Time
	for i, m := range msgs {
		if i == 0 || !sameDay(prev, m.CreatedAt) {
			lines += 2
		}
		prev = m.CreatedAt
		lines += 2 + strings.Count(m.Content, "\n") + 1
	}
	return lines
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}
