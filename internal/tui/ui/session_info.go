package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// SessionData holds agent session information for display.
type SessionData struct {
	Profile     string
	AgentName   string
	Online      bool
	RealtimeUp  bool
	ChatCount   int
	UnreadTotal int
	Uptime      time.Duration
}

// SessionInfo displays agent session metadata in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates a new session info panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &SessionInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the session info.
func (si *SessionInfo) Update(data *SessionData) {
	si.Clear()
	if data == nil {
		return
	}

	fgColor := colorName(si.theme.FgColor)
	counterColor := colorName(si.theme.CounterColor)

	availability := fmt.Sprintf("[%s]online[-]", colorName(si.theme.LinkUpColor))
	if !data.Online {
		availability = fmt.Sprintf("[%s]offline[-]", colorName(si.theme.LinkDownColor))
	}
	// The link line is the true channel health: "realtime" only while a
	// push connection is actually established.
	link := fmt.Sprintf("[%s]realtime[-]", colorName(si.theme.LinkUpColor))
	if !data.RealtimeUp {
		link = fmt.Sprintf("[%s]polling[-]", colorName(si.theme.LinkDownColor))
	}

	uptime := formatDuration(data.Uptime)

	text := fmt.Sprintf(
		"[%s::b]Profile:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]Agent:[-:-:-]   [%s]%s[-] %s\n"+
			"[%s::b]Link:[-:-:-]    %s\n"+
			"[%s::b]Chats:[-:-:-]   [%s]%d[-] ([%s]%d unread[-])\n"+
			"[%s::b]Uptime:[-:-:-]  [%s]%s[-]",
		fgColor, counterColor, data.Profile,
		fgColor, counterColor, data.AgentName, availability,
		fgColor, link,
		fgColor, counterColor, data.ChatCount, counterColor, data.UnreadTotal,
		fgColor, counterColor, uptime,
	)

	_, _ = fmt.Fprint(si, text)
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
