package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// StatusBar displays persistent session state at the bottom of the screen.
type StatusBar struct {
	*tview.TextView
	profile  string
	agent    string
	online   bool
	realtime bool
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetAgent updates the agent name display.
func (sb *StatusBar) SetAgent(name string) {
	sb.agent = name
	sb.render()
}

// SetOnline updates the availability indicator.
func (sb *StatusBar) SetOnline(online bool) {
	sb.online = online
	sb.render()
}

// SetRealtime updates the delivery channel indicator.
func (sb *StatusBar) SetRealtime(up bool) {
	sb.realtime = up
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	availability := "[green]online[-]"
	if !sb.online {
		availability = "[orange]offline[-]"
	}
	channel := "[green]⇅ realtime[-]"
	if !sb.realtime {
		channel = "[orange]⟳ polling[-]"
	}

	clock := time.Now().Format("15:04")

	_, _ = fmt.Fprintf(sb, " [::b]%s[-:-:-] | %s %s | %s | %s",
		sb.profile, sb.agent, availability, channel, clock)
}
