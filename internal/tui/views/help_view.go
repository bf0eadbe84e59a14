package views

import (
	"fmt"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Init implements Component.
func (hv *HelpView) Init() {}

// Start implements Component.
func (hv *HelpView) Start() {}

// Stop implements Component.
func (hv *HelpView) Stop() {}

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

func (hv *HelpView) render() {
	keyColor := ui.DefaultTheme().MenuKeyColor
	kc := fmt.Sprintf("#%06x", keyColor.Hex())

	help := fmt.Sprintf(`
  [::b]Global Keys[-:-:-]

  [%s]:[-:-:-]    Command mode        [%s]Esc[-:-:-]   Cancel / Go back
  [%s]/[-:-:-]    Filter mode         [%s]?[-:-:-]     Help
  [%s]q[-:-:-]    Quit / Back         [%s]Ctrl-C[-:-:-] Quit immediately
  [%s]a[-:-:-]    Toggle availability

  [::b]Conversation List[-:-:-]

  [%s]Enter[-:-:-]  Open conversation  [%s]0[-:-:-]     Clear filter
  [%s]1-9[-:-:-]    Jump to Nth chat   [%s]s[-:-:-]     Cycle sort mode
  [%s]j/Down[-:-:-] Move down          [%s]k/Up[-:-:-]  Move up

  [::b]Conversation[-:-:-]

  [%s]i[-:-:-]    Focus composer      [%s]d[-:-:-]     Show details
  [%s]g[-:-:-]    Load older messages [%s]t[-:-:-]     Cycle workflow status
  [%s]Esc[-:-:-]  Exit composer       [%s]Enter[-:-:-] Send (in composer)

  [::b]Commands (: mode)[-:-:-]

  [%s]:status <new|in_progress|follow_up|closed>[-:-:-]  Filter by status
  [%s]:sort <activity|name|unread|status>[-:-:-]         Sort the list
  [%s]:group <tag,...>[-:-:-]                            Group by tags
  [%s]:group[-:-:-]                                      Clear grouping
  [%s]:help[-:-:-] / [%s]:h[-:-:-]       Show this help
  [%s]:quit[-:-:-] / [%s]:q[-:-:-]       Quit application
`,
		kc, kc, kc, kc, kc, kc, kc,
		kc, kc, kc, kc, kc, kc,
		kc, kc, kc, kc, kc, kc,
		kc, kc, kc, kc, kc, kc, kc, kc,
	)

	_, _ = fmt.Fprint(hv, help)
}
