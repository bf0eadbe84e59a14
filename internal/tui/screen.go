package tui

import "github.com/gdamore/tcell/v2"

// focusScreen wraps a tcell screen to surface terminal focus reporting,
// which tview's event loop does not dispatch. Focus events are consumed
// here and forwarded to onFocus; every other event passes through to tview
// untouched.
type focusScreen struct {
	tcell.Screen
	onFocus func(focused bool)
}

// Init initializes the underlying screen and turns on focus reporting,
// which must happen after the terminal is engaged.
func (s *focusScreen) Init() error {
	if err := s.Screen.Init(); err != nil {
		return err
	}
	s.Screen.EnableFocus()
	return nil
}

// PollEvent intercepts focus events and returns the next non-focus event.
func (s *focusScreen) PollEvent() tcell.Event {
	for {
		ev := s.Screen.PollEvent()
		f, ok := ev.(*tcell.EventFocus)
		if !ok {
			return ev
		}
		if s.onFocus != nil {
			s.onFocus(f.Focused)
		}
	}
}
