package tui

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

// scriptedScreen replays a fixed event sequence. Only PollEvent is used.
type scriptedScreen struct {
	tcell.Screen
	events []tcell.Event
}

func (s *scriptedScreen) PollEvent() tcell.Event {
	if len(s.events) == 0 {
		return nil
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev
}

func TestFocusScreenForwardsFocusEvents(t *testing.T) {
	var seen []bool
	inner := &scriptedScreen{events: []tcell.Event{
		&tcell.EventFocus{Focused: false},
		tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone),
		&tcell.EventFocus{Focused: true},
	}}
	fs := &focusScreen{Screen: inner, onFocus: func(focused bool) {
		seen = append(seen, focused)
	}}

	ev := fs.PollEvent()
	if _, ok := ev.(*tcell.EventKey); !ok {
		t.Fatalf("delivered event = %T, want key event", ev)
	}
	if ev := fs.PollEvent(); ev != nil {
		t.Fatalf("delivered event = %T, want nil after script end", ev)
	}

	if len(seen) != 2 || seen[0] != false || seen[1] != true {
		t.Errorf("focus sequence = %v, want [false true]", seen)
	}
}

func TestFocusScreenPassesEventsWithoutCallback(t *testing.T) {
	inner := &scriptedScreen{events: []tcell.Event{
		&tcell.EventFocus{Focused: true},
		tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone),
	}}
	fs := &focusScreen{Screen: inner}

	ev := fs.PollEvent()
	key, ok := ev.(*tcell.EventKey)
	if !ok || key.Key() != tcell.KeyEnter {
		t.Fatalf("delivered event = %T, want enter key", ev)
	}
}
