package readstate

import "sync"

// Tracker decides when the open chat's unread messages become read. A
// viewing session is the continuous period a chat is both selected and the
// console focused; within one session the mark-as-read side effect fires at
// most once, no matter how many focus or interaction events arrive. The
// guard resets when another chat is selected or the chat closes.
type Tracker struct {
	mu      sync.Mutex
	chatID  string
	focused bool
	fired   bool
	fire    func(chatID string)
}

// NewTracker creates a tracker. fire performs the mark-as-read side effect
// (backend call, optimistic zero, reconcile) and is invoked outside the
// tracker's lock. The console starts focused.
func NewTracker(fire func(chatID string)) *Tracker {
	return &Tracker{focused: true, fire: fire}
}

// ChatSelected starts a new viewing session for chatID.
func (t *Tracker) ChatSelected(chatID string) {
	t.mu.Lock()
	t.chatID = chatID
	t.fired = false
	t.maybeFireLocked()
}

// ChatClosed ends the current session.
func (t *Tracker) ChatClosed() {
	t.mu.Lock()
	t.chatID = ""
	t.fired = false
	t.mu.Unlock()
}

// FocusChanged records console focus. Regaining focus while a chat is open
// is a trigger.
func (t *Tracker) FocusChanged(focused bool) {
	t.mu.Lock()
	t.focused = focused
	if !focused {
		t.mu.Unlock()
		return
	}
	t.maybeFireLocked()
}

// Interaction records a user interaction (key, click, scroll) while the
// console is open.
func (t *Tracker) Interaction() {
	t.mu.Lock()
	t.maybeFireLocked()
}

// MessageArrived is called when a new user message lands in the open chat;
// while the session is active the message counts as immediately read, which
// needs a fresh mark-as-read because the previous one predates it.
func (t *Tracker) MessageArrived(chatID string) {
	t.mu.Lock()
	if t.chatID != chatID {
		t.mu.Unlock()
		return
	}
	// New unread content: the session's single fire has been spent, so
	// open a fresh one for this message.
	t.fired = false
	t.maybeFireLocked()
}

// maybeFireLocked fires when the session is active and unspent. It unlocks.
func (t *Tracker) maybeFireLocked() {
	if t.chatID == "" || !t.focused || t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	chatID := t.chatID
	t.mu.Unlock()
	t.fire(chatID)
}
