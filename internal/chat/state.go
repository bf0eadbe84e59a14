package chat

import (
	"fmt"
	"slices"
	"sync"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/bus"
)

// State represents the lifecycle state of the open conversation.
type State string

const (
	Idle        State = "IDLE"
	LoadingInfo State = "LOADING_INFO"
	Ready       State = "READY"
	Sending     State = "SENDING"
	Failed      State = "FAILED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Idle:        {LoadingInfo},
	LoadingInfo: {Ready, Failed, Idle},
	Ready:       {Sending, LoadingInfo, Idle, Failed},
	Sending:     {Ready, Idle},
	Failed:      {LoadingInfo, Idle},
}

// machine tracks and enforces conversation state transitions.
type machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

func newMachine(b *bus.Bus) *machine {
	return &machine{
		current: Idle,
		bus:     b,
	}
}

func (m *machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.PublishKind(bus.KindChatStateChanged, StateChange{From: from, To: to})
	}
	return nil
}

// StateChange is the payload for conversation state change events.
type StateChange struct {
	From State
	To   State
}
