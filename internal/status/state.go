package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/brunodmt/tether/internal/bus"
)

// State represents a push-transport lifecycle state.
type State string

const (
	Offline      State = "OFFLINE"
	Connecting   State = "CONNECTING"
	Connected    State = "CONNECTED"
	Reconnecting State = "RECONNECTING"
	Closed       State = "CLOSED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Offline:      {Connecting, Closed},
	Connecting:   {Connected, Reconnecting, Offline, Closed},
	Connected:    {Reconnecting, Offline, Closed},
	Reconnecting: {Connecting, Offline, Closed},
	Closed:       {},
}

// Machine tracks and enforces transport lifecycle transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Offline state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Offline,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindConnStatusChanged,
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
