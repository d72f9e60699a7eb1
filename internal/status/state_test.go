package status

import (
	"testing"
	"time"

	"github.com/brunodmt/tether/internal/bus"
)

func TestStartsOffline(t *testing.T) {
	m := NewMachine(nil)
	if got := m.Current(); got != Offline {
		t.Errorf("Current() = %s, want %s", got, Offline)
	}
}

func TestValidTransitionChain(t *testing.T) {
	m := NewMachine(nil)
	chain := []State{Connecting, Connected, Reconnecting, Connecting, Connected, Closed}
	for _, to := range chain {
		if err := m.Transition(to); err != nil {
			t.Fatalf("Transition(%s) error = %v", to, err)
		}
	}
	if got := m.Current(); got != Closed {
		t.Errorf("Current() = %s, want %s", got, Closed)
	}
}

func TestInvalidTransitionRejected(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Connected); err == nil {
		t.Error("Transition(Offline -> Connected) should fail")
	}
	if got := m.Current(); got != Offline {
		t.Errorf("state changed on rejected transition: %s", got)
	}
}

func TestClosedIsTerminal(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Closed); err != nil {
		t.Fatalf("Transition(Closed) error = %v", err)
	}
	if err := m.Transition(Connecting); err == nil {
		t.Error("transition out of Closed should fail")
	}
}

func TestTransitionPublishesStatusChange(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("conn.", 8)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		change, ok := evt.Payload.(StatusChange)
		if !ok {
			t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
		}
		if change.From != Offline || change.To != Connecting {
			t.Errorf("change = %+v, want Offline -> Connecting", change)
		}
	case <-time.After(time.Second):
		t.Fatal("no status change event published")
	}
}

func TestRejectedTransitionPublishesNothing(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("conn.", 8)
	defer unsub()

	m := NewMachine(b)
	_ = m.Transition(Connected)

	select {
	case evt := <-ch:
		t.Errorf("event published for rejected transition: %+v", evt)
	default:
	}
}
