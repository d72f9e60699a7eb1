package orchestrate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brunodmt/tether/internal/bus"
	"github.com/brunodmt/tether/internal/state"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	mu       sync.Mutex
	calls    []string
	channels map[string]state.Channel
}

func (f *fakeFetcher) ChannelDetail(_ context.Context, id string) (state.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	return f.channels[id], nil
}

func (f *fakeFetcher) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func startOrchestrator(t *testing.T, store *state.Store, fetcher *fakeFetcher, b *bus.Bus) {
	t.Helper()
	if b == nil {
		b = bus.New()
	}
	o := New(store, fetcher, b, zap.NewNop())
	o.Start()
	t.Cleanup(o.Stop)
}

func TestBulkLoadHighlightsMostRecent(t *testing.T) {
	store := state.New(nil)
	fetcher := &fakeFetcher{channels: map[string]state.Channel{
		"c2": {ID: "c2", Name: "busy", UpdatedAt: 200,
			Messages: []state.Message{{ID: "m1", ChannelID: "c2", Content: "hi"}}},
	}}
	startOrchestrator(t, store, fetcher, nil)

	store.Apply(state.ReplaceAllChannels{Channels: []state.Channel{
		{ID: "c1", UpdatedAt: 100},
		{ID: "c2", UpdatedAt: 200},
		{ID: "c3", UpdatedAt: 150},
	}})

	if got := store.Highlighted(); got != "c2" {
		t.Errorf("highlighted = %q, want c2 (updatedAt 200)", got)
	}
	waitFor(t, "history fetch", func() bool {
		ch, ok := store.Channel("c2")
		return ok && len(ch.Messages) == 1
	})
	if fetcher.lastCall() != "c2" {
		t.Errorf("fetched %q, want c2", fetcher.lastCall())
	}
}

func TestBulkLoadTieKeepsFirst(t *testing.T) {
	store := state.New(nil)
	fetcher := &fakeFetcher{channels: map[string]state.Channel{}}
	startOrchestrator(t, store, fetcher, nil)

	store.Apply(state.ReplaceAllChannels{Channels: []state.Channel{
		{ID: "c1", UpdatedAt: 200},
		{ID: "c2", UpdatedAt: 200},
	}})

	if got := store.Highlighted(); got != "c1" {
		t.Errorf("highlighted = %q, want c1 (first on tie)", got)
	}
}

func TestEmptyBulkLoadNoHighlight(t *testing.T) {
	store := state.New(nil)
	fetcher := &fakeFetcher{}
	startOrchestrator(t, store, fetcher, nil)

	store.Apply(state.ReplaceAllChannels{})

	if got := store.Highlighted(); got != "" {
		t.Errorf("highlighted = %q, want empty", got)
	}
	time.Sleep(30 * time.Millisecond)
	if fetcher.lastCall() != "" {
		t.Error("history fetch issued for empty load")
	}
}

func TestSubmitEnablement(t *testing.T) {
	tests := []struct {
		name       string
		draft      string
		candidates int
		want       bool
	}{
		{"long name with candidate", "teams", 1, true},
		{"short name with candidate", "abc", 1, false},
		{"long name no candidates", "teams", 0, false},
		{"boundary length", "abcde", 1, true},
		{"empty form", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := state.New(nil)
			startOrchestrator(t, store, &fakeFetcher{}, nil)

			store.Apply(state.SetDraftName{Name: tt.draft})
			for i := 0; i < tt.candidates; i++ {
				store.Apply(state.AddCandidate{Scope: state.ScopeNewChannel, User: state.User{ID: "u1"}})
			}

			if got := store.SubmitEnabled(); got != tt.want {
				t.Errorf("SubmitEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubmitDisablesWhenLastCandidateRemoved(t *testing.T) {
	store := state.New(nil)
	startOrchestrator(t, store, &fakeFetcher{}, nil)

	store.Apply(state.SetDraftName{Name: "general"})
	store.Apply(state.AddCandidate{Scope: state.ScopeNewChannel, User: state.User{ID: "u1"}})
	if !store.SubmitEnabled() {
		t.Fatal("submit should be enabled")
	}

	store.Apply(state.RemoveCandidate{Scope: state.ScopeNewChannel, UserID: "u1"})
	if store.SubmitEnabled() {
		t.Error("submit still enabled with zero candidates")
	}
}

func TestAppendMessageSignalsScroll(t *testing.T) {
	store := state.New(nil)
	store.Apply(state.ReplaceChannel{Channel: state.Channel{ID: "c1"}})
	b := bus.New()
	startOrchestrator(t, store, &fakeFetcher{}, b)

	ch, unsub := b.Subscribe(bus.KindUIScrollLatest, 8)
	defer unsub()

	store.Apply(state.SetHighlighted{ChannelID: "c1"})
	store.Apply(state.AppendMessage{Message: state.Message{ID: "m1", ChannelID: "c1", CreatedAt: 1}})

	got := 0
	timeout := time.After(time.Second)
	for got < 2 {
		select {
		case evt := <-ch:
			if id, _ := evt.Payload.(string); id != "c1" {
				t.Errorf("scroll payload = %v, want c1", evt.Payload)
			}
			got++
		case <-timeout:
			t.Fatalf("received %d scroll signals, want 2", got)
		}
	}
}

func TestChannelCreatedResetsForm(t *testing.T) {
	store := state.New(nil)
	startOrchestrator(t, store, &fakeFetcher{}, nil)

	store.Apply(state.SetDraftName{Name: "general"})
	store.Apply(state.AddCandidate{Scope: state.ScopeNewChannel, User: state.User{ID: "u1"}})
	store.Apply(state.SetCreateStatus{Message: "Creating channel..."})

	store.Apply(state.ChannelCreated{Channel: state.Channel{ID: "c-new", Name: "general"}})

	if got := len(store.Candidates(state.ScopeNewChannel)); got != 0 {
		t.Errorf("candidates = %d, want 0", got)
	}
	if got := store.DraftName(); got != "" {
		t.Errorf("draft name = %q, want empty", got)
	}
	if got := store.CreateStatus(); got != "" {
		t.Errorf("create status = %q, want empty", got)
	}
	if st := store.Search(state.ScopeNewChannel); st.State != state.SearchHidden {
		t.Errorf("search state = %s, want HIDDEN", st.State)
	}
	if store.SubmitEnabled() {
		t.Error("submit still enabled after form reset")
	}
	if _, ok := store.Channel("c-new"); !ok {
		t.Error("created channel missing from store")
	}
}

func TestStopDetachesReactions(t *testing.T) {
	store := state.New(nil)
	o := New(store, &fakeFetcher{}, bus.New(), zap.NewNop())
	o.Start()
	o.Stop()

	store.Apply(state.SetDraftName{Name: "general"})
	store.Apply(state.AddCandidate{Scope: state.ScopeNewChannel, User: state.User{ID: "u1"}})

	if store.SubmitEnabled() {
		t.Error("reaction ran after Stop")
	}
}
