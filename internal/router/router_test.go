package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brunodmt/tether/internal/bus"
	"github.com/brunodmt/tether/internal/state"
	"go.uber.org/zap"
)

const (
	chanID  = "f1d2d2f9-24f9-43a1-8a6c-0f8b1a2c3d4e"
	msgID   = "7b7e9a36-6c4e-4f0a-9a6e-1f2d3c4b5a69"
	otherID = "0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []string
	channel state.Channel
	err     error
}

func (f *fakeFetcher) ChannelDetail(_ context.Context, id string) (state.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if f.err != nil {
		return state.Channel{}, f.err
	}
	return f.channel, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSink struct {
	mu      sync.Mutex
	reasons []string
}

func (f *fakeSink) NoteDisconnectReason(reason string) {
	f.mu.Lock()
	f.reasons = append(f.reasons, reason)
	f.mu.Unlock()
}

func (f *fakeSink) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reasons) == 0 {
		return ""
	}
	return f.reasons[len(f.reasons)-1]
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

func startRouter(t *testing.T, store *state.Store, fetcher *fakeFetcher, sink *fakeSink) *bus.Bus {
	t.Helper()
	b := bus.New()
	r := New(store, fetcher, sink, b, zap.NewNop())
	r.Start(context.Background())
	t.Cleanup(r.Stop)
	return b
}

func TestInboundMessageAppended(t *testing.T) {
	store := state.New(nil)
	store.Apply(state.ReplaceChannel{Channel: state.Channel{ID: chanID, Name: "general"}})
	b := startRouter(t, store, &fakeFetcher{}, &fakeSink{})

	payload := `{"id": "` + msgID + `", "channelId": "` + chanID + `",
		"sender": {"id": "u1", "username": "ada"}, "content": "hi", "createdAt": 100}`
	b.Publish(bus.Event{Kind: bus.KindPushMessage, Timestamp: time.Now(), Payload: []byte(payload)})

	waitFor(t, "message append", func() bool {
		return len(store.ChannelMessages(chanID)) == 1
	})
	msgs := store.ChannelMessages(chanID)
	if msgs[0].ID != msgID || msgs[0].Content != "hi" {
		t.Errorf("message = %+v", msgs[0])
	}
}

func TestMalformedMessageDropped(t *testing.T) {
	store := state.New(nil)
	store.Apply(state.ReplaceChannel{Channel: state.Channel{ID: chanID}})
	b := startRouter(t, store, &fakeFetcher{}, &fakeSink{})

	b.Publish(bus.Event{Kind: bus.KindPushMessage, Payload: []byte(`{"id": "nope"}`)})

	time.Sleep(50 * time.Millisecond)
	if got := len(store.ChannelMessages(chanID)); got != 0 {
		t.Errorf("got %d messages, want 0 (malformed payload dropped)", got)
	}
}

// TestMessageForUnknownChannelIsLost covers the pre-existence scenario: a
// message for a channel the store has not loaded yet is dropped, and a
// later load of that channel does not resurrect it.
func TestMessageForUnknownChannelIsLost(t *testing.T) {
	store := state.New(nil)
	fetcher := &fakeFetcher{channel: state.Channel{ID: chanID, Name: "late"}}
	b := startRouter(t, store, fetcher, &fakeSink{})

	payload := `{"id": "` + msgID + `", "channelId": "` + chanID + `",
		"sender": {"id": "u1", "username": "ada"}, "content": "early", "createdAt": 100}`
	b.Publish(bus.Event{Kind: bus.KindPushMessage, Payload: []byte(payload)})

	time.Sleep(50 * time.Millisecond)
	if got := len(store.Channels()); got != 0 {
		t.Fatalf("store size = %d, want 0", got)
	}

	// Channel arrives afterwards via a joined-room pull.
	b.Publish(bus.Event{Kind: bus.KindPushJoinedRoom, Payload: []byte(`{"channelId": "` + chanID + `"}`)})
	waitFor(t, "channel load", func() bool {
		_, ok := store.Channel(chanID)
		return ok
	})

	if got := len(store.ChannelMessages(chanID)); got != 0 {
		t.Errorf("got %d messages, want 0 (dropped message must not reappear)", got)
	}
}

func TestJoinedRoomFetchesDetail(t *testing.T) {
	store := state.New(nil)
	fetcher := &fakeFetcher{channel: state.Channel{
		ID:       chanID,
		Name:     "project",
		Messages: []state.Message{{ID: msgID, ChannelID: chanID, Content: "history"}},
	}}
	b := startRouter(t, store, fetcher, &fakeSink{})

	b.Publish(bus.Event{Kind: bus.KindPushJoinedRoom, Payload: []byte(`{"channelId": "` + chanID + `"}`)})

	waitFor(t, "channel replace", func() bool {
		ch, ok := store.Channel(chanID)
		return ok && len(ch.Messages) == 1
	})
	if fetcher.callCount() != 1 {
		t.Errorf("fetch calls = %d, want 1", fetcher.callCount())
	}
}

func TestJoinedRoomMalformedIDDropped(t *testing.T) {
	store := state.New(nil)
	fetcher := &fakeFetcher{}
	b := startRouter(t, store, fetcher, &fakeSink{})

	b.Publish(bus.Event{Kind: bus.KindPushJoinedRoom, Payload: []byte(`{"channelId": "not-a-uuid"}`)})

	time.Sleep(50 * time.Millisecond)
	if fetcher.callCount() != 0 {
		t.Errorf("fetch calls = %d, want 0 (no pull for malformed id)", fetcher.callCount())
	}
}

func TestJoinedRoomFetchFailureNoRetry(t *testing.T) {
	store := state.New(nil)
	fetcher := &fakeFetcher{err: errors.New("boom")}
	b := startRouter(t, store, fetcher, &fakeSink{})

	b.Publish(bus.Event{Kind: bus.KindPushJoinedRoom, Payload: []byte(`{"channelId": "` + chanID + `"}`)})

	waitFor(t, "fetch attempt", func() bool { return fetcher.callCount() == 1 })
	time.Sleep(50 * time.Millisecond)
	if fetcher.callCount() != 1 {
		t.Errorf("fetch calls = %d, want 1 (no retry)", fetcher.callCount())
	}
	if got := len(store.Channels()); got != 0 {
		t.Errorf("store size = %d, want 0", got)
	}
}

func TestDisconnectForwardedToConnectionManager(t *testing.T) {
	store := state.New(nil)
	sink := &fakeSink{}
	b := startRouter(t, store, &fakeFetcher{}, sink)

	b.Publish(bus.Event{Kind: bus.KindPushDisconnect, Payload: []byte(`{"reason": "server restart"}`)})

	waitFor(t, "disconnect forward", func() bool { return sink.last() == "server restart" })
	if got := len(store.Channels()); got != 0 {
		t.Errorf("store mutated on disconnect event")
	}
}

func TestDecodeReasonShapes(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"gone"`, "gone"},
		{`{"reason": "kicked"}`, "kicked"},
		{`plain`, "plain"},
	}
	for _, tt := range tests {
		if got := decodeReason([]byte(tt.raw)); got != tt.want {
			t.Errorf("decodeReason(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

// TestOutOfOrderCompletionMergesByID verifies that a slow detail fetch
// landing after a newer replace does not duplicate the channel.
func TestOutOfOrderCompletionMergesByID(t *testing.T) {
	store := state.New(nil)
	fetcher := &fakeFetcher{channel: state.Channel{ID: otherID, Name: "stale"}}
	b := startRouter(t, store, fetcher, &fakeSink{})

	// A direct mutation commits first, as a later event's handler would.
	store.Apply(state.ReplaceChannel{Channel: state.Channel{ID: otherID, Name: "fresh"}})

	b.Publish(bus.Event{Kind: bus.KindPushJoinedRoom, Payload: []byte(`{"channelId": "` + otherID + `"}`)})
	waitFor(t, "stale fetch merge", func() bool {
		ch, ok := store.Channel(otherID)
		return ok && ch.Name == "stale"
	})

	if got := len(store.Channels()); got != 1 {
		t.Errorf("store size = %d, want 1 (merge-by-id)", got)
	}
}
