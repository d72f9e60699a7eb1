package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("push.", 8)
	defer unsub()

	b.Publish(Event{Kind: KindPushMessage, Timestamp: time.Now(), Payload: "hello"})

	select {
	case evt := <-ch:
		if evt.Kind != KindPushMessage {
			t.Errorf("kind = %s, want %s", evt.Kind, KindPushMessage)
		}
		if evt.Payload != "hello" {
			t.Errorf("payload = %v, want hello", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	pushCh, unsub1 := b.Subscribe("push.", 8)
	defer unsub1()
	connCh, unsub2 := b.Subscribe("conn.", 8)
	defer unsub2()

	b.Publish(Event{Kind: KindPushDisconnect})
	b.Publish(Event{Kind: KindConnStatusChanged})

	select {
	case evt := <-pushCh:
		if evt.Kind != KindPushDisconnect {
			t.Errorf("push subscriber got %s", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("push subscriber got nothing")
	}
	select {
	case evt := <-connCh:
		if evt.Kind != KindConnStatusChanged {
			t.Errorf("conn subscriber got %s", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("conn subscriber got nothing")
	}

	select {
	case evt := <-pushCh:
		t.Errorf("push subscriber got extra event %s", evt.Kind)
	default:
	}
}

func TestEmptyNamespaceMatchesAll(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 8)
	defer unsub()

	b.Publish(Event{Kind: KindPushMessage})
	b.Publish(Event{Kind: KindStateChannels})

	for i := 0; i < 2; i++ {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("got %d events, want 2", i)
		}
	}
}

func TestFullSubscriberDropsEvents(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("push.", 1)
	defer unsub()

	b.Publish(Event{Kind: KindPushMessage, Payload: 1})
	b.Publish(Event{Kind: KindPushMessage, Payload: 2})

	select {
	case evt := <-ch:
		if evt.Payload != 1 {
			t.Errorf("payload = %v, want 1", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for first event")
	}
	select {
	case evt := <-ch:
		t.Errorf("second event not dropped: %v", evt.Payload)
	default:
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("push.", 8)

	unsub()
	b.Publish(Event{Kind: KindPushMessage})

	select {
	case evt := <-ch:
		t.Errorf("received %s after unsubscribe", evt.Kind)
	default:
	}
}
