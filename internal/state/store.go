package state

import (
	"sort"
	"sync"
	"time"

	"github.com/brunodmt/tether/internal/bus"
)

// Listener observes committed mutations. Listeners run synchronously, in
// subscription order, after each commit; a listener may apply follow-up
// mutations, which commit (and notify) before the outer Apply returns.
type Listener func(m Mutation)

type data struct {
	channels      []Channel
	highlighted   string
	searches      map[SearchScope]SearchStatus
	candidates    map[SearchScope][]User
	loading       map[string]bool
	draftName     string
	submitEnabled bool
	createStatus  string
}

// Store is the in-memory, observable, normalized view of channels,
// messages, search status and ui flags. It is the only shared mutable
// resource; every durable mutation in the process goes through Apply.
type Store struct {
	mu        sync.RWMutex
	d         data
	listeners map[int]Listener
	order     []int
	next      int
	bus       *bus.Bus
}

// New creates an empty store. The bus is optional; when present the store
// publishes coarse state.* change events after commits so async consumers
// (the cache writer) can follow along without registering a listener.
func New(b *bus.Bus) *Store {
	return &Store{
		d: data{
			searches:   make(map[SearchScope]SearchStatus),
			candidates: make(map[SearchScope][]User),
			loading:    make(map[string]bool),
		},
		listeners: make(map[int]Listener),
		bus:       b,
	}
}

// Apply commits a mutation and then invokes listeners in subscription
// order. The commit itself holds the lock; listeners run outside it so
// they can issue follow-up Applies.
func (s *Store) Apply(m Mutation) {
	s.mu.Lock()
	m.apply(&s.d)
	ls := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		if l, ok := s.listeners[id]; ok {
			ls = append(ls, l)
		}
	}
	s.mu.Unlock()

	for _, l := range ls {
		l(m)
	}
	s.publish(m)
}

// Subscribe registers a listener. Returns an unsubscribe function.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.listeners[id] = l
	s.order = append(s.order, id)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) publish(m Mutation) {
	if s.bus == nil {
		return
	}
	switch m.Kind() {
	case KindReplaceChannel, KindReplaceAllChannels, KindChannelCreated:
		s.bus.Publish(bus.Event{Kind: bus.KindStateChannels, Timestamp: time.Now(), Payload: m.Kind()})
	case KindAppendMessage:
		s.bus.Publish(bus.Event{Kind: bus.KindStateMessages, Timestamp: time.Now(), Payload: m.Kind()})
	}
}

// Channels returns a copy of the channel collection in store order.
func (s *Store) Channels() []Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Channel(nil), s.d.channels...)
}

// Channel returns one channel by id.
func (s *Store) Channel(id string) (Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.d.channels {
		if c.ID == id {
			return c, true
		}
	}
	return Channel{}, false
}

// ChannelMessages returns a channel's messages ordered newest first.
// The sort is stable so same-timestamp messages keep arrival order.
func (s *Store) ChannelMessages(id string) []Message {
	c, ok := s.Channel(id)
	if !ok {
		return nil
	}
	msgs := append([]Message(nil), c.Messages...)
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt > msgs[j].CreatedAt
	})
	return msgs
}

// Highlighted returns the id of the channel the user is viewing.
func (s *Store) Highlighted() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.highlighted
}

// Search returns the search status for a scope. A scope that was never
// touched reads as NOT_INITIATED.
func (s *Store) Search(scope SearchScope) SearchStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.d.searches[scope]; ok {
		return st
	}
	return SearchStatus{State: SearchNotInitiated}
}

// Candidates returns a copy of a scope's selection set.
func (s *Store) Candidates(scope SearchScope) []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]User(nil), s.d.candidates[scope]...)
}

// Loading reports a named loading flag.
func (s *Store) Loading(flag string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.loading[flag]
}

// DraftName returns the create-form channel name field.
func (s *Store) DraftName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.draftName
}

// SubmitEnabled returns the derived create-form submit flag.
func (s *Store) SubmitEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.submitEnabled
}

// CreateStatus returns the user-visible channel-creation status message.
func (s *Store) CreateStatus() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.createStatus
}
