// Package search turns a stream of keystroke events into at most one live
// user-search query per surface, discarding stale results.
package search

import (
	"context"
	"sync"
	"time"

	"github.com/brunodmt/tether/internal/state"
	"go.uber.org/zap"
)

// DefaultDelay is the debounce window applied when no delay is configured.
const DefaultDelay = time.Second

// UserSearcher is the pull side the coordinator needs.
type UserSearcher interface {
	SearchUsers(ctx context.Context, query string) ([]state.User, error)
}

// Coordinator debounces one search surface. At most one timer is pending
// at a time; a new keystroke cancels the previous timer before scheduling
// its own, and a timer that fires against a changed input aborts without
// dispatching. That comparison against the live value is what prevents an
// older query's results from landing after a newer one's.
type Coordinator struct {
	scope   state.SearchScope
	store   *state.Store
	api     UserSearcher
	delay   time.Duration
	live    func() string
	members func() []state.User
	logger  *zap.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// New creates a coordinator for one search surface. live re-reads the
// surface's current input value at fire time. members returns the existing
// channel membership to exclude from results; nil means no exclusion
// beyond already-selected candidates.
func New(scope state.SearchScope, store *state.Store, api UserSearcher, delay time.Duration,
	live func() string, members func() []state.User, logger *zap.Logger) *Coordinator {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Coordinator{
		scope:   scope,
		store:   store,
		api:     api,
		delay:   delay,
		live:    live,
		members: members,
		logger:  logger,
	}
}

// OnInput handles one keystroke's worth of input. Empty input resets the
// surface to NOT_INITIATED and cancels any pending timer.
func (c *Coordinator) OnInput(value string) {
	c.cancelTimer()

	if value == "" {
		c.store.Apply(state.SetSearchStatus{
			Scope:  c.scope,
			Status: state.SearchStatus{State: state.SearchNotInitiated},
		})
		return
	}

	c.store.Apply(state.SetSearchStatus{
		Scope:  c.scope,
		Status: state.SearchStatus{State: state.SearchSearching},
	})

	captured := value
	t := time.AfterFunc(c.delay, func() { c.fire(captured) })

	c.mu.Lock()
	c.timer = t
	c.mu.Unlock()
}

// Close cancels any pending timer. Safe to call more than once.
func (c *Coordinator) Close() {
	c.cancelTimer()
}

func (c *Coordinator) cancelTimer() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
}

func (c *Coordinator) fire(captured string) {
	// Staleness guard: the user kept typing after this timer was armed, so
	// a newer OnInput call owns the query now.
	if c.live() != captured {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	users, err := c.api.SearchUsers(ctx, captured)
	if err != nil {
		// Status stays as-is; the surface keeps showing SEARCHING rather
		// than flashing an error for a transient pull failure.
		c.logger.Warn("user search failed", zap.String("query", captured), zap.Error(err))
		return
	}

	filtered := c.exclude(users)
	if len(filtered) == 0 {
		c.store.Apply(state.SetSearchStatus{
			Scope:  c.scope,
			Status: state.SearchStatus{State: state.SearchNoUserFound},
		})
		return
	}
	c.store.Apply(state.SetSearchStatus{
		Scope:  c.scope,
		Status: state.SearchStatus{State: state.SearchUserFound, Users: filtered},
	})
}

// exclude drops users already selected as candidates and users already in
// the channel's membership.
func (c *Coordinator) exclude(users []state.User) []state.User {
	skip := make(map[string]bool)
	for _, u := range c.store.Candidates(c.scope) {
		skip[u.ID] = true
	}
	if c.members != nil {
		for _, u := range c.members() {
			skip[u.ID] = true
		}
	}

	var out []state.User
	for _, u := range users {
		if !skip[u.ID] {
			out = append(out, u)
		}
	}
	return out
}
