// Package orchestrate reacts to committed store mutations with derived
// mutations and one-way ui notifications. The reaction set is an explicit
// table keyed by mutation kind, so every side effect in the system is
// enumerable from the table literal below.
package orchestrate

import (
	"context"
	"time"

	"github.com/brunodmt/tether/internal/bus"
	"github.com/brunodmt/tether/internal/state"
	"go.uber.org/zap"
)

// MessageFetcher pulls a channel's full detail including history.
type MessageFetcher interface {
	ChannelDetail(ctx context.Context, id string) (state.Channel, error)
}

// MinChannelNameLen is the shortest channel name that enables the create
// form's submit action.
const MinChannelNameLen = 5

// Orchestrator subscribes synchronously to the store and runs its reaction
// table after each commit. Reactions never propagate errors into the
// mutation that triggered them; any pull request they issue is
// log-and-drop.
type Orchestrator struct {
	store  *state.Store
	api    MessageFetcher
	bus    *bus.Bus
	logger *zap.Logger

	reactions map[state.Kind]func(state.Mutation)
	unsub     func()
}

// New creates an orchestrator. Call Start to attach it to the store.
func New(store *state.Store, api MessageFetcher, b *bus.Bus, logger *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		store:  store,
		api:    api,
		bus:    b,
		logger: logger,
	}
	o.reactions = map[state.Kind]func(state.Mutation){
		state.KindReplaceAllChannels: o.autoOpenLatest,
		state.KindAppendMessage:      o.signalScroll,
		state.KindSetHighlighted:     o.signalScroll,
		state.KindAddCandidate:       o.recomputeSubmit,
		state.KindRemoveCandidate:    o.recomputeSubmit,
		state.KindClearCandidates:    o.recomputeSubmit,
		state.KindSetDraftName:       o.recomputeSubmit,
		state.KindChannelCreated:     o.cleanupAfterCreate,
	}
	return o
}

// Start subscribes the reaction table to the store.
func (o *Orchestrator) Start() {
	o.unsub = o.store.Subscribe(o.react)
}

// Stop detaches from the store.
func (o *Orchestrator) Stop() {
	if o.unsub != nil {
		o.unsub()
	}
}

func (o *Orchestrator) react(m state.Mutation) {
	if fn, ok := o.reactions[m.Kind()]; ok {
		fn(m)
	}
}

// autoOpenLatest runs after a bulk channel load: highlight the most
// recently updated channel and fetch its message history, seeding a
// default open channel without a user click. Ties keep input order
// because the scan uses a strict greater-than.
func (o *Orchestrator) autoOpenLatest(m state.Mutation) {
	bulk, ok := m.(state.ReplaceAllChannels)
	if !ok || len(bulk.Channels) == 0 {
		return
	}

	latest := bulk.Channels[0]
	for _, c := range bulk.Channels[1:] {
		if c.UpdatedAt > latest.UpdatedAt {
			latest = c
		}
	}

	o.store.Apply(state.SetHighlighted{ChannelID: latest.ID})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		ch, err := o.api.ChannelDetail(ctx, latest.ID)
		if err != nil {
			o.logger.Warn("auto-open history fetch failed",
				zap.String("channel_id", latest.ID), zap.Error(err))
			return
		}
		o.store.Apply(state.ReplaceChannel{Channel: ch})
	}()
}

// signalScroll tells the presentation layer to scroll to the latest
// message. One-way notification, not a store mutation.
func (o *Orchestrator) signalScroll(state.Mutation) {
	o.bus.Publish(bus.Event{
		Kind:      bus.KindUIScrollLatest,
		Timestamp: time.Now(),
		Payload:   o.store.Highlighted(),
	})
}

// recomputeSubmit derives the create-form submit flag: name long enough
// and at least one candidate selected. Re-applying with identical inputs
// writes nothing, so the derivation cannot flicker.
func (o *Orchestrator) recomputeSubmit(state.Mutation) {
	enabled := len(o.store.DraftName()) >= MinChannelNameLen &&
		len(o.store.Candidates(state.ScopeNewChannel)) > 0
	if enabled != o.store.SubmitEnabled() {
		o.store.Apply(state.SetSubmitEnabled{Enabled: enabled})
	}
}

// cleanupAfterCreate resets the create form once a channel creation is
// confirmed: candidates, draft name and status message all clear. The
// channel itself was already prepended by the triggering mutation.
func (o *Orchestrator) cleanupAfterCreate(state.Mutation) {
	o.store.Apply(state.ClearCandidates{Scope: state.ScopeNewChannel})
	o.store.Apply(state.SetDraftName{})
	o.store.Apply(state.SetCreateStatus{})
	o.store.Apply(state.SetSearchStatus{
		Scope:  state.ScopeNewChannel,
		Status: state.SearchStatus{State: state.SearchHidden},
	})
}
