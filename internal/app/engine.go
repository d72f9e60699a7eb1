package app

import (
	"context"
	"errors"
	"sync"

	"github.com/brunodmt/tether/internal/outbound"
	"github.com/brunodmt/tether/internal/provision"
	"github.com/brunodmt/tether/internal/push"
	"github.com/brunodmt/tether/internal/rest"
	"github.com/brunodmt/tether/internal/search"
	"github.com/brunodmt/tether/internal/state"
	"go.uber.org/zap"
)

// LiveInput tracks the current contents of one input field. The debounce
// coordinator re-reads it when a timer fires, which is what lets it detect
// that the user kept typing after the timer was armed.
type LiveInput struct {
	mu    sync.Mutex
	value string
}

// Set records the field's current value.
func (i *LiveInput) Set(v string) {
	i.mu.Lock()
	i.value = v
	i.mu.Unlock()
}

// Get returns the field's current value.
func (i *LiveInput) Get() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.value
}

// Engine is the in-process API a frontend drives. It owns the two search
// surfaces, the provisioning flows and the outbound send path; all durable
// state lives in the store.
type Engine struct {
	store       *state.Store
	api         *rest.Client
	conn        *push.Manager
	provisioner *provision.ChannelProvisioner
	logger      *zap.Logger

	newChannelInput *LiveInput
	addMemberInput  *LiveInput
	newChannel      *search.Coordinator
	addMember       *search.Coordinator

	mu     sync.Mutex
	sender *outbound.Sender
}

// NewEngine wires the per-surface search coordinators around the shared
// store and pull client.
func NewEngine(store *state.Store, api *rest.Client, conn *push.Manager,
	provisioner *provision.ChannelProvisioner, debounce searchDelay, logger *zap.Logger) *Engine {

	e := &Engine{
		store:           store,
		api:             api,
		conn:            conn,
		provisioner:     provisioner,
		logger:          logger,
		newChannelInput: &LiveInput{},
		addMemberInput:  &LiveInput{},
	}

	e.newChannel = search.New(state.ScopeNewChannel, store, api, debounce.delay,
		e.newChannelInput.Get, nil, logger)
	e.addMember = search.New(state.ScopeAddMember, store, api, debounce.delay,
		e.addMemberInput.Get, e.highlightedMembers, logger)
	return e
}

// highlightedMembers returns the membership of the channel currently open,
// so the add-member search never offers existing members.
func (e *Engine) highlightedMembers() []state.User {
	ch, ok := e.store.Channel(e.store.Highlighted())
	if !ok {
		return nil
	}
	return ch.Users
}

// Bootstrap resolves the current user and performs the initial bulk
// channel load. A 401 is reported with its redirect location; it is not a
// failure of the engine.
func (e *Engine) Bootstrap(ctx context.Context) error {
	me, err := e.api.CurrentUser(ctx)
	if err != nil {
		var auth *rest.AuthRequired
		if errors.As(err, &auth) {
			e.logger.Warn("authentication required", zap.String("location", auth.Location))
			return err
		}
		return err
	}

	e.mu.Lock()
	e.sender = outbound.NewSender(e.store, e.conn, state.User{
		ID:          me.ID,
		Username:    me.Username,
		DisplayName: me.DisplayName,
	}, e.logger)
	e.mu.Unlock()

	channels, err := e.api.ListChannels(ctx)
	if err != nil {
		return err
	}
	e.store.Apply(state.ReplaceAllChannels{Channels: channels})
	e.logger.Info("initial channel load complete", zap.Int("channels", len(channels)))
	return nil
}

// OnNewChannelSearchInput feeds a keystroke to the new-channel surface.
func (e *Engine) OnNewChannelSearchInput(value string) {
	e.newChannelInput.Set(value)
	e.newChannel.OnInput(value)
}

// OnAddMemberSearchInput feeds a keystroke to the add-member surface.
func (e *Engine) OnAddMemberSearchInput(value string) {
	e.addMemberInput.Set(value)
	e.addMember.OnInput(value)
}

// SetDraftName records the create form's channel name.
func (e *Engine) SetDraftName(name string) {
	e.store.Apply(state.SetDraftName{Name: name})
}

// SelectCandidate adds a search result to a scope's selection set.
func (e *Engine) SelectCandidate(scope state.SearchScope, u state.User) {
	e.store.Apply(state.AddCandidate{Scope: scope, User: u})
}

// DeselectCandidate removes a user from a scope's selection set.
func (e *Engine) DeselectCandidate(scope state.SearchScope, userID string) {
	e.store.Apply(state.RemoveCandidate{Scope: scope, UserID: userID})
}

// CloseSearch hides a surface and resets its candidates, as when the user
// dismisses the modal.
func (e *Engine) CloseSearch(scope state.SearchScope) {
	e.store.Apply(state.SetSearchStatus{
		Scope:  scope,
		Status: state.SearchStatus{State: state.SearchHidden},
	})
	e.store.Apply(state.ClearCandidates{Scope: scope})
}

// Highlight opens a channel.
func (e *Engine) Highlight(channelID string) {
	e.store.Apply(state.SetHighlighted{ChannelID: channelID})
}

// CreateChannel runs the create-channel flow with the current draft.
func (e *Engine) CreateChannel(ctx context.Context) {
	e.provisioner.Create(ctx)
}

// AddMembers runs the add-member flow against the highlighted channel.
func (e *Engine) AddMembers(ctx context.Context) {
	e.provisioner.AddMembers(ctx, e.store.Highlighted())
}

// SendMessage sends to the highlighted channel, optimistic and
// fire-and-forget. A send before Bootstrap completes is dropped.
func (e *Engine) SendMessage(content string) {
	e.mu.Lock()
	sender := e.sender
	e.mu.Unlock()
	if sender == nil {
		e.logger.Warn("send before bootstrap dropped")
		return
	}
	sender.Send(e.store.Highlighted(), content)
}

// Close cancels any pending debounce timers.
func (e *Engine) Close() {
	e.newChannel.Close()
	e.addMember.Close()
}
