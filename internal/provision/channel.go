package provision

import (
	"context"
	"fmt"

	"github.com/brunodmt/tether/internal/state"
	"go.uber.org/zap"
)

// Loading flag names used by the provisioning flows.
const (
	FlagCreateChannel = "create_channel"
	FlagAddMembers    = "add_members"
)

// API is the pull side channel provisioning needs.
type API interface {
	CreateChannel(ctx context.Context, name string, memberIDs []string) (string, error)
	GetChannel(ctx context.Context, id string) (state.Channel, error)
	AddMembers(ctx context.Context, channelID string, userIDs []string) ([]string, error)
}

// Announcer notifies the server, over the push channel, that this client
// joined a room. Fire-and-forget.
type Announcer interface {
	AnnounceJoin(channelID string)
}

// ChannelProvisioner runs the create-channel and add-member use cases:
// submit the request, poll until the server-side provisioning is
// observable, then commit the confirmed resource to the store.
type ChannelProvisioner struct {
	store    *state.Store
	api      API
	confirm  *Coordinator
	announce Announcer
	logger   *zap.Logger
}

// NewChannelProvisioner creates a provisioner.
func NewChannelProvisioner(store *state.Store, api API, confirm *Coordinator, announce Announcer, logger *zap.Logger) *ChannelProvisioner {
	return &ChannelProvisioner{
		store:    store,
		api:      api,
		confirm:  confirm,
		announce: announce,
		logger:   logger,
	}
}

// Create submits a new channel from the create form's draft name and
// candidate set, confirms provisioning, commits the channel and announces
// the join. Every failure ends as a user-visible status message; nothing
// escapes as an error to the caller.
func (p *ChannelProvisioner) Create(ctx context.Context) {
	name := p.store.DraftName()
	candidates := p.store.Candidates(state.ScopeNewChannel)
	if !p.store.SubmitEnabled() {
		return
	}

	memberIDs := make([]string, 0, len(candidates))
	for _, u := range candidates {
		memberIDs = append(memberIDs, u.ID)
	}

	p.store.Apply(state.SetLoading{Flag: FlagCreateChannel, On: true})
	defer p.store.Apply(state.SetLoading{Flag: FlagCreateChannel})
	p.store.Apply(state.SetCreateStatus{Message: "Creating channel..."})

	id, err := p.api.CreateChannel(ctx, name, memberIDs)
	if err != nil {
		p.logger.Warn("create channel request failed", zap.String("name", name), zap.Error(err))
		p.store.Apply(state.SetCreateStatus{Message: "Could not create the channel. Try again."})
		return
	}

	ch, err := p.confirm.Confirm(ctx, id, p.api.GetChannel)
	if err != nil {
		p.logger.Warn("create channel confirmation failed", zap.String("channel_id", id), zap.Error(err))
		p.store.Apply(state.SetCreateStatus{Message: "Channel creation could not be confirmed yet. It may appear shortly."})
		return
	}

	// Committing ChannelCreated triggers the orchestrator's cleanup
	// reactions (candidates, draft name, status message).
	p.store.Apply(state.ChannelCreated{Channel: ch})
	p.announce.AnnounceJoin(ch.ID)
	p.logger.Info("channel created", zap.String("channel_id", ch.ID), zap.String("name", ch.Name))
}

// AddMembers submits the add-member candidate set for a channel and polls
// until the new membership is visible on the server.
func (p *ChannelProvisioner) AddMembers(ctx context.Context, channelID string) {
	candidates := p.store.Candidates(state.ScopeAddMember)
	if len(candidates) == 0 {
		return
	}

	userIDs := make([]string, 0, len(candidates))
	for _, u := range candidates {
		userIDs = append(userIDs, u.ID)
	}

	p.store.Apply(state.SetLoading{Flag: FlagAddMembers, On: true})
	defer p.store.Apply(state.SetLoading{Flag: FlagAddMembers})

	added, err := p.api.AddMembers(ctx, channelID, userIDs)
	if err != nil {
		p.logger.Warn("add members request failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}

	ch, err := p.confirm.Confirm(ctx, channelID, p.membershipFetch(added))
	if err != nil {
		p.logger.Warn("membership confirmation failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}

	p.store.Apply(state.ReplaceChannel{Channel: ch})
	p.store.Apply(state.ClearCandidates{Scope: state.ScopeAddMember})
	p.store.Apply(state.SetSearchStatus{
		Scope:  state.ScopeAddMember,
		Status: state.SearchStatus{State: state.SearchDone},
	})
}

// membershipFetch wraps GetChannel so an attempt only succeeds once every
// added user shows up in the channel's membership.
func (p *ChannelProvisioner) membershipFetch(added []string) FetchFunc {
	return func(ctx context.Context, id string) (state.Channel, error) {
		ch, err := p.api.GetChannel(ctx, id)
		if err != nil {
			return state.Channel{}, err
		}
		present := make(map[string]bool, len(ch.Users))
		for _, u := range ch.Users {
			present[u.ID] = true
		}
		for _, uid := range added {
			if !present[uid] {
				return state.Channel{}, fmt.Errorf("user %s not yet a member", uid)
			}
		}
		return ch, nil
	}
}
