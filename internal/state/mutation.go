package state

// Kind identifies a mutation for listeners that react by kind.
type Kind string

const (
	KindReplaceChannel     Kind = "replace_channel"
	KindReplaceAllChannels Kind = "replace_all_channels"
	KindAppendMessage      Kind = "append_message"
	KindSetHighlighted     Kind = "set_highlighted"
	KindSetSearchStatus    Kind = "set_search_status"
	KindAddCandidate       Kind = "add_candidate"
	KindRemoveCandidate    Kind = "remove_candidate"
	KindClearCandidates    Kind = "clear_candidates"
	KindSetLoading         Kind = "set_loading"
	KindSetDraftName       Kind = "set_draft_name"
	KindSetSubmitEnabled   Kind = "set_submit_enabled"
	KindSetCreateStatus    Kind = "set_create_status"
	KindChannelCreated     Kind = "channel_created"
)

// Mutation is a pure state transition applied atomically by the store.
type Mutation interface {
	Kind() Kind
	apply(d *data)
}

// ReplaceChannel merges a channel by id: any existing channel with the same
// id is replaced in place, otherwise the channel is appended. Last write
// wins, which is what makes out-of-order pull completions safe.
type ReplaceChannel struct {
	Channel Channel
}

func (ReplaceChannel) Kind() Kind { return KindReplaceChannel }

func (m ReplaceChannel) apply(d *data) {
	for i := range d.channels {
		if d.channels[i].ID == m.Channel.ID {
			d.channels[i] = m.Channel
			return
		}
	}
	d.channels = append(d.channels, m.Channel)
}

// ReplaceAllChannels replaces the whole channel collection (bulk load).
type ReplaceAllChannels struct {
	Channels []Channel
}

func (ReplaceAllChannels) Kind() Kind { return KindReplaceAllChannels }

func (m ReplaceAllChannels) apply(d *data) {
	d.channels = append([]Channel(nil), m.Channels...)
}

// AppendMessage appends a message to its channel. If the channel is not
// known locally, or the channel already holds a message with the same id,
// the write is silently dropped.
type AppendMessage struct {
	Message Message
}

func (AppendMessage) Kind() Kind { return KindAppendMessage }

func (m AppendMessage) apply(d *data) {
	for i := range d.channels {
		c := &d.channels[i]
		if c.ID != m.Message.ChannelID {
			continue
		}
		for _, existing := range c.Messages {
			if existing.ID == m.Message.ID {
				return
			}
		}
		c.Messages = append(c.Messages, m.Message)
		if m.Message.CreatedAt > c.UpdatedAt {
			c.UpdatedAt = m.Message.CreatedAt
		}
		return
	}
}

// SetHighlighted marks the channel the user is currently viewing.
type SetHighlighted struct {
	ChannelID string
}

func (SetHighlighted) Kind() Kind { return KindSetHighlighted }

func (m SetHighlighted) apply(d *data) { d.highlighted = m.ChannelID }

// SetSearchStatus replaces the search status for one scope.
type SetSearchStatus struct {
	Scope  SearchScope
	Status SearchStatus
}

func (SetSearchStatus) Kind() Kind { return KindSetSearchStatus }

func (m SetSearchStatus) apply(d *data) { d.searches[m.Scope] = m.Status }

// AddCandidate adds a user to a scope's selection set. Duplicate ids are
// dropped so the set invariant holds.
type AddCandidate struct {
	Scope SearchScope
	User  User
}

func (AddCandidate) Kind() Kind { return KindAddCandidate }

func (m AddCandidate) apply(d *data) {
	for _, u := range d.candidates[m.Scope] {
		if u.ID == m.User.ID {
			return
		}
	}
	d.candidates[m.Scope] = append(d.candidates[m.Scope], m.User)
}

// RemoveCandidate removes a user from a scope's selection set by id.
type RemoveCandidate struct {
	Scope  SearchScope
	UserID string
}

func (RemoveCandidate) Kind() Kind { return KindRemoveCandidate }

func (m RemoveCandidate) apply(d *data) {
	cands := d.candidates[m.Scope]
	for i, u := range cands {
		if u.ID == m.UserID {
			d.candidates[m.Scope] = append(cands[:i:i], cands[i+1:]...)
			return
		}
	}
}

// ClearCandidates empties a scope's selection set.
type ClearCandidates struct {
	Scope SearchScope
}

func (ClearCandidates) Kind() Kind { return KindClearCandidates }

func (m ClearCandidates) apply(d *data) { delete(d.candidates, m.Scope) }

// SetLoading flips a named loading flag.
type SetLoading struct {
	Flag string
	On   bool
}

func (SetLoading) Kind() Kind { return KindSetLoading }

func (m SetLoading) apply(d *data) {
	if m.On {
		d.loading[m.Flag] = true
	} else {
		delete(d.loading, m.Flag)
	}
}

// SetDraftName stores the channel-name field of the create form.
type SetDraftName struct {
	Name string
}

func (SetDraftName) Kind() Kind { return KindSetDraftName }

func (m SetDraftName) apply(d *data) { d.draftName = m.Name }

// SetSubmitEnabled writes the derived create-form submit flag.
type SetSubmitEnabled struct {
	Enabled bool
}

func (SetSubmitEnabled) Kind() Kind { return KindSetSubmitEnabled }

func (m SetSubmitEnabled) apply(d *data) { d.submitEnabled = m.Enabled }

// SetCreateStatus sets the user-visible channel-creation status message.
type SetCreateStatus struct {
	Message string
}

func (SetCreateStatus) Kind() Kind { return KindSetCreateStatus }

func (m SetCreateStatus) apply(d *data) { d.createStatus = m.Message }

// ChannelCreated commits a confirmed, freshly provisioned channel. The new
// channel is prepended so it surfaces at the top of the list; merge-by-id
// still holds if the server already pushed it.
type ChannelCreated struct {
	Channel Channel
}

func (ChannelCreated) Kind() Kind { return KindChannelCreated }

func (m ChannelCreated) apply(d *data) {
	for i := range d.channels {
		if d.channels[i].ID == m.Channel.ID {
			d.channels[i] = m.Channel
			return
		}
	}
	d.channels = append([]Channel{m.Channel}, d.channels...)
}
