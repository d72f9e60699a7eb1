package state

// User is a member or search-result stub.
type User struct {
	ID          string
	Username    string
	DisplayName string
}

// Message is an immutable chat message. Edits are not supported; a message
// is created once, either by a local optimistic send or by an inbound push
// event, and never mutated.
type Message struct {
	ID        string
	ChannelID string
	Sender    User
	Content   string
	CreatedAt int64
	UpdatedAt int64
}

// Channel is a synced channel with its membership and message history.
type Channel struct {
	ID        string
	Name      string
	Users     []User
	Messages  []Message
	CreatedAt int64
	UpdatedAt int64
}

// SearchScope identifies an independent search surface. Each scope carries
// its own SearchStatus and candidate set.
type SearchScope string

const (
	ScopeNewChannel SearchScope = "new_channel"
	ScopeAddMember  SearchScope = "add_member"
)

// SearchState is the tag of a SearchStatus variant.
type SearchState string

const (
	SearchNotInitiated SearchState = "NOT_INITIATED"
	SearchSearching    SearchState = "SEARCHING"
	SearchUserFound    SearchState = "USER_FOUND"
	SearchNoUserFound  SearchState = "NO_USER_FOUND"
	SearchDone         SearchState = "DONE"
	SearchHidden       SearchState = "HIDDEN"
	SearchError        SearchState = "ERROR"
)

// SearchStatus is a tagged variant: Users is populated only for
// USER_FOUND, Detail only for ERROR.
type SearchStatus struct {
	State  SearchState
	Users  []User
	Detail string
}
