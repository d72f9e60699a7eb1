// Package outbound implements the local send path: the user's message is
// committed to the store optimistically and pushed to the server
// fire-and-forget, with no delivery guarantee.
package outbound

import (
	"time"

	"github.com/brunodmt/tether/internal/state"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessagePusher pushes an outbound chat message over the push transport.
type MessagePusher interface {
	SendChatMessage(msg state.Message)
}

// Sender builds and dispatches outbound messages for the current user.
type Sender struct {
	store  *state.Store
	conn   MessagePusher
	me     state.User
	logger *zap.Logger
}

// NewSender creates a sender bound to the authenticated user.
func NewSender(store *state.Store, conn MessagePusher, me state.User, logger *zap.Logger) *Sender {
	return &Sender{
		store:  store,
		conn:   conn,
		me:     me,
		logger: logger,
	}
}

// Send commits the message locally, then pushes it. The optimistic commit
// makes the message visible immediately; if the channel is unknown the
// store drops the append and nothing is pushed.
func (s *Sender) Send(channelID, content string) {
	if content == "" {
		return
	}
	if _, ok := s.store.Channel(channelID); !ok {
		s.logger.Warn("send to unknown channel dropped", zap.String("channel_id", channelID))
		return
	}

	now := time.Now().UnixMilli()
	msg := state.Message{
		ID:        uuid.New().String(),
		ChannelID: channelID,
		Sender:    s.me,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.store.Apply(state.AppendMessage{Message: msg})
	s.conn.SendChatMessage(msg)
}
