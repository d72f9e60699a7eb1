// Package router maps inbound push events to store mutations and
// follow-up pull requests. It subscribes to push.* events on the bus and
// processes them one at a time, so two inbound events are never handled
// concurrently; pull requests it triggers complete asynchronously and rely
// on the store's merge-by-id semantics.
package router

import (
	"context"
	"encoding/json"
	"time"

	"github.com/brunodmt/tether/internal/bus"
	"github.com/brunodmt/tether/internal/state"
	"github.com/brunodmt/tether/internal/validate"
	"go.uber.org/zap"
)

// ChannelFetcher is the pull side the router needs: full channel detail
// with message history.
type ChannelFetcher interface {
	ChannelDetail(ctx context.Context, id string) (state.Channel, error)
}

// DisconnectSink receives server-announced disconnect reasons.
type DisconnectSink interface {
	NoteDisconnectReason(reason string)
}

// Router consumes inbound push events and writes the store.
type Router struct {
	store  *state.Store
	api    ChannelFetcher
	conn   DisconnectSink
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// New creates a router.
func New(store *state.Store, api ChannelFetcher, conn DisconnectSink, b *bus.Bus, logger *zap.Logger) *Router {
	return &Router{
		store:  store,
		api:    api,
		conn:   conn,
		bus:    b,
		logger: logger,
	}
}

// Start subscribes to inbound push events on the bus.
func (r *Router) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	ch, unsub := r.bus.Subscribe("push.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				r.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the router.
func (r *Router) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Router) handleEvent(ctx context.Context, evt bus.Event) {
	raw, ok := evt.Payload.([]byte)
	if !ok {
		return
	}
	switch evt.Kind {
	case bus.KindPushMessage:
		r.handleChatMessage(raw)
	case bus.KindPushJoinedRoom:
		r.handleJoinedRoom(ctx, raw)
	case bus.KindPushDisconnect:
		r.handleDisconnect(raw)
	}
}

// handleChatMessage validates and appends an inbound message. A message
// for a channel the store does not know is dropped by the append mutation;
// it is not buffered for replay.
func (r *Router) handleChatMessage(raw []byte) {
	msg, err := validate.Message(raw)
	if err != nil {
		r.logger.Warn("dropping malformed chat message", zap.Error(err))
		return
	}
	r.store.Apply(state.AppendMessage{Message: msg})
}

// handleJoinedRoom pulls the full channel detail for a room the user was
// just added to. The fetch runs async; its completion may land after later
// events' mutations, which merge-by-id tolerates. Failures are logged and
// dropped, never retried.
func (r *Router) handleJoinedRoom(ctx context.Context, raw []byte) {
	channelID, err := validate.JoinedRoom(raw)
	if err != nil {
		r.logger.Warn("dropping malformed joined-room event", zap.Error(err))
		return
	}

	go func() {
		fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		ch, err := r.api.ChannelDetail(fetchCtx, channelID)
		if err != nil {
			r.logger.Warn("joined-room detail fetch failed",
				zap.String("channel_id", channelID), zap.Error(err))
			return
		}
		r.store.Apply(state.ReplaceChannel{Channel: ch})
	}()
}

func (r *Router) handleDisconnect(raw []byte) {
	reason := decodeReason(raw)
	r.conn.NoteDisconnectReason(reason)
}

// decodeReason accepts either a bare JSON string or {"reason": "..."}.
func decodeReason(raw []byte) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Reason
	}
	return string(raw)
}
