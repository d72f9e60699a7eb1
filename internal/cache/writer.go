package cache

import (
	"context"

	"github.com/brunodmt/tether/internal/bus"
	"github.com/brunodmt/tether/internal/state"
	"go.uber.org/zap"
)

// Writer follows state.* change events on the bus and rewrites the cache
// from store snapshots, off the mutation path. A dropped event only delays
// persistence until the next change; the cache never blocks a commit.
type Writer struct {
	db     *DB
	store  *state.Store
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewWriter creates a cache writer.
func NewWriter(db *DB, store *state.Store, b *bus.Bus, logger *zap.Logger) *Writer {
	return &Writer{
		db:     db,
		store:  store,
		bus:    b,
		logger: logger,
	}
}

// Start subscribes to state change events on the bus.
func (w *Writer) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	ch, unsub := w.bus.Subscribe("state.", 64)

	go func() {
		defer unsub()
		for {
			select {
			case <-ch:
				w.persist()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the writer.
func (w *Writer) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Writer) persist() {
	if err := w.db.SaveChannels(w.store.Channels()); err != nil {
		w.logger.Error("cache write failed", zap.Error(err))
	}
}
