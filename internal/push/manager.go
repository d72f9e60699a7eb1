// Package push owns the persistent bidirectional socket used for
// server-initiated events. It is the only component that touches the
// transport handle; inbound events are republished as typed bus messages
// and consumed by the event router.
package push

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/brunodmt/tether/internal/bus"
	"github.com/brunodmt/tether/internal/status"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Named events on the wire. Inbound frames carry one of these names plus a
// JSON payload; outbound frames use the same envelope.
const (
	EventChatMessage = "chat message"
	EventJoinedRoom  = "joined a new room"
	EventDisconnect  = "disconnect"
	EventJoinRoom    = "join new room"
)

type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ConnState is the process-wide connection state. Owned exclusively by the
// Manager; read-only to every other component.
type ConnState struct {
	Connected            bool
	LastDisconnectReason string
}

// Manager owns exactly one transport handle and its lifecycle.
type Manager struct {
	url           string
	autoReconnect bool
	bus           *bus.Bus
	machine       *status.Machine
	logger        *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	st      ConnState
	closing bool
}

// NewManager creates a manager for the given websocket URL. When
// autoReconnect is set, an unsolicited transport loss re-invokes Connect
// immediately; otherwise the manager stays disconnected until asked.
func NewManager(url string, autoReconnect bool, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *Manager {
	return &Manager{
		url:           url,
		autoReconnect: autoReconnect,
		bus:           b,
		machine:       machine,
		logger:        logger,
	}
}

// Connect dials the push transport and starts the read loop. Idempotent:
// calling it while connected is a no-op.
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.st.Connected {
		m.mu.Unlock()
		return nil
	}
	m.closing = false
	m.mu.Unlock()

	_ = m.machine.Transition(status.Connecting)

	conn, _, err := websocket.DefaultDialer.Dial(m.url, nil)
	if err != nil {
		_ = m.machine.Transition(status.Offline)
		return fmt.Errorf("dial push transport: %w", err)
	}

	m.mu.Lock()
	m.conn = conn
	m.st = ConnState{Connected: true}
	m.mu.Unlock()

	_ = m.machine.Transition(status.Connected)
	m.logger.Info("push transport connected", zap.String("url", m.url))

	go m.readLoop(conn)
	return nil
}

// Disconnect tears the transport down for good. No reconnect follows.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.closing = true
	conn := m.conn
	m.conn = nil
	m.st.Connected = false
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	_ = m.machine.Transition(status.Closed)
	m.logger.Info("push transport closed")
}

// State returns a copy of the connection state.
func (m *Manager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st
}

// NoteDisconnectReason records a server-announced disconnect reason. The
// event router forwards inbound "disconnect" events here; there is no
// store mutation involved.
func (m *Manager) NoteDisconnectReason(reason string) {
	m.mu.Lock()
	m.st.LastDisconnectReason = reason
	m.mu.Unlock()
	m.logger.Warn("server announced disconnect", zap.String("reason", reason))
}

// Send writes a named event with a JSON payload, fire-and-forget. Delivery
// is not guaranteed; when disconnected the frame is logged and dropped.
func (m *Manager) Send(event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		m.logger.Error("encode outbound event", zap.String("event", event), zap.Error(err))
		return
	}

	m.mu.Lock()
	conn := m.conn
	connected := m.st.Connected
	m.mu.Unlock()

	if !connected || conn == nil {
		m.logger.Warn("dropping outbound event, not connected", zap.String("event", event))
		return
	}
	if err := conn.WriteJSON(envelope{Event: event, Payload: raw}); err != nil {
		m.logger.Error("write outbound event", zap.String("event", event), zap.Error(err))
	}
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.handleTransportLoss(err)
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			m.logger.Warn("malformed push frame", zap.Error(err))
			continue
		}

		kind, ok := kindFor(env.Event)
		if !ok {
			m.logger.Warn("unknown push event", zap.String("event", env.Event))
			continue
		}
		m.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: []byte(env.Payload)})
	}
}

func kindFor(event string) (string, bool) {
	switch event {
	case EventChatMessage:
		return bus.KindPushMessage, true
	case EventJoinedRoom:
		return bus.KindPushJoinedRoom, true
	case EventDisconnect:
		return bus.KindPushDisconnect, true
	}
	return "", false
}

func (m *Manager) handleTransportLoss(err error) {
	m.mu.Lock()
	closing := m.closing
	m.conn = nil
	m.st.Connected = false
	m.st.LastDisconnectReason = err.Error()
	m.mu.Unlock()

	if closing {
		return
	}

	m.logger.Warn("push transport lost", zap.Error(err))
	_ = m.machine.Transition(status.Reconnecting)

	if !m.autoReconnect {
		_ = m.machine.Transition(status.Offline)
		return
	}
	if cerr := m.Connect(); cerr != nil {
		m.logger.Error("reconnect failed", zap.Error(cerr))
	}
}
