package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/ufflow/oats/pkg/models"
	"github.com/ufflow/oats/pkg/services"
)

// Investigations is the control-plane surface the stream manager
// drives. Implemented by services.InvestigationService.
type Investigations interface {
	Create(ctx context.Context, in services.CreateInput) (*models.Investigation, error)
	Get(id string) (*models.Investigation, error)
	StreamLogs(ctx context.Context, id string, follow bool) (io.ReadCloser, error)
}

// Stats records streaming metrics. Nil is tolerated.
type Stats interface {
	SubscriberAdded()
	SubscriberRemoved()
}

// StreamManager manages WebSocket connections and per-investigation
// subscriptions. Each server process has one StreamManager instance.
//
// Every (connection, investigation) subscription owns its own log pump
// reading the worker job's stdout from the cluster, so each subscriber
// gets the full event history regardless of when it attached.
type StreamManager struct {
	investigations Investigations
	stats          Stats

	// Write timeout for WebSocket sends. A subscriber slower than
	// this is disconnected rather than allowed to stall delivery.
	writeTimeout time.Duration

	// Active connections: connection_id → *Connection
	connections map[string]*Connection
	mu          sync.RWMutex

	// Subscription state: investigation_id → set of connection_ids,
	// plus the pump per (connection, investigation) pair. subMu also
	// guards every Connection's subscriptions and terminalSent maps,
	// because the lifecycle watcher mutates them from its own
	// goroutine.
	subscribers map[string]map[string]bool
	pumps       map[pumpKey]*pump
	subMu       sync.Mutex
}

type pumpKey struct {
	connID          string
	investigationID string
}

// Connection represents a single WebSocket client.
type Connection struct {
	ID   string
	Conn *websocket.Conn

	// investigations this connection is subscribed to, and the ones
	// it has already received a terminal status frame for. Guarded by
	// StreamManager.subMu.
	subscriptions map[string]bool
	terminalSent  map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewStreamManager creates a new StreamManager. stats may be nil.
func NewStreamManager(investigations Investigations, stats Stats, writeTimeout time.Duration) *StreamManager {
	return &StreamManager{
		investigations: investigations,
		stats:          stats,
		writeTimeout:   writeTimeout,
		connections:    make(map[string]*Connection),
		subscribers:    make(map[string]map[string]bool),
		pumps:          make(map[pumpKey]*pump),
	}
}

// HandleConnection manages the lifecycle of a single WebSocket
// connection. Called by the WebSocket HTTP handler after upgrade.
// Blocks until the connection closes.
func (m *StreamManager) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	connID := uuid.New().String()
	ctx, cancel := context.WithCancel(parentCtx)

	c := &Connection{
		ID:            connID,
		Conn:          conn,
		subscriptions: make(map[string]bool),
		terminalSent:  make(map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
	}

	m.registerConnection(c)
	defer m.unregisterConnection(c)

	m.sendFrame(c, &ServerFrame{Type: FrameConnectionEstablished, ConnectionID: connID})

	// Read loop: process client messages until the connection closes.
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Invalid WebSocket message",
				"connection_id", connID, "error", err)
			continue
		}

		m.handleClientMessage(ctx, c, &msg)
	}
}

// InvestigationTerminal pushes a final status frame to every subscriber
// of the investigation. Implements the lifecycle watcher's notifier, so
// clients learn the outcome even when the worker died without emitting
// anything (job vanished, pod evicted, hard deadline).
func (m *StreamManager) InvestigationTerminal(id string, state models.InvestigationState, detail string) {
	ev := models.NewStatusEvent(state, detail)
	ev.InvestigationID = id

	m.subMu.Lock()
	conns := m.subscriberConnsLocked(id)
	m.subMu.Unlock()

	for _, c := range conns {
		m.deliverTerminal(c, id, ev)
	}
}

// ActiveConnections returns the count of active WebSocket connections.
func (m *StreamManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// subscriberCount returns the number of subscribers for an
// investigation. Unexported; tests poll it instead of sleeping.
func (m *StreamManager) subscriberCount(investigationID string) int {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	return len(m.subscribers[investigationID])
}

// handleClientMessage dispatches a client message to the appropriate
// handler.
func (m *StreamManager) handleClientMessage(ctx context.Context, c *Connection, msg *ClientMessage) {
	switch msg.Type {
	case MessageStartInvestigation:
		inv, err := m.investigations.Create(ctx, services.CreateInput{
			Goal:       msg.Goal,
			Namespace:  msg.Namespace,
			TurnBudget: msg.TurnBudget,
			RunbookURL: msg.RunbookURL,
		})
		if err != nil {
			m.sendFrame(c, &ServerFrame{Type: FrameError, Message: clientMessage(err)})
			return
		}
		p := m.subscribe(c, inv.ID)
		m.sendAttachedStatus(c, inv, "investigation started")
		if p != nil {
			go p.run()
		}

	case MessageAttachInvestigation:
		if msg.InvestigationID == "" {
			m.sendFrame(c, &ServerFrame{Type: FrameError, Message: "investigation_id is required for attach_investigation"})
			return
		}
		inv, err := m.investigations.Get(msg.InvestigationID)
		if err != nil {
			m.sendFrame(c, &ServerFrame{Type: FrameError, Message: clientMessage(err)})
			return
		}
		p := m.subscribe(c, inv.ID)
		m.sendAttachedStatus(c, inv, "attached")
		if p != nil {
			go p.run()
		}

	case MessagePing:
		m.sendFrame(c, &ServerFrame{Type: FramePong})

	default:
		m.sendFrame(c, &ServerFrame{Type: FrameError, Message: "unknown message type: " + msg.Type})
	}
}

// sendAttachedStatus synthesizes the first frame of a subscription: a
// status event naming the investigation, its worker job, and its state
// as of the attach.
func (m *StreamManager) sendAttachedStatus(c *Connection, inv *models.Investigation, detail string) {
	if inv.Error != "" {
		detail = inv.Error
	}
	ev := models.NewStatusEvent(inv.State, detail)
	ev.InvestigationID = inv.ID
	ev.JobName = inv.JobName
	m.sendFrame(c, &ServerFrame{Type: FrameAgentMessage, InvestigationID: inv.ID, Event: ev})
}

// subscribe registers a connection for an investigation and returns
// its log pump, not yet started: the caller sends the subscription ack
// first so the synthesized status event is always the first frame.
// Idempotent: attaching twice returns nil instead of a second pump.
func (m *StreamManager) subscribe(c *Connection, investigationID string) *pump {
	m.subMu.Lock()
	set, exists := m.subscribers[investigationID]
	if !exists {
		set = make(map[string]bool)
		m.subscribers[investigationID] = set
	}
	if set[c.ID] {
		m.subMu.Unlock()
		return nil
	}
	set[c.ID] = true
	c.subscriptions[investigationID] = true

	p := newPump(m, c, investigationID)
	m.pumps[pumpKey{c.ID, investigationID}] = p
	m.subMu.Unlock()

	if m.stats != nil {
		m.stats.SubscriberAdded()
	}
	return p
}

// unsubscribe removes a connection from an investigation and stops its
// pump. Safe to call for investigations the connection never attached.
func (m *StreamManager) unsubscribe(c *Connection, investigationID string) {
	m.subMu.Lock()
	removed := false
	if set, exists := m.subscribers[investigationID]; exists && set[c.ID] {
		delete(set, c.ID)
		removed = true
		if len(set) == 0 {
			delete(m.subscribers, investigationID)
		}
	}
	key := pumpKey{c.ID, investigationID}
	p := m.pumps[key]
	delete(m.pumps, key)
	delete(c.subscriptions, investigationID)
	m.subMu.Unlock()

	if p != nil {
		p.stop()
	}
	if removed && m.stats != nil {
		m.stats.SubscriberRemoved()
	}
}

// pumpDone drops the pump's bookkeeping entry after its goroutine
// exits on its own (stream drained). The subscription itself survives
// so the terminal notifier can still reach the connection.
func (m *StreamManager) pumpDone(c *Connection, investigationID string) {
	m.subMu.Lock()
	key := pumpKey{c.ID, investigationID}
	delete(m.pumps, key)
	m.subMu.Unlock()
}

// subscriberConnsLocked resolves the subscriber set of an investigation
// to live connection pointers. Caller holds subMu.
func (m *StreamManager) subscriberConnsLocked(investigationID string) []*Connection {
	ids := m.subscribers[investigationID]
	if len(ids) == 0 {
		return nil
	}
	m.mu.RLock()
	conns := make([]*Connection, 0, len(ids))
	for id := range ids {
		if c, ok := m.connections[id]; ok {
			conns = append(conns, c)
		}
	}
	m.mu.RUnlock()
	return conns
}

// deliver sends one event frame to one subscriber.
func (m *StreamManager) deliver(c *Connection, investigationID string, ev *models.Event) {
	m.sendFrame(c, &ServerFrame{Type: FrameAgentMessage, InvestigationID: investigationID, Event: ev})
}

// deliverTerminal sends a terminal status frame to one subscriber at
// most once per investigation. Both the lifecycle watcher and the
// draining pump race to report the outcome; whichever arrives first
// wins.
func (m *StreamManager) deliverTerminal(c *Connection, investigationID string, ev *models.Event) {
	m.subMu.Lock()
	if c.terminalSent[investigationID] {
		m.subMu.Unlock()
		return
	}
	c.terminalSent[investigationID] = true
	m.subMu.Unlock()

	m.deliver(c, investigationID, ev)
}

// registerConnection adds a connection to the tracking map.
func (m *StreamManager) registerConnection(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[c.ID] = c
}

// unregisterConnection removes a connection and all its subscriptions.
func (m *StreamManager) unregisterConnection(c *Connection) {
	m.subMu.Lock()
	subs := make([]string, 0, len(c.subscriptions))
	for id := range c.subscriptions {
		subs = append(subs, id)
	}
	m.subMu.Unlock()

	for _, id := range subs {
		m.unsubscribe(c, id)
	}

	m.mu.Lock()
	delete(m.connections, c.ID)
	m.mu.Unlock()

	c.cancel()
	_ = c.Conn.Close(websocket.StatusNormalClosure, "")
}

// sendFrame marshals and sends a frame to a single connection.
func (m *StreamManager) sendFrame(c *Connection, frame *ServerFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Warn("Failed to marshal WebSocket frame",
			"connection_id", c.ID, "error", err)
		return
	}
	if err := m.sendRaw(c, data); err != nil {
		slog.Warn("Failed to send to WebSocket client",
			"connection_id", c.ID, "error", err)
		// A connection that cannot keep up is dropped; its read loop
		// exits via the cancelled context and cleans everything up.
		c.cancel()
	}
}

// sendRaw sends raw bytes to a single connection with a write timeout.
func (m *StreamManager) sendRaw(c *Connection, data []byte) error {
	writeCtx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	return c.Conn.Write(writeCtx, websocket.MessageText, data)
}

// clientMessage converts a service error into text safe to show the
// client. Validation problems and unknown ids keep their message;
// anything else is reported generically and logged here.
func clientMessage(err error) string {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		return validErr.Error()
	}
	if errors.Is(err, services.ErrNotFound) {
		return "investigation not found"
	}
	slog.Error("Stream request failed", "error", err)
	return "request failed"
}
