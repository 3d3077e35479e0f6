package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// WSFrame is one received server frame, decoded for assertions.
type WSFrame struct {
	Type            string
	ConnectionID    string
	InvestigationID string
	Message         string
	Event           map[string]interface{} // agent_message payload, nil otherwise
	Raw             json.RawMessage
	Received        time.Time
}

// WSClient connects to the streaming endpoint and collects frames.
type WSClient struct {
	conn   *websocket.Conn
	frames []WSFrame
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}
}

// WSConnect establishes a WebSocket connection to the test server and
// starts collecting frames in a background goroutine.
func WSConnect(ctx context.Context, wsURL string) (*WSClient, error) {
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{})
	if err != nil {
		return nil, fmt.Errorf("WebSocket dial: %w", err)
	}

	clientCtx, cancel := context.WithCancel(ctx)
	c := &WSClient{
		conn:   conn,
		ctx:    clientCtx,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}

	go c.readLoop()

	return c, nil
}

// StartInvestigation sends a start_investigation message.
func (c *WSClient) StartInvestigation(goal string) error {
	return c.send(map[string]interface{}{
		"type": "start_investigation",
		"goal": goal,
	})
}

// Attach sends an attach_investigation message.
func (c *WSClient) Attach(investigationID string) error {
	return c.send(map[string]interface{}{
		"type":             "attach_investigation",
		"investigation_id": investigationID,
	})
}

// Ping sends a ping message.
func (c *WSClient) Ping() error {
	return c.send(map[string]interface{}{"type": "ping"})
}

func (c *WSClient) send(msg map[string]interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.conn.Write(c.ctx, websocket.MessageText, data)
}

// WaitForFrame waits until a frame matching the predicate arrives, or
// times out.
func (c *WSClient) WaitForFrame(predicate func(WSFrame) bool, timeout time.Duration) (*WSFrame, error) {
	deadline := time.After(timeout)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-deadline:
			return nil, fmt.Errorf("timeout waiting for frame (collected %d frames)", len(c.Frames()))
		case <-tick.C:
			c.mu.Lock()
			for i := range c.frames {
				if predicate(c.frames[i]) {
					frame := c.frames[i]
					c.mu.Unlock()
					return &frame, nil
				}
			}
			c.mu.Unlock()
		}
	}
}

// WaitForFrameType waits for a frame with the given type.
func (c *WSClient) WaitForFrameType(frameType string, timeout time.Duration) (*WSFrame, error) {
	return c.WaitForFrame(func(f WSFrame) bool {
		return f.Type == frameType
	}, timeout)
}

// WaitForEventType waits for an agent_message frame whose event carries
// the given type.
func (c *WSClient) WaitForEventType(eventType string, timeout time.Duration) (*WSFrame, error) {
	return c.WaitForFrame(func(f WSFrame) bool {
		if f.Type != "agent_message" {
			return false
		}
		t, _ := f.Event["type"].(string)
		return t == eventType
	}, timeout)
}

// WaitForTerminalStatus waits for a status event carrying the given
// terminal state.
func (c *WSClient) WaitForTerminalStatus(state string, timeout time.Duration) (*WSFrame, error) {
	return c.WaitForFrame(func(f WSFrame) bool {
		if f.Type != "agent_message" {
			return false
		}
		if t, _ := f.Event["type"].(string); t != "status" {
			return false
		}
		s, _ := f.Event["state"].(string)
		return s == state
	}, timeout)
}

// Frames returns a snapshot of all collected frames.
func (c *WSClient) Frames() []WSFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]WSFrame, len(c.frames))
	copy(result, c.frames)
	return result
}

// EventFrames returns the agent_message frames for one investigation.
func (c *WSClient) EventFrames(investigationID string) []WSFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var result []WSFrame
	for _, f := range c.frames {
		if f.Type == "agent_message" && f.InvestigationID == investigationID {
			result = append(result, f)
		}
	}
	return result
}

// Close closes the WebSocket connection and waits for the read loop to
// exit.
func (c *WSClient) Close() error {
	c.cancel()
	_ = c.conn.CloseNow()
	<-c.doneCh
	return nil
}

// readLoop reads frames from the WebSocket and appends them to the
// collected slice.
func (c *WSClient) readLoop() {
	defer close(c.doneCh)
	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			return // Connection closed or context cancelled.
		}

		var parsed struct {
			Type            string                 `json:"type"`
			ConnectionID    string                 `json:"connection_id"`
			InvestigationID string                 `json:"investigation_id"`
			Message         string                 `json:"message"`
			Event           map[string]interface{} `json:"event"`
		}
		if err := json.Unmarshal(data, &parsed); err != nil {
			continue // Skip malformed frames.
		}

		frame := WSFrame{
			Type:            parsed.Type,
			ConnectionID:    parsed.ConnectionID,
			InvestigationID: parsed.InvestigationID,
			Message:         parsed.Message,
			Event:           parsed.Event,
			Raw:             json.RawMessage(data),
			Received:        time.Now(),
		}

		c.mu.Lock()
		c.frames = append(c.frames, frame)
		c.mu.Unlock()
	}
}
