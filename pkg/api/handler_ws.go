package api

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
)

// StreamHandler is the streaming side of the WebSocket endpoint.
// Implemented by events.StreamManager.
type StreamHandler interface {
	HandleConnection(ctx context.Context, conn *websocket.Conn)
	ActiveConnections() int
}

// wsHandler upgrades HTTP connections to WebSocket and delegates to the
// stream manager. Same-origin requests are always accepted; the config
// allowlist admits additional origins, e.g. a dashboard on another host.
func (s *Server) wsHandler(c *echo.Context) error {
	if s.streams == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming not available")
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedWSOrigins,
	})
	if err != nil {
		return err
	}

	// HandleConnection blocks until the WebSocket closes.
	s.streams.HandleConnection(c.Request().Context(), conn)
	return nil
}
