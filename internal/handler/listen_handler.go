package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/faatca/cue/internal/cue"
	"github.com/faatca/cue/internal/registry"
	"github.com/faatca/cue/internal/validate"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	maxFrameSize = 4096

	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin:      func(_ *http.Request) bool { return true },
}

// Listen upgrades to a WebSocket and streams matching cues until the peer
// disconnects. The connection carries every requested pattern; inbound
// frames are consumed only to detect disconnect.
func (h *APIHandler) Listen(c echo.Context) error {
	patterns := dedupe(c.QueryParams()["name"])
	for _, p := range patterns {
		if err := validate.CuePattern(p); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"message": err.Error()})
		}
	}
	if len(patterns) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "No cue names requested"})
	}
	if len(patterns) > cue.MaxListenPatterns {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Too many cue names requested"})
	}

	key, err := h.auth.ResolveHeader(c.Request().Context(), c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		h.logger.Error("auth lookup failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal error"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	// Auth failures surface as a policy-violation close so the client can
	// tell a bad key from a flaky network.
	if key == nil {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		conn.Close()
		return nil
	}

	sink := newWSSink(conn)
	session := registry.NewSession(key.UID, patterns, key.Pattern, sink)
	h.registry.Add(session)
	h.logger.Info("listener connected",
		zap.String("session", session.ID),
		zap.String("uid", key.UID),
		zap.Int("patterns", len(patterns)),
	)

	go sink.writePump()
	sink.readPump()

	// Exactly-once removal: the read loop is the single exit path, whether
	// the peer hung up, the write pump died, or the server is shutting down.
	h.registry.Remove(session)
	h.logger.Info("listener disconnected", zap.String("session", session.ID))
	return nil
}

var errSessionClosed = errors.New("listen session closed")

// wsSink adapts a websocket connection to the registry's Sink. All writes
// funnel through the write pump; Send never blocks the dispatcher — a
// listener whose buffer is full is disconnected instead.
type wsSink struct {
	conn *websocket.Conn
	send chan []byte

	once sync.Once
	done chan struct{}
}

func newWSSink(conn *websocket.Conn) *wsSink {
	return &wsSink{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// Send queues an envelope for delivery.
func (s *wsSink) Send(ctx context.Context, env cue.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	select {
	case <-s.done:
		return errSessionClosed
	case s.send <- data:
		return nil
	default:
		// The peer is not draining its socket; cut it loose.
		s.Close()
		return errSessionClosed
	}
}

// Close tears the connection down; safe to call from any goroutine and
// more than once.
func (s *wsSink) Close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// readPump discards inbound frames until the connection errors, using pongs
// to keep the read deadline fresh. Closing the connection from any other
// path unblocks it.
func (s *wsSink) readPump() {
	defer s.Close()
	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump serializes all outbound frames and keeps the peer alive with
// periodic pings.
func (s *wsSink) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.Close()
	}()
	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
