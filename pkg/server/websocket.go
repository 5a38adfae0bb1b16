package server

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/shepherd/pkg/conversation"
	"github.com/go-go-golems/shepherd/pkg/events"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// wsSink sends every event as one text frame carrying the same JSON as an
// SSE data line.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsSink) PublishEvent(e events.Event) error {
	payload, err := e.Payload()
	if err != nil {
		return errors.Wrap(err, "could not marshal event")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.conn.WriteMessage(websocket.TextMessage, payload)
}

func (w *wsSink) close(code int, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
}

// handleChatWebsocket reads one chat request from the first frame, streams
// the run's events and closes the connection after the terminal event.
func (s *Server) handleChatWebsocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already answered with an HTTP error
		log.Debug().Err(err).Msg("server: websocket upgrade failed")
		return nil
	}
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(maxBodyBytes)

	sink := &wsSink{conn: conn}

	var body ChatRequest
	if err := conn.ReadJSON(&body); err != nil {
		s.rejectWebsocket(sink, errors.Wrap(err, "invalid chat request"))
		return nil
	}
	conv, err := conversation.DecodeMessages(body.Messages)
	if err != nil {
		s.rejectWebsocket(sink, err)
		return nil
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	// frames after the request are ignored; a closed connection ends the run
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	s.run(s.runContext(ctx, sink), conv, body.CustomSystemPrompt)
	sink.close(websocket.CloseNormalClosure, "")
	return nil
}

func (s *Server) rejectWebsocket(sink *wsSink, err error) {
	_ = sink.PublishEvent(events.NewErrorEvent(events.EventMetadata{}, err))
	sink.close(websocket.CloseUnsupportedData, "invalid chat request")
}
