// Package ws relays generation stream events over WebSocket for clients that
// cannot consume server-sent events.
package ws

import (
	"context"
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"resumable-chat/backend/internal/stream"
	"resumable-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames.
	maxMessageSize = 4 * 1024

	// DoneFrame is the last text frame of a stream that ended normally.
	DoneFrame = "[DONE]"
)

// Relay upgrades resume requests and forwards stream events as text frames.
type Relay struct {
	upgrader websocket.Upgrader
}

// NewRelay accepts upgrades from allowedOrigins. "*" accepts any origin.
func NewRelay(allowedOrigins []string) *Relay {
	allowAll := slices.Contains(allowedOrigins, "*")
	return &Relay{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || slices.Contains(allowedOrigins, origin)
			},
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  4096,
		},
	}
}

// Serve takes ownership of src and blocks until it is relayed or the peer
// goes away.
func (r *Relay) Serve(c *gin.Context, chatID string, src stream.Source) {
	defer src.Close()
	log := logger.FromGin(c).WithChatID(chatID)

	conn, err := r.upgrader.Upgrade(c.Writer, c.Request, http.Header{"X-Chat-Id": {chatID}})
	if err != nil {
		// the upgrader has already written the HTTP error
		log.Warn("websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	go readPump(conn, cancel)

	frames := make(chan []byte, 16)
	go func() {
		defer close(frames)
		for {
			ev, err := src.Next(ctx)
			if errors.Is(err, io.EOF) {
				select {
				case frames <- []byte(DoneFrame):
				case <-ctx.Done():
				}
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					log.Warn("stream ended early", "error", err.Error())
				}
				return
			}
			data, err := ev.Marshal()
			if err != nil {
				log.LogError(err, "failed to encode stream event")
				return
			}
			select {
			case frames <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	writePump(ctx, conn, frames)
}

// readPump drains control frames so pongs are processed, and cancels ctx
// once the peer closes.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, frames <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-frames:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
