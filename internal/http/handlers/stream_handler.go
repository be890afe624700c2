// README: Websocket live feed of the caller's actor channel plus requested match channels.
package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"agrimatch/internal/modules/fanout"
	"agrimatch/internal/modules/match"
	"agrimatch/internal/types"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type StreamHandler struct {
	stream  fanout.Subscriber
	matches *match.Service
}

func NewStreamHandler(stream fanout.Subscriber, matches *match.Service) *StreamHandler {
	return &StreamHandler{stream: stream, matches: matches}
}

// Stream upgrades the connection and forwards fanout envelopes as text frames.
// Each ?match= id must be visible to the caller.
func (h *StreamHandler) Stream(c *gin.Context) {
	me := caller(c)
	channels := []string{fanout.ActorChannel(me)}
	for _, id := range c.QueryArray("match") {
		if _, err := h.matches.Get(c.Request.Context(), me, types.ID(id)); err != nil {
			writeServiceError(c, err)
			return
		}
		channels = append(channels, fanout.MatchChannel(types.ID(id)))
	}

	// Subscribe before the handshake so nothing published after it is lost.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	msgs, stop := h.stream.Listen(ctx, channels...)
	defer stop()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("stream upgrade for %s: %v", me, err)
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// Inbound frames are ignored; the read loop only notices disconnects.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("stream write for %s: %v", me, err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Printf("stream ping for %s: %v", me, err)
				return
			}
		}
	}
}
