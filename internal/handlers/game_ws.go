// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/modiplay/modi-server/internal/cache"
	"github.com/modiplay/modi-server/internal/middleware"
)

// GameWSHandler upgrades /game/ws/{id} to a WebSocket and streams the
// game's action feed to the client: first the backlog already committed,
// then live actions from the game's pub/sub channel plus the caller's
// private channel. The socket is read-only for the client; plays go over
// the HTTP endpoints.
func (s *Server) GameWSHandler(w http.ResponseWriter, r *http.Request) {
	gameID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/game/ws/"), "/")
	if gameID == "" {
		http.Error(w, "missing game id in path (/game/ws/{id})", http.StatusBadRequest)
		return
	}

	userID, err := currentUser(r)
	if err != nil {
		writeGameError(w, err)
		return
	}

	g, err := s.Engine.GetGame(r.Context(), gameID)
	if err != nil {
		writeGameError(w, err)
		return
	}
	if !g.HasPlayer(userID) {
		http.Error(w, "you are not a player in this game", http.StatusForbidden)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.Log.Warnf("websocket accept error for game %s: %v", gameID, err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler exit")
	middleware.LogWebSocketConnect(s.Log, r.RemoteAddr, r.URL.Path)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Backlog before live feed, so the client never misses an action
	// committed before the subscription landed. Duplicates across the
	// boundary are resolved client-side by order key.
	sub := s.RDB.Subscribe(ctx, cache.GameChannel(gameID), cache.PlayerChannel(gameID, userID))
	defer sub.Close()

	actions, err := s.Engine.Actions(ctx, gameID)
	if err != nil {
		s.Log.Warnf("failed to load action backlog for game %s: %v", gameID, err)
		c.Close(websocket.StatusInternalError, "failed to load backlog")
		return
	}
	for _, a := range actions {
		data, marshalErr := json.Marshal(a)
		if marshalErr != nil {
			continue
		}
		if writeErr := s.writeWS(ctx, c, data); writeErr != nil {
			middleware.LogWebSocketDisconnect(s.Log, r.RemoteAddr, r.URL.Path, writeErr)
			return
		}
	}

	// Drain client frames so pings are answered and closure is noticed.
	go func() {
		for {
			if _, _, readErr := c.Read(ctx); readErr != nil {
				cancel()
				return
			}
		}
	}()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			middleware.LogWebSocketDisconnect(s.Log, r.RemoteAddr, r.URL.Path, nil)
			c.Close(websocket.StatusNormalClosure, "")
			return
		case msg, ok := <-ch:
			if !ok {
				middleware.LogWebSocketDisconnect(s.Log, r.RemoteAddr, r.URL.Path, nil)
				c.Close(websocket.StatusNormalClosure, "")
				return
			}
			if err := s.writeWS(ctx, c, []byte(msg.Payload)); err != nil {
				middleware.LogWebSocketDisconnect(s.Log, r.RemoteAddr, r.URL.Path, err)
				return
			}
		}
	}
}

func (s *Server) writeWS(ctx context.Context, c *websocket.Conn, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.Write(writeCtx, websocket.MessageText, data)
}
