// internal/handlers/game.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/modiplay/modi-server/internal/game"
)

// CreateGameHandler creates a fresh game with the caller as host. A guest
// account is minted when the caller has no session.
func (s *Server) CreateGameHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	userID, err := s.EnsureUser(w, r, req.Name)
	if err != nil {
		s.Log.Errorf("failed to ensure user: %v", err)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	g, err := s.Engine.CreateGame(r.Context(), userID, req.Name)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"game_id": g.ID})
}

// GameHandler routes /game/{id} and /game/{id}/{verb} requests into the
// engine and maps error kinds onto HTTP statuses.
func (s *Server) GameHandler(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/game/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}
	gameID := parts[0]
	verb := ""
	if len(parts) > 1 {
		verb = parts[1]
	}

	if r.Method == http.MethodGet {
		switch verb {
		case "":
			s.handleGetGame(w, r, gameID)
		case "actions":
			s.handleGetActions(w, r, gameID)
		default:
			http.Error(w, "unknown route", http.StatusNotFound)
		}
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch verb {
	case "join":
		s.handleJoinGame(w, r, gameID)
		return
	}

	userID, err := currentUser(r)
	if err != nil {
		writeGameError(w, err)
		return
	}

	ctx := r.Context()
	switch verb {
	case "leave":
		err = s.Engine.LeaveGame(ctx, gameID, userID)
	case "order":
		var req struct {
			Order []uuid.UUID `json:"order"`
		}
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		err = s.Engine.SetPlayerOrder(ctx, gameID, userID, req.Order)
	case "settings":
		var req struct {
			InitialLives int `json:"initialLives"`
		}
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		err = s.Engine.UpdateGameSettings(ctx, gameID, userID, req.InitialLives)
	case "start":
		err = s.Engine.StartGame(ctx, gameID, userID)
	case "deal":
		err = s.Engine.DealCards(ctx, gameID, userID)
	case "stick":
		err = s.Engine.Stick(ctx, gameID, userID)
	case "swap":
		err = s.Engine.SwapOrDraw(ctx, gameID, userID)
	case "end-round":
		err = s.Engine.EndRound(ctx, gameID, userID)
	case "play-again":
		nextID, playErr := s.Engine.PlayAgain(ctx, gameID, userID)
		if playErr != nil {
			writeGameError(w, playErr)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"game_id": nextID})
		return
	default:
		http.Error(w, "unknown route", http.StatusNotFound)
		return
	}

	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request, gameID string) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	userID, err := s.EnsureUser(w, r, req.Name)
	if err != nil {
		s.Log.Errorf("failed to ensure user: %v", err)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	if err := s.Engine.JoinGame(r.Context(), gameID, userID, req.Name); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request, gameID string) {
	if _, err := currentUser(r); err != nil {
		writeGameError(w, err)
		return
	}
	g, err := s.Engine.GetGame(r.Context(), gameID)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleGetActions(w http.ResponseWriter, r *http.Request, gameID string) {
	if _, err := currentUser(r); err != nil {
		writeGameError(w, err)
		return
	}
	actions, err := s.Engine.Actions(r.Context(), gameID)
	if err != nil {
		writeGameError(w, err)
		return
	}
	if actions == nil {
		actions = []game.Action{}
	}
	writeJSON(w, http.StatusOK, actions)
}
