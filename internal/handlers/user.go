// internal/handlers/user.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/modiplay/modi-server/internal/auth"
	"github.com/modiplay/modi-server/internal/database"
)

// EnsureUser authenticates the caller, creating a guest account and setting
// a session cookie when the request carries no usable token. Game endpoints
// use this so players can join with nothing but a display name.
func (s *Server) EnsureUser(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, error) {
	token := extractTokenFromCookie(r.Header.Get("Cookie"))
	if token != "" {
		if userIDStr, err := auth.AuthenticateJWT(token); err == nil {
			if userID, parseErr := uuid.Parse(userIDStr); parseErr == nil {
				return userID, nil
			}
		}
	}

	if name == "" {
		name = "Guest"
	}
	guest := database.User{Username: name, IsGuest: true}
	if err := s.Users.Create(r.Context(), &guest, ""); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create guest user: %w", err)
	}
	newToken, err := auth.CreateJWT(guest.ID.String())
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create guest JWT: %w", err)
	}
	setAuthCookie(w, newToken)
	return guest.ID, nil
}

// CreateUserHandler registers a claimed account.
func (s *Server) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}

	user := database.User{Username: req.Username}
	if err := s.Users.Create(r.Context(), &user, req.Password); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			http.Error(w, "username already exists", http.StatusConflict)
			return
		}
		s.Log.Errorf("failed to create user: %v", err)
		http.Error(w, "error creating user", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// LoginHandler authenticates a claimed account and returns a session token,
// which is also set as the auth_token cookie.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	token, err := s.Users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		s.Log.Warnf("failed to authenticate user %q: %v", req.Username, err)
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}

	setAuthCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
