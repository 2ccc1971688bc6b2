// internal/handlers/utils.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/modiplay/modi-server/internal/auth"
	"github.com/modiplay/modi-server/internal/game"
)

// extractTokenFromCookie pulls the auth_token value out of a raw Cookie
// header, or returns empty if absent.
func extractTokenFromCookie(cookieHeader string) string {
	parts := strings.Split(cookieHeader, "auth_token=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// currentUser authenticates the request's session cookie and returns the
// caller's user ID.
func currentUser(r *http.Request) (uuid.UUID, error) {
	token := extractTokenFromCookie(r.Header.Get("Cookie"))
	if token == "" {
		return uuid.Nil, game.Errorf(game.KindPermissionDenied, "missing auth token")
	}
	userIDStr, err := auth.AuthenticateJWT(token)
	if err != nil {
		return uuid.Nil, game.Errorf(game.KindPermissionDenied, "invalid auth token")
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, game.Errorf(game.KindPermissionDenied, "invalid user id in token")
	}
	return userID, nil
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeGameError maps a game error kind onto the matching HTTP status.
func writeGameError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch game.KindOf(err) {
	case game.KindNotFound:
		status = http.StatusNotFound
	case game.KindPermissionDenied:
		status = http.StatusForbidden
	case game.KindFailedPrecondition:
		status = http.StatusPreconditionFailed
	case game.KindInvalidArgument:
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}

// setAuthCookie attaches a session token cookie to the response.
func setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		MaxAge:   auth.TokenExpireSec,
	})
}
