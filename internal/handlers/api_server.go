// internal/handlers/api_server.go
package handlers

import (
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/modiplay/modi-server/internal/database"
	"github.com/modiplay/modi-server/internal/game"
)

// Server bundles the collaborators the HTTP and WebSocket handlers need.
type Server struct {
	Engine *game.Engine
	Users  *database.Users
	RDB    *redis.Client
	Log    *logrus.Logger
}

// NewServer builds a Server.
func NewServer(engine *game.Engine, users *database.Users, rdb *redis.Client, logger *logrus.Logger) *Server {
	return &Server{Engine: engine, Users: users, RDB: rdb, Log: logger}
}

// Routes registers every route on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/user/create", s.CreateUserHandler)
	mux.HandleFunc("/user/login", s.LoginHandler)

	mux.HandleFunc("/game/create", s.CreateGameHandler)
	mux.HandleFunc("/game/ws/", s.GameWSHandler)
	mux.HandleFunc("/game/", s.GameHandler)
}
