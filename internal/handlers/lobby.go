// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jason-s-yu/partyrounds/internal/game"
)

// ListLobbiesHandler returns the lobbies still accepting players.
func ListLobbiesHandler(srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(game.LobbyListPayload{Lobbies: srv.Engine.WaitingLobbies()})
	}
}

// HealthHandler reports liveness along with the number of open sessions.
func HealthHandler(srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "ok",
			"sessions": srv.Hub.Len(),
		})
	}
}
