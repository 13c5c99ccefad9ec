// internal/handlers/routes.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/partyrounds/internal/middleware"
	"github.com/sirupsen/logrus"
)

// NewMux registers every endpoint behind the request logger.
func NewMux(logger *logrus.Logger, srv *Server) *http.ServeMux {
	logged := middleware.LogMiddleware(logger)
	mux := http.NewServeMux()

	// session websocket
	mux.Handle("/ws", logged(SessionWSHandler(logger, srv)))

	// lobby endpoints
	mux.Handle("/lobby/list", logged(ListLobbiesHandler(srv)))

	mux.Handle("/healthz", HealthHandler(srv))
	return mux
}
