// internal/handlers/session_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/partyrounds/internal/game"
	"github.com/jason-s-yu/partyrounds/internal/middleware"
	"github.com/sirupsen/logrus"
)

// Server bundles what the HTTP and websocket handlers need.
type Server struct {
	Engine *game.Engine
	Hub    *Hub

	// OriginPatterns are passed to websocket.Accept.
	OriginPatterns []string

	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(engine *game.Engine, hub *Hub, originPatterns []string) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{Engine: engine, Hub: hub, OriginPatterns: originPatterns, ctx: ctx, cancel: cancel}
}

// Shutdown closes every open session. http.Server.Shutdown does not touch hijacked
// connections, so this must be called alongside it.
func (s *Server) Shutdown() {
	s.cancel()
}

// session is the per-connection state owned by the read pump.
type session struct {
	conn     *Conn
	playerID uuid.UUID
	log      *logrus.Entry
}

// SessionWSHandler upgrades to a websocket and routes the client's commands to the engine.
// Disconnecting is the same as leaving.
func SessionWSHandler(logger *logrus.Logger, srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: srv.OriginPatterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the partyrounds subprotocol")
			return
		}

		conn := srv.Hub.Register()
		s := &session{conn: conn, log: logger.WithFields(logrus.Fields{"conn": conn.ID, "remote": r.RemoteAddr})}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		stop := context.AfterFunc(srv.ctx, func() {
			c.Close(ServerShutdownError, "server shutting down")
		})
		defer stop()

		go writePump(ctx, c, conn, s.log)
		readErr := readPump(ctx, c, srv, s)

		if s.playerID != uuid.Nil {
			if err := srv.Engine.Leave(s.playerID); err != nil && !errors.Is(err, game.ErrNotFound) {
				s.log.WithError(err).Warn("leave on disconnect failed")
			}
		}
		srv.Hub.Unregister(conn.ID)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
	}
}

// readPump reads commands until the connection closes. A normal close returns nil.
func readPump(ctx context.Context, c *websocket.Conn, srv *Server, s *session) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				ctx.Err() != nil || srv.ctx.Err() != nil {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			s.log.Warnf("ignoring non-text message type %d", typ)
			continue
		}

		var cmd Command
		if err := json.Unmarshal(msg, &cmd); err != nil {
			s.log.WithError(err).Debug("invalid json")
			srv.Hub.Send(s.conn.ID, errorEvent("invalid JSON format"))
			continue
		}
		if err := route(ctx, srv, s, cmd); err != nil {
			s.log.WithError(err).WithField("command", cmd.Type).Debug("command rejected")
		}
	}
}

// writePump drains the connection's queue onto the socket and pings every 30 seconds.
func writePump(ctx context.Context, c *websocket.Conn, conn *Conn, log *logrus.Entry) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer c.Close(websocket.StatusGoingAway, "write pump stopping")

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.WithError(err).WithField("event", ev.Type).Warn("failed to marshal outgoing event")
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.WithError(err).Warn("failed to write to websocket")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				log.WithError(err).Warn("ping failed, assuming disconnect")
				return
			}
		}
	}
}

func errorEvent(msg string) game.Event {
	return game.Event{Type: game.EventError, Payload: game.ErrorPayload{Message: msg}}
}
