// internal/handlers/hub.go
package handlers

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partyrounds/internal/game"
	"github.com/sirupsen/logrus"
)

// outboxSize bounds each connection's queue of pending events.
const outboxSize = 32

// Conn is one websocket session as seen by the hub.
type Conn struct {
	ID uuid.UUID
	// OutChan is drained by the connection's write pump. The hub closes it on Unregister.
	OutChan chan game.Event

	closed bool
}

// Hub tracks open connections and the rooms they subscribe to. It implements
// game.Broadcaster: every send is a non-blocking enqueue, so the engine never waits
// on a slow client.
type Hub struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*Conn
	rooms map[uuid.UUID]map[uuid.UUID]struct{}
	log   *logrus.Entry
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		conns: make(map[uuid.UUID]*Conn),
		rooms: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		log:   logger.WithField("component", "hub"),
	}
}

// Register opens a new connection with a fresh id.
func (h *Hub) Register() *Conn {
	c := &Conn{ID: uuid.New(), OutChan: make(chan game.Event, outboxSize)}
	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()
	return c
}

// Unregister drops the connection from every room and closes its queue.
func (h *Hub) Unregister(connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	delete(h.conns, connID)
	for room, members := range h.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	c.closed = true
	close(c.OutChan)
}

// Len reports the number of open connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// RoomSize reports how many connections are subscribed to room.
func (h *Hub) RoomSize(room uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// write enqueues ev without blocking. Assumes h.mu is held.
func (h *Hub) write(c *Conn, ev game.Event) {
	if c.closed {
		return
	}
	select {
	case c.OutChan <- ev:
	default:
		h.log.WithFields(logrus.Fields{"conn": c.ID, "event": ev.Type}).Warn("outbound queue full, dropping event")
	}
}

func (h *Hub) Send(connID uuid.UUID, ev game.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.conns[connID]; ok {
		h.write(c, ev)
	}
}

func (h *Hub) Broadcast(room uuid.UUID, ev game.Event) {
	h.BroadcastExcept(room, uuid.Nil, ev)
}

func (h *Hub) BroadcastExcept(room, exceptConnID uuid.UUID, ev game.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.rooms[room] {
		if id == exceptConnID {
			continue
		}
		if c, ok := h.conns[id]; ok {
			h.write(c, ev)
		}
	}
}

func (h *Hub) BroadcastAll(ev game.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.conns {
		h.write(c, ev)
	}
}

func (h *Hub) JoinRoom(connID, room uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[connID]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[uuid.UUID]struct{})
		h.rooms[room] = members
	}
	members[connID] = struct{}{}
}

func (h *Hub) LeaveRoom(connID, room uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) CloseRoom(room uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, room)
}

var _ game.Broadcaster = (*Hub)(nil)
