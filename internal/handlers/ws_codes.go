// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes sent by the session handler.
const (
	BadSubprotocolError = 3000 // Client did not negotiate the partyrounds subprotocol.
	ServerShutdownError = 3001 // Server is draining connections.
)

// Subprotocol is the only websocket subprotocol the session endpoint speaks.
const Subprotocol = "partyrounds"
