package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// readWait bounds how long a connection may stay silent; clients ping.
	readWait = 5 * time.Minute
)

// WriteJSON sends a strongly-typed response payload over the WebSocket.
// gorilla connections allow one concurrent writer; callers serialize writes.
func WriteJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, code, errMsg string) error {
	return WriteJSON(conn, ErrorResponse{
		Event: EventError,
		Code:  code,
		Error: errMsg,
	})
}

// ReadMessage reads one text frame. It sets a read deadline.
func ReadMessage(conn *websocket.Conn) ([]byte, error) {
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	_, msg, err := conn.ReadMessage()
	return msg, err
}
