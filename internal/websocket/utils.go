package websocket

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stemsi/exstem-rmib/internal/rmib"
)

const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// ErrorFor builds an ErrorResponse. Validation errors carry their issues.
func ErrorFor(err error) ErrorResponse {
	resp := ErrorResponse{Event: EventError, Error: err.Error()}
	var ve *rmib.ValidationError
	if errors.As(err, &ve) {
		resp.Issues = ve.Issues
	}
	return resp
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(readWait))
	return conn.ReadJSON(v)
}
