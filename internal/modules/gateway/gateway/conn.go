package gateway

import (
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// Identity is what the handshake established about a connection's owner.
// Role attributes are captured at connect time and never re-evaluated for
// the lifetime of the connection.
type Identity struct {
	UserID    string
	SessionID string
	IsAdmin   bool
	IsPremium bool
}

// Conn is one live client connection. Implementations must preserve the
// order of Emit calls on a single connection.
type Conn interface {
	ID() string
	Emit(event string, payload interface{}) error
	Close(reason string)
}

// socketConn adapts a socket.io socket to Conn.
type socketConn struct {
	sock *socketio.Socket
}

func newSocketConn(sock *socketio.Socket) *socketConn {
	return &socketConn{sock: sock}
}

func (c *socketConn) ID() string {
	return string(c.sock.Id())
}

func (c *socketConn) Emit(event string, payload interface{}) error {
	return c.sock.Emit(event, payload)
}

// Close tells the client why it is being dropped, then disconnects. The
// reason reaches the client before the transport goes away so it can
// distinguish "log in again" from "transient, retry".
func (c *socketConn) Close(reason string) {
	_ = c.sock.Emit("message", gatewayPayload{Type: reason})
	c.sock.Disconnect(true)
}
