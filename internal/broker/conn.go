package broker

import (
	"github.com/taskrooms/taskrooms/internal/model"
)

// Conn is a live client connection as the broker sees it: an identity, the
// principal bound at authentication, and a non-blocking outbound path.
// The websocket transport implements it; tests use an in-memory fake.
type Conn interface {
	// ID is a stable transport-level identifier, unique per connection.
	ID() string
	// Principal returns the user bound to this connection at authentication.
	// It never changes for the lifetime of the connection.
	Principal() *model.User
	// Send enqueues an event for delivery. It must not block: a full outbound
	// buffer returns false, and the transport is expected to drop the
	// connection rather than stall the broker.
	Send(evt Event) bool
}
