package broker

import (
	"context"
	"fmt"

	"github.com/taskrooms/taskrooms/internal/model"
	"github.com/taskrooms/taskrooms/internal/store"
)

// Gate decides room membership. It runs on every room-scoped event, not only
// join: membership may change between events, so no decision is cached.
type Gate struct {
	rooms store.Rooms
}

func NewGate(rooms store.Rooms) *Gate { return &Gate{rooms: rooms} }

// Authorize looks the room up by name and checks that principal is a member.
// Returns the room handle on success, model.ErrNotFound for an unknown room,
// model.ErrForbidden for a non-member. Read-only; no side effects.
func (g *Gate) Authorize(ctx context.Context, principal *model.User, roomName string) (*model.Room, error) {
	room, err := g.rooms.GetByName(ctx, roomName)
	if err != nil {
		return nil, err
	}
	ok, err := g.rooms.IsMember(ctx, room.ID, principal.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a member of %q", model.ErrForbidden, principal.Username, roomName)
	}
	return room, nil
}
