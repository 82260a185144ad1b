package store

import (
	"context"

	"github.com/taskrooms/taskrooms/internal/model"
)

// Store exposes persistence operations required by the broker and the HTTP
// API. Implementations live under internal/store/<driver>/ (postgres, sqlite).
//
// Every mutation is durable when the call returns; the broker relies on this
// to never broadcast a change that could still be rolled back.
type Store interface {
	Users() Users
	Rooms() Rooms
	Tasks() Tasks
}

type Users interface {
	// Create inserts a user. A duplicate username fails with model.ErrConflict.
	Create(ctx context.Context, u *model.User) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

type Rooms interface {
	// Create inserts a room with the creator as its first member. A duplicate
	// name fails with model.ErrConflict.
	Create(ctx context.Context, name string, creatorID int64) (*model.Room, error)
	GetByName(ctx context.Context, name string) (*model.Room, error)
	ListByMember(ctx context.Context, userID int64) ([]*model.Room, error)
	// AddMember is idempotent; adding an existing member is a no-op.
	AddMember(ctx context.Context, roomID, userID int64) error
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
	Members(ctx context.Context, roomID int64) ([]*model.User, error)
}

type Tasks interface {
	Create(ctx context.Context, t *model.Task) (*model.Task, error)
	GetByID(ctx context.Context, id int64) (*model.Task, error)
	// ListByRoom returns tasks ordered by due date ascending with undated
	// tasks last, ties broken by id ascending.
	ListByRoom(ctx context.Context, roomID int64) ([]*model.Task, error)
	// ToggleDone flips the done flag in a single atomic statement so that
	// concurrent toggles on the same id never lose an update.
	ToggleDone(ctx context.Context, id, editorID int64) (*model.Task, error)
	Edit(ctx context.Context, id int64, text string, due *model.Date, editorID int64) (*model.Task, error)
	// Delete removes a task by id alone; a missing id fails with
	// model.ErrNotFound rather than being a no-op.
	Delete(ctx context.Context, id int64) error
}
