package sqlite

import (
	"context"
	"sync"
	"testing"

	"github.com/taskrooms/taskrooms/internal/model"
	"github.com/taskrooms/taskrooms/internal/store"
	"github.com/taskrooms/taskrooms/internal/store/storetest"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := EnsureSchema(db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return NewWithDB(db)
}

func TestSQLiteStore_Compliance(t *testing.T) {
	storetest.Run(t, newTestStore)
}

func TestToggleDone_ConcurrentFlips(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u, err := s.Users().Create(ctx, &model.User{Username: "alice", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	room, err := s.Rooms().Create(ctx, "team", u.ID)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	task, err := s.Tasks().Create(ctx, &model.Task{RoomID: room.ID, Text: "flip me", CreatorID: u.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	const toggles = 8 // even count returns the task to its original state
	var wg sync.WaitGroup
	errs := make(chan error, toggles)
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Tasks().ToggleDone(ctx, task.ID, u.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("toggle: %v", err)
	}

	got, err := s.Tasks().GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Done {
		t.Fatalf("after %d toggles done=%v, want false", toggles, got.Done)
	}
}

func TestTaskDueDateRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u, _ := s.Users().Create(ctx, &model.User{Username: "alice", PasswordHash: "x"})
	room, _ := s.Rooms().Create(ctx, "team", u.ID)

	d, err := model.ParseDate("2024-03-01")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	task, err := s.Tasks().Create(ctx, &model.Task{RoomID: room.ID, Text: "buy milk", Due: &d, CreatorID: u.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	got, err := s.Tasks().GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Due == nil || got.Due.String() != "2024-03-01" {
		t.Fatalf("due round trip: got %v", got.Due)
	}
}
