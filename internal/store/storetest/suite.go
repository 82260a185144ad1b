package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/taskrooms/taskrooms/internal/model"
	"github.com/taskrooms/taskrooms/internal/store"
)

// Run exercises a compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	// Unique test identifiers so the suite can run against a shared database.
	suffix := uuid.New().String()[:8]
	alice := "alice-" + suffix
	bob := "bob-" + suffix
	roomName := "team-" + suffix

	// Users
	ua, err := s.Users().Create(ctx, &model.User{Username: alice, PasswordHash: "x"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if ua.ID == 0 {
		t.Fatalf("CreateUser: zero id")
	}
	ub, err := s.Users().Create(ctx, &model.User{Username: bob, PasswordHash: "x"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.Users().Create(ctx, &model.User{Username: alice, PasswordHash: "x"}); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("duplicate username: want ErrConflict, got %v", err)
	}
	if got, err := s.Users().GetByUsername(ctx, alice); err != nil || got.ID != ua.ID {
		t.Fatalf("GetByUsername: got=%v err=%v", got, err)
	}
	if _, err := s.Users().GetByID(ctx, 1<<40); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetByID missing: want ErrNotFound, got %v", err)
	}

	// Rooms: creator is auto-joined, names are unique.
	room, err := s.Rooms().Create(ctx, roomName, ua.ID)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if _, err := s.Rooms().Create(ctx, roomName, ub.ID); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("duplicate room: want ErrConflict, got %v", err)
	}
	if _, err := s.Rooms().GetByName(ctx, "missing-"+suffix); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetByName missing: want ErrNotFound, got %v", err)
	}
	if ok, err := s.Rooms().IsMember(ctx, room.ID, ua.ID); err != nil || !ok {
		t.Fatalf("IsMember creator: ok=%v err=%v", ok, err)
	}
	if ok, err := s.Rooms().IsMember(ctx, room.ID, ub.ID); err != nil || ok {
		t.Fatalf("IsMember non-member: ok=%v err=%v", ok, err)
	}

	// AddMember is idempotent.
	if err := s.Rooms().AddMember(ctx, room.ID, ub.ID); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := s.Rooms().AddMember(ctx, room.ID, ub.ID); err != nil {
		t.Fatalf("AddMember twice: %v", err)
	}
	members, err := s.Rooms().Members(ctx, room.ID)
	if err != nil || len(members) != 2 {
		t.Fatalf("Members: n=%d err=%v", len(members), err)
	}
	if lst, err := s.Rooms().ListByMember(ctx, ub.ID); err != nil || len(lst) != 1 || lst[0].Name != roomName {
		t.Fatalf("ListByMember: %v err=%v", lst, err)
	}

	// Tasks: snapshot ordering is (undated last, due ascending, id ascending).
	mkDate := func(s string) *model.Date {
		d, err := model.ParseDate(s)
		if err != nil {
			t.Fatalf("ParseDate: %v", err)
		}
		return &d
	}
	t1, err := s.Tasks().Create(ctx, &model.Task{RoomID: room.ID, Text: "no due", CreatorID: ua.ID})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	t2, err := s.Tasks().Create(ctx, &model.Task{RoomID: room.ID, Text: "later", Due: mkDate("2024-01-05"), CreatorID: ua.ID})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	t3, err := s.Tasks().Create(ctx, &model.Task{RoomID: room.ID, Text: "sooner", Due: mkDate("2024-01-01"), CreatorID: ub.ID})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if t1.CreatorName != alice {
		t.Fatalf("CreatorName: got %q want %q", t1.CreatorName, alice)
	}

	list, err := s.Tasks().ListByRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("ListByRoom: %v", err)
	}
	wantOrder := []int64{t3.ID, t2.ID, t1.ID}
	if len(list) != 3 {
		t.Fatalf("ListByRoom: n=%d", len(list))
	}
	for i, want := range wantOrder {
		if list[i].ID != want {
			t.Fatalf("ListByRoom order[%d]: got %d want %d (%v)", i, list[i].ID, want, ids(list))
		}
	}

	// ToggleDone flips and records the editor.
	toggled, err := s.Tasks().ToggleDone(ctx, t1.ID, ub.ID)
	if err != nil {
		t.Fatalf("ToggleDone: %v", err)
	}
	if !toggled.Done {
		t.Fatalf("ToggleDone: done not flipped")
	}
	if toggled.LastEditorName != bob {
		t.Fatalf("ToggleDone editor: got %q want %q", toggled.LastEditorName, bob)
	}
	back, err := s.Tasks().ToggleDone(ctx, t1.ID, ua.ID)
	if err != nil || back.Done {
		t.Fatalf("ToggleDone back: done=%v err=%v", back.Done, err)
	}
	if _, err := s.Tasks().ToggleDone(ctx, 1<<40, ua.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("ToggleDone missing: want ErrNotFound, got %v", err)
	}

	// Edit overwrites text and due date, last write wins.
	edited, err := s.Tasks().Edit(ctx, t2.ID, "edited", mkDate("2024-02-02"), ub.ID)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if edited.Text != "edited" || edited.Due == nil || edited.Due.String() != "2024-02-02" {
		t.Fatalf("Edit: got %+v", edited)
	}
	cleared, err := s.Tasks().Edit(ctx, t2.ID, "edited", nil, ua.ID)
	if err != nil || cleared.Due != nil {
		t.Fatalf("Edit clear due: due=%v err=%v", cleared.Due, err)
	}

	// Delete is a hard error on a missing id.
	if err := s.Tasks().Delete(ctx, t3.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Tasks().Delete(ctx, t3.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Delete twice: want ErrNotFound, got %v", err)
	}
}

func ids(tasks []*model.Task) string {
	out := ""
	for _, t := range tasks {
		out += fmt.Sprintf("%d ", t.ID)
	}
	return out
}
