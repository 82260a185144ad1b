package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/taskrooms/taskrooms/internal/api/respond"
	"github.com/taskrooms/taskrooms/internal/auth"
	"github.com/taskrooms/taskrooms/internal/model"
	"github.com/taskrooms/taskrooms/internal/store"
)

// RoomHandler exposes room listing, creation and invitation. Every endpoint
// resolves the acting principal from the request; nothing reads ambient state.
type RoomHandler struct {
	auth  auth.Authenticator
	store store.Store
}

func NewRoomHandler(a auth.Authenticator, s store.Store) *RoomHandler {
	return &RoomHandler{auth: a, store: s}
}

func (h *RoomHandler) principal(r *http.Request) (*model.User, error) {
	return h.auth.Principal(r.Context(), bearerToken(r))
}

// ListRooms GET /api/rooms — rooms the caller belongs to.
func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	principal, err := h.principal(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rooms, err := h.store.Rooms().ListByMember(r.Context(), principal.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"rooms": rooms, "count": len(rooms)})
}

// CreateRoom POST /api/rooms — creator becomes the first member.
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	principal, err := h.principal(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respond.WriteBadRequest(w, "room name cannot be empty")
		return
	}
	room, err := h.store.Rooms().Create(r.Context(), name, principal.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, room)
}

// Invite POST /api/rooms/{name}/invite — member-only; inviting an existing
// member is a no-op.
func (h *RoomHandler) Invite(w http.ResponseWriter, r *http.Request) {
	principal, err := h.principal(r)
	if err != nil {
		writeError(w, err)
		return
	}
	roomName := mux.Vars(r)["name"]
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}

	room, err := h.store.Rooms().GetByName(r.Context(), roomName)
	if err != nil {
		writeError(w, err)
		return
	}
	ok, err := h.store.Rooms().IsMember(r.Context(), room.ID, principal.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		respond.WriteForbidden(w, "not a member of this room")
		return
	}

	invitee, err := h.store.Users().GetByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.Rooms().AddMember(r.Context(), room.ID, invitee.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
