package broker

import (
	"encoding/json"

	"github.com/taskrooms/taskrooms/internal/model"
)

// Inbound event names accepted from clients. The dispatch table is validated
// against this list at construction.
const (
	EvtJoin       = "join"
	EvtAddTask    = "add_task"
	EvtRemoveTask = "remove_task"
	EvtToggleDone = "toggle_done"
	EvtEditTask   = "edit_task"
	EvtTyping     = "typing"
	EvtStopTyping = "stop_typing"
)

// InboundEvents is the complete inbound event set.
var InboundEvents = []string{
	EvtJoin, EvtAddTask, EvtRemoveTask, EvtToggleDone, EvtEditTask, EvtTyping, EvtStopTyping,
}

// Outbound event names sent to clients.
const (
	EvtRoomData       = "room_data"
	EvtTaskAdded      = "task_added"
	EvtTaskRemoved    = "task_removed"
	EvtTaskToggled    = "task_toggled"
	EvtTaskEdited     = "task_edited"
	EvtNotification   = "notification"
	EvtUserTyping     = "user_typing"
	EvtUserStopTyping = "user_stop_typing"
	EvtError          = "error"
)

// Event is the outbound envelope delivered to clients.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// Envelope is the inbound wire frame: an event name plus its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// request carries the union of inbound payload fields. Pointer fields
// distinguish "absent" from zero values so missing required fields are hard
// errors.
type request struct {
	Room     *string `json:"room"`
	ID       *int64  `json:"id"`
	Text     *string `json:"text"`
	DueDate  *string `json:"due_date"`
	Username *string `json:"username"`
}

// Outbound payload shapes.

type roomData struct {
	Tasks []model.TaskPayload `json:"tasks"`
}

type taskRemoved struct {
	ID int64 `json:"id"`
}

type taskToggled struct {
	ID   int64 `json:"id"`
	Done bool  `json:"done"`
}

type taskEdited struct {
	ID      int64       `json:"id"`
	Text    string      `json:"text"`
	DueDate *model.Date `json:"due_date"`
}

type notification struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

type userTyping struct {
	Username string `json:"username"`
}

type errorData struct {
	Message string `json:"message"`
}
