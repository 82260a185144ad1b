package model

import (
	"fmt"
	"strings"
	"time"
)

// User is an authenticated principal.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Room groups tasks and members. Membership is a set; the room name is
// globally unique.
type Room struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Task is a single to-do item owned by a room.
type Task struct {
	ID     int64  `json:"id"`
	RoomID int64  `json:"roomId"`
	Text   string `json:"text"`
	Done   bool   `json:"done"`
	Due    *Date  `json:"dueDate,omitempty"`

	CreatorID int64 `json:"creatorId"`
	// LastEditorID is nil until the first edit; payloads fall back to the creator.
	LastEditorID *int64 `json:"lastEditorId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Usernames resolved by the store on reads; not columns of tasks.
	CreatorName    string `json:"-"`
	LastEditorName string `json:"-"`
}

// TaskPayload is the wire form of a task sent to clients.
type TaskPayload struct {
	ID             int64  `json:"id"`
	Text           string `json:"text"`
	Done           bool   `json:"done"`
	DueDate        *Date  `json:"due_date"`
	CreatedBy      string `json:"created_by"`
	LastModifiedBy string `json:"last_modified_by"`
}

// Payload converts a task to its client-facing shape.
func (t *Task) Payload() TaskPayload {
	last := t.LastEditorName
	if last == "" {
		last = t.CreatorName
	}
	return TaskPayload{
		ID:             t.ID,
		Text:           t.Text,
		Done:           t.Done,
		DueDate:        t.Due,
		CreatedBy:      t.CreatorName,
		LastModifiedBy: last,
	}
}

// Date is a calendar date without a time component. Optional dates are *Date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// ParseDate accepts a plain calendar date ("2024-03-01") or a full RFC 3339
// timestamp, keeping only the date part.
func ParseDate(s string) (Date, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: invalid date %q", ErrValidation, s)
	}
	return DateOf(t), nil
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Before reports whether d sorts earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return fmt.Errorf("%w: empty date", ErrValidation)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
