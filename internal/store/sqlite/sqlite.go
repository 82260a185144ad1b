package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskrooms/taskrooms/internal/model"
	"github.com/taskrooms/taskrooms/internal/store"
)

// NewWithDB constructs a SQLite store backed by an existing connection.
// Callers are expected to have applied the schema (EnsureSchema).
func NewWithDB(db *sql.DB) store.Store { return &sqliteStore{db: db} }

// New opens the database at path, applies the schema and returns the store.
func New(path string) (store.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewWithDB(db), nil
}

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Users() store.Users { return &users{db: s.db} }
func (s *sqliteStore) Rooms() store.Rooms { return &rooms{db: s.db} }
func (s *sqliteStore) Tasks() store.Tasks { return &tasks{db: s.db} }

// HealthPing implements health checking for the SQLite-backed store.
func (s *sqliteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	now := time.Now().UTC()
	res, err := u.db.ExecContext(ctx, `INSERT INTO users (username, password_hash, created_at) VALUES (?,?,?)`,
		m.Username, m.PasswordHash, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username %q taken", model.ErrConflict, m.Username)
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	out := *m
	out.ID = id
	out.CreatedAt = now
	return &out, nil
}

func (u *users) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (u *users) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*model.User, error) {
	var out model.User
	if err := row.Scan(&out.ID, &out.Username, &out.PasswordHash, &out.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user", model.ErrNotFound)
		}
		return nil, err
	}
	return &out, nil
}

// --- Rooms ---

type rooms struct{ db *sql.DB }

func (r *rooms) Create(ctx context.Context, name string, creatorID int64) (*model.Room, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `INSERT INTO rooms (name, created_at) VALUES (?,?)`, name, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: room %q exists", model.ErrConflict, name)
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO room_members (user_id, room_id) VALUES (?,?)`, creatorID, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &model.Room{ID: id, Name: name, CreatedAt: now}, nil
}

func (r *rooms) GetByName(ctx context.Context, name string) (*model.Room, error) {
	var out model.Room
	row := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM rooms WHERE name = ?`, name)
	if err := row.Scan(&out.ID, &out.Name, &out.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: room %q", model.ErrNotFound, name)
		}
		return nil, err
	}
	return &out, nil
}

func (r *rooms) ListByMember(ctx context.Context, userID int64) ([]*model.Room, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT r.id, r.name, r.created_at
        FROM rooms r
        JOIN room_members m ON m.room_id = r.id
        WHERE m.user_id = ?
        ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Room
	for rows.Next() {
		var rm model.Room
		if err := rows.Scan(&rm.ID, &rm.Name, &rm.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rm)
	}
	return out, rows.Err()
}

func (r *rooms) AddMember(ctx context.Context, roomID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO room_members (user_id, room_id) VALUES (?,?) ON CONFLICT DO NOTHING`,
		userID, roomID)
	return err
}

func (r *rooms) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM room_members WHERE room_id = ? AND user_id = ?`, roomID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *rooms) Members(ctx context.Context, roomID int64) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT u.id, u.username, u.password_hash, u.created_at
        FROM users u
        JOIN room_members m ON m.user_id = u.id
        WHERE m.room_id = ?
        ORDER BY u.username`, roomID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

// --- Tasks ---

type tasks struct{ db *sql.DB }

const taskColumns = `
    SELECT t.id, t.room_id, t.text, t.done, t.due_date, t.creator_id, t.last_editor_id,
           t.created_at, t.updated_at, c.username, e.username
    FROM tasks t
    JOIN users c ON c.id = t.creator_id
    LEFT JOIN users e ON e.id = t.last_editor_id`

func (t *tasks) Create(ctx context.Context, m *model.Task) (*model.Task, error) {
	now := time.Now().UTC()
	res, err := t.db.ExecContext(ctx, `
        INSERT INTO tasks (room_id, text, done, due_date, creator_id, last_editor_id, created_at, updated_at)
        VALUES (?,?,?,?,?,?,?,?)`,
		m.RoomID, m.Text, m.Done, dateArg(m.Due), m.CreatorID, m.CreatorID, now, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return t.GetByID(ctx, id)
}

func (t *tasks) GetByID(ctx context.Context, id int64) (*model.Task, error) {
	row := t.db.QueryRowContext(ctx, taskColumns+` WHERE t.id = ?`, id)
	return scanTask(row.Scan)
}

func (t *tasks) ListByRoom(ctx context.Context, roomID int64) ([]*model.Task, error) {
	rows, err := t.db.QueryContext(ctx,
		taskColumns+` WHERE t.room_id = ? ORDER BY (t.due_date IS NULL), t.due_date, t.id`, roomID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Task
	for rows.Next() {
		task, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func (t *tasks) ToggleDone(ctx context.Context, id, editorID int64) (*model.Task, error) {
	// Single statement so concurrent toggles on the same id each flip exactly
	// once; the fresh done value is read back inside the same transaction.
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET done = NOT done, last_editor_id = ?, updated_at = ? WHERE id = ?`,
		editorID, time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: task %d", model.ErrNotFound, id)
	}
	row := tx.QueryRowContext(ctx, taskColumns+` WHERE t.id = ?`, id)
	task, err := scanTask(row.Scan)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return task, nil
}

func (t *tasks) Edit(ctx context.Context, id int64, text string, due *model.Date, editorID int64) (*model.Task, error) {
	res, err := t.db.ExecContext(ctx,
		`UPDATE tasks SET text = ?, due_date = ?, last_editor_id = ?, updated_at = ? WHERE id = ?`,
		text, dateArg(due), editorID, time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: task %d", model.ErrNotFound, id)
	}
	return t.GetByID(ctx, id)
}

func (t *tasks) Delete(ctx context.Context, id int64) error {
	res, err := t.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: task %d", model.ErrNotFound, id)
	}
	return nil
}

// helpers

func scanTask(scan func(dest ...any) error) (*model.Task, error) {
	var m model.Task
	var due sql.NullString
	var editorID sql.NullInt64
	var editorName sql.NullString
	err := scan(&m.ID, &m.RoomID, &m.Text, &m.Done, &due, &m.CreatorID, &editorID,
		&m.CreatedAt, &m.UpdatedAt, &m.CreatorName, &editorName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: task", model.ErrNotFound)
		}
		return nil, err
	}
	if due.Valid {
		d, err := model.ParseDate(due.String)
		if err != nil {
			return nil, err
		}
		m.Due = &d
	}
	if editorID.Valid {
		m.LastEditorID = &editorID.Int64
	}
	if editorName.Valid {
		m.LastEditorName = editorName.String
	}
	return &m, nil
}

func dateArg(d *model.Date) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite does not export typed constraint errors; match the
	// SQLITE_CONSTRAINT_UNIQUE message text.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
