package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/taskrooms/taskrooms/internal/model"
	"github.com/taskrooms/taskrooms/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies
// connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a native Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Users() store.Users { return &users{db: s.db} }
func (s *pgStore) Rooms() store.Rooms { return &rooms{db: s.db} }
func (s *pgStore) Tasks() store.Tasks { return &tasks{db: s.db} }

// HealthPing implements health checking for the Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema creates core tables if they do not exist. Production deploys
// run migrations out of band; this keeps dev and test setups self-contained.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
            username TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS rooms (
            id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
            name TEXT NOT NULL UNIQUE,
            created_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS room_members (
            user_id BIGINT NOT NULL REFERENCES users(id),
            room_id BIGINT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
            PRIMARY KEY(user_id, room_id)
        )`,
		`CREATE TABLE IF NOT EXISTS tasks (
            id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
            room_id BIGINT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
            text TEXT NOT NULL,
            done BOOLEAN NOT NULL DEFAULT FALSE,
            due_date DATE,
            creator_id BIGINT NOT NULL REFERENCES users(id),
            last_editor_id BIGINT REFERENCES users(id),
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_room ON tasks(room_id)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	now := time.Now().UTC()
	var id int64
	err := u.db.QueryRowContext(ctx, `
        INSERT INTO users (username, password_hash, created_at)
        VALUES ($1,$2,$3)
        RETURNING id
    `, m.Username, m.PasswordHash, now).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username %q taken", model.ErrConflict, m.Username)
		}
		return nil, err
	}
	out := *m
	out.ID = id
	out.CreatedAt = now
	return &out, nil
}

func (u *users) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE id=$1`, id)
	return scanUser(row)
}

func (u *users) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE username=$1`, username)
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
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	var id int64
	err = tx.QueryRowContext(ctx, `
        INSERT INTO rooms (name, created_at) VALUES ($1,$2) RETURNING id
    `, name, now).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: room %q exists", model.ErrConflict, name)
		}
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO room_members (user_id, room_id) VALUES ($1,$2)`, creatorID, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &model.Room{ID: id, Name: name, CreatedAt: now}, nil
}

func (r *rooms) GetByName(ctx context.Context, name string) (*model.Room, error) {
	var out model.Room
	row := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM rooms WHERE name=$1`, name)
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
        WHERE m.user_id = $1
        ORDER BY r.name
    `, userID)
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
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO room_members (user_id, room_id) VALUES ($1,$2)
        ON CONFLICT (user_id, room_id) DO NOTHING
    `, userID, roomID)
	return err
}

func (r *rooms) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM room_members WHERE room_id=$1 AND user_id=$2`, roomID, userID).Scan(&one)
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
        WHERE m.room_id = $1
        ORDER BY u.username
    `, roomID)
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
	var id int64
	err := t.db.QueryRowContext(ctx, `
        INSERT INTO tasks (room_id, text, done, due_date, creator_id, last_editor_id, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id
    `, m.RoomID, m.Text, m.Done, dateArg(m.Due), m.CreatorID, m.CreatorID, now, now).Scan(&id)
	if err != nil {
		return nil, err
	}
	return t.GetByID(ctx, id)
}

func (t *tasks) GetByID(ctx context.Context, id int64) (*model.Task, error) {
	row := t.db.QueryRowContext(ctx, taskColumns+` WHERE t.id = $1`, id)
	return scanTask(row.Scan)
}

func (t *tasks) ListByRoom(ctx context.Context, roomID int64) ([]*model.Task, error) {
	rows, err := t.db.QueryContext(ctx,
		taskColumns+` WHERE t.room_id = $1 ORDER BY (t.due_date IS NULL), t.due_date, t.id`, roomID)
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
	// Atomic per-row flip; concurrent toggles serialize on the row lock and
	// each observe the other's write.
	var done bool
	err := t.db.QueryRowContext(ctx, `
        UPDATE tasks SET done = NOT done, last_editor_id = $1, updated_at = $2
        WHERE id = $3
        RETURNING done
    `, editorID, time.Now().UTC(), id).Scan(&done)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: task %d", model.ErrNotFound, id)
		}
		return nil, err
	}
	task, err := t.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	task.Done = done
	return task, nil
}

func (t *tasks) Edit(ctx context.Context, id int64, text string, due *model.Date, editorID int64) (*model.Task, error) {
	res, err := t.db.ExecContext(ctx, `
        UPDATE tasks SET text = $1, due_date = $2, last_editor_id = $3, updated_at = $4
        WHERE id = $5
    `, text, dateArg(due), editorID, time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: task %d", model.ErrNotFound, id)
	}
	return t.GetByID(ctx, id)
}

func (t *tasks) Delete(ctx context.Context, id int64) error {
	res, err := t.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
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
	var due sql.NullTime
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
		d := model.DateOf(due.Time)
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
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
