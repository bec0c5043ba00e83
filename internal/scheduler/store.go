package scheduler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrTaskNotFound is returned when no task matches the requested ID.
var ErrTaskNotFound = errors.New("task not found")

const taskColumns = `id, name, schedule_json, payload_json, enabled, created_at, created_by, updated_at`

const executionColumns = `id, task_id, scheduled_at, started_at, completed_at, status, result`

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists tasks and their executions in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (or creates) the scheduler database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		schedule_json TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		created_by TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		scheduled_at TEXT NOT NULL,
		started_at TEXT,
		completed_at TEXT,
		status TEXT NOT NULL,
		result TEXT,
		FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_executions_task_id ON executions(task_id);
	CREATE INDEX IF NOT EXISTS idx_executions_scheduled_at ON executions(scheduled_at);
	`)
	return err
}

// NewID generates a UUIDv7, falling back to v4.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// CreateTask persists a new task, assigning its ID and timestamps.
func (s *Store) CreateTask(t *Task) error {
	if t.ID == "" {
		t.ID = NewID()
	}
	now := s.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	schedule, payload, err := encodeTask(t)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, schedule, payload, t.Enabled,
		formatTime(t.CreatedAt), t.CreatedBy, formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.Name, err)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (s *Store) GetTask(id string) (*Task, error) {
	t, err := scanTask(s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t, err
}

// GetTaskByName retrieves a task by name. It returns nil, nil when no
// task has that name.
func (s *Store) GetTaskByName(name string) (*Task, error) {
	t, err := scanTask(s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// ListTasks returns tasks ordered by creation time, optionally only the
// enabled ones.
func (s *Store) ListTasks(enabledOnly bool) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTask replaces the stored definition of an existing task.
func (s *Store) UpdateTask(t *Task) error {
	t.UpdatedAt = s.now()

	schedule, payload, err := encodeTask(t)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`
		UPDATE tasks SET name = ?, schedule_json = ?, payload_json = ?, enabled = ?, updated_at = ?
		WHERE id = ?
	`, t.Name, schedule, payload, t.Enabled, formatTime(t.UpdatedAt), t.ID)
	if err != nil {
		return err
	}
	return requireRow(res, t.ID)
}

// DeleteTask removes a task and, by cascade, its executions.
func (s *Store) DeleteTask(id string) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// CreateExecution records a new execution.
func (s *Store) CreateExecution(e *Execution) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	_, err := s.db.Exec(`INSERT INTO executions (`+executionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TaskID, formatTime(e.ScheduledAt), formatTimePtr(e.StartedAt), formatTimePtr(e.CompletedAt),
		e.Status, e.Result)
	return err
}

// UpdateExecution stores the progress of an execution.
func (s *Store) UpdateExecution(e *Execution) error {
	_, err := s.db.Exec(`
		UPDATE executions SET started_at = ?, completed_at = ?, status = ?, result = ?
		WHERE id = ?
	`, formatTimePtr(e.StartedAt), formatTimePtr(e.CompletedAt), e.Status, e.Result, e.ID)
	return err
}

// ListExecutions returns the most recent executions of a task, newest
// first. limit <= 0 means 100.
func (s *Store) ListExecutions(taskID string, limit int) ([]*Execution, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT `+executionColumns+` FROM executions
		WHERE task_id = ? ORDER BY scheduled_at DESC LIMIT ?`, taskID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var execs []*Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, e)
	}
	return execs, rows.Err()
}

// PruneExecutions deletes executions scheduled before cutoff and returns
// how many were removed.
func (s *Store) PruneExecutions(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM executions WHERE scheduled_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*Task, error) {
	var (
		t                    Task
		schedule, payload    string
		createdAt, updatedAt string
	)
	if err := row.Scan(&t.ID, &t.Name, &schedule, &payload, &t.Enabled, &createdAt, &t.CreatedBy, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(schedule), &t.Schedule); err != nil {
		return nil, fmt.Errorf("task %s: unmarshal schedule: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(payload), &t.Payload); err != nil {
		return nil, fmt.Errorf("task %s: unmarshal payload: %w", t.ID, err)
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

func scanExecution(row scanner) (*Execution, error) {
	var (
		e                              Execution
		scheduledAt                    string
		startedAt, completedAt, result sql.NullString
	)
	if err := row.Scan(&e.ID, &e.TaskID, &scheduledAt, &startedAt, &completedAt, &e.Status, &result); err != nil {
		return nil, err
	}
	e.ScheduledAt = parseTime(scheduledAt)
	if startedAt.Valid {
		t := parseTime(startedAt.String)
		e.StartedAt = &t
	}
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		e.CompletedAt = &t
	}
	e.Result = result.String
	return &e, nil
}

func encodeTask(t *Task) (schedule, payload string, err error) {
	sb, err := json.Marshal(t.Schedule)
	if err != nil {
		return "", "", fmt.Errorf("marshal schedule: %w", err)
	}
	pb, err := json.Marshal(t.Payload)
	if err != nil {
		return "", "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(sb), string(pb), nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
