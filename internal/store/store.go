package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"notebooklm-mcp-server/internal/notebooklm"
)

// TaskStatus is the local lifecycle of a research task. It is coarser than
// the remote status code, which is kept alongside.
type TaskStatus string

const (
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskImported  TaskStatus = "imported"
	TaskFailed    TaskStatus = "failed"
)

// ErrNotFound is returned when no task has the requested id.
var ErrNotFound = errors.New("research task not found")

// ResearchTask is the durable snapshot of one research run. It carries
// enough to re-issue the import after a restart.
type ResearchTask struct {
	ID         string                      `json:"id"`
	NotebookID string                      `json:"notebookId"`
	Query      string                      `json:"query"`
	Strategy   string                      `json:"strategy"`
	ReportID   string                      `json:"reportId,omitempty"`
	Status     TaskStatus                  `json:"status"`
	StatusCode int                         `json:"statusCode"`
	Sources    []notebooklm.ResearchSource `json:"sources"`
	Summary    string                      `json:"summary,omitempty"`
	Error      string                      `json:"error,omitempty"`
	CreatedAt  time.Time                   `json:"createdAt"`
	UpdatedAt  time.Time                   `json:"updatedAt"`
}

// Store wraps the SQLite database holding research tasks.
type Store struct {
	db *sql.DB
}

// Open initializes the store at path. ":memory:" opens a private
// in-memory database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS research_tasks (
			id TEXT PRIMARY KEY,
			notebook_id TEXT NOT NULL,
			query TEXT,
			strategy TEXT NOT NULL,
			report_id TEXT,
			status TEXT NOT NULL,
			status_code INTEGER DEFAULT 0,
			sources TEXT,
			summary TEXT,
			error TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_research_status ON research_tasks(status);`,
		`CREATE INDEX IF NOT EXISTS idx_research_notebook ON research_tasks(notebook_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("schema apply failed: %w", err)
		}
	}
	return nil
}

// Close shuts down the store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save inserts or replaces a task. CreatedAt is set on first insert and
// preserved afterwards.
func (s *Store) Save(ctx context.Context, task *ResearchTask) error {
	if task.ID == "" {
		return errors.New("task id required")
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = TaskRunning
	}
	if task.Sources == nil {
		task.Sources = []notebooklm.ResearchSource{}
	}
	sources, err := json.Marshal(task.Sources)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO research_tasks
		(id, notebook_id, query, strategy, report_id, status, status_code, sources, summary, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			notebook_id=excluded.notebook_id, query=excluded.query, strategy=excluded.strategy,
			report_id=excluded.report_id, status=excluded.status, status_code=excluded.status_code,
			sources=excluded.sources, summary=excluded.summary, error=excluded.error,
			updated_at=excluded.updated_at`,
		task.ID, task.NotebookID, task.Query, task.Strategy, task.ReportID, string(task.Status), task.StatusCode,
		string(sources), task.Summary, task.Error, task.CreatedAt, task.UpdatedAt,
	)
	return err
}

const taskColumns = `id, notebook_id, query, strategy, report_id, status, status_code, sources, summary, error, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row scanner) (*ResearchTask, error) {
	var (
		t                                 ResearchTask
		status                            string
		query, reportID, summary, errText sql.NullString
		sources                           sql.NullString
	)
	if err := row.Scan(&t.ID, &t.NotebookID, &query, &t.Strategy, &reportID, &status, &t.StatusCode,
		&sources, &summary, &errText, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = TaskStatus(status)
	t.Query, t.ReportID, t.Summary, t.Error = query.String, reportID.String, summary.String, errText.String
	t.Sources = []notebooklm.ResearchSource{}
	if sources.Valid && sources.String != "" {
		if err := json.Unmarshal([]byte(sources.String), &t.Sources); err != nil {
			return nil, fmt.Errorf("decode sources of %s: %w", t.ID, err)
		}
	}
	return &t, nil
}

// Get loads a task by id.
func (s *Store) Get(ctx context.Context, id string) (*ResearchTask, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM research_tasks WHERE id=?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, err
}

// List returns recent tasks, newest first. An empty status lists all.
func (s *Store) List(ctx context.Context, status TaskStatus, limit int) ([]ResearchTask, error) {
	query := `SELECT ` + taskColumns + ` FROM research_tasks`
	var args []interface{}
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []ResearchTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}
