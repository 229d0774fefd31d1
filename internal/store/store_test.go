package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"notebooklm-mcp-server/internal/notebooklm"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "research.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreSaveAndGet(t *testing.T) {
	t.Parallel()
	s := openTemp(t)
	ctx := context.Background()

	task := &ResearchTask{ID: "task-1", NotebookID: "nb", Query: "rust async", Strategy: "comprehensive", ReportID: "rep-1"}
	if err := s.Save(ctx, task); err != nil {
		t.Fatalf("Save: %v", err)
	}
	created := task.CreatedAt

	task.Status = TaskCompleted
	task.StatusCode = 2
	task.Sources = []notebooklm.ResearchSource{{Title: "A", URL: "https://a"}, {Title: "B", URL: "https://b"}}
	task.Summary = "two sources"
	if err := s.Save(ctx, task); err != nil {
		t.Fatalf("Save update: %v", err)
	}

	got, err := s.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != TaskCompleted || got.StatusCode != 2 || got.ReportID != "rep-1" {
		t.Errorf("task = %+v", got)
	}
	if len(got.Sources) != 2 || got.Sources[1].URL != "https://b" {
		t.Errorf("sources = %+v", got.Sources)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at changed on update: %v -> %v", created, got.CreatedAt)
	}
}

func TestStoreGetMissing(t *testing.T) {
	t.Parallel()
	s := openTemp(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreListFiltersByStatus(t *testing.T) {
	t.Parallel()
	s := openTemp(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i, st := range []TaskStatus{TaskImported, TaskCompleted, TaskFailed, TaskCompleted} {
		task := &ResearchTask{
			ID:         string(rune('a' + i)),
			NotebookID: "nb",
			Strategy:   "quick",
			Status:     st,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Save(ctx, task); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	all, err := s.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 4 || all[0].ID != "d" {
		t.Errorf("expected newest first, got %d tasks starting %q", len(all), all[0].ID)
	}

	completed, err := s.List(ctx, TaskCompleted, 1)
	if err != nil {
		t.Fatalf("List completed: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != "d" {
		t.Errorf("completed = %+v", completed)
	}
}

func TestStoreRejectsEmptyID(t *testing.T) {
	t.Parallel()
	s := openTemp(t)
	if err := s.Save(context.Background(), &ResearchTask{}); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestOpenInMemory(t *testing.T) {
	t.Parallel()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if err := s.Save(context.Background(), &ResearchTask{ID: "m", NotebookID: "nb", Strategy: "quick"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := Open(""); err == nil {
		t.Error("expected error for empty path")
	}
}
