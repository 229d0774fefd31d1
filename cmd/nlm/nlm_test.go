package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"notebooklm-mcp-server/internal/app"
	"notebooklm-mcp-server/internal/config"
	"notebooklm-mcp-server/internal/notebooklm"
	"notebooklm-mcp-server/internal/research"
	"notebooklm-mcp-server/internal/store"
)

// useTestRuntime points openRuntime at a throwaway config with a file-backed
// research store and returns that store's path.
func useTestRuntime(t *testing.T) string {
	t.Helper()
	t.Setenv("NOTEBOOKLM_COOKIES", "")
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Auth.CredentialsPath = filepath.Join(dir, "auth.json")
	cfg.Store.Path = filepath.Join(dir, "research.db")

	prev := openRuntime
	openRuntime = func() (*app.Runtime, error) { return app.New(cfg) }
	t.Cleanup(func() {
		openRuntime = prev
		jsonOutput = false
	})
	return cfg.Store.Path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestArgumentValidation(t *testing.T) {
	useTestRuntime(t)
	tests := []struct {
		name string
		args []string
	}{
		{"research needs topic", []string{"research", "nb1"}},
		{"artifact needs kind", []string{"artifact", "nb1"}},
		{"import-retry needs task", []string{"import-retry"}},
		{"notebooks takes no args", []string{"notebooks", "extra"}},
		{"bad strategy", []string{"research", "nb1", "topic", "--strategy", "slow"}},
		{"bad artifact config", []string{"artifact", "nb1", "audio", "--config", "[1]"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNotebooksWithoutCredentials(t *testing.T) {
	useTestRuntime(t)
	_, err := run(t, "notebooks")
	if err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Errorf("err = %v", err)
	}
}

func TestTasksCommand(t *testing.T) {
	path := useTestRuntime(t)

	st, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, task := range []*store.ResearchTask{
		{ID: "task-a", NotebookID: "nb", Query: "fusion", Status: store.TaskImported},
		{ID: "task-b", NotebookID: "nb", Query: "fission", Status: store.TaskFailed, Error: "poll timeout"},
	} {
		if err := st.Save(ctx, task); err != nil {
			t.Fatal(err)
		}
	}
	st.Close()

	out, err := run(t, "tasks", "--status", "failed")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "task-b") || strings.Contains(out, "task-a") {
		t.Errorf("output = %s", out)
	}

	out, err = run(t, "tasks", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var tasks []store.ResearchTask
	if err := json.Unmarshal([]byte(out), &tasks); err != nil {
		t.Fatalf("json output: %v\n%s", err, out)
	}
	if len(tasks) != 2 {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestParseArtifactConfig(t *testing.T) {
	cfg, err := parseArtifactConfig(`{"source_ids":["s1"]}`)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cfg["source_ids"]; !ok {
		t.Errorf("cfg = %v", cfg)
	}
	if cfg, err := parseArtifactConfig(""); err != nil || len(cfg) != 0 {
		t.Errorf("empty config = %v, %v", cfg, err)
	}
}

func TestRenderers(t *testing.T) {
	var buf bytes.Buffer

	renderNotebooks(&buf, nil)
	if !strings.Contains(buf.String(), "No notebooks") {
		t.Errorf("empty notebooks = %q", buf.String())
	}

	buf.Reset()
	renderNotebooks(&buf, []notebooklm.Notebook{{ID: "nb1", Title: strings.Repeat("t", 80), Icon: "📓"}})
	if !strings.Contains(buf.String(), "nb1") || !strings.Contains(buf.String(), "...") {
		t.Errorf("notebooks = %q", buf.String())
	}

	buf.Reset()
	renderResearch(&buf, research.Result{
		TaskID:      "task-1",
		SourceCount: 1,
		Summary:     "Findings",
		Sources:     []notebooklm.ResearchSource{{Title: "Paper", URL: "https://example.com"}},
	})
	for _, want := range []string{"task-1", "Findings", "Paper", "https://example.com"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("research output missing %q: %s", want, buf.String())
		}
	}

	buf.Reset()
	renderTasks(&buf, []store.ResearchTask{{ID: "t1", Status: "odd", UpdatedAt: time.Now()}})
	if !strings.Contains(buf.String(), "odd") {
		t.Errorf("tasks = %q", buf.String())
	}
}
