package config

import (
	"os"
	"path/filepath"
	"testing"
)

// writeWorkspace creates root/.notebooklm-mcp/config.yaml with body.
func writeWorkspace(t *testing.T, root, body string) {
	t.Helper()
	wsDir := filepath.Join(root, WorkspaceDirName)
	if err := os.MkdirAll(wsDir, 0755); err != nil {
		t.Fatalf("failed to create workspace dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(wsDir, WorkspaceConfigFile), []byte(body), 0644); err != nil {
		t.Fatalf("failed to write workspace config: %v", err)
	}
}

func TestDiscoverWorkspace(t *testing.T) {
	t.Run("found at start", func(t *testing.T) {
		root := t.TempDir()
		writeWorkspace(t, root, "server:\n  name: test\n")

		got, err := DiscoverWorkspace(root)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != root {
			t.Errorf("expected %q, got %q", root, got)
		}
	})

	t.Run("walks up", func(t *testing.T) {
		root := t.TempDir()
		writeWorkspace(t, root, "server:\n  name: test\n")
		nested := filepath.Join(root, "notes", "drafts")
		if err := os.MkdirAll(nested, 0755); err != nil {
			t.Fatal(err)
		}

		got, err := DiscoverWorkspace(nested)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != root {
			t.Errorf("expected %q, got %q", root, got)
		}
	})

	t.Run("not found", func(t *testing.T) {
		got, err := DiscoverWorkspace(t.TempDir())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})

	t.Run("beyond max depth", func(t *testing.T) {
		root := t.TempDir()
		writeWorkspace(t, root, "server:\n  name: test\n")
		parts := []string{root}
		for i := 0; i <= MaxSearchDepth; i++ {
			parts = append(parts, "d")
		}
		deep := filepath.Join(parts...)
		if err := os.MkdirAll(deep, 0755); err != nil {
			t.Fatal(err)
		}

		got, err := DiscoverWorkspace(deep)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "" {
			t.Errorf("expected empty string beyond max depth, got %q", got)
		}
	})
}

func TestLoadWithWorkspace_DefaultsOnly(t *testing.T) {
	cfg, wsDir, err := LoadWithWorkspace("", WorkspaceOptions{Disable: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wsDir != "" {
		t.Errorf("expected empty workspace dir, got %q", wsDir)
	}
	if cfg.Server.Name != "notebooklm-mcp" {
		t.Errorf("expected default server name, got %q", cfg.Server.Name)
	}
}

func TestLoadWithWorkspace_WorkspaceOverridesDefaults(t *testing.T) {
	root := t.TempDir()
	writeWorkspace(t, root, `
poll:
  interval: "1s"
store:
  path: "data/research.db"
`)

	cfg, gotDir, err := LoadWithWorkspace("", WorkspaceOptions{ExplicitDir: root})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotDir != root {
		t.Errorf("expected workspace dir %q, got %q", root, gotDir)
	}
	if cfg.Poll.Interval != "1s" {
		t.Errorf("poll interval = %q", cfg.Poll.Interval)
	}
	want := filepath.Join(root, WorkspaceDirName, "data", "research.db")
	if cfg.Store.Path != want {
		t.Errorf("store path = %q, want %q", cfg.Store.Path, want)
	}
	if cfg.Poll.MaxAttempts != 60 {
		t.Errorf("unset field lost default: %d", cfg.Poll.MaxAttempts)
	}
}

func TestLoadWithWorkspace_ExplicitOverridesWorkspace(t *testing.T) {
	root := t.TempDir()
	writeWorkspace(t, root, `
notebooks:
  title_denylist: ["Workspace sample"]
`)
	explicitPath := filepath.Join(root, "explicit.yaml")
	explicit := `
notebooks:
  title_denylist: ["Explicit one", "Explicit two"]
`
	if err := os.WriteFile(explicitPath, []byte(explicit), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := LoadWithWorkspace(explicitPath, WorkspaceOptions{ExplicitDir: root})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Notebooks.TitleDenylist; len(got) != 2 || got[0] != "Explicit one" {
		t.Errorf("expected explicit denylist to win, got %v", got)
	}
}

func TestLoadWithWorkspace_Disabled(t *testing.T) {
	root := t.TempDir()
	writeWorkspace(t, root, "recorder:\n  enable: true\n")

	cfg, gotDir, err := LoadWithWorkspace("", WorkspaceOptions{Disable: true, ExplicitDir: root})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotDir != "" {
		t.Errorf("expected empty workspace dir with Disable, got %q", gotDir)
	}
	if cfg.Recorder.Enable {
		t.Error("workspace config applied despite Disable")
	}
}

func TestLoadWithWorkspace_InvalidWorkspaceYAML(t *testing.T) {
	root := t.TempDir()
	writeWorkspace(t, root, "poll: [unterminated")

	if _, _, err := LoadWithWorkspace("", WorkspaceOptions{ExplicitDir: root}); err == nil {
		t.Error("expected parse error")
	}
}

func TestResolveWorkspacePaths(t *testing.T) {
	base := t.TempDir()
	abs := filepath.Join(base, "elsewhere", "traces")

	cfg := Config{
		Server:   ServerConfig{LogFile: "server.log"},
		Store:    StoreConfig{Path: "~/.notebooklm-mcp/research.db"},
		Recorder: RecorderConfig{Dir: abs},
		Ledger:   LedgerConfig{RulesPath: filepath.Join("rules", "extra.mg")},
	}
	got := resolveWorkspacePaths(cfg, base)

	if want := filepath.Join(base, "server.log"); got.Server.LogFile != want {
		t.Errorf("log file = %q, want %q", got.Server.LogFile, want)
	}
	if got.Store.Path != "~/.notebooklm-mcp/research.db" {
		t.Errorf("home-relative path rewritten: %q", got.Store.Path)
	}
	if got.Recorder.Dir != abs {
		t.Errorf("absolute path rewritten: %q", got.Recorder.Dir)
	}
	if want := filepath.Join(base, "rules", "extra.mg"); got.Ledger.RulesPath != want {
		t.Errorf("rules path = %q, want %q", got.Ledger.RulesPath, want)
	}
}

func TestInitWorkspace(t *testing.T) {
	root := t.TempDir()
	if err := InitWorkspace(root); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wsDir := filepath.Join(root, WorkspaceDirName)
	if info, err := os.Stat(filepath.Join(wsDir, "data")); err != nil || !info.IsDir() {
		t.Errorf("expected data directory: %v", err)
	}
	for _, name := range []string{WorkspaceConfigFile, ".gitignore"} {
		data, err := os.ReadFile(filepath.Join(wsDir, name))
		if err != nil {
			t.Fatalf("failed to read %s: %v", name, err)
		}
		if len(data) == 0 {
			t.Errorf("expected non-empty %s", name)
		}
	}

	// The generated template must itself load cleanly.
	if _, _, err := LoadWithWorkspace("", WorkspaceOptions{ExplicitDir: root}); err != nil {
		t.Errorf("template does not load: %v", err)
	}

	if err := InitWorkspace(root); err == nil {
		t.Error("expected error when workspace already exists")
	}
}
