package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// WorkspaceDirName is the directory name for project-level config.
	WorkspaceDirName = ".notebooklm-mcp"
	// WorkspaceConfigFile is the config file name inside the workspace directory.
	WorkspaceConfigFile = "config.yaml"
	// MaxSearchDepth limits how many parent directories to walk when discovering a workspace.
	MaxSearchDepth = 10
)

// WorkspaceOptions controls workspace discovery behavior.
type WorkspaceOptions struct {
	// Disable skips workspace discovery entirely (--no-workspace flag).
	Disable bool
	// ExplicitDir uses this directory as workspace root instead of walking up.
	ExplicitDir string
}

// Config captures all tunable settings for the NotebookLM MCP server and CLI.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Client    ClientConfig    `yaml:"client"`
	RPC       RPCConfig       `yaml:"rpc"`
	Poll      PollConfig      `yaml:"poll"`
	Notebooks NotebooksConfig `yaml:"notebooks"`
	Browser   BrowserConfig   `yaml:"browser"`
	Store     StoreConfig     `yaml:"store"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	MCP       MCPConfig       `yaml:"mcp"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	LogFile string `yaml:"log_file"`
}

// AuthConfig says where credentials live.
type AuthConfig struct {
	// Path to auth.json written by the login flow. "~" expands to the home dir.
	CredentialsPath string `yaml:"credentials_path"`
}

// ClientConfig tunes the HTTP transport.
type ClientConfig struct {
	BaseURL    string `yaml:"base_url"`
	BuildLabel string `yaml:"build_label"`
	Language   string `yaml:"language"`
	UserAgent  string `yaml:"user_agent"`
	// Per-request timeout (e.g., "60s").
	Timeout string `yaml:"timeout"`
}

// RPCConfig overrides wire method ids by logical name, e.g.
// list_notebooks: wXbhsf. The ids change when the web client is rebuilt.
type RPCConfig struct {
	Methods map[string]string `yaml:"methods"`
}

// PollConfig bounds every long-running remote operation.
type PollConfig struct {
	Interval    string `yaml:"interval"`
	MaxAttempts int    `yaml:"max_attempts"`
	// RetryNotFound keeps polling when a task is missing from the listing.
	RetryNotFound *bool `yaml:"retry_not_found"`
}

type NotebooksConfig struct {
	// TitleDenylist hides the service's sample notebooks from listings.
	TitleDenylist []string `yaml:"title_denylist"`
}

// BrowserConfig configures how we attach to or launch Chrome for login.
type BrowserConfig struct {
	// Control endpoint (e.g., ws://localhost:9222). When empty Chrome is launched.
	DebuggerURL string `yaml:"debugger_url"`
	// Optional Chrome binary and flags, e.g. ["/usr/bin/chromium", "--no-sandbox"].
	Launch []string `yaml:"launch"`
	// Headless defaults to false: login needs a visible window.
	Headless *bool `yaml:"headless"`
	// How long to wait for the user to finish signing in (e.g., "5m").
	LoginTimeout string `yaml:"login_timeout"`
	// Navigation timeout for the login page (e.g., "30s").
	NavigationTimeout string `yaml:"navigation_timeout"`
}

// StoreConfig points at the SQLite research task store. Empty disables it.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig controls the embedded deductive ledger.
type LedgerConfig struct {
	Enable          bool   `yaml:"enable"`
	RulesPath       string `yaml:"rules_path"`
	FactBufferLimit int    `yaml:"fact_buffer_limit"`
}

// RecorderConfig controls RPC exchange traces.
type RecorderConfig struct {
	Enable   bool   `yaml:"enable"`
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

type MCPConfig struct {
	// When set, starts an SSE server on this port instead of stdio-only.
	SSEPort int `yaml:"sse_port"`
	// Metrics exposes /metrics on the SSE server.
	Metrics bool `yaml:"metrics"`
}

// DefaultConfig provides reasonable defaults for local use.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:    "notebooklm-mcp",
			Version: "0.3.0",
			LogFile: "notebooklm-mcp.log",
		},
		Auth: AuthConfig{
			CredentialsPath: "~/.notebooklm-mcp/auth.json",
		},
		Client: ClientConfig{
			BaseURL:  "https://notebooklm.google.com",
			Language: "en",
			Timeout:  "60s",
		},
		Poll: PollConfig{
			Interval:    "5s",
			MaxAttempts: 60,
		},
		Browser: BrowserConfig{
			LoginTimeout:      "5m",
			NavigationTimeout: "30s",
		},
		Store: StoreConfig{
			Path: "~/.notebooklm-mcp/research.db",
		},
		Ledger: LedgerConfig{
			Enable:          true,
			FactBufferLimit: 4096,
		},
		Recorder: RecorderConfig{
			Enable:   false,
			Dir:      "traces",
			MaxBytes: 10 << 20,
		},
	}
}

// Load reads YAML config from disk and overlays defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, errors.New("config path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// DiscoverWorkspace walks up from startDir looking for a .notebooklm-mcp/config.yaml file.
// Returns the workspace root directory or empty string if not found.
func DiscoverWorkspace(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving start directory: %w", err)
	}

	for i := 0; i < MaxSearchDepth; i++ {
		candidate := filepath.Join(dir, WorkspaceDirName, WorkspaceConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

// LoadWithWorkspace implements multi-layer config merge:
//
//	DefaultConfig() <- .notebooklm-mcp/config.yaml <- explicit --config
//
// Returns the merged config and the workspace directory (empty if none found).
func LoadWithWorkspace(explicitConfig string, opts WorkspaceOptions) (Config, string, error) {
	cfg := DefaultConfig()
	wsDir := ""

	if !opts.Disable {
		if opts.ExplicitDir != "" {
			candidate := filepath.Join(opts.ExplicitDir, WorkspaceDirName, WorkspaceConfigFile)
			if _, statErr := os.Stat(candidate); statErr == nil {
				wsDir = opts.ExplicitDir
			}
		} else {
			cwd, err := os.Getwd()
			if err != nil {
				return cfg, "", fmt.Errorf("getting working directory: %w", err)
			}
			if wsDir, err = DiscoverWorkspace(cwd); err != nil {
				return cfg, "", fmt.Errorf("discovering workspace: %w", err)
			}
		}

		if wsDir != "" {
			wsConfigPath := filepath.Join(wsDir, WorkspaceDirName, WorkspaceConfigFile)
			raw, err := os.ReadFile(wsConfigPath)
			if err != nil {
				return cfg, "", fmt.Errorf("reading workspace config %s: %w", wsConfigPath, err)
			}
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, "", fmt.Errorf("parsing workspace config %s: %w", wsConfigPath, err)
			}
			cfg = resolveWorkspacePaths(cfg, filepath.Join(wsDir, WorkspaceDirName))
		}
	}

	if explicitConfig != "" {
		raw, err := os.ReadFile(explicitConfig)
		if err != nil {
			return cfg, wsDir, fmt.Errorf("reading explicit config %s: %w", explicitConfig, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, wsDir, fmt.Errorf("parsing explicit config %s: %w", explicitConfig, err)
		}
	}

	return cfg, wsDir, cfg.Validate()
}

// InitWorkspace creates a .notebooklm-mcp/ directory with a template config at root.
func InitWorkspace(root string) error {
	wsDir := filepath.Join(root, WorkspaceDirName)

	if _, err := os.Stat(wsDir); err == nil {
		return fmt.Errorf("workspace directory already exists: %s", wsDir)
	}
	if err := os.MkdirAll(filepath.Join(wsDir, "data"), 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", wsDir, err)
	}

	templateConfig := `# Project-level NotebookLM MCP configuration
# Values here override defaults but are overridden by --config.

# poll:
#   interval: "5s"
#   max_attempts: 60
#   retry_not_found: true

# rpc:
#   methods:
#     list_notebooks: wXbhsf

# store:
#   path: "data/research.db"

# recorder:
#   enable: true
#   dir: "data/traces"
`
	if err := os.WriteFile(filepath.Join(wsDir, WorkspaceConfigFile), []byte(templateConfig), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	gitignore := "# Runtime data (traces, research store) - do not version control\ndata/\n"
	if err := os.WriteFile(filepath.Join(wsDir, ".gitignore"), []byte(gitignore), 0644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	return nil
}

// resolveWorkspacePaths resolves relative paths against base.
func resolveWorkspacePaths(cfg Config, base string) Config {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "~") {
			return p
		}
		return filepath.Join(base, p)
	}

	cfg.Server.LogFile = resolve(cfg.Server.LogFile)
	cfg.Store.Path = resolve(cfg.Store.Path)
	cfg.Recorder.Dir = resolve(cfg.Recorder.Dir)
	cfg.Ledger.RulesPath = resolve(cfg.Ledger.RulesPath)
	return cfg
}

// Validate ensures required fields exist so the server can start deterministically.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}
	if c.Client.BaseURL == "" {
		return errors.New("client.base_url is required")
	}
	if c.Poll.MaxAttempts < 0 {
		return errors.New("poll.max_attempts must not be negative")
	}
	for name, id := range c.RPC.Methods {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("rpc.methods.%s: empty id", name)
		}
	}
	return nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// RequestTimeout returns the parsed HTTP timeout with a sane default.
func (c ClientConfig) RequestTimeout() time.Duration {
	return parseDuration(c.Timeout, 60*time.Second)
}

// PollInterval returns the parsed poll interval with a sane default.
func (p PollConfig) PollInterval() time.Duration {
	return parseDuration(p.Interval, 5*time.Second)
}

// Attempts returns the attempt budget with a sane default.
func (p PollConfig) Attempts() int {
	if p.MaxAttempts <= 0 {
		return 60
	}
	return p.MaxAttempts
}

// ShouldRetryNotFound returns whether missing tasks are retried (default: true).
func (p PollConfig) ShouldRetryNotFound() bool {
	if p.RetryNotFound == nil {
		return true
	}
	return *p.RetryNotFound
}

// IsHeadless returns whether Chrome runs headless (default: false).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return false
	}
	return *b.Headless
}

// LoginWait returns how long to wait for sign-in.
func (b BrowserConfig) LoginWait() time.Duration {
	return parseDuration(b.LoginTimeout, 5*time.Minute)
}

// NavTimeout returns the parsed navigation timeout with a sane default.
func (b BrowserConfig) NavTimeout() time.Duration {
	return parseDuration(b.NavigationTimeout, 30*time.Second)
}
