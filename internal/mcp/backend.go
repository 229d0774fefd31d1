package mcp

import (
	"context"
	"encoding/json"

	"notebooklm-mcp-server/internal/notebooklm"
	"notebooklm-mcp-server/internal/research"
)

// NotebookAPI is the slice of the NotebookLM client the tools call.
type NotebookAPI interface {
	ListNotebooks(ctx context.Context) ([]notebooklm.Notebook, error)
	GetNotebook(ctx context.Context, id string) (notebooklm.NotebookDetail, error)
	CreateNotebook(ctx context.Context, title string) (notebooklm.Notebook, error)
	RenameNotebook(ctx context.Context, id, title string) (notebooklm.Notebook, error)
	DeleteNotebook(ctx context.Context, id string) error
	ConfigureChat(ctx context.Context, id string, goal notebooklm.ChatGoal, prompt string) (json.RawMessage, error)

	AddSource(ctx context.Context, notebookID string, req notebooklm.AddSourceRequest) (notebooklm.AddedSource, error)
	RenameSource(ctx context.Context, notebookID, sourceID, title string) (json.RawMessage, error)
	DeleteSource(ctx context.Context, notebookID, sourceID string) (json.RawMessage, error)
	SyncDriveSource(ctx context.Context, notebookID, sourceID string) (notebooklm.SyncResult, error)
	CheckFreshness(ctx context.Context, notebookID string, sourceIDs []string) (json.RawMessage, error)

	ListStudioArtifacts(ctx context.Context, notebookID string) ([]notebooklm.Artifact, error)
	DeleteStudioArtifact(ctx context.Context, notebookID, artifactID string) (json.RawMessage, error)
	GenerateMindMap(ctx context.Context, notebookID string, sourceIDs []string) (json.RawMessage, error)
	SaveMindMap(ctx context.Context, notebookID string, mindMap json.RawMessage, title string) (json.RawMessage, error)
	ListMindMaps(ctx context.Context, notebookID string) (json.RawMessage, error)
	DeleteMindMap(ctx context.Context, notebookID, mindMapID string) (json.RawMessage, error)

	Query(ctx context.Context, req notebooklm.QueryRequest) (notebooklm.QueryResult, error)
}

// ResearchRunner drives the multi-step workflows.
type ResearchRunner interface {
	RunResearch(ctx context.Context, notebookID, topic string, strategy notebooklm.Strategy) (research.Result, error)
	RetryImport(ctx context.Context, taskID string) (research.Result, error)
	CreateArtifact(ctx context.Context, notebookID string, kind notebooklm.ArtifactKind, config map[string]interface{}) (json.RawMessage, error)
}

// Clients bundles the per-credential clients a tool call needs.
type Clients struct {
	Notebooks NotebookAPI
	Research  ResearchRunner
}

// Backend hands out clients built from the current credentials. It returns
// auth.ErrNotAuthenticated until credentials exist.
type Backend interface {
	Clients(ctx context.Context) (Clients, error)
}

// AuthRequest selects how credentials are obtained.
type AuthRequest struct {
	// Method is "browser" or "manual".
	Method    string
	Cookies   string
	CSRFToken string
}

// AuthStatus reports a completed authentication.
type AuthStatus struct {
	Method      string `json:"method"`
	CookieCount int    `json:"cookie_count"`
	HasCSRF     bool   `json:"has_csrf_token"`
	SavedTo     string `json:"saved_to,omitempty"`
}

// Authenticator obtains and persists credentials, then resets the backend.
type Authenticator interface {
	Authenticate(ctx context.Context, req AuthRequest) (AuthStatus, error)
}
