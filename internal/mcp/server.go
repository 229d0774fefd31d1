package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"notebooklm-mcp-server/internal/config"
	"notebooklm-mcp-server/internal/mangle"
	"notebooklm-mcp-server/internal/metrics"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/xeipuuv/gojsonschema"
)

// Server wires the MCP runtime to the NotebookLM backend and the research
// ledger.
type Server struct {
	cfg        config.Config
	backend    Backend
	auth       Authenticator
	ledger     *mangle.Engine
	tools      map[string]Tool
	validators map[string]*gojsonschema.Schema
	mcpServer  *mcpserver.MCPServer
}

// Tool describes the contract for MCP tool implementations.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// NewServer constructs the NotebookLM MCP server and registers all tools.
// auth and ledger may be nil; the tools that need them then report an error.
func NewServer(cfg config.Config, backend Backend, auth Authenticator, ledger *mangle.Engine) (*Server, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	mcpSrv := mcpserver.NewMCPServer(
		cfg.Server.Name,
		cfg.Server.Version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithLogging(),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
	)

	server := &Server{
		cfg:        cfg,
		backend:    backend,
		auth:       auth,
		ledger:     ledger,
		tools:      make(map[string]Tool),
		validators: make(map[string]*gojsonschema.Schema),
		mcpServer:  mcpSrv,
	}

	if err := server.registerAllTools(); err != nil {
		return nil, err
	}
	server.registerAllResources()
	return server, nil
}

// Start launches the stdio server.
func (s *Server) Start(ctx context.Context) error {
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// StartSSE hosts the server over HTTP using SSE endpoints with graceful
// shutdown. /metrics is served alongside when enabled in config.
func (s *Server) StartSSE(ctx context.Context, port int) error {
	sseServer := mcpserver.NewSSEServer(s.mcpServer, mcpserver.WithBaseURL("http://localhost:"+strconv.Itoa(port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	if s.cfg.MCP.Metrics {
		mux.Handle("/metrics", metrics.Handler())
	}

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Printf("SSE server shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// ExecuteTool validates args and runs a tool directly (used by the CLI and
// tests).
func (s *Server) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	tool, exists := s.tools[name]
	if !exists {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	if err := s.validateArgs(name, args); err != nil {
		return nil, err
	}
	return tool.Execute(ctx, args)
}

func (s *Server) registerAllTools() error {
	tools := []Tool{
		// Notebook and source management
		&ManageNotebookTool{backend: s.backend},
		&ManageSourceTool{backend: s.backend},

		// Research workflow
		&PerformResearchTool{backend: s.backend},
		&RetryResearchImportTool{backend: s.backend},
		&ResearchLedgerTool{ledger: s.ledger},

		// Studio outputs and chat
		&GenerateArtifactTool{backend: s.backend},
		&ManageStudioTool{backend: s.backend},
		&ManageMindMapTool{backend: s.backend},
		&QueryNotebookTool{backend: s.backend},

		&AuthenticateTool{auth: s.auth},
	}
	for _, tool := range tools {
		if err := s.registerTool(tool); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) registerTool(tool Tool) error {
	validator, err := compileSchema(tool.InputSchema())
	if err != nil {
		return fmt.Errorf("tool %s: %w", tool.Name(), err)
	}
	s.tools[tool.Name()] = tool
	s.validators[tool.Name()] = validator

	schema, err := json.Marshal(tool.InputSchema())
	if err != nil {
		schema = json.RawMessage(`{"type":"object"}`)
	}

	mcpTool := mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schema)
	s.mcpServer.AddTool(mcpTool, s.wrapTool(tool))
	return nil
}

func (s *Server) wrapTool(tool Tool) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}

		if err := s.validateArgs(tool.Name(), args); err != nil {
			return errorResult(tool.Name(), err), nil
		}
		result, err := tool.Execute(ctx, args)
		if err != nil {
			log.Printf("tool %s failed: %v", tool.Name(), err)
			return errorResult(tool.Name(), err), nil
		}

		payload := marshalToolPayload(tool.Name(), result)
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(string(payload))},
			IsError: false,
		}, nil
	}
}

func errorResult(name string, err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(fmt.Sprintf("tool %s failed: %v", name, err))},
		IsError: true,
	}
}

func marshalToolPayload(toolName string, result interface{}) []byte {
	payload, marshalErr := json.Marshal(result)
	if marshalErr == nil {
		return payload
	}

	fallback := map[string]interface{}{
		"success": false,
		"error":   fmt.Sprintf("tool %s returned non-serializable payload: %v", toolName, marshalErr),
	}
	payload, fallbackErr := json.Marshal(fallback)
	if fallbackErr == nil {
		return payload
	}

	return []byte(fmt.Sprintf(`{"success":false,"error":"tool %s failed to encode payload"}`, toolName))
}
