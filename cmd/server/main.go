package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"notebooklm-mcp-server/internal/app"
	"notebooklm-mcp-server/internal/config"
	mcpserver "notebooklm-mcp-server/internal/mcp"
)

func main() {
	configPath := flag.String("config", "", "Path to a config file (overrides the workspace config)")
	workspace := flag.String("workspace", "", "Workspace root holding .notebooklm-mcp/config.yaml (default: discovered from cwd)")
	noWorkspace := flag.Bool("no-workspace", false, "Ignore any .notebooklm-mcp workspace")
	initWorkspace := flag.Bool("init", false, "Create a .notebooklm-mcp workspace in the current directory and exit")
	ssePort := flag.Int("sse-port", 0, "Optional SSE port override (falls back to config)")
	flag.Parse()

	if *initWorkspace {
		cwd, err := os.Getwd()
		if err != nil {
			log.Fatalf("getting working directory: %v", err)
		}
		if err := config.InitWorkspace(cwd); err != nil {
			log.Fatalf("init workspace: %v", err)
		}
		log.Printf("workspace created in %s", cwd)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, wsDir, err := config.LoadWithWorkspace(*configPath, config.WorkspaceOptions{
		Disable:     *noWorkspace,
		ExplicitDir: *workspace,
	})
	if err != nil {
		// Before we can redirect logs, write to stderr as last resort
		log.Fatalf("failed to load config: %v", err)
	}
	if *ssePort != 0 {
		cfg.MCP.SSEPort = *ssePort
	}

	// Redirect logging to file for stdio mode (stderr interferes with MCP protocol)
	if closeLog := redirectLog(cfg); closeLog != nil {
		defer closeLog()
	}
	if wsDir != "" {
		log.Printf("using workspace %s", wsDir)
	}

	server, runtime, err := buildServer(cfg)
	if err != nil {
		log.Fatalf("failed to initialize MCP server: %v", err)
	}
	defer runtime.Close()

	var startErr error
	if cfg.MCP.SSEPort > 0 {
		log.Printf("starting NotebookLM MCP SSE server on port %d", cfg.MCP.SSEPort)
		startErr = server.StartSSE(ctx, cfg.MCP.SSEPort)
	} else {
		log.Printf("starting NotebookLM MCP stdio server")
		startErr = server.Start(ctx)
	}

	if startErr != nil && !errors.Is(startErr, context.Canceled) {
		log.Fatalf("server exited with error: %v", startErr)
	}
}

// redirectLog points the standard logger at the configured log file in stdio
// mode, or discards output when the file cannot be opened.
func redirectLog(cfg config.Config) func() {
	if cfg.MCP.SSEPort != 0 || cfg.Server.LogFile == "" {
		return nil
	}
	logFile, err := os.OpenFile(config.ExpandHome(cfg.Server.LogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.SetOutput(io.Discard)
		return nil
	}
	log.SetOutput(logFile)
	return func() { logFile.Close() }
}

func buildServer(cfg config.Config) (*mcpserver.Server, *app.Runtime, error) {
	runtime, err := app.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	server, err := mcpserver.NewServer(cfg, runtime, runtime, runtime.Ledger())
	if err != nil {
		runtime.Close()
		return nil, nil, err
	}
	return server, runtime, nil
}
