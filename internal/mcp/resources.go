package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	resourceMIMEJSON = "application/json"
)

func (s *Server) registerAllResources() {
	if s == nil || s.mcpServer == nil {
		return
	}

	s.mcpServer.AddResource(
		mcp.NewResource(
			"notebooklm://about",
			"NotebookLM About",
			mcp.WithMIMEType(resourceMIMEJSON),
			mcp.WithResourceDescription("Server info, tool list and usage notes."),
		),
		s.handleAboutResource,
	)

	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"notebooklm://notebook/{notebookId}",
			"Notebook",
			mcp.WithTemplateMIMEType(resourceMIMEJSON),
			mcp.WithTemplateDescription("A notebook with its sources."),
		),
		s.handleNotebookResource,
	)
}

func (s *Server) handleAboutResource(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	tools := make([]string, 0, len(s.tools))
	for name := range s.tools {
		tools = append(tools, name)
	}
	payload := map[string]interface{}{
		"name":    s.cfg.Server.Name,
		"version": s.cfg.Server.Version,
		"service": s.cfg.Client.BaseURL,
		"tools":   sortedStrings(tools),
		"notes": []string{
			"Run authenticate first if tools report that credentials are missing.",
			"perform_research blocks until sources are imported; failed imports can be retried by task id.",
			"Read notebooklm://notebook/{notebookId} for a notebook's sources.",
		},
		"timestamp_ms": time.Now().UnixMilli(),
	}
	return jsonResource(request.Params.URI, payload)
}

func (s *Server) handleNotebookResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	notebookID := argString(request.Params.Arguments["notebookId"])
	if notebookID == "" {
		return nil, fmt.Errorf("missing notebookId")
	}
	clients, err := s.backend.Clients(ctx)
	if err != nil {
		return nil, err
	}
	detail, err := clients.Notebooks.GetNotebook(ctx, notebookID)
	if err != nil {
		return nil, err
	}
	return jsonResource(request.Params.URI, detail)
}

func jsonResource(uri string, payload interface{}) ([]mcp.ResourceContents, error) {
	text, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: resourceMIMEJSON,
			Text:     string(text),
		},
	}, nil
}
