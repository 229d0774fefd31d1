package mcp

import (
	"context"
	"log"

	"notebooklm-mcp-server/internal/notebooklm"
)

// ManageNotebookTool lists and edits notebooks.
type ManageNotebookTool struct {
	backend Backend
}

func (t *ManageNotebookTool) Name() string { return "manage_notebook" }
func (t *ManageNotebookTool) Description() string {
	return `List, inspect, create, rename or delete NotebookLM notebooks, or set a notebook's chat goal.

ACTIONS:
- list: all notebooks the account owns (sample notebooks filtered out)
- get: one notebook with its sources (notebook_id)
- create: new notebook (title)
- rename: change title (notebook_id, title)
- delete: remove permanently (notebook_id)
- configure_chat: set chat goal (notebook_id, goal, custom_prompt when goal=custom)`
}

func (t *ManageNotebookTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type": "string",
				"enum": []string{"list", "get", "create", "rename", "delete", "configure_chat"},
			},
			"notebook_id":   map[string]interface{}{"type": "string"},
			"title":         map[string]interface{}{"type": "string"},
			"goal":          map[string]interface{}{"type": "string", "enum": []string{"default", "summary", "explanation", "critique", "custom"}},
			"custom_prompt": map[string]interface{}{"type": "string"},
		},
		"required": []string{"action"},
	}
}

func (t *ManageNotebookTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	clients, err := t.backend.Clients(ctx)
	if err != nil {
		return nil, err
	}
	api := clients.Notebooks
	action := getStringArg(args, "action")

	if action == "list" {
		notebooks, err := api.ListNotebooks(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"count": len(notebooks), "notebooks": notebooks}, nil
	}
	if action == "create" {
		title, err := requireString(args, "title")
		if err != nil {
			return nil, err
		}
		nb, err := api.CreateNotebook(ctx, title)
		if err != nil {
			return nil, err
		}
		log.Printf("notebook created: %s", nb.ID)
		return map[string]interface{}{"success": true, "notebook": nb}, nil
	}

	notebookID, err := requireString(args, "notebook_id")
	if err != nil {
		return nil, err
	}
	switch action {
	case "get":
		return api.GetNotebook(ctx, notebookID)
	case "rename":
		title, err := requireString(args, "title")
		if err != nil {
			return nil, err
		}
		nb, err := api.RenameNotebook(ctx, notebookID, title)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"success": true, "notebook": nb}, nil
	case "delete":
		if err := api.DeleteNotebook(ctx, notebookID); err != nil {
			return nil, err
		}
		log.Printf("notebook deleted: %s", notebookID)
		return map[string]interface{}{"success": true, "notebook_id": notebookID}, nil
	case "configure_chat":
		goal := notebooklm.ChatGoal(getStringArg(args, "goal"))
		raw, err := api.ConfigureChat(ctx, notebookID, goal, getStringArg(args, "custom_prompt"))
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"success": true, "notebook_id": notebookID, "result": raw}, nil
	default:
		return nil, unknownAction(t.Name(), action, "list", "get", "create", "rename", "delete", "configure_chat")
	}
}

// ManageSourceTool adds and maintains notebook sources.
type ManageSourceTool struct {
	backend Backend
}

func (t *ManageSourceTool) Name() string { return "manage_source" }
func (t *ManageSourceTool) Description() string {
	return `Add, rename, delete or refresh sources of a notebook.

ACTIONS:
- add: attach a source (type text|url|drive, content, optional title).
  url accepts web pages and YouTube links; drive takes a Google Doc id.
- rename: (source_id, title)
- delete: (source_id)
- sync: re-sync a Drive source (source_id)
- check_freshness: ask whether Drive sources are stale (source_ids or source_id)`
}

func (t *ManageSourceTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type": "string",
				"enum": []string{"add", "rename", "delete", "sync", "check_freshness"},
			},
			"notebook_id": map[string]interface{}{"type": "string", "minLength": 1},
			"type":        map[string]interface{}{"type": "string", "enum": []string{"text", "url", "drive"}},
			"content":     map[string]interface{}{"type": "string"},
			"title":       map[string]interface{}{"type": "string"},
			"source_id":   map[string]interface{}{"type": "string"},
			"source_ids": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
		},
		"required": []string{"action", "notebook_id"},
	}
}

func (t *ManageSourceTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	clients, err := t.backend.Clients(ctx)
	if err != nil {
		return nil, err
	}
	api := clients.Notebooks
	notebookID, err := requireString(args, "notebook_id")
	if err != nil {
		return nil, err
	}
	action := getStringArg(args, "action")

	switch action {
	case "add":
		kind := notebooklm.SourceKind(getStringArg(args, "type"))
		if kind == "" {
			kind = notebooklm.SourceText
		}
		added, err := api.AddSource(ctx, notebookID, notebooklm.AddSourceRequest{
			Kind:    kind,
			Content: getStringArg(args, "content"),
			Title:   getStringArg(args, "title"),
		})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"success": true, "source": added}, nil
	case "check_freshness":
		ids := getStringSliceArg(args, "source_ids")
		if len(ids) == 0 {
			ids = getStringSliceArg(args, "source_id")
		}
		if len(ids) == 0 {
			return nil, errMissing("source_ids")
		}
		raw, err := api.CheckFreshness(ctx, notebookID, ids)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"notebook_id": notebookID, "freshness": raw}, nil
	}

	sourceID, err := requireString(args, "source_id")
	if err != nil {
		return nil, err
	}
	switch action {
	case "rename":
		title, err := requireString(args, "title")
		if err != nil {
			return nil, err
		}
		raw, err := api.RenameSource(ctx, notebookID, sourceID, title)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"success": true, "source_id": sourceID, "result": raw}, nil
	case "delete":
		raw, err := api.DeleteSource(ctx, notebookID, sourceID)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"success": true, "source_id": sourceID, "result": raw}, nil
	case "sync":
		res, err := api.SyncDriveSource(ctx, notebookID, sourceID)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"success": true, "sync": res}, nil
	default:
		return nil, unknownAction(t.Name(), action, "add", "rename", "delete", "sync", "check_freshness")
	}
}
