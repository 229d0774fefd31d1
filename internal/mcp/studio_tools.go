package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"notebooklm-mcp-server/internal/notebooklm"
)

var artifactTypes = []string{
	"audio", "report", "video", "infographic", "slide_deck", "slides",
	"data_table", "google_sheets", "flashcards", "mind_map", "mindmap",
}

// GenerateArtifactTool starts a studio output for a notebook.
type GenerateArtifactTool struct {
	backend Backend
}

func (t *GenerateArtifactTool) Name() string { return "generate_artifact" }
func (t *GenerateArtifactTool) Description() string {
	return `Generate a studio artifact from a notebook's sources.

type: audio, report, video, infographic, slide_deck, data_table, flashcards, mind_map.
config is passed through to the service. For mind_map, config.source_ids
selects the sources (all sources when omitted).

Generation runs server-side; use manage_studio action=list to see results.`
}

func (t *GenerateArtifactTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"notebook_id": map[string]interface{}{"type": "string", "minLength": 1},
			"type":        map[string]interface{}{"type": "string", "enum": artifactTypes},
			"config":      map[string]interface{}{"type": "object"},
		},
		"required": []string{"notebook_id", "type"},
	}
}

func (t *GenerateArtifactTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	clients, err := t.backend.Clients(ctx)
	if err != nil {
		return nil, err
	}
	notebookID := getStringArg(args, "notebook_id")
	kind := notebooklm.ParseArtifactKind(getStringArg(args, "type"))
	raw, err := clients.Research.CreateArtifact(ctx, notebookID, kind, getMapArg(args, "config"))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"success":     true,
		"notebook_id": notebookID,
		"type":        kind,
		"result":      raw,
	}, nil
}

// ManageStudioTool lists and deletes studio artifacts.
type ManageStudioTool struct {
	backend Backend
}

func (t *ManageStudioTool) Name() string { return "manage_studio" }
func (t *ManageStudioTool) Description() string {
	return "List the studio artifacts of a notebook (action=list) or delete one (action=delete, artifact_id)."
}

func (t *ManageStudioTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action":      map[string]interface{}{"type": "string", "enum": []string{"list", "delete"}},
			"notebook_id": map[string]interface{}{"type": "string", "minLength": 1},
			"artifact_id": map[string]interface{}{"type": "string"},
		},
		"required": []string{"action", "notebook_id"},
	}
}

func (t *ManageStudioTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	clients, err := t.backend.Clients(ctx)
	if err != nil {
		return nil, err
	}
	notebookID := getStringArg(args, "notebook_id")
	switch action := getStringArg(args, "action"); action {
	case "list":
		artifacts, err := clients.Notebooks.ListStudioArtifacts(ctx, notebookID)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"notebook_id": notebookID, "count": len(artifacts), "artifacts": artifacts}, nil
	case "delete":
		id, err := requireString(args, "artifact_id")
		if err != nil {
			return nil, err
		}
		raw, err := clients.Notebooks.DeleteStudioArtifact(ctx, notebookID, id)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"success": true, "artifact_id": id, "result": raw}, nil
	default:
		return nil, unknownAction(t.Name(), action, "list", "delete")
	}
}

// ManageMindMapTool handles the mind map lifecycle.
type ManageMindMapTool struct {
	backend Backend
}

func (t *ManageMindMapTool) Name() string { return "manage_mind_map" }
func (t *ManageMindMapTool) Description() string {
	return `Work with notebook mind maps.

ACTIONS:
- generate: build a mind map (optional source_ids)
- save: store a generated mind map (mind_map JSON from generate, optional title)
- list: saved mind maps
- delete: (mind_map_id)`
}

func (t *ManageMindMapTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action":      map[string]interface{}{"type": "string", "enum": []string{"generate", "save", "list", "delete"}},
			"notebook_id": map[string]interface{}{"type": "string", "minLength": 1},
			"source_ids": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
			"mind_map":    map[string]interface{}{},
			"title":       map[string]interface{}{"type": "string"},
			"mind_map_id": map[string]interface{}{"type": "string"},
		},
		"required": []string{"action", "notebook_id"},
	}
}

func (t *ManageMindMapTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	clients, err := t.backend.Clients(ctx)
	if err != nil {
		return nil, err
	}
	api := clients.Notebooks
	notebookID := getStringArg(args, "notebook_id")

	var raw json.RawMessage
	switch action := getStringArg(args, "action"); action {
	case "generate":
		raw, err = api.GenerateMindMap(ctx, notebookID, getStringSliceArg(args, "source_ids"))
	case "save":
		mindMap, mErr := mindMapArg(args)
		if mErr != nil {
			return nil, mErr
		}
		raw, err = api.SaveMindMap(ctx, notebookID, mindMap, getStringArg(args, "title"))
	case "list":
		raw, err = api.ListMindMaps(ctx, notebookID)
	case "delete":
		id, idErr := requireString(args, "mind_map_id")
		if idErr != nil {
			return nil, idErr
		}
		raw, err = api.DeleteMindMap(ctx, notebookID, id)
	default:
		return nil, unknownAction(t.Name(), action, "generate", "save", "list", "delete")
	}
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"notebook_id": notebookID, "result": raw}, nil
}

// mindMapArg accepts the mind map as a JSON string or as structured JSON.
func mindMapArg(args map[string]interface{}) (json.RawMessage, error) {
	val, ok := args["mind_map"]
	if !ok || val == nil {
		return nil, errMissing("mind_map")
	}
	if s, ok := val.(string); ok {
		if !json.Valid([]byte(s)) {
			return nil, errors.New("mind_map is not valid JSON")
		}
		return json.RawMessage(s), nil
	}
	return json.Marshal(val)
}

// QueryNotebookTool asks a question grounded in a notebook's sources.
type QueryNotebookTool struct {
	backend Backend
}

func (t *QueryNotebookTool) Name() string { return "query_notebook" }
func (t *QueryNotebookTool) Description() string {
	return "Ask a question answered from the notebook's sources. Pass the returned conversation_id to continue the thread; source_ids limits the sources consulted."
}

func (t *QueryNotebookTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"notebook_id":     map[string]interface{}{"type": "string", "minLength": 1},
			"query":           map[string]interface{}{"type": "string", "minLength": 1},
			"conversation_id": map[string]interface{}{"type": "string"},
			"source_ids": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
		},
		"required": []string{"notebook_id", "query"},
	}
}

func (t *QueryNotebookTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	clients, err := t.backend.Clients(ctx)
	if err != nil {
		return nil, err
	}
	res, err := clients.Notebooks.Query(ctx, notebooklm.QueryRequest{
		NotebookID:     getStringArg(args, "notebook_id"),
		Query:          getStringArg(args, "query"),
		ConversationID: getStringArg(args, "conversation_id"),
		SourceIDs:      getStringSliceArg(args, "source_ids"),
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
