package notebooklm

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"notebooklm-mcp-server/internal/rpc"
)

// CreateStudioArtifact requests a studio output. config is passed through
// uninterpreted.
func (a *API) CreateStudioArtifact(ctx context.Context, notebookID string, typeCode int, config interface{}) (json.RawMessage, error) {
	payload, ok, err := a.rpc.Call(ctx, rpc.MethodCreateStudio, "/", []interface{}{notebookID, typeCode, config})
	if err != nil {
		return nil, err
	}
	return rawOf(payload, ok), nil
}

// ListStudioArtifacts lists studio outputs of every known kind.
func (a *API) ListStudioArtifacts(ctx context.Context, notebookID string) ([]Artifact, error) {
	payload, ok, err := a.rpc.Call(ctx, rpc.MethodPollStudio, rpc.NotebookPath(notebookID), []interface{}{notebookID, StudioCodes()})
	if err != nil {
		return nil, err
	}
	out := []Artifact{}
	if !ok {
		return out, nil
	}
	payload.ForEach(func(_, item gjson.Result) bool {
		if !item.IsArray() || len(item.Array()) <= 2 {
			return true
		}
		code := int(studioArtifactFields.get(item, "type_code").Int())
		out = append(out, Artifact{
			ID:       studioArtifactFields.get(item, "id").String(),
			TypeCode: code,
			Kind:     StudioKind(code),
			Raw:      json.RawMessage(item.Raw),
		})
		return true
	})
	return out, nil
}

// DeleteStudioArtifact removes a studio output.
func (a *API) DeleteStudioArtifact(ctx context.Context, notebookID, artifactID string) (json.RawMessage, error) {
	payload, ok, err := a.rpc.Call(ctx, rpc.MethodDeleteStudio, rpc.NotebookPath(notebookID), []interface{}{notebookID, []string{artifactID}})
	if err != nil {
		return nil, err
	}
	return rawOf(payload, ok), nil
}

// GenerateMindMap builds a mind map from the given sources, or from every
// source when sourceIDs is empty.
func (a *API) GenerateMindMap(ctx context.Context, notebookID string, sourceIDs []string) (json.RawMessage, error) {
	if sourceIDs == nil {
		sourceIDs = []string{}
	}
	payload, ok, err := a.rpc.Call(ctx, rpc.MethodGenerateMindMap, "/", []interface{}{notebookID, sourceIDs, nil})
	if err != nil {
		return nil, err
	}
	return rawOf(payload, ok), nil
}

// SaveMindMap stores a generated mind map as a note in the notebook.
func (a *API) SaveMindMap(ctx context.Context, notebookID string, mindMap json.RawMessage, title string) (json.RawMessage, error) {
	content, err := rpc.MarshalCompact(mindMap)
	if err != nil {
		return nil, err
	}
	params := []interface{}{notebookID, content, title}
	payload, ok, err := a.rpc.Call(ctx, rpc.MethodSaveMindMap, rpc.NotebookPath(notebookID), params)
	if err != nil {
		return nil, err
	}
	return rawOf(payload, ok), nil
}

// ListMindMaps lists saved mind maps.
func (a *API) ListMindMaps(ctx context.Context, notebookID string) (json.RawMessage, error) {
	payload, ok, err := a.rpc.Call(ctx, rpc.MethodListMindMaps, rpc.NotebookPath(notebookID), []interface{}{notebookID})
	if err != nil {
		return nil, err
	}
	return rawOf(payload, ok), nil
}

// DeleteMindMap removes a saved mind map.
func (a *API) DeleteMindMap(ctx context.Context, notebookID, mindMapID string) (json.RawMessage, error) {
	payload, ok, err := a.rpc.Call(ctx, rpc.MethodDeleteMindMap, rpc.NotebookPath(notebookID), []interface{}{notebookID, []string{mindMapID}})
	if err != nil {
		return nil, err
	}
	return rawOf(payload, ok), nil
}

// QueryRequest is a free-form question against a notebook's sources.
type QueryRequest struct {
	NotebookID     string
	Query          string
	ConversationID string
	// SourceIDs limits the answer to these sources; empty means all.
	SourceIDs []string
}

// QueryResult carries the raw streamed answer.
type QueryResult struct {
	ConversationID string `json:"conversation_id"`
	Raw            string `json:"raw"`
}

// Query asks a question. A new conversation id is generated when none is
// given so follow-ups can be threaded.
func (a *API) Query(ctx context.Context, req QueryRequest) (QueryResult, error) {
	conv := req.ConversationID
	if conv == "" {
		conv = uuid.NewString()
	}
	sources := make([]interface{}, 0, len(req.SourceIDs))
	for _, id := range req.SourceIDs {
		sources = append(sources, []interface{}{[]string{id}})
	}
	params := []interface{}{sources, req.Query, nil, []interface{}{2, nil, []int{1}}, conv}
	text, err := a.rpc.Query(ctx, params)
	if err != nil {
		return QueryResult{}, err
	}
	return QueryResult{ConversationID: conv, Raw: text}, nil
}
