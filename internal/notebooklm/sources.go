package notebooklm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"notebooklm-mcp-server/internal/rpc"
)

const (
	defaultTextTitle  = "Pasted Text"
	defaultDriveTitle = "Drive Doc"
	googleDocMIME     = "application/vnd.google-apps.document"
)

// sourcePacket builds the positional record for one source.
func sourcePacket(req AddSourceRequest) ([]interface{}, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, errors.New("source content is required")
	}
	switch req.Kind {
	case SourceText:
		title := req.Title
		if title == "" {
			title = defaultTextTitle
		}
		p := []interface{}{nil, []string{title, req.Content}, nil, 2}
		return append(append(p, nulls(6)...), 1), nil
	case SourceURL:
		if isVideoURL(req.Content) {
			p := append(nulls(7), []string{req.Content})
			return append(p, nil, nil, 1), nil
		}
		p := []interface{}{nil, nil, []string{req.Content}}
		return append(append(p, nulls(7)...), 1), nil
	case SourceDrive:
		title := req.Title
		if title == "" {
			title = defaultDriveTitle
		}
		p := []interface{}{[]interface{}{req.Content, googleDocMIME, 1, title}}
		return append(append(p, nulls(9)...), 1), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", req.Kind)
	}
}

func isVideoURL(u string) bool {
	l := strings.ToLower(u)
	return strings.Contains(l, "youtube.com") || strings.Contains(l, "youtu.be")
}

// AddSource attaches a text, URL or drive source to a notebook.
func (a *API) AddSource(ctx context.Context, notebookID string, req AddSourceRequest) (AddedSource, error) {
	packet, err := sourcePacket(req)
	if err != nil {
		return AddedSource{}, err
	}
	params := []interface{}{[]interface{}{packet}, notebookID, []int{2}, projectOptions()}
	payload, ok, err := a.rpc.Call(ctx, rpc.MethodAddSource, rpc.NotebookPath(notebookID), params)
	if err != nil {
		return AddedSource{}, err
	}
	if !ok || !payload.IsArray() || len(payload.Array()) == 0 {
		return AddedSource{}, &rpc.ProtocolShapeError{Method: string(rpc.MethodAddSource), Field: "source", Raw: payload.Raw}
	}

	added := AddedSource{Kind: req.Kind}
	if record := addSourceFields.get(payload, "record"); record.IsArray() {
		id := addSourceFields.get(record, "id")
		if id.IsArray() {
			id = addSourceFields.get(record, "nested_id")
		}
		added.ID = id.String()
		added.Title = addSourceFields.get(record, "title").String()
	} else {
		added.ID = addSourceFields.get(payload, "id").String()
		added.Title = addSourceFields.get(payload, "title").String()
	}
	if added.ID == "" {
		return AddedSource{}, &rpc.ProtocolShapeError{Method: string(rpc.MethodAddSource), Field: "source.id", Raw: payload.Raw}
	}
	return added, nil
}

// RenameSource changes a source title.
func (a *API) RenameSource(ctx context.Context, notebookID, sourceID, title string) (json.RawMessage, error) {
	params := []interface{}{notebookID, []interface{}{[]string{sourceID, title}}, []int{2}}
	payload, ok, err := a.rpc.Call(ctx, rpc.MethodRenameSource, rpc.NotebookPath(notebookID), params)
	if err != nil {
		return nil, err
	}
	return rawOf(payload, ok), nil
}

// DeleteSource detaches a source.
func (a *API) DeleteSource(ctx context.Context, notebookID, sourceID string) (json.RawMessage, error) {
	params := []interface{}{notebookID, []string{sourceID}}
	payload, ok, err := a.rpc.Call(ctx, rpc.MethodDeleteSource, rpc.NotebookPath(notebookID), params)
	if err != nil {
		return nil, err
	}
	return rawOf(payload, ok), nil
}

// SyncDriveSource re-imports a drive source from its document.
func (a *API) SyncDriveSource(ctx context.Context, notebookID, sourceID string) (SyncResult, error) {
	params := []interface{}{nil, []string{sourceID}, []int{2}}
	payload, ok, err := a.rpc.Call(ctx, rpc.MethodSyncDrive, rpc.NotebookPath(notebookID), params)
	if err != nil {
		return SyncResult{}, err
	}
	res := SyncResult{SourceID: sourceID}
	if ok {
		if ts := syncFields.get(payload, "synced_at"); ts.Type == gjson.Number {
			res.SyncedAt = ts.Int()
		}
	}
	return res, nil
}

// CheckFreshness asks whether drive sources are out of date. The response
// is passed through as returned.
func (a *API) CheckFreshness(ctx context.Context, notebookID string, sourceIDs []string) (json.RawMessage, error) {
	if len(sourceIDs) == 0 {
		return nil, errors.New("at least one source id is required")
	}
	params := []interface{}{notebookID, sourceIDs}
	payload, ok, err := a.rpc.Call(ctx, rpc.MethodCheckFreshness, rpc.NotebookPath(notebookID), params)
	if err != nil {
		return nil, err
	}
	return rawOf(payload, ok), nil
}
