package notebooklm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"notebooklm-mcp-server/internal/rpc"
	"notebooklm-mcp-server/internal/tree"
)

// ListNotebooks returns the caller's notebooks with the service's sample
// notebooks filtered out.
func (a *API) ListNotebooks(ctx context.Context) ([]Notebook, error) {
	payload, ok, err := a.rpc.Call(ctx, rpc.MethodListNotebooks, "/", []interface{}{nil, 2})
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Notebook{}, nil
	}
	records := tree.FilterTitles(a.shape.Records(payload, a.fallbackTitle), a.denylist)
	out := make([]Notebook, 0, len(records))
	for _, r := range records {
		out = append(out, Notebook{ID: r.ID, Title: r.Title, Icon: r.Icon})
	}
	return out, nil
}

// GetNotebook fetches one notebook and its source list.
func (a *API) GetNotebook(ctx context.Context, notebookID string) (NotebookDetail, error) {
	payload, ok, err := a.rpc.Call(ctx, rpc.MethodGetNotebook, "/", []interface{}{notebookID})
	if err != nil {
		return NotebookDetail{}, err
	}
	detail := NotebookDetail{Notebook: Notebook{ID: notebookID}, Sources: []SourceRef{}, Raw: rawOf(payload, ok)}
	if !ok {
		return detail, nil
	}

	records := tree.Find(payload, func(n gjson.Result) bool {
		return a.shape.Match(n) && n.Get(fmt.Sprint(a.shape.IDIndex)).Str == notebookID
	})
	if len(records) == 0 {
		return detail, nil
	}
	rec := a.shape.Extract(records[0], a.fallbackTitle)
	detail.Title, detail.Icon = rec.Title, rec.Icon

	list := notebookSourcesFields.get(records[0], "list")
	list.ForEach(func(_, s gjson.Result) bool {
		id := notebookSourcesFields.get(s, "id")
		if id.Type == gjson.String && id.Str != "" {
			detail.Sources = append(detail.Sources, SourceRef{ID: id.Str, Title: notebookSourcesFields.get(s, "title").String()})
		}
		return true
	})
	return detail, nil
}

// CreateNotebook creates an empty notebook.
func (a *API) CreateNotebook(ctx context.Context, title string) (Notebook, error) {
	params := []interface{}{title, nil, nil, []int{2}, projectOptions()}
	payload, ok, err := a.rpc.Call(ctx, rpc.MethodCreateNotebook, "/", params)
	if err != nil {
		return Notebook{}, err
	}
	id := createNotebookFields.get(payload, "id")
	if !ok || id.Type != gjson.String || id.Str == "" {
		return Notebook{}, &rpc.ProtocolShapeError{Method: string(rpc.MethodCreateNotebook), Field: "id", Raw: payload.Raw}
	}
	return Notebook{ID: id.Str, Title: createNotebookFields.get(payload, "title").String()}, nil
}

// RenameNotebook changes a notebook title. The service echoes the record,
// which is mapped when present.
func (a *API) RenameNotebook(ctx context.Context, notebookID, title string) (Notebook, error) {
	params := []interface{}{notebookID, []interface{}{[]interface{}{nil, nil, nil, []interface{}{nil, title}}}}
	payload, ok, err := a.rpc.Call(ctx, rpc.MethodRenameNotebook, rpc.NotebookPath(notebookID), params)
	if err != nil {
		return Notebook{}, err
	}
	nb := Notebook{ID: notebookID, Title: title}
	if ok {
		if id := createNotebookFields.get(payload, "id"); id.Type == gjson.String && id.Str != "" {
			nb.ID = id.Str
		}
		if t := createNotebookFields.get(payload, "title"); t.Type == gjson.String && t.Str != "" {
			nb.Title = t.Str
		}
	}
	return nb, nil
}

// DeleteNotebook removes a notebook. It fails unless the service echoes the
// deleted id.
func (a *API) DeleteNotebook(ctx context.Context, notebookID string) error {
	params := []interface{}{[]string{notebookID}, []int{2}}
	payload, ok, err := a.rpc.Call(ctx, rpc.MethodDeleteNotebook, "/", params)
	if err != nil {
		return err
	}
	if !ok || deleteNotebookFields.get(payload, "id").String() != notebookID {
		return &rpc.ProtocolShapeError{Method: string(rpc.MethodDeleteNotebook), Field: "id", Raw: payload.Raw}
	}
	return nil
}

// ConfigureChat sets the conversational goal of a notebook. GoalCustom
// requires a prompt.
func (a *API) ConfigureChat(ctx context.Context, notebookID string, goal ChatGoal, prompt string) (json.RawMessage, error) {
	if goal == "" {
		goal = GoalDefault
	}
	code, known := chatGoalCodes[goal]
	if !known {
		return nil, fmt.Errorf("unknown chat goal %q", goal)
	}
	setting := []interface{}{code}
	if goal == GoalCustom {
		if prompt == "" {
			return nil, fmt.Errorf("chat goal %q requires a prompt", goal)
		}
		setting = append(setting, prompt)
	}
	update := append(nulls(7), []interface{}{setting, []int{1}})
	params := []interface{}{notebookID, []interface{}{update}}

	payload, ok, err := a.rpc.Call(ctx, rpc.MethodRenameNotebook, rpc.NotebookPath(notebookID), params)
	if err != nil {
		return nil, err
	}
	return rawOf(payload, ok), nil
}
