package notebooklm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"

	"notebooklm-mcp-server/internal/rpc"
)

// StartResearch launches a research task. Quick research returns only a
// task id; comprehensive research also returns a report id.
func (a *API) StartResearch(ctx context.Context, notebookID, query string, strategy Strategy, source ResearchSourceType) (ResearchStart, error) {
	if source == 0 {
		source = ResearchWeb
	}
	q := []interface{}{query, int(source)}

	var (
		method rpc.Method
		params []interface{}
		fields fieldMap
	)
	switch strategy {
	case Quick:
		method, fields = rpc.MethodFastResearch, fastResearchFields
		params = []interface{}{q, nil, 1, notebookID}
	case Comprehensive:
		method, fields = rpc.MethodDeepResearch, deepResearchFields
		params = []interface{}{nil, []int{1}, q, 5, notebookID}
	default:
		return ResearchStart{}, errors.New("unknown research strategy " + string(strategy))
	}

	payload, ok, err := a.rpc.Call(ctx, method, "/", params)
	if err != nil {
		return ResearchStart{}, err
	}
	if !ok || !payload.IsArray() {
		return ResearchStart{}, &rpc.ProtocolShapeError{Method: string(method), Field: "task", Raw: payload.Raw}
	}
	task := fields.get(payload, "task_id")
	if task.Type != gjson.String || task.Str == "" {
		return ResearchStart{}, &rpc.ProtocolShapeError{Method: string(method), Field: "task_id", Raw: payload.Raw}
	}
	return ResearchStart{TaskID: task.Str, ReportID: fields.get(payload, "report_id").String()}, nil
}

// PollResearch reads the notebook's research listing and returns the entry
// for taskID. A missing entry is reported with Found=false, not an error:
// the listing lags behind task creation.
func (a *API) PollResearch(ctx context.Context, notebookID, taskID string) (ResearchSnapshot, error) {
	payload, ok, err := a.rpc.Call(ctx, rpc.MethodPollResearch, rpc.NotebookPath(notebookID), []interface{}{nil, nil, notebookID})
	if err != nil {
		return ResearchSnapshot{}, err
	}
	snap := ResearchSnapshot{TaskID: taskID, Sources: []ResearchSource{}}
	if !ok || !payload.IsArray() {
		return snap, nil
	}

	entry, found := findResearchEntry(researchTasks(payload), taskID)
	if !found {
		return snap, nil
	}
	snap.Found = true
	snap.StatusCode = int(researchTaskFields.get(entry, "status").Int())
	researchTaskFields.get(entry, "sources").ForEach(func(_, s gjson.Result) bool {
		if s.IsArray() {
			snap.Sources = append(snap.Sources, ResearchSource{
				Title: researchSourceFields.get(s, "title").String(),
				URL:   researchSourceFields.get(s, "url").String(),
			})
		}
		return true
	})
	snap.Summary = researchTaskFields.get(entry, "summary").String()
	return snap, nil
}

// researchTasks unwraps the listing, which is either the task list itself
// or a single-element wrapper around it. The shape is checked on every poll.
func researchTasks(payload gjson.Result) []gjson.Result {
	first := payload.Get("0")
	if first.IsArray() && first.Get("0").IsArray() {
		return first.Array()
	}
	return payload.Array()
}

func findResearchEntry(tasks []gjson.Result, taskID string) (gjson.Result, bool) {
	for _, t := range tasks {
		if !t.IsArray() || researchTaskFields.get(t, "task_id").String() != taskID {
			continue
		}
		if !researchTaskFields.get(t, "info").IsArray() {
			return gjson.Result{}, false
		}
		return t, true
	}
	return gjson.Result{}, false
}

// ImportResearch imports every discovered source of a finished task in a
// single call.
func (a *API) ImportResearch(ctx context.Context, notebookID, taskID string, sources []ResearchSource) (json.RawMessage, error) {
	entries := make([]interface{}, 0, len(sources))
	for _, s := range sources {
		e := []interface{}{nil, nil, []string{s.Title, s.URL}}
		entries = append(entries, append(append(e, nulls(7)...), 2))
	}
	params := []interface{}{nil, []string{taskID}, []int{1}, notebookID, entries}
	payload, ok, err := a.rpc.Call(ctx, rpc.MethodImportResearch, rpc.NotebookPath(notebookID), params)
	if err != nil {
		return nil, err
	}
	return rawOf(payload, ok), nil
}
