package notebooklm

import "github.com/tidwall/gjson"

// Field maps translate positional payloads into named values. Each entry is
// a gjson path into the decoded response of one operation; when the remote
// shapes drift only these tables change.
type fieldMap map[string]string

func (f fieldMap) get(payload gjson.Result, name string) gjson.Result {
	path, ok := f[name]
	if !ok {
		return gjson.Result{}
	}
	return payload.Get(path)
}

var (
	createNotebookFields = fieldMap{"id": "2", "title": "0"}
	deleteNotebookFields = fieldMap{"id": "0"}

	// Sources inside a notebook record: [[id], title, ...].
	notebookSourcesFields = fieldMap{"list": "1", "id": "0.0", "title": "1"}

	// Add source: [[[[id], title, ...]]], falling back to [id, title].
	addSourceFields = fieldMap{"record": "0.0", "id": "0", "nested_id": "0.0", "title": "1"}

	syncFields = fieldMap{"synced_at": "3.1.0"}

	fastResearchFields = fieldMap{"task_id": "0"}
	deepResearchFields = fieldMap{"report_id": "0", "task_id": "1"}

	// Research listing entry: [taskId, info, ...]; info[3] = [sources, summary].
	researchTaskFields = fieldMap{
		"task_id": "0",
		"info":    "1",
		"status":  "1.4",
		"sources": "1.3.0",
		"summary": "1.3.1",
	}
	researchSourceFields = fieldMap{"title": "0", "url": "1"}

	studioArtifactFields = fieldMap{"id": "0", "type_code": "1"}
)
