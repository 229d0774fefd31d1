package rpc

import (
	"fmt"
	"sort"
)

// Method is the logical name of a remote operation. The opaque wire id it
// maps to changes whenever the web client is rebuilt, so ids live in a
// Methods table that config can override.
type Method string

const (
	MethodListNotebooks   Method = "list_notebooks"
	MethodGetNotebook     Method = "get_notebook"
	MethodCreateNotebook  Method = "create_notebook"
	MethodRenameNotebook  Method = "rename_notebook"
	MethodDeleteNotebook  Method = "delete_notebook"
	MethodAddSource       Method = "add_source"
	MethodGetSource       Method = "get_source"
	MethodCheckFreshness  Method = "check_freshness"
	MethodSyncDrive       Method = "sync_drive"
	MethodDeleteSource    Method = "delete_source"
	MethodRenameSource    Method = "rename_source"
	MethodConversations   Method = "conversations"
	MethodFastResearch    Method = "start_fast_research"
	MethodDeepResearch    Method = "start_deep_research"
	MethodPollResearch    Method = "poll_research"
	MethodImportResearch  Method = "import_research"
	MethodCreateStudio    Method = "create_studio"
	MethodPollStudio      Method = "poll_studio"
	MethodDeleteStudio    Method = "delete_studio"
	MethodGenerateMindMap Method = "generate_mind_map"
	MethodSaveMindMap     Method = "save_mind_map"
	MethodListMindMaps    Method = "list_mind_maps"
	MethodDeleteMindMap   Method = "delete_mind_map"
)

// Methods maps logical operations to wire ids.
type Methods map[Method]string

// DefaultMethods returns the ids observed in the current web client.
func DefaultMethods() Methods {
	return Methods{
		MethodListNotebooks:   "wXbhsf",
		MethodGetNotebook:     "rLM1Ne",
		MethodCreateNotebook:  "CCqFvf",
		MethodRenameNotebook:  "s0tc2d",
		MethodDeleteNotebook:  "WWINqb",
		MethodAddSource:       "izAoDd",
		MethodGetSource:       "hizoJc",
		MethodCheckFreshness:  "yR9Yof",
		MethodSyncDrive:       "FLmJqe",
		MethodDeleteSource:    "tGMBJ",
		MethodRenameSource:    "b7Wfje",
		MethodConversations:   "hPTbtc",
		MethodFastResearch:    "Ljjv0c",
		MethodDeepResearch:    "QA9ei",
		MethodPollResearch:    "e3bVqc",
		MethodImportResearch:  "LBwxtb",
		MethodCreateStudio:    "R7cb6c",
		MethodPollStudio:      "gArtLc",
		MethodDeleteStudio:    "V5N4be",
		MethodGenerateMindMap: "yyryJe",
		MethodSaveMindMap:     "CYK0Xb",
		MethodListMindMaps:    "cFji9",
		MethodDeleteMindMap:   "AH0mwd",
	}
}

// WithOverrides returns a copy of m with the given logical names replaced.
// Unknown names are rejected so a typo in config does not silently fall
// back to a stale id.
func (m Methods) WithOverrides(overrides map[string]string) (Methods, error) {
	out := make(Methods, len(m))
	for k, v := range m {
		out[k] = v
	}
	for name, id := range overrides {
		key := Method(name)
		if _, ok := m[key]; !ok {
			return nil, fmt.Errorf("unknown rpc method %q", name)
		}
		if id == "" {
			return nil, fmt.Errorf("rpc method %q: empty id", name)
		}
		out[key] = id
	}
	return out, nil
}

// ID returns the wire id for a logical method. An unmapped method returns
// its own name, which the server will reject with a visible error.
func (m Methods) ID(method Method) string {
	if id, ok := m[method]; ok {
		return id
	}
	return string(method)
}

// Names lists the logical method names in sorted order.
func (m Methods) Names() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}
