// Package notebooklm exposes notebook, source, research and studio
// operations on top of the batchexecute transport.
package notebooklm

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"

	"notebooklm-mcp-server/internal/rpc"
	"notebooklm-mcp-server/internal/tree"
)

// Caller is the transport surface the API needs. *rpc.Client implements it.
type Caller interface {
	Call(ctx context.Context, method rpc.Method, sourcePath string, params interface{}) (gjson.Result, bool, error)
	Query(ctx context.Context, params interface{}) (string, error)
}

// API is stateless apart from its Caller; every entity it returns is built
// fresh from a response.
type API struct {
	rpc           Caller
	denylist      []string
	fallbackTitle string
	shape         tree.Shape
}

// Option configures an API.
type Option func(*API)

// WithDenylist replaces the sample-notebook title denylist. An empty list
// disables filtering.
func WithDenylist(words []string) Option {
	return func(a *API) { a.denylist = words }
}

// WithNotebookShape overrides the structural signature of notebook records.
func WithNotebookShape(s tree.Shape) Option {
	return func(a *API) { a.shape = s }
}

// New wraps caller.
func New(caller Caller, opts ...Option) *API {
	a := &API{
		rpc:           caller,
		denylist:      tree.DefaultDenylist,
		fallbackTitle: "Untitled notebook",
		shape:         tree.NotebookShape,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func nulls(n int) []interface{} {
	return make([]interface{}, n)
}

func rawOf(p gjson.Result, ok bool) json.RawMessage {
	if !ok || p.Raw == "" {
		return json.RawMessage("null")
	}
	return json.RawMessage(p.Raw)
}

// projectOptions is the trailing client-capability block sent with create
// and add-source calls.
func projectOptions() []interface{} {
	return append(append([]interface{}{1}, nulls(9)...), []int{1})
}
