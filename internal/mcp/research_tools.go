package mcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"notebooklm-mcp-server/internal/mangle"
	"notebooklm-mcp-server/internal/notebooklm"
	"notebooklm-mcp-server/internal/research"
)

// PerformResearchTool runs a full research workflow and imports what it finds.
type PerformResearchTool struct {
	backend Backend
}

func (t *PerformResearchTool) Name() string { return "perform_research" }
func (t *PerformResearchTool) Description() string {
	return `Research a topic on the web and import the discovered sources into a notebook.

Blocks until the research task completes (polled every few seconds) and the
sources are imported. strategy quick (alias fast) takes about a minute;
comprehensive (alias deep, the default) can take several.

If the import step fails, the task id in the error can be passed to
retry_research_import without re-running the research.`
}

func (t *PerformResearchTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"notebook_id": map[string]interface{}{"type": "string", "minLength": 1},
			"query":       map[string]interface{}{"type": "string", "minLength": 1, "description": "Research topic"},
			"strategy": map[string]interface{}{
				"type":    "string",
				"enum":    []string{"quick", "comprehensive", "fast", "deep"},
				"default": "comprehensive",
			},
		},
		"required": []string{"notebook_id", "query"},
	}
}

func (t *PerformResearchTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	strategy, err := notebooklm.ParseStrategy(getStringArg(args, "strategy"))
	if err != nil {
		return nil, err
	}
	clients, err := t.backend.Clients(ctx)
	if err != nil {
		return nil, err
	}
	notebookID := getStringArg(args, "notebook_id")
	query := getStringArg(args, "query")

	log.Printf("research: %s on %s (%s)", query, notebookID, strategy)
	res, err := clients.Research.RunResearch(ctx, notebookID, query, strategy)
	if err != nil {
		var wfErr *research.WorkflowError
		if errors.As(err, &wfErr) && wfErr.Step == research.StepImport {
			return nil, fmt.Errorf("%w (retry with retry_research_import task_id=%s)", err, wfErr.TaskID)
		}
		return nil, err
	}
	return map[string]interface{}{
		"success":     true,
		"notebook_id": notebookID,
		"strategy":    strategy,
		"research":    res,
	}, nil
}

// RetryResearchImportTool re-issues the import of a stored research task.
type RetryResearchImportTool struct {
	backend Backend
}

func (t *RetryResearchImportTool) Name() string { return "retry_research_import" }
func (t *RetryResearchImportTool) Description() string {
	return "Retry importing the sources of a completed research task whose import failed. Uses the stored task snapshot; no new research is run."
}

func (t *RetryResearchImportTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task_id": map[string]interface{}{"type": "string", "minLength": 1},
		},
		"required": []string{"task_id"},
	}
}

func (t *RetryResearchImportTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	clients, err := t.backend.Clients(ctx)
	if err != nil {
		return nil, err
	}
	res, err := clients.Research.RetryImport(ctx, getStringArg(args, "task_id"))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "research": res}, nil
}

// ResearchLedgerTool exposes the workflow fact ledger.
type ResearchLedgerTool struct {
	ledger *mangle.Engine
}

func (t *ResearchLedgerTool) Name() string { return "research_ledger" }
func (t *ResearchLedgerTool) Description() string {
	return `Inspect the research workflow ledger.

Pass predicate to list facts, base or derived:
- research_started, research_status, research_imported, research_failed,
  artifact_requested, rpc_call
- research_complete, research_settled, research_awaiting_import, rpc_failure

Or pass query with a Mangle atom, e.g. research_status(T, 2).`
}

func (t *ResearchLedgerTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"predicate": map[string]interface{}{"type": "string"},
			"query":     map[string]interface{}{"type": "string"},
			"limit":     map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 500, "default": 50},
		},
	}
}

func (t *ResearchLedgerTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if t.ledger == nil || !t.ledger.Ready() {
		return nil, errors.New("research ledger is disabled")
	}
	if q := getStringArg(args, "query"); q != "" {
		results, err := t.ledger.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"query": q, "count": len(results), "results": results}, nil
	}

	predicate := getStringArg(args, "predicate")
	if predicate == "" {
		return ledgerSummary(t.ledger), nil
	}
	facts, err := t.ledger.Evaluate(ctx, predicate)
	if err != nil {
		return nil, err
	}
	limit := getIntArg(args, "limit", 50)
	if len(facts) > limit {
		facts = facts[len(facts)-limit:]
	}
	return map[string]interface{}{"predicate": predicate, "count": len(facts), "facts": facts}, nil
}

// ledgerSummary counts stored facts per predicate.
func ledgerSummary(engine *mangle.Engine) map[string]interface{} {
	counts := make(map[string]int)
	for _, f := range engine.Facts() {
		counts[f.Predicate]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return map[string]interface{}{
		"predicates": names,
		"counts":     counts,
		"derived":    mangle.DerivedPredicates,
	}
}
