package mangle

// ledgerSchema declares the workflow facts recorded by the research
// orchestrator and the transport, plus the rules derived from them.
const ledgerSchema = `
Decl research_started(Notebook, Task, Strategy).
Decl research_status(Task, Code).
Decl research_imported(Task, Count).
Decl research_failed(Task, Step).
Decl artifact_requested(Notebook, Kind, Code).
Decl rpc_call(Method, RequestId, Status).

Decl research_complete(Task).
Decl research_settled(Task).
Decl research_awaiting_import(Task).
Decl rpc_failure(Method, Status).

research_complete(Task) :- research_status(Task, 2).
research_complete(Task) :- research_status(Task, 6).

research_settled(Task) :- research_imported(Task, _).
research_settled(Task) :- research_status(Task, 6).

research_awaiting_import(Task) :-
    research_complete(Task),
    !research_settled(Task).

rpc_failure(Method, Status) :-
    rpc_call(Method, _, Status),
    Status >= 400.
`

// Fact predicates written by this module.
const (
	PredResearchStarted   = "research_started"
	PredResearchStatus    = "research_status"
	PredResearchImported  = "research_imported"
	PredResearchFailed    = "research_failed"
	PredArtifactRequested = "artifact_requested"
	PredRPCCall           = "rpc_call"
)

// DerivedPredicates lists the rule heads callers may evaluate.
var DerivedPredicates = []string{
	"research_complete",
	"research_settled",
	"research_awaiting_import",
	"rpc_failure",
}
