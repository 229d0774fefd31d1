// Package research runs the multi-step research workflow (initiate, poll,
// import) and artifact generation on top of the notebooklm API.
package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"notebooklm-mcp-server/internal/mangle"
	"notebooklm-mcp-server/internal/metrics"
	"notebooklm-mcp-server/internal/notebooklm"
	"notebooklm-mcp-server/internal/poll"
	"notebooklm-mcp-server/internal/store"
)

// Workflow steps named in WorkflowError.
const (
	StepInitiate = "initiate"
	StepPoll     = "poll"
	StepImport   = "import"
)

// WorkflowError says which step of a research run failed.
type WorkflowError struct {
	Step   string
	TaskID string
	Err    error
}

func (e *WorkflowError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("research %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("research %s (task %s): %v", e.Step, e.TaskID, e.Err)
}

func (e *WorkflowError) Unwrap() error { return e.Err }

// API is the subset of the notebooklm API the orchestrator drives.
type API interface {
	StartResearch(ctx context.Context, notebookID, query string, strategy notebooklm.Strategy, source notebooklm.ResearchSourceType) (notebooklm.ResearchStart, error)
	PollResearch(ctx context.Context, notebookID, taskID string) (notebooklm.ResearchSnapshot, error)
	ImportResearch(ctx context.Context, notebookID, taskID string, sources []notebooklm.ResearchSource) (json.RawMessage, error)
	CreateStudioArtifact(ctx context.Context, notebookID string, typeCode int, config interface{}) (json.RawMessage, error)
	GenerateMindMap(ctx context.Context, notebookID string, sourceIDs []string) (json.RawMessage, error)
}

// TaskStore persists task snapshots so imports can be retried.
type TaskStore interface {
	Save(ctx context.Context, task *store.ResearchTask) error
	Get(ctx context.Context, id string) (*store.ResearchTask, error)
}

// Ledger receives workflow facts.
type Ledger interface {
	Record(ctx context.Context, predicate string, args ...interface{}) error
}

// Result is what a finished research run reports.
type Result struct {
	TaskID      string                      `json:"task_id"`
	ReportID    string                      `json:"report_id,omitempty"`
	SourceCount int                         `json:"source_count"`
	Summary     string                      `json:"summary"`
	Sources     []notebooklm.ResearchSource `json:"sources"`
}

// Orchestrator sequences research runs. Polls of the same task are
// serialized; different tasks proceed independently.
type Orchestrator struct {
	api    API
	store  TaskStore
	ledger Ledger
	poll   poll.Options
	source notebooklm.ResearchSourceType

	mu    sync.Mutex
	locks map[string]*taskLock
}

type taskLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStore persists every task snapshot.
func WithStore(s TaskStore) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithLedger records workflow facts.
func WithLedger(l Ledger) Option {
	return func(o *Orchestrator) { o.ledger = l }
}

// WithPollOptions replaces the polling budget. OnAttempt is chained, not
// replaced.
func WithPollOptions(p poll.Options) Option {
	return func(o *Orchestrator) { o.poll = p }
}

// WithSourceType selects where research looks (web by default).
func WithSourceType(t notebooklm.ResearchSourceType) Option {
	return func(o *Orchestrator) { o.source = t }
}

func New(api API, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:    api,
		poll:   poll.DefaultOptions(),
		source: notebooklm.ResearchWeb,
		locks:  make(map[string]*taskLock),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// lockTask blocks until no other run is polling taskID and returns the
// release function.
func (o *Orchestrator) lockTask(taskID string) func() {
	o.mu.Lock()
	l, ok := o.locks[taskID]
	if !ok {
		l = &taskLock{}
		o.locks[taskID] = l
	}
	l.refs++
	o.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		o.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(o.locks, taskID)
		}
		o.mu.Unlock()
	}
}

// RunResearch starts research on topic, waits for it to finish, and imports
// every discovered source into the notebook.
func (o *Orchestrator) RunResearch(ctx context.Context, notebookID, topic string, strategy notebooklm.Strategy) (Result, error) {
	started := time.Now()
	res, err := o.runResearch(ctx, notebookID, topic, strategy)
	outcome := "imported"
	if err != nil {
		outcome = "failed"
		var we *WorkflowError
		if errors.As(err, &we) {
			outcome = we.Step + "_failed"
		}
	}
	metrics.ObserveResearch(string(strategy), outcome, time.Since(started))
	return res, err
}

func (o *Orchestrator) runResearch(ctx context.Context, notebookID, topic string, strategy notebooklm.Strategy) (Result, error) {
	log.Printf("research: starting %s research in %s: %q", strategy, notebookID, topic)
	start, err := o.api.StartResearch(ctx, notebookID, topic, strategy, o.source)
	if err != nil {
		return Result{}, &WorkflowError{Step: StepInitiate, Err: err}
	}
	taskID := start.TaskID
	log.Printf("research: task %s started (report %q)", taskID, start.ReportID)

	task := &store.ResearchTask{
		ID:         taskID,
		NotebookID: notebookID,
		Query:      topic,
		Strategy:   string(strategy),
		ReportID:   start.ReportID,
		Status:     store.TaskRunning,
	}
	o.save(ctx, task)
	o.record(ctx, mangle.PredResearchStarted, notebookID, taskID, string(strategy))

	unlock := o.lockTask(taskID)
	defer unlock()

	snap, err := o.awaitResearch(ctx, notebookID, taskID)
	if err != nil {
		o.fail(ctx, task, StepPoll, err)
		return Result{}, &WorkflowError{Step: StepPoll, TaskID: taskID, Err: err}
	}

	task.Status = store.TaskCompleted
	task.StatusCode = snap.StatusCode
	task.Sources = snap.Sources
	task.Summary = snap.Summary
	o.save(ctx, task)

	if err := o.importSources(ctx, task); err != nil {
		return Result{}, err
	}
	return Result{
		TaskID:      taskID,
		ReportID:    start.ReportID,
		SourceCount: len(snap.Sources),
		Summary:     snap.Summary,
		Sources:     snap.Sources,
	}, nil
}

func (o *Orchestrator) awaitResearch(ctx context.Context, notebookID, taskID string) (notebooklm.ResearchSnapshot, error) {
	opts := o.poll
	hook := opts.OnAttempt
	attempts := 0
	opts.OnAttempt = func(a poll.Attempt) {
		attempts = a.Number
		if a.Found {
			o.record(ctx, mangle.PredResearchStatus, taskID, a.Code)
		}
		if hook != nil {
			hook(a)
		}
	}

	check := func(ctx context.Context) (poll.Observation[notebooklm.ResearchSnapshot], error) {
		snap, err := o.api.PollResearch(ctx, notebookID, taskID)
		if err != nil {
			return poll.Observation[notebooklm.ResearchSnapshot]{}, err
		}
		return poll.Observation[notebooklm.ResearchSnapshot]{Found: snap.Found, Code: snap.StatusCode, Snapshot: snap}, nil
	}

	snap, err := poll.Poll[notebooklm.ResearchSnapshot](ctx, check, opts)
	metrics.ObservePollAttempts(attempts)
	return snap, err
}

func (o *Orchestrator) importSources(ctx context.Context, task *store.ResearchTask) error {
	log.Printf("research: importing %d sources for task %s", len(task.Sources), task.ID)
	if _, err := o.api.ImportResearch(ctx, task.NotebookID, task.ID, task.Sources); err != nil {
		o.fail(ctx, task, StepImport, err)
		return &WorkflowError{Step: StepImport, TaskID: task.ID, Err: err}
	}
	task.Status = store.TaskImported
	task.Error = ""
	o.save(ctx, task)
	o.record(ctx, mangle.PredResearchImported, task.ID, len(task.Sources))
	return nil
}

// ErrAlreadyImported is returned by RetryImport for a task whose sources are
// already in the notebook.
var ErrAlreadyImported = errors.New("sources already imported")

// RetryImport re-issues the import for a task whose sources were found but
// not imported. It needs a task store.
func (o *Orchestrator) RetryImport(ctx context.Context, taskID string) (Result, error) {
	if o.store == nil {
		return Result{}, errors.New("retry import: no task store configured")
	}
	unlock := o.lockTask(taskID)
	defer unlock()

	// Read under the task lock: a concurrent retry may have imported already.
	task, err := o.store.Get(ctx, taskID)
	if err != nil {
		return Result{}, fmt.Errorf("retry import: %w", err)
	}
	switch {
	case task.Status == store.TaskImported:
		return Result{}, fmt.Errorf("retry import: task %s: %w", taskID, ErrAlreadyImported)
	case task.Status == store.TaskRunning, task.Status == store.TaskFailed && task.StatusCode == 0:
		return Result{}, fmt.Errorf("retry import: task %s has not completed", taskID)
	}

	if err := o.importSources(ctx, task); err != nil {
		return Result{}, err
	}
	return Result{
		TaskID:      task.ID,
		ReportID:    task.ReportID,
		SourceCount: len(task.Sources),
		Summary:     task.Summary,
		Sources:     task.Sources,
	}, nil
}

// CreateArtifact starts generation of one studio artifact. Mind maps use
// their own method and take source ids from config["source_ids"].
func (o *Orchestrator) CreateArtifact(ctx context.Context, notebookID string, kind notebooklm.ArtifactKind, config map[string]interface{}) (json.RawMessage, error) {
	if kind == notebooklm.ArtifactMindMap {
		o.record(ctx, mangle.PredArtifactRequested, notebookID, string(kind), 0)
		return o.api.GenerateMindMap(ctx, notebookID, sourceIDs(config))
	}
	code, err := notebooklm.StudioTypeCode(kind)
	if err != nil {
		return nil, err
	}
	o.record(ctx, mangle.PredArtifactRequested, notebookID, string(kind), code)
	log.Printf("research: generating %s (code %d) in %s", kind, code, notebookID)
	return o.api.CreateStudioArtifact(ctx, notebookID, code, config)
}

func sourceIDs(config map[string]interface{}) []string {
	raw, ok := config["source_ids"]
	if !ok {
		raw = config["sourceIds"]
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		ids := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok && s != "" {
				ids = append(ids, s)
			}
		}
		return ids
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, task *store.ResearchTask, step string, err error) {
	log.Printf("research: task %s failed at %s: %v", task.ID, step, err)
	if step == StepPoll {
		task.Status = store.TaskFailed
	}
	task.Error = err.Error()
	o.save(ctx, task)
	o.record(ctx, mangle.PredResearchFailed, task.ID, step)
}

// save and record are best effort: bookkeeping failures never fail a run.
func (o *Orchestrator) save(ctx context.Context, task *store.ResearchTask) {
	if o.store == nil {
		return
	}
	if err := o.store.Save(context.WithoutCancel(ctx), task); err != nil {
		log.Printf("research: persist task %s: %v", task.ID, err)
	}
}

func (o *Orchestrator) record(ctx context.Context, predicate string, args ...interface{}) {
	if o.ledger == nil {
		return
	}
	if err := o.ledger.Record(ctx, predicate, args...); err != nil {
		log.Printf("research: ledger %s: %v", predicate, err)
	}
}
