package mangle

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync"
	"time"

	"notebooklm-mcp-server/internal/config"
	"notebooklm-mcp-server/internal/rpc"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

// Fact is one workflow observation.
type Fact struct {
	Predicate string        `json:"predicate"`
	Args      []interface{} `json:"args"`
	Timestamp time.Time     `json:"timestamp"`
}

// QueryResult binds query variables to values.
type QueryResult map[string]interface{}

// lowValuePredicates may be sampled when the buffer is under pressure.
// Research facts never are.
var lowValuePredicates = map[string]bool{
	PredRPCCall: true,
}

// Engine is the research ledger: a bounded fact buffer mirrored into a
// Mangle store, re-evaluated after every insert so derived predicates stay
// current.
type Engine struct {
	cfg          config.LedgerConfig
	mu           sync.RWMutex
	schemaLoaded bool

	programInfo *analysis.ProgramInfo
	store       factstore.FactStore

	facts []Fact
	index map[string][]int

	samplingRate float64
}

// NewEngine builds a ledger with the embedded schema, plus the rules file
// named in cfg.RulesPath when set.
func NewEngine(cfg config.LedgerConfig) (*Engine, error) {
	e := &Engine{
		cfg:          cfg,
		facts:        make([]Fact, 0, cfg.FactBufferLimit),
		index:        make(map[string][]int),
		store:        factstore.NewSimpleInMemoryStore(),
		samplingRate: 1.0,
	}
	if !cfg.Enable {
		return e, nil
	}

	source := ledgerSchema
	if cfg.RulesPath != "" {
		extra, err := os.ReadFile(cfg.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("read ledger rules: %w", err)
		}
		source += "\n" + string(extra)
	}
	if err := e.loadSchema(source); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) loadSchema(source string) error {
	unit, err := parse.Unit(bytes.NewReader([]byte(source)))
	if err != nil {
		return fmt.Errorf("parse schema: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, make(map[ast.PredicateSym]ast.Decl))
	if err != nil {
		return fmt.Errorf("analyze schema: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.programInfo = programInfo
	e.schemaLoaded = true
	return nil
}

// Record adds a single fact stamped with the current time.
func (e *Engine) Record(ctx context.Context, predicate string, args ...interface{}) error {
	return e.AddFacts(ctx, []Fact{{Predicate: predicate, Args: args, Timestamp: time.Now()}})
}

// AddFacts appends facts to the buffer and the store, then re-evaluates
// the program.
func (e *Engine) AddFacts(ctx context.Context, facts []Fact) error {
	if !e.cfg.Enable {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.updateSamplingRate()
	accepted := make([]Fact, 0, len(facts))
	for _, f := range facts {
		if e.shouldAccept(f) {
			accepted = append(accepted, f)
		}
	}

	base := len(e.facts)
	e.facts = append(e.facts, accepted...)
	if e.cfg.FactBufferLimit > 0 && len(e.facts) > e.cfg.FactBufferLimit {
		e.facts = e.facts[len(e.facts)-e.cfg.FactBufferLimit:]
		e.rebuildIndex()
		// The store mirrors the buffer; trimmed facts leave it too.
		e.rebuildStore()
	} else {
		for i, f := range accepted {
			e.index[f.Predicate] = append(e.index[f.Predicate], base+i)
		}
		for _, f := range accepted {
			e.store.Add(e.factToAtom(f))
		}
	}

	if e.schemaLoaded && e.programInfo != nil {
		if err := engine.EvalProgram(e.programInfo, e.store); err != nil {
			return fmt.Errorf("eval program after fact insertion: %w", err)
		}
	}
	return nil
}

// ObserveExchange records every RPC as rpc_call(Method, RequestId, Status).
// Network failures are recorded with status 0.
func (e *Engine) ObserveExchange(ex rpc.Exchange) {
	if err := e.Record(context.Background(), PredRPCCall, ex.MethodID, ex.RequestID, ex.StatusCode); err != nil {
		log.Printf("ledger: record rpc_call %s: %v", ex.MethodID, err)
	}
}

// updateSamplingRate throttles low-value facts once the buffer is mostly
// full.
func (e *Engine) updateSamplingRate() {
	if e.cfg.FactBufferLimit <= 0 {
		e.samplingRate = 1.0
		return
	}
	fill := float64(len(e.facts)) / float64(e.cfg.FactBufferLimit)
	switch {
	case fill < 0.5:
		e.samplingRate = 1.0
	case fill < 0.8:
		e.samplingRate = 0.5
	default:
		e.samplingRate = 0.1
	}
}

func (e *Engine) shouldAccept(f Fact) bool {
	if !lowValuePredicates[f.Predicate] || e.samplingRate >= 1.0 {
		return true
	}
	return rand.Float64() < e.samplingRate
}

// SamplingRate reports the current rate applied to low-value facts.
func (e *Engine) SamplingRate() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.samplingRate
}

// Query runs a single-atom query such as `research_complete(T).` and
// returns the variable bindings.
func (e *Engine) Query(ctx context.Context, queryStr string) ([]QueryResult, error) {
	if !e.Ready() || !e.cfg.Enable {
		return nil, fmt.Errorf("ledger not ready")
	}
	unit, err := parse.Unit(bytes.NewReader([]byte(queryStr)))
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	if len(unit.Clauses) == 0 {
		return nil, fmt.Errorf("no query found")
	}
	queryAtom := unit.Clauses[0].Head

	e.mu.RLock()
	defer e.mu.RUnlock()

	results := make([]QueryResult, 0)
	err = e.store.GetFacts(queryAtom, func(atom ast.Atom) error {
		result := make(QueryResult)
		for i, arg := range queryAtom.Args {
			if i >= len(atom.Args) {
				break
			}
			if v, ok := arg.(ast.Variable); ok {
				result[v.Symbol] = convertConstant(atom.Args[i])
			}
		}
		results = append(results, result)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query execution: %w", err)
	}
	return results, nil
}

// Evaluate re-runs the program and returns all facts for predicate,
// extensional or derived.
func (e *Engine) Evaluate(ctx context.Context, predicate string) ([]Fact, error) {
	if !e.cfg.Enable || !e.Ready() {
		return nil, fmt.Errorf("ledger not ready")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := engine.EvalProgram(e.programInfo, e.store); err != nil {
		return nil, fmt.Errorf("eval program: %w", err)
	}

	arity := -1
	for sym := range e.programInfo.Decls {
		if sym.Symbol == predicate {
			arity = sym.Arity
			break
		}
	}
	if arity < 0 {
		return nil, fmt.Errorf("unknown predicate %q", predicate)
	}

	args := make([]ast.BaseTerm, arity)
	for i := range args {
		args[i] = ast.Variable{Symbol: fmt.Sprintf("V%d", i)}
	}
	query := ast.Atom{Predicate: ast.PredicateSym{Symbol: predicate, Arity: arity}, Args: args}

	facts := make([]Fact, 0)
	now := time.Now()
	err := e.store.GetFacts(query, func(atom ast.Atom) error {
		out := make([]interface{}, len(atom.Args))
		for i, a := range atom.Args {
			out[i] = convertConstant(a)
		}
		facts = append(facts, Fact{Predicate: predicate, Args: out, Timestamp: now})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get facts: %w", err)
	}
	return facts, nil
}

// FactsByPredicate returns buffered facts for one predicate in insertion
// order.
func (e *Engine) FactsByPredicate(predicate string) []Fact {
	e.mu.RLock()
	defer e.mu.RUnlock()

	indices := e.index[predicate]
	out := make([]Fact, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(e.facts) {
			out = append(out, e.facts[idx])
		}
	}
	return out
}

// Facts returns a copy of the buffer.
func (e *Engine) Facts() []Fact {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Fact, len(e.facts))
	copy(out, e.facts)
	return out
}

// Ready reports whether queries can run. A disabled ledger is always ready.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.schemaLoaded || !e.cfg.Enable
}

func (e *Engine) factToAtom(f Fact) ast.Atom {
	args := make([]ast.BaseTerm, len(f.Args))
	for i, arg := range f.Args {
		args[i] = toConstant(arg)
	}
	return ast.Atom{Predicate: ast.PredicateSym{Symbol: f.Predicate, Arity: len(f.Args)}, Args: args}
}

func (e *Engine) rebuildStore() {
	e.store = factstore.NewSimpleInMemoryStore()
	for _, f := range e.facts {
		e.store.Add(e.factToAtom(f))
	}
}

func (e *Engine) rebuildIndex() {
	e.index = make(map[string][]int)
	for i, f := range e.facts {
		e.index[f.Predicate] = append(e.index[f.Predicate], i)
	}
}

func toConstant(v interface{}) ast.Constant {
	switch val := v.(type) {
	case string:
		return ast.String(val)
	case int:
		return ast.Number(int64(val))
	case int64:
		return ast.Number(val)
	case float64:
		return ast.Float64(val)
	case bool:
		if val {
			return ast.String("true")
		}
		return ast.String("false")
	default:
		return ast.String(fmt.Sprintf("%v", v))
	}
}

func convertConstant(c ast.BaseTerm) interface{} {
	switch term := c.(type) {
	case ast.Constant:
		switch term.Type {
		case ast.StringType:
			val, _ := term.StringValue()
			return val
		case ast.NumberType:
			if n, err := term.NumberValue(); err == nil {
				return n
			}
		case ast.Float64Type:
			if val, err := term.Float64Value(); err == nil {
				return val
			}
		}
		return term.String()
	case ast.Variable:
		return term.Symbol
	case nil:
		return nil
	default:
		return fmt.Sprintf("%v", c)
	}
}
