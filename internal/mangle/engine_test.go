package mangle

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"notebooklm-mcp-server/internal/config"
	"notebooklm-mcp-server/internal/rpc"
)

func newLedger(t *testing.T, limit int) *Engine {
	t.Helper()
	e, err := NewEngine(config.LedgerConfig{Enable: true, FactBufferLimit: limit})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func TestEngineLoadsEmbeddedSchema(t *testing.T) {
	if !newLedger(t, 100).Ready() {
		t.Fatal("ledger not ready after schema load")
	}
}

func TestEngineRecordAndIndex(t *testing.T) {
	e := newLedger(t, 100)
	ctx := context.Background()

	if err := e.Record(ctx, PredResearchStarted, "nb1", "task1", "comprehensive"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := e.Record(ctx, PredResearchStatus, "task1", 1); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if got := len(e.Facts()); got != 2 {
		t.Errorf("expected 2 facts, got %d", got)
	}
	started := e.FactsByPredicate(PredResearchStarted)
	if len(started) != 1 || started[0].Args[1] != "task1" {
		t.Errorf("research_started = %+v", started)
	}
}

func TestEngineDerivesResearchComplete(t *testing.T) {
	e := newLedger(t, 100)
	ctx := context.Background()

	facts := []Fact{
		{Predicate: PredResearchStatus, Args: []interface{}{"running", 1}, Timestamp: time.Now()},
		{Predicate: PredResearchStatus, Args: []interface{}{"done", 2}, Timestamp: time.Now()},
		{Predicate: PredResearchStatus, Args: []interface{}{"imported", 6}, Timestamp: time.Now()},
	}
	if err := e.AddFacts(ctx, facts); err != nil {
		t.Fatalf("AddFacts: %v", err)
	}

	complete, err := e.Evaluate(ctx, "research_complete")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got := map[interface{}]bool{}
	for _, f := range complete {
		got[f.Args[0]] = true
	}
	if len(got) != 2 || !got["done"] || !got["imported"] {
		t.Errorf("research_complete = %+v", complete)
	}
}

func TestEngineQueryBindsVariables(t *testing.T) {
	e := newLedger(t, 100)
	ctx := context.Background()
	if err := e.Record(ctx, PredResearchImported, "task9", 3); err != nil {
		t.Fatal(err)
	}

	results, err := e.Query(ctx, "research_imported(T, N).")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0]["T"] != "task9" {
		t.Errorf("results = %+v", results)
	}
}

func TestEngineObserveExchange(t *testing.T) {
	e := newLedger(t, 100)
	e.ObserveExchange(rpc.Exchange{MethodID: "wXbhsf", RequestID: 200000, StatusCode: 200})

	calls := e.FactsByPredicate(PredRPCCall)
	if len(calls) != 1 || calls[0].Args[0] != "wXbhsf" {
		t.Errorf("rpc_call = %+v", calls)
	}
}

func TestEngineEvaluateUnknownPredicate(t *testing.T) {
	if _, err := newLedger(t, 10).Evaluate(context.Background(), "nope"); err == nil {
		t.Error("expected error for undeclared predicate")
	}
}

func TestEngineBufferLimit(t *testing.T) {
	e := newLedger(t, 3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := e.Record(ctx, PredResearchStatus, "t", i); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(e.Facts()); got != 3 {
		t.Errorf("buffer holds %d facts, want 3", got)
	}
	if got := len(e.FactsByPredicate(PredResearchStatus)); got != 3 {
		t.Errorf("index holds %d facts, want 3", got)
	}

	stored, err := e.Evaluate(ctx, PredResearchStatus)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(stored) != 3 {
		t.Errorf("store holds %d research_status facts, want 3: %+v", len(stored), stored)
	}
	for _, f := range stored {
		if n, ok := f.Args[1].(int64); !ok || n < 2 {
			t.Errorf("trimmed fact still in store: %+v", f)
		}
	}
}

func TestEngineNumericArgs(t *testing.T) {
	e := newLedger(t, 100)
	ctx := context.Background()
	if err := e.Record(ctx, PredResearchStatus, "task-1", 2); err != nil {
		t.Fatal(err)
	}

	facts, err := e.Evaluate(ctx, PredResearchStatus)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(facts) != 1 || facts[0].Args[1] != int64(2) {
		t.Errorf("research_status = %+v", facts)
	}

	results, err := e.Query(ctx, "research_status(T, C).")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0]["C"] != int64(2) {
		t.Errorf("results = %+v", results)
	}
	if _, err := json.Marshal(results); err != nil {
		t.Errorf("query results not encodable: %v", err)
	}
}

func TestEngineDerivesRPCFailure(t *testing.T) {
	e := newLedger(t, 100)
	ctx := context.Background()
	e.ObserveExchange(rpc.Exchange{MethodID: "wXbhsf", RequestID: 100000, StatusCode: 200})
	e.ObserveExchange(rpc.Exchange{MethodID: "CCqFvf", RequestID: 200000, StatusCode: 500})

	failures, err := e.Evaluate(ctx, "rpc_failure")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(failures) != 1 {
		t.Fatalf("rpc_failure = %+v", failures)
	}
	want := []interface{}{"CCqFvf", int64(500)}
	if !reflect.DeepEqual(failures[0].Args, want) {
		t.Errorf("rpc_failure args = %#v, want %#v", failures[0].Args, want)
	}
}

func TestEngineDisabled(t *testing.T) {
	e, err := NewEngine(config.LedgerConfig{Enable: false})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.Record(context.Background(), PredResearchStatus, "t", 2); err != nil {
		t.Errorf("Record should be a no-op: %v", err)
	}
	if len(e.Facts()) != 0 {
		t.Error("disabled ledger should not buffer")
	}
	if !e.Ready() {
		t.Error("disabled ledger reports ready")
	}
	if _, err := e.Query(context.Background(), "research_complete(T)."); err == nil {
		t.Error("query on disabled ledger should fail")
	}
}
