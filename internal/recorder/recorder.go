// Package recorder writes RPC exchanges to rotating JSONL trace files so a
// change in the remote response shapes can be diagnosed after the fact.
package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"notebooklm-mcp-server/internal/rpc"
)

const (
	MaxRotatedFiles = 3
	TraceDir        = "data/traces"
	// BodyPrefixLimit caps how much of each raw response is kept.
	BodyPrefixLimit = 2048
)

// Event is one recorded exchange.
type Event struct {
	Timestamp  time.Time `json:"ts"`
	TraceID    string    `json:"trace_id"`
	Method     string    `json:"method"`
	MethodID   string    `json:"method_id"`
	SourcePath string    `json:"source_path,omitempty"`
	RequestID  int       `json:"request_id"`
	Status     int       `json:"status"`
	DurationMS int64     `json:"duration_ms"`
	Decoded    bool      `json:"decoded"`
	Error      string    `json:"error,omitempty"`
	Body       string    `json:"body,omitempty"`
}

// Recorder appends events to the current trace file and starts a new file
// once maxBytes have been written. Only the newest MaxRotatedFiles are kept.
type Recorder struct {
	mu       sync.Mutex
	file     *os.File
	encoder  *json.Encoder
	written  int64
	maxBytes int64
	label    string
	seq      int
	basePath string
}

// NewRecorder creates a recorder writing under basePath. maxBytes <= 0
// disables size-based rotation.
func NewRecorder(basePath string, maxBytes int64) (*Recorder, error) {
	if basePath == "" {
		basePath = TraceDir
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, err
	}
	return &Recorder{basePath: basePath, maxBytes: maxBytes}, nil
}

// Start opens a fresh trace file labelled with label.
func (r *Recorder) Start(label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.label = label
	return r.openLocked()
}

func (r *Recorder) openLocked() error {
	if r.file != nil {
		_ = r.file.Close()
		r.file, r.encoder = nil, nil
	}
	if err := r.rotate(); err != nil {
		return fmt.Errorf("rotate traces: %w", err)
	}

	r.seq++
	// Zero-padded so lexical order is creation order.
	name := fmt.Sprintf("rpc_%019d_%04d_%s.jsonl", time.Now().UnixNano(), r.seq%10000, sanitize(r.label))
	f, err := os.Create(filepath.Join(r.basePath, name))
	if err != nil {
		return err
	}
	r.file = f
	r.encoder = json.NewEncoder(f)
	r.written = 0
	return nil
}

// ObserveExchange records one exchange. It is a no-op before Start.
func (r *Recorder) ObserveExchange(ex rpc.Exchange) {
	evt := Event{
		Timestamp:  time.Now().UTC(),
		TraceID:    uuid.NewString(),
		Method:     string(ex.Method),
		MethodID:   ex.MethodID,
		SourcePath: ex.SourcePath,
		RequestID:  ex.RequestID,
		Status:     ex.StatusCode,
		DurationMS: ex.Duration.Milliseconds(),
		Decoded:    ex.Decoded,
		Body:       truncate(ex.Response, BodyPrefixLimit),
	}
	if ex.Err != nil {
		evt.Error = ex.Err.Error()
	}
	r.Log(evt)
}

// Log writes evt to the current trace file.
func (r *Recorder) Log(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return
	}
	line, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if r.maxBytes > 0 && r.written > 0 && r.written+int64(len(line))+1 > r.maxBytes {
		if err := r.openLocked(); err != nil {
			return
		}
	}
	n, _ := r.file.Write(append(line, '\n'))
	r.written += int64(n)
}

// rotate keeps the newest MaxRotatedFiles-1 traces, leaving room for the
// file about to be created.
func (r *Recorder) rotate() error {
	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return err
	}

	var traces []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" || !strings.HasPrefix(e.Name(), "rpc_") {
			continue
		}
		traces = append(traces, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(traces)))

	keep := MaxRotatedFiles - 1
	for i := keep; i < len(traces); i++ {
		_ = os.Remove(filepath.Join(r.basePath, traces[i]))
	}
	return nil
}

// Close finishes the current trace file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file, r.encoder = nil, nil
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func sanitize(label string) string {
	if label == "" {
		return "session"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '_'
	}, label)
}
