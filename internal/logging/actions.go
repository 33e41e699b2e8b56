// Action log: the durable, append-only, newline-delimited JSON record of
// user-visible events (messages, searches, summaries, votes, tasks, index
// runs). Write-only from the core's perspective; it exists for audit.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// ActionType identifies the kind of recorded event.
type ActionType string

const (
	ActionMessage ActionType = "message"
	ActionQuery   ActionType = "rag_query"
	ActionSummary ActionType = "summary"
	ActionVote    ActionType = "vote"
	ActionTask    ActionType = "task"
	ActionIndex   ActionType = "index"
)

// Action is one audit event. Only the fields relevant to the event type are
// set; the rest are omitted from the JSON line.
type Action struct {
	Time     time.Time  `json:"ts"`
	Type     ActionType `json:"type"`
	User     string     `json:"user,omitempty"`
	Content  string     `json:"content,omitempty"`
	Query    string     `json:"query,omitempty"`
	Topic    string     `json:"topic,omitempty"`
	Vote     string     `json:"vote,omitempty"`
	Task     string     `json:"task,omitempty"`
	Assignee string     `json:"assignee,omitempty"`
	Count    int        `json:"count,omitempty"`
}

// ActionLog appends events to actions.jsonl. Appends are serialized among
// themselves. A failed write never fails the caller: the event is dropped,
// counted, and reported through the debug logger so silent loss stays bounded.
type ActionLog struct {
	path    string
	mu      sync.Mutex
	file    *os.File
	dropped atomic.Int64
}

// OpenActionLog opens (creating if needed) the action log under dir.
func OpenActionLog(dir string) (*ActionLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create action log directory: %w", err)
	}
	path := filepath.Join(dir, "actions.jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open action log: %w", err)
	}
	return &ActionLog{path: path, file: file}, nil
}

// Record appends one event. Best-effort: errors are swallowed after being
// counted and logged.
func (a *ActionLog) Record(action Action) {
	if a == nil {
		return
	}
	if action.Time.IsZero() {
		action.Time = time.Now()
	}

	line, err := json.Marshal(action)
	if err != nil {
		a.dropped.Add(1)
		Get(CategoryActions).Error("dropped action (marshal): %v", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		a.dropped.Add(1)
		return
	}
	if _, err := a.file.Write(append(line, '\n')); err != nil {
		a.dropped.Add(1)
		Get(CategoryActions).Error("dropped action (write): %v", err)
	}
}

// Dropped returns how many events failed to persist since open.
func (a *ActionLog) Dropped() int64 {
	if a == nil {
		return 0
	}
	return a.dropped.Load()
}

// Path returns the backing file path.
func (a *ActionLog) Path() string { return a.path }

// Close closes the backing file. Record calls after Close count as drops.
func (a *ActionLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}
