package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestActionLogAppend(t *testing.T) {
	dir := t.TempDir()
	al, err := OpenActionLog(dir)
	if err != nil {
		t.Fatalf("OpenActionLog: %v", err)
	}
	defer al.Close()

	al.Record(Action{Type: ActionMessage, User: "alice", Content: "hello"})
	al.Record(Action{Type: ActionVote, User: "bob", Topic: "t1", Vote: "yes"})

	f, err := os.Open(filepath.Join(dir, "actions.jsonl"))
	if err != nil {
		t.Fatalf("open actions.jsonl: %v", err)
	}
	defer f.Close()

	var lines []Action
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var a Action
		if err := json.Unmarshal(scanner.Bytes(), &a); err != nil {
			t.Fatalf("invalid JSON line: %v", err)
		}
		lines = append(lines, a)
	}

	if len(lines) != 2 {
		t.Fatalf("expected 2 events, got %d", len(lines))
	}
	if lines[0].Type != ActionMessage || lines[0].User != "alice" {
		t.Errorf("unexpected first event: %+v", lines[0])
	}
	if lines[1].Topic != "t1" || lines[1].Vote != "yes" {
		t.Errorf("unexpected second event: %+v", lines[1])
	}
	if lines[0].Time.IsZero() {
		t.Error("event timestamp was not stamped")
	}
}

func TestActionLogConcurrentAppends(t *testing.T) {
	dir := t.TempDir()
	al, err := OpenActionLog(dir)
	if err != nil {
		t.Fatalf("OpenActionLog: %v", err)
	}
	defer al.Close()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			al.Record(Action{Type: ActionSummary})
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(filepath.Join(dir, "actions.jsonl"))
	if err != nil {
		t.Fatalf("read actions.jsonl: %v", err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	count := 0
	for scanner.Scan() {
		var a Action
		if err := json.Unmarshal(scanner.Bytes(), &a); err != nil {
			t.Fatalf("interleaved write produced invalid JSON: %v", err)
		}
		count++
	}
	if count != n {
		t.Errorf("expected %d lines, got %d", n, count)
	}
	if al.Dropped() != 0 {
		t.Errorf("expected no drops, got %d", al.Dropped())
	}
}

func TestActionLogRecordAfterClose(t *testing.T) {
	al, err := OpenActionLog(t.TempDir())
	if err != nil {
		t.Fatalf("OpenActionLog: %v", err)
	}
	if err := al.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Must not panic or error the caller; counts as a drop.
	al.Record(Action{Type: ActionMessage})
	if al.Dropped() != 1 {
		t.Errorf("expected 1 drop, got %d", al.Dropped())
	}
}
