package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCreateTaskInitializesTally(t *testing.T) {
	s := newTestStore(t)

	task, err := s.CreateTask("write docs", "bob", "2024-12-01")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.ID == "" {
		t.Fatal("task id is empty")
	}
	if task.Description != "write docs" || task.Assignee != "bob" || task.Deadline != "2024-12-01" {
		t.Errorf("unexpected task: %+v", task)
	}
	if task.CreatedAt.IsZero() {
		t.Error("creation time not stamped")
	}

	// The task's tally exists and starts at zero.
	tally, err := s.GetTally(task.ID)
	if err != nil {
		t.Fatalf("GetTally: %v", err)
	}
	if tally.Yes != 0 || tally.No != 0 || tally.Abstain != 0 || len(tally.Votes) != 0 {
		t.Errorf("new task tally not empty: %+v", tally)
	}
}

func TestTaskIDsAreUnique(t *testing.T) {
	s := newTestStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		task, err := s.CreateTask("t", "a", "d")
		if err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
		if seen[task.ID] {
			t.Fatalf("duplicate task id %s", task.ID)
		}
		seen[task.ID] = true
	}
}

func TestCompleteTaskRemovesTaskAndTally(t *testing.T) {
	s := newTestStore(t)

	task, err := s.CreateTask("write docs", "bob", "2024-12-01")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := s.CastVote(task.ID, "alice", "sim"); err != nil {
		t.Fatalf("CastVote: %v", err)
	}

	if err := s.CompleteTask(task.ID); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	tasks, err := s.ListTasks()
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("task still listed after completion: %+v", tasks)
	}
	if _, err := s.GetTally(task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for completed task tally, got %v", err)
	}
}

func TestCompleteUnknownTaskIsNoOp(t *testing.T) {
	s := newTestStore(t)
	if err := s.CompleteTask("task_missing"); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
}

func TestListTasksCreationOrder(t *testing.T) {
	s := newTestStore(t)

	first, _ := s.CreateTask("first", "a", "d1")
	second, _ := s.CreateTask("second", "b", "d2")
	third, _ := s.CreateTask("third", "c", "d3")

	tasks, err := s.ListTasks()
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	var ids []string
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	want := []string{first.ID, second.ID, third.ID}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("task order (-want +got):\n%s", diff)
	}
}

func TestTaskRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collab.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	want, err := s.CreateTask("write docs", "bob", "2024-12-01")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	tasks, err := s2.ListTasks()
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if diff := cmp.Diff(*want, tasks[0]); diff != "" {
		t.Errorf("task did not round-trip (-want +got):\n%s", diff)
	}
}
