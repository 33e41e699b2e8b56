// Task ledger: the shared ordered list of collaborative tasks. Creating a
// task also initializes its vote tally; completing one deletes both.
package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"collab/internal/logging"
	"collab/internal/types"
)

// newTaskID returns a short unique task identifier, e.g. task_3fa85f64.
func newTaskID() string {
	return "task_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// CreateTask appends a task to the ledger, initializes an empty vote tally
// keyed by the task id, and returns the new task.
func (s *LocalStore) CreateTask(description, assignee, deadline string) (*types.Task, error) {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()

	task := &types.Task{
		ID:          newTaskID(),
		Description: description,
		Assignee:    assignee,
		Deadline:    deadline,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin task transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO tasks (id, description, assignee, deadline, created_at) VALUES (?, ?, ?, ?, ?)",
		task.ID, task.Description, task.Assignee, task.Deadline, task.CreatedAt.Format(time.RFC3339),
	); err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO vote_tallies (topic) VALUES (?)", task.ID); err != nil {
		return nil, fmt.Errorf("failed to initialize task tally: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to persist task: %w", err)
	}

	s.actions.Record(logging.Action{
		Type:     logging.ActionTask,
		Task:     task.Description,
		Assignee: task.Assignee,
	})
	logging.Get(logging.CategoryStore).Debug("task created: %s (%s)", task.ID, task.Description)

	return task, nil
}

// CompleteTask removes the task and deletes its vote tally. Completing an
// unknown id is a silent no-op.
func (s *LocalStore) CompleteTask(id string) error {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin task transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM tasks WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if err := deleteTally(tx, id); err != nil {
		return fmt.Errorf("failed to delete task tally: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to persist task completion: %w", err)
	}

	logging.Get(logging.CategoryStore).Debug("task completed: %s", id)
	return nil
}

// ListTasks returns all tasks in creation order.
func (s *LocalStore) ListTasks() ([]types.Task, error) {
	rows, err := s.db.Query("SELECT id, description, assignee, deadline, created_at FROM tasks ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		var t types.Task
		var created string
		if err := rows.Scan(&t.ID, &t.Description, &t.Assignee, &t.Deadline, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339, created); err == nil {
			t.CreatedAt = ts
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
