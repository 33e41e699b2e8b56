// Package session owns the per-session conversation state and drives chat
// turns through the routing graph. Sessions are independent: each holds its
// own ConversationState, and only transient identifiers ever reference the
// shared ledgers.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"collab/internal/graph"
	"collab/internal/logging"
	"collab/internal/types"
)

// Session drives chat turns for one user.
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"user"`

	state   types.ConversationState
	router  *graph.Router
	actions *logging.ActionLog
	dir     string // sessions directory; empty disables persistence
}

// New creates a fresh session with a generated id and user id.
func New(router *graph.Router, actions *logging.ActionLog, dir string) *Session {
	return &Session{
		ID:      fmt.Sprintf("sess_%d", time.Now().UnixNano()),
		UserID:  "user_" + uuid.NewString()[:6],
		router:  router,
		actions: actions,
		dir:     dir,
	}
}

// SetUserID overrides the generated user id (e.g. with a login name).
func (s *Session) SetUserID(id string) {
	if id != "" {
		s.UserID = id
	}
}

// Messages returns the conversation history.
func (s *Session) Messages() []types.Message {
	return s.state.Messages
}

// RunTurn appends the user's message, routes it, persists the history, and
// returns the messages the turn appended (user message included). A handler
// failure still persists the user message so the history stays faithful.
func (s *Session) RunTurn(ctx context.Context, text string) ([]types.Message, error) {
	before := len(s.state.Messages)

	s.state.Messages = append(s.state.Messages, types.Message{
		Role:    types.RoleUser,
		Author:  s.UserID,
		Content: text,
	})
	s.actions.Record(logging.Action{Type: logging.ActionMessage, User: s.UserID, Content: text})

	_, err := s.router.RunTurn(ctx, &s.state)
	if saveErr := s.save(); saveErr != nil {
		logging.Get(logging.CategorySession).Error("failed to persist session %s: %v", s.ID, saveErr)
	}
	if err != nil {
		return s.state.Messages[before:], err
	}
	return s.state.Messages[before:], nil
}

// Clear drops the conversation history (the session id survives).
func (s *Session) Clear() {
	s.state = types.ConversationState{}
	if err := s.save(); err != nil {
		logging.Get(logging.CategorySession).Error("failed to persist session %s: %v", s.ID, err)
	}
}

// =============================================================================
// PERSISTENCE
// =============================================================================

type sessionFile struct {
	ID       string          `json:"id"`
	UserID   string          `json:"user"`
	Messages []types.Message `json:"messages"`
}

func (s *Session) save() error {
	if s.dir == "" {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create sessions directory: %w", err)
	}

	data, err := json.MarshalIndent(sessionFile{
		ID:       s.ID,
		UserID:   s.UserID,
		Messages: s.state.Messages,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	path := filepath.Join(s.dir, s.ID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Load restores a previously saved session.
func Load(router *graph.Router, actions *logging.ActionLog, dir, id string) (*Session, error) {
	data, err := os.ReadFile(filepath.Join(dir, id+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}
	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse session %s: %w", id, err)
	}

	return &Session{
		ID:      sf.ID,
		UserID:  sf.UserID,
		state:   types.ConversationState{Messages: sf.Messages},
		router:  router,
		actions: actions,
		dir:     dir,
	}, nil
}

// List returns the saved session ids under dir, newest first.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}
