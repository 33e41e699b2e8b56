// Package types defines the shared domain types for collab: conversation
// state, intents, state patches, and the durable ledger records (tasks and
// vote tallies).
package types

import "time"

// =============================================================================
// CONVERSATION
// =============================================================================

// Role identifies the author side of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message. Immutable once appended to a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Author  string `json:"author,omitempty"` // user id, unset for assistant
	Content string `json:"content"`
}

// ConversationState is the shared state threaded through every chat turn.
// Messages grow append-only; Pending holds the intent currently in flight and
// is cleared when the turn ends. It is owned by a single session and never
// shared across sessions.
type ConversationState struct {
	Messages []Message `json:"messages"`
	Pending  *Intent   `json:"-"`
}

// LastMessage returns the most recent message, or nil for an empty history.
func (s *ConversationState) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// =============================================================================
// INTENTS
// =============================================================================

// IntentKind enumerates the recognized chat commands.
type IntentKind string

const (
	IntentNone         IntentKind = "none"
	IntentFreeQuestion IntentKind = "free_question"
	IntentRetrieve     IntentKind = "retrieve"
	IntentSummarize    IntentKind = "summarize"
	IntentVote         IntentKind = "vote"
	IntentCreateTask   IntentKind = "create_task"
	IntentMalformed    IntentKind = "malformed"
)

// Intent is the typed result of classifying one user message. It is a closed
// tagged union: Kind selects which payload fields are meaningful. Intents live
// for exactly one turn and are never persisted.
type Intent struct {
	Kind IntentKind

	// FreeQuestion / Summarize payload.
	Text string

	// Retrieve payload.
	Query string

	// Vote payload.
	Topic  string
	Choice string

	// CreateTask payload.
	Description string
	Assignee    string
	Deadline    string

	// Malformed payload: the usage hint surfaced to the user.
	Usage string
}

// =============================================================================
// STATE PATCHES
// =============================================================================

// StatePatch is a partial update produced by a handler node. Merging never
// replaces the message history: patch messages are appended after the
// existing ones. A non-nil Intent overwrites the pending intent.
type StatePatch struct {
	Messages []Message
	Intent   *Intent
}

// Apply folds the patch into the conversation state.
func (p StatePatch) Apply(s *ConversationState) {
	s.Messages = append(s.Messages, p.Messages...)
	if p.Intent != nil {
		s.Pending = p.Intent
	}
}

// =============================================================================
// LEDGER RECORDS
// =============================================================================

// VoteChoice is a canonical vote value. User input in other spellings
// (sim, não, nao, abster) folds to one of these.
type VoteChoice string

const (
	ChoiceYes     VoteChoice = "yes"
	ChoiceNo      VoteChoice = "no"
	ChoiceAbstain VoteChoice = "abstain"
)

// VoteRecord is one user's vote on a topic.
type VoteRecord struct {
	User   string     `json:"user"`
	Choice VoteChoice `json:"vote"`
}

// VoteTally is the per-topic score. Invariant: Yes+No+Abstain equals the
// number of records in Votes, and each user appears at most once.
type VoteTally struct {
	Topic   string       `json:"topic"`
	Yes     int          `json:"yes"`
	No      int          `json:"no"`
	Abstain int          `json:"abstain"`
	Votes   []VoteRecord `json:"votes"`
}

// Count returns the counter for the given canonical choice.
func (t *VoteTally) Count(c VoteChoice) int {
	switch c {
	case ChoiceYes:
		return t.Yes
	case ChoiceNo:
		return t.No
	case ChoiceAbstain:
		return t.Abstain
	}
	return 0
}

// Task is a collaborative task. Any collaborator may create, vote on, or
// complete any task; there is no ownership.
type Task struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Assignee    string    `json:"assignee"`
	Deadline    string    `json:"deadline"`
	CreatedAt   time.Time `json:"created_at"`
}

// =============================================================================
// RETRIEVAL
// =============================================================================

// Chunk is one retrievable unit of ingested document text.
type Chunk struct {
	Collection string  `json:"collection"`
	Source     string  `json:"source"` // originating document
	Seq        int     `json:"seq"`    // position within the document
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity,omitempty"` // set on retrieval results
}
