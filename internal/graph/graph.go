// Package graph implements the command-routing state machine. Each chat turn
// runs one pass: the latest user message is classified into an intent, the
// conditional edge table dispatches it to a handler node, and the handler's
// state patch is merged back into the shared conversation state.
package graph

import (
	"context"
	"fmt"

	"collab/internal/logging"
	"collab/internal/perception"
	"collab/internal/retrieval"
	"collab/internal/store"
	"collab/internal/types"
)

// phase is the router's position within one turn. The machine is terminal
// per turn: nothing but the message history survives into the next one.
type phase int

const (
	phaseIdle phase = iota
	phaseClassified
	phaseDispatched
	phaseMerged
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseClassified:
		return "classified"
	case phaseDispatched:
		return "dispatched"
	case phaseMerged:
		return "merged"
	}
	return "unknown"
}

// NodeFunc is one handler node. It receives the in-flight intent and returns
// a partial state update; it must not mutate the state directly.
type NodeFunc func(ctx context.Context, st *types.ConversationState, intent types.Intent) (types.StatePatch, error)

// Router owns the node table and dispatches turns. Construct it once at
// process start and share it across sessions; per-turn state lives on the
// stack, so concurrent turns from independent sessions are safe.
type Router struct {
	adapter    *retrieval.Adapter
	ledger     *store.LocalStore
	actions    *logging.ActionLog
	collection string
	nodes      map[types.IntentKind]NodeFunc
}

// NewRouter wires the handler nodes to their collaborators. collection names
// the vector collection the rag node searches.
func NewRouter(adapter *retrieval.Adapter, ledger *store.LocalStore, actions *logging.ActionLog, collection string) *Router {
	r := &Router{
		adapter:    adapter,
		ledger:     ledger,
		actions:    actions,
		collection: collection,
	}
	// The conditional edge table: intent kind -> handler node.
	r.nodes = map[types.IntentKind]NodeFunc{
		types.IntentFreeQuestion: r.llmNode,
		types.IntentRetrieve:     r.ragNode,
		types.IntentSummarize:    r.summarizerNode,
		types.IntentVote:         r.voteNode,
		types.IntentCreateTask:   r.taskNode,
	}
	return r
}

// RunTurn drives one turn: classify the last user message, dispatch, merge.
// It returns the messages appended during the turn. Handler failures abort
// the turn; the conversation state is left unmodified past the messages
// already present, and ledger state is never touched by a failed external
// call (free-question and retrieval handlers reach no ledger).
func (r *Router) RunTurn(ctx context.Context, st *types.ConversationState) ([]types.Message, error) {
	log := logging.Get(logging.CategoryRouting)

	last := st.LastMessage()
	if last == nil || last.Role != types.RoleUser {
		return nil, fmt.Errorf("turn requires a trailing user message")
	}

	p := phaseIdle
	before := len(st.Messages)

	// Idle -> Classified
	intent := perception.Classify(last.Content)
	classifyPatch := types.StatePatch{Intent: &intent}
	classifyPatch.Apply(st)
	p = phaseClassified
	log.Debug("turn: %s, intent=%s", p, intent.Kind)

	// Malformed commands short-circuit: the usage hint becomes the reply and
	// no handler runs.
	if intent.Kind == types.IntentMalformed {
		st.Messages = append(st.Messages, types.Message{
			Role:    types.RoleAssistant,
			Content: intent.Usage,
		})
		st.Pending = nil
		return st.Messages[before:], nil
	}

	node, ok := r.nodes[intent.Kind]
	if !ok {
		st.Pending = nil
		return nil, fmt.Errorf("no handler node for intent %s", intent.Kind)
	}

	// Classified -> Dispatched
	p = phaseDispatched
	patch, err := node(ctx, st, intent)
	if err != nil {
		st.Pending = nil
		return nil, err
	}

	// Dispatched -> Merged
	patch.Apply(st)
	p = phaseMerged
	log.Debug("turn: %s, +%d messages", p, len(patch.Messages))

	// Merged -> Idle: per-turn scratch must not leak into the next turn.
	st.Pending = nil

	return st.Messages[before:], nil
}
