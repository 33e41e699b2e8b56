// Handler nodes. Each returns a state patch; none mutates the conversation
// state directly.
package graph

import (
	"context"
	"fmt"
	"strings"

	"collab/internal/logging"
	"collab/internal/types"
)

// noResults is the reply when retrieval finds nothing.
const noResults = "Nenhum resultado encontrado."

// assistant wraps content in a single-message patch.
func assistant(content string) types.StatePatch {
	return types.StatePatch{
		Messages: []types.Message{{Role: types.RoleAssistant, Content: content}},
	}
}

// llmNode answers a free question with a single direct generation call on the
// raw text. No retrieval, no retry; failure fails the turn.
func (r *Router) llmNode(ctx context.Context, _ *types.ConversationState, intent types.Intent) (types.StatePatch, error) {
	answer, err := r.adapter.Generate(ctx, intent.Text)
	if err != nil {
		return types.StatePatch{}, err
	}
	return assistant(answer), nil
}

// ragNode runs similarity search and joins the resulting chunks into one
// assistant message.
func (r *Router) ragNode(ctx context.Context, _ *types.ConversationState, intent types.Intent) (types.StatePatch, error) {
	chunks, err := r.adapter.Retrieve(ctx, intent.Query, r.collection)
	if err != nil {
		return types.StatePatch{}, err
	}

	text := noResults
	if len(chunks) > 0 {
		parts := make([]string, len(chunks))
		for i, c := range chunks {
			parts[i] = c.Content
		}
		text = strings.Join(parts, "\n")
	}

	r.actions.Record(logging.Action{Type: logging.ActionQuery, Query: intent.Query})
	return assistant(text), nil
}

// summarizerNode applies the placeholder truncation policy.
func (r *Router) summarizerNode(_ context.Context, _ *types.ConversationState, intent types.Intent) (types.StatePatch, error) {
	summary := Summarize(intent.Text)
	r.actions.Record(logging.Action{Type: logging.ActionSummary})
	return assistant(summary), nil
}

// voteNode delegates to the vote ledger. The voter is the author of the
// triggering message. Ledger rejections (invalid choice, duplicate vote)
// propagate as structured errors with the conversation unchanged.
func (r *Router) voteNode(_ context.Context, st *types.ConversationState, intent types.Intent) (types.StatePatch, error) {
	user := "desconhecido"
	if last := st.LastMessage(); last != nil && last.Author != "" {
		user = last.Author
	}

	tally, err := r.ledger.CastVote(intent.Topic, user, intent.Choice)
	if err != nil {
		return types.StatePatch{}, err
	}

	return assistant(fmt.Sprintf(
		"Placar de %q: sim=%d não=%d abster=%d (%d votos)",
		tally.Topic, tally.Yes, tally.No, tally.Abstain, len(tally.Votes),
	)), nil
}

// taskNode delegates to the task ledger.
func (r *Router) taskNode(_ context.Context, _ *types.ConversationState, intent types.Intent) (types.StatePatch, error) {
	task, err := r.ledger.CreateTask(intent.Description, intent.Assignee, intent.Deadline)
	if err != nil {
		return types.StatePatch{}, err
	}
	return assistant(fmt.Sprintf("Tarefa criada com sucesso! (%s)", task.ID)), nil
}
