// Package perception turns raw chat input into typed intents. Classification
// is a pure function: command keywords are matched case-insensitively at the
// start of the message, payloads keep their original casing, and malformed
// commands classify to a first-class malformed intent rather than an error.
package perception

import (
	"strings"

	"collab/internal/types"
)

// Command prefixes recognized in chat. Kept in the original Portuguese: they
// are the product's user-facing command language.
const (
	prefixRetrieve  = "buscar:"
	prefixSummarize = "resumir:"
	prefixVote      = "votar:"
	prefixTask      = "tarefa:"
)

// Usage hints appended to the conversation on malformed commands.
const (
	usageVote = "Formato inválido. Use: votar: tema ; escolha"
	usageTask = "Formato inválido. Use: tarefa: descrição ; usuário ; prazo"
)

// Classify parses one user message into an Intent. Rules are applied in
// order; a message matching no command prefix is a free question carrying the
// original text.
func Classify(message string) types.Intent {
	trimmed := strings.TrimSpace(message)
	lower := strings.ToLower(trimmed)

	switch {
	case strings.HasPrefix(lower, prefixRetrieve):
		return types.Intent{
			Kind:  types.IntentRetrieve,
			Query: payload(trimmed, prefixRetrieve),
		}

	case strings.HasPrefix(lower, prefixSummarize):
		return types.Intent{
			Kind: types.IntentSummarize,
			Text: payload(trimmed, prefixSummarize),
		}

	case strings.HasPrefix(lower, prefixVote):
		parts := strings.Split(payload(trimmed, prefixVote), ";")
		if len(parts) != 2 {
			return types.Intent{Kind: types.IntentMalformed, Usage: usageVote}
		}
		return types.Intent{
			Kind:   types.IntentVote,
			Topic:  strings.TrimSpace(parts[0]),
			Choice: strings.TrimSpace(parts[1]),
		}

	case strings.HasPrefix(lower, prefixTask):
		parts := strings.Split(payload(trimmed, prefixTask), ";")
		if len(parts) != 3 {
			return types.Intent{Kind: types.IntentMalformed, Usage: usageTask}
		}
		return types.Intent{
			Kind:        types.IntentCreateTask,
			Description: strings.TrimSpace(parts[0]),
			Assignee:    strings.TrimSpace(parts[1]),
			Deadline:    strings.TrimSpace(parts[2]),
		}

	default:
		return types.Intent{Kind: types.IntentFreeQuestion, Text: message}
	}
}

// payload slices the command remainder out of the original-cased message so
// the keyword match stays case-insensitive while the payload keeps its case.
func payload(trimmed, prefix string) string {
	return strings.TrimSpace(trimmed[len(prefix):])
}
