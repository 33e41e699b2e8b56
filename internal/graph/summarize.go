package graph

// noText is the reply for an empty summarization request.
const noText = "Nenhum texto fornecido para resumo."

// Summarize is a deliberate placeholder for a future generative summarizer:
// short texts pass through unchanged, long ones are truncated to their first
// 400 characters plus an ellipsis marker. Lengths are counted in characters,
// not bytes, so accented text truncates cleanly.
func Summarize(text string) string {
	if text == "" {
		return noText
	}

	runes := []rune(text)
	if len(runes) < 300 {
		return text
	}
	if len(runes) > 400 {
		runes = runes[:400]
	}
	return string(runes) + "..."
}
