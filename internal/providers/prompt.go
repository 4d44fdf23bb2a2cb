package providers

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a hedge fund trading algorithm. Analyze news strictly. ` +
	`Respond with a JSON array only; no prose, no markdown fences.`

// buildUserPrompt renders the batch, per-chunk historical context, the
// required output schema, and any repair hints from a failed attempt.
func buildUserPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("Analyze the following financial news chunks and determine a trading signal ")
	b.WriteString("(BUY, SELL, HOLD) for each relevant ticker.\n\n")

	for i, chunk := range req.Chunks {
		fmt.Fprintf(&b, "Chunk %d (source_id: %s):\n%q\n", i+1, chunk.SourceID, chunk.Content)
		if i < len(req.Contexts) && req.Contexts[i] != "" {
			fmt.Fprintf(&b, "Relevant historical context:\n%s\n", req.Contexts[i])
		}
		b.WriteString("\n")
	}

	b.WriteString("Return a JSON array of decision objects. Each object must have exactly these fields:\n")
	b.WriteString(`  "signal": one of "BUY", "SELL", "HOLD"` + "\n")
	b.WriteString(`  "confidence": integer between 0 and 100` + "\n")
	b.WriteString(`  "reasoning": explanation based on the text` + "\n")
	b.WriteString(`  "ticker": stock ticker symbol` + "\n")
	b.WriteString(`  "source_id": the source_id of the chunk the decision is based on` + "\n")

	if len(req.RepairHints) > 0 {
		b.WriteString("\nYour previous response violated the schema. Fix these errors and resubmit the full array:\n")
		for _, hint := range req.RepairHints {
			b.WriteString("- " + hint + "\n")
		}
	}
	return b.String()
}
