package drafter

import (
	"fmt"
	"strings"
)

const systemPrompt = `You repair TypeScript compiler errors with the smallest possible edit.
Answer with a single JSON object and nothing else:
{"original": "<exact text from the code to replace>", "replacement": "<new text>", "explanation": "<one sentence>", "confidence": <0..1>}
"original" must be copied verbatim from the numbered code and must not include line numbers or markers.`

// BuildPrompt renders the user prompt for req.
func BuildPrompt(req Request) string {
	var s strings.Builder

	d := req.Diagnostic
	fmt.Fprintf(&s, "Fix this error: %s %s\n", d.Code, d.Message)
	fmt.Fprintf(&s, "Location: %s line %d, column %d\n", d.File, d.Line, d.Column)
	if d.Category != "" {
		fmt.Fprintf(&s, "Category: %s\n", d.Category)
	}

	if len(req.Hints) > 0 {
		s.WriteString("\nKnown remedies for this kind of error:\n")
		for _, h := range req.Hints {
			fmt.Fprintf(&s, "- %s\n", h)
		}
	}

	if req.Context != nil {
		s.WriteString("\n")
		s.WriteString(req.Context.Render())
	}
	return s.String()
}
