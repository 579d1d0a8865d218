package drafter

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	fencedConfidence = 0.5
	rawConfidence    = 0.3
)

var fenceRe = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \t]*\r?\n(.*?)```")

type response struct {
	Original    string   `json:"original"`
	Replacement *string  `json:"replacement"`
	Explanation string   `json:"explanation"`
	Confidence  *float64 `json:"confidence"`
}

// ParseResponse turns completion text into a Draft. A JSON object is
// preferred, bare or fenced; otherwise the first fenced block is used
// as replacement text, then the raw text.
func ParseResponse(text string) (*Draft, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrNoProposal
	}

	for _, candidate := range jsonCandidates(trimmed) {
		if d, ok := parseJSON(candidate); ok {
			d.Raw = text
			return d, nil
		}
	}

	if m := fenceRe.FindStringSubmatch(trimmed); m != nil {
		body := strings.TrimRight(m[1], "\r\n")
		if strings.TrimSpace(body) != "" {
			return &Draft{Replacement: body, Confidence: fencedConfidence, Raw: text}, nil
		}
	}

	return &Draft{Replacement: trimmed, Confidence: rawConfidence, Raw: text}, nil
}

func jsonCandidates(text string) []string {
	candidates := []string{text}
	for _, m := range fenceRe.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		candidates = append(candidates, text[start:end+1])
	}
	return candidates
}

func parseJSON(text string) (*Draft, bool) {
	if !strings.HasPrefix(text, "{") {
		return nil, false
	}
	var r response
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return nil, false
	}
	if r.Replacement == nil {
		return nil, false
	}
	confidence := fencedConfidence
	if r.Confidence != nil {
		confidence = clamp(*r.Confidence)
	}
	return &Draft{
		Original:    r.Original,
		Replacement: *r.Replacement,
		Explanation: r.Explanation,
		Confidence:  confidence,
	}, true
}

func clamp(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
