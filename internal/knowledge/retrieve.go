package knowledge

import (
	"sort"
	"strings"
	"unicode"
)

// Retrieve returns curated entries and learned patterns relevant to q,
// highest score first. Curated entries must score above
// KnowledgeThreshold and learned patterns at least LearnedThreshold.
func (s *Store) Retrieve(q Query) []RankedResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	words := Tokenize(q.Message)
	var results []RankedResult

	for _, e := range s.entries {
		score := CuratedScore(e, q, words)
		if score <= s.policy.KnowledgeThreshold {
			continue
		}
		results = append(results, RankedResult{
			Source:       SourceCurated,
			ID:           e.ID,
			Score:        score,
			Confidence:   e.Confidence,
			Category:     e.Category,
			Remediations: append([]string(nil), e.Remediations...),
			Rule:         e.Rule,
		})
	}

	for _, p := range s.patterns {
		score := LearnedScore(p, q, words)
		if score < s.policy.LearnedThreshold {
			continue
		}
		r := RankedResult{
			Source:     SourceLearned,
			ID:         p.ID,
			Score:      score,
			Confidence: p.Confidence,
			Category:   p.Category,
		}
		if p.Solution != nil {
			sol := *p.Solution
			r.Solution = &sol
		}
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].ID < results[j].ID
	})
	return results
}

// CuratedScore scores a curated entry: 0.8 for a predicate match, 0.3
// for a matching category, plus 0.4 times the fraction of query words
// that are entry keywords. Clipped to 1.
func CuratedScore(e *Entry, q Query, words []string) float64 {
	var score float64
	if e.Matches(q.Message) {
		score += 0.8
	}
	if q.Category != "" && q.Category == e.Category {
		score += 0.3
	}
	if len(words) > 0 && len(e.Keywords) > 0 {
		keywords := make(map[string]struct{}, len(e.Keywords))
		for _, k := range e.Keywords {
			keywords[strings.ToLower(k)] = struct{}{}
		}
		matched := 0
		for _, w := range words {
			if _, ok := keywords[w]; ok {
				matched++
			}
		}
		score += 0.4 * float64(matched) / float64(len(words))
	}
	if score > 1 {
		score = 1
	}
	return score
}

// LearnedScore scores a learned pattern: 0.6 times the Jaccard
// similarity of the messages, 0.2 for a matching scope, 0.1 for a
// matching extension and 0.1 when the pattern carries a verified
// solution.
func LearnedScore(p *LearnedPattern, q Query, words []string) float64 {
	score := 0.6 * Jaccard(words, Tokenize(p.Message))
	if q.Scope != "" && q.Scope == p.Scope {
		score += 0.2
	}
	if q.Extension != "" && q.Extension == p.Extension {
		score += 0.1
	}
	if p.Verified() {
		score += 0.1
	}
	return score
}

// Tokenize lower-cases text and returns its distinct words in order of
// first appearance.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' && r != '/'
	})
	seen := make(map[string]struct{}, len(fields))
	var out []string
	for _, f := range fields {
		f = strings.Trim(f, "./")
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Jaccard returns |a ∩ b| / |a ∪ b| over word sets.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]int, len(a)+len(b))
	for _, w := range a {
		set[w] |= 1
	}
	for _, w := range b {
		set[w] |= 2
	}
	inter := 0
	for _, v := range set {
		if v == 3 {
			inter++
		}
	}
	return float64(inter) / float64(len(set))
}
