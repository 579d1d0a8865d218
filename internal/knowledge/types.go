package knowledge

import (
	"regexp"
	"time"

	"github.com/mvp-joe/project-remedy/internal/diagnostic"
)

// Source identifies which collection a retrieval result came from.
type Source string

const (
	SourceCurated Source = "curated"
	SourceLearned Source = "learned"
)

// Entry is a curated knowledge entry. Pattern is a regular expression
// matched against diagnostic messages. Rule optionally names a fix
// generator that can turn a match into concrete edit text.
type Entry struct {
	ID           string              `json:"id"`
	Pattern      string              `json:"pattern"`
	Category     diagnostic.Category `json:"category"`
	Keywords     []string            `json:"keywords"`
	Remediations []string            `json:"remediations"`
	Confidence   float64             `json:"confidence"`
	Rule         string              `json:"rule,omitempty"`
	UpdatedAt    time.Time           `json:"updated_at"`

	re *regexp.Regexp
}

// Matches reports whether the entry's predicate accepts message.
func (e *Entry) Matches(message string) bool {
	if e.re == nil {
		re, err := regexp.Compile(e.Pattern)
		if err != nil {
			return false
		}
		e.re = re
	}
	return e.re.MatchString(message)
}

// Solution is a concrete textual fix.
type Solution struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Explanation string `json:"explanation,omitempty"`
	Origin      string `json:"origin,omitempty"`    // rule, learned, drafted
	SourceID    string `json:"source_id,omitempty"` // curated entry or learned pattern it came from
}

// LearnedPattern aggregates every sighting of a (code, category,
// extension) triple.
type LearnedPattern struct {
	ID           string              `json:"id"`
	Code         string              `json:"code"`
	Category     diagnostic.Category `json:"category"`
	Extension    string              `json:"extension"`
	Message      string              `json:"message"`
	Scope        string              `json:"scope,omitempty"`
	UsageCount   int                 `json:"usage_count"`
	SuccessCount int                 `json:"success_count"`
	Confidence   float64             `json:"confidence"`
	LastSeen     time.Time           `json:"last_seen"`
	Solution     *Solution           `json:"solution,omitempty"`     // most recent verified solution
	LastAttempt  *Solution           `json:"last_attempt,omitempty"` // most recent unverified candidate
}

// Verified reports whether the pattern carries a verified solution.
func (p *LearnedPattern) Verified() bool {
	return p.Solution != nil && p.SuccessCount > 0
}

// VerifiedFix is one confirmed edit.
type VerifiedFix struct {
	ID          string    `json:"id"`
	PatternID   string    `json:"pattern_id"`
	File        string    `json:"file"`
	Code        string    `json:"code"`
	Message     string    `json:"message"`
	Original    string    `json:"original"`
	Replacement string    `json:"replacement"`
	Origin      string    `json:"origin"`
	SourceID    string    `json:"source_id,omitempty"`
	VerifiedAt  time.Time `json:"verified_at"`
}

// ContextRecord is the last context summary recorded for a file.
type ContextRecord struct {
	File      string    `json:"file"`
	Line      int       `json:"line"`
	Scope     string    `json:"scope"`
	Summary   string    `json:"summary"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Query describes the diagnostic a caller wants remedies for.
type Query struct {
	Message   string
	Code      string
	Category  diagnostic.Category
	Extension string
	Scope     string
}

// QueryFor builds a query from a classified diagnostic.
func QueryFor(d diagnostic.Diagnostic, scope string) Query {
	return Query{
		Message:   d.Message,
		Code:      d.Code,
		Category:  d.Category,
		Extension: d.Extension(),
		Scope:     scope,
	}
}

// RankedResult is one retrieval hit.
type RankedResult struct {
	Source       Source              `json:"source"`
	ID           string              `json:"id"`
	Score        float64             `json:"score"`
	Confidence   float64             `json:"confidence"`
	Category     diagnostic.Category `json:"category"`
	Remediations []string            `json:"remediations,omitempty"`
	Rule         string              `json:"rule,omitempty"`
	Solution     *Solution           `json:"solution,omitempty"`
}

// Policy holds the store's scoring and learning constants.
type Policy struct {
	KnowledgeThreshold float64
	LearnedThreshold   float64
	InitialConfidence  float64
	ConfidenceStep     float64
	MaxConfidence      float64
}

// DefaultPolicy returns the default scoring policy.
func DefaultPolicy() Policy {
	return Policy{
		KnowledgeThreshold: 0.8,
		LearnedThreshold:   0.5,
		InitialConfidence:  0.5,
		ConfidenceStep:     0.1,
		MaxConfidence:      0.99,
	}
}

// Stats summarizes the store's contents.
type Stats struct {
	Entries         int     `json:"entries"`
	LearnedPatterns int     `json:"learned_patterns"`
	VerifiedFixes   int     `json:"verified_fixes"`
	TotalUsage      int     `json:"total_usage"`
	TotalSuccesses  int     `json:"total_successes"`
	AvgConfidence   float64 `json:"avg_confidence"`
}
