package orchestrator

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/mvp-joe/project-remedy/internal/diagnostic"
)

// Origin names the generator that produced a proposal.
type Origin string

const (
	OriginRule    Origin = "rule"
	OriginLearned Origin = "learned"
	OriginDrafted Origin = "drafted"
)

// ErrProposalConsumed is returned when a proposal is used a second time.
var ErrProposalConsumed = errors.New("fix proposal already consumed")

// FixProposal is a candidate edit for exactly one diagnostic. It may
// drive at most one file mutation.
type FixProposal struct {
	ID          string          `json:"id"`
	TargetFile  string          `json:"target_file"`
	Original    string          `json:"original"`
	Replacement string          `json:"replacement"`
	Explanation string          `json:"explanation,omitempty"`
	Confidence  float64         `json:"confidence"`
	Risk        diagnostic.Risk `json:"risk"`
	Origin      Origin          `json:"origin"`
	SourceID    string          `json:"source_id,omitempty"`

	consumed bool
}

func newProposal(file string, origin Origin) *FixProposal {
	return &FixProposal{
		ID:         uuid.New().String(),
		TargetFile: file,
		Origin:     origin,
	}
}

// consume marks the proposal used.
func (p *FixProposal) consume() error {
	if p.consumed {
		return ErrProposalConsumed
	}
	p.consumed = true
	return nil
}

// Consumed reports whether the proposal has been used.
func (p *FixProposal) Consumed() bool {
	return p.consumed
}

// Apply returns content with the first occurrence of Original replaced.
// ok is false when Original does not occur.
func (p *FixProposal) Apply(content string) (string, bool) {
	if p.Original == "" || !strings.Contains(content, p.Original) {
		return content, false
	}
	return strings.Replace(content, p.Original, p.Replacement, 1), true
}

// Diff renders a unified diff of the proposal against content.
func (p *FixProposal) Diff(content string) string {
	updated, ok := p.Apply(content)
	if !ok {
		return ""
	}
	return unifiedDiff(p.TargetFile, content, updated)
}

func unifiedDiff(file, before, after string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + file,
		ToFile:   "b/" + file,
		Context:  2,
	})
	if err != nil {
		return ""
	}
	return diff
}
