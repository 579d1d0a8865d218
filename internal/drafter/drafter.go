// Package drafter asks an external text-completion service for a
// candidate fix. The only input a drafter ever sees is the bounded
// context bundle assembled for the diagnostic.
package drafter

import (
	"context"
	"errors"

	"github.com/mvp-joe/project-remedy/internal/diagnostic"
	"github.com/mvp-joe/project-remedy/internal/scope"
)

var (
	// ErrNoProposal means no usable fix text could be produced.
	ErrNoProposal = errors.New("no fix proposal")
	// ErrTimeout means the drafting service did not answer in time.
	ErrTimeout = errors.New("drafter timed out")
)

// Request is the input to a drafting call.
type Request struct {
	Diagnostic diagnostic.Diagnostic
	Context    *scope.Bundle
	// Hints are remediation notes from curated knowledge.
	Hints []string
}

// Draft is the drafter's answer. Original may be empty, in which case
// the caller replaces the diagnostic line.
type Draft struct {
	Original    string  `json:"original"`
	Replacement string  `json:"replacement"`
	Explanation string  `json:"explanation"`
	Confidence  float64 `json:"confidence"`
	Raw         string  `json:"-"`
}

// Drafter produces a candidate fix for one diagnostic.
type Drafter interface {
	Draft(ctx context.Context, req Request) (*Draft, error)
}

// Func adapts a function to the Drafter interface.
type Func func(ctx context.Context, req Request) (*Draft, error)

// Draft calls f.
func (f Func) Draft(ctx context.Context, req Request) (*Draft, error) {
	return f(ctx, req)
}

// Nop never proposes anything.
type Nop struct{}

// Draft always returns ErrNoProposal.
func (Nop) Draft(context.Context, Request) (*Draft, error) {
	return nil, ErrNoProposal
}
