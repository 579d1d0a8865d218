package diagnostic

import (
	"fmt"
	"path"
	"strings"
)

// Severity is the checker-reported severity.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rank orders severities; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Category groups diagnostics by the kind of fix they need.
type Category string

const (
	CategoryConfig       Category = "config"
	CategoryImports      Category = "imports"
	CategoryDeclarations Category = "declarations"
	CategoryTypes        Category = "types"
	CategorySyntax       Category = "syntax"
	CategoryOther        Category = "other"
)

// CategoryOrder is the order in which categories are processed.
var CategoryOrder = []Category{
	CategoryConfig,
	CategoryImports,
	CategoryDeclarations,
	CategoryTypes,
	CategorySyntax,
	CategoryOther,
}

// Risk estimates how dangerous an automated change is.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Safety orders risks; higher is safer.
func (r Risk) Safety() int {
	switch r {
	case RiskLow:
		return 3
	case RiskMedium:
		return 2
	case RiskHigh:
		return 1
	default:
		return 0
	}
}

// Diagnostic is one type-checker finding. File is slash-separated and
// relative to the project root; Line and Column are 1-based.
type Diagnostic struct {
	File        string   `json:"file"`
	Line        int      `json:"line"`
	Column      int      `json:"column"`
	Severity    Severity `json:"severity"`
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Category    Category `json:"category,omitempty"`
	AutoFixable bool     `json:"auto_fixable"`
	Risk        Risk     `json:"risk,omitempty"`

	// occurrence distinguishes identical file/code/message triples.
	occurrence int
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s(%d,%d): %s %s: %s", d.File, d.Line, d.Column, d.Severity, d.Code, d.Message)
}

// Extension returns the file extension including the leading dot.
func (d Diagnostic) Extension() string {
	if strings.HasSuffix(d.File, ".d.ts") {
		return ".d.ts"
	}
	return path.Ext(d.File)
}

// Fingerprint identifies a diagnostic independently of its line number,
// so it survives edits elsewhere in the file.
func (d Diagnostic) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%s|%d", d.File, d.Code, d.Message, d.occurrence)
}

// ProblemKey groups diagnostics that describe the same finding.
func (d Diagnostic) ProblemKey() string {
	return d.File + "|" + d.Code + "|" + d.Message
}

// Occurrence is d's index among the diagnostics sharing its ProblemKey
// in the check result it came from.
func (d Diagnostic) Occurrence() int {
	return d.occurrence
}

// SameProblem reports whether two diagnostics describe the same finding,
// ignoring position.
func (d Diagnostic) SameProblem(other Diagnostic) bool {
	return d.File == other.File && d.Code == other.Code && d.Message == other.Message
}

// Count is the number of diagnostics; used as the checker's error count.
func Count(diags []Diagnostic) int {
	return len(diags)
}

// Contains reports whether any diagnostic matches target's file, code and message.
func Contains(diags []Diagnostic, target Diagnostic) bool {
	for _, d := range diags {
		if d.SameProblem(target) {
			return true
		}
	}
	return false
}
