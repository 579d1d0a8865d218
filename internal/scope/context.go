package scope

import (
	"fmt"
	"strings"

	"github.com/mvp-joe/project-remedy/internal/diagnostic"
	"github.com/mvp-joe/project-remedy/internal/typemodel"
)

// Window is a range of source lines around a target line.
type Window struct {
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	Lines     []string `json:"lines"`
}

// Text returns the window lines joined with newlines.
func (w Window) Text() string {
	return strings.Join(w.Lines, "\n")
}

// Line returns the text of an absolute 1-based line inside the window.
func (w Window) Line(line int) (string, bool) {
	if line < w.StartLine || line > w.EndLine {
		return "", false
	}
	return w.Lines[line-w.StartLine], true
}

// Numbered renders the window with a header and line-number gutter.
func (w Window) Numbered(target int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// Lines %d-%d\n", w.StartLine, w.EndLine)
	for i, text := range w.Lines {
		line := w.StartLine + i
		marker := "  "
		if line == target {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s%4d | %s\n", marker, line, text)
	}
	return b.String()
}

// ExtractWindow returns lines [line-k, line+k] of content clamped to the
// file's bounds.
func ExtractWindow(content []byte, line, k int) Window {
	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
	if n := len(lines); n > 1 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	if len(lines) == 0 {
		return Window{}
	}

	if line < 1 {
		line = 1
	}
	if line > len(lines) {
		line = len(lines)
	}

	from := max(1, line-k)
	to := min(len(lines), line+k)
	return Window{
		StartLine: from,
		EndLine:   to,
		Lines:     append([]string{}, lines[from-1:to]...),
	}
}

// ScopeSummary describes the innermost scope around a diagnostic.
type ScopeSummary struct {
	Kind      Kind     `json:"kind"`
	Name      string   `json:"name"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	Path      []string `json:"path"`
}

// Bundle is the bounded context assembled for one diagnostic.
type Bundle struct {
	Diagnostic   diagnostic.Diagnostic  `json:"diagnostic"`
	File         string                 `json:"file"`
	Line         int                    `json:"line"`
	Scope        ScopeSummary           `json:"scope"`
	Symbols      []Symbol               `json:"symbols,omitempty"`
	Imports      []Symbol               `json:"imports,omitempty"`
	Dependencies []string               `json:"dependencies,omitempty"`
	Dependents   []string               `json:"dependents,omitempty"`
	Types        []typemodel.Definition `json:"types,omitempty"`
	Window       Window                 `json:"window"`
}

// TargetLine returns the source text of the diagnostic line.
func (b *Bundle) TargetLine() string {
	text, _ := b.Window.Line(b.Line)
	return text
}

// Summary is a one-line description used for context memory.
func (b *Bundle) Summary() string {
	return fmt.Sprintf("%s:%d in %s %s (%d symbols, %d deps, %d dependents)",
		b.File, b.Line, b.Scope.Kind, strings.Join(b.Scope.Path, "."),
		len(b.Symbols), len(b.Dependencies), len(b.Dependents))
}

// Render formats the bundle as plain text for a fix-drafting prompt.
func (b *Bundle) Render() string {
	var s strings.Builder

	fmt.Fprintf(&s, "File: %s\n", b.File)
	fmt.Fprintf(&s, "Error %s at line %d: %s\n", b.Diagnostic.Code, b.Line, b.Diagnostic.Message)
	fmt.Fprintf(&s, "Scope: %s %s (lines %d-%d)\n", b.Scope.Kind, strings.Join(b.Scope.Path, " > "), b.Scope.StartLine, b.Scope.EndLine)

	if len(b.Imports) > 0 {
		s.WriteString("\nImports:\n")
		for _, imp := range b.Imports {
			fmt.Fprintf(&s, "- %s from %s\n", imp.Name, imp.Type)
		}
	}
	if len(b.Symbols) > 0 {
		s.WriteString("\nVisible symbols:\n")
		for _, sym := range b.Symbols {
			if sym.Type != "" {
				fmt.Fprintf(&s, "- %s %s: %s\n", sym.Kind, sym.Name, sym.Type)
			} else {
				fmt.Fprintf(&s, "- %s %s\n", sym.Kind, sym.Name)
			}
		}
	}
	if len(b.Types) > 0 {
		s.WriteString("\nRelated types:\n")
		for _, t := range b.Types {
			fmt.Fprintf(&s, "- %s %s (%s:%d)", t.Kind, t.Name, t.File, t.Line)
			if len(t.Properties) > 0 {
				props := make([]string, 0, len(t.Properties))
				for _, p := range t.Properties {
					opt := ""
					if p.Optional {
						opt = "?"
					}
					props = append(props, p.Name+opt+": "+p.Type)
				}
				fmt.Fprintf(&s, " { %s }", strings.Join(props, "; "))
			}
			s.WriteString("\n")
		}
	}
	if len(b.Dependencies) > 0 {
		fmt.Fprintf(&s, "\nImports files: %s\n", strings.Join(b.Dependencies, ", "))
	}
	if len(b.Dependents) > 0 {
		fmt.Fprintf(&s, "Imported by: %s\n", strings.Join(b.Dependents, ", "))
	}

	s.WriteString("\nCode:\n")
	s.WriteString(b.Window.Numbered(b.Line))
	return s.String()
}
