package diagnostic

import (
	"bufio"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// linePattern matches the checker's plain output format:
// path(line,col): severity CODE: message
var linePattern = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\): (error|warning) (TS\d+|\w+): (.*)$`)

// Parse extracts diagnostics from checker output. Lines that do not match
// the expected shape, including indented message continuations, are
// ignored. Paths are normalized to slash-separated paths relative to
// root; root may be empty when paths are already relative.
func Parse(output, root string) []Diagnostic {
	var diags []Diagnostic

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		m := linePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		lineNo, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		diags = append(diags, Diagnostic{
			File:     normalizePath(m[1], root),
			Line:     lineNo,
			Column:   col,
			Severity: Severity(m[4]),
			Code:     m[5],
			Message:  strings.TrimSpace(m[6]),
		})
	}

	AssignOccurrences(diags)
	return diags
}

// AssignOccurrences numbers diagnostics sharing file, code and message in
// their current order so each has a distinct fingerprint.
func AssignOccurrences(diags []Diagnostic) {
	counts := map[string]int{}
	for i := range diags {
		key := diags[i].ProblemKey()
		diags[i].occurrence = counts[key]
		counts[key]++
	}
}

func normalizePath(p, root string) string {
	p = strings.TrimSpace(p)
	if root != "" && filepath.IsAbs(p) {
		if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
			p = rel
		}
	}
	p = filepath.ToSlash(filepath.Clean(p))
	return strings.TrimPrefix(p, "./")
}
