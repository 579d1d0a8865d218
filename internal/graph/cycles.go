package graph

import (
	"sort"
	"strings"
)

// DetectCycles runs a depth-first search from every unvisited file and
// reports each back edge as a cycle: the slice of the DFS stack from the
// target's first occurrence through the edge's source. A cycle reachable
// through several back edges is reported once.
func DetectCycles(d *DependencyGraph) []Cycle {
	var (
		cycles  []Cycle
		seen    = map[string]bool{}
		visited = map[string]bool{}
		onStack = map[string]int{}
		stack   []string
	)

	var visit func(file string)
	visit = func(file string) {
		visited[file] = true
		onStack[file] = len(stack)
		stack = append(stack, file)

		for _, next := range d.Dependencies(file) {
			if idx, ok := onStack[next]; ok {
				files := append([]string(nil), stack[idx:]...)
				key := canonicalCycleKey(files)
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, Cycle{Files: files})
				}
				continue
			}
			if !visited[next] {
				visit(next)
			}
		}

		stack = stack[:len(stack)-1]
		delete(onStack, file)
	}

	for _, file := range d.Files() {
		if !visited[file] {
			visit(file)
		}
	}
	return cycles
}

// canonicalCycleKey rotates the cycle to start at its smallest member so
// equal cycles found from different entry points compare equal.
func canonicalCycleKey(files []string) string {
	if len(files) == 0 {
		return ""
	}
	minIdx := 0
	for i, f := range files {
		if f < files[minIdx] {
			minIdx = i
		}
	}
	rotated := append(append([]string{}, files[minIdx:]...), files[:minIdx]...)
	return strings.Join(rotated, "\x00")
}

// ChangeImpact computes the files affected by a change to file: direct
// dependents and the transitive closure over reverse edges. The file
// itself is never part of its own impact.
func ChangeImpact(d *DependencyGraph, file string) Impact {
	impact := Impact{
		File:    file,
		Direct:  append([]string{}, d.Dependents(file)...),
		Closure: []string{},
	}

	visited := map[string]bool{file: true}
	queue := append([]string{}, impact.Direct...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		impact.Closure = append(impact.Closure, current)
		queue = append(queue, d.Dependents(current)...)
	}

	sort.Strings(impact.Closure)
	impact.Score = len(impact.Closure)
	return impact
}

// entryPointNames are basenames (without extension) treated as entry
// points that are expected to have no importers.
var entryPointNames = map[string]bool{
	"index":  true,
	"main":   true,
	"app":    true,
	"server": true,
}

// FindOrphans returns files with no importers that are neither entry
// points nor tests.
func FindOrphans(d *DependencyGraph) []string {
	var orphans []string
	for _, file := range d.Files() {
		if len(d.Dependents(file)) > 0 || IsEntryPoint(file) || IsTestFile(file) {
			continue
		}
		orphans = append(orphans, file)
	}
	return orphans
}

// IsEntryPoint reports whether the file's basename marks an entry point.
func IsEntryPoint(file string) bool {
	return entryPointNames[stem(file)]
}

// IsTestFile reports whether the file follows a test naming convention.
func IsTestFile(file string) bool {
	s := stem(file)
	return strings.HasSuffix(s, ".test") || strings.HasSuffix(s, ".spec") ||
		strings.Contains(file, "__tests__/") || strings.HasPrefix(file, "test/") ||
		strings.HasPrefix(file, "tests/")
}

// stem strips the directory and all TypeScript extensions from a path.
func stem(file string) string {
	base := file
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	for _, ext := range []string{".d.ts", ".tsx", ".ts", ".jsx", ".js", ".mts", ".cts", ".mjs", ".cjs"} {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return base
}
