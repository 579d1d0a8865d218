package orchestrator

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/mvp-joe/project-remedy/internal/diagnostic"
	"github.com/mvp-joe/project-remedy/internal/graph"
	"github.com/mvp-joe/project-remedy/internal/knowledge"
)

// RuleInput is what a rule generator sees.
type RuleInput struct {
	Diagnostic diagnostic.Diagnostic
	Files      graph.FileMap
}

// RuleEdit is the edit a rule produces.
type RuleEdit struct {
	Original    string
	Replacement string
	Explanation string
}

// Rule turns a diagnostic into an edit, or reports that it cannot.
type Rule func(in RuleInput) (RuleEdit, bool)

// Rules maps curated rule names to their generators.
var Rules = map[string]Rule{
	knowledge.RuleAddMissingImport: AddMissingImport,
	knowledge.RuleFixModulePath:    FixModulePath,
}

var (
	missingNameRe   = regexp.MustCompile(`Cannot find name '([^']+)'`)
	missingModuleRe = regexp.MustCompile(`Cannot find module '([^']+)'`)
)

// AddMissingImport inserts an import for a name exported by exactly one
// other project file.
func AddMissingImport(in RuleInput) (RuleEdit, bool) {
	m := missingNameRe.FindStringSubmatch(in.Diagnostic.Message)
	if m == nil {
		return RuleEdit{}, false
	}
	name := m[1]

	file, ok := in.Files[in.Diagnostic.File]
	if !ok || len(file.Content) == 0 {
		return RuleEdit{}, false
	}

	var providers []string
	for p, f := range in.Files {
		if p != in.Diagnostic.File && f.ExportsName(name) {
			providers = append(providers, p)
		}
	}
	if len(providers) != 1 {
		return RuleEdit{}, false
	}

	first := firstLine(string(file.Content))
	spec := relativeSpecifier(in.Diagnostic.File, providers[0])
	stmt := "import { " + name + " } from '" + spec + "';\n"
	return RuleEdit{
		Original:    first,
		Replacement: stmt + first,
		Explanation: "import " + name + " from " + providers[0],
	}, true
}

// FixModulePath rewrites a relative module specifier that names no
// project file to the single file whose base name matches it ignoring
// case or a trailing "s".
func FixModulePath(in RuleInput) (RuleEdit, bool) {
	m := missingModuleRe.FindStringSubmatch(in.Diagnostic.Message)
	if m == nil {
		return RuleEdit{}, false
	}
	spec := m[1]
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
		return RuleEdit{}, false
	}

	file, ok := in.Files[in.Diagnostic.File]
	if !ok {
		return RuleEdit{}, false
	}
	line := file.LineText(in.Diagnostic.Line)
	quoted := ""
	for _, q := range []string{"'", `"`, "`"} {
		if strings.Contains(line, q+spec+q) {
			quoted = q
			break
		}
	}
	if quoted == "" {
		return RuleEdit{}, false
	}

	want := strings.ToLower(moduleStem(spec))
	var candidates []string
	for p := range in.Files {
		if p == in.Diagnostic.File {
			continue
		}
		got := strings.ToLower(moduleStem(p))
		if got == want || got == want+"s" || got+"s" == want {
			candidates = append(candidates, p)
		}
	}
	sort.Strings(candidates)
	if len(candidates) != 1 {
		return RuleEdit{}, false
	}

	fixed := relativeSpecifier(in.Diagnostic.File, candidates[0])
	if fixed == spec {
		return RuleEdit{}, false
	}
	return RuleEdit{
		Original:    line,
		Replacement: strings.Replace(line, quoted+spec+quoted, quoted+fixed+quoted, 1),
		Explanation: "module " + spec + " resolves to " + candidates[0],
	}, true
}

// moduleStem is the base name without TypeScript extensions; an index
// file is named by its directory.
func moduleStem(p string) string {
	base := path.Base(p)
	for _, ext := range []string{".d.ts", ".tsx", ".ts", ".jsx", ".js"} {
		if strings.HasSuffix(base, ext) {
			base = strings.TrimSuffix(base, ext)
			break
		}
	}
	if base == "index" {
		return path.Base(path.Dir(p))
	}
	return base
}

// relativeSpecifier returns the import specifier that reaches target
// from the importing file.
func relativeSpecifier(from, target string) string {
	for _, ext := range []string{".d.ts", ".tsx", ".ts", ".jsx", ".js"} {
		if strings.HasSuffix(target, ext) {
			target = strings.TrimSuffix(target, ext)
			break
		}
	}
	target = strings.TrimSuffix(target, "/index")

	fromParts := splitDir(path.Dir(from))
	toParts := strings.Split(target, "/")

	i := 0
	for i < len(fromParts) && i < len(toParts)-1 && fromParts[i] == toParts[i] {
		i++
	}
	var b strings.Builder
	if i == len(fromParts) {
		b.WriteString("./")
	} else {
		b.WriteString(strings.Repeat("../", len(fromParts)-i))
	}
	b.WriteString(strings.Join(toParts[i:], "/"))
	return b.String()
}

func splitDir(dir string) []string {
	if dir == "." || dir == "" {
		return nil
	}
	return strings.Split(dir, "/")
}

func firstLine(content string) string {
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		return content[:i+1]
	}
	return content
}
