package typemodel

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mvp-joe/project-remedy/internal/graph"
	"github.com/mvp-joe/project-remedy/internal/parsers"
)

// Model is the project-wide type model: definitions keyed by (file,
// name), usage sites, and the inheritance hierarchy.
type Model struct {
	defs         []Definition
	byKey        map[Key]int
	byName       map[string][]int
	usages       []UsageSite
	usagesByName map[string][]UsageSite
	hierarchy    Hierarchy
	bands        SeverityBands
	deps         *graph.DependencyGraph
}

// Build extracts definitions from files, indexes their usages and builds
// the hierarchy. deps is used to disambiguate duplicate names and may be nil.
func Build(files graph.FileMap, deps *graph.DependencyGraph, bands SeverityBands) *Model {
	defs := ExtractDefinitions(files)
	m := &Model{
		defs:         defs,
		byKey:        make(map[Key]int, len(defs)),
		byName:       make(map[string][]int),
		usagesByName: make(map[string][]UsageSite),
		hierarchy:    BuildHierarchy(defs),
		bands:        bands,
		deps:         deps,
	}
	for i, d := range defs {
		m.byKey[d.Key()] = i
		m.byName[d.Name] = append(m.byName[d.Name], i)
	}

	m.usages = IndexUsages(files, defs)
	for _, u := range m.usages {
		m.usagesByName[u.TypeName] = append(m.usagesByName[u.TypeName], u)
	}
	return m
}

// ExtractDefinitions converts parsed classes, interfaces, aliases and
// enums into definitions ordered by file and line.
func ExtractDefinitions(files graph.FileMap) []Definition {
	var defs []Definition
	for _, path := range files.Paths() {
		facts := files[path].Facts
		if facts == nil {
			continue
		}

		for _, iface := range facts.Interfaces {
			defs = append(defs, Definition{
				Name:       iface.Name,
				Kind:       KindInterface,
				File:       path,
				Line:       iface.StartLine,
				EndLine:    iface.EndLine,
				Exported:   iface.Exported,
				Generics:   generics(iface.TypeParameters),
				Supertypes: iface.Extends,
				Properties: properties(iface.Members),
			})
		}
		for _, class := range facts.Classes {
			def := Definition{
				Name:       class.Name,
				Kind:       KindClass,
				File:       path,
				Line:       class.StartLine,
				EndLine:    class.EndLine,
				Exported:   class.Exported,
				Generics:   generics(class.TypeParameters),
				Implements: class.Implements,
				Properties: properties(class.Members),
			}
			if class.Extends != "" {
				def.Supertypes = []string{class.Extends}
			}
			for _, method := range class.Methods {
				def.Properties = append(def.Properties, Property{Name: method.Name, Type: methodType(method)})
			}
			defs = append(defs, def)
		}
		for _, alias := range facts.TypeAliases {
			defs = append(defs, Definition{
				Name:       alias.Name,
				Kind:       KindAlias,
				File:       path,
				Line:       alias.StartLine,
				EndLine:    alias.EndLine,
				Exported:   alias.Exported,
				Generics:   generics(alias.TypeParameters),
				Properties: properties(alias.Members),
			})
		}
		for _, enum := range facts.Enums {
			defs = append(defs, Definition{
				Name:       enum.Name,
				Kind:       KindEnum,
				File:       path,
				Line:       enum.StartLine,
				EndLine:    enum.EndLine,
				Exported:   enum.Exported,
				Properties: properties(enum.Members),
			})
		}
	}

	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].File != defs[j].File {
			return defs[i].File < defs[j].File
		}
		return defs[i].Line < defs[j].Line
	})
	return defs
}

func generics(params []parsers.TypeParameter) []GenericParam {
	var out []GenericParam
	for _, p := range params {
		out = append(out, GenericParam{Name: p.Name, Constraint: p.Constraint})
	}
	return out
}

func properties(members []parsers.Member) []Property {
	var out []Property
	for _, m := range members {
		out = append(out, Property{Name: m.Name, Type: m.Type, Optional: m.Optional})
	}
	return out
}

func methodType(m parsers.MethodDefinition) string {
	params := make([]string, 0, len(m.Parameters))
	for _, p := range m.Parameters {
		s := p.Name
		if p.Optional {
			s += "?"
		}
		if p.Type != "" {
			s += ": " + p.Type
		}
		params = append(params, s)
	}
	ret := m.ReturnType
	if ret == "" {
		ret = "void"
	}
	return "(" + strings.Join(params, ", ") + ") => " + ret
}

// usageMatcher is the compiled pattern set for one type name.
type usageMatcher struct {
	name  string
	kinds []UsageKind
	res   []*regexp.Regexp
}

func newUsageMatcher(name string) usageMatcher {
	q := regexp.QuoteMeta(name)
	qualified := `(?:[\w$]+\.)?` + q + `\b`
	heritageList := `(?:[\w$.]+(?:<[^>]*>)?\s*,\s*)*`

	return usageMatcher{
		name: name,
		kinds: []UsageKind{
			UsageImplementation,
			UsageInheritance,
			UsageAssertion,
			UsageGeneric,
			UsageAnnotation,
		},
		res: []*regexp.Regexp{
			regexp.MustCompile(`\bimplements\s+` + heritageList + qualified),
			regexp.MustCompile(`\b(?:class|interface)\s+[\w$]+\s*(?:<.*>)?\s*extends\s+` + heritageList + qualified),
			regexp.MustCompile(`\bas\s+` + qualified),
			regexp.MustCompile(`<[^>;=]*\b` + q + `\b`),
			regexp.MustCompile(`:\s*(?:readonly\s+)?(?:[\w$.\[\]]+\s*[|&]\s*)*` + qualified),
		},
	}
}

func isCommentLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "*")
}

// IndexUsages scans every file for textual references to each defined
// type name and tags each hit with the syntactic form that matched. One
// line may contribute several usage kinds for the same name.
func IndexUsages(files graph.FileMap, defs []Definition) []UsageSite {
	seen := map[string]bool{}
	var matchers []usageMatcher
	for _, d := range defs {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		matchers = append(matchers, newUsageMatcher(d.Name))
	}

	var usages []UsageSite
	for _, path := range files.Paths() {
		lines := strings.Split(string(files[path].Content), "\n")
		for i, line := range lines {
			if isCommentLine(line) {
				continue
			}
			for _, m := range matchers {
				if !strings.Contains(line, m.name) {
					continue
				}
				for k, re := range m.res {
					if re.MatchString(line) {
						usages = append(usages, UsageSite{
							TypeName: m.name,
							File:     path,
							Line:     i + 1,
							Kind:     m.kinds[k],
						})
					}
				}
			}
		}
	}
	return usages
}

// BuildHierarchy derives supertype, subtype and implementor relations
// from the definitions' heritage clauses.
func BuildHierarchy(defs []Definition) Hierarchy {
	h := Hierarchy{
		SupertypesOf:   map[string][]string{},
		SubtypesOf:     map[string][]string{},
		ImplementorsOf: map[string][]string{},
	}
	for _, d := range defs {
		for _, s := range d.Supertypes {
			parent := baseName(s)
			h.SupertypesOf[d.Name] = appendUnique(h.SupertypesOf[d.Name], parent)
			h.SubtypesOf[parent] = appendUnique(h.SubtypesOf[parent], d.Name)
		}
		for _, i := range d.Implements {
			iface := baseName(i)
			h.ImplementorsOf[iface] = appendUnique(h.ImplementorsOf[iface], d.Name)
		}
	}
	for _, m := range []map[string][]string{h.SupertypesOf, h.SubtypesOf, h.ImplementorsOf} {
		for k := range m {
			sort.Strings(m[k])
		}
	}
	return h
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// Definitions returns every definition.
func (m *Model) Definitions() []Definition {
	return m.defs
}

// Definition returns the definition declared in file under name.
func (m *Model) Definition(file, name string) (Definition, bool) {
	i, ok := m.byKey[Key{File: file, Name: name}]
	if !ok {
		return Definition{}, false
	}
	return m.defs[i], true
}

// DefinitionsInFile returns the definitions declared in file.
func (m *Model) DefinitionsInFile(file string) []Definition {
	var out []Definition
	for _, d := range m.defs {
		if d.File == file {
			out = append(out, d)
		}
	}
	return out
}

// Lookup returns every definition with the given name.
func (m *Model) Lookup(name string) []Definition {
	var out []Definition
	for _, i := range m.byName[name] {
		out = append(out, m.defs[i])
	}
	return out
}

// Resolve picks the definition of name visible from fromFile: a unique
// definition, one declared in fromFile itself, or the single candidate
// declared in a file fromFile imports.
func (m *Model) Resolve(name, fromFile string) (Definition, error) {
	candidates := m.Lookup(name)
	switch len(candidates) {
	case 0:
		return Definition{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	case 1:
		return candidates[0], nil
	}

	for _, c := range candidates {
		if c.File == fromFile {
			return c, nil
		}
	}

	if m.deps != nil {
		imported := map[string]bool{}
		for _, dep := range m.deps.Dependencies(fromFile) {
			imported[dep] = true
		}
		var matches []Definition
		for _, c := range candidates {
			if imported[c.File] {
				matches = append(matches, c)
			}
		}
		if len(matches) == 1 {
			return matches[0], nil
		}
	}

	files := make([]string, 0, len(candidates))
	for _, c := range candidates {
		files = append(files, c.File)
	}
	return Definition{}, fmt.Errorf("%w: %s declared in %s", ErrAmbiguous, name, strings.Join(files, ", "))
}

// Ambiguities returns every type name declared in more than one file,
// mapped to the declaring files.
func (m *Model) Ambiguities() map[string][]string {
	out := map[string][]string{}
	for name, idxs := range m.byName {
		files := map[string]bool{}
		for _, i := range idxs {
			files[m.defs[i].File] = true
		}
		if len(files) < 2 {
			continue
		}
		for f := range files {
			out[name] = append(out[name], f)
		}
		sort.Strings(out[name])
	}
	return out
}

// Usages returns the usage sites of a type name.
func (m *Model) Usages(name string) []UsageSite {
	return m.usagesByName[name]
}

// Hierarchy returns the derived type hierarchy.
func (m *Model) Hierarchy() Hierarchy {
	return m.hierarchy
}

// ChangeImpact scores the consequences of changing a type:
// score = directUsages + 2*children + 1.5*implementors.
func (m *Model) ChangeImpact(name string) Impact {
	usages := m.usagesByName[name]

	fileSet := map[string]bool{}
	for _, u := range usages {
		fileSet[u.File] = true
	}
	files := make([]string, 0, len(fileSet))
	for f := range fileSet {
		files = append(files, f)
	}
	sort.Strings(files)

	impact := Impact{
		TypeName:       name,
		DirectUsages:   len(usages),
		AffectedFiles:  files,
		ChildrenImpact: len(m.hierarchy.SubtypesOf[name]),
		Implementors:   len(m.hierarchy.ImplementorsOf[name]),
	}
	impact.Score = float64(impact.DirectUsages) + 2*float64(impact.ChildrenImpact) + 1.5*float64(impact.Implementors)
	impact.Severity = m.bands.Grade(impact.Score)
	return impact
}

// BreakingChanges compares two versions of a definition property by
// property. The result is advisory.
func BreakingChanges(old, updated Definition) []Change {
	var changes []Change
	for _, op := range old.Properties {
		np, ok := updated.Property(op.Name)
		if !ok {
			changes = append(changes, Change{Kind: PropertyRemoved, Property: op.Name, Severity: SeverityHigh, OldType: op.Type})
			continue
		}
		if normalizeType(op.Type) != normalizeType(np.Type) {
			changes = append(changes, Change{Kind: PropertyTypeChanged, Property: op.Name, Severity: SeverityMedium, OldType: op.Type, NewType: np.Type})
		}
		if op.Optional && !np.Optional {
			changes = append(changes, Change{Kind: PropertyMadeRequired, Property: op.Name, Severity: SeverityHigh})
		}
		if !op.Optional && np.Optional {
			changes = append(changes, Change{Kind: PropertyMadeOptional, Property: op.Name, Severity: SeverityLow})
		}
	}
	return changes
}

func normalizeType(t string) string {
	return strings.Join(strings.Fields(t), " ")
}
