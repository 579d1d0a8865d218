package scope

import (
	"sort"
	"strings"

	"github.com/mvp-joe/project-remedy/internal/graph"
)

// Kind is the kind of a lexical scope.
type Kind string

const (
	KindFile     Kind = "file"
	KindFunction Kind = "function"
	KindClass    Kind = "class"
	KindMethod   Kind = "method"
)

// SymbolKind is what a name refers to.
type SymbolKind string

const (
	SymbolVariable  SymbolKind = "variable"
	SymbolParameter SymbolKind = "parameter"
	SymbolImport    SymbolKind = "import"
	SymbolFunction  SymbolKind = "function"
	SymbolClass     SymbolKind = "class"
	SymbolType      SymbolKind = "type"
)

// Symbol is a name declared in a scope.
type Symbol struct {
	Name  string     `json:"name"`
	Kind  SymbolKind `json:"kind"`
	Type  string     `json:"type,omitempty"`
	Line  int        `json:"line"`
	Scope string     `json:"scope,omitempty"` // dotted path of the declaring scope
}

// Node is one scope in a file's scope tree. Children are ordered by
// start line and nested strictly inside their parent's range.
type Node struct {
	Kind      Kind     `json:"kind"`
	Name      string   `json:"name"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	Symbols   []Symbol `json:"symbols,omitempty"`
	Children  []*Node  `json:"children,omitempty"`
	Parent    *Node    `json:"-"`
}

// Contains reports whether line falls inside the scope's range.
func (n *Node) Contains(line int) bool {
	return line >= n.StartLine && line <= n.EndLine
}

// Path returns scope names from the file scope down to n.
func (n *Node) Path() []string {
	var path []string
	for cur := n; cur != nil; cur = cur.Parent {
		path = append([]string{cur.Name}, path...)
	}
	return path
}

// PathString joins Path with dots.
func (n *Node) PathString() string {
	return strings.Join(n.Path(), ".")
}

// Declares returns the symbol declared directly in n under name.
func (n *Node) Declares(name string) (Symbol, bool) {
	for _, s := range n.Symbols {
		if s.Name == name {
			return s, true
		}
	}
	return Symbol{}, false
}

// Lookup walks from n toward the file scope and returns the first scope
// declaring name.
func (n *Node) Lookup(name string) (Symbol, *Node, bool) {
	for cur := n; cur != nil; cur = cur.Parent {
		if s, ok := cur.Declares(name); ok {
			return s, cur, true
		}
	}
	return Symbol{}, nil, false
}

func (n *Node) addSymbol(s Symbol) {
	s.Scope = n.PathString()
	n.Symbols = append(n.Symbols, s)
}

// insert places child under the deepest descendant containing its range.
func (n *Node) insert(child *Node) {
	for _, c := range n.Children {
		if c.StartLine <= child.StartLine && c.EndLine >= child.EndLine && c != child {
			c.insert(child)
			return
		}
	}
	child.Parent = n
	n.Children = append(n.Children, child)
}

// FindContainingScope returns the deepest scope whose range contains line.
func FindContainingScope(root *Node, line int) *Node {
	if root == nil || !root.Contains(line) {
		return root
	}
	for _, c := range root.Children {
		if c.Contains(line) {
			return FindContainingScope(c, line)
		}
	}
	return root
}

// Walk visits every scope in the tree depth first.
func Walk(root *Node, fn func(*Node)) {
	if root == nil {
		return
	}
	fn(root)
	for _, c := range root.Children {
		Walk(c, fn)
	}
}

// BuildTree builds the scope tree of a scanned file from its parsed
// functions, classes and methods, then assigns parameters, variables,
// imports and declarations to their scopes.
func BuildTree(file *graph.SourceFile) *Node {
	lines := file.Lines
	if lines < 1 {
		lines = 1
	}
	root := &Node{Kind: KindFile, Name: file.Path, StartLine: 1, EndLine: lines}

	facts := file.Facts
	if facts == nil {
		return root
	}

	type pending struct {
		node   *Node
		params []Symbol
	}
	var scopes []pending

	for _, fn := range facts.Functions {
		p := pending{node: &Node{Kind: KindFunction, Name: fn.Name, StartLine: fn.StartLine, EndLine: fn.EndLine}}
		for _, param := range fn.Parameters {
			p.params = append(p.params, Symbol{Name: param.Name, Kind: SymbolParameter, Type: param.Type, Line: param.Line})
		}
		scopes = append(scopes, p)
	}
	for _, class := range facts.Classes {
		scopes = append(scopes, pending{node: &Node{Kind: KindClass, Name: class.Name, StartLine: class.StartLine, EndLine: class.EndLine}})
		for _, m := range class.Methods {
			p := pending{node: &Node{Kind: KindMethod, Name: m.Name, StartLine: m.StartLine, EndLine: m.EndLine}}
			for _, param := range m.Parameters {
				p.params = append(p.params, Symbol{Name: param.Name, Kind: SymbolParameter, Type: param.Type, Line: param.Line})
			}
			scopes = append(scopes, p)
		}
	}

	// Outer ranges first so nesting is built top-down.
	sort.SliceStable(scopes, func(i, j int) bool {
		a, b := scopes[i].node, scopes[j].node
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.EndLine > b.EndLine
	})
	for _, p := range scopes {
		root.insert(p.node)
		if p.node.Parent != nil {
			kind := SymbolFunction
			if p.node.Kind == KindClass {
				kind = SymbolClass
			}
			if p.node.Kind != KindMethod {
				p.node.Parent.addSymbol(Symbol{Name: p.node.Name, Kind: kind, Line: p.node.StartLine})
			}
		}
		for _, param := range p.params {
			p.node.addSymbol(param)
		}
	}

	for _, imp := range file.Imports {
		names := append([]string{}, imp.Names...)
		if imp.Default != "" {
			names = append(names, imp.Default)
		}
		if imp.Namespace != "" {
			names = append(names, imp.Namespace)
		}
		for _, name := range names {
			root.addSymbol(Symbol{Name: name, Kind: SymbolImport, Type: imp.Specifier, Line: imp.Line})
		}
	}

	for _, iface := range facts.Interfaces {
		declaringScope(root, iface.StartLine, iface.Name).addSymbol(Symbol{Name: iface.Name, Kind: SymbolType, Line: iface.StartLine})
	}
	for _, alias := range facts.TypeAliases {
		declaringScope(root, alias.StartLine, alias.Name).addSymbol(Symbol{Name: alias.Name, Kind: SymbolType, Line: alias.StartLine})
	}
	for _, enum := range facts.Enums {
		declaringScope(root, enum.StartLine, enum.Name).addSymbol(Symbol{Name: enum.Name, Kind: SymbolType, Line: enum.StartLine})
	}

	for _, v := range facts.Variables {
		scope := declaringScope(root, v.Line, v.Name)
		if _, exists := scope.Declares(v.Name); exists {
			continue
		}
		scope.addSymbol(Symbol{Name: v.Name, Kind: SymbolVariable, Type: v.Type, Line: v.Line})
	}

	return root
}

// declaringScope finds the scope a declaration on line belongs to. A
// scope that starts on the declaration's own line and carries its name
// is the declared thing itself, so its parent is used instead.
func declaringScope(root *Node, line int, name string) *Node {
	scope := FindContainingScope(root, line)
	for scope.Parent != nil && scope.StartLine == line && scope.Name == name {
		scope = scope.Parent
	}
	return scope
}
