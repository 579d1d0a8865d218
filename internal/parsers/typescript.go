package parsers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Parser extracts FileFacts from TypeScript and JavaScript sources.
// .ts files use the TypeScript grammar; .tsx, .js and .jsx use the TSX
// grammar, which accepts JSX and plain JavaScript.
type Parser struct {
	ts  *sitter.Language
	tsx *sitter.Language
}

// NewParser creates a new TypeScript parser.
func NewParser() *Parser {
	return &Parser{
		ts:  sitter.NewLanguage(typescript.LanguageTypescript()),
		tsx: sitter.NewLanguage(typescript.LanguageTSX()),
	}
}

// Supports reports whether the file extension is handled by the parser.
func (p *Parser) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".tsx", ".js", ".jsx", ".mts", ".cts", ".mjs", ".cjs":
		return true
	}
	return false
}

// Parse parses a source file and extracts its structural facts.
func (p *Parser) Parse(ctx context.Context, path string, source []byte) (*FileFacts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lang, langName := p.languageFor(path)
	if len(source) == 0 {
		return &FileFacts{Language: langName}, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("failed to set %s grammar: %w", langName, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s file: %s", langName, path)
	}
	defer tree.Close()

	root := tree.RootNode()
	facts := &FileFacts{
		Language:  langName,
		LineCount: lineCount(source),
		HasErrors: root.HasError(),
	}

	e := &extractor{source: source, facts: facts}
	e.extract(root)

	return facts, nil
}

func (p *Parser) languageFor(path string) (*sitter.Language, string) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsx":
		return p.tsx, "tsx"
	case ".js", ".jsx", ".mjs", ".cjs":
		return p.tsx, "javascript"
	default:
		return p.ts, "typescript"
	}
}

func lineCount(source []byte) int {
	if len(source) == 0 {
		return 0
	}
	n := strings.Count(string(source), "\n")
	if source[len(source)-1] != '\n' {
		n++
	}
	return n
}

type extractor struct {
	source []byte
	facts  *FileFacts
}

func (e *extractor) text(n *sitter.Node) string {
	return nodeText(n, e.source)
}

func (e *extractor) extract(root *sitter.Node) {
	walkTree(root, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "import_statement":
			e.extractImport(n)
			return false
		case "export_statement":
			e.extractExport(n)
		case "call_expression":
			e.extractCallImport(n)
		case "function_declaration", "generator_function_declaration":
			e.extractFunction(n)
		case "class_declaration", "abstract_class_declaration":
			e.extractClass(n)
		case "interface_declaration":
			e.extractInterface(n)
		case "type_alias_declaration":
			e.extractTypeAlias(n)
		case "enum_declaration":
			e.extractEnum(n)
		case "lexical_declaration", "variable_declaration":
			e.extractVariables(n)
		}
		return true
	})
}

func isExported(n *sitter.Node) bool {
	parent := n.Parent()
	return parent != nil && parent.Kind() == "export_statement"
}

func (e *extractor) extractImport(n *sitter.Node) {
	source := n.ChildByFieldName("source")
	if source == nil {
		return
	}

	imp := Import{
		Specifier: unquote(e.text(source)),
		Kind:      ImportStatic,
		TypeOnly:  hasChildKind(n, "type"),
		Line:      startLine(n),
	}

	if clause := findChildByKind(n, "import_clause"); clause != nil {
		for i := uint(0); i < clause.ChildCount(); i++ {
			child := clause.Child(i)
			switch child.Kind() {
			case "identifier":
				imp.Default = e.text(child)
			case "namespace_import":
				if id := findChildByKind(child, "identifier"); id != nil {
					imp.Namespace = e.text(id)
				}
			case "named_imports":
				for _, spec := range findChildrenByKind(child, "import_specifier") {
					name := spec.ChildByFieldName("alias")
					if name == nil {
						name = spec.ChildByFieldName("name")
					}
					if name != nil {
						imp.Names = append(imp.Names, e.text(name))
					}
				}
			}
		}
	}

	e.facts.Imports = append(e.facts.Imports, imp)
}

func (e *extractor) extractCallImport(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn == nil || args == nil {
		return
	}

	var kind ImportKind
	switch {
	case fn.Kind() == "import":
		kind = ImportDynamic
	case fn.Kind() == "identifier" && e.text(fn) == "require":
		kind = ImportRequire
	default:
		return
	}

	arg := findChildByKind(args, "string")
	if arg == nil {
		return
	}
	e.facts.Imports = append(e.facts.Imports, Import{
		Specifier: unquote(e.text(arg)),
		Kind:      kind,
		Line:      startLine(n),
	})
}

func (e *extractor) extractExport(n *sitter.Node) {
	line := startLine(n)
	isDefault := hasChildKind(n, "default")

	if source := n.ChildByFieldName("source"); source != nil {
		from := unquote(e.text(source))
		e.facts.Imports = append(e.facts.Imports, Import{
			Specifier: from,
			Kind:      ImportReExport,
			TypeOnly:  hasChildKind(n, "type"),
			Line:      line,
		})
		if clause := findChildByKind(n, "export_clause"); clause != nil {
			for _, name := range e.exportSpecifiers(clause) {
				e.facts.Exports = append(e.facts.Exports, Export{Name: name, Kind: "specifier", ReExportFrom: from, Line: line})
			}
			return
		}
		name := "*"
		if ns := findChildByKind(n, "namespace_export"); ns != nil {
			if id := findChildByKind(ns, "identifier"); id != nil {
				name = e.text(id)
			}
		}
		e.facts.Exports = append(e.facts.Exports, Export{Name: name, Kind: "all", ReExportFrom: from, Line: line})
		return
	}

	if decl := n.ChildByFieldName("declaration"); decl != nil {
		for _, exp := range e.declarationExports(decl) {
			exp.Default = isDefault
			exp.Line = line
			e.facts.Exports = append(e.facts.Exports, exp)
		}
		return
	}

	if clause := findChildByKind(n, "export_clause"); clause != nil {
		for _, name := range e.exportSpecifiers(clause) {
			e.facts.Exports = append(e.facts.Exports, Export{Name: name, Kind: "specifier", Line: line})
		}
		return
	}

	if isDefault {
		name := "default"
		if value := n.ChildByFieldName("value"); value != nil && value.Kind() == "identifier" {
			name = e.text(value)
		}
		e.facts.Exports = append(e.facts.Exports, Export{Name: name, Kind: "default", Default: true, Line: line})
	}
}

func (e *extractor) exportSpecifiers(clause *sitter.Node) []string {
	var names []string
	for _, spec := range findChildrenByKind(clause, "export_specifier") {
		name := spec.ChildByFieldName("alias")
		if name == nil {
			name = spec.ChildByFieldName("name")
		}
		if name != nil {
			names = append(names, unquote(e.text(name)))
		}
	}
	return names
}

func (e *extractor) declarationExports(decl *sitter.Node) []Export {
	kind := ""
	switch decl.Kind() {
	case "function_declaration", "generator_function_declaration", "function_expression", "function":
		kind = "function"
	case "class_declaration", "abstract_class_declaration", "class":
		kind = "class"
	case "interface_declaration":
		kind = "interface"
	case "type_alias_declaration":
		kind = "type"
	case "enum_declaration":
		kind = "enum"
	case "lexical_declaration", "variable_declaration":
		var out []Export
		for _, d := range findChildrenByKind(decl, "variable_declarator") {
			if name := d.ChildByFieldName("name"); name != nil && name.Kind() == "identifier" {
				out = append(out, Export{Name: e.text(name), Kind: "variable"})
			}
		}
		return out
	default:
		return nil
	}

	name := e.text(decl.ChildByFieldName("name"))
	if name == "" {
		name = "default"
	}
	return []Export{{Name: name, Kind: kind}}
}

func (e *extractor) extractFunction(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	e.facts.Functions = append(e.facts.Functions, FunctionSignature{
		Name:       e.text(name),
		Parameters: e.parameters(n),
		ReturnType: annotationText(n.ChildByFieldName("return_type"), e.source),
		Async:      hasChildKind(n, "async"),
		Exported:   isExported(n),
		StartLine:  startLine(n),
		EndLine:    endLine(n),
	})
}

// parameters reads formal parameters of a function-like node. Single
// unparenthesized arrow parameters are exposed through the "parameter" field.
func (e *extractor) parameters(fn *sitter.Node) []Parameter {
	if single := fn.ChildByFieldName("parameter"); single != nil {
		return []Parameter{{Name: e.text(single), Line: startLine(single)}}
	}

	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}

	var out []Parameter
	for i := uint(0); i < params.ChildCount(); i++ {
		child := params.Child(i)
		kind := child.Kind()
		if kind != "required_parameter" && kind != "optional_parameter" {
			continue
		}
		pattern := child.ChildByFieldName("pattern")
		if pattern == nil {
			continue
		}
		out = append(out, Parameter{
			Name:     e.text(pattern),
			Type:     annotationText(child.ChildByFieldName("type"), e.source),
			Optional: kind == "optional_parameter",
			Line:     startLine(child),
		})
	}
	return out
}

func (e *extractor) typeParameters(n *sitter.Node) []TypeParameter {
	params := n.ChildByFieldName("type_parameters")
	if params == nil {
		return nil
	}

	var out []TypeParameter
	for _, tp := range findChildrenByKind(params, "type_parameter") {
		name := tp.ChildByFieldName("name")
		if name == nil {
			continue
		}
		constraint := strings.TrimSpace(e.text(tp.ChildByFieldName("constraint")))
		constraint = strings.TrimSpace(strings.TrimPrefix(constraint, "extends"))
		out = append(out, TypeParameter{Name: e.text(name), Constraint: constraint})
	}
	return out
}

func (e *extractor) extractClass(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}

	class := ClassDefinition{
		Name:           e.text(name),
		TypeParameters: e.typeParameters(n),
		Abstract:       n.Kind() == "abstract_class_declaration",
		Exported:       isExported(n),
		StartLine:      startLine(n),
		EndLine:        endLine(n),
	}

	if heritage := findChildByKind(n, "class_heritage"); heritage != nil {
		if ext := findChildByKind(heritage, "extends_clause"); ext != nil {
			text := strings.TrimSpace(strings.TrimPrefix(e.text(ext), "extends"))
			if parts := splitTypeList(text); len(parts) > 0 {
				class.Extends = parts[0]
			}
		}
		if impl := findChildByKind(heritage, "implements_clause"); impl != nil {
			text := strings.TrimSpace(strings.TrimPrefix(e.text(impl), "implements"))
			class.Implements = splitTypeList(text)
		}
	}

	if body := n.ChildByFieldName("body"); body != nil {
		for i := uint(0); i < body.ChildCount(); i++ {
			child := body.Child(i)
			switch child.Kind() {
			case "method_definition", "method_signature", "abstract_method_signature":
				methodName := child.ChildByFieldName("name")
				if methodName == nil {
					continue
				}
				class.Methods = append(class.Methods, MethodDefinition{
					Name:       e.text(methodName),
					Parameters: e.parameters(child),
					ReturnType: annotationText(child.ChildByFieldName("return_type"), e.source),
					Static:     hasChildKind(child, "static"),
					StartLine:  startLine(child),
					EndLine:    endLine(child),
				})
			case "public_field_definition":
				if m, ok := e.member(child); ok {
					class.Members = append(class.Members, m)
				}
			}
		}
	}

	e.facts.Classes = append(e.facts.Classes, class)
}

// member reads a property-like node (property_signature, public_field_definition).
func (e *extractor) member(n *sitter.Node) (Member, bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return Member{}, false
	}
	return Member{
		Name:     unquote(e.text(name)),
		Type:     annotationText(n.ChildByFieldName("type"), e.source),
		Optional: hasChildKind(n, "?"),
		Line:     startLine(n),
	}, true
}

// objectMembers reads the members of an interface body or object type.
func (e *extractor) objectMembers(body *sitter.Node) []Member {
	var out []Member
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		switch child.Kind() {
		case "property_signature":
			if m, ok := e.member(child); ok {
				out = append(out, m)
			}
		case "method_signature":
			name := child.ChildByFieldName("name")
			if name == nil {
				continue
			}
			sig := e.text(child.ChildByFieldName("parameters"))
			ret := annotationText(child.ChildByFieldName("return_type"), e.source)
			if ret == "" {
				ret = "void"
			}
			out = append(out, Member{
				Name:     e.text(name),
				Type:     sig + " => " + ret,
				Optional: hasChildKind(child, "?"),
				Line:     startLine(child),
			})
		}
	}
	return out
}

func (e *extractor) extractInterface(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}

	iface := InterfaceDefinition{
		Name:           e.text(name),
		TypeParameters: e.typeParameters(n),
		Exported:       isExported(n),
		StartLine:      startLine(n),
		EndLine:        endLine(n),
	}

	if ext := findChildByKind(n, "extends_type_clause"); ext != nil {
		text := strings.TrimSpace(strings.TrimPrefix(e.text(ext), "extends"))
		iface.Extends = splitTypeList(text)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		iface.Members = e.objectMembers(body)
	}

	e.facts.Interfaces = append(e.facts.Interfaces, iface)
}

func (e *extractor) extractTypeAlias(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}

	alias := TypeAliasDefinition{
		Name:           e.text(name),
		TypeParameters: e.typeParameters(n),
		Exported:       isExported(n),
		StartLine:      startLine(n),
		EndLine:        endLine(n),
	}
	if value := n.ChildByFieldName("value"); value != nil {
		alias.Value = strings.TrimSpace(e.text(value))
		if value.Kind() == "object_type" {
			alias.Members = e.objectMembers(value)
		}
	}

	e.facts.TypeAliases = append(e.facts.TypeAliases, alias)
}

func (e *extractor) extractEnum(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}

	enum := EnumDefinition{
		Name:      e.text(name),
		Exported:  isExported(n),
		StartLine: startLine(n),
		EndLine:   endLine(n),
	}
	if body := n.ChildByFieldName("body"); body != nil {
		for i := uint(0); i < body.ChildCount(); i++ {
			child := body.Child(i)
			switch child.Kind() {
			case "property_identifier", "string":
				enum.Members = append(enum.Members, Member{Name: unquote(e.text(child)), Line: startLine(child)})
			case "enum_assignment":
				if memberName := child.ChildByFieldName("name"); memberName != nil {
					enum.Members = append(enum.Members, Member{Name: unquote(e.text(memberName)), Line: startLine(child)})
				}
			}
		}
	}

	e.facts.Enums = append(e.facts.Enums, enum)
}

func (e *extractor) extractVariables(n *sitter.Node) {
	kind := "var"
	if n.Kind() == "lexical_declaration" {
		kind = "let"
		if first := n.Child(0); first != nil && e.text(first) == "const" {
			kind = "const"
		}
	}

	for _, d := range findChildrenByKind(n, "variable_declarator") {
		name := d.ChildByFieldName("name")
		if name == nil {
			continue
		}
		e.facts.Variables = append(e.facts.Variables, Variable{
			Name: e.text(name),
			Type: annotationText(d.ChildByFieldName("type"), e.source),
			Kind: kind,
			Line: startLine(d),
		})

		value := d.ChildByFieldName("value")
		if value == nil || name.Kind() != "identifier" {
			continue
		}
		switch value.Kind() {
		case "arrow_function", "function_expression", "function":
			e.facts.Functions = append(e.facts.Functions, FunctionSignature{
				Name:       e.text(name),
				Parameters: e.parameters(value),
				ReturnType: annotationText(value.ChildByFieldName("return_type"), e.source),
				Async:      hasChildKind(value, "async"),
				Exported:   isExported(n),
				StartLine:  startLine(d),
				EndLine:    endLine(value),
			})
		}
	}
}
