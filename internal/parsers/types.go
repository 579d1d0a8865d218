package parsers

// FileFacts holds the structural facts extracted from one TypeScript or
// JavaScript source file. Line numbers are 1-based.
type FileFacts struct {
	Language    string
	LineCount   int
	HasErrors   bool // tree-sitter reported at least one ERROR node
	Imports     []Import
	Exports     []Export
	Functions   []FunctionSignature
	Classes     []ClassDefinition
	Interfaces  []InterfaceDefinition
	TypeAliases []TypeAliasDefinition
	Enums       []EnumDefinition
	Variables   []Variable
}

// ImportKind distinguishes the syntactic forms that create a dependency.
type ImportKind string

const (
	ImportStatic   ImportKind = "import"
	ImportReExport ImportKind = "re-export"
	ImportDynamic  ImportKind = "dynamic"
	ImportRequire  ImportKind = "require"
)

// Import is a single module reference.
type Import struct {
	Specifier string     `json:"specifier"`
	Kind      ImportKind `json:"kind"`
	Names     []string   `json:"names,omitempty"`
	Default   string     `json:"default,omitempty"`
	Namespace string     `json:"namespace,omitempty"`
	TypeOnly  bool       `json:"type_only,omitempty"`
	Line      int        `json:"line"`
}

// Export is a name made visible to other modules.
type Export struct {
	Name         string `json:"name"`
	Kind         string `json:"kind"` // function, class, interface, type, enum, variable, specifier, all
	Default      bool   `json:"default,omitempty"`
	ReExportFrom string `json:"re_export_from,omitempty"`
	Line         int    `json:"line"`
}

// Parameter is a function or method parameter.
type Parameter struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Optional bool   `json:"optional,omitempty"`
	Line     int    `json:"line"`
}

// FunctionSignature covers function declarations and function-valued
// variable declarators (arrow functions and function expressions).
type FunctionSignature struct {
	Name       string      `json:"name"`
	Parameters []Parameter `json:"parameters,omitempty"`
	ReturnType string      `json:"return_type,omitempty"`
	Async      bool        `json:"async,omitempty"`
	Exported   bool        `json:"exported,omitempty"`
	StartLine  int         `json:"start_line"`
	EndLine    int         `json:"end_line"`
}

// TypeParameter is a generic parameter with its optional constraint.
type TypeParameter struct {
	Name       string `json:"name"`
	Constraint string `json:"constraint,omitempty"`
}

// Member is a property of a class, interface, object type or enum.
type Member struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Optional bool   `json:"optional,omitempty"`
	Line     int    `json:"line"`
}

// MethodDefinition is a method inside a class body.
type MethodDefinition struct {
	Name       string      `json:"name"`
	Parameters []Parameter `json:"parameters,omitempty"`
	ReturnType string      `json:"return_type,omitempty"`
	Static     bool        `json:"static,omitempty"`
	StartLine  int         `json:"start_line"`
	EndLine    int         `json:"end_line"`
}

type ClassDefinition struct {
	Name           string             `json:"name"`
	TypeParameters []TypeParameter    `json:"type_parameters,omitempty"`
	Extends        string             `json:"extends,omitempty"`
	Implements     []string           `json:"implements,omitempty"`
	Members        []Member           `json:"members,omitempty"`
	Methods        []MethodDefinition `json:"methods,omitempty"`
	Abstract       bool               `json:"abstract,omitempty"`
	Exported       bool               `json:"exported,omitempty"`
	StartLine      int                `json:"start_line"`
	EndLine        int                `json:"end_line"`
}

type InterfaceDefinition struct {
	Name           string          `json:"name"`
	TypeParameters []TypeParameter `json:"type_parameters,omitempty"`
	Extends        []string        `json:"extends,omitempty"`
	Members        []Member        `json:"members,omitempty"`
	Exported       bool            `json:"exported,omitempty"`
	StartLine      int             `json:"start_line"`
	EndLine        int             `json:"end_line"`
}

// TypeAliasDefinition is a `type X = ...` declaration. Members is filled
// when the aliased type is an object literal type.
type TypeAliasDefinition struct {
	Name           string          `json:"name"`
	TypeParameters []TypeParameter `json:"type_parameters,omitempty"`
	Value          string          `json:"value"`
	Members        []Member        `json:"members,omitempty"`
	Exported       bool            `json:"exported,omitempty"`
	StartLine      int             `json:"start_line"`
	EndLine        int             `json:"end_line"`
}

type EnumDefinition struct {
	Name      string   `json:"name"`
	Members   []Member `json:"members,omitempty"`
	Exported  bool     `json:"exported,omitempty"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
}

// Variable is a const/let/var declarator at any depth.
type Variable struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Kind string `json:"kind"` // const, let, var
	Line int    `json:"line"`
}
