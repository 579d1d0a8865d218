package typemodel

import (
	"errors"
	"strings"
)

// ErrAmbiguous is returned when a type name cannot be resolved to a
// single definition from the requesting file.
var ErrAmbiguous = errors.New("ambiguous type name")

// ErrNotFound is returned when no definition exists for a name.
var ErrNotFound = errors.New("type not found")

// Kind is the declaration form of a type.
type Kind string

const (
	KindInterface Kind = "interface"
	KindClass     Kind = "class"
	KindAlias     Kind = "alias"
	KindEnum      Kind = "enum"
)

// GenericParam is a declared type parameter.
type GenericParam struct {
	Name       string `json:"name"`
	Constraint string `json:"constraint,omitempty"`
}

// Property is a named member of a type.
type Property struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

// Key identifies a definition by declaring file and name.
type Key struct {
	File string
	Name string
}

// Definition is a named type declared in a project file.
type Definition struct {
	Name       string         `json:"name"`
	Kind       Kind           `json:"kind"`
	File       string         `json:"file"`
	Line       int            `json:"line"`
	EndLine    int            `json:"end_line"`
	Exported   bool           `json:"exported,omitempty"`
	Generics   []GenericParam `json:"generics,omitempty"`
	Supertypes []string       `json:"supertypes,omitempty"`
	Implements []string       `json:"implements,omitempty"`
	Properties []Property     `json:"properties,omitempty"`
}

// Key returns the definition's (file, name) identity.
func (d Definition) Key() Key {
	return Key{File: d.File, Name: d.Name}
}

// Property returns the named property, if declared.
func (d Definition) Property(name string) (Property, bool) {
	for _, p := range d.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// UsageKind is the syntactic form in which a type name is referenced.
type UsageKind string

const (
	UsageAnnotation     UsageKind = "annotation"
	UsageGeneric        UsageKind = "generic"
	UsageInheritance    UsageKind = "inheritance"
	UsageImplementation UsageKind = "implementation"
	UsageAssertion      UsageKind = "assertion"
)

// UsageSite is one textual reference to a type name.
type UsageSite struct {
	TypeName string    `json:"type_name"`
	File     string    `json:"file"`
	Line     int       `json:"line"`
	Kind     UsageKind `json:"kind"`
}

// Hierarchy holds the three relations derived from declarations.
type Hierarchy struct {
	SupertypesOf   map[string][]string // type -> extended types
	SubtypesOf     map[string][]string // type -> types extending it
	ImplementorsOf map[string][]string // interface -> implementing classes
}

// Severity grades the blast radius of a type change.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityBands are the score thresholds for each severity.
type SeverityBands struct {
	Medium   float64 `json:"medium" mapstructure:"medium"`
	High     float64 `json:"high" mapstructure:"high"`
	Critical float64 `json:"critical" mapstructure:"critical"`
}

// DefaultSeverityBands returns the default score thresholds.
func DefaultSeverityBands() SeverityBands {
	return SeverityBands{Medium: 5, High: 10, Critical: 20}
}

// Grade maps a score onto a severity.
func (b SeverityBands) Grade(score float64) Severity {
	switch {
	case score >= b.Critical:
		return SeverityCritical
	case score >= b.High:
		return SeverityHigh
	case score >= b.Medium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Impact describes the consequences of changing a type.
type Impact struct {
	TypeName       string   `json:"type_name"`
	DirectUsages   int      `json:"direct_usages"`
	AffectedFiles  []string `json:"affected_files"`
	ChildrenImpact int      `json:"children_impact"`
	Implementors   int      `json:"implementors"`
	Score          float64  `json:"score"`
	Severity       Severity `json:"severity"`
}

// ChangeKind classifies a breaking change between two definitions.
type ChangeKind string

const (
	PropertyRemoved      ChangeKind = "property_removed"
	PropertyTypeChanged  ChangeKind = "property_type_changed"
	PropertyMadeRequired ChangeKind = "property_made_required"
	PropertyMadeOptional ChangeKind = "property_made_optional"
)

// Change is one advisory breaking-change finding.
type Change struct {
	Kind     ChangeKind `json:"kind"`
	Property string     `json:"property"`
	Severity Severity   `json:"severity"`
	OldType  string     `json:"old_type,omitempty"`
	NewType  string     `json:"new_type,omitempty"`
}

// baseName strips generic arguments and namespace qualifiers:
// "ns.Base<T>" -> "Base".
func baseName(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexByte(ref, '<'); i >= 0 {
		ref = ref[:i]
	}
	if i := strings.LastIndexByte(ref, '.'); i >= 0 {
		ref = ref[i+1:]
	}
	return strings.TrimSpace(ref)
}
