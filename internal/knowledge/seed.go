package knowledge

import "github.com/mvp-joe/project-remedy/internal/diagnostic"

// Rule names understood by the fix generators.
const (
	RuleAddMissingImport = "add-missing-import"
	RuleFixModulePath    = "fix-module-path"
)

// SeedEntries returns the built-in curated entries inserted into an
// empty store.
func SeedEntries() []Entry {
	return []Entry{
		{
			ID:       "imports-missing-module",
			Pattern:  `Cannot find module '[^']+'`,
			Category: diagnostic.CategoryImports,
			Keywords: []string{"cannot", "find", "module", "declarations"},
			Remediations: []string{
				"Check the relative path and file name casing of the import specifier.",
				"Install the package or add a type declaration for it.",
			},
			Confidence: 0.9,
			Rule:       RuleFixModulePath,
		},
		{
			ID:       "declarations-missing-name",
			Pattern:  `Cannot find name '[^']+'`,
			Category: diagnostic.CategoryDeclarations,
			Keywords: []string{"cannot", "find", "name"},
			Remediations: []string{
				"Import the symbol from the module that exports it.",
				"Declare the variable before use.",
			},
			Confidence: 0.9,
			Rule:       RuleAddMissingImport,
		},
		{
			ID:       "imports-no-exported-member",
			Pattern:  `has no exported member`,
			Category: diagnostic.CategoryImports,
			Keywords: []string{"exported", "member", "module"},
			Remediations: []string{
				"Check the exported name in the target module.",
				"Switch between default and named import.",
			},
			Confidence: 0.7,
		},
		{
			ID:       "types-not-assignable",
			Pattern:  `Type '.+' is not assignable to type '.+'`,
			Category: diagnostic.CategoryTypes,
			Keywords: []string{"type", "assignable"},
			Remediations: []string{
				"Align the value with the declared type.",
				"Widen the declared type if the value is correct.",
			},
			Confidence: 0.6,
		},
		{
			ID:       "types-missing-property",
			Pattern:  `Property '[^']+' does not exist on type`,
			Category: diagnostic.CategoryTypes,
			Keywords: []string{"property", "exist", "type"},
			Remediations: []string{
				"Add the property to the type definition.",
				"Check the property name for typos.",
			},
			Confidence: 0.6,
		},
		{
			ID:       "declarations-duplicate-identifier",
			Pattern:  `Duplicate identifier '[^']+'`,
			Category: diagnostic.CategoryDeclarations,
			Keywords: []string{"duplicate", "identifier"},
			Remediations: []string{
				"Rename one of the declarations.",
			},
			Confidence: 0.6,
		},
		{
			ID:       "syntax-token-expected",
			Pattern:  `'.+' expected`,
			Category: diagnostic.CategorySyntax,
			Keywords: []string{"expected"},
			Remediations: []string{
				"Insert the missing token at the reported position.",
			},
			Confidence: 0.7,
		},
		{
			ID:       "config-compiler-option",
			Pattern:  `(?i)compiler option|tsconfig`,
			Category: diagnostic.CategoryConfig,
			Keywords: []string{"compiler", "option", "tsconfig"},
			Remediations: []string{
				"Review tsconfig.json compilerOptions.",
			},
			Confidence: 0.5,
		},
		{
			ID:       "other-implicit-any",
			Pattern:  `implicitly has an? '?any'? type`,
			Category: diagnostic.CategoryOther,
			Keywords: []string{"implicitly", "any", "type"},
			Remediations: []string{
				"Add an explicit type annotation.",
			},
			Confidence: 0.5,
		},
	}
}
