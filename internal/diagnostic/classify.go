package diagnostic

import (
	"regexp"
	"sort"
	"strings"
)

// categoryRule buckets a diagnostic by message fragments or codes.
type categoryRule struct {
	category Category
	codes    map[string]bool
	patterns []*regexp.Regexp
}

func (r categoryRule) matches(d Diagnostic) bool {
	if r.codes[d.Code] {
		return true
	}
	for _, p := range r.patterns {
		if p.MatchString(d.Message) {
			return true
		}
	}
	return false
}

func codes(list ...string) map[string]bool {
	out := make(map[string]bool, len(list))
	for _, c := range list {
		out[c] = true
	}
	return out
}

func patterns(list ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(list))
	for _, p := range list {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// categoryRules are evaluated in order; the first match wins.
var categoryRules = []categoryRule{
	{
		category: CategoryConfig,
		codes:    codes("TS5023", "TS5024", "TS5025", "TS5042", "TS5053", "TS5055", "TS5083", "TS5090", "TS6046", "TS6053", "TS2688", "TS18003"),
		patterns: patterns(`tsconfig`, `Cannot find type definition file`, `compilerOptions`, `^Option '`, `Unknown compiler option`, `No inputs were found`),
	},
	{
		category: CategoryImports,
		codes:    codes("TS2307", "TS2305", "TS2614", "TS1192", "TS2306", "TS2724", "TS1259"),
		patterns: patterns(`Cannot find module`, `has no exported member`, `has no default export`, `is not a module`, `can only be default-imported`),
	},
	{
		category: CategoryDeclarations,
		codes:    codes("TS2304", "TS6133", "TS6196", "TS2300", "TS2451", "TS2448", "TS2454"),
		patterns: patterns(`Cannot find name`, `is declared but`, `Duplicate identifier`, `Cannot redeclare`, `Block-scoped variable`, `used before being assigned`),
	},
	{
		category: CategoryTypes,
		codes:    codes("TS2322", "TS2339", "TS2345", "TS2531", "TS2532", "TS7006", "TS2741", "TS2740", "TS2554", "TS18048"),
		patterns: patterns(`is not assignable`, `does not exist on type`, `Argument of type`, `Object is possibly`, `implicitly has an? '?any'?`, `is possibly 'undefined'`, `is missing the following properties`, `Expected \d+ arguments?`),
	},
	{
		category: CategorySyntax,
		codes:    codes("TS1005", "TS1109", "TS1128", "TS1002", "TS1003", "TS1161", "TS1110"),
		patterns: patterns(`expected\.?$`, `Unexpected token`, `Unterminated`, `Invalid character`),
	},
}

// autoFixable lists the categories whose diagnostics may be repaired
// without operator involvement in the decision to try.
var autoFixable = map[Category]bool{
	CategoryImports:      true,
	CategoryDeclarations: true,
	CategoryTypes:        true,
	CategorySyntax:       true,
}

// DenyList is the set of destructive-looking words that mark a
// diagnostic as high risk.
var DenyList = []string{"delete", "drop", "truncate", "remove", "destroy"}

// wordPattern splits identifiers into words at case and punctuation
// boundaries: removeAll is "remove" "All", DropdownMenu is "Dropdown" "Menu".
var wordPattern = regexp.MustCompile(`[A-Z]*[a-z]+|[A-Z]+`)

// destructive reports whether any word of text is on the deny list.
func destructive(text string) bool {
	for _, w := range wordPattern.FindAllString(text, -1) {
		w = strings.ToLower(w)
		for _, token := range DenyList {
			if w == token {
				return true
			}
		}
	}
	return false
}

// Categorize returns the category for a diagnostic.
func Categorize(d Diagnostic) Category {
	for _, rule := range categoryRules {
		if rule.matches(d) {
			return rule.category
		}
	}
	return CategoryOther
}

// AssessRisk returns the risk of automatically changing code for d. Only
// the message is matched against the deny list; the file path is not.
func AssessRisk(d Diagnostic, category Category) Risk {
	if destructive(d.Message) {
		return RiskHigh
	}
	if category == CategoryConfig || category == CategoryTypes {
		return RiskMedium
	}
	return RiskLow
}

// Classify fills Category, AutoFixable and Risk.
func Classify(d Diagnostic) Diagnostic {
	d.Category = Categorize(d)
	d.AutoFixable = autoFixable[d.Category]
	d.Risk = AssessRisk(d, d.Category)
	return d
}

// ClassifyAll classifies every diagnostic in place.
func ClassifyAll(diags []Diagnostic) {
	for i := range diags {
		diags[i] = Classify(diags[i])
	}
}

// GroupByCategory buckets classified diagnostics, each bucket sorted so
// the most severe, lowest-risk items come first.
func GroupByCategory(diags []Diagnostic) map[Category][]Diagnostic {
	groups := make(map[Category][]Diagnostic)
	for _, d := range diags {
		groups[d.Category] = append(groups[d.Category], d)
	}
	for _, list := range groups {
		SortForProcessing(list)
	}
	return groups
}

// SortForProcessing orders by severity descending, then risk safety
// descending. The sort is stable so checker order breaks ties.
func SortForProcessing(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		if a, b := diags[i].Severity.Rank(), diags[j].Severity.Rank(); a != b {
			return a > b
		}
		return diags[i].Risk.Safety() > diags[j].Risk.Safety()
	})
}
