package graph

import (
	"path"
	"strings"
)

// resolutionSuffixes are tried in order when resolving a relative
// specifier against the scanned file set.
var resolutionSuffixes = []string{
	"",
	".ts",
	".tsx",
	".d.ts",
	".js",
	".jsx",
	"/index.ts",
	"/index.tsx",
	"/index.d.ts",
	"/index.js",
	"/index.jsx",
}

// ResolveSpecifier resolves a relative import specifier written in the
// file at from. It returns the project-relative target path, or "" when
// the specifier is not relative or no scanned file matches. Specifiers
// written with a .js extension also resolve to the .ts/.tsx source.
func ResolveSpecifier(from, specifier string, exists func(string) bool) string {
	imp := Import{}
	imp.Specifier = specifier
	if !imp.Relative() {
		return ""
	}

	base := path.Join(path.Dir(from), specifier)
	if base == ".." || strings.HasPrefix(base, "../") {
		return ""
	}

	for _, suffix := range resolutionSuffixes {
		if candidate := base + suffix; exists(candidate) {
			return candidate
		}
	}

	if ext := path.Ext(base); ext == ".js" || ext == ".jsx" {
		stem := strings.TrimSuffix(base, ext)
		for _, alt := range []string{".ts", ".tsx"} {
			if exists(stem + alt) {
				return stem + alt
			}
		}
	}
	return ""
}
