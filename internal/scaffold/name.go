package scaffold

import (
	"unicode"

	"github.com/concentricsky/djenesis/internal/errors"
)

// pythonKeywords cannot be used as package names.
var pythonKeywords = setOf(
	"False", "None", "True", "and", "as", "assert", "async", "await",
	"break", "class", "continue", "def", "del", "elif", "else", "except",
	"finally", "for", "from", "global", "if", "import", "in", "is",
	"lambda", "nonlocal", "not", "or", "pass", "raise", "return", "try",
	"while", "with", "yield",
)

// shadowedModules would hide a module Django or Python imports.
var shadowedModules = setOf(
	"django", "test", "tests", "site", "os", "sys", "re", "io", "json",
	"logging", "email", "code", "types", "string", "time", "random", "http",
	"html", "xml", "abc", "copy", "collections", "unittest", "settings",
	"djenesis",
)

func setOf(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// ValidateName checks that name can be used as the project's Python package.
func ValidateName(name string) error {
	if name == "" {
		return errors.New("E147").WithDetail("The project name is empty")
	}

	for i, r := range name {
		ok := r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r))
		if !ok {
			return errors.New("E147").
				WithDetail("'" + name + "' is not a valid Python identifier").
				WithSuggestion("Use letters, digits and underscores, e.g. " + suggestName(name))
		}
	}

	if pythonKeywords[name] {
		return errors.New("E147").
			WithDetail("'" + name + "' is a Python keyword")
	}
	if shadowedModules[name] {
		return errors.New("E147").
			WithDetail("'" + name + "' conflicts with the name of an existing Python module").
			WithSuggestion("Try " + name + "_site or my" + name)
	}
	return nil
}

// suggestName turns an invalid name into a plausible identifier.
func suggestName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			out = append(out, unicode.ToLower(r))
		case len(out) > 0 && out[len(out)-1] != '_':
			out = append(out, '_')
		}
	}
	for len(out) > 0 && out[len(out)-1] == '_' {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return "mysite"
	}
	if unicode.IsDigit(out[0]) {
		out = append([]rune("site_"), out...)
	}
	return string(out)
}
