// Package requirement parses the dependency specifier strings a build
// backend returns from get_requires_for_build_{sdist,wheel,editable}.
package requirement

import (
	"fmt"
	"strings"
)

// Requirement is a parsed dependency specifier: a distribution name plus an
// optional, unparsed version/extra/marker tail. The frontend only needs to
// know a returned string is a syntactically plausible specifier, not fully
// resolve it.
type Requirement struct {
	Name  string
	Extra string // "" if none, e.g. "socks" for "requests[socks]"
	Rest  string // raw tail after the name/extras: version constraints, markers
}

// String reconstructs something close to the original specifier text.
func (r Requirement) String() string {
	var b strings.Builder
	b.WriteString(r.Name)
	if r.Extra != "" {
		b.WriteString("[")
		b.WriteString(r.Extra)
		b.WriteString("]")
	}
	b.WriteString(r.Rest)
	return b.String()
}

// Parse validates and parses a single dependency specifier string, as
// returned by a get_requires_for_build_* hook. It does not enforce a full
// PEP 508 grammar; it only rejects the empty-string, invalid-name and
// unterminated-extras cases the frontend must reject before accepting a
// hook's return value.
func Parse(spec string) (Requirement, error) {
	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return Requirement{}, fmt.Errorf("requirement: empty specifier")
	}

	name := trimmed
	rest := ""
	extra := ""

	for i, r := range trimmed {
		if !isNameChar(r) {
			name = trimmed[:i]
			rest = trimmed[i:]
			break
		}
	}

	if name == "" {
		return Requirement{}, fmt.Errorf("requirement: %q has no valid package name", spec)
	}
	if !isValidName(name) {
		return Requirement{}, fmt.Errorf("requirement: %q is not a valid package name", name)
	}

	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end < 0 {
			return Requirement{}, fmt.Errorf("requirement: %q has an unterminated extras list", spec)
		}
		extra = rest[1:end]
		rest = rest[end+1:]
	}

	return Requirement{Name: name, Extra: extra, Rest: rest}, nil
}

// ParseAll parses a requirement list as returned by a get_requires_for_build_*
// hook, returning the first element's Parse error; the frontend turns that
// error into its TypeError failure.
func ParseAll(specs []string) ([]Requirement, error) {
	out := make([]Requirement, 0, len(specs))
	for _, s := range specs {
		r, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func isNameChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.'
}

// isValidName mirrors the pack's own package-name validation, generalized to
// accept mixed case and dots (PyPI names are case-insensitive and allow
// both, unlike the lowercase-only check it's modeled on).
func isValidName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !isNameChar(r) {
			return false
		}
	}
	return true
}
