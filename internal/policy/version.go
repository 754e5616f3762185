package policy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrParse is wrapped by every ParseError so callers can test with errors.Is.
var ErrParse = errors.New("policy: malformed version")

// ParseError reports a version string with a non-numeric component.
type ParseError struct {
	Input     string
	Component string
	Index     int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("policy: version %q: component %d (%q) is not a non-negative integer", e.Input, e.Index, e.Component)
}

// Unwrap lets errors.Is match ErrParse.
func (e *ParseError) Unwrap() error { return ErrParse }

// Version is a dot-separated sequence of non-negative integers.
type Version []int

// ParseVersion splits s on "." and parses every component.
func ParseVersion(s string) (Version, error) {
	trimmed := strings.TrimSpace(s)
	parts := strings.Split(trimmed, ".")
	out := make(Version, 0, len(parts))
	for i, part := range parts {
		if part == "" || strings.TrimLeft(part, "0123456789") != "" {
			return nil, &ParseError{Input: s, Component: part, Index: i}
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, &ParseError{Input: s, Component: part, Index: i}
		}
		out = append(out, n)
	}
	return out, nil
}

// String renders the version back to dotted form.
func (v Version) String() string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// Compare orders two versions component by component, padding the shorter one
// with zeros. It returns -1, 0, or 1.
func Compare(a, b Version) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		x, y := at(a, i), at(b, i)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

func at(v Version, i int) int {
	if i < len(v) {
		return v[i]
	}
	return 0
}
