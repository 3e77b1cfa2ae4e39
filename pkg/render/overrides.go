package render

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedOverride indicates a value override literal that is not of
// the form name=value.
var ErrMalformedOverride = errors.New("malformed value override")

// ErrDuplicateOutput indicates that two templates in one batch would both
// render to the same output file.
var ErrDuplicateOutput = errors.New("duplicate output path")

// ParseOverride splits a name=value literal on the first '='. The value may
// be empty or contain further '=' characters; the name may not be empty.
func ParseOverride(literal string) (string, string, error) {
	eq := strings.Index(literal, "=")
	if eq < 0 {
		return "", "", fmt.Errorf("%w: %q (expected name=value)", ErrMalformedOverride, literal)
	}
	name := literal[:eq]
	if name == "" {
		return "", "", fmt.Errorf("%w: %q (empty name)", ErrMalformedOverride, literal)
	}
	return name, literal[eq+1:], nil
}

// ParseOverrides parses a list of name=value literals into a map, later
// duplicates overwriting earlier ones. The first malformed literal aborts
// parsing.
func ParseOverrides(literals []string) (map[string]string, error) {
	values := make(map[string]string, len(literals))
	for _, literal := range literals {
		name, value, err := ParseOverride(literal)
		if err != nil {
			return nil, err
		}
		values[name] = value
	}
	return values, nil
}
