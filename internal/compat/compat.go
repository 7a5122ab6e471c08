package compat

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

var (
	// ErrInvalidVersion indicates a version string is not valid semver.
	ErrInvalidVersion = errors.New("invalid semantic version")

	// ErrInvalidConstraint indicates a constraint string could not be parsed.
	ErrInvalidConstraint = errors.New("invalid version constraint")

	// ErrIncompatible indicates a well-formed constraint that the host
	// version does not satisfy.
	ErrIncompatible = errors.New("host version does not satisfy constraint")
)

// operators, longest first so that ">=" is not misread as ">".
var operators = []string{">=", "<=", ">", "<", "="}

type term struct {
	op      string
	version string
}

// Constraint is a parsed conjunction of version requirements. The zero value
// matches every host version.
type Constraint struct {
	terms []term
	raw   string
}

// ParseConstraint parses a comma-separated conjunction of requirements, each
// an operator (>=, >, <=, <, =) followed by a semantic version. A bare
// version means an exact match. The empty string parses to a constraint that
// always passes.
func ParseConstraint(s string) (Constraint, error) {
	c := Constraint{raw: strings.TrimSpace(s)}
	if c.raw == "" {
		return c, nil
	}

	for _, part := range strings.Split(c.raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return Constraint{}, fmt.Errorf("%w: empty requirement in %q", ErrInvalidConstraint, s)
		}

		op := "="
		rest := part
		for _, candidate := range operators {
			if strings.HasPrefix(part, candidate) {
				op = candidate
				rest = strings.TrimSpace(part[len(candidate):])
				break
			}
		}

		version, err := normalizeVersion(rest)
		if err != nil {
			return Constraint{}, fmt.Errorf("%w: requirement %q: %v", ErrInvalidConstraint, part, err)
		}
		c.terms = append(c.terms, term{op: op, version: version})
	}
	return c, nil
}

// String returns the constraint as written.
func (c Constraint) String() string { return c.raw }

// Empty reports whether the constraint places no requirement on the host.
func (c Constraint) Empty() bool { return len(c.terms) == 0 }

// Check tests hostVersion against every requirement. It returns nil when all
// pass, an error wrapping ErrIncompatible when one fails, and an error
// wrapping ErrInvalidVersion when hostVersion itself is malformed.
func (c Constraint) Check(hostVersion string) error {
	if c.Empty() {
		return nil
	}

	host, err := normalizeVersion(hostVersion)
	if err != nil {
		return err
	}

	for _, tm := range c.terms {
		cmp := semver.Compare(host, tm.version)
		ok := false
		switch tm.op {
		case ">=":
			ok = cmp >= 0
		case ">":
			ok = cmp > 0
		case "<=":
			ok = cmp <= 0
		case "<":
			ok = cmp < 0
		case "=":
			ok = cmp == 0
		}
		if !ok {
			return fmt.Errorf("%w: host %s fails %s %s", ErrIncompatible, hostVersion, tm.op, strings.TrimPrefix(tm.version, "v"))
		}
	}
	return nil
}

// Check is a one-shot parse-and-check for callers that do not keep the
// parsed constraint around.
func Check(constraint, hostVersion string) error {
	c, err := ParseConstraint(constraint)
	if err != nil {
		return err
	}
	return c.Check(hostVersion)
}

// normalizeVersion ensures the version string has the "v" prefix the semver
// package requires and validates the result.
func normalizeVersion(v string) (string, error) {
	norm := strings.TrimSpace(v)
	if !strings.HasPrefix(norm, "v") {
		norm = "v" + norm
	}
	if !semver.IsValid(norm) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, v)
	}
	return norm, nil
}
