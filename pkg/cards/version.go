package cards

import (
	"fmt"
	"regexp"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
)

const versionLogPrefix = "cards:version"

var capabilityNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9._-]*$`)

// CapabilityRef is a parsed "capability[@constraint]" reference, e.g. "check_inventory@^1.0.0".
type CapabilityRef struct {
	Name       string
	Constraint string
	Raw        string
}

// ParseCapabilityRef parses a capability reference. The constraint part is optional.
func ParseCapabilityRef(input string) (*CapabilityRef, error) {
	raw := strings.TrimSpace(input)
	name, constraint, _ := strings.Cut(raw, "@")
	name = strings.TrimSpace(name)
	constraint = strings.TrimSpace(constraint)

	if !ValidateCapabilityName(name) {
		return nil, fmt.Errorf("%s - invalid capability name in reference %q", versionLogPrefix, raw)
	}
	if constraint != "" {
		if _, err := masterminds.NewConstraint(constraint); err != nil {
			return nil, fmt.Errorf("%s - invalid version constraint %q: %w", versionLogPrefix, constraint, err)
		}
	}
	return &CapabilityRef{Name: name, Constraint: constraint, Raw: raw}, nil
}

// ValidateCapabilityName reports whether name is an acceptable capability identifier.
func ValidateCapabilityName(name string) bool {
	return capabilityNameRegex.MatchString(name)
}

// ValidateVersion checks that v is a semantic version.
func ValidateVersion(v string) error {
	if _, err := masterminds.StrictNewVersion(v); err != nil {
		return fmt.Errorf("%s - invalid version %q: %w", versionLogPrefix, v, err)
	}
	return nil
}

// Satisfies reports whether version meets constraint. An empty constraint always matches.
func Satisfies(version, constraint string) (bool, error) {
	if constraint == "" {
		return true, nil
	}
	v, err := masterminds.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("%s - invalid version %q: %w", versionLogPrefix, version, err)
	}
	c, err := masterminds.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("%s - invalid constraint %q: %w", versionLogPrefix, constraint, err)
	}
	return c.Check(v), nil
}
