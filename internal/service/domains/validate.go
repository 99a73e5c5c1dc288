package domains

import (
	"fmt"
	"regexp"
	"strings"
)

const maxDomainLength = 255

// RFC 1035 label: letters/digits, optional interior hyphens, 1-63 chars.
var labelRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// Canonicalize lowercases and trims a raw domain string. All comparison
// and storage uses the canonical form.
func Canonicalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Validate canonicalizes raw and checks it against label syntax.
// Returns the canonical domain, or ErrInvalidDomain describing the first
// violation. A registrable custom domain needs at least two labels.
func Validate(raw string) (string, error) {
	domain := Canonicalize(raw)
	if domain == "" {
		return "", fmt.Errorf("%w: empty domain", ErrInvalidDomain)
	}
	if len(domain) > maxDomainLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidDomain, maxDomainLength)
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return "", fmt.Errorf("%w: must contain at least one dot", ErrInvalidDomain)
	}
	for _, label := range labels {
		if !labelRegex.MatchString(label) {
			return "", fmt.Errorf("%w: bad label %q", ErrInvalidDomain, label)
		}
	}
	return domain, nil
}

// IsValid reports whether raw canonicalizes to a well-formed domain.
func IsValid(raw string) bool {
	_, err := Validate(raw)
	return err == nil
}
