package resellers

import (
	"fmt"
	"regexp"
)

const (
	MinSlugLength = 3
	MaxSlugLength = 50
)

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)

// ValidateSlug applies the strict allow-list: lowercase ASCII letters, digits
// and inner hyphens, 3 to 50 characters. Nothing is normalized; anything else
// is rejected.
func ValidateSlug(slug string) error {
	if len(slug) < MinSlugLength || len(slug) > MaxSlugLength {
		return fmt.Errorf("%w: length must be between %d and %d", ErrInvalidSlug, MinSlugLength, MaxSlugLength)
	}
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("%w: only lowercase letters, digits and inner hyphens are allowed", ErrInvalidSlug)
	}
	return nil
}
