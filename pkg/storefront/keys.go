package storefront

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	urlKeyPattern     = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	catalogKeyPattern = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)
)

const maxKeyLength = 64

// CatalogKey translates a kebab-case URL key to its snake_case catalog key
func CatalogKey(urlKey string) (string, error) {
	if len(urlKey) > maxKeyLength || !urlKeyPattern.MatchString(urlKey) {
		return "", fmt.Errorf("%w: %q", ErrMalformedKey, urlKey)
	}
	return strings.ReplaceAll(urlKey, "-", "_"), nil
}

// URLKey translates a snake_case catalog key to its kebab-case URL key
func URLKey(catalogKey string) (string, error) {
	if len(catalogKey) > maxKeyLength || !catalogKeyPattern.MatchString(catalogKey) {
		return "", fmt.Errorf("%w: %q", ErrMalformedKey, catalogKey)
	}
	return strings.ReplaceAll(catalogKey, "_", "-"), nil
}
