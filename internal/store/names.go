package store

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Collection tables and view relations live in one SQLite namespace;
// distinct prefixes keep them from colliding and make listing a prefix
// match instead of a type filter.
const (
	collectionPrefix = "col_"
	viewPrefix       = "view_"

	minNameLen = 2
	maxNameLen = 64
)

// namePattern is the allow-list for collection and view names:
// alphanumeric with underscores and hyphens, no spaces. Names inside
// this set are safe to splice as quoted identifiers.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateName checks a collection or view name against the allow-list
// and length bounds. Invalid names fail with ErrCodeInvalidName.
func ValidateName(name string) error {
	if !utf8.ValidString(name) {
		return &StoreError{
			Code:    ErrCodeInvalidName,
			Name:    name,
			Message: "name must be valid UTF-8",
		}
	}
	if len(name) < minNameLen || len(name) > maxNameLen {
		return &StoreError{
			Code:    ErrCodeInvalidName,
			Name:    name,
			Message: fmt.Sprintf("name must be between %d and %d characters", minNameLen, maxNameLen),
		}
	}
	if !namePattern.MatchString(name) {
		return &StoreError{
			Code:    ErrCodeInvalidName,
			Name:    name,
			Message: "name must be alphanumeric with no spaces; underscores and hyphens are allowed",
		}
	}
	return nil
}

// collectionTable returns the quoted physical table identifier for a
// validated collection name.
func collectionTable(name string) string {
	return `"` + collectionPrefix + name + `"`
}

// viewRelation returns the quoted relation identifier for a validated
// view name.
func viewRelation(name string) string {
	return `"` + viewPrefix + name + `"`
}
