package session

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

const (
	MinIDLength = 3
	MaxIDLength = 64
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

// ValidateID accepts a canonical UUID string or 3-64 characters drawn from
// ASCII letters, digits, '-' and '_'. It must run before an id is turned
// into a path.
func ValidateID(id string) error {
	if isCanonicalUUID(id) || idPattern.MatchString(id) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
}

// Only the hyphenated 36-character form counts; braced and urn forms would
// leak '{' or ':' into file names.
func isCanonicalUUID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// NewID returns a fresh random 128-bit identifier in canonical form.
func NewID() string {
	return uuid.NewString()
}
