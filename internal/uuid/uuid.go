// Package uuid generates the random identifiers used for sessions and
// attempt records.
package uuid

import "github.com/google/uuid"

// New returns a random (version 4) UUID string.
func New() string {
	return uuid.NewString()
}
