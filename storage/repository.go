// Package storage provides the record store shared by the server's session
// and attempt logs and the client's session cache.
package storage

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrNamespaceNotFound is returned when no record was ever written to a
	// namespace.
	ErrNamespaceNotFound = errors.New("namespace not found")
)

// Repository stores envelopes keyed by namespace, record type and record ID.
type Repository interface {
	Put(namespace, recordType, recordID string, envelope *Envelope) error
	Get(namespace, recordType, recordID string) (*Envelope, error)
	List(namespace, recordType string) ([]string, error)
	Delete(namespace, recordType, recordID string) error
}

// IsNotFound reports whether err means the record, or its whole namespace,
// does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNamespaceNotFound)
}
