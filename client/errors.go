package client

import (
	"errors"
	"fmt"
)

// Kind classifies a verification failure.
type Kind int

const (
	// KindValidation is a local failure; no request was sent.
	KindValidation Kind = iota + 1
	// KindRejection means the server answered and declined the attempt.
	KindRejection
	// KindTransport means the request itself failed.
	KindTransport
	// KindMalformedResponse means the server's reply could not be understood.
	KindMalformedResponse
	KindTimeout
	// KindStorage means the session could not be persisted locally.
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRejection:
		return "rejection"
	case KindTransport:
		return "transport"
	case KindMalformedResponse:
		return "malformed_response"
	case KindTimeout:
		return "timeout"
	case KindStorage:
		return "storage"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

const (
	genericMessage  = "Something went wrong. Please try again."
	timeoutMessage  = "The request timed out. Please try again."
	inFlightMessage = "Verification is already in progress."

	msgCodeRequired      = "Please enter your access code."
	msgBirthdateRequired = "Please enter your birthdate."
)

var (
	ErrInFlight  = errors.New("a verification attempt is already in flight")
	ErrNoSession = errors.New("no stored session")
)

// Error is returned by Verifier.Submit and the HTTP transport.
type Error struct {
	Kind Kind
	// Message is the server-provided or validation text, if any.
	Message string
	// Status is the HTTP status of the response, when one was received.
	Status int
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// UserMessage renders err as the single line shown to the user. Validation
// and rejection messages are shown verbatim; everything else collapses to a
// generic message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrInFlight) {
		return inFlightMessage
	}
	var e *Error
	if !errors.As(err, &e) {
		return genericMessage
	}
	switch e.Kind {
	case KindValidation, KindRejection:
		if e.Message != "" {
			return e.Message
		}
	case KindTimeout:
		return timeoutMessage
	}
	return genericMessage
}
