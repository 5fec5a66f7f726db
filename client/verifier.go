// Package client drives the access-code flow from the user's side: it
// decides when a birthdate is needed, hashes what the user typed, submits
// it and persists the resulting session.
package client

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jmcleod/adventkey/accesscode"
)

// State is the verifier's position in the flow.
type State int

const (
	StateAwaitingCode State = iota
	StateAwaitingSecondFactor
	StateSubmitting
	StateResolvedSuccess
	StateResolvedFailure
)

func (s State) String() string {
	switch s {
	case StateAwaitingCode:
		return "awaiting_code"
	case StateAwaitingSecondFactor:
		return "awaiting_second_factor"
	case StateSubmitting:
		return "submitting"
	case StateResolvedSuccess:
		return "resolved_success"
	case StateResolvedFailure:
		return "resolved_failure"
	default:
		return "unknown"
	}
}

// Attempt holds what the user entered and what will be sent for it.
type Attempt struct {
	CodeInput      string
	BirthdateInput string

	CodeHash      string
	BirthdateHash string
	PlainTextCode string
}

// Request returns the wire form of the attempt. Empty fields become null.
func (a Attempt) Request() accesscode.VerifyRequest {
	return accesscode.VerifyRequest{
		CodeHash:      accesscode.StringPtr(a.CodeHash),
		BirthdateHash: accesscode.StringPtr(a.BirthdateHash),
		PlainTextCode: accesscode.StringPtr(a.PlainTextCode),
	}
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithHasher replaces the SHA-256 hasher. Only tests should pass the
// rolling fallback; see accesscode.NewHasher.
func WithHasher(h accesscode.Hasher) Option {
	return func(v *Verifier) {
		v.hasher = h
	}
}

// WithPlainTextPhrase sets the phrase sent unhashed. An empty phrase hashes
// every code.
func WithPlainTextPhrase(phrase string) Option {
	return func(v *Verifier) {
		v.plainTextPhrase = accesscode.Canonical(phrase)
	}
}

// WithRequestTimeout bounds each submission. Zero means no timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(v *Verifier) {
		v.timeout = d
	}
}

// WithOnSuccess registers a callback run with the session category after a
// successful submission.
func WithOnSuccess(fn func(Category)) Option {
	return func(v *Verifier) {
		v.onSuccess = fn
	}
}

// WithOnClose registers a callback run after a successful submission once
// the form is done.
func WithOnClose(fn func()) Option {
	return func(v *Verifier) {
		v.onClose = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// Verifier runs one access-code form. It allows a single submission in
// flight at a time.
type Verifier struct {
	transport       Transport
	store           SessionStore
	hasher          accesscode.Hasher
	plainTextPhrase string
	timeout         time.Duration
	onSuccess       func(Category)
	onClose         func()
	logger          *slog.Logger

	mu        sync.Mutex
	state     State
	code      string
	birthdate string
	message   string
}

// NewVerifier returns a verifier that submits through transport and
// persists sessions to store.
func NewVerifier(transport Transport, store SessionStore, opts ...Option) *Verifier {
	v := &Verifier{
		transport:       transport,
		store:           store,
		hasher:          accesscode.SHA256Hasher{},
		plainTextPhrase: accesscode.DefaultPlainTextPhrase,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SetCode records the code input. The child phrase moves the form to
// StateAwaitingSecondFactor; any other value drops the second factor and
// clears the birthdate.
func (v *Verifier) SetCode(input string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateSubmitting {
		return ErrInFlight
	}
	v.code = input
	v.message = ""
	if accesscode.IsChildPhrase(input) {
		v.state = StateAwaitingSecondFactor
	} else {
		v.state = StateAwaitingCode
		v.birthdate = ""
	}
	return nil
}

// SetBirthdate records the second-factor input.
func (v *Verifier) SetBirthdate(input string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateSubmitting {
		return ErrInFlight
	}
	v.birthdate = input
	return nil
}

func (v *Verifier) RequiresSecondFactor() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return accesscode.IsChildPhrase(v.code)
}

func (v *Verifier) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Message is the user-facing text for the last failure, or empty.
func (v *Verifier) Message() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.message
}

// Submit verifies the current inputs. It returns the session category on
// success. Every failure is an *Error (or ErrInFlight) and is also rendered
// into Message.
func (v *Verifier) Submit(ctx context.Context) (Category, error) {
	attempt, err := v.begin()
	if err != nil {
		return "", err
	}

	category, err := v.dispatch(ctx, attempt)
	v.finish(err)
	if err != nil {
		v.logger.Warn("verification failed", "kind", errorKind(err))
		return "", err
	}

	v.logger.Info("verification succeeded", "category", string(category))
	if v.onSuccess != nil {
		v.onSuccess(category)
	}
	if v.onClose != nil {
		v.onClose()
	}
	return category, nil
}

// begin validates the inputs and builds the attempt. On success the
// verifier is in StateSubmitting.
func (v *Verifier) begin() (Attempt, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateSubmitting {
		return Attempt{}, ErrInFlight
	}

	attempt, err := v.newAttempt(v.code, v.birthdate)
	if err != nil {
		v.message = UserMessage(err)
		return Attempt{}, err
	}
	v.state = StateSubmitting
	v.message = ""
	return attempt, nil
}

// newAttempt hashes code and, when the child phrase requires it, the
// normalized birthdate. Both hashes are computed before anything is sent.
func (v *Verifier) newAttempt(code, birthdate string) (Attempt, error) {
	canonical := accesscode.Canonical(code)
	if canonical == "" {
		return Attempt{}, &Error{Kind: KindValidation, Message: msgCodeRequired}
	}
	secondFactor := accesscode.IsChildPhrase(code)
	if secondFactor && strings.TrimSpace(birthdate) == "" {
		return Attempt{}, &Error{Kind: KindValidation, Message: msgBirthdateRequired}
	}

	a := Attempt{CodeInput: code, BirthdateInput: birthdate}
	if v.plainTextPhrase != "" && canonical == v.plainTextPhrase {
		a.PlainTextCode = canonical
	} else {
		a.CodeHash = v.hasher.Hash(code)
	}
	if secondFactor {
		a.BirthdateHash = v.hasher.Hash(accesscode.NormalizeBirthdate(birthdate))
	}
	return a, nil
}

func (v *Verifier) dispatch(ctx context.Context, attempt Attempt) (Category, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	resp, err := v.transport.Verify(ctx, attempt.Request())
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !IsKind(err, KindTimeout) {
			return "", &Error{Kind: KindTimeout, Err: err}
		}
		return "", err
	}
	if !resp.Success {
		return "", &Error{Kind: KindRejection, Message: resp.Error}
	}
	if resp.SessionToken == "" || resp.SessionID == "" {
		return "", &Error{Kind: KindMalformedResponse, Message: "response is missing session fields"}
	}

	category := Categorize(resp.UserType)
	err = persistSession(ctx, v.store, Session{
		Token:        resp.SessionToken,
		ID:           resp.SessionID,
		ChildSession: category == CategoryChild,
		GuestSession: category == CategoryGuest,
	})
	if err != nil {
		return "", err
	}
	return category, nil
}

func (v *Verifier) finish(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		v.state = StateResolvedFailure
		v.message = UserMessage(err)
		return
	}
	v.state = StateResolvedSuccess
	v.message = ""
}

func errorKind(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind.String()
	}
	return "unknown"
}
