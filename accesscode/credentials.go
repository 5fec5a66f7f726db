package accesscode

import "errors"

// UserType is the session category the server assigns to a credential.
type UserType string

const (
	UserTypeHarper UserType = "harper"
	UserTypeGuest  UserType = "guest"
	UserTypeNormal UserType = "normal"
)

// Reserved phrases, in canonical form.
const (
	// ChildPhrase is the only phrase that requires a birthdate second factor.
	ChildPhrase    = "grace janin"
	GuestPhrase    = "guestmoir"
	AltGuestPhrase = "moirguest"
	// DefaultPlainTextPhrase is sent to the server unhashed.
	DefaultPlainTextPhrase = "northpole"
)

var (
	ErrInvalidCode        = errors.New("invalid access code")
	ErrBirthdateRequired  = errors.New("birthdate required")
	ErrPlainTextDisabled  = errors.New("plaintext codes are disabled")
	ErrAmbiguousCode      = errors.New("provide exactly one of codeHash or plainTextCode")
	ErrMalformedDigest    = errors.New("digests must be 32 lowercase hex characters")
	ErrPlainTextWithExtra = errors.New("plainTextCode cannot be combined with birthdateHash")
)

// KnownCredential is one entry of the server's credential table. Exactly one
// of CodeHash or PlainText is set.
type KnownCredential struct {
	Name          string
	UserType      UserType
	CodeHash      string
	BirthdateHash string
	PlainText     string
}

// RequiresBirthdate reports whether the credential needs a second factor.
func (c KnownCredential) RequiresBirthdate() bool {
	return c.BirthdateHash != ""
}

// VerifyBirthdate checks the second factor. Credentials without one accept
// any value, including nil.
func (c KnownCredential) VerifyBirthdate(birthdateHash *string) error {
	if !c.RequiresBirthdate() {
		return nil
	}
	if birthdateHash == nil || *birthdateHash == "" {
		return ErrBirthdateRequired
	}
	if !Compare(c.BirthdateHash, *birthdateHash) {
		return ErrInvalidCode
	}
	return nil
}

// Table is the fixed set of credentials the server recognizes.
type Table []KnownCredential

// DefaultTable returns the reserved credentials. An empty plainTextPhrase
// omits the plaintext entry.
func DefaultTable(plainTextPhrase string) Table {
	t := Table{
		{
			Name:          "harper",
			UserType:      UserTypeHarper,
			CodeHash:      Hash(ChildPhrase),
			BirthdateHash: Hash(ChildBirthdate),
		},
		{
			Name:     "guest",
			UserType: UserTypeGuest,
			CodeHash: Hash(GuestPhrase),
		},
		{
			Name:     "guest-alt",
			UserType: UserTypeGuest,
			CodeHash: Hash(AltGuestPhrase),
		},
	}
	if p := Canonical(plainTextPhrase); p != "" {
		t = append(t, KnownCredential{
			Name:      "plaintext",
			UserType:  UserTypeNormal,
			PlainText: p,
		})
	}
	return t
}

// MatchHash returns the credential whose code digest equals codeHash. Every
// entry is compared so the time taken does not depend on which one matches.
func (t Table) MatchHash(codeHash string) (KnownCredential, bool) {
	idx := -1
	for i, c := range t {
		if c.CodeHash == "" {
			continue
		}
		if Compare(c.CodeHash, codeHash) && idx < 0 {
			idx = i
		}
	}
	if idx < 0 {
		return KnownCredential{}, false
	}
	return t[idx], true
}

// MatchPlainText returns the plaintext credential matching code.
func (t Table) MatchPlainText(code string) (KnownCredential, bool) {
	canonical := Canonical(code)
	idx := -1
	for i, c := range t {
		if c.PlainText == "" {
			continue
		}
		if Compare(c.PlainText, canonical) && idx < 0 {
			idx = i
		}
	}
	if idx < 0 {
		return KnownCredential{}, false
	}
	return t[idx], true
}

// Resolve finds the credential a validated request refers to. It does not
// check the second factor; see KnownCredential.VerifyBirthdate.
func (t Table) Resolve(req VerifyRequest, allowPlainText bool) (KnownCredential, error) {
	if req.PlainTextCode != nil && *req.PlainTextCode != "" {
		if !allowPlainText {
			return KnownCredential{}, ErrPlainTextDisabled
		}
		if c, ok := t.MatchPlainText(*req.PlainTextCode); ok {
			return c, nil
		}
		return KnownCredential{}, ErrInvalidCode
	}
	if req.CodeHash == nil {
		return KnownCredential{}, ErrAmbiguousCode
	}
	if c, ok := t.MatchHash(*req.CodeHash); ok {
		return c, nil
	}
	return KnownCredential{}, ErrInvalidCode
}

// Verify resolves req and checks its second factor. On ErrBirthdateRequired
// and on a wrong birthdate the matched credential is returned alongside the
// error so callers can attribute the failure.
func (t Table) Verify(req VerifyRequest, allowPlainText bool) (KnownCredential, error) {
	if err := req.Validate(); err != nil {
		return KnownCredential{}, err
	}
	c, err := t.Resolve(req, allowPlainText)
	if err != nil {
		return KnownCredential{}, err
	}
	if err := c.VerifyBirthdate(req.BirthdateHash); err != nil {
		return c, err
	}
	return c, nil
}

// IsChildPhrase reports whether code is the phrase that needs a birthdate.
func IsChildPhrase(code string) bool {
	return Canonical(code) == ChildPhrase
}
