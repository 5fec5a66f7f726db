package accesscode

// VerifyRequest is the JSON body of the verification endpoint. Absent values
// are encoded as null.
type VerifyRequest struct {
	CodeHash      *string `json:"codeHash"`
	BirthdateHash *string `json:"birthdateHash"`
	PlainTextCode *string `json:"plainTextCode"`
}

// Validate checks the request shape: exactly one of CodeHash or
// PlainTextCode, and well-formed digests.
func (r VerifyRequest) Validate() error {
	hasHash := r.CodeHash != nil && *r.CodeHash != ""
	hasPlain := r.PlainTextCode != nil && *r.PlainTextCode != ""
	if hasHash == hasPlain {
		return ErrAmbiguousCode
	}
	if hasHash && !ValidDigest(*r.CodeHash) {
		return ErrMalformedDigest
	}
	if r.BirthdateHash != nil && *r.BirthdateHash != "" {
		if hasPlain {
			return ErrPlainTextWithExtra
		}
		if !ValidDigest(*r.BirthdateHash) {
			return ErrMalformedDigest
		}
	}
	return nil
}

// VerifyResponse is returned by the verification endpoint. SessionToken,
// SessionID and UserType are set iff Success; Error is set iff not.
type VerifyResponse struct {
	Success           bool     `json:"success"`
	SessionToken      string   `json:"sessionToken,omitempty"`
	SessionID         string   `json:"sessionId,omitempty"`
	UserType          UserType `json:"userType,omitempty"`
	Error             string   `json:"error,omitempty"`
	RequiresBirthdate bool     `json:"requiresBirthdate,omitempty"`
	Message           string   `json:"message,omitempty"`
}

// SessionInfo describes the session a token belongs to.
type SessionInfo struct {
	SessionID string   `json:"sessionId"`
	UserType  UserType `json:"userType"`
	ExpiresAt string   `json:"expiresAt"`
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
