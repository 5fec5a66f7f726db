package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jmcleod/adventkey/accesscode"
)

const (
	// maxVerifyBodySize bounds the verify-code request; a valid body is
	// well under 200 bytes.
	maxVerifyBodySize = 4 << 10

	msgInvalidCode       = "Invalid access code"
	msgBirthdateRequired = "Birthdate required"
	msgBirthdatePrompt   = "Please enter your birthdate to continue."
	msgRateLimited       = "too many failed attempts; try again later"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeInternalError logs err and returns a generic 500 so internal details
// never reach the client.
func writeInternalError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, msg)
}

// decodeJSON reads a size-limited JSON body into T. Unknown fields are
// rejected. On failure it writes a 400 and returns false.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, maxBytes int64) (T, bool) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return v, false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return v, false
	}
	if dec.More() {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return v, false
	}
	return v, true
}

// verifyErrorStatus maps request-shape errors from accesscode to a status
// and client message.
func verifyErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, accesscode.ErrAmbiguousCode),
		errors.Is(err, accesscode.ErrMalformedDigest),
		errors.Is(err, accesscode.ErrPlainTextWithExtra),
		errors.Is(err, accesscode.ErrPlainTextDisabled):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, accesscode.ErrBirthdateRequired):
		return http.StatusUnauthorized, msgBirthdateRequired
	default:
		return http.StatusUnauthorized, msgInvalidCode
	}
}
