package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/adventkey/accesscode"
)

func stubServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func guestRequest() accesscode.VerifyRequest {
	return accesscode.VerifyRequest{CodeHash: accesscode.StringPtr(accesscode.Hash("guestmoir"))}
}

func TestHTTPTransport_VerifySendsNulls(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, VerifyPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true,"sessionToken":"tok","sessionId":"sid","userType":"guest"}`))
	}))
	defer srv.Close()

	resp, err := NewHTTPTransport(srv.URL+"/", nil).Verify(context.Background(), guestRequest())
	require.NoError(t, err)
	assert.Equal(t, "tok", resp.SessionToken)
	assert.Equal(t, accesscode.UserTypeGuest, resp.UserType)

	require.Contains(t, got, "birthdateHash")
	require.Contains(t, got, "plainTextCode")
	assert.Nil(t, got["birthdateHash"])
	assert.Nil(t, got["plainTextCode"])
	assert.Equal(t, accesscode.Hash("guestmoir"), got["codeHash"])
}

func TestHTTPTransport_VerifyFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    Kind
		message string
	}{
		{"Rejected", http.StatusUnauthorized, `{"success":false,"error":"Invalid access code"}`, KindRejection, "Invalid access code"},
		{"BirthdateSignal", http.StatusUnauthorized, `{"success":false,"error":"Birthdate required","requiresBirthdate":true,"message":"Please enter your birthdate to continue."}`, KindRejection, "Birthdate required"},
		{"SuccessFalseOn200", http.StatusOK, `{"success":false,"error":"Nope"}`, KindRejection, "Nope"},
		{"ServerErrorHTML", http.StatusBadGateway, `<html>bad gateway</html>`, KindRejection, ""},
		{"MalformedJSON", http.StatusOK, `{"success":tru`, KindMalformedResponse, ""},
		{"WrongShape", http.StatusOK, `[1,2,3]`, KindMalformedResponse, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := stubServer(t, tc.status, tc.body)
			_, err := NewHTTPTransport(srv.URL, srv.Client()).Verify(context.Background(), guestRequest())
			require.Error(t, err)
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tc.kind, e.Kind)
			assert.Equal(t, tc.message, e.Message)
			assert.Equal(t, tc.status, e.Status)
		})
	}
}

func TestHTTPTransport_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPTransport(url, nil).Verify(context.Background(), guestRequest())
	assert.True(t, IsKind(err, KindTransport), "got %v", err)
	assert.Equal(t, genericMessage, UserMessage(err))
}

func TestHTTPTransport_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewHTTPTransport(srv.URL, srv.Client()).Verify(ctx, guestRequest())
	assert.True(t, IsKind(err, KindTimeout), "got %v", err)
}

func TestHTTPTransport_SessionAndLogout(t *testing.T) {
	var logoutAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SessionPath:
			if r.Header.Get("Authorization") != "Bearer good" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"success":false,"error":"invalid or expired session"}`))
				return
			}
			w.Write([]byte(`{"sessionId":"sid","userType":"harper","expiresAt":"2026-12-25T00:00:00Z"}`))
		case LogoutPath:
			logoutAuth = r.Header.Get("Authorization")
			w.Write([]byte(`{"success":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	tr := NewHTTPTransport(srv.URL, srv.Client())
	ctx := context.Background()

	info, err := tr.Session(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, accesscode.UserTypeHarper, info.UserType)

	_, err = tr.Session(ctx, "bad")
	assert.True(t, IsKind(err, KindRejection))
	assert.Equal(t, "invalid or expired session", UserMessage(err))

	require.NoError(t, tr.Logout(ctx, "good"))
	assert.Equal(t, "Bearer good", logoutAuth)
}
