package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jmcleod/adventkey/accesscode"
)

const (
	VerifyPath  = "/api/v1/auth/verify-code"
	SessionPath = "/api/v1/auth/session"
	LogoutPath  = "/api/v1/auth/logout"

	maxResponseSize = 64 << 10
)

// Transport sends a verification request to the server.
type Transport interface {
	Verify(ctx context.Context, req accesscode.VerifyRequest) (accesscode.VerifyResponse, error)
}

// HTTPTransport talks to the verification API over HTTP. All errors it
// returns are *Error.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport returns a transport for the server at baseURL. A nil
// client uses http.DefaultClient.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Verify posts req to the verification endpoint. A 2xx reply with
// success=false is reported as a rejection.
func (t *HTTPTransport) Verify(ctx context.Context, req accesscode.VerifyRequest) (accesscode.VerifyResponse, error) {
	var resp accesscode.VerifyResponse
	if err := t.do(ctx, http.MethodPost, VerifyPath, "", req, &resp); err != nil {
		return accesscode.VerifyResponse{}, err
	}
	if !resp.Success {
		return resp, &Error{Kind: KindRejection, Message: resp.Error, Status: http.StatusOK}
	}
	return resp, nil
}

// Session describes the server session behind token.
func (t *HTTPTransport) Session(ctx context.Context, token string) (accesscode.SessionInfo, error) {
	var info accesscode.SessionInfo
	if err := t.do(ctx, http.MethodGet, SessionPath, token, nil, &info); err != nil {
		return accesscode.SessionInfo{}, err
	}
	return info, nil
}

// Logout ends the server session behind token.
func (t *HTTPTransport) Logout(ctx context.Context, token string) error {
	var out struct {
		Success bool `json:"success"`
	}
	return t.do(ctx, http.MethodPost, LogoutPath, token, nil, &out)
}

func (t *HTTPTransport) do(ctx context.Context, method, path, token string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindTransport, Err: fmt.Errorf("encoding request: %w", err)}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reqBody)
	if err != nil {
		return &Error{Kind: KindTransport, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &Error{Kind: KindTimeout, Err: err}
		}
		return &Error{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &Error{Kind: KindTimeout, Status: resp.StatusCode, Err: err}
		}
		return &Error{Kind: KindTransport, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure struct {
			Error string `json:"error"`
		}
		// A body that is not JSON still counts as a rejection, just one
		// without a message.
		_ = json.Unmarshal(data, &failure)
		return &Error{Kind: KindRejection, Message: failure.Error, Status: resp.StatusCode}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindMalformedResponse, Status: resp.StatusCode, Err: err}
	}
	return nil
}
