// Package client drives the client side of the authentication protocol: the
// API surface of the auth server, the persisted credential store, and the
// orchestrating state machine.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/goliatone/go-errors"

	tgauth "github.com/taktarovg/3gis-auth"
)

const (
	TextCodeNetworkFailure = "auth_network_failure"
	TextCodeUnauthorized   = "auth_unauthorized"
	TextCodeRejected       = "auth_rejected"
)

// ErrNetworkFailure marks transient transport errors. The orchestrator maps
// it to the Error state, never retries automatically, and allows a manual
// retry.
var ErrNetworkFailure = errors.New("auth network failure", errors.CategoryInternal).
	WithTextCode(TextCodeNetworkFailure).
	WithCode(errors.CodeInternal)

// ErrUnauthorized is returned on 401 responses; the cached token is stale.
var ErrUnauthorized = errors.New("session unauthorized", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(errors.CodeUnauthorized)

// ErrAuthRejected is returned when the server rejects init data (400/403).
// Client-input errors are never auto-retried.
var ErrAuthRejected = errors.New("telegram auth rejected", errors.CategoryAuth).
	WithTextCode(TextCodeRejected).
	WithCode(errors.CodeForbidden)

// APIClient is the auth server surface the orchestrator depends on.
type APIClient interface {
	AuthenticateTelegram(ctx context.Context, initData string) (*tgauth.AuthResponse, error)
	WhoAmI(ctx context.Context, token string) (*tgauth.User, error)
	Refresh(ctx context.Context, token string) (*tgauth.AuthResponse, error)
}

// HTTPAPIClient talks to the auth endpoints over HTTP.
type HTTPAPIClient struct {
	baseURL string
	http    *http.Client
}

var _ APIClient = (*HTTPAPIClient)(nil)

// HTTPAPIClientOption customizes HTTPAPIClient construction.
type HTTPAPIClientOption func(*HTTPAPIClient)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(c *http.Client) HTTPAPIClientOption {
	return func(a *HTTPAPIClient) {
		if c != nil {
			a.http = c
		}
	}
}

// NewHTTPAPIClient builds a client for the auth server at baseURL.
func NewHTTPAPIClient(baseURL string, opts ...HTTPAPIClientOption) *HTTPAPIClient {
	a := &HTTPAPIClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// AuthenticateTelegram posts the canonical init-data string to
// POST /auth/telegram.
func (a *HTTPAPIClient) AuthenticateTelegram(ctx context.Context, initData string) (*tgauth.AuthResponse, error) {
	body, err := json.Marshal(map[string]string{"initData": initData})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to encode auth request")
	}

	resp, err := a.do(ctx, http.MethodPost, "/auth/telegram", "", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return nil, err
	}

	out := &tgauth.AuthResponse{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, wrapNetwork(err)
	}
	return out, nil
}

// WhoAmI calls GET /auth/me with the bearer token.
func (a *HTTPAPIClient) WhoAmI(ctx context.Context, token string) (*tgauth.User, error) {
	resp, err := a.do(ctx, http.MethodGet, "/auth/me", token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return nil, err
	}

	user := &tgauth.User{}
	if err := json.NewDecoder(resp.Body).Decode(user); err != nil {
		return nil, wrapNetwork(err)
	}
	return user, nil
}

// Refresh calls POST /auth/refresh. The token is supplied as the cookie
// value because the endpoint is cookie-based.
func (a *HTTPAPIClient) Refresh(ctx context.Context, token string) (*tgauth.AuthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/auth/refresh", nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to build refresh request")
	}
	req.AddCookie(&http.Cookie{Name: tgauth.DefaultCookieName, Value: token})

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, wrapNetwork(err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return nil, err
	}

	out := &tgauth.AuthResponse{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, wrapNetwork(err)
	}
	return out, nil
}

func (a *HTTPAPIClient) do(ctx context.Context, method, path, token string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to build auth request")
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, wrapNetwork(err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusForbidden:
		return withMeta(ErrAuthRejected, map[string]any{
			"status": resp.StatusCode,
		})
	default:
		return withMeta(ErrNetworkFailure, map[string]any{
			"status": resp.StatusCode,
		})
	}
}

// withMeta attaches per-call metadata to a copy of base so the shared
// sentinels above are never mutated. Chaining base as the copy's source
// keeps errors.Is identity intact.
func withMeta(base *errors.Error, meta map[string]any) *errors.Error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Source = base
	return clone.WithMetadata(meta)
}

func wrapNetwork(err error) error {
	return errors.Wrap(err, ErrNetworkFailure.Category, ErrNetworkFailure.Message).
		WithTextCode(ErrNetworkFailure.TextCode).
		WithCode(ErrNetworkFailure.Code)
}
