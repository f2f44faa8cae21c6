package sdk

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const refreshPath = "/auth/refresh"

// Transport is an http.RoundTripper that attaches the stored access
// token as a bearer credential to every outbound request and performs
// at most one refresh-and-retry cycle per original request when the
// backend answers 401.
//
// Terminal refresh failure (no refresh token, or the refresh itself
// rejected) clears the credential store and fires the invalidation
// callback; the original 401 is then returned to the caller. A 401 on a
// request that carried no credential is the caller's problem and passes
// through without touching the session. All other statuses pass through
// untouched.
type Transport struct {
	base          http.RoundTripper
	store         CredentialStore
	api           *Client
	onInvalidated func()
	logger        *slog.Logger
}

// TransportOptions configures Transport construction.
type TransportOptions struct {
	// Base is the underlying round tripper; http.DefaultTransport when nil.
	Base http.RoundTripper
	// OnInvalidated runs after the store has been cleared on terminal
	// auth failure. The hosting application decides how to react
	// (re-prompt, navigate, exit).
	OnInvalidated func()
	Logger        *slog.Logger
}

// TransportOption mutates TransportOptions.
type TransportOption func(*TransportOptions)

// WithBase overrides the underlying round tripper.
func WithBase(rt http.RoundTripper) TransportOption {
	return func(opts *TransportOptions) {
		opts.Base = rt
	}
}

// WithInvalidationHook registers the terminal-failure callback.
func WithInvalidationHook(fn func()) TransportOption {
	return func(opts *TransportOptions) {
		opts.OnInvalidated = fn
	}
}

// WithTransportLogger overrides the transport logger.
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(opts *TransportOptions) {
		opts.Logger = logger
	}
}

// NewTransport creates a Transport that reads credentials from store and
// refreshes against the API server at baseURL.
func NewTransport(store CredentialStore, baseURL string, optFns ...TransportOption) *Transport {
	opts := TransportOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Base == nil {
		opts.Base = http.DefaultTransport
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Transport{
		base:  opts.Base,
		store: store,
		// The refresh exchange goes through a bare client, never through
		// this Transport, so a rejected refresh cannot recurse into
		// another refresh.
		api: NewClient(strings.TrimRight(baseURL, "/"),
			WithHTTPClient(&http.Client{Timeout: 15 * time.Second}),
			WithLogger(opts.Logger)),
		onInvalidated: opts.OnInvalidated,
		logger:        opts.Logger,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.roundTrip(req, false)
}

// roundTrip carries the retried marker explicitly: a request that has
// already been resubmitted once is never intercepted again, so a backend
// that keeps rejecting cannot cause a refresh loop.
func (t *Transport) roundTrip(req *http.Request, retried bool) (*http.Response, error) {
	creds, err := t.store.Load()
	if err != nil && !errors.Is(err, ErrNoCredentials) {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	out := req.Clone(req.Context())
	if creds != nil {
		out.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	}
	if out.Header.Get("X-Request-Id") == "" {
		out.Header.Set("X-Request-Id", uuid.NewString())
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || retried || t.isRefreshRequest(req) {
		return resp, nil
	}

	// An anonymous request carried no credential: the 401 belongs to
	// the caller, there is no session to tear down.
	if creds == nil {
		return resp, nil
	}

	// One-shot recovery. No refresh token means the session cannot be
	// repaired; fail fast rather than leaving it half-alive.
	if creds.RefreshToken == "" {
		t.invalidate()
		return resp, nil
	}

	newAccess, err := t.api.Refresh(req.Context(), creds.RefreshToken)
	if err != nil {
		t.logger.Warn("token refresh failed, invalidating session", "error", err)
		t.invalidate()
		return resp, nil
	}

	// Replace the pair as a whole: new access token, same refresh token.
	if err := t.store.Save(&Credentials{AccessToken: newAccess, RefreshToken: creds.RefreshToken}); err != nil {
		return nil, fmt.Errorf("save refreshed credentials: %w", err)
	}

	retry, err := rewindRequest(req)
	if err != nil {
		return nil, fmt.Errorf("prepare retry: %w", err)
	}
	drainAndClose(resp)

	// The retry reloads the pair from the store, so it carries a token
	// at least as new as the one just saved even when another request
	// refreshed concurrently.
	return t.roundTrip(retry, true)
}

func (t *Transport) isRefreshRequest(req *http.Request) bool {
	return strings.HasSuffix(req.URL.Path, refreshPath)
}

func (t *Transport) invalidate() {
	if err := t.store.Clear(); err != nil {
		t.logger.Warn("failed to clear credential store", "error", err)
	}
	if t.onInvalidated != nil {
		t.onInvalidated()
	}
}

// rewindRequest clones req with a fresh body so it can be resubmitted.
func rewindRequest(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return out, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	out.Body = body
	return out, nil
}

func drainAndClose(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
	resp.Body.Close()
}
