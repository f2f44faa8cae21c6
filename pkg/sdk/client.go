package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// Client is a low-level REST client for the SIP auth API. It performs
// single requests and decodes responses; session state (tokens, the
// resolved user, overlays) lives in Session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOptions configures Client construction.
type ClientOptions struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// ClientOption mutates ClientOptions.
type ClientOption func(*ClientOptions)

// WithHTTPClient overrides the HTTP client used for API calls. Pass a
// client backed by Transport to get bearer attachment and the
// refresh-and-retry behavior.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(opts *ClientOptions) {
		opts.HTTPClient = client
	}
}

// WithLogger overrides the client logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(opts *ClientOptions) {
		opts.Logger = logger
	}
}

// NewClient creates a client for the SIP API server at baseURL.
func NewClient(baseURL string, optFns ...ClientOption) *Client {
	opts := ClientOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}
}

// AuthResult is the outcome of a successful login or registration.
type AuthResult struct {
	User        *User
	Credentials Credentials
}

// RegisterInput is the payload for account creation.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	ClubID   string `json:"clubId,omitempty"`
}

type authPayload struct {
	User         *userPayload `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// Login exchanges an email/password pair for a session. A backend
// rejection surfaces as ErrInvalidCredentials.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}

	var payload authPayload
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &payload); err != nil {
		if IsUnauthorized(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return c.authResult(&payload)
}

// Register creates an account and a session in one call. A conflicting
// email surfaces as ErrEmailExists.
func (c *Client) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	var payload authPayload
	if err := c.do(ctx, http.MethodPost, "/auth/register", input, &payload); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	return c.authResult(&payload)
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token itself is not rotated by the backend.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	body := struct {
		RefreshToken string `json:"refreshToken"`
	}{RefreshToken: refreshToken}

	var payload struct {
		AccessToken string `json:"accessToken"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", body, &payload); err != nil {
		return "", err
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("refresh response missing access token")
	}
	return payload.AccessToken, nil
}

// Me resolves the identity behind the current access token.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var payload struct {
		User *userPayload `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &payload); err != nil {
		return nil, err
	}
	if payload.User == nil {
		return nil, fmt.Errorf("me response missing user")
	}
	return payload.User.toUser(c.logger), nil
}

// Logout notifies the backend that the session is over.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// SimulateByRole fetches any one user holding the given role. Operator
// only; other callers receive an APIError.
func (c *Client) SimulateByRole(ctx context.Context, role Role) (*User, error) {
	return c.fetchSimulated(ctx, "/auth/simulate/"+url.PathEscape(string(role)))
}

// SimulateBySipID fetches the user uniquely identified by the external
// ID. Operator only.
func (c *Client) SimulateBySipID(ctx context.Context, sipID string) (*User, error) {
	return c.fetchSimulated(ctx, "/auth/simulate-user/"+url.PathEscape(sipID))
}

func (c *Client) fetchSimulated(ctx context.Context, path string) (*User, error) {
	var payload struct {
		User *userPayload `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if payload.User == nil {
		return nil, ErrNotFound
	}
	return payload.User.toUser(c.logger), nil
}

func (c *Client) authResult(payload *authPayload) (*AuthResult, error) {
	if payload.User == nil || payload.AccessToken == "" || payload.RefreshToken == "" {
		return nil, fmt.Errorf("auth response missing user or token pair")
	}
	return &AuthResult{
		User: payload.User.toUser(c.logger),
		Credentials: Credentials{
			AccessToken:  payload.AccessToken,
			RefreshToken: payload.RefreshToken,
		},
	}, nil
}

// do performs one JSON request against the API. Non-2xx responses are
// returned as *APIError with the server's message when one is present.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload); err == nil {
		if payload.Message != "" {
			apiErr.Message = payload.Message
		} else {
			apiErr.Message = payload.Error
		}
	}
	return apiErr
}

