package sdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
)

// Session coordinates the credential store, the authenticated transport
// and the auth client into one long-lived acting identity. It owns the
// only mutable session state: the token pair (through the store), the
// canonical user record, the active-role selection and the simulation
// overlay. Everything the application renders derives from
// EffectiveUser.
//
// A Session is safe for concurrent use.
type Session struct {
	client *Client
	creds  CredentialStore
	prefs  PreferenceStore
	logger *slog.Logger

	invalidatedFn func()

	mu       sync.Mutex
	restored bool
	loading  bool
	user     *User
	active   Role
	simRole  Role
	simSipID string
	simUser  *User

	// epoch fences results that resolve after the session was torn
	// down; simGen makes the latest selector change authoritative.
	epoch  uint64
	simGen uint64
}

// SessionOptions configures Session construction.
type SessionOptions struct {
	// BaseTransport underlies the authenticated transport;
	// http.DefaultTransport when nil.
	BaseTransport http.RoundTripper
	// Preferences persists the active-role selection. When nil the
	// selection is kept in memory only.
	Preferences PreferenceStore
	// OnInvalidated runs whenever the session is terminally invalidated
	// by a failed token refresh. The hosting application reacts
	// (navigate, re-prompt); the Session has already cleared its state.
	OnInvalidated func()
	Logger        *slog.Logger
}

// SessionOption mutates SessionOptions.
type SessionOption func(*SessionOptions)

// WithBaseTransport overrides the transport under the bearer layer.
func WithBaseTransport(rt http.RoundTripper) SessionOption {
	return func(opts *SessionOptions) {
		opts.BaseTransport = rt
	}
}

// WithPreferences sets the store for the active-role preference.
func WithPreferences(prefs PreferenceStore) SessionOption {
	return func(opts *SessionOptions) {
		opts.Preferences = prefs
	}
}

// WithInvalidatedHook registers the session-invalidated callback.
func WithInvalidatedHook(fn func()) SessionOption {
	return func(opts *SessionOptions) {
		opts.OnInvalidated = fn
	}
}

// WithSessionLogger overrides the session logger.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(opts *SessionOptions) {
		opts.Logger = logger
	}
}

// NewSession wires a session against the API server at baseURL, reading
// and writing the token pair through store.
func NewSession(baseURL string, store CredentialStore, optFns ...SessionOption) *Session {
	opts := SessionOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Preferences == nil {
		opts.Preferences = NewMemoryStore(nil)
	}

	s := &Session{
		creds:         store,
		prefs:         opts.Preferences,
		logger:        opts.Logger,
		invalidatedFn: opts.OnInvalidated,
	}

	transport := NewTransport(store, baseURL,
		WithBase(opts.BaseTransport),
		WithTransportLogger(opts.Logger),
		WithInvalidationHook(s.handleInvalidated),
	)
	s.client = NewClient(baseURL,
		WithHTTPClient(&http.Client{Transport: transport}),
		WithLogger(opts.Logger),
	)
	return s
}

// Status is the session lifecycle surface the hosting application
// renders against.
type Status struct {
	// IsLoading is true until the startup restoration barrier resolves.
	IsLoading       bool
	IsAuthenticated bool
}

// Status reports the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		IsLoading:       !s.restored || s.loading,
		IsAuthenticated: s.user != nil,
	}
}

// Restore resolves a stored credential into an authenticated identity
// at process start. A missing credential leaves the session anonymous;
// a rejected one is cleared silently, since expiry between visits is
// the expected path. Protected UI must not render until Restore
// returns. Calling Restore again re-resolves against the same stored
// credential and is idempotent.
func (s *Session) Restore(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	epoch := s.epoch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.restored = true
		s.mu.Unlock()
	}()

	if _, err := s.creds.Load(); err != nil {
		if errors.Is(err, ErrNoCredentials) {
			return nil
		}
		return fmt.Errorf("restore session: %w", err)
	}

	user, err := s.client.Me(ctx)
	if err != nil {
		// The stored token did not resolve; treat as never logged in.
		// A terminal refresh failure already cleared the store via the
		// transport hook; clearing again is harmless.
		s.logger.Debug("stored credential rejected, clearing", "error", err)
		if clearErr := s.creds.Clear(); clearErr != nil {
			s.logger.Warn("failed to clear credential store", "error", clearErr)
		}
		return nil
	}

	activeRole, err := s.prefs.LoadActiveRole()
	if err != nil {
		s.logger.Warn("failed to load active role preference", "error", err)
		activeRole = ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return ErrSessionInvalidated
	}
	s.user = user
	s.active = activeRole
	return nil
}

// Login exchanges credentials for a session. On success the token pair
// is persisted as a whole and the canonical user is set; on failure no
// session state is touched.
func (s *Session) Login(ctx context.Context, email, password string) (*User, error) {
	result, err := s.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.adopt(result)
}

// Register creates an account and opens a session, with the same
// storage side effects as Login.
func (s *Session) Register(ctx context.Context, input RegisterInput) (*User, error) {
	result, err := s.client.Register(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.adopt(result)
}

func (s *Session) adopt(result *AuthResult) (*User, error) {
	if err := s.creds.Save(&result.Credentials); err != nil {
		return nil, fmt.Errorf("save credentials: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.restored = true
	s.user = result.User
	// The new identity starts clean: overlays belonged to the old one.
	s.active = ""
	s.simRole = ""
	s.simSipID = ""
	s.simUser = nil
	return result.User.Clone(), nil
}

// Logout tears the session down. The backend notification is best
// effort; local teardown always happens: credentials, user record,
// active-role selection and simulation overlay are all cleared, and
// in-flight results from before the call are discarded.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.client.Logout(ctx); err != nil {
		s.logger.Warn("server logout failed, proceeding locally", "error", err)
	}

	s.mu.Lock()
	s.epoch++
	s.user = nil
	s.active = ""
	s.simRole = ""
	s.simSipID = ""
	s.simUser = nil
	s.mu.Unlock()

	if err := s.prefs.ClearActiveRole(); err != nil {
		s.logger.Warn("failed to clear active role preference", "error", err)
	}
	if err := s.creds.Clear(); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// RefreshIdentity re-fetches the canonical user record without touching
// tokens, for opportunistic resync after profile or role changes. On
// failure only the in-memory record is dropped; auth-failure recovery
// is the transport's job.
func (s *Session) RefreshIdentity(ctx context.Context) error {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	user, err := s.client.Me(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return ErrSessionInvalidated
	}
	if err != nil {
		s.user = nil
		return fmt.Errorf("refresh identity: %w", err)
	}
	s.user = user
	return nil
}

// handleInvalidated runs when the transport hits a terminal auth
// failure. The store is already cleared; drop the in-memory identity
// and overlays, then notify the host.
func (s *Session) handleInvalidated() {
	s.mu.Lock()
	s.epoch++
	s.user = nil
	s.simRole = ""
	s.simSipID = ""
	s.simUser = nil
	s.mu.Unlock()

	if s.invalidatedFn != nil {
		s.invalidatedFn()
	}
}

// User returns the canonical authenticated record, or nil.
func (s *Session) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user.Clone()
}

// EffectiveUser returns the single acting identity after the simulation
// and role-switch overlays, or nil when unauthenticated.
func (s *Session) EffectiveUser() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deriveEffectiveUser(identitySnapshot{
		Base:       s.user,
		ActiveRole: s.active,
		SimRole:    s.simRole,
		SimSipID:   s.simSipID,
		SimUser:    s.simUser,
	})
}

// ActiveRole returns the current role selection, or "".
func (s *Session) ActiveRole() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SwitchRole selects which of the user's entitled roles is acting and
// persists the preference. No backend call is made and entitlement is
// not re-validated here: a role the canonical record does not grant
// simply derives back to the base record.
func (s *Session) SwitchRole(role Role) error {
	s.mu.Lock()
	s.active = role
	s.mu.Unlock()

	if err := s.prefs.SaveActiveRole(role); err != nil {
		return fmt.Errorf("persist active role: %w", err)
	}
	return nil
}

// ClearActiveRole drops the role selection and its persisted preference.
func (s *Session) ClearActiveRole() error {
	s.mu.Lock()
	s.active = ""
	s.mu.Unlock()

	if err := s.prefs.ClearActiveRole(); err != nil {
		return fmt.Errorf("clear active role: %w", err)
	}
	return nil
}

// SetSimulatedSipID selects a user to simulate by external ID. The ID
// selector takes priority over the role selector; on a successful
// lookup the simulated role is synced to the fetched user's actual
// role so the two selectors never visibly disagree.
func (s *Session) SetSimulatedSipID(ctx context.Context, sipID string) {
	s.mu.Lock()
	s.simSipID = sipID
	s.mu.Unlock()
	s.resolveSimulation(ctx)
}

// SetSimulatedRole selects "any user holding this role" for simulation.
// Ignored for effective-identity purposes unless the base user holds
// the operator role.
func (s *Session) SetSimulatedRole(ctx context.Context, role Role) {
	s.mu.Lock()
	s.simRole = role
	s.mu.Unlock()
	s.resolveSimulation(ctx)
}

// ClearSimulation removes the overlay entirely.
func (s *Session) ClearSimulation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simGen++
	s.simRole = ""
	s.simSipID = ""
	s.simUser = nil
}

// Simulation returns the current selector values.
func (s *Session) Simulation() (role Role, sipID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simRole, s.simSipID
}

// resolveSimulation re-derives the simulated record from the current
// selectors. The generation captured up front makes the latest change
// authoritative: a slow lookup started before a newer selector change
// (or before logout) is discarded on arrival. Lookup failures log and
// fail safe into "no simulation".
func (s *Session) resolveSimulation(ctx context.Context) {
	s.mu.Lock()
	s.simGen++
	gen := s.simGen
	epoch := s.epoch
	operator := s.user != nil && s.user.Role == RoleAdmin
	simRole := s.simRole
	simSipID := s.simSipID
	s.mu.Unlock()

	var (
		fetched *User
		err     error
	)
	switch {
	case !operator:
		// Inert for everyone but the operator role.
	case simSipID != "":
		fetched, err = s.client.SimulateBySipID(ctx, simSipID)
	case simRole != "":
		fetched, err = s.client.SimulateByRole(ctx, simRole)
	}
	if err != nil {
		s.logger.Warn("simulation lookup failed", "role", simRole, "sipId", simSipID, "error", err)
		fetched = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.simGen || epoch != s.epoch {
		return
	}
	s.simUser = fetched
	if simSipID != "" && fetched != nil {
		s.simRole = fetched.Role
	}
}

// Client exposes the underlying API client for callers that need raw
// endpoint access with the session's authenticated transport.
func (s *Session) Client() *Client {
	return s.client
}
