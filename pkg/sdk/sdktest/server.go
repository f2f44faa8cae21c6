// Package sdktest provides an in-memory SIP auth backend implementing
// the wire contract the SDK consumes. It exists for SDK tests and local
// development; nothing in it resembles a production server (no hashing,
// no persistence, uuid tokens).
package sdktest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coresistem/sip-api-sub000/pkg/sdk"
)

// UserFixture seeds one account. The side-channel fields are raw
// strings exactly as the backend would serialize them, so tests can
// feed malformed values through the real boundary.
type UserFixture struct {
	ID           string
	Email        string
	Password     string
	Name         string
	Role         sdk.Role
	ClubID       string
	SipID        string
	Roles        string
	SipIDs       string
	RoleStatuses string
}

type wireUser struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	Name         string   `json:"name"`
	Role         sdk.Role `json:"role"`
	ClubID       string   `json:"clubId"`
	SipID        string   `json:"sipId"`
	Roles        string   `json:"roles,omitempty"`
	SipIDs       string   `json:"sipIds,omitempty"`
	RoleStatuses string   `json:"roleStatuses,omitempty"`
}

// Server is the in-memory backend. All mutators are safe for concurrent
// use with in-flight requests.
type Server struct {
	httpSrv *httptest.Server

	mu            sync.Mutex
	users         map[string]*UserFixture // by ID
	access        map[string]string       // access token -> user ID
	refresh       map[string]string       // refresh token -> user ID
	failNextAuth  int
	rejectRefresh bool
	failLogout    bool
	refreshCalls  int
	logoutCalls   int
	simulateGate  *holdGate
}

// holdGate pauses one simulate lookup so tests can interleave selector
// changes with an in-flight fetch.
type holdGate struct {
	arrived chan struct{}
	release chan struct{}
}

// NewServer starts a stub backend seeded with the given fixtures.
func NewServer(fixtures ...UserFixture) *Server {
	s := &Server{
		users:   make(map[string]*UserFixture),
		access:  make(map[string]string),
		refresh: make(map[string]string),
	}
	for i := range fixtures {
		f := fixtures[i]
		s.users[f.ID] = &f
	}

	r := chi.NewRouter()
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/refresh", s.handleRefresh)
	r.Post("/auth/logout", s.handleLogout)
	r.Get("/auth/me", s.handleMe)
	r.Get("/auth/simulate/{role}", s.handleSimulateRole)
	r.Get("/auth/simulate-user/{sipID}", s.handleSimulateUser)

	s.httpSrv = httptest.NewServer(r)
	return s
}

// URL returns the backend base URL.
func (s *Server) URL() string { return s.httpSrv.URL }

// Close shuts the backend down.
func (s *Server) Close() { s.httpSrv.Close() }

// FailNextAuthorized makes the next n bearer-authenticated requests
// answer 401 regardless of token validity. Lets tests force the
// refresh-and-retry path.
func (s *Server) FailNextAuthorized(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextAuth = n
}

// RejectRefresh toggles rejection of all refresh attempts.
func (s *Server) RejectRefresh(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectRefresh = reject
}

// FailLogout toggles a 500 on the logout endpoint.
func (s *Server) FailLogout(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLogout = fail
}

// HoldNextSimulate blocks the next simulate lookup until release is
// called; later lookups run unimpeded. arrived is closed once the held
// request has reached the backend.
func (s *Server) HoldNextSimulate() (arrived <-chan struct{}, release func()) {
	gate := &holdGate{arrived: make(chan struct{}), release: make(chan struct{})}
	s.mu.Lock()
	s.simulateGate = gate
	s.mu.Unlock()
	return gate.arrived, func() { close(gate.release) }
}

// waitSimulateGate blocks on an armed gate. Must be called without the
// server mutex held.
func (s *Server) waitSimulateGate() {
	s.mu.Lock()
	gate := s.simulateGate
	s.simulateGate = nil
	s.mu.Unlock()
	if gate != nil {
		close(gate.arrived)
		<-gate.release
	}
}

// RefreshCalls reports how many refresh attempts the backend has seen.
func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

// LogoutCalls reports how many logout requests the backend has seen.
func (s *Server) LogoutCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logoutCalls
}

// IssueTokens mints a valid token pair for the user without going
// through login.
func (s *Server) IssueTokens(userID string) sdk.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(userID)
}

func (s *Server) issueLocked(userID string) sdk.Credentials {
	creds := sdk.Credentials{
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
	}
	s.access[creds.AccessToken] = userID
	s.refresh[creds.RefreshToken] = userID
	return creds
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, req.Email) {
			if u.Password != req.Password {
				break
			}
			creds := s.issueLocked(u.ID)
			writeJSON(w, http.StatusOK, map[string]any{
				"user":         toWire(u),
				"accessToken":  creds.AccessToken,
				"refreshToken": creds.RefreshToken,
			})
			return
		}
	}
	writeError(w, http.StatusUnauthorized, "invalid credentials")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
		ClubID   string `json:"clubId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, req.Email) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
	}

	u := &UserFixture{
		ID:       uuid.NewString(),
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     sdk.RoleAthlete,
		ClubID:   req.ClubID,
	}
	s.users[u.ID] = u
	creds := s.issueLocked(u.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":         toWire(u),
		"accessToken":  creds.AccessToken,
		"refreshToken": creds.RefreshToken,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshCalls++
	userID, ok := s.refresh[req.RefreshToken]
	if !ok || s.rejectRefresh {
		writeError(w, http.StatusUnauthorized, "refresh token rejected")
		return
	}

	access := uuid.NewString()
	s.access[access] = userID
	writeJSON(w, http.StatusOK, map[string]any{"accessToken": access})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutCalls++
	if s.failLogout {
		writeError(w, http.StatusInternalServerError, "logout unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toWire(u)})
}

func (s *Server) handleSimulateRole(w http.ResponseWriter, r *http.Request) {
	s.waitSimulateGate()
	caller, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	if caller.Role != sdk.RoleAdmin {
		writeError(w, http.StatusForbidden, "operator role required")
		return
	}

	role := sdk.Role(chi.URLParam(r, "role"))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Role == role && u.ID != caller.ID {
			writeJSON(w, http.StatusOK, map[string]any{"user": toWire(u)})
			return
		}
	}
	writeError(w, http.StatusNotFound, "no user with role")
}

func (s *Server) handleSimulateUser(w http.ResponseWriter, r *http.Request) {
	s.waitSimulateGate()
	caller, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	if caller.Role != sdk.RoleAdmin {
		writeError(w, http.StatusForbidden, "operator role required")
		return
	}

	sipID := chi.URLParam(r, "sipID")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.SipID == sipID {
			writeJSON(w, http.StatusOK, map[string]any{"user": toWire(u)})
			return
		}
	}
	writeError(w, http.StatusNotFound, "no user with external id")
}

// authenticate resolves the bearer token, honoring forced failures.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*UserFixture, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNextAuth > 0 {
		s.failNextAuth--
		writeError(w, http.StatusUnauthorized, "token rejected")
		return nil, false
	}

	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return nil, false
	}
	userID, ok := s.access[token]
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown token")
		return nil, false
	}
	u, ok := s.users[userID]
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return nil, false
	}
	return u, true
}

func toWire(u *UserFixture) wireUser {
	return wireUser{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		ClubID:       u.ClubID,
		SipID:        u.SipID,
		Roles:        u.Roles,
		SipIDs:       u.SipIDs,
		RoleStatuses: u.RoleStatuses,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
