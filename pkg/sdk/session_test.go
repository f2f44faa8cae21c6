package sdk_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coresistem/sip-api-sub000/pkg/sdk"
	"github.com/coresistem/sip-api-sub000/pkg/sdk/sdktest"
)

func athleteFixture() sdktest.UserFixture {
	return sdktest.UserFixture{
		ID:       "u1",
		Email:    "anna@club.test",
		Password: "hunter2",
		Name:     "Anna",
		Role:     sdk.RoleAthlete,
		ClubID:   "club-1",
		SipID:    "A-7",
		Roles:    `["ATHLETE","COACH"]`,
		SipIDs:   `{"COACH":"C-42"}`,
	}
}

func adminFixture() sdktest.UserFixture {
	return sdktest.UserFixture{
		ID:       "op1",
		Email:    "op@sip.test",
		Password: "s3cret",
		Name:     "Olga",
		Role:     sdk.RoleAdmin,
		SipID:    "OP-1",
	}
}

func judgeFixture() sdktest.UserFixture {
	return sdktest.UserFixture{
		ID:       "j9",
		Email:    "judge@sip.test",
		Password: "gavel",
		Name:     "Jurek",
		Role:     sdk.RoleJudge,
		SipID:    "J-9",
	}
}

func newSession(srv *sdktest.Server, store *sdk.MemoryStore, optFns ...sdk.SessionOption) *sdk.Session {
	opts := append([]sdk.SessionOption{sdk.WithPreferences(store)}, optFns...)
	return sdk.NewSession(srv.URL(), store, opts...)
}

func TestSessionLogin(t *testing.T) {
	srv := sdktest.NewServer(athleteFixture())
	defer srv.Close()

	store := sdk.NewMemoryStore(nil)
	sess := newSession(srv, store)

	status := sess.Status()
	assert.True(t, status.IsLoading, "loading until the restore barrier resolves")

	user, err := sess.Login(context.Background(), "anna@club.test", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, []sdk.Role{sdk.RoleAthlete, sdk.RoleCoach}, user.Roles)

	status = sess.Status()
	assert.False(t, status.IsLoading)
	assert.True(t, status.IsAuthenticated)

	creds, err := store.Load()
	require.NoError(t, err)
	assert.NotEmpty(t, creds.AccessToken)
	assert.NotEmpty(t, creds.RefreshToken)
}

func TestSessionLoginRejectionLeavesNoState(t *testing.T) {
	srv := sdktest.NewServer(athleteFixture())
	defer srv.Close()

	store := sdk.NewMemoryStore(nil)
	sess := newSession(srv, store)

	_, err := sess.Login(context.Background(), "anna@club.test", "wrong")
	assert.ErrorIs(t, err, sdk.ErrInvalidCredentials)

	assert.Nil(t, sess.User(), "failed login must not populate the user")
	_, err = store.Load()
	assert.ErrorIs(t, err, sdk.ErrNoCredentials)
}

func TestSessionRejectedLoginDoesNotInvalidate(t *testing.T) {
	srv := sdktest.NewServer(athleteFixture())
	defer srv.Close()

	store := sdk.NewMemoryStore(nil)
	invalidations := 0
	sess := newSession(srv, store, sdk.WithInvalidatedHook(func() { invalidations++ }))

	// A bad password on an anonymous session is the caller's error to
	// handle; it must not surface as a forced logout.
	_, err := sess.Login(context.Background(), "anna@club.test", "wrong")
	assert.ErrorIs(t, err, sdk.ErrInvalidCredentials)
	assert.Equal(t, 0, invalidations, "rejected login must not fire the invalidation hook")
}

func TestSessionRegister(t *testing.T) {
	srv := sdktest.NewServer(athleteFixture())
	defer srv.Close()

	store := sdk.NewMemoryStore(nil)
	sess := newSession(srv, store)

	_, err := sess.Register(context.Background(), sdk.RegisterInput{
		Email:    "anna@club.test",
		Password: "pw",
		Name:     "Anna again",
	})
	assert.ErrorIs(t, err, sdk.ErrEmailExists)

	user, err := sess.Register(context.Background(), sdk.RegisterInput{
		Email:    "new@club.test",
		Password: "pw",
		Name:     "Newcomer",
		ClubID:   "club-1",
	})
	require.NoError(t, err)
	assert.Equal(t, sdk.RoleAthlete, user.Role)
	assert.True(t, sess.Status().IsAuthenticated)
}

func TestSessionRestore(t *testing.T) {
	srv := sdktest.NewServer(athleteFixture())
	defer srv.Close()

	store := sdk.NewMemoryStore(nil)
	creds := srv.IssueTokens("u1")
	require.NoError(t, store.Save(&creds))
	require.NoError(t, store.SaveActiveRole(sdk.RoleCoach))

	sess := newSession(srv, store)
	require.NoError(t, sess.Restore(context.Background()))

	assert.True(t, sess.Status().IsAuthenticated)
	assert.Equal(t, sdk.RoleCoach, sess.ActiveRole(), "persisted role preference survives reloads")

	eff := sess.EffectiveUser()
	require.NotNil(t, eff)
	assert.Equal(t, sdk.RoleCoach, eff.Role)
	assert.Equal(t, "C-42", eff.SipID)
}

func TestSessionRestoreIsIdempotent(t *testing.T) {
	srv := sdktest.NewServer(athleteFixture())
	defer srv.Close()

	store := sdk.NewMemoryStore(nil)
	creds := srv.IssueTokens("u1")
	require.NoError(t, store.Save(&creds))

	sess := newSession(srv, store)
	require.NoError(t, sess.Restore(context.Background()))
	first := sess.User()

	require.NoError(t, sess.Restore(context.Background()))
	second := sess.User()

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)

	_, err := store.Load()
	assert.NoError(t, err, "restore must not clear a valid credential")
}

func TestSessionRestoreWithoutCredentials(t *testing.T) {
	srv := sdktest.NewServer(athleteFixture())
	defer srv.Close()

	store := sdk.NewMemoryStore(nil)
	sess := newSession(srv, store)

	require.NoError(t, sess.Restore(context.Background()))
	status := sess.Status()
	assert.False(t, status.IsLoading)
	assert.False(t, status.IsAuthenticated)
}

func TestSessionRestoreClearsRejectedCredential(t *testing.T) {
	srv := sdktest.NewServer(athleteFixture())
	defer srv.Close()

	store := sdk.NewMemoryStore(&sdk.Credentials{AccessToken: "stale", RefreshToken: ""})
	sess := newSession(srv, store)

	// The expected path after expiry between visits: no error surfaced,
	// session just comes up anonymous with the store wiped.
	require.NoError(t, sess.Restore(context.Background()))
	assert.False(t, sess.Status().IsAuthenticated)
	_, err := store.Load()
	assert.ErrorIs(t, err, sdk.ErrNoCredentials)
}

func TestSessionLogoutClearsEverything(t *testing.T) {
	srv := sdktest.NewServer(adminFixture(), judgeFixture())
	defer srv.Close()

	store := sdk.NewMemoryStore(nil)
	sess := newSession(srv, store)

	_, err := sess.Login(context.Background(), "op@sip.test", "s3cret")
	require.NoError(t, err)
	require.NoError(t, sess.SwitchRole(sdk.RoleClubManager))
	sess.SetSimulatedRole(context.Background(), sdk.RoleJudge)
	require.NotNil(t, sess.EffectiveUser())

	// Server-side logout failing must not keep the session alive.
	srv.FailLogout(true)
	require.NoError(t, sess.Logout(context.Background()))
	assert.Equal(t, 1, srv.LogoutCalls())

	assert.Nil(t, sess.User())
	assert.Nil(t, sess.EffectiveUser())
	assert.Equal(t, sdk.Role(""), sess.ActiveRole())
	simRole, simSipID := sess.Simulation()
	assert.Empty(t, simRole)
	assert.Empty(t, simSipID)

	_, err = store.Load()
	assert.ErrorIs(t, err, sdk.ErrNoCredentials)
	role, err := store.LoadActiveRole()
	require.NoError(t, err)
	assert.Empty(t, role)
}

func TestSessionRefreshIdentity(t *testing.T) {
	srv := sdktest.NewServer(athleteFixture())
	defer srv.Close()

	store := sdk.NewMemoryStore(nil)
	sess := newSession(srv, store)

	_, err := sess.Login(context.Background(), "anna@club.test", "hunter2")
	require.NoError(t, err)
	require.NoError(t, sess.RefreshIdentity(context.Background()))
	assert.True(t, sess.Status().IsAuthenticated)
}

func TestSessionSimulationScenario(t *testing.T) {
	srv := sdktest.NewServer(adminFixture(), judgeFixture())
	defer srv.Close()

	store := sdk.NewMemoryStore(nil)
	sess := newSession(srv, store)

	_, err := sess.Login(context.Background(), "op@sip.test", "s3cret")
	require.NoError(t, err)

	// An earlier role switch is present...
	require.NoError(t, sess.SwitchRole(sdk.RoleClubManager))
	eff := sess.EffectiveUser()
	require.NotNil(t, eff)
	assert.Equal(t, sdk.RoleClubManager, eff.Role)

	// ...and the simulation overlay wins outright over it.
	sess.SetSimulatedRole(context.Background(), sdk.RoleJudge)
	eff = sess.EffectiveUser()
	require.NotNil(t, eff)
	assert.Equal(t, "j9", eff.ID)
	assert.Equal(t, sdk.RoleJudge, eff.Role)

	// Selecting by external ID takes priority and syncs the role
	// selector to the fetched user's actual role.
	sess.SetSimulatedSipID(context.Background(), "J-9")
	eff = sess.EffectiveUser()
	require.NotNil(t, eff)
	assert.Equal(t, "j9", eff.ID)
	simRole, simSipID := sess.Simulation()
	assert.Equal(t, sdk.RoleJudge, simRole)
	assert.Equal(t, "J-9", simSipID)

	sess.ClearSimulation()
	eff = sess.EffectiveUser()
	require.NotNil(t, eff)
	assert.Equal(t, "op1", eff.ID)
	assert.Equal(t, sdk.RoleClubManager, eff.Role, "role switch resumes once the overlay clears")
}

func TestSessionSimulationLastChangeWins(t *testing.T) {
	srv := sdktest.NewServer(adminFixture(), athleteFixture(), judgeFixture())
	defer srv.Close()

	store := sdk.NewMemoryStore(nil)
	sess := newSession(srv, store)

	_, err := sess.Login(context.Background(), "op@sip.test", "s3cret")
	require.NoError(t, err)

	// Hold the JUDGE lookup in flight while a newer selector change
	// resolves; when the held result finally lands it must be discarded.
	arrived, release := srv.HoldNextSimulate()
	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.SetSimulatedRole(context.Background(), sdk.RoleJudge)
	}()
	<-arrived

	sess.SetSimulatedSipID(context.Background(), "A-7")
	release()
	<-done

	eff := sess.EffectiveUser()
	require.NotNil(t, eff)
	assert.Equal(t, "u1", eff.ID, "the newer selector's record must win")
	simRole, simSipID := sess.Simulation()
	assert.Equal(t, sdk.RoleAthlete, simRole, "role selector synced to the newer fetch, not the stale one")
	assert.Equal(t, "A-7", simSipID)
}

func TestSessionSimulationResolvingAfterLogoutIsDiscarded(t *testing.T) {
	srv := sdktest.NewServer(adminFixture(), judgeFixture())
	defer srv.Close()

	store := sdk.NewMemoryStore(nil)
	sess := newSession(srv, store)

	_, err := sess.Login(context.Background(), "op@sip.test", "s3cret")
	require.NoError(t, err)

	arrived, release := srv.HoldNextSimulate()
	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.SetSimulatedRole(context.Background(), sdk.RoleJudge)
	}()
	<-arrived

	require.NoError(t, sess.Logout(context.Background()))
	release()
	<-done

	assert.Nil(t, sess.User())
	assert.Nil(t, sess.EffectiveUser(), "a fetch resolving after logout must not revive the session")
	simRole, simSipID := sess.Simulation()
	assert.Empty(t, simRole)
	assert.Empty(t, simSipID)
}

func TestSessionLoginReplacesOverlays(t *testing.T) {
	srv := sdktest.NewServer(adminFixture(), judgeFixture(), athleteFixture())
	defer srv.Close()

	store := sdk.NewMemoryStore(nil)
	sess := newSession(srv, store)

	_, err := sess.Login(context.Background(), "op@sip.test", "s3cret")
	require.NoError(t, err)
	require.NoError(t, sess.SwitchRole(sdk.RoleClubManager))
	sess.SetSimulatedRole(context.Background(), sdk.RoleJudge)
	eff := sess.EffectiveUser()
	require.NotNil(t, eff)
	require.Equal(t, "j9", eff.ID)

	// Logging in again without an intervening logout replaces the
	// identity; the old identity's overlays must not leak onto it.
	user, err := sess.Login(context.Background(), "anna@club.test", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	assert.Equal(t, sdk.Role(""), sess.ActiveRole())
	simRole, simSipID := sess.Simulation()
	assert.Empty(t, simRole)
	assert.Empty(t, simSipID)

	eff = sess.EffectiveUser()
	require.NotNil(t, eff)
	assert.Equal(t, "u1", eff.ID)
	assert.Equal(t, sdk.RoleAthlete, eff.Role)
}

func TestSessionSimulationFailsSafe(t *testing.T) {
	srv := sdktest.NewServer(adminFixture())
	defer srv.Close()

	store := sdk.NewMemoryStore(nil)
	sess := newSession(srv, store)

	_, err := sess.Login(context.Background(), "op@sip.test", "s3cret")
	require.NoError(t, err)

	// No judge exists: the lookup fails, the overlay resets to "no
	// simulated record" and the effective identity degrades to the base
	// record with only the role overridden.
	sess.SetSimulatedRole(context.Background(), sdk.RoleJudge)
	eff := sess.EffectiveUser()
	require.NotNil(t, eff)
	assert.Equal(t, "op1", eff.ID)
	assert.Equal(t, sdk.RoleJudge, eff.Role)
}

func TestSessionSimulationInertForNonOperators(t *testing.T) {
	srv := sdktest.NewServer(athleteFixture(), judgeFixture())
	defer srv.Close()

	store := sdk.NewMemoryStore(nil)
	sess := newSession(srv, store)

	_, err := sess.Login(context.Background(), "anna@club.test", "hunter2")
	require.NoError(t, err)

	sess.SetSimulatedRole(context.Background(), sdk.RoleJudge)
	eff := sess.EffectiveUser()
	require.NotNil(t, eff)
	assert.Equal(t, "u1", eff.ID)
	assert.Equal(t, sdk.RoleAthlete, eff.Role, "selectors are inert without the operator role")
}

func TestSessionInvalidationHook(t *testing.T) {
	srv := sdktest.NewServer(athleteFixture())
	defer srv.Close()

	store := sdk.NewMemoryStore(nil)
	invalidated := false
	sess := newSession(srv, store, sdk.WithInvalidatedHook(func() { invalidated = true }))

	_, err := sess.Login(context.Background(), "anna@club.test", "hunter2")
	require.NoError(t, err)

	srv.RejectRefresh(true)
	srv.FailNextAuthorized(1)
	err = sess.RefreshIdentity(context.Background())
	require.Error(t, err)

	assert.True(t, invalidated)
	assert.False(t, sess.Status().IsAuthenticated)
	_, err = store.Load()
	assert.ErrorIs(t, err, sdk.ErrNoCredentials)
}
