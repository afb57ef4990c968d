package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spotin-app/spotin-go/session"
	"github.com/spotin-app/spotin-go/session/keychainfakes"
	"github.com/stretchr/testify/require"
)

const (
	testToken    = "token-abc-123"
	testEmail    = "john.doe@example.com"
	testPassword = "password123"
	testUserID   = "user-1"
	testUserName = "John Doe"
)

// fakeAuthenticator returns a canned session or error; beforeReturn runs after
// the "network call" but before control returns, to simulate events arriving
// while a sign-in is in flight.
type fakeAuthenticator struct {
	session      *session.Session
	err          error
	calls        int
	beforeReturn func()
}

func (a *fakeAuthenticator) Login(_ context.Context, _, _ string) (*session.Session, error) {
	a.calls++
	if a.beforeReturn != nil {
		a.beforeReturn()
	}
	if a.err != nil {
		return nil, a.err
	}
	out := *a.session
	return &out, nil
}

type testFixture struct {
	keychain *keychainfakes.FakeKeychain
	auth     *fakeAuthenticator
	store    *session.Store
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	keychain := keychainfakes.NewFakeKeychain()
	auth := &fakeAuthenticator{
		session: &session.Session{
			Token: testToken,
			User: session.UserRecord{
				ID:    testUserID,
				Name:  testUserName,
				Email: testEmail,
				Role:  session.RoleUser,
			},
		},
	}

	store, err := session.NewStore(keychain, auth)
	require.NoError(t, err)

	return &testFixture{keychain: keychain, auth: auth, store: store}
}

func TestNewStoreRequiresDependencies(t *testing.T) {
	_, err := session.NewStore(nil, &fakeAuthenticator{})
	require.Error(t, err)

	_, err = session.NewStore(keychainfakes.NewFakeKeychain(), nil)
	require.Error(t, err)
}

func TestBootstrapRestoresPersistedSession(t *testing.T) {
	f := setupTestFixture(t)
	f.keychain.Seed(session.KeyAuthToken, testToken)
	f.keychain.Seed(session.KeyUserSession, `{"id":"user-1","name":"John Doe","email":"john.doe@example.com","role":"USER"}`)

	sess, err := f.store.Bootstrap(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, testToken, sess.Token)
	require.Equal(t, testUserName, sess.User.Name)
	require.Equal(t, session.RoleUser, sess.User.Role)
	require.Equal(t, testToken, f.store.Token())
}

func TestBootstrapPartialStateIsNoSession(t *testing.T) {
	f := setupTestFixture(t)
	f.keychain.Seed(session.KeyAuthToken, "abc")
	// user_session deliberately missing

	sess, err := f.store.Bootstrap(context.Background())
	require.NoError(t, err)
	require.Nil(t, sess)
	require.Nil(t, f.store.Current())
}

func TestBootstrapCorruptUserIsNoSession(t *testing.T) {
	f := setupTestFixture(t)
	f.keychain.Seed(session.KeyAuthToken, testToken)
	f.keychain.Seed(session.KeyUserSession, "{not json")

	sess, err := f.store.Bootstrap(context.Background())
	require.NoError(t, err)
	require.Nil(t, sess)
}

func TestBootstrapEmptyKeychainIsNoSession(t *testing.T) {
	f := setupTestFixture(t)

	sess, err := f.store.Bootstrap(context.Background())
	require.NoError(t, err)
	require.Nil(t, sess)
}

func TestSignInPersistsAndSwapsSession(t *testing.T) {
	f := setupTestFixture(t)

	sess, err := f.store.SignIn(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, testToken, sess.Token)
	require.Equal(t, 1, f.auth.calls)

	// Both keys written in the same step.
	token, err := f.keychain.Get(context.Background(), session.KeyAuthToken)
	require.NoError(t, err)
	require.Equal(t, testToken, token)
	userJSON, err := f.keychain.Get(context.Background(), session.KeyUserSession)
	require.NoError(t, err)
	require.Contains(t, userJSON, testEmail)

	require.Equal(t, testToken, f.store.Token())
}

func TestSignInFailureLeavesStateUntouched(t *testing.T) {
	f := setupTestFixture(t)
	f.auth.err = errors.New("invalid credentials")

	sess, err := f.store.SignIn(context.Background(), testEmail, "wrong")
	require.Error(t, err)
	require.Nil(t, sess)
	require.Nil(t, f.store.Current())
	require.Zero(t, f.keychain.Len())
}

func TestSignInPersistFailureLeavesNothingBehind(t *testing.T) {
	f := setupTestFixture(t)
	f.keychain.SetErr = errors.New("keychain unavailable")

	sess, err := f.store.SignIn(context.Background(), testEmail, testPassword)
	require.Error(t, err)
	require.Nil(t, sess)
	require.Nil(t, f.store.Current())
	require.Zero(t, f.keychain.Len())
}

func TestSignOutIsIdempotent(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.store.SignIn(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	f.store.SignOut(context.Background())
	require.Nil(t, f.store.Current())
	require.Zero(t, f.keychain.Len())

	// Second sign-out is a no-op, not an error.
	f.store.SignOut(context.Background())
	require.Nil(t, f.store.Current())
	require.Zero(t, f.keychain.Len())
}

func TestHandleUnauthorizedClearsAndNotifies(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.store.SignIn(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	notified := 0
	f.store.OnInvalidated(func() { notified++ })

	f.store.HandleUnauthorized()
	require.Nil(t, f.store.Current())
	require.Empty(t, f.store.Token())
	require.Zero(t, f.keychain.Len())
	require.Equal(t, 1, notified)
}

func TestUnauthorizedDuringSignInWins(t *testing.T) {
	f := setupTestFixture(t)
	f.auth.beforeReturn = func() {
		// A 401 lands while the login response is still in flight.
		f.store.HandleUnauthorized()
	}

	sess, err := f.store.SignIn(context.Background(), testEmail, testPassword)
	require.ErrorIs(t, err, session.ErrSessionSuperseded)
	require.Nil(t, sess)

	// The stale sign-in must not resurrect the cleared session.
	require.Nil(t, f.store.Current())
	require.Zero(t, f.keychain.Len())
}

func TestTokenEmptyWhenSignedOut(t *testing.T) {
	f := setupTestFixture(t)
	require.Empty(t, f.store.Token())
}
