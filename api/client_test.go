package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spotin-app/spotin-go/api"
	"github.com/spotin-app/spotin-go/session"
	"github.com/spotin-app/spotin-go/session/keychainfakes"
	"github.com/stretchr/testify/require"
)

const testBearer = "bearer-token-1"

type staticTokens string

func (s staticTokens) Token() string { return string(s) }

func newTestClient(t *testing.T, handler http.Handler, tokens api.TokenSource, options ...api.ClientOption) (*api.Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := api.NewClient(server.URL, tokens, options...)
	require.NoError(t, err)
	return client, server
}

func TestNewClientRequiresDependencies(t *testing.T) {
	_, err := api.NewClient("", staticTokens(""))
	require.Error(t, err)

	_, err = api.NewClient("http://localhost:3000", nil)
	require.Error(t, err)
}

func TestBearerAttachedWhenTokenPresent(t *testing.T) {
	var got string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
	})
	client, _ := newTestClient(t, handler, staticTokens(testBearer))

	_, err := client.MyAttendance(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer "+testBearer, got)
}

func TestNoBearerWhenSignedOut(t *testing.T) {
	var got string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
	})
	client, _ := newTestClient(t, handler, staticTokens(""))

	_, err := client.MyAttendance(context.Background())
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestUnauthorizedClearsSessionAndPropagates(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "token expired"})
	})

	keychain := keychainfakes.NewFakeKeychain()
	keychain.Seed(session.KeyAuthToken, testBearer)
	keychain.Seed(session.KeyUserSession, `{"id":"user-1","name":"John","email":"j@example.com","role":"USER"}`)

	// The store reads tokens through itself and the client clears through the
	// store: the full wiring under test.
	var store *session.Store
	client, _ := newTestClient(t, handler,
		api.TokenSourceFunc(func() string { return store.Token() }),
		api.WithUnauthorizedHook(func() { store.HandleUnauthorized() }),
	)
	store, err := session.NewStore(keychain, client)
	require.NoError(t, err)
	_, err = store.Bootstrap(context.Background())
	require.NoError(t, err)
	require.Equal(t, testBearer, store.Token())

	invalidated := 0
	store.OnInvalidated(func() { invalidated++ })

	_, err = client.MyAttendance(context.Background())
	var apiErr *api.ApiError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "token expired", apiErr.Message)

	// Session cleared in memory and on the keychain, observers notified.
	require.Nil(t, store.Current())
	require.Zero(t, keychain.Len())
	require.Equal(t, 1, invalidated)
}

func TestForbiddenLeavesSessionUntouched(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "not allowed"})
	})

	unauthorized := 0
	client, _ := newTestClient(t, handler, staticTokens(testBearer),
		api.WithUnauthorizedHook(func() { unauthorized++ }),
	)

	_, err := client.MyAttendance(context.Background())
	var apiErr *api.ApiError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.Status)
	require.Equal(t, "not allowed", apiErr.Message)
	require.Zero(t, unauthorized)
}

func TestLoginFailureIsAuthenticationError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid credentials"})
	})

	unauthorized := 0
	client, _ := newTestClient(t, handler, staticTokens(""),
		api.WithUnauthorizedHook(func() { unauthorized++ }),
	)

	_, err := client.Login(context.Background(), "a@example.com", "nope")
	var authErr *api.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, "invalid credentials", authErr.Message)

	// Login failures never trigger the unauthorized interception.
	require.Zero(t, unauthorized)
}

func TestLoginSuccessReturnsSession(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, api.RouteLogin, r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "a@example.com", body["email"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": testBearer,
			"user": map[string]any{
				"id": "user-1", "name": "Ana", "email": "a@example.com", "role": "USER",
			},
		})
	})
	client, _ := newTestClient(t, handler, staticTokens(""))

	sess, err := client.Login(context.Background(), "a@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, testBearer, sess.Token)
	require.Equal(t, session.RoleUser, sess.User.Role)
}

func TestTransportFailureIsApiErrorStatusZero(t *testing.T) {
	client, server := newTestClient(t, http.NotFoundHandler(), staticTokens(""))
	server.Close()

	_, err := client.MyAttendance(context.Background())
	var apiErr *api.ApiError
	require.ErrorAs(t, err, &apiErr)
	require.Zero(t, apiErr.Status)
}

func TestMarkAttendanceRoundTrip(t *testing.T) {
	markedAt := time.Date(2026, 3, 2, 8, 1, 30, 0, time.UTC)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, api.RouteMarkAttendance, r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "qr-1", body["qrToken"])
		require.InDelta(t, 6.2442, body["lat"], 1e-9)
		require.InDelta(t, -75.5812, body["lng"], 1e-9)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"attendance": map[string]any{
				"id": "att-1", "userId": "user-1", "dateKey": "2026-03-02",
				"markedAt": markedAt, "distanceMeters": 12.5,
				"result": "ON_TIME", "status": "PENDING",
			},
		})
	})
	client, _ := newTestClient(t, handler, staticTokens(testBearer))

	record, err := client.MarkAttendance(context.Background(), "qr-1", 6.2442, -75.5812)
	require.NoError(t, err)
	require.Equal(t, "att-1", record.ID)
	require.Equal(t, api.ResultOnTime, record.Result)
	require.Equal(t, api.StatusPending, record.Status)
	require.True(t, record.MarkedAt.Equal(markedAt))
}

func TestMyScheduleNullSchedule(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"schedule": nil})
	})
	client, _ := newTestClient(t, handler, staticTokens(testBearer))

	schedule, err := client.MySchedule(context.Background())
	require.NoError(t, err)
	require.Nil(t, schedule)
}
