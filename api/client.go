// Package api is the single chokepoint for backend requests: it attaches the
// bearer token, translates failures into typed errors, and intercepts 401
// responses so the transport layer can invalidate the session without knowing
// anything about navigation.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/spotin-app/spotin-go/session"
)

const requestTimeout = 10 * time.Second

// TokenSource supplies the current bearer token, or "" when signed out.
// Implemented by session.Store; the client never caches the token itself.
type TokenSource interface {
	Token() string
}

// TokenSourceFunc adapts a plain function to a TokenSource. Handy for wiring
// when the session store is constructed after the client.
type TokenSourceFunc func() string

func (f TokenSourceFunc) Token() string { return f() }

var _ session.Authenticator = (*Client)(nil)

// Client issues all backend calls for the app.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenSource
	onUnauthorized func()
	log            zerolog.Logger
}

// ClientOption modifies a Client instance.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client (primarily for testing).
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithLogger sets the logger for request-level events.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithUnauthorizedHook sets the callback invoked when a bearer-authenticated
// request comes back 401. Wire it to session.Store.HandleUnauthorized.
func WithUnauthorizedHook(hook func()) ClientOption {
	return func(c *Client) { c.onUnauthorized = hook }
}

// NewClient initialises a Client with required dependencies.
func NewClient(baseURL string, tokens TokenSource, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[NewClient] baseURL is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewClient] token source is required")
	}

	client := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: requestTimeout},
		tokens:         tokens,
		onUnauthorized: func() {},
		log:            zerolog.Nop(),
	}
	for _, opt := range options {
		opt(client)
	}
	return client, nil
}

// Login authenticates against the backend. Failures of any kind, invalid
// credentials and transport errors alike, surface as *AuthenticationError and
// never trigger the unauthorized hook: there is no session yet to clear.
func (c *Client) Login(ctx context.Context, email, password string) (*session.Session, error) {
	var out loginResponse
	if err := c.do(ctx, http.MethodPost, RouteLogin, loginRequest{Email: email, Password: password}, &out); err != nil {
		var apiErr *ApiError
		if errors.As(err, &apiErr) {
			message := apiErr.Message
			if message == "" || apiErr.Status == 0 {
				message = genericLoginFailure
			}
			return nil, &AuthenticationError{Message: message, Err: err}
		}
		return nil, err
	}
	return &session.Session{Token: out.Token, User: out.User}, nil
}

// MarkAttendance submits a scanned QR token with the device coordinates.
func (c *Client) MarkAttendance(ctx context.Context, qrToken string, lat, lng float64) (*AttendanceRecord, error) {
	var out markAttendanceResponse
	req := markAttendanceRequest{QRToken: qrToken, Lat: lat, Lng: lng}
	if err := c.do(ctx, http.MethodPost, RouteMarkAttendance, req, &out); err != nil {
		return nil, err
	}
	return &out.Attendance, nil
}

// MyAttendance returns the signed-in user's attendance history.
func (c *Client) MyAttendance(ctx context.Context) ([]AttendanceRecord, error) {
	var out attendanceListResponse
	if err := c.do(ctx, http.MethodGet, RouteMyAttendance, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// MySchedule returns today's schedule, or nil when none is configured.
func (c *Client) MySchedule(ctx context.Context) (*Schedule, error) {
	var out scheduleResponse
	if err := c.do(ctx, http.MethodGet, RouteMySchedule, nil, &out); err != nil {
		return nil, err
	}
	return out.Schedule, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "[Client.do] encoding request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "[Client.do] building request")
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("path", path).Msg("request failed before reaching the backend")
		return &ApiError{Status: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ApiError{Status: 0, Message: err.Error()}
	}

	if resp.StatusCode == http.StatusUnauthorized && path != RouteLogin {
		// The token is dead. Clear the session as part of error handling and
		// still propagate the error to the original caller: both must happen.
		c.log.Warn().Str("path", path).Msg("backend rejected the session token")
		c.onUnauthorized()
		return &ApiError{Status: resp.StatusCode, Message: backendMessage(data)}
	}

	// 403 is a permission denial, not an invalid session: surface it without
	// touching the session.
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &ApiError{Status: resp.StatusCode, Message: backendMessage(data)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Wrapf(err, "[Client.do] decoding %s response", path)
		}
	}
	return nil
}

func backendMessage(data []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return ""
	}
	return parsed.Message
}
