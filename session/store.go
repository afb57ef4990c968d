// Package session owns the authentication state for the lifetime of the
// process: bootstrap from the device keychain, sign-in, sign-out, and the
// reaction to a remotely invalidated token.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Authenticator performs the backend login call. Implemented by api.Client.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*Session, error)
}

// Store is the sole owner of the current Session. It is constructed once and
// injected into every component that needs the token; nothing else caches it.
type Store struct {
	keychain Keychain
	auth     Authenticator
	log      zerolog.Logger
	nowTime  func() time.Time

	mu        sync.Mutex
	current   *Session
	epoch     uint64
	observers []func()
}

// StoreOption modifies a Store instance.
type StoreOption func(*Store)

// WithLogger sets the logger used for observability events.
func WithLogger(log zerolog.Logger) StoreOption {
	return func(s *Store) { s.log = log }
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *Store) { s.nowTime = nowFunc }
}

// NewStore initialises a Store with required dependencies.
func NewStore(keychain Keychain, auth Authenticator, options ...StoreOption) (*Store, error) {
	if keychain == nil {
		return nil, errors.New("[NewStore] keychain is required")
	}
	if auth == nil {
		return nil, errors.New("[NewStore] authenticator is required")
	}

	store := &Store{
		keychain: keychain,
		auth:     auth,
		log:      zerolog.Nop(),
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(store)
	}
	return store, nil
}

// Bootstrap reconstructs the session from the keychain at process start.
// Partial or corrupt persisted state degrades to a nil session: it is logged
// and discarded, never surfaced as a user-facing error.
func (s *Store) Bootstrap(ctx context.Context) (*Session, error) {
	token, err := s.keychain.Get(ctx, KeyAuthToken)
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		if ctx.Err() != nil {
			return nil, errors.Wrap(err, "[Store.Bootstrap] reading auth_token")
		}
		s.log.Warn().Err(err).Msg("bootstrap: unreadable auth_token, treating as no session")
		return nil, nil
	}

	userJSON, err := s.keychain.Get(ctx, KeyUserSession)
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		if ctx.Err() != nil {
			return nil, errors.Wrap(err, "[Store.Bootstrap] reading user_session")
		}
		s.log.Warn().Err(err).Msg("bootstrap: unreadable user_session, treating as no session")
		return nil, nil
	}

	if token == "" || userJSON == "" {
		return nil, nil
	}

	var user UserRecord
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		s.log.Warn().Err(err).Msg("bootstrap: corrupt persisted user, treating as no session")
		return nil, nil
	}

	sess := &Session{Token: token, User: user}

	s.mu.Lock()
	s.current = sess
	s.epoch++
	s.mu.Unlock()

	out := *sess
	return &out, nil
}

// SignIn authenticates against the backend and, on success, persists the new
// session and swaps it in. On failure both the in-memory and persisted state
// are left untouched. If the store was invalidated while the login call was in
// flight the result is discarded and ErrSessionSuperseded is returned.
func (s *Store) SignIn(ctx context.Context, email, password string) (*Session, error) {
	s.mu.Lock()
	started := s.epoch
	s.mu.Unlock()

	sess, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != started {
		s.log.Warn().Msg("sign-in superseded by a concurrent session invalidation")
		return nil, ErrSessionSuperseded
	}

	userJSON, err := json.Marshal(sess.User)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.SignIn] encoding user record")
	}

	// Persisted store first: an in-memory session without a persisted copy
	// would silently vanish on restart.
	if err := s.keychain.Set(ctx, KeyAuthToken, sess.Token); err != nil {
		return nil, errors.Wrap(err, "[Store.SignIn] persisting auth_token")
	}
	if err := s.keychain.Set(ctx, KeyUserSession, string(userJSON)); err != nil {
		// Roll the token back so the two keys never diverge.
		_ = s.keychain.Delete(ctx, KeyAuthToken)
		return nil, errors.Wrap(err, "[Store.SignIn] persisting user_session")
	}

	s.current = sess
	s.epoch++

	out := *sess
	return &out, nil
}

// SignOut clears the in-memory session and the persisted copy. Idempotent and
// never fails: keychain delete errors are logged, not returned.
func (s *Store) SignOut(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(ctx)
}

// HandleUnauthorized clears the session exactly like SignOut and then notifies
// the registered invalidation observers. Wired to the api gateway's 401
// interception; it never re-enters the gateway, which prevents broadcast loops.
func (s *Store) HandleUnauthorized() {
	s.mu.Lock()
	s.clearLocked(context.Background())
	observers := make([]func(), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
}

// OnInvalidated registers fn to run whenever the session is cleared because the
// backend rejected the token. UI layers use this for redirect-to-login.
func (s *Store) OnInvalidated(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Current returns a copy of the live session, or nil when signed out.
func (s *Store) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	out := *s.current
	return &out
}

// Token returns the current bearer token, or "" when signed out. Implements
// api.TokenSource.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.Token
}

func (s *Store) clearLocked(ctx context.Context) {
	if err := s.keychain.Delete(ctx, KeyAuthToken); err != nil {
		s.log.Warn().Err(err).Msg("clearing persisted auth_token failed")
	}
	if err := s.keychain.Delete(ctx, KeyUserSession); err != nil {
		s.log.Warn().Err(err).Msg("clearing persisted user_session failed")
	}
	s.current = nil
	s.epoch++
}
